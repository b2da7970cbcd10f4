package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/abetos/internal/model"
	"github.com/iurnickita/abetos/internal/rules"
	"github.com/iurnickita/abetos/internal/service/config"
	"github.com/iurnickita/abetos/internal/store"
	storeConfig "github.com/iurnickita/abetos/internal/store/config"
	"github.com/iurnickita/abetos/internal/store/storetest"
)

func newTestService(t *testing.T) (*service, store.Store) {
	t.Helper()

	return newTestServiceOn(t, storetest.SQLite(t))
}

func newTestServiceOn(t *testing.T, storeCfg storeConfig.Config) (*service, store.Store) {
	t.Helper()

	s, err := store.NewStore(storeCfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	cfg := config.Default()
	cfg.RetryBackoff = time.Millisecond
	svc := NewService(cfg, s, nil).(*service)

	_, err = svc.SeedRules(context.Background(), RuleSeeds(rules.DefaultRules))
	require.NoError(t, err)
	return svc, s
}

func newCustomer(t *testing.T, s store.Store, doc string) model.Customer {
	t.Helper()

	customer, err := s.CustomerCreate(context.Background(), model.Customer{FullName: "Cliente " + doc, DocNumber: doc})
	require.NoError(t, err)
	return customer
}

func earn(t *testing.T, s store.Store, customerID, points int64) {
	t.Helper()

	_, err := s.LedgerAppend(context.Background(), model.Transaction{
		CustomerID:  customerID,
		Kind:        model.KindEarn,
		Points:      points,
		ProductCode: "TEST",
	})
	require.NoError(t, err)
}

func newReward(t *testing.T, s store.Store, reward model.Reward) model.Reward {
	t.Helper()

	ctx := context.Background()
	_, err := s.RewardUpsert(ctx, reward)
	require.NoError(t, err)
	list, err := s.RewardList(ctx)
	require.NoError(t, err)
	for _, r := range list {
		if r.Title == reward.Title {
			return r
		}
	}
	t.Fatalf("reward %q not found", reward.Title)
	return model.Reward{}
}

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func ptr[T any](v T) *T {
	return &v
}

func TestAccrue(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)
	customer := newCustomer(t, s, "25111222")

	// INFINIA 8 баллов за литр, 15 литров
	receipt, err := svc.Accrue(ctx, AccrualRequest{CustomerID: customer.ID, ProductCode: "infinia", Liters: dec("15")})
	require.NoError(t, err)
	assert.Equal(t, int64(120), receipt.Transaction.Points)
	assert.Equal(t, int64(120), receipt.Balance)
	assert.Equal(t, "INFINIA", receipt.Transaction.ProductCode)
	assert.Equal(t, model.KindEarn, receipt.Transaction.Kind)

	// SUPER 4 балла за литр, округление вниз
	receipt, err = svc.Accrue(ctx, AccrualRequest{CustomerID: customer.ID, ProductCode: "SUPER", Liters: dec("10.9")})
	require.NoError(t, err)
	assert.Equal(t, int64(43), receipt.Transaction.Points)
	assert.Equal(t, int64(163), receipt.Balance)

	// GNC по сумме покупки, клиент по учетной записи не найден
	_, err = svc.Accrue(ctx, AccrualRequest{UserID: 999, ProductCode: "GNC", Amount: dec("100")})
	assert.ErrorIs(t, err, ErrNotFound)

	receipt, err = svc.Accrue(ctx, AccrualRequest{CustomerID: customer.ID, ProductCode: "GNC", Amount: dec("12000"), PaymentMethod: "efectivo"})
	require.NoError(t, err)
	assert.Equal(t, int64(6000), receipt.Transaction.Points)
	assert.Equal(t, int64(6163), receipt.Balance)
	assert.Equal(t, "efectivo", receipt.Transaction.PaymentMethod)
}

func TestAccrueOverride(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)
	customer := newCustomer(t, s, "25111223")
	operator := int64(1)

	receipt, err := svc.Accrue(ctx, AccrualRequest{CustomerID: customer.ID, ProductCode: "PROMO", Points: ptr(int64(500)), OperatorID: &operator})
	require.NoError(t, err)
	assert.Equal(t, int64(500), receipt.Balance)
	require.NotNil(t, receipt.Transaction.OperatorID)
	assert.Equal(t, operator, *receipt.Transaction.OperatorID)

	_, err = svc.Accrue(ctx, AccrualRequest{CustomerID: customer.ID, ProductCode: "PROMO", Points: ptr(int64(0))})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAccrueErrors(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)
	customer := newCustomer(t, s, "25111224")

	tests := []struct {
		name string
		req  AccrualRequest
		want error
	}{
		{name: "unknown customer", req: AccrualRequest{CustomerID: 999, ProductCode: "SUPER", Liters: dec("10")}, want: ErrNotFound},
		{name: "no customer", req: AccrualRequest{ProductCode: "SUPER", Liters: dec("10")}, want: ErrInvalidInput},
		{name: "empty product", req: AccrualRequest{CustomerID: customer.ID, ProductCode: " ", Liters: dec("10")}, want: ErrInvalidInput},
		{name: "no rule", req: AccrualRequest{CustomerID: customer.ID, ProductCode: "KEROSENE", Liters: dec("10")}, want: ErrNoActiveRule},
		{name: "liters missing", req: AccrualRequest{CustomerID: customer.ID, ProductCode: "SUPER", Amount: dec("1000")}, want: ErrInvalidInput},
		{name: "amount missing", req: AccrualRequest{CustomerID: customer.ID, ProductCode: "GNC", Liters: dec("10")}, want: ErrInvalidInput},
		{name: "zero points", req: AccrualRequest{CustomerID: customer.ID, ProductCode: "SUPER", Liters: dec("0.2")}, want: ErrZeroPoints},
		{name: "points beyond int64", req: AccrualRequest{CustomerID: customer.ID, ProductCode: "INFINIA", Liters: dec("1e19")}, want: ErrInvalidInput},
		{name: "points above limit", req: AccrualRequest{CustomerID: customer.ID, ProductCode: "INFINIA", Liters: dec("200000000")}, want: ErrInvalidInput},
		{name: "liters too large", req: AccrualRequest{CustomerID: customer.ID, ProductCode: "GNC", Amount: dec("100"), Liters: dec("1e10")}, want: ErrInvalidInput},
		{name: "note too long", req: AccrualRequest{CustomerID: customer.ID, ProductCode: "SUPER", Liters: dec("10"), Note: strings.Repeat("n", 201)}, want: ErrInvalidInput},
		{name: "ticket too long", req: AccrualRequest{CustomerID: customer.ID, ProductCode: "SUPER", Liters: dec("10"), TicketNumber: strings.Repeat("7", 51)}, want: ErrInvalidInput},
		{name: "payment method too long", req: AccrualRequest{CustomerID: customer.ID, ProductCode: "SUPER", Liters: dec("10"), PaymentMethod: strings.Repeat("p", 31)}, want: ErrInvalidInput},
		{name: "override above limit", req: AccrualRequest{CustomerID: customer.ID, ProductCode: "PROMO", Points: ptr(rules.MaxPoints + 1)}, want: ErrInvalidInput},
		{name: "override max int64", req: AccrualRequest{CustomerID: customer.ID, ProductCode: "PROMO", Points: ptr(int64(math.MaxInt64))}, want: ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Accrue(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// ни одна ошибка не оставила записей
	balance, err := s.LedgerBalance(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestAccrueBalanceLimit(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)
	customer := newCustomer(t, s, "25111225")

	earn(t, s, customer.ID, math.MaxInt64-10)

	// 10 литров INFINIA дают 80 баллов, сумма журнала вышла бы за int64
	_, err := svc.Accrue(ctx, AccrualRequest{CustomerID: customer.ID, ProductCode: "INFINIA", Liters: dec("10")})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "invalid_input", Reason(err))

	_, err = svc.AccrueByDocument(ctx, ManualAccrualRequest{DocNumber: "25111225", ProductCode: "INFINIA", Liters: dec("10")})
	require.ErrorIs(t, err, ErrInvalidInput)

	balance, err := s.LedgerBalance(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64-10), balance)

	receipt, err := svc.Accrue(ctx, AccrualRequest{CustomerID: customer.ID, ProductCode: "PROMO", Points: ptr(int64(10))})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), receipt.Balance)
}

func TestAccrueByDocumentLimits(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)
	customer := newCustomer(t, s, "30555667")

	_, err := svc.AccrueByDocument(ctx, ManualAccrualRequest{DocNumber: "30555667", ProductCode: "INFINIA", Liters: dec("1e19")})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, rules.ErrPointsLimit)

	_, err = svc.AccrueByDocument(ctx, ManualAccrualRequest{DocNumber: "30555667", ProductCode: "SUPER", Liters: dec("10"), Note: strings.Repeat("ñ", 201)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	balance, err := s.LedgerBalance(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestAccrueByDocument(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)
	customer := newCustomer(t, s, "30555666")

	receipt, err := svc.AccrueByDocument(ctx, ManualAccrualRequest{DocNumber: " 30555666 ", ProductCode: "INFINIA", Liters: dec("12.5"), PaidWithApp: true})
	require.NoError(t, err)
	assert.Equal(t, int64(125), receipt.Transaction.Points)
	assert.Equal(t, int64(125), receipt.Balance)
	assert.True(t, receipt.Transaction.PaidWithApp)
	assert.Equal(t, customer.ID, receipt.Transaction.CustomerID)

	// литры из суммы и цены: 3000 / 1500 = 2 литра SUPER по 8
	receipt, err = svc.AccrueByDocument(ctx, ManualAccrualRequest{DocNumber: "30555666", ProductCode: "SUPER", Amount: dec("3000"), UnitPrice: dec("1500")})
	require.NoError(t, err)
	assert.Equal(t, int64(16), receipt.Transaction.Points)
	assert.True(t, receipt.Transaction.Liters.Decimal.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, int64(141), receipt.Balance)

	_, err = svc.AccrueByDocument(ctx, ManualAccrualRequest{DocNumber: "1", ProductCode: "SUPER", Liters: dec("10")})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.AccrueByDocument(ctx, ManualAccrualRequest{DocNumber: "30555666", ProductCode: "SUPER"})
	assert.ErrorIs(t, err, ErrInvalidLiters)

	_, err = svc.AccrueByDocument(ctx, ManualAccrualRequest{DocNumber: "30555666", ProductCode: "SUPER", Liters: dec("-1")})
	assert.ErrorIs(t, err, ErrInvalidLiters)

	_, err = svc.AccrueByDocument(ctx, ManualAccrualRequest{DocNumber: "30555666", ProductCode: "GNC", Liters: dec("10")})
	assert.ErrorIs(t, err, ErrInvalidProductCode)

	_, err = svc.AccrueByDocument(ctx, ManualAccrualRequest{DocNumber: "30555666", ProductCode: "", Liters: dec("10")})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRedeem(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)
	customer := newCustomer(t, s, "40111222")
	earn(t, s, customer.ID, 200)
	reward := newReward(t, s, model.Reward{Title: "Lavado premium", RequiredPoints: 150, Stock: ptr(int64(1))})

	receipt, err := svc.Redeem(ctx, RedeemRequest{CustomerID: customer.ID, RewardID: reward.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(50), receipt.Balance)
	assert.Equal(t, model.KindRedeem, receipt.Transaction.Kind)
	assert.Equal(t, int64(-150), receipt.Transaction.Points)
	assert.Equal(t, model.RewardProductCode(reward.ID), receipt.Transaction.ProductCode)
	assert.Equal(t, "Redeemed 'Lavado premium'", receipt.Transaction.Note)

	reward, err = s.RewardGet(ctx, reward.ID)
	require.NoError(t, err)
	require.NotNil(t, reward.Stock)
	assert.Equal(t, int64(0), *reward.Stock)

	balance, err := s.LedgerBalance(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	// остаток исчерпан
	earn(t, s, customer.ID, 500)
	_, err = svc.Redeem(ctx, RedeemRequest{CustomerID: customer.ID, RewardID: reward.ID})
	assert.ErrorIs(t, err, ErrOutOfStock)
}

func TestRedeemByUser(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)

	_, customer, err := svc.RegisterCustomer(ctx,
		model.User{Email: "ana@example.com", PasswordHash: "hash"},
		model.Customer{FullName: "Ana", DocNumber: "41000111"})
	require.NoError(t, err)
	earn(t, s, customer.ID, 100)
	reward := newReward(t, s, model.Reward{Title: "Café + medialuna", RequiredPoints: 60})

	receipt, err := svc.Redeem(ctx, RedeemRequest{UserID: *customer.UserID, RewardID: reward.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(40), receipt.Balance)

	// награда без учета остатка
	reward, err = s.RewardGet(ctx, reward.ID)
	require.NoError(t, err)
	assert.Nil(t, reward.Stock)
}

func TestRedeemInsufficientPoints(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)
	customer := newCustomer(t, s, "40111223")
	earn(t, s, customer.ID, 100)
	reward := newReward(t, s, model.Reward{Title: "Cambio de aceite", RequiredPoints: 150, Stock: ptr(int64(3))})

	_, err := svc.Redeem(ctx, RedeemRequest{CustomerID: customer.ID, RewardID: reward.ID})
	require.ErrorIs(t, err, ErrInsufficientPoints)
	var insufficient *InsufficientPointsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, int64(100), insufficient.Balance)
	assert.Equal(t, int64(150), insufficient.Required)
	assert.Equal(t, "insufficient_points", Reason(err))

	// ничего не записано
	history, err := svc.History(ctx, customer.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	reward, err = s.RewardGet(ctx, reward.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), *reward.Stock)
}

func TestRedeemWindow(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)
	customer := newCustomer(t, s, "40111224")
	earn(t, s, customer.ID, 1000)

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	expired := newReward(t, s, model.Reward{Title: "Vencida", RequiredPoints: 10,
		ValidFrom: ptr(now.AddDate(0, -2, 0)), ValidTo: ptr(now.AddDate(0, 0, -1))})
	future := newReward(t, s, model.Reward{Title: "Futura", RequiredPoints: 10,
		ValidFrom: ptr(now.AddDate(0, 0, 1))})
	edge := newReward(t, s, model.Reward{Title: "Ultimo dia", RequiredPoints: 10,
		ValidFrom: ptr(now), ValidTo: ptr(now)})

	_, err := svc.Redeem(ctx, RedeemRequest{CustomerID: customer.ID, RewardID: expired.ID})
	assert.ErrorIs(t, err, ErrExpired)

	_, err = svc.Redeem(ctx, RedeemRequest{CustomerID: customer.ID, RewardID: future.ID})
	assert.ErrorIs(t, err, ErrNotYetAvailable)

	// границы окна включительно
	_, err = svc.Redeem(ctx, RedeemRequest{CustomerID: customer.ID, RewardID: edge.ID})
	assert.NoError(t, err)

	_, err = svc.Redeem(ctx, RedeemRequest{CustomerID: customer.ID, RewardID: 999})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Redeem(ctx, RedeemRequest{CustomerID: 999, RewardID: edge.ID})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedeemNoOversell(t *testing.T) {
	storetest.ForEachDriver(t, func(t *testing.T, cfg storeConfig.Config) {
		ctx := context.Background()
		svc, s := newTestServiceOn(t, cfg)
		reward := newReward(t, s, model.Reward{Title: "Unica", RequiredPoints: 100, Stock: ptr(int64(1))})

		const clients = 6
		customers := make([]model.Customer, clients)
		for i := range customers {
			customers[i] = newCustomer(t, s, "5000000"+string(rune('0'+i)))
			earn(t, s, customers[i].ID, 1000)
		}

		var wg sync.WaitGroup
		errs := make([]error, clients)
		for i := range customers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = svc.Redeem(ctx, RedeemRequest{CustomerID: customers[i].ID, RewardID: reward.ID})
			}(i)
		}
		wg.Wait()

		var succeeded int
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, ErrOutOfStock)
		}
		assert.Equal(t, 1, succeeded)

		reward, err := s.RewardGet(ctx, reward.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), *reward.Stock)
	})
}

func TestRedeemNoNegativeBalance(t *testing.T) {
	storetest.ForEachDriver(t, func(t *testing.T, cfg storeConfig.Config) {
		ctx := context.Background()
		svc, s := newTestServiceOn(t, cfg)
		customer := newCustomer(t, s, "40111225")
		earn(t, s, customer.ID, 200)
		reward := newReward(t, s, model.Reward{Title: "Sin limite", RequiredPoints: 150})

		const attempts = 5
		var wg sync.WaitGroup
		errs := make([]error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = svc.Redeem(ctx, RedeemRequest{CustomerID: customer.ID, RewardID: reward.ID})
			}(i)
		}
		wg.Wait()

		var succeeded int
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, ErrInsufficientPoints)
		}
		assert.Equal(t, 1, succeeded)

		balance, err := s.LedgerBalance(ctx, customer.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(50), balance)
	})
}

func TestBalanceIsLedgerSum(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)
	customer := newCustomer(t, s, "40111226")
	reward := newReward(t, s, model.Reward{Title: "Descuento", RequiredPoints: 30})

	var want int64
	for _, points := range []int64{120, 43, 7} {
		earn(t, s, customer.ID, points)
		want += points
	}
	for i := 0; i < 3; i++ {
		_, err := svc.Redeem(ctx, RedeemRequest{CustomerID: customer.ID, RewardID: reward.ID})
		require.NoError(t, err)
		want -= 30
	}

	history, err := svc.History(ctx, customer.ID, 0)
	require.NoError(t, err)
	var sum int64
	for _, tx := range history {
		sum += tx.Points
	}
	assert.Equal(t, want, sum)

	profile, err := svc.Profile(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, want, profile.Balance)

	summary, err := svc.Summary(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BalanceSummary{Current: want, Earned: 170, Redeemed: 90}, summary)

	// ограничение истории
	history, err = svc.History(ctx, customer.ID, 2)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSeedIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	// правила уже заполнены при создании сервиса
	report, err := svc.SeedRules(ctx, RuleSeeds(rules.DefaultRules))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, len(rules.DefaultRules), report.Updated)

	list, err := svc.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, list, len(rules.DefaultRules))

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	report, err = svc.SeedRewards(ctx, DefaultRewards(now))
	require.NoError(t, err)
	assert.Equal(t, SeedReport{Created: 4}, report)

	report, err = svc.SeedRewards(ctx, DefaultRewards(now))
	require.NoError(t, err)
	assert.Equal(t, SeedReport{Updated: 4}, report)

	// то же название в разложенной форме Unicode
	report, err = svc.SeedRewards(ctx, []RewardSeed{{Title: "Cafe\u0301 + medialuna", RequiredPoints: 70}})
	require.NoError(t, err)
	assert.Equal(t, SeedReport{Updated: 1}, report)

	rewards, err := svc.ListRewards(ctx)
	require.NoError(t, err)
	require.Len(t, rewards, 4)
	assert.Equal(t, "Caf\u00e9 + medialuna", rewards[0].Title)
	assert.Equal(t, int64(70), rewards[0].RequiredPoints)
}

func TestSeedReportsInvalidItems(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	report, err := svc.SeedRules(ctx, []RuleSeed{
		{ProductCode: "", Unit: "LITERS", PointsPerUnit: decimal.NewFromInt(1)},
		{ProductCode: "DIESEL", Unit: "KG", PointsPerUnit: decimal.NewFromInt(1)},
		{ProductCode: "DIESEL", Unit: "liters", PointsPerUnit: decimal.NewFromInt(-1)},
		{ProductCode: "diesel", Unit: "liters", PointsPerUnit: decimal.RequireFromString("2.5"), IsActive: ptr(false)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Len(t, report.Errors, 3)

	// выключенное правило не применяется
	customer := newCustomer(t, svc.store, "60111222")
	_, err = svc.Accrue(ctx, AccrualRequest{CustomerID: customer.ID, ProductCode: "DIESEL", Liters: dec("10")})
	assert.ErrorIs(t, err, ErrNoActiveRule)

	from := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	report, err = svc.SeedRewards(ctx, []RewardSeed{
		{Title: " ", RequiredPoints: 10},
		{Title: "Gratis", RequiredPoints: 0},
		{Title: "Negativo", RequiredPoints: 10, Stock: ptr(int64(-1))},
		{Title: "Al reves", RequiredPoints: 10, ValidFrom: &from, ValidTo: ptr(from.AddDate(0, 0, -1))},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created+report.Updated)
	assert.Len(t, report.Errors, 4)
}

func TestRegisterCustomer(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	user, customer, err := svc.RegisterCustomer(ctx,
		model.User{Email: " Juan@Example.com ", PasswordHash: "hash", Role: model.RoleAdmin},
		model.Customer{FullName: "Juan", DocNumber: "27000111"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleCustomer, user.Role)
	assert.Equal(t, "juan@example.com", user.Email)
	assert.Equal(t, model.MemberNumber(customer.ID), customer.MemberNumber)

	found, err := svc.CustomerByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, customer.ID, found.ID)

	// повтор документа откатывает и учетную запись
	_, _, err = svc.RegisterCustomer(ctx,
		model.User{Email: "otro@example.com", PasswordHash: "hash"},
		model.Customer{FullName: "Otro", DocNumber: "27000111"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
	_, err = svc.store.AuthGetByEmail(ctx, "otro@example.com")
	assert.ErrorIs(t, err, store.ErrNoRows)

	_, _, err = svc.RegisterCustomer(ctx, model.User{Email: "x@example.com"}, model.Customer{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = svc.RegisterCustomer(ctx,
		model.User{Email: "largo@example.com", PasswordHash: "hash"},
		model.Customer{FullName: "Largo", DocNumber: strings.Repeat("1", 21)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	profile, err := svc.ProfileByDocument(ctx, "27000111")
	require.NoError(t, err)
	assert.Equal(t, int64(0), profile.Balance)

	_, err = svc.ProfileByDocument(ctx, "1")
	assert.ErrorIs(t, err, ErrNotFound)

	repaired, err := svc.RepairMemberNumbers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, repaired)
}

func TestCreateStaff(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	user, err := svc.CreateStaff(ctx, model.User{Email: "admin@example.com", PasswordHash: "hash", Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.Positive(t, user.ID)

	_, err = svc.CreateStaff(ctx, model.User{Email: "admin@example.com", PasswordHash: "hash", Role: model.RoleClerk})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = svc.CreateStaff(ctx, model.User{Email: "c@example.com", PasswordHash: "hash", Role: model.RoleCustomer})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRetry(t *testing.T) {
	svc, _ := newTestService(t)

	var calls int
	err := svc.retry(context.Background(), "test", func() error {
		calls++
		return store.ErrConflict
	})
	assert.ErrorIs(t, err, ErrConcurrencyConflict)
	assert.Equal(t, "concurrency_conflict", Reason(err))
	assert.Equal(t, svc.cfg.RedeemRetries, calls)

	// успех со второй попытки
	calls = 0
	err = svc.retry(context.Background(), "test", func() error {
		calls++
		if calls == 1 {
			return store.ErrConflict
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)

	// прочие ошибки не повторяются
	calls = 0
	err = svc.retry(context.Background(), "test", func() error {
		calls++
		return ErrOutOfStock
	})
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.Equal(t, 1, calls)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "not_found", Reason(ErrNotFound))
	assert.Equal(t, "no_active_rule", Reason(errors.Join(errors.New("ctx"), ErrNoActiveRule)))
	assert.Equal(t, "internal", Reason(errors.New("disk full")))
}
