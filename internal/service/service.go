package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/abetos/internal/balance"
	"github.com/iurnickita/abetos/internal/model"
	"github.com/iurnickita/abetos/internal/service/config"
	"github.com/iurnickita/abetos/internal/store"
)

type Service interface {
	// Начисление баллов
	Accrue(ctx context.Context, req AccrualRequest) (model.Receipt, error)
	AccrueByDocument(ctx context.Context, req ManualAccrualRequest) (model.Receipt, error)
	// Списание баллов на награду
	Redeem(ctx context.Context, req RedeemRequest) (model.Receipt, error)

	// Клиенты
	RegisterCustomer(ctx context.Context, user model.User, customer model.Customer) (model.User, model.Customer, error)
	CreateStaff(ctx context.Context, user model.User) (model.User, error)
	CustomerByUser(ctx context.Context, userID int64) (model.Customer, error)
	Profile(ctx context.Context, customerID int64) (Profile, error)
	ProfileByDocument(ctx context.Context, docNumber string) (Profile, error)
	Summary(ctx context.Context, customerID int64) (model.BalanceSummary, error)
	History(ctx context.Context, customerID int64, limit int) ([]model.Transaction, error)
	RepairMemberNumbers(ctx context.Context) (int, error)

	// Каталог
	ListRewards(ctx context.Context) ([]model.Reward, error)
	ListRules(ctx context.Context) ([]model.EarningRule, error)
	SeedRules(ctx context.Context, seeds []RuleSeed) (SeedReport, error)
	SeedRewards(ctx context.Context, seeds []RewardSeed) (SeedReport, error)
}

// Profile - данные клиента вместе с текущим балансом.
type Profile struct {
	Customer model.Customer
	Balance  int64
}

type service struct {
	cfg    config.Config
	store  store.Store
	ledger balance.Ledger
	zaplog *zap.Logger
	now    func() time.Time
}

func NewService(cfg config.Config, store store.Store, zaplog *zap.Logger) Service {
	def := config.Default()
	if cfg.RedeemRetries <= 0 {
		cfg.RedeemRetries = def.RedeemRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	if cfg.PointsTable == nil {
		cfg.PointsTable = def.PointsTable
	}
	if zaplog == nil {
		zaplog = zap.NewNop()
	}

	return &service{
		cfg:    cfg,
		store:  store,
		ledger: balance.NewLedger(store, cfg.HistoryPageSize),
		zaplog: zaplog,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// retry повторяет единицу работы при конфликте конкурентных транзакций.
func (service *service) retry(ctx context.Context, op string, unit func() error) error {
	var err error
	for attempt := 1; attempt <= service.cfg.RedeemRetries; attempt++ {
		err = unit()
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		service.zaplog.Warn("transaction conflict, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
		)
		if attempt == service.cfg.RedeemRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * service.cfg.RetryBackoff):
		}
	}
	return fmt.Errorf("%w: %s failed after %d attempts", ErrConcurrencyConflict, op, service.cfg.RedeemRetries)
}

func (service *service) RegisterCustomer(ctx context.Context, user model.User, customer model.Customer) (model.User, model.Customer, error) {
	customer.FullName = strings.TrimSpace(customer.FullName)
	customer.DocNumber = strings.TrimSpace(customer.DocNumber)
	if strings.TrimSpace(user.Email) == "" || user.PasswordHash == "" ||
		customer.FullName == "" || customer.DocNumber == "" {
		return model.User{}, model.Customer{}, ErrInvalidInput
	}
	if err := errors.Join(
		checkLength("email", user.Email, 120),
		checkLength("full_name", customer.FullName, 120),
		checkLength("doc_number", customer.DocNumber, 20),
		checkLength("phone", customer.Phone, 40),
	); err != nil {
		return model.User{}, model.Customer{}, err
	}
	user.Role = model.RoleCustomer

	// Учетная запись и клиент создаются вместе
	err := service.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		user, err = tx.AuthRegister(ctx, user)
		if err != nil {
			return err
		}
		customer.UserID = &user.ID
		customer, err = tx.CustomerCreate(ctx, customer)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return model.User{}, model.Customer{}, ErrAlreadyExists
		}
		return model.User{}, model.Customer{}, err
	}
	return user, customer, nil
}

func (service *service) CreateStaff(ctx context.Context, user model.User) (model.User, error) {
	if strings.TrimSpace(user.Email) == "" || user.PasswordHash == "" {
		return model.User{}, ErrInvalidInput
	}
	if user.Role != model.RoleAdmin && user.Role != model.RoleClerk {
		return model.User{}, fmt.Errorf("%w: staff role must be admin or clerk", ErrInvalidInput)
	}

	user, err := service.store.AuthRegister(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return model.User{}, ErrAlreadyExists
		}
		return model.User{}, err
	}
	return user, nil
}

func (service *service) CustomerByUser(ctx context.Context, userID int64) (model.Customer, error) {
	customer, err := service.store.CustomerGetByUser(ctx, userID)
	return customer, notFound(err)
}

func (service *service) Profile(ctx context.Context, customerID int64) (Profile, error) {
	customer, err := service.store.CustomerGet(ctx, customerID)
	if err != nil {
		return Profile{}, notFound(err)
	}
	return service.profile(ctx, customer)
}

func (service *service) ProfileByDocument(ctx context.Context, docNumber string) (Profile, error) {
	if strings.TrimSpace(docNumber) == "" {
		return Profile{}, ErrInvalidInput
	}
	customer, err := service.store.CustomerGetByDoc(ctx, docNumber)
	if err != nil {
		return Profile{}, notFound(err)
	}
	return service.profile(ctx, customer)
}

func (service *service) profile(ctx context.Context, customer model.Customer) (Profile, error) {
	balance, err := service.ledger.Balance(ctx, customer.ID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{Customer: customer, Balance: balance}, nil
}

func (service *service) Summary(ctx context.Context, customerID int64) (model.BalanceSummary, error) {
	return service.ledger.Summary(ctx, customerID)
}

func (service *service) History(ctx context.Context, customerID int64, limit int) ([]model.Transaction, error) {
	return balance.Collect(service.ledger.History(ctx, customerID), limit)
}

func (service *service) RepairMemberNumbers(ctx context.Context) (int, error) {
	repaired, err := service.store.CustomerRepairMemberNumbers(ctx)
	if err != nil {
		return 0, err
	}
	if repaired > 0 {
		service.zaplog.Info("member numbers repaired", zap.Int("count", repaired))
	}
	return repaired, nil
}

func (service *service) ListRewards(ctx context.Context) ([]model.Reward, error) {
	return service.store.RewardList(ctx)
}

func (service *service) ListRules(ctx context.Context) ([]model.EarningRule, error) {
	return service.store.RuleList(ctx)
}

func notFound(err error) error {
	if errors.Is(err, store.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
