package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iurnickita/abetos/internal/model"
	"github.com/iurnickita/abetos/internal/rules"
	"github.com/iurnickita/abetos/internal/store"
)

// AccrualRequest - покупка, баллы за которую считаются по действующему правилу.
// Клиент задается CustomerID или UserID.
type AccrualRequest struct {
	CustomerID  int64
	UserID      int64
	ProductCode string
	Liters      decimal.NullDecimal
	Amount      decimal.NullDecimal
	// Points - баллы вручную, без правила. nil - по правилу
	Points        *int64
	PaymentMethod string
	TicketNumber  string
	PaidWithApp   bool
	Note          string
	OperatorID    *int64
}

// ManualAccrualRequest - начисление оператором по номеру документа клиента
// по таблице баллов за литр.
type ManualAccrualRequest struct {
	DocNumber     string
	ProductCode   string
	Liters        decimal.NullDecimal
	Amount        decimal.NullDecimal
	UnitPrice     decimal.NullDecimal
	PaymentMethod string
	TicketNumber  string
	PaidWithApp   bool
	Note          string
	OperatorID    *int64
}

func (service *service) Accrue(ctx context.Context, req AccrualRequest) (model.Receipt, error) {
	var receipt model.Receipt
	err := service.retry(ctx, "accrue", func() error {
		return service.store.WithTx(ctx, func(tx store.Store) error {
			var err error
			receipt, err = service.accrue(ctx, tx, req)
			return err
		})
	})
	if err != nil {
		return model.Receipt{}, err
	}

	service.zaplog.Info("points accrued",
		zap.Int64("customer", receipt.Transaction.CustomerID),
		zap.String("product", receipt.Transaction.ProductCode),
		zap.Int64("points", receipt.Transaction.Points),
	)
	return receipt, nil
}

func (service *service) accrue(ctx context.Context, tx store.Store, req AccrualRequest) (model.Receipt, error) {
	customer, err := findCustomer(ctx, tx, req.CustomerID, req.UserID)
	if err != nil {
		return model.Receipt{}, err
	}

	code := rules.NormalizeCode(req.ProductCode)
	if code == "" {
		return model.Receipt{}, fmt.Errorf("%w: product code is required", ErrInvalidInput)
	}

	var points int64
	if req.Points != nil {
		// ручное значение заменяет расчет по правилу
		if *req.Points <= 0 || *req.Points > rules.MaxPoints {
			return model.Receipt{}, fmt.Errorf("%w: points must be between 1 and %d", ErrInvalidInput, rules.MaxPoints)
		}
		points = *req.Points
	} else {
		rule, ok, err := rules.NewResolver(tx).Find(ctx, code)
		if err != nil {
			return model.Receipt{}, err
		}
		if !ok {
			return model.Receipt{}, fmt.Errorf("%w: %s", ErrNoActiveRule, code)
		}
		switch rule.Unit {
		case model.UnitLiters:
			if !positive(req.Liters) {
				return model.Receipt{}, fmt.Errorf("%w: liters must be positive for %s", ErrInvalidInput, code)
			}
		case model.UnitCurrency:
			if !positive(req.Amount) {
				return model.Receipt{}, fmt.Errorf("%w: amount must be positive for %s", ErrInvalidInput, code)
			}
		}
		points, err = rules.FloorByRule(&rule, req.Liters, req.Amount)
		if err != nil {
			return model.Receipt{}, pointsError(err)
		}
		if points <= 0 {
			return model.Receipt{}, ErrZeroPoints
		}
	}

	return appendEarn(ctx, tx, model.Transaction{
		CustomerID:    customer.ID,
		Kind:          model.KindEarn,
		Points:        points,
		Amount:        req.Amount,
		Liters:        req.Liters,
		ProductCode:   code,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		TicketNumber:  strings.TrimSpace(req.TicketNumber),
		PaidWithApp:   req.PaidWithApp,
		Note:          strings.TrimSpace(req.Note),
		OperatorID:    req.OperatorID,
	})
}

func (service *service) AccrueByDocument(ctx context.Context, req ManualAccrualRequest) (model.Receipt, error) {
	var receipt model.Receipt
	err := service.retry(ctx, "accrue-by-document", func() error {
		return service.store.WithTx(ctx, func(tx store.Store) error {
			var err error
			receipt, err = service.accrueByDocument(ctx, tx, req)
			return err
		})
	})
	if err != nil {
		return model.Receipt{}, err
	}

	service.zaplog.Info("points accrued by document",
		zap.Int64("customer", receipt.Transaction.CustomerID),
		zap.String("product", receipt.Transaction.ProductCode),
		zap.Int64("points", receipt.Transaction.Points),
	)
	return receipt, nil
}

func (service *service) accrueByDocument(ctx context.Context, tx store.Store, req ManualAccrualRequest) (model.Receipt, error) {
	if strings.TrimSpace(req.DocNumber) == "" {
		return model.Receipt{}, fmt.Errorf("%w: document number is required", ErrInvalidInput)
	}
	customer, err := tx.CustomerGetByDoc(ctx, req.DocNumber)
	if err != nil {
		return model.Receipt{}, notFound(err)
	}

	code := rules.NormalizeCode(req.ProductCode)
	if code == "" {
		return model.Receipt{}, fmt.Errorf("%w: product code is required", ErrInvalidInput)
	}

	liters := rules.DeriveLiters(req.Liters, req.Amount, req.UnitPrice)
	if !positive(liters) {
		return model.Receipt{}, ErrInvalidLiters
	}

	points, err := rules.RoundByTable(service.cfg.PointsTable, code, liters.Decimal)
	switch {
	case errors.Is(err, rules.ErrInvalidLiters):
		return model.Receipt{}, ErrInvalidLiters
	case errors.Is(err, rules.ErrInvalidProductCode):
		return model.Receipt{}, fmt.Errorf("%w: %s", ErrInvalidProductCode, code)
	case err != nil:
		return model.Receipt{}, pointsError(err)
	}
	if points <= 0 {
		return model.Receipt{}, ErrZeroPoints
	}

	return appendEarn(ctx, tx, model.Transaction{
		CustomerID:    customer.ID,
		Kind:          model.KindEarn,
		Points:        points,
		Amount:        req.Amount,
		Liters:        liters,
		UnitPrice:     req.UnitPrice,
		ProductCode:   code,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		TicketNumber:  strings.TrimSpace(req.TicketNumber),
		PaidWithApp:   req.PaidWithApp,
		Note:          strings.TrimSpace(req.Note),
		OperatorID:    req.OperatorID,
	})
}

func appendEarn(ctx context.Context, tx store.Store, entry model.Transaction) (model.Receipt, error) {
	if err := validateEntry(entry); err != nil {
		return model.Receipt{}, err
	}
	balance, err := tx.LedgerBalance(ctx, entry.CustomerID)
	if err != nil {
		return model.Receipt{}, err
	}
	// сумма журнала клиента должна оставаться в int64
	if balance > math.MaxInt64-entry.Points {
		return model.Receipt{}, fmt.Errorf("%w: balance limit reached", ErrInvalidInput)
	}

	entry, err = tx.LedgerAppend(ctx, entry)
	if err != nil {
		return model.Receipt{}, err
	}
	return model.Receipt{Balance: balance + entry.Points, Transaction: entry}, nil
}

// Длины текстовых полей журнала, как в схеме БД
var entryLimits = []struct {
	field string
	value func(model.Transaction) string
	max   int
}{
	{"product_code", func(t model.Transaction) string { return t.ProductCode }, 50},
	{"payment_method", func(t model.Transaction) string { return t.PaymentMethod }, 30},
	{"ticket_number", func(t model.Transaction) string { return t.TicketNumber }, 50},
	{"note", func(t model.Transaction) string { return t.Note }, 200},
}

// maxQuantity - граница NUMERIC (14, 4) для литров, суммы и цены
var maxQuantity = decimal.New(1, 10)

func validateEntry(entry model.Transaction) error {
	for _, limit := range entryLimits {
		if err := checkLength(limit.field, limit.value(entry), limit.max); err != nil {
			return err
		}
	}
	for field, value := range map[string]decimal.NullDecimal{
		"liters":     entry.Liters,
		"amount":     entry.Amount,
		"unit_price": entry.UnitPrice,
	} {
		if value.Valid && value.Decimal.Abs().Cmp(maxQuantity) >= 0 {
			return fmt.Errorf("%w: %s is too large", ErrInvalidInput, field)
		}
	}
	return nil
}

func checkLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return fmt.Errorf("%w: %s must be at most %d characters", ErrInvalidInput, field, max)
	}
	return nil
}

func pointsError(err error) error {
	if errors.Is(err, rules.ErrPointsLimit) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}

func findCustomer(ctx context.Context, tx store.Store, customerID, userID int64) (model.Customer, error) {
	var (
		customer model.Customer
		err      error
	)
	switch {
	case customerID > 0:
		customer, err = tx.CustomerGet(ctx, customerID)
	case userID > 0:
		customer, err = tx.CustomerGetByUser(ctx, userID)
	default:
		return model.Customer{}, fmt.Errorf("%w: customer_id or user_id is required", ErrInvalidInput)
	}
	if err != nil {
		return model.Customer{}, notFound(err)
	}
	return customer, nil
}

func positive(d decimal.NullDecimal) bool {
	return d.Valid && d.Decimal.IsPositive()
}
