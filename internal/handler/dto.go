package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iurnickita/abetos/internal/handler/render"
	"github.com/iurnickita/abetos/internal/model"
	"github.com/iurnickita/abetos/internal/service"
)

type TransactionJSON struct {
	ID            int64               `json:"id"`
	Kind          string              `json:"kind"`
	Points        int64               `json:"points"`
	Amount        decimal.NullDecimal `json:"amount"`
	Liters        decimal.NullDecimal `json:"liters"`
	UnitPrice     decimal.NullDecimal `json:"unit_price"`
	ProductCode   string              `json:"product_code,omitempty"`
	PaymentMethod string              `json:"payment_method,omitempty"`
	TicketNumber  string              `json:"ticket_number,omitempty"`
	PaidWithApp   bool                `json:"paid_with_app"`
	Note          string              `json:"note,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

func transactionJSON(tx model.Transaction) TransactionJSON {
	return TransactionJSON{
		ID:            tx.ID,
		Kind:          tx.Kind,
		Points:        tx.Points,
		Amount:        tx.Amount,
		Liters:        tx.Liters,
		UnitPrice:     tx.UnitPrice,
		ProductCode:   tx.ProductCode,
		PaymentMethod: tx.PaymentMethod,
		TicketNumber:  tx.TicketNumber,
		PaidWithApp:   tx.PaidWithApp,
		Note:          tx.Note,
		CreatedAt:     tx.CreatedAt,
	}
}

type ReceiptJSONResponse struct {
	OK          bool            `json:"ok"`
	NewBalance  int64           `json:"new_balance"`
	Transaction TransactionJSON `json:"transaction"`
}

type ErrorJSONResponse = render.ErrorJSONResponse

type CustomerJSON struct {
	ID           int64     `json:"id"`
	FullName     string    `json:"full_name"`
	DocNumber    string    `json:"doc_number"`
	Phone        string    `json:"phone,omitempty"`
	MemberNumber string    `json:"member_number"`
	CreatedAt    time.Time `json:"created_at"`
}

type ProfileJSONResponse struct {
	OK       bool         `json:"ok"`
	Customer CustomerJSON `json:"customer"`
	Balance  int64        `json:"balance"`
}

func profileJSON(profile service.Profile) ProfileJSONResponse {
	c := profile.Customer
	return ProfileJSONResponse{
		OK: true,
		Customer: CustomerJSON{
			ID:           c.ID,
			FullName:     c.FullName,
			DocNumber:    c.DocNumber,
			Phone:        c.Phone,
			MemberNumber: c.MemberNumber,
			CreatedAt:    c.CreatedAt,
		},
		Balance: profile.Balance,
	}
}

type BalanceJSONResponse struct {
	Current  int64 `json:"current"`
	Earned   int64 `json:"earned"`
	Redeemed int64 `json:"redeemed"`
}

type RewardJSON struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	RequiredPoints int64      `json:"required_points"`
	ValidFrom      *time.Time `json:"valid_from"`
	ValidTo        *time.Time `json:"valid_to"`
	Stock          *int64     `json:"stock"`
}

type RuleJSON struct {
	ID            int64           `json:"id"`
	ProductCode   string          `json:"product_code"`
	Unit          string          `json:"unit"`
	PointsPerUnit decimal.Decimal `json:"points_per_unit"`
	IsActive      bool            `json:"is_active"`
}

type PurchaseJSONRequest struct {
	CustomerID    int64               `json:"customer_id"`
	UserID        int64               `json:"user_id"`
	ProductCode   string              `json:"product_code"`
	Liters        decimal.NullDecimal `json:"liters"`
	Amount        decimal.NullDecimal `json:"amount"`
	Points        *int64              `json:"points"`
	PaymentMethod string              `json:"payment_method"`
	TicketNumber  string              `json:"ticket_number"`
	PaidWithApp   bool                `json:"paid_with_app"`
	Note          string              `json:"note"`
}

type AccreditJSONRequest struct {
	DocNumber     string              `json:"doc_number"`
	ProductCode   string              `json:"product_code"`
	Liters        decimal.NullDecimal `json:"liters"`
	Amount        decimal.NullDecimal `json:"amount"`
	UnitPrice     decimal.NullDecimal `json:"unit_price"`
	PaymentMethod string              `json:"payment_method"`
	TicketNumber  string              `json:"ticket_number"`
	PaidWithApp   bool                `json:"paid_with_app"`
	Note          string              `json:"note"`
}

// statusFor переводит ошибку сервиса в HTTP-статус.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidLiters),
		errors.Is(err, service.ErrInvalidProductCode),
		errors.Is(err, service.ErrZeroPoints):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNoActiveRule),
		errors.Is(err, service.ErrNotYetAvailable),
		errors.Is(err, service.ErrExpired),
		errors.Is(err, service.ErrOutOfStock),
		errors.Is(err, service.ErrInsufficientPoints),
		errors.Is(err, service.ErrConcurrencyConflict),
		errors.Is(err, service.ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

