package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidLiters       = errors.New("invalid liters")
	ErrInvalidProductCode  = errors.New("invalid product code")
	ErrNoActiveRule        = errors.New("no active rule for product")
	ErrZeroPoints          = errors.New("purchase earns zero points")
	ErrNotYetAvailable     = errors.New("reward not yet available")
	ErrExpired             = errors.New("reward expired")
	ErrOutOfStock          = errors.New("reward out of stock")
	ErrInsufficientPoints  = errors.New("insufficient points")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrAlreadyExists       = errors.New("already exists")
)

// InsufficientPointsError - отказ в списании с текущим балансом и ценой награды.
type InsufficientPointsError struct {
	Balance  int64
	Required int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: balance %d, required %d", e.Balance, e.Required)
}

func (e *InsufficientPointsError) Unwrap() error {
	return ErrInsufficientPoints
}

var reasons = []struct {
	err    error
	reason string
}{
	{ErrNotFound, "not_found"},
	{ErrInvalidInput, "invalid_input"},
	{ErrInvalidLiters, "invalid_liters"},
	{ErrInvalidProductCode, "invalid_product_code"},
	{ErrNoActiveRule, "no_active_rule"},
	{ErrZeroPoints, "zero_points"},
	{ErrNotYetAvailable, "not_yet_available"},
	{ErrExpired, "expired"},
	{ErrOutOfStock, "out_of_stock"},
	{ErrInsufficientPoints, "insufficient_points"},
	{ErrConcurrencyConflict, "concurrency_conflict"},
	{ErrAlreadyExists, "already_exists"},
}

// Reason возвращает машинный код причины отказа для клиента API.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "internal"
}
