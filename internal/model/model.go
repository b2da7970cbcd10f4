package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Учетные записи

const (
	RoleAdmin    = "admin"
	RoleClerk    = "clerk"
	RoleCustomer = "customer"
)

type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// Клиенты

type Customer struct {
	ID           int64
	UserID       *int64
	FullName     string
	DocNumber    string
	Phone        string
	MemberNumber string
	CreatedAt    time.Time
}

// MemberNumber формирует номер участника программы по ID клиента.
func MemberNumber(customerID int64) string {
	return fmt.Sprintf("31.%06d", 600000+customerID)
}

// Журнал операций с баллами

const (
	KindEarn   = "earn"
	KindRedeem = "redeem"
)

type Transaction struct {
	ID            int64
	CustomerID    int64
	Kind          string
	Points        int64
	Amount        decimal.NullDecimal
	Liters        decimal.NullDecimal
	UnitPrice     decimal.NullDecimal
	ProductCode   string
	PaymentMethod string
	TicketNumber  string
	PaidWithApp   bool
	Note          string
	OperatorID    *int64
	CreatedAt     time.Time
}

// RewardProductCode - синтетический код продукта для списаний.
func RewardProductCode(rewardID int64) string {
	return fmt.Sprintf("REWARD:%d", rewardID)
}

// Правила начисления

const (
	UnitLiters   = "LITERS"
	UnitCurrency = "CURRENCY"
)

type EarningRule struct {
	ID            int64
	ProductCode   string
	Unit          string
	PointsPerUnit decimal.Decimal
	IsActive      bool
	CreatedAt     time.Time
}

// Каталог наград

type Reward struct {
	ID             int64
	Title          string
	RequiredPoints int64
	ValidFrom      *time.Time
	ValidTo        *time.Time
	Stock          *int64
	CreatedAt      time.Time
}

// Результат операции начисления/списания

type Receipt struct {
	Balance     int64
	Transaction Transaction
}

type BalanceSummary struct {
	Current  int64
	Earned   int64
	Redeemed int64
}
