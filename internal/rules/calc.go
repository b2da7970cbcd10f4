package rules

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iurnickita/abetos/internal/model"
)

var (
	ErrInvalidLiters      = errors.New("invalid liters")
	ErrInvalidProductCode = errors.New("invalid product code")
	ErrPointsLimit        = errors.New("points exceed per-operation limit")
)

// MaxPoints - наибольшее число баллов одной операции.
const MaxPoints int64 = 1_000_000_000

var maxPoints = decimal.NewFromInt(MaxPoints)

// PointsTable - баллы за литр по коду продукта для ручного начисления оператором.
type PointsTable map[string]decimal.Decimal

var DefaultPointsTable = PointsTable{
	"INFINIA": decimal.NewFromInt(10),
	"SUPER":   decimal.NewFromInt(8),
}

// NormalizeCode приводит код продукта к виду, в котором он хранится в правилах.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// FloorByRule считает баллы по правилу с округлением вниз.
// Без правила или без нужной величины результат 0.
func FloorByRule(rule *model.EarningRule, liters, amount decimal.NullDecimal) (int64, error) {
	if rule == nil {
		return 0, nil
	}

	var base decimal.NullDecimal
	switch strings.ToUpper(rule.Unit) {
	case model.UnitLiters:
		base = liters
	case model.UnitCurrency:
		base = amount
	default:
		return 0, nil
	}
	if !base.Valid || !base.Decimal.IsPositive() {
		return 0, nil
	}
	return toPoints(base.Decimal.Mul(rule.PointsPerUnit).Floor())
}

// RoundByTable считает баллы по таблице с математическим округлением (0.5 вверх).
func RoundByTable(table PointsTable, code string, liters decimal.Decimal) (int64, error) {
	if !liters.IsPositive() {
		return 0, ErrInvalidLiters
	}
	factor, ok := table[NormalizeCode(code)]
	if !ok {
		return 0, ErrInvalidProductCode
	}
	return toPoints(liters.Mul(factor).Round(0))
}

// toPoints переводит целое десятичное значение в баллы.
// IntPart за пределами int64 теряет старшие разряды, поэтому граница проверяется заранее.
func toPoints(d decimal.Decimal) (int64, error) {
	if d.GreaterThan(maxPoints) {
		return 0, ErrPointsLimit
	}
	return d.IntPart(), nil
}

// DeriveLiters вычисляет литры из суммы и цены за литр, если литры не указаны.
func DeriveLiters(liters, amount, unitPrice decimal.NullDecimal) decimal.NullDecimal {
	if liters.Valid && liters.Decimal.IsPositive() {
		return liters
	}
	if amount.Valid && unitPrice.Valid && amount.Decimal.IsPositive() && unitPrice.Decimal.IsPositive() {
		return decimal.NewNullDecimal(amount.Decimal.DivRound(unitPrice.Decimal, 4))
	}
	return liters
}
