package rules

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/iurnickita/abetos/internal/model"
	"github.com/iurnickita/abetos/internal/store"
)

// Правила по умолчанию для первичного заполнения.
var DefaultRules = []model.EarningRule{
	{ProductCode: "INFINIA", Unit: model.UnitLiters, PointsPerUnit: decimal.NewFromInt(8), IsActive: true},
	{ProductCode: "SUPER", Unit: model.UnitLiters, PointsPerUnit: decimal.NewFromInt(4), IsActive: true},
	{ProductCode: "GNC", Unit: model.UnitCurrency, PointsPerUnit: decimal.RequireFromString("0.5"), IsActive: true},
}

type Resolver interface {
	// Find возвращает действующее правило для кода продукта.
	// Отсутствие правила - не ошибка: ok == false.
	Find(ctx context.Context, productCode string) (rule model.EarningRule, ok bool, err error)
}

type resolver struct {
	store store.Store
}

func NewResolver(store store.Store) Resolver {
	return &resolver{store: store}
}

func (resolver *resolver) Find(ctx context.Context, productCode string) (model.EarningRule, bool, error) {
	code := NormalizeCode(productCode)
	if code == "" {
		return model.EarningRule{}, false, nil
	}

	rule, err := resolver.store.RuleFindActive(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return model.EarningRule{}, false, nil
		}
		return model.EarningRule{}, false, err
	}
	return rule, true, nil
}
