package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/iurnickita/abetos/internal/model"
	"github.com/iurnickita/abetos/internal/rules"
	"github.com/iurnickita/abetos/internal/store"
)

// RuleSeed - правило начисления в файле или запросе заполнения.
type RuleSeed struct {
	ProductCode   string          `json:"product_code" yaml:"product_code"`
	Unit          string          `json:"unit" yaml:"unit"`
	PointsPerUnit decimal.Decimal `json:"points_per_unit" yaml:"points_per_unit"`
	// nil - активно
	IsActive *bool `json:"is_active,omitempty" yaml:"is_active,omitempty"`
}

// RewardSeed - награда в файле или запросе заполнения.
type RewardSeed struct {
	Title          string     `json:"title" yaml:"title"`
	RequiredPoints int64      `json:"required_points" yaml:"required_points"`
	ValidFrom      *time.Time `json:"valid_from,omitempty" yaml:"valid_from,omitempty"`
	ValidTo        *time.Time `json:"valid_to,omitempty" yaml:"valid_to,omitempty"`
	Stock          *int64     `json:"stock,omitempty" yaml:"stock,omitempty"`
}

// SeedReport - итог заполнения. Ошибочные позиции пропускаются.
type SeedReport struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}

// RuleSeeds переводит правила в формат заполнения.
func RuleSeeds(list []model.EarningRule) []RuleSeed {
	seeds := make([]RuleSeed, 0, len(list))
	for _, rule := range list {
		active := rule.IsActive
		seeds = append(seeds, RuleSeed{
			ProductCode:   rule.ProductCode,
			Unit:          rule.Unit,
			PointsPerUnit: rule.PointsPerUnit,
			IsActive:      &active,
		})
	}
	return seeds
}

// DefaultRewards - демонстрационный каталог, сроки отсчитываются от now.
func DefaultRewards(now time.Time) []RewardSeed {
	day := 24 * time.Hour
	window := func(days int) (*time.Time, *time.Time) {
		from := now.UTC().Truncate(time.Second)
		to := from.Add(time.Duration(days) * day)
		return &from, &to
	}
	stock := func(n int64) *int64 { return &n }

	var seeds []RewardSeed
	for _, r := range []struct {
		title    string
		required int64
		days     int
		stock    *int64
	}{
		{"Lavado premium", 200, 60, stock(50)},
		{"Café + medialuna", 60, 90, stock(200)},
		{"Descuento $2000 tienda", 250, 45, stock(100)},
		{"Cambio de aceite 10% OFF", 150, 120, nil},
	} {
		from, to := window(r.days)
		seeds = append(seeds, RewardSeed{
			Title:          r.title,
			RequiredPoints: r.required,
			ValidFrom:      from,
			ValidTo:        to,
			Stock:          r.stock,
		})
	}
	return seeds
}

func (service *service) SeedRules(ctx context.Context, seeds []RuleSeed) (SeedReport, error) {
	var report SeedReport
	err := service.store.WithTx(ctx, func(tx store.Store) error {
		report = SeedReport{}
		for i, seed := range seeds {
			rule, err := ruleFromSeed(seed)
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("rule %d: %v", i+1, err))
				continue
			}
			created, err := tx.RuleUpsert(ctx, rule)
			if err != nil {
				return err
			}
			report.count(created)
		}
		return nil
	})
	if err != nil {
		return SeedReport{}, err
	}

	service.zaplog.Info("rules seeded",
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

func ruleFromSeed(seed RuleSeed) (model.EarningRule, error) {
	code := rules.NormalizeCode(seed.ProductCode)
	if code == "" {
		return model.EarningRule{}, fmt.Errorf("%w: product code is required", ErrInvalidInput)
	}
	unit := strings.ToUpper(strings.TrimSpace(seed.Unit))
	if unit != model.UnitLiters && unit != model.UnitCurrency {
		return model.EarningRule{}, fmt.Errorf("%w: unknown unit %q", ErrInvalidInput, seed.Unit)
	}
	if seed.PointsPerUnit.IsNegative() {
		return model.EarningRule{}, fmt.Errorf("%w: points per unit must not be negative", ErrInvalidInput)
	}
	active := true
	if seed.IsActive != nil {
		active = *seed.IsActive
	}
	return model.EarningRule{
		ProductCode:   code,
		Unit:          unit,
		PointsPerUnit: seed.PointsPerUnit,
		IsActive:      active,
	}, nil
}

func (service *service) SeedRewards(ctx context.Context, seeds []RewardSeed) (SeedReport, error) {
	var report SeedReport
	err := service.store.WithTx(ctx, func(tx store.Store) error {
		report = SeedReport{}
		for i, seed := range seeds {
			reward, err := rewardFromSeed(seed)
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("reward %d: %v", i+1, err))
				continue
			}
			created, err := tx.RewardUpsert(ctx, reward)
			if err != nil {
				return err
			}
			report.count(created)
		}
		return nil
	})
	if err != nil {
		return SeedReport{}, err
	}

	service.zaplog.Info("rewards seeded",
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

func rewardFromSeed(seed RewardSeed) (model.Reward, error) {
	// одно и то же название в разных формах Unicode - одна награда
	title := norm.NFC.String(strings.TrimSpace(seed.Title))
	if title == "" {
		return model.Reward{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if seed.RequiredPoints <= 0 {
		return model.Reward{}, fmt.Errorf("%w: required points must be positive", ErrInvalidInput)
	}
	if seed.Stock != nil && *seed.Stock < 0 {
		return model.Reward{}, fmt.Errorf("%w: stock must not be negative", ErrInvalidInput)
	}
	if seed.ValidFrom != nil && seed.ValidTo != nil && seed.ValidTo.Before(*seed.ValidFrom) {
		return model.Reward{}, fmt.Errorf("%w: valid_to is before valid_from", ErrInvalidInput)
	}
	return model.Reward{
		Title:          title,
		RequiredPoints: seed.RequiredPoints,
		ValidFrom:      seed.ValidFrom,
		ValidTo:        seed.ValidTo,
		Stock:          seed.Stock,
	}, nil
}

func (report *SeedReport) count(created bool) {
	if created {
		report.Created++
	} else {
		report.Updated++
	}
}
