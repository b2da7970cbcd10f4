package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iurnickita/abetos/internal/model"
)

// Правила начисления

const ruleColumns = "id, product_code, unit, points_per_unit, is_active, created_at"

// RuleFindActive возвращает действующее правило: активное, с наибольшим id.
func (store *sqlStore) RuleFindActive(ctx context.Context, productCode string) (model.EarningRule, error) {
	row := store.q.QueryRowContext(ctx,
		"SELECT "+ruleColumns+" FROM earning_rules"+
			" WHERE product_code = $1"+
			"   AND is_active = TRUE"+
			" ORDER BY id DESC"+
			" LIMIT 1",
		productCode)
	return scanRule(row)
}

func (store *sqlStore) RuleList(ctx context.Context) ([]model.EarningRule, error) {
	rows, err := store.q.QueryContext(ctx,
		"SELECT "+ruleColumns+" FROM earning_rules"+
			" ORDER BY product_code, id")
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var rules []model.EarningRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err = rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return rules, nil
}

// RuleUpsert обновляет последнее правило с тем же кодом продукта или создает новое.
// Возвращает true, если правило создано.
func (store *sqlStore) RuleUpsert(ctx context.Context, rule model.EarningRule) (bool, error) {
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = store.now()
	}

	var created bool
	err := store.withTx(ctx, func(s *sqlStore) error {
		var id int64
		row := s.q.QueryRowContext(ctx,
			"SELECT id FROM earning_rules"+
				" WHERE product_code = $1"+
				" ORDER BY id DESC"+
				" LIMIT 1"+s.dialect.forUpdate,
			rule.ProductCode)
		err := row.Scan(&id)
		switch {
		case err == nil:
			_, err = s.q.ExecContext(ctx,
				"UPDATE earning_rules"+
					" SET unit = $1, points_per_unit = $2, is_active = $3"+
					" WHERE id = $4",
				rule.Unit,
				rule.PointsPerUnit,
				rule.IsActive,
				id)
			return translateError(err)
		case errors.Is(err, sql.ErrNoRows):
			_, err = s.q.ExecContext(ctx,
				"INSERT INTO earning_rules (product_code, unit, points_per_unit, is_active, created_at)"+
					" VALUES ($1, $2, $3, $4, $5)",
				rule.ProductCode,
				rule.Unit,
				rule.PointsPerUnit,
				rule.IsActive,
				rule.CreatedAt)
			created = err == nil
			return translateError(err)
		default:
			return translateError(err)
		}
	})
	return created, err
}

func scanRule(row rowScanner) (model.EarningRule, error) {
	var rule model.EarningRule
	err := row.Scan(&rule.ID,
		&rule.ProductCode,
		&rule.Unit,
		&rule.PointsPerUnit,
		&rule.IsActive,
		&rule.CreatedAt)
	if err != nil {
		return model.EarningRule{}, translateError(err)
	}
	return rule, nil
}

// Каталог наград

const rewardColumns = "id, title, required_points, valid_from, valid_to, stock, created_at"

func (store *sqlStore) RewardGet(ctx context.Context, id int64) (model.Reward, error) {
	row := store.q.QueryRowContext(ctx,
		"SELECT "+rewardColumns+" FROM rewards WHERE id = $1",
		id)
	return scanReward(row)
}

// RewardGetForUpdate блокирует строку награды до конца транзакции.
func (store *sqlStore) RewardGetForUpdate(ctx context.Context, id int64) (model.Reward, error) {
	row := store.q.QueryRowContext(ctx,
		"SELECT "+rewardColumns+" FROM rewards WHERE id = $1"+store.dialect.forUpdate,
		id)
	return scanReward(row)
}

func (store *sqlStore) RewardList(ctx context.Context) ([]model.Reward, error) {
	rows, err := store.q.QueryContext(ctx,
		"SELECT "+rewardColumns+" FROM rewards"+
			" ORDER BY required_points, id")
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		reward, err := scanReward(rows)
		if err != nil {
			return nil, err
		}
		rewards = append(rewards, reward)
	}
	if err = rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return rewards, nil
}

// RewardUpsert обновляет награду с тем же названием или создает новую.
// Возвращает true, если награда создана.
func (store *sqlStore) RewardUpsert(ctx context.Context, reward model.Reward) (bool, error) {
	if reward.CreatedAt.IsZero() {
		reward.CreatedAt = store.now()
	}

	var created bool
	err := store.withTx(ctx, func(s *sqlStore) error {
		var id int64
		row := s.q.QueryRowContext(ctx,
			"SELECT id FROM rewards WHERE title = $1"+s.dialect.forUpdate,
			reward.Title)
		err := row.Scan(&id)
		switch {
		case err == nil:
			_, err = s.q.ExecContext(ctx,
				"UPDATE rewards"+
					" SET required_points = $1, valid_from = $2, valid_to = $3, stock = $4"+
					" WHERE id = $5",
				reward.RequiredPoints,
				nullTime(reward.ValidFrom),
				nullTime(reward.ValidTo),
				nullInt64(reward.Stock),
				id)
			return translateError(err)
		case errors.Is(err, sql.ErrNoRows):
			_, err = s.q.ExecContext(ctx,
				"INSERT INTO rewards (title, required_points, valid_from, valid_to, stock, created_at)"+
					" VALUES ($1, $2, $3, $4, $5, $6)",
				reward.Title,
				reward.RequiredPoints,
				nullTime(reward.ValidFrom),
				nullTime(reward.ValidTo),
				nullInt64(reward.Stock),
				reward.CreatedAt)
			created = err == nil
			return translateError(err)
		default:
			return translateError(err)
		}
	})
	return created, err
}

// RewardDecrementStock уменьшает остаток на 1. Если остаток уже исчерпан
// или не отслеживается, возвращает ErrConflict.
func (store *sqlStore) RewardDecrementStock(ctx context.Context, id int64) error {
	res, err := store.q.ExecContext(ctx,
		"UPDATE rewards SET stock = stock - 1"+
			" WHERE id = $1"+
			"   AND stock IS NOT NULL"+
			"   AND stock > 0",
		id)
	if err != nil {
		return translateError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrConflict
	}
	return nil
}

func scanReward(row rowScanner) (model.Reward, error) {
	var (
		reward    model.Reward
		validFrom sql.NullTime
		validTo   sql.NullTime
		stock     sql.NullInt64
	)
	err := row.Scan(&reward.ID,
		&reward.Title,
		&reward.RequiredPoints,
		&validFrom,
		&validTo,
		&stock,
		&reward.CreatedAt)
	if err != nil {
		return model.Reward{}, translateError(err)
	}
	reward.ValidFrom = timePtr(validFrom)
	reward.ValidTo = timePtr(validTo)
	reward.Stock = int64Ptr(stock)
	return reward, nil
}
