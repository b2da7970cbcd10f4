package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iurnickita/abetos/internal/model"
	"github.com/iurnickita/abetos/internal/store"
)

// RedeemRequest - обмен баллов на награду. Клиент задается CustomerID или UserID.
type RedeemRequest struct {
	CustomerID int64
	UserID     int64
	RewardID   int64
}

func (service *service) Redeem(ctx context.Context, req RedeemRequest) (model.Receipt, error) {
	if req.RewardID <= 0 {
		return model.Receipt{}, fmt.Errorf("%w: reward id is required", ErrInvalidInput)
	}

	var receipt model.Receipt
	err := service.retry(ctx, "redeem", func() error {
		return service.store.WithTx(ctx, func(tx store.Store) error {
			var err error
			receipt, err = service.redeem(ctx, tx, req)
			return err
		})
	})
	if err != nil {
		var insufficient *InsufficientPointsError
		if errors.As(err, &insufficient) {
			service.zaplog.Info("redeem rejected",
				zap.Int64("reward", req.RewardID),
				zap.Int64("balance", insufficient.Balance),
				zap.Int64("required", insufficient.Required),
			)
		}
		return model.Receipt{}, err
	}

	service.zaplog.Info("reward redeemed",
		zap.Int64("customer", receipt.Transaction.CustomerID),
		zap.Int64("reward", req.RewardID),
		zap.Int64("points", receipt.Transaction.Points),
	)
	return receipt, nil
}

func (service *service) redeem(ctx context.Context, tx store.Store, req RedeemRequest) (model.Receipt, error) {
	// Порядок блокировок: клиент, затем награда
	var (
		customer model.Customer
		err      error
	)
	switch {
	case req.CustomerID > 0:
		customer, err = tx.CustomerGetForUpdate(ctx, req.CustomerID)
	case req.UserID > 0:
		customer, err = tx.CustomerGetByUser(ctx, req.UserID)
		if err == nil {
			customer, err = tx.CustomerGetForUpdate(ctx, customer.ID)
		}
	default:
		return model.Receipt{}, fmt.Errorf("%w: customer_id or user_id is required", ErrInvalidInput)
	}
	if err != nil {
		return model.Receipt{}, notFound(err)
	}

	reward, err := tx.RewardGetForUpdate(ctx, req.RewardID)
	if err != nil {
		return model.Receipt{}, notFound(err)
	}

	now := service.now()
	if reward.ValidFrom != nil && now.Before(*reward.ValidFrom) {
		return model.Receipt{}, ErrNotYetAvailable
	}
	if reward.ValidTo != nil && now.After(*reward.ValidTo) {
		return model.Receipt{}, ErrExpired
	}
	if reward.Stock != nil && *reward.Stock <= 0 {
		return model.Receipt{}, ErrOutOfStock
	}

	// баланс читается под блокировкой клиента
	balance, err := tx.LedgerBalance(ctx, customer.ID)
	if err != nil {
		return model.Receipt{}, err
	}
	if balance < reward.RequiredPoints {
		return model.Receipt{}, &InsufficientPointsError{Balance: balance, Required: reward.RequiredPoints}
	}

	entry, err := tx.LedgerAppend(ctx, model.Transaction{
		CustomerID:  customer.ID,
		Kind:        model.KindRedeem,
		Points:      -reward.RequiredPoints,
		ProductCode: model.RewardProductCode(reward.ID),
		Note:        fmt.Sprintf("Redeemed '%s'", reward.Title),
	})
	if err != nil {
		return model.Receipt{}, err
	}

	if reward.Stock != nil {
		if err = tx.RewardDecrementStock(ctx, reward.ID); err != nil {
			return model.Receipt{}, err
		}
	}

	return model.Receipt{Balance: balance - reward.RequiredPoints, Transaction: entry}, nil
}
