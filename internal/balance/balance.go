package balance

import (
	"context"
	"iter"

	"github.com/iurnickita/abetos/internal/model"
	"github.com/iurnickita/abetos/internal/store"
)

const DefaultPageSize = 50

type Ledger interface {
	Balance(ctx context.Context, customerID int64) (int64, error)
	Summary(ctx context.Context, customerID int64) (model.BalanceSummary, error)
	// History - записи клиента от новых к старым. Последовательность конечна
	// и при каждом проходе читается заново.
	History(ctx context.Context, customerID int64) iter.Seq2[model.Transaction, error]
}

type ledger struct {
	store    store.Store
	pageSize int
}

func NewLedger(store store.Store, pageSize int) Ledger {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &ledger{store: store, pageSize: pageSize}
}

func (ledger *ledger) Balance(ctx context.Context, customerID int64) (int64, error) {
	return ledger.store.LedgerBalance(ctx, customerID)
}

func (ledger *ledger) Summary(ctx context.Context, customerID int64) (model.BalanceSummary, error) {
	return ledger.store.LedgerSummary(ctx, customerID)
}

func (ledger *ledger) History(ctx context.Context, customerID int64) iter.Seq2[model.Transaction, error] {
	return func(yield func(model.Transaction, error) bool) {
		var cursor *store.HistoryCursor
		for {
			// страница читается целиком до выдачи записей
			page, err := ledger.store.LedgerHistory(ctx, customerID, cursor, ledger.pageSize)
			if err != nil {
				yield(model.Transaction{}, err)
				return
			}
			for _, tx := range page {
				if !yield(tx, nil) {
					return
				}
			}
			if len(page) < ledger.pageSize {
				return
			}
			last := page[len(page)-1]
			cursor = &store.HistoryCursor{CreatedAt: last.CreatedAt, ID: last.ID}
		}
	}
}

// Collect читает не более limit записей истории. limit <= 0 - без ограничения.
func Collect(seq iter.Seq2[model.Transaction, error], limit int) ([]model.Transaction, error) {
	var history []model.Transaction
	for tx, err := range seq {
		if err != nil {
			return nil, err
		}
		history = append(history, tx)
		if limit > 0 && len(history) >= limit {
			break
		}
	}
	return history, nil
}
