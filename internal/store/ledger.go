package store

import (
	"context"
	"database/sql"

	"github.com/iurnickita/abetos/internal/model"
)

const transactionColumns = "id, customer_id, kind, points, amount, liters, unit_price, product_code," +
	" payment_method, ticket_number, paid_with_app, note, operator_id, created_at"

// LedgerAppend добавляет запись в журнал. Записи журнала не изменяются и не удаляются.
func (store *sqlStore) LedgerAppend(ctx context.Context, tx model.Transaction) (model.Transaction, error) {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = store.now()
	}

	row := store.q.QueryRowContext(ctx,
		"INSERT INTO transactions (customer_id, kind, points, amount, liters, unit_price, product_code,"+
			" payment_method, ticket_number, paid_with_app, note, operator_id, created_at)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)"+
			" RETURNING id",
		tx.CustomerID,
		tx.Kind,
		tx.Points,
		tx.Amount,
		tx.Liters,
		tx.UnitPrice,
		nullString(tx.ProductCode),
		nullString(tx.PaymentMethod),
		nullString(tx.TicketNumber),
		tx.PaidWithApp,
		nullString(tx.Note),
		nullInt64(tx.OperatorID),
		tx.CreatedAt)
	if err := row.Scan(&tx.ID); err != nil {
		return model.Transaction{}, translateError(err)
	}
	return tx, nil
}

// LedgerBalance - сумма баллов по всем записям клиента.
func (store *sqlStore) LedgerBalance(ctx context.Context, customerID int64) (int64, error) {
	var balance int64
	row := store.q.QueryRowContext(ctx,
		"SELECT CAST(COALESCE(SUM(points), 0) AS BIGINT)"+
			" FROM transactions"+
			" WHERE customer_id = $1",
		customerID)
	if err := row.Scan(&balance); err != nil {
		return 0, translateError(err)
	}
	return balance, nil
}

func (store *sqlStore) LedgerSummary(ctx context.Context, customerID int64) (model.BalanceSummary, error) {
	var summary model.BalanceSummary
	row := store.q.QueryRowContext(ctx,
		"SELECT CAST(COALESCE(SUM(points), 0) AS BIGINT),"+
			" CAST(COALESCE(SUM(CASE WHEN points > 0 THEN points ELSE 0 END), 0) AS BIGINT),"+
			" CAST(COALESCE(SUM(CASE WHEN points < 0 THEN -points ELSE 0 END), 0) AS BIGINT)"+
			" FROM transactions"+
			" WHERE customer_id = $1",
		customerID)
	if err := row.Scan(&summary.Current, &summary.Earned, &summary.Redeemed); err != nil {
		return model.BalanceSummary{}, translateError(err)
	}
	return summary, nil
}

// LedgerHistory возвращает страницу журнала клиента от новых записей к старым.
// after - последняя запись предыдущей страницы, nil для первой страницы.
func (store *sqlStore) LedgerHistory(ctx context.Context, customerID int64, after *HistoryCursor, limit int) ([]model.Transaction, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if after == nil {
		rows, err = store.q.QueryContext(ctx,
			"SELECT "+transactionColumns+
				" FROM transactions"+
				" WHERE customer_id = $1"+
				" ORDER BY created_at DESC, id DESC"+
				" LIMIT $2",
			customerID,
			limit)
	} else {
		rows, err = store.q.QueryContext(ctx,
			"SELECT "+transactionColumns+
				" FROM transactions"+
				" WHERE customer_id = $1"+
				"   AND (created_at < $2 OR (created_at = $3 AND id < $4))"+
				" ORDER BY created_at DESC, id DESC"+
				" LIMIT $5",
			customerID,
			after.CreatedAt.UTC(),
			after.CreatedAt.UTC(),
			after.ID,
			limit)
	}
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var history []model.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, tx)
	}
	if err = rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return history, nil
}

func scanTransaction(row rowScanner) (model.Transaction, error) {
	var (
		tx            model.Transaction
		productCode   sql.NullString
		paymentMethod sql.NullString
		ticketNumber  sql.NullString
		note          sql.NullString
		operatorID    sql.NullInt64
	)
	err := row.Scan(&tx.ID,
		&tx.CustomerID,
		&tx.Kind,
		&tx.Points,
		&tx.Amount,
		&tx.Liters,
		&tx.UnitPrice,
		&productCode,
		&paymentMethod,
		&ticketNumber,
		&tx.PaidWithApp,
		&note,
		&operatorID,
		&tx.CreatedAt)
	if err != nil {
		return model.Transaction{}, translateError(err)
	}
	tx.ProductCode = productCode.String
	tx.PaymentMethod = paymentMethod.String
	tx.TicketNumber = ticketNumber.String
	tx.Note = note.String
	tx.OperatorID = int64Ptr(operatorID)
	tx.CreatedAt = tx.CreatedAt.UTC()
	return tx, nil
}
