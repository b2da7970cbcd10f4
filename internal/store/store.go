package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"

	"github.com/iurnickita/abetos/internal/model"
	"github.com/iurnickita/abetos/internal/store/config"
)

type Store interface {
	AuthRegister(ctx context.Context, user model.User) (model.User, error)
	AuthGetByEmail(ctx context.Context, email string) (model.User, error)
	AuthGetByID(ctx context.Context, id int64) (model.User, error)

	CustomerCreate(ctx context.Context, customer model.Customer) (model.Customer, error)
	CustomerGet(ctx context.Context, id int64) (model.Customer, error)
	CustomerGetForUpdate(ctx context.Context, id int64) (model.Customer, error)
	CustomerGetByDoc(ctx context.Context, docNumber string) (model.Customer, error)
	CustomerGetByUser(ctx context.Context, userID int64) (model.Customer, error)
	CustomerRepairMemberNumbers(ctx context.Context) (int, error)

	LedgerAppend(ctx context.Context, tx model.Transaction) (model.Transaction, error)
	LedgerBalance(ctx context.Context, customerID int64) (int64, error)
	LedgerSummary(ctx context.Context, customerID int64) (model.BalanceSummary, error)
	LedgerHistory(ctx context.Context, customerID int64, after *HistoryCursor, limit int) ([]model.Transaction, error)

	RuleFindActive(ctx context.Context, productCode string) (model.EarningRule, error)
	RuleList(ctx context.Context) ([]model.EarningRule, error)
	RuleUpsert(ctx context.Context, rule model.EarningRule) (bool, error)

	RewardGet(ctx context.Context, id int64) (model.Reward, error)
	RewardGetForUpdate(ctx context.Context, id int64) (model.Reward, error)
	RewardList(ctx context.Context) ([]model.Reward, error)
	RewardUpsert(ctx context.Context, reward model.Reward) (bool, error)
	RewardDecrementStock(ctx context.Context, id int64) error

	// WithTx выполняет fn в одной транзакции БД. Внутри fn нужно
	// использовать только переданный Store.
	WithTx(ctx context.Context, fn func(Store) error) error
	Close() error
}

var (
	ErrNoRows        = errors.New("no rows")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("concurrent update conflict")
)

// HistoryCursor - позиция последней прочитанной записи журнала.
type HistoryCursor struct {
	CreatedAt time.Time
	ID        int64
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlStore struct {
	database *sql.DB
	q        querier
	tx       *sql.Tx
	dialect  dialect
	now      func() time.Time
}

func NewStore(cfg config.Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = config.DriverPostgres
	}
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	dsn := cfg.DBDsn
	if driver == config.DriverSQLite {
		dsn = sqliteDSN(dsn)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == config.DriverSQLite {
		// SQLite допускает одного писателя: все единицы работы идут через одно соединение
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Схема: пользователи, клиенты, журнал операций, правила, награды
	if err = applySchema(db, d); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &sqlStore{
		database: db,
		q:        db,
		dialect:  d,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}, nil
}

// applySchema применяет схему одной транзакцией.
func applySchema(db *sql.DB, d dialect) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if d.schemaLock != "" {
		if _, err = tx.Exec(d.schemaLock); err != nil {
			return err
		}
	}
	for _, stmt := range d.schema {
		if _, err = tx.Exec(stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (store *sqlStore) Close() error {
	return store.database.Close()
}

func (store *sqlStore) WithTx(ctx context.Context, fn func(Store) error) error {
	return store.withTx(ctx, func(s *sqlStore) error { return fn(s) })
}

func (store *sqlStore) withTx(ctx context.Context, fn func(*sqlStore) error) error {
	// уже внутри транзакции
	if store.tx != nil {
		return fn(store)
	}

	sqlTx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return translateError(err)
	}
	defer sqlTx.Rollback()

	if err = fn(bindTx(store, sqlTx)); err != nil {
		return translateError(err)
	}
	return translateError(sqlTx.Commit())
}

func bindTx(s *sqlStore, tx *sql.Tx) *sqlStore {
	return &sqlStore{
		database: s.database,
		q:        tx,
		tx:       tx,
		dialect:  s.dialect,
		now:      s.now,
	}
}

// translateError приводит ошибки драйверов к ошибкам пакета.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRows
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return ErrAlreadyExists
		case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
			return ErrConflict
		}
		return err
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch {
		case liteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return ErrAlreadyExists
		case liteErr.Code == sqlite3.ErrBusy, liteErr.Code == sqlite3.ErrLocked:
			return ErrConflict
		}
	}
	return err
}

func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = "abetos.db"
	}
	params := "_txlock=immediate&_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL"
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return "file:" + strings.TrimPrefix(dsn, "file:") + "?" + params
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

type rowScanner interface {
	Scan(dest ...any) error
}
