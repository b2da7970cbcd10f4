package store

import "github.com/iurnickita/abetos/internal/store/config"

type dialect struct {
	forUpdate string
	// schemaLock выполняется первым в транзакции схемы и разводит
	// одновременный запуск нескольких процессов
	schemaLock string
	schema     []string
}

var dialects = map[string]dialect{
	config.DriverPostgres: {
		forUpdate:  " FOR UPDATE",
		schemaLock: "SELECT pg_advisory_xact_lock(7300151)",
		schema:     postgresSchema,
	},
	config.DriverSQLite: {
		// блокировку записи берет BEGIN IMMEDIATE
		forUpdate: "",
		schema:    sqliteSchema,
	},
}

var postgresSchema = []string{
	// Учетные записи
	"CREATE TABLE IF NOT EXISTS users (" +
		" id BIGSERIAL PRIMARY KEY," +
		" email VARCHAR (120) NOT NULL UNIQUE," +
		" password_hash VARCHAR (255) NOT NULL," +
		" role VARCHAR (20) NOT NULL DEFAULT 'customer'," +
		" created_at TIMESTAMPTZ NOT NULL" +
		" );",

	// Клиенты. Не удаляются
	"CREATE TABLE IF NOT EXISTS customers (" +
		" id BIGSERIAL PRIMARY KEY," +
		" user_id BIGINT UNIQUE REFERENCES users (id)," +
		" full_name VARCHAR (120) NOT NULL," +
		" doc_number VARCHAR (20) NOT NULL UNIQUE," +
		" phone VARCHAR (40)," +
		" member_number VARCHAR (30) UNIQUE," +
		" created_at TIMESTAMPTZ NOT NULL" +
		" );",

	// Журнал операций с баллами. Только добавление записей,
	// баланс клиента - сумма points по его записям
	"CREATE TABLE IF NOT EXISTS transactions (" +
		" id BIGSERIAL PRIMARY KEY," +
		" customer_id BIGINT NOT NULL REFERENCES customers (id)," +
		" kind VARCHAR (20) NOT NULL," +
		" points BIGINT NOT NULL," +
		" amount NUMERIC (14, 4)," +
		" liters NUMERIC (14, 4)," +
		" unit_price NUMERIC (14, 4)," +
		" product_code VARCHAR (50)," +
		" payment_method VARCHAR (30)," +
		" ticket_number VARCHAR (50)," +
		" paid_with_app BOOLEAN NOT NULL DEFAULT FALSE," +
		" note VARCHAR (200)," +
		" operator_id BIGINT," +
		" created_at TIMESTAMPTZ NOT NULL," +
		" CHECK ((kind = 'earn' AND points > 0) OR (kind = 'redeem' AND points < 0))" +
		" );",
	"CREATE INDEX IF NOT EXISTS idx_transactions_customer_created" +
		" ON transactions (customer_id, created_at DESC, id DESC);",
	"CREATE OR REPLACE FUNCTION transactions_append_only() RETURNS trigger AS $$" +
		" BEGIN" +
		"   RAISE EXCEPTION 'transactions ledger is append-only';" +
		" END;" +
		" $$ LANGUAGE plpgsql;",
	"CREATE OR REPLACE TRIGGER transactions_append_only" +
		" BEFORE UPDATE OR DELETE ON transactions" +
		" FOR EACH ROW EXECUTE FUNCTION transactions_append_only();",

	// Правила начисления. История сохраняется, действует активное правило с наибольшим id
	"CREATE TABLE IF NOT EXISTS earning_rules (" +
		" id BIGSERIAL PRIMARY KEY," +
		" product_code VARCHAR (50) NOT NULL," +
		" unit VARCHAR (20) NOT NULL CHECK (unit IN ('LITERS', 'CURRENCY'))," +
		" points_per_unit NUMERIC (12, 4) NOT NULL CHECK (points_per_unit >= 0)," +
		" is_active BOOLEAN NOT NULL DEFAULT TRUE," +
		" created_at TIMESTAMPTZ NOT NULL" +
		" );",
	"CREATE INDEX IF NOT EXISTS idx_earning_rules_code" +
		" ON earning_rules (product_code, is_active, id DESC);",

	// Каталог наград. stock IS NULL - без ограничения
	"CREATE TABLE IF NOT EXISTS rewards (" +
		" id BIGSERIAL PRIMARY KEY," +
		" title VARCHAR (120) NOT NULL UNIQUE," +
		" required_points BIGINT NOT NULL CHECK (required_points > 0)," +
		" valid_from TIMESTAMPTZ," +
		" valid_to TIMESTAMPTZ," +
		" stock BIGINT CHECK (stock IS NULL OR stock >= 0)," +
		" created_at TIMESTAMPTZ NOT NULL" +
		" );",
}

var sqliteSchema = []string{
	"CREATE TABLE IF NOT EXISTS users (" +
		" id INTEGER PRIMARY KEY AUTOINCREMENT," +
		" email TEXT NOT NULL UNIQUE," +
		" password_hash TEXT NOT NULL," +
		" role TEXT NOT NULL DEFAULT 'customer'," +
		" created_at TIMESTAMP NOT NULL" +
		" );",

	"CREATE TABLE IF NOT EXISTS customers (" +
		" id INTEGER PRIMARY KEY AUTOINCREMENT," +
		" user_id INTEGER UNIQUE REFERENCES users (id)," +
		" full_name TEXT NOT NULL," +
		" doc_number TEXT NOT NULL UNIQUE," +
		" phone TEXT," +
		" member_number TEXT UNIQUE," +
		" created_at TIMESTAMP NOT NULL" +
		" );",

	// Десятичные значения хранятся текстом, без потери точности
	"CREATE TABLE IF NOT EXISTS transactions (" +
		" id INTEGER PRIMARY KEY AUTOINCREMENT," +
		" customer_id INTEGER NOT NULL REFERENCES customers (id)," +
		" kind TEXT NOT NULL," +
		" points INTEGER NOT NULL," +
		" amount TEXT," +
		" liters TEXT," +
		" unit_price TEXT," +
		" product_code TEXT," +
		" payment_method TEXT," +
		" ticket_number TEXT," +
		" paid_with_app BOOLEAN NOT NULL DEFAULT FALSE," +
		" note TEXT," +
		" operator_id INTEGER," +
		" created_at TIMESTAMP NOT NULL," +
		" CHECK ((kind = 'earn' AND points > 0) OR (kind = 'redeem' AND points < 0))" +
		" );",
	"CREATE INDEX IF NOT EXISTS idx_transactions_customer_created" +
		" ON transactions (customer_id, created_at DESC, id DESC);",
	"CREATE TRIGGER IF NOT EXISTS transactions_no_update" +
		" BEFORE UPDATE ON transactions" +
		" BEGIN SELECT RAISE(ABORT, 'transactions ledger is append-only'); END;",
	"CREATE TRIGGER IF NOT EXISTS transactions_no_delete" +
		" BEFORE DELETE ON transactions" +
		" BEGIN SELECT RAISE(ABORT, 'transactions ledger is append-only'); END;",

	"CREATE TABLE IF NOT EXISTS earning_rules (" +
		" id INTEGER PRIMARY KEY AUTOINCREMENT," +
		" product_code TEXT NOT NULL," +
		" unit TEXT NOT NULL CHECK (unit IN ('LITERS', 'CURRENCY'))," +
		" points_per_unit TEXT NOT NULL," +
		" is_active BOOLEAN NOT NULL DEFAULT TRUE," +
		" created_at TIMESTAMP NOT NULL" +
		" );",
	"CREATE INDEX IF NOT EXISTS idx_earning_rules_code" +
		" ON earning_rules (product_code, is_active, id DESC);",

	"CREATE TABLE IF NOT EXISTS rewards (" +
		" id INTEGER PRIMARY KEY AUTOINCREMENT," +
		" title TEXT NOT NULL UNIQUE," +
		" required_points INTEGER NOT NULL CHECK (required_points > 0)," +
		" valid_from TIMESTAMP," +
		" valid_to TIMESTAMP," +
		" stock INTEGER CHECK (stock IS NULL OR stock >= 0)," +
		" created_at TIMESTAMP NOT NULL" +
		" );",
}
