package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	authConfig "github.com/iurnickita/abetos/internal/auth/config"
	handlerConfig "github.com/iurnickita/abetos/internal/handler/config"
	loggerConfig "github.com/iurnickita/abetos/internal/logger/config"
	serviceConfig "github.com/iurnickita/abetos/internal/service/config"
	storeConfig "github.com/iurnickita/abetos/internal/store/config"
)

type Config struct {
	Handler handlerConfig.Config
	Service serviceConfig.Config
	Store   storeConfig.Config
	Logger  loggerConfig.Config
	Auth    authConfig.Config
}

// GetConfig читает .env, флаги командной строки и переменные окружения.
// Переменные окружения важнее флагов.
func GetConfig() (Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	return Load(os.Args[1:], os.LookupEnv)
}

// Load собирает конфигурацию из аргументов и окружения.
func Load(args []string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Config{Service: serviceConfig.Default()}
	cfg.Auth.TokenTTL = 24 * time.Hour

	var origins string
	fs := flag.NewFlagSet("abetos", flag.ContinueOnError)
	fs.StringVar(&cfg.Handler.ServerAddr, "a", "localhost:8080", "address and port to run server")
	fs.StringVar(&cfg.Store.DBDsn, "d", "", "database connection string")
	fs.StringVar(&cfg.Store.Driver, "driver", storeConfig.DriverPostgres, "database driver: pgx or sqlite3")
	fs.StringVar(&cfg.Logger.LogLevel, "l", "info", "log level")
	fs.StringVar(&cfg.Auth.Secret, "s", "", "token signing secret")
	fs.StringVar(&origins, "origins", "http://localhost:5173", "comma separated frontend origins")
	fs.IntVar(&cfg.Service.RedeemRetries, "retries", cfg.Service.RedeemRetries, "redeem attempts on transaction conflict")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if v, ok := lookup("RUN_ADDRESS"); ok && v != "" {
		cfg.Handler.ServerAddr = v
	}
	if v, ok := lookup("DATABASE_URI"); ok && v != "" {
		cfg.Store.DBDsn = v
	}
	if v, ok := lookup("DATABASE_DRIVER"); ok && v != "" {
		cfg.Store.Driver = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		cfg.Logger.LogLevel = v
	}
	if v, ok := lookup("JWT_SECRET"); ok && v != "" {
		cfg.Auth.Secret = v
	}
	if v, ok := lookup("FRONTEND_ORIGINS"); ok {
		origins = v
	}
	if v, ok := lookup("TOKEN_TTL"); ok && v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("TOKEN_TTL: %w", err)
		}
		cfg.Auth.TokenTTL = ttl
	}
	if v, ok := lookup("REDEEM_RETRIES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("REDEEM_RETRIES: %w", err)
		}
		cfg.Service.RedeemRetries = n
	}

	cfg.Handler.AllowedOrigins = splitList(origins)

	if cfg.Store.Driver != storeConfig.DriverPostgres && cfg.Store.Driver != storeConfig.DriverSQLite {
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.Store.Driver)
	}
	if cfg.Store.Driver == storeConfig.DriverPostgres && cfg.Store.DBDsn == "" {
		return Config{}, fmt.Errorf("database connection string is required")
	}
	if cfg.Auth.Secret == "" {
		return Config{}, fmt.Errorf("token signing secret is required")
	}
	if cfg.Service.RedeemRetries <= 0 {
		return Config{}, fmt.Errorf("redeem retries must be positive")
	}
	return cfg, nil
}

func splitList(s string) []string {
	var list []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
