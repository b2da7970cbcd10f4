package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storeConfig "github.com/iurnickita/abetos/internal/store/config"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load([]string{"-a", ":9090", "-d", "postgres://localhost/abetos", "-s", "secret", "-l", "debug"}, env(nil))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Handler.ServerAddr)
	assert.Equal(t, "postgres://localhost/abetos", cfg.Store.DBDsn)
	assert.Equal(t, storeConfig.DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Logger.LogLevel)
	assert.Equal(t, "secret", cfg.Auth.Secret)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 3, cfg.Service.RedeemRetries)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Handler.AllowedOrigins)
	assert.NotEmpty(t, cfg.Service.PointsTable)
}

func TestLoadEnvOverridesFlags(t *testing.T) {
	cfg, err := Load([]string{"-a", ":9090", "-s", "flag-secret", "-driver", "sqlite3"}, env(map[string]string{
		"RUN_ADDRESS":      ":7070",
		"DATABASE_URI":     "dev.db",
		"JWT_SECRET":       "env-secret",
		"TOKEN_TTL":        "2h",
		"REDEEM_RETRIES":   "5",
		"FRONTEND_ORIGINS": "https://app.example.com, https://admin.example.com",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Handler.ServerAddr)
	assert.Equal(t, "dev.db", cfg.Store.DBDsn)
	assert.Equal(t, storeConfig.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "env-secret", cfg.Auth.Secret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5, cfg.Service.RedeemRetries)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.Handler.AllowedOrigins)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{name: "no dsn for postgres", args: []string{"-s", "x"}},
		{name: "no secret", args: []string{"-driver", "sqlite3"}},
		{name: "bad driver", args: []string{"-s", "x", "-driver", "mysql"}},
		{name: "bad ttl", args: []string{"-s", "x", "-driver", "sqlite3"}, env: map[string]string{"TOKEN_TTL": "day"}},
		{name: "bad retries", args: []string{"-s", "x", "-driver", "sqlite3"}, env: map[string]string{"REDEEM_RETRIES": "0"}},
		{name: "unknown flag", args: []string{"-x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args, env(tt.env))
			assert.Error(t, err)
		})
	}
}
