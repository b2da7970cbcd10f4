package config

import (
	"time"

	"github.com/iurnickita/abetos/internal/rules"
)

type Config struct {
	// Количество попыток списания при конфликте конкурентных транзакций
	RedeemRetries int
	RetryBackoff  time.Duration
	// Баллы за литр для ручного начисления по документу
	PointsTable     rules.PointsTable
	HistoryPageSize int
}

func Default() Config {
	return Config{
		RedeemRetries:   3,
		RetryBackoff:    50 * time.Millisecond,
		PointsTable:     rules.DefaultPointsTable,
		HistoryPageSize: 50,
	}
}
