package config

import "time"

type Config struct {
	Secret     string
	TokenTTL   time.Duration
	BcryptCost int
}
