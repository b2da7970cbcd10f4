package config

type Config struct {
	ServerAddr     string
	AllowedOrigins []string
}
