package config

import "github.com/caarlos0/env/v11"

type ServerConfig struct {
	// StoreBackend selects the session substrate: "postgres" or "memory".
	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres"`
	PostgresDSN  string `env:"POSTGRES_DSN"`
	HTTPAddr     string `env:"HTTP_ADDR" envDefault:":8080"`

	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`
	AdminAPIKey string `env:"ADMIN_API_KEY"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
