package config

import "github.com/caarlos0/env/v11"

// RedisConfig is only needed when capabilities are kept in redis instead of a local file.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

func LoadRedis() (RedisConfig, error) {
	var cfg RedisConfig
	err := env.Parse(&cfg)
	return cfg, err
}
