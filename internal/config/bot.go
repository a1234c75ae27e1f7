package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type BotConfig struct {
	APIURL    string `env:"API_URL" envDefault:"http://localhost:8080"`
	RoomID    string `env:"ROOM_ID,required,notEmpty"`
	UserID    string `env:"USER_ID" envDefault:"bot"`
	Username  string `env:"USERNAME" envDefault:"bot"`
	Token     string `env:"API_TOKEN"`
	JWTSecret string `env:"JWT_SECRET"`

	CapabilityPath string        `env:"CAPABILITY_PATH" envDefault:".playroom/capability.json"`
	CapabilityTTL  time.Duration `env:"CAPABILITY_TTL" envDefault:"60s"`
	DeviceID       string        `env:"DEVICE_ID" envDefault:"default"`

	Rounds     int           `env:"ROUNDS" envDefault:"10"`
	RoundDelay time.Duration `env:"ROUND_DELAY" envDefault:"1s"`

	Redis RedisConfig
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
