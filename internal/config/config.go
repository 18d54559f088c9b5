package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env     string `env:"ENV" env-default:"local"`
	HTTP    HTTPConfig
	CoinCap CoinCapConfig
	Feed    FeedConfig
	Cache   CacheConfig
}

type HTTPConfig struct {
	Port    uint16        `env:"HTTP_PORT" env-default:"8080"`
	Timeout time.Duration `env:"HTTP_TIMEOUT" env-default:"30s"`
}

type CoinCapConfig struct {
	BaseURL string        `env:"COINCAP_BASE_URL" env-default:"https://api.coincap.io/v2"`
	APIKey  string        `env:"COINCAP_API_KEY"`
	Timeout time.Duration `env:"COINCAP_TIMEOUT" env-default:"5s"`
}

type FeedConfig struct {
	URL              string        `env:"FEED_URL" env-default:"wss://ws.coincap.io/prices"`
	HandshakeTimeout time.Duration `env:"FEED_HANDSHAKE_TIMEOUT" env-default:"10s"`
	ReadLimit        int64         `env:"FEED_READ_LIMIT" env-default:"1048576"`
}

type CacheConfig struct {
	Enabled  bool          `env:"CACHE_ENABLED" env-default:"false"`
	Addr     string        `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" env-default:"0"`
	TTL      time.Duration `env:"CACHE_TTL" env-default:"30s"`
}

func MustLoad() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment variables")
	}

	var cfg Config

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("failed to read environment variables", "error", err)
		os.Exit(1)
	}

	return &cfg
}
