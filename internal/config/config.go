package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config собирает настройки процесса из окружения (.env подхватывается, если есть)
type Config struct {
	AppPort   string `env:"APP_PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// пустой DATABASE_URL - хранилище в памяти (dev)
	DatabaseURL string `env:"DATABASE_URL"`
	// пустой REDIS_URL - события доставляются только локальным соединениям
	RedisURL     string `env:"REDIS_URL"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"lobby_events"`

	JWTSecret     string `env:"JWT_SECRET"`
	AllowedOrigin string `env:"ALLOWED_ORIGIN"`

	// каталог с yaml-картами для загрузки при старте
	MapsDir string `env:"MAPS_DIR"`
	// sqlite для истории итоговых таблиц; пусто - не сохраняем
	HistoryDBPath string `env:"HISTORY_DB_PATH"`

	LobbyResync   time.Duration `env:"LOBBY_RESYNC_INTERVAL" envDefault:"1m"`
	ActionTimeout time.Duration `env:"ACTION_TIMEOUT" envDefault:"10s"`
	TurnTimeout   time.Duration `env:"TURN_TIMEOUT" envDefault:"30s"`
}

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate проверяет обязательные поля
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.LobbyResync <= 0 {
		return errors.New("LOBBY_RESYNC_INTERVAL must be positive")
	}
	if c.ActionTimeout <= 0 || c.TurnTimeout <= 0 {
		return errors.New("ACTION_TIMEOUT and TURN_TIMEOUT must be positive")
	}
	return nil
}

// JSONLogs сообщает, нужен ли json-формат логов
func (c *Config) JSONLogs() bool {
	return c.LogFormat == "json"
}
