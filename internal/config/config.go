package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv            string
	Port              string
	LogLevel          string
	LogFormat         string
	RedisURL          string
	HeartbeatInterval time.Duration
	SessionTimeout    time.Duration
	SendBufferSize    int
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		RedisURL:  getEnv("REDIS_URL", ""),
	}

	var err error
	if cfg.HeartbeatInterval, err = getDuration("HEARTBEAT_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.HeartbeatInterval <= 0 {
		return nil, fmt.Errorf("HEARTBEAT_INTERVAL must be positive")
	}

	if cfg.SessionTimeout, err = getDuration("SESSION_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SessionTimeout <= 0 {
		return nil, fmt.Errorf("SESSION_TIMEOUT must be positive")
	}

	if cfg.SendBufferSize, err = getInt("SEND_BUFFER_SIZE", 16); err != nil {
		return nil, err
	}
	if cfg.SendBufferSize < 1 {
		return nil, fmt.Errorf("SEND_BUFFER_SIZE must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like \"30s\": %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
