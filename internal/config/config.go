package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	Port     string `mapstructure:"PORT"`
	GinMode  string `mapstructure:"GIN_MODE"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// DatabaseURL empty means the in-memory directory is used (local development only).
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	ChatStream       string        `mapstructure:"CHAT_STREAM"`
	ChatStreamMaxLen int64         `mapstructure:"CHAT_STREAM_MAXLEN"`
	ChatGroupPrefix  string        `mapstructure:"CHAT_GROUP_PREFIX"`
	ChatBlockTimeout time.Duration `mapstructure:"CHAT_BLOCK_TIMEOUT"`
	InstanceID       string        `mapstructure:"INSTANCE_ID"`

	WSSendBuffer    int           `mapstructure:"WS_SEND_BUFFER"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

var defaults = map[string]any{
	"PORT":               "8080",
	"GIN_MODE":           "release",
	"LOG_LEVEL":          "info",
	"DATABASE_URL":       "",
	"JWT_SECRET":         "",
	"REDIS_ADDR":         "localhost:6379",
	"REDIS_PASSWORD":     "",
	"REDIS_DB":           0,
	"CHAT_STREAM":        "chat-messages",
	"CHAT_STREAM_MAXLEN": 10000,
	"CHAT_GROUP_PREFIX":  "chat-relay",
	"CHAT_BLOCK_TIMEOUT": "2s",
	"INSTANCE_ID":        "",
	"WS_SEND_BUFFER":     64,
	"SHUTDOWN_TIMEOUT":   "5s",
}

// Load reads the configuration from a .env file in dir and from environment variables.
// Environment variables win over the file; every key has a default.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		log.Warn().Str("module", "config").Msg(".env file not found, loading from environment variables")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = defaultInstanceID()
		log.Info().Str("module", "config").Str("instance_id", cfg.InstanceID).Msg("INSTANCE_ID not set, derived from hostname and pid")
	}
	if cfg.JWTSecret == "" {
		log.Warn().Str("module", "config").Msg("JWT_SECRET is empty, tokens are signed with an empty key")
	}
	return &cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// defaultInstanceID is hostname-pid. Processes sharing a host get distinct consumer
// groups, while a container restarted as PID 1 keeps its group and replays entries it
// had not acknowledged.
func defaultInstanceID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	return uuid.NewString()
}
