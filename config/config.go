// Package config loads and validates relay configuration from yaml files and
// environment variables.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// RelayConfig holds the peer-facing WebSocket listener settings.
type RelayConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	// MaxMessageSize caps the size of a single peer message in bytes.
	MaxMessageSize int64 `mapstructure:"max_message_size" validate:"gt=0"`
	// RateLimit is the per-listener sustained events/second budget.
	RateLimit int `mapstructure:"rate_limit" validate:"gt=0"`
	// EventChannelSize is the buffer between the listener and downstream
	// consumers of validated events.
	EventChannelSize int `mapstructure:"event_channel_size" validate:"gt=0"`
}

// AdminConfig holds the operator endpoint (health, metrics) settings.
type AdminConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// Options holds event acceptance policy settings.
type Options struct {
	// RejectFutureSeconds rejects events whose created_at is more than this
	// many seconds in the future. Nil means no limit.
	RejectFutureSeconds *int64 `mapstructure:"reject_future_seconds" validate:"omitempty,gte=0"`
}

// Config holds all configuration for the relay service.
type Config struct {
	Relay   RelayConfig `mapstructure:"relay"`
	Admin   AdminConfig `mapstructure:"admin"`
	Options Options     `mapstructure:"options"`

	Logging struct {
		Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	} `mapstructure:"logging"`
}

// LoadConfig reads config.yaml (working directory or ./config), applies
// defaults and NOSTRELAY_* environment overrides, and validates the result.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, will use defaults and env vars
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("relay.host", "0.0.0.0")
	viper.SetDefault("relay.port", 8090)
	viper.SetDefault("relay.max_message_size", 128*1024)
	viper.SetDefault("relay.rate_limit", 1000)
	viper.SetDefault("relay.event_channel_size", 1024)

	viper.SetDefault("admin.host", "127.0.0.1")
	viper.SetDefault("admin.port", 9090)

	viper.SetDefault("logging.level", "info")

	// options.reject_future_seconds intentionally has no default: absent means
	// no future-timestamp limit at all.
}

func loadFromEnv() {
	viper.SetEnvPrefix("NOSTRELAY")
	viper.AutomaticEnv()

	_ = viper.BindEnv("relay.host", "NOSTRELAY_RELAY_HOST")
	_ = viper.BindEnv("relay.port", "NOSTRELAY_RELAY_PORT")
	_ = viper.BindEnv("admin.port", "NOSTRELAY_ADMIN_PORT")
	_ = viper.BindEnv("logging.level", "NOSTRELAY_LOG_LEVEL")
	_ = viper.BindEnv("options.reject_future_seconds", "NOSTRELAY_REJECT_FUTURE_SECONDS")
}
