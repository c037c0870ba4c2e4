package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	GoEnv string `env:"GO_ENV" default:"development"`

	// Mailbox unit
	MailboxHost string `env:"MAILBOX_HOST"`
	MailboxPort int    `env:"MAILBOX_PORT" default:"0"`

	// Transport
	PollInterval  time.Duration `env:"POLL_INTERVAL" default:"100ms"`
	ReadChunkSize int           `env:"READ_CHUNK_SIZE" default:"1024"`
	MaxLineLength int           `env:"MAX_LINE_LENGTH" default:"65536"`
	DialTimeout   time.Duration `env:"DIAL_TIMEOUT" default:"5s"`
	WriteTimeout  time.Duration `env:"WRITE_TIMEOUT" default:"2s"`

	// Display
	LabelFormat string `env:"LABEL_FORMAT" default:"Briefeinwürfe %s"`
	StatusAddr  string `env:"STATUS_ADDR"`

	// Device simulator
	SimAddr         string        `env:"SIM_ADDR" default:"127.0.0.1:5005"`
	SimDropInterval time.Duration `env:"SIM_DROP_INTERVAL" default:"10s"`
	SimCommandRate  float64       `env:"SIM_COMMAND_RATE" default:"10"`
	SimCommandBurst int           `env:"SIM_COMMAND_BURST" default:"20"`
	RedisURL        string        `env:"REDIS_URL"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`

	// Development
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

// LoadConfig loads configuration from environment variables, reading .env
// first when one exists in the working directory.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	config := &Config{}

	if err := loadEnvString(&config.GoEnv, "GO_ENV", "development"); err != nil {
		return nil, err
	}

	// Mailbox unit
	if err := loadEnvString(&config.MailboxHost, "MAILBOX_HOST", ""); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.MailboxPort, "MAILBOX_PORT", 0); err != nil {
		return nil, err
	}

	// Transport
	if err := loadEnvDuration(&config.PollInterval, "POLL_INTERVAL", 100*time.Millisecond); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.ReadChunkSize, "READ_CHUNK_SIZE", 1024); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.MaxLineLength, "MAX_LINE_LENGTH", 64*1024); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.DialTimeout, "DIAL_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.WriteTimeout, "WRITE_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}

	// Display
	if err := loadEnvString(&config.LabelFormat, "LABEL_FORMAT", "Briefeinwürfe %s"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.StatusAddr, "STATUS_ADDR", ""); err != nil {
		return nil, err
	}

	// Device simulator
	if err := loadEnvString(&config.SimAddr, "SIM_ADDR", "127.0.0.1:5005"); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.SimDropInterval, "SIM_DROP_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvFloat(&config.SimCommandRate, "SIM_COMMAND_RATE", 10); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.SimCommandBurst, "SIM_COMMAND_BURST", 20); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.RedisURL, "REDIS_URL", ""); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.RedisPassword, "REDIS_PASSWORD", ""); err != nil {
		return nil, err
	}

	// Development
	if err := loadEnvString(&config.LogLevel, "LOG_LEVEL", "info"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.LogFormat, "LOG_FORMAT", "text"); err != nil {
		return nil, err
	}
	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration. The device
// address is checked separately by ValidateDevice because it may still be
// prompted for.
func (c *Config) Validate() error {
	var errors []string

	if c.PollInterval <= 0 {
		errors = append(errors, "POLL_INTERVAL must be positive")
	}
	if c.ReadChunkSize < 1 {
		errors = append(errors, "READ_CHUNK_SIZE must be at least 1")
	}
	if c.MaxLineLength < c.ReadChunkSize {
		errors = append(errors, "MAX_LINE_LENGTH must not be smaller than READ_CHUNK_SIZE")
	}
	if c.DialTimeout <= 0 {
		errors = append(errors, "DIAL_TIMEOUT must be positive")
	}
	if c.WriteTimeout <= 0 {
		errors = append(errors, "WRITE_TIMEOUT must be positive")
	}
	if strings.Count(c.LabelFormat, "%s") != 1 {
		errors = append(errors, "LABEL_FORMAT must contain exactly one %s")
	}
	if c.MailboxPort < 0 || c.MailboxPort > 65535 {
		errors = append(errors, "MAILBOX_PORT must be between 0 and 65535")
	}
	if c.SimDropInterval < 0 {
		errors = append(errors, "SIM_DROP_INTERVAL must not be negative")
	}
	if c.SimCommandRate <= 0 || c.SimCommandBurst < 1 {
		errors = append(errors, "SIM_COMMAND_RATE and SIM_COMMAND_BURST must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// ValidateDevice checks that a device address has been supplied.
func (c *Config) ValidateDevice() error {
	if c.MailboxHost == "" {
		return fmt.Errorf("MAILBOX_HOST is not set")
	}
	if c.MailboxPort < 1 || c.MailboxPort > 65535 {
		return fmt.Errorf("MAILBOX_PORT must be between 1 and 65535")
	}
	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// Helper function to check if slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
