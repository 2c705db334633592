package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
)

const (
	AuthModeNone          = "none"
	AuthModeTrustedHeader = "trusted-header"
)

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AuthMode    string `env:"AUTH_MODE" envDefault:"none"`

	FeeRateBps            uint16        `env:"FEE_RATE_BPS" envDefault:"10"`
	GraceWindow           time.Duration `env:"GRACE_WINDOW" envDefault:"168h"`
	LedgerAddress         string        `env:"LEDGER_ADDRESS"`
	OriginationPolicyPath string        `env:"ORIGINATION_POLICY_PATH"`
	CustodySeedPath       string        `env:"CUSTODY_SEED_PATH"`

	RateLimitRequests      int  `env:"RATE_LIMIT_REQUESTS" envDefault:"0"`
	RateLimitWindowSeconds int  `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`
	RateLimitFailClosed    bool `env:"RATE_LIMIT_FAIL_CLOSED" envDefault:"false"`
	RateLimitMaxKeys       int  `env:"RATE_LIMIT_MAX_KEYS" envDefault:"10000"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func FromEnv() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.AuthMode = strings.ToLower(strings.TrimSpace(cfg.AuthMode))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.FeeRateBps > 10_000 {
		return fmt.Errorf("FEE_RATE_BPS must be at most 10000, got %d", c.FeeRateBps)
	}
	if c.GraceWindow < 0 {
		return errors.New("GRACE_WINDOW must not be negative")
	}
	if _, err := c.LedgerAccount(); err != nil {
		return err
	}
	switch c.AuthMode {
	case "", AuthModeNone, AuthModeTrustedHeader:
	default:
		return fmt.Errorf("unsupported AUTH_MODE %q", c.AuthMode)
	}
	if c.RateLimitRequests < 0 || c.RateLimitWindowSeconds < 0 || c.RateLimitMaxKeys < 0 {
		return errors.New("rate limit settings must not be negative")
	}
	return nil
}

// LedgerAccount is the custody account that holds fees and escrowed
// collateral.
func (c Config) LedgerAccount() (common.Address, error) {
	if !common.IsHexAddress(c.LedgerAddress) {
		return common.Address{}, fmt.Errorf("LEDGER_ADDRESS must be a hex address, got %q", c.LedgerAddress)
	}
	addr := common.HexToAddress(c.LedgerAddress)
	if addr == (common.Address{}) {
		return common.Address{}, errors.New("LEDGER_ADDRESS must not be the zero address")
	}
	return addr, nil
}

func (c Config) RateLimitWindow() time.Duration {
	if c.RateLimitWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
