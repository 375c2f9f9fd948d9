// Package config loads process configuration from the environment. Required
// values missing at startup are reported as errors so the caller can fail
// fast; nothing here is recoverable at runtime.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	envAuthSecret      = "INVENTRA_AUTH_SECRET"
	envAccessTokenTTL  = "INVENTRA_ACCESS_TOKEN_TTL"
	envRefreshTokenTTL = "INVENTRA_REFRESH_TOKEN_TTL"
	envPGDSN           = "INVENTRA_PG_DSN"
	envHTTPAddr        = "INVENTRA_HTTP_ADDR"
	envGRPCAddr        = "INVENTRA_GRPC_ADDR"
	envRateBurst       = "INVENTRA_RATE_BURST"
	envRatePerSec      = "INVENTRA_RATE_PER_SEC"
	envLoginRateBurst  = "INVENTRA_LOGIN_RATE_BURST"
	envLoginRatePerSec = "INVENTRA_LOGIN_RATE_PER_SEC"
)

// Config is the immutable process configuration.
type Config struct {
	// AuthSecret signs access tokens. Required.
	AuthSecret []byte

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// PGDSN selects the Postgres credential store; empty means in-memory.
	PGDSN string

	HTTPAddr string
	// GRPCAddr enables the gRPC health listener when non-empty.
	GRPCAddr string

	RateBurst  int
	RatePerSec int

	// Login limiter is tighter than the global one to slow credential guessing.
	LoginRateBurst  int
	LoginRatePerSec int
}

// Load reads configuration from the environment and validates it.
func Load() (Config, error) {
	cfg := Config{
		AccessTokenTTL:  24 * time.Hour,
		RefreshTokenTTL: 14 * 24 * time.Hour,
		HTTPAddr:        ":8080",
		RateBurst:       20,
		RatePerSec:      10,
		LoginRateBurst:  5,
		LoginRatePerSec: 1,
	}

	secret := strings.TrimSpace(os.Getenv(envAuthSecret))
	if secret == "" {
		return Config{}, fmt.Errorf("%s is required", envAuthSecret)
	}
	if len(secret) < 16 {
		return Config{}, fmt.Errorf("%s must be at least 16 bytes", envAuthSecret)
	}
	cfg.AuthSecret = []byte(secret)

	var err error
	if cfg.AccessTokenTTL, err = durationEnv(envAccessTokenTTL, cfg.AccessTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL, err = durationEnv(envRefreshTokenTTL, cfg.RefreshTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.RateBurst, err = intEnv(envRateBurst, cfg.RateBurst); err != nil {
		return Config{}, err
	}
	if cfg.RatePerSec, err = intEnv(envRatePerSec, cfg.RatePerSec); err != nil {
		return Config{}, err
	}
	if cfg.LoginRateBurst, err = intEnv(envLoginRateBurst, cfg.LoginRateBurst); err != nil {
		return Config{}, err
	}
	if cfg.LoginRatePerSec, err = intEnv(envLoginRatePerSec, cfg.LoginRatePerSec); err != nil {
		return Config{}, err
	}

	cfg.PGDSN = strings.TrimSpace(os.Getenv(envPGDSN))
	if addr := strings.TrimSpace(os.Getenv(envHTTPAddr)); addr != "" {
		cfg.HTTPAddr = addr
	}
	cfg.GRPCAddr = strings.TrimSpace(os.Getenv(envGRPCAddr))

	return cfg, nil
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}
	return d, nil
}

func intEnv(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}
	return v, nil
}
