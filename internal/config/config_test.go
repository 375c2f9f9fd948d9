package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("INVENTRA_AUTH_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing secret")
	}
	t.Setenv("INVENTRA_AUTH_SECRET", "short")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for weak secret")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("INVENTRA_AUTH_SECRET", strings.Repeat("s", 32))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AccessTokenTTL != 24*time.Hour {
		t.Fatalf("unexpected access ttl: %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 14*24*time.Hour {
		t.Fatalf("unexpected refresh ttl: %v", cfg.RefreshTokenTTL)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTPAddr)
	}
	if cfg.PGDSN != "" || cfg.GRPCAddr != "" {
		t.Fatalf("optional values should default empty")
	}
	if cfg.LoginRateBurst >= cfg.RateBurst || cfg.LoginRatePerSec >= cfg.RatePerSec {
		t.Fatalf("login limiter should default tighter than the global one: %d/%d vs %d/%d",
			cfg.LoginRateBurst, cfg.LoginRatePerSec, cfg.RateBurst, cfg.RatePerSec)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("INVENTRA_AUTH_SECRET", strings.Repeat("s", 32))
	t.Setenv("INVENTRA_ACCESS_TOKEN_TTL", "45m")
	t.Setenv("INVENTRA_RATE_BURST", "50")
	t.Setenv("INVENTRA_LOGIN_RATE_BURST", "8")
	t.Setenv("INVENTRA_HTTP_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AccessTokenTTL != 45*time.Minute {
		t.Fatalf("unexpected access ttl: %v", cfg.AccessTokenTTL)
	}
	if cfg.RateBurst != 50 {
		t.Fatalf("unexpected burst: %d", cfg.RateBurst)
	}
	if cfg.LoginRateBurst != 8 {
		t.Fatalf("unexpected login burst: %d", cfg.LoginRateBurst)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("unexpected addr: %s", cfg.HTTPAddr)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("INVENTRA_AUTH_SECRET", strings.Repeat("s", 32))
	t.Setenv("INVENTRA_ACCESS_TOKEN_TTL", "yesterday")
	if _, err := Load(); err == nil {
		t.Fatal("expected duration parse error")
	}
	t.Setenv("INVENTRA_ACCESS_TOKEN_TTL", "")
	t.Setenv("INVENTRA_RATE_PER_SEC", "-3")
	if _, err := Load(); err == nil {
		t.Fatal("expected positive-int error")
	}
}
