package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.ListenAddr != ":13258" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":13258")
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("SessionTTL = %v, want %v", cfg.SessionTTL, 2*time.Hour)
	}
	if cfg.DialTimeout != 5*time.Second {
		t.Errorf("DialTimeout = %v, want %v", cfg.DialTimeout, 5*time.Second)
	}
	if cfg.OpTimeout != 45*time.Second {
		t.Errorf("OpTimeout = %v, want %v", cfg.OpTimeout, 45*time.Second)
	}
	if cfg.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want 30", cfg.RetentionDays)
	}
	if cfg.ScoreHistoryMax != 100 {
		t.Errorf("ScoreHistoryMax = %d, want 100", cfg.ScoreHistoryMax)
	}
	if cfg.RateLimit != 1000 {
		t.Errorf("RateLimit = %d, want 1000", cfg.RateLimit)
	}
	if len(cfg.EventTypes) != 11 {
		t.Errorf("len(EventTypes) = %d, want 11", len(cfg.EventTypes))
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_LISTEN_ADDR", ":9090")
	t.Setenv("APP_SESSION_TTL_SECONDS", "60")
	t.Setenv("APP_RETENTION_DAYS", "7")
	t.Setenv("APP_RATE_LIMIT", "50")

	cfg := Load()

	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9090")
	}
	if cfg.SessionTTL != time.Minute {
		t.Errorf("SessionTTL = %v, want %v", cfg.SessionTTL, time.Minute)
	}
	if cfg.RetentionDays != 7 {
		t.Errorf("RetentionDays = %d, want 7", cfg.RetentionDays)
	}
	if cfg.RateLimit != 50 {
		t.Errorf("RateLimit = %d, want 50", cfg.RateLimit)
	}
}

func TestLoad_BadNumbersFallBack(t *testing.T) {
	t.Setenv("APP_SESSION_TTL_SECONDS", "not-a-number")
	t.Setenv("APP_RETENTION_DAYS", "-3")

	cfg := Load()

	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("SessionTTL = %v, want default %v", cfg.SessionTTL, 2*time.Hour)
	}
	if cfg.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want default 30", cfg.RetentionDays)
	}
}
