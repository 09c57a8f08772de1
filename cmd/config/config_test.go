package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/gigstage")
	t.Setenv("DEFAULT_CURRENCY", "ngn")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.DBURL != "postgres://localhost/gigstage" {
		t.Errorf("DBURL = %q", cfg.DBURL)
	}
	if cfg.DefaultCurrency != "NGN" {
		t.Errorf("DefaultCurrency = %q", cfg.DefaultCurrency)
	}
	if cfg.RedisDB != 3 {
		t.Errorf("RedisDB = %d", cfg.RedisDB)
	}
	if cfg.ShutdownTimeout != 15*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{DefaultCurrency: "KE", WorkerConcurrency: 1}
	err := cfg.Validate(true)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"DB_URL", "SECRET_KEY", "DEFAULT_CURRENCY"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}

	cfg = &Config{DBURL: "x", DefaultCurrency: "KES", WorkerConcurrency: 2}
	if err := cfg.Validate(false); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
