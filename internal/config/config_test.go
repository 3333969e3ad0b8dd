package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Database.Driver = %q", cfg.Database.Driver)
	}
	if cfg.Exchange.TestTimeout != 15*time.Second {
		t.Errorf("Exchange.TestTimeout = %v", cfg.Exchange.TestTimeout)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q", cfg.Logging.Format)
	}
}

func TestLoad_RequiresEncryptionKey(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "")

	if _, err := Load(); err == nil {
		t.Error("expected error for missing ENCRYPTION_KEY")
	}
}

func TestLoad_EncryptionKeyLength(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "too-short")

	if _, err := Load(); err == nil {
		t.Error("expected error for short ENCRYPTION_KEY")
	}
}

func TestLoad_ValidatesRanges(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("MAX_RETRIES", "50")

	if _, err := Load(); err == nil {
		t.Error("expected error for MAX_RETRIES out of range")
	}
}

func TestDSNWithoutPassword(t *testing.T) {
	d := DatabaseConfig{
		Host: "localhost", Port: 5432,
		User: "user", Password: "s3cret",
		Name: "tradedesk", SSLMode: "disable",
	}

	dsn := d.DSNWithoutPassword()
	if dsn == "" {
		t.Fatal("empty DSN")
	}
	if strings.Contains(dsn, "s3cret") {
		t.Errorf("password leaked into DSN: %s", dsn)
	}
}
