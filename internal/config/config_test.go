package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.DBPath != "e2d.db" {
		t.Errorf("db path = %q, want %q", cfg.DBPath, "e2d.db")
	}
	if cfg.BaseURL != "http://localhost:8080" {
		t.Errorf("base url = %q, want %q", cfg.BaseURL, "http://localhost:8080")
	}
	if cfg.SessionTTL != 168*time.Hour {
		t.Errorf("session ttl = %v, want %v", cfg.SessionTTL, 168*time.Hour)
	}
	if cfg.Backup.RetentionDays != 30 {
		t.Errorf("retention = %d, want 30", cfg.Backup.RetentionDays)
	}
	if cfg.S3Enabled() {
		t.Error("expected S3 disabled by default")
	}
	if cfg.PushEnabled() {
		t.Error("expected push disabled by default")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("E2D_PORT", "9000")
	t.Setenv("E2D_S3_BUCKET", "e2d-backups")
	t.Setenv("E2D_S3_ACCESS_KEY", "key")
	t.Setenv("E2D_S3_SECRET_KEY", "secret")
	t.Setenv("E2D_SESSION_TTL", "2h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("port = %q, want %q", cfg.Port, "9000")
	}
	if cfg.BaseURL != "http://localhost:9000" {
		t.Errorf("base url = %q, want %q", cfg.BaseURL, "http://localhost:9000")
	}
	if !cfg.S3Enabled() {
		t.Error("expected S3 enabled")
	}
	if cfg.S3.Region != "auto" {
		t.Errorf("region = %q, want %q", cfg.S3.Region, "auto")
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("session ttl = %v, want 2h", cfg.SessionTTL)
	}
}

func TestLoadRejectsBadScheduleHour(t *testing.T) {
	t.Setenv("E2D_BACKUP_SCHEDULE_HOUR", "25")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for schedule hour 25")
	}
}

func TestLoadWSOriginsAndDigestHour(t *testing.T) {
	t.Setenv("E2D_WS_ORIGINS", "e2d.example.com,*.e2d.example.com")
	t.Setenv("E2D_VAPID_DIGEST_HOUR", "6")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.WSOrigins) != 2 || cfg.WSOrigins[1] != "*.e2d.example.com" {
		t.Errorf("ws origins = %v", cfg.WSOrigins)
	}
	if cfg.Push.DigestHour != 6 {
		t.Errorf("digest hour = %d, want 6", cfg.Push.DigestHour)
	}

	t.Setenv("E2D_VAPID_DIGEST_HOUR", "-1")
	if _, err := Load(); err == nil {
		t.Error("expected error for digest hour -1")
	}
}
