package store

import (
	"context"
	"errors"
	"testing"
)

func TestSettingsSeedData(t *testing.T) {
	ss := NewSettingsStore(setupTestDB(t))

	settings, err := ss.GetGroup(context.Background(), "association")
	if err != nil {
		t.Fatalf("get association settings: %v", err)
	}

	expected := map[string]string{
		"association_name":     "E2D Connect",
		"association_currency": "FCFA",
		"default_loan_rate":    "5",
	}
	for key, want := range expected {
		got, ok := settings[key]
		if !ok {
			t.Errorf("missing setting %q", key)
			continue
		}
		if got != want {
			t.Errorf("setting %q = %q, want %q", key, got, want)
		}
	}
}

func TestSettingsGetOrAndFloat(t *testing.T) {
	ss := NewSettingsStore(setupTestDB(t))
	ctx := context.Background()

	if v, _ := ss.GetOr(ctx, "association_name", "x"); v != "E2D Connect" {
		t.Errorf("association_name = %q, want seeded value", v)
	}
	if v, _ := ss.GetOr(ctx, "missing_key", "x"); v != "x" {
		t.Errorf("fallback = %q, want x", v)
	}

	rate, ok, err := ss.Float(ctx, "default_loan_rate", 1)
	if err != nil || !ok || rate != 5 {
		t.Errorf("default_loan_rate = %v, %v, %v; want 5", rate, ok, err)
	}
	if err := ss.SetGroup(ctx, "association", map[string]string{"default_loan_rate": "cinq"}); err != nil {
		t.Fatalf("set group: %v", err)
	}
	rate, ok, _ = ss.Float(ctx, "default_loan_rate", 1)
	if ok || rate != 1 {
		t.Errorf("unparsable rate = %v, %v; want fallback and false", rate, ok)
	}
	if rate, ok, _ = ss.Float(ctx, "missing_key", 2.5); !ok || rate != 2.5 {
		t.Errorf("unset rate = %v, %v; want 2.5", rate, ok)
	}
}

func TestSettingsSetGroup(t *testing.T) {
	ss := NewSettingsStore(setupTestDB(t))
	ctx := context.Background()

	err := ss.SetGroup(ctx, "backup", map[string]string{"backup_enabled": "true", "backup_schedule_hour": "4"})
	if err != nil {
		t.Fatalf("set group: %v", err)
	}
	got, _ := ss.GetGroup(ctx, "backup")
	if got["backup_enabled"] != "true" || got["backup_schedule_hour"] != "4" {
		t.Errorf("backup settings = %v", got)
	}

	if err := ss.SetGroup(ctx, "backup", map[string]string{"association_name": "x"}); err == nil {
		t.Error("expected error for key outside group")
	}
	if _, err := ss.GetGroup(ctx, "theme"); !errors.Is(err, ErrUnknownGroup) {
		t.Errorf("unknown group err = %v, want ErrUnknownGroup", err)
	}
}
