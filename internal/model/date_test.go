package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateJSON(t *testing.T) {
	d, err := ParseDate("2024-03-15")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2024-03-15"` {
		t.Errorf("marshal = %s, want %q", b, "2024-03-15")
	}

	var got Date
	if err := json.Unmarshal([]byte(`"2024-12-01"`), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.String() != "2024-12-01" {
		t.Errorf("unmarshal = %s, want 2024-12-01", got)
	}
}

func TestDateUnmarshalInvalid(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"15/03/2024"`), &d); err == nil {
		t.Error("expected error for non ISO date")
	}
}

func TestDateScan(t *testing.T) {
	tests := []struct {
		name string
		src  any
		want string
	}{
		{"time", time.Date(2024, 5, 2, 13, 45, 0, 0, time.UTC), "2024-05-02"},
		{"string", "2024-05-02", "2024-05-02"},
		{"datetime string", "2024-05-02 00:00:00+00:00", "2024-05-02"},
		{"bytes", []byte("2024-05-02"), "2024-05-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			if err := d.Scan(tt.src); err != nil {
				t.Fatalf("scan: %v", err)
			}
			if d.String() != tt.want {
				t.Errorf("scan = %s, want %s", d, tt.want)
			}
		})
	}
}

func TestDateMonthKey(t *testing.T) {
	d, _ := ParseDate("2025-01-31")
	if d.MonthKey() != "2025-01" {
		t.Errorf("month key = %q, want %q", d.MonthKey(), "2025-01")
	}
}

func TestDateValue(t *testing.T) {
	d := NewDate(time.Date(2024, 7, 9, 23, 59, 0, 0, time.UTC))
	v, err := d.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if v != "2024-07-09" {
		t.Errorf("value = %v, want 2024-07-09", v)
	}
}
