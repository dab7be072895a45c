package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenMemoryRunsMigrations(t *testing.T) {
	db, err := Open(MemoryPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"members", "contributions", "loans", "savings", "sanctions", "match_cards", "adhesion_requests"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestOpenSeedsReferenceData(t *testing.T) {
	db, err := Open(MemoryPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var roles, sanctionTypes, contributionTypes int
	db.QueryRow(`SELECT COUNT(*) FROM roles`).Scan(&roles)
	db.QueryRow(`SELECT COUNT(*) FROM sanction_types`).Scan(&sanctionTypes)
	db.QueryRow(`SELECT COUNT(*) FROM contribution_types`).Scan(&contributionTypes)

	if roles != 4 {
		t.Errorf("roles = %d, want 4", roles)
	}
	if sanctionTypes != 4 {
		t.Errorf("sanction types = %d, want 4", sanctionTypes)
	}
	if contributionTypes != 3 {
		t.Errorf("contribution types = %d, want 3", contributionTypes)
	}
}

func TestOpenForeignKeysEnforced(t *testing.T) {
	db, err := Open(MemoryPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`INSERT INTO savings (member_id, amount, deposited_on) VALUES (999, 1000, '2024-01-01')`)
	if err == nil {
		t.Fatal("expected foreign key violation for unknown member")
	}
}

func TestOpenFileIsReopenable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "e2d.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO members (first_name, last_name) VALUES ('Awa', 'Ngono')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM members`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("members = %d, want 1", count)
	}
}

func TestSchemaVersionUpToDate(t *testing.T) {
	db, err := Open(MemoryPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	current, latest, err := SchemaVersion(ctx, db)
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if latest == 0 || current != latest {
		t.Errorf("version = %d, latest = %d", current, latest)
	}

	n, err := Migrate(ctx, db)
	if err != nil || n != 0 {
		t.Errorf("second migrate = %d, %v; want nothing pending", n, err)
	}
}

func TestDSNPragmas(t *testing.T) {
	mem := dsn(MemoryPath)
	if !strings.Contains(mem, "foreign_keys") || strings.Contains(mem, "journal_mode") {
		t.Errorf("memory dsn = %q", mem)
	}
	if file := dsn("e2d.db"); !strings.Contains(file, "journal_mode%28WAL%29") {
		t.Errorf("file dsn = %q", file)
	}
}
