package store

import (
	"context"
	"testing"
)

func TestEnsureAdmin(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	created, err := EnsureAdmin(ctx, db, "", "")
	if err != nil || created {
		t.Fatalf("EnsureAdmin without credentials = %v, %v; want false, nil", created, err)
	}

	created, err = EnsureAdmin(ctx, db, "admin@e2d.test", "motdepasse")
	if err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if !created {
		t.Fatal("expected the first admin to be created")
	}

	u, err := NewUserStore(db).Authenticate(ctx, "admin@e2d.test", "motdepasse")
	if err != nil || u == nil {
		t.Fatalf("authenticate: %v, %v", u, err)
	}
	if u.RoleName != AdminRole {
		t.Errorf("role = %q, want %q", u.RoleName, AdminRole)
	}

	created, err = EnsureAdmin(ctx, db, "other@e2d.test", "motdepasse")
	if err != nil || created {
		t.Errorf("second EnsureAdmin = %v, %v; want false, nil", created, err)
	}
}
