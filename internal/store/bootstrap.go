package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/e2dconnect/e2d/internal/model"
)

// AdminRole is the seeded role holding every permission.
const AdminRole = "administrateur"

// CreateAdmin creates an account with the administrateur role.
func CreateAdmin(ctx context.Context, db *sql.DB, email, name, password string) (*model.User, error) {
	role, err := NewRoleStore(db).GetByName(ctx, AdminRole)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, fmt.Errorf("role %q is missing", AdminRole)
	}
	return NewUserStore(db).Create(ctx, email, name, password, role.ID)
}

// EnsureAdmin creates the first administrator when no account exists.
// It reports whether an account was created.
func EnsureAdmin(ctx context.Context, db *sql.DB, email, password string) (bool, error) {
	n, err := NewUserStore(db).Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 || email == "" || password == "" {
		return false, nil
	}
	if _, err := CreateAdmin(ctx, db, email, "Administrateur", password); err != nil {
		return false, err
	}
	return true, nil
}
