package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/e2dconnect/e2d/internal/model"
)

type RoleStore struct {
	db *sql.DB
}

func NewRoleStore(db *sql.DB) *RoleStore {
	return &RoleStore{db: db}
}

const roleCols = `id, name, description, created_at`

func (s *RoleStore) Create(ctx context.Context, name, description string, permissions []string) (*model.Role, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `INSERT INTO roles (name, description) VALUES (?, ?)`, name, description)
	if err != nil {
		return nil, fmt.Errorf("insert role: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if err := replacePermissions(ctx, tx, id, permissions); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(ctx, id)
}

func replacePermissions(ctx context.Context, tx *sql.Tx, roleID int64, permissions []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = ?`, roleID); err != nil {
		return fmt.Errorf("clear permissions: %w", err)
	}
	for _, p := range permissions {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO role_permissions (role_id, permission) VALUES (?, ?)`, roleID, p)
		if err != nil {
			return fmt.Errorf("insert permission %q: %w", p, err)
		}
	}
	return nil
}

func (s *RoleStore) GetByID(ctx context.Context, id int64) (*model.Role, error) {
	return s.getOne(ctx, `SELECT `+roleCols+` FROM roles WHERE id = ?`, id)
}

func (s *RoleStore) GetByName(ctx context.Context, name string) (*model.Role, error) {
	return s.getOne(ctx, `SELECT `+roleCols+` FROM roles WHERE name = ?`, name)
}

func (s *RoleStore) getOne(ctx context.Context, query string, arg any) (*model.Role, error) {
	var r model.Role
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}
	perms, err := s.Permissions(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	r.Permissions = perms
	return &r, nil
}

// Permissions returns the sorted permissions of a role.
func (s *RoleStore) Permissions(ctx context.Context, roleID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT permission FROM role_permissions WHERE role_id = ? ORDER BY permission`, roleID)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()

	perms := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *RoleStore) List(ctx context.Context) ([]model.Role, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+roleCols+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []model.Role
	for rows.Next() {
		var r model.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	rows.Close()

	for i := range roles {
		perms, err := s.Permissions(ctx, roles[i].ID)
		if err != nil {
			return nil, err
		}
		roles[i].Permissions = perms
	}
	return roles, nil
}

func (s *RoleStore) Update(ctx context.Context, id int64, name, description string, permissions []string) (*model.Role, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE roles SET name = ?, description = ? WHERE id = ?`, name, description, id); err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	if err := replacePermissions(ctx, tx, id, permissions); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Delete removes a role that no user holds.
func (s *RoleStore) Delete(ctx context.Context, id int64) error {
	var users int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role_id = ?`, id).Scan(&users); err != nil {
		return fmt.Errorf("count role users: %w", err)
	}
	if users > 0 {
		return ErrInUse
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	return nil
}
