package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/e2dconnect/e2d/internal/model"
)

// UserStore manages dashboard accounts. Emails are stored lower-cased so
// lookups ignore case.
type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

const userSelect = `SELECT u.id, u.email, u.name, u.role_id, r.name, u.active, u.created_at, u.updated_at, u.last_login_at
	FROM users u JOIN roles r ON r.id = u.role_id`

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var (
		u         model.User
		lastLogin sql.NullTime
	)
	if err := scanner.Scan(&u.ID, &u.Email, &u.Name, &u.RoleID, &u.RoleName, &u.Active,
		&u.CreatedAt, &u.UpdatedAt, &lastLogin); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	return &u, nil
}

// NormalizeEmail is the canonical form of a login email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// dummyHash is compared against when the email is unknown, so both
// failure paths cost one bcrypt round.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("e2d-no-such-user"), bcrypt.DefaultCost)

func (s *UserStore) one(ctx context.Context, what, where string, arg any) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, userSelect+` WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return u, nil
}

func (s *UserStore) Create(ctx context.Context, email, name, password string, roleID int64) (*model.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO users (email, name, password_hash, role_id) VALUES (?, ?, ?, ?) RETURNING id`,
		NormalizeEmail(email), strings.TrimSpace(name), hash, roleID,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.one(ctx, "get user", `u.id = ?`, id)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.one(ctx, "get user by email", `u.email = ?`, NormalizeEmail(email))
}

// Authenticate checks credentials and stamps the login time. It returns
// nil for an unknown email, a disabled account or a wrong password.
func (s *UserStore) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	var (
		id     int64
		hash   []byte
		active bool
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, password_hash, active FROM users WHERE email = ?`, NormalizeEmail(email),
	).Scan(&id, &hash, &active)
	if errors.Is(err, sql.ErrNoRows) {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil || !active {
		return nil, nil
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, time.Now().UTC(), id); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) List(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, userSelect+` ORDER BY u.name, u.email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *UserStore) Update(ctx context.Context, id int64, email, name string, roleID int64, active bool) (*model.User, error) {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = ?, name = ?, role_id = ?, active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		NormalizeEmail(email), strings.TrimSpace(name), roleID, active, id,
	); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) SetPassword(ctx context.Context, id int64, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, hash, id,
	); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}

func (s *UserStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (s *UserStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
