package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/e2dconnect/e2d/internal/model"
)

// AdhesionStore holds membership requests submitted from the public site.
type AdhesionStore struct {
	db *sql.DB
}

func NewAdhesionStore(db *sql.DB) *AdhesionStore {
	return &AdhesionStore{db: db}
}

func scanAdhesion(scanner interface{ Scan(...any) error }) (*model.AdhesionRequest, error) {
	var a model.AdhesionRequest
	var memberID sql.NullInt64
	var decided sql.NullTime
	err := scanner.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Phone, &a.Team, &a.Message,
		&a.Status, &memberID, &decided, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.MemberID = intPtr(memberID)
	if decided.Valid {
		a.DecidedAt = &decided.Time
	}
	return &a, nil
}

const adhesionCols = `id, first_name, last_name, email, phone, team, message, status, member_id, decided_at, created_at`

func (s *AdhesionStore) Create(ctx context.Context, a model.AdhesionRequest) (*model.AdhesionRequest, error) {
	if a.Team == "" {
		a.Team = model.TeamE2D
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO adhesion_requests (first_name, last_name, email, phone, team, message) VALUES (?, ?, ?, ?, ?, ?)`,
		a.FirstName, a.LastName, a.Email, a.Phone, a.Team, a.Message,
	)
	if err != nil {
		return nil, fmt.Errorf("insert adhesion request: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *AdhesionStore) GetByID(ctx context.Context, id int64) (*model.AdhesionRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+adhesionCols+` FROM adhesion_requests WHERE id = ?`, id)
	a, err := scanAdhesion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get adhesion request: %w", err)
	}
	return a, nil
}

// List returns requests, optionally by status, oldest first.
func (s *AdhesionStore) List(ctx context.Context, status string) ([]model.AdhesionRequest, error) {
	var c clauses
	if status != "" {
		c.add("status = ?", status)
	}
	q, args := c.query(`SELECT `+adhesionCols+` FROM adhesion_requests`, "created_at ASC, id ASC", 0)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list adhesion requests: %w", err)
	}
	defer rows.Close()

	var requests []model.AdhesionRequest
	for rows.Next() {
		a, err := scanAdhesion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan adhesion request: %w", err)
		}
		requests = append(requests, *a)
	}
	return requests, rows.Err()
}

func (s *AdhesionStore) CountPending(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM adhesion_requests WHERE status = ?`, model.AdhesionPending).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending adhesions: %w", err)
	}
	return n, nil
}

// Accept creates the member for a pending request and links it, in one
// transaction. It returns the new member id, or sql.ErrNoRows if the
// request is missing or already decided.
func (s *AdhesionStore) Accept(ctx context.Context, id int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var a model.AdhesionRequest
	err = tx.QueryRowContext(ctx,
		`SELECT first_name, last_name, email, phone, team FROM adhesion_requests WHERE id = ? AND status = ?`,
		id, model.AdhesionPending,
	).Scan(&a.FirstName, &a.LastName, &a.Email, &a.Phone, &a.Team)
	if err != nil {
		return 0, err
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO members (first_name, last_name, email, phone, status, e2d, phoenix, joined_on)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.FirstName, a.LastName, a.Email, a.Phone, model.MemberActive,
		a.Team == model.TeamE2D, a.Team == model.TeamPhoenix, model.Today(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert member: %w", err)
	}
	memberID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE adhesion_requests SET status = ?, member_id = ?, decided_at = ? WHERE id = ?`,
		model.AdhesionAccepted, memberID, time.Now().UTC(), id,
	)
	if err != nil {
		return 0, fmt.Errorf("accept adhesion request: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return memberID, nil
}

// Reject refuses a pending request. It returns sql.ErrNoRows if the request
// is missing or already decided.
func (s *AdhesionStore) Reject(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE adhesion_requests SET status = ?, decided_at = ? WHERE id = ? AND status = ?`,
		model.AdhesionRejected, time.Now().UTC(), id, model.AdhesionPending,
	)
	if err != nil {
		return fmt.Errorf("reject adhesion request: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *AdhesionStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM adhesion_requests WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete adhesion request: %w", err)
	}
	return nil
}
