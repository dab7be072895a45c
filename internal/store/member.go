package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/e2dconnect/e2d/internal/model"
)

type MemberStore struct {
	db *sql.DB
}

func NewMemberStore(db *sql.DB) *MemberStore {
	return &MemberStore{db: db}
}

// MemberFilter narrows List. Search matches first name, last name or email.
type MemberFilter struct {
	Status string
	Team   string
	Search string
}

func scanMember(scanner interface{ Scan(...any) error }) (*model.Member, error) {
	var m model.Member
	var joined nullDate
	err := scanner.Scan(&m.ID, &m.FirstName, &m.LastName, &m.Email, &m.Phone, &m.Status,
		&m.E2D, &m.Phoenix, &joined, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.JoinedOn = joined.ptr()
	return &m, nil
}

const memberCols = `id, first_name, last_name, email, phone, status, e2d, phoenix, joined_on, created_at, updated_at`

func (s *MemberStore) Create(ctx context.Context, m model.Member) (*model.Member, error) {
	if m.Status == "" {
		m.Status = model.MemberActive
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO members (first_name, last_name, email, phone, status, e2d, phoenix, joined_on)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.FirstName, m.LastName, m.Email, m.Phone, m.Status, m.E2D, m.Phoenix, dateArg(m.JoinedOn),
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *MemberStore) GetByID(ctx context.Context, id int64) (*model.Member, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memberCols+` FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// List returns members ordered by last name, then first name.
func (s *MemberStore) List(ctx context.Context, f MemberFilter) ([]model.Member, error) {
	var c clauses
	if f.Status != "" {
		c.add("status = ?", f.Status)
	}
	switch f.Team {
	case model.TeamE2D:
		c.add("e2d = 1")
	case model.TeamPhoenix:
		c.add("phoenix = 1")
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		c.add("(first_name LIKE ? OR last_name LIKE ? OR email LIKE ?)", like, like, like)
	}
	q, args := c.query(`SELECT `+memberCols+` FROM members`, "last_name, first_name", 0)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *MemberStore) Update(ctx context.Context, id int64, m model.Member) (*model.Member, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE members SET first_name = ?, last_name = ?, email = ?, phone = ?, status = ?,
		 e2d = ?, phoenix = ?, joined_on = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		m.FirstName, m.LastName, m.Email, m.Phone, m.Status, m.E2D, m.Phoenix, dateArg(m.JoinedOn), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update member: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Delete removes a member. Members with financial or sport history are
// refused with ErrInUse; set them inactive instead.
func (s *MemberStore) Delete(ctx context.Context, id int64) error {
	var refs int
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM contributions WHERE member_id = ?)
		      + (SELECT COUNT(*) FROM savings WHERE member_id = ?)
		      + (SELECT COUNT(*) FROM loans WHERE member_id = ?)
		      + (SELECT COUNT(*) FROM sanctions WHERE member_id = ?)
		      + (SELECT COUNT(*) FROM match_cards WHERE member_id = ?)
		      + (SELECT COUNT(*) FROM meeting_attendances WHERE member_id = ?)`,
		id, id, id, id, id, id,
	).Scan(&refs)
	if err != nil {
		return fmt.Errorf("count member references: %w", err)
	}
	if refs > 0 {
		return ErrInUse
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}

func (s *MemberStore) EmailExists(ctx context.Context, email string, excludeID int64) (bool, error) {
	if email == "" {
		return false, nil
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM members WHERE email = ? AND id != ?`,
		email, excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check member email: %w", err)
	}
	return count > 0, nil
}

func (s *MemberStore) Counts(ctx context.Context) (model.MemberCounts, error) {
	var c model.MemberCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(e2d), 0),
		        COALESCE(SUM(phoenix), 0)
		 FROM members`,
		model.MemberActive,
	).Scan(&c.Total, &c.Active, &c.E2D, &c.Phoenix)
	if err != nil {
		return c, fmt.Errorf("count members: %w", err)
	}
	return c, nil
}
