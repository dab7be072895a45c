package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/e2dconnect/e2d/internal/model"
)

type SanctionStore struct {
	db *sql.DB
}

func NewSanctionStore(db *sql.DB) *SanctionStore {
	return &SanctionStore{db: db}
}

// --- Sanction type methods ---

func scanSanctionType(scanner interface{ Scan(...any) error }) (*model.SanctionType, error) {
	var t model.SanctionType
	var color sql.NullString
	err := scanner.Scan(&t.ID, &t.Name, &t.Amount, &t.Context, &color, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.CardColor = color.String
	return &t, nil
}

const sanctionTypeCols = `id, name, amount, context, card_color, created_at`

func (s *SanctionStore) CreateType(ctx context.Context, t model.SanctionType) (*model.SanctionType, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO sanction_types (name, amount, context, card_color) VALUES (?, ?, ?, ?)`,
		t.Name, t.Amount, t.Context, nullString(t.CardColor),
	)
	if err != nil {
		return nil, fmt.Errorf("insert sanction type: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetType(ctx, id)
}

func (s *SanctionStore) GetType(ctx context.Context, id int64) (*model.SanctionType, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sanctionTypeCols+` FROM sanction_types WHERE id = ?`, id)
	t, err := scanSanctionType(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sanction type: %w", err)
	}
	return t, nil
}

func (s *SanctionStore) ListTypes(ctx context.Context) ([]model.SanctionType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sanctionTypeCols+` FROM sanction_types ORDER BY context, name`)
	if err != nil {
		return nil, fmt.Errorf("list sanction types: %w", err)
	}
	defer rows.Close()

	var types []model.SanctionType
	for rows.Next() {
		t, err := scanSanctionType(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sanction type: %w", err)
		}
		types = append(types, *t)
	}
	return types, rows.Err()
}

func (s *SanctionStore) UpdateType(ctx context.Context, id int64, t model.SanctionType) (*model.SanctionType, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sanction_types SET name = ?, amount = ?, context = ?, card_color = ? WHERE id = ?`,
		t.Name, t.Amount, t.Context, nullString(t.CardColor), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update sanction type: %w", err)
	}
	return s.GetType(ctx, id)
}

// DeleteType removes a type; existing sanctions keep their amount and lose the link.
func (s *SanctionStore) DeleteType(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sanction_types WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete sanction type: %w", err)
	}
	return nil
}

// --- Sanction methods ---

func scanSanction(scanner interface{ Scan(...any) error }) (*model.Sanction, error) {
	var sn model.Sanction
	var typeID, cardID, meetingID sql.NullInt64
	var paid nullDate
	err := scanner.Scan(&sn.ID, &sn.MemberID, &typeID, &sn.Amount, &sn.Reason, &sn.Context, &sn.Status,
		&sn.IssuedOn, &paid, &cardID, &meetingID, &sn.CreatedAt)
	if err != nil {
		return nil, err
	}
	sn.TypeID = intPtr(typeID)
	sn.MatchCardID = intPtr(cardID)
	sn.MeetingID = intPtr(meetingID)
	sn.PaidOn = paid.ptr()
	return &sn, nil
}

const sanctionCols = `id, member_id, type_id, amount, reason, context, status, issued_on, paid_on, match_card_id, meeting_id, created_at`

func (s *SanctionStore) Create(ctx context.Context, sn model.Sanction) (*model.Sanction, error) {
	if sn.Status == "" {
		sn.Status = model.SanctionUnpaid
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO sanctions (member_id, type_id, amount, reason, context, status, issued_on, paid_on, match_card_id, meeting_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sn.MemberID, nullInt(sn.TypeID), sn.Amount, sn.Reason, sn.Context, sn.Status,
		sn.IssuedOn, dateArg(sn.PaidOn), nullInt(sn.MatchCardID), nullInt(sn.MeetingID),
	)
	if err != nil {
		return nil, fmt.Errorf("insert sanction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// CreateForCard inserts the sanction for a match card unless one already
// exists for it. It reports whether a row was inserted.
func (s *SanctionStore) CreateForCard(ctx context.Context, sn model.Sanction) (bool, error) {
	if sn.MatchCardID == nil {
		return false, fmt.Errorf("create card sanction: missing match card id")
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO sanctions (member_id, type_id, amount, reason, context, status, issued_on, match_card_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(match_card_id) DO NOTHING`,
		sn.MemberID, nullInt(sn.TypeID), sn.Amount, sn.Reason, model.ContextSport, model.SanctionUnpaid,
		sn.IssuedOn, *sn.MatchCardID,
	)
	if err != nil {
		return false, fmt.Errorf("insert card sanction: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *SanctionStore) GetByID(ctx context.Context, id int64) (*model.Sanction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sanctionCols+` FROM sanctions WHERE id = ?`, id)
	sn, err := scanSanction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sanction: %w", err)
	}
	return sn, nil
}

func sanctionClauses(f Filter) clauses {
	var c clauses
	if f.MemberID != 0 {
		c.add("member_id = ?", f.MemberID)
	}
	if f.Status != "" {
		c.add("status = ?", f.Status)
	}
	if f.Context != "" {
		c.add("context = ?", f.Context)
	}
	c.dateRange("issued_on", f)
	return c
}

func (s *SanctionStore) List(ctx context.Context, f Filter) ([]model.Sanction, error) {
	c := sanctionClauses(f)
	q, args := c.query(`SELECT `+sanctionCols+` FROM sanctions`, "issued_on DESC, id DESC", f.Limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sanctions: %w", err)
	}
	defer rows.Close()

	var sanctions []model.Sanction
	for rows.Next() {
		sn, err := scanSanction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sanction: %w", err)
		}
		sanctions = append(sanctions, *sn)
	}
	return sanctions, rows.Err()
}

func (s *SanctionStore) Update(ctx context.Context, id int64, sn model.Sanction) (*model.Sanction, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sanctions SET member_id = ?, type_id = ?, amount = ?, reason = ?, context = ?, status = ?,
		 issued_on = ?, paid_on = ?, meeting_id = ? WHERE id = ?`,
		sn.MemberID, nullInt(sn.TypeID), sn.Amount, sn.Reason, sn.Context, sn.Status,
		sn.IssuedOn, dateArg(sn.PaidOn), nullInt(sn.MeetingID), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update sanction: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *SanctionStore) MarkPaid(ctx context.Context, id int64, paidOn model.Date) (*model.Sanction, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sanctions SET status = ?, paid_on = ? WHERE id = ?`,
		model.SanctionPaid, paidOn, id,
	)
	if err != nil {
		return nil, fmt.Errorf("mark sanction paid: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *SanctionStore) Cancel(ctx context.Context, id int64) (*model.Sanction, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sanctions SET status = ?, paid_on = NULL WHERE id = ?`,
		model.SanctionCancelled, id,
	)
	if err != nil {
		return nil, fmt.Errorf("cancel sanction: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *SanctionStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sanctions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete sanction: %w", err)
	}
	return nil
}

func (s *SanctionStore) Sum(ctx context.Context, f Filter) (int64, error) {
	c := sanctionClauses(f)
	var total int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM sanctions`+c.where(), c.args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum sanctions: %w", err)
	}
	return total, nil
}
