package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/e2dconnect/e2d/internal/model"
)

type SavingStore struct {
	db *sql.DB
}

func NewSavingStore(db *sql.DB) *SavingStore {
	return &SavingStore{db: db}
}

func scanSaving(scanner interface{ Scan(...any) error }) (*model.Saving, error) {
	var sv model.Saving
	var exerciseID, meetingID sql.NullInt64
	err := scanner.Scan(&sv.ID, &sv.MemberID, &exerciseID, &meetingID, &sv.Amount, &sv.DepositedOn, &sv.Notes, &sv.CreatedAt)
	if err != nil {
		return nil, err
	}
	sv.ExerciseID = intPtr(exerciseID)
	sv.MeetingID = intPtr(meetingID)
	return &sv, nil
}

const savingCols = `id, member_id, exercise_id, meeting_id, amount, deposited_on, notes, created_at`

func (s *SavingStore) Create(ctx context.Context, sv model.Saving) (*model.Saving, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO savings (member_id, exercise_id, meeting_id, amount, deposited_on, notes) VALUES (?, ?, ?, ?, ?, ?)`,
		sv.MemberID, nullInt(sv.ExerciseID), nullInt(sv.MeetingID), sv.Amount, sv.DepositedOn, sv.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert saving: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *SavingStore) GetByID(ctx context.Context, id int64) (*model.Saving, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+savingCols+` FROM savings WHERE id = ?`, id)
	sv, err := scanSaving(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get saving: %w", err)
	}
	return sv, nil
}

func savingClauses(f Filter) clauses {
	var c clauses
	if f.MemberID != 0 {
		c.add("member_id = ?", f.MemberID)
	}
	if f.ExerciseID != 0 {
		c.add("exercise_id = ?", f.ExerciseID)
	}
	c.dateRange("deposited_on", f)
	return c
}

func (s *SavingStore) List(ctx context.Context, f Filter) ([]model.Saving, error) {
	c := savingClauses(f)
	q, args := c.query(`SELECT `+savingCols+` FROM savings`, "deposited_on DESC, id DESC", f.Limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list savings: %w", err)
	}
	defer rows.Close()

	var savings []model.Saving
	for rows.Next() {
		sv, err := scanSaving(rows)
		if err != nil {
			return nil, fmt.Errorf("scan saving: %w", err)
		}
		savings = append(savings, *sv)
	}
	return savings, rows.Err()
}

func (s *SavingStore) Update(ctx context.Context, id int64, sv model.Saving) (*model.Saving, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE savings SET member_id = ?, exercise_id = ?, meeting_id = ?, amount = ?, deposited_on = ?, notes = ? WHERE id = ?`,
		sv.MemberID, nullInt(sv.ExerciseID), nullInt(sv.MeetingID), sv.Amount, sv.DepositedOn, sv.Notes, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update saving: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *SavingStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM savings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete saving: %w", err)
	}
	return nil
}

func (s *SavingStore) Sum(ctx context.Context, f Filter) (int64, error) {
	c := savingClauses(f)
	var total int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM savings`+c.where(), c.args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum savings: %w", err)
	}
	return total, nil
}

// TotalsByMember returns each saver's total within f.
func (s *SavingStore) TotalsByMember(ctx context.Context, f Filter) (map[int64]int64, error) {
	c := savingClauses(f)
	rows, err := s.db.QueryContext(ctx,
		`SELECT member_id, SUM(amount) FROM savings`+c.where()+` GROUP BY member_id`,
		c.args...,
	)
	if err != nil {
		return nil, fmt.Errorf("savings by member: %w", err)
	}
	defer rows.Close()

	totals := make(map[int64]int64)
	for rows.Next() {
		var memberID, total int64
		if err := rows.Scan(&memberID, &total); err != nil {
			return nil, fmt.Errorf("scan member savings: %w", err)
		}
		totals[memberID] = total
	}
	return totals, rows.Err()
}
