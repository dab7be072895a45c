package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/e2dconnect/e2d/internal/model"
)

type ContributionStore struct {
	db *sql.DB
}

func NewContributionStore(db *sql.DB) *ContributionStore {
	return &ContributionStore{db: db}
}

// --- Contribution type methods ---

func scanContributionType(scanner interface{ Scan(...any) error }) (*model.ContributionType, error) {
	var t model.ContributionType
	err := scanner.Scan(&t.ID, &t.Name, &t.DefaultAmount, &t.Frequency, &t.Mandatory, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const contributionTypeCols = `id, name, default_amount, frequency, mandatory, created_at`

func (s *ContributionStore) CreateType(ctx context.Context, t model.ContributionType) (*model.ContributionType, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO contribution_types (name, default_amount, frequency, mandatory) VALUES (?, ?, ?, ?)`,
		t.Name, t.DefaultAmount, t.Frequency, t.Mandatory,
	)
	if err != nil {
		return nil, fmt.Errorf("insert contribution type: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetType(ctx, id)
}

func (s *ContributionStore) GetType(ctx context.Context, id int64) (*model.ContributionType, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contributionTypeCols+` FROM contribution_types WHERE id = ?`, id)
	t, err := scanContributionType(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contribution type: %w", err)
	}
	return t, nil
}

func (s *ContributionStore) ListTypes(ctx context.Context) ([]model.ContributionType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+contributionTypeCols+` FROM contribution_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list contribution types: %w", err)
	}
	defer rows.Close()

	var types []model.ContributionType
	for rows.Next() {
		t, err := scanContributionType(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contribution type: %w", err)
		}
		types = append(types, *t)
	}
	return types, rows.Err()
}

func (s *ContributionStore) UpdateType(ctx context.Context, id int64, t model.ContributionType) (*model.ContributionType, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE contribution_types SET name = ?, default_amount = ?, frequency = ?, mandatory = ? WHERE id = ?`,
		t.Name, t.DefaultAmount, t.Frequency, t.Mandatory, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update contribution type: %w", err)
	}
	return s.GetType(ctx, id)
}

func (s *ContributionStore) DeleteType(ctx context.Context, id int64) error {
	var refs int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contributions WHERE type_id = ?`, id).Scan(&refs); err != nil {
		return fmt.Errorf("count contribution type references: %w", err)
	}
	if refs > 0 {
		return ErrInUse
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM contribution_types WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete contribution type: %w", err)
	}
	return nil
}

// --- Contribution methods ---

func scanContribution(scanner interface{ Scan(...any) error }) (*model.Contribution, error) {
	var c model.Contribution
	var exerciseID sql.NullInt64
	err := scanner.Scan(&c.ID, &c.MemberID, &c.TypeID, &exerciseID, &c.Amount, &c.PaidOn, &c.Status, &c.Notes, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.ExerciseID = intPtr(exerciseID)
	return &c, nil
}

const contributionCols = `id, member_id, type_id, exercise_id, amount, paid_on, status, notes, created_at`

func (s *ContributionStore) Create(ctx context.Context, c model.Contribution) (*model.Contribution, error) {
	if c.Status == "" {
		c.Status = model.ContributionPaid
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO contributions (member_id, type_id, exercise_id, amount, paid_on, status, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.MemberID, c.TypeID, nullInt(c.ExerciseID), c.Amount, c.PaidOn, c.Status, c.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert contribution: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ContributionStore) GetByID(ctx context.Context, id int64) (*model.Contribution, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contributionCols+` FROM contributions WHERE id = ?`, id)
	c, err := scanContribution(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contribution: %w", err)
	}
	return c, nil
}

func contributionClauses(f Filter) clauses {
	var c clauses
	if f.MemberID != 0 {
		c.add("member_id = ?", f.MemberID)
	}
	if f.ExerciseID != 0 {
		c.add("exercise_id = ?", f.ExerciseID)
	}
	if f.Status != "" {
		c.add("status = ?", f.Status)
	}
	c.dateRange("paid_on", f)
	return c
}

// List returns contributions matching f, most recent payment first.
func (s *ContributionStore) List(ctx context.Context, f Filter) ([]model.Contribution, error) {
	c := contributionClauses(f)
	q, args := c.query(`SELECT `+contributionCols+` FROM contributions`, "paid_on DESC, id DESC", f.Limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	defer rows.Close()

	var contributions []model.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		contributions = append(contributions, *c)
	}
	return contributions, rows.Err()
}

func (s *ContributionStore) Update(ctx context.Context, id int64, c model.Contribution) (*model.Contribution, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE contributions SET member_id = ?, type_id = ?, exercise_id = ?, amount = ?, paid_on = ?, status = ?, notes = ?
		 WHERE id = ?`,
		c.MemberID, c.TypeID, nullInt(c.ExerciseID), c.Amount, c.PaidOn, c.Status, c.Notes, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update contribution: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ContributionStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM contributions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete contribution: %w", err)
	}
	return nil
}

// Sum totals the amounts of contributions matching f.
func (s *ContributionStore) Sum(ctx context.Context, f Filter) (int64, error) {
	c := contributionClauses(f)
	var total int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM contributions`+c.where(), c.args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum contributions: %w", err)
	}
	return total, nil
}

// MonthlyTotals returns one total per calendar month that has paid
// contributions within f, in chronological order.
func (s *ContributionStore) MonthlyTotals(ctx context.Context, f Filter) ([]model.MonthlyTotal, error) {
	f.Status = model.ContributionPaid
	c := contributionClauses(f)
	rows, err := s.db.QueryContext(ctx,
		`SELECT strftime('%Y-%m', paid_on) AS month, SUM(amount) FROM contributions`+c.where()+
			` GROUP BY month ORDER BY month`,
		c.args...,
	)
	if err != nil {
		return nil, fmt.Errorf("monthly contribution totals: %w", err)
	}
	defer rows.Close()

	var totals []model.MonthlyTotal
	for rows.Next() {
		var t model.MonthlyTotal
		if err := rows.Scan(&t.Month, &t.Total); err != nil {
			return nil, fmt.Errorf("scan monthly total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}
