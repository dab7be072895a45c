package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/e2dconnect/e2d/internal/model"
)

type LoanStore struct {
	db *sql.DB
}

func NewLoanStore(db *sql.DB) *LoanStore {
	return &LoanStore{db: db}
}

func scanLoan(scanner interface{ Scan(...any) error }) (*model.Loan, error) {
	var l model.Loan
	var exerciseID sql.NullInt64
	var due nullDate
	err := scanner.Scan(&l.ID, &l.MemberID, &exerciseID, &l.Amount, &l.InterestRate, &l.Reconductions,
		&l.IssuedOn, &due, &l.Status, &l.Notes, &l.Paid, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.ExerciseID = intPtr(exerciseID)
	l.DueOn = due.ptr()
	return &l, nil
}

// loanCols includes the running total of repayments as "paid".
const loanCols = `l.id, l.member_id, l.exercise_id, l.amount, l.interest_rate, l.reconductions,
	l.issued_on, l.due_on, l.status, l.notes,
	COALESCE((SELECT SUM(p.amount) FROM loan_payments p WHERE p.loan_id = l.id), 0),
	l.created_at, l.updated_at`

func (s *LoanStore) Create(ctx context.Context, l model.Loan) (*model.Loan, error) {
	if l.Status == "" {
		l.Status = model.LoanOngoing
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO loans (member_id, exercise_id, amount, interest_rate, reconductions, issued_on, due_on, status, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.MemberID, nullInt(l.ExerciseID), l.Amount, l.InterestRate, l.Reconductions,
		l.IssuedOn, dateArg(l.DueOn), l.Status, l.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert loan: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *LoanStore) GetByID(ctx context.Context, id int64) (*model.Loan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+loanCols+` FROM loans l WHERE l.id = ?`, id)
	l, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get loan: %w", err)
	}
	return l, nil
}

func loanClauses(f Filter) clauses {
	var c clauses
	if f.MemberID != 0 {
		c.add("l.member_id = ?", f.MemberID)
	}
	if f.ExerciseID != 0 {
		c.add("l.exercise_id = ?", f.ExerciseID)
	}
	if f.Status != "" {
		c.add("l.status = ?", f.Status)
	}
	c.dateRange("l.issued_on", f)
	return c
}

func (s *LoanStore) List(ctx context.Context, f Filter) ([]model.Loan, error) {
	c := loanClauses(f)
	q, args := c.query(`SELECT `+loanCols+` FROM loans l`, "l.issued_on DESC, l.id DESC", f.Limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	var loans []model.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		loans = append(loans, *l)
	}
	return loans, rows.Err()
}

func (s *LoanStore) Update(ctx context.Context, id int64, l model.Loan) (*model.Loan, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE loans SET member_id = ?, exercise_id = ?, amount = ?, interest_rate = ?, reconductions = ?,
		 issued_on = ?, due_on = ?, status = ?, notes = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		l.MemberID, nullInt(l.ExerciseID), l.Amount, l.InterestRate, l.Reconductions,
		l.IssuedOn, dateArg(l.DueOn), l.Status, l.Notes, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update loan: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *LoanStore) SetStatus(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE loans SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set loan status: %w", err)
	}
	return nil
}

// MarkOverdue flags ongoing loans whose due date is before today and
// returns how many changed.
func (s *LoanStore) MarkOverdue(ctx context.Context, today model.Date) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE loans SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE status = ? AND due_on IS NOT NULL AND due_on < ?`,
		model.LoanOverdue, model.LoanOngoing, today,
	)
	if err != nil {
		return 0, fmt.Errorf("mark overdue loans: %w", err)
	}
	return result.RowsAffected()
}

// Renew extends a loan by one period, which adds one more interest charge.
func (s *LoanStore) Renew(ctx context.Context, id int64, due *model.Date) (*model.Loan, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE loans SET reconductions = reconductions + 1, due_on = COALESCE(?, due_on),
		 status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		dateArg(due), model.LoanOngoing, id,
	)
	if err != nil {
		return nil, fmt.Errorf("renew loan: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Delete removes a loan and its repayments.
func (s *LoanStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete loan: %w", err)
	}
	return nil
}

// SumIssued totals the principal of loans matching f.
func (s *LoanStore) SumIssued(ctx context.Context, f Filter) (int64, error) {
	c := loanClauses(f)
	var total int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(l.amount), 0) FROM loans l`+c.where(), c.args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum loans: %w", err)
	}
	return total, nil
}

// --- Repayment methods ---

func (s *LoanStore) AddPayment(ctx context.Context, loanID, amount int64, paidOn model.Date) (*model.LoanPayment, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO loan_payments (loan_id, amount, paid_on) VALUES (?, ?, ?)`,
		loanID, amount, paidOn,
	)
	if err != nil {
		return nil, fmt.Errorf("insert loan payment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	var p model.LoanPayment
	err = s.db.QueryRowContext(ctx,
		`SELECT id, loan_id, amount, paid_on, created_at FROM loan_payments WHERE id = ?`, id,
	).Scan(&p.ID, &p.LoanID, &p.Amount, &p.PaidOn, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get loan payment: %w", err)
	}
	return &p, nil
}

func (s *LoanStore) ListPayments(ctx context.Context, loanID int64) ([]model.LoanPayment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, loan_id, amount, paid_on, created_at FROM loan_payments WHERE loan_id = ? ORDER BY paid_on, id`,
		loanID,
	)
	if err != nil {
		return nil, fmt.Errorf("list loan payments: %w", err)
	}
	defer rows.Close()

	var payments []model.LoanPayment
	for rows.Next() {
		var p model.LoanPayment
		if err := rows.Scan(&p.ID, &p.LoanID, &p.Amount, &p.PaidOn, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan loan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
