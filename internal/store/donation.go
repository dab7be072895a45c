package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/e2dconnect/e2d/internal/model"
)

type DonationStore struct {
	db *sql.DB
}

func NewDonationStore(db *sql.DB) *DonationStore {
	return &DonationStore{db: db}
}

func scanDonation(scanner interface{ Scan(...any) error }) (*model.Donation, error) {
	var d model.Donation
	err := scanner.Scan(&d.ID, &d.DonorName, &d.DonorEmail, &d.Amount, &d.Method, &d.Status, &d.Reference, &d.Message, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

const donationCols = `id, donor_name, donor_email, amount, method, status, reference, message, created_at`

// Create records a donation intent. The caller supplies a unique reference.
func (s *DonationStore) Create(ctx context.Context, d model.Donation) (*model.Donation, error) {
	if d.Status == "" {
		d.Status = model.DonationIntent
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO donations (donor_name, donor_email, amount, method, status, reference, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.DonorName, d.DonorEmail, d.Amount, d.Method, d.Status, d.Reference, d.Message,
	)
	if err != nil {
		return nil, fmt.Errorf("insert donation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *DonationStore) GetByID(ctx context.Context, id int64) (*model.Donation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+donationCols+` FROM donations WHERE id = ?`, id)
	d, err := scanDonation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get donation: %w", err)
	}
	return d, nil
}

func donationClauses(f Filter) clauses {
	var c clauses
	if f.Status != "" {
		c.add("status = ?", f.Status)
	}
	c.dateRange("date(created_at)", f)
	return c
}

func (s *DonationStore) List(ctx context.Context, f Filter) ([]model.Donation, error) {
	c := donationClauses(f)
	q, args := c.query(`SELECT `+donationCols+` FROM donations`, "created_at DESC, id DESC", f.Limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	defer rows.Close()

	var donations []model.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		donations = append(donations, *d)
	}
	return donations, rows.Err()
}

func (s *DonationStore) SetStatus(ctx context.Context, id int64, status string) (*model.Donation, error) {
	if _, err := s.db.ExecContext(ctx, `UPDATE donations SET status = ? WHERE id = ?`, status, id); err != nil {
		return nil, fmt.Errorf("set donation status: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *DonationStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM donations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete donation: %w", err)
	}
	return nil
}

func (s *DonationStore) Sum(ctx context.Context, f Filter) (int64, error) {
	c := donationClauses(f)
	var total int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM donations`+c.where(), c.args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum donations: %w", err)
	}
	return total, nil
}
