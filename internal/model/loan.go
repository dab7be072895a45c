package model

import "time"

const (
	LoanOngoing = "en_cours"
	LoanRepaid  = "rembourse"
	LoanOverdue = "en_retard"
)

type Loan struct {
	ID            int64     `json:"id"`
	MemberID      int64     `json:"member_id"`
	ExerciseID    *int64    `json:"exercise_id"`
	Amount        int64     `json:"amount"`
	InterestRate  float64   `json:"interest_rate"`
	Reconductions int       `json:"reconductions"`
	IssuedOn      Date      `json:"issued_on"`
	DueOn         *Date     `json:"due_on"`
	Status        string    `json:"status"`
	Notes         string    `json:"notes"`
	Paid          int64     `json:"paid"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type LoanPayment struct {
	ID        int64     `json:"id"`
	LoanID    int64     `json:"loan_id"`
	Amount    int64     `json:"amount"`
	PaidOn    Date      `json:"paid_on"`
	CreatedAt time.Time `json:"created_at"`
}
