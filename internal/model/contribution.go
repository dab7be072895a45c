package model

import "time"

const (
	FrequencyMonthly = "mensuelle"
	FrequencyYearly  = "annuelle"
	FrequencyOnce    = "ponctuelle"
)

const (
	ContributionPaid    = "payee"
	ContributionPending = "en_attente"
)

type ContributionType struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	DefaultAmount int64     `json:"default_amount"`
	Frequency     string    `json:"frequency"`
	Mandatory     bool      `json:"mandatory"`
	CreatedAt     time.Time `json:"created_at"`
}

type Contribution struct {
	ID         int64     `json:"id"`
	MemberID   int64     `json:"member_id"`
	TypeID     int64     `json:"type_id"`
	ExerciseID *int64    `json:"exercise_id"`
	Amount     int64     `json:"amount"`
	PaidOn     Date      `json:"paid_on"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
}

// MonthlyTotal is the sum of amounts for one YYYY-MM month.
type MonthlyTotal struct {
	Month string `json:"month"`
	Total int64  `json:"total"`
}
