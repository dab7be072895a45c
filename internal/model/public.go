package model

import "time"

type Event struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartsAt    time.Time `json:"starts_at"`
	Location    string    `json:"location"`
	Public      bool      `json:"public"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	DonationIntent   = "intention"
	DonationReceived = "recue"
)

type Donation struct {
	ID         int64     `json:"id"`
	DonorName  string    `json:"donor_name"`
	DonorEmail string    `json:"donor_email"`
	Amount     int64     `json:"amount"`
	Method     string    `json:"method"`
	Status     string    `json:"status"`
	Reference  string    `json:"reference"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	AdhesionPending  = "en_attente"
	AdhesionAccepted = "acceptee"
	AdhesionRejected = "refusee"
)

type AdhesionRequest struct {
	ID        int64      `json:"id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Team      string     `json:"team"`
	Message   string     `json:"message"`
	Status    string     `json:"status"`
	MemberID  *int64     `json:"member_id"`
	DecidedAt *time.Time `json:"decided_at"`
	CreatedAt time.Time  `json:"created_at"`
}
