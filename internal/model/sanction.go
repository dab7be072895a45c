package model

import "time"

const (
	ContextSport   = "sport"
	ContextMeeting = "reunion"
)

const (
	SanctionUnpaid    = "impayee"
	SanctionPaid      = "payee"
	SanctionCancelled = "annulee"
)

type SanctionType struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Amount    int64     `json:"amount"`
	Context   string    `json:"context"`
	CardColor string    `json:"card_color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Sanction struct {
	ID          int64     `json:"id"`
	MemberID    int64     `json:"member_id"`
	TypeID      *int64    `json:"type_id"`
	Amount      int64     `json:"amount"`
	Reason      string    `json:"reason"`
	Context     string    `json:"context"`
	Status      string    `json:"status"`
	IssuedOn    Date      `json:"issued_on"`
	PaidOn      *Date     `json:"paid_on"`
	MatchCardID *int64    `json:"match_card_id"`
	MeetingID   *int64    `json:"meeting_id"`
	CreatedAt   time.Time `json:"created_at"`
}
