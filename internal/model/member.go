package model

import "time"

const (
	MemberActive    = "actif"
	MemberInactive  = "inactif"
	MemberSuspended = "suspendu"
)

type Member struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Status    string    `json:"status"`
	E2D       bool      `json:"e2d"`
	Phoenix   bool      `json:"phoenix"`
	JoinedOn  *Date     `json:"joined_on"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m Member) FullName() string {
	return m.FirstName + " " + m.LastName
}

type MemberCounts struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	E2D     int `json:"e2d"`
	Phoenix int `json:"phoenix"`
}
