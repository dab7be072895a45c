package model

import "time"

const (
	TeamE2D     = "e2d"
	TeamPhoenix = "phoenix"
)

const (
	CardYellow = "jaune"
	CardRed    = "rouge"
)

const (
	TransactionReceipt = "recette"
	TransactionExpense = "depense"
)

type Match struct {
	ID           int64     `json:"id"`
	Team         string    `json:"team"`
	Opponent     string    `json:"opponent"`
	PlayedOn     Date      `json:"played_on"`
	Location     string    `json:"location"`
	Home         bool      `json:"home"`
	GoalsFor     int       `json:"goals_for"`
	GoalsAgainst int       `json:"goals_against"`
	Competition  string    `json:"competition"`
	CreatedAt    time.Time `json:"created_at"`
}

// Result is "victoire", "nul" or "defaite" from the team's point of view.
func (m Match) Result() string {
	switch {
	case m.GoalsFor > m.GoalsAgainst:
		return "victoire"
	case m.GoalsFor < m.GoalsAgainst:
		return "defaite"
	default:
		return "nul"
	}
}

type MatchCard struct {
	ID        int64     `json:"id"`
	MatchID   int64     `json:"match_id"`
	MemberID  int64     `json:"member_id"`
	Color     string    `json:"color"`
	Minute    int       `json:"minute"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingCard is a card with no sanction yet, joined with its match.
type PendingCard struct {
	MatchCard
	Team     string `json:"team"`
	Opponent string `json:"opponent"`
	PlayedOn Date   `json:"played_on"`
}

type SportTransaction struct {
	ID         int64     `json:"id"`
	Team       string    `json:"team"`
	Kind       string    `json:"kind"`
	Amount     int64     `json:"amount"`
	Label      string    `json:"label"`
	OccurredOn Date      `json:"occurred_on"`
	CreatedAt  time.Time `json:"created_at"`
}
