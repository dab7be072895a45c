// Package sanction turns match cards into sanctions.
package sanction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/e2dconnect/e2d/internal/model"
	"github.com/e2dconnect/e2d/internal/store"
)

type Failure struct {
	CardID int64  `json:"card_id"`
	Error  string `json:"error"`
}

// Report summarizes one sync run.
type Report struct {
	Created int       `json:"created"`
	Skipped int       `json:"skipped"`
	Failed  []Failure `json:"failed"`
}

// Syncer creates one sanction per match card that has none yet.
type Syncer struct {
	sport     *store.SportStore
	sanctions *store.SanctionStore
	logger    *slog.Logger
}

func NewSyncer(sport *store.SportStore, sanctions *store.SanctionStore, logger *slog.Logger) *Syncer {
	return &Syncer{
		sport:     sport,
		sanctions: sanctions,
		logger:    logger.With("component", "sanction_sync"),
	}
}

// Run processes every pending card. A failing card is recorded in the
// report and does not stop the others. Cards already sanctioned are
// skipped, so repeated runs are harmless.
func (s *Syncer) Run(ctx context.Context) (Report, error) {
	report := Report{Failed: []Failure{}}

	cards, err := s.sport.PendingCards(ctx)
	if err != nil {
		return report, fmt.Errorf("load pending cards: %w", err)
	}
	if len(cards) == 0 {
		return report, nil
	}

	types, err := s.sanctions.ListTypes(ctx)
	if err != nil {
		return report, fmt.Errorf("load sanction types: %w", err)
	}
	byColor := make(map[string]model.SanctionType)
	for _, t := range types {
		if t.CardColor != "" {
			byColor[t.CardColor] = t
		}
	}

	for _, card := range cards {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		st, ok := byColor[card.Color]
		if !ok {
			s.fail(&report, card, fmt.Errorf("no sanction type for %s card", card.Color))
			continue
		}

		cardID := card.ID
		typeID := st.ID
		created, err := s.sanctions.CreateForCard(ctx, model.Sanction{
			MemberID:    card.MemberID,
			TypeID:      &typeID,
			Amount:      st.Amount,
			Reason:      Reason(st.Name, card),
			IssuedOn:    card.PlayedOn,
			MatchCardID: &cardID,
		})
		if err != nil {
			s.fail(&report, card, err)
			continue
		}
		if created {
			report.Created++
		} else {
			report.Skipped++
		}
	}

	s.logger.Info("sanction sync finished",
		"created", report.Created, "skipped", report.Skipped, "failed", len(report.Failed))
	return report, nil
}

func (s *Syncer) fail(report *Report, card model.PendingCard, err error) {
	s.logger.Error("sanction sync failed", "card_id", card.ID, "member_id", card.MemberID, "error", err)
	report.Failed = append(report.Failed, Failure{CardID: card.ID, Error: err.Error()})
}

// Reason names the card and the match it was given in.
func Reason(typeName string, card model.PendingCard) string {
	reason := fmt.Sprintf("%s - %s vs %s (%s)", typeName, teamLabel(card.Team), card.Opponent, card.PlayedOn)
	if card.Minute > 0 {
		reason += fmt.Sprintf(", %d'", card.Minute)
	}
	return reason
}

func teamLabel(team string) string {
	switch team {
	case model.TeamPhoenix:
		return "Phoenix"
	default:
		return "E2D"
	}
}
