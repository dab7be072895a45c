package store

import (
	"context"
	"testing"

	"github.com/e2dconnect/e2d/internal/model"
)

func TestSanctionTypesSeeded(t *testing.T) {
	ss := NewSanctionStore(setupTestDB(t))

	types, err := ss.ListTypes(context.Background())
	if err != nil {
		t.Fatalf("list types: %v", err)
	}
	colors := map[string]int64{}
	for _, st := range types {
		if st.CardColor != "" {
			colors[st.CardColor] = st.Amount
		}
	}
	if colors[model.CardYellow] != 500 {
		t.Errorf("yellow amount = %d, want 500", colors[model.CardYellow])
	}
	if colors[model.CardRed] != 2000 {
		t.Errorf("red amount = %d, want 2000", colors[model.CardRed])
	}
}

func TestSanctionCreateForCardIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSanctionStore(db)
	sp := NewSportStore(db)
	ctx := context.Background()
	m := createTestMember(t, db, "Awa", "Ngono")

	match, _ := sp.CreateMatch(ctx, model.Match{Team: model.TeamE2D, Opponent: "FC Mfoundi", PlayedOn: mustDate(t, "2024-04-06")})
	card, err := sp.AddCard(ctx, model.MatchCard{MatchID: match.ID, MemberID: m.ID, Color: model.CardYellow, Minute: 34})
	if err != nil {
		t.Fatalf("add card: %v", err)
	}

	sn := model.Sanction{MemberID: m.ID, Amount: 500, Reason: "Carton jaune", IssuedOn: match.PlayedOn, MatchCardID: &card.ID}
	created, err := ss.CreateForCard(ctx, sn)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if !created {
		t.Error("expected first insert to create a sanction")
	}

	created, err = ss.CreateForCard(ctx, sn)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created {
		t.Error("expected second insert to be skipped")
	}

	list, _ := ss.List(ctx, Filter{MemberID: m.ID})
	if len(list) != 1 {
		t.Fatalf("sanctions = %d, want 1", len(list))
	}
	if list[0].Context != model.ContextSport {
		t.Errorf("context = %q, want %q", list[0].Context, model.ContextSport)
	}
}

func TestSanctionMarkPaidAndCancel(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSanctionStore(db)
	ctx := context.Background()
	m := createTestMember(t, db, "Awa", "Ngono")

	sn, err := ss.Create(ctx, model.Sanction{MemberID: m.ID, Amount: 1000, Context: model.ContextMeeting, IssuedOn: mustDate(t, "2024-02-03")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sn.Status != model.SanctionUnpaid {
		t.Errorf("status = %q, want %q", sn.Status, model.SanctionUnpaid)
	}

	paid, err := ss.MarkPaid(ctx, sn.ID, mustDate(t, "2024-02-10"))
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.Status != model.SanctionPaid || paid.PaidOn == nil {
		t.Errorf("paid = %+v, want status payee with paid_on", paid)
	}

	cancelled, _ := ss.Cancel(ctx, sn.ID)
	if cancelled.Status != model.SanctionCancelled || cancelled.PaidOn != nil {
		t.Errorf("cancelled = %+v, want status annulee without paid_on", cancelled)
	}
}

func TestSanctionSumUnpaid(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSanctionStore(db)
	ctx := context.Background()
	m := createTestMember(t, db, "Awa", "Ngono")

	ss.Create(ctx, model.Sanction{MemberID: m.ID, Amount: 500, Context: model.ContextSport, IssuedOn: mustDate(t, "2024-01-01")})
	ss.Create(ctx, model.Sanction{MemberID: m.ID, Amount: 1000, Context: model.ContextMeeting, IssuedOn: mustDate(t, "2024-01-02")})
	ss.Create(ctx, model.Sanction{MemberID: m.ID, Amount: 2000, Context: model.ContextSport, Status: model.SanctionPaid, IssuedOn: mustDate(t, "2024-01-03")})

	unpaid, err := ss.Sum(ctx, Filter{Status: model.SanctionUnpaid})
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if unpaid != 1500 {
		t.Errorf("unpaid = %d, want 1500", unpaid)
	}
	sport, _ := ss.Sum(ctx, Filter{Context: model.ContextSport})
	if sport != 2500 {
		t.Errorf("sport = %d, want 2500", sport)
	}
}
