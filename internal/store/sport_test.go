package store

import (
	"context"
	"testing"

	"github.com/e2dconnect/e2d/internal/model"
)

func TestSportPendingCards(t *testing.T) {
	db := setupTestDB(t)
	sp := NewSportStore(db)
	ss := NewSanctionStore(db)
	ctx := context.Background()
	m := createTestMember(t, db, "Awa", "Ngono")

	match, err := sp.CreateMatch(ctx, model.Match{Team: model.TeamPhoenix, Opponent: "AS Etoa", PlayedOn: mustDate(t, "2024-05-11"), GoalsFor: 2, GoalsAgainst: 1})
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	c1, _ := sp.AddCard(ctx, model.MatchCard{MatchID: match.ID, MemberID: m.ID, Color: model.CardYellow, Minute: 12})
	sp.AddCard(ctx, model.MatchCard{MatchID: match.ID, MemberID: m.ID, Color: model.CardRed, Minute: 80})

	pending, err := sp.PendingCards(ctx)
	if err != nil {
		t.Fatalf("pending cards: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].Opponent != "AS Etoa" || pending[0].Team != model.TeamPhoenix {
		t.Errorf("pending[0] = %+v, want joined match fields", pending[0])
	}

	ss.CreateForCard(ctx, model.Sanction{MemberID: m.ID, Amount: 500, IssuedOn: match.PlayedOn, MatchCardID: &c1.ID})

	pending, _ = sp.PendingCards(ctx)
	if len(pending) != 1 || pending[0].Color != model.CardRed {
		t.Errorf("pending after sync = %+v, want only the red card", pending)
	}
}

func TestSportCardCounts(t *testing.T) {
	db := setupTestDB(t)
	sp := NewSportStore(db)
	ctx := context.Background()
	m := createTestMember(t, db, "Awa", "Ngono")

	e2d, _ := sp.CreateMatch(ctx, model.Match{Team: model.TeamE2D, Opponent: "A", PlayedOn: mustDate(t, "2024-01-01")})
	phx, _ := sp.CreateMatch(ctx, model.Match{Team: model.TeamPhoenix, Opponent: "B", PlayedOn: mustDate(t, "2024-01-02")})
	sp.AddCard(ctx, model.MatchCard{MatchID: e2d.ID, MemberID: m.ID, Color: model.CardYellow})
	sp.AddCard(ctx, model.MatchCard{MatchID: e2d.ID, MemberID: m.ID, Color: model.CardYellow})
	sp.AddCard(ctx, model.MatchCard{MatchID: phx.ID, MemberID: m.ID, Color: model.CardRed})

	yellow, red, err := sp.CardCounts(ctx, "")
	if err != nil {
		t.Fatalf("card counts: %v", err)
	}
	if yellow != 2 || red != 1 {
		t.Errorf("counts = %d/%d, want 2/1", yellow, red)
	}

	yellow, red, _ = sp.CardCounts(ctx, model.TeamPhoenix)
	if yellow != 0 || red != 1 {
		t.Errorf("phoenix counts = %d/%d, want 0/1", yellow, red)
	}
}

func TestSportTransactionSums(t *testing.T) {
	db := setupTestDB(t)
	sp := NewSportStore(db)
	ctx := context.Background()

	for _, tx := range []model.SportTransaction{
		{Team: model.TeamE2D, Kind: model.TransactionReceipt, Amount: 50000, Label: "Sponsor", OccurredOn: mustDate(t, "2024-03-01")},
		{Team: model.TeamE2D, Kind: model.TransactionExpense, Amount: 15000, Label: "Maillots", OccurredOn: mustDate(t, "2024-03-05")},
		{Team: model.TeamPhoenix, Kind: model.TransactionExpense, Amount: 8000, Label: "Arbitrage", OccurredOn: mustDate(t, "2024-03-09")},
	} {
		if _, err := sp.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("create transaction: %v", err)
		}
	}

	expenses, err := sp.SumTransactions(ctx, Filter{}, model.TransactionExpense)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if expenses != 23000 {
		t.Errorf("expenses = %d, want 23000", expenses)
	}
	e2dReceipts, _ := sp.SumTransactions(ctx, Filter{Team: model.TeamE2D}, model.TransactionReceipt)
	if e2dReceipts != 50000 {
		t.Errorf("e2d receipts = %d, want 50000", e2dReceipts)
	}
}

func TestSportDeleteMatchUnlinksSanction(t *testing.T) {
	db := setupTestDB(t)
	sp := NewSportStore(db)
	ss := NewSanctionStore(db)
	ctx := context.Background()
	m := createTestMember(t, db, "Awa", "Ngono")

	match, _ := sp.CreateMatch(ctx, model.Match{Team: model.TeamE2D, Opponent: "A", PlayedOn: mustDate(t, "2024-01-01")})
	card, _ := sp.AddCard(ctx, model.MatchCard{MatchID: match.ID, MemberID: m.ID, Color: model.CardRed})
	ss.CreateForCard(ctx, model.Sanction{MemberID: m.ID, Amount: 2000, IssuedOn: match.PlayedOn, MatchCardID: &card.ID})

	if err := sp.DeleteMatch(ctx, match.ID); err != nil {
		t.Fatalf("delete match: %v", err)
	}
	list, _ := ss.List(ctx, Filter{})
	if len(list) != 1 {
		t.Fatalf("sanctions = %d, want 1", len(list))
	}
	if list[0].MatchCardID != nil {
		t.Errorf("match_card_id = %v, want nil", *list[0].MatchCardID)
	}
}
