package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/e2dconnect/e2d/internal/model"
)

func TestAdhesionAcceptCreatesMember(t *testing.T) {
	db := setupTestDB(t)
	as := NewAdhesionStore(db)
	ctx := context.Background()

	req, err := as.Create(ctx, model.AdhesionRequest{FirstName: "Marie", LastName: "Essomba", Email: "marie@example.com", Team: model.TeamPhoenix})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.Status != model.AdhesionPending {
		t.Errorf("status = %q, want %q", req.Status, model.AdhesionPending)
	}

	memberID, err := as.Accept(ctx, req.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	m, _ := NewMemberStore(db).GetByID(ctx, memberID)
	if m == nil {
		t.Fatal("expected member to be created")
	}
	if !m.Phoenix || m.E2D {
		t.Errorf("teams = e2d:%v phoenix:%v, want phoenix", m.E2D, m.Phoenix)
	}
	if m.JoinedOn == nil {
		t.Error("expected joined_on to be set")
	}

	got, _ := as.GetByID(ctx, req.ID)
	if got.Status != model.AdhesionAccepted {
		t.Errorf("status = %q, want %q", got.Status, model.AdhesionAccepted)
	}
	if got.MemberID == nil || *got.MemberID != memberID {
		t.Errorf("member_id = %v, want %d", got.MemberID, memberID)
	}
	if got.DecidedAt == nil {
		t.Error("expected decided_at to be set")
	}

	if _, err := as.Accept(ctx, req.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("second accept err = %v, want sql.ErrNoRows", err)
	}
}

func TestAdhesionRejectOnlyPending(t *testing.T) {
	db := setupTestDB(t)
	as := NewAdhesionStore(db)
	ctx := context.Background()

	req, _ := as.Create(ctx, model.AdhesionRequest{FirstName: "Marie", LastName: "Essomba", Email: "marie@example.com"})
	if err := as.Reject(ctx, req.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := as.Reject(ctx, req.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("second reject err = %v, want sql.ErrNoRows", err)
	}

	n, _ := as.CountPending(ctx)
	if n != 0 {
		t.Errorf("pending = %d, want 0", n)
	}
	rejected, _ := as.List(ctx, model.AdhesionRejected)
	if len(rejected) != 1 {
		t.Errorf("rejected = %d, want 1", len(rejected))
	}
}

func TestDonationSumReceived(t *testing.T) {
	db := setupTestDB(t)
	ds := NewDonationStore(db)
	ctx := context.Background()

	d1, err := ds.Create(ctx, model.Donation{DonorName: "Anonyme", Amount: 10000, Method: "especes", Reference: "ref-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ds.Create(ctx, model.Donation{DonorName: "Club", Amount: 5000, Method: "mobile_money", Reference: "ref-2"})

	if d1.Status != model.DonationIntent {
		t.Errorf("status = %q, want %q", d1.Status, model.DonationIntent)
	}
	if _, err := ds.SetStatus(ctx, d1.ID, model.DonationReceived); err != nil {
		t.Fatalf("set status: %v", err)
	}

	received, _ := ds.Sum(ctx, Filter{Status: model.DonationReceived})
	if received != 10000 {
		t.Errorf("received = %d, want 10000", received)
	}
	all, _ := ds.Sum(ctx, Filter{})
	if all != 15000 {
		t.Errorf("all = %d, want 15000", all)
	}

	if _, err := ds.Create(ctx, model.Donation{DonorName: "Dup", Amount: 1, Method: "especes", Reference: "ref-1"}); err == nil {
		t.Error("expected duplicate reference to fail")
	}
}

func TestEventListUpcomingPublic(t *testing.T) {
	db := setupTestDB(t)
	es := NewEventStore(db)
	ctx := context.Background()

	now := mustDate(t, "2024-06-01").Time
	es.Create(ctx, model.Event{Title: "Passé", StartsAt: now.AddDate(0, 0, -3), Public: true})
	es.Create(ctx, model.Event{Title: "Tournoi", StartsAt: now.AddDate(0, 0, 10), Public: true})
	es.Create(ctx, model.Event{Title: "Bureau", StartsAt: now.AddDate(0, 0, 2), Public: false})
	es.Create(ctx, model.Event{Title: "Gala", StartsAt: now.AddDate(0, 0, 5), Public: true})

	events, err := es.ListUpcomingPublic(ctx, now, 10)
	if err != nil {
		t.Fatalf("list upcoming: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Title != "Gala" || events[1].Title != "Tournoi" {
		t.Errorf("order = %q, %q, want Gala, Tournoi", events[0].Title, events[1].Title)
	}
}
