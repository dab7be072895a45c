package store

import (
	"context"
	"errors"
	"testing"

	"github.com/e2dconnect/e2d/internal/model"
)

func TestMemberCreateDefaults(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)
	ctx := context.Background()

	joined := mustDate(t, "2023-09-01")
	m, err := ms.Create(ctx, model.Member{FirstName: "Awa", LastName: "Ngono", Phoenix: true, JoinedOn: &joined})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if m.Status != model.MemberActive {
		t.Errorf("status = %q, want %q", m.Status, model.MemberActive)
	}
	if !m.Phoenix || m.E2D {
		t.Errorf("teams = e2d:%v phoenix:%v, want phoenix only", m.E2D, m.Phoenix)
	}
	if m.JoinedOn == nil || m.JoinedOn.String() != "2023-09-01" {
		t.Errorf("joined_on = %v, want 2023-09-01", m.JoinedOn)
	}
}

func TestMemberGetByIDNotFound(t *testing.T) {
	ms := NewMemberStore(setupTestDB(t))

	m, err := ms.GetByID(context.Background(), 999)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if m != nil {
		t.Error("expected nil for missing member")
	}
}

func TestMemberListFilters(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)
	ctx := context.Background()

	ms.Create(ctx, model.Member{FirstName: "Awa", LastName: "Ngono", E2D: true})
	ms.Create(ctx, model.Member{FirstName: "Paul", LastName: "Biya", Phoenix: true, Email: "paul@example.com"})
	ms.Create(ctx, model.Member{FirstName: "Jean", LastName: "Atangana", E2D: true, Status: model.MemberInactive})

	all, err := ms.List(ctx, MemberFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].LastName != "Atangana" {
		t.Errorf("first = %q, want Atangana (sorted by last name)", all[0].LastName)
	}

	active, _ := ms.List(ctx, MemberFilter{Status: model.MemberActive})
	if len(active) != 2 {
		t.Errorf("active = %d, want 2", len(active))
	}

	phoenix, _ := ms.List(ctx, MemberFilter{Team: model.TeamPhoenix})
	if len(phoenix) != 1 || phoenix[0].FirstName != "Paul" {
		t.Errorf("phoenix = %+v, want Paul only", phoenix)
	}

	found, _ := ms.List(ctx, MemberFilter{Search: "example"})
	if len(found) != 1 {
		t.Errorf("search = %d, want 1", len(found))
	}
}

func TestMemberUpdate(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)
	ctx := context.Background()

	m := createTestMember(t, db, "Awa", "Ngono")
	m.Status = model.MemberSuspended
	m.Phone = "+237600000000"

	got, err := ms.Update(ctx, m.ID, *m)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Status != model.MemberSuspended {
		t.Errorf("status = %q, want %q", got.Status, model.MemberSuspended)
	}
	if got.Phone != "+237600000000" {
		t.Errorf("phone = %q, want %q", got.Phone, "+237600000000")
	}
}

func TestMemberDeleteRefusedWithHistory(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)
	ctx := context.Background()

	m := createTestMember(t, db, "Awa", "Ngono")
	_, err := NewSavingStore(db).Create(ctx, model.Saving{MemberID: m.ID, Amount: 1000, DepositedOn: mustDate(t, "2024-01-10")})
	if err != nil {
		t.Fatalf("create saving: %v", err)
	}

	if err := ms.Delete(ctx, m.ID); !errors.Is(err, ErrInUse) {
		t.Errorf("delete err = %v, want ErrInUse", err)
	}

	free := createTestMember(t, db, "Paul", "Biya")
	if err := ms.Delete(ctx, free.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := ms.GetByID(ctx, free.ID)
	if got != nil {
		t.Error("expected member to be deleted")
	}
}

func TestMemberCounts(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)
	ctx := context.Background()

	ms.Create(ctx, model.Member{FirstName: "A", LastName: "A", E2D: true})
	ms.Create(ctx, model.Member{FirstName: "B", LastName: "B", E2D: true, Phoenix: true})
	ms.Create(ctx, model.Member{FirstName: "C", LastName: "C", Phoenix: true, Status: model.MemberInactive})

	c, err := ms.Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	want := model.MemberCounts{Total: 3, Active: 2, E2D: 2, Phoenix: 2}
	if c != want {
		t.Errorf("counts = %+v, want %+v", c, want)
	}
}

func TestMemberEmailExists(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMemberStore(db)
	ctx := context.Background()

	m, _ := ms.Create(ctx, model.Member{FirstName: "Awa", LastName: "Ngono", Email: "awa@example.com"})

	exists, err := ms.EmailExists(ctx, "awa@example.com", 0)
	if err != nil {
		t.Fatalf("email exists: %v", err)
	}
	if !exists {
		t.Error("expected email to exist")
	}
	exists, _ = ms.EmailExists(ctx, "awa@example.com", m.ID)
	if exists {
		t.Error("expected own email to be excluded")
	}
}
