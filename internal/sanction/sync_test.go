package sanction

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/e2dconnect/e2d/internal/database"
	"github.com/e2dconnect/e2d/internal/model"
	"github.com/e2dconnect/e2d/internal/store"
)

type fixture struct {
	db        *sql.DB
	sport     *store.SportStore
	sanctions *store.SanctionStore
	syncer    *Syncer
	member    *model.Member
	match     *model.Match
}

func setup(t *testing.T) fixture {
	t.Helper()
	db, err := database.Open(database.MemoryPath)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := fixture{
		db:        db,
		sport:     store.NewSportStore(db),
		sanctions: store.NewSanctionStore(db),
	}
	f.syncer = NewSyncer(f.sport, f.sanctions, logger)

	f.member, err = store.NewMemberStore(db).Create(ctx, model.Member{FirstName: "Awa", LastName: "Ngono", E2D: true})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	played, _ := model.ParseDate("2024-04-13")
	f.match, err = f.sport.CreateMatch(ctx, model.Match{Team: model.TeamE2D, Opponent: "FC Mvog-Ada", PlayedOn: played})
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	return f
}

func (f fixture) card(t *testing.T, color string, minute int) *model.MatchCard {
	t.Helper()
	c, err := f.sport.AddCard(context.Background(), model.MatchCard{MatchID: f.match.ID, MemberID: f.member.ID, Color: color, Minute: minute})
	if err != nil {
		t.Fatalf("add card: %v", err)
	}
	return c
}

func TestRunCreatesSanctionPerCard(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.card(t, model.CardYellow, 20)
	red := f.card(t, model.CardRed, 75)

	report, err := f.syncer.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Created != 2 || report.Skipped != 0 || len(report.Failed) != 0 {
		t.Fatalf("report = %+v, want 2 created", report)
	}

	list, _ := f.sanctions.List(ctx, store.Filter{MemberID: f.member.ID})
	if len(list) != 2 {
		t.Fatalf("sanctions = %d, want 2", len(list))
	}
	var total int64
	for _, sn := range list {
		total += sn.Amount
		if sn.Context != model.ContextSport {
			t.Errorf("context = %q, want %q", sn.Context, model.ContextSport)
		}
		if sn.IssuedOn.String() != "2024-04-13" {
			t.Errorf("issued_on = %s, want match date", sn.IssuedOn)
		}
		if sn.MatchCardID != nil && *sn.MatchCardID == red.ID && !strings.Contains(sn.Reason, "Carton rouge") {
			t.Errorf("reason = %q, want it to name the red card", sn.Reason)
		}
	}
	if total != 2500 {
		t.Errorf("total = %d, want 2500", total)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.card(t, model.CardYellow, 10)

	if _, err := f.syncer.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	report, err := f.syncer.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.Created != 0 {
		t.Errorf("created on second run = %d, want 0", report.Created)
	}

	var count int
	f.db.QueryRow(`SELECT COUNT(*) FROM sanctions`).Scan(&count)
	if count != 1 {
		t.Errorf("sanctions = %d, want 1", count)
	}
}

func TestRunReportsMissingType(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.card(t, model.CardYellow, 10)
	red := f.card(t, model.CardRed, 50)

	if _, err := f.db.Exec(`DELETE FROM sanction_types WHERE card_color = 'rouge'`); err != nil {
		t.Fatalf("delete red type: %v", err)
	}

	report, err := f.syncer.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Created != 1 {
		t.Errorf("created = %d, want 1", report.Created)
	}
	if len(report.Failed) != 1 || report.Failed[0].CardID != red.ID {
		t.Fatalf("failed = %+v, want the red card", report.Failed)
	}
	if !strings.Contains(report.Failed[0].Error, "rouge") {
		t.Errorf("error = %q, want it to mention the color", report.Failed[0].Error)
	}
}

func TestRunNothingPending(t *testing.T) {
	f := setup(t)
	report, err := f.syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Created != 0 || len(report.Failed) != 0 {
		t.Errorf("report = %+v, want empty", report)
	}
}

func TestReason(t *testing.T) {
	played, _ := model.ParseDate("2024-04-13")
	card := model.PendingCard{
		MatchCard: model.MatchCard{Minute: 67},
		Team:      model.TeamPhoenix,
		Opponent:  "AS Etoa",
		PlayedOn:  played,
	}
	want := "Carton jaune - Phoenix vs AS Etoa (2024-04-13), 67'"
	if got := Reason("Carton jaune", card); got != want {
		t.Errorf("Reason = %q, want %q", got, want)
	}
}
