package store

import (
	"context"
	"testing"

	"github.com/e2dconnect/e2d/internal/model"
)

func TestMeetingAttendanceReplace(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMeetingStore(db)
	ctx := context.Background()
	a := createTestMember(t, db, "Awa", "Ngono")
	b := createTestMember(t, db, "Paul", "Biya")

	mt, err := ms.Create(ctx, model.Meeting{Title: "AG mensuelle", HeldOn: mustDate(t, "2024-02-04")})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	if mt.Status != model.MeetingPlanned {
		t.Errorf("status = %q, want %q", mt.Status, model.MeetingPlanned)
	}

	err = ms.SetAttendance(ctx, mt.ID, []model.Attendance{
		{MemberID: a.ID, Status: model.AttendancePresent},
		{MemberID: b.ID, Status: model.AttendanceAbsent},
	})
	if err != nil {
		t.Fatalf("set attendance: %v", err)
	}
	ms.SetAttendance(ctx, mt.ID, []model.Attendance{{MemberID: a.ID, Status: model.AttendanceExcused}})

	sheet, err := ms.ListAttendance(ctx, mt.ID)
	if err != nil {
		t.Fatalf("list attendance: %v", err)
	}
	if len(sheet) != 1 || sheet[0].Status != model.AttendanceExcused {
		t.Errorf("sheet = %+v, want one excused entry", sheet)
	}
}

func TestMeetingAttendanceRate(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMeetingStore(db)
	ctx := context.Background()
	a := createTestMember(t, db, "Awa", "Ngono")

	marks := []struct{ date, status string }{
		{"2024-01-07", model.AttendancePresent},
		{"2024-02-04", model.AttendancePresent},
		{"2024-03-03", model.AttendanceAbsent},
	}
	for _, mk := range marks {
		mt, _ := ms.Create(ctx, model.Meeting{Title: "Réunion", HeldOn: mustDate(t, mk.date)})
		ms.SetAttendance(ctx, mt.ID, []model.Attendance{{MemberID: a.ID, Status: mk.status}})
	}

	present, total, err := ms.AttendanceRate(ctx, a.ID)
	if err != nil {
		t.Fatalf("attendance rate: %v", err)
	}
	if present != 2 || total != 3 {
		t.Errorf("rate = %d/%d, want 2/3", present, total)
	}
}

func TestMeetingDeleteKeepsSavings(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMeetingStore(db)
	ctx := context.Background()
	a := createTestMember(t, db, "Awa", "Ngono")

	mt, _ := ms.Create(ctx, model.Meeting{Title: "Tontine", HeldOn: mustDate(t, "2024-03-03")})
	sv, _ := NewSavingStore(db).Create(ctx, model.Saving{MemberID: a.ID, MeetingID: &mt.ID, Amount: 2500, DepositedOn: mt.HeldOn})

	if err := ms.Delete(ctx, mt.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := NewSavingStore(db).GetByID(ctx, sv.ID)
	if got == nil {
		t.Fatal("expected saving to survive meeting deletion")
	}
	if got.MeetingID != nil {
		t.Errorf("meeting_id = %d, want nil", *got.MeetingID)
	}
}
