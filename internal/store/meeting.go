package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/e2dconnect/e2d/internal/model"
)

type MeetingStore struct {
	db *sql.DB
}

func NewMeetingStore(db *sql.DB) *MeetingStore {
	return &MeetingStore{db: db}
}

func scanMeeting(scanner interface{ Scan(...any) error }) (*model.Meeting, error) {
	var m model.Meeting
	err := scanner.Scan(&m.ID, &m.Title, &m.HeldOn, &m.Location, &m.Agenda, &m.Minutes, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const meetingCols = `id, title, held_on, location, agenda, minutes, status, created_at, updated_at`

func (s *MeetingStore) Create(ctx context.Context, m model.Meeting) (*model.Meeting, error) {
	if m.Status == "" {
		m.Status = model.MeetingPlanned
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO meetings (title, held_on, location, agenda, minutes, status) VALUES (?, ?, ?, ?, ?, ?)`,
		m.Title, m.HeldOn, m.Location, m.Agenda, m.Minutes, m.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("insert meeting: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *MeetingStore) GetByID(ctx context.Context, id int64) (*model.Meeting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+meetingCols+` FROM meetings WHERE id = ?`, id)
	m, err := scanMeeting(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get meeting: %w", err)
	}
	return m, nil
}

func (s *MeetingStore) List(ctx context.Context, f Filter) ([]model.Meeting, error) {
	var c clauses
	if f.Status != "" {
		c.add("status = ?", f.Status)
	}
	c.dateRange("held_on", f)
	q, args := c.query(`SELECT `+meetingCols+` FROM meetings`, "held_on DESC", f.Limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	var meetings []model.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		meetings = append(meetings, *m)
	}
	return meetings, rows.Err()
}

func (s *MeetingStore) Update(ctx context.Context, id int64, m model.Meeting) (*model.Meeting, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE meetings SET title = ?, held_on = ?, location = ?, agenda = ?, minutes = ?, status = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		m.Title, m.HeldOn, m.Location, m.Agenda, m.Minutes, m.Status, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update meeting: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Delete removes a meeting and its attendance sheet. Savings and sanctions
// recorded at the meeting are kept and unlinked.
func (s *MeetingStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM meetings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	return nil
}

// SetAttendance replaces the attendance sheet of a meeting.
func (s *MeetingStore) SetAttendance(ctx context.Context, meetingID int64, sheet []model.Attendance) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM meeting_attendances WHERE meeting_id = ?`, meetingID); err != nil {
		return fmt.Errorf("clear attendance: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO meeting_attendances (meeting_id, member_id, status) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	for _, a := range sheet {
		if _, err := stmt.ExecContext(ctx, meetingID, a.MemberID, a.Status); err != nil {
			return fmt.Errorf("insert attendance for member %d: %w", a.MemberID, err)
		}
	}
	return tx.Commit()
}

func (s *MeetingStore) ListAttendance(ctx context.Context, meetingID int64) ([]model.Attendance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT meeting_id, member_id, status FROM meeting_attendances WHERE meeting_id = ? ORDER BY member_id`,
		meetingID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var sheet []model.Attendance
	for rows.Next() {
		var a model.Attendance
		if err := rows.Scan(&a.MeetingID, &a.MemberID, &a.Status); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		sheet = append(sheet, a)
	}
	return sheet, rows.Err()
}

// AttendanceRate returns present and total marks for a member across all meetings.
func (s *MeetingStore) AttendanceRate(ctx context.Context, memberID int64) (present, total int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0), COUNT(*)
		 FROM meeting_attendances WHERE member_id = ?`,
		model.AttendancePresent, memberID,
	).Scan(&present, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("attendance rate: %w", err)
	}
	return present, total, nil
}
