package model

import "time"

const (
	MeetingPlanned = "planifiee"
	MeetingDone    = "terminee"
)

const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
	AttendanceExcused = "excuse"
)

type Meeting struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	HeldOn    Date      `json:"held_on"`
	Location  string    `json:"location"`
	Agenda    string    `json:"agenda"`
	Minutes   string    `json:"minutes"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Attendance struct {
	MeetingID int64  `json:"meeting_id"`
	MemberID  int64  `json:"member_id"`
	Status    string `json:"status"`
}
