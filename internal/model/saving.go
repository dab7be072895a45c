package model

import "time"

type Saving struct {
	ID          int64     `json:"id"`
	MemberID    int64     `json:"member_id"`
	ExerciseID  *int64    `json:"exercise_id"`
	MeetingID   *int64    `json:"meeting_id"`
	Amount      int64     `json:"amount"`
	DepositedOn Date      `json:"deposited_on"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}
