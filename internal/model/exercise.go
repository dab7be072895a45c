package model

import "time"

// Exercise is a financial year. At most one is active at a time.
type Exercise struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	StartOn   Date      `json:"start_on"`
	EndOn     Date      `json:"end_on"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
