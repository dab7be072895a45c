package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/e2dconnect/e2d/internal/model"
)

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

func scanEvent(scanner interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	err := scanner.Scan(&e.ID, &e.Title, &e.Description, &e.StartsAt, &e.Location, &e.Public, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

const eventCols = `id, title, description, starts_at, location, public, created_at, updated_at`

func (s *EventStore) Create(ctx context.Context, e model.Event) (*model.Event, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO events (title, description, starts_at, location, public) VALUES (?, ?, ?, ?, ?)`,
		e.Title, e.Description, e.StartsAt.UTC(), e.Location, e.Public,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *EventStore) GetByID(ctx context.Context, id int64) (*model.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventCols+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func (s *EventStore) List(ctx context.Context) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+eventCols+` FROM events ORDER BY starts_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListUpcomingPublic returns public events starting at or after since, soonest first.
func (s *EventStore) ListUpcomingPublic(ctx context.Context, since time.Time, limit int) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventCols+` FROM events WHERE public = 1 AND starts_at >= ? ORDER BY starts_at ASC LIMIT ?`,
		since.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]model.Event, error) {
	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *EventStore) Update(ctx context.Context, id int64, e model.Event) (*model.Event, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE events SET title = ?, description = ?, starts_at = ?, location = ?, public = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		e.Title, e.Description, e.StartsAt.UTC(), e.Location, e.Public, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *EventStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}
