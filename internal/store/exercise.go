package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/e2dconnect/e2d/internal/model"
)

type ExerciseStore struct {
	db *sql.DB
}

func NewExerciseStore(db *sql.DB) *ExerciseStore {
	return &ExerciseStore{db: db}
}

func scanExercise(scanner interface{ Scan(...any) error }) (*model.Exercise, error) {
	var e model.Exercise
	err := scanner.Scan(&e.ID, &e.Name, &e.StartOn, &e.EndOn, &e.Active, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

const exerciseCols = `id, name, start_on, end_on, active, created_at`

func (s *ExerciseStore) Create(ctx context.Context, name string, start, end model.Date) (*model.Exercise, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO exercises (name, start_on, end_on) VALUES (?, ?, ?)`,
		name, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("insert exercise: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ExerciseStore) GetByID(ctx context.Context, id int64) (*model.Exercise, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+exerciseCols+` FROM exercises WHERE id = ?`, id)
	e, err := scanExercise(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get exercise: %w", err)
	}
	return e, nil
}

// Active returns the active exercise, or nil if none is active.
func (s *ExerciseStore) Active(ctx context.Context) (*model.Exercise, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+exerciseCols+` FROM exercises WHERE active = 1`)
	e, err := scanExercise(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active exercise: %w", err)
	}
	return e, nil
}

// List returns exercises, most recent first.
func (s *ExerciseStore) List(ctx context.Context) ([]model.Exercise, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+exerciseCols+` FROM exercises ORDER BY start_on DESC`)
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	defer rows.Close()

	var exercises []model.Exercise
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exercise: %w", err)
		}
		exercises = append(exercises, *e)
	}
	return exercises, rows.Err()
}

func (s *ExerciseStore) Update(ctx context.Context, id int64, name string, start, end model.Date) (*model.Exercise, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE exercises SET name = ?, start_on = ?, end_on = ? WHERE id = ?`,
		name, start, end, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update exercise: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Activate makes id the only active exercise.
func (s *ExerciseStore) Activate(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE exercises SET active = 0 WHERE active = 1`); err != nil {
		return fmt.Errorf("deactivate exercises: %w", err)
	}
	result, err := tx.ExecContext(ctx, `UPDATE exercises SET active = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("activate exercise: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

func (s *ExerciseStore) Delete(ctx context.Context, id int64) error {
	var refs int
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM contributions WHERE exercise_id = ?)
		      + (SELECT COUNT(*) FROM savings WHERE exercise_id = ?)
		      + (SELECT COUNT(*) FROM loans WHERE exercise_id = ?)`,
		id, id, id,
	).Scan(&refs)
	if err != nil {
		return fmt.Errorf("count exercise references: %w", err)
	}
	if refs > 0 {
		return ErrInUse
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM exercises WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete exercise: %w", err)
	}
	return nil
}
