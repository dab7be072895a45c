package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/e2dconnect/e2d/internal/model"
)

// PushStore holds browser push subscriptions. An endpoint belongs to one
// user at a time; subscribing again from the same browser moves it.
type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

const pushCols = `p.id, p.user_id, p.endpoint, p.p256dh_key, p.auth_key, p.device_name, p.created_at`

func scanSubscription(scanner interface{ Scan(...any) error }) (model.PushSubscription, error) {
	var sub model.PushSubscription
	err := scanner.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt)
	return sub, err
}

func (s *PushStore) list(ctx context.Context, what, query string, args ...any) ([]model.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()

	subs := []model.PushSubscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", what, err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// CreateSubscription stores or refreshes the keys of an endpoint.
func (s *PushStore) CreateSubscription(ctx context.Context, userID int64, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh_key, auth_key, device_name)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET
		   user_id = excluded.user_id,
		   p256dh_key = excluded.p256dh_key,
		   auth_key = excluded.auth_key,
		   device_name = excluded.device_name`,
		userID, endpoint, p256dh, auth, deviceName,
	); err != nil {
		return nil, fmt.Errorf("save push subscription: %w", err)
	}
	// LastInsertId is not set by the update branch.
	sub, err := scanSubscription(s.db.QueryRowContext(ctx,
		`SELECT `+pushCols+` FROM push_subscriptions p WHERE p.endpoint = ?`, endpoint))
	if err != nil {
		return nil, fmt.Errorf("reload push subscription: %w", err)
	}
	return &sub, nil
}

func (s *PushStore) ListByUser(ctx context.Context, userID int64) ([]model.PushSubscription, error) {
	return s.list(ctx, "list push subscriptions by user",
		`SELECT `+pushCols+` FROM push_subscriptions p WHERE p.user_id = ? ORDER BY p.created_at DESC, p.id DESC`, userID)
}

// ListByPermission returns the devices of active users whose role grants
// perm, directly or through the admin permission.
func (s *PushStore) ListByPermission(ctx context.Context, perm string) ([]model.PushSubscription, error) {
	return s.list(ctx, "list push subscriptions by permission",
		`SELECT `+pushCols+`
		 FROM push_subscriptions p
		 JOIN users u ON u.id = p.user_id AND u.active = 1
		 WHERE EXISTS (
		   SELECT 1 FROM role_permissions rp
		   WHERE rp.role_id = u.role_id AND rp.permission IN (?, ?)
		 )
		 ORDER BY p.id`,
		perm, model.PermAdmin,
	)
}

// DeleteSubscription removes one of userID's devices. Other users'
// subscriptions are left alone and reported as not found.
func (s *PushStore) DeleteSubscription(ctx context.Context, id, userID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("push subscription %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

// DeleteByEndpoint forgets an endpoint the push service rejected. A
// missing endpoint is not an error.
func (s *PushStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint); err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}
