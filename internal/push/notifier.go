package push

import (
	"context"
	"log/slog"

	"github.com/e2dconnect/e2d/internal/store"
)

// Notifier fans a payload out to every subscription whose user holds a
// permission. Expired subscriptions are pruned as they are found.
type Notifier struct {
	service *Service
	subs    *store.PushStore
	logger  *slog.Logger
}

func NewNotifier(svc *Service, subs *store.PushStore, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{service: svc, subs: subs, logger: logger.With("component", "push")}
}

// NotifyPermission returns how many subscriptions accepted the payload.
// It is a no-op when push is not configured.
func (n *Notifier) NotifyPermission(ctx context.Context, perm string, payload Payload) int {
	if n == nil || !n.service.Enabled() {
		return 0
	}
	subs, err := n.subs.ListByPermission(ctx, perm)
	if err != nil {
		n.logger.Error("list subscriptions", "permission", perm, "error", err)
		return 0
	}

	d := n.service.SendAll(ctx, subs, payload)
	for _, sub := range d.Expired {
		if err := n.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
			n.logger.Error("delete expired subscription", "id", sub.ID, "error", err)
		} else {
			n.logger.Info("removed expired subscription", "id", sub.ID, "user_id", sub.UserID)
		}
	}
	for id, err := range d.Failed {
		n.logger.Warn("send notification", "id", id, "tag", payload.Tag, "error", err)
	}
	return d.Sent
}
