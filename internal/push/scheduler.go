package push

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/e2dconnect/e2d/internal/model"
	"github.com/e2dconnect/e2d/internal/store"
)

// Scheduler runs the daily digest: overdue loans are flagged and members
// of the bureau are reminded of tomorrow's meetings.
type Scheduler struct {
	mu       sync.RWMutex
	notifier *Notifier
	loans    *store.LoanStore
	meetings *store.MeetingStore
	logger   *slog.Logger
	hour     int
	interval time.Duration
	lastRun  model.Date
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a scheduler that fires once a day at hour (UTC).
func NewScheduler(n *Notifier, loans *store.LoanStore, meetings *store.MeetingStore, hour int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		notifier: n,
		loans:    loans,
		meetings: meetings,
		logger:   logger.With("component", "push_scheduler"),
		hour:     hour,
		interval: time.Minute,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.tick(ctx, now.UTC())
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// tick runs the digest the first time it is called during the configured
// hour of a given day.
func (s *Scheduler) tick(ctx context.Context, now time.Time) bool {
	if now.Hour() != s.hour {
		return false
	}
	today := model.NewDate(now)
	s.mu.Lock()
	if s.lastRun.Equal(today.Time) {
		s.mu.Unlock()
		return false
	}
	s.lastRun = today
	s.mu.Unlock()

	s.RunDaily(ctx, today)
	return true
}

// Digest summarises one daily run.
type Digest struct {
	Overdue  int64
	Meetings int
}

// RunDaily performs the daily checks for the given day.
func (s *Scheduler) RunDaily(ctx context.Context, today model.Date) Digest {
	var d Digest

	n, err := s.loans.MarkOverdue(ctx, today)
	if err != nil {
		s.logger.Error("mark overdue loans", "error", err)
	} else if n > 0 {
		d.Overdue = n
		s.logger.Info("loans marked overdue", "count", n)
		s.notifier.NotifyPermission(ctx, model.PermFinanceRead, Payload{
			Title: "Prêts en retard",
			Body:  fmt.Sprintf("%d prêt(s) ont dépassé leur échéance", n),
			URL:   "/loans?status=" + model.LoanOverdue,
			Tag:   "loans-overdue-" + today.String(),
		})
	}

	tomorrow := model.NewDate(today.AddDate(0, 0, 1))
	meetings, err := s.meetings.List(ctx, store.Filter{Status: model.MeetingPlanned, From: &tomorrow, To: &tomorrow})
	if err != nil {
		s.logger.Error("list meetings", "error", err)
		return d
	}
	for _, m := range meetings {
		d.Meetings++
		body := m.Title
		if m.Location != "" {
			body += " - " + m.Location
		}
		s.notifier.NotifyPermission(ctx, model.PermMeetingsRead, Payload{
			Title: "Réunion demain",
			Body:  body,
			URL:   fmt.Sprintf("/meetings/%d", m.ID),
			Tag:   fmt.Sprintf("meeting-%d", m.ID),
		})
	}
	return d
}
