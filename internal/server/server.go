package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/e2dconnect/e2d/internal/backup"
	"github.com/e2dconnect/e2d/internal/config"
	"github.com/e2dconnect/e2d/internal/email"
	"github.com/e2dconnect/e2d/internal/handler"
	"github.com/e2dconnect/e2d/internal/middleware"
	"github.com/e2dconnect/e2d/internal/model"
	"github.com/e2dconnect/e2d/internal/push"
	"github.com/e2dconnect/e2d/internal/sanction"
	"github.com/e2dconnect/e2d/internal/store"
	ws "github.com/e2dconnect/e2d/internal/websocket"
)

type Server struct {
	db  *sql.DB
	hub *ws.Hub

	memberH       *handler.MemberHandler
	exerciseH     *handler.ExerciseHandler
	contributionH *handler.ContributionHandler
	savingH       *handler.SavingHandler
	loanH         *handler.LoanHandler
	sanctionH     *handler.SanctionHandler
	meetingH      *handler.MeetingHandler
	sportH        *handler.SportHandler
	eventH        *handler.EventHandler
	donationH     *handler.DonationHandler
	adhesionH     *handler.AdhesionHandler
	publicH       *handler.PublicHandler
	dashboardH    *handler.DashboardHandler
	authH         *handler.AuthHandler
	userH         *handler.UserHandler
	settingsH     *handler.SettingsHandler
	pushH         *handler.PushHandler
	backupH       *handler.BackupHandler

	loanStore     *store.LoanStore
	sessionStore  *store.SessionStore
	userStore     *store.UserStore
	roleStore     *store.RoleStore
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	pushScheduler *push.Scheduler
	wsOrigins     []string
	logger        *slog.Logger
}

func New(db *sql.DB, cfg config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger)

	memberStore := store.NewMemberStore(db)
	exerciseStore := store.NewExerciseStore(db)
	contributionStore := store.NewContributionStore(db)
	savingStore := store.NewSavingStore(db)
	loanStore := store.NewLoanStore(db)
	sanctionStore := store.NewSanctionStore(db)
	meetingStore := store.NewMeetingStore(db)
	sportStore := store.NewSportStore(db)
	eventStore := store.NewEventStore(db)
	donationStore := store.NewDonationStore(db)
	adhesionStore := store.NewAdhesionStore(db)
	settingsStore := store.NewSettingsStore(db)

	// Auth stores
	userStore := store.NewUserStore(db)
	roleStore := store.NewRoleStore(db)
	sessionStore := store.NewSessionStore(db)

	syncer := sanction.NewSyncer(sportStore, sanctionStore, logger.With("component", "sanction_sync"))
	emailClient := email.NewClient(cfg.Email.Token, cfg.Email.From)

	// Backup store + manager
	backupStore := store.NewBackupStore(db)
	backupMgr := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		},
		Passphrase:    cfg.Backup.Passphrase,
		ScheduleHour:  cfg.Backup.ScheduleHour,
		RetentionDays: cfg.Backup.RetentionDays,
		Logger:        logger,
	}, db, backupStore, settingsStore, func(s backup.Status) {
		hub.Broadcast(ws.Message{
			Type:   "backup_status",
			Entity: ws.EntityBackup,
			Action: string(s.State),
		})
	})

	// Push notification service + scheduler
	pushStore := store.NewPushStore(db)
	pushSvc := push.NewService(cfg.Push.PublicKey, cfg.Push.PrivateKey, cfg.Push.Subscriber)
	var notifier *push.Notifier
	var pushSched *push.Scheduler
	if pushSvc.Enabled() {
		pushLogger := logger.With("component", "push")
		notifier = push.NewNotifier(pushSvc, pushStore, pushLogger)
		pushSched = push.NewScheduler(notifier, loanStore, meetingStore, cfg.Push.DigestHour, pushLogger)
	}

	return &Server{
		db:            db,
		hub:           hub,
		memberH:       handler.NewMemberHandler(memberStore, hub, logger.With("component", "member")),
		exerciseH:     handler.NewExerciseHandler(exerciseStore, hub, logger.With("component", "exercise")),
		contributionH: handler.NewContributionHandler(contributionStore, memberStore, exerciseStore, hub, logger.With("component", "contribution")),
		savingH:       handler.NewSavingHandler(savingStore, memberStore, exerciseStore, hub, logger.With("component", "saving")),
		loanH:         handler.NewLoanHandler(loanStore, memberStore, exerciseStore, settingsStore, hub, logger.With("component", "loan")),
		sanctionH:     handler.NewSanctionHandler(sanctionStore, memberStore, syncer, hub, logger.With("component", "sanction")),
		meetingH:      handler.NewMeetingHandler(meetingStore, hub, logger.With("component", "meeting")),
		sportH:        handler.NewSportHandler(sportStore, memberStore, syncer, hub, logger.With("component", "sport")),
		eventH:        handler.NewEventHandler(eventStore, hub, logger.With("component", "event")),
		donationH:     handler.NewDonationHandler(donationStore, hub, logger.With("component", "donation")),
		adhesionH:     handler.NewAdhesionHandler(adhesionStore, settingsStore, emailClient, hub, logger.With("component", "adhesion")),
		publicH: handler.NewPublicHandler(handler.PublicStores{
			Events:    eventStore,
			Members:   memberStore,
			Sport:     sportStore,
			Adhesions: adhesionStore,
			Donations: donationStore,
			Settings:  settingsStore,
		}, emailClient, notifier, hub, logger.With("component", "public")),
		dashboardH: handler.NewDashboardHandler(handler.Stores{
			Members:       memberStore,
			Exercises:     exerciseStore,
			Contributions: contributionStore,
			Savings:       savingStore,
			Loans:         loanStore,
			Sanctions:     sanctionStore,
			Meetings:      meetingStore,
			Sport:         sportStore,
			Donations:     donationStore,
			Adhesions:     adhesionStore,
			Settings:      settingsStore,
		}, logger.With("component", "dashboard")),
		authH:         handler.NewAuthHandler(userStore, sessionStore, cfg.SessionTTL, cfg.CookieSecure, logger.With("component", "auth")),
		userH:         handler.NewUserHandler(userStore, roleStore, sessionStore, hub, logger.With("component", "user")),
		settingsH:     handler.NewSettingsHandler(settingsStore, emailClient, hub, logger.With("component", "settings")),
		pushH:         handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler")),
		backupH:       handler.NewBackupHandler(db, backupMgr, backupStore, cfg.Backup.Passphrase, hub, logger.With("component", "backup_handler")),
		sessionStore:  sessionStore,
		loanStore:     loanStore,
		userStore:     userStore,
		roleStore:     roleStore,
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		pushScheduler: pushSched,
		wsOrigins:     cfg.WSOrigins,
		logger:        logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// PushScheduler returns the push digest scheduler, nil when push is not
// configured.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

// MarkOverdueLoans flags ongoing loans past their due date. The push
// digest does this too, but only when push is configured.
func (s *Server) MarkOverdueLoans(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.loanStore.MarkOverdue(ctx, model.NewDate(now))
	if err == nil && n > 0 {
		s.hub.Notify(ws.EntityLoan, ws.ActionUpdated, 0)
	}
	return n, err
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login, 10))
	outerMux.HandleFunc("POST /logout", s.authH.Logout)
	outerMux.HandleFunc("GET /public/events", s.publicH.Events)
	outerMux.HandleFunc("GET /public/stats", s.publicH.Stats)
	outerMux.HandleFunc("POST /public/adhesions", s.rateLimitedHandler(s.publicH.SubmitAdhesion, 5))
	outerMux.HandleFunc("POST /public/donations", s.rateLimitedHandler(s.publicH.SubmitDonation, 5))

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore, s.roleStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.Tracing(middleware.RequestLogger(s.logger.With("component", "http"))(outerMux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// rateLimitedHandler allows limit requests per minute per client and route.
func (s *Server) rateLimitedHandler(h http.HandlerFunc, limit int) http.HandlerFunc {
	return middleware.RateLimit(s.rateLimiter, middleware.ByIP, limit, time.Minute)(h).ServeHTTP
}

// routes registers handlers behind a permission check. An empty
// permission only requires a session.
type routes struct {
	mux *http.ServeMux
}

func (rt routes) handle(pattern, perm string, h http.HandlerFunc) {
	if perm == "" {
		rt.mux.HandleFunc(pattern, h)
		return
	}
	rt.mux.Handle(pattern, middleware.RequirePermission(perm)(h))
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	rt := routes{mux: mux}

	// Session
	rt.handle("GET /api/me", "", s.authH.Me)
	rt.handle("PUT /api/me/password", "", s.authH.ChangePassword)
	rt.handle("GET /ws", "", ws.Handler(s.hub, s.wsOrigins, s.logger))

	// Members
	rt.handle("GET /api/members", model.PermMembersRead, s.memberH.List)
	rt.handle("GET /api/members/{id}", model.PermMembersRead, s.memberH.Get)
	rt.handle("POST /api/members", model.PermMembersWrite, s.memberH.Create)
	rt.handle("PUT /api/members/{id}", model.PermMembersWrite, s.memberH.Update)
	rt.handle("DELETE /api/members/{id}", model.PermMembersWrite, s.memberH.Delete)
	rt.handle("GET /api/members/{id}/statement", model.PermFinanceRead, s.dashboardH.Statement)

	// Adhesion requests
	rt.handle("GET /api/adhesions", model.PermMembersRead, s.adhesionH.List)
	rt.handle("PUT /api/adhesions/{id}/accept", model.PermMembersWrite, s.adhesionH.Accept)
	rt.handle("PUT /api/adhesions/{id}/reject", model.PermMembersWrite, s.adhesionH.Reject)
	rt.handle("DELETE /api/adhesions/{id}", model.PermMembersWrite, s.adhesionH.Delete)

	// Exercises
	rt.handle("GET /api/exercises", model.PermFinanceRead, s.exerciseH.List)
	rt.handle("GET /api/exercises/active", model.PermFinanceRead, s.exerciseH.Active)
	rt.handle("GET /api/exercises/{id}/report", model.PermFinanceRead, s.dashboardH.Report)
	rt.handle("POST /api/exercises", model.PermFinanceWrite, s.exerciseH.Create)
	rt.handle("PUT /api/exercises/{id}", model.PermFinanceWrite, s.exerciseH.Update)
	rt.handle("PUT /api/exercises/{id}/activate", model.PermFinanceWrite, s.exerciseH.Activate)
	rt.handle("DELETE /api/exercises/{id}", model.PermFinanceWrite, s.exerciseH.Delete)

	// Contributions
	rt.handle("GET /api/contribution-types", model.PermFinanceRead, s.contributionH.ListTypes)
	rt.handle("POST /api/contribution-types", model.PermFinanceWrite, s.contributionH.CreateType)
	rt.handle("PUT /api/contribution-types/{id}", model.PermFinanceWrite, s.contributionH.UpdateType)
	rt.handle("DELETE /api/contribution-types/{id}", model.PermFinanceWrite, s.contributionH.DeleteType)
	rt.handle("GET /api/contributions", model.PermFinanceRead, s.contributionH.List)
	rt.handle("GET /api/contributions/forecast", model.PermFinanceRead, s.contributionH.Forecast)
	rt.handle("GET /api/contributions/{id}", model.PermFinanceRead, s.contributionH.Get)
	rt.handle("POST /api/contributions", model.PermFinanceWrite, s.contributionH.Create)
	rt.handle("PUT /api/contributions/{id}", model.PermFinanceWrite, s.contributionH.Update)
	rt.handle("DELETE /api/contributions/{id}", model.PermFinanceWrite, s.contributionH.Delete)

	// Savings
	rt.handle("GET /api/savings", model.PermFinanceRead, s.savingH.List)
	rt.handle("POST /api/savings", model.PermFinanceWrite, s.savingH.Create)
	rt.handle("PUT /api/savings/{id}", model.PermFinanceWrite, s.savingH.Update)
	rt.handle("DELETE /api/savings/{id}", model.PermFinanceWrite, s.savingH.Delete)

	// Loans
	rt.handle("GET /api/loans", model.PermFinanceRead, s.loanH.List)
	rt.handle("GET /api/loans/{id}", model.PermFinanceRead, s.loanH.Get)
	rt.handle("POST /api/loans", model.PermFinanceWrite, s.loanH.Create)
	rt.handle("PUT /api/loans/{id}", model.PermFinanceWrite, s.loanH.Update)
	rt.handle("DELETE /api/loans/{id}", model.PermFinanceWrite, s.loanH.Delete)
	rt.handle("POST /api/loans/{id}/payments", model.PermFinanceWrite, s.loanH.AddPayment)
	rt.handle("POST /api/loans/{id}/renew", model.PermFinanceWrite, s.loanH.Renew)

	// Sanctions
	rt.handle("GET /api/sanction-types", model.PermFinanceRead, s.sanctionH.ListTypes)
	rt.handle("POST /api/sanction-types", model.PermFinanceWrite, s.sanctionH.CreateType)
	rt.handle("PUT /api/sanction-types/{id}", model.PermFinanceWrite, s.sanctionH.UpdateType)
	rt.handle("DELETE /api/sanction-types/{id}", model.PermFinanceWrite, s.sanctionH.DeleteType)
	rt.handle("GET /api/sanctions", model.PermFinanceRead, s.sanctionH.List)
	rt.handle("POST /api/sanctions", model.PermFinanceWrite, s.sanctionH.Create)
	rt.handle("POST /api/sanctions/sync", model.PermFinanceWrite, s.sanctionH.Sync)
	rt.handle("PUT /api/sanctions/{id}", model.PermFinanceWrite, s.sanctionH.Update)
	rt.handle("PUT /api/sanctions/{id}/pay", model.PermFinanceWrite, s.sanctionH.Pay)
	rt.handle("PUT /api/sanctions/{id}/cancel", model.PermFinanceWrite, s.sanctionH.Cancel)
	rt.handle("DELETE /api/sanctions/{id}", model.PermFinanceWrite, s.sanctionH.Delete)

	// Donations
	rt.handle("GET /api/donations", model.PermFinanceRead, s.donationH.List)
	rt.handle("PUT /api/donations/{id}/status", model.PermFinanceWrite, s.donationH.SetStatus)
	rt.handle("DELETE /api/donations/{id}", model.PermFinanceWrite, s.donationH.Delete)

	// Meetings
	rt.handle("GET /api/meetings", model.PermMeetingsRead, s.meetingH.List)
	rt.handle("GET /api/meetings/{id}", model.PermMeetingsRead, s.meetingH.Get)
	rt.handle("POST /api/meetings", model.PermMeetingsWrite, s.meetingH.Create)
	rt.handle("PUT /api/meetings/{id}", model.PermMeetingsWrite, s.meetingH.Update)
	rt.handle("PUT /api/meetings/{id}/attendance", model.PermMeetingsWrite, s.meetingH.SetAttendance)
	rt.handle("DELETE /api/meetings/{id}", model.PermMeetingsWrite, s.meetingH.Delete)

	// Sport
	rt.handle("GET /api/matches", model.PermSportRead, s.sportH.ListMatches)
	rt.handle("GET /api/matches/{id}", model.PermSportRead, s.sportH.GetMatch)
	rt.handle("POST /api/matches", model.PermSportWrite, s.sportH.CreateMatch)
	rt.handle("PUT /api/matches/{id}", model.PermSportWrite, s.sportH.UpdateMatch)
	rt.handle("DELETE /api/matches/{id}", model.PermSportWrite, s.sportH.DeleteMatch)
	rt.handle("POST /api/matches/{id}/cards", model.PermSportWrite, s.sportH.AddCard)
	rt.handle("DELETE /api/cards/{id}", model.PermSportWrite, s.sportH.DeleteCard)
	rt.handle("GET /api/sport/transactions", model.PermSportRead, s.sportH.ListTransactions)
	rt.handle("POST /api/sport/transactions", model.PermSportWrite, s.sportH.CreateTransaction)
	rt.handle("PUT /api/sport/transactions/{id}", model.PermSportWrite, s.sportH.UpdateTransaction)
	rt.handle("DELETE /api/sport/transactions/{id}", model.PermSportWrite, s.sportH.DeleteTransaction)
	rt.handle("GET /api/sport/stats", model.PermSportRead, s.sportH.Stats)

	// Public site content
	rt.handle("GET /api/events", model.PermSiteWrite, s.eventH.List)
	rt.handle("POST /api/events", model.PermSiteWrite, s.eventH.Create)
	rt.handle("PUT /api/events/{id}", model.PermSiteWrite, s.eventH.Update)
	rt.handle("DELETE /api/events/{id}", model.PermSiteWrite, s.eventH.Delete)

	// Dashboard and exports
	rt.handle("GET /api/dashboard", model.PermFinanceRead, s.dashboardH.Dashboard)
	rt.handle("GET /api/export", model.PermFinanceRead, s.dashboardH.Export)

	// Administration
	rt.handle("GET /api/users", model.PermAdmin, s.userH.ListUsers)
	rt.handle("POST /api/users", model.PermAdmin, s.userH.CreateUser)
	rt.handle("PUT /api/users/{id}", model.PermAdmin, s.userH.UpdateUser)
	rt.handle("DELETE /api/users/{id}", model.PermAdmin, s.userH.DeleteUser)
	rt.handle("GET /api/permissions", model.PermAdmin, s.userH.Permissions)
	rt.handle("GET /api/roles", model.PermAdmin, s.userH.ListRoles)
	rt.handle("POST /api/roles", model.PermAdmin, s.userH.CreateRole)
	rt.handle("PUT /api/roles/{id}", model.PermAdmin, s.userH.UpdateRole)
	rt.handle("DELETE /api/roles/{id}", model.PermAdmin, s.userH.DeleteRole)

	rt.handle("GET /api/settings/{group}", model.PermAdmin, s.settingsH.Get)
	rt.handle("PUT /api/settings/{group}", model.PermAdmin, s.settingsH.Update)
	rt.handle("POST /api/email/test", model.PermAdmin, s.settingsH.TestEmail)

	rt.handle("GET /api/backups", model.PermAdmin, s.backupH.List)
	rt.handle("GET /api/backups/status", model.PermAdmin, s.backupH.Status)
	rt.handle("POST /api/backups", model.PermAdmin, s.backupH.Run)
	rt.handle("GET /api/backups/{id}/download", model.PermAdmin, s.backupH.Download)
	rt.handle("POST /api/backups/{id}/restore", model.PermAdmin, s.backupH.Restore)
	rt.handle("GET /api/backup/export", model.PermAdmin, s.backupH.Export)
	rt.handle("POST /api/backup/import", model.PermAdmin, s.backupH.Import)

	// Push notification routes
	rt.handle("GET /api/push/vapid-key", "", s.pushH.VAPIDKey)
	rt.handle("POST /api/push/subscribe", "", s.pushH.Subscribe)
	rt.handle("GET /api/push/subscriptions", "", s.pushH.ListSubscriptions)
	rt.handle("DELETE /api/push/subscriptions/{id}", "", s.pushH.Unsubscribe)
	rt.handle("POST /api/push/test", "", s.pushH.Test)
}
