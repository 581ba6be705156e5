package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"reqdesk/api/handlers"
	"reqdesk/config"
	"reqdesk/core/auth"
	"reqdesk/core/store"
	"reqdesk/core/utils"
)

type Server struct {
	cfg             *config.AppConfig
	router          chi.Router
	httpServer      *http.Server
	db              *sql.DB
	logger          *utils.Logger
	sessionManager  *auth.SessionManager
	authSvc         *auth.Service
	users           store.UsersStore
	sessions        store.SessionStore
	orgs            store.OrgsStore
	requests        store.RequestsStore
	notifications   store.NotificationsStore
	audits          store.AuditStore
	sweeper         *maintenanceSweeper
	activityTracker *activityDebounce
	loginLimiter    *loginThrottle
}

func NewServer(cfg *config.AppConfig, db *sql.DB, logger *utils.Logger) *Server {
	users := store.NewUsersStore(db)
	sessions := store.NewSessionStore(db)
	orgs := store.NewOrgsStore(db)
	requests := store.NewRequestsStore(db)
	notifications := store.NewNotificationsStore(db)
	audits := store.NewAuditStore(db)
	sessionManager := auth.NewSessionManager(sessions, cfg, logger)
	authSvc := auth.NewService(cfg, users, sessionManager, audits, logger)
	s := &Server{
		cfg:             cfg,
		router:          chi.NewRouter(),
		db:              db,
		logger:          logger,
		sessionManager:  sessionManager,
		authSvc:         authSvc,
		users:           users,
		sessions:        sessions,
		orgs:            orgs,
		requests:        requests,
		notifications:   notifications,
		audits:          audits,
		sweeper:         newMaintenanceSweeper(cfg, users, sessions, notifications, logger),
		activityTracker: newActivityDebounce(),
		loginLimiter:    newLoginThrottle(5, time.Minute),
	}
	s.registerRoutes()
	s.registerObservabilityRoutes()
	return s
}

func (s *Server) Start() error {
	if err := s.sweeper.Start(); err != nil {
		return err
	}
	s.httpServer = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if s.cfg.TLSEnabled {
		return s.httpServer.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.sweeper.Stop()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.securityHeadersMiddleware)

	authHandler := handlers.NewAuthHandler(s.cfg, s.authSvc, s.sessionManager, s.users, s.logger)
	authHandler.SetLoginOutcomeHook(func(outcome string) {
		loginOutcomes.WithLabelValues(outcome).Inc()
	})
	accHandler := handlers.NewAccountsHandler(s.cfg, s.authSvc, s.users, s.orgs, s.sessions, s.audits, s.logger)
	orgsHandler := handlers.NewOrgsHandler(s.orgs, s.audits, s.logger)
	requestsHandler := handlers.NewRequestsHandler(s.requests, s.users, s.orgs, s.notifications, s.audits, s.logger)
	notificationsHandler := handlers.NewNotificationsHandler(s.notifications, s.logger)
	reportsHandler := handlers.NewReportsHandler(s.requests, s.orgs, s.logger)
	logsHandler := handlers.NewLogsHandler(s.audits)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.jsonMiddleware)

		r.Post("/auth/login", s.rateLimitMiddleware(authHandler.Login))
		r.Post("/auth/logout", s.withSession(authHandler.Logout))
		r.Get("/auth/me", s.withSession(authHandler.Me))
		r.Post("/auth/ping", s.withSession(authHandler.Ping))
		r.Post("/auth/change-password", s.withSession(authHandler.ChangePassword))

		r.Route("/requests", func(r chi.Router) {
			r.Get("/", s.withSession(s.requireRoute("requests")(requestsHandler.List)))
			r.Post("/", s.withSession(s.requireRoute("requests.submit")(requestsHandler.Submit)))
			r.Get("/{id}", s.withSession(s.requireRoute("requests")(requestsHandler.Get)))
			r.Post("/{id}/claim", s.withSession(s.requireRoute("requests.manage")(requestsHandler.Claim)))
			r.Post("/{id}/respond", s.withSession(s.requireRoute("requests.manage")(requestsHandler.Respond)))
			r.Post("/{id}/reject", s.withSession(s.requireRoute("requests.manage")(requestsHandler.Reject)))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", s.withSession(s.requireRoute("notifications")(notificationsHandler.List)))
			r.Get("/unread", s.withSession(s.requireRoute("notifications")(notificationsHandler.UnreadCount)))
			r.Post("/{id}/read", s.withSession(s.requireRoute("notifications")(notificationsHandler.MarkRead)))
			r.Post("/read-all", s.withSession(s.requireRoute("notifications")(notificationsHandler.MarkAllRead)))
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.withSession(s.requireRoute("accounts")(accHandler.List)))
			r.Post("/", s.withSession(s.requireRoute("accounts")(accHandler.Create)))
			r.Put("/{id}", s.withSession(s.requireRoute("accounts")(accHandler.Update)))
			r.Post("/{id}/deactivate", s.withSession(s.requireRoute("accounts")(accHandler.Deactivate)))
			r.Post("/{id}/unlock", s.withSession(s.requireRoute("accounts")(accHandler.Unlock)))
			r.Post("/{id}/reset-password", s.withSession(s.requireRoute("accounts")(accHandler.ResetPassword)))
			r.Get("/{id}/sessions", s.withSession(s.requireRoute("accounts")(accHandler.ListSessions)))
			r.Post("/{id}/sessions/kill", s.withSession(s.requireRoute("accounts")(accHandler.KillSessions)))
		})

		r.Route("/organizations", func(r chi.Router) {
			r.Get("/", s.withSession(s.requireRoute("organizations")(orgsHandler.List)))
			r.Post("/", s.withSession(s.requireRoute("organizations")(orgsHandler.Create)))
			r.Get("/{id}", s.withSession(s.requireRoute("organizations")(orgsHandler.Get)))
			r.Put("/{id}", s.withSession(s.requireRoute("organizations")(orgsHandler.Update)))
			r.Post("/{id}/deactivate", s.withSession(s.requireRoute("organizations")(orgsHandler.Deactivate)))
		})

		r.Get("/reports/summary", s.withSession(s.requireRoute("reports")(reportsHandler.Summary)))
		r.Get("/logs", s.withSession(s.requireRoute("audit")(logsHandler.List)))
	})
}
