package main

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/toiture-backoffice/auth"
	"github.com/diewo77/toiture-backoffice/gate"
	"github.com/diewo77/toiture-backoffice/httpx"
	"github.com/diewo77/toiture-backoffice/i18n"
	"github.com/diewo77/toiture-backoffice/internal/backoffice"
	"github.com/diewo77/toiture-backoffice/internal/config"
	"github.com/diewo77/toiture-backoffice/internal/db"
	"github.com/diewo77/toiture-backoffice/internal/handlers"
	"github.com/diewo77/toiture-backoffice/internal/policy"
	"github.com/diewo77/toiture-backoffice/internal/realtime"
	"github.com/diewo77/toiture-backoffice/internal/services"
	"github.com/diewo77/toiture-backoffice/internal/store"
	"github.com/diewo77/toiture-backoffice/internal/webhook"
)

// roleCacheTTL bounds how long a role change takes to reach other instances.
const roleCacheTTL = time.Minute

// App is the main application handler that sets up all routes.
type App struct {
	mux    *http.ServeMux
	cfg    *config.Config
	db     *gorm.DB
	logger *slog.Logger

	Hub      *realtime.Hub
	Store    *store.Client
	Accounts *services.AccountService
	Users    *services.UserAdmin
	Gate     *policy.AuthGate
	Sessions *auth.Sessions
	Registry *backoffice.Registry
	Webhook  *webhook.Client
}

// NewApp wires the services over gdb and registers every route.
func NewApp(cfg *config.Config, gdb *gorm.DB, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{mux: http.NewServeMux(), cfg: cfg, db: gdb, logger: logger}

	a.Hub = realtime.NewHub()
	// In postgres mode the table triggers publish; writes here stay silent
	// so each change is seen once.
	var pub realtime.Publisher = a.Hub
	if cfg.Realtime.Mode == config.RealtimePostgres {
		pub = nil
	}
	a.Store = store.NewClient(gdb, pub)
	a.Accounts = services.NewAccountService(gdb, newMailer(cfg.Mail, logger), cfg.App.BaseURL, logger)
	a.Users = services.NewUserAdmin(gdb, a.Accounts, pub, logger)
	a.Gate = policy.NewAuthGate(gdb, roleCacheTTL)
	a.Users.OnRoleChange = a.Gate.Invalidate
	a.Webhook = webhook.New(cfg.Webhook.QuoteURL, cfg.Webhook.Secret, cfg.Webhook.Timeout)

	a.Sessions = auth.NewSessions(cfg.App.SessionSecret, func(ctx context.Context, uid string) bool {
		return a.Users.HasProfile(ctx, uid) || a.Accounts.Exists(ctx, uid)
	})
	a.Sessions.SecureCookies(cfg.IsProduction())

	a.Registry = backoffice.NewRegistry(backoffice.Deps{
		Store:  a.Store,
		Users:  a.Users,
		Hub:    a.Hub,
		Quotes: a.Webhook,
		Logger: logger,
	})

	a.setupRoutes()
	return a
}

func newMailer(cfg config.MailConfig, logger *slog.Logger) services.Mailer {
	if cfg.Host == "" {
		return services.LogMailer{Logger: logger}
	}
	return services.SMTPMailer{Host: cfg.Host, Port: cfg.Port, User: cfg.User, Password: cfg.Password, From: cfg.From}
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Apply global middleware: auth context + language preference
	handler := a.Sessions.Middleware(withPreferences(a.mux))
	handler.ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Public routes (no auth required)
	// ─────────────────────────────────────────────────────────────────────────
	ah := handlers.NewAuthHandler(a.Accounts, a.Sessions, a.Registry, a.cfg.App.BaseURL)

	a.mux.HandleFunc("GET /health", handlers.Health)
	a.mux.HandleFunc("GET /healthz", handlers.Healthz(func() error { return db.Ping(a.db) }))
	a.mux.HandleFunc("POST /login", ah.Login)
	a.mux.HandleFunc("POST /logout", ah.Logout)
	a.mux.HandleFunc("GET /confirm", ah.Confirm)

	// ─────────────────────────────────────────────────────────────────────────
	// Session state
	// ─────────────────────────────────────────────────────────────────────────
	h := handlers.NewHandler(a.Registry, a.Gate, a.logger)

	a.mux.Handle("GET /api/me", a.requireAuth(h.Me()))
	a.mux.Handle("GET /api/notifications", a.requireAuth(h.Notifications()))
	a.mux.Handle("GET /api/status/{code}", a.requireAuth(http.HandlerFunc(handlers.StatusBadge)))

	// ─────────────────────────────────────────────────────────────────────────
	// Leads
	// ─────────────────────────────────────────────────────────────────────────
	lh := handlers.NewLeadHandler(h, a.Store.Leads)
	lead := gate.ResourceLead

	a.mux.Handle("GET /api/leads", a.protect(lead, gate.ActionList, lh.List()))
	a.mux.Handle("GET /api/leads/events", a.protect(lead, gate.ActionList, lh.Events()))
	a.mux.Handle("GET /api/leads/export.xlsx", a.protect(lead, gate.ActionList, lh.Export()))
	a.mux.Handle("POST /api/leads/dialog", a.protect(lead, gate.ActionView, lh.OpenDialog()))
	// create or update, checked against the dialog mode
	a.mux.Handle("POST /api/leads/dialog/submit", a.requireAuth(lh.SubmitDialog()))
	a.mux.Handle("POST /api/leads/dialog/lines", a.requireAuth(lh.EditLines()))
	a.mux.Handle("POST /api/leads/dialog/close", a.requireAuth(lh.CloseDialog()))
	a.mux.Handle("POST /api/leads/{id}/delete", a.protect(lead, gate.ActionDelete, lh.ArmDelete()))
	a.mux.Handle("POST /api/leads/delete/confirm", a.requireAuth(lh.ConfirmDelete()))
	a.mux.Handle("POST /api/leads/delete/cancel", a.requireAuth(lh.CancelDelete()))
	a.mux.Handle("POST /api/leads/{id}/send-quote", a.protect(lead, gate.ActionUpdate, lh.SendQuote()))

	// ─────────────────────────────────────────────────────────────────────────
	// Devis
	// ─────────────────────────────────────────────────────────────────────────
	dh := handlers.NewDevisHandler(h, a.Store.Devis)
	devis := gate.ResourceDevis

	a.mux.Handle("GET /api/devis", a.protect(devis, gate.ActionList, dh.List()))
	a.mux.Handle("GET /api/devis/latest", a.protect(devis, gate.ActionList, dh.Latest()))
	a.mux.Handle("GET /api/devis/events", a.protect(devis, gate.ActionList, dh.Events()))
	a.mux.Handle("GET /api/devis/export.xlsx", a.protect(devis, gate.ActionList, dh.Export()))
	a.mux.Handle("GET /api/devis/lead-options", a.protect(devis, gate.ActionList, dh.LeadOptions()))
	a.mux.Handle("POST /api/devis/dialog", a.protect(devis, gate.ActionView, dh.OpenDialog()))
	a.mux.Handle("POST /api/devis/dialog/lead", a.requireAuth(dh.SelectLead()))
	a.mux.Handle("POST /api/devis/dialog/submit", a.requireAuth(dh.SubmitDialog()))
	a.mux.Handle("POST /api/devis/dialog/close", a.requireAuth(dh.CloseDialog()))
	a.mux.Handle("POST /api/devis/{id}/delete", a.protect(devis, gate.ActionDelete, dh.ArmDelete()))
	a.mux.Handle("POST /api/devis/delete/confirm", a.requireAuth(dh.ConfirmDelete()))
	a.mux.Handle("POST /api/devis/delete/cancel", a.requireAuth(dh.CancelDelete()))

	// ─────────────────────────────────────────────────────────────────────────
	// Admin routes (require the admin role)
	// ─────────────────────────────────────────────────────────────────────────
	uh := handlers.NewAdminUsersHandler(h)

	a.mux.Handle("GET /api/admin/users", a.requireAdmin(uh.List()))
	a.mux.Handle("GET /api/admin/users/events", a.requireAdmin(uh.Events()))
	a.mux.Handle("POST /api/admin/users", a.requireAdmin(uh.Create()))
	a.mux.Handle("POST /api/admin/users/{id}/role", a.requireAdmin(uh.ChangeRole()))
	a.mux.Handle("POST /api/admin/users/{id}/delete", a.requireAdmin(uh.ArmDelete()))
	a.mux.Handle("POST /api/admin/users/delete/confirm", a.requireAdmin(uh.ConfirmDelete()))
	a.mux.Handle("POST /api/admin/users/delete/cancel", a.requireAdmin(uh.CancelDelete()))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

// requireAuth wraps a handler to require a live session.
func (a *App) requireAuth(next http.Handler) http.Handler {
	return a.Sessions.RequireAuth(next)
}

// requireAdmin wraps a handler to require the admin role.
func (a *App) requireAdmin(next http.Handler) http.Handler {
	return a.requireAuth(a.Gate.RequireAdmin()(next))
}

// protect requires a session and resourceType:action.
func (a *App) protect(resourceType string, action gate.Action, next http.Handler) http.Handler {
	return a.requireAuth(a.Gate.RequirePermission(resourceType, action)(next))
}

// withPreferences injects the language preference from query, cookie or
// Accept-Language, in that order.
func withPreferences(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := i18n.DetectLanguage(r.Header.Get("Accept-Language"))
		if c, err := r.Cookie("lang"); err == nil && i18n.Supported(c.Value) {
			lang = c.Value
		}
		if q := r.URL.Query().Get("lang"); i18n.Supported(q) {
			lang = q
			http.SetCookie(w, &http.Cookie{
				Name:     "lang",
				Value:    lang,
				Path:     "/",
				MaxAge:   86400 * 365,
				HttpOnly: true,
			})
		}
		next.ServeHTTP(w, r.WithContext(i18n.WithLang(r.Context(), lang)))
	})
}

// statusRecorder captures the response status for access logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streams working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withLogging adds request logging middleware.
func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// withRecover turns a handler panic into a 500.
func withRecover(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				logger.Error("handler panic", "path", r.URL.Path, "panic", v, "stack", string(debug.Stack()))
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
