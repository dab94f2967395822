package backoffice

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/diewo77/toiture-backoffice/gate"
	"github.com/diewo77/toiture-backoffice/internal/models"
	"github.com/diewo77/toiture-backoffice/internal/notify"
	"github.com/diewo77/toiture-backoffice/internal/querycache"
	"github.com/diewo77/toiture-backoffice/internal/realtime"
	"github.com/diewo77/toiture-backoffice/internal/store"
)

// Cache scopes.
const (
	ScopeLeads = "leads"
	ScopeDevis = "devis"
	ScopeUsers = "users"
)

// Deps are the shared services every session is built over.
type Deps struct {
	Store  *store.Client
	Users  UserDirectory
	Hub    realtime.Subscriber
	Quotes QuoteSender
	Logger *slog.Logger
	// MaxNotifications bounds each session's queue.
	MaxNotifications int
}

// Session is the back-office state of one signed-in user.
type Session struct {
	UserID        string
	Notifications *notify.Queue

	Leads       *LeadsPage
	Devis       *DevisPage
	Users       *UsersPage
	LeadDialog  *LeadDialog
	DevisDialog *DevisDialog
	UserDialog  *UserDialog

	caps     atomic.Value
	lastSeen atomic.Int64
}

// NewSession builds the pages and dialogs of userID. Capabilities start
// all false until SetCapabilities is called.
func NewSession(userID string, deps Deps) *Session {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	logger := deps.Logger.With("user_id", userID)
	s := &Session{UserID: userID, Notifications: notify.NewQueue(deps.MaxNotifications)}
	s.caps.Store(gate.Capabilities{})
	s.Touch()

	leadCache := querycache.New[models.Lead]()
	devisCache := querycache.New[models.Devis]()
	userCache := querycache.New[models.UserWithRole]()

	s.Leads = &LeadsPage{
		ListPage: NewListPage(PageConfig[models.Lead]{
			Scope: ScopeLeads, Tables: []string{"leads"},
			Source: deps.Store.Leads, Cache: leadCache, Hub: deps.Hub,
			Notifier: s.Notifications, Capabilities: s.Capabilities,
			DeletedCode: "lead_deleted", Logger: logger,
		}),
		table:  deps.Store.Leads,
		quotes: deps.Quotes,
	}
	s.Devis = &DevisPage{
		ListPage: NewListPage(PageConfig[models.Devis]{
			Scope: ScopeDevis, Tables: []string{"devis"},
			Source: deps.Store.Devis, Cache: devisCache, Hub: deps.Hub,
			Notifier: s.Notifications, Capabilities: s.Capabilities,
			DeletedCode: "devis_deleted", Logger: logger,
		}),
		table: deps.Store.Devis,
	}
	s.Users = &UsersPage{
		ListPage: NewListPage(PageConfig[models.UserWithRole]{
			Scope: ScopeUsers, Tables: []string{"profiles", "user_roles"},
			Source: userSource{deps.Users}, Cache: userCache, Hub: deps.Hub,
			Notifier: s.Notifications, Capabilities: s.Capabilities,
			DeletedCode: "user_deleted", Logger: logger,
		}),
		dir: deps.Users,
	}

	s.LeadDialog = newLeadDialog(DialogConfig[models.Lead]{
		Scope: ScopeLeads, Saver: deps.Store.Leads, Cache: leadCache, Notifier: s.Notifications,
		CreatedCode: "lead_created", UpdatedCode: "lead_updated",
	})
	s.DevisDialog = newDevisDialog(DialogConfig[models.Devis]{
		Scope: ScopeDevis, Saver: deps.Store.Devis, Cache: devisCache, Notifier: s.Notifications,
		CreatedCode: "devis_created", UpdatedCode: "devis_updated",
	}, deps.Store.Leads)
	s.UserDialog = &UserDialog{
		dir: deps.Users, cache: userCache, scope: ScopeUsers, notifier: s.Notifications,
		isAdmin: func() bool { return s.Capabilities().IsAdmin },
		form:    blankUser(),
	}
	return s
}

// Capabilities are the role flags last resolved for the user.
func (s *Session) Capabilities() gate.Capabilities {
	return s.caps.Load().(gate.Capabilities)
}

func (s *Session) SetCapabilities(c gate.Capabilities) { s.caps.Store(c) }

// Touch records activity.
func (s *Session) Touch() { s.lastSeen.Store(time.Now().UnixNano()) }

func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

// Visible reports whether any page is shown.
func (s *Session) Visible() bool {
	return s.Leads.Visible() || s.Devis.Visible() || s.Users.Visible()
}

// Close hides every page and waits for background refreshes.
func (s *Session) Close() {
	s.Leads.Hide()
	s.Devis.Hide()
	s.Users.Hide()
	s.Leads.Wait()
	s.Devis.Wait()
	s.Users.Wait()
}

// Registry holds the live sessions.
type Registry struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps, sessions: make(map[string]*Session)}
}

// Get returns the session of userID, creating it on first use.
func (r *Registry) Get(userID string) *Session {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	if !ok {
		s = NewSession(userID, r.deps)
		r.sessions[userID] = s
	}
	r.mu.Unlock()
	s.Touch()
	return s
}

// Drop closes and forgets the session of userID.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Sweep drops sessions idle for longer than idle with no page shown, and
// returns how many were dropped.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)
	var stale []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.LastSeen().Before(cutoff) && !s.Visible() {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()
	for _, s := range stale {
		s.Close()
	}
	return len(stale)
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close drops every session.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}

// RefreshCapabilities resolves the user's role flags through resolve.
func (s *Session) RefreshCapabilities(ctx context.Context, resolve func(ctx context.Context, userID string) gate.Capabilities) gate.Capabilities {
	c := resolve(ctx, s.UserID)
	s.SetCapabilities(c)
	return c
}
