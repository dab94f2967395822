package backoffice

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/toiture-backoffice/gate"
	"github.com/diewo77/toiture-backoffice/internal/lines"
	"github.com/diewo77/toiture-backoffice/internal/models"
	"github.com/diewo77/toiture-backoffice/internal/notify"
	"github.com/diewo77/toiture-backoffice/internal/querycache"
	"github.com/diewo77/toiture-backoffice/internal/realtime"
	"github.com/diewo77/toiture-backoffice/internal/services"
	"github.com/diewo77/toiture-backoffice/internal/status"
	"github.com/diewo77/toiture-backoffice/internal/store"
	"github.com/diewo77/toiture-backoffice/internal/webhook"
	"github.com/diewo77/toiture-backoffice/validation"
)

var (
	adminCaps = gate.CapabilitiesFor(gate.RoleAdmin)
	secCaps   = gate.CapabilitiesFor(gate.RoleSecretaire)
)

type fakeQuotes struct {
	err  error
	sent []webhook.QuotePayload
}

func (f *fakeQuotes) SendQuote(p webhook.QuotePayload) error {
	f.sent = append(f.sent, p)
	return f.err
}

type fixture struct {
	db     *gorm.DB
	hub    *realtime.Hub
	store  *store.Client
	quotes *fakeQuotes
	users  *services.UserAdmin
	reg    *Registry
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	hub := realtime.NewHub()
	sc := store.NewClient(db, hub)
	accounts := services.NewAccountService(db, services.LogMailer{}, "http://localhost", nil)
	users := services.NewUserAdmin(db, accounts, hub, nil)
	quotes := &fakeQuotes{}
	reg := NewRegistry(Deps{Store: sc, Users: users, Hub: hub, Quotes: quotes})
	t.Cleanup(reg.Close)
	return &fixture{db: db, hub: hub, store: sc, quotes: quotes, users: users, reg: reg}
}

func (f *fixture) seedLead(t *testing.T, nom string) models.Lead {
	t.Helper()
	l, err := f.store.Leads.Create(context.Background(), &models.Lead{Nom: nom, Email: nom + "@ex.fr", Ville: "Lyon"})
	if err != nil {
		t.Fatalf("seed lead: %v", err)
	}
	return l
}

func lastCode(t *testing.T, s *Session) notify.Notification {
	t.Helper()
	all := s.Notifications.Drain()
	if len(all) == 0 {
		t.Fatal("expected a notification")
	}
	return all[len(all)-1]
}

func TestSessionStartsWithoutCapabilities(t *testing.T) {
	f := setup(t)
	s := f.reg.Get("u1")
	if s.Capabilities() != (gate.Capabilities{}) {
		t.Errorf("pending role must mean no capabilities, got %+v", s.Capabilities())
	}
	if f.reg.Get("u1") != s {
		t.Error("registry should return the same session")
	}
}

func TestPageSubscriptionsAreReleased(t *testing.T) {
	f := setup(t)
	s := f.reg.Get("u1")
	if f.hub.Len() != 0 {
		t.Fatalf("no subscription before show, got %d", f.hub.Len())
	}

	release := s.Leads.Show()
	release2 := s.Leads.Show()
	if f.hub.Len() != 1 {
		t.Fatalf("one subscription per shown page, got %d", f.hub.Len())
	}
	release()
	release()
	if !s.Leads.Visible() || f.hub.Len() != 1 {
		t.Fatal("second view must keep the page shown")
	}
	release2()
	if s.Leads.Visible() || f.hub.Len() != 0 {
		t.Fatalf("subscription leaked: %d", f.hub.Len())
	}

	s.Users.Show()
	if f.hub.Len() != 2 {
		t.Fatalf("users page listens on profiles and user_roles, got %d", f.hub.Len())
	}
	s.Users.Hide()
	s.Users.Hide()
	if f.hub.Len() != 0 {
		t.Fatalf("hide must release everything, got %d", f.hub.Len())
	}

	for i := 0; i < 20; i++ {
		s.Devis.Show()()
	}
	if f.hub.Len() != 0 {
		t.Fatalf("repeated visits leaked %d subscriptions", f.hub.Len())
	}

	s.Leads.Show()
	s.Devis.Show()
	f.reg.Drop("u1")
	if f.hub.Len() != 0 {
		t.Fatalf("dropping the session must release subscriptions, got %d", f.hub.Len())
	}
}

func TestRealtimeInvalidatesVisiblePage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.seedLead(t, "alpha")
	s := f.reg.Get("u1")

	release := s.Leads.Show()
	defer release()
	rows, err := s.Leads.Rows(ctx)
	if err != nil || len(rows) != 1 {
		t.Fatalf("rows = %v, %v", rows, err)
	}

	// a write from another client
	f.seedLead(t, "beta")
	s.Leads.Wait()

	if got := s.Leads.cfg.Cache.Invalidations(ScopeLeads); got != 1 {
		t.Errorf("expected 1 invalidation, got %d", got)
	}
	cached, fresh, ok := s.Leads.cfg.Cache.Get(s.Leads.Key())
	if !ok || !fresh || len(cached) != 2 {
		t.Fatalf("background refetch should cache 2 fresh rows, got %d fresh=%v", len(cached), fresh)
	}
	if cached[0].Nom != "beta" {
		t.Errorf("newest first, got %s", cached[0].Nom)
	}
}

func TestHiddenPageIgnoresEvents(t *testing.T) {
	f := setup(t)
	s := f.reg.Get("u1")
	if _, err := s.Leads.Rows(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.seedLead(t, "gamma")
	if got := s.Leads.cfg.Cache.Invalidations(ScopeLeads); got != 0 {
		t.Errorf("hidden page must not be subscribed, got %d invalidations", got)
	}
}

func TestRowsFilters(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.seedLead(t, "dupont")
	l := f.seedLead(t, "martin")
	l.Statut = status.LeadChaud
	if _, err := f.store.Leads.Update(ctx, &l); err != nil {
		t.Fatal(err)
	}

	s := f.reg.Get("u1")
	s.Leads.SetStatus("chaud")
	rows, _ := s.Leads.Rows(ctx)
	if len(rows) != 1 || rows[0].Nom != "martin" {
		t.Errorf("status filter: %+v", rows)
	}
	s.Leads.SetStatus(status.All)
	s.Leads.SetSearch("DUP")
	rows, _ = s.Leads.Rows(ctx)
	if len(rows) != 1 || rows[0].Nom != "dupont" {
		t.Errorf("search: %+v", rows)
	}
}

func TestDeleteFlow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	l := f.seedLead(t, "todelete")
	s := f.reg.Get("u1")

	s.SetCapabilities(secCaps)
	if err := s.Leads.RequestDelete(l.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("secretaire must not delete, got %v", err)
	}

	s.SetCapabilities(adminCaps)
	if _, err := s.Leads.Rows(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Leads.RequestDelete(l.ID); err != nil {
		t.Fatal(err)
	}
	if id, ok := s.Leads.PendingDelete(); !ok || id != l.ID {
		t.Fatalf("pending = %q %v", id, ok)
	}
	s.Leads.CancelDelete()
	if _, err := f.store.Leads.Get(ctx, l.ID); err != nil {
		t.Fatal("cancel must not delete")
	}
	if err := s.Leads.ConfirmDelete(ctx); !errors.Is(err, ErrNoPendingDelete) {
		t.Fatalf("confirm after cancel: %v", err)
	}

	_ = s.Leads.RequestDelete(l.ID)
	if err := s.Leads.ConfirmDelete(ctx); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, ok := s.Leads.PendingDelete(); ok {
		t.Error("delete should disarm")
	}
	if _, err := f.store.Leads.Get(ctx, l.ID); !errors.Is(err, store.ErrNotFound) {
		t.Error("row should be gone")
	}
	rows, fresh, _ := s.Leads.cfg.Cache.Get(s.Leads.Key())
	if fresh || len(rows) != 0 {
		t.Errorf("cache should be patched and stale, rows=%d fresh=%v", len(rows), fresh)
	}
	if n := lastCode(t, s); n.Level != notify.Success || n.Code != "lead_deleted" {
		t.Errorf("notification %+v", n)
	}

	// failing delete keeps the target armed
	_ = s.Leads.RequestDelete("missing")
	if err := s.Leads.ConfirmDelete(ctx); err == nil {
		t.Fatal("expected failure")
	}
	if id, _ := s.Leads.PendingDelete(); id != "missing" {
		t.Errorf("failed delete should stay armed, got %q", id)
	}
	if n := lastCode(t, s); n.Level != notify.Error {
		t.Errorf("expected error notification, got %+v", n)
	}
}

type countingSaver struct {
	inner   Saver[models.Lead]
	calls   int
	block   chan struct{}
	started chan struct{}
}

func (c *countingSaver) Create(ctx context.Context, rec *models.Lead) (models.Lead, error) {
	c.calls++
	if c.block != nil {
		close(c.started)
		<-c.block
	}
	return c.inner.Create(ctx, rec)
}

func (c *countingSaver) Update(ctx context.Context, rec *models.Lead) (models.Lead, error) {
	c.calls++
	return c.inner.Update(ctx, rec)
}

func newTestLeadDialog(f *fixture, saver Saver[models.Lead]) (*LeadDialog, *querycache.Cache[models.Lead], *notify.Queue) {
	cache := querycache.New[models.Lead]()
	q := notify.NewQueue(0)
	d := newLeadDialog(DialogConfig[models.Lead]{
		Scope: ScopeLeads, Saver: saver, Cache: cache, Notifier: q,
		CreatedCode: "lead_created", UpdatedCode: "lead_updated",
	})
	return d, cache, q
}

func TestDialogCreate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	saver := &countingSaver{inner: f.store.Leads}
	d, cache, q := newTestLeadDialog(f, saver)
	key := querycache.Key{Scope: ScopeLeads}
	cache.Set(key, []models.Lead{{Nom: "old"}})

	if _, err := d.Submit(ctx); !errors.Is(err, ErrDialogClosed) {
		t.Fatalf("closed dialog submit: %v", err)
	}

	d.Open(nil)
	if d.Mode() != ModeCreate || d.Form().Statut != status.LeadNouveau {
		t.Fatalf("blank form expected, got %+v", d.Form())
	}
	_ = d.Edit(func(l *models.Lead) { l.Nom = "" })

	_, err := d.Submit(ctx)
	var verr *validation.Error
	if !errors.As(err, &verr) || verr.Violations["nom"] != "required" {
		t.Fatalf("expected nom required, got %v", err)
	}
	if saver.calls != 0 || !d.IsOpen() {
		t.Fatal("invalid form must not be dispatched and must stay open")
	}
	if len(q.Peek()) != 0 {
		t.Error("validation errors are inline, not notified")
	}

	_ = d.Edit(func(l *models.Lead) { l.Nom = "Durand" })
	saved, err := d.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if saver.calls != 1 || saved.ID == "" {
		t.Fatalf("exactly one create expected, calls=%d", saver.calls)
	}
	if d.IsOpen() || d.Form().Nom != "" {
		t.Error("dialog should close and reset")
	}
	rows, fresh, _ := cache.Get(key)
	if fresh || len(rows) != 2 || rows[0].ID != saved.ID {
		t.Errorf("expected prepended stale rows, got %d fresh=%v", len(rows), fresh)
	}
	if n := q.Drain(); len(n) != 1 || n[0].Code != "lead_created" {
		t.Errorf("notifications %+v", n)
	}
}

func TestDialogEditAndReopen(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	l := f.seedLead(t, "edit")
	d, cache, q := newTestLeadDialog(f, f.store.Leads)
	key := querycache.Key{Scope: ScopeLeads, Search: "x"}
	cache.Set(key, []models.Lead{l})

	d.Open(&l)
	_ = d.Edit(func(f *models.Lead) { f.Ville = "Paris" })
	other := models.Lead{Nom: "other"}
	d.Open(&other)
	if d.Form().Ville != "Paris" {
		t.Fatal("re-opening an open dialog must not reset the form")
	}
	if d.Mode() != ModeEdit {
		t.Fatal("expected edit mode")
	}
	saved, err := d.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if saved.Ville != "Paris" {
		t.Errorf("update not persisted: %+v", saved)
	}
	rows, _, _ := cache.Get(key)
	if len(rows) != 1 || rows[0].Ville != "Paris" {
		t.Errorf("row should be replaced in place: %+v", rows)
	}
	if n := q.Drain(); len(n) != 1 || n[0].Code != "lead_updated" {
		t.Errorf("notifications %+v", n)
	}
}

func TestDialogFailureStaysOpen(t *testing.T) {
	f := setup(t)
	d, cache, q := newTestLeadDialog(f, f.store.Leads)
	ghost := models.Lead{Base: models.Base{ID: "ghost"}, Nom: "ghost"}
	d.Open(&ghost)
	if _, err := d.Submit(context.Background()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !d.IsOpen() || d.Form().Nom != "ghost" {
		t.Error("failed submit must keep the dialog and its form")
	}
	if cache.Invalidations(ScopeLeads) != 0 {
		t.Error("failed submit must not touch the cache")
	}
	n := q.Drain()
	if len(n) != 1 || n[0].Level != notify.Error || n[0].Detail == "" {
		t.Errorf("expected error carrying the server message, got %+v", n)
	}
}

func TestDialogSubmitInFlight(t *testing.T) {
	f := setup(t)
	saver := &countingSaver{inner: f.store.Leads, block: make(chan struct{}), started: make(chan struct{})}
	d, _, _ := newTestLeadDialog(f, saver)
	d.Open(nil)
	_ = d.Edit(func(l *models.Lead) { l.Nom = "slow" })

	done := make(chan error, 1)
	go func() {
		_, err := d.Submit(context.Background())
		done <- err
	}()
	<-saver.started
	if !d.Submitting() {
		t.Error("dialog should report the pending submit")
	}
	if _, err := d.Submit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("second submit: %v", err)
	}
	close(saver.block)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if saver.calls != 1 {
		t.Errorf("expected one dispatch, got %d", saver.calls)
	}
}

func TestLeadDialogLines(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	d, _, _ := newTestLeadDialog(f, f.store.Leads)

	d.Open(nil)
	_ = d.Edit(func(l *models.Lead) { l.Nom = "lines" })
	i, _ := d.AppendLine()
	_ = d.UpdateLine(i, lines.FieldDesignation, "Tuiles")
	_ = d.UpdateLine(i, lines.FieldQuantite, "2,5")
	_ = d.UpdateLine(i, lines.FieldPrixUnitaireHT, "40")
	_ = d.SetNotes("  après appel  ")
	if v := d.Lines(); v.GrandTotal != 100 || v.LineTotals[0] != 100 {
		t.Errorf("totals %+v", v)
	}
	saved, err := d.Submit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.LignesDevisCustom) != 1 || saved.NotesDevisCustom == nil || *saved.NotesDevisCustom != "après appel" {
		t.Errorf("override not stored: %+v %v", saved.LignesDevisCustom, saved.NotesDevisCustom)
	}

	d.Open(&saved)
	if d.Lines().Notes != "après appel" || len(d.Lines().Lines) != 1 {
		t.Fatal("editor should load the record's lines")
	}
	_ = d.RemoveLine(0)
	_ = d.SetNotes(" ")
	cleared, err := d.Submit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cleared.LignesDevisCustom) != 0 || cleared.NotesDevisCustom != nil {
		t.Errorf("empty editor must clear the override: %+v %v", cleared.LignesDevisCustom, cleared.NotesDevisCustom)
	}
	if cleared.QuoteSource() != models.QuoteAutomatic {
		t.Errorf("quote source = %s", cleared.QuoteSource())
	}
}

func TestDevisDialog(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	lead, _ := f.store.Leads.Create(ctx, &models.Lead{Nom: "Martin", Prenom: "Paul", Email: "p@m.fr", Telephone: "06", Adresse: "2 rue"})
	f.seedLead(t, "Albert")
	s := f.reg.Get("u1")
	d := s.DevisDialog

	opts, err := d.LeadOptions(ctx)
	if err != nil || len(opts) != 2 || opts[0].Nom != "Albert" {
		t.Fatalf("options ordered by nom: %+v %v", opts, err)
	}

	d.Open(nil)
	if d.Form().TVAPct != 10 || d.Form().Statut != status.DevisEnvoye {
		t.Fatalf("blank devis: %+v", d.Form())
	}
	if err := d.SelectLead(ctx, lead.ID); err != nil {
		t.Fatal(err)
	}
	form := d.Form()
	if form.ClientNom != "Martin Paul" || form.ClientEmail != "p@m.fr" || form.ClientAdresse != "2 rue" || *form.LeadID != lead.ID {
		t.Errorf("prefill: %+v", form)
	}
	_ = d.SetMontantHT(1000)
	if d.Form().MontantTTC != 1100 {
		t.Errorf("ttc = %v", d.Form().MontantTTC)
	}
	_ = d.SetTVAPct(20)
	if got := d.Form(); got.MontantTTC != 1200 || got.MontantHT != 1000 {
		t.Errorf("tva change: %+v", got)
	}
	_ = d.Edit(func(f *models.Devis) { f.Numero = "typed by hand" })

	saved, err := d.Submit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Numero != "DEV-"+time.Now().Format("2006")+"-0001" {
		t.Errorf("numero = %q", saved.Numero)
	}

	latest, err := s.Devis.Latest(ctx, 0)
	if err != nil || len(latest) != 1 {
		t.Errorf("latest: %v %v", latest, err)
	}

	d.Open(nil)
	_, err = d.Submit(ctx)
	var verr *validation.Error
	if !errors.As(err, &verr) || verr.Violations["client_nom"] == "" {
		t.Fatalf("expected a client_nom violation, got %v", err)
	}
	if _, ok := verr.Violations["montant_ht"]; ok {
		t.Errorf("a blank quote starts at zero and must not flag montant_ht: %v", verr.Violations)
	}
}

func TestValidateDevis(t *testing.T) {
	base := models.Devis{ClientNom: "Durand", Statut: status.DevisEnvoye, TVAPct: 10}
	tests := []struct {
		name  string
		edit  func(*models.Devis)
		field string
	}{
		{"zero amount", func(d *models.Devis) { d.MontantHT = 0 }, ""},
		{"negative amount", func(d *models.Devis) { d.MontantHT = -0.01 }, "montant_ht"},
		{"legacy status spelling", func(d *models.Devis) { d.Statut = "Payés" }, ""},
		{"lead status", func(d *models.Devis) { d.Statut = "nouveau" }, "statut"},
		{"vat above 100", func(d *models.Devis) { d.TVAPct = 101 }, "tva_pct"},
		{"bad email", func(d *models.Devis) { d.ClientEmail = "nope" }, "client_email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base
			tt.edit(&d)
			v := ValidateDevis(d)
			if tt.field == "" && !v.Empty() {
				t.Errorf("unexpected violations %v", v)
			}
			if tt.field != "" && v[tt.field] == "" {
				t.Errorf("expected a %s violation, got %v", tt.field, v)
			}
		})
	}
}

func TestDialogPatch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	score := 42
	lead, err := f.store.Leads.Create(ctx, &models.Lead{Nom: "Bernard", AINotes: "rappel", ScoreQualification: &score})
	if err != nil {
		t.Fatal(err)
	}
	d := f.reg.Get("u1").LeadDialog

	if err := d.Patch([]byte(`{"ville":"Nice"}`), nil); !errors.Is(err, ErrDialogClosed) {
		t.Fatalf("closed dialog: %v", err)
	}

	d.Open(&lead)
	keep := func(prev models.Lead, next *models.Lead) { next.Base = prev.Base }
	if err := d.Patch([]byte(`{"id":"forged","ville":"Nice","score_qualification":50}`), keep); err != nil {
		t.Fatal(err)
	}
	form := d.Form()
	if form.ID != lead.ID || form.Ville != "Nice" || form.AINotes != "rappel" || *form.ScoreQualification != 50 {
		t.Errorf("patched form = %+v", form)
	}
	if score != 42 || *lead.ScoreQualification != 42 {
		t.Error("patch wrote through to the opened record")
	}

	err = d.Patch([]byte(`{"ville":12}`), keep)
	if !errors.Is(err, ErrBadPatch) {
		t.Errorf("type mismatch: %v", err)
	}
	if d.Form().Ville != "Nice" {
		t.Error("a rejected patch must leave the form alone")
	}
}

func TestSendQuote(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.reg.Get("u1")
	s.SetCapabilities(secCaps)

	t.Run("success", func(t *testing.T) {
		l := f.seedLead(t, "ok")
		if err := s.Leads.SendQuote(ctx, l.ID); err != nil {
			t.Fatal(err)
		}
		got, _ := f.store.Leads.Get(ctx, l.ID)
		if got.Statut != status.LeadDevisEnvoye {
			t.Errorf("statut = %s", got.Statut)
		}
		if n := lastCode(t, s); n.Level != notify.Success || n.Code != "quote_sent" {
			t.Errorf("notification %+v", n)
		}
		if p := f.quotes.sent[len(f.quotes.sent)-1]; p.LeadID != l.ID || p.Nom != "ok" {
			t.Errorf("payload %+v", p)
		}
	})

	t.Run("webhook failure", func(t *testing.T) {
		l := f.seedLead(t, "ko")
		f.quotes.err = errors.New("502")
		defer func() { f.quotes.err = nil }()
		if err := s.Leads.SendQuote(ctx, l.ID); err == nil {
			t.Fatal("expected error")
		}
		got, _ := f.store.Leads.Get(ctx, l.ID)
		if got.Statut != status.LeadNouveau {
			t.Errorf("status must not change, got %s", got.Statut)
		}
		if n := lastCode(t, s); n.Level != notify.Error || n.Code != "quote_send_failed" {
			t.Errorf("notification %+v", n)
		}
	})

	t.Run("status update failure", func(t *testing.T) {
		l := f.seedLead(t, "partial")
		err := f.db.Callback().Update().Before("gorm:update").Register("test:fail_leads", func(tx *gorm.DB) {
			if tx.Statement.Table == "leads" {
				_ = tx.AddError(errors.New("update refused"))
			}
		})
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = f.db.Callback().Update().Remove("test:fail_leads") }()

		if err := s.Leads.SendQuote(ctx, l.ID); !errors.Is(err, ErrQuoteStatusLost) {
			t.Fatalf("expected ErrQuoteStatusLost, got %v", err)
		}
		if n := lastCode(t, s); n.Level != notify.Warning || n.Code != "quote_status_lost" {
			t.Errorf("notification %+v", n)
		}
	})

	t.Run("reader", func(t *testing.T) {
		s.SetCapabilities(gate.Capabilities{})
		defer s.SetCapabilities(secCaps)
		if err := s.Leads.SendQuote(ctx, "x"); !errors.Is(err, ErrForbidden) {
			t.Errorf("got %v", err)
		}
	})
}

func TestUsersPage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.reg.Get("u1")

	s.SetCapabilities(secCaps)
	if _, err := s.Users.Rows(ctx); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-admin: %v", err)
	}
	if n := lastCode(t, s); n.Code != "access_denied" {
		t.Errorf("notification %+v", n)
	}

	s.SetCapabilities(adminCaps)
	d := s.UserDialog
	d.Open()
	_ = d.Edit(func(u *services.NewUser) { u.Email = "bad" })
	if _, err := d.Submit(ctx); err == nil || d.Violations()["email"] == "" {
		t.Fatalf("expected inline email violation, got %v", err)
	}
	_ = d.Edit(func(u *services.NewUser) {
		u.Email = "new@ex.fr"
		u.Password = "secret"
		u.Role = gate.RoleSecretaire
	})
	u, err := d.Submit(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.IsOpen() {
		t.Error("dialog should close")
	}
	if n := lastCode(t, s); n.Code != "user_created" {
		t.Errorf("notification %+v", n)
	}

	d.Open()
	_ = d.Edit(func(nu *services.NewUser) { nu.Email = "new@ex.fr"; nu.Password = "secret" })
	if _, err := d.Submit(ctx); !errors.Is(err, services.ErrEmailTaken) {
		t.Fatalf("duplicate: %v", err)
	}
	if n := lastCode(t, s); n.Code != "email_taken" {
		t.Errorf("notification %+v", n)
	}
	d.Close()

	rows, err := s.Users.Rows(ctx)
	if err != nil || len(rows) != 1 || rows[0].Role != gate.RoleSecretaire {
		t.Fatalf("rows %+v %v", rows, err)
	}

	if err := s.Users.ChangeRole(ctx, u.ID, gate.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	rows, _ = s.Users.Rows(ctx)
	if rows[0].Role != gate.RoleAdmin {
		t.Errorf("role after change: %s", rows[0].Role)
	}

	_ = s.Users.RequestDelete(u.ID)
	if err := s.Users.ConfirmDelete(ctx); err != nil {
		t.Fatal(err)
	}
	rows, _ = s.Users.Rows(ctx)
	if len(rows) != 0 {
		t.Errorf("user still listed: %+v", rows)
	}
}

func TestRegistrySweep(t *testing.T) {
	f := setup(t)
	idle := f.reg.Get("idle")
	busy := f.reg.Get("busy")
	release := busy.Leads.Show()
	defer release()
	idle.lastSeen.Store(time.Now().Add(-time.Hour).UnixNano())
	busy.lastSeen.Store(time.Now().Add(-time.Hour).UnixNano())

	if n := f.reg.Sweep(30 * time.Minute); n != 1 {
		t.Fatalf("swept %d sessions, want 1", n)
	}
	if f.reg.Len() != 1 {
		t.Errorf("shown page must keep its session, len=%d", f.reg.Len())
	}
}
