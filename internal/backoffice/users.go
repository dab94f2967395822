package backoffice

import (
	"context"
	"errors"
	"sync"

	"github.com/diewo77/toiture-backoffice/gate"
	"github.com/diewo77/toiture-backoffice/internal/models"
	"github.com/diewo77/toiture-backoffice/internal/notify"
	"github.com/diewo77/toiture-backoffice/internal/querycache"
	"github.com/diewo77/toiture-backoffice/internal/services"
	"github.com/diewo77/toiture-backoffice/internal/store"
	"github.com/diewo77/toiture-backoffice/validation"
)

// UserDirectory is the user administration backend.
type UserDirectory interface {
	List(ctx context.Context, q services.UserQuery) ([]models.UserWithRole, error)
	Create(ctx context.Context, in services.NewUser) (models.UserWithRole, error)
	ChangeRole(ctx context.Context, userID string, role gate.Role) error
	Delete(ctx context.Context, userID string) error
}

type userSource struct{ dir UserDirectory }

func (s userSource) List(ctx context.Context, q store.Query) ([]models.UserWithRole, error) {
	return s.dir.List(ctx, services.UserQuery{Search: q.Search})
}

func (s userSource) Delete(ctx context.Context, id string) error { return s.dir.Delete(ctx, id) }

// UsersPage is the admin-only user list.
type UsersPage struct {
	*ListPage[models.UserWithRole]
	dir UserDirectory
}

// Guard returns ErrForbidden, and tells the user so, unless they are admin.
func (p *UsersPage) Guard() error {
	if !p.cfg.Capabilities().IsAdmin {
		p.cfg.Notifier.Notify(notify.Notification{Level: notify.Error, Code: "access_denied"})
		return ErrForbidden
	}
	return nil
}

// Rows is the guarded user list.
func (p *UsersPage) Rows(ctx context.Context) ([]models.UserWithRole, error) {
	if err := p.Guard(); err != nil {
		return nil, err
	}
	return p.ListPage.Rows(ctx)
}

// RequestDelete arms a user for deletion.
func (p *UsersPage) RequestDelete(id string) error {
	if err := p.Guard(); err != nil {
		return err
	}
	return p.ListPage.RequestDelete(id)
}

// ConfirmDelete deletes the armed user's role and profile.
func (p *UsersPage) ConfirmDelete(ctx context.Context) error {
	if err := p.Guard(); err != nil {
		return err
	}
	return p.ListPage.ConfirmDelete(ctx)
}

// ChangeRole replaces the role of userID.
func (p *UsersPage) ChangeRole(ctx context.Context, userID string, role gate.Role) error {
	if err := p.Guard(); err != nil {
		return err
	}
	if err := p.dir.ChangeRole(ctx, userID, role); err != nil {
		notify.Fail(p.cfg.Notifier, "role_update_failed", err)
		return err
	}
	p.Invalidate()
	notify.Succeed(p.cfg.Notifier, "role_updated")
	return nil
}

// UserDialog creates back-office users. It never edits.
type UserDialog struct {
	dir      UserDirectory
	cache    *querycache.Cache[models.UserWithRole]
	scope    string
	notifier notify.Notifier
	isAdmin  func() bool

	mu         sync.Mutex
	open       bool
	form       services.NewUser
	violations validation.Violations
	submitting bool
}

func blankUser() services.NewUser { return services.NewUser{Role: gate.RoleLecteur} }

func (d *UserDialog) Open() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return
	}
	d.open = true
	d.form = blankUser()
	d.violations = nil
}

func (d *UserDialog) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	d.form = blankUser()
	d.violations = nil
}

func (d *UserDialog) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Form returns the form without its password.
func (d *UserDialog) Form() services.NewUser {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := d.form
	f.Password = ""
	return f
}

func (d *UserDialog) Violations() validation.Violations {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.violations
}

// Edit applies fn to the form.
func (d *UserDialog) Edit(fn func(*services.NewUser)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrDialogClosed
	}
	fn(&d.form)
	return nil
}

// Submit runs the three-step user creation.
func (d *UserDialog) Submit(ctx context.Context) (models.UserWithRole, error) {
	if !d.isAdmin() {
		d.notifier.Notify(notify.Notification{Level: notify.Error, Code: "access_denied"})
		return models.UserWithRole{}, ErrForbidden
	}
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return models.UserWithRole{}, ErrDialogClosed
	}
	if d.submitting {
		d.mu.Unlock()
		return models.UserWithRole{}, ErrSubmitInFlight
	}
	d.submitting = true
	form := d.form
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.submitting = false
		d.mu.Unlock()
	}()

	if err := form.Validate(); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			d.mu.Lock()
			d.violations = verr.Violations
			d.mu.Unlock()
		}
		return models.UserWithRole{}, err
	}

	u, err := d.dir.Create(ctx, form)
	switch {
	case errors.Is(err, services.ErrEmailTaken):
		d.notifier.Notify(notify.Notification{Level: notify.Error, Code: "email_taken"})
		return u, err
	case errors.Is(err, services.ErrPartialCreate):
		d.notifier.Notify(notify.Notification{Level: notify.Error, Code: "user_partial"})
		return u, err
	case err != nil:
		notify.Fail(d.notifier, "user_create_failed", err)
		return u, err
	}

	d.cache.Merge(d.scope, querycache.Prepend(u))
	d.cache.Invalidate(d.scope)
	d.Close()
	notify.Succeed(d.notifier, "user_created")
	return u, nil
}
