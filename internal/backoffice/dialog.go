package backoffice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"github.com/diewo77/toiture-backoffice/internal/notify"
	"github.com/diewo77/toiture-backoffice/internal/querycache"
	"github.com/diewo77/toiture-backoffice/validation"
)

var (
	ErrSubmitInFlight = errors.New("a submit is already in flight")
	ErrDialogClosed   = errors.New("dialog is not open")
	ErrBadPatch       = errors.New("patch does not fit the form")
)

// Mode tells whether a dialog creates or edits.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// Saver persists one record.
type Saver[T any] interface {
	Create(ctx context.Context, rec *T) (T, error)
	Update(ctx context.Context, rec *T) (T, error)
}

// DialogConfig wires a Dialog.
type DialogConfig[T querycache.Identified] struct {
	Scope    string
	Saver    Saver[T]
	Cache    *querycache.Cache[T]
	Notifier notify.Notifier
	// Blank returns the form of a new record.
	Blank    func() T
	Validate func(T) validation.Violations
	// OnOpen runs when the dialog opens, with the edited record or nil.
	OnOpen func(rec *T)
	// Prepare runs on the form copy right before validation.
	Prepare func(mode Mode, form *T)

	CreatedCode, UpdatedCode string
}

// Dialog is a create-or-edit form bound to one record.
type Dialog[T querycache.Identified] struct {
	cfg DialogConfig[T]

	mu         sync.Mutex
	open       bool
	mode       Mode
	form       T
	violations validation.Violations
	submitting bool
}

func NewDialog[T querycache.Identified](cfg DialogConfig[T]) *Dialog[T] {
	d := &Dialog[T]{cfg: cfg}
	d.resetLocked()
	return d
}

func (d *Dialog[T]) resetLocked() {
	d.mode = ModeCreate
	d.form = d.cfg.Blank()
	d.violations = nil
}

// Open shows the dialog for rec, or for a new record when rec is nil.
// Opening an already open dialog keeps the form as typed.
func (d *Dialog[T]) Open(rec *T) {
	d.mu.Lock()
	if d.open {
		d.mu.Unlock()
		return
	}
	d.open = true
	d.resetLocked()
	if rec != nil {
		d.mode = ModeEdit
		d.form = *rec
	}
	d.mu.Unlock()
	if d.cfg.OnOpen != nil {
		d.cfg.OnOpen(rec)
	}
}

// Close hides the dialog and forgets the form.
func (d *Dialog[T]) Close() {
	d.mu.Lock()
	d.open = false
	d.resetLocked()
	d.mu.Unlock()
}

func (d *Dialog[T]) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

func (d *Dialog[T]) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// Form returns a copy of the current form.
func (d *Dialog[T]) Form() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.form
}

// Violations of the last submit attempt.
func (d *Dialog[T]) Violations() validation.Violations {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.violations
}

// Submitting reports whether a submit is outstanding.
func (d *Dialog[T]) Submitting() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submitting
}

// Edit applies fn to the form.
func (d *Dialog[T]) Edit(fn func(form *T)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrDialogClosed
	}
	fn(&d.form)
	return nil
}

// Patch lays the JSON object raw over the form. Keys present in raw replace
// the form's values and absent keys keep them. keep then sees the form as it
// was and restores what a post must not change, such as the record id.
func (d *Dialog[T]) Patch(raw []byte, keep func(prev T, next *T)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrDialogClosed
	}
	// round-trip so next shares no pointers or slices with the form
	cur, err := json.Marshal(d.form)
	if err != nil {
		return err
	}
	var next T
	if err := json.Unmarshal(cur, &next); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, &next); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPatch, err)
	}
	if keep != nil {
		keep(d.form, &next)
	}
	d.form = next
	return nil
}

// Submit validates the form and sends exactly one create or update. On
// success the cached lists are patched then invalidated and the dialog
// closes; on failure it stays open with the form intact.
func (d *Dialog[T]) Submit(ctx context.Context) (T, error) {
	var zero T
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return zero, ErrDialogClosed
	}
	if d.submitting {
		d.mu.Unlock()
		return zero, ErrSubmitInFlight
	}
	d.submitting = true
	mode, form := d.mode, d.form
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.submitting = false
		d.mu.Unlock()
	}()

	if d.cfg.Prepare != nil {
		d.cfg.Prepare(mode, &form)
	}
	if d.cfg.Validate != nil {
		v := d.cfg.Validate(form)
		d.mu.Lock()
		d.violations = v
		d.mu.Unlock()
		if err := v.Err(); err != nil {
			return zero, err
		}
	}

	var (
		saved T
		err   error
	)
	if mode == ModeEdit {
		saved, err = d.cfg.Saver.Update(ctx, &form)
	} else {
		saved, err = d.cfg.Saver.Create(ctx, &form)
	}
	if err != nil {
		notify.Fail(d.cfg.Notifier, "generic_error", err)
		return zero, err
	}

	if mode == ModeEdit {
		d.cfg.Cache.Merge(d.cfg.Scope, querycache.Replace(saved))
	} else {
		d.cfg.Cache.Merge(d.cfg.Scope, querycache.Prepend(saved))
	}
	d.cfg.Cache.Invalidate(d.cfg.Scope)

	d.mu.Lock()
	d.open = false
	d.resetLocked()
	d.mu.Unlock()

	code := d.cfg.CreatedCode
	if mode == ModeEdit {
		code = d.cfg.UpdatedCode
	}
	notify.Succeed(d.cfg.Notifier, code)
	return saved, nil
}
