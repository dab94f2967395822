package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/diewo77/toiture-backoffice/internal/models"
)

// OrphanStore finds and removes accounts left without a profile by a
// failed user creation.
type OrphanStore interface {
	OrphanAccounts(ctx context.Context, olderThan time.Time) ([]models.Account, error)
	DeleteAccount(ctx context.Context, id string) error
}

// OrphanSweep reports orphaned accounts older than Grace, and deletes them
// when Delete is set.
type OrphanSweep struct {
	Store  OrphanStore
	Grace  time.Duration
	Delete bool
	Logger *slog.Logger

	now func() time.Time
}

// Run returns how many orphans were found.
func (j *OrphanSweep) Run(ctx context.Context) (int, error) {
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if j.now != nil {
		now = j.now
	}
	orphans, err := j.Store.OrphanAccounts(ctx, now().Add(-j.Grace))
	if err != nil {
		return 0, err
	}
	var errs []error
	for _, a := range orphans {
		if !j.Delete {
			logger.Warn("orphaned account", "account_id", a.ID, "email", a.Email, "created_at", a.CreatedAt)
			continue
		}
		if err := j.Store.DeleteAccount(ctx, a.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		logger.Info("orphaned account deleted", "account_id", a.ID, "email", a.Email)
	}
	return len(orphans), errors.Join(errs...)
}

// Func adapts the sweep to Scheduler.Add.
func (j *OrphanSweep) Func() func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := j.Run(ctx)
		return err
	}
}

// SessionSweeper drops idle sessions.
type SessionSweeper interface {
	Sweep(idle time.Duration) int
}

// SessionSweep closes sessions idle for longer than Idle.
type SessionSweep struct {
	Sessions SessionSweeper
	Idle     time.Duration
	Logger   *slog.Logger
}

func (j *SessionSweep) Func() func(context.Context) error {
	return func(context.Context) error {
		if n := j.Sessions.Sweep(j.Idle); n > 0 && j.Logger != nil {
			j.Logger.Info("idle sessions closed", "count", n)
		}
		return nil
	}
}
