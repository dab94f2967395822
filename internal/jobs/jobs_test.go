package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diewo77/toiture-backoffice/internal/models"
)

type fakeOrphans struct {
	accounts  []models.Account
	olderThan time.Time
	deleted   []string
	failOn    string
}

func (f *fakeOrphans) OrphanAccounts(_ context.Context, olderThan time.Time) ([]models.Account, error) {
	f.olderThan = olderThan
	return f.accounts, nil
}

func (f *fakeOrphans) DeleteAccount(_ context.Context, id string) error {
	if id == f.failOn {
		return errors.New("refused")
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func TestOrphanSweep(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	accounts := []models.Account{{Base: models.Base{ID: "a"}}, {Base: models.Base{ID: "b"}}}

	tests := []struct {
		name        string
		delete      bool
		failOn      string
		wantDeleted int
		wantErr     bool
	}{
		{"report only", false, "", 0, false},
		{"delete", true, "", 2, false},
		{"delete with failure", true, "a", 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeOrphans{accounts: accounts, failOn: tt.failOn}
			j := &OrphanSweep{Store: store, Grace: time.Hour, Delete: tt.delete, now: func() time.Time { return now }}
			n, err := j.Run(context.Background())
			if n != 2 {
				t.Errorf("found %d, want 2", n)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v", err)
			}
			if len(store.deleted) != tt.wantDeleted {
				t.Errorf("deleted %v", store.deleted)
			}
			if !store.olderThan.Equal(now.Add(-time.Hour)) {
				t.Errorf("cutoff %v", store.olderThan)
			}
		})
	}
}

type fakeSessions struct {
	idle  time.Duration
	calls int
}

func (f *fakeSessions) Sweep(idle time.Duration) int {
	f.idle = idle
	f.calls++
	return 3
}

func TestSessionSweep(t *testing.T) {
	fs := &fakeSessions{}
	j := &SessionSweep{Sessions: fs, Idle: 30 * time.Minute}
	if err := j.Func()(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fs.calls != 1 || fs.idle != 30*time.Minute {
		t.Errorf("sweep called %d times with %v", fs.calls, fs.idle)
	}
}

func TestScheduler(t *testing.T) {
	s := NewScheduler(nil, time.Second)
	if err := s.Add("disabled", "", nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("bad", "not a spec", func(context.Context) error { return nil }); err == nil {
		t.Error("invalid spec should fail")
	}
	if err := s.Add("ok", "@every 1h", func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", s.Len())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
