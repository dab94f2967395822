// Package notify queues the transient messages shown to a back-office user
// after an action.
package notify

import (
	"sync"
	"time"

	"github.com/diewo77/toiture-backoffice/i18n"
)

type Level string

const (
	Success Level = "success"
	Error   Level = "error"
	Warning Level = "warning"
	Info    Level = "info"
)

// Notification is one message. Code is an i18n key; Detail carries the
// database or server message verbatim and wins over Code when set.
type Notification struct {
	Level  Level     `json:"level"`
	Code   string    `json:"code"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// Message renders n in lang.
func (n Notification) Message(lang string) string {
	if n.Detail != "" {
		return n.Detail
	}
	return i18n.T(lang, n.Code)
}

// Notifier receives notifications.
type Notifier interface {
	Notify(Notification)
}

// Queue is a Notifier that buffers until drained. Only the most recent
// max notifications are kept.
type Queue struct {
	mu    sync.Mutex
	items []Notification
	max   int
}

func NewQueue(max int) *Queue {
	if max <= 0 {
		max = 50
	}
	return &Queue{max: max}
}

func (q *Queue) Notify(n Notification) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
	if over := len(q.items) - q.max; over > 0 {
		q.items = append([]Notification(nil), q.items[over:]...)
	}
}

// Drain returns and forgets the queued notifications.
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Peek returns the queued notifications without removing them.
func (q *Queue) Peek() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Notification(nil), q.items...)
}

// Helpers.

func Succeed(n Notifier, code string) {
	n.Notify(Notification{Level: Success, Code: code})
}

func Warn(n Notifier, code string) {
	n.Notify(Notification{Level: Warning, Code: code})
}

// Fail notifies an error. err's message is shown when present, otherwise
// the fallback code.
func Fail(n Notifier, fallback string, err error) {
	var detail string
	if err != nil {
		detail = err.Error()
	}
	n.Notify(Notification{Level: Error, Code: fallback, Detail: detail})
}
