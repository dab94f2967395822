package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/lib/pq"
)

// DefaultChannel is the NOTIFY channel written by the table triggers.
const DefaultChannel = "table_changes"

// PGListener relays PostgreSQL notifications into a Publisher. The payload
// is the JSON object built by the notify_table_change() trigger.
type PGListener struct {
	DSN     string
	Channel string
	Out     Publisher
	Logger  *slog.Logger

	// MinReconnect and MaxReconnect bound the listener's reconnect backoff.
	MinReconnect time.Duration
	MaxReconnect time.Duration
}

type notifyPayload struct {
	Table string `json:"table"`
	Op    string `json:"op"`
	ID    string `json:"id"`
}

// DecodePayload turns a trigger payload into an Event.
func DecodePayload(payload string) (Event, error) {
	var p notifyPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return Event{}, fmt.Errorf("decode notify payload: %w", err)
	}
	if p.Table == "" {
		return Event{}, fmt.Errorf("decode notify payload: missing table")
	}
	return Event{Table: p.Table, Op: Op(p.Op), ID: p.ID, At: time.Now()}, nil
}

// Run listens until ctx is cancelled.
func (l *PGListener) Run(ctx context.Context) error {
	log := l.Logger
	if log == nil {
		log = slog.Default()
	}
	channel := l.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	minRe, maxRe := l.MinReconnect, l.MaxReconnect
	if minRe == 0 {
		minRe = time.Second
	}
	if maxRe == 0 {
		maxRe = time.Minute
	}

	listener := pq.NewListener(l.DSN, minRe, maxRe, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("realtime listener event", "event", ev, "err", err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(channel); err != nil {
		return fmt.Errorf("listen %s: %w", channel, err)
	}
	log.Info("realtime listener started", "channel", channel)

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			if n == nil {
				// connection was re-established, events may have been lost
				l.Out.Publish(Event{Table: AnyTable, Op: OpUpdate})
				continue
			}
			e, err := DecodePayload(n.Extra)
			if err != nil {
				log.Warn("realtime payload dropped", "err", err)
				continue
			}
			l.Out.Publish(e)
		case <-ping.C:
			if err := listener.Ping(); err != nil {
				log.Warn("realtime listener ping failed", "err", err)
			}
		}
	}
}
