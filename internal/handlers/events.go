package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/diewo77/toiture-backoffice/httpx"
	"github.com/diewo77/toiture-backoffice/internal/backoffice"
)

// HeartbeatInterval spaces SSE keep-alive comments.
var HeartbeatInterval = 25 * time.Second

// watchedPage is a list page that can be shown and observed.
type watchedPage interface {
	Scope() string
	Show() (release func())
	Watch(fn func()) (cancel func())
}

type invalidateEvent struct {
	Scope string    `json:"scope"`
	At    time.Time `json:"at"`
}

// serveEvents streams an "invalidate" event each time the page's cached
// rows go stale. The page counts as shown while the stream is open.
func serveEvents(w http.ResponseWriter, r *http.Request, s *backoffice.Session, page watchedPage) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.JSONError(w, http.StatusInternalServerError, "streaming_unsupported", nil)
		return
	}

	release := page.Show()
	defer release()
	changed := make(chan struct{}, 1)
	cancel := page.Watch(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "event: ready\ndata: {\"scope\":%q}\n\n", page.Scope())
	flusher.Flush()

	heartbeat := time.NewTicker(HeartbeatInterval)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			s.Touch()
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-changed:
			s.Touch()
			body, _ := json.Marshal(invalidateEvent{Scope: page.Scope(), At: time.Now()})
			fmt.Fprintf(w, "event: invalidate\ndata: %s\n\n", body)
			flusher.Flush()
		}
	}
}
