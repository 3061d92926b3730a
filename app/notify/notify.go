// Package notify delivers committed work status changes to interested parties
// and wakes the dispatcher when the ready set may have grown
package notify

import (
	"sync"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/workdb/app/enums"
	"github.com/umputun/workdb/app/persistence"
)

// Hub implements persistence.Listener. It fans status changes out to handlers
// and keeps a single pending wake signal, so bursts of changes coalesce into one wakeup.
type Hub struct {
	mu       sync.RWMutex
	handlers []persistence.Listener
	wake     chan struct{}
}

// NewHub makes Hub with optional handlers
func NewHub(handlers ...persistence.Listener) *Hub {
	return &Hub{handlers: handlers, wake: make(chan struct{}, 1)}
}

// Add registers another handler
func (h *Hub) Add(l persistence.Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, l)
}

// OnStatusChange wakes waiters if the change can make work ready, then calls handlers
func (h *Hub) OnStatusChange(ev persistence.StatusChange) {
	if ev.To == enums.WorkStatusEnqueued || ev.To == enums.WorkStatusSucceeded {
		h.Wake()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, l := range h.handlers {
		l.OnStatusChange(ev)
	}
}

// Wake sets the pending wake signal, never blocks
func (h *Hub) Wake() {
	select {
	case h.wake <- struct{}{}:
	default: // signal already pending
	}
}

// Wakeups returns channel getting a value after changes which may add ready work
func (h *Hub) Wakeups() <-chan struct{} {
	return h.wake
}

// Logger reports status changes to the log, failures with WARN level
type Logger struct{}

// OnStatusChange implements persistence.Listener
func (Logger) OnStatusChange(ev persistence.StatusChange) {
	switch {
	case ev.From.IsZero():
		log.Printf("[DEBUG] work item %s enqueued", ev.ID)
	case ev.To == enums.WorkStatusFailed:
		log.Printf("[WARN] work item %s failed", ev.ID)
	default:
		log.Printf("[INFO] work item %s %s -> %s", ev.ID, ev.From, ev.To)
	}
}
