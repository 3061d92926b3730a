package persistence

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	log "github.com/go-pkgz/lgr"
	"github.com/pkg/errors"
)

// Handles owns at most one durable and, independently, one ephemeral store.
// It is made once by the composition root and passed to whoever needs a store.
// The first request opens the store (schema + recovery), the following ones get
// the same instance. Only the check-and-create path is locked.
type Handles struct {
	mu        sync.Mutex
	durable   atomic.Pointer[SQLiteStore]
	ephemeral atomic.Pointer[SQLiteStore]
	listeners []Listener

	openDurable   func(ctx context.Context, loc Location) (*SQLiteStore, error)
	openEphemeral func(ctx context.Context) (*SQLiteStore, error)
}

// NewHandles makes Handles. Listeners are attached to every store before it is handed out
func NewHandles(listeners ...Listener) *Handles {
	return &Handles{listeners: listeners, openDurable: OpenDurable, openEphemeral: OpenEphemeral}
}

// Durable returns the durable store, opening it at loc on first call.
// Asking for a different location while a store is open fails with ErrLocationMismatch.
func (h *Handles) Durable(ctx context.Context, loc Location) (*SQLiteStore, error) {
	if s := h.durable.Load(); s != nil {
		return sameLocation(s, loc)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.durable.Load(); s != nil {
		return sameLocation(s, loc)
	}

	s, err := h.openDurable(ctx, loc)
	if err != nil {
		return nil, err
	}
	h.attach(s)
	h.durable.Store(s)
	return s, nil
}

// Ephemeral returns the in-memory store, making it on first call
func (h *Handles) Ephemeral(ctx context.Context) (*SQLiteStore, error) {
	if s := h.ephemeral.Load(); s != nil {
		return s, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.ephemeral.Load(); s != nil {
		return s, nil
	}

	s, err := h.openEphemeral(ctx)
	if err != nil {
		return nil, err
	}
	h.attach(s)
	h.ephemeral.Store(s)
	return s, nil
}

// Close closes both stores if opened. The next request opens a fresh store
func (h *Handles) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for _, p := range []*atomic.Pointer[SQLiteStore]{&h.durable, &h.ephemeral} {
		s := p.Swap(nil)
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil {
			log.Printf("[WARN] failed to close store %s, %v", s.Location(), err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Wrapf(errs[0], "failed to close %d store(s)", len(errs))
	}
	return nil
}

func (h *Handles) attach(s *SQLiteStore) {
	for _, l := range h.listeners {
		s.AddListener(l)
	}
}

func sameLocation(s *SQLiteStore, loc Location) (*SQLiteStore, error) {
	if filepath.Clean(loc.Path) != s.Location() {
		return nil, errors.Wrapf(ErrLocationMismatch, "open at %s, requested %s", s.Location(), loc.Path)
	}
	return s, nil
}
