package lifetrack

import (
	"fmt"
	"sync"
	"time"

	"github.com/danpasecinic/lifetrack/internal/ledger"
)

type Cleanup func() error

// Handle is the tracking state of one instance. Embed it by value in a tracked
// struct to get ID, Close and friends on the struct itself:
//
//	type Conn struct {
//	    lifetrack.Handle
//	    addr string
//	}
//
// A Handle never references the instance it tracks. A type that defines its own
// Close must call Handle.Close, or the record stays active and is eventually
// reported as an orphan; prefer registering cleanups with OnClose instead.
//
// A close that races with another waits until the first one has retired the
// record. Cleanups must therefore not close their own handle.
type Handle struct {
	mu       sync.Mutex
	registry *Registry
	ledger   *ledger.Ledger
	id       uint64
	created  time.Time
	deleted  time.Time
	cleanups []Cleanup
	closed   bool
	done     chan struct{}
}

type trackable interface {
	trackHandle() *Handle
}

func (h *Handle) trackHandle() *Handle {
	return h
}

func (h *Handle) bind(r *Registry, l *ledger.Ledger, snap ledger.Snapshot, cleanups []Cleanup) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.registry = r
	h.ledger = l
	h.id = snap.ID
	h.created = snap.CreatedAt
	h.cleanups = append(h.cleanups, cleanups...)
}

func (h *Handle) bound() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.ledger != nil
}

// markClosed claims the close for the caller. Later callers get the channel
// that is closed once the first close has finished.
func (h *Handle) markClosed() ([]Cleanup, <-chan struct{}, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.done == nil {
		h.done = make(chan struct{})
	}
	if h.closed {
		return nil, h.done, false
	}
	h.closed = true
	cleanups := h.cleanups
	h.cleanups = nil
	return cleanups, h.done, true
}

func (h *Handle) finishClose(t time.Time, retired bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if retired {
		h.deleted = t
	}
	close(h.done)
}

func (h *Handle) ID() uint64 {
	return h.id
}

func (h *Handle) Class() string {
	if h.ledger == nil {
		return ""
	}
	return h.ledger.Class()
}

func (h *Handle) Ref() InstanceRef {
	return InstanceRef{Class: h.Class(), ID: h.id}
}

func (h *Handle) CreatedAt() time.Time {
	return h.created
}

// DeletedAt reports when the instance was retired.
func (h *Handle) DeletedAt() (time.Time, bool) {
	if h.ledger != nil {
		if snap, ok := h.ledger.Record(h.id); ok {
			return snap.DeletedAt, !snap.Active
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.deleted, !h.deleted.IsZero()
}

func (h *Handle) IsActive() bool {
	if h.ledger == nil {
		return false
	}
	snap, ok := h.ledger.Record(h.id)
	return ok && snap.Active
}

// EnsureActive fails once the instance has been closed.
func (h *Handle) EnsureActive() error {
	if h.ledger == nil {
		return errInvalidInstance("", "handle is not bound to a registry")
	}
	if !h.IsActive() {
		return errInstanceClosed(h.Class(), h.id)
	}
	return nil
}

func (h *Handle) Metadata() Metadata {
	if h.ledger != nil {
		if snap, ok := h.ledger.Record(h.id); ok {
			return metadataFrom(snap)
		}
	}

	deleted, _ := h.DeletedAt()
	return metadataFrom(
		ledger.Snapshot{
			Class:     h.Class(),
			ID:        h.id,
			CreatedAt: h.created,
			DeletedAt: deleted,
			Reachable: true,
		},
	)
}

// OnClose appends a cleanup. Cleanups run once, newest first, when the
// instance is closed.
func (h *Handle) OnClose(fn Cleanup) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errInstanceClosed(h.Class(), h.id)
	}
	h.cleanups = append(h.cleanups, fn)
	return nil
}

func (h *Handle) Close() error {
	_, err := h.CloseStatus()
	return err
}

// CloseStatus closes the instance and reports whether this call retired it or
// the instance had already been closed. A redundant close is not an error.
func (h *Handle) CloseStatus() (CloseStatus, error) {
	if h.registry == nil {
		return 0, errInvalidInstance("", "handle is not bound to a registry")
	}
	return h.registry.finalize(h)
}

func (h *Handle) String() string {
	if h.ledger == nil {
		return "<untracked>"
	}
	return fmt.Sprintf("%s#%d", h.ledger.Class(), h.id)
}
