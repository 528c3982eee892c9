package ledger

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/danpasecinic/lifetrack/internal/weakref"
)

var (
	ErrDuplicate = errors.New("instance already registered")
	ErrNotFound  = errors.New("instance not found")
	ErrNilRef    = errors.New("nil instance reference")
)

type RetireStatus int

const (
	Retired RetireStatus = iota + 1
	AlreadyRetired
)

func (s RetireStatus) String() string {
	switch s {
	case Retired:
		return "retired"
	case AlreadyRetired:
		return "already_retired"
	default:
		return "unknown"
	}
}

type Record struct {
	ID        uint64
	CreatedAt time.Time
	Ref       weakref.Ref

	deletedAt time.Time
	active    bool
	orphaned  bool
}

type Snapshot struct {
	Class     string
	ID        uint64
	CreatedAt time.Time
	DeletedAt time.Time
	Active    bool
	Reachable bool
	Orphaned  bool
}

type Stats struct {
	Class             string
	TotalCreated      uint64
	TotalDeleted      uint64
	ActiveInstances   uint64
	PendingCollection int
	Orphaned          int
}

type Config struct {
	Class   string
	TypeKey string
	IDs     IDSource
	Clock   func() time.Time
	// Retention moves retired records out of the live table into a cache that
	// forgets them after the given duration. Zero keeps them forever.
	Retention time.Duration
}

type Ledger struct {
	mu         sync.RWMutex
	class      string
	typeKey    string
	ids        IDSource
	clock      func() time.Time
	records    map[uint64]*Record
	identities map[any]uint64
	created    uint64
	deleted    uint64
	retired    *gocache.Cache
}

func New(cfg Config) *Ledger {
	ids := cfg.IDs
	if ids == nil {
		ids = &Sequence{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	l := &Ledger{
		class:      cfg.Class,
		typeKey:    cfg.TypeKey,
		ids:        ids,
		clock:      clock,
		records:    make(map[uint64]*Record),
		identities: make(map[any]uint64),
	}
	if cfg.Retention > 0 {
		l.retired = gocache.New(cfg.Retention, 2*cfg.Retention)
	}
	return l
}

func (l *Ledger) Class() string {
	return l.class
}

func (l *Ledger) TypeKey() string {
	return l.typeKey
}

func (l *Ledger) Register(ref weakref.Ref) (Snapshot, error) {
	if ref == nil {
		return Snapshot{}, ErrNilRef
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	identity := ref.Identity()
	if id, exists := l.identities[identity]; exists {
		return Snapshot{}, fmt.Errorf("%w: %s#%d", ErrDuplicate, l.class, id)
	}

	rec := &Record{
		ID:        l.ids.Next(),
		CreatedAt: l.clock(),
		Ref:       ref,
		active:    true,
	}
	l.records[rec.ID] = rec
	l.identities[identity] = rec.ID
	l.created++

	return l.snapshot(rec), nil
}

func (l *Ledger) Retire(id uint64) (RetireStatus, Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.retire(id, false)
}

func (l *Ledger) retire(id uint64, orphaned bool) (RetireStatus, Snapshot, error) {
	rec, exists := l.records[id]
	if !exists {
		if snap, ok := l.retiredSnapshot(id); ok {
			return AlreadyRetired, snap, nil
		}
		return 0, Snapshot{}, fmt.Errorf("%w: %s#%d", ErrNotFound, l.class, id)
	}

	if !rec.active {
		return AlreadyRetired, l.snapshot(rec), nil
	}

	rec.active = false
	rec.deletedAt = l.clock()
	rec.orphaned = orphaned
	l.deleted++

	snap := l.snapshot(rec)
	if l.retired != nil {
		delete(l.records, id)
		delete(l.identities, rec.Ref.Identity())
		l.retired.SetDefault(retiredKey(id), rec)
	}
	return Retired, snap, nil
}

func (l *Ledger) Record(id uint64) (Snapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if rec, exists := l.records[id]; exists {
		return l.snapshot(rec), true
	}
	return l.retiredSnapshot(id)
}

func (l *Ledger) Active() iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, ref := range l.activeRefs() {
			v := ref.Value()
			if v == nil {
				continue
			}
			if !yield(v) {
				return
			}
		}
	}
}

func (l *Ledger) activeRefs() []weakref.Ref {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]uint64, 0, len(l.records))
	for id, rec := range l.records {
		if rec.active {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	refs := make([]weakref.Ref, len(ids))
	for i, id := range ids {
		refs[i] = l.records[id].Ref
	}
	return refs
}

func (l *Ledger) Orphans() []uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.orphans()
}

// ReapOrphans retires every orphan in a single critical section.
func (l *Ledger) ReapOrphans() []uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := l.orphans()
	for _, id := range ids {
		_, _, _ = l.retire(id, true)
	}
	return ids
}

func (l *Ledger) orphans() []uint64 {
	var ids []uint64
	for id, rec := range l.records {
		if rec.active && !rec.Ref.Alive() {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.stats()
}

// Collect reads all ledgers under one set of read locks, taken in argument
// order, so the totals describe a single moment.
func Collect(ledgers ...*Ledger) []Stats {
	for _, l := range ledgers {
		l.mu.RLock()
	}
	defer func() {
		for i := len(ledgers) - 1; i >= 0; i-- {
			ledgers[i].mu.RUnlock()
		}
	}()

	out := make([]Stats, len(ledgers))
	for i, l := range ledgers {
		out[i] = l.stats()
	}
	return out
}

func (l *Ledger) stats() Stats {
	s := Stats{
		Class:           l.class,
		TotalCreated:    l.created,
		TotalDeleted:    l.deleted,
		ActiveInstances: l.created - l.deleted,
	}

	for _, rec := range l.records {
		alive := rec.Ref.Alive()
		switch {
		case rec.active && !alive:
			s.Orphaned++
		case !rec.active && alive:
			s.PendingCollection++
		}
	}

	if l.retired != nil {
		for _, item := range l.retired.Items() {
			if rec, ok := item.Object.(*Record); ok && rec.Ref.Alive() {
				s.PendingCollection++
			}
		}
	}
	return s
}

func (l *Ledger) snapshot(rec *Record) Snapshot {
	return Snapshot{
		Class:     l.class,
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt,
		DeletedAt: rec.deletedAt,
		Active:    rec.active,
		Reachable: rec.Ref.Alive(),
		Orphaned:  rec.orphaned,
	}
}

func (l *Ledger) retiredSnapshot(id uint64) (Snapshot, bool) {
	if l.retired == nil {
		return Snapshot{}, false
	}
	v, found := l.retired.Get(retiredKey(id))
	if !found {
		return Snapshot{}, false
	}
	rec, ok := v.(*Record)
	if !ok {
		return Snapshot{}, false
	}
	return l.snapshot(rec), true
}

func retiredKey(id uint64) string {
	return strconv.FormatUint(id, 10)
}
