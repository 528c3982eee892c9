package lifetrack

import (
	"errors"
	"iter"

	"github.com/danpasecinic/lifetrack/internal/ledger"
	"github.com/danpasecinic/lifetrack/internal/reflect"
	"github.com/danpasecinic/lifetrack/internal/weakref"
)

// Class is the tracking entry point of one Go type. Obtain it once with Track
// and keep it, usually in a package-level variable.
type Class[T any] struct {
	registry *Registry
	ledger   *ledger.Ledger
}

type ClassOption func(*classConfig)

type classConfig struct {
	name string
}

type TrackOption func(*trackConfig)

type trackConfig struct {
	cleanups []Cleanup
}

func WithClassName(name string) ClassOption {
	return func(cfg *classConfig) {
		cfg.name = name
	}
}

func WithCleanup(fn Cleanup) TrackOption {
	return func(cfg *trackConfig) {
		cfg.cleanups = append(cfg.cleanups, fn)
	}
}

// Track opts T into tracking on r. Calling it again for the same type and name
// returns a Class backed by the same ledger.
//
// Zero-size types are rejected with INVALID_INSTANCE: their instances may all
// share one address and could not be told apart. Embedding Handle is enough
// to give a type a size.
func Track[T any](r *Registry, opts ...ClassOption) (*Class[T], error) {
	cfg := &classConfig{
		name: reflect.ClassName[T](),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if reflect.ZeroSized[T]() {
		return nil, errInvalidInstance(cfg.name, "zero-size types cannot be tracked, their instances share one address")
	}

	l, err := r.ledgerFor(cfg.name, reflect.TypeKey[T]())
	if err != nil {
		return nil, err
	}

	return &Class[T]{registry: r, ledger: l}, nil
}

func MustTrack[T any](r *Registry, opts ...ClassOption) *Class[T] {
	c, err := Track[T](r, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Class[T]) Name() string {
	return c.ledger.Class()
}

func (c *Class[T]) Registry() *Registry {
	return c.registry
}

// Register starts tracking obj. If T embeds Handle, the embedded handle is
// bound and returned; otherwise a new Handle is returned and the caller keeps
// it alongside obj.
func (c *Class[T]) Register(obj *T, opts ...TrackOption) (*Handle, error) {
	if obj == nil {
		return nil, errInvalidInstance(c.Name(), "nil instance")
	}

	cfg := &trackConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	h := &Handle{}
	if t, ok := any(obj).(trackable); ok {
		if embedded := t.trackHandle(); embedded != nil {
			h = embedded
		}
	}
	if h.bound() {
		return nil, errDuplicateRegistration(c.Name(), nil).WithID(h.ID())
	}

	snap, err := c.ledger.Register(weakref.Make(obj))
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicate) {
			return nil, errDuplicateRegistration(c.Name(), err)
		}
		return nil, errInvalidInstance(c.Name(), err.Error())
	}

	h.bind(c.registry, c.ledger, snap, cfg.cleanups)
	c.registry.register(c.ledger, snap)
	return h, nil
}

// New allocates a T, registers it, and only then runs init, so the identifier
// is already assigned while init executes. If init fails the instance is
// closed and the error is returned.
func (c *Class[T]) New(init func(obj *T, h *Handle) error, opts ...TrackOption) (*T, error) {
	obj := new(T)

	h, err := c.Register(obj, opts...)
	if err != nil {
		return nil, err
	}

	if init != nil {
		if err := init(obj, h); err != nil {
			return nil, errInitFailed(c.Name(), h.ID(), errors.Join(err, h.Close()))
		}
	}
	return obj, nil
}

// ActiveInstances yields the instances that are neither closed nor reclaimed.
// Every range over the sequence takes a fresh snapshot.
func (c *Class[T]) ActiveInstances() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		for v := range c.ledger.Active() {
			obj, ok := v.(*T)
			if !ok {
				continue
			}
			if !yield(obj) {
				return
			}
		}
	}
}

func (c *Class[T]) Stats() ClassStats {
	return classStatsFrom(c.ledger.Stats())
}

func (c *Class[T]) Lookup(id uint64) (Metadata, error) {
	return c.registry.Lookup(c.Name(), id)
}

// Orphans lists identifiers that are flagged active but whose instance has
// been reclaimed. Unlike Registry.FindOrphans it never retires them.
func (c *Class[T]) Orphans() []uint64 {
	return c.ledger.Orphans()
}
