package lifetrack

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/danpasecinic/lifetrack/internal/ledger"
)

const tracerName = "github.com/danpasecinic/lifetrack"

type Registry struct {
	mu      sync.RWMutex
	id      uuid.UUID
	ledgers map[string]*ledger.Ledger
	order   []*ledger.Ledger
	ids     *ledger.Sequence
	config  *registryConfig
	logger  *slog.Logger
	tracer  trace.Tracer
}

type registryConfig struct {
	logger         *slog.Logger
	idScheme       IDScheme
	orphanPolicy   OrphanPolicy
	retention      time.Duration
	clock          func() time.Time
	tracerProvider trace.TracerProvider
	onRegister     []RegisterHook
	onRetire       []RetireHook
	onOrphan       []OrphanHook
}

var defaultRegistry = sync.OnceValue(func() *Registry { return New() })

// Default returns the process-wide registry used by the package-level
// functions.
func Default() *Registry {
	return defaultRegistry()
}

func New(opts ...Option) *Registry {
	cfg := &registryConfig{
		logger: slog.Default(),
		clock:  time.Now,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.tracerProvider == nil {
		cfg.tracerProvider = otel.GetTracerProvider()
	}

	r := &Registry{
		id:      uuid.New(),
		ledgers: make(map[string]*ledger.Ledger),
		config:  cfg,
		logger:  cfg.logger,
		tracer:  cfg.tracerProvider.Tracer(tracerName),
	}
	if cfg.idScheme == GlobalIDs {
		r.ids = &ledger.Sequence{}
	}
	return r
}

func (r *Registry) ID() uuid.UUID {
	return r.id
}

func (r *Registry) IDScheme() IDScheme {
	return r.config.idScheme
}

func (r *Registry) OrphanPolicy() OrphanPolicy {
	return r.config.orphanPolicy
}

func (r *Registry) ledgerFor(class, typeKey string) (*ledger.Ledger, error) {
	r.mu.RLock()
	l, exists := r.ledgers[class]
	r.mu.RUnlock()

	if !exists {
		r.mu.Lock()
		l, exists = r.ledgers[class]
		if !exists {
			var ids ledger.IDSource
			if r.ids != nil {
				ids = r.ids
			}
			l = ledger.New(
				ledger.Config{
					Class:     class,
					TypeKey:   typeKey,
					IDs:       ids,
					Clock:     r.config.clock,
					Retention: r.config.retention,
				},
			)
			r.ledgers[class] = l
			r.order = append(r.order, l)
			r.logger.Debug("class registered", "class", class, "type", typeKey)
		}
		r.mu.Unlock()
	}

	if l.TypeKey() != typeKey {
		return nil, errClassConflict(class, l.TypeKey(), typeKey)
	}
	return l, nil
}

func (r *Registry) lookupLedger(class string) (*ledger.Ledger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, exists := r.ledgers[class]
	if !exists {
		return nil, errClassNotFound(class)
	}
	return l, nil
}

func (r *Registry) snapshotLedgers() []*ledger.Ledger {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ledger.Ledger, len(r.order))
	copy(out, r.order)
	return out
}

// Classes lists registered class names in first-registration order.
func (r *Registry) Classes() []string {
	ledgers := r.snapshotLedgers()
	names := make([]string, len(ledgers))
	for i, l := range ledgers {
		names[i] = l.Class()
	}
	return names
}

func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.ledgers)
}

func (r *Registry) Has(class string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.ledgers[class]
	return exists
}

func (r *Registry) Stats(class string) (ClassStats, error) {
	l, err := r.lookupLedger(class)
	if err != nil {
		return ClassStats{}, err
	}
	return classStatsFrom(l.Stats()), nil
}

func (r *Registry) GlobalStats() GlobalStats {
	return r.GlobalStatsCtx(context.Background())
}

// GlobalStatsCtx sums every ledger while all of them are read-locked, so the
// totals never mix states from different moments.
func (r *Registry) GlobalStatsCtx(ctx context.Context) GlobalStats {
	_, span := r.tracer.Start(ctx, "lifetrack.global_stats")
	defer span.End()

	stats := aggregate(r.id.String(), ledger.Collect(r.snapshotLedgers()...))
	span.SetAttributes(
		attribute.Int("lifetrack.classes", stats.TotalClasses),
		attribute.Int64("lifetrack.instances.total", int64(stats.TotalInstances)),
		attribute.Int64("lifetrack.instances.active", int64(stats.ActiveInstances)),
	)
	return stats
}

func (r *Registry) FindOrphans() []InstanceRef {
	return r.FindOrphansCtx(context.Background())
}

// FindOrphansCtx reports records that are still flagged active although their
// instance has been reclaimed. The scan is a best-effort point-in-time view:
// an instance closed concurrently may or may not appear. Under RetireOrphans
// every reported record is retired as part of the scan.
func (r *Registry) FindOrphansCtx(ctx context.Context) []InstanceRef {
	_, span := r.tracer.Start(
		ctx, "lifetrack.find_orphans",
		trace.WithAttributes(attribute.String("lifetrack.orphan_policy", r.config.orphanPolicy.String())),
	)
	defer span.End()

	var orphans []InstanceRef
	for _, l := range r.snapshotLedgers() {
		var ids []uint64
		if r.config.orphanPolicy == RetireOrphans {
			ids = l.ReapOrphans()
		} else {
			ids = l.Orphans()
		}

		for _, id := range ids {
			ref := InstanceRef{Class: l.Class(), ID: id}
			orphans = append(orphans, ref)
			r.logger.Warn(
				"orphaned instance detected",
				"class", ref.Class,
				"id", ref.ID,
				"policy", r.config.orphanPolicy.String(),
			)
			for _, hook := range r.config.onOrphan {
				hook(ref)
			}
		}
	}

	span.SetAttributes(attribute.Int("lifetrack.orphans", len(orphans)))
	return orphans
}

func (r *Registry) Lookup(class string, id uint64) (Metadata, error) {
	l, err := r.lookupLedger(class)
	if err != nil {
		return Metadata{}, err
	}

	snap, ok := l.Record(id)
	if !ok {
		return Metadata{}, errInstanceNotFound(class, id, nil)
	}
	return metadataFrom(snap), nil
}

// Retire retires a record by identifier without running any cleanup. It is
// meant for records whose instance is already gone, such as reported orphans.
func (r *Registry) Retire(class string, id uint64) (CloseStatus, error) {
	l, err := r.lookupLedger(class)
	if err != nil {
		return 0, err
	}
	return r.retire(l, id)
}

func (r *Registry) retire(l *ledger.Ledger, id uint64) (CloseStatus, error) {
	result, snap, err := l.Retire(id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return 0, errInstanceNotFound(l.Class(), id, err)
		}
		return 0, err
	}

	status := Closed
	if result == ledger.AlreadyRetired {
		status = RedundantClose
	}

	lifetime := snap.DeletedAt.Sub(snap.CreatedAt)
	if status == Closed {
		r.logger.Debug("instance retired", "class", l.Class(), "id", id, "lifetime", lifetime)
	} else {
		r.logger.Debug("redundant close ignored", "class", l.Class(), "id", id)
	}

	for _, hook := range r.config.onRetire {
		hook(l.Class(), id, lifetime, status)
	}
	return status, nil
}

func (r *Registry) register(l *ledger.Ledger, snap ledger.Snapshot) {
	r.logger.Debug("instance registered", "class", l.Class(), "id", snap.ID)
	for _, hook := range r.config.onRegister {
		hook(l.Class(), snap.ID)
	}
}

// finalize runs the cleanup chain of h in reverse registration order, then
// retires its record. Cleanups run at most once per handle, and a concurrent
// redundant close returns only after the record is retired.
func (r *Registry) finalize(h *Handle) (CloseStatus, error) {
	_, span := r.tracer.Start(
		context.Background(), "lifetrack.finalize",
		trace.WithAttributes(
			attribute.String("lifetrack.class", h.ledger.Class()),
			attribute.Int64("lifetrack.id", int64(h.id)),
		),
	)
	defer span.End()

	cleanups, done, first := h.markClosed()
	if !first {
		<-done
		span.SetAttributes(attribute.String("lifetrack.status", RedundantClose.String()))
		r.logger.Debug("redundant close ignored", "class", h.ledger.Class(), "id", h.id)
		return RedundantClose, nil
	}

	var deletedAt time.Time
	var retired bool
	defer func() { h.finishClose(deletedAt, retired) }()

	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}

	status, err := r.retire(h.ledger, h.id)
	switch {
	case IsInstanceNotFound(err):
		status = RedundantClose
	case err != nil:
		errs = append(errs, err)
	}
	span.SetAttributes(attribute.String("lifetrack.status", status.String()))

	if snap, ok := h.ledger.Record(h.id); ok {
		deletedAt, retired = snap.DeletedAt, true
	}

	if len(errs) > 0 {
		cause := errors.Join(errs...)
		span.RecordError(cause)
		r.logger.Warn("cleanup failed", "class", h.ledger.Class(), "id", h.id, "error", cause)
		return status, errCleanupFailed(h.ledger.Class(), h.id, cause)
	}
	return status, nil
}

func Classes() []string {
	return Default().Classes()
}

// Stats returns the global statistics of the default registry.
func Stats() GlobalStats {
	return Default().GlobalStats()
}

func FindOrphans() []InstanceRef {
	return Default().FindOrphans()
}
