package lifetrack

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type Option func(*registryConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *registryConfig) {
		cfg.logger = logger
	}
}

func WithIDScheme(scheme IDScheme) Option {
	return func(cfg *registryConfig) {
		cfg.idScheme = scheme
	}
}

func WithOrphanPolicy(policy OrphanPolicy) Option {
	return func(cfg *registryConfig) {
		cfg.orphanPolicy = policy
	}
}

// WithRetiredRetention drops retired records from the registry once they have
// been retired for longer than d. Counters are unaffected. Without it every
// record is kept for the life of the registry, so long-running processes that
// create many instances should set it.
func WithRetiredRetention(d time.Duration) Option {
	return func(cfg *registryConfig) {
		cfg.retention = d
	}
}

func WithClock(clock func() time.Time) Option {
	return func(cfg *registryConfig) {
		cfg.clock = clock
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *registryConfig) {
		cfg.tracerProvider = tp
	}
}

func WithRegisterObserver(hook RegisterHook) Option {
	return func(cfg *registryConfig) {
		cfg.onRegister = append(cfg.onRegister, hook)
	}
}

func WithRetireObserver(hook RetireHook) Option {
	return func(cfg *registryConfig) {
		cfg.onRetire = append(cfg.onRetire, hook)
	}
}

func WithOrphanObserver(hook OrphanHook) Option {
	return func(cfg *registryConfig) {
		cfg.onOrphan = append(cfg.onOrphan, hook)
	}
}
