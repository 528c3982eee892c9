// Package lifetracktest provides an isolated registry with assertions for
// tests of tracked types.
package lifetracktest

import (
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/danpasecinic/lifetrack"
	"github.com/danpasecinic/lifetrack/internal/reflect"
)

type TB interface {
	Helper()
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Cleanup(f func())
}

type TestRegistry struct {
	*lifetrack.Registry
	tb TB
}

// New returns a registry private to the test. Logging is discarded unless a
// WithLogger option overrides it.
func New(tb TB, opts ...lifetrack.Option) *TestRegistry {
	tb.Helper()

	opts = append([]lifetrack.Option{lifetrack.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return &TestRegistry{
		Registry: lifetrack.New(opts...),
		tb:       tb,
	}
}

func MustTrack[T any](tr *TestRegistry, opts ...lifetrack.ClassOption) *lifetrack.Class[T] {
	tr.tb.Helper()

	c, err := lifetrack.Track[T](tr.Registry, opts...)
	if err != nil {
		tr.tb.Fatalf("failed to track %s: %v", reflect.TypeKey[T](), err)
	}
	return c
}

// RequireNoLeaks fails the test at cleanup time if any instance is still
// active, meaning it was neither closed nor reported as an orphan.
func (tr *TestRegistry) RequireNoLeaks() {
	tr.tb.Helper()

	tr.tb.Cleanup(func() {
		stats := tr.GlobalStats()
		if stats.ActiveInstances != 0 {
			tr.tb.Fatalf("%d instances still active at end of test:\n%s", stats.ActiveInstances, tr.SprintStats())
		}
	})
}

func (tr *TestRegistry) RequireStats(class string, created, deleted uint64) {
	tr.tb.Helper()

	stats, err := tr.Stats(class)
	if err != nil {
		tr.tb.Fatalf("stats for %s: %v", class, err)
		return
	}
	if stats.TotalCreated != created || stats.TotalDeleted != deleted {
		tr.tb.Fatalf(
			"%s: expected created=%d deleted=%d, got created=%d deleted=%d",
			class, created, deleted, stats.TotalCreated, stats.TotalDeleted,
		)
	}
}

func (tr *TestRegistry) RequireActive(class string, active uint64) {
	tr.tb.Helper()

	stats, err := tr.Stats(class)
	if err != nil {
		tr.tb.Fatalf("stats for %s: %v", class, err)
		return
	}
	if stats.ActiveInstances != active {
		tr.tb.Fatalf("%s: expected %d active, got %d", class, active, stats.ActiveInstances)
	}
}

// RequireNoOrphans collects garbage once and fails if any record is orphaned.
func (tr *TestRegistry) RequireNoOrphans() {
	tr.tb.Helper()

	ForceCollect()
	for _, h := range tr.Health() {
		if len(h.Orphans) > 0 {
			tr.tb.Fatalf("%s: orphaned instances %v", h.Class, h.Orphans)
		}
	}
}

// RequireOrphans collects garbage until at least n orphans are visible or the
// timeout expires, then returns them as FindOrphans reports them.
func (tr *TestRegistry) RequireOrphans(n int, timeout time.Duration) []lifetrack.InstanceRef {
	tr.tb.Helper()

	deadline := time.Now().Add(timeout)
	for {
		ForceCollect()
		if countOrphans(tr.Registry) >= n {
			return tr.FindOrphans()
		}
		if time.Now().After(deadline) {
			tr.tb.Fatalf("expected %d orphans within %s, have %d", n, timeout, countOrphans(tr.Registry))
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// ForceCollect runs two collection cycles so weak pointers to objects
// unreachable before the call are cleared.
func ForceCollect() {
	runtime.GC()
	runtime.GC()
}

func countOrphans(r *lifetrack.Registry) int {
	n := 0
	for _, h := range r.Health() {
		n += len(h.Orphans)
	}
	return n
}
