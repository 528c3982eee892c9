package demo

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danpasecinic/lifetrack"
)

type Job struct {
	lifetrack.Handle
	Worker  int
	payload []byte
}

type StressConfig struct {
	Workers     int
	PerWorker   int
	CloseRatio  float64
	PayloadSize int
}

type StressResult struct {
	Created uint64        `json:"created" yaml:"created"`
	Closed  uint64        `json:"closed" yaml:"closed"`
	Dropped uint64        `json:"dropped" yaml:"dropped"`
	Orphans int           `json:"orphans" yaml:"orphans"`
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Stress creates Workers*PerWorker jobs concurrently, closes the CloseRatio
// share of them and drops the rest, then forces collection and scans for
// orphans. It fails if the counters disagree with what the workers did.
func Stress(ctx context.Context, r *lifetrack.Registry, cfg StressConfig, logger *slog.Logger) (StressResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 || cfg.PerWorker <= 0 {
		return StressResult{}, fmt.Errorf("workers and per-worker must be positive, got %d and %d", cfg.Workers, cfg.PerWorker)
	}
	if cfg.CloseRatio < 0 || cfg.CloseRatio > 1 {
		return StressResult{}, fmt.Errorf("close ratio must be within [0, 1], got %g", cfg.CloseRatio)
	}

	jobs, err := lifetrack.Track[Job](r, lifetrack.WithClassName("Job"))
	if err != nil {
		return StressResult{}, err
	}
	before := jobs.Stats()
	start := time.Now()

	var created, closed atomic.Uint64
	var wg sync.WaitGroup
	errCh := make(chan error, cfg.Workers)

	for w := range cfg.Workers {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := range cfg.PerWorker {
				if ctx.Err() != nil {
					errCh <- ctx.Err()
					return
				}
				j, err := jobs.New(func(j *Job, _ *lifetrack.Handle) error {
					j.Worker = worker
					j.payload = make([]byte, cfg.PayloadSize)
					return nil
				})
				if err != nil {
					errCh <- err
					return
				}
				created.Add(1)

				if closes(i, cfg.CloseRatio) {
					if err := j.Close(); err != nil {
						errCh <- err
						return
					}
					closed.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		return StressResult{}, err
	}

	runtime.GC()
	runtime.GC()
	orphans := r.FindOrphansCtx(ctx)

	res := StressResult{
		Created: created.Load(),
		Closed:  closed.Load(),
		Dropped: created.Load() - closed.Load(),
		Orphans: len(orphans),
		Elapsed: time.Since(start),
	}

	after := jobs.Stats()
	if got := after.TotalCreated - before.TotalCreated; got != res.Created {
		return res, fmt.Errorf("created counter drifted: ledger=%d workers=%d", got, res.Created)
	}
	if after.ActiveInstances != after.TotalCreated-after.TotalDeleted {
		return res, fmt.Errorf("active counter inconsistent: %+v", after)
	}
	if after.TotalDeleted-before.TotalDeleted < res.Closed {
		return res, fmt.Errorf("deleted counter drifted: ledger=%d closed=%d", after.TotalDeleted-before.TotalDeleted, res.Closed)
	}

	logger.Info(
		"stress finished",
		"created", res.Created,
		"closed", res.Closed,
		"dropped", res.Dropped,
		"orphans", res.Orphans,
		"elapsed", res.Elapsed,
	)
	return res, nil
}

// closes reports whether the i-th job of a worker is closed explicitly. Over
// n jobs exactly floor(n*ratio) are closed, spread evenly.
func closes(i int, ratio float64) bool {
	return math.Floor(float64(i+1)*ratio) > math.Floor(float64(i)*ratio)
}
