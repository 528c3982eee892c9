package demo

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/danpasecinic/lifetrack"
)

type Step struct {
	Name   string `json:"name" yaml:"name"`
	Detail string `json:"detail" yaml:"detail"`
}

type Result struct {
	Steps   []Step                  `json:"steps" yaml:"steps"`
	Orphans []lifetrack.InstanceRef `json:"orphans" yaml:"orphans"`
}

func (r *Result) step(logger *slog.Logger, name, format string, args ...any) {
	s := Step{Name: name, Detail: fmt.Sprintf(format, args...)}
	r.Steps = append(r.Steps, s)
	logger.Info(s.Detail, "step", name)
}

// Run walks through scoped use, plain construction, dropped temporaries and
// explicit closing against r. The temporaries are never closed, so the final
// orphan scan reports them once the collector has reclaimed them.
func Run(ctx context.Context, r *lifetrack.Registry, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	classes, err := NewClasses(r)
	if err != nil {
		return Result{}, err
	}

	var res Result

	db, err := classes.OpenDatabase("postgresql://localhost/db1")
	if err != nil {
		return res, err
	}
	err = lifetrack.Use(db, func(db *DatabaseConnection) error {
		out, err := db.Execute("SELECT * FROM users")
		if err != nil {
			return err
		}
		res.step(logger, "scoped", "%s: %s", db, out)
		return nil
	})
	if err != nil {
		return res, err
	}
	res.step(logger, "scoped", "active databases after scope: %d", count(classes.Databases))

	cache1, err := classes.NewCache(50)
	if err != nil {
		return res, err
	}
	cache2, err := classes.NewCache(200)
	if err != nil {
		return res, err
	}
	model, err := classes.LoadModel("model_v1")
	if err != nil {
		return res, err
	}
	if err := cache1.Set("user:1", "ann"); err != nil {
		return res, err
	}
	res.step(
		logger, "construct", "active caches: %d, active models: %d",
		count(classes.Caches), count(classes.Models),
	)

	if err := dropTemporaries(classes); err != nil {
		return res, err
	}
	runtime.GC()
	runtime.GC()
	res.step(logger, "temporaries", "active databases after dropping temporaries: %d", count(classes.Databases))

	stats := r.GlobalStatsCtx(ctx)
	for _, cls := range stats.Classes {
		res.step(
			logger, "stats", "%s: created=%d deleted=%d active=%d",
			cls.ClassName, cls.TotalCreated, cls.TotalDeleted, cls.ActiveInstances,
		)
	}

	if err := cache1.Close(); err != nil {
		return res, err
	}
	res.step(logger, "close", "active caches after closing %s: %d", cache1, count(classes.Caches))

	for _, c := range []lifetrack.Resource{cache2, model} {
		if err := c.Close(); err != nil {
			return res, err
		}
	}
	res.step(logger, "close", "active instances: %d", r.GlobalStatsCtx(ctx).ActiveInstances)

	res.Orphans = r.FindOrphansCtx(ctx)
	res.step(logger, "orphans", "orphaned instances: %d", len(res.Orphans))

	return res, nil
}

//go:noinline
func dropTemporaries(classes *Classes) error {
	db, err := classes.OpenDatabase("temp://memory")
	if err != nil {
		return err
	}
	if _, err := classes.NewCache(10); err != nil {
		return err
	}
	_, err = db.Execute("SELECT 1")
	return err
}

func count[T any](c *lifetrack.Class[T]) int {
	n := 0
	for range c.ActiveInstances() {
		n++
	}
	return n
}
