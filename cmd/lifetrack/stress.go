package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danpasecinic/lifetrack/internal/demo"
	"github.com/danpasecinic/lifetrack/report"
)

func newStressCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Create, close and drop instances from many goroutines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			r := a.registry()

			s := a.cfg.Stress
			res, err := demo.Stress(
				ctx, r, demo.StressConfig{
					Workers:     s.Workers,
					PerWorker:   s.PerWorker,
					CloseRatio:  s.CloseRatio,
					PayloadSize: s.PayloadSize,
				}, a.logger,
			)
			if err != nil {
				return fmt.Errorf("stress: %w", err)
			}

			format := a.cfg.ReportFormat()
			if format == report.FormatText {
				_, _ = fmt.Fprintf(
					a.out, "created=%d closed=%d dropped=%d orphans=%d elapsed=%s\n\n",
					res.Created, res.Closed, res.Dropped, res.Orphans, res.Elapsed,
				)
			}
			return report.Write(a.out, format, report.Collect(ctx, r))
		},
	}

	flags := cmd.Flags()
	flags.Int("workers", 0, "number of goroutines (default from config)")
	flags.Int("per-worker", 0, "instances created per goroutine (default from config)")
	flags.Float64("close-ratio", 0, "share of instances closed explicitly, 0 to 1 (default from config)")

	_ = a.v.BindPFlag("stress.workers", flags.Lookup("workers"))
	_ = a.v.BindPFlag("stress.per_worker", flags.Lookup("per-worker"))
	_ = a.v.BindPFlag("stress.close_ratio", flags.Lookup("close-ratio"))
	return cmd
}
