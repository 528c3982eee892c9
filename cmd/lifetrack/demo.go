package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danpasecinic/lifetrack/internal/demo"
	"github.com/danpasecinic/lifetrack/report"
)

func newDemoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the sample consumers and report what the registry saw",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			r := a.registry()

			res, err := demo.Run(ctx, r, a.logger)
			if err != nil {
				return fmt.Errorf("demo: %w", err)
			}

			format := a.cfg.ReportFormat()
			if format == report.FormatText {
				for i, s := range res.Steps {
					_, _ = fmt.Fprintf(a.out, "%2d. [%s] %s\n", i+1, s.Name, s.Detail)
				}
				_, _ = fmt.Fprintln(a.out)
			}
			return report.Write(a.out, format, report.Collect(ctx, r))
		},
	}
}
