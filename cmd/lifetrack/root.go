package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/dusted-go/logging/prettylog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/danpasecinic/lifetrack"
	"github.com/danpasecinic/lifetrack/internal/config"
	"github.com/danpasecinic/lifetrack/report"
)

type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
	logger  *slog.Logger
	tp      *sdktrace.TracerProvider
	out     io.Writer
	errOut  io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out, errOut: errOut}

	root := &cobra.Command{
		Use:               "lifetrack",
		Short:             "Track object lifetimes and report leaks",
		Long:              `lifetrack runs sample workloads against an instance registry and prints per-class statistics and orphaned instances.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.shutdown(cmd.Context())
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default: ~/.config/lifetrack/config.yaml)")
	flags.StringP("format", "f", string(report.FormatText), "output format: text, json, yaml or cbor")
	flags.String("id-scheme", lifetrack.PerClassIDs.String(), "identifier sequencing: per-class or global")
	flags.String("orphan-policy", lifetrack.ReportOrphans.String(), "orphan handling: report or retire")
	flags.Duration("retention", 0, "drop retired records after this long (0 keeps them)")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.Bool("trace", false, "print OpenTelemetry spans to stderr")

	_ = a.v.BindPFlag("format", flags.Lookup("format"))
	_ = a.v.BindPFlag("id_scheme", flags.Lookup("id-scheme"))
	_ = a.v.BindPFlag("orphan_policy", flags.Lookup("orphan-policy"))
	_ = a.v.BindPFlag("retention", flags.Lookup("retention"))
	_ = a.v.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = a.v.BindPFlag("trace", flags.Lookup("trace"))

	root.AddCommand(newDemoCmd(a), newStressCmd(a), newVersionCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(prettylog.New(&slog.HandlerOptions{Level: level}, prettylog.WithDestinationWriter(a.errOut)))

	if cfg.Trace {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(a.errOut), stdouttrace.WithPrettyPrint())
		if err != nil {
			return err
		}
		a.tp = sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	}

	a.logger.Debug("configuration loaded", "config", a.v.ConfigFileUsed(), "format", cfg.Format, "id_scheme", cfg.IDScheme, "orphan_policy", cfg.OrphanPolicy)
	return nil
}

func (a *app) shutdown(ctx context.Context) error {
	if a.tp == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return a.tp.Shutdown(ctx)
}

func (a *app) registry() *lifetrack.Registry {
	opts := append(a.cfg.RegistryOptions(), lifetrack.WithLogger(a.logger))
	if a.tp != nil {
		opts = append(opts, lifetrack.WithTracerProvider(a.tp))
	}
	return lifetrack.New(opts...)
}
