package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/danpasecinic/lifetrack"
	"github.com/danpasecinic/lifetrack/report"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	d := Defaults()
	require.NoError(t, d.Validate())
	require.Equal(t, report.FormatText, d.ReportFormat())

	r := lifetrack.New(d.RegistryOptions()...)
	require.Equal(t, lifetrack.PerClassIDs, r.IDScheme())
	require.Equal(t, lifetrack.ReportOrphans, r.OrphanPolicy())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
format: yaml
id_scheme: global
orphan_policy: retire
retention: 90s
stress:
  workers: 2
  close_ratio: 0.25
`)

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	require.Equal(t, "yaml", cfg.Format)
	require.Equal(t, 90*time.Second, cfg.Retention)
	require.Equal(t, 2, cfg.Stress.Workers)
	require.Equal(t, 1000, cfg.Stress.PerWorker, "unset keys keep defaults")
	require.InDelta(t, 0.25, cfg.Stress.CloseRatio, 1e-9)

	r := lifetrack.New(cfg.RegistryOptions()...)
	require.Equal(t, lifetrack.GlobalIDs, r.IDScheme())
	require.Equal(t, lifetrack.RetireOrphans, r.OrphanPolicy())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "format: yaml\n")
	t.Setenv("LIFETRACK_FORMAT", "json")
	t.Setenv("LIFETRACK_STRESS_WORKERS", "3")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	require.Equal(t, "json", cfg.Format)
	require.Equal(t, 3, cfg.Stress.Workers)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, "format: xml\norphan_policy: ignore\n")

	_, err := Load(viper.New(), path)
	require.ErrorContains(t, err, `unknown format "xml"`)
	require.ErrorContains(t, err, `unknown orphan policy "ignore"`)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative retention", func(c *Config) { c.Retention = -time.Second }},
		{"no workers", func(c *Config) { c.Stress.Workers = 0 }},
		{"ratio above one", func(c *Config) { c.Stress.CloseRatio = 1.5 }},
		{"bad id scheme", func(c *Config) { c.IDScheme = "random" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Defaults()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
