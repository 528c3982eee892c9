// Package config provides configuration types and defaults for the lifetrack
// command.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/danpasecinic/lifetrack"
	"github.com/danpasecinic/lifetrack/report"
)

const EnvPrefix = "LIFETRACK"

type Config struct {
	Format       string        `mapstructure:"format"`
	IDScheme     string        `mapstructure:"id_scheme"`
	OrphanPolicy string        `mapstructure:"orphan_policy"`
	Retention    time.Duration `mapstructure:"retention"`
	Verbose      bool          `mapstructure:"verbose"`
	Trace        bool          `mapstructure:"trace"`
	Stress       StressConfig  `mapstructure:"stress"`
}

type StressConfig struct {
	Workers     int     `mapstructure:"workers"`
	PerWorker   int     `mapstructure:"per_worker"`
	CloseRatio  float64 `mapstructure:"close_ratio"`
	PayloadSize int     `mapstructure:"payload_size"`
}

func Defaults() Config {
	return Config{
		Format:       string(report.FormatText),
		IDScheme:     lifetrack.PerClassIDs.String(),
		OrphanPolicy: lifetrack.ReportOrphans.String(),
		Stress: StressConfig{
			Workers:     8,
			PerWorker:   1000,
			CloseRatio:  0.5,
			PayloadSize: 256,
		},
	}
}

// SetDefaults registers every default under its mapstructure key so that
// environment variables resolve even without a config file.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("format", d.Format)
	v.SetDefault("id_scheme", d.IDScheme)
	v.SetDefault("orphan_policy", d.OrphanPolicy)
	v.SetDefault("retention", d.Retention)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("trace", d.Trace)
	v.SetDefault("stress.workers", d.Stress.Workers)
	v.SetDefault("stress.per_worker", d.Stress.PerWorker)
	v.SetDefault("stress.close_ratio", d.Stress.CloseRatio)
	v.SetDefault("stress.payload_size", d.Stress.PayloadSize)
}

// Load resolves the configuration from, in increasing precedence, defaults,
// the config file, LIFETRACK_* environment variables and any flags already
// bound to v. An empty path looks for ~/.config/lifetrack/config.yaml and
// tolerates its absence.
func Load(v *viper.Viper, path string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "lifetrack"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if _, err := report.ParseFormat(c.Format); err != nil {
		errs = append(errs, err)
	}
	if _, err := lifetrack.ParseIDScheme(c.IDScheme); err != nil {
		errs = append(errs, err)
	}
	if _, err := lifetrack.ParseOrphanPolicy(c.OrphanPolicy); err != nil {
		errs = append(errs, err)
	}
	if c.Retention < 0 {
		errs = append(errs, fmt.Errorf("retention must not be negative, got %s", c.Retention))
	}
	if c.Stress.Workers <= 0 || c.Stress.PerWorker <= 0 {
		errs = append(errs, errors.New("stress workers and per_worker must be positive"))
	}
	if c.Stress.CloseRatio < 0 || c.Stress.CloseRatio > 1 {
		errs = append(errs, fmt.Errorf("stress close_ratio must be within [0, 1], got %g", c.Stress.CloseRatio))
	}
	return errors.Join(errs...)
}

// RegistryOptions translates the registry settings. The result is only
// meaningful for a validated Config.
func (c Config) RegistryOptions() []lifetrack.Option {
	scheme, _ := lifetrack.ParseIDScheme(c.IDScheme)
	policy, _ := lifetrack.ParseOrphanPolicy(c.OrphanPolicy)

	opts := []lifetrack.Option{
		lifetrack.WithIDScheme(scheme),
		lifetrack.WithOrphanPolicy(policy),
	}
	if c.Retention > 0 {
		opts = append(opts, lifetrack.WithRetiredRetention(c.Retention))
	}
	return opts
}

func (c Config) ReportFormat() report.Format {
	f, _ := report.ParseFormat(c.Format)
	return f
}
