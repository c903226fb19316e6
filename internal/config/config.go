// Package config loads the plantsim run configuration: defaults, then a YAML
// file, then PLANTSIM_* environment overrides, then validation.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"plantsim/internal/archive"
	"plantsim/internal/core"
	"plantsim/internal/legacy"
	"plantsim/internal/observability"
	"plantsim/pkg/domain"
)

// Config is the full run configuration.
type Config struct {
	Run        RunConfig           `json:"run" yaml:"run"`
	Plant      PlantConfig         `json:"plant" yaml:"plant"`
	Flags      domain.FeatureFlags `json:"flags" yaml:"flags"`
	Tolerances domain.Tolerances   `json:"tolerances" yaml:"tolerances"`
	Storage    StorageConfig       `json:"storage" yaml:"storage"`
	Archive    ArchiveConfig       `json:"archive" yaml:"archive"`
	Telemetry  TelemetryConfig     `json:"telemetry" yaml:"telemetry"`
	Metrics    MetricsConfig       `json:"metrics" yaml:"metrics"`
	Log        LogConfig           `json:"log" yaml:"log"`
}

// RunConfig bounds one simulation run.
type RunConfig struct {
	Steps int     `json:"steps" yaml:"steps" validate:"gte=1"`
	DtSec float64 `json:"dt_sec" yaml:"dt_sec" validate:"gt=0,lte=60"`
	RunID string  `json:"run_id" yaml:"run_id" validate:"excludesall=/"`
}

// PlantConfig overrides the legacy engine's initial conditions. Zero values
// keep the engine defaults.
type PlantConfig struct {
	Loops               int     `json:"loops" yaml:"loops" validate:"gte=0,lte=8"`
	InitialTavgF        float64 `json:"initial_tavg_f" yaml:"initial_tavg_f" validate:"gte=0"`
	InitialPressurePsia float64 `json:"initial_pressure_psia" yaml:"initial_pressure_psia" validate:"gte=0"`
	InitialLevelPct     float64 `json:"initial_level_pct" yaml:"initial_level_pct" validate:"gte=0,lte=100"`
	RCPCount            int     `json:"rcp_count" yaml:"rcp_count" validate:"gte=0,lte=4"`
}

// StorageConfig selects the ledger store.
type StorageConfig struct {
	Driver      string `json:"driver" yaml:"driver" validate:"oneof=memory sqlite postgres badger"`
	SQLitePath  string `json:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string `json:"postgres_dsn" yaml:"postgres_dsn" validate:"required_if=Driver postgres"`
	BadgerDir   string `json:"badger_dir" yaml:"badger_dir" validate:"required_if=Driver badger"`
}

// ArchiveConfig selects where finished runs are exported. Export is skipped
// unless Enabled.
type ArchiveConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Driver      string `json:"driver" yaml:"driver" validate:"omitempty,oneof=fs s3 memory"`
	FSRoot      string `json:"fs_root" yaml:"fs_root"`
	S3Bucket    string `json:"s3_bucket" yaml:"s3_bucket" validate:"required_if=Driver s3"`
	S3Region    string `json:"s3_region" yaml:"s3_region"`
	S3Endpoint  string `json:"s3_endpoint" yaml:"s3_endpoint" validate:"omitempty,url"`
	S3PathStyle bool   `json:"s3_path_style" yaml:"s3_path_style"`
}

// TelemetryConfig enables the InfluxDB step sink.
type TelemetryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	URL     string `json:"url" yaml:"url" validate:"required_if=Enabled true"`
	Token   string `json:"token" yaml:"token"`
	Org     string `json:"org" yaml:"org" validate:"required_if=Enabled true"`
	Bucket  string `json:"bucket" yaml:"bucket" validate:"required_if=Enabled true"`
}

// MetricsConfig exposes Prometheus metrics when Listen is set.
type MetricsConfig struct {
	Listen  string `json:"listen" yaml:"listen" validate:"omitempty,hostname_port"`
	Tracing bool   `json:"tracing" yaml:"tracing"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `json:"format" yaml:"format" validate:"oneof=text json"`
}

// Default returns a legacy-only in-memory run of one simulated hour.
func Default() Config {
	return Config{
		Run:        RunConfig{Steps: 3600, DtSec: 1},
		Tolerances: domain.DefaultTolerances(),
		Storage:    StorageConfig{Driver: string(core.StorageMemory)},
		Archive:    ArchiveConfig{Driver: string(archive.DriverFilesystem)},
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

// Load applies path (optional) and the environment over Default and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("open config: %w", err)
		}
		err = Decode(f, &cfg)
		_ = f.Close()
		if err != nil {
			return cfg, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Decode reads YAML from r into cfg. Unknown keys are rejected.
func Decode(r io.Reader, cfg *Config) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

// Encode writes cfg as YAML.
func Encode(w io.Writer, cfg Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// ApplyEnv overrides cfg from PLANTSIM_* variables. Malformed numbers and
// booleans are errors rather than silently ignored.
func ApplyEnv(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	integer("PLANTSIM_RUN_STEPS", &cfg.Run.Steps)
	float("PLANTSIM_RUN_DT_SEC", &cfg.Run.DtSec)
	str("PLANTSIM_RUN_ID", &cfg.Run.RunID)
	boolean("PLANTSIM_COORDINATOR_ENABLED", &cfg.Flags.CoordinatorEnabled)

	str("PLANTSIM_STORAGE_DRIVER", &cfg.Storage.Driver)
	str("PLANTSIM_SQLITE_PATH", &cfg.Storage.SQLitePath)
	str("PLANTSIM_POSTGRES_DSN", &cfg.Storage.PostgresDSN)
	str("PLANTSIM_BADGER_DIR", &cfg.Storage.BadgerDir)

	boolean("PLANTSIM_ARCHIVE_ENABLED", &cfg.Archive.Enabled)
	str("PLANTSIM_ARCHIVE_DRIVER", &cfg.Archive.Driver)
	str("PLANTSIM_ARCHIVE_FS_ROOT", &cfg.Archive.FSRoot)
	str("PLANTSIM_ARCHIVE_S3_BUCKET", &cfg.Archive.S3Bucket)
	str("PLANTSIM_ARCHIVE_S3_REGION", &cfg.Archive.S3Region)
	str("PLANTSIM_ARCHIVE_S3_ENDPOINT", &cfg.Archive.S3Endpoint)
	boolean("PLANTSIM_ARCHIVE_S3_PATH_STYLE", &cfg.Archive.S3PathStyle)

	boolean("PLANTSIM_INFLUX_ENABLED", &cfg.Telemetry.Enabled)
	str("PLANTSIM_INFLUX_URL", &cfg.Telemetry.URL)
	str("PLANTSIM_INFLUX_TOKEN", &cfg.Telemetry.Token)
	str("PLANTSIM_INFLUX_ORG", &cfg.Telemetry.Org)
	str("PLANTSIM_INFLUX_BUCKET", &cfg.Telemetry.Bucket)

	str("PLANTSIM_METRICS_LISTEN", &cfg.Metrics.Listen)
	boolean("PLANTSIM_TRACING", &cfg.Metrics.Tracing)
	str("PLANTSIM_LOG_LEVEL", &cfg.Log.Level)
	str("PLANTSIM_LOG_FORMAT", &cfg.Log.Format)
	return errors.Join(errs...)
}

var validate = validator.New()

// Validate checks field constraints and the single-writer rule. Field
// failures are reported together as a *ConfigError.
func (c Config) Validate() error {
	var errs []error
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		ce := &ConfigError{}
		for _, fe := range verrs {
			ce.Fields = append(ce.Fields, FieldError{Field: fe.Namespace(), Tag: fe.Tag(), Param: fe.Param()})
		}
		errs = append(errs, ce)
	}
	if err := c.Flags.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("flags: %w", err))
	}
	return errors.Join(errs...)
}

// StorageConfig converts the storage section for core.OpenLedgerStore.
func (c Config) StorageConfig() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
		BadgerDir:   c.Storage.BadgerDir,
	}
}

// ArchiveConfig converts the archive section for archive.Open.
func (c Config) ArchiveConfig() archive.Config {
	return archive.Config{
		Driver: archive.Driver(c.Archive.Driver),
		FSRoot: c.Archive.FSRoot,
		S3: archive.S3Config{
			Bucket:    c.Archive.S3Bucket,
			Region:    c.Archive.S3Region,
			Endpoint:  c.Archive.S3Endpoint,
			PathStyle: c.Archive.S3PathStyle,
		},
	}
}

// InfluxConfig converts the telemetry section.
func (c Config) InfluxConfig() observability.InfluxConfig {
	return observability.InfluxConfig{URL: c.Telemetry.URL, Token: c.Telemetry.Token, Org: c.Telemetry.Org, Bucket: c.Telemetry.Bucket}
}

// LegacyConfig applies the plant section over legacy.DefaultConfig.
func (c Config) LegacyConfig() legacy.Config {
	lc := legacy.DefaultConfig()
	p := c.Plant
	if p.Loops > 0 {
		lc.Loops = p.Loops
	}
	if p.InitialTavgF > 0 {
		lc.InitialTavgF = p.InitialTavgF
	}
	if p.InitialPressurePsia > 0 {
		lc.InitialPressurePsia = p.InitialPressurePsia
	}
	if p.InitialLevelPct > 0 {
		lc.InitialLevelPct = p.InitialLevelPct
	}
	if p.RCPCount > 0 {
		lc.RCPCount = p.RCPCount
	}
	return lc
}
