package observability

import (
	"context"
	"errors"
	"fmt"
	"os"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"plantsim/internal/core"
	"plantsim/pkg/domain"
)

const stepMeasurement = "plant_step"

var _ core.StepSink = (*InfluxSink)(nil)

// InfluxConfig locates the InfluxDB bucket step telemetry is written to.
type InfluxConfig struct {
	URL    string `yaml:"url" json:"url"`
	Token  string `yaml:"token" json:"token"`
	Org    string `yaml:"org" json:"org"`
	Bucket string `yaml:"bucket" json:"bucket"`
}

// InfluxConfigFromEnv reads PLANTSIM_INFLUX_{URL,TOKEN,ORG,BUCKET}.
func InfluxConfigFromEnv() InfluxConfig {
	return InfluxConfig{
		URL:    os.Getenv("PLANTSIM_INFLUX_URL"),
		Token:  os.Getenv("PLANTSIM_INFLUX_TOKEN"),
		Org:    os.Getenv("PLANTSIM_INFLUX_ORG"),
		Bucket: os.Getenv("PLANTSIM_INFLUX_BUCKET"),
	}
}

// InfluxSink writes one point per step with the plant state as fields.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewInfluxSink connects to cfg.URL. No request is made until the first
// Record.
func NewInfluxSink(cfg InfluxConfig) (*InfluxSink, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, errors.New("influx url, org and bucket are required")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSink{client: client, writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket)}, nil
}

// NewInfluxSinkWithWriter wraps an existing blocking write API.
func NewInfluxSinkWithWriter(w api.WriteAPIBlocking) *InfluxSink {
	return &InfluxSink{writeAPI: w}
}

// Record implements core.StepSink.
func (s *InfluxSink) Record(ctx context.Context, record domain.StepRecord) error {
	p := record.Plant
	tags := map[string]string{
		"run_id":     record.RunID,
		"plant_mode": p.PlantModeName,
	}
	if p.HeatupPhase != "" {
		tags["heatup_phase"] = p.HeatupPhase
	}
	failures := 0
	for _, cmp := range record.Comparisons {
		if !cmp.Pass {
			failures++
		}
	}
	fields := map[string]interface{}{
		"step":                  record.Ledger.Step,
		"sim_time_sec":          record.Ledger.SimTimeSec,
		"pressure_psia":         p.PressurePsia,
		"tavg_f":                p.TavgF,
		"pzr_level_pct":         p.PzrLevelPct,
		"surge_flow_gpm":        p.SurgeFlowGpm,
		"spray_flow_gpm":        p.SprayFlowGpm,
		"heater_power_kw":       p.HeaterPowerKW,
		"mass_drift_lbm":        p.Mass.DriftLbm,
		"transfer_events":       len(record.Ledger.Events),
		"unledgered_mutation":   record.Ledger.UnledgeredMutationDetected,
		"comparator_mismatches": failures,
	}
	point := influxdb2.NewPoint(stepMeasurement, tags, fields, record.RecordedAt)
	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("influx write step %d: %w", record.Ledger.Step, err)
	}
	return nil
}

// Close releases the client, if the sink owns one.
func (s *InfluxSink) Close() {
	if s.client != nil {
		s.client.Close()
	}
}
