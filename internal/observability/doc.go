// Package observability adapts the coordinator's MetricsRecorder, Tracer and
// StepSink hooks to Prometheus, OpenTelemetry and InfluxDB.
package observability
