// Package otel publishes goPhoneAuth counters through an OpenTelemetry Meter.
//
// Counters become Int64ObservableCounters. The login latency histogram is a
// single Int64ObservableGauge carrying one cumulative point per "le" bound.
// One callback reads Engine.MetricsSnapshot per collection. Callers own the
// MeterProvider.
package otel
