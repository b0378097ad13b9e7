// Package telemetry wraps OpenTelemetry SDK initialization, giving the
// service a centralized TracerProvider and MeterProvider. When
// telemetry is disabled, it falls back to no-op implementations that
// never dial out.
package telemetry
