// Package telemetry wires OpenTelemetry tracing and HTTP metrics.
package telemetry
