// Package internaldefs holds the metric names, help strings and histogram
// bounds shared by the Prometheus and OpenTelemetry exporters, so both emit
// identical series. It performs no I/O.
package internaldefs
