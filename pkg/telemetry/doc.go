// Package telemetry provides logging, tracing, and metrics for the toolkit.
//
// # Architecture
//
//  1. Structured Logging - zerolog with console or JSON output
//  2. Distributed Tracing - OpenTelemetry with stdout or OTLP exporters
//  3. Metrics Collection - Prometheus collectors on a private registry
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	graph := ordering.NewGraph(provider,
//	    ordering.WithLogger(tel.Logger.NewComponentLogger("ordering").Zerolog()),
//	    ordering.WithRecorder(tel.Metrics),
//	)
//
// Metrics implements ordering.Recorder, so graph activity is counted by
// outcome (appended, inserted_before, inserted_after, rebuilt, known, failed).
// Lifecycle cleanup and schema reloads are counted as well.
package telemetry
