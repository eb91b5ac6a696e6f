// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires the OpenTelemetry SDK for vbuf processes.
//
// Render passes are traced and measured through otel.Tracer and otel.Meter
// in the backend package. Until Init runs those calls go to the no-op global
// providers; after Init they reach the configured exporters.
//
// # Exporters
//
// Traces go to stdout (pretty-printed JSON, useful when stepping through a
// snapshot by hand) or to an OTLP gRPC receiver. Metrics are exposed for
// Prometheus scraping through MetricsHandler or printed periodically to
// stdout.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	cfg.TraceExporter = "stdout"
//	shutdown, err := telemetry.Init(ctx, cfg)
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
//
//	srv := telemetry.NewMetricsServer("127.0.0.1:9464")
//
// # Environment Variables
//
//   - VBUF_ENV: environment name (default: development)
//   - OTEL_TRACES_EXPORTER: otlp, stdout, or none (default: none)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout, or none (default: prometheus)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
package telemetry
