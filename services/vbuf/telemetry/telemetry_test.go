// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("VBUF_ENV", "ci")
	t.Setenv("OTEL_TRACES_EXPORTER", "")
	cfg := DefaultConfig()

	if cfg.ServiceName != "vbuf" {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "vbuf")
	}
	if cfg.Environment != "ci" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "ci")
	}
	if cfg.TraceExporter != "none" {
		t.Errorf("TraceExporter = %q, want %q", cfg.TraceExporter, "none")
	}
}

func TestInit_NilContext(t *testing.T) {
	cfg := DefaultConfig()
	//nolint:staticcheck // nil context is the case under test
	_, err := Init(nil, cfg)
	if !errors.Is(err, ErrNilContext) {
		t.Errorf("Init(nil, cfg) error = %v, want %v", err, ErrNilContext)
	}
}

func TestInit_NoExporters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "none"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	for _, cfg := range []Config{
		{TraceExporter: "zipkin", MetricExporter: "none"},
		{TraceExporter: "none", MetricExporter: "graphite"},
	} {
		_, err := Init(context.Background(), cfg)
		if !errors.Is(err, ErrUnknownExporter) {
			t.Errorf("Init(%+v) error = %v, want ErrUnknownExporter", cfg, err)
		}
	}
}

func TestInit_StdoutTraces(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.ServiceName = "vbuf-test"
	cfg.TraceExporter = "stdout"
	cfg.MetricExporter = "none"
	cfg.Writer = &buf

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "Backend.Update")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Backend.Update") {
		t.Errorf("span not exported: %q", out)
	}
	if !strings.Contains(out, "vbuf-test") {
		t.Errorf("resource missing service name: %q", out)
	}
}

func TestInit_OTLPTracesLazyConnect(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "otlp"
	cfg.MetricExporter = "none"
	cfg.OTLPEndpoint = "127.0.0.1:1"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = shutdown(ctx)
}

func TestInit_PrometheusMetrics(t *testing.T) {
	t.Cleanup(func() { setMetricsHandler(nil) })

	reg := prometheus.NewRegistry()
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"
	cfg.Registry = reg

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background())

	counter, err := otel.Meter("test").Int64Counter("vbuf_test_events")
	if err != nil {
		t.Fatalf("Int64Counter() error = %v", err)
	}
	counter.Add(context.Background(), 3)

	if MetricsHandler() == nil {
		t.Fatal("MetricsHandler() = nil after prometheus Init")
	}

	srv := NewMetricsServer("127.0.0.1:0")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "vbuf_test_events") {
		t.Errorf("counter missing from scrape:\n%s", rec.Body.String())
	}
}

func TestInit_StdoutMetrics(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "stdout"
	cfg.Writer = &buf

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	counter, err := otel.Meter("test").Int64Counter("vbuf_stdout_events")
	if err != nil {
		t.Fatalf("Int64Counter() error = %v", err)
	}
	counter.Add(context.Background(), 1)

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
	if !strings.Contains(buf.String(), "vbuf_stdout_events") {
		t.Errorf("metric not exported on shutdown: %q", buf.String())
	}
}

func TestNewMetricsServer_FallsBackToGlobalRegistry(t *testing.T) {
	setMetricsHandler(nil)

	srv := NewMetricsServer("127.0.0.1:9464")
	if srv.Addr != "127.0.0.1:9464" {
		t.Errorf("Addr = %q", srv.Addr)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("global registry collectors missing")
	}
}
