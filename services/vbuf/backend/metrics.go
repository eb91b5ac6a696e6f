// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backend

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for render passes.
var (
	tracer = otel.Tracer("vbuf.backend")
	meter  = otel.Meter("vbuf.backend")
)

// Metrics for render passes.
var (
	passLatency     metric.Float64Histogram
	passTotal       metric.Int64Counter
	controlsCreated metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// Dispatch outcomes.
const (
	outcomeFiltered    = "filtered"
	outcomeForced      = "forced"
	outcomeIgnored     = "ignored"
	outcomeInvalidated = "invalidated"
	outcomeRecovered   = "recovered"
	outcomeDropped     = "dropped"
)

// dispatchEventsTotal counts notifications by kind and outcome.
var dispatchEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vbuf_dispatch_events_total",
	Help: "Change notifications handled by the dispatcher, by kind and outcome",
}, []string{"kind", "outcome"})

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		passLatency, err = meter.Float64Histogram(
			"vbuf_render_pass_duration_seconds",
			metric.WithDescription("Duration of render passes"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		passTotal, err = meter.Int64Counter(
			"vbuf_render_pass_total",
			metric.WithDescription("Total number of render passes"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		controlsCreated, err = meter.Int64Histogram(
			"vbuf_render_controls_created",
			metric.WithDescription("Number of control nodes created per render pass"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordPassMetrics records metrics for one render pass.
func recordPassMetrics(ctx context.Context, kind PassKind, duration time.Duration, stats RenderStats, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("kind", kind.String()),
		attribute.Bool("success", success),
	)
	passLatency.Record(ctx, duration.Seconds(), attrs)
	passTotal.Add(ctx, 1, attrs)
	if success {
		controlsCreated.Record(ctx, int64(stats.Controls))
	}
}

// startPassSpan creates a span for a render pass.
func startPassSpan(ctx context.Context, backendID string, pending int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Backend.Update",
		trace.WithAttributes(
			attribute.String("vbuf.backend_id", backendID),
			attribute.Int("vbuf.pending_subtrees", pending),
		),
	)
}

// setPassSpanResult sets the result attributes on a pass span.
func setPassSpanResult(span trace.Span, result UpdateResult) {
	span.SetAttributes(
		attribute.String("vbuf.pass_kind", result.Kind.String()),
		attribute.Int("vbuf.controls_created", result.Stats.Controls),
		attribute.Int("vbuf.texts_created", result.Stats.Texts),
		attribute.Int("vbuf.subtrees", result.Subtrees),
		attribute.Int("vbuf.skipped", result.Skipped),
	)
}

// countDispatch increments the dispatch counter.
func countDispatch(kind, outcome string) {
	dispatchEventsTotal.WithLabelValues(kind, outcome).Inc()
}
