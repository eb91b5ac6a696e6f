// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{" warn ", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"Error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestLogger_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Service: "vbuf-test", Output: &buf})
	defer logger.Close()

	logger.Debug("hidden")
	logger.Info("render pass complete", "kind", "full")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record written at info level: %q", out)
	}
	for _, want := range []string{"render pass complete", "kind=full", "service=vbuf-test"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, JSON: true, Output: &buf})
	defer logger.Close()

	logger.With("backend_id", "b1").Warn("root unavailable")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "root unavailable" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record["level"] != "WARN" {
		t.Errorf("level = %v", record["level"])
	}
	if record["backend_id"] != "b1" {
		t.Errorf("backend_id = %v", record["backend_id"])
	}
}

func TestLogger_TraceCorrelation(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{JSON: true, Output: &buf})
	defer logger.Close()

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.Slog().InfoContext(ctx, "with span")
	logger.Slog().Info("without span")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatal(err)
	}
	if first["trace_id"] != traceID.String() || first["span_id"] != spanID.String() {
		t.Errorf("trace attributes missing: %v", first)
	}
	if _, ok := second["trace_id"]; ok {
		t.Errorf("trace_id set without a span: %v", second)
	}
}

func TestLogger_Quiet(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Quiet: true, Output: &buf, LogDir: t.TempDir()})
	defer logger.Close()

	logger.Error("to file only")
	if buf.Len() != 0 {
		t.Errorf("quiet logger wrote to console: %q", buf.String())
	}
}

func TestLogger_LogDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, LogDir: dir, Service: "vbuf", Output: &buf})

	logger.Debug("written twice", "id", -1)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close() = %v", err)
	}

	name := "vbuf_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("file record is not JSON: %v", err)
	}
	if record["msg"] != "written twice" || record["service"] != "vbuf" {
		t.Errorf("unexpected file record: %v", record)
	}
	if !strings.Contains(buf.String(), "written twice") {
		t.Errorf("console missing record: %q", buf.String())
	}
}

func TestLogger_LogDirUnusable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	logger := New(Config{LogDir: filepath.Join(blocker, "logs"), Output: &buf})
	defer logger.Close()

	logger.Info("still logged")
	if logger.file != nil {
		t.Error("file opened under a regular file")
	}
	if !strings.Contains(buf.String(), "still logged") {
		t.Errorf("console missing record: %q", buf.String())
	}
}

func TestLogger_SetDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := New(Config{Output: &buf})
	logger.SetDefault()

	slog.Info("through default")
	if !strings.Contains(buf.String(), "through default") {
		t.Errorf("default logger not installed: %q", buf.String())
	}
}

func TestLogger_ConcurrentUse(t *testing.T) {
	var mu sync.Mutex
	var buf bytes.Buffer
	logger := New(Config{Output: &lockedWriter{mu: &mu, w: &buf}})
	defer logger.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.With("worker", n).Info("tick")
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if got := strings.Count(buf.String(), "tick"); got != 10 {
		t.Errorf("got %d records, want 10", got)
	}
}

type lockedWriter struct {
	mu *sync.Mutex
	w  *bytes.Buffer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

// =============================================================================
// Handler Tests
// =============================================================================

func TestMultiHandler_LevelPerHandler(t *testing.T) {
	var debugBuf, warnBuf bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}}
	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("k", "v")}))

	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("multiHandler should be enabled when any handler is")
	}

	logger.Debug("detail")
	logger.Warn("problem")

	if !strings.Contains(debugBuf.String(), "detail") || !strings.Contains(debugBuf.String(), "problem") {
		t.Errorf("debug handler output = %q", debugBuf.String())
	}
	if strings.Contains(warnBuf.String(), "detail") || !strings.Contains(warnBuf.String(), "k=v") {
		t.Errorf("warn handler output = %q", warnBuf.String())
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/logs"); got != filepath.Join(home, "logs") {
		t.Errorf("expandPath(~/logs) = %q", got)
	}
	if got := expandPath("/var/log"); got != "/var/log" {
		t.Errorf("expandPath(/var/log) = %q", got)
	}
}
