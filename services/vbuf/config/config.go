// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the vbuf process configuration.
//
// A configuration file is YAML; every field is optional and falls back to
// Default. Durations use Go duration syntax ("250ms", "2s").
//
//	logging:
//	  level: debug
//	  json: false
//	  dir: ~/.vbuf/logs
//	render:
//	  min_update_interval: 50ms
//	  internal_window_class: MozillaWindowClass
//	  window_class_prefix: Mozilla
//	dispatch:
//	  frame_recovery: true
//	watch:
//	  debounce: 100ms
//	metrics:
//	  addr: 127.0.0.1:9464
//	  trace_stdout: false
//	  otlp_endpoint: localhost:4317
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/vbuf/pkg/logging"
	"github.com/AleutianAI/vbuf/services/vbuf/backend"
)

// MaxConfigSize caps the size of a configuration file.
const MaxConfigSize = 1 << 20

var (
	// ErrConfigTooLarge is returned when a file exceeds MaxConfigSize.
	ErrConfigTooLarge = errors.New("config file too large")

	// ErrInvalidConfig is returned when a configuration fails validation.
	ErrInvalidConfig = errors.New("invalid config")
)

// Config is the full process configuration.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Render   RenderConfig   `yaml:"render"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Watch    WatchConfig    `yaml:"watch"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// LoggingConfig maps onto logging.Config.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	JSON  bool   `yaml:"json"`
	Quiet bool   `yaml:"quiet"`
	Dir   string `yaml:"dir"`
}

// RenderConfig configures backends.
type RenderConfig struct {
	// MinUpdateInterval throttles render passes. Zero disables throttling.
	MinUpdateInterval time.Duration `yaml:"min_update_interval" validate:"gte=0,lte=1m"`

	// InternalWindowClass is the toolkit-internal window class climbed
	// past when normalising windows.
	InternalWindowClass string `yaml:"internal_window_class" validate:"required"`

	// WindowClassPrefix is the class prefix a climbed-to window must have.
	WindowClassPrefix string `yaml:"window_class_prefix" validate:"required"`
}

// DispatchConfig configures the notification dispatcher.
type DispatchConfig struct {
	FrameRecovery bool `yaml:"frame_recovery"`
}

// WatchConfig configures snapshot file watching.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" validate:"gte=0,lte=10s"`
}

// MetricsConfig configures the observability endpoints.
type MetricsConfig struct {
	// Addr is a host:port to serve Prometheus metrics on. Empty disables
	// the endpoint.
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`

	// TraceStdout writes render pass spans to the log stream.
	TraceStdout bool `yaml:"trace_stdout"`

	// OTLPEndpoint sends render pass spans to an OTLP gRPC receiver
	// instead. Takes precedence over TraceStdout.
	OTLPEndpoint string `yaml:"otlp_endpoint" validate:"omitempty,hostname_port"`
}

// Default returns the built-in configuration.
func Default() Config {
	policy := backend.DefaultWindowPolicy()
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Render: RenderConfig{
			InternalWindowClass: policy.InternalClass,
			WindowClassPrefix:   policy.FamilyPrefix,
		},
		Dispatch: DispatchConfig{FrameRecovery: true},
		Watch:    WatchConfig{Debounce: 100 * time.Millisecond},
	}
}

var validate = validator.New()

// Validate checks field constraints.
//
// Outputs:
//
//	error - Wraps ErrInvalidConfig and names each failing field.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(data) > MaxConfigSize {
		return cfg, ErrConfigTooLarge
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Load reads and parses the file at path. An empty path yields the
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return Default(), fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > MaxConfigSize {
		return Default(), fmt.Errorf("%s: %w", path, ErrConfigTooLarge)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoggerConfig converts the logging section.
func (c Config) LoggerConfig(service string) logging.Config {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.Config{
		Level:   level,
		JSON:    c.Logging.JSON,
		Quiet:   c.Logging.Quiet,
		LogDir:  c.Logging.Dir,
		Service: service,
	}
}

// WindowPolicy converts the render section's window classes.
func (c Config) WindowPolicy() backend.WindowPolicy {
	return backend.WindowPolicy{
		InternalClass: c.Render.InternalWindowClass,
		FamilyPrefix:  c.Render.WindowClassPrefix,
	}
}

// BackendOptions returns the backend options the configuration implies.
func (c Config) BackendOptions() []backend.Option {
	return []backend.Option{
		backend.WithWindowPolicy(c.WindowPolicy()),
		backend.WithMinUpdateInterval(c.Render.MinUpdateInterval),
	}
}

// DispatcherOptions returns the dispatcher options the configuration
// implies.
func (c Config) DispatcherOptions() []backend.DispatcherOption {
	return []backend.DispatcherOption{
		backend.WithDispatchPolicy(c.WindowPolicy()),
		backend.WithFrameRecovery(c.Dispatch.FrameRecovery),
	}
}
