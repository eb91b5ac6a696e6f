// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/vbuf/pkg/logging"
	"github.com/AleutianAI/vbuf/services/vbuf/config"
	"github.com/AleutianAI/vbuf/services/vbuf/telemetry"
)

// cli holds flag values and the process state set up before a command runs.
type cli struct {
	configPath  string
	logLevel    string
	logFormat   string
	metricsAddr string
	traceStdout bool

	out    io.Writer
	errOut io.Writer

	cfg      config.Config
	logger   *logging.Logger
	shutdown func(context.Context) error
}

// run executes the command line in args and releases everything the
// command set up, whatever its outcome.
func run(ctx context.Context, args []string, out, errOut io.Writer) error {
	c := &cli{out: out, errOut: errOut}
	root := c.newRootCmd()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if cerr := c.close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (c *cli) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vbuf",
		Short: "Render accessibility tree snapshots into document buffers",
		Long: `vbuf builds the flattened document buffer a screen reader browses
from an accessibility tree snapshot, and keeps it current while the
snapshot file changes.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "Path to a YAML configuration file")
	flags.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flags.StringVar(&c.logFormat, "log-format", "auto", "Log format: auto, text, or json")
	flags.StringVar(&c.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on host:port (overrides config)")
	flags.BoolVar(&c.traceStdout, "trace-stdout", false, "Write render pass spans to stderr")

	root.AddCommand(c.newRenderCmd(), c.newQuirksCmd(), c.newWatchCmd())
	return root
}

// setup loads the configuration, applies flag overrides, and starts
// logging and telemetry.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if c.metricsAddr != "" {
		cfg.Metrics.Addr = c.metricsAddr
	}
	if c.traceStdout {
		cfg.Metrics.TraceStdout = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	switch c.logFormat {
	case "json":
		cfg.Logging.JSON = true
	case "text":
		cfg.Logging.JSON = false
	case "auto":
		cfg.Logging.JSON = cfg.Logging.JSON || !isTerminal(c.errOut)
	default:
		return fmt.Errorf("unknown log format %q", c.logFormat)
	}
	c.cfg = cfg

	lc := cfg.LoggerConfig("vbuf")
	lc.Output = c.errOut
	c.logger = logging.New(lc)
	c.logger.SetDefault()

	tc := telemetry.DefaultConfig()
	tc.Writer = c.errOut
	tc.TraceExporter = "none"
	tc.MetricExporter = "none"
	switch {
	case cfg.Metrics.OTLPEndpoint != "":
		tc.TraceExporter = "otlp"
		tc.OTLPEndpoint = cfg.Metrics.OTLPEndpoint
	case cfg.Metrics.TraceStdout:
		tc.TraceExporter = "stdout"
	}
	if cfg.Metrics.Addr != "" {
		tc.MetricExporter = "prometheus"
	}
	shutdown, err := telemetry.Init(cmd.Context(), tc)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	c.shutdown = shutdown
	return nil
}

// close flushes telemetry and closes the log file.
func (c *cli) close() error {
	var errs []error
	if c.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, c.shutdown(ctx))
		cancel()
		c.shutdown = nil
	}
	if c.logger != nil {
		errs = append(errs, c.logger.Close())
	}
	return errors.Join(errs...)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
