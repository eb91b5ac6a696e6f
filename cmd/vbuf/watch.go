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
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/vbuf/services/vbuf/backend"
	"github.com/AleutianAI/vbuf/services/vbuf/provider/snapshot"
	"github.com/AleutianAI/vbuf/services/vbuf/telemetry"
)

func (c *cli) newWatchCmd() *cobra.Command {
	var text bool
	cmd := &cobra.Command{
		Use:   "watch SNAPSHOT",
		Short: "Render a snapshot and re-render it whenever the file changes",
		Long: `watch keeps a buffer for the snapshot's document. Every save of the
snapshot file is diffed against the previous version; the resulting change
notifications invalidate the affected buffer nodes, which are re-rendered
and printed. Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.watch(ctx, args[0], text)
		},
	}
	cmd.Flags().BoolVar(&text, "text", false, "Print the buffer text instead of the node dump")
	return cmd
}

// watch runs the backend, the snapshot watcher, the printer and the
// optional metrics server until ctx ends or one of them fails.
func (c *cli) watch(ctx context.Context, path string, text bool) error {
	p, err := openSnapshot(path)
	if err != nil {
		return err
	}

	logger := c.logger.Slog()
	host := snapshot.NewHost()
	reg := backend.NewRegistry()
	opts := append(c.cfg.DispatcherOptions(), backend.WithDispatchLogger(logger))
	dispatcher := backend.NewDispatcher(reg, p, p, opts...)
	reg.Attach(host, dispatcher.HandleEvent)
	defer reg.Detach()

	// The callback runs with the render lock held, so printing happens on
	// its own goroutine.
	updates := make(chan backend.UpdateResult, 16)
	b := c.newBackend(p, reg, backend.WithUpdateCallback(func(_ *backend.Backend, res backend.UpdateResult) {
		select {
		case updates <- res:
		default:
		}
	}))

	w, err := snapshot.NewWatcher(path, p, host, &snapshot.WatcherOptions{
		Debounce: c.cfg.Watch.Debounce,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(gctx) })
	g.Go(func() error { return w.Run(gctx) })
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case res := <-updates:
				logger.Info("buffer updated",
					slog.String("kind", res.Kind.String()),
					slog.Int("subtrees", res.Subtrees),
					slog.Int("controls", res.Stats.Controls))
				if err := c.print(b, text); err != nil {
					return err
				}
			}
		}
	})

	if addr := c.cfg.Metrics.Addr; addr != "" {
		srv := telemetry.NewMetricsServer(addr)
		g.Go(func() error {
			logger.Info("serving metrics", slog.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info("watching snapshot", slog.String("path", path))
	return g.Wait()
}
