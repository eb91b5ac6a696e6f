// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snapshot

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/vbuf/services/vbuf/provider"
)

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Debounce is how long to wait for more writes before reloading.
	// Default: 100ms
	Debounce time.Duration

	// Logger receives reload failures. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultWatcherOptions returns sensible defaults.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		Debounce: 100 * time.Millisecond,
		Logger:   slog.Default(),
	}
}

// Watcher reloads a snapshot file when it changes and emits the resulting
// change notifications through a Host.
//
// # Description
//
// The watcher observes the file's directory rather than the file itself,
// because editors commonly save by writing a new file and renaming it over
// the old one. Bursts of writes are collapsed with a debounce window; each
// reload diffs the new document against the old one with Provider.Replace.
//
// # Thread Safety
//
// Run must be called once. Reloads happen on the Run goroutine.
type Watcher struct {
	path     string
	provider *Provider
	host     *Host
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher

	// reloaded is signalled after every reload attempt; used by tests.
	reloaded chan error
}

// NewWatcher creates a watcher for the snapshot at path.
//
// Inputs:
//
//	path - Snapshot file.
//	p - Provider to update.
//	host - Host to emit notifications through.
//	opts - Optional configuration (nil uses defaults).
func NewWatcher(path string, p *Provider, host *Host, opts *WatcherOptions) (*Watcher, error) {
	if opts == nil {
		defaults := DefaultWatcherOptions()
		opts = &defaults
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultWatcherOptions().Debounce
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{
		path:     abs,
		provider: p,
		host:     host,
		debounce: debounce,
		logger:   logger.With(slog.String("snapshot", abs)),
		watcher:  fw,
		reloaded: make(chan error, 16),
	}, nil
}

// Run watches until ctx is cancelled. It always returns nil after
// cancellation so it composes with errgroup.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("snapshot watch error", slog.String("error", err.Error()))
		}
	}
}

// Reloaded returns a channel that receives the result of every reload.
func (w *Watcher) Reloaded() <-chan error {
	return w.reloaded
}

func (w *Watcher) reload() {
	events, err := w.load()
	select {
	case w.reloaded <- err:
	default:
	}
	if err != nil {
		w.logger.Warn("snapshot reload failed", slog.String("error", err.Error()))
		return
	}

	w.logger.Info("snapshot reloaded", slog.Int("events", len(events)))
	for _, ev := range events {
		w.host.Emit(ev)
	}
}

func (w *Watcher) load() ([]provider.Event, error) {
	doc, err := Load(w.path)
	if err != nil {
		return nil, err
	}
	return w.provider.Replace(doc)
}
