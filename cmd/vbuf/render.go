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
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/vbuf/services/vbuf/backend"
	"github.com/AleutianAI/vbuf/services/vbuf/provider/snapshot"
	"github.com/AleutianAI/vbuf/services/vbuf/storage"
)

func (c *cli) newRenderCmd() *cobra.Command {
	var text bool
	cmd := &cobra.Command{
		Use:   "render SNAPSHOT",
		Short: "Render a snapshot once and print the buffer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.render(cmd.Context(), args[0], text)
		},
	}
	cmd.Flags().BoolVar(&text, "text", false, "Print the buffer text instead of the node dump")
	return cmd
}

func (c *cli) newQuirksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quirks SNAPSHOT",
		Short: "Print the toolkit quirks detected for a snapshot's document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.quirks(args[0])
		},
	}
}

func openSnapshot(path string) (*snapshot.Provider, error) {
	doc, err := snapshot.Load(path)
	if err != nil {
		return nil, err
	}
	p, err := snapshot.New(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// newBackend creates a backend for the snapshot's document root.
func (c *cli) newBackend(p *snapshot.Provider, reg *backend.Registry, extra ...backend.Option) *backend.Backend {
	win, id := p.Root()
	opts := append(c.cfg.BackendOptions(),
		backend.WithRegistry(reg),
		backend.WithLogger(c.logger.Slog()),
	)
	return backend.New(win, id, p, p, append(opts, extra...)...)
}

func (c *cli) render(ctx context.Context, path string, text bool) error {
	p, err := openSnapshot(path)
	if err != nil {
		return err
	}
	b := c.newBackend(p, backend.NewRegistry())
	res, err := b.Update(ctx)
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	c.logger.Info("rendered snapshot",
		slog.String("path", path),
		slog.Int("controls", res.Stats.Controls),
		slog.Int("texts", res.Stats.Texts),
		slog.Duration("duration", res.Duration))

	return c.print(b, text)
}

// print writes the backend's buffer as text or as a node dump.
func (c *cli) print(b *backend.Backend, text bool) error {
	var err error
	b.View(func(buf *storage.Buffer) {
		if text {
			_, err = fmt.Fprintln(c.out, buf.Text())
			return
		}
		err = buf.Dump(c.out)
	})
	return err
}

type quirksReport struct {
	Toolkit             string `yaml:"toolkit,omitempty"`
	Version             string `yaml:"version,omitempty"`
	DisableTableHeaders bool   `yaml:"disable_table_headers"`
	EncodedDescription  bool   `yaml:"encoded_description"`
}

func (c *cli) quirks(path string) error {
	p, err := openSnapshot(path)
	if err != nil {
		return err
	}
	win, id := p.Root()
	root, err := p.ObjectFromEvent(win, id)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", path, backend.ErrRootUnavailable, err)
	}
	q := backend.DetectQuirks(root)
	root.Release()

	toolkit := p.Document().Toolkit
	enc := yaml.NewEncoder(c.out)
	defer enc.Close()
	return enc.Encode(quirksReport{
		Toolkit:             toolkit.Name,
		Version:             toolkit.Version,
		DisableTableHeaders: q.DisableTableHeaders,
		EncodedDescription:  q.EncodedDescription,
	})
}
