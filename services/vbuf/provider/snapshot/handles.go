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
	"fmt"
	"sync/atomic"

	"github.com/AleutianAI/vbuf/services/vbuf/provider"
)

// handle is the release bookkeeping shared by every handle type.
type handle struct {
	p        *Provider
	e        *entry
	released int32
}

func (h *handle) Release() {
	if atomic.CompareAndSwapInt32(&h.released, 0, 1) {
		h.p.outstanding.Add(-1)
	}
}

// check returns ErrReleased for a released handle, then the configured
// failure for query, if any.
func (h *handle) check(query string) error {
	if atomic.LoadInt32(&h.released) != 0 {
		return fmt.Errorf("%s on object %d: %w", query, h.e.spec.ID, provider.ErrReleased)
	}
	return h.e.failing(query)
}

func (h *handle) unsupported(query string) error {
	return fmt.Errorf("%s on object %d: %w", query, h.e.spec.ID, provider.ErrNotSupported)
}

func (p *Provider) newHandle(e *entry) handle {
	p.track()
	return handle{p: p, e: e}
}

// object is a provider.Object backed by an entry.
type object struct {
	handle
	t *tree
}

func (p *Provider) object(t *tree, e *entry) *object {
	return &object{handle: p.newHandle(e), t: t}
}

// resolve returns handles for the objects named by ids, skipping unknown ids.
func (o *object) resolve(ids []int64) []provider.Object {
	out := make([]provider.Object, 0, len(ids))
	for _, id := range ids {
		if e, ok := o.t.objects[id]; ok {
			out = append(out, o.p.object(o.t, e))
		}
	}
	return out
}

func (o *object) WindowHandle() (provider.WindowHandle, error) {
	if err := o.check("window_handle"); err != nil {
		return 0, err
	}
	return provider.WindowHandle(o.e.spec.Window), nil
}

func (o *object) UniqueID() (int64, error) {
	if err := o.check("unique_id"); err != nil {
		return 0, err
	}
	return o.e.spec.ID, nil
}

func (o *object) Role() (provider.Role, error) {
	if err := o.check("role"); err != nil {
		return 0, err
	}
	return o.e.role, nil
}

func (o *object) LegacyRole() (provider.RoleValue, error) {
	if err := o.check("legacy_role"); err != nil {
		return provider.RoleValue{}, err
	}
	return o.e.legacy, nil
}

func (o *object) States() (provider.State, error) {
	if err := o.check("states"); err != nil {
		return 0, err
	}
	return o.e.states, nil
}

func (o *object) ExtendedStates() (provider.ExtState, error) {
	if err := o.check("ext_states"); err != nil {
		return 0, err
	}
	return o.e.extStates, nil
}

func (o *object) optional(query string, v *string) (string, error) {
	if err := o.check(query); err != nil {
		return "", err
	}
	if v == nil {
		return "", o.unsupported(query)
	}
	return *v, nil
}

func (o *object) KeyboardShortcut() (string, error) {
	return o.optional("keyboard_shortcut", o.e.spec.KeyboardShortcut)
}

func (o *object) Attributes() (string, error) {
	if err := o.check("attributes"); err != nil {
		return "", err
	}
	return o.e.attributes, nil
}

func (o *object) DefaultAction() (string, error) {
	return o.optional("default_action", o.e.spec.DefaultAction)
}

func (o *object) Name() (string, error) {
	return o.optional("name", o.e.spec.Name)
}

func (o *object) Description() (string, error) {
	return o.optional("description", o.e.spec.Description)
}

func (o *object) Value() (string, error) {
	return o.optional("value", o.e.spec.Value)
}

func (o *object) Locale() (provider.Locale, error) {
	if err := o.check("locale"); err != nil {
		return provider.Locale{}, err
	}
	l := o.e.spec.Locale
	if l == nil {
		return provider.Locale{}, o.unsupported("locale")
	}
	return provider.Locale{Language: l.Language, Country: l.Country}, nil
}

func (o *object) Location() (provider.Rect, error) {
	if err := o.check("location"); err != nil {
		return provider.Rect{}, err
	}
	b := o.e.spec.Bounds
	if b == nil {
		return provider.Rect{Width: 1, Height: 1}, nil
	}
	return provider.Rect{Left: b.Left, Top: b.Top, Width: b.Width, Height: b.Height}, nil
}

func (o *object) ChildCount() (int, error) {
	if err := o.check("child_count"); err != nil {
		return 0, err
	}
	if o.e.spec.ChildCount != nil {
		return *o.e.spec.ChildCount, nil
	}
	return len(o.e.spec.Children), nil
}

func (o *object) Children() ([]provider.Object, error) {
	if err := o.check("children"); err != nil {
		return nil, err
	}
	return o.resolve(o.e.spec.Children), nil
}

func (o *object) Text() (provider.Text, error) {
	if err := o.check("text"); err != nil {
		return nil, err
	}
	if o.e.spec.Text == nil {
		return nil, o.unsupported("text")
	}
	return &text{handle: o.p.newHandle(o.e)}, nil
}

func (o *object) Hypertext() (provider.Hypertext, error) {
	if err := o.check("hypertext"); err != nil {
		return nil, err
	}
	if o.e.spec.Text == nil {
		return nil, o.unsupported("hypertext")
	}
	return &hypertext{handle: o.p.newHandle(o.e), owner: o}, nil
}

func (o *object) table(query, shape string) (*table, error) {
	if err := o.check(query); err != nil {
		return nil, err
	}
	spec := o.e.spec.Table
	if spec == nil || spec.Shape != shape {
		return nil, o.unsupported(query)
	}
	return &table{handle: o.p.newHandle(o.e), spec: spec}, nil
}

func (o *object) Table() (provider.Table, error) {
	t, err := o.table("table", "legacy")
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (o *object) Table2() (provider.Table2, error) {
	t, err := o.table("table2", "modern")
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (o *object) TableCell() (provider.TableCell, error) {
	if err := o.check("table_cell"); err != nil {
		return nil, err
	}
	if o.e.spec.Cell == nil {
		return nil, o.unsupported("table_cell")
	}
	return &cell{handle: o.p.newHandle(o.e), owner: o}, nil
}

func (o *object) Application() (provider.Application, error) {
	if err := o.check("application"); err != nil {
		return nil, err
	}
	if o.t.doc.Toolkit.Name == "" {
		return nil, o.unsupported("application")
	}
	return &application{handle: o.p.newHandle(o.e), toolkit: o.t.doc.Toolkit}, nil
}

func (o *object) NavigateNodeChildOf() (provider.Object, error) {
	if err := o.check("node_child_of"); err != nil {
		return nil, err
	}
	target := o.e.spec.NodeChildOf
	if target == nil {
		return nil, o.unsupported("node_child_of")
	}
	e, ok := o.t.objects[*target]
	if !ok {
		return nil, fmt.Errorf("node_child_of %d: %w", *target, provider.ErrObjectNotFound)
	}
	return o.p.object(o.t, e), nil
}

type text struct {
	handle
}

func (t *text) Content() (string, error) {
	if err := t.check("content"); err != nil {
		return "", err
	}
	return string(t.e.text), nil
}

// AttributeRun returns the declared run containing offset. Offsets not
// covered by any run belong to an attribute-less gap run that extends to
// the next declared run or the end of the text.
func (t *text) AttributeRun(offset int) (provider.AttributeRun, error) {
	if err := t.check("runs"); err != nil {
		return provider.AttributeRun{}, err
	}
	n := len(t.e.text)
	if offset < 0 || offset >= n {
		return provider.AttributeRun{}, fmt.Errorf("offset %d of %d: %w", offset, n, provider.ErrCallFailed)
	}
	end := n
	for _, r := range t.e.spec.Runs {
		if offset >= r.Start && offset < r.End {
			return provider.AttributeRun{
				Start:      r.Start,
				End:        r.End,
				Attributes: provider.FormatAttributes(r.Attributes),
			}, nil
		}
		if r.Start > offset && r.Start < end {
			end = r.Start
		}
	}
	return provider.AttributeRun{Start: offset, End: end}, nil
}

type hypertext struct {
	handle
	owner *object
}

func (h *hypertext) HyperlinkIndex(offset int) (int, error) {
	if err := h.check("hyperlink_index"); err != nil {
		return 0, err
	}
	runes := h.e.text
	if offset < 0 || offset >= len(runes) || runes[offset] != provider.EmbeddedObjectChar {
		return 0, fmt.Errorf("offset %d: %w", offset, provider.ErrNotSupported)
	}
	index := 0
	for _, r := range runes[:offset] {
		if r == provider.EmbeddedObjectChar {
			index++
		}
	}
	return index, nil
}

func (h *hypertext) Hyperlink(index int) (provider.Object, error) {
	if err := h.check("hyperlink"); err != nil {
		return nil, err
	}
	links := h.e.spec.Hyperlinks
	if index < 0 || index >= len(links) {
		return nil, fmt.Errorf("hyperlink %d: %w", index, provider.ErrObjectNotFound)
	}
	e, ok := h.owner.t.objects[links[index]]
	if !ok {
		return nil, fmt.Errorf("hyperlink %d: %w", index, provider.ErrObjectNotFound)
	}
	return h.p.object(h.owner.t, e), nil
}

type table struct {
	handle
	spec *Table
}

func (t *table) RowCount() (int, error) {
	if err := t.check("row_count"); err != nil {
		return 0, err
	}
	return t.spec.Rows, nil
}

func (t *table) ColumnCount() (int, error) {
	if err := t.check("column_count"); err != nil {
		return 0, err
	}
	return t.spec.Columns, nil
}

func (t *table) CellExtentsAt(index int) (provider.CellExtents, error) {
	if err := t.check("cell_extents"); err != nil {
		return provider.CellExtents{}, err
	}
	ext, ok := t.spec.Cells[index]
	if !ok {
		return provider.CellExtents{}, fmt.Errorf("cell index %d: %w", index, provider.ErrObjectNotFound)
	}
	return toExtents(ext), nil
}

func toExtents(e Extents) provider.CellExtents {
	out := provider.CellExtents{Row: e.Row, Column: e.Column, RowSpan: e.RowSpan, ColumnSpan: e.ColumnSpan}
	if out.RowSpan < 1 {
		out.RowSpan = 1
	}
	if out.ColumnSpan < 1 {
		out.ColumnSpan = 1
	}
	return out
}

type cell struct {
	handle
	owner *object
}

func (c *cell) Extents() (provider.CellExtents, error) {
	if err := c.check("extents"); err != nil {
		return provider.CellExtents{}, err
	}
	return toExtents(c.e.spec.Cell.Extents), nil
}

func (c *cell) ColumnHeaderCells() ([]provider.Object, error) {
	if err := c.check("column_headers"); err != nil {
		return nil, err
	}
	return c.owner.resolve(c.e.spec.Cell.ColumnHeaders), nil
}

func (c *cell) RowHeaderCells() ([]provider.Object, error) {
	if err := c.check("row_headers"); err != nil {
		return nil, err
	}
	return c.owner.resolve(c.e.spec.Cell.RowHeaders), nil
}

type application struct {
	handle
	toolkit Toolkit
}

func (a *application) ToolkitName() (string, error) {
	if err := a.check("toolkit_name"); err != nil {
		return "", err
	}
	return a.toolkit.Name, nil
}

func (a *application) ToolkitVersion() (string, error) {
	if err := a.check("toolkit_version"); err != nil {
		return "", err
	}
	return a.toolkit.Version, nil
}
