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
	"sync"
	"time"

	"github.com/AleutianAI/vbuf/services/vbuf/storage"
)

// DirtyEntry contains metadata about a dirty subtree.
type DirtyEntry struct {
	// Node is the root of the subtree to re-render.
	Node *storage.ControlFieldNode

	// MarkedAt is when the node was first marked dirty.
	MarkedAt time.Time

	// Source names what marked the node ("reorder", "name_change", ...).
	Source string
}

// DirtyTracker collects subtrees that need re-rendering.
//
// Description:
//
//	Written from the notification context and drained by the render
//	context at the start of each pass. A forced mark supersedes every
//	subtree mark: the next pass re-renders the whole document.
//
// Thread Safety:
//
//	All methods are safe for concurrent use.
type DirtyTracker struct {
	mu      sync.Mutex
	entries map[*storage.ControlFieldNode]DirtyEntry
	order   []*storage.ControlFieldNode
	forced  bool
}

// NewDirtyTracker creates an empty tracker.
func NewDirtyTracker() *DirtyTracker {
	return &DirtyTracker{
		entries: make(map[*storage.ControlFieldNode]DirtyEntry),
	}
}

// MarkDirty records node for re-rendering. Marking a node twice keeps the
// first mark.
func (d *DirtyTracker) MarkDirty(node *storage.ControlFieldNode, source string) {
	if node == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.entries[node]; ok {
		return
	}
	d.entries[node] = DirtyEntry{Node: node, MarkedAt: time.Now(), Source: source}
	d.order = append(d.order, node)
}

// MarkForced requests a full re-render.
func (d *DirtyTracker) MarkForced() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.forced = true
}

// HasDirty returns true if a pass has work to do.
func (d *DirtyTracker) HasDirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.forced || len(d.order) > 0
}

// Count returns the number of dirty subtrees.
func (d *DirtyTracker) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}

// Drain returns and clears the pending work. Entries come back in the
// order they were first marked.
func (d *DirtyTracker) Drain() (forced bool, entries []DirtyEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	forced = d.forced
	entries = make([]DirtyEntry, 0, len(d.order))
	for _, node := range d.order {
		entries = append(entries, d.entries[node])
	}

	d.forced = false
	d.order = nil
	d.entries = make(map[*storage.ControlFieldNode]DirtyEntry)
	return forced, entries
}
