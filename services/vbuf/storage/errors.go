// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage provides the document buffer: a tree of control nodes
// and text leaves with an identity index.
//
// # Ownership Model
//
// The Buffer owns every node it creates. Callers hold node pointers only
// transiently; a node removed from the buffer is detached and
// IsNodeInBuffer reports false for it from then on.
//
// # Thread Safety
//
// Structure changes (adding, removing, clearing) and identity lookups are
// guarded by the buffer's lock, so lookups may run on another goroutine
// while a render pass is in progress. Node attributes and block flags are
// owned by the single goroutine that builds the buffer.
package storage

import "errors"

// Sentinel errors for buffer operations.
var (
	// ErrDuplicateIdentity is returned when a control node with the same
	// identity already exists in the buffer.
	ErrDuplicateIdentity = errors.New("duplicate node identity")

	// ErrNodeNotInBuffer is returned when a parent or sibling does not
	// belong to this buffer.
	ErrNodeNotInBuffer = errors.New("node not in buffer")

	// ErrNotAChild is returned when the previous sibling is not a child of
	// the given parent.
	ErrNotAChild = errors.New("previous node is not a child of parent")

	// ErrRootExists is returned when adding a second parentless node.
	ErrRootExists = errors.New("buffer already has a root node")

	// ErrNoParent is returned when a text leaf is added without a parent.
	ErrNoParent = errors.New("text node requires a parent")

	// ErrEmptyText is returned when a text leaf would hold no text.
	ErrEmptyText = errors.New("text node requires text")
)
