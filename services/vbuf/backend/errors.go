// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package backend builds and maintains document buffers from a remote
// accessibility tree.
//
// A Backend owns one storage.Buffer for one document root. Its render
// context walks the provider graph with a Renderer, which decides node
// shape, reconstructs tables and segments hypertext. Change notifications
// arrive on the host's notification context, where a Dispatcher maps them
// to buffer nodes of the backends in a Registry and marks them dirty; the
// render context re-renders dirty subtrees on its next pass.
//
// # Error Model
//
// Provider query failures are never fatal. A failed query is treated as
// an absent value and rendering continues with a default. A structural
// anomaly (duplicate identity, unresolvable window) drops only the node
// being built. Notifications that cannot be mapped to a node are dropped.
//
// # Thread Safety
//
// Renderer is single-goroutine. Backend.Update serialises render passes.
// Backend.InvalidateSubtree, Backend.ForceUpdate, Registry and Dispatcher
// are safe for concurrent use.
package backend

import "errors"

// Sentinel errors for backend operations.
var (
	// ErrRootUnavailable is returned when the document root object cannot
	// be resolved for a full render.
	ErrRootUnavailable = errors.New("document root unavailable")

	// ErrAlreadyRegistered is returned when registering a backend twice.
	ErrAlreadyRegistered = errors.New("backend already registered")

	// ErrNotRegistered is returned when unregistering an unknown backend.
	ErrNotRegistered = errors.New("backend not registered")
)
