// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package provider

import "errors"

// Sentinel errors returned by providers.
var (
	// ErrNotSupported is returned when an object does not implement a
	// property or capability.
	ErrNotSupported = errors.New("not supported by object")

	// ErrCallFailed is returned when a query reached the provider but failed.
	ErrCallFailed = errors.New("provider call failed")

	// ErrObjectNotFound is returned when a window/child id pair does not
	// resolve to an object.
	ErrObjectNotFound = errors.New("object not found")

	// ErrReleased is returned when a released handle is used.
	ErrReleased = errors.New("handle already released")
)
