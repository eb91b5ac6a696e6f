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
	"net/url"
	"strings"
)

// nameForURL derives a short readable label from a URL.
//
// Opaque URLs (mailto:, javascript:) yield the part after the scheme.
// Hierarchical URLs yield the last non-empty path segment, unescaped and
// without query or fragment, falling back to the host. Anything that does
// not parse is returned unchanged.
func nameForURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	if u.Opaque != "" {
		return u.Opaque
	}

	path := strings.TrimRight(u.Path, "/")
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		path = path[i+1:]
	}
	if path != "" {
		return path
	}
	if u.Host != "" {
		return u.Host
	}
	return raw
}
