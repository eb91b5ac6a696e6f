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
	"strings"

	"github.com/AleutianAI/vbuf/services/vbuf/provider"
)

// maxWindowClimb bounds the ancestor walk in findRealWindow.
const maxWindowClimb = 64

// WindowPolicy describes how object windows are normalised to the real
// document window.
type WindowPolicy struct {
	// InternalClass is the class of toolkit-internal child windows that
	// are climbed past.
	InternalClass string

	// FamilyPrefix is the class prefix the climbed-to window must carry
	// for the climb to be accepted.
	FamilyPrefix string
}

// DefaultWindowPolicy returns the Gecko window policy.
func DefaultWindowPolicy() WindowPolicy {
	return WindowPolicy{
		InternalClass: "MozillaWindowClass",
		FamilyPrefix:  "Mozilla",
	}
}

// findRealWindow normalises w to the document window that owns it.
//
// Description:
//
//	Climbs ancestors while their class is the internal class. The
//	window reached replaces w only when its class carries the family
//	prefix. A window whose class cannot be read is returned unchanged.
//
// Outputs:
//
//	provider.WindowHandle - The document window, or 0 when w is not a
//	window.
func findRealWindow(ws provider.WindowSystem, policy WindowPolicy, w provider.WindowHandle) provider.WindowHandle {
	if w == 0 || !ws.IsWindow(w) {
		return 0
	}

	candidate := w
	for i := 0; i < maxWindowClimb && candidate != 0; i++ {
		class, err := ws.ClassName(candidate)
		if err != nil {
			return w
		}
		if class != policy.InternalClass {
			break
		}
		candidate = ws.Parent(candidate)
	}

	if candidate == 0 {
		return w
	}
	if class, err := ws.ClassName(candidate); err == nil && strings.HasPrefix(class, policy.FamilyPrefix) {
		return candidate
	}
	return w
}
