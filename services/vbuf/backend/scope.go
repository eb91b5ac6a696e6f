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

import "github.com/AleutianAI/vbuf/services/vbuf/provider"

// scope collects provider handles acquired during one node visit and
// releases them together, most recent first.
type scope struct {
	held []provider.Releaser
}

// hold registers r for release. Nil interfaces are ignored.
func (s *scope) hold(r provider.Releaser) {
	if r != nil {
		s.held = append(s.held, r)
	}
}

// release releases every held handle. Safe to call more than once.
func (s *scope) release() {
	for i := len(s.held) - 1; i >= 0; i-- {
		s.held[i].Release()
	}
	s.held = nil
}
