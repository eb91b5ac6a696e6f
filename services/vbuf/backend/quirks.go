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
	"strconv"
	"strings"

	"github.com/AleutianAI/vbuf/services/vbuf/provider"
)

// DescriptionPrefix marks the real description inside an encoded
// description string.
const DescriptionPrefix = "Description: "

// lastUnsafeHeaderRelease is the last 1.9.2.x release on which header cell
// queries are unsafe.
const lastUnsafeHeaderRelease = 10

// Quirks are per-document behavior flags derived from the toolkit version.
type Quirks struct {
	// DisableTableHeaders suppresses header cell queries.
	DisableTableHeaders bool

	// EncodedDescription keeps only the description text that follows
	// DescriptionPrefix and drops unprefixed descriptions.
	EncodedDescription bool
}

// DetectQuirks derives the quirks for the document containing obj. Any
// failing query yields the default (zero) flags.
func DetectQuirks(obj provider.Object) Quirks {
	app, err := obj.Application()
	if err != nil {
		return Quirks{}
	}
	defer app.Release()

	name, err := app.ToolkitName()
	if err != nil {
		return Quirks{}
	}
	version, err := app.ToolkitVersion()
	if err != nil {
		return Quirks{}
	}
	return QuirksFor(name, version)
}

// QuirksFor returns the quirks for a toolkit name and version.
//
// Gecko 1.x encodes descriptions, and Gecko 1.9.2.0 through 1.9.2.10
// additionally must not be asked for header cells. Only the leading
// digits of the fourth version component are considered; none counts as 0.
func QuirksFor(name, version string) Quirks {
	var q Quirks
	if name != "Gecko" || !strings.HasPrefix(version, "1.") {
		return q
	}
	q.EncodedDescription = true

	if rest, ok := strings.CutPrefix(version, "1.9.2."); ok {
		release := 0
		if digits := leadingDigits(rest); digits != "" {
			n, err := strconv.Atoi(digits)
			if err != nil {
				// Too many digits to be a small release number.
				n = lastUnsafeHeaderRelease + 1
			}
			release = n
		}
		q.DisableTableHeaders = release <= lastUnsafeHeaderRelease
	}
	return q
}

// leadingDigits returns the run of ASCII digits s starts with.
func leadingDigits(s string) string {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[:end]
}

// decodeDescription applies the description quirk. The second result is
// false when the description should be dropped.
func (q Quirks) decodeDescription(desc string) (string, bool) {
	if !q.EncodedDescription {
		return desc, true
	}
	return strings.CutPrefix(desc, DescriptionPrefix)
}
