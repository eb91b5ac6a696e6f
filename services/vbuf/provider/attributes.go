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

import (
	"sort"
	"strings"
	"unicode"
)

// EmbeddedObjectChar marks where a child object is inlined in its
// parent's text.
const EmbeddedObjectChar = '\ufffc'

// ParseAttributes decodes a "key:value;key:value;" attribute string.
//
// Description:
//
//	Keys and values may contain ':', ';', ',' or '=' when escaped with a
//	backslash. Pairs without a ':' separator are skipped. A later
//	occurrence of a key overwrites an earlier one.
//
// Inputs:
//
//	s - The encoded attribute string. May be empty.
//
// Outputs:
//
//	map[string]string - Decoded attributes. Never nil.
func ParseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	var key, cur strings.Builder
	inValue := false
	escaped := false

	flush := func() {
		if inValue && key.Len() > 0 {
			attrs[key.String()] = cur.String()
		}
		key.Reset()
		cur.Reset()
		inValue = false
	}

	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ':' && !inValue:
			key.WriteString(cur.String())
			cur.Reset()
			inValue = true
		case r == ';':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return attrs
}

// FormatAttributes encodes attrs in the form read by ParseAttributes.
// Keys are written in sorted order.
func FormatAttributes(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(escapeAttribute(k))
		b.WriteByte(':')
		b.WriteString(escapeAttribute(attrs[k]))
		b.WriteByte(';')
	}
	return b.String()
}

func escapeAttribute(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\', ':', ';', ',', '=':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsWhitespace reports whether s consists only of whitespace. The empty
// string counts as whitespace.
func IsWhitespace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
