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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAttributes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"single", "display:block;", map[string]string{"display": "block"}},
		{"no trailing separator", "display:inline", map[string]string{"display": "inline"}},
		{
			"multiple",
			"display:inline-block;tag:span;formatting:block;",
			map[string]string{"display": "inline-block", "tag": "span", "formatting": "block"},
		},
		{"escaped separators", `src:http\://x/a\;b;`, map[string]string{"src": "http://x/a;b"}},
		{"empty value", "layout-guess:;", map[string]string{"layout-guess": ""}},
		{"missing colon skipped", "junk;tag:p;", map[string]string{"tag": "p"}},
		{"later key wins", "a:1;a:2;", map[string]string{"a": "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAttributes(tt.in))
		})
	}
}

func TestFormatAttributes_ParsesBack(t *testing.T) {
	attrs := map[string]string{
		"src":        "http://example.com/a;b",
		"text-align": "center",
		"weird=key":  "x,y",
	}

	encoded := FormatAttributes(attrs)
	assert.Equal(t, `src:http\://example.com/a\;b;text-align:center;weird\=key:x\,y;`, encoded)
	assert.Equal(t, attrs, ParseAttributes(encoded))
}

func TestIsWhitespace(t *testing.T) {
	assert.True(t, IsWhitespace(""))
	assert.True(t, IsWhitespace(" \t\n"))
	assert.True(t, IsWhitespace(" "))
	assert.False(t, IsWhitespace(" a "))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("link")
	require.NoError(t, err)
	assert.Equal(t, RoleLink, role)

	role, err = ParseRole("0x418")
	require.NoError(t, err)
	assert.Equal(t, RoleInternalFrame, role)

	role, err = ParseRole(" Cell ")
	require.NoError(t, err)
	assert.Equal(t, RoleCell, role)

	_, err = ParseRole("no-such-role")
	assert.Error(t, err)
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "section", RoleSection.String())
	assert.Equal(t, "0x999", Role(0x999).String())
}

func TestLocale_Tag(t *testing.T) {
	assert.Equal(t, "", Locale{Country: "US"}.Tag())
	assert.Equal(t, "en", Locale{Language: "en"}.Tag())
	assert.Equal(t, "en-US", Locale{Language: "en", Country: "US", Variant: "x"}.Tag())
}

func TestEventKind(t *testing.T) {
	assert.True(t, EventFocus.Forced())
	assert.True(t, EventAlert.Forced())
	assert.False(t, EventStateChange.Forced())
	assert.Equal(t, "state_change", EventStateChange.String())
	assert.Equal(t, "unknown", EventKind(99).String())
}

func TestState_Has(t *testing.T) {
	s := StateReadOnly | StateLinked
	assert.True(t, s.Has(StateReadOnly))
	assert.False(t, s.Has(StateFocusable))
	assert.True(t, (ExtStateEditable | ExtStateMultiLine).Has(ExtStateMultiLine))
}
