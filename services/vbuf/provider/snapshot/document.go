// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package snapshot implements the provider contract over a recorded
// accessibility tree described in YAML.
//
// A snapshot document lists host windows and accessible objects. Object
// ids are unique across the whole document; children, hyperlinks, header
// cells and the node-child-of relation refer to objects by id, so cycles
// and self references can be expressed directly.
//
// # Example
//
//	toolkit: {name: Gecko, version: "52.0"}
//	windows:
//	  - {handle: 100, class: MozillaUIWindowClass}
//	  - {handle: 101, class: MozillaWindowClass, parent: 100}
//	objects:
//	  - {id: -1, window: 101, role: document, children: [-2]}
//	  - {id: -2, window: 101, role: paragraph, text: "Hello"}
//
// Every query listed in an object's "fail" list returns an error, which is
// how tests exercise unreliable providers.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/vbuf/services/vbuf/provider"
)

// MaxDocumentSize is the largest snapshot file Load accepts (8MB).
const MaxDocumentSize = 8 * 1024 * 1024

// Sentinel errors for snapshot documents.
var (
	// ErrDuplicateObject is returned when two objects share an id.
	ErrDuplicateObject = errors.New("duplicate object id")

	// ErrDocumentTooLarge is returned when a snapshot file exceeds
	// MaxDocumentSize.
	ErrDocumentTooLarge = errors.New("snapshot document too large")
)

// Document is a parsed snapshot.
type Document struct {
	Toolkit Toolkit  `yaml:"toolkit"`
	Root    RootSpec `yaml:"root"`
	Windows []Window `yaml:"windows"`
	Objects []Object `yaml:"objects"`
}

// Toolkit describes the application that produced the tree.
type Toolkit struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// RootSpec names the document root. When omitted the first object is the
// root.
type RootSpec struct {
	Window int64 `yaml:"window"`
	ID     int64 `yaml:"id"`
}

// Window is one host window.
type Window struct {
	Handle int64  `yaml:"handle"`
	Class  string `yaml:"class"`
	Parent int64  `yaml:"parent"`
}

// Bounds is an object's bounding box.
type Bounds struct {
	Left   int `yaml:"left"`
	Top    int `yaml:"top"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Locale is an object's language.
type Locale struct {
	Language string `yaml:"language"`
	Country  string `yaml:"country"`
}

// Run is one text attribute run.
type Run struct {
	Start      int               `yaml:"start"`
	End        int               `yaml:"end"`
	Attributes map[string]string `yaml:"attributes"`
}

// Extents is a cell position, 0-based.
type Extents struct {
	Row        int `yaml:"row"`
	Column     int `yaml:"column"`
	RowSpan    int `yaml:"row_span"`
	ColumnSpan int `yaml:"column_span"`
}

// Table is the table capability of an object.
type Table struct {
	// Shape is "legacy" or "modern".
	Shape   string `yaml:"shape"`
	Rows    int    `yaml:"rows"`
	Columns int    `yaml:"columns"`

	// Cells maps a legacy cell index to its extents.
	Cells map[int]Extents `yaml:"cells"`
}

// Cell is the modern cell capability of an object.
type Cell struct {
	Extents       `yaml:",inline"`
	ColumnHeaders []int64 `yaml:"column_headers"`
	RowHeaders    []int64 `yaml:"row_headers"`
}

// Object is one accessible object.
//
// Pointer fields distinguish "absent" (nil, the query fails) from
// "present but empty".
type Object struct {
	ID     int64 `yaml:"id"`
	Window int64 `yaml:"window"`

	// Role is a role name or number. Empty means unknown.
	Role string `yaml:"role"`

	// LegacyRole overrides the legacy numeric role.
	LegacyRole string `yaml:"legacy_role"`

	// LegacyRoleName makes the legacy role a free-form string.
	LegacyRoleName string `yaml:"legacy_role_name"`

	States    []string `yaml:"states"`
	ExtStates []string `yaml:"ext_states"`

	Name             *string `yaml:"name"`
	Description      *string `yaml:"description"`
	Value            *string `yaml:"value"`
	DefaultAction    *string `yaml:"default_action"`
	KeyboardShortcut *string `yaml:"keyboard_shortcut"`

	Attributes map[string]string `yaml:"attributes"`
	Locale     *Locale           `yaml:"locale"`

	// Bounds defaults to a 1x1 box at the origin.
	Bounds *Bounds `yaml:"bounds"`

	Children []int64 `yaml:"children"`

	// ChildCount overrides the reported child count.
	ChildCount *int `yaml:"child_count"`

	Text       *string `yaml:"text"`
	Runs       []Run   `yaml:"runs"`
	Hyperlinks []int64 `yaml:"hyperlinks"`

	Table *Table `yaml:"table"`
	Cell  *Cell  `yaml:"cell"`

	NodeChildOf *int64 `yaml:"node_child_of"`

	// Fail lists queries that return an error.
	Fail []string `yaml:"fail"`
}

// Parse decodes a YAML snapshot.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &doc, nil
}

// Load reads and decodes a YAML snapshot file.
func Load(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}
	if info.Size() > MaxDocumentSize {
		return nil, fmt.Errorf("%s: %w", path, ErrDocumentTooLarge)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Parse(data)
}

var stateNames = map[string]provider.State{
	"unavailable": provider.StateUnavailable,
	"selected":    provider.StateSelected,
	"focused":     provider.StateFocused,
	"checked":     provider.StateChecked,
	"readonly":    provider.StateReadOnly,
	"invisible":   provider.StateInvisible,
	"focusable":   provider.StateFocusable,
	"linked":      provider.StateLinked,
}

var extStateNames = map[string]provider.ExtState{
	"active":    provider.ExtStateActive,
	"editable":  provider.ExtStateEditable,
	"multiline": provider.ExtStateMultiLine,
	"required":  provider.ExtStateRequired,
}

// parseBits ORs together named or numeric flags.
func parseBits[T ~uint32](names []string, known map[string]T) (T, error) {
	var out T
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if bit, ok := known[key]; ok {
			out |= bit
			continue
		}
		n, err := strconv.ParseUint(key, 0, 32)
		if err != nil {
			return 0, fmt.Errorf("unknown state %q", name)
		}
		out |= T(n)
	}
	return out, nil
}

// entry is an Object with its names resolved.
type entry struct {
	spec       *Object
	role       provider.Role
	legacy     provider.RoleValue
	states     provider.State
	extStates  provider.ExtState
	attributes string
	text       []rune
	fail       map[string]bool
}

func compile(o *Object) (*entry, error) {
	e := &entry{spec: o, fail: make(map[string]bool)}

	if o.Role != "" {
		role, err := provider.ParseRole(o.Role)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", o.ID, err)
		}
		e.role = role
	}

	e.legacy = provider.RoleValue{Code: e.role}
	switch {
	case o.LegacyRoleName != "":
		e.legacy = provider.RoleValue{Name: o.LegacyRoleName}
	case o.LegacyRole != "":
		role, err := provider.ParseRole(o.LegacyRole)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", o.ID, err)
		}
		e.legacy = provider.RoleValue{Code: role}
	}

	var err error
	if e.states, err = parseBits(o.States, stateNames); err != nil {
		return nil, fmt.Errorf("object %d: %w", o.ID, err)
	}
	if e.extStates, err = parseBits(o.ExtStates, extStateNames); err != nil {
		return nil, fmt.Errorf("object %d: %w", o.ID, err)
	}

	if o.Attributes != nil {
		e.attributes = provider.FormatAttributes(o.Attributes)
	}
	if o.Text != nil {
		e.text = []rune(*o.Text)
	}
	for _, f := range o.Fail {
		e.fail[strings.ToLower(strings.TrimSpace(f))] = true
	}
	return e, nil
}

func (e *entry) failing(query string) error {
	if e.fail[query] {
		return fmt.Errorf("%s on object %d: %w", query, e.spec.ID, provider.ErrCallFailed)
	}
	return nil
}

// Str returns a pointer to s, for building documents in Go.
func Str(s string) *string { return &s }

// Int returns a pointer to n, for building documents in Go.
func Int(n int) *int { return &n }

// ID returns a pointer to id, for building documents in Go.
func ID(id int64) *int64 { return &id }
