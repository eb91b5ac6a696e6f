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
	"fmt"
	"strconv"
	"strings"
)

// Role is a numeric accessibility role.
//
// Values below 0x400 are legacy system roles; values from 0x400 up are
// extended roles.
type Role int64

// Legacy system roles.
const (
	RoleMenuItem     Role = 0x0c
	RoleDocument     Role = 0x0f
	RoleSeparator    Role = 0x15
	RoleTable        Role = 0x18
	RoleColumnHeader Role = 0x19
	RoleRowHeader    Role = 0x1a
	RoleRow          Role = 0x1c
	RoleCell         Role = 0x1d
	RoleLink         Role = 0x1e
	RoleList         Role = 0x21
	RoleListItem     Role = 0x22
	RoleGraphic      Role = 0x28
	RoleStaticText   Role = 0x29
	RoleText         Role = 0x2a
	RolePushButton   Role = 0x2b
	RoleCheckButton  Role = 0x2c
	RoleRadioButton  Role = 0x2d
	RoleComboBox     Role = 0x2e
)

// Extended roles.
const (
	RoleUnknown        Role = 0
	RoleCaption        Role = 0x402
	RoleEmbeddedObject Role = 0x40a
	RoleForm           Role = 0x410
	RoleFrame          Role = 0x411
	RoleHeading        Role = 0x414
	RoleImageMap       Role = 0x416
	RoleInternalFrame  Role = 0x418
	RoleLabel          Role = 0x419
	RoleParagraph      Role = 0x41e
	RoleSection        Role = 0x424
	RoleToggleButton   Role = 0x42a
)

var roleNames = map[Role]string{
	RoleUnknown:        "unknown",
	RoleMenuItem:       "menuitem",
	RoleDocument:       "document",
	RoleSeparator:      "separator",
	RoleTable:          "table",
	RoleColumnHeader:   "columnheader",
	RoleRowHeader:      "rowheader",
	RoleRow:            "row",
	RoleCell:           "cell",
	RoleLink:           "link",
	RoleList:           "list",
	RoleListItem:       "listitem",
	RoleGraphic:        "graphic",
	RoleStaticText:     "statictext",
	RoleText:           "text",
	RolePushButton:     "pushbutton",
	RoleCheckButton:    "checkbutton",
	RoleRadioButton:    "radiobutton",
	RoleComboBox:       "combobox",
	RoleCaption:        "caption",
	RoleEmbeddedObject: "embeddedobject",
	RoleForm:           "form",
	RoleFrame:          "frame",
	RoleHeading:        "heading",
	RoleImageMap:       "imagemap",
	RoleInternalFrame:  "internalframe",
	RoleLabel:          "label",
	RoleParagraph:      "paragraph",
	RoleSection:        "section",
	RoleToggleButton:   "togglebutton",
}

// String returns the short role name, or the hex code for unnamed roles.
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("0x%x", int64(r))
}

// ParseRole accepts a role name ("link") or a decimal/hex number ("30", "0x1e").
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for role, name := range roleNames {
		if name == s {
			return role, nil
		}
	}
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return RoleUnknown, fmt.Errorf("unknown role %q: %w", s, err)
	}
	return Role(n), nil
}

// State is the legacy state bit-set.
type State uint32

// Legacy state bits used by the engine.
const (
	StateUnavailable State = 0x1
	StateSelected    State = 0x2
	StateFocused     State = 0x4
	StateChecked     State = 0x10
	StateReadOnly    State = 0x40
	StateInvisible   State = 0x8000
	StateFocusable   State = 0x100000
	StateLinked      State = 0x400000
)

// Has reports whether every bit of flag is set.
func (s State) Has(flag State) bool {
	return s&flag == flag
}

// ExtState is the extended state bit-set.
type ExtState uint32

// Extended state bits used by the engine.
const (
	ExtStateActive    ExtState = 0x1
	ExtStateEditable  ExtState = 0x8
	ExtStateMultiLine ExtState = 0x200
	ExtStateRequired  ExtState = 0x800
)

// Has reports whether every bit of flag is set.
func (s ExtState) Has(flag ExtState) bool {
	return s&flag == flag
}
