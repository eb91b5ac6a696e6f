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

// objectAttrSource is the provider object attribute holding an image URL.
const objectAttrSource = "src"

// renderFallback provides content for an object that rendered no text and
// no children.
func (v *visit) renderFallback() {
	switch {
	case v.isActionable():
		v.renderActionableFallback()
	case v.role == provider.RoleGraphic:
		v.renderGraphicFallback()
	default:
		if v.value != "" {
			v.addText(v.value, true)
		} else if v.role != provider.RoleCell && v.role != provider.RoleSection {
			// Cells are filled after content rendering.
			v.addText(" ", true)
		}
	}
}

// isActionable reports whether the object's name is its content.
func (v *visit) isActionable() bool {
	switch v.role {
	case provider.RoleLink, provider.RolePushButton, provider.RoleToggleButton, provider.RoleMenuItem:
		return true
	case provider.RoleText:
		return v.states.Has(provider.StateReadOnly) && !v.states.Has(provider.StateFocusable)
	}
	return false
}

func (v *visit) renderActionableFallback() {
	switch {
	case v.hasName && v.name != "":
		v.addText(v.name, true)
	case v.role == provider.RoleLink && v.value != "":
		v.addText(nameForURL(v.value), false)
	case v.value != "":
		v.addText(v.value, true)
	default:
		v.addText(" ", true)
	}
}

// renderGraphicFallback renders a graphic's label. An empty name is a
// deliberate "no label" unless the graphic is clickable, in which case
// the empty name is kept and nothing is rendered.
func (v *visit) renderGraphicFallback() {
	clickable := v.defAction == "click"
	inLink := v.states.Has(provider.StateLinked)
	src, hasSrc := v.attrs[objectAttrSource]

	switch {
	case v.hasName && (v.name != "" || clickable):
		v.addText(v.name, true)
	case v.value != "" && !clickable && inLink:
		v.addText(nameForURL(v.value), false)
	case hasSrc && (clickable || inLink):
		v.addText(nameForURL(src), false)
	}
}
