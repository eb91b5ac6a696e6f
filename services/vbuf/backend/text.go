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
	"log/slog"

	"github.com/AleutianAI/vbuf/services/vbuf/provider"
)

// renderText segments content into attributed text leaves and embedded
// child subtrees.
//
// Description:
//
//	Scans content once. A chunk ends at the end of the text, at the end
//	of the current attribute run, or at an embedded-object marker. Each
//	non-empty chunk becomes a leaf carrying the run's attributes and the
//	object's text-align attribute. A marker is replaced by the rendered
//	hyperlink object it stands for; the marker itself is never emitted.
//	A failing run query ends run tracking for the rest of the text.
func (v *visit) renderText(txt provider.Text, hypertext provider.Hypertext, content []rune) {
	n := len(content)
	chunkStart := 0
	runEnd := 0
	var runAttrs map[string]string

	for i := 0; ; i++ {
		if i != chunkStart && (i == n || i == runEnd || content[i] == provider.EmbeddedObjectChar) {
			v.addChunk(string(content[chunkStart:i]), runAttrs)
		}
		if i == n {
			break
		}

		if i == runEnd {
			chunkStart = i
			runAttrs = nil
			run, err := txt.AttributeRun(runEnd)
			if err != nil || run.End <= i {
				runEnd = n
			} else {
				runEnd = run.End
				runAttrs = provider.ParseAttributes(run.Attributes)
			}
		}

		if content[i] == provider.EmbeddedObjectChar {
			chunkStart = i + 1
			if hypertext != nil {
				v.renderEmbedded(hypertext, i)
			}
		}
	}
}

// addChunk emits one text leaf with run attributes in key order followed
// by the object's text-align.
func (v *visit) addChunk(chunk string, runAttrs map[string]string) {
	leaf := v.addText(chunk, false)
	if leaf == nil {
		return
	}
	for _, key := range sortedKeys(runAttrs) {
		leaf.AddAttribute(key, runAttrs[key])
	}
	if align, ok := v.attrs[AttrTextAlign]; ok {
		leaf.AddAttribute(AttrTextAlign, align)
	}
}

// renderEmbedded renders the object behind the marker at offset.
func (v *visit) renderEmbedded(hypertext provider.Hypertext, offset int) {
	index, err := hypertext.HyperlinkIndex(offset)
	if err != nil {
		return
	}
	child, err := hypertext.Hyperlink(index)
	if err != nil {
		v.r.logger.Debug("render: hyperlink unavailable",
			slog.Int64("id", v.id), slog.Int("index", index))
		return
	}

	if v.isDecorativeLinkGraphic(child) {
		child.Release()
		return
	}
	v.renderChild(child)
}

// isDecorativeLinkGraphic reports whether child is a nameless graphic
// inside a named link that does nothing on its own. Such graphics add
// nothing the link name does not already say.
func (v *visit) isDecorativeLinkGraphic(child provider.Object) bool {
	if v.role != provider.RoleLink || !v.hasName || provider.IsWhitespace(v.name) {
		return false
	}
	if role, err := child.Role(); err != nil || role != provider.RoleGraphic {
		return false
	}
	if name, err := child.Name(); err == nil && name != "" {
		return false
	}
	action, _ := child.DefaultAction()
	return action != "click"
}
