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
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/vbuf/services/vbuf/provider"
	"github.com/AleutianAI/vbuf/services/vbuf/storage"
)

const marker = "\ufffc"

func TestRender_Deterministic(t *testing.T) {
	body := `
objects:
  - id: -1
    window: 10
    role: document
    name: "Page"
    children: [-2, -3]
  - id: -2
    window: 10
    role: paragraph
    attributes: {tag: p, text-align: left}
    text: "AB` + marker + `CD"
    hyperlinks: [-4]
    runs:
      - {start: 0, end: 2, attributes: {font-weight: "700"}}
  - id: -3
    window: 10
    role: pushbutton
    states: [focusable]
  - id: -4
    window: 10
    role: link
    name: "go"
`
	first, _ := renderDoc(t, body)
	second, _ := renderDoc(t, body)
	assert.Equal(t, first.buffer.String(), second.buffer.String())
}

func TestRender_SelfReferenceTerminates(t *testing.T) {
	b, _ := renderDoc(t, `
objects:
  - id: -1
    window: 10
    role: document
    children: [-2]
  - id: -2
    window: 10
    role: section
    children: [-1, -2]
`)
	res, err := b.Update(t.Context())
	require.NoError(t, err)
	assert.Equal(t, PassNone, res.Kind)

	assert.Equal(t, 2, b.buffer.ControlNodeCount())
	section := nodeOf(t, b, -2)
	assert.Empty(t, section.Children())
}

func TestRender_SelfReferenceStats(t *testing.T) {
	p := newProvider(t, `
objects:
  - id: -1
    window: 10
    role: document
    children: [-2]
  - id: -2
    window: 10
    role: section
    children: [-1]
`)
	buf := storage.New()
	r := NewRenderer(buf, p, RendererOptions{Logger: discardLogger()})

	root, err := p.ObjectFromEvent(10, -1)
	require.NoError(t, err)
	node := r.Render(root, nil, nil, TableContext{})
	root.Release()

	require.NotNil(t, node)
	assert.Equal(t, RenderStats{Controls: 2, Duplicates: 1}, r.Stats())
	assert.Zero(t, p.Outstanding())
}

func TestRender_Attributes(t *testing.T) {
	b, _ := renderDoc(t, `
objects:
  - id: -1
    window: 10
    role: document
    children: [-2, -3, -4, -5]
  - id: -2
    window: 10
    role: paragraph
    states: [focusable, readonly]
    ext_states: [required]
    attributes: {display: inline, tag: span}
    default_action: "jump"
    keyboard_shortcut: "Alt+J"
    name: "label"
    text: "x"
  - id: -3
    window: 10
    legacy_role_name: "custom"
    text: "y"
  - id: -4
    window: 10
    legacy_role: heading
    text: "z"
  - id: -5
    window: 10
    role: link
    name: "ignored"
`)

	p := nodeOf(t, b, -2)
	assert.Equal(t, strconv.Itoa(int(provider.RoleParagraph)), attrOf(p, AttrRole))
	assert.Equal(t, "1", attrOf(p, legacyStatePrefix+strconv.Itoa(int(provider.StateFocusable))))
	assert.Equal(t, "1", attrOf(p, legacyStatePrefix+strconv.Itoa(int(provider.StateReadOnly))))
	assert.Equal(t, "1", attrOf(p, extendedStatePrefix+strconv.Itoa(int(provider.ExtStateRequired))))
	assert.Equal(t, "inline", attrOf(p, objectAttributeStart+"display"))
	assert.Equal(t, "span", attrOf(p, objectAttributeStart+"tag"))
	assert.Equal(t, "jump", attrOf(p, AttrDefaultAction))
	assert.Equal(t, "Alt+J", attrOf(p, AttrKeyboardShortcut))
	assert.Equal(t, "label", attrOf(p, AttrName))
	assert.False(t, p.IsBlock(), "display inline wins over role")

	custom := nodeOf(t, b, -3)
	assert.Equal(t, "custom", attrOf(custom, AttrRole))
	shortcut, ok := custom.Attribute(AttrKeyboardShortcut)
	assert.True(t, ok, "shortcut always written")
	assert.Empty(t, shortcut)
	_, ok = custom.Attribute(AttrName)
	assert.False(t, ok, "absent name is not written")

	heading := nodeOf(t, b, -4)
	assert.Equal(t, strconv.Itoa(int(provider.RoleHeading)), attrOf(heading, AttrRole))

	link := nodeOf(t, b, -5)
	_, ok = link.Attribute(AttrName)
	assert.False(t, ok, "links carry their name as content")
	assert.Equal(t, []string{"ignored"}, leafTexts(link))

	root := nodeOf(t, b, -1)
	assert.True(t, root.IsBlock())
}

func TestRender_SingleRunLeaf(t *testing.T) {
	b, _ := renderDoc(t, `
objects:
  - id: -1
    window: 10
    role: document
    children: [-2]
  - id: -2
    window: 10
    role: paragraph
    attributes: {text-align: center}
    locale: {language: en, country: US}
    text: "Hello"
`)
	para := nodeOf(t, b, -2)
	children := para.Children()
	require.Len(t, children, 1)

	leaf, ok := children[0].(*storage.TextFieldNode)
	require.True(t, ok)
	assert.Equal(t, "Hello", leaf.Text())
	assert.Equal(t, "center", attrOf(leaf, AttrTextAlign))
	_, ok = leaf.Attribute(AttrLanguage)
	assert.False(t, ok, "text chunks carry run attributes only")
}

func TestRender_EmbeddedObjectSplitsText(t *testing.T) {
	b, p := renderDoc(t, `
objects:
  - id: -1
    window: 10
    role: document
    children: [-2]
  - id: -2
    window: 10
    role: paragraph
    text: "AB`+marker+`CD"
    hyperlinks: [-4]
    runs:
      - {start: 0, end: 2, attributes: {font-weight: "700"}}
  - id: -4
    window: 10
    role: link
    name: "go"
`)
	para := nodeOf(t, b, -2)
	children := para.Children()
	require.Len(t, children, 3)

	ab, ok := children[0].(*storage.TextFieldNode)
	require.True(t, ok)
	assert.Equal(t, "AB", ab.Text())
	assert.Equal(t, "700", attrOf(ab, "font-weight"))

	link, ok := children[1].(*storage.ControlFieldNode)
	require.True(t, ok)
	assert.Equal(t, storage.Identity{DocHandle: 10, ID: -4}, link.Identity())
	assert.Equal(t, []string{"go"}, leafTexts(link))

	cd, ok := children[2].(*storage.TextFieldNode)
	require.True(t, ok)
	assert.Equal(t, "CD", cd.Text())
	_, ok = cd.Attribute("font-weight")
	assert.False(t, ok)

	assert.Equal(t, "ABgoCD", b.buffer.Text())
	assert.Zero(t, p.Outstanding())
}

func TestRender_MarkerWithoutHyperlinkDropped(t *testing.T) {
	b, _ := renderDoc(t, `
objects:
  - id: -1
    window: 10
    role: document
    children: [-2]
  - id: -2
    window: 10
    role: paragraph
    text: "A`+marker+marker+`B"
    hyperlinks: [-9]
`)
	assert.Equal(t, []string{"A", "B"}, leafTexts(nodeOf(t, b, -2)))
	assert.Equal(t, 2, b.buffer.ControlNodeCount())
}

func TestRender_DecorativeLinkGraphic(t *testing.T) {
	b, _ := renderDoc(t, `
objects:
  - id: -1
    window: 10
    role: document
    children: [-2, -5]
  - id: -2
    window: 10
    role: link
    name: "Home"
    text: "`+marker+`"
    hyperlinks: [-3]
  - id: -3
    window: 10
    role: graphic
    attributes: {src: "http://example.com/img/logo.png"}
  - id: -5
    window: 10
    role: link
    name: "Shop"
    text: "`+marker+`"
    hyperlinks: [-6]
  - id: -6
    window: 10
    role: graphic
    default_action: click
    attributes: {src: "http://example.com/img/cart.png"}
`)
	assert.Nil(t, b.ControlFieldNodeWithIdentifier(storage.Identity{DocHandle: 10, ID: -3}))
	assert.Empty(t, nodeOf(t, b, -2).Children())

	clickable := nodeOf(t, b, -6)
	assert.Equal(t, []string{"cart.png"}, leafTexts(clickable))
}

func TestRender_Fallbacks(t *testing.T) {
	b, _ := renderDoc(t, `
objects:
  - id: -1
    window: 10
    role: document
    children: [-2, -3, -4, -5, -6, -7, -8, -9]
  - id: -2
    window: 10
    role: link
    name: ""
    value: "http://example.com/docs/page.html"
    locale: {language: en, country: US}
  - id: -3
    window: 10
    role: pushbutton
  - id: -4
    window: 10
    role: text
    states: [readonly]
    value: "static"
    locale: {language: fr}
  - id: -5
    window: 10
    role: graphic
    states: [linked]
    value: "http://example.com/pics/cat.jpg"
  - id: -6
    window: 10
    role: graphic
    name: "Logo"
  - id: -7
    window: 10
    role: paragraph
  - id: -8
    window: 10
    role: section
  - id: -9
    window: 10
    role: combobox
    value: "Choice"
    children: [-10]
  - id: -10
    window: 10
    role: listitem
    name: "hidden option"
`)

	link := nodeOf(t, b, -2)
	require.Equal(t, []string{"page.html"}, leafTexts(link))
	leaf := link.Children()[0].(*storage.TextFieldNode)
	_, ok := leaf.Attribute(AttrLanguage)
	assert.False(t, ok, "URL-derived labels carry no language")

	assert.Equal(t, []string{" "}, leafTexts(nodeOf(t, b, -3)))

	static := nodeOf(t, b, -4)
	require.Equal(t, []string{"static"}, leafTexts(static))
	assert.Equal(t, "fr", attrOf(static.Children()[0].(*storage.TextFieldNode), AttrLanguage))

	assert.Equal(t, []string{"cat.jpg"}, leafTexts(nodeOf(t, b, -5)))
	assert.Equal(t, []string{"Logo"}, leafTexts(nodeOf(t, b, -6)))
	assert.Equal(t, []string{" "}, leafTexts(nodeOf(t, b, -7)))
	assert.Empty(t, nodeOf(t, b, -8).Children())

	assert.Equal(t, []string{"Choice"}, leafTexts(nodeOf(t, b, -9)))
	assert.Nil(t, b.ControlFieldNodeWithIdentifier(storage.Identity{DocHandle: 10, ID: -10}))
}

func TestRender_Invisible(t *testing.T) {
	b, _ := renderDoc(t, `
objects:
  - id: -1
    window: 10
    role: document
    children: [-2]
  - id: -2
    window: 10
    role: paragraph
    name: "gone"
    bounds: {width: 0, height: 0}
    text: "hidden"
`)
	para := nodeOf(t, b, -2)
	assert.Empty(t, para.Children())
	assert.Equal(t, "gone", attrOf(para, AttrName))
}

func TestRender_ChildrenMakeVisible(t *testing.T) {
	b, _ := renderDoc(t, `
objects:
  - id: -1
    window: 10
    role: document
    bounds: {width: 0, height: 0}
    children: [-2]
  - id: -2
    window: 10
    role: paragraph
    text: "shown"
`)
	assert.Equal(t, "shown", b.buffer.Text())
}

func TestRender_Description(t *testing.T) {
	body := `
objects:
  - id: -1
    window: 10
    role: document
    children: [-2, -3]
  - id: -2
    window: 10
    role: paragraph
    description: "Description: hello"
    text: "a"
  - id: -3
    window: 10
    role: paragraph
    description: "plain"
    text: "b"
`
	plain, _ := renderDoc(t, body)
	assert.Equal(t, "Description: hello", attrOf(nodeOf(t, plain, -2), AttrDescription))
	assert.Equal(t, "plain", attrOf(nodeOf(t, plain, -3), AttrDescription))

	encoded, _ := renderDoc(t, "toolkit: {name: Gecko, version: \"1.9.1\"}\n"+body)
	assert.Equal(t, "hello", attrOf(nodeOf(t, encoded, -2), AttrDescription))
	_, ok := nodeOf(t, encoded, -3).Attribute(AttrDescription)
	assert.False(t, ok)
}

func TestRender_ImageMapNameLeads(t *testing.T) {
	b, _ := renderDoc(t, `
objects:
  - id: -1
    window: 10
    role: document
    children: [-2]
  - id: -2
    window: 10
    role: graphic
    name: "Map"
    children: [-3]
  - id: -3
    window: 10
    role: link
    name: "Area"
`)
	m := nodeOf(t, b, -2)
	children := m.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "Map", children[0].(*storage.TextFieldNode).Text())
	assert.Equal(t, "MapArea", b.buffer.Text())
}

func TestRender_UnneededWhitespace(t *testing.T) {
	b, _ := renderDoc(t, `
objects:
  - id: -1
    window: 10
    role: document
    children: [-2, -3]
  - id: -2
    window: 10
    role: paragraph
    text: "   "
  - id: -3
    window: 10
    role: text
    text: "   "
`)
	assert.Equal(t, []string{" "}, leafTexts(nodeOf(t, b, -2)), "whitespace replaced by fallback")
	assert.Equal(t, []string{"   "}, leafTexts(nodeOf(t, b, -3)), "editable text keeps its spaces")
}

func TestRender_ProviderFailures(t *testing.T) {
	const body = `
objects:
  - id: -1
    window: 10
    role: document
    children: [-2, -3]
  - id: -2
    window: 10
    role: paragraph
    attributes: {tag: p}
    text: "ABCD"
    runs:
      - {start: 0, end: 2, attributes: {font-weight: "700"}}
    fail: [%s]
  - id: -3
    window: 10
    role: pushbutton
    name: "Go"
    states: [focusable]
    ext_states: [required]
    attributes: {tag: button}
    locale: {language: en, country: US}
    fail: [%s]
`
	focusable := legacyStatePrefix + strconv.Itoa(int(provider.StateFocusable))
	required := extendedStatePrefix + strconv.Itoa(int(provider.ExtStateRequired))

	firstLeaf := func(t *testing.T, n *storage.ControlFieldNode) *storage.TextFieldNode {
		t.Helper()
		require.NotEmpty(t, n.Children())
		leaf, ok := n.Children()[0].(*storage.TextFieldNode)
		require.True(t, ok)
		return leaf
	}

	tests := []struct {
		name       string
		failText   string
		failButton string
		check      func(t *testing.T, b *Backend)
	}{
		{
			name: "nothing fails",
			check: func(t *testing.T, b *Backend) {
				para := nodeOf(t, b, -2)
				assert.Equal(t, []string{"AB", "CD"}, leafTexts(para))
				assert.Equal(t, "700", attrOf(firstLeaf(t, para), "font-weight"))
				assert.Equal(t, "p", attrOf(para, objectAttributeStart+"tag"))

				button := nodeOf(t, b, -3)
				assert.Equal(t, "en-US", attrOf(firstLeaf(t, button), AttrLanguage))
				assert.Equal(t, "1", attrOf(button, focusable))
				assert.Equal(t, "1", attrOf(button, required))
			},
		},
		{
			name:     "text runs",
			failText: "runs",
			check: func(t *testing.T, b *Backend) {
				para := nodeOf(t, b, -2)
				assert.Equal(t, []string{"ABCD"}, leafTexts(para))
				_, ok := firstLeaf(t, para).Attribute("font-weight")
				assert.False(t, ok)
			},
		},
		{
			name:     "text content",
			failText: "content",
			check: func(t *testing.T, b *Backend) {
				assert.Equal(t, []string{" "}, leafTexts(nodeOf(t, b, -2)))
			},
		},
		{
			name:     "window handle",
			failText: "window_handle",
			check: func(t *testing.T, b *Backend) {
				assert.Nil(t, b.ControlFieldNodeWithIdentifier(storage.Identity{DocHandle: 10, ID: -2}))
				assert.Equal(t, "Go", b.buffer.Text())
			},
		},
		{
			name:     "unique id",
			failText: "unique_id",
			check: func(t *testing.T, b *Backend) {
				assert.Equal(t, 2, b.buffer.ControlNodeCount())
				assert.Equal(t, "Go", b.buffer.Text())
			},
		},
		{
			name:       "object metadata",
			failButton: "states, ext_states, attributes, locale, role",
			check: func(t *testing.T, b *Backend) {
				button := nodeOf(t, b, -3)
				assert.Equal(t, strconv.Itoa(int(provider.RolePushButton)), attrOf(button, AttrRole),
					"legacy role stands in")
				for _, key := range []string{focusable, required, objectAttributeStart + "tag"} {
					_, ok := button.Attribute(key)
					assert.False(t, ok, key)
				}
				leaf := firstLeaf(t, button)
				assert.Equal(t, "Go", leaf.Text())
				_, ok := leaf.Attribute(AttrLanguage)
				assert.False(t, ok)
			},
		},
		{
			name:       "both roles",
			failButton: "role, legacy_role",
			check: func(t *testing.T, b *Backend) {
				button := nodeOf(t, b, -3)
				assert.Equal(t, strconv.Itoa(int(provider.RoleUnknown)), attrOf(button, AttrRole))
				assert.True(t, button.IsBlock())
				assert.Equal(t, "Go", attrOf(button, AttrName))
				assert.Equal(t, []string{" "}, leafTexts(button))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, p := renderDoc(t, fmt.Sprintf(body, tt.failText, tt.failButton))
			tt.check(t, b)
			assert.Zero(t, p.Outstanding())
		})
	}
}
