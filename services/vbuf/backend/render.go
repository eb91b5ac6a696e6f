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
	"sort"
	"strconv"
	"unicode"

	"github.com/AleutianAI/vbuf/services/vbuf/provider"
	"github.com/AleutianAI/vbuf/services/vbuf/storage"
)

// Control node attribute keys.
const (
	AttrRole             = "IAccessible::role"
	AttrKeyboardShortcut = "keyboardShortcut"
	AttrDefaultAction    = "defaultAction"
	AttrDescription      = "description"
	AttrName             = "name"
	AttrLanguage         = "language"
	AttrTextAlign        = "text-align"

	legacyStatePrefix    = "IAccessible::state_"
	extendedStatePrefix  = "IAccessible2::state_"
	objectAttributeStart = "IAccessible2::attribute_"
)

// RendererOptions configures a Renderer.
type RendererOptions struct {
	// Policy normalises object windows.
	Policy WindowPolicy

	// Quirks are the document's behavior flags.
	Quirks Quirks

	// Logger receives structural anomalies at debug level.
	// Default: slog.Default()
	Logger *slog.Logger
}

// RenderStats counts what a Renderer did.
type RenderStats struct {
	// Controls is the number of control nodes created.
	Controls int

	// Texts is the number of text leaves created.
	Texts int

	// Duplicates is the number of objects skipped because their identity
	// was already in the buffer.
	Duplicates int

	// Unresolved is the number of objects whose window or id could not be
	// resolved.
	Unresolved int
}

// Renderer builds buffer subtrees from provider objects.
//
// Description:
//
//	Render is the recursive construction algorithm. It is used for a
//	single pass and then discarded; statistics accumulate across calls.
//
// Thread Safety:
//
//	Not safe for concurrent use. The buffer must not be mutated by anyone
//	else while Render runs.
type Renderer struct {
	buffer  *storage.Buffer
	windows provider.WindowSystem
	opts    RendererOptions
	logger  *slog.Logger
	stats   RenderStats
}

// NewRenderer creates a renderer writing into buffer.
func NewRenderer(buffer *storage.Buffer, windows provider.WindowSystem, opts RendererOptions) *Renderer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Policy == (WindowPolicy{}) {
		opts.Policy = DefaultWindowPolicy()
	}
	return &Renderer{
		buffer:  buffer,
		windows: windows,
		opts:    opts,
		logger:  logger,
	}
}

// Stats returns the counters accumulated so far.
func (r *Renderer) Stats() RenderStats {
	return r.stats
}

// identityOf resolves the normalised buffer identity of obj.
func (r *Renderer) identityOf(obj provider.Object) (storage.Identity, bool) {
	win, err := obj.WindowHandle()
	if err != nil {
		return storage.Identity{}, false
	}
	doc := findRealWindow(r.windows, r.opts.Policy, win)
	if doc == 0 {
		return storage.Identity{}, false
	}
	id, err := obj.UniqueID()
	if err != nil {
		return storage.Identity{}, false
	}
	return storage.Identity{DocHandle: int64(doc), ID: id}, true
}

// visit is the state of one Render call.
type visit struct {
	r    *Renderer
	obj  provider.Object
	node *storage.ControlFieldNode
	sc   *scope

	// previous is the last child added to node.
	previous storage.Node

	id         int64
	role       provider.Role
	states     provider.State
	extStates  provider.ExtState
	attrs      map[string]string
	name       string
	hasName    bool
	value      string
	defAction  string
	locale     string
	childCount int
	tc         TableContext
}

// Render builds the subtree for obj.
//
// Description:
//
//	Creates a control node for obj under parent, directly after previous,
//	fills in its attributes and block flag, and renders its content:
//	segmented text, child objects, or a fallback. Handles acquired from
//	the provider during the visit are released before returning, on
//	every path.
//
// Inputs:
//
//	obj - The object to render. Still owned by the caller.
//	parent - Enclosing node, or nil to create the buffer root.
//	previous - Sibling to insert after, or nil to insert first.
//	tc - The enclosing table context.
//
// Outputs:
//
//	*storage.ControlFieldNode - The new node, or nil when obj's identity
//	cannot be resolved or is already in the buffer. Nothing is added to
//	the buffer when nil is returned.
func (r *Renderer) Render(obj provider.Object, parent *storage.ControlFieldNode, previous storage.Node, tc TableContext) *storage.ControlFieldNode {
	identity, ok := r.identityOf(obj)
	if !ok {
		r.stats.Unresolved++
		r.logger.Debug("render: unresolvable object")
		return nil
	}

	if r.buffer.ControlFieldNodeWithIdentifier(identity) != nil {
		r.stats.Duplicates++
		r.logger.Debug("render: identity already in buffer", slog.String("identity", identity.String()))
		return nil
	}

	node, err := r.buffer.AddControlFieldNode(parent, previous, identity, true)
	if err != nil {
		r.logger.Debug("render: add control node failed",
			slog.String("identity", identity.String()),
			slog.String("error", err.Error()))
		return nil
	}
	r.stats.Controls++

	sc := &scope{}
	defer sc.release()

	v := &visit{r: r, obj: obj, node: node, sc: sc, id: identity.ID, tc: tc}
	v.fill()
	return node
}

// fill runs every step after node creation.
func (v *visit) fill() {
	v.addRole()
	v.addStates()

	if shortcut, err := v.obj.KeyboardShortcut(); err == nil {
		v.node.AddAttribute(AttrKeyboardShortcut, shortcut)
	} else {
		v.node.AddAttribute(AttrKeyboardShortcut, "")
	}

	v.addObjectAttributes()

	if action, err := v.obj.DefaultAction(); err == nil && action != "" {
		v.defAction = action
		v.node.AddAttribute(AttrDefaultAction, action)
	}

	v.node.SetIsBlock(v.isBlock())

	v.name, v.hasName = optional(v.obj.Name())

	if desc, err := v.obj.Description(); err == nil {
		if decoded, keep := v.r.opts.Quirks.decodeDescription(desc); keep {
			v.node.AddAttribute(AttrDescription, decoded)
		}
	}

	if loc, err := v.obj.Locale(); err == nil {
		v.locale = loc.Tag()
	}

	var rect provider.Rect
	if loc, err := v.obj.Location(); err == nil {
		rect = loc
	}

	txt, content := v.text()
	var hypertext provider.Hypertext
	if ht, err := v.obj.Hypertext(); err == nil {
		v.sc.hold(ht)
		hypertext = ht
	}

	visible := rect.Width > 0 && rect.Height > 0
	renderChildren := !v.isUnneededSpace(content) &&
		v.role != provider.RoleComboBox &&
		!(v.role == provider.RoleList && !v.states.Has(provider.StateReadOnly)) &&
		v.role != provider.RoleEmbeddedObject
	if renderChildren {
		if n, err := v.obj.ChildCount(); err == nil && n > 0 {
			v.childCount = n
			visible = true
		}
	}

	v.addTableInfo(visible)

	if value, err := v.obj.Value(); err == nil {
		v.value = value
	}

	if v.hasName && v.role != provider.RoleLink && v.role != provider.RolePushButton && v.role != provider.RoleGraphic {
		v.node.AddAttribute(AttrName, v.name)
	}

	if !visible {
		return
	}

	if v.role == provider.RoleGraphic && v.childCount > 0 && v.hasName {
		// Image map: its name leads its areas.
		v.addText(v.name, true)
	}

	switch {
	case renderChildren && len(content) > 0:
		v.renderText(txt, hypertext, content)
	case renderChildren && v.childCount > 0:
		v.renderChildren()
	default:
		v.renderFallback()
	}

	if isSpaceFilledRole(v.role) && v.node.Length() == 0 {
		v.addText(" ", true)
		v.node.SetIsBlock(false)
	}
}

// optional turns a (string, error) query into a presence flag.
func optional(s string, err error) (string, bool) {
	return s, err == nil
}

func (v *visit) addRole() {
	role, err := v.obj.Role()
	if err != nil {
		role = provider.RoleUnknown
	}

	label := ""
	if role == provider.RoleUnknown {
		if legacy, err := v.obj.LegacyRole(); err == nil {
			if legacy.Name != "" {
				label = legacy.Name
			} else {
				role = legacy.Code
			}
		}
	}
	v.role = role

	if label == "" {
		label = strconv.FormatInt(int64(role), 10)
	}
	v.node.AddAttribute(AttrRole, label)
}

func (v *visit) addStates() {
	if states, err := v.obj.States(); err == nil {
		v.states = states
	}
	if ext, err := v.obj.ExtendedStates(); err == nil {
		v.extStates = ext
	}
	addBits(v.node, legacyStatePrefix, uint32(v.states))
	addBits(v.node, extendedStatePrefix, uint32(v.extStates))
}

// addBits writes prefix+<bit value>=1 for every set bit, lowest first.
func addBits(node *storage.ControlFieldNode, prefix string, bits uint32) {
	for i := 0; i < 32; i++ {
		bit := uint32(1) << i
		if bits&bit != 0 {
			node.AddAttribute(prefix+strconv.FormatUint(uint64(bit), 10), "1")
		}
	}
}

func (v *visit) addObjectAttributes() {
	raw, err := v.obj.Attributes()
	if err != nil {
		v.attrs = map[string]string{}
		return
	}
	v.attrs = provider.ParseAttributes(raw)
	for _, key := range sortedKeys(v.attrs) {
		v.node.AddAttribute(objectAttributeStart+key, v.attrs[key])
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// isBlock classifies the node. The checks apply in order and the first
// that matches decides.
func (v *visit) isBlock() bool {
	if v.extStates.Has(provider.ExtStateMultiLine) {
		return true
	}
	if display, ok := v.attrs["display"]; ok {
		return display != "inline" && display != "inline-block"
	}
	if v.attrs["formatting"] == "block" {
		return true
	}
	switch v.role {
	case provider.RoleTable, provider.RoleCell, provider.RoleSection, provider.RoleDocument,
		provider.RoleInternalFrame, provider.RoleUnknown, provider.RoleSeparator:
		return true
	}
	return false
}

// text returns the text capability and its content as runes. Both are
// empty when the object has no text.
func (v *visit) text() (provider.Text, []rune) {
	txt, err := v.obj.Text()
	if err != nil {
		return nil, nil
	}
	v.sc.hold(txt)
	content, err := txt.Content()
	if err != nil {
		return txt, nil
	}
	return txt, []rune(content)
}

// isUnneededSpace reports whether content is whitespace that carries no
// information. Whitespace is meaningful in editable text controls, and
// line breaks and embedded objects are never unneeded.
func (v *visit) isUnneededSpace(content []rune) bool {
	if len(content) == 0 {
		return false
	}
	if v.role == provider.RoleText && !v.states.Has(provider.StateReadOnly) {
		return false
	}
	if v.extStates.Has(provider.ExtStateEditable) {
		return false
	}
	for _, c := range content {
		if c == '\n' || c == provider.EmbeddedObjectChar || !unicode.IsSpace(c) {
			return false
		}
	}
	return true
}

// addTableInfo handles cell entry and table opening.
func (v *visit) addTableInfo(visible bool) {
	if v.tc.Active() {
		v.node.AddAttribute(AttrTableID, strconv.FormatInt(v.tc.ID(), 10))

		if cell, err := v.obj.TableCell(); err == nil {
			v.sc.hold(cell)
			v.r.addModernCellInfo(v.node, cell)
			v.tc = TableContext{}
		} else if index, ok := v.attrs[objectAttrCellIndex]; ok {
			if v.tc.Legacy() {
				addLegacyCellInfo(v.node, v.tc.legacy, index)
			}
			v.tc = TableContext{}
		}
	}

	if v.tc.Active() {
		return
	}
	tc := openTable(v.obj, v.id, v.sc)
	if !tc.Active() {
		return
	}
	v.tc = tc

	if _, ok := v.attrs[objectAttrLayoutGuess]; ok {
		v.node.AddAttribute(AttrTableLayout, "1")
	}
	v.node.AddAttribute(AttrTableID, strconv.FormatInt(v.id, 10))
	addTableCounts(v.node, tc)

	if v.hasName && visible {
		v.addText(v.name, true)
	}
}

// addText appends a text leaf after the last child. Empty text is
// skipped. The leaf carries the object's language when withLocale is set.
func (v *visit) addText(text string, withLocale bool) *storage.TextFieldNode {
	leaf, err := v.r.buffer.AddTextFieldNode(v.node, v.previous, text)
	if err != nil {
		return nil
	}
	v.r.stats.Texts++
	v.previous = leaf
	if withLocale && v.locale != "" {
		leaf.AddAttribute(AttrLanguage, v.locale)
	}
	return leaf
}

// renderChildren renders each child object in order. Each child handle is
// released as soon as its subtree is built.
func (v *visit) renderChildren() {
	children, err := v.obj.Children()
	if err != nil {
		v.r.logger.Debug("render: children unavailable", slog.Int64("id", v.id))
		return
	}
	for _, child := range children {
		v.renderChild(child)
	}
}

// renderChild renders child after the last child and releases it.
func (v *visit) renderChild(child provider.Object) {
	defer child.Release()
	if node := v.r.Render(child, v.node, v.previous, v.tc); node != nil {
		v.previous = node
	}
}

// isSpaceFilledRole reports whether an empty node of role gets a single
// space so it stays reachable.
func isSpaceFilledRole(role provider.Role) bool {
	switch role {
	case provider.RoleCell, provider.RoleRowHeader, provider.RoleColumnHeader, provider.RoleUnknown:
		return true
	}
	return false
}
