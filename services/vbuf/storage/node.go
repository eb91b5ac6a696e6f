// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"strconv"
	"unicode/utf8"
)

// Identity names a remote object within a buffer: the document window it
// lives in and its unique id in that window.
type Identity struct {
	DocHandle int64
	ID        int64
}

// String returns "docHandle,id".
func (i Identity) String() string {
	return strconv.FormatInt(i.DocHandle, 10) + "," + strconv.FormatInt(i.ID, 10)
}

// Attribute is one key/value pair on a node.
type Attribute struct {
	Key   string
	Value string
}

// Attributes is an insertion-ordered string map. Setting an existing key
// replaces its value and keeps its original position.
type Attributes struct {
	keys   []string
	values map[string]string
}

// Set adds or replaces key.
func (a *Attributes) Set(key, value string) {
	if a.values == nil {
		a.values = make(map[string]string)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

// Get returns the value of key.
func (a *Attributes) Get(key string) (string, bool) {
	v, ok := a.values[key]
	return v, ok
}

// Len returns the number of attributes.
func (a *Attributes) Len() int {
	return len(a.keys)
}

// All returns the attributes in insertion order.
func (a *Attributes) All() []Attribute {
	out := make([]Attribute, 0, len(a.keys))
	for _, k := range a.keys {
		out = append(out, Attribute{Key: k, Value: a.values[k]})
	}
	return out
}

// Node is either a *ControlFieldNode or a *TextFieldNode.
type Node interface {
	// Parent returns the enclosing control node, or nil for the root.
	Parent() *ControlFieldNode

	// AddAttribute sets a named attribute on the node.
	AddAttribute(key, value string)

	// Attribute returns the value of a named attribute.
	Attribute(key string) (string, bool)

	// Attributes returns all attributes in insertion order.
	Attributes() []Attribute

	// Length returns the number of characters of text under the node.
	Length() int

	owner() *Buffer
	setParent(p *ControlFieldNode)
	detach()
}

// ControlFieldNode is a non-leaf node representing one remote object.
type ControlFieldNode struct {
	identity Identity
	attrs    Attributes
	isBlock  bool
	children []Node
	parent   *ControlFieldNode
	buffer   *Buffer
}

// Identity returns the node's identity.
func (n *ControlFieldNode) Identity() Identity { return n.identity }

// Parent returns the enclosing control node.
func (n *ControlFieldNode) Parent() *ControlFieldNode { return n.parent }

// AddAttribute sets a named attribute.
func (n *ControlFieldNode) AddAttribute(key, value string) { n.attrs.Set(key, value) }

// Attribute returns a named attribute.
func (n *ControlFieldNode) Attribute(key string) (string, bool) { return n.attrs.Get(key) }

// Attributes returns all attributes in insertion order.
func (n *ControlFieldNode) Attributes() []Attribute { return n.attrs.All() }

// IsBlock reports whether the node starts a new block.
func (n *ControlFieldNode) IsBlock() bool { return n.isBlock }

// SetIsBlock marks the node as block or inline.
func (n *ControlFieldNode) SetIsBlock(block bool) { n.isBlock = block }

// Children returns a copy of the node's children in order.
func (n *ControlFieldNode) Children() []Node {
	out := make([]Node, len(n.children))
	copy(out, n.children)
	return out
}

// Length returns the number of characters of text in the subtree.
func (n *ControlFieldNode) Length() int {
	total := 0
	for _, c := range n.children {
		total += c.Length()
	}
	return total
}

func (n *ControlFieldNode) owner() *Buffer {
	if n == nil {
		return nil
	}
	return n.buffer
}

func (n *ControlFieldNode) setParent(p *ControlFieldNode) { n.parent = p }

func (n *ControlFieldNode) detach() {
	n.buffer = nil
	for _, c := range n.children {
		c.detach()
	}
}

// indexOf returns the position of child among n's children, or -1.
func (n *ControlFieldNode) indexOf(child Node) int {
	// Appends after the last child are by far the most common case.
	if last := len(n.children) - 1; last >= 0 && n.children[last] == child {
		return last
	}
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

func (n *ControlFieldNode) insertAfter(previous, child Node) {
	pos := 0
	if previous != nil {
		pos = n.indexOf(previous) + 1
	}
	n.children = append(n.children, nil)
	copy(n.children[pos+1:], n.children[pos:])
	n.children[pos] = child
	child.setParent(n)
}

// TextFieldNode is a leaf holding literal text.
type TextFieldNode struct {
	text   string
	length int
	attrs  Attributes
	parent *ControlFieldNode
	buffer *Buffer
}

// Text returns the node's text.
func (n *TextFieldNode) Text() string { return n.text }

// Parent returns the enclosing control node.
func (n *TextFieldNode) Parent() *ControlFieldNode { return n.parent }

// AddAttribute sets a named attribute.
func (n *TextFieldNode) AddAttribute(key, value string) { n.attrs.Set(key, value) }

// Attribute returns a named attribute.
func (n *TextFieldNode) Attribute(key string) (string, bool) { return n.attrs.Get(key) }

// Attributes returns all attributes in insertion order.
func (n *TextFieldNode) Attributes() []Attribute { return n.attrs.All() }

// Length returns the number of characters in the text.
func (n *TextFieldNode) Length() int { return n.length }

func (n *TextFieldNode) owner() *Buffer {
	if n == nil {
		return nil
	}
	return n.buffer
}

func (n *TextFieldNode) setParent(p *ControlFieldNode) { n.parent = p }
func (n *TextFieldNode) detach()                       { n.buffer = nil }

func newTextFieldNode(text string, b *Buffer) *TextFieldNode {
	return &TextFieldNode{text: text, length: utf8.RuneCountInString(text), buffer: b}
}
