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
	"fmt"
	"strings"
	"sync"
)

// Buffer is a document buffer.
//
// Thread Safety:
//
//	See the package documentation.
type Buffer struct {
	mu    sync.RWMutex
	root  *ControlFieldNode
	index map[Identity]*ControlFieldNode
	texts int
}

// New creates an empty buffer.
func New() *Buffer {
	return &Buffer{
		index: make(map[Identity]*ControlFieldNode),
	}
}

// Root returns the root control node, or nil when the buffer is empty.
func (b *Buffer) Root() *ControlFieldNode {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.root
}

// AddControlFieldNode creates a control node.
//
// Description:
//
//	Creates a node for identity under parent, directly after previous.
//	A nil parent makes the node the buffer root. A nil previous inserts
//	the node as the first child of parent.
//
// Inputs:
//
//	parent - Enclosing node, or nil for the root.
//	previous - Sibling to insert after, or nil.
//	identity - The node's identity. Must be unique in the buffer.
//	isBlock - Initial block flag.
//
// Outputs:
//
//	*ControlFieldNode - The new node.
//	error - ErrDuplicateIdentity, ErrRootExists, ErrNodeNotInBuffer or
//	        ErrNotAChild. The buffer is unchanged on error.
func (b *Buffer) AddControlFieldNode(parent *ControlFieldNode, previous Node, identity Identity, isBlock bool) (*ControlFieldNode, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.index[identity]; exists {
		return nil, fmt.Errorf("add control node %s: %w", identity, ErrDuplicateIdentity)
	}
	if err := b.checkPosition(parent, previous); err != nil {
		return nil, fmt.Errorf("add control node %s: %w", identity, err)
	}
	if parent == nil && b.root != nil {
		return nil, fmt.Errorf("add control node %s: %w", identity, ErrRootExists)
	}

	node := &ControlFieldNode{
		identity: identity,
		isBlock:  isBlock,
		buffer:   b,
	}
	if parent == nil {
		b.root = node
	} else {
		parent.insertAfter(previous, node)
	}
	b.index[identity] = node
	return node, nil
}

// AddTextFieldNode creates a text leaf under parent, directly after
// previous (or first when previous is nil).
func (b *Buffer) AddTextFieldNode(parent *ControlFieldNode, previous Node, text string) (*TextFieldNode, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	if parent == nil {
		return nil, ErrNoParent
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkPosition(parent, previous); err != nil {
		return nil, fmt.Errorf("add text node: %w", err)
	}
	node := newTextFieldNode(text, b)
	parent.insertAfter(previous, node)
	b.texts++
	return node, nil
}

func (b *Buffer) checkPosition(parent *ControlFieldNode, previous Node) error {
	if parent != nil && parent.buffer != b {
		return ErrNodeNotInBuffer
	}
	if previous == nil {
		return nil
	}
	if previous.owner() != b {
		return ErrNodeNotInBuffer
	}
	if parent == nil || previous.Parent() != parent {
		return ErrNotAChild
	}
	return nil
}

// ControlFieldNodeWithIdentifier looks a control node up by identity.
// Returns nil when no such node exists. Safe for concurrent use.
func (b *Buffer) ControlFieldNodeWithIdentifier(identity Identity) *ControlFieldNode {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index[identity]
}

// IsNodeInBuffer reports whether n currently belongs to this buffer.
func (b *Buffer) IsNodeInBuffer(n Node) bool {
	if n == nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return n.owner() == b
}

// RemoveSubtree unlinks node and everything below it.
//
// Description:
//
//	Removes node from its parent and drops every identity in the subtree
//	from the index. The returned parent and previous sibling describe
//	where the node was, so a replacement can be rendered in its place.
//	Removing the root empties the buffer and returns a nil parent.
//
// Outputs:
//
//	parent - The node's former parent (nil for the root).
//	previous - The node's former previous sibling (nil if it was first).
//	error - ErrNodeNotInBuffer if node is not part of this buffer.
func (b *Buffer) RemoveSubtree(node *ControlFieldNode) (*ControlFieldNode, Node, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if node == nil || node.buffer != b {
		return nil, nil, ErrNodeNotInBuffer
	}

	parent := node.parent
	var previous Node
	if parent != nil {
		pos := parent.indexOf(node)
		if pos > 0 {
			previous = parent.children[pos-1]
		}
		parent.children = append(parent.children[:pos], parent.children[pos+1:]...)
	} else {
		b.root = nil
	}

	b.unindex(node)
	node.detach()
	node.parent = nil
	return parent, previous, nil
}

func (b *Buffer) unindex(node *ControlFieldNode) {
	delete(b.index, node.identity)
	for _, c := range node.children {
		switch child := c.(type) {
		case *ControlFieldNode:
			b.unindex(child)
		case *TextFieldNode:
			b.texts--
		}
	}
}

// Clear removes every node.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.root != nil {
		b.root.detach()
	}
	b.root = nil
	b.index = make(map[Identity]*ControlFieldNode)
	b.texts = 0
}

// ControlNodeCount returns the number of control nodes.
func (b *Buffer) ControlNodeCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.index)
}

// TextNodeCount returns the number of text leaves.
func (b *Buffer) TextNodeCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.texts
}

// Text returns the concatenated text of every leaf in document order.
func (b *Buffer) Text() string {
	root := b.Root()
	if root == nil {
		return ""
	}
	var sb strings.Builder
	Walk(root, func(n Node, _ int) bool {
		if t, ok := n.(*TextFieldNode); ok {
			sb.WriteString(t.text)
		}
		return true
	})
	return sb.String()
}

// Walk visits n and its descendants depth-first in document order. The
// callback receives the depth relative to n; returning false skips the
// node's children.
func Walk(n Node, fn func(n Node, depth int) bool) {
	walk(n, 0, fn)
}

func walk(n Node, depth int, fn func(Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	if c, ok := n.(*ControlFieldNode); ok {
		for _, child := range c.children {
			walk(child, depth+1, fn)
		}
	}
}
