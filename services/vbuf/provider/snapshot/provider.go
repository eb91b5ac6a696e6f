// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snapshot

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/AleutianAI/vbuf/services/vbuf/provider"
)

// maxWindowDepth bounds window ancestry walks so a cyclic window table
// cannot hang IsChild.
const maxWindowDepth = 64

// tree is one immutable compiled document.
type tree struct {
	doc     *Document
	objects map[int64]*entry
	windows map[provider.WindowHandle]Window
}

func build(doc *Document) (*tree, error) {
	t := &tree{
		doc:     doc,
		objects: make(map[int64]*entry, len(doc.Objects)),
		windows: make(map[provider.WindowHandle]Window, len(doc.Windows)),
	}
	for _, w := range doc.Windows {
		t.windows[provider.WindowHandle(w.Handle)] = w
	}
	for i := range doc.Objects {
		o := &doc.Objects[i]
		if _, dup := t.objects[o.ID]; dup {
			return nil, fmt.Errorf("object %d: %w", o.ID, ErrDuplicateObject)
		}
		e, err := compile(o)
		if err != nil {
			return nil, err
		}
		t.objects[o.ID] = e
	}
	return t, nil
}

// Provider serves a snapshot document through the provider contract.
//
// Description:
//
//	Implements provider.Resolver and provider.WindowSystem. Handles
//	returned by the provider point at the document that was current when
//	they were created; Replace swaps in a new document without touching
//	handles already given out.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Provider struct {
	mu   sync.RWMutex
	tree *tree

	outstanding atomic.Int64
	acquired    atomic.Int64
}

// New builds a provider for doc.
//
// Outputs:
//
//	*Provider - The provider.
//	error - ErrDuplicateObject or a role/state parse error.
func New(doc *Document) (*Provider, error) {
	t, err := build(doc)
	if err != nil {
		return nil, err
	}
	return &Provider{tree: t}, nil
}

func (p *Provider) current() *tree {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tree
}

// Document returns the current document.
func (p *Provider) Document() *Document {
	return p.current().doc
}

// Root returns the window and object id of the document root.
func (p *Provider) Root() (provider.WindowHandle, int64) {
	doc := p.current().doc
	if doc.Root.ID != 0 || doc.Root.Window != 0 {
		return provider.WindowHandle(doc.Root.Window), doc.Root.ID
	}
	if len(doc.Objects) == 0 {
		return 0, 0
	}
	first := doc.Objects[0]
	return provider.WindowHandle(first.Window), first.ID
}

// Outstanding returns the number of handles given out and not yet released.
func (p *Provider) Outstanding() int64 {
	return p.outstanding.Load()
}

// Acquired returns the total number of handles ever given out.
func (p *Provider) Acquired() int64 {
	return p.acquired.Load()
}

func (p *Provider) track() {
	p.outstanding.Add(1)
	p.acquired.Add(1)
}

// ObjectFromEvent resolves childID reported against window. The object
// must live in window or in one of its descendant windows.
func (p *Provider) ObjectFromEvent(window provider.WindowHandle, childID int64) (provider.Object, error) {
	t := p.current()
	e, ok := t.objects[childID]
	if !ok {
		return nil, fmt.Errorf("child %d in window %d: %w", childID, window, provider.ErrObjectNotFound)
	}
	own := provider.WindowHandle(e.spec.Window)
	if own != window && !t.isChild(window, own) {
		return nil, fmt.Errorf("child %d in window %d: %w", childID, window, provider.ErrObjectNotFound)
	}
	return p.object(t, e), nil
}

// IsWindow reports whether w is a known window.
func (p *Provider) IsWindow(w provider.WindowHandle) bool {
	_, ok := p.current().windows[w]
	return ok
}

// ClassName returns the class of w.
func (p *Provider) ClassName(w provider.WindowHandle) (string, error) {
	win, ok := p.current().windows[w]
	if !ok {
		return "", fmt.Errorf("window %d: %w", w, provider.ErrObjectNotFound)
	}
	return win.Class, nil
}

// Parent returns the parent of w, or 0.
func (p *Provider) Parent(w provider.WindowHandle) provider.WindowHandle {
	return provider.WindowHandle(p.current().windows[w].Parent)
}

// IsChild reports whether child is a strict descendant of parent.
func (p *Provider) IsChild(parent, child provider.WindowHandle) bool {
	return p.current().isChild(parent, child)
}

func (t *tree) isChild(parent, child provider.WindowHandle) bool {
	w := child
	for i := 0; i < maxWindowDepth; i++ {
		next := provider.WindowHandle(t.windows[w].Parent)
		if next == 0 {
			return false
		}
		if next == parent {
			return true
		}
		w = next
	}
	return false
}

// Replace swaps in doc and returns the change notifications that describe
// the difference to the previous document.
//
// Description:
//
//	An object whose child list changed, or which appeared or vanished,
//	produces a reorder on the affected parent. Other changes produce the
//	most specific notification kind: name, value, description, state,
//	text, or attributes. Notifications are ordered by the position of
//	the object in the new document and carry ObjIDClient.
//
// Outputs:
//
//	[]provider.Event - Notifications, possibly empty.
//	error - Build errors; the current document is kept on error.
func (p *Provider) Replace(doc *Document) ([]provider.Event, error) {
	next, err := build(doc)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	prev := p.tree
	p.tree = next
	p.mu.Unlock()

	return diff(prev, next), nil
}

func diff(prev, next *tree) []provider.Event {
	kinds := make(map[int64]provider.EventKind)
	mark := func(id int64, kind provider.EventKind) {
		if cur, ok := kinds[id]; !ok || kind == provider.EventReorder && cur != provider.EventReorder {
			kinds[id] = kind
		}
	}

	parents := func(t *tree, id int64) []int64 {
		var out []int64
		for _, o := range t.doc.Objects {
			if slices.Contains(o.Children, id) {
				out = append(out, o.ID)
			}
		}
		return out
	}

	for _, o := range next.doc.Objects {
		old, existed := prev.objects[o.ID]
		if !existed {
			for _, parent := range parents(next, o.ID) {
				mark(parent, provider.EventReorder)
			}
			continue
		}
		if kind, changed := changeKind(old.spec, &o); changed {
			mark(o.ID, kind)
		}
	}
	for _, o := range prev.doc.Objects {
		if _, kept := next.objects[o.ID]; kept {
			continue
		}
		for _, parent := range parents(prev, o.ID) {
			if _, ok := next.objects[parent]; ok {
				mark(parent, provider.EventReorder)
			}
		}
	}

	var events []provider.Event
	for _, o := range next.doc.Objects {
		kind, ok := kinds[o.ID]
		if !ok {
			continue
		}
		events = append(events, provider.Event{
			Kind:     kind,
			Window:   provider.WindowHandle(o.Window),
			ObjectID: provider.ObjIDClient,
			ChildID:  o.ID,
		})
	}
	return events
}

func changeKind(old, cur *Object) (provider.EventKind, bool) {
	switch {
	case reflect.DeepEqual(old, cur):
		return provider.EventUnknown, false
	case !slices.Equal(old.Children, cur.Children):
		return provider.EventReorder, true
	case !reflect.DeepEqual(old.Name, cur.Name):
		return provider.EventNameChange, true
	case !reflect.DeepEqual(old.Value, cur.Value):
		return provider.EventValueChange, true
	case !reflect.DeepEqual(old.Description, cur.Description):
		return provider.EventDescriptionChange, true
	case !slices.Equal(old.States, cur.States) || !slices.Equal(old.ExtStates, cur.ExtStates):
		return provider.EventStateChange, true
	case !reflect.DeepEqual(old.Text, cur.Text) || !reflect.DeepEqual(old.Runs, cur.Runs):
		return provider.EventTextUpdated, true
	default:
		return provider.EventAttributeChanged, true
	}
}
