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
	"slices"
	"sync"

	"github.com/AleutianAI/vbuf/services/vbuf/provider"
	"github.com/AleutianAI/vbuf/services/vbuf/storage"
)

// Target is a running buffer as seen from the notification context.
// *Backend implements it.
type Target interface {
	RootWindow() provider.WindowHandle
	RootID() int64
	ControlFieldNodeWithIdentifier(identity storage.Identity) *storage.ControlFieldNode
	InvalidateSubtree(node *storage.ControlFieldNode, source string)
	ForceUpdate()
}

// DefaultRegistry is the process-wide registry of running backends.
var DefaultRegistry = NewRegistry()

// Registry is the set of running backends that notifications are routed
// to.
//
// Description:
//
//	When an event source is attached, the registry hooks it while at
//	least one target is registered: the hook is installed by the first
//	Register and removed by the last Unregister.
//
// Thread Safety:
//
//	Safe for concurrent use. Targets returns a snapshot, so dispatch
//	never holds the registry lock while calling into a target.
type Registry struct {
	mu      sync.RWMutex
	targets []Target

	source  provider.EventSource
	handler provider.EventHandler
	hook    provider.HookID
	hooked  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Attach sets the event source and the handler to hook into it. A
// previously attached source is unhooked first.
func (r *Registry) Attach(source provider.EventSource, handler provider.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unhookLocked()
	r.source = source
	r.handler = handler
	if len(r.targets) > 0 {
		r.hookLocked()
	}
}

// Detach unhooks and forgets the event source.
func (r *Registry) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unhookLocked()
	r.source = nil
	r.handler = nil
}

// Hooked reports whether the handler is currently hooked.
func (r *Registry) Hooked() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hooked
}

func (r *Registry) hookLocked() {
	if r.hooked || r.source == nil || r.handler == nil {
		return
	}
	r.hook = r.source.RegisterHook(r.handler)
	r.hooked = true
}

func (r *Registry) unhookLocked() {
	if !r.hooked {
		return
	}
	r.source.UnregisterHook(r.hook)
	r.hook = ""
	r.hooked = false
}

// Register adds t.
//
// Outputs:
//
//	error - ErrAlreadyRegistered if t is already present.
func (r *Registry) Register(t Target) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.Contains(r.targets, t) {
		return fmt.Errorf("root %d/%d: %w", t.RootWindow(), t.RootID(), ErrAlreadyRegistered)
	}
	r.targets = append(r.targets, t)
	if len(r.targets) == 1 {
		r.hookLocked()
	}
	return nil
}

// Unregister removes t.
//
// Outputs:
//
//	error - ErrNotRegistered if t is not present.
func (r *Registry) Unregister(t Target) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.Index(r.targets, t)
	if i < 0 {
		return fmt.Errorf("root %d/%d: %w", t.RootWindow(), t.RootID(), ErrNotRegistered)
	}
	r.targets = slices.Delete(r.targets, i, i+1)
	if len(r.targets) == 0 {
		r.unhookLocked()
	}
	return nil
}

// Targets returns the registered targets in registration order.
func (r *Registry) Targets() []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.targets)
}

// Len returns the number of registered targets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.targets)
}
