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
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/AleutianAI/vbuf/services/vbuf/provider"
)

// Host is an in-process notification subsystem implementing
// provider.EventSource.
//
// Thread Safety:
//
//	Safe for concurrent use. Emit delivers synchronously on the caller's
//	goroutine, in registration order.
type Host struct {
	mu       sync.RWMutex
	order    []provider.HookID
	handlers map[provider.HookID]provider.EventHandler
}

// NewHost creates a host with no hooks.
func NewHost() *Host {
	return &Host{handlers: make(map[provider.HookID]provider.EventHandler)}
}

// RegisterHook starts delivering events to h.
func (h *Host) RegisterHook(handler provider.EventHandler) provider.HookID {
	id := provider.HookID(uuid.NewString())

	h.mu.Lock()
	defer h.mu.Unlock()
	h.order = append(h.order, id)
	h.handlers[id] = handler
	return id
}

// UnregisterHook stops delivering events to the hook id. Unknown ids are
// ignored.
func (h *Host) UnregisterHook(id provider.HookID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.handlers[id]; !ok {
		return
	}
	delete(h.handlers, id)
	h.order = slices.DeleteFunc(h.order, func(x provider.HookID) bool { return x == id })
}

// HookCount returns the number of registered hooks.
func (h *Host) HookCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers)
}

// Emit delivers ev to every hook.
func (h *Host) Emit(ev provider.Event) {
	h.mu.RLock()
	handlers := make([]provider.EventHandler, 0, len(h.order))
	for _, id := range h.order {
		handlers = append(handlers, h.handlers[id])
	}
	h.mu.RUnlock()

	for _, handler := range handlers {
		handler(ev)
	}
}
