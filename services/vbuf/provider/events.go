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

// ObjIDClient is the object id of a window's client area. Only events
// reported against the client area carry a child id that names an
// accessible object.
const ObjIDClient int64 = -4

// EventKind is the kind of change notification delivered by the host.
type EventKind int

const (
	// EventUnknown is any notification the engine does not listen for.
	EventUnknown EventKind = iota

	// EventFocus indicates focus moved to an object.
	EventFocus

	// EventAlert indicates an alert was raised.
	EventAlert

	// EventTextInserted indicates text was inserted into an object.
	EventTextInserted

	// EventTextRemoved indicates text was removed from an object.
	EventTextRemoved

	// EventTextUpdated indicates an object's text changed wholesale.
	EventTextUpdated

	// EventReorder indicates an object's child list changed.
	EventReorder

	// EventNameChange indicates an object's name changed.
	EventNameChange

	// EventValueChange indicates an object's value changed.
	EventValueChange

	// EventDescriptionChange indicates an object's description changed.
	EventDescriptionChange

	// EventStateChange indicates an object's states changed.
	EventStateChange

	// EventAttributeChanged indicates an object's attributes changed.
	EventAttributeChanged
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventFocus:
		return "focus"
	case EventAlert:
		return "alert"
	case EventTextInserted:
		return "text_inserted"
	case EventTextRemoved:
		return "text_removed"
	case EventTextUpdated:
		return "text_updated"
	case EventReorder:
		return "reorder"
	case EventNameChange:
		return "name_change"
	case EventValueChange:
		return "value_change"
	case EventDescriptionChange:
		return "description_change"
	case EventStateChange:
		return "state_change"
	case EventAttributeChanged:
		return "attribute_changed"
	default:
		return "unknown"
	}
}

// Forced reports whether the kind demands an immediate full update.
func (k EventKind) Forced() bool {
	return k == EventFocus || k == EventAlert
}

// Event is one change notification.
type Event struct {
	Kind     EventKind
	Window   WindowHandle
	ObjectID int64
	ChildID  int64
}

// EventHandler receives change notifications on the host's notification
// context. Handlers must not block.
type EventHandler func(Event)

// HookID identifies a registered EventHandler.
type HookID string

// EventSource is the host notification subsystem.
type EventSource interface {
	// RegisterHook starts delivering notifications to h.
	RegisterHook(h EventHandler) HookID

	// UnregisterHook stops delivering notifications to the handler
	// registered under id.
	UnregisterHook(id HookID)
}
