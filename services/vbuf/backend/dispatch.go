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
	"github.com/AleutianAI/vbuf/services/vbuf/storage"
)

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// Policy normalises event windows.
	Policy WindowPolicy

	// FrameRecovery enables the sub-document frame lookup for state
	// changes on unknown objects.
	// Default: true
	FrameRecovery bool

	// Logger is the structured logger.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultDispatcherOptions returns sensible defaults.
func DefaultDispatcherOptions() DispatcherOptions {
	return DispatcherOptions{
		Policy:        DefaultWindowPolicy(),
		FrameRecovery: true,
		Logger:        slog.Default(),
	}
}

// DispatcherOption is a functional option for configuring a Dispatcher.
type DispatcherOption func(*DispatcherOptions)

// WithDispatchPolicy sets the window normalisation policy.
func WithDispatchPolicy(p WindowPolicy) DispatcherOption {
	return func(o *DispatcherOptions) {
		o.Policy = p
	}
}

// WithFrameRecovery enables or disables frame recovery.
func WithFrameRecovery(enabled bool) DispatcherOption {
	return func(o *DispatcherOptions) {
		o.FrameRecovery = enabled
	}
}

// WithDispatchLogger sets the logger.
func WithDispatchLogger(l *slog.Logger) DispatcherOption {
	return func(o *DispatcherOptions) {
		o.Logger = l
	}
}

// DispatchResult counts what one notification caused.
type DispatchResult struct {
	// Matched is the number of targets whose root window matched.
	Matched int

	// Forced is the number of full re-renders requested.
	Forced int

	// Invalidated is the number of subtrees marked dirty.
	Invalidated int

	// Recovered is the number of times frame recovery re-dispatched.
	Recovered int

	// Dropped is the number of matches with no node to invalidate.
	Dropped int

	// Ignored is true when a root state change stopped dispatch.
	Ignored bool

	// Filtered is true when the notification was not considered at all.
	Filtered bool
}

func (r *DispatchResult) add(o DispatchResult) {
	r.Matched += o.Matched
	r.Forced += o.Forced
	r.Invalidated += o.Invalidated
	r.Recovered += o.Recovered
	r.Dropped += o.Dropped
}

// Dispatcher routes change notifications to the backends in a registry.
//
// Description:
//
//	Runs on the notification context. It never touches buffer contents;
//	it only looks nodes up and marks them dirty or forces an update.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Dispatcher struct {
	registry *Registry
	resolver provider.Resolver
	windows  provider.WindowSystem
	options  DispatcherOptions
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher for registry. The resolver is used
// only for frame recovery.
func NewDispatcher(registry *Registry, resolver provider.Resolver, windows provider.WindowSystem, opts ...DispatcherOption) *Dispatcher {
	options := DefaultDispatcherOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Policy == (WindowPolicy{}) {
		options.Policy = DefaultWindowPolicy()
	}
	return &Dispatcher{
		registry: registry,
		resolver: resolver,
		windows:  windows,
		options:  options,
		logger:   options.Logger,
	}
}

// HandleEvent is a provider.EventHandler.
func (d *Dispatcher) HandleEvent(ev provider.Event) {
	d.Dispatch(ev)
}

// Dispatch routes one notification.
//
// Description:
//
//	Only listened-for kinds reported against a window's client area with
//	a negative child id are considered. The window is normalised to its
//	document window, then every registered target whose root window is
//	that window or an ancestor of it is visited in registration order:
//
//	  - focus and alert force a full update of the target;
//	  - a state change on the target's root object stops dispatch;
//	  - a known object has its subtree invalidated;
//	  - a state change on an unknown object tries frame recovery once;
//	  - anything else is dropped for that target.
func (d *Dispatcher) Dispatch(ev provider.Event) DispatchResult {
	return d.dispatch(ev, 0)
}

func (d *Dispatcher) dispatch(ev provider.Event, depth int) DispatchResult {
	var result DispatchResult
	kind := ev.Kind.String()

	if ev.Kind == provider.EventUnknown || ev.ChildID >= 0 || ev.ObjectID != provider.ObjIDClient {
		result.Filtered = true
		countDispatch(kind, outcomeFiltered)
		return result
	}

	window := findRealWindow(d.windows, d.options.Policy, ev.Window)
	if window == 0 {
		d.logger.Debug("dispatch: invalid window", slog.Int64("window", int64(ev.Window)))
		result.Filtered = true
		countDispatch(kind, outcomeFiltered)
		return result
	}
	identity := storage.Identity{DocHandle: int64(window), ID: ev.ChildID}

	for _, target := range d.registry.Targets() {
		root := target.RootWindow()
		if root != window && !d.windows.IsChild(root, window) {
			continue
		}
		result.Matched++

		if ev.Kind.Forced() {
			target.ForceUpdate()
			result.Forced++
			countDispatch(kind, outcomeForced)
			continue
		}

		if ev.Kind == provider.EventStateChange && window == root && ev.ChildID == target.RootID() {
			result.Ignored = true
			countDispatch(kind, outcomeIgnored)
			return result
		}

		node := target.ControlFieldNodeWithIdentifier(identity)
		if node == nil && ev.Kind == provider.EventStateChange && d.options.FrameRecovery && depth == 0 {
			frameWindow, frameID, ok := d.documentFrame(window, ev.ChildID)
			if !ok {
				result.Dropped++
				countDispatch(kind, outcomeDropped)
				continue
			}
			d.logger.Debug("dispatch: recovered sub-document frame",
				slog.String("identity", identity.String()),
				slog.Int64("frame_window", int64(frameWindow)),
				slog.Int64("frame_id", frameID))
			result.Recovered++
			countDispatch(kind, outcomeRecovered)
			result.add(d.dispatch(provider.Event{
				Kind:     ev.Kind,
				Window:   frameWindow,
				ObjectID: provider.ObjIDClient,
				ChildID:  frameID,
			}, depth+1))
			continue
		}
		if node == nil {
			result.Dropped++
			countDispatch(kind, outcomeDropped)
			continue
		}

		target.InvalidateSubtree(node, kind)
		result.Invalidated++
		countDispatch(kind, outcomeInvalidated)
	}
	return result
}

// documentFrame finds the internal frame hosting the object childID in
// window through the node-child-of relation.
//
// Outputs:
//
//	provider.WindowHandle - The frame's window.
//	int64 - The frame's unique id, always negative.
//	bool - False when the relation is missing, points back at the object,
//	       or does not yield an internal frame with a negative id.
func (d *Dispatcher) documentFrame(window provider.WindowHandle, childID int64) (provider.WindowHandle, int64, bool) {
	obj, err := d.resolver.ObjectFromEvent(window, childID)
	if err != nil {
		return 0, 0, false
	}
	defer obj.Release()

	frame, err := obj.NavigateNodeChildOf()
	if err != nil {
		return 0, 0, false
	}
	defer frame.Release()

	if sameObject(obj, frame) {
		return 0, 0, false
	}
	if role, err := frame.Role(); err != nil || role != provider.RoleInternalFrame {
		return 0, 0, false
	}
	id, err := frame.UniqueID()
	if err != nil || id >= 0 {
		return 0, 0, false
	}
	frameWindow, err := frame.WindowHandle()
	if err != nil {
		return 0, 0, false
	}
	return frameWindow, id, true
}

// sameObject reports whether a and b have the same window and id.
func sameObject(a, b provider.Object) bool {
	aid, aerr := a.UniqueID()
	bid, berr := b.UniqueID()
	if aerr != nil || berr != nil || aid != bid {
		return false
	}
	aw, aerr := a.WindowHandle()
	bw, berr := b.WindowHandle()
	return aerr == nil && berr == nil && aw == bw
}
