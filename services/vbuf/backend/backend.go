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
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/vbuf/services/vbuf/provider"
	"github.com/AleutianAI/vbuf/services/vbuf/storage"
)

// PassKind is the kind of render pass Update performed.
type PassKind int

const (
	// PassNone means there was nothing to do.
	PassNone PassKind = iota

	// PassFull means the whole document was rendered.
	PassFull

	// PassSubtree means dirty subtrees were re-rendered.
	PassSubtree
)

// String returns the string representation of the pass kind.
func (k PassKind) String() string {
	switch k {
	case PassFull:
		return "full"
	case PassSubtree:
		return "subtree"
	default:
		return "none"
	}
}

// UpdateResult describes one render pass.
type UpdateResult struct {
	// Kind is what the pass did.
	Kind PassKind

	// Stats are the renderer counters for the pass.
	Stats RenderStats

	// Subtrees is the number of dirty subtrees re-rendered.
	Subtrees int

	// Skipped is the number of dirty nodes no longer in the buffer.
	Skipped int

	// Duration is the wall time of the pass.
	Duration time.Duration
}

// Options configures a Backend.
type Options struct {
	// Policy normalises object windows.
	Policy WindowPolicy

	// MinUpdateInterval is the minimum time between two passes started by
	// Run. Zero means no throttling.
	MinUpdateInterval time.Duration

	// Registry is the registry Run registers with.
	// Default: DefaultRegistry
	Registry *Registry

	// Logger is the structured logger.
	// Default: slog.Default()
	Logger *slog.Logger

	// OnUpdate is called after every pass that did work.
	OnUpdate func(*Backend, UpdateResult)
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Policy:   DefaultWindowPolicy(),
		Registry: DefaultRegistry,
		Logger:   slog.Default(),
	}
}

// Option is a functional option for configuring a Backend.
type Option func(*Options)

// WithWindowPolicy sets the window normalisation policy.
func WithWindowPolicy(p WindowPolicy) Option {
	return func(o *Options) {
		o.Policy = p
	}
}

// WithMinUpdateInterval throttles passes started by Run.
func WithMinUpdateInterval(d time.Duration) Option {
	return func(o *Options) {
		o.MinUpdateInterval = d
	}
}

// WithRegistry sets the registry Run registers with.
func WithRegistry(r *Registry) Option {
	return func(o *Options) {
		o.Registry = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithUpdateCallback sets a function called after every pass that did work.
func WithUpdateCallback(fn func(*Backend, UpdateResult)) Option {
	return func(o *Options) {
		o.OnUpdate = fn
	}
}

// Backend keeps one document buffer in step with a remote document.
//
// Description:
//
//	The backend is the render context for one document root. Update runs
//	a render pass; Run drives passes from invalidation wake-ups until its
//	context ends. The notification context only calls InvalidateSubtree,
//	ForceUpdate and the lookup methods.
//
// Thread Safety:
//
//	Safe for concurrent use. Render passes are serialised.
type Backend struct {
	id         string
	rootWindow provider.WindowHandle
	rootID     int64
	resolver   provider.Resolver
	windows    provider.WindowSystem
	options    Options
	logger     *slog.Logger

	buffer  *storage.Buffer
	dirty   *DirtyTracker
	wake    chan struct{}
	limiter *rate.Limiter

	// renderMu serialises passes and guards readers that walk the tree.
	renderMu sync.Mutex

	quirksMu sync.RWMutex
	quirks   Quirks
}

// New creates a backend for the document whose root object is rootID in
// rootWindow. Nothing is rendered until Update or Run is called.
//
// Example:
//
//	b := backend.New(101, -1, p, p, backend.WithLogger(logger))
//	if _, err := b.Update(ctx); err != nil {
//	    return err
//	}
func New(rootWindow provider.WindowHandle, rootID int64, resolver provider.Resolver, windows provider.WindowSystem, opts ...Option) *Backend {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Registry == nil {
		options.Registry = DefaultRegistry
	}
	if options.Policy == (WindowPolicy{}) {
		options.Policy = DefaultWindowPolicy()
	}

	limit := rate.Inf
	if options.MinUpdateInterval > 0 {
		limit = rate.Every(options.MinUpdateInterval)
	}

	id := uuid.NewString()
	return &Backend{
		id:         id,
		rootWindow: rootWindow,
		rootID:     rootID,
		resolver:   resolver,
		windows:    windows,
		options:    options,
		logger: options.Logger.With(
			slog.String("backend_id", id),
			slog.Int64("root_window", int64(rootWindow)),
			slog.Int64("root_id", rootID),
		),
		buffer:  storage.New(),
		dirty:   NewDirtyTracker(),
		wake:    make(chan struct{}, 1),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// ID returns the backend's instance id.
func (b *Backend) ID() string { return b.id }

// RootWindow returns the document root window.
func (b *Backend) RootWindow() provider.WindowHandle { return b.rootWindow }

// RootID returns the document root object id.
func (b *Backend) RootID() int64 { return b.rootID }

// Quirks returns the quirks detected on the last full render.
func (b *Backend) Quirks() Quirks {
	b.quirksMu.RLock()
	defer b.quirksMu.RUnlock()
	return b.quirks
}

// ControlFieldNodeWithIdentifier looks a node up by identity. Safe from
// the notification context.
func (b *Backend) ControlFieldNodeWithIdentifier(identity storage.Identity) *storage.ControlFieldNode {
	return b.buffer.ControlFieldNodeWithIdentifier(identity)
}

// InvalidateSubtree marks node for re-rendering on the next pass. source
// names what changed, usually an event kind. Nodes that are not part of
// this backend's buffer are ignored.
func (b *Backend) InvalidateSubtree(node *storage.ControlFieldNode, source string) {
	if !b.buffer.IsNodeInBuffer(node) {
		return
	}
	b.dirty.MarkDirty(node, source)
	b.signal()
}

// ForceUpdate requests a full re-render on the next pass.
func (b *Backend) ForceUpdate() {
	b.dirty.MarkForced()
	b.signal()
}

func (b *Backend) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Pending reports whether a pass has work to do.
func (b *Backend) Pending() bool {
	return b.dirty.HasDirty()
}

// View calls fn with the buffer while no pass is running.
func (b *Backend) View(fn func(*storage.Buffer)) {
	b.renderMu.Lock()
	defer b.renderMu.Unlock()
	fn(b.buffer)
}

// Update runs one render pass.
//
// Description:
//
//	Performs a full render when one was forced or nothing is rendered
//	yet; quirks are detected again before it. Otherwise re-renders each
//	dirty subtree still in the buffer, in the order it was marked. A
//	subtree is removed and its object rendered again at the same position
//	inside the table context its ancestors established.
//
// Outputs:
//
//	UpdateResult - What the pass did.
//	error - ErrRootUnavailable when a full render cannot resolve the root
//	        object or its identity. The previous buffer contents are kept
//	        in that case.
func (b *Backend) Update(ctx context.Context) (UpdateResult, error) {
	b.renderMu.Lock()
	defer b.renderMu.Unlock()

	start := time.Now()
	forced, entries := b.dirty.Drain()

	ctx, span := startPassSpan(ctx, b.id, len(entries))
	defer span.End()

	var (
		result UpdateResult
		err    error
	)
	switch {
	case forced || b.buffer.Root() == nil:
		result, err = b.renderFull()
	case len(entries) > 0:
		result, err = b.renderDirty(entries)
	default:
		return result, nil
	}
	result.Duration = time.Since(start)

	setPassSpanResult(span, result)
	recordPassMetrics(ctx, result.Kind, result.Duration, result.Stats, err == nil)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		b.logger.WarnContext(ctx, "render pass failed",
			slog.String("kind", result.Kind.String()),
			slog.String("error", err.Error()))
		return result, err
	}

	b.logger.DebugContext(ctx, "render pass complete",
		slog.String("kind", result.Kind.String()),
		slog.Int("controls", result.Stats.Controls),
		slog.Int("texts", result.Stats.Texts),
		slog.Int("subtrees", result.Subtrees),
		slog.Int("skipped", result.Skipped),
		slog.Duration("duration", result.Duration))
	if b.options.OnUpdate != nil {
		b.options.OnUpdate(b, result)
	}
	return result, nil
}

func (b *Backend) newRenderer() *Renderer {
	return NewRenderer(b.buffer, b.windows, RendererOptions{
		Policy: b.options.Policy,
		Quirks: b.Quirks(),
		Logger: b.logger,
	})
}

func (b *Backend) renderFull() (UpdateResult, error) {
	result := UpdateResult{Kind: PassFull}

	root, err := b.resolver.ObjectFromEvent(b.rootWindow, b.rootID)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrRootUnavailable, err)
	}
	defer root.Release()

	quirks := DetectQuirks(root)
	b.quirksMu.Lock()
	b.quirks = quirks
	b.quirksMu.Unlock()

	r := b.newRenderer()
	if _, ok := r.identityOf(root); !ok {
		return result, fmt.Errorf("%w: root identity unresolved", ErrRootUnavailable)
	}

	b.buffer.Clear()
	node := r.Render(root, nil, nil, TableContext{})
	result.Stats = r.Stats()
	if node == nil {
		return result, fmt.Errorf("%w: root object did not render", ErrRootUnavailable)
	}
	return result, nil
}

func (b *Backend) renderDirty(entries []DirtyEntry) (UpdateResult, error) {
	result := UpdateResult{Kind: PassSubtree}
	r := b.newRenderer()

	for _, entry := range entries {
		node := entry.Node
		if !b.buffer.IsNodeInBuffer(node) {
			// An ancestor was re-rendered earlier in this pass.
			result.Skipped++
			continue
		}
		if node == b.buffer.Root() {
			full, err := b.renderFull()
			full.Subtrees = result.Subtrees + 1
			full.Skipped = result.Skipped
			return full, err
		}
		b.logger.Debug("re-rendering subtree",
			slog.String("identity", node.Identity().String()),
			slog.String("source", entry.Source),
			slog.Duration("waited", time.Since(entry.MarkedAt)))
		b.renderSubtree(r, node)
		result.Subtrees++
	}
	result.Stats = r.Stats()
	return result, nil
}

// renderSubtree replaces node with a fresh rendering of its object under
// the table context it was first rendered in. When the object is gone
// the subtree is simply dropped.
func (b *Backend) renderSubtree(r *Renderer, node *storage.ControlFieldNode) {
	identity := node.Identity()

	sc := &scope{}
	defer sc.release()
	tc := b.enclosingTable(node, sc)

	parent, previous, err := b.buffer.RemoveSubtree(node)
	if err != nil {
		return
	}

	obj, err := b.resolver.ObjectFromEvent(provider.WindowHandle(identity.DocHandle), identity.ID)
	if err != nil {
		b.logger.Debug("subtree object gone",
			slog.String("identity", identity.String()),
			slog.String("error", err.Error()))
		return
	}
	defer obj.Release()

	r.Render(obj, parent, previous, tc)
}

// enclosingTable rebuilds the table context node inherited. The walk stops
// at the first ancestor that is a cell, since cells clear the context for
// their content, or at the table itself.
func (b *Backend) enclosingTable(node *storage.ControlFieldNode, sc *scope) TableContext {
	for a := node.Parent(); a != nil; a = a.Parent() {
		value, ok := a.Attribute(AttrTableID)
		if !ok {
			return TableContext{}
		}
		identity := a.Identity()
		if value == strconv.FormatInt(identity.ID, 10) {
			obj, err := b.resolver.ObjectFromEvent(provider.WindowHandle(identity.DocHandle), identity.ID)
			if err != nil {
				return TableContext{}
			}
			sc.hold(obj)
			return openTable(obj, identity.ID, sc)
		}
		if isCellNode(a) {
			return TableContext{}
		}
	}
	return TableContext{}
}

// isCellNode reports whether a rendered node carries cell information.
func isCellNode(n *storage.ControlFieldNode) bool {
	if _, ok := n.Attribute(AttrTableRowNumber); ok {
		return true
	}
	if _, ok := n.Attribute(objectAttributeStart + objectAttrCellIndex); ok {
		return true
	}
	role, _ := n.Attribute(AttrRole)
	switch role {
	case strconv.Itoa(int(provider.RoleCell)),
		strconv.Itoa(int(provider.RoleColumnHeader)),
		strconv.Itoa(int(provider.RoleRowHeader)):
		return true
	}
	return false
}

// Run registers the backend, renders the document, and re-renders on
// every invalidation until ctx ends. It always unregisters before
// returning.
//
// Outputs:
//
//	error - ErrAlreadyRegistered; nil after cancellation.
func (b *Backend) Run(ctx context.Context) error {
	registry := b.options.Registry
	if err := registry.Register(b); err != nil {
		return err
	}
	defer func() {
		_ = registry.Unregister(b)
	}()

	b.logger.Info("backend started")
	defer b.logger.Info("backend stopped")

	if _, err := b.Update(ctx); err != nil {
		b.logger.Warn("initial render failed", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.wake:
			if err := b.limiter.Wait(ctx); err != nil {
				return nil
			}
			_, _ = b.Update(ctx)
		}
	}
}
