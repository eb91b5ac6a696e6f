// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package provider defines the contract of a remote accessibility provider.
//
// A provider exposes a graph of accessible objects owned by a document
// engine running elsewhere (another process, another thread, a recorded
// snapshot). Every query may fail independently; callers treat a failed
// query as "absent" and carry on.
//
// # Ownership Model
//
// Every Object and every capability obtained from an Object (Text,
// Hypertext, Table, Table2, TableCell, Application) is a handle that the
// caller owns and MUST Release exactly once. Objects returned inside slices
// (Children, header cells) are owned individually.
//
// # Text Offsets
//
// Text offsets are measured in characters (runes), not bytes.
package provider

// Releaser is implemented by every handle handed out by a provider.
type Releaser interface {
	// Release gives the handle back to the provider.
	Release()
}

// WindowHandle identifies a host window.
type WindowHandle int64

// Rect is the bounding box of an object in screen coordinates.
type Rect struct {
	Left   int
	Top    int
	Width  int
	Height int
}

// Locale is the language information of an object.
type Locale struct {
	Language string
	Country  string
	Variant  string
}

// Tag returns "language-country", "language", or "" when no language is set.
func (l Locale) Tag() string {
	if l.Language == "" {
		return ""
	}
	if l.Country == "" {
		return l.Language
	}
	return l.Language + "-" + l.Country
}

// RoleValue is the legacy role of an object, which is either numeric or a
// free-form string.
type RoleValue struct {
	Code Role
	Name string
}

// CellExtents describes the position and span of a table cell.
//
// Row and Column are 0-based.
type CellExtents struct {
	Row        int
	Column     int
	RowSpan    int
	ColumnSpan int
	Selected   bool
}

// AttributeRun is a range of text sharing one set of formatting attributes.
//
// Start is inclusive, End is exclusive. Attributes is the raw
// "key:value;" encoded string; use ParseAttributes to decode it.
type AttributeRun struct {
	Start      int
	End        int
	Attributes string
}

// Object is one remote accessible object.
type Object interface {
	Releaser

	// WindowHandle returns the window the object lives in.
	WindowHandle() (WindowHandle, error)

	// UniqueID returns an identifier unique within the object's window.
	UniqueID() (int64, error)

	// Role returns the extended role. RoleUnknown means the legacy role
	// should be consulted.
	Role() (Role, error)

	// LegacyRole returns the legacy (numeric or string) role.
	LegacyRole() (RoleValue, error)

	// States returns the legacy state bit-set.
	States() (State, error)

	// ExtendedStates returns the extended state bit-set.
	ExtendedStates() (ExtState, error)

	KeyboardShortcut() (string, error)

	// Attributes returns the raw "key:value;" object attribute string.
	Attributes() (string, error)

	DefaultAction() (string, error)
	Name() (string, error)
	Description() (string, error)
	Value() (string, error)
	Locale() (Locale, error)
	Location() (Rect, error)

	ChildCount() (int, error)

	// Children returns the child objects in order. Each child must be
	// released by the caller.
	Children() ([]Object, error)

	Text() (Text, error)
	Hypertext() (Hypertext, error)

	// Table returns the legacy table capability.
	Table() (Table, error)

	// Table2 returns the modern table capability.
	Table2() (Table2, error)

	TableCell() (TableCell, error)

	// Application returns toolkit information for the whole document.
	Application() (Application, error)

	// NavigateNodeChildOf follows the structural "node child of" relation,
	// which yields the frame hosting a sub-document.
	NavigateNodeChildOf() (Object, error)
}

// Text is the text capability of an object.
type Text interface {
	Releaser

	// Content returns the full text, including embedded-object markers.
	Content() (string, error)

	// AttributeRun returns the attribute run containing offset.
	AttributeRun(offset int) (AttributeRun, error)
}

// Hypertext resolves embedded-object markers to child objects.
type Hypertext interface {
	Releaser

	// HyperlinkIndex maps a character offset holding a marker to a link index.
	HyperlinkIndex(offset int) (int, error)

	// Hyperlink returns the object embedded at link index. The caller
	// releases it.
	Hyperlink(index int) (Object, error)
}

// TableCounts is shared by both table capability shapes.
type TableCounts interface {
	RowCount() (int, error)
	ColumnCount() (int, error)
}

// Table is the legacy table capability. Cells are addressed by a flat
// index carried in their "table-cell-index" object attribute.
type Table interface {
	Releaser
	TableCounts

	CellExtentsAt(index int) (CellExtents, error)
}

// Table2 is the modern table capability. Cell geometry comes from the
// cells themselves through TableCell.
type Table2 interface {
	Releaser
	TableCounts
}

// TableCell is the modern cell capability.
type TableCell interface {
	Releaser

	Extents() (CellExtents, error)

	// ColumnHeaderCells returns header objects; the caller releases them.
	ColumnHeaderCells() ([]Object, error)

	// RowHeaderCells returns header objects; the caller releases them.
	RowHeaderCells() ([]Object, error)
}

// Application describes the toolkit that produced the document.
type Application interface {
	Releaser

	ToolkitName() (string, error)
	ToolkitVersion() (string, error)
}

// Resolver turns a window and child id reported by the host into an Object.
type Resolver interface {
	ObjectFromEvent(window WindowHandle, childID int64) (Object, error)
}

// WindowSystem answers questions about host windows.
type WindowSystem interface {
	IsWindow(w WindowHandle) bool

	// ClassName returns the window class of w.
	ClassName(w WindowHandle) (string, error)

	// Parent returns the parent window of w, or 0 at the top.
	Parent(w WindowHandle) WindowHandle

	// IsChild reports whether child is a descendant of parent.
	IsChild(parent, child WindowHandle) bool
}
