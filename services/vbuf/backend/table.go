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
	"strconv"
	"strings"

	"github.com/AleutianAI/vbuf/services/vbuf/provider"
	"github.com/AleutianAI/vbuf/services/vbuf/storage"
)

// Table attribute keys.
const (
	AttrTableID                = "table-id"
	AttrTableLayout            = "table-layout"
	AttrTableRowCount          = "table-rowcount"
	AttrTableColumnCount       = "table-columncount"
	AttrTableRowNumber         = "table-rownumber"
	AttrTableColumnNumber      = "table-columnnumber"
	AttrTableRowsSpanned       = "table-rowsspanned"
	AttrTableColumnsSpanned    = "table-columnsspanned"
	AttrTableColumnHeaderCells = "table-columnheadercells"
	AttrTableRowHeaderCells    = "table-rowheadercells"

	// objectAttrCellIndex and objectAttrLayoutGuess are provider object
	// attributes, not buffer attributes.
	objectAttrCellIndex   = "table-cell-index"
	objectAttrLayoutGuess = "layout-guess"
)

// tableShape tags which table capability a TableContext carries.
type tableShape int

const (
	tableNone tableShape = iota
	tableLegacy
	tableModern
)

// TableContext is the enclosing-table state threaded through a render.
//
// The zero value means "not inside a table". A context is opened by the
// first object exposing a table capability and cleared once recursion
// enters a cell.
type TableContext struct {
	shape  tableShape
	id     int64
	legacy provider.Table
	modern provider.Table2
}

// Active reports whether a table is open.
func (tc TableContext) Active() bool { return tc.shape != tableNone }

// ID returns the unique id of the enclosing table.
func (tc TableContext) ID() int64 { return tc.id }

// Legacy reports whether the enclosing table uses the legacy shape.
func (tc TableContext) Legacy() bool { return tc.shape == tableLegacy }

// counts returns the capability that answers row and column counts.
func (tc TableContext) counts() provider.TableCounts {
	switch tc.shape {
	case tableLegacy:
		return tc.legacy
	case tableModern:
		return tc.modern
	default:
		return nil
	}
}

// openTable opens a table context for obj if it exposes either table
// capability, preferring the modern shape. The capability is held by sc.
func openTable(obj provider.Object, id int64, sc *scope) TableContext {
	if t2, err := obj.Table2(); err == nil {
		sc.hold(t2)
		return TableContext{shape: tableModern, id: id, modern: t2}
	}
	if t, err := obj.Table(); err == nil {
		sc.hold(t)
		return TableContext{shape: tableLegacy, id: id, legacy: t}
	}
	return TableContext{}
}

// addTableCounts records the row and column counts of a table.
func addTableCounts(node *storage.ControlFieldNode, tc TableContext) {
	counts := tc.counts()
	if counts == nil {
		return
	}
	if rows, err := counts.RowCount(); err == nil {
		node.AddAttribute(AttrTableRowCount, strconv.Itoa(rows))
	}
	if cols, err := counts.ColumnCount(); err == nil {
		node.AddAttribute(AttrTableColumnCount, strconv.Itoa(cols))
	}
}

// addCellExtents records 1-based position and spans greater than one.
func addCellExtents(node *storage.ControlFieldNode, ext provider.CellExtents) {
	node.AddAttribute(AttrTableRowNumber, strconv.Itoa(ext.Row+1))
	node.AddAttribute(AttrTableColumnNumber, strconv.Itoa(ext.Column+1))
	if ext.ColumnSpan > 1 {
		node.AddAttribute(AttrTableColumnsSpanned, strconv.Itoa(ext.ColumnSpan))
	}
	if ext.RowSpan > 1 {
		node.AddAttribute(AttrTableRowsSpanned, strconv.Itoa(ext.RowSpan))
	}
}

// addLegacyCellInfo looks the cell up by its flat index in the legacy
// table.
func addLegacyCellInfo(node *storage.ControlFieldNode, table provider.Table, index string) {
	if ext, err := table.CellExtentsAt(parseCellIndex(index)); err == nil {
		addCellExtents(node, ext)
	}
}

// parseCellIndex reads leading blanks, an optional sign and then digits.
// Trailing text is ignored, and an index with no digits reads as 0.
func parseCellIndex(s string) int {
	s = strings.TrimLeft(s, " \t\r\n")
	negative := false
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		negative = true
		s = rest
	} else {
		s = strings.TrimPrefix(s, "+")
	}
	n, err := strconv.Atoi(leadingDigits(s))
	if err != nil {
		return 0
	}
	if negative {
		return -n
	}
	return n
}

// addModernCellInfo records geometry from the cell itself and, unless
// suppressed, its header associations.
func (r *Renderer) addModernCellInfo(node *storage.ControlFieldNode, cell provider.TableCell) {
	if ext, err := cell.Extents(); err == nil {
		addCellExtents(node, ext)
	}
	if r.opts.Quirks.DisableTableHeaders {
		return
	}
	r.addHeaderCells(node, AttrTableColumnHeaderCells, cell.ColumnHeaderCells)
	r.addHeaderCells(node, AttrTableRowHeaderCells, cell.RowHeaderCells)
}

// addHeaderCells writes "doc,id;" for every header cell whose identity
// resolves. Nothing is written when none do.
func (r *Renderer) addHeaderCells(node *storage.ControlFieldNode, key string, headers func() ([]provider.Object, error)) {
	cells, err := headers()
	if err != nil {
		return
	}

	var sb strings.Builder
	for _, header := range cells {
		if identity, ok := r.identityOf(header); ok {
			sb.WriteString(identity.String())
			sb.WriteByte(';')
		}
		header.Release()
	}
	if sb.Len() > 0 {
		node.AddAttribute(key, sb.String())
	}
}
