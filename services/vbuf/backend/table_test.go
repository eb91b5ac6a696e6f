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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/vbuf/services/vbuf/storage"
)

const modernTable = `
objects:
  - id: -1
    window: 10
    role: document
    children: [-2]
  - id: -2
    window: 10
    role: table
    name: "Prices"
    attributes: {layout-guess: "true"}
    table: {shape: modern, rows: 2, columns: 3}
    children: [-3, -4, -5]
  - id: -3
    window: 10
    role: columnheader
    text: "Item"
    cell: {row: 0, column: 0}
  - id: -4
    window: 10
    role: cell
    text: "x"
    cell: {row: 1, column: 1, column_span: 2, column_headers: [-3], row_headers: [-99]}
  - id: -5
    window: 10
    role: cell
    cell: {row: 1, column: 0}
`

func TestTable_Modern(t *testing.T) {
	b, _ := renderDoc(t, modernTable)

	table := nodeOf(t, b, -2)
	assert.Equal(t, "-2", attrOf(table, AttrTableID))
	assert.Equal(t, "1", attrOf(table, AttrTableLayout))
	assert.Equal(t, "2", attrOf(table, AttrTableRowCount))
	assert.Equal(t, "3", attrOf(table, AttrTableColumnCount))
	assert.True(t, table.IsBlock())

	children := table.Children()
	require.Len(t, children, 4)
	caption, ok := children[0].(*storage.TextFieldNode)
	require.True(t, ok)
	assert.Equal(t, "Prices", caption.Text())

	header := nodeOf(t, b, -3)
	assert.Equal(t, "-2", attrOf(header, AttrTableID))
	assert.Equal(t, "1", attrOf(header, AttrTableRowNumber))
	assert.Equal(t, "1", attrOf(header, AttrTableColumnNumber))
	_, ok = header.Attribute(AttrTableColumnsSpanned)
	assert.False(t, ok, "spans of 1 are not written")
	_, ok = header.Attribute(AttrTableColumnHeaderCells)
	assert.False(t, ok)

	cell := nodeOf(t, b, -4)
	assert.Equal(t, "-2", attrOf(cell, AttrTableID))
	assert.Equal(t, "2", attrOf(cell, AttrTableRowNumber))
	assert.Equal(t, "2", attrOf(cell, AttrTableColumnNumber))
	assert.Equal(t, "2", attrOf(cell, AttrTableColumnsSpanned))
	_, ok = cell.Attribute(AttrTableRowsSpanned)
	assert.False(t, ok)
	assert.Equal(t, "10,-3;", attrOf(cell, AttrTableColumnHeaderCells))
	_, ok = cell.Attribute(AttrTableRowHeaderCells)
	assert.False(t, ok, "unknown header objects are skipped")

	_, ok = nodeOf(t, b, -1).Attribute(AttrTableID)
	assert.False(t, ok, "nodes outside the table carry no table id")
}

func TestTable_CellRerenderKeepsTableInfo(t *testing.T) {
	b, p := renderDoc(t, modernTable)

	cell := nodeOf(t, b, -4)
	b.InvalidateSubtree(cell, "text_updated")
	res, err := b.Update(t.Context())
	require.NoError(t, err)
	assert.Equal(t, PassSubtree, res.Kind)
	assert.Zero(t, p.Outstanding())

	fresh := nodeOf(t, b, -4)
	assert.NotSame(t, cell, fresh)
	assert.Equal(t, "-2", attrOf(fresh, AttrTableID))
	assert.Equal(t, "2", attrOf(fresh, AttrTableRowNumber))
	assert.Equal(t, "2", attrOf(fresh, AttrTableColumnNumber))
	assert.Equal(t, "2", attrOf(fresh, AttrTableColumnsSpanned))
	assert.Equal(t, "10,-3;", attrOf(fresh, AttrTableColumnHeaderCells))
	assert.Equal(t, []string{"x"}, leafTexts(fresh))
}

func TestTable_TableRerenderOpensOwnContext(t *testing.T) {
	b, p := renderDoc(t, modernTable)

	b.InvalidateSubtree(nodeOf(t, b, -2), "reorder")
	_, err := b.Update(t.Context())
	require.NoError(t, err)
	assert.Zero(t, p.Outstanding())

	assert.Equal(t, "3", attrOf(nodeOf(t, b, -2), AttrTableColumnCount))
	assert.Equal(t, "-2", attrOf(nodeOf(t, b, -5), AttrTableID))
	_, ok := nodeOf(t, b, -1).Attribute(AttrTableID)
	assert.False(t, ok)
}

func TestTable_EmptyCellFilled(t *testing.T) {
	b, _ := renderDoc(t, modernTable)

	empty := nodeOf(t, b, -5)
	assert.Equal(t, []string{" "}, leafTexts(empty))
	assert.False(t, empty.IsBlock(), "space-filled cells are inline")
	assert.Equal(t, "1", attrOf(empty, AttrTableColumnNumber))
}

func TestTable_HeadersDisabledByQuirk(t *testing.T) {
	b, _ := renderDoc(t, "toolkit: {name: Gecko, version: \"1.9.2.5\"}\n"+modernTable)

	cell := nodeOf(t, b, -4)
	_, ok := cell.Attribute(AttrTableColumnHeaderCells)
	assert.False(t, ok)
	assert.Equal(t, "2", attrOf(cell, AttrTableColumnsSpanned), "extents still written")
}

func TestTable_Legacy(t *testing.T) {
	b, _ := renderDoc(t, `
objects:
  - id: -1
    window: 10
    role: document
    children: [-2]
  - id: -2
    window: 10
    role: table
    table:
      shape: legacy
      rows: 4
      columns: 3
      cells:
        5: {row: 1, column: 2, row_span: 3}
        7: {row: 3, column: 0}
    children: [-3, -4, -6]
  - id: -3
    window: 10
    role: cell
    attributes: {table-cell-index: "5"}
    text: "y"
  - id: -4
    window: 10
    role: row
    children: [-5]
  - id: -5
    window: 10
    role: cell
    attributes: {table-cell-index: "junk"}
    text: "z"
  - id: -6
    window: 10
    role: cell
    attributes: {table-cell-index: " 7th"}
    text: "w"
`)
	table := nodeOf(t, b, -2)
	assert.Equal(t, "4", attrOf(table, AttrTableRowCount))
	assert.Equal(t, "3", attrOf(table, AttrTableColumnCount))
	_, ok := table.Attribute(AttrTableLayout)
	assert.False(t, ok)

	cell := nodeOf(t, b, -3)
	assert.Equal(t, "2", attrOf(cell, AttrTableRowNumber))
	assert.Equal(t, "3", attrOf(cell, AttrTableColumnNumber))
	assert.Equal(t, "3", attrOf(cell, AttrTableRowsSpanned))

	row := nodeOf(t, b, -4)
	assert.Equal(t, "-2", attrOf(row, AttrTableID), "every node inside a table carries its id")

	// An unparsable index falls back to cell 0, which is not declared.
	junk := nodeOf(t, b, -5)
	assert.Equal(t, "-2", attrOf(junk, AttrTableID))
	_, ok = junk.Attribute(AttrTableRowNumber)
	assert.False(t, ok)

	trailing := nodeOf(t, b, -6)
	assert.Equal(t, "4", attrOf(trailing, AttrTableRowNumber), "digits before trailing text are the index")
	assert.Equal(t, "1", attrOf(trailing, AttrTableColumnNumber))
}

func TestParseCellIndex(t *testing.T) {
	tests := map[string]int{
		"5":     5,
		"12abc": 12,
		"  7th": 7,
		"+3":    3,
		"-4x":   -4,
		"junk":  0,
		"":      0,
		"-":     0,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseCellIndex(in), "%q", in)
	}
	assert.Zero(t, parseCellIndex("99999999999999999999"), "overflow")
}

func TestTable_NestedTableInCell(t *testing.T) {
	b, _ := renderDoc(t, `
objects:
  - id: -1
    window: 10
    role: document
    children: [-2]
  - id: -2
    window: 10
    role: table
    table: {shape: modern, rows: 1, columns: 1}
    children: [-3]
  - id: -3
    window: 10
    role: cell
    cell: {row: 0, column: 0}
    children: [-4]
  - id: -4
    window: 10
    role: paragraph
    text: "inside"
`)
	inner := nodeOf(t, b, -4)
	_, ok := inner.Attribute(AttrTableID)
	assert.False(t, ok, "the table context ends at the cell")
	assert.Equal(t, "-2", attrOf(nodeOf(t, b, -3), AttrTableID))

	b.InvalidateSubtree(inner, "text_updated")
	_, err := b.Update(t.Context())
	require.NoError(t, err)
	_, ok = nodeOf(t, b, -4).Attribute(AttrTableID)
	assert.False(t, ok, "re-rendered cell content stays outside the table context")
}
