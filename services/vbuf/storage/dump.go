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
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Dump writes an indented, line-per-node description of the buffer.
//
// Control nodes print as
//
//	control 101,-1 block key="value" ...
//
// and text leaves as
//
//	text "content" key="value" ...
//
// Two buffers built from the same input produce identical dumps.
func (b *Buffer) Dump(w io.Writer) error {
	root := b.Root()
	if root == nil {
		return nil
	}

	bw := bufio.NewWriter(w)
	Walk(root, func(n Node, depth int) bool {
		bw.WriteString(strings.Repeat("  ", depth))
		switch node := n.(type) {
		case *ControlFieldNode:
			layout := "inline"
			if node.isBlock {
				layout = "block"
			}
			fmt.Fprintf(bw, "control %s %s", node.identity, layout)
		case *TextFieldNode:
			fmt.Fprintf(bw, "text %q", node.text)
		}
		for _, a := range n.Attributes() {
			fmt.Fprintf(bw, " %s=%q", a.Key, a.Value)
		}
		bw.WriteByte('\n')
		return true
	})
	return bw.Flush()
}

// String returns the Dump output.
func (b *Buffer) String() string {
	var sb strings.Builder
	_ = b.Dump(&sb)
	return sb.String()
}
