// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command vbuf renders accessibility tree snapshots into document buffers.
//
// A snapshot is a YAML description of an accessibility tree: its windows,
// objects, text runs, hyperlinks and tables. vbuf walks the tree the way a
// screen reader's virtual buffer would and prints the resulting buffer.
//
// Usage:
//
//	vbuf render page.yaml            # node dump
//	vbuf render page.yaml --text     # flattened text
//	vbuf quirks page.yaml            # toolkit quirks in effect
//	vbuf watch page.yaml --text      # re-render on every save
//
// Observability:
//
//	vbuf watch page.yaml --metrics-addr 127.0.0.1:9464
//	vbuf render page.yaml --trace-stdout --log-level debug
package main

import (
	"context"
	"os"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}
