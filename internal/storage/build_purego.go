//go:build purego || !sqlite_vec

package storage

// Pure Go build. No C toolchain is needed and cosine similarity is
// computed in Go over the stored vectors of the searched collection.
//
//   CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
