// Package assets implements the content-addressed Asset Store: a keyed
// mapping from digest to immutable payload, a mapping from path to
// path-metadata, and a reverse index from digest to the set of paths
// referencing it.
package assets

import (
	"time"

	"github.com/zynqcloud/assetvault/internal/digest"
)

// Header is a single (name, value) response header pair, kept as an ordered
// list on AssetFile per spec.md's "ordered list of (header-name,
// header-value) pairs" — a map would lose the order callers supplied.
type Header struct {
	Name  string
	Value string
}

// AssetFile is the path-metadata record spec.md calls AssetFile: exactly one
// exists per path, created on first upload and refreshed in place on
// re-upload.
type AssetFile struct {
	Path     string
	Created  time.Time
	Modified time.Time
	Headers  []Header
	Digest   digest.Digest
	Size     uint64
}

// QueryFile is the outward projection of AssetFile used only by List,
// joining in the size and hex digest a caller needs without exposing the
// payload itself.
type QueryFile struct {
	Path     string
	Created  time.Time
	Modified time.Time
	Headers  []Header
	Digest   digest.Digest
	HexDigest string
	Size     uint64
}
