package assets

import "github.com/pkg/errors"

// Sentinel errors per spec.md §7's error taxonomy. Checked with errors.Is at
// the HTTP boundary; never retried by the core itself.
var (
	// ErrNotFound is returned when a path has no AssetFile.
	ErrNotFound = errors.New("asset: not found")

	// ErrBadRange is returned when a downloadRange request falls outside
	// [0, size] for the resolved file — spec.md allows this failure mode as
	// an alternative to undefined behavior for out-of-bounds ranges.
	ErrBadRange = errors.New("asset: range out of bounds")
)
