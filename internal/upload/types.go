package upload

import (
	"github.com/majewsky/gg/option"

	"github.com/zynqcloud/assetvault/internal/assets"
	"github.com/zynqcloud/assetvault/internal/digest"
)

// Arg is the wire shape of spec.md §6's UploadingArg: one chunk of one
// path's upload. ChunkCount is implicit (ceil(Size/ChunkSize)) and is
// computed by the Assembler rather than trusted from the caller.
type Arg struct {
	Path    string
	Headers []assets.Header
	Size    uint64
	ChunkSize uint64
	Index   uint64
	Chunk   []byte

	// Digest is the client-declared digest, used either to short-circuit
	// the upload entirely (trust-declared-hash mode) or, in a future
	// extension, to verify the assembled result. Absent is represented with
	// option.None rather than a zero Digest, since "" is not a valid digest
	// anyway but an explicit optional reads better at call sites.
	Digest option.Option[digest.Digest]
}

// Limits bundles the validation ceilings spec.md §4.2/§6 names as policy
// knobs, so they can be supplied by internal/config instead of hardcoded.
type Limits struct {
	MaxFileBytes   uint64
	HeaderNameMax  int
	HeaderValueMax int
}
