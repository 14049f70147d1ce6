// Package upload implements the Upload Assembler: a keyed mapping from path
// to a partially-filled buffer plus a per-chunk presence bitmap, per
// spec.md §4.2.
package upload

import (
	"strings"
	"sync"
	"time"

	"github.com/majewsky/gg/option"
	"github.com/majewsky/gg/options"

	"github.com/zynqcloud/assetvault/internal/assets"
	"github.com/zynqcloud/assetvault/internal/digest"
)

// session is the Assembler's private representation of spec.md's
// UploadingFile: in-progress upload state owned exclusively by the
// Assembler until completion, when it is hashed and handed to the Asset
// Store.
type session struct {
	path      string
	headers   []assets.Header
	size      uint64
	chunkSize uint64
	chunks    uint64
	buffer    []byte
	present   []bool
	declared  option.Option[digest.Digest]
	touched   time.Time
}

func (s *session) remaining() int {
	n := 0
	for _, p := range s.present {
		if !p {
			n++
		}
	}
	return n
}

// Assembler is the Upload Assembler of spec.md §4.2.
type Assembler struct {
	mu       sync.Mutex
	sessions map[string]*session

	// TrustDeclaredHash mirrors spec.md §4.2's per-store configuration: when
	// true, a chunk request that declares a digest already present in the
	// Asset Store skips accumulation entirely.
	TrustDeclaredHash bool

	Limits Limits

	// OnComplete, if set, is called with the path of every session that
	// finishes assembly and is handed to the Asset Store — the hook
	// internal/handler wires to its SessionsComplete counter without this
	// package importing internal/handler.
	OnComplete func(path string)

	now func() time.Time
}

// New returns an empty Assembler configured with limits and trustDeclaredHash.
func New(limits Limits, trustDeclaredHash bool) *Assembler {
	return &Assembler{
		sessions:          make(map[string]*session),
		TrustDeclaredHash: trustDeclaredHash,
		Limits:            limits,
		now:               time.Now,
	}
}

// Put implements spec.md §4.2's put(UploadingArg) algorithm, steps 1-6,
// handing the assembled file to store on completion. Returns ErrBadRequest
// on any validation failure; every check runs before step 4, so state is
// left unchanged in that case. A stale-session discard (step 4) happens only
// for a request that passed validation, and is not itself an error.
func (a *Assembler) Put(store *assets.Store, arg Arg) error {
	// ── Step 1: validate path and headers ───────────────────────────────
	if arg.Path == "" || !strings.HasPrefix(arg.Path, "/") {
		return ErrBadRequest
	}
	for _, h := range arg.Headers {
		if len(h.Name) > a.Limits.HeaderNameMax || len(h.Value) > a.Limits.HeaderValueMax {
			return ErrBadRequest
		}
	}
	if d, ok := arg.Digest.Unpack(); ok {
		if _, err := digest.Parse(string(d)); err != nil {
			return ErrBadRequest
		}
	}

	// ── Step 2: fast-path dedup ──────────────────────────────────────────
	if a.TrustDeclaredHash {
		if d, ok := arg.Digest.Unpack(); ok && store.BindExisting(arg.Path, arg.Headers, d) {
			return nil
		}
	}

	// ── Step 3: validate size/chunking/data ──────────────────────────────
	if arg.Size == 0 || arg.Size > a.Limits.MaxFileBytes {
		return ErrBadRequest
	}
	if arg.ChunkSize == 0 {
		return ErrBadRequest
	}
	chunks := (arg.Size + arg.ChunkSize - 1) / arg.ChunkSize
	if arg.Index >= chunks {
		return ErrBadRequest
	}

	isLast := arg.Index == chunks-1
	exactMultiple := arg.Size%arg.ChunkSize == 0
	var wantLen uint64
	if !isLast || exactMultiple {
		wantLen = arg.ChunkSize
	} else {
		wantLen = arg.Size % arg.ChunkSize
	}
	if uint64(len(arg.Chunk)) != wantLen {
		return ErrBadRequest
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// ── Step 4: reconcile in-progress entry ──────────────────────────────
	s, ok := a.sessions[arg.Path]
	if ok && (s.size != arg.Size || uint64(len(s.buffer)) != arg.Size ||
		s.chunkSize != arg.ChunkSize || s.chunks != chunks || uint64(len(s.present)) != chunks) {
		ok = false
	}
	if !ok {
		s = &session{
			path:      arg.Path,
			size:      arg.Size,
			chunkSize: arg.ChunkSize,
			chunks:    chunks,
			buffer:    make([]byte, arg.Size),
			present:   make([]bool, chunks),
		}
		a.sessions[arg.Path] = s
	}
	s.headers = arg.Headers
	s.declared = arg.Digest
	s.touched = a.now()

	// ── Step 5: splice chunk ─────────────────────────────────────────────
	offset := arg.Index * arg.ChunkSize
	end := offset + arg.ChunkSize
	if end > arg.Size {
		end = arg.Size
	}
	copy(s.buffer[offset:end], arg.Chunk)
	s.present[arg.Index] = true

	// ── Step 6: completion check ─────────────────────────────────────────
	if s.remaining() == 0 {
		delete(a.sessions, arg.Path)
		declaredDigest, hasDeclared := s.declared.Unpack()
		store.PutAssembled(assets.Assembled{
			Path:           s.path,
			Headers:        s.headers,
			Buffer:         s.buffer,
			Size:           s.size,
			TrustDeclared:  a.TrustDeclaredHash && hasDeclared,
			DeclaredDigest: declaredDigest,
		})
		if a.OnComplete != nil {
			a.OnComplete(arg.Path)
		}
	}

	return nil
}

// CleanUploading removes any in-progress entry for path; silent if absent.
// Distinct from assets.Store.Delete — the system's public delete(names)
// operation calls both (spec.md §4.2).
func (a *Assembler) CleanUploading(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, path)
}

// Touched returns the last-touched time of every in-progress session, for
// the cleanup worker (internal/cleanup) to expire abandoned uploads.
func (a *Assembler) Touched() map[string]time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]time.Time, len(a.sessions))
	for path, s := range a.sessions {
		out[path] = s.touched
	}
	return out
}

// SessionRecord is the persisted form of one in-progress upload. Declared
// uses a plain pointer rather than option.Option directly — option.Option's
// fields are unexported, so gob (internal/persistence's wire format) cannot
// see through it; AsPointer()/options.FromPointer() convert at this boundary
// only.
type SessionRecord struct {
	Path      string
	Headers   []assets.Header
	Size      uint64
	ChunkSize uint64
	Chunks    uint64
	Buffer    []byte
	Present   []bool
	Declared  *digest.Digest
	Touched   time.Time
}

// Snapshot returns every in-progress session as a flat list, for
// internal/persistence to serialize across restarts (spec.md §6's
// persistence layout names "uploading-files as list" alongside assets and
// files).
func (a *Assembler) Snapshot() []SessionRecord {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]SessionRecord, 0, len(a.sessions))
	for _, s := range a.sessions {
		out = append(out, SessionRecord{
			Path:      s.path,
			Headers:   s.headers,
			Size:      s.size,
			ChunkSize: s.chunkSize,
			Chunks:    s.chunks,
			Buffer:    s.buffer,
			Present:   s.present,
			Declared:  s.declared.AsPointer(),
			Touched:   s.touched,
		})
	}
	return out
}

// Restore replaces the Assembler's in-progress sessions with records,
// restoring exactly the in-flight uploads a prior process had accumulated.
func (a *Assembler) Restore(records []SessionRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sessions = make(map[string]*session, len(records))
	for _, r := range records {
		a.sessions[r.Path] = &session{
			path:      r.Path,
			headers:   r.Headers,
			size:      r.Size,
			chunkSize: r.ChunkSize,
			chunks:    r.Chunks,
			buffer:    r.Buffer,
			present:   r.Present,
			declared:  options.FromPointer(r.Declared),
			touched:   r.Touched,
		}
	}
}
