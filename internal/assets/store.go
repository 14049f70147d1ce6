package assets

import (
	"sync"
	"time"

	"github.com/zynqcloud/assetvault/internal/digest"
)

// Assembled is the ownership-transfer handoff from the Upload Assembler to
// the Asset Store described in spec.md §3 ("Ownership") and §9 ("Completion
// handoff"): ideally a move of the buffer, never a copy, since buffers can
// be up to MaxFileBytes (2 GiB).
type Assembled struct {
	Path    string
	Headers []Header
	Buffer  []byte // exactly Size bytes; moved into the store, not copied
	Size    uint64

	// TrustDeclared and DeclaredDigest implement spec.md §4.1 step 1: when
	// TrustDeclared is set and DeclaredDigest is non-empty, the store binds
	// to it instead of hashing Buffer.
	TrustDeclared  bool
	DeclaredDigest digest.Digest
}

// Store is the Asset Store of spec.md §4.1: a keyed mapping from digest to
// payload, a mapping from path to path-metadata, and a reverse index from
// digest to the set of referencing paths. One sync.RWMutex enforces the
// "single in-flight operation, structurally" concurrency model of spec.md §5
// across goroutine-per-request net/http handlers.
type Store struct {
	mu         sync.RWMutex
	assets     map[digest.Digest][]byte
	files      map[string]*AssetFile
	hashedPath map[digest.Digest]map[string]struct{}

	now func() time.Time // overridable in tests
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		assets:     make(map[digest.Digest][]byte),
		files:      make(map[string]*AssetFile),
		hashedPath: make(map[digest.Digest]map[string]struct{}),
		now:        time.Now,
	}
}

// List returns one QueryFile per AssetFile. Order is unspecified, per
// spec.md §4.1.
func (s *Store) List() []QueryFile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]QueryFile, 0, len(s.files))
	for path, f := range s.files {
		out = append(out, QueryFile{
			Path:      path,
			Created:   f.Created,
			Modified:  f.Modified,
			Headers:   f.Headers,
			Digest:    f.Digest,
			HexDigest: digest.Hex(f.Digest),
			Size:      f.Size,
		})
	}
	return out
}

// Lookup returns the AssetFile for path without its payload, for callers
// (the HTTP Responder) that need metadata before deciding how much of the
// payload to read.
func (s *Store) Lookup(path string) (AssetFile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[path]
	if !ok {
		return AssetFile{}, false
	}
	return *f, true
}

// Peek returns both the AssetFile and its full payload for path in a single
// lock acquisition, for callers (the HTTP Responder) that need both without
// a TOCTOU gap between a metadata lookup and a payload read.
func (s *Store) Peek(path string) (AssetFile, []byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[path]
	if !ok {
		return AssetFile{}, nil, false
	}
	return *f, s.assets[f.Digest], true
}

// Download returns the full payload for path. Fails with ErrNotFound if path
// is absent, per spec.md §4.1.
func (s *Store) Download(path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[path]
	if !ok {
		return nil, ErrNotFound
	}
	return s.assets[f.Digest], nil
}

// DownloadRange returns payload[offset:end] for path, end exclusive.
// Fails with ErrNotFound if path is absent and ErrBadRange if the window is
// outside [0, size] — spec.md leaves out-of-bounds behavior "undefined" but
// permits implementations to fail rather than read out of bounds.
func (s *Store) DownloadRange(path string, offset, end uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[path]
	if !ok {
		return nil, ErrNotFound
	}
	if offset > end || end > f.Size {
		return nil, ErrBadRange
	}
	return s.assets[f.Digest][offset:end], nil
}

// Exists reports whether d is already present in the store, used by the
// Upload Assembler's trust-declared-hash fast path (spec.md §4.2 step 2).
func (s *Store) Exists(d digest.Digest) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.assets[d]
	return ok
}

// PutAssembled inserts or refreshes path per spec.md §4.1's putAssembled
// algorithm, steps 1-4. Idempotent for identical inputs; returns the digest
// that was resolved (computed or trusted) so callers can log it.
func (s *Store) PutAssembled(a Assembled) digest.Digest {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := a.DeclaredDigest
	if !a.TrustDeclared || d == "" {
		d = digest.FromWindow(a.Buffer, a.Size)
	}

	s.insertLocked(a.Path, a.Headers, d, a.Buffer)
	return d
}

// BindExisting implements spec.md §4.2 step 2's fast-path dedup: bind path to
// an already-present digest without retaining any chunk data. The bound
// file's size is taken from the existing payload, since the caller's
// declared size is untrusted on this path. Returns false if d is not yet
// known to the store (the caller should fall back to the normal path).
func (s *Store) BindExisting(path string, headers []Header, d digest.Digest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, ok := s.assets[d]
	if !ok {
		return false
	}
	s.insertLocked(path, headers, d, payload)
	return true
}

// insertLocked performs steps 2-4 of spec.md §4.1's putAssembled algorithm.
// Caller must hold s.mu for writing.
func (s *Store) insertLocked(path string, headers []Header, d digest.Digest, payload []byte) {
	if _, ok := s.assets[d]; !ok {
		s.assets[d] = payload
	}

	now := s.now()
	if f, ok := s.files[path]; ok {
		// Re-upload: created is preserved, everything else refreshed. The
		// old digest's reference set loses this path before the new one
		// gains it, so a re-upload that changes payload never leaves a
		// dangling reference.
		if f.Digest != d {
			s.unreference(f.Digest, path)
		}
		f.Modified = now
		f.Headers = headers
		f.Digest = d
		f.Size = uint64(len(payload))
	} else {
		s.files[path] = &AssetFile{
			Path:     path,
			Created:  now,
			Modified: now,
			Headers:  headers,
			Digest:   d,
			Size:     uint64(len(payload)),
		}
	}

	if s.hashedPath[d] == nil {
		s.hashedPath[d] = make(map[string]struct{})
	}
	s.hashedPath[d][path] = struct{}{}
}

// Delete removes path per spec.md §4.1: silent if absent, and garbage
// collects the payload once its last referencing path is gone.
func (s *Store) Delete(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[path]
	if !ok {
		return
	}
	delete(s.files, path)
	s.unreference(f.Digest, path)
}

// unreference removes path from digest's reference set and, if that empties
// the set, removes the digest entry from hashedPath and its payload from
// assets. Caller must hold s.mu for writing.
func (s *Store) unreference(d digest.Digest, path string) {
	paths := s.hashedPath[d]
	delete(paths, path)
	if len(paths) == 0 {
		delete(s.hashedPath, d)
		delete(s.assets, d)
	}
}

// AssetRecord is the persisted form of one payload, keyed by its own digest
// so Restore can rebuild s.assets without recomputing any hash.
type AssetRecord struct {
	Digest  digest.Digest
	Payload []byte
}

// Snapshot returns the store's state as flat lists, suitable for
// internal/persistence to serialize. hashedPath is deliberately excluded —
// spec.md §9 treats it as a derived cache, rebuilt from files on restore.
func (s *Store) Snapshot() (assetList []AssetRecord, fileList []AssetFile) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assetList = make([]AssetRecord, 0, len(s.assets))
	for d, payload := range s.assets {
		assetList = append(assetList, AssetRecord{Digest: d, Payload: payload})
	}
	fileList = make([]AssetFile, 0, len(s.files))
	for _, f := range s.files {
		fileList = append(fileList, *f)
	}
	return assetList, fileList
}

// Restore replaces the store's state with assetList/fileList and rebuilds
// hashedPath by scanning fileList, exactly as spec.md §6/§9 prescribe.
func (s *Store) Restore(assetList []AssetRecord, fileList []AssetFile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assets = make(map[digest.Digest][]byte, len(assetList))
	for _, a := range assetList {
		s.assets[a.Digest] = a.Payload
	}

	s.files = make(map[string]*AssetFile, len(fileList))
	s.hashedPath = make(map[digest.Digest]map[string]struct{})
	for i := range fileList {
		f := fileList[i]
		s.files[f.Path] = &f
		if s.hashedPath[f.Digest] == nil {
			s.hashedPath[f.Digest] = make(map[string]struct{})
		}
		s.hashedPath[f.Digest][f.Path] = struct{}{}
	}
}
