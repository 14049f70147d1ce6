package upload_test

import (
	"bytes"
	"testing"

	"github.com/majewsky/gg/option"

	"github.com/zynqcloud/assetvault/internal/assets"
	"github.com/zynqcloud/assetvault/internal/digest"
	"github.com/zynqcloud/assetvault/internal/upload"
)

func newTestAssembler() *upload.Assembler {
	return upload.New(upload.Limits{
		MaxFileBytes:   1 << 20,
		HeaderNameMax:  64,
		HeaderValueMax: 256,
	}, false)
}

func TestPutSingleChunkCompletesImmediately(t *testing.T) {
	a := newTestAssembler()
	store := assets.New()
	body := []byte("hello")

	err := a.Put(store, upload.Arg{
		Path:      "/a.txt",
		Size:      uint64(len(body)),
		ChunkSize: uint64(len(body)),
		Index:     0,
		Chunk:     body,
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Download("/a.txt")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Errorf("Download = %q, want %q", got, body)
	}
}

func TestPutThreeChunksAssemblesInAnyOrder(t *testing.T) {
	a := newTestAssembler()
	store := assets.New()
	full := []byte("ABCDEFGHIJ") // 10 bytes, chunkSize 4 → chunks of 4,4,2
	const chunkSize = 4

	order := []uint64{2, 0, 1}
	for _, idx := range order {
		start := idx * chunkSize
		end := start + chunkSize
		if end > uint64(len(full)) {
			end = uint64(len(full))
		}
		err := a.Put(store, upload.Arg{
			Path:      "/b.bin",
			Size:      uint64(len(full)),
			ChunkSize: chunkSize,
			Index:     idx,
			Chunk:     full[start:end],
		})
		if err != nil {
			t.Fatalf("Put(index=%d): %v", idx, err)
		}
	}

	got, err := store.Download("/b.bin")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !bytes.Equal(got, full) {
		t.Errorf("assembled = %q, want %q", got, full)
	}
}

func TestPutRejectsWrongChunkLength(t *testing.T) {
	a := newTestAssembler()
	store := assets.New()

	err := a.Put(store, upload.Arg{
		Path:      "/a.txt",
		Size:      10,
		ChunkSize: 4,
		Index:     0,
		Chunk:     []byte("too long"),
	})
	if err != upload.ErrBadRequest {
		t.Errorf("err = %v, want ErrBadRequest", err)
	}
}

func TestPutRejectsPathWithoutLeadingSlash(t *testing.T) {
	a := newTestAssembler()
	store := assets.New()

	err := a.Put(store, upload.Arg{
		Path:      "no-slash.txt",
		Size:      1,
		ChunkSize: 1,
		Index:     0,
		Chunk:     []byte("x"),
	})
	if err != upload.ErrBadRequest {
		t.Errorf("err = %v, want ErrBadRequest", err)
	}
}

func TestPutRejectsIndexPastChunkCount(t *testing.T) {
	a := newTestAssembler()
	store := assets.New()

	err := a.Put(store, upload.Arg{
		Path:      "/a.txt",
		Size:      4,
		ChunkSize: 4,
		Index:     1, // only index 0 exists for a single-chunk file
		Chunk:     []byte("abcd"),
	})
	if err != upload.ErrBadRequest {
		t.Errorf("err = %v, want ErrBadRequest", err)
	}
}

func TestPutReconcilesStaleSessionOnSizeChange(t *testing.T) {
	a := newTestAssembler()
	store := assets.New()

	// First chunk of a 10-byte, 2-chunk upload.
	if err := a.Put(store, upload.Arg{
		Path: "/a", Size: 10, ChunkSize: 5, Index: 0, Chunk: bytes.Repeat([]byte("a"), 5),
	}); err != nil {
		t.Fatalf("Put 1: %v", err)
	}

	// Caller restarts with a different size — old partial state must be
	// discarded, not mixed with the new declaration.
	full := []byte("0123456789AB") // 12 bytes, chunkSize 6 → 2 chunks
	if err := a.Put(store, upload.Arg{
		Path: "/a", Size: 12, ChunkSize: 6, Index: 0, Chunk: full[0:6],
	}); err != nil {
		t.Fatalf("Put 2a: %v", err)
	}
	if err := a.Put(store, upload.Arg{
		Path: "/a", Size: 12, ChunkSize: 6, Index: 1, Chunk: full[6:12],
	}); err != nil {
		t.Fatalf("Put 2b: %v", err)
	}

	got, err := store.Download("/a")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !bytes.Equal(got, full) {
		t.Errorf("assembled = %q, want %q (stale partial state leaked in)", got, full)
	}
}

func TestPutTrustDeclaredHashFastPathSkipsAccumulation(t *testing.T) {
	a := upload.New(upload.Limits{MaxFileBytes: 1 << 20, HeaderNameMax: 64, HeaderValueMax: 256}, true)
	store := assets.New()

	payload := []byte("already stored")
	d := store.PutAssembled(assets.Assembled{Path: "/existing", Buffer: payload, Size: uint64(len(payload))})

	err := a.Put(store, upload.Arg{
		Path:      "/new-path",
		Size:      999999, // would fail validation if the fast path weren't taken first
		ChunkSize: 1,
		Index:     0,
		Chunk:     nil,
		Digest:    option.Some(d),
	})
	if err != nil {
		t.Fatalf("Put (trust-declared fast path): %v", err)
	}

	got, err := store.Download("/new-path")
	if err != nil || !bytes.Equal(got, payload) {
		t.Errorf("Download(/new-path) = (%q, %v), want %q", got, err, payload)
	}
}

func TestCleanUploadingDiscardsInProgressSession(t *testing.T) {
	a := newTestAssembler()
	store := assets.New()

	if err := a.Put(store, upload.Arg{Path: "/a", Size: 10, ChunkSize: 5, Index: 0, Chunk: bytes.Repeat([]byte("a"), 5)}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok := a.Touched()["/a"]; !ok {
		t.Fatal("session not tracked after first chunk")
	}

	a.CleanUploading("/a")
	if _, ok := a.Touched()["/a"]; ok {
		t.Error("session still tracked after CleanUploading")
	}
	// Must not panic on a path with no session.
	a.CleanUploading("/never-existed")
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	a := newTestAssembler()
	store := assets.New()
	d := digest.FromBytes([]byte("declared"))

	if err := a.Put(store, upload.Arg{
		Path: "/a", Size: 10, ChunkSize: 5, Index: 0, Chunk: bytes.Repeat([]byte("a"), 5), Digest: option.Some(d),
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	records := a.Snapshot()
	if len(records) != 1 {
		t.Fatalf("Snapshot() len = %d, want 1", len(records))
	}

	restored := newTestAssembler()
	restored.Restore(records)

	if err := restored.Put(store, upload.Arg{
		Path: "/a", Size: 10, ChunkSize: 5, Index: 1, Chunk: bytes.Repeat([]byte("b"), 5),
	}); err != nil {
		t.Fatalf("Put after restore: %v", err)
	}

	got, err := store.Download("/a")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	want := append(bytes.Repeat([]byte("a"), 5), bytes.Repeat([]byte("b"), 5)...)
	if !bytes.Equal(got, want) {
		t.Errorf("assembled after restore = %q, want %q", got, want)
	}
}
