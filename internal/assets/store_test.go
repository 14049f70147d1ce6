package assets_test

import (
	"bytes"
	"testing"

	"github.com/zynqcloud/assetvault/internal/assets"
	"github.com/zynqcloud/assetvault/internal/digest"
)

func TestPutAssembledAndDownload(t *testing.T) {
	s := assets.New()
	want := []byte("hello")

	d := s.PutAssembled(assets.Assembled{
		Path:    "/a.txt",
		Headers: []assets.Header{{Name: "Content-Type", Value: "text/plain"}},
		Buffer:  want,
		Size:    uint64(len(want)),
	})
	if d.String() != "sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Errorf("digest = %s, want the literal sha256 of %q", d, want)
	}

	got, err := s.Download("/a.txt")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Download = %q, want %q", got, want)
	}
}

func TestDownloadMissing(t *testing.T) {
	s := assets.New()
	if _, err := s.Download("/missing"); err != assets.ErrNotFound {
		t.Errorf("Download(missing) err = %v, want ErrNotFound", err)
	}
}

func TestDownloadRangeOutOfBounds(t *testing.T) {
	s := assets.New()
	s.PutAssembled(assets.Assembled{Path: "/a.txt", Buffer: []byte("hello"), Size: 5})

	if _, err := s.DownloadRange("/a.txt", 3, 2); err != assets.ErrBadRange {
		t.Errorf("start>end err = %v, want ErrBadRange", err)
	}
	if _, err := s.DownloadRange("/a.txt", 0, 6); err != assets.ErrBadRange {
		t.Errorf("end>size err = %v, want ErrBadRange", err)
	}
	got, err := s.DownloadRange("/a.txt", 1, 4)
	if err != nil {
		t.Fatalf("DownloadRange: %v", err)
	}
	if string(got) != "ell" {
		t.Errorf("DownloadRange(1,4) = %q, want %q", got, "ell")
	}
}

func TestDedupBySharedDigest(t *testing.T) {
	s := assets.New()
	payload := []byte("same bytes")

	d1 := s.PutAssembled(assets.Assembled{Path: "/one", Buffer: payload, Size: uint64(len(payload))})
	d2 := s.PutAssembled(assets.Assembled{Path: "/two", Buffer: payload, Size: uint64(len(payload))})
	if d1 != d2 {
		t.Fatalf("identical payloads got different digests: %s vs %s", d1, d2)
	}

	s.Delete("/one")
	// /two still references the payload — digest must survive.
	if !s.Exists(d1) {
		t.Error("digest was garbage collected while still referenced by /two")
	}
	got, err := s.Download("/two")
	if err != nil || string(got) != string(payload) {
		t.Errorf("Download(/two) after deleting /one = (%q, %v)", got, err)
	}

	s.Delete("/two")
	if s.Exists(d1) {
		t.Error("digest survived after its last referencing path was deleted")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := assets.New()
	s.PutAssembled(assets.Assembled{Path: "/a", Buffer: []byte("x"), Size: 1})
	s.Delete("/a")
	s.Delete("/a") // must not panic or error
	if _, err := s.Download("/a"); err != assets.ErrNotFound {
		t.Errorf("Download after double delete = %v, want ErrNotFound", err)
	}
}

func TestReuploadChangesDigestAndReleasesOld(t *testing.T) {
	s := assets.New()
	first := []byte("version one")
	second := []byte("version two, longer")

	d1 := s.PutAssembled(assets.Assembled{Path: "/a", Buffer: first, Size: uint64(len(first))})
	d2 := s.PutAssembled(assets.Assembled{Path: "/a", Buffer: second, Size: uint64(len(second))})
	if d1 == d2 {
		t.Fatal("re-upload with different content kept the same digest")
	}
	if s.Exists(d1) {
		t.Error("old digest was not released after re-upload")
	}
	got, err := s.Download("/a")
	if err != nil || !bytes.Equal(got, second) {
		t.Errorf("Download(/a) after re-upload = (%q, %v), want %q", got, err, second)
	}
}

func TestBindExistingRequiresKnownDigest(t *testing.T) {
	s := assets.New()
	unknown := digest.FromBytes([]byte("never uploaded"))
	if s.BindExisting("/a", nil, unknown) {
		t.Error("BindExisting succeeded for a digest never stored")
	}

	payload := []byte("known")
	d := s.PutAssembled(assets.Assembled{Path: "/a", Buffer: payload, Size: uint64(len(payload))})
	if !s.BindExisting("/b", nil, d) {
		t.Fatal("BindExisting failed for a known digest")
	}
	got, err := s.Download("/b")
	if err != nil || !bytes.Equal(got, payload) {
		t.Errorf("Download(/b) = (%q, %v), want %q", got, err, payload)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := assets.New()
	payload := []byte("persisted")
	s.PutAssembled(assets.Assembled{Path: "/a", Buffer: payload, Size: uint64(len(payload))})
	s.PutAssembled(assets.Assembled{Path: "/b", Buffer: payload, Size: uint64(len(payload))})

	assetList, fileList := s.Snapshot()

	restored := assets.New()
	restored.Restore(assetList, fileList)

	for _, path := range []string{"/a", "/b"} {
		got, err := restored.Download(path)
		if err != nil || !bytes.Equal(got, payload) {
			t.Errorf("Download(%s) after restore = (%q, %v)", path, got, err)
		}
	}

	// Both paths shared one digest before snapshot; deleting one after
	// restore must not remove the other's payload, proving hashedPath was
	// rebuilt correctly rather than left empty.
	restored.Delete("/a")
	if got, err := restored.Download("/b"); err != nil || !bytes.Equal(got, payload) {
		t.Errorf("Download(/b) after restore+delete(/a) = (%q, %v)", got, err)
	}
}

func TestPeekReturnsMetadataAndPayloadTogether(t *testing.T) {
	s := assets.New()
	payload := []byte("peek me")
	s.PutAssembled(assets.Assembled{Path: "/a", Buffer: payload, Size: uint64(len(payload))})

	f, got, ok := s.Peek("/a")
	if !ok {
		t.Fatal("Peek(/a) not found")
	}
	if f.Size != uint64(len(payload)) || !bytes.Equal(got, payload) {
		t.Errorf("Peek(/a) = (%+v, %q), want size %d and payload %q", f, got, len(payload), payload)
	}

	if _, _, ok := s.Peek("/missing"); ok {
		t.Error("Peek(/missing) reported a hit")
	}
}
