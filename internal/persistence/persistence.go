// Package persistence implements spec.md §6's "Persistence layout" external
// collaborator: serializing (assets, files, uploading-files) across process
// restarts. It is adapted from the teacher's internal/store/local.go
// temp-file-plus-atomic-rename write pattern and internal/store/cas.go's
// directory/permission handling — here applied to one state snapshot file
// on a timer instead of one blob per request.
package persistence

import (
	"context"
	"encoding/gob"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/zynqcloud/assetvault/internal/assets"
	"github.com/zynqcloud/assetvault/internal/upload"
)

// snapshot is the on-disk shape written by gob. Keeping it as a single named
// struct (rather than three loose slices) gives Save/Load one stable
// top-level gob type to evolve.
type snapshot struct {
	Assets    []assets.AssetRecord
	Files     []assets.AssetFile
	Uploading []upload.SessionRecord
}

// Persister snapshots and restores vault state at path, atomically.
type Persister struct {
	path string
}

// New returns a Persister writing to path.
func New(path string) *Persister {
	return &Persister{path: path}
}

// Save serializes the current state of store and assembler to p.path using
// a temp-file-plus-rename write, exactly as teacher's Local.Write does for
// blob writes: the snapshot either lands whole or not at all, never
// half-written.
func (p *Persister) Save(store *assets.Store, assembler *upload.Assembler) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o750); err != nil {
		return errors.Wrap(err, "persistence: mkdir")
	}

	assetList, fileList := store.Snapshot()
	snap := snapshot{
		Assets:    assetList,
		Files:     fileList,
		Uploading: assembler.Snapshot(),
	}

	tmp := p.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return errors.Wrap(err, "persistence: open tmp")
	}

	encErr := gob.NewEncoder(f).Encode(snap)
	closeErr := f.Close()

	if encErr != nil {
		os.Remove(tmp) //nolint:errcheck
		return errors.Wrap(encErr, "persistence: encode")
	}
	if closeErr != nil {
		os.Remove(tmp) //nolint:errcheck
		return errors.Wrap(closeErr, "persistence: flush")
	}
	if err := os.Rename(tmp, p.path); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return errors.Wrap(err, "persistence: rename")
	}
	return nil
}

// Load restores store and assembler from p.path. A missing snapshot file is
// not an error — it means this is the first run — and leaves store and
// assembler untouched. hashedPath is rebuilt by assets.Store.Restore by
// scanning the restored files, per spec.md §9.
func (p *Persister) Load(store *assets.Store, assembler *upload.Assembler) error {
	f, err := os.Open(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "persistence: open")
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return errors.Wrap(err, "persistence: decode")
	}

	store.Restore(snap.Assets, snap.Files)
	assembler.Restore(snap.Uploading)
	return nil
}

// RunPeriodic snapshots store and assembler on every interval until ctx is
// cancelled, plus once more immediately when ctx is cancelled so a graceful
// shutdown never loses the last interval's worth of uploads. The returned
// channel is closed once the final save completes.
func (p *Persister) RunPeriodic(ctx context.Context, store *assets.Store, assembler *upload.Assembler, interval time.Duration, logger *slog.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := p.Save(store, assembler); err != nil {
					logger.Warn("persistence: periodic save failed", "err", err)
				}
			case <-ctx.Done():
				if err := p.Save(store, assembler); err != nil {
					logger.Warn("persistence: final save failed", "err", err)
				} else {
					logger.Info("persistence: final snapshot written", "path", p.path)
				}
				return
			}
		}
	}()
	return done
}
