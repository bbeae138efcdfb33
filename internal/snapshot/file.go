package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
)

// FileStore keeps one framed snapshot in a file. Saves write a temporary
// file and rename it over the previous snapshot, so a crash leaves either
// the old or the new snapshot in place.
type FileStore struct {
	path     string
	compress bool
}

func NewFileStore(path string, compress bool) *FileStore {
	return &FileStore{path: path, compress: compress}
}

func (s *FileStore) Save(ctx context.Context, snap *index.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(snap, s.compress)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmpPath := s.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp snapshot file: %w", err)
	}
	defer os.Remove(tmpPath)
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing snapshot file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("renaming snapshot file: %w", err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context) (*index.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.Newf(apperrors.ErrSnapshotNotFound, "%s", s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}
	return Decode(data)
}

func (s *FileStore) Close() error {
	return nil
}
