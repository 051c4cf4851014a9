package assetstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/zeusync/metacore/pkg/bytebuffer"
)

// FileStore keeps one file per asset, named <uuid><extension>, in a single
// directory.
type FileStore struct {
	root string
	ext  string
}

func NewFileStore(root, ext string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", bytebuffer.ErrFileIO, err)
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &FileStore{root: root, ext: ext}, nil
}

func (s *FileStore) Root() string { return s.root }

func (s *FileStore) path(id uuid.UUID) string {
	return filepath.Join(s.root, id.String()+s.ext)
}

func (s *FileStore) Load(ctx context.Context, id uuid.UUID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bytebuffer.ErrFileIO, err)
	}
	return data, nil
}

// Save writes data next to its final path and renames it into place so a
// reader never sees a partial blob.
func (s *FileStore) Save(ctx context.Context, id uuid.UUID, data []byte) error {
	if id == uuid.Nil {
		return ErrNilID
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", bytebuffer.ErrFileIO, err)
	}
	tmp := f.Name()
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, s.path(id))
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", bytebuffer.ErrFileIO, err)
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", bytebuffer.ErrFileIO, err)
	}
	return nil
}

// List ignores files that do not carry the store extension or whose base
// name is not a UUID.
func (s *FileStore) List(ctx context.Context) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bytebuffer.ErrFileIO, err)
	}
	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, s.ext) {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(name, s.ext))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids, nil
}

func sortIDs(ids []uuid.UUID) {
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })
}
