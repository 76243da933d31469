package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const documentExt = ".xml"

// FileStore keeps one file per document in a flat directory.
type FileStore struct {
	dir   string
	log   *slog.Logger
	newID func() string
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithIDGenerator is useful for tests.
func WithIDGenerator(gen func() string) FileOption {
	return func(s *FileStore) { s.newID = gen }
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string, log *slog.Logger, opts ...FileOption) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("file store: directory is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file store: create %s: %w", dir, err)
	}

	s := &FileStore{dir: dir, log: log, newID: NewID}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var _ StatsStore = (*FileStore)(nil)

// Dir returns the storage directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Put writes data to a temporary file, syncs it and renames it into place.
func (s *FileStore) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := s.newID()
	if err := ValidateID(id); err != nil {
		return "", err
	}
	path := s.path(id)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("file store: id collision for %s", id)
	}

	tmp, err := os.CreateTemp(s.dir, ".incoming-*")
	if err != nil {
		return "", fmt.Errorf("file store: create temp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return "", fmt.Errorf("file store: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return "", fmt.Errorf("file store: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("file store: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return "", fmt.Errorf("file store: rename: %w", err)
	}

	s.log.Debug("document stored", slog.String("id", id), slog.Int("bytes", len(data)))
	return id, nil
}

// Get returns the stored bytes for id.
func (s *FileStore) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("file store: read %s: %w", id, err)
	}
	return data, nil
}

// List returns the ids of stored documents ordered by write time.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("file store: list: %w", err)
	}

	type item struct {
		id  string
		mod time.Time
	}
	items := make([]item, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), documentExt) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), documentExt)
		if ValidateID(id) != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		items = append(items, item{id: id, mod: info.ModTime()})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].mod.Equal(items[j].mod) {
			return items[i].id < items[j].id
		}
		return items[i].mod.Before(items[j].mod)
	})

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.id)
	}
	return ids, nil
}

// Stats counts stored documents and their total size.
func (s *FileStore) Stats(ctx context.Context) (Stats, error) {
	ids, err := s.List(ctx)
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	for _, id := range ids {
		info, err := os.Stat(s.path(id))
		if err != nil {
			continue
		}
		st.Documents++
		st.TotalBytes += info.Size()
		mod := info.ModTime().UTC()
		if st.LastAt == nil || mod.After(*st.LastAt) {
			st.LastAt = &mod
		}
	}
	return st, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+documentExt)
}
