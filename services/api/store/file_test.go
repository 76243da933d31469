package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestFileStore(t *testing.T, opts ...FileOption) (*FileStore, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "data")
	st, err := NewFileStore(dir, nil, opts...)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	return st, dir
}

func TestFileStorePutGet(t *testing.T) {
	st, dir := newTestFileStore(t)
	ctx := context.Background()

	payload := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\r\n<greenhouse id=\"a\"/>\r\n")
	id, err := st.Put(ctx, payload)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := ValidateID(id); err != nil {
		t.Fatalf("generated id is invalid: %v", err)
	}

	onDisk, err := os.ReadFile(filepath.Join(dir, id+".xml"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !bytes.Equal(onDisk, payload) {
		t.Fatalf("stored bytes differ from input")
	}

	got, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("get returned different bytes")
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, ".incoming-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temporary files left behind: %v", leftovers)
	}
}

func TestFileStoreUniqueIDs(t *testing.T) {
	st, _ := newTestFileStore(t)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, err := st.Put(context.Background(), []byte("<x/>"))
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestFileStoreCollisionRefused(t *testing.T) {
	fixed := "7b0f3c1e-8a52-4d4b-9f4e-0d2a5e1c6b3a"
	st, _ := newTestFileStore(t, WithIDGenerator(func() string { return fixed }))

	if _, err := st.Put(context.Background(), []byte("first")); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if _, err := st.Put(context.Background(), []byte("second")); err == nil {
		t.Fatalf("expected collision error")
	}
	got, _ := st.Get(context.Background(), fixed)
	if string(got) != "first" {
		t.Fatalf("original document was overwritten: %q", got)
	}
}

func TestFileStoreGetErrors(t *testing.T) {
	st, _ := newTestFileStore(t)
	ctx := context.Background()

	if _, err := st.Get(ctx, "7b0f3c1e-8a52-4d4b-9f4e-0d2a5e1c6b3a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for _, id := range []string{"../etc/passwd", "a/b", `..\x`, "", "not-a-uuid", "7B0F3C1E-8A52-4D4B-9F4E-0D2A5E1C6B3A"} {
		if _, err := st.Get(ctx, id); !errors.Is(err, ErrInvalidID) {
			t.Errorf("Get(%q): expected ErrInvalidID, got %v", id, err)
		}
	}
}

func TestFileStoreList(t *testing.T) {
	st, dir := newTestFileStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := st.Put(ctx, []byte("<x/>"))
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		ids = append(ids, id)
	}
	// foreign files are ignored
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "legacy.xml"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	listed, err := st.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != len(ids) {
		t.Fatalf("expected %d ids, got %v", len(ids), listed)
	}
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	for _, id := range listed {
		if !want[id] {
			t.Fatalf("unexpected id %s", id)
		}
	}
}

func TestFileStoreCancelledContext(t *testing.T) {
	st, _ := newTestFileStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := st.Put(ctx, []byte("<x/>")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewFileStoreRequiresDir(t *testing.T) {
	if _, err := NewFileStore("  ", nil); err == nil {
		t.Fatalf("expected error for blank directory")
	}
}

func TestFileStoreStats(t *testing.T) {
	st, _ := newTestFileStore(t)
	ctx := context.Background()

	empty, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if empty.Documents != 0 || empty.LastAt != nil {
		t.Fatalf("unexpected stats for empty store: %+v", empty)
	}

	for _, body := range []string{"<a/>", "<bb/>"} {
		if _, err := st.Put(ctx, []byte(body)); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	got, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if got.Documents != 2 || got.TotalBytes != 9 || got.LastAt == nil {
		t.Fatalf("unexpected stats: %+v", got)
	}
}
