package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/field"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
)

func newEngine(t *testing.T) *indexer.Engine {
	t.Helper()
	fields := field.NewRegistry()
	_ = fields.Register("title", 10, nil)
	_ = fields.Register("body", 1, nil)
	p, err := pipeline.DefaultRegistry().BuildPipeline(pipeline.DefaultStages...)
	if err != nil {
		t.Fatal(err)
	}
	e, err := indexer.NewEngine(indexer.Options{RefField: "id", Fields: fields, Pipeline: p})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func populated(t *testing.T) *indexer.Engine {
	e := newEngine(t)
	_ = e.IndexDocument("1", map[string]string{"title": "Foo", "body": "Foo foo foo!"})
	_ = e.IndexDocument("2", map[string]string{"title": "Bar", "body": "Bar bar bar!"})
	_ = e.IndexDocument("3", map[string]string{"title": "Full-text search", "body": "inverted indexes"})
	return e
}

func TestCodecRoundTrip(t *testing.T) {
	snap := populated(t).Snapshot()
	for _, compress := range []bool{false, true} {
		data, err := Encode(snap, compress)
		if err != nil {
			t.Fatal(err)
		}
		h, err := ReadHeader(data)
		if err != nil {
			t.Fatal(err)
		}
		if h.Compressed() != compress || h.DocCount != 3 || int(h.TermCount) != len(snap.Terms) {
			t.Fatalf("header = %+v", h)
		}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("compress=%v: %v", compress, err)
		}
		if !reflect.DeepEqual(snap, got) {
			t.Fatalf("compress=%v: snapshot changed in round trip", compress)
		}
	}
}

func TestDecodeRejectsDamage(t *testing.T) {
	data, err := Encode(populated(t).Snapshot(), false)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"short", func(b []byte) []byte { return b[:10] }},
		{"magic", func(b []byte) []byte { b[0] ^= 0xff; return b }},
		{"version", func(b []byte) []byte { b[4] = 9; return b }},
		{"truncated body", func(b []byte) []byte { return b[:len(b)-5] }},
		{"flipped body byte", func(b []byte) []byte { b[HeaderSize+3] ^= 0x01; return b }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			damaged := tt.mutate(append([]byte(nil), data...))
			if _, err := Decode(damaged); !errors.Is(err, apperrors.ErrSnapshotCorrupt) {
				t.Fatalf("expected ErrSnapshotCorrupt, got %v", err)
			}
		})
	}
}

func testStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	if _, err := store.Load(ctx); !errors.Is(err, apperrors.ErrSnapshotNotFound) {
		t.Fatalf("empty store: expected ErrSnapshotNotFound, got %v", err)
	}

	src := populated(t)
	if err := store.Save(ctx, src.Snapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_ = src.IndexDocument("4", map[string]string{"title": "later"})
	if err := store.Save(ctx, src.Snapshot()); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	dst := newEngine(t)
	if err := dst.Restore(loaded); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !reflect.DeepEqual(src.Snapshot(), dst.Snapshot()) {
		t.Fatal("restored index differs from source")
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.tidx")
	testStore(t, NewFileStore(path, false))
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestFileStoreCompressed(t *testing.T) {
	testStore(t, NewFileStore(filepath.Join(t.TempDir(), "index.tidx.zst"), true))
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "snapshots.db"), "default", true)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	testStore(t, store)

	names, err := store.Names(context.Background())
	if err != nil || !reflect.DeepEqual(names, []string{"default"}) {
		t.Fatalf("Names = %v, %v", names, err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(config.SnapshotConfig{Driver: "file", Path: filepath.Join(dir, "a.tidx")})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*FileStore); !ok {
		t.Fatalf("file driver gave %T", s)
	}
	s, err = Open(config.SnapshotConfig{Driver: "sqlite", Path: filepath.Join(dir, "b.db"), Name: "x"})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, ok := s.(*SQLiteStore); !ok {
		t.Fatalf("sqlite driver gave %T", s)
	}
	if _, err := Open(config.SnapshotConfig{Driver: "s3"}); !errors.Is(err, apperrors.ErrConfiguration) {
		t.Fatalf("unknown driver: %v", err)
	}
}

type countingStore struct {
	Store
	saves int
}

func (c *countingStore) Save(ctx context.Context, snap *index.Snapshot) error {
	c.saves++
	return c.Store.Save(ctx, snap)
}

func TestFlusherSavesOnlyWhenChanged(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: NewFileStore(filepath.Join(t.TempDir(), "i.tidx"), false)}
	engine := populated(t)
	f := NewFlusher(store, engine, nil)

	if wrote, err := f.Flush(ctx); err != nil || !wrote {
		t.Fatalf("first flush: wrote=%v err=%v", wrote, err)
	}
	if wrote, _ := f.Flush(ctx); wrote {
		t.Fatal("unchanged index was flushed again")
	}
	engine.Remove("1")
	if wrote, _ := f.Flush(ctx); !wrote {
		t.Fatal("changed index was not flushed")
	}
	if store.saves != 2 {
		t.Fatalf("saves = %d", store.saves)
	}

	restored := newEngine(t)
	rf := NewFlusher(store, restored, nil)
	ok, err := rf.Restore(ctx)
	if err != nil || !ok {
		t.Fatalf("Restore: ok=%v err=%v", ok, err)
	}
	if restored.Stats().DocCount != 2 {
		t.Fatalf("restored doc count = %d", restored.Stats().DocCount)
	}
	if wrote, _ := rf.Flush(ctx); wrote {
		t.Fatal("freshly restored index should not need a flush")
	}
}

func TestFlusherRestoreMissing(t *testing.T) {
	f := NewFlusher(NewFileStore(filepath.Join(t.TempDir(), "none.tidx"), false), newEngine(t), nil)
	ok, err := f.Restore(context.Background())
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}

func TestFlusherRunFlushesOnShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "i.tidx")
	f := NewFlusher(NewFileStore(path, false), populated(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx, 0)
		close(done)
	}()
	cancel()
	<-done
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("final flush did not write: %v", err)
	}
}
