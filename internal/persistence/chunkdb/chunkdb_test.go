package chunkdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"voxelsculpt.ai/internal/persistence/codec"
	"voxelsculpt.ai/internal/voxel"
)

const shape = 8

func openTest(t *testing.T, path string, codecName string) *DB {
	t.Helper()
	c, err := codec.New(codecName, 0)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	db, err := Open(context.Background(), path, Options{ChunkShape: shape, Codec: c, Workers: 2, CacheSize: 4})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return db
}

func chunkWith(mat voxel.Material, dist voxel.Sd8) *voxel.Chunk {
	c := voxel.NewAmbientChunk(shape)
	for i := range c.Dists {
		if i%3 == 0 {
			c.Materials[i] = mat
			c.Dists[i] = dist
		}
	}
	return c
}

func key(x, y, z int) voxel.ChunkKey { return voxel.ChunkKey{Min: voxel.P(x, y, z)} }

func TestOpenCreatesRootVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "editor.db")
	db := openTest(t, path, codec.NameZstd)
	defer db.Close()

	if got := db.CurrentVersion(); got != 1 {
		t.Fatalf("current version: got %d want 1", got)
	}
	if db.StoreID() == "" {
		t.Fatalf("expected store id")
	}
	all, err := db.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty root, got %d chunks", len(all))
	}
}

func TestDurabilityAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "editor.db")

	for _, name := range []string{codec.NameZstd, codec.NameS2} {
		db := openTest(t, path, name)
		base := db.CurrentVersion()
		a := chunkWith(2, -100)
		b := chunkWith(3, -5)
		v, err := db.UpdateCurrentVersion(ctx, []Delta{
			Insert(key(0, 0, 0), a),
			Insert(key(8, 0, 0), b),
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if v != base+1 {
			t.Fatalf("version: got %d want %d", v, base+1)
		}
		if _, err := db.UpdateCurrentVersion(ctx, []Delta{Remove(key(8, 0, 0))}); err != nil {
			t.Fatalf("update 2: %v", err)
		}
		if err := db.Flush(ctx); err != nil {
			t.Fatalf("flush: %v", err)
		}
		want := db.CurrentVersion()
		if err := db.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}

		// Simulated restart, opened with the other codec to prove stored names are honoured.
		db = openTest(t, path, codec.NameNone)
		if got := db.CurrentVersion(); got != want {
			t.Fatalf("%s: current after reopen: got %d want %d", name, got, want)
		}
		got, ok, err := db.Load(ctx, key(0, 0, 0))
		if err != nil || !ok {
			t.Fatalf("%s: load: ok=%v err=%v", name, ok, err)
		}
		if !got.Equal(a) {
			t.Fatalf("%s: chunk mismatch after reopen", name)
		}
		if _, ok, err := db.Load(ctx, key(8, 0, 0)); err != nil || ok {
			t.Fatalf("%s: removed chunk should be absent: ok=%v err=%v", name, ok, err)
		}
		if err := db.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
}

func TestNewestDeltaWins(t *testing.T) {
	ctx := context.Background()
	db := openTest(t, filepath.Join(t.TempDir(), "editor.db"), codec.NameZstd)
	defer db.Close()

	k := key(-8, 16, 0)
	for i := 1; i <= 5; i++ {
		if _, err := db.UpdateCurrentVersion(ctx, []Delta{Insert(k, chunkWith(voxel.Material(i), -1))}); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}
	// The second pass is served from the cache.
	for pass := 0; pass < 2; pass++ {
		got, ok, err := db.Load(ctx, k)
		if err != nil || !ok {
			t.Fatalf("load: ok=%v err=%v", ok, err)
		}
		if got.Materials[0] != 5 {
			t.Fatalf("pass %d: expected newest material 5, got %d", pass, got.Materials[0])
		}
		got.Materials[0] = 99 // callers own the returned copy
	}
}

func TestLoadExtent(t *testing.T) {
	ctx := context.Background()
	db := openTest(t, filepath.Join(t.TempDir(), "editor.db"), codec.NameS2)
	defer db.Close()

	var deltas []Delta
	for x := -16; x <= 16; x += 8 {
		deltas = append(deltas, Insert(key(x, 0, 0), chunkWith(1, -1)))
	}
	if _, err := db.UpdateCurrentVersion(ctx, deltas); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := db.LoadExtent(ctx, voxel.ExtentFromMinAndMax(voxel.P(-3, 0, 0), voxel.P(9, 7, 7)))
	if err != nil {
		t.Fatalf("load extent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	if got[0].Key != key(-8, 0, 0) || got[2].Key != key(8, 0, 0) {
		t.Fatalf("unexpected keys: %v %v", got[0].Key, got[2].Key)
	}
}

func TestLoadAllCancelledIsError(t *testing.T) {
	db := openTest(t, filepath.Join(t.TempDir(), "editor.db"), codec.NameZstd)
	defer db.Close()
	if _, err := db.UpdateCurrentVersion(context.Background(), []Delta{Insert(key(0, 0, 0), chunkWith(1, -1))}); err != nil {
		t.Fatalf("update: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := db.LoadAll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v (%d chunks)", err, len(got))
	}
}

func TestShapeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "editor.db")
	db := openTest(t, path, codec.NameZstd)
	_ = db.Close()

	_, err := Open(context.Background(), path, Options{ChunkShape: 16})
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}

	db = openTest(t, path, codec.NameZstd)
	defer db.Close()
	_, err = db.UpdateCurrentVersion(context.Background(), []Delta{Insert(key(0, 0, 0), voxel.NewAmbientChunk(4))})
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch on write, got %v", err)
	}
	if db.CurrentVersion() != 1 {
		t.Fatalf("failed write must not advance the version")
	}
}

func TestCorruptChainIsFatal(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "editor.db")
	db := openTest(t, path, codec.NameZstd)
	if _, err := db.UpdateCurrentVersion(ctx, []Delta{Insert(key(0, 0, 0), chunkWith(1, -1))}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := db.db.Exec(`DELETE FROM versions WHERE version = 1`); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	_ = db.Close()

	_, err := Open(ctx, path, Options{ChunkShape: shape})
	if !errors.Is(err, ErrCorruptVersionChain) {
		t.Fatalf("expected ErrCorruptVersionChain, got %v", err)
	}
}

func TestCompact(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "editor.db")
	db := openTest(t, path, codec.NameZstd)
	defer db.Close()

	a := chunkWith(4, -20)
	for _, ds := range [][]Delta{
		{Insert(key(0, 0, 0), chunkWith(1, -1)), Insert(key(0, 8, 0), chunkWith(2, -2))},
		{Insert(key(0, 0, 0), a)},
		{Remove(key(0, 8, 0))},
	} {
		if _, err := db.UpdateCurrentVersion(ctx, ds); err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	root, err := db.Compact(ctx)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	versions, err := db.Versions(ctx)
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) != 1 || versions[0].Version != root || versions[0].Parent != 0 || !versions[0].Current {
		t.Fatalf("unexpected versions after compact: %+v", versions)
	}
	if versions[0].Inserts != 1 || versions[0].Removes != 0 {
		t.Fatalf("unexpected delta counts: %+v", versions[0])
	}
	got, ok, err := db.Load(ctx, key(0, 0, 0))
	if err != nil || !ok || !got.Equal(a) {
		t.Fatalf("load after compact: ok=%v err=%v", ok, err)
	}
}
