package chunkdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"voxelsculpt.ai/internal/voxel"
)

type LoadedChunk struct {
	Key   voxel.ChunkKey
	Chunk *voxel.Chunk
}

type resolved struct {
	depth   int
	version uint64
	op      DeltaOp
}

func (s *DB) chainDepths() (map[uint64]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	depth := make(map[uint64]int, len(s.chain))
	for i, v := range s.chain {
		depth[v] = i
	}
	return depth, nil
}

// Load returns the chunk at key in the current version, or false if absent.
func (s *DB) Load(ctx context.Context, key voxel.ChunkKey) (*voxel.Chunk, bool, error) {
	out, err := s.load(ctx, `WHERE lod = ? AND x = ? AND y = ? AND z = ?`, key.LOD, key.Min.X, key.Min.Y, key.Min.Z)
	if err != nil || len(out) == 0 {
		return nil, false, err
	}
	return out[0].Chunk, true, nil
}

// LoadExtent returns every present chunk at LOD 0 overlapping ext, sorted by key.
func (s *DB) LoadExtent(ctx context.Context, ext voxel.Extent) ([]LoadedChunk, error) {
	if ext.IsEmpty() {
		return nil, nil
	}
	ix := voxel.NewChunkIndexer(s.opts.ChunkShape)
	lo := ix.ChunkMinContaining(ext.Min)
	hi := ix.ChunkMinContaining(ext.Max())
	return s.load(ctx, `WHERE lod = 0 AND x BETWEEN ? AND ? AND y BETWEEN ? AND ? AND z BETWEEN ? AND ?`,
		lo.X, hi.X, lo.Y, hi.Y, lo.Z, hi.Z)
}

// LoadAll returns every present chunk of the current version, sorted by key.
func (s *DB) LoadAll(ctx context.Context) ([]LoadedChunk, error) {
	return s.load(ctx, "")
}

func (s *DB) load(ctx context.Context, where string, args ...any) ([]LoadedChunk, error) {
	depth, err := s.chainDepths()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT version, lod, x, y, z, op FROM deltas `+where, args...)
	if err != nil {
		return nil, err
	}
	latest := map[voxel.ChunkKey]resolved{}
	for rows.Next() {
		var (
			v   uint64
			key voxel.ChunkKey
			op  uint8
		)
		if err := rows.Scan(&v, &key.LOD, &key.Min.X, &key.Min.Y, &key.Min.Z, &op); err != nil {
			_ = rows.Close()
			return nil, err
		}
		d, onChain := depth[v]
		if !onChain {
			continue
		}
		if cur, ok := latest[key]; !ok || d < cur.depth {
			latest[key] = resolved{depth: d, version: v, op: DeltaOp(op)}
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	keys := make([]voxel.ChunkKey, 0, len(latest))
	for k, r := range latest {
		if r.op == OpInsert {
			keys = append(keys, k)
		}
	}
	voxel.SortKeys(keys)

	out := make([]LoadedChunk, len(keys))
	type pending struct {
		i     int
		bk    blobKey
		codec string
		data  []byte
	}
	var misses []pending
	for i, k := range keys {
		bk := blobKey{version: latest[k].version, key: k}
		out[i].Key = k
		if c, ok := s.cache.Get(bk); ok {
			out[i].Chunk = c.Clone()
			continue
		}
		p := pending{i: i, bk: bk}
		err := s.db.QueryRowContext(ctx, `SELECT codec, data FROM chunks WHERE version = ? AND lod = ? AND x = ? AND y = ? AND z = ?`,
			bk.version, k.LOD, k.Min.X, k.Min.Y, k.Min.Z).Scan(&p.codec, &p.data)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: version %d inserts %v without data", ErrCorruptVersionChain, bk.version, k)
		}
		if err != nil {
			return nil, err
		}
		misses = append(misses, p)
	}

	group := s.pool.NewGroup()
	for _, p := range misses {
		group.SubmitErr(func() error {
			c, err := s.decode(p.codec, p.data)
			if err != nil {
				return fmt.Errorf("chunk %v@%d: %w", p.bk.key, p.bk.version, err)
			}
			s.cache.Add(p.bk, c)
			out[p.i].Chunk = c.Clone()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *DB) decode(codecName string, data []byte) (*voxel.Chunk, error) {
	cd, err := s.codecs.Get(codecName)
	if err != nil {
		return nil, err
	}
	raw, err := cd.Decode(data)
	if err != nil {
		return nil, err
	}
	c := &voxel.Chunk{Shape: s.opts.ChunkShape}
	if err := c.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return c, nil
}

type VersionInfo struct {
	Version   uint64
	Parent    uint64 // 0 for roots
	CreatedAt string
	Inserts   int
	Removes   int
	// Bytes is the compressed size of the chunks written by this version.
	Bytes   int64
	Current bool
}

// Versions lists every stored version, oldest first.
func (s *DB) Versions(ctx context.Context) ([]VersionInfo, error) {
	cur := s.CurrentVersion()
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.version, v.parent, v.created_at,
			(SELECT COUNT(*) FROM deltas d WHERE d.version = v.version AND d.op = 1),
			(SELECT COUNT(*) FROM deltas d WHERE d.version = v.version AND d.op = 2),
			(SELECT COALESCE(SUM(LENGTH(c.data)), 0) FROM chunks c WHERE c.version = v.version)
		FROM versions v ORDER BY v.version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VersionInfo
	for rows.Next() {
		var vi VersionInfo
		var parent sql.NullInt64
		if err := rows.Scan(&vi.Version, &parent, &vi.CreatedAt, &vi.Inserts, &vi.Removes, &vi.Bytes); err != nil {
			return nil, err
		}
		if parent.Valid {
			vi.Parent = uint64(parent.Int64)
		}
		vi.Current = vi.Version == cur
		out = append(out, vi)
	}
	return out, rows.Err()
}
