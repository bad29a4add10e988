package chunkdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"voxelsculpt.ai/internal/voxel"
)

type DeltaOp uint8

const (
	OpInsert DeltaOp = 1
	OpRemove DeltaOp = 2
)

func (o DeltaOp) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpRemove:
		return "remove"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Delta replaces (Insert) or deletes (Remove) one chunk.
type Delta struct {
	Key   voxel.ChunkKey
	Op    DeltaOp
	Chunk *voxel.Chunk
}

func Insert(key voxel.ChunkKey, c *voxel.Chunk) Delta {
	return Delta{Key: key, Op: OpInsert, Chunk: c}
}

func Remove(key voxel.ChunkKey) Delta {
	return Delta{Key: key, Op: OpRemove}
}

type encodedDelta struct {
	Delta
	codec string
	data  []byte
}

// encode compresses inserted chunks on the worker pool and waits for all of them.
func (s *DB) encode(deltas []Delta) ([]encodedDelta, error) {
	for _, d := range deltas {
		switch d.Op {
		case OpRemove:
		case OpInsert:
			if d.Chunk == nil || d.Chunk.Shape != s.opts.ChunkShape {
				return nil, fmt.Errorf("delta %v: %w", d.Key, ErrShapeMismatch)
			}
		default:
			return nil, fmt.Errorf("delta %v: bad op %v", d.Key, d.Op)
		}
	}

	out := make([]encodedDelta, len(deltas))
	group := s.pool.NewGroup()
	for i, d := range deltas {
		out[i].Delta = d
		if d.Op != OpInsert {
			continue
		}
		group.SubmitErr(func() error {
			raw, err := d.Chunk.MarshalBinary()
			if err != nil {
				return err
			}
			out[i].codec = s.opts.Codec.Name()
			out[i].data = s.opts.Codec.Encode(raw)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateCurrentVersion writes deltas as a child of the current version and
// makes it current. Chunks are compressed before the transaction starts.
// Callers must not mutate inserted chunks until this returns.
func (s *DB) UpdateCurrentVersion(ctx context.Context, deltas []Delta) (uint64, error) {
	enc, err := s.encode(deltas)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	next, err := nextVersion(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := writeVersion(ctx, tx, next, sql.NullInt64{Int64: int64(s.current), Valid: true}, enc); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	s.current = next
	s.chain = append([]uint64{next}, s.chain...)
	for _, d := range deltas {
		if d.Op == OpInsert {
			s.cache.Add(blobKey{version: next, key: d.Key}, d.Chunk.Clone())
		}
	}
	return next, nil
}

func nextVersion(ctx context.Context, tx *sql.Tx) (uint64, error) {
	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(version) FROM versions`).Scan(&last); err != nil {
		return 0, err
	}
	return uint64(last.Int64) + 1, nil
}

func writeVersion(ctx context.Context, tx *sql.Tx, v uint64, parent sql.NullInt64, deltas []encodedDelta) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO versions(version, parent, created_at) VALUES(?, ?, ?)`,
		v, parent, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	deltaStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO deltas(version, lod, x, y, z, op) VALUES(?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer deltaStmt.Close()
	chunkStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO chunks(version, lod, x, y, z, codec, data) VALUES(?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer chunkStmt.Close()

	for _, d := range deltas {
		k := d.Key
		if _, err := deltaStmt.ExecContext(ctx, v, k.LOD, k.Min.X, k.Min.Y, k.Min.Z, uint8(d.Op)); err != nil {
			return fmt.Errorf("insert delta %v: %w", k, err)
		}
		if d.Op != OpInsert {
			continue
		}
		if _, err := chunkStmt.ExecContext(ctx, v, k.LOD, k.Min.X, k.Min.Y, k.Min.Z, d.codec, d.data); err != nil {
			return fmt.Errorf("insert chunk %v: %w", k, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO editor_meta(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, metaCurrentVersion, encodeVersion(v)); err != nil {
		return fmt.Errorf("advance current version: %w", err)
	}
	return nil
}

// Compact rewrites the current state as a new root version and drops every
// other version. Returns the new root.
func (s *DB) Compact(ctx context.Context) (uint64, error) {
	base := s.CurrentVersion()
	chunks, err := s.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	deltas := make([]Delta, 0, len(chunks))
	for _, c := range chunks {
		deltas = append(deltas, Insert(c.Key, c.Chunk))
	}
	enc, err := s.encode(deltas)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if s.current != base {
		return 0, fmt.Errorf("compact: version advanced from %d to %d while reading", base, s.current)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	root, err := nextVersion(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := writeVersion(ctx, tx, root, sql.NullInt64{}, enc); err != nil {
		return 0, err
	}
	for _, q := range []string{
		`DELETE FROM chunks WHERE version <> ?`,
		`DELETE FROM deltas WHERE version <> ?`,
		`DELETE FROM versions WHERE version <> ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, root); err != nil {
			return 0, fmt.Errorf("compact: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	s.log.Printf("compacted %d versions into root %d (%d chunks)", len(s.chain), root, len(deltas))
	s.current = root
	s.chain = []uint64{root}
	s.cache.Purge()
	return root, nil
}
