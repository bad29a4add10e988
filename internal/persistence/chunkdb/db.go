// Package chunkdb is a versioned chunk store on SQLite.
//
// Every version has a parent (except roots) and a set of per-chunk deltas.
// The current version pointer lives in editor_meta and is advanced in the
// same transaction that writes the new version, so a crash leaves either the
// old or the new version current, never a partial one.
package chunkdb

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"

	"voxelsculpt.ai/internal/persistence/codec"
	"voxelsculpt.ai/internal/voxel"
)

var (
	ErrCorruptVersionChain = errors.New("corrupt version chain")
	ErrShapeMismatch       = errors.New("chunk shape mismatch")
	ErrClosed              = errors.New("chunkdb closed")
)

const (
	metaCurrentVersion = "current_version"
	metaChunkShape     = "chunk_shape"
	metaStoreID        = "store_id"
)

type Options struct {
	ChunkShape int
	// Codec compresses newly written chunks. Defaults to zstd.
	Codec codec.Codec
	// Workers is the compression pool size. Defaults to NumCPU.
	Workers int
	// CacheSize is the number of decompressed chunks kept. Defaults to 1024.
	CacheSize int
	Logger    *log.Logger
}

type blobKey struct {
	version uint64
	key     voxel.ChunkKey
}

type DB struct {
	db     *sql.DB
	opts   Options
	log    *log.Logger
	codecs *codec.Registry
	pool   pond.Pool
	cache  *lru.Cache[blobKey, *voxel.Chunk]

	// mu serializes writers and guards the fields below.
	mu      sync.Mutex
	current uint64
	// chain is the ancestry of current, newest first.
	chain   []uint64
	storeID string
	closed  bool
}

// Open opens or creates the store at path. A new store gets an empty root
// version before Open returns.
func Open(ctx context.Context, path string, opts Options) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if opts.ChunkShape <= 0 {
		return nil, fmt.Errorf("chunk shape must be positive")
	}
	if opts.Codec == nil {
		c, err := codec.New(codec.NameZstd, 0)
		if err != nil {
			return nil, err
		}
		opts.Codec = c
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1024
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[chunkdb] ", log.LstdFlags)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[blobKey, *voxel.Chunk](opts.CacheSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &DB{
		db:     db,
		opts:   opts,
		log:    logger,
		codecs: codec.NewRegistry(opts.Codec),
		cache:  cache,
	}
	if err := s.initMeta(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	chain, err := s.loadChain(ctx, s.current)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.chain = chain
	s.pool = pond.NewPool(opts.Workers)
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// FULL: the version pointer must survive power loss once committed.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS editor_meta (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS versions (
			version INTEGER PRIMARY KEY,
			parent INTEGER NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS deltas (
			version INTEGER NOT NULL,
			lod INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			op INTEGER NOT NULL,
			PRIMARY KEY (version, lod, x, y, z)
		);`,
		`CREATE INDEX IF NOT EXISTS deltas_key ON deltas(lod, x, y, z);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			version INTEGER NOT NULL,
			lod INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			codec TEXT NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (version, lod, x, y, z)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func encodeVersion(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func decodeVersion(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: current_version is %d bytes", ErrCorruptVersionChain, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

func (s *DB) initMeta(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	meta := map[string][]byte{}
	rows, err := tx.QueryContext(ctx, `SELECT key, value FROM editor_meta`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var k string
		var v []byte
		if err := rows.Scan(&k, &v); err != nil {
			_ = rows.Close()
			return err
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	if err := rows.Close(); err != nil {
		return err
	}

	if raw, ok := meta[metaCurrentVersion]; ok {
		cur, err := decodeVersion(raw)
		if err != nil {
			return err
		}
		shape, err := strconv.Atoi(string(meta[metaChunkShape]))
		if err != nil {
			return fmt.Errorf("chunk_shape meta: %w", err)
		}
		if shape != s.opts.ChunkShape {
			return fmt.Errorf("%w: store has %d, configured %d", ErrShapeMismatch, shape, s.opts.ChunkShape)
		}
		s.current = cur
		s.storeID = string(meta[metaStoreID])
		return nil
	}

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM versions`).Scan(&n); err != nil {
		return err
	}
	if n != 0 {
		return fmt.Errorf("%w: %d versions but no current version", ErrCorruptVersionChain, n)
	}

	// Fresh store: empty root version 1.
	const root = uint64(1)
	if _, err := tx.ExecContext(ctx, `INSERT INTO versions(version, parent, created_at) VALUES(?, NULL, ?)`,
		root, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	id := uuid.NewString()
	for k, v := range map[string][]byte{
		metaCurrentVersion: encodeVersion(root),
		metaChunkShape:     []byte(strconv.Itoa(s.opts.ChunkShape)),
		metaStoreID:        []byte(id),
	} {
		if _, err := tx.ExecContext(ctx, `INSERT INTO editor_meta(key, value) VALUES(?, ?)`, k, v); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.current = root
	s.storeID = id
	s.log.Printf("created store %s with root version %d", id, root)
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// loadChain walks parent links from v to its root.
func (s *DB) loadChain(ctx context.Context, v uint64) ([]uint64, error) {
	return walkChain(ctx, s.db, v)
}

func walkChain(ctx context.Context, q querier, v uint64) ([]uint64, error) {
	var chain []uint64
	seen := map[uint64]bool{}
	for {
		if seen[v] {
			return nil, fmt.Errorf("%w: cycle at version %d", ErrCorruptVersionChain, v)
		}
		seen[v] = true
		var parent sql.NullInt64
		err := q.QueryRowContext(ctx, `SELECT parent FROM versions WHERE version = ?`, v).Scan(&parent)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: missing version %d", ErrCorruptVersionChain, v)
		}
		if err != nil {
			return nil, err
		}
		chain = append(chain, v)
		if !parent.Valid {
			return chain, nil
		}
		v = uint64(parent.Int64)
	}
}

func (s *DB) ChunkShape() int { return s.opts.ChunkShape }

func (s *DB) CurrentVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *DB) StoreID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeID
}

// Flush checkpoints the WAL into the main database file.
func (s *DB) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	var busy, logFrames, checkpointed int
	if err := s.db.QueryRowContext(ctx, `PRAGMA wal_checkpoint(FULL);`).Scan(&busy, &logFrames, &checkpointed); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	if busy != 0 {
		return fmt.Errorf("wal checkpoint: database busy")
	}
	return nil
}

func (s *DB) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.pool.StopAndWait()
	return s.db.Close()
}
