package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"voxelsculpt.ai/internal/config"
	"voxelsculpt.ai/internal/persistence/chunkdb"
	"voxelsculpt.ai/internal/persistence/codec"
	"voxelsculpt.ai/internal/voxel"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "chunks":
			chunksCmd(os.Args[2:])
			return
		case "stats":
			statsCmd(os.Args[2:])
			return
		case "journal":
			journalCmd(os.Args[2:])
			return
		case "compact":
			compactCmd(os.Args[2:])
			return
		case "save":
			saveCmd(os.Args[2:])
			return
		case "versions":
			versionsCmd(os.Args[2:])
			return
		}
	}
	versionsCmd(os.Args[1:])
}

type storeFlags struct {
	config *string
	db     *string
	shape  *int
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		config: fs.String("config", "./configs/editor.yaml", "editor config path (empty for defaults)"),
		db:     fs.String("db", "", "chunk database path (overrides database_path)"),
		shape:  fs.Int("shape", 0, "chunk shape (overrides chunk_shape)"),
	}
}

// open opens the store named by the flags, exiting on failure.
func (f storeFlags) open(ctx context.Context) *chunkdb.DB {
	path := strings.TrimSpace(*f.config)
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(2)
	}
	if p := strings.TrimSpace(*f.db); p != "" {
		cfg.DatabasePath = p
	}
	if *f.shape > 0 {
		cfg.ChunkShape = *f.shape
	}
	if _, err := os.Stat(cfg.DatabasePath); err != nil {
		fmt.Fprintln(os.Stderr, "store:", err)
		os.Exit(2)
	}
	cd, err := codec.New(cfg.Codec.Name, cfg.Codec.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "codec:", err)
		os.Exit(2)
	}
	db, err := chunkdb.Open(ctx, cfg.DatabasePath, chunkdb.Options{
		ChunkShape: cfg.ChunkShape,
		Codec:      cd,
		Workers:    cfg.IOWorkers,
		CacheSize:  cfg.ChunkCacheSize,
		Logger:     log.New(io.Discard, "", 0),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	return db
}

func versionsCmd(args []string) {
	fs := flag.NewFlagSet("versions", flag.ExitOnError)
	sf := addStoreFlags(fs)
	limit := fs.Int("limit", 0, "show only the newest N versions (0 for all)")
	_ = fs.Parse(args)

	ctx := context.Background()
	db := sf.open(ctx)
	defer db.Close()

	vs, err := db.Versions(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "versions:", err)
		os.Exit(1)
	}
	if *limit > 0 && len(vs) > *limit {
		vs = vs[len(vs)-*limit:]
	}
	for _, v := range vs {
		mark := " "
		if v.Current {
			mark = "*"
		}
		parent := "-"
		if v.Parent != 0 {
			parent = strconv.FormatUint(v.Parent, 10)
		}
		fmt.Printf("%s %6d parent=%-6s +%d -%d %dB %s\n", mark, v.Version, parent, v.Inserts, v.Removes, v.Bytes, v.CreatedAt)
	}
}

type chunkRow struct {
	LOD    uint8  `json:"lod"`
	Min    [3]int `json:"min"`
	Solid  bool   `json:"solid"`
	Bytes  int    `json:"bytes"`
	Digest string `json:"digest"`
}

func chunksCmd(args []string) {
	fs := flag.NewFlagSet("chunks", flag.ExitOnError)
	sf := addStoreFlags(fs)
	extent := fs.String("extent", "", "voxel extent x1,y1,z1:x2,y2,z2 (inclusive; empty for all)")
	limit := fs.Int("limit", 0, "result limit (0 for all)")
	_ = fs.Parse(args)

	var ext *voxel.Extent
	if strings.TrimSpace(*extent) != "" {
		min, max, err := parseAABB(*extent)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -extent:", err)
			os.Exit(2)
		}
		e := voxel.ExtentFromMinAndMax(voxel.P(min[0], min[1], min[2]), voxel.P(max[0], max[1], max[2]))
		ext = &e
	}

	ctx := context.Background()
	db := sf.open(ctx)
	defer db.Close()

	var (
		chunks []chunkdb.LoadedChunk
		err    error
	)
	if ext != nil {
		chunks, err = db.LoadExtent(ctx, *ext)
	} else {
		chunks, err = db.LoadAll(ctx)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "load:", err)
		os.Exit(1)
	}
	if *limit > 0 && len(chunks) > *limit {
		chunks = chunks[:*limit]
	}
	enc := json.NewEncoder(os.Stdout)
	for _, c := range chunks {
		if err := enc.Encode(rowFor(c)); err != nil {
			fmt.Fprintln(os.Stderr, "write:", err)
			os.Exit(1)
		}
	}
}

func rowFor(c chunkdb.LoadedChunk) chunkRow {
	d := c.Chunk.Digest()
	return chunkRow{
		LOD:    c.Key.LOD,
		Min:    [3]int{c.Key.Min.X, c.Key.Min.Y, c.Key.Min.Z},
		Solid:  c.Chunk.HasSolid(),
		Bytes:  c.Chunk.SizeBytes(),
		Digest: fmt.Sprintf("%x", d[:8]),
	}
}

type storeStats struct {
	StoreID        string `json:"store_id"`
	ChunkShape     int    `json:"chunk_shape"`
	CurrentVersion uint64 `json:"current_version"`
	Versions       int    `json:"versions"`
	StoredBytes    int64  `json:"stored_bytes"`
	Chunks         int    `json:"chunks"`
	SolidChunks    int    `json:"solid_chunks"`
	// Bounds covers every stored chunk; nil for an empty store.
	Bounds *boundsRow `json:"bounds,omitempty"`
}

type boundsRow struct {
	Min [3]int `json:"min"`
	Max [3]int `json:"max"`
}

func collectStats(ctx context.Context, db *chunkdb.DB) (storeStats, error) {
	st := storeStats{
		StoreID:        db.StoreID(),
		ChunkShape:     db.ChunkShape(),
		CurrentVersion: db.CurrentVersion(),
	}
	vs, err := db.Versions(ctx)
	if err != nil {
		return st, err
	}
	st.Versions = len(vs)
	for _, v := range vs {
		st.StoredBytes += v.Bytes
	}
	chunks, err := db.LoadAll(ctx)
	if err != nil {
		return st, err
	}
	st.Chunks = len(chunks)
	var bounds voxel.Extent
	for _, c := range chunks {
		if c.Chunk.HasSolid() {
			st.SolidChunks++
		}
		bounds = bounds.BoundingUnion(voxel.ExtentFromMinAndShape(c.Key.Min, voxel.Fill(st.ChunkShape)))
	}
	if !bounds.IsEmpty() {
		mx := bounds.Max()
		st.Bounds = &boundsRow{
			Min: [3]int{bounds.Min.X, bounds.Min.Y, bounds.Min.Z},
			Max: [3]int{mx.X, mx.Y, mx.Z},
		}
	}
	return st, nil
}

func statsCmd(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	sf := addStoreFlags(fs)
	_ = fs.Parse(args)

	ctx := context.Background()
	db := sf.open(ctx)
	defer db.Close()

	st, err := collectStats(ctx, db)
	if err != nil {
		fmt.Fprintln(os.Stderr, "stats:", err)
		os.Exit(1)
	}
	b, _ := json.MarshalIndent(st, "", "  ")
	fmt.Println(string(b))
}

func compactCmd(args []string) {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)
	sf := addStoreFlags(fs)
	yes := fs.Bool("yes", false, "drop every version except the current state")
	_ = fs.Parse(args)

	if !*yes {
		fmt.Fprintln(os.Stderr, "compact discards version history; pass -yes to confirm")
		os.Exit(2)
	}

	ctx := context.Background()
	db := sf.open(ctx)
	defer db.Close()

	before := db.CurrentVersion()
	root, err := db.Compact(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "compact:", err)
		os.Exit(1)
	}
	fmt.Printf("compacted version %d into root %d\n", before, root)
}

func parseAABB(s string) (min, max [3]int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return min, max, fmt.Errorf("expected x1,y1,z1:x2,y2,z2")
	}
	a, err := parseVec3(parts[0])
	if err != nil {
		return min, max, err
	}
	b, err := parseVec3(parts[1])
	if err != nil {
		return min, max, err
	}
	for i := 0; i < 3; i++ {
		if a[i] <= b[i] {
			min[i], max[i] = a[i], b[i]
		} else {
			min[i], max[i] = b[i], a[i]
		}
	}
	return min, max, nil
}

func parseVec3(s string) ([3]int, error) {
	var v [3]int
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("expected x,y,z")
	}
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return v, err
		}
		v[i] = n
	}
	return v, nil
}
