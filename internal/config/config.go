package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"voxelsculpt.ai/internal/persistence/codec"
)

type Config struct {
	ChunkShape      int     `yaml:"chunk_shape"`
	DatabasePath    string  `yaml:"database_path"`
	TickRateHz      int     `yaml:"tick_rate_hz"`
	IOWorkers       int     `yaml:"io_workers"`
	ChunkCacheSize  int     `yaml:"chunk_cache_size"`
	PickMaxDistance float32 `yaml:"pick_max_distance"`
	// JournalDir receives the history journal. Empty disables it.
	JournalDir string `yaml:"journal_dir"`

	Codec      CodecSpec     `yaml:"codec"`
	LoadExtent ExtentSpec    `yaml:"load_extent"`
	DragFace   DragFaceSpec  `yaml:"drag_face"`
	Terraform  TerraformSpec `yaml:"terraform"`
	Undo       UndoSpec      `yaml:"undo"`
	Seed       SeedSpec      `yaml:"seed"`
}

type CodecSpec struct {
	Name  string `yaml:"name"`
	Level int    `yaml:"level"`
}

type ExtentSpec struct {
	Min   [3]int `yaml:"min"`
	Shape [3]int `yaml:"shape"`
}

type DragFaceSpec struct {
	Material uint8 `yaml:"material"`
}

type TerraformSpec struct {
	Radius          int     `yaml:"radius"`
	Material        uint8   `yaml:"material"`
	GrowthFactor    float32 `yaml:"growth_factor"`
	DefaultDistance float32 `yaml:"default_distance"`
}

type UndoSpec struct {
	// MaxBytes bounds snapshot memory held for undo. 0 is unbounded.
	MaxBytes int `yaml:"max_bytes"`
}

type SeedSpec struct {
	Shape    string `yaml:"shape"` // box | sphere | none
	Min      [3]int `yaml:"min"`
	Size     [3]int `yaml:"size"`
	Material uint8  `yaml:"material"`
}

func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("editor.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("editor.yaml: %w", err)
	}
	return cfg, nil
}

func Defaults() Config {
	return Config{
		ChunkShape:      16,
		DatabasePath:    "data/editor.db",
		TickRateHz:      60,
		IOWorkers:       runtime.NumCPU(),
		ChunkCacheSize:  1024,
		PickMaxDistance: 1000,
		Codec:           CodecSpec{Name: codec.NameZstd},
		LoadExtent: ExtentSpec{
			Min:   [3]int{-1024, -1024, -1024},
			Shape: [3]int{2048, 2048, 2048},
		},
		DragFace: DragFaceSpec{Material: 2},
		Terraform: TerraformSpec{
			Radius:          10,
			Material:        1,
			GrowthFactor:    20,
			DefaultDistance: 20,
		},
		Seed: SeedSpec{
			Shape:    "box",
			Min:      [3]int{0, 0, 0},
			Size:     [3]int{64, 64, 64},
			Material: 2,
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.DatabasePath = strings.TrimSpace(c.DatabasePath)
	c.JournalDir = strings.TrimSpace(c.JournalDir)
	c.Codec.Name = strings.ToLower(strings.TrimSpace(c.Codec.Name))
	if c.Codec.Name == "" {
		c.Codec.Name = codec.NameZstd
	}
	c.Seed.Shape = strings.ToLower(strings.TrimSpace(c.Seed.Shape))
	if c.Seed.Shape == "" {
		c.Seed.Shape = "none"
	}
	if c.IOWorkers <= 0 {
		c.IOWorkers = runtime.NumCPU()
	}
	if c.ChunkCacheSize <= 0 {
		c.ChunkCacheSize = 1024
	}
	if c.Terraform.Radius < 1 {
		c.Terraform.Radius = 1
	}
	if c.Undo.MaxBytes < 0 {
		c.Undo.MaxBytes = 0
	}
}

func (c Config) Validate() error {
	if c.ChunkShape < 4 || c.ChunkShape > 64 || c.ChunkShape&(c.ChunkShape-1) != 0 {
		return fmt.Errorf("chunk_shape must be a power of two in [4, 64], got %d", c.ChunkShape)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	if c.TickRateHz <= 0 || c.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz out of range: %d", c.TickRateHz)
	}
	if c.PickMaxDistance <= 0 {
		return fmt.Errorf("pick_max_distance must be positive")
	}
	switch c.Codec.Name {
	case codec.NameZstd, codec.NameS2, codec.NameNone:
	default:
		return fmt.Errorf("codec.name: %w: %q", codec.ErrUnknownCodec, c.Codec.Name)
	}
	if c.Codec.Level < 0 || c.Codec.Level > 4 {
		return fmt.Errorf("codec.level must be in [0, 4]")
	}
	for i, s := range c.LoadExtent.Shape {
		if s <= 0 {
			return fmt.Errorf("load_extent.shape[%d] must be positive", i)
		}
	}
	if c.DragFace.Material == 0 {
		return fmt.Errorf("drag_face.material must not be the empty material")
	}
	if c.Terraform.Material == 0 || c.Terraform.Material > 4 {
		return fmt.Errorf("terraform.material must be in [1, 4]")
	}
	if c.Terraform.GrowthFactor <= 0 {
		return fmt.Errorf("terraform.growth_factor must be positive")
	}
	if c.Terraform.DefaultDistance <= 0 {
		return fmt.Errorf("terraform.default_distance must be positive")
	}
	switch c.Seed.Shape {
	case "none":
	case "box", "sphere":
		for i, s := range c.Seed.Size {
			if s <= 0 {
				return fmt.Errorf("seed.size[%d] must be positive", i)
			}
		}
		if c.Seed.Material == 0 {
			return fmt.Errorf("seed.material must not be the empty material")
		}
	default:
		return fmt.Errorf("seed.shape: unknown %q", c.Seed.Shape)
	}
	return nil
}
