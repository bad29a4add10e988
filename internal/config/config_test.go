package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChunkShape != 16 || cfg.TickRateHz != 60 || cfg.Codec.Name != "zstd" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "editor.yaml")
	yml := `
chunk_shape: 32
database_path: " /tmp/x.db "
journal_dir: " /tmp/journal "
codec:
  name: S2
terraform:
  radius: 0
  material: 3
undo:
  max_bytes: 1048576
seed:
  shape: Sphere
  size: [20, 20, 20]
`
	if err := os.WriteFile(p, []byte(yml), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChunkShape != 32 || cfg.DatabasePath != "/tmp/x.db" || cfg.Codec.Name != "s2" || cfg.JournalDir != "/tmp/journal" {
		t.Fatalf("unexpected: %+v", cfg)
	}
	if cfg.Terraform.Radius != 1 || cfg.Terraform.Material != 3 || cfg.Terraform.GrowthFactor != 20 {
		t.Fatalf("terraform: %+v", cfg.Terraform)
	}
	if cfg.Undo.MaxBytes != 1<<20 || cfg.Seed.Shape != "sphere" {
		t.Fatalf("undo/seed: %+v %+v", cfg.Undo, cfg.Seed)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"chunk_shape":   func(c *Config) { c.ChunkShape = 12 },
		"database_path": func(c *Config) { c.DatabasePath = "" },
		"codec.name":    func(c *Config) { c.Codec.Name = "lz4" },
		"drag_face":     func(c *Config) { c.DragFace.Material = 0 },
		"terraform":     func(c *Config) { c.Terraform.Material = 9 },
		"seed.shape":    func(c *Config) { c.Seed.Shape = "torus" },
		"seed.size":     func(c *Config) { c.Seed.Size[2] = -1 },
		"load_extent":   func(c *Config) { c.LoadExtent.Shape[1] = 0 },
		"tick_rate_hz":  func(c *Config) { c.TickRateHz = 0 },
	}
	for want, mutate := range cases {
		cfg := Defaults()
		mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", want)
		}
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("%s: error %q does not mention field", want, err)
		}
	}
}
