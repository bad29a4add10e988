// Package codec compresses chunk payloads. The codec name is stored next to
// every compressed blob so stores written with one codec stay readable
// after the configured codec changes.
package codec

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

var ErrUnknownCodec = errors.New("unknown codec")

const (
	NameZstd = "zstd"
	NameS2   = "s2"
	NameNone = "none"
)

// Codec must be safe for concurrent use.
type Codec interface {
	Name() string
	Encode(src []byte) []byte
	Decode(src []byte) ([]byte, error)
}

// New returns the named codec. level only applies to zstd (1-4, 0 = default).
func New(name string, level int) (Codec, error) {
	switch name {
	case NameZstd, "":
		return newZstd(level)
	case NameS2:
		return s2Codec{}, nil
	case NameNone:
		return noneCodec{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstd(level int) (*zstdCodec, error) {
	lvl := zstd.SpeedDefault
	if level > 0 {
		lvl = zstd.EncoderLevel(level)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(lvl))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &zstdCodec{enc: enc, dec: dec}, nil
}

func (c *zstdCodec) Name() string { return NameZstd }

func (c *zstdCodec) Encode(src []byte) []byte { return c.enc.EncodeAll(src, nil) }

func (c *zstdCodec) Decode(src []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}

type s2Codec struct{}

func (s2Codec) Name() string { return NameS2 }

func (s2Codec) Encode(src []byte) []byte { return s2.Encode(nil, src) }

func (s2Codec) Decode(src []byte) ([]byte, error) {
	out, err := s2.Decode(nil, src)
	if err != nil {
		return nil, fmt.Errorf("s2 decode: %w", err)
	}
	return out, nil
}

type noneCodec struct{}

func (noneCodec) Name() string { return NameNone }

func (noneCodec) Encode(src []byte) []byte { return append([]byte(nil), src...) }

func (noneCodec) Decode(src []byte) ([]byte, error) { return append([]byte(nil), src...), nil }

// Registry resolves stored codec names, creating each codec once.
type Registry struct {
	mu     sync.Mutex
	codecs map[string]Codec
}

func NewRegistry(preloaded ...Codec) *Registry {
	r := &Registry{codecs: map[string]Codec{}}
	for _, c := range preloaded {
		r.codecs[c.Name()] = c
	}
	return r
}

func (r *Registry) Get(name string) (Codec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.codecs[name]; ok {
		return c, nil
	}
	c, err := New(name, 0)
	if err != nil {
		return nil, err
	}
	r.codecs[name] = c
	return c, nil
}
