package session

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"voxelsculpt.ai/internal/hint"
	"voxelsculpt.ai/internal/input"
	"voxelsculpt.ai/internal/persistence/codec"
	"voxelsculpt.ai/internal/protocol"
	"voxelsculpt.ai/internal/voxel"
)

// maxChunksPerFrame bounds one frame's payload; the rest follow in later frames.
const maxChunksPerFrame = 256

type JoinRequest struct {
	ClientName string
	Codecs     []string
	Mesh       bool
	Out        chan []byte
	Resp       chan protocol.WelcomeMsg
}

type InputEnvelope struct {
	ClientID string
	Input    protocol.InputMsg
}

type SaveResult struct {
	Version uint64
	Err     error
}

type saveRequest struct {
	resp chan SaveResult
}

type client struct {
	id    string
	name  string
	mesh  bool
	codec codec.Codec
	out   chan []byte
	// pending chunks not yet delivered
	pending map[voxel.ChunkKey]struct{}
}

func (c *client) markPending(keys []voxel.ChunkKey) {
	for _, k := range keys {
		c.pending[k] = struct{}{}
	}
}

func (s *Session) Join() chan<- JoinRequest    { return s.join }
func (s *Session) Leave() chan<- string        { return s.leave }
func (s *Session) Inbox() chan<- InputEnvelope { return s.inbox }
func (s *Session) Done() <-chan struct{}       { return s.done }

// Stop makes Run return nil.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// RequestSave asks the running loop to save and waits for the result.
func (s *Session) RequestSave(ctx context.Context) (SaveResult, error) {
	req := saveRequest{resp: make(chan SaveResult, 1)}
	select {
	case s.saves <- req:
	case <-s.done:
		return SaveResult{}, ErrStopped
	case <-ctx.Done():
		return SaveResult{}, ctx.Err()
	}
	select {
	case res := <-req.resp:
		return res, nil
	case <-s.done:
		return SaveResult{}, ErrStopped
	case <-ctx.Done():
		return SaveResult{}, ctx.Err()
	}
}

// Run ticks at the configured rate until ctx is done, Stop is called, or a
// save fails. Done is closed when it returns.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	interval := time.Second / time.Duration(s.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case req := <-s.join:
			s.handleJoin(req)
		case id := <-s.leave:
			s.handleLeave(id)
		case env := <-s.inbox:
			s.handleInput(env)
		case req := <-s.saves:
			v, err := s.Save(ctx)
			req.resp <- SaveResult{Version: v, Err: err}
			if err != nil {
				return s.saveFailed(err)
			}
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				return s.saveFailed(err)
			}
		}
	}
}

// saveFailed tells every client the session is stopping on err.
func (s *Session) saveFailed(err error) error {
	for _, c := range s.clients {
		sendJSON(c, protocol.NewError(protocol.ErrSaveFailed, err.Error()))
	}
	return err
}

// pickCodec prefers the session codec, then the client's first choice.
func (s *Session) pickCodec(accepted []string) codec.Codec {
	if len(accepted) == 0 || slices.Contains(accepted, s.codec.Name()) {
		return s.codec
	}
	for _, name := range accepted {
		if c, err := codec.New(name, 0); err == nil {
			return c
		}
	}
	return s.codec
}

func (s *Session) handleJoin(req JoinRequest) {
	c := &client{
		id:      uuid.NewString(),
		name:    req.ClientName,
		mesh:    req.Mesh,
		codec:   s.pickCodec(req.Codecs),
		out:     req.Out,
		pending: map[voxel.ChunkKey]struct{}{},
	}
	// a new client gets the whole map over its first frames
	c.markPending(s.m.Keys())
	s.clients[c.id] = c
	s.metrics.Clients.Set(float64(len(s.clients)))
	s.log.Printf("client %s (%s) joined, %d chunks to sync", c.id, c.name, len(c.pending))

	req.Resp <- protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       c.id,
		StoreID:         s.store.StoreID(),
		ChunkShape:      s.cfg.ChunkShape,
		TickRateHz:      s.cfg.TickRateHz,
		Codec:           c.codec.Name(),
		Version:         s.store.CurrentVersion(),
	}
}

func (s *Session) handleLeave(id string) {
	if _, ok := s.clients[id]; !ok {
		return
	}
	delete(s.clients, id)
	s.metrics.Clients.Set(float64(len(s.clients)))
	s.log.Printf("client %s left", id)
}

func (s *Session) handleInput(env InputEnvelope) {
	if err := s.ApplyInput(env.Input); err != nil {
		if c, ok := s.clients[env.ClientID]; ok {
			sendJSON(c, protocol.NewError(protocol.ErrBadInput, err.Error()))
		}
	}
}

// ApplyInput folds one INPUT message into the input state for the next
// tick. Cursor and camera are replaced; button edges accumulate until the
// tick consumes them. Unknown button names are skipped and reported.
func (s *Session) ApplyInput(msg protocol.InputMsg) error {
	in := s.input
	if msg.Cursor != nil {
		v := mgl32.Vec2{msg.Cursor[0], msg.Cursor[1]}
		in.Cursor = &v
	} else {
		in.Cursor = nil
	}
	if msg.Camera != nil {
		in.Camera = &input.Camera{
			Transform:  mgl32.Mat4(msg.Camera.Transform),
			Projection: mgl32.Mat4(msg.Camera.Projection),
			Viewport:   mgl32.Vec2{msg.Camera.Viewport[0], msg.Camera.Viewport[1]},
		}
	} else {
		in.Camera = nil
	}

	var unknown []string
	mousePressed := parseButtons(msg.Mouse.Pressed, input.ParseMouseButton, &unknown)
	mouseReleased := parseButtons(msg.Mouse.Released, input.ParseMouseButton, &unknown)
	keysPressed := parseButtons(msg.Keys.Pressed, input.ParseKey, &unknown)
	keysReleased := parseButtons(msg.Keys.Released, input.ParseKey, &unknown)
	applyEdges(in.Mouse, mousePressed, mouseReleased)
	applyEdges(in.Keys, keysPressed, keysReleased)

	if len(unknown) > 0 {
		return fmt.Errorf("unknown buttons: %s", strings.Join(lo.Uniq(unknown), ", "))
	}
	return nil
}

func parseButtons[T any](names []string, parse func(string) (T, bool), unknown *[]string) []T {
	out := make([]T, 0, len(names))
	for _, n := range names {
		if v, ok := parse(n); ok {
			out = append(out, v)
		} else {
			*unknown = append(*unknown, n)
		}
	}
	return out
}

// applyEdges applies one message's edges. A button in both lists was
// released and pressed again if it was held, otherwise pressed and released
// so a click that fits between two messages is kept.
func applyEdges[T comparable](b *input.ButtonInput[T], pressed, released []T) {
	again := lo.Filter(released, func(v T, _ int) bool { return b.Pressed(v) && lo.Contains(pressed, v) })
	for _, v := range again {
		b.Release(v)
	}
	for _, v := range pressed {
		b.Press(v)
	}
	for _, v := range released {
		if !lo.Contains(again, v) {
			b.Release(v)
		}
	}
}

// publish sends this tick's frame to every client. A client whose queue is
// full skips the frame and keeps its pending chunks.
func (s *Session) publish() {
	if len(s.clients) == 0 {
		return
	}
	hints := s.protocolHints()
	type encodedKey struct {
		codec string
		key   voxel.ChunkKey
	}
	encoded := map[encodedKey]protocol.ChunkDelta{}

	for _, c := range s.clients {
		keys := lo.Keys(c.pending)
		voxel.SortKeys(keys)
		if len(keys) > maxChunksPerFrame {
			keys = keys[:maxChunksPerFrame]
		}

		frame := s.frame(hints, c.mesh)
		for _, k := range keys {
			ek := encodedKey{codec: c.codec.Name(), key: k}
			d, ok := encoded[ek]
			if !ok {
				d = s.encodeChunk(k, c.codec)
				encoded[ek] = d
			}
			frame.Chunks = append(frame.Chunks, d)
		}
		if sendJSON(c, frame) {
			for _, k := range keys {
				delete(c.pending, k)
			}
		}
	}
}

func (s *Session) frame(hints protocol.Hints, mesh bool) protocol.FrameMsg {
	f := protocol.FrameMsg{
		Type:            protocol.TypeFrame,
		ProtocolVersion: protocol.Version,
		Tick:            s.tick,
		Tool:            s.tool.String(),
		CameraEnabled:   s.cameraEnabled,
		Hints:           protocol.Hints{Quads: hints.Quads, Brush: hints.Brush},
		History: protocol.HistoryState{
			Undo:      s.timeline.UndoLen(),
			Redo:      s.timeline.RedoLen(),
			Editing:   s.timeline.InProgress(),
			Unsaved:   s.editor.UnsavedCount(),
			UndoBytes: s.timeline.UndoBytes(),
		},
		SavedVersion: s.savedVersion,
	}
	if s.tool == ToolDragFace {
		f.SelectionPhase = s.sel.Phase.String()
	}
	if mesh {
		f.Hints.Mesh = hints.Mesh
	}
	return f
}

func (s *Session) protocolHints() protocol.Hints {
	var h protocol.Hints
	for _, q := range s.hints.Quads {
		h.Quads = append(h.Quads, protocol.Quad{
			Min:    [3]int{q.Extent.Min.X, q.Extent.Min.Y, q.Extent.Min.Z},
			Shape:  [3]int{q.Extent.Shape.X, q.Extent.Shape.Y, q.Extent.Shape.Z},
			Normal: q.Normal.String(),
		})
	}
	if len(s.hints.Quads) > 0 {
		h.Mesh = toProtocolMesh(s.hints.Mesh())
	}
	if b := s.hints.Brush; b != nil {
		h.Brush = &protocol.Brush{Center: b.Center, Radius: b.Radius, Material: uint8(b.Material)}
	}
	return h
}

func toProtocolMesh(m hint.Mesh) *protocol.Mesh {
	return &protocol.Mesh{
		Positions: lo.Map(m.Positions, func(v mgl32.Vec3, _ int) [3]float32 { return v }),
		Normals:   lo.Map(m.Normals, func(v mgl32.Vec3, _ int) [3]float32 { return v }),
		Indices:   slices.Clone(m.Indices),
	}
}

func (s *Session) encodeChunk(key voxel.ChunkKey, cd codec.Codec) protocol.ChunkDelta {
	d := protocol.ChunkDelta{LOD: key.LOD, Min: [3]int{key.Min.X, key.Min.Y, key.Min.Z}}
	c, ok := s.m.Copy(key)
	if !ok {
		d.Removed = true
		return d
	}
	raw, err := c.MarshalBinary()
	if err != nil {
		s.log.Printf("encode chunk %v: %v", key, err)
		d.Removed = true
		return d
	}
	d.Codec = cd.Name()
	d.Data = cd.Encode(raw)
	return d
}

func sendJSON(c *client, v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	select {
	case c.out <- b:
		return true
	default:
		return false
	}
}
