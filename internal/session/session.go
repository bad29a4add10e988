// Package session is one interactive editing session: the chunk map, the
// tools that edit it, the undo timeline and the store it saves to. All
// state is owned by the goroutine running Run; other goroutines talk to it
// through channels.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"voxelsculpt.ai/internal/config"
	"voxelsculpt.ai/internal/edit"
	"voxelsculpt.ai/internal/eventbus"
	"voxelsculpt.ai/internal/geometry"
	"voxelsculpt.ai/internal/hint"
	"voxelsculpt.ai/internal/input"
	"voxelsculpt.ai/internal/metrics"
	"voxelsculpt.ai/internal/persistence/chunkdb"
	"voxelsculpt.ai/internal/persistence/codec"
	"voxelsculpt.ai/internal/persistence/journal"
	"voxelsculpt.ai/internal/picking"
	"voxelsculpt.ai/internal/tools/dragface"
	"voxelsculpt.ai/internal/tools/selection"
	"voxelsculpt.ai/internal/tools/terraform"
	"voxelsculpt.ai/internal/voxel"
)

var (
	ErrSaveFailed = errors.New("save failed")
	// ErrStopped is returned to requests made after Run has returned.
	ErrStopped = errors.New("session stopped")
)

// Store is the persistent side of a session.
type Store interface {
	ChunkShape() int
	CurrentVersion() uint64
	StoreID() string
	LoadExtent(ctx context.Context, ext voxel.Extent) ([]chunkdb.LoadedChunk, error)
	UpdateCurrentVersion(ctx context.Context, deltas []chunkdb.Delta) (uint64, error)
	Flush(ctx context.Context) error
}

type Tool uint8

const (
	ToolDragFace Tool = iota
	ToolTerraform
)

func (t Tool) String() string {
	if t == ToolTerraform {
		return "terraform"
	}
	return "drag_face"
}

// Journal receives one entry per history operation.
type Journal interface {
	WriteEntry(e journal.Entry) error
}

type Options struct {
	Logger  *log.Logger
	Metrics *metrics.Metrics
	// Journal is optional.
	Journal Journal
}

type Session struct {
	cfg     config.Config
	store   Store
	log     *log.Logger
	metrics *metrics.Metrics
	journal Journal
	codec   codec.Codec

	m        *voxel.ChunkMap
	editor   *voxel.Editor
	timeline *edit.Timeline
	snap     historyEditor
	picker   *picking.Picker
	cursor   *picking.VoxelCursor
	input    *input.State

	tool     Tool
	sel      selection.State
	drag     dragface.State
	dragTool dragface.Tool
	brush    *terraform.Brush

	selEvents   eventbus.Queue[selection.Event]
	dragEvents  eventbus.Queue[dragface.Event]
	brushEvents eventbus.Queue[terraform.Event]

	cameraEnabled bool
	tick          uint64
	savedVersion  uint64
	hints         hint.Frame

	clients map[string]*client

	join  chan JoinRequest
	leave chan string
	inbox chan InputEnvelope
	saves chan saveRequest

	stopOnce sync.Once
	stop     chan struct{}
	// closed when Run returns
	done chan struct{}
}

func New(cfg config.Config, store Store, opts Options) (*Session, error) {
	if store == nil {
		return nil, fmt.Errorf("session: nil store")
	}
	if store.ChunkShape() != cfg.ChunkShape {
		return nil, fmt.Errorf("session: store shape %d, config shape %d: %w",
			store.ChunkShape(), cfg.ChunkShape, chunkdb.ErrShapeMismatch)
	}
	c, err := codec.New(cfg.Codec.Name, cfg.Codec.Level)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[session] ", log.LstdFlags|log.Lmicroseconds)
	}
	met := opts.Metrics
	if met == nil {
		met = metrics.New(nil)
	}

	m := voxel.NewChunkMap(cfg.ChunkShape)
	ed := voxel.NewEditor(m)
	tl := edit.NewTimeline(cfg.Undo.MaxBytes)

	brush := terraform.NewBrush()
	brush.Radius = cfg.Terraform.Radius
	brush.Material = voxel.Material(cfg.Terraform.Material)
	brush.GrowthFactor = cfg.Terraform.GrowthFactor
	brush.DefaultDistance = cfg.Terraform.DefaultDistance

	s := &Session{
		cfg:      cfg,
		store:    store,
		log:      logger,
		metrics:  met,
		journal:  opts.Journal,
		codec:    c,
		m:        m,
		editor:   ed,
		timeline: tl,
		picker:   picking.NewPicker(m),
		cursor:   picking.NewVoxelCursor(),
		input:    input.NewState(),
		dragTool: dragface.Tool{Material: voxel.Material(cfg.DragFace.Material)},
		brush:    brush,

		cameraEnabled: true,
		savedVersion:  store.CurrentVersion(),
		clients:       map[string]*client{},

		join:  make(chan JoinRequest, 16),
		leave: make(chan string, 16),
		inbox: make(chan InputEnvelope, 1024),
		saves: make(chan saveRequest, 4),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	s.snap = historyEditor{SnapshottingEditor: edit.NewSnapshottingEditor(ed, tl), s: s}
	return s, nil
}

func (s *Session) Map() *voxel.ChunkMap         { return s.m }
func (s *Session) Editor() *voxel.Editor        { return s.editor }
func (s *Session) Timeline() *edit.Timeline     { return s.timeline }
func (s *Session) Input() *input.State          { return s.input }
func (s *Session) Tool() Tool                   { return s.tool }
func (s *Session) Selection() selection.State   { return s.sel }
func (s *Session) Drag() dragface.State         { return s.drag }
func (s *Session) Brush() terraform.Brush       { return *s.brush }
func (s *Session) Hints() hint.Frame            { return s.hints }
func (s *Session) Cursor() *picking.VoxelCursor { return s.cursor }
func (s *Session) CameraEnabled() bool          { return s.cameraEnabled }
func (s *Session) SavedVersion() uint64         { return s.savedVersion }
func (s *Session) TickCount() uint64            { return s.tick }

// SetEnabled pauses or resumes the host camera controller. The state is
// reported to the host in every frame.
func (s *Session) SetEnabled(enabled bool) { s.cameraEnabled = enabled }

// RayAt is the pick ray through a window point of the current camera.
func (s *Session) RayAt(point mgl32.Vec2) (geometry.Ray3, bool) {
	cam := s.input.Camera
	if cam == nil {
		return geometry.Ray3{}, false
	}
	return geometry.RayFromWindowPoint(point, cam.Viewport, cam.Transform, cam.Projection)
}

// historyEditor counts commits and cancels made by the tools.
type historyEditor struct {
	*edit.SnapshottingEditor
	s *Session
}

func (h historyEditor) FinishEdit() bool {
	ok := h.SnapshottingEditor.FinishEdit()
	if ok {
		h.s.metrics.HistoryOp(journal.OpCommit)
		h.s.record(journal.Entry{Op: journal.OpCommit})
	}
	return ok
}

func (h historyEditor) CancelEdit() bool {
	ok := h.SnapshottingEditor.CancelEdit()
	if ok {
		h.s.metrics.HistoryOp(journal.OpCancel)
		h.s.record(journal.Entry{Op: journal.OpCancel})
		h.s.log.Printf("edit cancelled")
	}
	return ok
}

// record fills in the tick and timeline sizes and appends e to the journal.
// Journal failures are logged and otherwise ignored.
func (s *Session) record(e journal.Entry) {
	if s.journal == nil {
		return
	}
	e.Time = time.Now().UTC().Format(time.RFC3339Nano)
	e.Tick = s.tick
	e.Undo = s.timeline.UndoLen()
	e.Redo = s.timeline.RedoLen()
	e.UndoBytes = s.timeline.UndoBytes()
	if err := s.journal.WriteEntry(e); err != nil {
		s.log.Printf("journal %s: %v", e.Op, err)
	}
}
