package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ClientName      string            `json:"client_name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
}

type HelloCapabilities struct {
	// Codecs the client can decode chunk payloads with, best first.
	Codecs []string `json:"codecs,omitempty"`
	// Mesh asks for hint geometry as triangles in addition to quads.
	Mesh bool `json:"mesh,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	StoreID         string `json:"store_id"`
	ChunkShape      int    `json:"chunk_shape"`
	TickRateHz      int    `json:"tick_rate_hz"`
	Codec           string `json:"codec"`
	Version         uint64 `json:"version"`
}

// INPUT (client -> server). Button lists carry edges seen since the
// previous INPUT.
type InputMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Seq             uint64       `json:"seq"`
	Cursor          *[2]float32  `json:"cursor,omitempty"`
	Camera          *CameraState `json:"camera,omitempty"`
	Mouse           ButtonEdges  `json:"mouse"`
	Keys            ButtonEdges  `json:"keys"`
}

// CameraState matrices are column-major.
type CameraState struct {
	Transform  [16]float32 `json:"transform"`
	Projection [16]float32 `json:"projection"`
	Viewport   [2]float32  `json:"viewport"`
}

type ButtonEdges struct {
	Pressed  []string `json:"pressed,omitempty"`
	Released []string `json:"released,omitempty"`
}

// FRAME (server -> client)
type FrameMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	Tool            string       `json:"tool"`
	SelectionPhase  string       `json:"selection_phase,omitempty"`
	CameraEnabled   bool         `json:"camera_enabled"`
	Hints           Hints        `json:"hints"`
	Chunks          []ChunkDelta `json:"chunks,omitempty"`
	History         HistoryState `json:"history"`
	SavedVersion    uint64       `json:"saved_version"`
}

type Hints struct {
	Quads []Quad `json:"quads,omitempty"`
	Mesh  *Mesh  `json:"mesh,omitempty"`
	Brush *Brush `json:"brush,omitempty"`
}

type Quad struct {
	Min    [3]int `json:"min"`
	Shape  [3]int `json:"shape"`
	Normal string `json:"normal"`
}

type Mesh struct {
	Positions [][3]float32 `json:"positions"`
	Normals   [][3]float32 `json:"normals"`
	Indices   []uint32     `json:"indices"`
}

type Brush struct {
	Center   [3]float32 `json:"center"`
	Radius   float32    `json:"radius"`
	Material uint8      `json:"material"`
}

// ChunkDelta is one chunk the renderer should rebuild. Removed chunks carry
// no data and read as ambient.
type ChunkDelta struct {
	LOD     uint8  `json:"lod"`
	Min     [3]int `json:"min"`
	Removed bool   `json:"removed,omitempty"`
	Codec   string `json:"codec,omitempty"`
	Data    []byte `json:"data,omitempty"`
}

type HistoryState struct {
	Undo      int  `json:"undo"`
	Redo      int  `json:"redo"`
	Editing   bool `json:"editing"`
	Unsaved   int  `json:"unsaved"`
	UndoBytes int  `json:"undo_bytes"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
