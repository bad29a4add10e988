// Package input models the per-tick input state handed to the editor by
// the host window system.
package input

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

type MouseButton uint8

const (
	MouseLeft MouseButton = iota
	MouseRight
	MouseMiddle
)

func (b MouseButton) String() string {
	switch b {
	case MouseLeft:
		return "left"
	case MouseRight:
		return "right"
	default:
		return "middle"
	}
}

type Key string

const (
	KeyD      Key = "D"
	KeyT      Key = "T"
	KeyU      Key = "U"
	KeyR      Key = "R"
	KeyS      Key = "S"
	KeyZ      Key = "Z"
	KeyX      Key = "X"
	Key1      Key = "1"
	Key2      Key = "2"
	Key3      Key = "3"
	Key4      Key = "4"
	KeyUp     Key = "UP"
	KeyDown   Key = "DOWN"
	KeyEscape Key = "ESCAPE"
)

var knownKeys = map[Key]struct{}{
	KeyD: {}, KeyT: {}, KeyU: {}, KeyR: {}, KeyS: {}, KeyZ: {}, KeyX: {},
	Key1: {}, Key2: {}, Key3: {}, Key4: {},
	KeyUp: {}, KeyDown: {}, KeyEscape: {},
}

// ParseKey accepts the key names the editor binds, case-insensitively.
func ParseKey(s string) (Key, bool) {
	k := Key(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := knownKeys[k]
	return k, ok
}

func ParseMouseButton(s string) (MouseButton, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return MouseLeft, true
	case "right":
		return MouseRight, true
	case "middle":
		return MouseMiddle, true
	}
	return 0, false
}

// ButtonInput tracks held buttons and the edges seen since the last Clear.
type ButtonInput[T comparable] struct {
	pressed      map[T]struct{}
	justPressed  map[T]struct{}
	justReleased map[T]struct{}
}

func NewButtonInput[T comparable]() *ButtonInput[T] {
	return &ButtonInput[T]{
		pressed:      map[T]struct{}{},
		justPressed:  map[T]struct{}{},
		justReleased: map[T]struct{}{},
	}
}

func (b *ButtonInput[T]) Press(v T) {
	if _, ok := b.pressed[v]; ok {
		return
	}
	b.pressed[v] = struct{}{}
	b.justPressed[v] = struct{}{}
}

func (b *ButtonInput[T]) Release(v T) {
	if _, ok := b.pressed[v]; !ok {
		return
	}
	delete(b.pressed, v)
	b.justReleased[v] = struct{}{}
}

func (b *ButtonInput[T]) Pressed(v T) bool {
	_, ok := b.pressed[v]
	return ok
}

func (b *ButtonInput[T]) JustPressed(v T) bool {
	_, ok := b.justPressed[v]
	return ok
}

func (b *ButtonInput[T]) JustReleased(v T) bool {
	_, ok := b.justReleased[v]
	return ok
}

// Clear drops the edges; held state is kept. Called once per tick.
func (b *ButtonInput[T]) Clear() {
	clear(b.justPressed)
	clear(b.justReleased)
}

// Camera is the active camera as reported by the host.
type Camera struct {
	// Transform is camera-to-world.
	Transform  mgl32.Mat4
	Projection mgl32.Mat4
	// Viewport is the window size in pixels.
	Viewport mgl32.Vec2
}

// State is everything the editor reads from the host each tick.
type State struct {
	// Cursor is the pointer position in window pixels, y down. Nil while the
	// pointer is outside the window.
	Cursor *mgl32.Vec2
	// Camera is nil when no camera is active.
	Camera *Camera
	Mouse  *ButtonInput[MouseButton]
	Keys   *ButtonInput[Key]
}

func NewState() *State {
	return &State{
		Mouse: NewButtonInput[MouseButton](),
		Keys:  NewButtonInput[Key](),
	}
}

// EndTick clears per-tick edges.
func (s *State) EndTick() {
	s.Mouse.Clear()
	s.Keys.Clear()
}
