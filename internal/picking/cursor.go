package picking

import "voxelsculpt.ai/internal/input"

// VoxelCursor is the per-tick picking result plus per-button press latches.
type VoxelCursor struct {
	impact *Impact

	pressStart  map[input.MouseButton]*VoxelFace
	justPressed map[input.MouseButton]*VoxelFace
	justClicked map[input.MouseButton]*VoxelFace
}

func NewVoxelCursor() *VoxelCursor {
	return &VoxelCursor{
		pressStart:  map[input.MouseButton]*VoxelFace{},
		justPressed: map[input.MouseButton]*VoxelFace{},
		justClicked: map[input.MouseButton]*VoxelFace{},
	}
}

// Update records this tick's impact (nil for none) and the button edges.
// When a button has both edges in one tick, its held state gives the order:
// still held means released then pressed again, otherwise pressed then
// released.
func (c *VoxelCursor) Update(impact *Impact, mouse *input.ButtonInput[input.MouseButton]) {
	c.impact = impact
	clear(c.justPressed)
	clear(c.justClicked)

	face := c.Face()
	for _, b := range []input.MouseButton{input.MouseLeft, input.MouseRight, input.MouseMiddle} {
		pressed, released := mouse.JustPressed(b), mouse.JustReleased(b)
		releaseFirst := released && mouse.Pressed(b)
		if releaseFirst {
			c.release(b, face)
		}
		if pressed {
			c.pressStart[b] = face
			if face != nil {
				c.justPressed[b] = face
			}
		}
		if released && !releaseFirst {
			c.release(b, face)
		}
	}
}

func (c *VoxelCursor) release(b input.MouseButton, face *VoxelFace) {
	if start := c.pressStart[b]; start != nil && face != nil && *start == *face {
		c.justClicked[b] = face
	}
	delete(c.pressStart, b)
}

func (c *VoxelCursor) Impact() *Impact { return c.impact }

// Face is the face under the pointer right now.
func (c *VoxelCursor) Face() *VoxelFace {
	if c.impact == nil {
		return nil
	}
	f := c.impact.Face
	return &f
}

// PressStartFace is the face under the pointer when b went down, while b is held.
func (c *VoxelCursor) PressStartFace(b input.MouseButton) *VoxelFace { return c.pressStart[b] }

// JustPressed is the face b went down on this tick.
func (c *VoxelCursor) JustPressed(b input.MouseButton) *VoxelFace { return c.justPressed[b] }

// JustClicked is the face b was released on this tick, if it is the face it was pressed on.
func (c *VoxelCursor) JustClicked(b input.MouseButton) *VoxelFace { return c.justClicked[b] }
