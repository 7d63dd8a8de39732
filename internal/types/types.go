package types

import "cvd-cam-go/internal/frame"

// RawMessage is one message from a frame source. Image is only set for
// Type == "frame"; other types carry Meta.
type RawMessage struct {
	Type  string
	Image RawFrame
	Meta  map[string]any
}

// RawFrame is a decoded capture frame waiting for a filter.
type RawFrame struct {
	FrameID   int
	Timestamp float64
	// Filter optionally overrides the shell's current selection.
	Filter string
	Image  frame.Frame
}

// Frame is a filtered frame ready for display.
type Frame struct {
	FrameID   int
	Timestamp float64
	Filter    string
	Image     frame.Frame
}
