package graphics

import "gones/internal/ppu"

// FrameSink adapts the PPU's per-dot VideoSink contract to the Backend's
// whole-frame presentation model. Put accumulates palette-indexed pixels
// into a back buffer as the PPU rasterizes them; Render, called by the PPU
// at the end of each visible frame (dot 1 of scanline 241), swaps that back
// buffer to the front so a reader never observes a half-drawn frame. The
// application calls Present from its render step, after the bus has run a
// frame on its own 60Hz pacing clock, to hand the most recently completed
// frame to a Window.
type FrameSink struct {
	back  [256 * 240]uint32
	front [256 * 240]uint32
}

// NewFrameSink creates an empty frame sink.
func NewFrameSink() *FrameSink {
	return &FrameSink{}
}

// Put implements ppu.VideoSink.
func (s *FrameSink) Put(x, y int, colorIndex uint8) {
	if x < 0 || x >= 256 || y < 0 || y >= 240 {
		return
	}
	s.back[y*256+x] = ppu.NESColorToRGB(colorIndex)
}

// Render implements ppu.VideoSink: it publishes the just-finished frame.
func (s *FrameSink) Render() {
	s.front = s.back
}

// Present hands the most recently published frame to a Window, running it
// through an optional VideoProcessor first.
func (s *FrameSink) Present(window Window, processor *VideoProcessor) error {
	if window == nil {
		return nil
	}
	buffer := s.front
	if processor != nil {
		processed := processor.ProcessFrame(buffer[:])
		copy(buffer[:], processed)
	}
	return window.RenderFrame(buffer)
}

// FrameBuffer returns the most recently published frame, e.g. for headless
// snapshot tooling.
func (s *FrameSink) FrameBuffer() [256 * 240]uint32 {
	return s.front
}

var _ ppu.VideoSink = (*FrameSink)(nil)
