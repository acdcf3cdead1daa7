// Package render streams rendered scanlines to the display through the
// set-window-then-stream protocol. One reusable fixed-capacity line buffer is
// shared by every frame; it never grows and never allocates per frame.
package render

import (
	"panelcode-go/errcode"
)

// Display is the sink contract. drivers/ili9341 is the production
// implementation; tests substitute a recorder.
type Display interface {
	// SetWindow bounds the target rectangle, inclusive coordinates.
	SetWindow(x0, y0, x1, y1 uint16) error
	// WritePixels streams packed RGB565 pixels into the current window.
	WritePixels(pix []uint16) error
}

// Sink owns the line buffer for one display.
type Sink struct {
	d    Display
	line []uint16 // capacity == panel width, allocated once
}

// NewSink allocates the line buffer for a panel of the given pixel width.
func NewSink(d Display, width int) *Sink {
	return &Sink{d: d, line: make([]uint16, width)}
}

// Width returns the panel pixel width the sink was built for.
func (s *Sink) Width() int { return len(s.line) }

// ProcessLine fills only columns [start,end) of the reusable buffer via fill,
// then streams exactly those pixels to row line of the display.
//
// A streaming failure is fatal for the in-progress frame; there is no
// partial-row recovery — callers treat a line as an atomic unit.
func (s *Sink) ProcessLine(line, start, end int, fill func(row []uint16)) error {
	if line < 0 || start < 0 || end > len(s.line) || start >= end {
		return &errcode.E{C: errcode.InvalidParams, Op: "process line"}
	}

	buf := s.line[start:end]
	fill(buf)

	if err := s.d.SetWindow(uint16(start), uint16(line), uint16(end-1), uint16(line)); err != nil {
		return err
	}
	return s.d.WritePixels(buf)
}
