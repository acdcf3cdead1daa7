// Package touchin converts raw touch samples into pointer transition events.
//
// The translator is a Mealy machine over (touched, previous-point) producing
// one of Pressed, Moved, Released or NoInput per poll. Transitions follow
// Pressed -> Moved* -> Released -> idle; two Presseds never occur without an
// intervening Released.
package touchin

import (
	"panelcode-go/types"
	"panelcode-go/x/mathx"
)

// Sample is one raw poll from the touch controller, on the half-resolution
// sensor grid.
type Sample struct {
	Touched bool
	X, Y    int16
}

// Translator tracks the last-known point, used only to classify the next
// sample.
type Translator struct {
	width  int16
	height int16

	last    types.PointerEvent // coordinates only
	hasLast bool
}

// New builds a translator for a panel of the given pixel geometry.
func New(width, height int16) *Translator {
	return &Translator{width: width, height: height}
}

// Remap converts a raw sensor-grid sample into panel coordinates:
//
//	x' = width − 2·rawX
//	y' = 2·rawY
//
// The factor of two compensates for the half-resolution sensor grid; the
// sign/axis arrangement encodes the fixed 270-degree rotation plus vertical
// flip of the physical mounting. Results are clamped into panel bounds.
func (t *Translator) Remap(rawX, rawY int16) (x, y int16) {
	x = mathx.Clamp(t.width-2*rawX, 0, t.width-1)
	y = mathx.Clamp(2*rawY, 0, t.height-1)
	return x, y
}

// Poll classifies one sample.
//
// Re-polling an unchanged touch re-emits Moved: the idempotent-poll policy is
// deliberate, so a held finger keeps the UI's pointer state warm.
func (t *Translator) Poll(s Sample) types.PointerEvent {
	if s.Touched {
		x, y := t.Remap(s.X, s.Y)
		kind := types.PointerMoved
		if !t.hasLast {
			kind = types.PointerPressed
		}
		t.last = types.PointerEvent{X: x, Y: y}
		t.hasLast = true
		return types.PointerEvent{Kind: kind, X: x, Y: y}
	}

	if t.hasLast {
		ev := types.PointerEvent{Kind: types.PointerReleased, X: t.last.X, Y: t.last.Y}
		t.hasLast = false
		return ev
	}

	return types.PointerEvent{Kind: types.PointerNone}
}

// Dispatch forwards one event to the sink. Released is always followed by an
// Exited notification; NoInput is dropped.
func Dispatch(sink types.PointerSink, ev types.PointerEvent) {
	switch ev.Kind {
	case types.PointerPressed:
		sink.Pressed(ev.X, ev.Y)
	case types.PointerMoved:
		sink.Moved(ev.X, ev.Y)
	case types.PointerReleased:
		sink.Released(ev.X, ev.Y)
		sink.Exited()
	}
}
