package touchin

import (
	"testing"

	"panelcode-go/types"
)

func TestRemapFormula(t *testing.T) {
	tr := New(320, 240)

	x, y := tr.Remap(10, 20)
	if x != 300 || y != 40 {
		t.Fatalf("remap(10,20) = (%d,%d), want (300,40)", x, y)
	}
}

func TestRemapClampsToPanel(t *testing.T) {
	tr := New(320, 240)

	// Raw 0 maps to width, one past the last column.
	if x, _ := tr.Remap(0, 0); x != 319 {
		t.Fatalf("remap(0,_) x = %d, want clamp to 319", x)
	}
	if _, y := tr.Remap(0, 500); y != 239 {
		t.Fatalf("remap(_,500) y = %d, want clamp to 239", y)
	}
}

func TestRemapInjectiveOverSensorGrid(t *testing.T) {
	tr := New(320, 240)

	seen := map[[2]int16]Sample{}
	for rx := int16(0); rx < 160; rx++ {
		for ry := int16(0); ry < 120; ry++ {
			x, y := tr.Remap(rx, ry)
			key := [2]int16{x, y}
			if prev, dup := seen[key]; dup {
				t.Fatalf("remap collision: (%d,%d) and (%d,%d) both map to (%d,%d)",
					prev.X, prev.Y, rx, ry, x, y)
			}
			seen[key] = Sample{X: rx, Y: ry}
		}
	}
}

func TestMealyTransitions(t *testing.T) {
	type step struct {
		in   Sample
		want types.PointerKind
	}
	cases := []struct {
		name  string
		steps []step
	}{
		{
			name: "press move release",
			steps: []step{
				{Sample{}, types.PointerNone},
				{Sample{Touched: true, X: 5, Y: 5}, types.PointerPressed},
				{Sample{Touched: true, X: 6, Y: 5}, types.PointerMoved},
				{Sample{}, types.PointerReleased},
				{Sample{}, types.PointerNone},
			},
		},
		{
			name: "unchanged touch re-emits moved",
			steps: []step{
				{Sample{Touched: true, X: 5, Y: 5}, types.PointerPressed},
				{Sample{Touched: true, X: 5, Y: 5}, types.PointerMoved},
				{Sample{Touched: true, X: 5, Y: 5}, types.PointerMoved},
			},
		},
		{
			name: "no two presseds without release",
			steps: []step{
				{Sample{Touched: true, X: 1, Y: 1}, types.PointerPressed},
				{Sample{Touched: true, X: 2, Y: 2}, types.PointerMoved},
				{Sample{}, types.PointerReleased},
				{Sample{Touched: true, X: 3, Y: 3}, types.PointerPressed},
			},
		},
	}

	for _, tc := range cases {
		tr := New(320, 240)
		for i, s := range tc.steps {
			got := tr.Poll(s.in)
			if got.Kind != s.want {
				t.Fatalf("%s step %d: kind = %v, want %v", tc.name, i, got.Kind, s.want)
			}
		}
	}
}

func TestReleasedReportsStoredPoint(t *testing.T) {
	tr := New(320, 240)

	tr.Poll(Sample{Touched: true, X: 5, Y: 5})
	ev := tr.Poll(Sample{})

	if ev.Kind != types.PointerReleased {
		t.Fatalf("kind = %v, want released", ev.Kind)
	}
	// 320 - 2*5 = 310, 2*5 = 10: the last remapped point.
	if ev.X != 310 || ev.Y != 10 {
		t.Fatalf("released at (%d,%d), want (310,10)", ev.X, ev.Y)
	}
}

type recordingSink struct {
	calls []string
}

func (r *recordingSink) Pressed(x, y int16)  { r.calls = append(r.calls, "pressed") }
func (r *recordingSink) Moved(x, y int16)    { r.calls = append(r.calls, "moved") }
func (r *recordingSink) Released(x, y int16) { r.calls = append(r.calls, "released") }
func (r *recordingSink) Exited()             { r.calls = append(r.calls, "exited") }

func TestDispatchReleasedAlwaysExits(t *testing.T) {
	tr := New(320, 240)
	sink := &recordingSink{}

	seq := []Sample{
		{},
		{Touched: true, X: 5, Y: 5},
		{Touched: true, X: 5, Y: 5},
		{},
	}
	for _, s := range seq {
		Dispatch(sink, tr.Poll(s))
	}

	want := []string{"pressed", "moved", "released", "exited"}
	if len(sink.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", sink.calls, want)
	}
	for i := range want {
		if sink.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", sink.calls, want)
		}
	}
}
