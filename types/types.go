package types

// ---- Pointer events ----

// PointerKind classifies one pointer transition produced by the touch
// translator. Transitions follow Pressed -> Moved* -> Released -> idle;
// Exited is delivered immediately after every Released.
type PointerKind uint8

const (
	PointerNone PointerKind = iota
	PointerPressed
	PointerMoved
	PointerReleased
	PointerExited
)

func (k PointerKind) String() string {
	switch k {
	case PointerNone:
		return "none"
	case PointerPressed:
		return "pressed"
	case PointerMoved:
		return "moved"
	case PointerReleased:
		return "released"
	case PointerExited:
		return "exited"
	default:
		return "unknown"
	}
}

// PointerEvent is one pointer transition in panel coordinates.
type PointerEvent struct {
	Kind PointerKind `json:"kind"`
	X    int16       `json:"x"`
	Y    int16       `json:"y"`
}

// PointerSink consumes pointer transitions. The UI scene graph is the
// production implementation; tests substitute a recorder.
type PointerSink interface {
	Pressed(x, y int16)
	Moved(x, y int16)
	Released(x, y int16)
	Exited()
}

// ---- Network session ----

// AssocState is the radio association state.
type AssocState uint8

const (
	Disassociated AssocState = iota
	Associating
	Associated
)

func (s AssocState) String() string {
	switch s {
	case Disassociated:
		return "disassociated"
	case Associating:
		return "associating"
	case Associated:
		return "associated"
	default:
		return "unknown"
	}
}

// LeaseState is the address-lease state.
type LeaseState uint8

const (
	LeaseNone LeaseState = iota
	LeasePending
	LeaseBound
)

func (s LeaseState) String() string {
	switch s {
	case LeaseNone:
		return "none"
	case LeasePending:
		return "pending"
	case LeaseBound:
		return "bound"
	default:
		return "unknown"
	}
}

// Lease is the dynamically assigned address and its state.
type Lease struct {
	State LeaseState `json:"state"`
	Addr  string     `json:"addr,omitempty"`
}

// NetSession is the published network session state (retained on net/state).
type NetSession struct {
	Assoc AssocState `json:"assoc"`
	Lease Lease      `json:"lease"`
	TS    int64      `json:"ts_ms"`
}

// Ready reports whether protocol clients may start an exchange.
func (s NetSession) Ready() bool {
	return s.Assoc == Associated && s.Lease.State == LeaseBound
}
