package errcode

// Code is a stable, phase-tagged error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
//
// The protocol clients tag failures by the phase that failed (open, write,
// flush, decode, accept, mount) so callers can tell setup failures from
// steady-state ones.
const (
	OK            Code = "ok"
	Busy          Code = "busy"
	Unsupported   Code = "unsupported"
	InvalidParams Code = "invalid_params"
	NotConnected  Code = "not_connected"
	NotReady      Code = "not_ready"
	Timeout       Code = "timeout"

	BusInUse     Code = "bus_in_use"
	BusExhausted Code = "bus_exhausted" // one-shot resource set already handed out

	OpenFailed   Code = "open_failed"
	WriteFailed  Code = "write_failed"
	FlushFailed  Code = "flush_failed"
	ReadFailed   Code = "read_failed"
	DecodeFailed Code = "decode_failed"
	AcceptFailed Code = "accept_failed"
	MountFailed  Code = "mount_failed"
	AssocFailed  Code = "assoc_failed"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap builds an E with a phase tag and an underlying cause.
func Wrap(c Code, op string, err error) error {
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// Is reports whether err carries the given code.
func Is(err error, c Code) bool { return Of(err) == c }
