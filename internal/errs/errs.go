// Package errs defines the error kinds raised by the array, op, tape and
// solver layers (spec.md §7).
package errs

import "fmt"

// Kind classifies the error families named in spec.md §7.
type Kind int

const (
	// ShapeMismatch: op inputs have incompatible shapes after broadcasting.
	ShapeMismatch Kind = iota
	// OutOfRange: index-out-of-bounds on slicing, plucking, or access.
	OutOfRange
	// InvalidBroadcast: reshape_broadcasted to a non-unit, non-broadcast axis.
	InvalidBroadcast
	// AllocationFailed: device memory exhausted.
	AllocationFailed
	// DeviceUnavailable: operation requested on a device not present.
	DeviceUnavailable
	// InvariantViolated: internal consistency check failed.
	InvariantViolated
)

func (k Kind) String() string {
	switch k {
	case ShapeMismatch:
		return "ShapeMismatch"
	case OutOfRange:
		return "OutOfRange"
	case InvalidBroadcast:
		return "InvalidBroadcast"
	case AllocationFailed:
		return "AllocationFailed"
	case DeviceUnavailable:
		return "DeviceUnavailable"
	case InvariantViolated:
		return "InvariantViolated"
	default:
		return "Unknown"
	}
}

// Error is the error type raised by this library. It names the offending
// op, the shapes involved, and the axis where applicable (spec.md §7:
// "errors carry a message naming the op, the offending shapes, and the
// axis where applicable").
type Error struct {
	Kind   Kind
	Op     string
	Shapes []fmt.Stringer // optional, op-specific
	Axis   int
	HasAxis bool
	Msg    string
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Kind, e.Op)
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.HasAxis {
		s += fmt.Sprintf(" (axis %d)", e.Axis)
	}
	for _, sh := range e.Shapes {
		s += " " + sh.String()
	}
	return s
}

// New builds an Error with the given kind/op/message.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// WithAxis attaches an axis to the error.
func (e *Error) WithAxis(axis int) *Error {
	e.Axis = axis
	e.HasAxis = true
	return e
}

// WithShapes attaches shape descriptions to the error.
func (e *Error) WithShapes(shapes ...fmt.Stringer) *Error {
	e.Shapes = append(e.Shapes, shapes...)
	return e
}

// Is supports errors.Is matching by Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf returns the Kind placeholder used purely so callers can do
// errors.Is(err, errs.KindOf(errs.ShapeMismatch)).
func KindOf(k Kind) *Error {
	return &Error{Kind: k}
}
