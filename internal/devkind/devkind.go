// Package devkind holds the device tag shared by internal/device (which
// builds host/accel-synced buffers on top of it) and internal/membank
// (which buckets its free list by it). Keeping the tag in its own leaf
// package lets both depend on it without depending on each other.
package devkind

import "fmt"

// Kind distinguishes the device families this library models.
type Kind int

// Supported device kinds. Accel stands in for whatever single accelerator
// family a build is compiled against; Fake exists purely so tests can
// exercise freshness-tracking and copy paths without real hardware.
const (
	Host Kind = iota
	Accel
	Fake
)

func (k Kind) String() string {
	switch k {
	case Host:
		return "host"
	case Accel:
		return "accel"
	case Fake:
		return "fake"
	default:
		return "unknown"
	}
}

// Device is a tagged device reference: {kind, index}. Host ignores Index.
type Device struct {
	Kind  Kind
	Index int
}

// HostDevice is the always-available CPU device.
var HostDevice = Device{Kind: Host}

// AccelDevice returns the i-th accelerator device.
func AccelDevice(i int) Device {
	return Device{Kind: Accel, Index: i}
}

// FakeDevice returns the i-th fake device (for tests).
func FakeDevice(i int) Device {
	return Device{Kind: Fake, Index: i}
}

// IsHost reports whether d is the host device.
func (d Device) IsHost() bool { return d.Kind == Host }

func (d Device) String() string {
	if d.Kind == Host {
		return "host"
	}
	return fmt.Sprintf("%s(%d)", d.Kind, d.Index)
}
