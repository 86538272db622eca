// Package device identifies compute devices and owns host/device-synced
// buffers of numeric elements.
//
// A Device is a tagged value: the host is always available, and at most
// one accelerator family is modeled (an "accel" slot, or a "fake" slot used
// by tests to exercise cross-device paths without real hardware).
package device

import "github.com/born-ml/born/internal/devkind"

// Kind distinguishes the device families this library models. It is an
// alias of devkind.Kind so that this package and internal/membank share
// one device tag without importing each other.
type Kind = devkind.Kind

// Supported device kinds. Accel stands in for whatever single accelerator
// family a build is compiled against; Fake exists purely so tests can
// exercise freshness-tracking and copy paths without real hardware.
const (
	Host  = devkind.Host
	Accel = devkind.Accel
	Fake  = devkind.Fake
)

// Device is a tagged device reference: {kind, index}. Host ignores Index.
type Device = devkind.Device

// HostDevice is the always-available CPU device.
var HostDevice = devkind.HostDevice

// AccelDevice returns the i-th accelerator device.
func AccelDevice(i int) Device {
	return devkind.AccelDevice(i)
}

// FakeDevice returns the i-th fake device (for tests).
func FakeDevice(i int) Device {
	return devkind.FakeDevice(i)
}

// Available reports whether d can currently be used. Host is always
// available; accelerators are available only if an accelerator pool has
// been registered via RegisterAccelerator. Fake devices are always
// "available" so tests can exercise the freshness state machine.
func Available(d Device) bool {
	switch d.Kind {
	case Host:
		return true
	case Fake:
		return true
	case Accel:
		return accelRegistered
	default:
		return false
	}
}

var accelRegistered bool

// RegisterAccelerator marks the accelerator family as present. The core
// library never calls this itself (spec.md scopes GPU kernels out); it
// exists so an external build that wires a real accelerator backend can
// flip should-compute-on-device selection without touching this package.
func RegisterAccelerator(present bool) {
	accelRegistered = present
}

// Tiebreaker is the process-wide default used when the input devices are
// neither all host nor all accelerator (spec.md §4.1, §9 Open
// Questions: "preserve the tiebreaker default to match existing training
// runs"). Default favors the accelerator when one is registered.
var Tiebreaker = Accel

// SelectDevice implements the "should-compute-on" rule from spec.md §4.1
// for an op consuming the given preferred/fresh device hints.
func SelectDevice(prefs []Device) Device {
	if len(prefs) == 1 {
		return prefs[0]
	}
	allHost := true
	allAccel := true
	for _, p := range prefs {
		if p.Kind != Host {
			allHost = false
		}
		if p.Kind != Accel {
			allAccel = false
		}
	}
	switch {
	case allHost:
		return HostDevice
	case allAccel:
		return AccelDevice(0)
	case Tiebreaker == Accel && accelRegistered:
		return AccelDevice(0)
	default:
		return HostDevice
	}
}
