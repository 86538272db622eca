// Package device provides the public API for device selection and
// device-aware tensor memory.
package device

import (
	"github.com/born-ml/born/internal/device"
)

// Kind tags a device family: Host, Accel, or Fake (used in tests).
type Kind = device.Kind

const (
	Host  Kind = device.Host
	Accel Kind = device.Accel
	Fake  Kind = device.Fake
)

// Device is a tagged {Kind, Index} device identifier.
type Device = device.Device

// HostDevice is the single host-memory device.
var HostDevice = device.HostDevice

// AccelDevice returns the accelerator device at index i.
func AccelDevice(i int) Device { return device.AccelDevice(i) }

// FakeDevice returns a fake device at index i, for tests.
func FakeDevice(i int) Device { return device.FakeDevice(i) }

// Available reports whether d can currently be computed on.
func Available(d Device) bool { return device.Available(d) }

// RegisterAccelerator toggles whether an accelerator is considered present.
func RegisterAccelerator(present bool) { device.RegisterAccelerator(present) }

// SelectDevice implements the should-compute-on-device rule of spec.md
// §4.1 over a set of candidate input devices.
func SelectDevice(prefs []Device) Device { return device.SelectDevice(prefs) }

// Elem constrains the element types SyncMemory and Array may hold.
type Elem = device.Elem

// SyncMemory is a host/accelerator dual-buffer with lazy allocation and
// freshness tracking.
type SyncMemory[T Elem] = device.SyncMemory[T]

// NewSyncMemory allocates a SyncMemory handle with the given logical
// element count, inner dimension, and preferred device.
func NewSyncMemory[T Elem](totalElems, innerDim int, preferred Device) *SyncMemory[T] {
	return device.NewSyncMemory[T](totalElems, innerDim, preferred)
}
