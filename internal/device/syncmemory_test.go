package device

import "testing"

func TestMutableCPUDataMarksHostFreshAndAccelStale(t *testing.T) {
	m := NewSyncMemory[float32](4, 4, HostDevice)
	data := m.MutableCPUData()
	data[0] = 1

	hostFresh, accelFresh := m.FreshSides()
	if !hostFresh {
		t.Fatal("host side should be fresh after MutableCPUData")
	}
	if accelFresh {
		t.Fatal("accel side should be stale after a host-only write")
	}
}

func TestLazyClearZeroesOnFirstAllocation(t *testing.T) {
	m := NewSyncMemory[float32](3, 3, HostDevice)
	m.LazyClear()
	for _, v := range m.MutableCPUData() {
		if v != 0 {
			t.Fatalf("expected zero-filled buffer after LazyClear, got %v", v)
		}
	}
}

func TestCopyFromTransfersFreshData(t *testing.T) {
	src := NewSyncMemory[float32](2, 2, HostDevice)
	copy(src.MutableCPUData(), []float32{1, 2})

	dst := NewSyncMemory[float32](2, 2, HostDevice)
	if err := dst.CopyFrom(src); err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	got := dst.CPUData()
	if got[0] != 1 || got[1] != 2 {
		t.Fatalf("CopyFrom did not transfer data, got %v", got)
	}
}

func TestCopyFromRejectsSizeMismatch(t *testing.T) {
	src := NewSyncMemory[float32](2, 2, HostDevice)
	dst := NewSyncMemory[float32](3, 3, HostDevice)
	if err := dst.CopyFrom(src); err == nil {
		t.Fatal("expected an error copying between mismatched sizes")
	}
}
