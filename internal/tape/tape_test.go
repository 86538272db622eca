package tape

import "testing"

func TestBackwardReplaysLIFO(t *testing.T) {
	tp := New()
	var order []int
	tp.Record(func() { order = append(order, 1) })
	tp.Record(func() { order = append(order, 2) })
	tp.Record(func() { order = append(order, 3) })

	tp.Backward()

	want := []int{3, 2, 1}
	for i, v := range want {
		if order[i] != v {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if tp.Len() != 0 {
		t.Fatalf("Backward should clear the tape, Len() = %d", tp.Len())
	}
}

func TestNoBackpropRestoresOnNormalExit(t *testing.T) {
	tp := New()
	if !tp.Recording() {
		t.Fatal("tape should record by default")
	}

	func() {
		restore := tp.NoBackprop()
		defer restore()
		if tp.Recording() {
			t.Fatal("NoBackprop should disable recording")
		}
	}()

	if !tp.Recording() {
		t.Fatal("recording flag should be restored after NoBackprop's scope exits")
	}
}

func TestNoBackpropRestoresOnPanic(t *testing.T) {
	tp := New()

	func() {
		defer func() { _ = recover() }()
		restore := tp.NoBackprop()
		defer restore()
		panic("boom")
	}()

	if !tp.Recording() {
		t.Fatal("recording flag should be restored even when the scope panics")
	}
}

func TestRecordIsNoOpWhenNotRecording(t *testing.T) {
	tp := New()
	restore := tp.NoBackprop()
	tp.Record(func() { t.Fatal("entry should not be recorded") })
	restore()
	tp.Backward()
}
