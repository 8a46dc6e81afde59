package sessions

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTracker_RegisterUnregister(t *testing.T) {
	tr := NewTracker()
	if tr.Count() != 0 {
		t.Fatalf("initial count=%d, want 0", tr.Count())
	}

	u1 := tr.Register("sess_1", nil)
	u2 := tr.Register("sess_2", nil)
	if tr.Count() != 2 {
		t.Fatalf("count=%d, want 2", tr.Count())
	}

	u1()
	u1() // idempotent
	if tr.Count() != 1 {
		t.Fatalf("count=%d, want 1", tr.Count())
	}

	u2()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if !tr.Wait(ctx) {
		t.Fatalf("expected Wait to return true")
	}
}

func TestTracker_CancelAll(t *testing.T) {
	tr := NewTracker()
	var c1, c2 atomic.Int64
	tr.Register("sess_1", func() { c1.Add(1) })
	tr.Register("sess_2", func() { c2.Add(1) })

	if n := tr.CancelAll(); n != 2 {
		t.Fatalf("canceled=%d, want 2", n)
	}
	if c1.Load() != 1 || c2.Load() != 1 {
		t.Fatalf("cancel calls=%d/%d, want 1/1", c1.Load(), c2.Load())
	}
}

func TestTracker_ReRegisterReplacesEntry(t *testing.T) {
	tr := NewTracker()
	var old atomic.Int64
	tr.Register("sess_1", func() { old.Add(1) })
	tr.Register("sess_1", nil)

	if tr.Count() != 1 {
		t.Fatalf("count=%d, want 1", tr.Count())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if tr.Wait(ctx) {
		t.Fatalf("Wait should time out while the replacement is registered")
	}
}
