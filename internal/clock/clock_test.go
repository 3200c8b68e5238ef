package clock

import (
	"testing"
	"time"
)

func TestElapseWithAndWithoutIncrement(t *testing.T) {
	var c Clock
	c.Reset(300_000)
	c.StartWindow(1_000)
	if d := c.Elapse(6_000, 2, true); d != 3_000 {
		t.Fatalf("delta with increment: got %d", d)
	}
	if c.TimeLeft() != 297_000 {
		t.Fatalf("time left: %d", c.TimeLeft())
	}
	if c.Running() {
		t.Fatalf("window should be closed after elapse")
	}
	c.StartWindow(10_000)
	c.Elapse(14_000, 2, false)
	if c.TimeLeft() != 293_000 {
		t.Fatalf("time left without increment: %d", c.TimeLeft())
	}
}

func TestElapseMayGoNegative(t *testing.T) {
	var c Clock
	c.Reset(1_000)
	c.StartWindow(0)
	c.Elapse(1_500, 0, true)
	if c.TimeLeft() != -500 {
		t.Fatalf("clock must not clamp itself, got %d", c.TimeLeft())
	}
	c.ClampZero()
	if c.TimeLeft() != 0 {
		t.Fatalf("ClampZero: %d", c.TimeLeft())
	}
}

func TestElapseWithoutWindowIsNoop(t *testing.T) {
	var c Clock
	c.Reset(5_000)
	if d := c.Elapse(99_000, 3, true); d != 0 || c.TimeLeft() != 5_000 {
		t.Fatalf("unexpected change: d=%d left=%d", d, c.TimeLeft())
	}
}

func TestSlotStaleCallbackIsRejected(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	var s Slot
	var fired []uint64
	claimFn := func(g uint64) {
		if s.Claim(g) {
			fired = append(fired, g)
		}
	}
	s.Arm(f, time.Second, claimFn)
	first := s.gen
	s.Arm(f, 2*time.Second, claimFn)
	f.Advance(3 * time.Second)
	if len(fired) != 1 || fired[0] == first {
		t.Fatalf("only the re-armed callback may win, got %v", fired)
	}
	if s.Armed() {
		t.Fatalf("slot should be empty after claim")
	}
}

func TestSlotClaimAfterDisarm(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	var s Slot
	var captured uint64
	s.Arm(f, time.Second, func(g uint64) { captured = g })
	g := s.gen
	s.Disarm()
	if s.Claim(g) {
		t.Fatalf("disarmed generation must not be claimable")
	}
	f.Advance(2 * time.Second)
	if captured != 0 {
		t.Fatalf("stopped timer fired")
	}
}

func TestFakeAdvanceOrdersCallbacks(t *testing.T) {
	f := NewFake(time.Unix(100, 0))
	var order []int
	f.AfterFunc(2*time.Second, func() { order = append(order, 2) })
	f.AfterFunc(time.Second, func() {
		order = append(order, 1)
		f.AfterFunc(500*time.Millisecond, func() { order = append(order, 15) })
	})
	f.Advance(5 * time.Second)
	if len(order) != 3 || order[0] != 1 || order[1] != 15 || order[2] != 2 {
		t.Fatalf("unexpected order %v", order)
	}
	if !f.Now().Equal(time.Unix(105, 0)) {
		t.Fatalf("now: %v", f.Now())
	}
}
