package room

import (
	"testing"
	"time"

	"github.com/park285/cheese-arena/internal/clock"
	"github.com/park285/cheese-arena/internal/presence"
	"github.com/park285/cheese-arena/internal/rules"
)

func newTestSeat(t *testing.T) (*Seat, *clock.Fake, *int, *int) {
	t.Helper()
	clk := clock.NewFake(time.Unix(0, 0))
	var abandoned, timedOut int
	s := newSeat(rules.White, clk, 30*time.Second, seatSignals{
		abandoned: func(s *Seat, gen uint64) {
			if s.graceSlot.Claim(gen) {
				abandoned++
			}
		},
		timedOut: func(s *Seat, gen uint64) {
			if s.moveSlot.Claim(gen) {
				timedOut++
			}
		},
	})
	return s, clk, &abandoned, &timedOut
}

func TestSeatGraceArmsOnlyWhenLastConnectionLeaves(t *testing.T) {
	s, clk, abandoned, _ := newTestSeat(t)
	a, b := &fakeConn{id: "a"}, &fakeConn{id: "b"}
	s.Claim(presence.Identity{ID: "u1", Name: "Ann"}, 60_000)
	if !s.AddConnection(a) || s.AddConnection(b) {
		t.Fatalf("only the first connection flips the seat online")
	}
	if s.RemoveConnection(a) || s.GraceTimerArmed() {
		t.Fatalf("grace must wait for the last connection")
	}
	if !s.RemoveConnection(b) || !s.GraceTimerArmed() {
		t.Fatalf("grace should arm when the seat goes offline")
	}
	clk.Advance(30 * time.Second)
	if *abandoned != 1 {
		t.Fatalf("abandoned=%d", *abandoned)
	}
	if !s.Occupied() {
		t.Fatalf("seat stays populated until the room reacts")
	}
}

func TestSeatVacateDisarmsTimers(t *testing.T) {
	s, clk, abandoned, timedOut := newTestSeat(t)
	c := &fakeConn{id: "c"}
	s.Claim(presence.Identity{ID: "u1"}, 60_000)
	s.AddConnection(c)
	s.ToggleReady()
	s.ToggleDrawOffer()
	s.ArmMoveTimer(1_000)
	s.RemoveConnection(c)
	s.Vacate()
	clk.Advance(time.Minute)
	if *abandoned != 0 || *timedOut != 0 {
		t.Fatalf("vacated seat fired: abandoned=%d timedOut=%d", *abandoned, *timedOut)
	}
	if s.Occupied() || s.ready || s.offeredDraw || s.Online() {
		t.Fatalf("seat not fully vacant")
	}
	if !s.wantsRematch() {
		t.Fatalf("vacant seat consents to a rematch")
	}
}

func TestSeatMoveTimerRearmInvalidatesOld(t *testing.T) {
	s, clk, _, timedOut := newTestSeat(t)
	s.Claim(presence.Identity{ID: "u1"}, 60_000)
	s.ArmMoveTimer(1_000)
	s.ArmMoveTimer(5_000)
	clk.Advance(2 * time.Second)
	if *timedOut != 0 {
		t.Fatalf("replaced timer fired")
	}
	clk.Advance(3 * time.Second)
	if *timedOut != 1 {
		t.Fatalf("timedOut=%d", *timedOut)
	}
}
