package room

import (
	"time"

	"github.com/park285/cheese-arena/internal/clock"
	"github.com/park285/cheese-arena/internal/presence"
	"github.com/park285/cheese-arena/internal/rules"
)

// seatSignals routes seat timer expiries back into the owning room.
type seatSignals struct {
	abandoned func(s *Seat, gen uint64)
	timedOut  func(s *Seat, gen uint64)
}

// Seat is one side of a match. It holds state and timer lifecycle only; every
// legality check lives in the room handlers.
type Seat struct {
	color    rules.Color
	occupant presence.Identity
	occupied bool
	conns    map[presence.Conn]struct{}
	clock    clock.Clock

	ready            bool
	offeredDraw      bool
	requestedRematch bool

	src       clock.Source
	grace     time.Duration
	signals   seatSignals
	graceSlot clock.Slot
	moveSlot  clock.Slot
}

func newSeat(color rules.Color, src clock.Source, grace time.Duration, sig seatSignals) *Seat {
	return &Seat{
		color:   color,
		conns:   make(map[presence.Conn]struct{}),
		src:     src,
		grace:   grace,
		signals: sig,
	}
}

func (s *Seat) Color() rules.Color { return s.color }

func (s *Seat) Occupied() bool { return s.occupied }

func (s *Seat) Occupant() (presence.Identity, bool) { return s.occupant, s.occupied }

func (s *Seat) IsOccupant(identityID string) bool {
	return s.occupied && s.occupant.ID == identityID
}

func (s *Seat) Online() bool { return len(s.conns) > 0 }

func (s *Seat) TimeLeft() int64 { return s.clock.TimeLeft() }

// Claim occupies the seat with a fresh clock and cleared flags. No timers are armed.
func (s *Seat) Claim(id presence.Identity, totalMs int64) {
	s.occupant = id
	s.occupied = true
	s.clock.Reset(totalMs)
	s.clearFlags()
}

// AddConnection reports whether the seat went from offline to online.
func (s *Seat) AddConnection(conn presence.Conn) bool {
	if _, ok := s.conns[conn]; ok {
		return false
	}
	s.conns[conn] = struct{}{}
	if len(s.conns) == 1 {
		s.graceSlot.Disarm()
		return true
	}
	return false
}

// RemoveConnection reports whether the seat went offline; the disconnect grace
// timer is armed in that case.
func (s *Seat) RemoveConnection(conn presence.Conn) bool {
	if _, ok := s.conns[conn]; !ok {
		return false
	}
	delete(s.conns, conn)
	if len(s.conns) > 0 {
		return false
	}
	s.graceSlot.Arm(s.src, s.grace, func(gen uint64) { s.signals.abandoned(s, gen) })
	return true
}

func (s *Seat) ToggleReady()          { s.ready = !s.ready }
func (s *Seat) SetReady(v bool)       { s.ready = v }
func (s *Seat) ToggleDrawOffer()      { s.offeredDraw = !s.offeredDraw }
func (s *Seat) ToggleRematchRequest() { s.requestedRematch = !s.requestedRematch }

// ArmMoveTimer schedules the timeout signal after remainingMs. A non-positive
// balance fires on the next tick.
func (s *Seat) ArmMoveTimer(remainingMs int64) {
	s.moveSlot.Arm(s.src, time.Duration(remainingMs)*time.Millisecond, func(gen uint64) { s.signals.timedOut(s, gen) })
}

func (s *Seat) DisarmMoveTimer() { s.moveSlot.Disarm() }

func (s *Seat) MoveTimerArmed() bool { return s.moveSlot.Armed() }

func (s *Seat) GraceTimerArmed() bool { return s.graceSlot.Armed() }

// Vacate returns the seat to the empty state.
func (s *Seat) Vacate() {
	s.occupant = presence.Identity{}
	s.occupied = false
	clear(s.conns)
	s.clearFlags()
	s.clock.Stop()
	s.graceSlot.Disarm()
	s.moveSlot.Disarm()
}

// resetForMatch prepares an occupied or vacant seat for a new match.
func (s *Seat) resetForMatch(totalMs int64) {
	s.clock.Reset(totalMs)
	s.clearFlags()
	s.moveSlot.Disarm()
}

func (s *Seat) clearFlags() {
	s.ready = false
	s.offeredDraw = false
	s.requestedRematch = false
}

// wantsRematch treats a vacant seat as consenting.
func (s *Seat) wantsRematch() bool { return !s.occupied || s.requestedRematch }
