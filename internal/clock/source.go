package clock

import "time"

// Stopper cancels a pending callback. Stop reports whether the call prevented it from firing.
type Stopper interface {
	Stop() bool
}

// Source is the time abstraction used by rooms and seats.
type Source interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Stopper
}

type systemSource struct{}

// System returns the wall clock backed by time.AfterFunc.
func System() Source { return systemSource{} }

func (systemSource) Now() time.Time { return time.Now() }

func (systemSource) AfterFunc(d time.Duration, f func()) Stopper { return time.AfterFunc(d, f) }

// Millis converts t to unix milliseconds.
func Millis(t time.Time) int64 { return t.UnixMilli() }

// Slot owns at most one pending callback. Every Arm or Disarm bumps a generation
// counter and the callback receives the generation it was armed with, so a callback
// that was already in flight when its slot got re-armed can tell it is stale.
//
// Slot is not synchronized. The owner must guard it with the same lock it holds
// when the callback checks Claim.
type Slot struct {
	gen  uint64
	stop Stopper
}

// Arm cancels any pending callback and schedules fire after d.
func (s *Slot) Arm(src Source, d time.Duration, fire func(gen uint64)) {
	s.Disarm()
	g := s.gen
	if d < 0 {
		d = 0
	}
	s.stop = src.AfterFunc(d, func() { fire(g) })
}

// Disarm cancels the pending callback, if any, and invalidates its generation.
func (s *Slot) Disarm() {
	if s.stop != nil {
		s.stop.Stop()
		s.stop = nil
	}
	s.gen++
}

// Armed reports whether a callback is pending.
func (s *Slot) Armed() bool { return s.stop != nil }

// Claim is called by a firing callback. It returns true exactly once, and only for
// the generation that is still current; the slot is disarmed as a side effect.
func (s *Slot) Claim(gen uint64) bool {
	if s.stop == nil || gen != s.gen {
		return false
	}
	s.stop = nil
	s.gen++
	return true
}
