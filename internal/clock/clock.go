package clock

// Clock is the countdown of one side. Times are milliseconds.
//
// The clock never clamps: Elapse may leave a negative balance and callers decide
// whether that means the flag fell.
type Clock struct {
	timeLeft    int64
	windowStart int64
	running     bool
}

// Reset sets the balance to totalMs and closes any open window.
func (c *Clock) Reset(totalMs int64) {
	c.timeLeft = totalMs
	c.windowStart = 0
	c.running = false
}

// StartWindow opens a measuring window at nowMs, replacing an open one.
func (c *Clock) StartWindow(nowMs int64) {
	c.windowStart = nowMs
	c.running = true
}

// Elapse charges the open window to the balance and closes it. When applyIncrement
// is set, incrementSec seconds are credited back. It returns the amount subtracted.
// Without an open window it does nothing.
func (c *Clock) Elapse(nowMs int64, incrementSec int, applyIncrement bool) int64 {
	if !c.running {
		return 0
	}
	delta := nowMs - c.windowStart
	if applyIncrement {
		delta -= int64(incrementSec) * 1000
	}
	c.timeLeft -= delta
	c.windowStart = 0
	c.running = false
	return delta
}

// Stop closes the window without charging it.
func (c *Clock) Stop() {
	c.windowStart = 0
	c.running = false
}

// ClampZero floors a negative balance at zero.
func (c *Clock) ClampZero() {
	if c.timeLeft < 0 {
		c.timeLeft = 0
	}
}

func (c *Clock) TimeLeft() int64 { return c.timeLeft }

// WindowStartedAt reports the start of the open window.
func (c *Clock) WindowStartedAt() (int64, bool) { return c.windowStart, c.running }

func (c *Clock) Running() bool { return c.running }

// Remaining is the balance as of nowMs, counting the open window.
func (c *Clock) Remaining(nowMs int64) int64 {
	if !c.running {
		return c.timeLeft
	}
	return c.timeLeft - (nowMs - c.windowStart)
}
