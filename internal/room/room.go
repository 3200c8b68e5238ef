// Package room implements the per-match state machine: two seats, clocks,
// disconnect handling and the draw and rematch negotiation.
package room

import (
	"context"
	"sync"
	"time"

	"github.com/park285/cheese-arena/internal/clock"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/presence"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/pkg/arenadto"
	"go.uber.org/zap"
)

// Config is fixed at creation and re-applied on every rematch.
type Config struct {
	ID        string
	Minutes   float64
	Increment int
	Private   bool
}

func (c Config) totalMs() int64 { return int64(c.Minutes * 60000) }

// Hooks are invoked after the room lock is released.
type Hooks struct {
	OnDestroyed      func(roomID string)
	OnPreviewChanged func(roomID string)
	OnFinished       func(result arenadto.MatchResult)
}

type Options struct {
	Clock           clock.Source
	Oracle          rules.Oracle
	Catalog         *msgcat.Catalog
	DisconnectGrace time.Duration
	AbandonGrace    time.Duration
	Hooks           Hooks
	Logger          *zap.Logger
}

// Method values recorded when a match ends.
const (
	MethodCheckmate   = "checkmate"
	MethodStalemate   = "stalemate"
	MethodDraw        = "draw"
	MethodTimeout     = "timeout"
	MethodResignation = "resignation"
	MethodAgreement   = "agreement"
	MethodAbandonment = "abandonment"
)

// GameRoom serializes every handler and timer callback behind mu. A handler
// runs to completion, broadcast included, before the next one starts.
type GameRoom struct {
	mu   sync.Mutex
	cfg  Config
	opts Options
	log  *zap.Logger
	hub  *presence.Hub

	seats [2]*Seat
	pos   rules.Position

	started   bool
	over      bool
	winner    rules.Result
	method    string
	startedAt time.Time

	abandon clock.Slot
	closed  bool

	// filled while locked, drained by run
	notes []func()
	dead  []presence.Conn
}

func New(cfg Config, opts Options) *GameRoom {
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	if opts.Oracle == nil {
		opts.Oracle = rules.ChessOracle{}
	}
	if opts.DisconnectGrace <= 0 {
		opts.DisconnectGrace = 30 * time.Second
	}
	if opts.AbandonGrace <= 0 {
		opts.AbandonGrace = 45 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = obslog.Room(cfg.ID)
	}
	r := &GameRoom{cfg: cfg, opts: opts, log: log, hub: presence.NewHub()}
	sig := seatSignals{abandoned: r.onAbandoned, timedOut: r.onTimedOut}
	r.seats[0] = newSeat(rules.White, opts.Clock, opts.DisconnectGrace, sig)
	r.seats[1] = newSeat(rules.Black, opts.Clock, opts.DisconnectGrace, sig)
	r.resetMatchLocked()
	// Nobody is connected yet; the creator has to show up within the abandon window.
	r.armAbandonLocked()
	return r
}

func (r *GameRoom) ID() string { return r.cfg.ID }

func (r *GameRoom) Config() Config { return r.cfg }

func (r *GameRoom) Private() bool { return r.cfg.Private }

// run executes fn under the room lock, drops connections whose send failed,
// then releases the lock and fires the queued notifications.
func (r *GameRoom) run(fn func()) {
	r.mu.Lock()
	fn()
	for len(r.dead) > 0 {
		c := r.dead[0]
		r.dead = r.dead[1:]
		r.leaveLocked(c)
	}
	notes := r.notes
	r.notes = nil
	r.mu.Unlock()
	for _, n := range notes {
		n()
	}
}

// Join adds a connection. A seated identity coming back is reconnected before
// anyone is told, so its own first snapshot already shows it online.
func (r *GameRoom) Join(conn presence.Conn, id presence.Identity) error {
	var err error
	r.run(func() {
		if r.closed {
			err = ErrClosed
			return
		}
		r.abandon.Disarm()
		if !r.hub.Add(conn, id) {
			return
		}
		reconnected := false
		for _, s := range r.seats {
			if s.IsOccupant(id.ID) && s.AddConnection(conn) {
				reconnected = true
				r.log.Info("room_seat_reconnected", zap.String("color", string(s.color)), zap.String("user_id", id.ID))
			}
		}
		if reconnected {
			r.broadcastLocked()
			return
		}
		r.sendStateLocked(conn, id.ID)
	})
	return err
}

// Leave drops a connection. Unknown connections are ignored.
func (r *GameRoom) Leave(conn presence.Conn) {
	r.run(func() { r.leaveLocked(conn) })
}

func (r *GameRoom) leaveLocked(conn presence.Conn) {
	m, ok := r.hub.Remove(conn)
	if !ok {
		return
	}
	wentOffline := false
	for _, s := range r.seats {
		if s.IsOccupant(m.Identity.ID) && s.RemoveConnection(conn) {
			wentOffline = true
			r.log.Info("room_seat_disconnected", zap.String("color", string(s.color)), zap.String("user_id", m.Identity.ID))
		}
	}
	if wentOffline {
		r.broadcastLocked()
	}
	if r.hub.Len() == 0 && !r.closed {
		r.armAbandonLocked()
	}
}

// Members reports the number of live connections.
func (r *GameRoom) Members() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hub.Len()
}

// Close stops every timer without notifying hooks.
func (r *GameRoom) Close() {
	r.run(func() {
		if r.closed {
			return
		}
		r.closed = true
		r.disarmAllLocked()
	})
}

func (r *GameRoom) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *GameRoom) armAbandonLocked() {
	r.abandon.Arm(r.opts.Clock, r.opts.AbandonGrace, r.onAbandonExpired)
}

func (r *GameRoom) onAbandonExpired(gen uint64) {
	r.run(func() {
		if !r.abandon.Claim(gen) || r.closed || r.hub.Len() > 0 {
			return
		}
		r.closed = true
		r.disarmAllLocked()
		r.log.Info("room_destroyed")
		if fn := r.opts.Hooks.OnDestroyed; fn != nil {
			id := r.cfg.ID
			r.notes = append(r.notes, func() { fn(id) })
		}
	})
}

func (r *GameRoom) disarmAllLocked() {
	r.abandon.Disarm()
	for _, s := range r.seats {
		s.graceSlot.Disarm()
		s.moveSlot.Disarm()
	}
}

func (r *GameRoom) seat(c rules.Color) *Seat {
	if r.seats[0].color == c {
		return r.seats[0]
	}
	return r.seats[1]
}

func (r *GameRoom) seatOf(identityID string) *Seat {
	for _, s := range r.seats {
		if s.IsOccupant(identityID) {
			return s
		}
	}
	return nil
}

func (r *GameRoom) inProgress() bool { return r.started && !r.over }

func (r *GameRoom) nowMs() int64 { return clock.Millis(r.opts.Clock.Now()) }

func (r *GameRoom) notePreviewChanged() {
	if fn := r.opts.Hooks.OnPreviewChanged; fn != nil {
		id := r.cfg.ID
		r.notes = append(r.notes, func() { fn(id) })
	}
}

func (r *GameRoom) broadcastLocked() {
	snap := r.snapshotLocked()
	failed := r.hub.BroadcastFunc(context.Background(), func(m presence.Member) any {
		return Personalize(snap, m.Identity.ID)
	})
	r.dead = append(r.dead, failed...)
}

func (r *GameRoom) sendStateLocked(conn presence.Conn, viewerID string) {
	if err := r.hub.Send(context.Background(), conn, Personalize(r.snapshotLocked(), viewerID)); err != nil {
		r.dead = append(r.dead, conn)
	}
}

func (r *GameRoom) replyErrorLocked(conn presence.Conn, ae *ActionError) {
	text := r.opts.Catalog.Text(ae.Key, ae.Data)
	if err := r.hub.Send(context.Background(), conn, arenadto.ErrorMessage{Error: text}); err != nil {
		r.dead = append(r.dead, conn)
	}
}
