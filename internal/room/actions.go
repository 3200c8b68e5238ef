package room

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/park285/cheese-arena/internal/action"
	"github.com/park285/cheese-arena/internal/presence"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/pkg/arenadto"
	"go.uber.org/zap"
)

// Handle applies one action from conn. A rejected action is answered to conn
// only and leaves the room untouched; an accepted one is broadcast to everyone.
func (r *GameRoom) Handle(conn presence.Conn, a action.Action) error {
	var err error
	r.run(func() {
		err = r.handleLocked(conn, a)
		if err == nil {
			r.broadcastLocked()
			return
		}
		var ae *ActionError
		if !errors.As(err, &ae) {
			ae = &ActionError{Err: err, Key: "protocol.invalid_action"}
		}
		r.replyErrorLocked(conn, ae)
	})
	return err
}

func (r *GameRoom) handleLocked(conn presence.Conn, a action.Action) error {
	if r.closed {
		return reject(ErrClosed)
	}
	m, ok := r.hub.Get(conn)
	if !ok {
		return reject(ErrNotMember)
	}
	id := m.Identity
	switch a := a.(type) {
	case action.Play:
		return r.play(id, a.Color)
	case action.Ready:
		return r.ready(id, a.Ready)
	case action.Move:
		return r.move(id, a.RulesMove())
	case action.OfferDraw:
		return r.offerDraw(id)
	case action.Resign:
		return r.resign(id)
	case action.Rematch:
		return r.rematch(id)
	}
	return fmt.Errorf("%w: %s", action.ErrUnknownType, a.Kind())
}

func (r *GameRoom) play(id presence.Identity, color string) error {
	if color == action.PlayExit {
		if r.inProgress() {
			return reject(ErrInProgress)
		}
		s := r.seatOf(id.ID)
		if s == nil {
			return reject(ErrNotSeated)
		}
		s.Vacate()
		r.log.Info("room_seat_left", zap.String("color", string(s.color)), zap.String("user_id", id.ID))
		r.resetIfDesertedLocked()
		r.maybeRematchLocked()
		r.notePreviewChanged()
		return nil
	}
	if r.over {
		return reject(ErrGameOver)
	}
	if r.started {
		return reject(ErrInProgress)
	}
	c := rules.Color(color)
	if !c.Valid() {
		return &ActionError{Err: action.ErrInvalidPayload, Key: "protocol.invalid_data"}
	}
	s := r.seat(c)
	if s.Occupied() {
		return reject(ErrSeatTaken)
	}
	if r.seat(c.Opponent()).IsOccupant(id.ID) {
		return reject(ErrAlreadySeated)
	}
	s.Claim(id, r.cfg.totalMs())
	for _, conn := range r.hub.ConnsOf(id.ID) {
		s.AddConnection(conn)
	}
	r.log.Info("room_seat_claimed", zap.String("color", string(c)), zap.String("user_id", id.ID))
	r.notePreviewChanged()
	return nil
}

func (r *GameRoom) ready(id presence.Identity, explicit *bool) error {
	s := r.seatOf(id.ID)
	if s == nil {
		return reject(ErrNotSeated)
	}
	if r.over {
		return reject(ErrGameOver)
	}
	if r.started {
		return reject(ErrInProgress)
	}
	if explicit != nil {
		s.SetReady(*explicit)
	} else {
		s.ToggleReady()
	}
	w, b := r.seat(rules.White), r.seat(rules.Black)
	if w.Occupied() && b.Occupied() && w.ready && b.ready {
		r.startLocked()
	}
	return nil
}

func (r *GameRoom) startLocked() {
	r.started = true
	r.startedAt = r.opts.Clock.Now()
	now := r.nowMs()
	for _, s := range r.seats {
		s.offeredDraw = false
		s.requestedRematch = false
		s.clock.StartWindow(now)
	}
	mover := r.seat(r.pos.SideToMove())
	mover.ArmMoveTimer(mover.clock.TimeLeft())
	r.log.Info("room_match_started",
		zap.String("white", r.seat(rules.White).occupant.ID),
		zap.String("black", r.seat(rules.Black).occupant.ID),
		zap.Float64("minutes", r.cfg.Minutes),
		zap.Int("increment", r.cfg.Increment))
}

func (r *GameRoom) move(id presence.Identity, mv rules.Move) error {
	s := r.seatOf(id.ID)
	if s == nil {
		return reject(ErrNotSeated)
	}
	if !r.started {
		return reject(ErrNotStarted)
	}
	if r.over {
		return reject(ErrGameOver)
	}
	if r.pos.SideToMove() != s.color {
		return reject(ErrNotYourTurn)
	}
	uci, err := mv.UCI()
	if err != nil {
		return &ActionError{Err: ErrIllegalMove, Key: "room.illegal_move", Data: map[string]any{"Move": mv.From + mv.To + mv.Promotion}}
	}
	if err := r.pos.Apply(mv); err != nil {
		return &ActionError{Err: ErrIllegalMove, Key: "room.illegal_move", Data: map[string]any{"Move": uci}}
	}
	now := r.nowMs()
	s.clock.Elapse(now, r.cfg.Increment, true)
	s.DisarmMoveTimer()
	opp := r.seat(s.color.Opponent())
	r.log.Debug("room_move", zap.String("color", string(s.color)), zap.String("uci", uci), zap.Int64("time_left_ms", s.clock.TimeLeft()))
	if r.pos.Terminal() {
		opp.clock.Stop()
		opp.DisarmMoveTimer()
		r.finishLocked(r.pos.Result(), terminalMethod(r.pos.Method()))
		return nil
	}
	opp.clock.StartWindow(now)
	opp.ArmMoveTimer(opp.clock.TimeLeft())
	return nil
}

func terminalMethod(m rules.Method) string {
	switch m {
	case rules.MethodCheckmate:
		return MethodCheckmate
	case rules.MethodStalemate:
		return MethodStalemate
	}
	return MethodDraw
}

func (r *GameRoom) resign(id presence.Identity) error {
	s := r.seatOf(id.ID)
	if s == nil {
		return reject(ErrNotSeated)
	}
	if err := r.requireInProgress(); err != nil {
		return err
	}
	r.finalizeClocksLocked()
	r.finishLocked(winnerAgainst(s.color), MethodResignation)
	return nil
}

func (r *GameRoom) offerDraw(id presence.Identity) error {
	s := r.seatOf(id.ID)
	if s == nil {
		return reject(ErrNotSeated)
	}
	if err := r.requireInProgress(); err != nil {
		return err
	}
	s.ToggleDrawOffer()
	if r.seats[0].offeredDraw && r.seats[1].offeredDraw {
		r.finalizeClocksLocked()
		r.finishLocked(rules.Draw, MethodAgreement)
	}
	return nil
}

func (r *GameRoom) rematch(id presence.Identity) error {
	s := r.seatOf(id.ID)
	if s == nil {
		return reject(ErrNotSeated)
	}
	if !r.over {
		return reject(ErrNotOver)
	}
	s.ToggleRematchRequest()
	r.maybeRematchLocked()
	return nil
}

// maybeRematchLocked starts the rematch once both sides agree. A vacant seat
// agrees implicitly, so a seat emptying after the other side asked counts too.
// A room nobody sits in is left to resetIfDesertedLocked.
func (r *GameRoom) maybeRematchLocked() {
	if !r.over || !r.seats[0].wantsRematch() || !r.seats[1].wantsRematch() {
		return
	}
	if !r.seats[0].Occupied() && !r.seats[1].Occupied() {
		return
	}
	swap := r.seats[0].Occupied() && r.seats[1].Occupied()
	r.resetMatchLocked()
	if swap {
		r.seats[0], r.seats[1] = r.seats[1], r.seats[0]
		r.seats[0].color = rules.White
		r.seats[1].color = rules.Black
		r.notePreviewChanged()
	}
	r.log.Info("room_rematch", zap.Bool("swapped", swap))
}

func (r *GameRoom) requireInProgress() error {
	if !r.started {
		return reject(ErrNotStarted)
	}
	if r.over {
		return reject(ErrGameOver)
	}
	return nil
}

func winnerAgainst(c rules.Color) rules.Result {
	if c == rules.White {
		return rules.BlackWins
	}
	return rules.WhiteWins
}

// finalizeClocksLocked charges the side to move for its running window and
// closes the other one. Both move timers end up disarmed.
func (r *GameRoom) finalizeClocksLocked() {
	now := r.nowMs()
	mover := r.seat(r.pos.SideToMove())
	mover.clock.Elapse(now, r.cfg.Increment, false)
	mover.clock.ClampZero()
	r.seat(mover.color.Opponent()).clock.Stop()
	for _, s := range r.seats {
		s.DisarmMoveTimer()
	}
}

func (r *GameRoom) finishLocked(winner rules.Result, method string) {
	r.over = true
	r.winner = winner
	r.method = method
	r.log.Info("room_match_finished", zap.String("winner", string(winner)), zap.String("method", method))
	if fn := r.opts.Hooks.OnFinished; fn != nil {
		res := r.resultLocked()
		r.notes = append(r.notes, func() { fn(res) })
	}
}

func (r *GameRoom) resultLocked() arenadto.MatchResult {
	w, b := r.seat(rules.White), r.seat(rules.Black)
	return arenadto.MatchResult{
		ID:          uuid.NewString(),
		RoomID:      r.cfg.ID,
		White:       w.occupant.Name,
		WhiteID:     w.occupant.ID,
		Black:       b.occupant.Name,
		BlackID:     b.occupant.ID,
		Winner:      string(r.winner),
		Method:      r.method,
		TimeControl: arenadto.TimeControl{Minutes: r.cfg.Minutes, Increment: r.cfg.Increment},
		MovesUCI:    r.pos.MovesUCI(),
		MovesSAN:    r.pos.MovesSAN(),
		FEN:         r.pos.FEN(),
		StartedAt:   r.startedAt,
		EndedAt:     r.opts.Clock.Now(),
	}
}

// resetMatchLocked puts position, outcome, clocks and flags back to the
// configured starting state. Occupants are kept.
func (r *GameRoom) resetMatchLocked() {
	r.pos = r.opts.Oracle.NewPosition()
	r.started = false
	r.over = false
	r.winner = ""
	r.method = ""
	r.startedAt = r.opts.Clock.Now()
	for _, s := range r.seats {
		s.resetForMatch(r.cfg.totalMs())
	}
}

// resetIfDesertedLocked restores the initial configuration once a finished
// match has lost both players.
func (r *GameRoom) resetIfDesertedLocked() {
	if r.over && !r.seats[0].Occupied() && !r.seats[1].Occupied() {
		r.resetMatchLocked()
	}
}

func (r *GameRoom) onTimedOut(s *Seat, gen uint64) {
	r.run(func() {
		if !s.moveSlot.Claim(gen) || r.closed || !r.inProgress() || r.pos.SideToMove() != s.color {
			return
		}
		s.clock.Elapse(r.nowMs(), r.cfg.Increment, false)
		s.clock.ClampZero()
		r.seat(s.color.Opponent()).clock.Stop()
		r.seat(s.color.Opponent()).DisarmMoveTimer()
		r.finishLocked(winnerAgainst(s.color), MethodTimeout)
		r.broadcastLocked()
	})
}

func (r *GameRoom) onAbandoned(s *Seat, gen uint64) {
	r.run(func() {
		if !s.graceSlot.Claim(gen) || r.closed || !s.Occupied() || s.Online() {
			return
		}
		r.log.Info("room_seat_abandoned", zap.String("color", string(s.color)), zap.String("user_id", s.occupant.ID))
		if r.inProgress() {
			r.finalizeClocksLocked()
			r.finishLocked(winnerAgainst(s.color), MethodAbandonment)
		}
		s.Vacate()
		r.resetIfDesertedLocked()
		r.maybeRematchLocked()
		r.notePreviewChanged()
		r.broadcastLocked()
	})
}
