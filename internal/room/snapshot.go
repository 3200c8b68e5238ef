package room

import (
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

// SeatState is the recipient-independent view of an occupied seat.
type SeatState struct {
	OccupantID string
	Nick       string
	Online     bool
	TimeLeft   int64
	LastTurnTs int64
}

// Snapshot is shared by every recipient of one broadcast and is never mutated
// after it is built. Vacant seats are nil.
type Snapshot struct {
	White *SeatState
	Black *SeatState
	Game  arenadto.GameView
}

// Snapshot returns the current shared state.
func (r *GameRoom) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *GameRoom) snapshotLocked() Snapshot {
	w, b := r.seat(rules.White), r.seat(rules.Black)
	game := arenadto.GameView{
		TimeControl:    arenadto.TimeControl{Minutes: r.cfg.Minutes, Increment: r.cfg.Increment},
		ReadyToPlay:    w.ready || b.ready,
		RematchOffered: (w.Occupied() && w.requestedRematch) || (b.Occupied() && b.requestedRematch),
		DrawOffered:    w.offeredDraw || b.offeredDraw,
		FEN:            r.pos.FEN(),
		GameStarted:    r.started,
		GameOver:       r.over,
		Turn:           string(r.pos.SideToMove()),
	}
	if r.over {
		winner := string(r.winner)
		game.Winner = &winner
	}
	return Snapshot{White: seatState(w), Black: seatState(b), Game: game}
}

func seatState(s *Seat) *SeatState {
	if !s.Occupied() {
		return nil
	}
	ts, _ := s.clock.WindowStartedAt()
	return &SeatState{
		OccupantID: s.occupant.ID,
		Nick:       s.occupant.Name,
		Online:     s.Online(),
		TimeLeft:   s.clock.TimeLeft(),
		LastTurnTs: ts,
	}
}

// Personalize renders snap for one recipient. Only the isYou marks differ
// between recipients; snap itself is left untouched.
func Personalize(snap Snapshot, viewerID string) arenadto.GameState {
	return arenadto.GameState{
		Type: arenadto.TypeUpdateGameState,
		Players: arenadto.Players{
			White: playerView(snap.White, viewerID),
			Black: playerView(snap.Black, viewerID),
		},
		Game: snap.Game,
	}
}

func playerView(s *SeatState, viewerID string) *arenadto.PlayerView {
	if s == nil {
		return nil
	}
	return &arenadto.PlayerView{
		Nick:       s.Nick,
		Online:     s.Online,
		TimeLeft:   s.TimeLeft,
		LastTurnTs: s.LastTurnTs,
		IsYou:      viewerID != "" && s.OccupantID == viewerID,
	}
}

// Preview is the lobby listing entry of this room.
func (r *GameRoom) Preview() arenadto.GamePreview {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.previewLocked()
}

func (r *GameRoom) previewLocked() arenadto.GamePreview {
	p := arenadto.GamePreview{
		ID:      r.cfg.ID,
		Player1: arenadto.PreviewPlaceholder,
		Player2: arenadto.PreviewPlaceholder,
		Time:    arenadto.TimeControl{Minutes: r.cfg.Minutes, Increment: r.cfg.Increment},
	}
	if id, ok := r.seat(rules.White).Occupant(); ok {
		p.Player1 = id.Name
	}
	if id, ok := r.seat(rules.Black).Occupant(); ok {
		p.Player2 = id.Name
	}
	return p
}

// FEN returns the current board encoding.
func (r *GameRoom) FEN() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos.FEN()
}

// Board returns the board encoding and the last move played, "" before the first move.
func (r *GameRoom) Board() (fen, lastMove string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if moves := r.pos.MovesUCI(); len(moves) > 0 {
		lastMove = moves[len(moves)-1]
	}
	return r.pos.FEN(), lastMove
}
