package rules

import (
	"fmt"

	nchess "github.com/corentings/chess/v2"
)

// ChessOracle implements standard chess on corentings/chess.
type ChessOracle struct{}

func (ChessOracle) NewPosition() Position {
	return &chessPosition{game: nchess.NewGame()}
}

type chessPosition struct {
	game *nchess.Game
	uci  []string
	san  []string
}

func (p *chessPosition) Legal(m Move) bool {
	uci, err := m.UCI()
	if err != nil {
		return false
	}
	return p.game.Clone().PushNotationMove(uci, nchess.UCINotation{}, nil) == nil
}

func (p *chessPosition) Apply(m Move) error {
	uci, err := m.UCI()
	if err != nil {
		return err
	}
	// Moves are played on a copy so a rejected move leaves p untouched.
	g := p.game.Clone()
	pos := g.Position()
	if err := g.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
		return fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}
	last := lastMove(g)
	if last == nil {
		return fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}
	p.game = g
	p.uci = append(p.uci, uci)
	p.san = append(p.san, nchess.AlgebraicNotation{}.Encode(pos, last))
	return nil
}

func (p *chessPosition) Terminal() bool { return p.game.Outcome() != nchess.NoOutcome }

func (p *chessPosition) Result() Result {
	switch p.game.Outcome() {
	case nchess.WhiteWon:
		return WhiteWins
	case nchess.BlackWon:
		return BlackWins
	case nchess.Draw:
		return Draw
	}
	return InProgress
}

func (p *chessPosition) Method() Method {
	if p.game.Outcome() == nchess.NoOutcome {
		return MethodNone
	}
	switch p.game.Method() {
	case nchess.Checkmate:
		return MethodCheckmate
	case nchess.Stalemate:
		return MethodStalemate
	}
	return MethodDraw
}

func (p *chessPosition) SideToMove() Color {
	if p.game.Position().Turn() == nchess.White {
		return White
	}
	return Black
}

func (p *chessPosition) FEN() string { return p.game.FEN() }

func (p *chessPosition) MovesUCI() []string { return append([]string(nil), p.uci...) }

func (p *chessPosition) MovesSAN() []string { return append([]string(nil), p.san...) }

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}
