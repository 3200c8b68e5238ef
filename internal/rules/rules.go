// Package rules defines the move-legality collaborator consumed by game rooms.
package rules

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIllegalMove = errors.New("illegal move")
	ErrBadEncoding = errors.New("bad move encoding")
)

type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) Valid() bool { return c == White || c == Black }

// Result is the outcome code of a position.
type Result string

const (
	InProgress Result = "in-progress"
	WhiteWins  Result = "white"
	BlackWins  Result = "black"
	Draw       Result = "draw"
)

// Method names how a terminal position was reached.
type Method string

const (
	MethodNone      Method = ""
	MethodCheckmate Method = "checkmate"
	MethodStalemate Method = "stalemate"
	MethodDraw      Method = "draw"
)

type Move struct {
	From      string
	To        string
	Promotion string
}

// UCI encodes the move as from+to[+promotion], lower-cased.
func (m Move) UCI() (string, error) {
	from := strings.ToLower(strings.TrimSpace(m.From))
	to := strings.ToLower(strings.TrimSpace(m.To))
	promo := strings.ToLower(strings.TrimSpace(m.Promotion))
	if !ValidSquare(from) || !ValidSquare(to) {
		return "", fmt.Errorf("%w: %q-%q", ErrBadEncoding, m.From, m.To)
	}
	switch promo {
	case "", "q", "r", "b", "n":
	default:
		return "", fmt.Errorf("%w: promotion %q", ErrBadEncoding, m.Promotion)
	}
	return from + to + promo, nil
}

func ValidSquare(s string) bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

// Position is a mutable game position owned by a single room.
type Position interface {
	Legal(m Move) bool
	// Apply plays m. On error the position is unchanged.
	Apply(m Move) error
	Terminal() bool
	Result() Result
	Method() Method
	SideToMove() Color
	FEN() string
	MovesUCI() []string
	MovesSAN() []string
}

type Oracle interface {
	NewPosition() Position
}
