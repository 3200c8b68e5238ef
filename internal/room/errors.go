package room

import "errors"

var (
	ErrNotMember     = errors.New("connection is not a room member")
	ErrNotSeated     = errors.New("caller does not occupy a seat")
	ErrSeatTaken     = errors.New("seat already taken")
	ErrAlreadySeated = errors.New("caller already occupies the other seat")
	ErrInProgress    = errors.New("game in progress")
	ErrNotStarted    = errors.New("game not started")
	ErrGameOver      = errors.New("game over")
	ErrNotOver       = errors.New("game not over")
	ErrNotYourTurn   = errors.New("not your turn")
	ErrIllegalMove   = errors.New("illegal move")
	ErrClosed        = errors.New("room closed")
)

// ActionError is a rejected action. Key selects the reply text in the message catalog.
type ActionError struct {
	Err  error
	Key  string
	Data map[string]any
}

func (e *ActionError) Error() string { return e.Err.Error() }

func (e *ActionError) Unwrap() error { return e.Err }

var catalogKeys = map[error]string{
	ErrNotMember:     "room.not_seated",
	ErrNotSeated:     "room.not_seated",
	ErrSeatTaken:     "room.seat_taken",
	ErrAlreadySeated: "room.already_seated",
	ErrInProgress:    "room.in_progress",
	ErrNotStarted:    "room.not_started",
	ErrGameOver:      "room.game_over",
	ErrNotOver:       "room.not_over",
	ErrNotYourTurn:   "room.not_your_turn",
	ErrIllegalMove:   "room.illegal_move",
	ErrClosed:        "room.closed",
}

func reject(err error) *ActionError {
	return &ActionError{Err: err, Key: catalogKeys[err]}
}
