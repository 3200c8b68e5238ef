package arenadto

import "time"

// MatchResult is the archived record of one finished match.
type MatchResult struct {
	ID          string      `json:"id"`
	RoomID      string      `json:"roomId"`
	White       string      `json:"white"`
	WhiteID     string      `json:"whiteId"`
	Black       string      `json:"black"`
	BlackID     string      `json:"blackId"`
	Winner      string      `json:"winner"`
	Method      string      `json:"method"`
	TimeControl TimeControl `json:"time"`
	MovesUCI    []string    `json:"movesUci"`
	MovesSAN    []string    `json:"movesSan"`
	FEN         string      `json:"fen"`
	PGN         string      `json:"pgn"`
	StartedAt   time.Time   `json:"startedAt"`
	EndedAt     time.Time   `json:"endedAt"`
}
