package arenadto

// PlayerView is one seat as seen by a particular recipient.
type PlayerView struct {
	Nick       string `json:"nick"`
	Online     bool   `json:"online"`
	TimeLeft   int64  `json:"timeLeft"`
	LastTurnTs int64  `json:"lastTurnTs"`
	IsYou      bool   `json:"isYou"`
}

// Players holds both seats; a vacant seat is null.
type Players struct {
	White *PlayerView `json:"white"`
	Black *PlayerView `json:"black"`
}

type GameView struct {
	TimeControl    TimeControl `json:"timeControl"`
	ReadyToPlay    bool        `json:"readyToPlay"`
	RematchOffered bool        `json:"rematchOffered"`
	DrawOffered    bool        `json:"drawOffered"`
	FEN            string      `json:"fen"`
	GameStarted    bool        `json:"gameStarted"`
	GameOver       bool        `json:"gameOver"`
	Turn           string      `json:"turn"`
	Winner         *string     `json:"winner"`
}

type GameState struct {
	Type    string   `json:"type"`
	Players Players  `json:"players"`
	Game    GameView `json:"game"`
}
