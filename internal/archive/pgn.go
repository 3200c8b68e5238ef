package archive

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-arena/pkg/arenadto"
)

func mapResultToPGN(winner string) string {
	switch strings.ToLower(strings.TrimSpace(winner)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

// BuildPGN renders a result as PGN with the seven-tag roster plus TimeControl and Termination.
func BuildPGN(res arenadto.MatchResult) string {
	pgnResult := mapResultToPGN(res.Winner)
	date := res.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	var b strings.Builder
	b.WriteString("[Event \"Arena casual game\"]\n")
	b.WriteString(fmt.Sprintf("[Site \"%s\"]\n", sanitizePGN(res.RoomID)))
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString("[Round \"-\"]\n")
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(res.White)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(res.Black)))
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n", pgnResult))
	b.WriteString(fmt.Sprintf("[TimeControl \"%s\"]\n", timeControlTag(res.TimeControl)))
	if m := strings.TrimSpace(res.Method); m != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(m)))
	}
	b.WriteString("\n")
	for i := 0; i < len(res.MovesSAN); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", i/2+1, strings.TrimSpace(res.MovesSAN[i])))
		if i+1 < len(res.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(res.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(pgnResult)
	return b.String()
}

// timeControlTag formats base seconds and increment as "300+2".
func timeControlTag(tc arenadto.TimeControl) string {
	return fmt.Sprintf("%d+%d", int64(tc.Minutes*60), tc.Increment)
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
