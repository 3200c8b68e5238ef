package rules

import (
	"errors"
	"strings"
	"testing"
)

func play(t *testing.T, p Position, moves ...string) {
	t.Helper()
	for _, mv := range moves {
		m := Move{From: mv[:2], To: mv[2:4]}
		if len(mv) == 5 {
			m.Promotion = mv[4:]
		}
		if err := p.Apply(m); err != nil {
			t.Fatalf("apply %s: %v", mv, err)
		}
	}
}

func TestMoveUCI(t *testing.T) {
	cases := []struct {
		in   Move
		want string
		err  bool
	}{
		{Move{From: "e2", To: "e4"}, "e2e4", false},
		{Move{From: "E7", To: "e8", Promotion: "Q"}, "e7e8q", false},
		{Move{From: "e2", To: "e9"}, "", true},
		{Move{From: "i2", To: "e4"}, "", true},
		{Move{From: "e7", To: "e8", Promotion: "k"}, "", true},
	}
	for _, c := range cases {
		got, err := c.in.UCI()
		if c.err {
			if !errors.Is(err, ErrBadEncoding) {
				t.Fatalf("%+v: expected ErrBadEncoding, got %v", c.in, err)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Fatalf("%+v: got %q, %v", c.in, got, err)
		}
	}
}

func TestApplyTracksTurnAndNotation(t *testing.T) {
	p := ChessOracle{}.NewPosition()
	if p.SideToMove() != White {
		t.Fatalf("white moves first")
	}
	play(t, p, "e2e4", "e7e5", "g1f3")
	if p.SideToMove() != Black {
		t.Fatalf("expected black to move")
	}
	san := p.MovesSAN()
	if len(san) != 3 || san[0] != "e4" || san[2] != "Nf3" {
		t.Fatalf("unexpected SAN %v", san)
	}
	if p.Terminal() || p.Result() != InProgress {
		t.Fatalf("position should be in progress")
	}
}

func TestIllegalMoveLeavesPositionUntouched(t *testing.T) {
	p := ChessOracle{}.NewPosition()
	play(t, p, "e2e4")
	before := p.FEN()
	m := Move{From: "e2", To: "e5"}
	if p.Legal(m) {
		t.Fatalf("e2e5 must be illegal")
	}
	err := p.Apply(m)
	if !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if p.FEN() != before || len(p.MovesUCI()) != 1 {
		t.Fatalf("position changed after rejected move")
	}
}

func TestCheckmateOutcome(t *testing.T) {
	p := ChessOracle{}.NewPosition()
	play(t, p, "f2f3", "e7e5", "g2g4", "d8h4")
	if !p.Terminal() {
		t.Fatalf("fool's mate should be terminal")
	}
	if p.Result() != BlackWins || p.Method() != MethodCheckmate {
		t.Fatalf("got %s by %s", p.Result(), p.Method())
	}
	if !strings.HasSuffix(p.MovesSAN()[3], "#") {
		t.Fatalf("mating move SAN: %v", p.MovesSAN())
	}
}

func TestColorOpponent(t *testing.T) {
	if White.Opponent() != Black || Black.Opponent() != White {
		t.Fatalf("opponent mapping broken")
	}
	if Color("red").Valid() {
		t.Fatalf("red is not a color")
	}
}

func TestLegalCheckKeepsStateAcrossMoves(t *testing.T) {
	p := ChessOracle{}.NewPosition()
	play(t, p, "e2e4", "d7d5", "e4e5", "f7f5")

	before := p.FEN()
	if !p.Legal(Move{From: "e5", To: "f6"}) {
		t.Fatalf("en passant should be legal")
	}
	if p.FEN() != before || len(p.MovesUCI()) != 4 {
		t.Fatalf("Legal must not mutate the position")
	}

	play(t, p, "e5f6")
	if san := p.MovesSAN(); san[len(san)-1] != "exf6" {
		t.Fatalf("san = %v", san)
	}
	if !strings.HasPrefix(p.FEN(), "rnbqkbnr/ppp1p1pp/5P2/3p4/8/8/PPPP1PPP/RNBQKBNR b") {
		t.Fatalf("fen = %s", p.FEN())
	}
	if p.Legal(Move{From: "e5", To: "f6"}) {
		t.Fatalf("pawn already left e5")
	}
}
