package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/cheese-arena/pkg/arenadto"
	"github.com/redis/go-redis/v9"
)

func newTestRecorder(t *testing.T, limit int) (*RedisRecorder, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rec, err := NewRedisRecorder(fmt.Sprintf("redis://%s/0", mr.Addr()), limit, time.Hour)
	if err != nil {
		t.Fatalf("NewRedisRecorder: %v", err)
	}
	t.Cleanup(func() { _ = rec.Close() })
	return rec, mr
}

func sample(id, room string) arenadto.MatchResult {
	return arenadto.MatchResult{
		ID:          id,
		RoomID:      room,
		White:       "Ann",
		Black:       "Bob",
		Winner:      "black",
		Method:      "checkmate",
		TimeControl: arenadto.TimeControl{Minutes: 5, Increment: 2},
		MovesSAN:    []string{"f3", "e5", "g4", "Qh4#"},
		EndedAt:     time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC),
	}
}

func TestRedisRecorderKeepsNewestFirstAndCaps(t *testing.T) {
	rec, _ := newTestRecorder(t, 2)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		if err := rec.Record(ctx, sample(fmt.Sprintf("r%d", i), "room1")); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	got, err := rec.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].ID != "r3" || got[1].ID != "r2" {
		t.Fatalf("unexpected list: %+v", got)
	}
	if got[0].PGN == "" {
		t.Fatalf("PGN should be filled on record")
	}
}

func TestRedisRecorderLastForRoom(t *testing.T) {
	rec, mr := newTestRecorder(t, 10)
	ctx := context.Background()
	if res, err := rec.LastForRoom(ctx, "nope"); err != nil || res != nil {
		t.Fatalf("missing room: %+v %v", res, err)
	}
	_ = rec.Record(ctx, sample("a", "room9"))
	_ = rec.Record(ctx, sample("b", "room9"))
	res, err := rec.LastForRoom(ctx, "room9")
	if err != nil || res == nil || res.ID != "b" {
		t.Fatalf("last: %+v %v", res, err)
	}
	if ttl := mr.TTL(keyRoomPrefix + "room9:last"); ttl != time.Hour {
		t.Fatalf("ttl %v", ttl)
	}
}

func TestParseRedisURL(t *testing.T) {
	opt, err := parseRedisURL("redis://:secret@localhost:6380/3")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opt.Addr != "localhost:6380" || opt.Password != "secret" || opt.DB != 3 {
		t.Fatalf("opts %+v", opt)
	}
	if _, err := parseRedisURL("http://localhost"); err == nil {
		t.Fatalf("http scheme should be rejected")
	}
}

func TestBuildPGN(t *testing.T) {
	pgn := BuildPGN(sample("x", "room1"))
	for _, want := range []string{
		`[White "Ann"]`,
		`[Result "0-1"]`,
		`[TimeControl "300+2"]`,
		`[Termination "checkmate"]`,
		`[Date "2026.03.04"]`,
		"1. f3 e5 2. g4 Qh4# 0-1",
	} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("pgn missing %q:\n%s", want, pgn)
		}
	}
	draw := sample("y", "room1")
	draw.Winner = "draw"
	draw.White = `Evil "Quote"`
	pgn = BuildPGN(draw)
	if !strings.Contains(pgn, `[Result "1/2-1/2"]`) || !strings.Contains(pgn, `[White "Evil 'Quote'"]`) {
		t.Fatalf("draw pgn:\n%s", pgn)
	}
}

type failing struct{ err error }

func (f failing) Record(context.Context, arenadto.MatchResult) error { return f.err }

func TestMultiJoinsErrors(t *testing.T) {
	rec, _ := newTestRecorder(t, 10)
	boom := errors.New("boom")
	m := Multi{rec, failing{boom}, nil}
	err := m.Record(context.Background(), sample("z", "room2"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if got, _ := rec.Recent(context.Background(), 1); len(got) != 1 {
		t.Fatalf("healthy recorder should still record")
	}
}

func TestRedisClientConstructor(t *testing.T) {
	mr := miniredis.RunT(t)
	rec := NewRedisRecorderFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 0, 0)
	if rec.limit != 100 || rec.ttl != 7*24*time.Hour {
		t.Fatalf("defaults: %d %v", rec.limit, rec.ttl)
	}
}
