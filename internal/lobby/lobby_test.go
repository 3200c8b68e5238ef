package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/park285/cheese-arena/internal/action"
	"github.com/park285/cheese-arena/internal/clock"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/presence"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

type fakeConn struct {
	id     string
	mu     sync.Mutex
	frames []string
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(_ context.Context, p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, string(p))
	return nil
}

func (c *fakeConn) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

func (c *fakeConn) last(t *testing.T, v any) {
	t.Helper()
	f := c.all()
	if len(f) == 0 {
		t.Fatalf("%s received nothing", c.id)
	}
	if err := json.Unmarshal([]byte(f[len(f)-1]), v); err != nil {
		t.Fatalf("decode %s: %v", f[len(f)-1], err)
	}
}

type memRecorder struct {
	mu      sync.Mutex
	results []arenadto.MatchResult
}

func (m *memRecorder) Record(_ context.Context, res arenadto.MatchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, res)
	return nil
}

func newTestLobby(t *testing.T, mutate func(*Options)) (*Lobby, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	opts := Options{Clock: clk, Catalog: msgcat.MustDefault()}
	if mutate != nil {
		mutate(&opts)
	}
	l := New(opts)
	t.Cleanup(l.Close)
	return l, clk
}

func create(t *testing.T, l *Lobby, conn *fakeConn, cfg action.CreateGame) string {
	t.Helper()
	if err := l.Handle(conn, cfg); err != nil {
		t.Fatalf("createGame: %v", err)
	}
	var msg arenadto.GameCreated
	conn.last(t, &msg)
	if msg.Type != arenadto.TypeGameCreated || msg.ID == "" {
		t.Fatalf("unexpected reply %+v", msg)
	}
	return msg.ID
}

func TestJoinSendsGamesThenCount(t *testing.T) {
	l, _ := newTestLobby(t, nil)
	a, b := &fakeConn{id: "a"}, &fakeConn{id: "b"}
	_ = l.Join(a, presence.Identity{ID: "u1"})
	frames := a.all()
	if len(frames) != 2 || !strings.Contains(frames[0], `"updateGames"`) || !strings.Contains(frames[1], `"count":1`) {
		t.Fatalf("join frames: %v", frames)
	}
	_ = l.Join(b, presence.Identity{ID: "u2"})
	var up arenadto.UpdatePlayers
	a.last(t, &up)
	if up.Count != 2 {
		t.Fatalf("count after second join: %+v", up)
	}
	l.Leave(b)
	a.last(t, &up)
	if up.Count != 1 || l.Count() != 1 {
		t.Fatalf("count after leave: %+v", up)
	}
}

func TestCreateGameListsPublicRooms(t *testing.T) {
	l, _ := newTestLobby(t, nil)
	creator, watcher := &fakeConn{id: "c"}, &fakeConn{id: "w"}
	_ = l.Join(creator, presence.Identity{ID: "u1"})
	_ = l.Join(watcher, presence.Identity{ID: "u2"})

	id := create(t, l, creator, action.CreateGame{Minutes: 5, Increment: 3})
	if len(id) != 6 || strings.ContainsAny(id, "0OoIl") {
		t.Fatalf("bad id %q", id)
	}
	var games arenadto.UpdateGames
	watcher.last(t, &games)
	if len(games.Games) != 1 || games.Games[0].ID != id || games.Games[0].Player1 != arenadto.PreviewPlaceholder {
		t.Fatalf("public list: %+v", games)
	}
	if games.Games[0].Time.Minutes != 5 || games.Games[0].Time.Increment != 3 {
		t.Fatalf("time control: %+v", games.Games[0].Time)
	}

	before := len(watcher.all())
	priv := create(t, l, creator, action.CreateGame{Minutes: 1, Private: true})
	if len(watcher.all()) != before {
		t.Fatalf("private room must not trigger a list broadcast")
	}
	if _, ok := l.Room(priv); !ok {
		t.Fatalf("private room must still be reachable by id")
	}
	if got := l.PublicPreviews(); len(got) != 1 {
		t.Fatalf("previews: %+v", got)
	}
	if _, err := l.Preview("missing"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("missing preview: %v", err)
	}
}

func TestRoomIDCollisionIsRetried(t *testing.T) {
	ids := []string{"aaaaaa", "aaaaaa", "aaaaaa", "bbbbbb"}
	l, _ := newTestLobby(t, func(o *Options) {
		o.NewID = func(int) (string, error) {
			id := ids[0]
			ids = ids[1:]
			return id, nil
		}
	})
	c := &fakeConn{id: "c"}
	first := create(t, l, c, action.CreateGame{Minutes: 5})
	second := create(t, l, c, action.CreateGame{Minutes: 5})
	if first != "aaaaaa" || second != "bbbbbb" {
		t.Fatalf("ids %q %q", first, second)
	}
}

func TestMaxRooms(t *testing.T) {
	l, _ := newTestLobby(t, func(o *Options) { o.MaxRooms = 1 })
	c := &fakeConn{id: "c"}
	create(t, l, c, action.CreateGame{Minutes: 5})
	if err := l.Handle(c, action.CreateGame{Minutes: 5}); !errors.Is(err, ErrTooManyRooms) {
		t.Fatalf("expected ErrTooManyRooms, got %v", err)
	}
	var msg arenadto.ErrorMessage
	c.last(t, &msg)
	if msg.Error == "" {
		t.Fatalf("creator should get an error reply")
	}
}

func TestUnknownLobbyAction(t *testing.T) {
	l, _ := newTestLobby(t, nil)
	c := &fakeConn{id: "c"}
	if err := l.Handle(c, action.Resign{}); !errors.Is(err, action.ErrUnknownType) {
		t.Fatalf("got %v", err)
	}
}

func TestAbandonedRoomIsRetired(t *testing.T) {
	l, clk := newTestLobby(t, nil)
	watcher := &fakeConn{id: "w"}
	_ = l.Join(watcher, presence.Identity{ID: "u1"})
	id := create(t, l, watcher, action.CreateGame{Minutes: 5})

	clk.Advance(45 * time.Second)
	if _, ok := l.Room(id); ok {
		t.Fatalf("room should be gone")
	}
	var games arenadto.UpdateGames
	watcher.last(t, &games)
	if games.Type != arenadto.TypeUpdateGames || len(games.Games) != 0 {
		t.Fatalf("list after removal: %+v", games)
	}
}

func TestPreviewFollowsSeats(t *testing.T) {
	l, _ := newTestLobby(t, nil)
	watcher := &fakeConn{id: "w"}
	_ = l.Join(watcher, presence.Identity{ID: "w"})
	id := create(t, l, watcher, action.CreateGame{Minutes: 5})
	r, _ := l.Room(id)

	player := &fakeConn{id: "p"}
	if err := r.Join(player, presence.Identity{ID: "u1", Name: "Ann"}); err != nil {
		t.Fatalf("room join: %v", err)
	}
	if err := r.Handle(player, action.Play{Color: "black"}); err != nil {
		t.Fatalf("play: %v", err)
	}
	var games arenadto.UpdateGames
	watcher.last(t, &games)
	if len(games.Games) != 1 || games.Games[0].Player2 != "Ann" || games.Games[0].Player1 != arenadto.PreviewPlaceholder {
		t.Fatalf("preview not refreshed: %+v", games)
	}
}

func TestFinishedMatchIsRecorded(t *testing.T) {
	rec := &memRecorder{}
	l, _ := newTestLobby(t, func(o *Options) { o.Recorder = rec })
	c := &fakeConn{id: "c"}
	id := create(t, l, c, action.CreateGame{Minutes: 5})
	r, _ := l.Room(id)
	w, b := &fakeConn{id: "w"}, &fakeConn{id: "b"}
	_ = r.Join(w, presence.Identity{ID: "u1", Name: "Ann"})
	_ = r.Join(b, presence.Identity{ID: "u2", Name: "Bob"})
	for _, step := range []struct {
		c *fakeConn
		a action.Action
	}{
		{w, action.Play{Color: "white"}},
		{b, action.Play{Color: "black"}},
		{w, action.Ready{}},
		{b, action.Ready{}},
		{w, action.Resign{}},
	} {
		if err := r.Handle(step.c, step.a); err != nil {
			t.Fatalf("%s: %v", step.a.Kind(), err)
		}
	}
	l.Close()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.results) != 1 {
		t.Fatalf("results: %+v", rec.results)
	}
	got := rec.results[0]
	if got.RoomID != id || got.Winner != "black" || got.Method != "resignation" || got.White != "Ann" {
		t.Fatalf("result: %+v", got)
	}
}

func TestRecordAfterCloseIsSkipped(t *testing.T) {
	rec := &memRecorder{}
	l, _ := newTestLobby(t, func(o *Options) { o.Recorder = rec })
	l.Close()
	l.record(arenadto.MatchResult{ID: "late", RoomID: "r1"})
	l.Close()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.results) != 0 {
		t.Fatalf("result recorded after close: %+v", rec.results)
	}
}

func TestRecordRacingClose(t *testing.T) {
	rec := &memRecorder{}
	l, _ := newTestLobby(t, func(o *Options) { o.Recorder = rec })
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.record(arenadto.MatchResult{ID: "m", RoomID: "r"})
			}
		}()
	}
	l.Close()
	wg.Wait()
	// Everything accepted before Close finished must have been written.
	rec.mu.Lock()
	n := len(rec.results)
	rec.mu.Unlock()
	l.Close()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.results) != n {
		t.Fatalf("writes continued after close: %d then %d", n, len(rec.results))
	}
}

func TestRandomID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		id, err := RandomID(6)
		if err != nil {
			t.Fatalf("RandomID: %v", err)
		}
		for _, ch := range id {
			if !strings.ContainsRune(Alphabet, ch) {
				t.Fatalf("%q outside alphabet", ch)
			}
		}
		seen[id] = true
	}
	if len(seen) < 190 {
		t.Fatalf("ids repeat too often: %d unique", len(seen))
	}
	if _, err := RandomID(0); err == nil {
		t.Fatalf("zero length must fail")
	}
}
