package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/park285/cheese-arena/internal/action"
	"github.com/park285/cheese-arena/internal/lobby"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/pkg/arenadto"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func newTestServer(t *testing.T) (*httptest.Server, *lobby.Lobby) {
	t.Helper()
	l := lobby.New(lobby.Options{Catalog: msgcat.MustDefault()})
	srv := NewServer(l, msgcat.MustDefault(), Options{})
	hs := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		hs.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		l.Close()
	})
	return hs, l
}

func dial(t *testing.T, hs *httptest.Server, path string) (*websocket.Conn, *http.Response) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(hs.URL, "http") + path
	c, resp, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { _ = c.Close(websocket.StatusNormalClosure, "") })
	return c, resp
}

func read(t *testing.T, c *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Read(ctx, c, v); err != nil {
		t.Fatalf("read: %v", err)
	}
}

func write(t *testing.T, c *websocket.Conn, raw string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Write(ctx, websocket.MessageText, []byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestLobbyFlow(t *testing.T) {
	hs, _ := newTestServer(t)
	c, resp := dial(t, hs, "/ws/lobby")
	if cookies := resp.Header.Values("Set-Cookie"); len(cookies) != 2 {
		t.Fatalf("identity cookies missing: %v", cookies)
	}

	var games arenadto.UpdateGames
	read(t, c, &games)
	if games.Type != arenadto.TypeUpdateGames {
		t.Fatalf("first frame: %+v", games)
	}
	var count arenadto.UpdatePlayers
	read(t, c, &count)
	if count.Count != 1 {
		t.Fatalf("count frame: %+v", count)
	}

	write(t, c, `{"type":"createGame","minutes":5,"increment":0,"private":false}`)
	read(t, c, &games)
	if len(games.Games) != 1 {
		t.Fatalf("list after create: %+v", games)
	}
	var created arenadto.GameCreated
	read(t, c, &created)
	if created.Type != arenadto.TypeGameCreated || created.ID != games.Games[0].ID {
		t.Fatalf("created: %+v", created)
	}

	write(t, c, `{"type":`)
	var e arenadto.ErrorMessage
	read(t, c, &e)
	if e.Error != "Invalid JSON" {
		t.Fatalf("error: %+v", e)
	}
}

func TestGameRouteUnknownRoom(t *testing.T) {
	hs, _ := newTestServer(t)
	resp, err := http.Get(hs.URL + "/ws/game/zzzzzz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestGameSnapshotAndAction(t *testing.T) {
	hs, l := newTestServer(t)
	gr, err := l.CreateGame(action.CreateGame{Minutes: 3, Increment: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	c, _ := dial(t, hs, "/ws/game/"+gr.ID())

	var st arenadto.GameState
	read(t, c, &st)
	if st.Type != arenadto.TypeUpdateGameState || st.Game.TimeControl.Minutes != 3 {
		t.Fatalf("snapshot: %+v", st)
	}

	write(t, c, `{"type":"play","color":"white"}`)
	read(t, c, &st)
	if st.Players.White == nil || !st.Players.White.IsYou || st.Players.White.TimeLeft != 180_000 {
		t.Fatalf("after play: %+v", st.Players)
	}

	write(t, c, `{"type":"resign"}`)
	var e arenadto.ErrorMessage
	read(t, c, &e)
	if e.Error != "The game has not started yet" {
		t.Fatalf("error: %+v", e)
	}

	write(t, c, `{"type":"createGame","minutes":5,"increment":0}`)
	read(t, c, &e)
	if e.Error != "Invalid action type" {
		t.Fatalf("lobby action in a room: %+v", e)
	}
}
