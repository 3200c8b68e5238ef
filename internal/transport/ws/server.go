// Package ws serves the lobby and game rooms over websockets.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/park285/cheese-arena/internal/action"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/presence"
	"github.com/park285/cheese-arena/internal/room"
	"github.com/park285/cheese-arena/internal/session"
	"github.com/park285/cheese-arena/pkg/arenadto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Endpoint is a membership scope that accepts parsed actions.
type Endpoint interface {
	Join(conn presence.Conn, id presence.Identity) error
	Leave(conn presence.Conn)
	Handle(conn presence.Conn, a action.Action) error
}

// Registry is the lobby seen from the transport.
type Registry interface {
	Endpoint
	Room(id string) (*room.GameRoom, bool)
}

type Options struct {
	AllowedOrigins []string
	SendBuffer     int
	ReadLimit      int64
	WriteTimeout   time.Duration
	PingInterval   time.Duration
}

type Server struct {
	reg  Registry
	cat  *msgcat.Catalog
	opts Options
	log  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewServer(reg Registry, cat *msgcat.Catalog, opts Options) *Server {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 4096
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{reg: reg, cat: cat, opts: opts, log: obslog.L(), ctx: ctx, cancel: cancel}
}

// Routes mounts the lobby and game endpoints.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/lobby", s.ServeLobby)
	mux.HandleFunc("GET /ws/game/{id}", s.ServeGame)
	return mux
}

func (s *Server) ServeLobby(w http.ResponseWriter, r *http.Request) {
	id := session.Issue(r, w.Header())
	wsc, err := s.accept(w, r)
	if err != nil {
		return
	}
	s.serve(wsc, id, s.reg, action.ScopeLobby, "lobby")
}

func (s *Server) ServeGame(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	gr, ok := s.reg.Room(roomID)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(arenadto.ErrorMessage{Error: s.cat.Text("lobby.room_not_found", map[string]any{"ID": roomID})})
		return
	}
	id := session.Issue(r, w.Header())
	wsc, err := s.accept(w, r)
	if err != nil {
		return
	}
	s.serve(wsc, id, gr, action.ScopeGame, roomID)
}

func (s *Server) accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	wsc, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  s.opts.AllowedOrigins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		s.log.Warn("ws_accept_failed", zap.String("path", r.URL.Path), zap.Error(err))
		return nil, err
	}
	wsc.SetReadLimit(s.opts.ReadLimit)
	return wsc, nil
}

// serve runs the read loop until the peer goes away or the server shuts down.
func (s *Server) serve(wsc *websocket.Conn, id presence.Identity, ep Endpoint, scope action.Scope, scopeName string) {
	s.wg.Add(1)
	defer s.wg.Done()

	c := newConn(s.ctx, wsc, s.opts.SendBuffer, s.opts.WriteTimeout, s.opts.PingInterval, s.log.With(zap.String("scope", scopeName), zap.String("user_id", id.ID)))
	go c.writePump()

	if err := ep.Join(c, id); err != nil {
		s.replyError(c, "room.closed", nil)
		c.flush(time.Second)
		c.Close(websocket.StatusNormalClosure, "room closed")
		return
	}
	c.log.Info("ws_joined", zap.String("nick", id.Name))
	defer func() {
		ep.Leave(c)
		c.Close(websocket.StatusNormalClosure, "")
		c.log.Info("ws_left")
	}()

	for {
		typ, data, err := wsc.Read(c.ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				c.log.Debug("ws_read_failed", zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		a, err := action.Parse(scope, data)
		if err != nil {
			s.replyError(c, parseErrorKey(err), nil)
			continue
		}
		if err := ep.Handle(c, a); err != nil {
			c.log.Debug("ws_action_rejected", zap.String("type", string(a.Kind())), zap.Error(err))
		}
	}
}

func (s *Server) replyError(c *Conn, key string, data map[string]any) {
	raw, err := json.Marshal(arenadto.ErrorMessage{Error: s.cat.Text(key, data)})
	if err != nil {
		return
	}
	if err := c.Send(c.ctx, raw); err != nil {
		c.log.Warn("ws_send_failed", zap.Error(err))
	}
}

func parseErrorKey(err error) string {
	switch {
	case errors.Is(err, action.ErrInvalidJSON):
		return "protocol.invalid_json"
	case errors.Is(err, action.ErrUnknownType):
		return "protocol.invalid_action"
	}
	return "protocol.invalid_data"
}

// Shutdown closes every connection and waits for read loops to exit or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
