// Package lobby is the process-wide registry of game rooms and the lobby
// membership that watches the public room list.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/park285/cheese-arena/internal/action"
	"github.com/park285/cheese-arena/internal/archive"
	"github.com/park285/cheese-arena/internal/clock"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/presence"
	"github.com/park285/cheese-arena/internal/room"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/pkg/arenadto"
	"go.uber.org/zap"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrTooManyRooms = errors.New("too many rooms")
	ErrIDSpaceFull  = errors.New("could not allocate a free room id")
	ErrClosed       = errors.New("lobby closed")
)

const (
	maxIDAttempts        = 32
	defaultRecordTimeout = 5 * time.Second
)

type Options struct {
	Clock           clock.Source
	Oracle          rules.Oracle
	Catalog         *msgcat.Catalog
	DisconnectGrace time.Duration
	AbandonGrace    time.Duration
	IDLength        int
	MaxRooms        int
	Recorder        archive.Recorder
	RecordTimeout   time.Duration
	// NewID overrides RandomID.
	NewID  func(n int) (string, error)
	Logger *zap.Logger
}

type Lobby struct {
	mu     sync.Mutex
	opts   Options
	log    *zap.Logger
	hub    *presence.Hub
	rooms  map[string]*room.GameRoom
	order  []string
	closed bool
	wg     sync.WaitGroup
}

func New(opts Options) *Lobby {
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	if opts.Oracle == nil {
		opts.Oracle = rules.ChessOracle{}
	}
	if opts.IDLength <= 0 {
		opts.IDLength = 6
	}
	if opts.NewID == nil {
		opts.NewID = RandomID
	}
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = defaultRecordTimeout
	}
	log := opts.Logger
	if log == nil {
		log = obslog.L()
	}
	return &Lobby{opts: opts, log: log, hub: presence.NewHub(), rooms: make(map[string]*room.GameRoom)}
}

// Join registers a lobby watcher. The joiner gets the public list, then
// everyone gets the new head count.
func (l *Lobby) Join(conn presence.Conn, id presence.Identity) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if !l.hub.Add(conn, id) {
		return nil
	}
	if err := l.hub.Send(context.Background(), conn, l.gamesLocked()); err != nil {
		l.dropLocked([]presence.Conn{conn})
	}
	l.broadcastCountLocked()
	return nil
}

func (l *Lobby) Leave(conn presence.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.hub.Remove(conn); ok {
		l.broadcastCountLocked()
	}
}

// Handle runs a lobby action. Rejections are answered to conn only.
func (l *Lobby) Handle(conn presence.Conn, a action.Action) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch a := a.(type) {
	case action.CreateGame:
		r, err := l.createLocked(a)
		if err != nil {
			key := "lobby.too_many_rooms"
			if errors.Is(err, ErrClosed) {
				key = "room.closed"
			}
			l.replyLocked(conn, arenadto.ErrorMessage{Error: l.opts.Catalog.Text(key, nil)})
			return err
		}
		l.replyLocked(conn, arenadto.GameCreated{Type: arenadto.TypeGameCreated, ID: r.ID()})
		return nil
	}
	l.replyLocked(conn, arenadto.ErrorMessage{Error: l.opts.Catalog.Text("protocol.invalid_action", nil)})
	return fmt.Errorf("%w: %s", action.ErrUnknownType, a.Kind())
}

// CreateGame registers a new room and returns it.
func (l *Lobby) CreateGame(cfg action.CreateGame) (*room.GameRoom, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.createLocked(cfg)
}

func (l *Lobby) createLocked(cfg action.CreateGame) (*room.GameRoom, error) {
	if l.closed {
		return nil, ErrClosed
	}
	if l.opts.MaxRooms > 0 && len(l.rooms) >= l.opts.MaxRooms {
		return nil, ErrTooManyRooms
	}
	id, err := l.freshIDLocked()
	if err != nil {
		return nil, err
	}
	r := room.New(room.Config{
		ID:        id,
		Minutes:   cfg.Minutes,
		Increment: cfg.Increment,
		Private:   cfg.Private,
	}, room.Options{
		Clock:           l.opts.Clock,
		Oracle:          l.opts.Oracle,
		Catalog:         l.opts.Catalog,
		DisconnectGrace: l.opts.DisconnectGrace,
		AbandonGrace:    l.opts.AbandonGrace,
		Hooks: room.Hooks{
			OnDestroyed:      l.onRoomDestroyed,
			OnPreviewChanged: l.onPreviewChanged,
			OnFinished:       l.record,
		},
		Logger: l.log.With(zap.String("room_id", id)),
	})
	l.rooms[id] = r
	l.order = append(l.order, id)
	l.log.Info("lobby_room_created",
		zap.String("room_id", id),
		zap.Float64("minutes", cfg.Minutes),
		zap.Int("increment", cfg.Increment),
		zap.Bool("private", cfg.Private))
	if !cfg.Private {
		l.broadcastGamesLocked()
	}
	return r, nil
}

// freshIDLocked retries on collision with a live room.
func (l *Lobby) freshIDLocked() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id, err := l.opts.NewID(l.opts.IDLength)
		if err != nil {
			return "", err
		}
		if _, taken := l.rooms[id]; !taken {
			return id, nil
		}
		l.log.Debug("lobby_room_id_collision", zap.String("room_id", id))
	}
	return "", ErrIDSpaceFull
}

// Room looks a room up by id.
func (l *Lobby) Room(id string) (*room.GameRoom, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rooms[id]
	return r, ok
}

// Rooms lists live rooms in creation order.
func (l *Lobby) Rooms() []*room.GameRoom {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*room.GameRoom, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.rooms[id])
	}
	return out
}

func (l *Lobby) PublicPreviews() []arenadto.GamePreview {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.previewsLocked()
}

// Preview returns the listing entry of any room, private ones included.
func (l *Lobby) Preview(id string) (arenadto.GamePreview, error) {
	r, ok := l.Room(id)
	if !ok {
		return arenadto.GamePreview{}, ErrRoomNotFound
	}
	return r.Preview(), nil
}

// Board returns the position and last move of a room, private ones included.
func (l *Lobby) Board(id string) (fen, lastMove string, err error) {
	r, ok := l.Room(id)
	if !ok {
		return "", "", ErrRoomNotFound
	}
	fen, lastMove = r.Board()
	return fen, lastMove, nil
}

// Count is the number of lobby connections.
func (l *Lobby) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hub.Len()
}

// Close stops every room and waits for pending result writes.
func (l *Lobby) Close() {
	l.mu.Lock()
	l.closed = true
	rooms := make([]*room.GameRoom, 0, len(l.rooms))
	for _, r := range l.rooms {
		rooms = append(rooms, r)
	}
	l.mu.Unlock()
	for _, r := range rooms {
		r.Close()
	}
	l.wg.Wait()
}

func (l *Lobby) onRoomDestroyed(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rooms[id]
	if !ok {
		return
	}
	delete(l.rooms, id)
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	l.log.Info("lobby_room_removed", zap.String("room_id", id))
	if !r.Private() {
		l.broadcastGamesLocked()
	}
}

func (l *Lobby) onPreviewChanged(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.rooms[id]; ok && !r.Private() {
		l.broadcastGamesLocked()
	}
}

func (l *Lobby) record(res arenadto.MatchResult) {
	if l.opts.Recorder == nil {
		return
	}
	// Close waits on wg after setting closed, so Add must not race past it.
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.log.Warn("archive_record_skipped", zap.String("room_id", res.RoomID), zap.String("reason", "lobby closed"))
		return
	}
	l.wg.Add(1)
	l.mu.Unlock()
	go func() {
		defer l.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), l.opts.RecordTimeout)
		defer cancel()
		if err := l.opts.Recorder.Record(ctx, res); err != nil {
			l.log.Warn("archive_record_failed", zap.String("room_id", res.RoomID), zap.Error(err))
			return
		}
		l.log.Info("archive_recorded", zap.String("room_id", res.RoomID), zap.String("winner", res.Winner), zap.String("method", res.Method))
	}()
}

func (l *Lobby) previewsLocked() []arenadto.GamePreview {
	out := make([]arenadto.GamePreview, 0, len(l.order))
	for _, id := range l.order {
		r := l.rooms[id]
		if r.Private() {
			continue
		}
		out = append(out, r.Preview())
	}
	return out
}

func (l *Lobby) gamesLocked() arenadto.UpdateGames {
	return arenadto.UpdateGames{Type: arenadto.TypeUpdateGames, Games: l.previewsLocked()}
}

func (l *Lobby) broadcastGamesLocked() {
	l.dropLocked(l.hub.Broadcast(context.Background(), l.gamesLocked()))
}

func (l *Lobby) broadcastCountLocked() {
	failed := l.hub.Broadcast(context.Background(), arenadto.UpdatePlayers{Type: arenadto.TypeUpdatePlayers, Count: l.hub.Len()})
	l.dropLocked(failed)
}

func (l *Lobby) replyLocked(conn presence.Conn, v any) {
	if err := l.hub.Send(context.Background(), conn, v); err != nil {
		l.dropLocked([]presence.Conn{conn})
	}
}

// dropLocked removes dead connections and tells the rest about the new count.
func (l *Lobby) dropLocked(dead []presence.Conn) {
	removed := false
	for _, c := range dead {
		if _, ok := l.hub.Remove(c); ok {
			removed = true
		}
	}
	if removed && l.hub.Len() > 0 {
		l.broadcastCountLocked()
	}
}
