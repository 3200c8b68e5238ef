// Package presence tracks room membership and fans messages out to members.
package presence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/park285/cheese-arena/internal/obslog"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("connection closed")

type Identity struct {
	ID   string
	Name string
}

// Conn is a live connection owned by the transport. Implementations must be
// comparable and Send must not block on a slow peer.
type Conn interface {
	ID() string
	Send(ctx context.Context, payload []byte) error
}

type Member struct {
	Conn     Conn
	Identity Identity
}

// Hub is a membership set with fan-out. It holds no lock of its own; the
// embedding room serializes access.
type Hub struct {
	members []Member
	index   map[Conn]int
}

func NewHub() *Hub { return &Hub{index: make(map[Conn]int)} }

// Add registers conn. It reports false if conn is already a member.
func (h *Hub) Add(conn Conn, id Identity) bool {
	if _, ok := h.index[conn]; ok {
		return false
	}
	h.index[conn] = len(h.members)
	h.members = append(h.members, Member{Conn: conn, Identity: id})
	return true
}

func (h *Hub) Remove(conn Conn) (Member, bool) {
	i, ok := h.index[conn]
	if !ok {
		return Member{}, false
	}
	m := h.members[i]
	h.members = append(h.members[:i], h.members[i+1:]...)
	delete(h.index, conn)
	for j := i; j < len(h.members); j++ {
		h.index[h.members[j].Conn] = j
	}
	return m, true
}

func (h *Hub) Get(conn Conn) (Member, bool) {
	i, ok := h.index[conn]
	if !ok {
		return Member{}, false
	}
	return h.members[i], true
}

func (h *Hub) Len() int { return len(h.members) }

// Members returns a copy in join order.
func (h *Hub) Members() []Member { return append([]Member(nil), h.members...) }

// ConnsOf lists the connections backing an identity.
func (h *Hub) ConnsOf(identityID string) []Conn {
	var out []Conn
	for _, m := range h.members {
		if m.Identity.ID == identityID {
			out = append(out, m.Conn)
		}
	}
	return out
}

// Send marshals v and delivers it to one connection.
func (h *Hub) Send(ctx context.Context, conn Conn, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := conn.Send(ctx, raw); err != nil {
		obslog.L().Warn("presence_send_failed", zap.String("conn_id", conn.ID()), zap.Error(err))
		return err
	}
	return nil
}

// Broadcast delivers the same value to every member and returns the
// connections whose send failed.
func (h *Hub) Broadcast(ctx context.Context, v any) []Conn {
	raw, err := json.Marshal(v)
	if err != nil {
		obslog.L().Error("presence_marshal_failed", zap.Error(err))
		return nil
	}
	var failed []Conn
	for _, m := range h.members {
		if err := m.Conn.Send(ctx, raw); err != nil {
			obslog.L().Warn("presence_send_failed", zap.String("conn_id", m.Conn.ID()), zap.Error(err))
			failed = append(failed, m.Conn)
		}
	}
	return failed
}

// BroadcastFunc builds one value per recipient.
func (h *Hub) BroadcastFunc(ctx context.Context, build func(Member) any) []Conn {
	var failed []Conn
	for _, m := range h.members {
		if err := h.Send(ctx, m.Conn, build(m)); err != nil {
			failed = append(failed, m.Conn)
		}
	}
	return failed
}
