// Package action decodes client frames into typed actions.
package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/park285/cheese-arena/internal/rules"
	"github.com/tidwall/gjson"
)

var (
	ErrInvalidJSON    = errors.New("invalid json")
	ErrUnknownType    = errors.New("unknown action type")
	ErrInvalidPayload = errors.New("invalid action payload")
)

type Kind string

const (
	KindCreateGame Kind = "createGame"
	KindPlay       Kind = "play"
	KindReady      Kind = "ready"
	KindMove       Kind = "move"
	KindOfferDraw  Kind = "offerDraw"
	KindResign     Kind = "resign"
	KindRematch    Kind = "rematch"
)

// Scope selects which action surface a frame is parsed against.
type Scope int

const (
	ScopeLobby Scope = iota
	ScopeGame
)

type Action interface {
	Kind() Kind
}

type CreateGame struct {
	Minutes   float64 `json:"minutes"`
	Increment int     `json:"increment"`
	Private   bool    `json:"private"`
}

// PlayExit is the Play color that leaves the current seat.
const PlayExit = "exit"

type Play struct {
	Color string `json:"color"`
}

// Ready toggles the caller's flag, or sets it when Ready is present.
type Ready struct {
	Ready *bool `json:"ready,omitempty"`
}

type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

type OfferDraw struct{}
type Resign struct{}
type Rematch struct{}

func (CreateGame) Kind() Kind { return KindCreateGame }
func (Play) Kind() Kind       { return KindPlay }
func (Ready) Kind() Kind      { return KindReady }
func (Move) Kind() Kind       { return KindMove }
func (OfferDraw) Kind() Kind  { return KindOfferDraw }
func (Resign) Kind() Kind     { return KindResign }
func (Rematch) Kind() Kind    { return KindRematch }

// RulesMove converts the payload for the rules package.
func (m Move) RulesMove() rules.Move {
	return rules.Move{From: m.From, To: m.To, Promotion: m.Promotion}
}

// Parse validates raw against the action surface of scope.
func Parse(scope Scope, raw []byte) (Action, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, ErrInvalidPayload
	}
	t := root.Get("type")
	if t.Type != gjson.String {
		return nil, ErrInvalidPayload
	}
	kind := Kind(t.String())
	if scope == ScopeLobby {
		if kind != KindCreateGame {
			return nil, fmt.Errorf("%w: %s", ErrUnknownType, kind)
		}
		return parseCreateGame(root, raw)
	}
	switch kind {
	case KindPlay:
		var a Play
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		if a.Color != string(rules.White) && a.Color != string(rules.Black) && a.Color != PlayExit {
			return nil, fmt.Errorf("%w: color %q", ErrInvalidPayload, a.Color)
		}
		return a, nil
	case KindReady:
		r := root.Get("ready")
		if !r.Exists() || r.Type == gjson.Null {
			return Ready{}, nil
		}
		if r.Type != gjson.True && r.Type != gjson.False {
			return nil, fmt.Errorf("%w: ready must be boolean", ErrInvalidPayload)
		}
		v := r.Bool()
		return Ready{Ready: &v}, nil
	case KindMove:
		return parseMove(root)
	case KindOfferDraw:
		return OfferDraw{}, nil
	case KindResign:
		return Resign{}, nil
	case KindRematch:
		return Rematch{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownType, kind)
}

func parseCreateGame(root gjson.Result, raw []byte) (Action, error) {
	if root.Get("minutes").Type != gjson.Number || root.Get("increment").Type != gjson.Number {
		return nil, fmt.Errorf("%w: minutes and increment are required numbers", ErrInvalidPayload)
	}
	if p := root.Get("private"); p.Exists() && p.Type != gjson.True && p.Type != gjson.False {
		return nil, fmt.Errorf("%w: private must be boolean", ErrInvalidPayload)
	}
	inc := root.Get("increment").Float()
	if inc != math.Trunc(inc) {
		return nil, fmt.Errorf("%w: increment %v", ErrInvalidPayload, inc)
	}
	var a CreateGame
	a.Minutes = root.Get("minutes").Float()
	a.Increment = int(inc)
	a.Private = root.Get("private").Bool()
	if !ValidMinutes(a.Minutes) {
		return nil, fmt.Errorf("%w: minutes %v", ErrInvalidPayload, a.Minutes)
	}
	if !ValidIncrement(a.Increment) {
		return nil, fmt.Errorf("%w: increment %d", ErrInvalidPayload, a.Increment)
	}
	return a, nil
}

func parseMove(root gjson.Result) (Action, error) {
	from, to := root.Get("from"), root.Get("to")
	if from.Type != gjson.String || to.Type != gjson.String {
		return nil, fmt.Errorf("%w: from and to are required", ErrInvalidPayload)
	}
	a := Move{From: from.String(), To: to.String()}
	if p := root.Get("promotion"); p.Exists() && p.Type != gjson.Null {
		if p.Type != gjson.String {
			return nil, fmt.Errorf("%w: promotion must be a string", ErrInvalidPayload)
		}
		a.Promotion = p.String()
	}
	if _, err := a.RulesMove().UCI(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return a, nil
}

func decode(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// ValidMinutes reports whether m is one of the offered base times:
// 0.25 to 1.75 by quarters, 2 to 20, 25 to 45 by fives, 60 to 180 by fifteens.
func ValidMinutes(m float64) bool {
	switch {
	case m >= 0.25 && m <= 1.75:
		return m*4 == math.Trunc(m*4)
	case m >= 2 && m <= 20:
		return m == math.Trunc(m)
	case m >= 25 && m <= 45:
		return m == math.Trunc(m) && int(m)%5 == 0
	case m >= 60 && m <= 180:
		return m == math.Trunc(m) && int(m)%15 == 0
	}
	return false
}

// ValidIncrement accepts 0 to 20, 25 to 45 by fives, 60 to 180 by thirties.
func ValidIncrement(i int) bool {
	switch {
	case i >= 0 && i <= 20:
		return true
	case i >= 25 && i <= 45:
		return i%5 == 0
	case i >= 60 && i <= 180:
		return i%30 == 0
	}
	return false
}
