// Package httpapi serves the read-only JSON and PNG endpoints next to the
// websocket server.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/archive"
	"github.com/park285/cheese-arena/internal/boardimg"
	"github.com/park285/cheese-arena/internal/lobby"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/session"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

const (
	defaultResults = 20
	maxResults     = 100
	resultsTimeout = 3 * time.Second
)

// Registry is the part of the lobby the API reads.
type Registry interface {
	Count() int
	PublicPreviews() []arenadto.GamePreview
	Preview(id string) (arenadto.GamePreview, error)
	Board(id string) (fen, lastMove string, err error)
}

type API struct {
	reg      Registry
	results  archive.Reader
	renderer boardimg.Renderer
	log      *zap.Logger
}

// New wires the handlers. A nil results reader serves an empty list; a nil
// renderer uses boardimg.New.
func New(reg Registry, results archive.Reader, renderer boardimg.Renderer) *API {
	if results == nil {
		results = archive.Nop{}
	}
	if renderer == nil {
		renderer = boardimg.New()
	}
	return &API{reg: reg, results: results, renderer: renderer, log: obslog.L()}
}

func (a *API) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if !ctx.IsGet() && !ctx.IsHead() {
			ctx.Response.Header.Set("Allow", "GET, HEAD")
			writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
			return
		}
		path := string(ctx.Path())
		switch {
		case path == "/healthz":
			ctx.SetContentType("text/plain; charset=utf-8")
			ctx.SetBodyString("ok")
		case path == "/api/lobby":
			a.lobby(ctx)
		case path == "/api/results":
			a.recent(ctx)
		case strings.HasPrefix(path, "/api/game/"):
			rest := strings.TrimPrefix(path, "/api/game/")
			if id, ok := strings.CutSuffix(rest, "/board.png"); ok && validID(id) {
				a.board(ctx, id)
				return
			}
			if validID(rest) {
				a.preview(ctx, rest)
				return
			}
			writeError(ctx, fasthttp.StatusNotFound, "not found")
		default:
			writeError(ctx, fasthttp.StatusNotFound, "not found")
		}
	}
}

func validID(id string) bool {
	return id != "" && !strings.Contains(id, "/")
}

func (a *API) lobby(ctx *fasthttp.RequestCtx) {
	games := a.reg.PublicPreviews()
	if games == nil {
		games = []arenadto.GamePreview{}
	}
	writeJSON(ctx, fasthttp.StatusOK, arenadto.LobbyResponse{Players: a.reg.Count(), Games: games})
}

func (a *API) preview(ctx *fasthttp.RequestCtx, id string) {
	p, err := a.reg.Preview(id)
	if err != nil {
		a.notFoundOr500(ctx, err, "game not found")
		return
	}
	who := identify(ctx)
	writeJSON(ctx, fasthttp.StatusOK, arenadto.PreviewResponse{
		Auth:    arenadto.AuthInfo{Username: who},
		ID:      p.ID,
		Player1: p.Player1,
		Player2: p.Player2,
		Time:    p.Time,
	})
}

func (a *API) board(ctx *fasthttp.RequestCtx, id string) {
	fen, last, err := a.reg.Board(id)
	if err != nil {
		a.notFoundOr500(ctx, err, "game not found")
		return
	}
	args := ctx.QueryArgs()
	opts := boardimg.Options{
		Size:     args.GetUintOrZero("size"),
		Flipped:  strings.EqualFold(string(args.Peek("orientation")), "black"),
		LastMove: last,
	}
	png, err := a.renderer.Render(fen, opts)
	if err != nil {
		a.log.Error("board_render_failed", zap.String("room_id", id), zap.Error(err))
		writeError(ctx, fasthttp.StatusInternalServerError, "render failed")
		return
	}
	ctx.SetContentType("image/png")
	ctx.Response.Header.Set("Cache-Control", "no-store")
	ctx.SetBody(png)
}

func (a *API) recent(ctx *fasthttp.RequestCtx) {
	n := defaultResults
	if v := ctx.QueryArgs().GetUintOrZero("limit"); v > 0 {
		n = min(v, maxResults)
	}
	c, cancel := context.WithTimeout(context.Background(), resultsTimeout)
	defer cancel()
	list, err := a.results.Recent(c, n)
	if err != nil {
		a.log.Warn("results_read_failed", zap.Error(err))
		writeError(ctx, fasthttp.StatusServiceUnavailable, "results unavailable")
		return
	}
	if list == nil {
		list = []arenadto.MatchResult{}
	}
	writeJSON(ctx, fasthttp.StatusOK, list)
}

func (a *API) notFoundOr500(ctx *fasthttp.RequestCtx, err error, msg string) {
	if errors.Is(err, lobby.ErrRoomNotFound) {
		writeError(ctx, fasthttp.StatusNotFound, msg)
		return
	}
	a.log.Error("api_lookup_failed", zap.Error(err))
	writeError(ctx, fasthttp.StatusInternalServerError, "internal error")
}

// identify reads the session cookies and mints missing ones, so the preview page
// and the later websocket upgrade agree on who the visitor is.
func identify(ctx *fasthttp.RequestCtx) string {
	id, mintedID, mintedName := session.Resolve(
		string(ctx.Request.Header.Cookie(session.CookieUID)),
		string(ctx.Request.Header.Cookie(session.CookieNick)),
	)
	if mintedID {
		setCookie(ctx, session.CookieUID, id.ID)
	}
	if mintedName {
		setCookie(ctx, session.CookieNick, id.Name)
	}
	return id.Name
}

func setCookie(ctx *fasthttp.RequestCtx, name, value string) {
	c := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(c)
	c.SetKey(name)
	c.SetValue(value)
	c.SetPath("/")
	c.SetMaxAge(session.CookieMaxAge)
	c.SetHTTPOnly(true)
	c.SetSameSite(fasthttp.CookieSameSiteLaxMode)
	ctx.Response.Header.SetCookie(c)
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		ctx.Error("encode failed", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func writeError(ctx *fasthttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, arenadto.ErrorMessage{Error: msg})
}

// Serve runs a fasthttp server on addr until ctx is cancelled.
func (a *API) Serve(ctx context.Context, addr string) error {
	srv := &fasthttp.Server{
		Handler:      a.Handler(),
		Name:         "cheese-arena",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(addr) }()
	a.log.Info("http_api_listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.ShutdownWithContext(shutdownCtx)
	}
}

