// Package boardimg renders PNG board previews from FEN strings.
package boardimg

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"

	nchess "github.com/corentings/chess/v2"
	xdraw "golang.org/x/image/draw"
)

const (
	baseSquare  = 64
	DefaultSize = 8 * baseSquare
	MinSize     = 64
	MaxSize     = 1024
)

var ErrBadFEN = errors.New("boardimg: invalid fen")

var (
	lightSquare    = color.RGBA{R: 233, G: 207, B: 163, A: 255}
	darkSquare     = color.RGBA{R: 187, G: 136, B: 96, A: 255}
	highlightColor = color.RGBA{R: 246, G: 226, B: 90, A: 110}
)

// Options tune a single render. Zero value means white at the bottom, default size, no highlight.
type Options struct {
	Size    int
	Flipped bool
	// LastMove is a UCI move whose squares get tinted, e.g. "e2e4".
	LastMove string
}

// Renderer is the seam used by the HTTP layer.
type Renderer interface {
	Render(fen string, opts Options) ([]byte, error)
}

type pngRenderer struct{}

func New() Renderer { return pngRenderer{} }

func (pngRenderer) Render(fen string, opts Options) ([]byte, error) {
	return RenderPNG(fen, opts)
}

// Render draws the position in fen at size x size pixels.
func Render(fen string, size int) ([]byte, error) {
	return RenderPNG(fen, Options{Size: size})
}

func RenderPNG(fen string, opts Options) ([]byte, error) {
	board, err := decodeBoard(fen)
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, DefaultSize, DefaultSize))
	drawSquares(img, baseSquare, opts.Flipped)
	drawLastMove(img, opts.LastMove, baseSquare, opts.Flipped)
	if err := drawPieces(img, board, baseSquare, opts.Flipped); err != nil {
		return nil, err
	}

	var out image.Image = img
	if size := clampSize(opts.Size); size != DefaultSize {
		dst := image.NewRGBA(image.Rect(0, 0, size, size))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func clampSize(size int) int {
	switch {
	case size <= 0:
		return DefaultSize
	case size < MinSize:
		return MinSize
	case size > MaxSize:
		return MaxSize
	}
	return size
}

func decodeBoard(fen string) (*nchess.Board, error) {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFEN, err)
	}
	return nchess.NewGame(opt).Position().Board(), nil
}

var (
	ranks = []nchess.Rank{nchess.Rank8, nchess.Rank7, nchess.Rank6, nchess.Rank5, nchess.Rank4, nchess.Rank3, nchess.Rank2, nchess.Rank1}
	files = []nchess.File{nchess.FileA, nchess.FileB, nchess.FileC, nchess.FileD, nchess.FileE, nchess.FileF, nchess.FileG, nchess.FileH}
)

func squareRect(sq nchess.Square, squareSize int, flipped bool) image.Rectangle {
	col := int(sq.File())
	row := 7 - int(sq.Rank())
	if flipped {
		col, row = 7-col, 7-row
	}
	x := col * squareSize
	y := row * squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func squareColor(sq nchess.Square) color.Color {
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return darkSquare
	}
	return lightSquare
}

func drawSquares(dst xdraw.Image, squareSize int, flipped bool) {
	for _, rank := range ranks {
		for _, file := range files {
			sq := nchess.NewSquare(file, rank)
			xdraw.Draw(dst, squareRect(sq, squareSize, flipped), image.NewUniform(squareColor(sq)), image.Point{}, xdraw.Src)
		}
	}
}

func drawLastMove(dst xdraw.Image, uci string, squareSize int, flipped bool) {
	if len(uci) < 4 {
		return
	}
	for _, name := range []string{uci[0:2], uci[2:4]} {
		sq, ok := parseSquare(name)
		if !ok {
			return
		}
		xdraw.Draw(dst, squareRect(sq, squareSize, flipped), image.NewUniform(highlightColor), image.Point{}, xdraw.Over)
	}
}

func drawPieces(dst xdraw.Image, board *nchess.Board, squareSize int, flipped bool) error {
	boardMap := board.SquareMap()
	for _, rank := range ranks {
		for _, file := range files {
			sq := nchess.NewSquare(file, rank)
			piece := boardMap[sq]
			if piece == nchess.NoPiece {
				continue
			}
			img, err := renderPieceImage(piece, squareSize)
			if err != nil {
				return err
			}
			xdraw.Draw(dst, squareRect(sq, squareSize, flipped), img, image.Point{}, xdraw.Over)
		}
	}
	return nil
}

func parseSquare(s string) (nchess.Square, bool) {
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return nchess.NoSquare, false
	}
	return nchess.NewSquare(nchess.File(s[0]-'a'), nchess.Rank(s[1]-'1')), true
}
