package boardimg

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Glyph outlines on a 45x45 canvas. {F} is the body fill, {S} the outline.
var glyphs = map[nchess.PieceType]string{
	nchess.Pawn: `<circle cx="22.5" cy="15" r="5.5" fill="{F}" stroke="{S}" stroke-width="1.5"/>` +
		`<path d="M18 21 L27 21 L30 33 L15 33 Z" fill="{F}" stroke="{S}" stroke-width="1.5"/>` +
		`<rect x="11" y="33" width="23" height="5" fill="{F}" stroke="{S}" stroke-width="1.5"/>`,
	nchess.Rook: `<path d="M11 9 L15 9 L15 12 L20 12 L20 9 L25 9 L25 12 L30 12 L30 9 L34 9 L34 15 L31 17 L31 31 L34 33 L34 38 L11 38 L11 33 L14 31 L14 17 L11 15 Z" fill="{F}" stroke="{S}" stroke-width="1.5"/>`,
	nchess.Knight: `<path d="M14 38 L33 38 L33 33 C33 24 31 15 24 10 L22 7 L20 11 C15 13 11 19 10 24 L13 27 L18 23 L20 25 C17 28 15 32 14 38 Z" fill="{F}" stroke="{S}" stroke-width="1.5"/>` +
		`<circle cx="18" cy="16" r="1.4" fill="{S}"/>`,
	nchess.Bishop: `<circle cx="22.5" cy="8" r="2.5" fill="{F}" stroke="{S}" stroke-width="1.5"/>` +
		`<ellipse cx="22.5" cy="20" rx="7" ry="9.5" fill="{F}" stroke="{S}" stroke-width="1.5"/>` +
		`<path d="M17 29 L28 29 L30 33 L15 33 Z" fill="{F}" stroke="{S}" stroke-width="1.5"/>` +
		`<rect x="10" y="33" width="25" height="5" fill="{F}" stroke="{S}" stroke-width="1.5"/>`,
	nchess.Queen: `<path d="M9 13 L14 29 L17 12 L22.5 28 L28 12 L31 29 L36 13 L33 33 L12 33 Z" fill="{F}" stroke="{S}" stroke-width="1.5"/>` +
		`<circle cx="9" cy="12" r="2" fill="{F}" stroke="{S}" stroke-width="1.2"/>` +
		`<circle cx="17" cy="10" r="2" fill="{F}" stroke="{S}" stroke-width="1.2"/>` +
		`<circle cx="28" cy="10" r="2" fill="{F}" stroke="{S}" stroke-width="1.2"/>` +
		`<circle cx="36" cy="12" r="2" fill="{F}" stroke="{S}" stroke-width="1.2"/>` +
		`<rect x="11" y="33" width="23" height="5" fill="{F}" stroke="{S}" stroke-width="1.5"/>`,
	nchess.King: `<path d="M21 4 L24 4 L24 7 L27 7 L27 10 L24 10 L24 14 L21 14 L21 10 L18 10 L18 7 L21 7 Z" fill="{F}" stroke="{S}" stroke-width="1.2"/>` +
		`<path d="M12 19 C12 15 33 15 33 19 L30 33 L15 33 Z" fill="{F}" stroke="{S}" stroke-width="1.5"/>` +
		`<rect x="11" y="33" width="23" height="5" fill="{F}" stroke="{S}" stroke-width="1.5"/>`,
}

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func pieceSVG(piece nchess.Piece) ([]byte, error) {
	body, ok := glyphs[piece.Type()]
	if !ok {
		return nil, fmt.Errorf("no glyph for piece %v", piece)
	}
	fill, stroke := "#f8f8f8", "#1a1a1a"
	if piece.Color() == nchess.Black {
		fill, stroke = "#2b2b2b", "#000000"
	}
	body = strings.NewReplacer("{F}", fill, "{S}", stroke).Replace(body)
	return []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">` + body + `</svg>`), nil
}

func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	data, err := pieceSVG(piece)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}
