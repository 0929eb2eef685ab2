package stitcher

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	// Tile servers hand back JPEG; PNG registered for completeness.
	_ "image/png"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// jpegQuality is the encode quality for the final stitched image.
const jpegQuality = 95

// TileMismatchError reports a decoded tile whose dimensions differ from
// the grid plan, meaning the remote server returned an unexpected region.
// It is fatal to the stitch session.
type TileMismatchError struct {
	Tile      Tile
	GotWidth  int
	GotHeight int
}

func (e *TileMismatchError) Error() string {
	return fmt.Sprintf("stitcher: tile %d,%d: got %dx%d, planned %dx%d",
		e.Tile.Row, e.Tile.Col, e.GotWidth, e.GotHeight, e.Tile.Width, e.Tile.Height)
}

// Canvas is the in-memory full-size output image, assembled tile by tile.
// A Canvas is owned by one stitch session and is not safe for concurrent
// use.
type Canvas struct {
	img *image.RGBA
}

// NewCanvas allocates a width×height output canvas.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// Bounds returns the canvas rectangle.
func (c *Canvas) Bounds() image.Rectangle {
	return c.img.Bounds()
}

// Place decodes data as an image and draws it onto the canvas at the
// tile's planned offset. The decoded image must exactly match the tile's
// planned extent; a mismatch returns a *TileMismatchError.
func (c *Canvas) Place(t Tile, data []byte) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode tile %d,%d: %w", t.Row, t.Col, err)
	}

	b := img.Bounds()
	if b.Dx() != t.Width || b.Dy() != t.Height {
		return &TileMismatchError{Tile: t, GotWidth: b.Dx(), GotHeight: b.Dy()}
	}

	draw.Copy(c.img, image.Pt(t.X, t.Y), img, b, draw.Src, nil)
	return nil
}

// SaveJPEG encodes the canvas as a JPEG and writes it to path.
func (c *Canvas) SaveJPEG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	if err := jpeg.Encode(f, c.img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		f.Close()
		return fmt.Errorf("encode stitched image: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}

	b := c.img.Bounds()
	log.Debug().
		Str("path", path).
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Msg("Stitched image saved")

	return nil
}
