// Package stitcher plans the tile grid covering a large image and
// assembles fetched tiles into the full-size output canvas.
package stitcher

import "fmt"

// Tile is one rectangular block of the source image: its position in the
// grid, its pixel offset into the output canvas, and its actual extent.
// Width and Height equal the nominal tile size except on the last row or
// column, where they are clipped to the image boundary.
type Tile struct {
	Row    int
	Col    int
	X      int
	Y      int
	Width  int
	Height int
}

// PlanGrid enumerates the tiles covering a totalWidth×totalHeight image
// served in tileWidth×tileHeight tiles, in row-major order. The returned
// rectangles exactly tile the image with no gaps and no overlaps.
//
// Non-positive dimensions are a caller bug and yield an error.
func PlanGrid(totalWidth, totalHeight, tileWidth, tileHeight int) ([]Tile, error) {
	if totalWidth <= 0 || totalHeight <= 0 || tileWidth <= 0 || tileHeight <= 0 {
		return nil, fmt.Errorf("stitcher: invalid grid dimensions %dx%d with %dx%d tiles",
			totalWidth, totalHeight, tileWidth, tileHeight)
	}

	cols := (totalWidth + tileWidth - 1) / tileWidth
	rows := (totalHeight + tileHeight - 1) / tileHeight

	tiles := make([]Tile, 0, rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			x := col * tileWidth
			y := row * tileHeight
			tiles = append(tiles, Tile{
				Row:    row,
				Col:    col,
				X:      x,
				Y:      y,
				Width:  min(tileWidth, totalWidth-x),
				Height: min(tileHeight, totalHeight-y),
			})
		}
	}

	return tiles, nil
}
