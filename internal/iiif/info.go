package iiif

// Info describes the remote image: its full pixel dimensions and the
// nominal tile size tiles are served in. Edge tiles are smaller.
type Info struct {
	Width      int
	Height     int
	TileWidth  int
	TileHeight int
}
