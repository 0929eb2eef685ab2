package iiif

import "fmt"

// MetadataError indicates the image descriptor could not be fetched or
// parsed. It is fatal to a stitch session; descriptors are not retried.
type MetadataError struct {
	URL string
	Err error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("iiif: descriptor %s: %v", e.URL, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

// TileFetchError indicates a tile region request kept returning an
// unsuccessful HTTP status until the retry budget was exhausted.
type TileFetchError struct {
	Region     string
	StatusCode int
	Attempts   int
}

func (e *TileFetchError) Error() string {
	return fmt.Sprintf("iiif: tile %s: status %d after %d attempts", e.Region, e.StatusCode, e.Attempts)
}
