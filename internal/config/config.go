// Package config resolves runtime settings for the stitch service from
// environment variables, with defaults matching the public Antenati IIIF
// endpoint the service was built for.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// defaultBaseURL is the IIIF Image API 2.0 prefix tiles are served under.
	defaultBaseURL = "https://iiif-antenati.cultura.gov.it/iiif/2"

	// defaultOutputDir is where completed stitched images are written,
	// relative to the working directory.
	defaultOutputDir = "downloads"

	// defaultTileRetries is the total attempt budget per tile.
	defaultTileRetries = 3
)

// Config holds the resolved runtime settings for the stitch service.
type Config struct {
	// BaseURL is the IIIF base under which image descriptors and tile
	// regions are requested.
	BaseURL string

	// OutputDir is the directory completed artifacts are written to.
	OutputDir string

	// TileRetries is the maximum number of attempts per tile request.
	TileRetries int

	// TileRetryDelay is the fixed wait between tile attempts.
	TileRetryDelay time.Duration

	// RequestTimeout bounds each individual HTTP request.
	RequestTimeout time.Duration
}

// FromEnv builds a Config from environment variables, falling back to
// defaults for anything unset.
//
//	STITCH_BASE_URL     — IIIF base URL prefix
//	STITCH_OUTPUT_DIR   — artifact output directory
//	STITCH_TILE_RETRIES — attempt budget per tile (positive integer)
func FromEnv() Config {
	cfg := Config{
		BaseURL:        envOrDefault("STITCH_BASE_URL", defaultBaseURL),
		OutputDir:      envOrDefault("STITCH_OUTPUT_DIR", defaultOutputDir),
		TileRetries:    defaultTileRetries,
		TileRetryDelay: time.Second,
		RequestTimeout: 30 * time.Second,
	}

	if v := os.Getenv("STITCH_TILE_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			log.Warn().Str("value", v).Msg("Ignoring invalid STITCH_TILE_RETRIES")
		} else {
			cfg.TileRetries = n
		}
	}

	return cfg
}

func envOrDefault(envVar, defaultVal string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultVal
}
