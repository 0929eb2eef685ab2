// Package session orchestrates one download-and-stitch run per session:
// descriptor fetch, grid planning, per-tile fetch and compose, final
// save, with progress published to a shared tracker throughout.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/iiif-stitcher/internal/iiif"
	"github.com/fpang/iiif-stitcher/internal/progress"
	"github.com/fpang/iiif-stitcher/internal/stitcher"
)

// ValidateImageID checks that id is non-empty and contains only
// alphanumeric characters, underscores, and dashes. Anything shaped like
// a path (separators, dots) is rejected before any network activity.
func ValidateImageID(id string) error {
	if id == "" {
		return errors.New("image ID is required")
	}
	if strings.ContainsAny(id, `/\`) {
		return errors.New("image ID must not contain path separators")
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return fmt.Errorf("image ID contains invalid character %q", r)
		}
	}
	return nil
}

// Runner launches and drives stitch sessions. Each session runs in its
// own goroutine to a terminal state; there is no cancellation once
// started.
type Runner struct {
	client    *iiif.Client
	tracker   *progress.Tracker
	outputDir string
}

// NewRunner creates a Runner writing artifacts to outputDir.
func NewRunner(client *iiif.Client, tracker *progress.Tracker, outputDir string) *Runner {
	return &Runner{
		client:    client,
		tracker:   tracker,
		outputDir: outputDir,
	}
}

// Start validates imageID, registers a new session, and launches the
// pipeline in the background. It returns the session ID immediately;
// callers follow the run via the progress tracker.
func (r *Runner) Start(imageID string) (string, error) {
	if err := ValidateImageID(imageID); err != nil {
		return "", err
	}

	sessionID := uuid.NewString()
	r.tracker.Update(sessionID, progress.Record{
		Message:  "Fetching image metadata...",
		Progress: progress.Percent(0),
	})

	go r.run(sessionID, imageID)

	return sessionID, nil
}

// run executes the pipeline to a terminal state. Every failure ends in a
// terminal error record; nothing escapes to the polling caller.
func (r *Runner) run(sessionID, imageID string) {
	// Same rule as at intake. The ID reaches the filesystem below, so
	// the background task does not trust its caller.
	if err := ValidateImageID(imageID); err != nil {
		r.fail(sessionID, "Invalid image ID", err)
		return
	}

	ctx := context.Background()

	info, err := r.client.Info(ctx, imageID)
	if err != nil {
		r.fail(sessionID, "Failed to fetch image metadata", err)
		return
	}

	tiles, err := stitcher.PlanGrid(info.Width, info.Height, info.TileWidth, info.TileHeight)
	if err != nil {
		r.fail(sessionID, "Failed to plan tile grid", err)
		return
	}
	total := len(tiles)

	log.Info().
		Str("sessionId", sessionID).
		Str("imageId", imageID).
		Int("width", info.Width).
		Int("height", info.Height).
		Int("tiles", total).
		Msg("Starting tile download")

	r.tracker.Update(sessionID, progress.Record{
		Message:  fmt.Sprintf("Image size: %dx%d, downloading %d tiles...", info.Width, info.Height, total),
		Progress: progress.Percent(5),
	})

	canvas := stitcher.NewCanvas(info.Width, info.Height)

	for i, t := range tiles {
		data, err := r.client.FetchTile(ctx, imageID, t.X, t.Y, t.Width, t.Height)
		if err != nil {
			r.fail(sessionID, "Network error occurred", err)
			return
		}
		if err := canvas.Place(t, data); err != nil {
			r.fail(sessionID, "Failed to assemble image", err)
			return
		}

		done := i + 1
		r.tracker.Update(sessionID, progress.Record{
			Message:  fmt.Sprintf("Downloaded tile %d/%d", done, total),
			Progress: progress.Percent(5 + float64(done)/float64(total)*85),
		})
	}

	r.tracker.Update(sessionID, progress.Record{
		Message:  "Saving final image...",
		Progress: progress.Percent(95),
	})

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		r.fail(sessionID, "Failed to create output directory", err)
		return
	}

	outPath := filepath.Join(r.outputDir, imageID+"_stitched.jpg")
	if err := canvas.SaveJPEG(outPath); err != nil {
		r.fail(sessionID, "Failed to save image", err)
		return
	}

	r.tracker.Update(sessionID, progress.Record{
		Message:   "Image ready for download!",
		Progress:  progress.Percent(100),
		Completed: true,
		FilePath:  outPath,
	})

	log.Info().
		Str("sessionId", sessionID).
		Str("imageId", imageID).
		Str("path", outPath).
		Msg("Stitch complete")
}

// fail records a terminal error snapshot for the session.
func (r *Runner) fail(sessionID, msg string, err error) {
	log.Error().
		Err(err).
		Str("sessionId", sessionID).
		Msg(msg)
	r.tracker.Update(sessionID, progress.Record{
		Message: msg,
		Error:   err.Error(),
	})
}
