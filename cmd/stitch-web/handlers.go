package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// POST /api/stitch/start
func handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		ImageID string `json:"imageId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID, err := runner.Start(strings.TrimSpace(req.ImageID))
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Info().Str("sessionId", sessionID).Msg("Stitch session started")
	respondJSON(w, http.StatusAccepted, map[string]string{
		"sessionId": sessionID,
	})
}

// GET /api/stitch/progress/{sessionId}
func handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sessionID, ok := sessionIDFromPath(r.URL.Path, "/api/stitch/progress/")
	if !ok {
		httpError(w, http.StatusNotFound, "not found")
		return
	}

	rec, ok := tracker.Get(sessionID)
	if !ok {
		httpError(w, http.StatusNotFound, "session not found")
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// GET /api/stitch/download/{sessionId}
func handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sessionID, ok := sessionIDFromPath(r.URL.Path, "/api/stitch/download/")
	if !ok {
		httpError(w, http.StatusNotFound, "not found")
		return
	}

	rec, ok := tracker.Get(sessionID)
	if !ok {
		httpError(w, http.StatusNotFound, "session not found")
		return
	}

	if !rec.Completed {
		httpError(w, http.StatusBadRequest, "download not completed yet")
		return
	}

	if rec.FilePath == "" {
		httpError(w, http.StatusNotFound, "file not found")
		return
	}
	if _, err := os.Stat(rec.FilePath); err != nil {
		httpError(w, http.StatusNotFound, "file not found")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(rec.FilePath)))
	http.ServeFile(w, r, rec.FilePath)
}

// sessionIDFromPath extracts the trailing session ID from paths like
// /api/stitch/progress/{sessionId}. Rejects empty IDs and extra segments.
func sessionIDFromPath(path, prefix string) (string, bool) {
	id := strings.TrimPrefix(path, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
