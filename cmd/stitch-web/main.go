package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/iiif-stitcher/internal/config"
	"github.com/fpang/iiif-stitcher/internal/iiif"
	"github.com/fpang/iiif-stitcher/internal/logging"
	"github.com/fpang/iiif-stitcher/internal/progress"
	"github.com/fpang/iiif-stitcher/internal/session"
)

// CLI flags
var portFlag int

// Shared by the API handlers.
var (
	runner  *session.Runner
	tracker *progress.Tracker
)

var rootCmd = &cobra.Command{
	Use:   "stitch-web",
	Short: "Web service that downloads and stitches IIIF tiled images",
	Long: `Stitch Web starts a local web server that downloads a large image
served as IIIF tiles, reassembles the tiles into one JPEG, and reports
progress while the download runs.

Examples:
  stitch-web
  stitch-web --port 9090
  STITCH_BASE_URL=https://example.org/iiif/2 stitch-web`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 8080, "Port to listen on")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	initStart := time.Now()
	_ = godotenv.Load()
	logging.Init()

	cfg := config.FromEnv()

	tracker = progress.NewTracker()
	client := iiif.NewClient(iiif.Options{
		BaseURL:    cfg.BaseURL,
		Retries:    cfg.TileRetries,
		RetryDelay: cfg.TileRetryDelay,
		Timeout:    cfg.RequestTimeout,
	})
	runner = session.NewRunner(client, tracker, cfg.OutputDir)

	logging.NewStartupLogger("stitch-web").
		Config("baseUrl", cfg.BaseURL).
		Config("outputDir", cfg.OutputDir).
		Config("tileRetries", strconv.Itoa(cfg.TileRetries)).
		Config("port", strconv.Itoa(portFlag)).
		InitDuration(time.Since(initStart)).
		Log()

	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/stitch/start", handleStart)
	mux.HandleFunc("/api/stitch/progress/", handleProgress)
	mux.HandleFunc("/api/stitch/download/", handleDownload)

	// Wrap with logging and CORS for local dev
	handler := withLogging(withCORS(mux))

	addr := fmt.Sprintf(":%d", portFlag)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	log.Info().Int("port", portFlag).Msg("Starting web server")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// --- Middleware ---

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("API request")
		}
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only allow localhost origins
		origin := r.Header.Get("Origin")
		if origin != "" && (strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
