package iiif

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(baseURL string) *Client {
	return NewClient(Options{
		BaseURL:    baseURL,
		Retries:    3,
		RetryDelay: time.Millisecond,
		Timeout:    time.Second,
	})
}

func TestInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/img1/info.json" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"width":5000,"height":4000,"tiles":[{"width":512,"height":256}]}`)
	}))
	defer srv.Close()

	info, err := testClient(srv.URL).Info(context.Background(), "img1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Width != 5000 || info.Height != 4000 {
		t.Errorf("dimensions = %dx%d, want 5000x4000", info.Width, info.Height)
	}
	if info.TileWidth != 512 || info.TileHeight != 256 {
		t.Errorf("tile size = %dx%d, want 512x256", info.TileWidth, info.TileHeight)
	}
}

func TestInfoTileHeightDefaultsToWidth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"width":1000,"height":800,"tiles":[{"width":384}]}`)
	}))
	defer srv.Close()

	info, err := testClient(srv.URL).Info(context.Background(), "img1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.TileHeight != 384 {
		t.Errorf("tile height = %d, want 384 (defaulted from width)", info.TileHeight)
	}
}

func TestInfoMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>nope</html>"},
		{"missing width", `{"height":800,"tiles":[{"width":384}]}`},
		{"no tiles", `{"width":1000,"height":800,"tiles":[]}`},
		{"zero tile width", `{"width":1000,"height":800,"tiles":[{"width":0}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := testClient(srv.URL).Info(context.Background(), "img1")
			if err == nil {
				t.Fatal("expected error")
			}
			var metaErr *MetadataError
			if !errors.As(err, &metaErr) {
				t.Errorf("error = %v, want *MetadataError", err)
			}
		})
	}
}

func TestInfoHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Info(context.Background(), "img1")
	var metaErr *MetadataError
	if !errors.As(err, &metaErr) {
		t.Fatalf("error = %v, want *MetadataError", err)
	}
}

func TestFetchTileRegionURL(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("tile-bytes"))
	}))
	defer srv.Close()

	body, err := testClient(srv.URL).FetchTile(context.Background(), "img1", 0, 400, 400, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "tile-bytes" {
		t.Errorf("body = %q, want %q", body, "tile-bytes")
	}
	if want := "/img1/0,400,400,200/full/0/default.jpg"; gotPath != want {
		t.Errorf("request path = %q, want %q", gotPath, want)
	}
}

func TestFetchTileRetryThenSuccess(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("tile-bytes"))
	}))
	defer srv.Close()

	body, err := testClient(srv.URL).FetchTile(context.Background(), "img1", 0, 0, 100, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "tile-bytes" {
		t.Errorf("body = %q, want %q", body, "tile-bytes")
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("made %d attempts, want exactly 3", got)
	}
}

func TestFetchTileExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchTile(context.Background(), "img1", 0, 0, 100, 100)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}

	var fetchErr *TileFetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error = %v, want *TileFetchError", err)
	}
	if fetchErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", fetchErr.StatusCode, http.StatusServiceUnavailable)
	}
	if fetchErr.Attempts != 3 {
		t.Errorf("error reports %d attempts, want 3", fetchErr.Attempts)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("made %d attempts, want exactly 3", got)
	}
}

func TestFetchTileTransportError(t *testing.T) {
	// Point at a server that is already closed.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := testClient(url).FetchTile(context.Background(), "img1", 0, 0, 100, 100)
	if err == nil {
		t.Fatal("expected transport error")
	}

	// All attempts died at the transport level, so the error is the last
	// transport error, not a TileFetchError.
	var fetchErr *TileFetchError
	if errors.As(err, &fetchErr) {
		t.Errorf("error = %v, want transport error rather than *TileFetchError", err)
	}
}
