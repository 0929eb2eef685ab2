// Package iiif provides a client for an IIIF Image API 2.0 tile server.
// It covers the two requests the stitch pipeline needs: fetching the
// image descriptor (info.json) and fetching one pixel region as raw
// image bytes, the latter with a bounded retry budget.
package iiif

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultRetries    = 3
	defaultRetryDelay = time.Second
)

// defaultHeaders imitates a browser session. The Antenati tile server
// rejects bare programmatic requests.
var defaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:141.0) Gecko/20100101 Firefox/141.0",
	"Accept":          "image/avif,image/webp,image/png,image/svg+xml,image/*;q=0.8,*/*;q=0.5",
	"Accept-Language": "en-US,en;q=0.5",
	"Connection":      "keep-alive",
	"Referer":         "https://antenati.cultura.gov.it/",
	"Sec-Fetch-Dest":  "image",
	"Sec-Fetch-Mode":  "no-cors",
	"Sec-Fetch-Site":  "same-site",
	"Pragma":          "no-cache",
	"Cache-Control":   "no-cache",
}

// Options configures the IIIF client.
type Options struct {
	// BaseURL is the IIIF prefix image identifiers are appended to,
	// without a trailing slash.
	BaseURL string

	// Retries is the total attempt budget per tile request.
	// Default: 3
	Retries int

	// RetryDelay is the fixed wait between tile attempts.
	// Default: 1s
	RetryDelay time.Duration

	// Timeout bounds each individual HTTP request.
	// Default: 30s
	Timeout time.Duration
}

// Client issues descriptor and tile-region requests against one IIIF base URL.
type Client struct {
	httpClient *http.Client
	baseURL    string
	retries    int
	retryDelay time.Duration
}

// NewClient creates an IIIF client with the given options.
func NewClient(opts Options) *Client {
	if opts.Retries < 1 {
		opts.Retries = defaultRetries
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		baseURL:    opts.BaseURL,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
	}
}

// infoResponse is the subset of the IIIF info.json descriptor we consume.
type infoResponse struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Tiles  []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"tiles"`
}

// Info fetches and parses the image descriptor for imageID.
//
// The first declared tile entry supplies the nominal tile size; a missing
// tile height defaults to the tile width (square tiles). Any HTTP failure
// or malformed descriptor is returned as a *MetadataError — descriptor
// problems are not retried.
func (c *Client) Info(ctx context.Context, imageID string) (*Info, error) {
	infoURL := fmt.Sprintf("%s/%s/info.json", c.baseURL, imageID)
	log.Info().Str("url", infoURL).Msg("Fetching image descriptor")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, infoURL, nil)
	if err != nil {
		return nil, &MetadataError{URL: infoURL, Err: err}
	}
	setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &MetadataError{URL: infoURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &MetadataError{
			URL: infoURL,
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var body infoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &MetadataError{URL: infoURL, Err: fmt.Errorf("decode descriptor: %w", err)}
	}

	if body.Width <= 0 || body.Height <= 0 {
		return nil, &MetadataError{
			URL: infoURL,
			Err: fmt.Errorf("invalid image dimensions %dx%d", body.Width, body.Height),
		}
	}
	if len(body.Tiles) == 0 || body.Tiles[0].Width <= 0 {
		return nil, &MetadataError{URL: infoURL, Err: fmt.Errorf("descriptor declares no usable tile size")}
	}

	info := &Info{
		Width:      body.Width,
		Height:     body.Height,
		TileWidth:  body.Tiles[0].Width,
		TileHeight: body.Tiles[0].Height,
	}
	if info.TileHeight <= 0 {
		info.TileHeight = info.TileWidth
	}

	return info, nil
}

// FetchTile retrieves the raw image bytes for one pixel region of imageID.
//
// A non-200 response or transport error is logged and retried after a
// fixed delay, up to the configured attempt budget. After the budget is
// exhausted, a last unsuccessful response surfaces as a *TileFetchError;
// if every attempt failed at the transport level, the last transport
// error is returned instead.
func (c *Client) FetchTile(ctx context.Context, imageID string, x, y, w, h int) ([]byte, error) {
	region := fmt.Sprintf("%d,%d,%d,%d", x, y, w, h)
	tileURL := fmt.Sprintf("%s/%s/%s/full/0/default.jpg", c.baseURL, imageID, region)

	var lastStatus int
	var lastErr error

	for attempt := 1; attempt <= c.retries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, tileURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create tile request: %w", err)
		}
		setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			lastStatus = 0
			log.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("retries", c.retries).
				Str("region", region).
				Msg("Tile request failed")
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK && readErr == nil {
			return body, nil
		}

		if readErr != nil {
			lastErr = readErr
			lastStatus = 0
		} else {
			lastStatus = resp.StatusCode
		}
		log.Warn().
			Int("attempt", attempt).
			Int("retries", c.retries).
			Int("status", resp.StatusCode).
			Str("region", region).
			Msg("Tile fetch unsuccessful")
	}

	if lastStatus != 0 {
		return nil, &TileFetchError{Region: region, StatusCode: lastStatus, Attempts: c.retries}
	}
	return nil, fmt.Errorf("fetch tile %s after %d attempts: %w", region, c.retries, lastErr)
}

func setHeaders(req *http.Request) {
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}
}
