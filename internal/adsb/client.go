package adsb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yegors/co-radar/internal/compress"
	"github.com/yegors/co-radar/internal/readsb"
	"github.com/yegors/co-radar/pkg/logger"
)

const (
	binarySuffix = ".binCraft.zst"
	jsonSuffix   = ".json"

	acceptBinary = "application/octet-stream"
	acceptJSON   = "application/json"
)

// ErrFetchInProgress is returned when a fetch is requested while the
// previous one has not finished
var ErrFetchInProgress = errors.New("fetch already in progress")

// StatusError is a non-200 response from the receiver
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}

// IsNotFound reports whether err is a 404 from the receiver
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// decodeError marks a compressed payload that could not be decoded
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "failed to decode compressed snapshot: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// ClientConfig describes where the receiver publishes its files
type ClientConfig struct {
	BaseURL            string
	AircraftPath       string
	LegacyAircraftPath string
	ReceiverPath       string
	LegacyReceiverPath string
	CompressedURL      string
	Timeout            time.Duration
}

// Client polls one receiver. It prefers the zstd binCraft snapshot once
// the decoder is ready and falls back to JSON otherwise.
type Client struct {
	httpClient *http.Client
	cfg        ClientConfig
	decoder    *compress.Decoder
	reporter   Reporter
	logger     *logger.Logger

	pending         atomic.Bool
	receiverPending atomic.Bool

	mu           sync.Mutex
	aircraftPath string
	receiverPath string
	compressed   bool
}

// NewClient creates a new receiver client
func NewClient(cfg ClientConfig, decoder *compress.Decoder, reporter Reporter, log *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if decoder == nil {
		decoder = compress.NewDecoder()
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &Client{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		cfg:          cfg,
		decoder:      decoder,
		reporter:     reporter,
		logger:       log.Named("adsb-cli"),
		aircraftPath: cfg.AircraftPath,
		receiverPath: cfg.ReceiverPath,
	}
}

// EnableCompression initializes the decoder and switches to the binary
// snapshot
func (c *Client) EnableCompression() error {
	if err := c.decoder.Init(); err != nil {
		c.report(CategoryZstdInit, err)
		return err
	}
	c.mu.Lock()
	c.compressed = true
	c.mu.Unlock()
	c.logger.Info("Compressed aircraft feed enabled")
	return nil
}

// Compressed reports whether the next fetch requests the binary snapshot
func (c *Client) Compressed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compressed && c.decoder.Ready()
}

// AircraftPath returns the snapshot path currently in use
func (c *Client) AircraftPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aircraftPath
}

// Fetch downloads and decodes one snapshot
func (c *Client) Fetch(ctx context.Context) (*readsb.Snapshot, error) {
	if !c.pending.CompareAndSwap(false, true) {
		return nil, ErrFetchInProgress
	}
	defer c.pending.Store(false)

	if c.Compressed() {
		snap, err := c.fetchCompressed(ctx)
		if err == nil {
			return snap, nil
		}
		var de *decodeError
		if errors.As(err, &de) {
			c.mu.Lock()
			c.compressed = false
			c.mu.Unlock()
			c.report(CategoryZstdDecode, err)
			return nil, err
		}
		c.logger.Warn("Compressed snapshot unavailable, falling back to JSON", logger.Error(err))
	}

	body, err := c.getAircraft(ctx, jsonSuffix, acceptJSON, "")
	if err != nil {
		c.report(CategoryAircraftFetch, err)
		return nil, err
	}
	snap, err := readsb.DecodeJSON(body)
	if err != nil {
		c.report(CategoryAircraftFetch, err)
		return nil, err
	}

	c.logger.Debug("Fetched JSON snapshot", logger.Int("aircraft_count", len(snap.Aircraft)))
	return snap, nil
}

func (c *Client) fetchCompressed(ctx context.Context) (*readsb.Snapshot, error) {
	body, err := c.getAircraft(ctx, binarySuffix, acceptBinary, c.cfg.CompressedURL)
	if err != nil {
		return nil, err
	}
	raw, err := c.decoder.Decode(body, 0)
	if err != nil {
		return nil, &decodeError{err: err}
	}
	snap, err := readsb.DecodeBinCraft(raw)
	if err != nil {
		return nil, &decodeError{err: err}
	}

	c.logger.Debug("Fetched binCraft snapshot",
		logger.Int("aircraft_count", len(snap.Aircraft)),
		logger.Int("compressed_bytes", len(body)),
		logger.Int("raw_bytes", len(raw)))
	return snap, nil
}

// getAircraft tries override, then the current path, then the legacy path
// when the current one is missing. A legacy hit becomes the current path.
func (c *Client) getAircraft(ctx context.Context, suffix, accept, override string) ([]byte, error) {
	current := c.AircraftPath()

	if override != "" {
		body, err := c.get(ctx, override, accept)
		if err == nil {
			return body, nil
		}
		c.logger.Debug("Override URL failed", logger.String("url", override), logger.Error(err))
	}

	body, err := c.get(ctx, c.cfg.BaseURL+withSuffix(current, suffix), accept)
	if err == nil {
		return body, nil
	}

	legacy := c.cfg.LegacyAircraftPath
	if legacy == "" || legacy == current || !IsNotFound(err) {
		return nil, err
	}

	body, lerr := c.get(ctx, c.cfg.BaseURL+withSuffix(legacy, suffix), accept)
	if lerr != nil {
		return nil, err
	}

	c.mu.Lock()
	c.aircraftPath = legacy
	c.mu.Unlock()
	c.logger.Info("Switched to legacy aircraft path", logger.String("path", legacy))
	return body, nil
}

// FetchReceiver downloads receiver.json, falling back to the legacy path
func (c *Client) FetchReceiver(ctx context.Context) (*ReceiverInfo, error) {
	if !c.receiverPending.CompareAndSwap(false, true) {
		return nil, ErrFetchInProgress
	}
	defer c.receiverPending.Store(false)

	c.mu.Lock()
	current := c.receiverPath
	c.mu.Unlock()

	body, err := c.get(ctx, c.cfg.BaseURL+current, acceptJSON)
	if err != nil {
		legacy := c.cfg.LegacyReceiverPath
		if legacy == "" || legacy == current {
			c.report(CategoryReceiverFetch, err)
			return nil, err
		}
		lbody, lerr := c.get(ctx, c.cfg.BaseURL+legacy, acceptJSON)
		if lerr != nil {
			c.report(CategoryReceiverFetch, err)
			return nil, err
		}
		c.mu.Lock()
		c.receiverPath = legacy
		c.mu.Unlock()
		body = lbody
	}

	info, err := ParseReceiverInfo(body)
	if err != nil {
		c.report(CategoryReceiverFetch, err)
		return nil, err
	}
	return info, nil
}

func (c *Client) get(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

func (c *Client) report(category string, err error) {
	if c.reporter != nil {
		c.reporter.Report(category, err)
	}
}

func withSuffix(path, suffix string) string {
	return strings.TrimSuffix(path, jsonSuffix) + suffix
}
