package trace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yegors/co-radar/pkg/logger"
)

// ErrNotFound is returned when no trace file exists for the aircraft
var ErrNotFound = errors.New("trace not found")

// Client fetches trace files from a tar1090-style web root
type Client struct {
	baseURL string
	client  *http.Client
	logger  *logger.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  log.Named("trace"),
	}
}

// Fetch loads the recent and full traces for hex on date, normalizes
// both and merges them. A missing recent trace is not an error.
func (c *Client) Fetch(ctx context.Context, hex string, date time.Time, opts Options) (*Data, error) {
	hex = strings.ToLower(strings.TrimSpace(hex))
	urls := URLs(hex, date, opts)
	if urls.Full == "" {
		return nil, fmt.Errorf("failed to build trace URL for %q", hex)
	}

	full, err := c.get(ctx, urls.Full)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	var recent *Data
	if urls.Recent != "" {
		recent, err = c.get(ctx, urls.Recent)
		if err != nil && !errors.Is(err, ErrNotFound) {
			c.logger.Warn("Failed to fetch recent trace",
				logger.String("hex", hex),
				logger.Error(err))
		}
	}

	if full == nil && recent == nil {
		return nil, ErrNotFound
	}

	merged := Merge(NormalizeStamps(full), NormalizeStamps(recent))
	if merged.ICAO == "" {
		merged.ICAO = hex
	}
	c.logger.Debug("Fetched trace",
		logger.String("hex", hex),
		logger.Int("points", len(merged.Trace)))
	return merged, nil
}

func (c *Client) get(ctx context.Context, path string) (*Data, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trace: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace body: %w", err)
	}

	var d Data
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("failed to decode trace: %w", err)
	}
	return &d, nil
}
