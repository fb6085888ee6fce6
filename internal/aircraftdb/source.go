package aircraftdb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

var keyPattern = regexp.MustCompile(`^[0-9A-F]{1,6}$`)

// SanitizeKey uppercases key and checks it is a valid tree prefix
func SanitizeKey(key string) (string, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if !keyPattern.MatchString(key) {
		return "", ErrInvalidKey
	}
	return key, nil
}

// Source provides prefix-tree nodes and the type table. FetchNode
// returns (nil, nil) when the node does not exist.
type Source interface {
	FetchNode(ctx context.Context, key string) (*Node, error)
	FetchTypes(ctx context.Context) (map[string]TypeInfo, error)
}

// HTTPSource reads the database from a tar1090 web root
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) FetchNode(ctx context.Context, key string) (*Node, error) {
	key, err := SanitizeKey(key)
	if err != nil {
		return nil, err
	}
	body, err := s.first(ctx, "db2/"+key+".js", "db/"+key+".js")
	if err != nil || body == nil {
		return nil, err
	}
	return ParseNode(body)
}

func (s *HTTPSource) FetchTypes(ctx context.Context) (map[string]TypeInfo, error) {
	body, err := s.first(ctx,
		"db2/icao_aircraft_types2.js",
		"db/icao_aircraft_types2.js",
		"db/icao_aircraft_types.json",
	)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, fmt.Errorf("failed to find type table: %w", ErrNotFound)
	}
	return ParseTypes(body)
}

// first returns the body of the first candidate that exists. A 404 moves
// on to the next candidate; any other failure stops the search. All
// candidates missing gives a nil body and nil error.
func (s *HTTPSource) first(ctx context.Context, candidates ...string) ([]byte, error) {
	for _, path := range candidates {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+path, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", path, err)
		}
		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status code %d for %s", resp.StatusCode, path)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return body, nil
	}
	return nil, nil
}
