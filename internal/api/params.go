package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yegors/co-radar/internal/adsb"
)

func parseAircraftFilter(r *http.Request) (adsb.Filter, error) {
	q := r.URL.Query()
	var f adsb.Filter

	if raw := q.Get("military"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fmt.Errorf("invalid military: %q", raw)
		}
		f.MilitaryOnly = v
	}
	f.Sources = splitList(q.Get("sources"))

	var err error
	if f.AltitudeMin, err = parseOptionalFloat(q.Get("alt_min")); err != nil {
		return f, fmt.Errorf("invalid alt_min: %w", err)
	}
	if f.AltitudeMax, err = parseOptionalFloat(q.Get("alt_max")); err != nil {
		return f, fmt.Errorf("invalid alt_max: %w", err)
	}

	if raw := q.Get("on_ground"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fmt.Errorf("invalid on_ground: %q", raw)
		}
		f.OnGround = &v
	}
	return f, nil
}

// parseBBox reads minLon,minLat,maxLon,maxLat
func parseBBox(raw string) (adsb.Bounds, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return adsb.Bounds{}, errors.New("bbox needs minLon,minLat,maxLon,maxLat")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return adsb.Bounds{}, fmt.Errorf("invalid bbox value %q", p)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return adsb.Bounds{}, errors.New("bbox minimum exceeds maximum")
	}
	return adsb.Bounds{MinLon: v[0], MinLat: v[1], MaxLon: v[2], MaxLat: v[3]}, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseOptionalFloat(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// optionalFloat ignores malformed values
func optionalFloat(raw string) *float64 {
	v, _ := parseOptionalFloat(raw)
	return v
}

// parseTimestamp accepts RFC 3339 or unix seconds
func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("ts is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ts: %q", raw)
	}
	return time.UnixMilli(int64(secs * 1000)).UTC(), nil
}
