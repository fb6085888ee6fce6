// Package trace builds, fetches and reshapes readsb per-aircraft trace
// files (trace_full_*.json / trace_recent_*.json).
package trace

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Modes for URL selection
const (
	ModeAuto    = "auto"
	ModeRecent  = "recent"
	ModeHistory = "history"
)

// Data is a trace document. Point times are seconds relative to
// Timestamp until NormalizeStamps makes them absolute.
type Data struct {
	ICAO      string  `json:"icao,omitempty" msgpack:"icao,omitempty"`
	Timestamp float64 `json:"timestamp" msgpack:"timestamp"`
	Trace     []Point `json:"trace" msgpack:"trace"`
}

// Point is one trace entry: [time, lat, lon, alt, gs, track, flags, ...]
type Point []any

// Time returns the point's time element
func (p Point) Time() (float64, bool) {
	return p.num(0)
}

func (p Point) Lat() (float64, bool) { return p.num(1) }
func (p Point) Lon() (float64, bool) { return p.num(2) }

func (p Point) num(i int) (float64, bool) {
	if i >= len(p) {
		return 0, false
	}
	switch v := p[i].(type) {
	case float64:
		return v, !math.IsNaN(v) && !math.IsInf(v, 0)
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Options selects the URL layout. Now defaults to time.Now.
type Options struct {
	Mode     string
	BasePath string
	Now      func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) mode() string {
	if o.Mode == "" {
		return ModeAuto
	}
	return o.Mode
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func suffix(hex string) string {
	if len(hex) < 2 {
		return hex
	}
	return hex[len(hex)-2:]
}

func withSlash(base string) string {
	if strings.HasSuffix(base, "/") {
		return base
	}
	return base + "/"
}

// URL returns the full trace path for hex on date. Without a BasePath,
// an auto-mode request for a past day resolves under globe_history/ so it
// agrees with URLs; tar1090's buildTraceUrl would use data/ there.
func URL(hex string, date time.Time, opts Options) string {
	if hex == "" || date.IsZero() {
		return ""
	}
	mode := opts.mode()
	live := mode == ModeRecent || (mode == ModeAuto && sameUTCDay(date, opts.now()))

	base := opts.BasePath
	if base == "" {
		base = "globe_history/"
		if live {
			base = "data/"
		}
	}
	base = withSlash(base)

	if live {
		return fmt.Sprintf("%straces/%s/trace_full_%s.json", base, suffix(hex), hex)
	}
	return fmt.Sprintf("%s%s/traces/%s/trace_full_%s.json", base, date.UTC().Format("2006/01/02"), suffix(hex), hex)
}

// Pair is the recent/full URL pair for a trace. Recent is empty for
// history days.
type Pair struct {
	Recent string `json:"recent,omitempty"`
	Full   string `json:"full"`
}

// URLs returns the recent and full trace paths for hex on date
func URLs(hex string, date time.Time, opts Options) Pair {
	if hex == "" || date.IsZero() {
		return Pair{}
	}
	sfx := suffix(hex)
	mode := opts.mode()
	if mode == ModeRecent || (mode == ModeAuto && sameUTCDay(date, opts.now())) {
		return Pair{
			Recent: fmt.Sprintf("data/traces/%s/trace_recent_%s.json", sfx, hex),
			Full:   fmt.Sprintf("data/traces/%s/trace_full_%s.json", sfx, hex),
		}
	}
	return Pair{
		Full: fmt.Sprintf("globe_history/%s/traces/%s/trace_full_%s.json", date.UTC().Format("2006/01/02"), sfx, hex),
	}
}

// Merge concatenates full and recent, orders by time and drops short
// points and points repeating the previous time. Inputs should already
// be normalized.
func Merge(full, recent *Data) *Data {
	var merged []Point
	if full != nil {
		merged = append(merged, full.Trace...)
	}
	if recent != nil {
		merged = append(merged, recent.Trace...)
	}

	out := &Data{Trace: []Point{}}
	if full != nil && full.ICAO != "" {
		out.ICAO = full.ICAO
	} else if recent != nil {
		out.ICAO = recent.ICAO
	}

	valid := merged[:0]
	for _, p := range merged {
		if _, ok := p.Time(); ok && len(p) >= 3 {
			valid = append(valid, p)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		a, _ := valid[i].Time()
		b, _ := valid[j].Time()
		return a < b
	})

	var last float64
	for i, p := range valid {
		ts, _ := p.Time()
		if i > 0 && ts == last {
			continue
		}
		out.Trace = append(out.Trace, p)
		last = ts
	}
	return out
}

// NormalizeStamps makes point times absolute and zeroes Timestamp
func NormalizeStamps(d *Data) *Data {
	if d == nil {
		return nil
	}
	for _, p := range d.Trace {
		if ts, ok := p.Time(); ok {
			p[0] = ts + d.Timestamp
		}
	}
	d.Timestamp = 0
	return d
}

// Path returns [lon, lat] pairs for every positioned point
func Path(d *Data) [][2]float64 {
	if d == nil {
		return [][2]float64{}
	}
	path := make([][2]float64, 0, len(d.Trace))
	for _, p := range d.Trace {
		lat, okLat := p.Lat()
		lon, okLon := p.Lon()
		if okLat && okLon {
			path = append(path, [2]float64{lon, lat})
		}
	}
	return path
}

// parseHHMM returns seconds into the day, or false for an unusable value
func parseHHMM(s string) (int, bool) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*3600 + m*60, true
}

// FilterWindow keeps points whose UTC time of day lies within
// [start, end]. Either bound may be empty; with neither the data is
// returned unchanged. Point times must be absolute.
func FilterWindow(d *Data, start, end string) *Data {
	if d == nil {
		return &Data{Trace: []Point{}}
	}
	from, hasFrom := parseHHMM(start)
	to, hasTo := parseHHMM(end)
	if !hasFrom && !hasTo {
		return d
	}

	out := &Data{ICAO: d.ICAO, Trace: []Point{}}
	for _, p := range d.Trace {
		ts, ok := p.Time()
		if !ok {
			continue
		}
		t := time.Unix(0, int64(ts*float64(time.Second))).UTC()
		sec := t.Hour()*3600 + t.Minute()*60 + t.Second()
		if hasFrom && sec < from {
			continue
		}
		if hasTo && sec > to {
			continue
		}
		out.Trace = append(out.Trace, p)
	}
	return out
}
