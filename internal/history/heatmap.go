package history

import (
	"slices"
	"time"
)

var heatmapSources = [...]string{
	"adsb", "modeS", "adsr", "tisb", "adsc", "mlat", "other", "modeS", "adsb", "adsr", "tisb", "tisb",
}

func heatmapSource(code int) string {
	if code < 0 || code >= len(heatmapSources) {
		return "unknown"
	}
	return heatmapSources[code]
}

// Rand is the random source used to shuffle index tables
type Rand interface {
	Float64() float64
}

// HeatmapOptions controls sampling. Sources and the altitude bounds only
// apply when Filters is set.
type HeatmapOptions struct {
	Max           int // 0 means 32000
	Filters       bool
	Sources       []string
	AltitudeMin   *float64
	AltitudeMax   *float64
	UseIndexTable bool
	Lines         bool // keep index table order instead of shuffling
	Rand          Rand
	MaxIter       int // 0 means 1e6
}

// DefaultHeatmapOptions returns index-table sampling with the default caps
func DefaultHeatmapOptions() HeatmapOptions {
	return HeatmapOptions{Max: 32000, UseIndexTable: true, MaxIter: 1_000_000}
}

// HeatmapPoint is one sampled position
type HeatmapPoint struct {
	Hex      string   `json:"hex" msgpack:"hex"`
	Lat      float64  `json:"lat" msgpack:"lat"`
	Lon      float64  `json:"lon" msgpack:"lon"`
	Altitude *float64 `json:"alt,omitempty" msgpack:"alt,omitempty"`
	Speed    *float64 `json:"gs,omitempty" msgpack:"gs,omitempty"`
	Source   string   `json:"source" msgpack:"source"`
	Callsign string   `json:"flight,omitempty" msgpack:"flight,omitempty"`
	Squawk   string   `json:"squawk,omitempty" msgpack:"squawk,omitempty"`
}

// HeatmapResult is a sample. Truncated is set when the iteration cap
// stopped index-table sampling before the size cap or the end of input.
type HeatmapResult struct {
	Points    []HeatmapPoint `json:"points" msgpack:"points"`
	Truncated bool           `json:"truncated" msgpack:"truncated"`
}

type heatmapDecoder struct {
	opts  HeatmapOptions
	cache MetaCache
	out   []HeatmapPoint
}

func (d *heatmapDecoder) full() bool { return len(d.out) >= d.opts.Max }

// readSlice decodes records from word i up to the next marker. It
// reports false once the size cap is reached.
func (d *heatmapDecoder) readSlice(c *Chunk, i int) bool {
	for ; i+recordWords <= c.words(); i += recordWords {
		if c.isMarker(i) {
			return true
		}
		if !d.record(c, i) {
			return false
		}
	}
	return true
}

func (d *heatmapDecoder) record(c *Chunk, i int) bool {
	hex := c.hex(i)
	if c.isMeta(i) {
		d.cache[hex] = c.meta(i)
		return true
	}

	source := heatmapSource(c.sourceCode(i))
	if d.opts.Filters && d.opts.Sources != nil && !slices.Contains(d.opts.Sources, source) {
		return true
	}
	alt := decodeAltitude(c.word(i + 3))
	if d.opts.Filters && alt != nil {
		if d.opts.AltitudeMin != nil && *alt < *d.opts.AltitudeMin {
			return true
		}
		if d.opts.AltitudeMax != nil && *alt > *d.opts.AltitudeMax {
			return true
		}
	}

	p := HeatmapPoint{
		Hex:      hex,
		Lat:      float64(c.sword(i+1)) / 1e6,
		Lon:      float64(c.sword(i+2)) / 1e6,
		Altitude: alt,
		Speed:    decodeSpeed(c.word(i + 3)),
		Source:   source,
	}
	if m, ok := d.cache[hex]; ok {
		p.Callsign = m.Flight
		p.Squawk = m.Squawk
	}
	d.out = append(d.out, p)
	return !d.full()
}

// DecodeHeatmap samples points from chunks. With UseIndexTable the
// pre-marker index list of every chunk is walked round-robin across
// chunks, each index naming a slice start; otherwise every slice of every
// chunk is read in order.
func DecodeHeatmap(chunks []*Chunk, opts HeatmapOptions) HeatmapResult {
	if opts.Max <= 0 {
		opts.Max = 32000
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = 1_000_000
	}
	if opts.Rand == nil {
		opts.Rand = NewRand(uint64(time.Now().UnixNano()))
	}
	d := &heatmapDecoder{opts: opts, cache: MetaCache{}, out: []HeatmapPoint{}}

	if len(chunks) == 0 {
		return HeatmapResult{Points: d.out}
	}
	if !opts.UseIndexTable {
		d.sequential(chunks)
		return HeatmapResult{Points: d.out}
	}
	truncated := d.indexed(chunks)
	return HeatmapResult{Points: d.out, Truncated: truncated}
}

func (d *heatmapDecoder) sequential(chunks []*Chunk) {
	for _, c := range chunks {
		for i := c.Slices[0] + recordWords; i < c.words(); i += recordWords {
			if c.isMarker(i) {
				continue
			}
			if !d.record(c, i) {
				return
			}
		}
	}
}

// indexTable returns the words before the first marker, shuffled unless
// line order is requested.
func (d *heatmapDecoder) indexTable(c *Chunk) []int {
	var list []int
	for i := 0; i < c.Slices[0]; i += recordWords {
		list = append(list, int(c.sword(i)))
	}
	if !d.opts.Lines {
		for i := len(list) - 1; i > 0; i-- {
			j := int(d.opts.Rand.Float64() * float64(i+1))
			list[i], list[j] = list[j], list[i]
		}
	}
	return list
}

func (d *heatmapDecoder) indexed(chunks []*Chunk) (truncated bool) {
	tables := make([][]int, len(chunks))
	for k, c := range chunks {
		tables[k] = d.indexTable(c)
	}
	offsets := make([]int, len(chunks))
	done := make([]bool, len(chunks))
	remaining := len(chunks)

	for iter := 0; !d.full() && remaining > 0; iter++ {
		if iter >= d.opts.MaxIter {
			// only truncated if an index entry was left unread
			for k := range tables {
				if offsets[k] < len(tables[k]) {
					return true
				}
			}
			return false
		}
		for k := 0; k < len(chunks) && !d.full(); k++ {
			if done[k] {
				continue
			}
			if offsets[k] >= len(tables[k]) {
				done[k] = true
				remaining--
				continue
			}
			index := tables[k][offsets[k]]
			offsets[k]++

			c := chunks[k]
			i := recordWords * index
			if index < 0 || i >= c.words() {
				continue
			}
			if c.isMarker(i) {
				i += recordWords
			}
			if !d.readSlice(c, i) {
				return false
			}
		}
	}
	return false
}
