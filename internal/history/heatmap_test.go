package history

import (
	"math"
	"testing"
)

type constRand float64

func (c constRand) Float64() float64 { return float64(c) }

func indexedChunk(t *testing.T) *Chunk {
	return mustParse(t,
		3, 0, 0, 0,
		4, 0, 0, 0,
		Magic, 0, 0, 0,
		0x00000001, 1000000, 2000000, altSpeed,
		Magic, 0, 0, 0,
		0x00000002, 3000000, 4000000, altSpeed,
	)
}

func lats(points []HeatmapPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = math.Round(p.Lat*1e5) / 1e5
	}
	return out
}

func TestDecodeHeatmapSequential(t *testing.T) {
	c := mustParse(t,
		0, 0, 0, 0,
		Magic, 0, 0, 0,
		0xabcdef, micro(37.5), micro(-122.5), altSpeed,
	)
	res := DecodeHeatmap([]*Chunk{c}, HeatmapOptions{Max: 10})
	if len(res.Points) != 1 {
		t.Fatalf("got %d points, want 1", len(res.Points))
	}
	p := res.Points[0]
	if math.Abs(p.Lat-37.5) > 1e-5 || math.Abs(p.Lon+122.5) > 1e-5 {
		t.Errorf("position = %v,%v", p.Lat, p.Lon)
	}
	if *p.Altitude != 10000 || *p.Speed != 250 {
		t.Errorf("alt/speed = %v/%v, want 10000/250", *p.Altitude, *p.Speed)
	}
	if p.Hex != "abcdef" || p.Source != "adsb" {
		t.Errorf("hex/source = %q/%q", p.Hex, p.Source)
	}
}

func TestDecodeHeatmapIndexOrder(t *testing.T) {
	tests := []struct {
		name string
		opts HeatmapOptions
		want []float64
	}{
		{"lines keep table order", HeatmapOptions{Max: 10, UseIndexTable: true, Lines: true}, []float64{1, 3}},
		{"shuffle with zero source", HeatmapOptions{Max: 10, UseIndexTable: true, Rand: constRand(0)}, []float64{3, 1}},
		{"size cap", HeatmapOptions{Max: 1, UseIndexTable: true, Lines: true}, []float64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := DecodeHeatmap([]*Chunk{indexedChunk(t)}, tt.opts)
			got := lats(res.Points)
			if len(got) != len(tt.want) {
				t.Fatalf("lats = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("lats = %v, want %v", got, tt.want)
					break
				}
			}
			if res.Truncated {
				t.Error("Truncated = true, want false")
			}
		})
	}
}

func TestDecodeHeatmapSeededShuffleIsDeterministic(t *testing.T) {
	words := []uint32{}
	for i := 0; i < 8; i++ {
		words = append(words, uint32(8+2*i), 0, 0, 0)
	}
	for i := 0; i < 8; i++ {
		words = append(words, Magic, 0, 0, 0, uint32(i+1), micro(float64(i)), 0, altSpeed)
	}
	c := mustParse(t, words...)

	run := func(seed uint64) []float64 {
		opts := DefaultHeatmapOptions()
		opts.Rand = NewRand(seed)
		return lats(DecodeHeatmap([]*Chunk{c}, opts).Points)
	}

	a, b := run(42), run(42)
	if len(a) != 8 {
		t.Fatalf("got %d points, want 8", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed gave %v and %v", a, b)
		}
	}
}

func TestDecodeHeatmapIterationCap(t *testing.T) {
	tests := []struct {
		name      string
		maxIter   int
		points    int
		truncated bool
	}{
		{"cap below table length", 1, 1, true},
		{"cap equals table length", 2, 2, false},
		{"cap above table length", 5, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := HeatmapOptions{Max: 10, UseIndexTable: true, Lines: true, MaxIter: tt.maxIter}
			res := DecodeHeatmap([]*Chunk{indexedChunk(t)}, opts)
			if res.Truncated != tt.truncated {
				t.Errorf("Truncated = %v, want %v", res.Truncated, tt.truncated)
			}
			if len(res.Points) != tt.points {
				t.Errorf("got %d points, want %d", len(res.Points), tt.points)
			}
		})
	}
}

func TestDecodeHeatmapRoundRobin(t *testing.T) {
	a := mustParse(t,
		2, 0, 0, 0,
		4, 0, 0, 0,
		Magic, 0, 0, 0,
		1, micro(10), 0, altSpeed,
		Magic, 0, 0, 0,
		1, micro(11), 0, altSpeed,
	)
	b := mustParse(t,
		1, 0, 0, 0,
		Magic, 0, 0, 0,
		2, micro(20), 0, altSpeed,
	)
	opts := HeatmapOptions{Max: 10, UseIndexTable: true, Lines: true}
	got := lats(DecodeHeatmap([]*Chunk{a, b}, opts).Points)
	want := []float64{10, 20, 11}
	if len(got) != len(want) {
		t.Fatalf("lats = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("lats = %v, want %v", got, want)
		}
	}
}

func TestDecodeHeatmapFilters(t *testing.T) {
	low := uint32(2500<<16 | 40) // 1000 ft
	c := mustParse(t,
		Magic, 0, 0, 0,
		0x000001, micro(1), 0, altSpeed,
		5<<27|0x000002, micro(2), 0, altSpeed,
		0x000003, micro(3), 0, low,
	)
	minAlt := 5000.0

	tests := []struct {
		name string
		opts HeatmapOptions
		want int
	}{
		{"filters off ignores bounds", HeatmapOptions{Sources: []string{"mlat"}, AltitudeMin: &minAlt}, 3},
		{"source filter", HeatmapOptions{Filters: true, Sources: []string{"mlat"}}, 1},
		{"altitude filter", HeatmapOptions{Filters: true, AltitudeMin: &minAlt}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := DecodeHeatmap([]*Chunk{c}, tt.opts)
			if len(res.Points) != tt.want {
				t.Errorf("got %d points, want %d", len(res.Points), tt.want)
			}
		})
	}
}

func TestDecodeHeatmapMetadata(t *testing.T) {
	words := []uint32{Magic, 0, 0, 0}
	words = append(words, 0x000001, micro(1), 0, altSpeed)
	words = append(words, metaWords(0x000001, 7700, "DAL42")...)
	words = append(words, 0x000001, micro(2), 0, altSpeed)
	c := mustParse(t, words...)

	res := DecodeHeatmap([]*Chunk{c}, HeatmapOptions{})
	if len(res.Points) != 2 {
		t.Fatalf("got %d points, want 2 (metadata record skipped)", len(res.Points))
	}
	if res.Points[0].Callsign != "" {
		t.Errorf("earlier point got callsign %q", res.Points[0].Callsign)
	}
	if res.Points[1].Callsign != "DAL42" || res.Points[1].Squawk != "7700" {
		t.Errorf("later point = %+v, want DAL42/7700", res.Points[1])
	}
}
