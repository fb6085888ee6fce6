package history

import (
	"encoding/binary"
	"errors"
	"testing"
)

// altSpeed packs 10000 ft and 250 kt.
const altSpeed = uint32(2500<<16 | 400)

func chunkBytes(words ...uint32) []byte {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	return buf
}

func micro(deg float64) uint32 { return uint32(int32(deg * 1e6)) }

// metaWords builds a metadata record for hex with a squawk and callsign.
func metaWords(hex uint32, squawk uint32, flight string) []uint32 {
	cs := make([]byte, 8)
	copy(cs, flight)
	return []uint32{
		hex,
		1<<30 | squawk,
		binary.LittleEndian.Uint32(cs[0:4]),
		binary.LittleEndian.Uint32(cs[4:8]),
	}
}

func mustParse(t *testing.T, words ...uint32) *Chunk {
	t.Helper()
	c, err := ParseChunk(chunkBytes(words...))
	if err != nil {
		t.Fatalf("ParseChunk: %v", err)
	}
	return c
}

func TestParseChunk(t *testing.T) {
	c := mustParse(t,
		Magic, 0, 0, 1000,
		0x00000001, 1000000, 2000000, 0,
		Magic, 0, 0, 1000,
	)
	if len(c.Slices) != 2 || c.Slices[0] != 0 || c.Slices[1] != 8 {
		t.Errorf("Slices = %v, want [0 8]", c.Slices)
	}
	if c.Interval != 1 {
		t.Errorf("Interval = %v, want 1", c.Interval)
	}

	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"not record aligned", chunkBytes(Magic, 0, 0)},
		{"no marker", chunkBytes(1, 2, 3, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseChunk(tt.buf); !errors.Is(err, ErrInvalidChunk) {
				t.Errorf("ParseChunk error = %v, want ErrInvalidChunk", err)
			}
		})
	}

	chunks := ParseChunks([][]byte{nil, chunkBytes(1, 2, 3), chunkBytes(Magic, 0, 0, 0)})
	if len(chunks) != 1 {
		t.Errorf("ParseChunks kept %d buffers, want 1", len(chunks))
	}
}

func TestDecodeAltitudeAndSpeed(t *testing.T) {
	tests := []struct {
		name    string
		raw     uint32
		altNil  bool
		spdNil  bool
		wantAlt float64
		wantGS  float64
	}{
		{name: "normal", raw: altSpeed, wantAlt: 10000, wantGS: 250},
		{name: "ground", raw: uint32(100<<16) | uint32(uint16(0xff85)), wantAlt: 0, wantGS: 10},
		{name: "unknown", raw: uint32(0xffff0000) | uint32(uint16(0xff84)), altNil: true, spdNil: true},
		{name: "negative", raw: uint32(uint16(0xfffe)), wantAlt: -50, wantGS: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alt := decodeAltitude(tt.raw)
			gs := decodeSpeed(tt.raw)
			if (alt == nil) != tt.altNil || (alt != nil && *alt != tt.wantAlt) {
				t.Errorf("decodeAltitude(%#x) = %v, want %v (nil=%v)", tt.raw, alt, tt.wantAlt, tt.altNil)
			}
			if (gs == nil) != tt.spdNil || (gs != nil && *gs != tt.wantGS) {
				t.Errorf("decodeSpeed(%#x) = %v, want %v (nil=%v)", tt.raw, gs, tt.wantGS, tt.spdNil)
			}
		})
	}
}

func TestFormatHex(t *testing.T) {
	if got := formatHex(0xabcdef | 5<<27); got != "abcdef" {
		t.Errorf("formatHex = %q, want abcdef", got)
	}
	if got := formatHex(0x1000042); got != "~000042" {
		t.Errorf("formatHex = %q, want ~000042", got)
	}
}
