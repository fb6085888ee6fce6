// Package history decodes the half-hourly heatmap chunks written by
// readsb's globe history and serves them as heatmap samples or replay
// frames.
package history

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strconv"
	"strings"
)

// Magic delimits slices inside a chunk
const Magic uint32 = 0x0e7f7c9d

const (
	recordWords = 4
	recordSize  = 16

	// metaLatThreshold marks a metadata record: no valid latitude in
	// microdegrees reaches it.
	metaLatThreshold = 1 << 30
)

var (
	ErrInvalidChunk  = errors.New("invalid heatmap chunk")
	ErrChunkNotFound = errors.New("heatmap chunk not found")
	ErrSliceRange    = errors.New("slice index out of range")
)

// Chunk is a parsed view over one .bin.ttf buffer
type Chunk struct {
	data     []byte
	Slices   []int   // word offsets of every slice marker
	Interval float64 // seconds between slices, from the first marker
}

// ParseChunk validates a chunk buffer and indexes its slices. The buffer
// must be a whole number of records and contain at least one marker.
func ParseChunk(buf []byte) (*Chunk, error) {
	if len(buf) == 0 || len(buf)%recordSize != 0 {
		return nil, ErrInvalidChunk
	}
	c := &Chunk{data: buf}
	for i := 0; i < c.words(); i += recordWords {
		if c.word(i) == Magic {
			c.Slices = append(c.Slices, i)
		}
	}
	if len(c.Slices) == 0 {
		return nil, ErrInvalidChunk
	}
	c.Interval = float64(c.word(c.Slices[0]+3)&0xffff) / 1000
	return c, nil
}

// ParseChunks keeps the usable buffers, skipping nil and malformed ones
func ParseChunks(bufs [][]byte) []*Chunk {
	var chunks []*Chunk
	for _, buf := range bufs {
		if buf == nil {
			continue
		}
		c, err := ParseChunk(buf)
		if err != nil {
			continue
		}
		chunks = append(chunks, c)
	}
	return chunks
}

func (c *Chunk) words() int           { return len(c.data) / 4 }
func (c *Chunk) word(i int) uint32    { return binary.LittleEndian.Uint32(c.data[4*i:]) }
func (c *Chunk) sword(i int) int32    { return int32(c.word(i)) }
func (c *Chunk) isMarker(i int) bool  { return c.word(i) == Magic }
func (c *Chunk) isMeta(i int) bool    { return c.sword(i+1) >= metaLatThreshold }
func (c *Chunk) hex(i int) string     { return formatHex(c.word(i)) }
func (c *Chunk) sourceCode(i int) int { return int(c.word(i)>>27) & 0x1f }

// sliceTime decodes the timestamp of the slice whose marker is at word i
func (c *Chunk) sliceTime(i int) float64 {
	return float64(c.word(i+2))/1000 + float64(c.word(i+1))*4294967.296
}

func (c *Chunk) sliceInterval(i int) float64 {
	return float64(c.word(i+3)&0xffff) / 1000
}

// meta reads the squawk and callsign of the metadata record at word i
func (c *Chunk) meta(i int) Meta {
	m := Meta{Squawk: padLeft(strconv.Itoa(int(c.word(i+1)&0xffff)), 4)}
	raw := c.data[4*(i+2) : 4*(i+2)+8]
	if raw[0] != 0 {
		if n := bytes.IndexByte(raw, 0); n >= 0 {
			raw = raw[:n]
		}
		m.Flight = strings.TrimSpace(string(raw))
	}
	return m
}

// Meta is the callsign and squawk carried by a metadata record
type Meta struct {
	Flight string
	Squawk string
}

// MetaCache holds metadata by hex across slices. Callers decoding
// consecutive slices pass the same cache to keep callsigns attached.
type MetaCache map[string]Meta

// decodeAltitude: -123 is ground, -124 unknown, otherwise 25 ft units
func decodeAltitude(raw uint32) *float64 {
	alt := int16(raw & 0xffff)
	switch alt {
	case -123:
		v := 0.0
		return &v
	case -124:
		return nil
	}
	v := float64(alt) * 25
	return &v
}

// decodeSpeed: -1 is unknown, otherwise 0.1 kt units
func decodeSpeed(raw uint32) *float64 {
	gs := int32(raw) >> 16
	if gs == -1 {
		return nil
	}
	v := float64(gs) / 10
	return &v
}

func formatHex(word uint32) string {
	hex := padLeft(strconv.FormatUint(uint64(word&0xffffff), 16), 6)
	if word&0x1000000 != 0 {
		return "~" + hex
	}
	return hex
}

func padLeft(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}
