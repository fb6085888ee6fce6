package history

import (
	"math"
	"time"
)

var replaySources = [...]string{
	"adsb", "adsb", "adsb", "tisb", "other", "mlat", "other", "modeS", "adsb", "adsb", "tisb", "tisb", "modeS",
}

func replaySource(code int) string {
	if code < 0 || code >= len(replaySources) {
		return "other"
	}
	return replaySources[code]
}

// ReplayRecord is one aircraft position in a replay frame
type ReplayRecord struct {
	Hex      string   `json:"hex" msgpack:"hex"`
	Lat      float64  `json:"lat" msgpack:"lat"`
	Lon      float64  `json:"lon" msgpack:"lon"`
	AltBaro  *float64 `json:"alt_baro,omitempty" msgpack:"alt_baro,omitempty"`
	GS       *float64 `json:"gs,omitempty" msgpack:"gs,omitempty"`
	Source   string   `json:"source" msgpack:"source"`
	Callsign string   `json:"flight,omitempty" msgpack:"flight,omitempty"`
	Squawk   string   `json:"squawk,omitempty" msgpack:"squawk,omitempty"`
}

// ReplayFrame is one decoded slice
type ReplayFrame struct {
	Now      float64        `json:"now" msgpack:"now"`
	Interval float64        `json:"ival" msgpack:"ival"`
	Records  []ReplayRecord `json:"aircraft" msgpack:"aircraft"`
}

// DecodeSlice decodes slice index. Metadata records update cache and
// apply to later position records only; pass the same cache for
// consecutive slices. A nil cache is allowed.
func (c *Chunk) DecodeSlice(index int, cache MetaCache) (*ReplayFrame, error) {
	if index < 0 || index >= len(c.Slices) {
		return nil, ErrSliceRange
	}
	if cache == nil {
		cache = MetaCache{}
	}

	start := c.Slices[index]
	frame := &ReplayFrame{
		Now:      c.sliceTime(start),
		Interval: c.sliceInterval(start),
		Records:  []ReplayRecord{},
	}

	for i := start + recordWords; i < c.words() && !c.isMarker(i); i += recordWords {
		hex := c.hex(i)
		if c.isMeta(i) {
			cache[hex] = c.meta(i)
			continue
		}
		rec := ReplayRecord{
			Hex:     hex,
			Lat:     float64(c.sword(i+1)) / 1e6,
			Lon:     float64(c.sword(i+2)) / 1e6,
			AltBaro: decodeAltitude(c.word(i + 3)),
			GS:      decodeSpeed(c.word(i + 3)),
			Source:  replaySource(c.sourceCode(i)),
		}
		if m, ok := cache[hex]; ok {
			rec.Callsign = m.Flight
			rec.Squawk = m.Squawk
		}
		frame.Records = append(frame.Records, rec)
	}
	return frame, nil
}

// AdvanceReplayTime returns the wall time of slice index within the
// half hour containing ts.
func AdvanceReplayTime(ts time.Time, interval float64, index int) time.Time {
	ts = ts.UTC()
	base := ts.Truncate(30 * time.Minute)
	offset := math.Floor(interval * float64(index))
	return base.Add(time.Duration(offset)*time.Second + time.Duration(ts.Nanosecond()))
}

// NextReplayTimestamp returns the start of the half hour after ts
func NextReplayTimestamp(ts time.Time) time.Time {
	return ts.UTC().Add(30 * time.Minute).Truncate(30 * time.Minute)
}

// ClampSliceIndex bounds index to [0, count)
func ClampSliceIndex(index, count int) int {
	if count <= 0 || index < 0 {
		return 0
	}
	if index >= count {
		return count - 1
	}
	return index
}
