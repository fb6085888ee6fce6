package history

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const halfHour = 30 * time.Minute

// ChunkInfo addresses one half-hour chunk
type ChunkInfo struct {
	Time  time.Time `json:"time"`
	Date  string    `json:"date"`
	Index int       `json:"index"`
	Key   string    `json:"key"`
	Path  string    `json:"path"`
}

// RoundToHalfHour truncates t to the start of its UTC half hour
func RoundToHalfHour(t time.Time) time.Time {
	return t.UTC().Truncate(halfHour)
}

// DateString formats t as YYYY/MM/DD in UTC
func DateString(t time.Time) string {
	return t.UTC().Format("2006/01/02")
}

// ChunkFor returns the chunk holding t. base is the history root,
// e.g. "globe_history/".
func ChunkFor(t time.Time, base string) ChunkInfo {
	t = t.UTC()
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	date := DateString(t)
	index := 2*t.Hour() + t.Minute()/30
	return ChunkInfo{
		Time:  RoundToHalfHour(t),
		Date:  date,
		Index: index,
		Key:   fmt.Sprintf("%s chunk %d", date, index),
		Path:  fmt.Sprintf("%s%s/heatmap/%02d.bin.ttf", base, date, index),
	}
}

// ChunkList returns the chunks covering durationHours before end, end
// rounded down to the half hour and excluded. A non-positive duration
// means 24 hours.
func ChunkList(end time.Time, durationHours float64, base string) []ChunkInfo {
	if durationHours <= 0 {
		durationHours = 24
	}
	last := RoundToHalfHour(end)
	span := time.Duration(durationHours * float64(time.Hour))
	start := last.Add(-span)
	n := int(math.Round(float64(span) / float64(halfHour)))

	chunks := make([]ChunkInfo, 0, n)
	for i := 0; i < n; i++ {
		chunks = append(chunks, ChunkFor(start.Add(time.Duration(i)*halfHour), base))
	}
	return chunks
}
