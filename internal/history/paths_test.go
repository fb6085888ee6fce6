package history

import (
	"net/url"
	"testing"
	"time"
)

func TestChunkFor(t *testing.T) {
	ts := time.Date(2025, 1, 1, 12, 34, 0, 0, time.UTC)
	c := ChunkFor(ts, "globe_history/")
	if c.Path != "globe_history/2025/01/01/heatmap/25.bin.ttf" {
		t.Errorf("Path = %q", c.Path)
	}
	if c.Index != 25 || c.Key != "2025/01/01 chunk 25" || c.Date != "2025/01/01" {
		t.Errorf("chunk = %+v", c)
	}
	if got := ChunkFor(ts, "hist").Path; got != "hist/2025/01/01/heatmap/25.bin.ttf" {
		t.Errorf("base without slash gave %q", got)
	}
}

func TestRoundToHalfHour(t *testing.T) {
	got := RoundToHalfHour(time.Date(2025, 1, 1, 12, 34, 56, 0, time.UTC))
	if want := time.Date(2025, 1, 1, 12, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("RoundToHalfHour = %v, want %v", got, want)
	}
}

func TestChunkList(t *testing.T) {
	end := time.Date(2025, 1, 1, 12, 34, 0, 0, time.UTC)

	chunks := ChunkList(end, 1, "globe_history/")
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Index != 23 || chunks[1].Index != 24 {
		t.Errorf("indexes = %d,%d, want 23,24", chunks[0].Index, chunks[1].Index)
	}

	if n := len(ChunkList(end, 0, "globe_history/")); n != 48 {
		t.Errorf("default duration gave %d chunks, want 48", n)
	}

	spanning := ChunkList(time.Date(2025, 1, 2, 0, 10, 0, 0, time.UTC), 1, "")
	if spanning[0].Date != "2025/01/01" || spanning[1].Index != 47 || spanning[1].Date != "2025/01/01" {
		t.Errorf("midnight span = %+v", spanning)
	}
}

func TestDeriveSettings(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 34, 0, 0, time.UTC)

	if s := DeriveSettings(url.Values{}, now); s.Enabled {
		t.Errorf("no parameters gave enabled settings %+v", s)
	}

	s := DeriveSettings(url.Values{"heatmap": {"200000"}}, now)
	if !s.Enabled || s.Real || s.Max != 200000 || s.Duration != 24 || !s.End.Equal(now) || s.Radius != 2.5 {
		t.Errorf("heatmap defaults = %+v", s)
	}

	s = DeriveSettings(url.Values{"realHeat": {""}}, now)
	if !s.Real || s.Max != 50000 || s.Radius != 1.5 || s.Blur != 4 || s.Weight != 0.25 || !s.End.Equal(now) {
		t.Errorf("real heat defaults = %+v", s)
	}

	s = DeriveSettings(url.Values{"heatmap": {"100"}, "heatDuration": {"0.1"}}, now)
	if s.Duration != 0.5 || s.Max != 100 {
		t.Errorf("duration clamp = %+v", s)
	}

	s = DeriveSettings(url.Values{"heatmap": {"100"}, "heatEnd": {"2"}, "heatRadius": {"3.25"}}, now)
	if !s.End.Equal(now.Add(-2*time.Hour)) || s.Radius != 3.25 {
		t.Errorf("overrides = %+v", s)
	}

	s = DeriveSettings(url.Values{"heatmap": {""}, "heatLines": {"1"}, "heatFilters": {"true"}}, now)
	if s.Max != 32000 || !s.Lines || !s.Filters {
		t.Errorf("flags = %+v", s)
	}

	s = DeriveSettings(url.Values{"realHeat": {"false"}}, now)
	if s.Enabled {
		t.Errorf("realHeat=false enabled settings %+v", s)
	}
}
