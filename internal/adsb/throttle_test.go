package adsb

import (
	"errors"
	"testing"
	"time"
)

func TestThrottledReporter(t *testing.T) {
	rec := &recordingReporter{}
	tr := NewThrottledReporter(rec, time.Minute)
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	boom := errors.New("boom")
	tr.Report(CategoryAircraftFetch, boom)
	tr.Report(CategoryAircraftFetch, boom)
	tr.Report(CategoryReceiverFetch, boom)

	now = now.Add(59 * time.Second)
	tr.Report(CategoryAircraftFetch, boom)

	now = now.Add(time.Second)
	tr.Report(CategoryAircraftFetch, boom)

	want := []string{CategoryAircraftFetch, CategoryReceiverFetch, CategoryAircraftFetch}
	if len(rec.categories) != len(want) {
		t.Fatalf("reports = %v, want %v", rec.categories, want)
	}
	for i := range want {
		if rec.categories[i] != want[i] {
			t.Errorf("report %d = %q, want %q", i, rec.categories[i], want[i])
		}
	}
}
