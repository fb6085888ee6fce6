package adsb

import (
	"sync"
	"time"

	"github.com/yegors/co-radar/pkg/logger"
)

// Error report categories
const (
	CategoryAircraftFetch = "aircraft_fetch_failed"
	CategoryZstdDecode    = "zstd_decode_failed"
	CategoryZstdInit      = "zstd_init_failed"
	CategoryReceiverFetch = "receiver_fetch_failed"
	CategoryTypeCache     = "type_cache_load"
)

// Reporter forwards recoverable failures to an external collector
type Reporter interface {
	Report(category string, err error, fields ...logger.Field)
}

// LogReporter reports through the logger
type LogReporter struct {
	logger *logger.Logger
}

func NewLogReporter(log *logger.Logger) *LogReporter {
	return &LogReporter{logger: log.Named("reporter")}
}

func (r *LogReporter) Report(category string, err error, fields ...logger.Field) {
	fields = append([]logger.Field{logger.String("category", category), logger.Error(err)}, fields...)
	r.logger.Error("Reported failure", fields...)
}

// ThrottledReporter forwards at most one report per category per interval
type ThrottledReporter struct {
	next     Reporter
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func NewThrottledReporter(next Reporter, interval time.Duration) *ThrottledReporter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ThrottledReporter{
		next:     next,
		interval: interval,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

func (t *ThrottledReporter) Report(category string, err error, fields ...logger.Field) {
	if !t.allow(category) {
		return
	}
	t.next.Report(category, err, fields...)
}

func (t *ThrottledReporter) allow(category string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if last, ok := t.last[category]; ok && now.Sub(last) < t.interval {
		return false
	}
	t.last[category] = now
	return true
}
