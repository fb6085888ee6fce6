package adsb

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yegors/co-radar/internal/websocket"
	"github.com/yegors/co-radar/pkg/logger"
)

// WebSocketServer defines the interface for broadcasting messages
type WebSocketServer interface {
	Broadcast(message *websocket.Message)
}

// TypeLoader loads the aircraft type table. *aircraftdb.TypeTable
// satisfies it.
type TypeLoader interface {
	Load(ctx context.Context) error
}

// ServiceConfig holds the polling options
type ServiceConfig struct {
	Interval         time.Duration // used until receiver.json provides one
	ReapAfter        time.Duration
	ReceiverRetry    time.Duration // how often to retry receiver.json while it is unknown
	PreferCompressed bool
	WebSocketUpdates bool // push per-aircraft changes, not just stats
}

// AircraftBulkResponse represents server response with bulk aircraft data
type AircraftBulkResponse struct {
	Aircraft []*Entity `json:"aircraft" msgpack:"aircraft"`
	Count    int       `json:"count" msgpack:"count"`
	Stats    Stats     `json:"stats" msgpack:"stats"`
}

// Service polls the receiver and keeps the registry current
type Service struct {
	client   *Client
	registry *Registry
	types    TypeLoader
	reporter Reporter
	wsServer WebSocketServer
	cfg      ServiceConfig
	logger   *logger.Logger

	mu                  sync.RWMutex
	interval            time.Duration
	lastFetchTime       time.Time
	lastFetchStatus     bool
	receiverInfo        *ReceiverInfo
	receiverMeta        ReceiverMeta
	lastReceiverAttempt time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewService creates a new ADS-B service
func NewService(
	client *Client,
	registry *Registry,
	types TypeLoader,
	reporter Reporter,
	wsServer WebSocketServer,
	cfg ServiceConfig,
	log *logger.Logger,
) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.ReapAfter <= 0 {
		cfg.ReapAfter = 120 * time.Second
	}
	if cfg.ReceiverRetry <= 0 {
		cfg.ReceiverRetry = time.Minute
	}
	return &Service{
		client:       client,
		registry:     registry,
		types:        types,
		reporter:     reporter,
		wsServer:     wsServer,
		cfg:          cfg,
		logger:       log.Named("adsb"),
		interval:     cfg.Interval,
		receiverMeta: DefaultReceiverMeta(),
		stopCh:       make(chan struct{}),
	}
}

// Start loads the type table in the background, reads receiver.json,
// performs the first fetch and starts polling
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting ADS-B service",
		logger.Duration("fetch_interval", s.Interval()),
		logger.Duration("reap_after", s.cfg.ReapAfter))

	if s.types != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.types.Load(ctx); err != nil {
				s.report(CategoryTypeCache, err)
				return
			}
			s.logger.Info("Aircraft type table loaded")
		}()
	}

	if s.cfg.PreferCompressed {
		if err := s.client.EnableCompression(); err != nil {
			s.logger.Warn("Compressed feed unavailable, using JSON", logger.Error(err))
		}
	}

	s.refreshReceiver(ctx)

	if err := s.fetchAndProcess(ctx); err != nil {
		s.logger.Error("Failed to fetch initial ADS-B data", logger.Error(err))
		s.setFetchStatus(false)
	} else {
		s.setFetchStatus(true)
	}

	s.wg.Add(1)
	go s.fetchLoop(ctx)

	return nil
}

// Stop stops the ADS-B service
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping ADS-B service")
		close(s.stopCh)
		s.wg.Wait()
		s.logger.Info("ADS-B service stopped")
	})
}

// fetchLoop periodically fetches and processes ADS-B data
func (s *Service) fetchLoop(ctx context.Context) {
	defer s.wg.Done()

	current := s.Interval()
	ticker := time.NewTicker(current)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.needsReceiver() {
				s.refreshReceiver(ctx)
			}
			if err := s.fetchAndProcess(ctx); err != nil {
				s.logger.Error("Failed to fetch ADS-B data", logger.Error(err))
				s.setFetchStatus(false)
			} else {
				s.setFetchStatus(true)
			}
			if next := s.Interval(); next != current {
				s.logger.Info("Fetch interval changed",
					logger.Duration("from", current),
					logger.Duration("to", next))
				current = next
				ticker.Reset(current)
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// fetchAndProcess runs one poll cycle: fetch, merge, settle lookups,
// reap and broadcast
func (s *Service) fetchAndProcess(ctx context.Context) error {
	snap, err := s.client.Fetch(ctx)
	if err != nil {
		if errors.Is(err, ErrFetchInProgress) {
			return nil
		}
		return err
	}

	res := s.registry.ApplyBatch(ctx, snap)
	enriched := s.registry.Settle()
	removed := s.registry.ReapExpired(s.cfg.ReapAfter)
	s.setLastFetchTime(time.Now())

	if len(removed) > 0 {
		s.logger.Debug("Removed stale aircraft", logger.Int("count", len(removed)))
	}
	s.broadcastChanges(res, enriched, removed)
	return nil
}

func (s *Service) broadcastChanges(res BatchResult, enriched, removed []string) {
	if s.wsServer == nil {
		return
	}

	if s.cfg.WebSocketUpdates {
		for _, hex := range res.Added {
			s.broadcastAircraft(websocket.MessageTypeAircraftAdded, "added", hex)
		}
		seen := make(map[string]bool, len(res.Changed))
		for _, hex := range res.Changed {
			seen[hex] = true
			s.broadcastAircraft(websocket.MessageTypeAircraftUpdate, "updated", hex)
		}
		for _, hex := range enriched {
			if !seen[hex] {
				s.broadcastAircraft(websocket.MessageTypeAircraftUpdate, "updated", hex)
			}
		}
		for _, hex := range removed {
			s.wsServer.Broadcast(&websocket.Message{
				Type: websocket.MessageTypeAircraftRemoved,
				Data: map[string]any{"type": "removed", "hex": hex},
			})
		}
	}

	s.wsServer.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeStats,
		Data: map[string]any{"stats": s.registry.Stats()},
	})
}

func (s *Service) broadcastAircraft(messageType, changeType, hex string) {
	e, ok := s.registry.Get(hex)
	if !ok {
		return
	}
	s.wsServer.Broadcast(&websocket.Message{
		Type: messageType,
		Data: map[string]any{
			"type":     changeType,
			"hex":      hex,
			"aircraft": e,
		},
	})
}

// refreshReceiver reads receiver.json and applies its interval, decoder
// capabilities and position
func (s *Service) refreshReceiver(ctx context.Context) {
	s.mu.Lock()
	s.lastReceiverAttempt = time.Now()
	s.mu.Unlock()

	info, err := s.client.FetchReceiver(ctx)
	if err != nil {
		s.logger.Warn("Failed to fetch receiver metadata", logger.Error(err))
		return
	}

	meta := DeriveReceiverMeta(info)
	interval := ResolveRefreshInterval(info, s.cfg.Interval)

	s.mu.Lock()
	s.receiverInfo = info
	s.receiverMeta = meta
	s.interval = interval
	s.mu.Unlock()

	if info.CompressionAdvertised() && !s.client.Compressed() {
		if err := s.client.EnableCompression(); err != nil {
			s.logger.Warn("Receiver advertises zstd but the decoder failed to start", logger.Error(err))
		}
	}

	if lat, lon, ok := info.Position(); ok {
		s.registry.SetReceiverPosition(lat, lon)
	}

	s.logger.Info("Receiver metadata loaded",
		logger.String("decoder", meta.Decoder),
		logger.String("version", meta.Version),
		logger.Duration("refresh", interval),
		logger.Bool("compressed", s.client.Compressed()))

	if s.wsServer != nil {
		s.wsServer.Broadcast(&websocket.Message{
			Type: websocket.MessageTypeReceiver,
			Data: map[string]any{"receiver": meta},
		})
	}
}

func (s *Service) needsReceiver() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.receiverInfo == nil && time.Since(s.lastReceiverAttempt) >= s.cfg.ReceiverRetry
}

// HandleBulkRequest returns the aircraft matching filter, optionally
// restricted to bounds
func (s *Service) HandleBulkRequest(filter Filter, bounds *Bounds) *AircraftBulkResponse {
	aircraft := s.registry.Filtered(filter)
	if bounds != nil {
		kept := aircraft[:0]
		for _, e := range aircraft {
			if bounds.Contains(e) {
				kept = append(kept, e)
			}
		}
		aircraft = kept
	}
	return &AircraftBulkResponse{
		Aircraft: aircraft,
		Count:    len(aircraft),
		Stats:    s.registry.Stats(),
	}
}

// Registry returns the aircraft registry
func (s *Service) Registry() *Registry {
	return s.registry
}

// Interval returns the current polling interval
func (s *Service) Interval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interval
}

// Receiver returns the decoder description and the raw receiver.json
// document, which is nil until it has been read
func (s *Service) Receiver() (ReceiverMeta, *ReceiverInfo) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.receiverMeta, s.receiverInfo
}

// Compressed reports whether the binary feed is in use
func (s *Service) Compressed() bool {
	return s.client.Compressed()
}

// GetStatus returns the service status
func (s *Service) GetStatus() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFetchTime, s.lastFetchStatus
}

func (s *Service) setLastFetchTime(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFetchTime = t
}

func (s *Service) setFetchStatus(status bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFetchStatus = status
}

func (s *Service) report(category string, err error) {
	if s.reporter != nil {
		s.reporter.Report(category, err)
	}
}
