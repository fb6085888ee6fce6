package adsb

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/yegors/co-radar/internal/aircraftdb"
	"github.com/yegors/co-radar/internal/physics"
	"github.com/yegors/co-radar/internal/readsb"
	"github.com/yegors/co-radar/pkg/logger"
)

// Enricher starts asynchronous aircraft database lookups.
// *aircraftdb.Scheduler satisfies it.
type Enricher interface {
	Lookup(ctx context.Context, hex string) *aircraftdb.Call
}

// BatchResult summarises one ApplyBatch call
type BatchResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Added   []string `json:"added,omitempty"`
	Changed []string `json:"changed,omitempty"`
}

// Stats describes the registry after the last batch
type Stats struct {
	Total        int       `json:"total"`
	WithPosition int       `json:"with_position"`
	Messages     int64     `json:"messages"`
	MessageRate  float64   `json:"message_rate"`
	LastUpdate   time.Time `json:"last_update"`
}

// RegistryConfig holds registry options
type RegistryConfig struct {
	TrackMaxPoints int
	Types          TypeLookup
	Enricher       Enricher
	Now            func() time.Time
}

// Registry owns every Entity keyed by hex address. Mutations come from
// the ingest loop only; queries may run concurrently and receive copies.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]*Entity
	order    []string
	pending  map[string]*aircraftdb.Call

	maxTrack int
	types    TypeLookup
	enricher Enricher
	now      func() time.Time
	logger   *logger.Logger

	receiver *Position
	stats    Stats
}

func NewRegistry(cfg RegistryConfig, log *logger.Logger) *Registry {
	if cfg.TrackMaxPoints <= 0 {
		cfg.TrackMaxPoints = 50
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		entities: make(map[string]*Entity),
		pending:  make(map[string]*aircraftdb.Call),
		maxTrack: cfg.TrackMaxPoints,
		types:    cfg.Types,
		enricher: cfg.Enricher,
		now:      cfg.Now,
		logger:   log.Named("registry"),
	}
}

// ApplyBatch merges a snapshot. ctx bounds the enrichment lookups it
// starts.
func (r *Registry) ApplyBatch(ctx context.Context, snap *readsb.Snapshot) BatchResult {
	var res BatchResult
	if snap == nil {
		return res
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range snap.Aircraft {
		ac := &snap.Aircraft[i]
		ac.Normalize()
		if ac.Hex == "" {
			continue
		}

		e, ok := r.entities[ac.Hex]
		if !ok {
			e = NewEntity(ac.Hex, now)
			r.entities[ac.Hex] = e
			r.order = append(r.order, ac.Hex)
			res.Created++
			res.Added = append(res.Added, ac.Hex)
		} else {
			res.Updated++
			res.Changed = append(res.Changed, ac.Hex)
		}

		e.Apply(ac, now, r.types)
		if ac.HasPosition() {
			e.UpdateTrack(r.maxTrack, now)
		}
		r.updateDistance(e)
		r.startLookup(ctx, e)
	}

	withPos := 0
	for _, e := range r.entities {
		if e.HasPosition() {
			withPos++
		}
	}
	r.stats = Stats{
		Total:        len(r.entities),
		WithPosition: withPos,
		Messages:     snap.Messages,
		MessageRate:  snap.MessageRate,
		LastUpdate:   now,
	}

	r.logger.Debug("Applied batch",
		logger.Int("created", res.Created),
		logger.Int("updated", res.Updated),
		logger.Int("total", len(r.entities)))
	return res
}

func (r *Registry) startLookup(ctx context.Context, e *Entity) {
	if r.enricher == nil || !e.NeedsLookup() {
		return
	}
	if _, inFlight := r.pending[e.Hex]; inFlight {
		return
	}
	r.pending[e.Hex] = r.enricher.Lookup(ctx, e.Hex)
}

func (r *Registry) updateDistance(e *Entity) {
	if r.receiver == nil || !e.HasPosition() {
		return
	}
	d := physics.DistanceNM(r.receiver.Lat, r.receiver.Lon, *e.Lat, *e.Lon)
	e.DistanceNM = &d
}

// Settle applies every finished enrichment lookup without blocking and
// returns the addresses whose lookup completed, hits and misses alike.
// Each address is returned once per lookup.
func (r *Registry) Settle() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changed []string
	for hex, call := range r.pending {
		select {
		case <-call.Done():
		default:
			continue
		}
		delete(r.pending, hex)

		e, ok := r.entities[hex]
		if !ok {
			continue
		}
		rec, err := call.Result()
		if err != nil {
			rec = nil
		}
		e.ApplyRecord(rec, r.types)
		changed = append(changed, hex)
	}
	slices.Sort(changed)
	return changed
}

// AwaitEnrichment blocks until the lookup for hex has finished and been
// applied, or ctx ends. It returns false if no lookup is in flight.
func (r *Registry) AwaitEnrichment(ctx context.Context, hex string) (bool, error) {
	r.mu.RLock()
	call, ok := r.pending[hex]
	r.mu.RUnlock()
	if !ok {
		return false, nil
	}

	select {
	case <-call.Done():
	case <-ctx.Done():
		return false, ctx.Err()
	}
	r.Settle()
	return true, nil
}

// Reap removes every entity not updated within maxAge and returns how
// many were removed
func (r *Registry) Reap(maxAge time.Duration) int {
	return len(r.ReapExpired(maxAge))
}

// ReapExpired is Reap returning the removed addresses
func (r *Registry) ReapExpired(maxAge time.Duration) []string {
	cutoff := r.now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for hex, e := range r.entities {
		if e.LastUpdate.Before(cutoff) {
			removed = append(removed, hex)
		}
	}
	if len(removed) == 0 {
		return nil
	}

	for _, hex := range removed {
		delete(r.entities, hex)
		delete(r.pending, hex)
	}
	r.order = slices.DeleteFunc(r.order, func(hex string) bool {
		_, ok := r.entities[hex]
		return !ok
	})
	r.stats.Total = len(r.entities)

	r.logger.Debug("Reaped stale aircraft", logger.Int("count", len(removed)))
	slices.Sort(removed)
	return removed
}

// Get returns a copy of the entity for hex
func (r *Registry) Get(hex string) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[hex]
	if !ok {
		return nil, false
	}
	return e.snapshot(), true
}

func (r *Registry) Has(hex string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entities[hex]
	return ok
}

// All returns copies of every entity in first-seen order
func (r *Registry) All() []*Entity {
	return r.collect(func(*Entity) bool { return true })
}

// InBounds returns positioned entities inside b
func (r *Registry) InBounds(b Bounds) []*Entity {
	return r.collect(b.Contains)
}

// Filtered returns entities matching f
func (r *Registry) Filtered(f Filter) []*Entity {
	return r.collect(f.Matches)
}

func (r *Registry) collect(keep func(*Entity) bool) []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entity, 0, len(r.order))
	for _, hex := range r.order {
		e := r.entities[hex]
		if keep(e) {
			out = append(out, e.snapshot())
		}
	}
	return out
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// Clear drops every entity and pending lookup
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities = make(map[string]*Entity)
	r.pending = make(map[string]*aircraftdb.Call)
	r.order = nil
	r.stats = Stats{}
}

// Track returns the history segments for hex as [lon, lat] pairs
func (r *Registry) Track(hex string) ([][][2]float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[hex]
	if !ok {
		return nil, false
	}
	return e.TrackSegments(), true
}

func (r *Registry) ClearTrack(hex string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entities[hex]
	if ok {
		e.ClearTrack()
	}
	return ok
}

// SetReceiverPosition stores the receiver location used for distances
func (r *Registry) SetReceiverPosition(lat, lon float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receiver = &Position{Lat: lat, Lon: lon, Time: r.now()}
	for _, e := range r.entities {
		r.updateDistance(e)
	}
}

// ReceiverPosition returns the stored receiver location
func (r *Registry) ReceiverPosition() (lat, lon float64, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.receiver == nil {
		return 0, 0, false
	}
	return r.receiver.Lat, r.receiver.Lon, true
}
