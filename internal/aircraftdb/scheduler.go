package aircraftdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/yegors/co-radar/pkg/logger"
)

// Local is a store consulted before the remote tree. Get returns
// ErrNotFound for unknown addresses.
type Local interface {
	Get(ctx context.Context, hex string) (*Record, error)
	Put(ctx context.Context, hex string, rec Record) error
}

// Call is an in-flight lookup
type Call struct {
	done chan struct{}
	rec  *Record
	err  error
}

// Done is closed when the lookup has finished
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Result returns the lookup outcome. It must only be called after Done
// is closed.
func (c *Call) Result() (*Record, error) {
	return c.rec, c.err
}

// Wait blocks until the lookup finishes or ctx ends
func (c *Call) Wait(ctx context.Context) (*Record, error) {
	select {
	case <-c.done:
		return c.rec, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SchedulerConfig sizes the node cache
type SchedulerConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

// Scheduler resolves addresses against the prefix tree. Node requests
// are coalesced per key and sent one at a time; fetched nodes are kept
// in an expiring LRU.
type Scheduler struct {
	source Source
	local  Local
	logger *logger.Logger

	flight singleflight.Group
	sem    *semaphore.Weighted
	nodes  *expirable.LRU[string, *Node]
}

func NewScheduler(source Source, local Local, cfg SchedulerConfig, log *logger.Logger) *Scheduler {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 4096
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &Scheduler{
		source: source,
		local:  local,
		logger: log.Named("aircraft-db"),
		sem:    semaphore.NewWeighted(1),
		nodes:  expirable.NewLRU[string, *Node](cfg.CacheSize, nil, cfg.CacheTTL),
	}
}

// Lookup starts resolving hex in the background
func (s *Scheduler) Lookup(ctx context.Context, hex string) *Call {
	c := &Call{done: make(chan struct{})}
	go func() {
		defer close(c.done)
		c.rec, c.err = s.Resolve(ctx, hex)
	}()
	return c
}

// Resolve looks hex up, local store first. Synthetic addresses
// (leading '~') are never looked up.
func (s *Scheduler) Resolve(ctx context.Context, hex string) (*Record, error) {
	hex = strings.ToUpper(strings.TrimSpace(hex))
	if hex == "" || strings.HasPrefix(hex, "~") {
		return nil, ErrNotFound
	}

	v, err, _ := s.flight.Do("hex:"+hex, func() (any, error) {
		if s.local != nil {
			rec, err := s.local.Get(ctx, hex)
			if err == nil && rec != nil {
				return rec, nil
			}
			if err != nil && !errors.Is(err, ErrNotFound) {
				s.logger.Warn("Local aircraft lookup failed",
					logger.String("hex", hex),
					logger.Error(err))
			}
		}

		rec, err := s.walk(ctx, hex)
		if err != nil {
			return nil, err
		}

		if s.local != nil {
			if err := s.local.Put(ctx, hex, *rec); err != nil {
				s.logger.Warn("Failed to store aircraft record",
					logger.String("hex", hex),
					logger.Error(err))
			}
		}
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Record), nil
}

func (s *Scheduler) walk(ctx context.Context, hex string) (*Record, error) {
	for level := 1; level <= len(hex); level++ {
		prefix, rest := hex[:level], hex[level:]

		node, err := s.node(ctx, prefix)
		if err != nil {
			return nil, err
		}
		if node == nil {
			return nil, ErrNotFound
		}
		if rec, ok := node.Records[rest]; ok {
			return &rec, nil
		}
		if rest == "" || !node.HasChild(prefix+rest[:1]) {
			return nil, ErrNotFound
		}
	}
	return nil, ErrNotFound
}

func (s *Scheduler) node(ctx context.Context, key string) (*Node, error) {
	if n, ok := s.nodes.Get(key); ok {
		return n, nil
	}

	v, err, _ := s.flight.Do("node:"+key, func() (any, error) {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer s.sem.Release(1)

		n, err := s.source.FetchNode(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch database node %s: %w", key, err)
		}
		s.nodes.Add(key, n)
		s.logger.Debug("Fetched database node",
			logger.String("key", key),
			logger.Bool("exists", n != nil))
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Node), nil
}
