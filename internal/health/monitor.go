// Package health tracks whether the authoritative address source is
// currently responsive. The cached state is a best-effort hint used
// for logging and metrics; the resolver still attempts the gold
// source first regardless of cached health.
package health

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/paulmach/orb"
)

const (
	// DefaultTTL bounds how often the gold source is re-probed.
	DefaultTTL = 5 * time.Minute
	// DefaultProbeTimeout bounds a single probe round-trip.
	DefaultProbeTimeout = 2 * time.Second
)

// Prober is the minimal round-trip the monitor issues against the
// gold source. The gold address source satisfies it.
type Prober interface {
	Ping(ctx context.Context, p orb.Point) error
}

// Config tunes the monitor. Zero values fall back to defaults.
type Config struct {
	TTL          time.Duration
	ProbeTimeout time.Duration
	// StartUnhealthy initializes the monitor pessimistic instead of
	// optimistic. Deployment-dependent.
	StartUnhealthy bool
}

// Monitor is the one piece of shared mutable state in the engine.
// Reads of the cached value are cheap; probes are serialized by the
// mutex so concurrent lookups never race.
type Monitor struct {
	prober  Prober
	ttl     time.Duration
	timeout time.Duration

	mu          sync.Mutex
	healthy     bool
	lastProbeAt time.Time
}

func NewMonitor(p Prober, cfg Config) *Monitor {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	return &Monitor{
		prober:  p,
		ttl:     cfg.TTL,
		timeout: cfg.ProbeTimeout,
		healthy: !cfg.StartUnhealthy,
	}
}

// Healthy returns the cached health state without any I/O.
func (m *Monitor) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy
}

// LastProbeAt returns when the last probe was actually performed, or
// the zero time if none has been.
func (m *Monitor) LastProbeAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastProbeAt
}

// ShouldProbe reports whether a probe would actually run: true when no
// probe has happened yet or the TTL has elapsed.
func (m *Monitor) ShouldProbe() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shouldProbeLocked(time.Now())
}

func (m *Monitor) shouldProbeLocked(now time.Time) bool {
	return m.lastProbeAt.IsZero() || now.Sub(m.lastProbeAt) >= m.ttl
}

// Probe refreshes the cached health state with a bounded round-trip
// against the gold source. Within the TTL (and without ignoreTTL) it
// returns immediately using the cached state. lastProbeAt is updated
// whenever a probe is actually performed, success or not, so parallel
// lookups don't all re-probe a degraded source.
func (m *Monitor) Probe(ctx context.Context, coord orb.Point, ignoreTTL bool) {
	m.mu.Lock()
	if !ignoreTTL && !m.shouldProbeLocked(time.Now()) {
		m.mu.Unlock()
		return
	}
	m.lastProbeAt = time.Now()
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.prober.Ping(ctx, coord)

	m.mu.Lock()
	m.healthy = err == nil
	m.mu.Unlock()

	if err != nil {
		log.Printf("[health] gold source probe failed: %v", err)
	}
}
