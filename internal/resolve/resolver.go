// Package resolve cascades ad-hoc address lookups across the gold
// source and the fallback geocoder, deduplicating by houseKey until a
// target count is reached.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/paulmach/orb"

	"github.com/FlyrPro/Flyr-Backend/internal/health"
	"github.com/FlyrPro/Flyr-Backend/internal/source"
	"github.com/FlyrPro/Flyr-Backend/internal/streets"
)

// ErrNoResults means every source was exhausted without producing a
// single candidate.
var ErrNoResults = errors.New("no results from any address source")

// Provenance tags where an overall result set came from.
type Provenance string

const (
	ProvenanceAuthoritative Provenance = "authoritative"
	ProvenanceFallback      Provenance = "fallback"
	ProvenanceHybrid        Provenance = "hybrid"
)

// Result is an ordered, houseKey-deduplicated candidate set.
type Result struct {
	Candidates []source.Candidate `json:"candidates"`
	Provenance Provenance         `json:"provenance"`
}

const (
	// DefaultGoldTimeout keeps the authoritative attempt short; a
	// degraded gold source must not stall the cascade.
	DefaultGoldTimeout = 1200 * time.Millisecond
	// DefaultFallbackTimeout bounds the commercial geocoder call.
	DefaultFallbackTimeout = 5 * time.Second
)

// Config tunes the resolver. Zero values fall back to defaults.
type Config struct {
	GoldTimeout     time.Duration
	FallbackTimeout time.Duration
}

// Resolver owns no shared state; every call operates on its own
// working set. Dependencies are injected so tests can substitute
// fakes.
type Resolver struct {
	gold            source.AddressSource
	fallback        source.FallbackGeocoder
	monitor         *health.Monitor
	goldTimeout     time.Duration
	fallbackTimeout time.Duration
}

func NewResolver(gold source.AddressSource, fallback source.FallbackGeocoder, monitor *health.Monitor, cfg Config) *Resolver {
	if cfg.GoldTimeout <= 0 {
		cfg.GoldTimeout = DefaultGoldTimeout
	}
	if cfg.FallbackTimeout <= 0 {
		cfg.FallbackTimeout = DefaultFallbackTimeout
	}
	return &Resolver{
		gold:            gold,
		fallback:        fallback,
		monitor:         monitor,
		goldTimeout:     cfg.GoldTimeout,
		fallbackTimeout: cfg.FallbackTimeout,
	}
}

// ResolveNearest returns up to targetCount deduplicated candidates
// around center. The gold source is always attempted first; its
// failures are recovered by cascading to the fallback geocoder.
func (r *Resolver) ResolveNearest(ctx context.Context, center orb.Point, targetCount int) (Result, error) {
	if targetCount <= 0 {
		return Result{Candidates: []source.Candidate{}}, nil
	}

	return r.cascade(ctx, center, targetCount,
		func(ctx context.Context) ([]source.Candidate, error) {
			// Over-fetch to absorb duplicates.
			return r.gold.QueryNearest(ctx, center, targetCount*2)
		},
		func(ctx context.Context) ([]source.Candidate, error) {
			return r.fallback.Nearest(ctx, center, maxInt(targetCount, targetCount*2))
		},
	)
}

// ResolveSameStreet returns up to targetCount deduplicated candidates
// on a street near seed. When street is empty it is first discovered
// by reverse-geocoding the seed; street and locality are normalized
// before querying either source.
func (r *Resolver) ResolveSameStreet(ctx context.Context, seed orb.Point, street, locality string, targetCount int) (Result, error) {
	if targetCount <= 0 {
		return Result{Candidates: []source.Candidate{}}, nil
	}

	if street == "" {
		reverseCtx, cancel := context.WithTimeout(ctx, r.fallbackTimeout)
		seedAddr, err := r.fallback.Reverse(reverseCtx, seed)
		cancel()
		if err != nil {
			return Result{}, fmt.Errorf("resolving street for seed: %w", err)
		}
		street = seedAddr.Street
	}
	street = streets.Normalize(street)
	locality = streets.Normalize(locality)

	return r.cascade(ctx, seed, targetCount,
		func(ctx context.Context) ([]source.Candidate, error) {
			// Same-street sets overlap heavily across sources;
			// over-fetch more aggressively.
			return r.gold.QuerySameStreet(ctx, seed, street, locality, targetCount*3)
		},
		func(ctx context.Context) ([]source.Candidate, error) {
			return r.fallback.SameStreet(ctx, seed, street, locality, maxInt(targetCount, targetCount*2))
		},
	)
}

func (r *Resolver) cascade(
	ctx context.Context,
	coord orb.Point,
	targetCount int,
	queryGold func(context.Context) ([]source.Candidate, error),
	queryFallback func(context.Context) ([]source.Candidate, error),
) (Result, error) {
	// Refresh the cached health state (no I/O inside the TTL). The
	// gold source is attempted regardless; health is a logging hint.
	if r.monitor != nil {
		r.monitor.Probe(ctx, coord, false)
		if !r.monitor.Healthy() {
			log.Printf("[resolve] gold source marked unhealthy at %s; attempting anyway",
				r.monitor.LastProbeAt().Format(time.RFC3339))
		}
	}

	var accepted []source.Candidate
	seen := make(map[string]struct{})
	merge := func(candidates []source.Candidate) {
		for _, c := range candidates {
			if len(accepted) >= targetCount {
				return
			}
			key := c.HouseKey
			if key == "" {
				key = c.Formatted
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			accepted = append(accepted, c)
		}
	}

	goldCtx, cancel := context.WithTimeout(ctx, r.goldTimeout)
	goldCandidates, goldErr := queryGold(goldCtx)
	cancel()
	if goldErr != nil {
		// Recovered locally: the cascade falls through to the fallback.
		source.LogError(r.gold.Name(), "query", goldErr)
	} else {
		merge(goldCandidates)
	}
	goldAccepted := len(accepted)

	if goldErr != nil || len(accepted) < targetCount {
		fallbackCtx, cancel := context.WithTimeout(ctx, r.fallbackTimeout)
		fallbackCandidates, fallbackErr := queryFallback(fallbackCtx)
		cancel()
		if fallbackErr != nil {
			// No further source to try.
			return Result{}, fmt.Errorf("fallback geocoder: %w", fallbackErr)
		}
		merge(fallbackCandidates)
	}

	if len(accepted) == 0 {
		return Result{}, ErrNoResults
	}

	provenance := ProvenanceHybrid
	switch {
	case goldAccepted == len(accepted):
		provenance = ProvenanceAuthoritative
	case goldAccepted == 0:
		provenance = ProvenanceFallback
	}

	return Result{Candidates: accepted, Provenance: provenance}, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
