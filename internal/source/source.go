package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// Common errors
var (
	// ErrUnavailable wraps network and timeout failures talking to a
	// source. The resolver recovers from it by cascading.
	ErrUnavailable = errors.New("address source unavailable")

	ErrMissingMapboxToken = errors.New("MAPBOX_TOKEN environment variable is required for the mapbox geocoder")
	ErrUnknownGeocoder    = errors.New("unknown geocoder type")
)

// AddressSource is the authoritative ("gold") address dataset. Rows
// carry house number, street, locality/region/postal code, and a
// point geometry.
type AddressSource interface {
	// Name returns the source name for logging purposes.
	Name() string

	// QueryNearest returns up to limit candidates ordered by distance
	// from center.
	QueryNearest(ctx context.Context, center orb.Point, limit int) ([]Candidate, error)

	// QuerySameStreet returns up to limit candidates on the given
	// street near seed, optionally restricted to a locality.
	QuerySameStreet(ctx context.Context, seed orb.Point, street, locality string, limit int) ([]Candidate, error)

	// QueryByPolygon returns every candidate whose point falls inside
	// polygon, optionally pre-filtered by region for index selectivity.
	QueryByPolygon(ctx context.Context, polygon orb.Ring, region string) ([]Candidate, error)

	// Ping is the cheap round-trip the health monitor issues.
	Ping(ctx context.Context, p orb.Point) error
}

// FallbackGeocoder is the commercial last-resort source. It has no
// polygon-query capability.
type FallbackGeocoder interface {
	Name() string
	Nearest(ctx context.Context, center orb.Point, limit int) ([]Candidate, error)
	SameStreet(ctx context.Context, seed orb.Point, street, locality string, limit int) ([]Candidate, error)
	// Reverse resolves the address nearest to a coordinate, used to
	// discover a street name for same-street resolution.
	Reverse(ctx context.Context, p orb.Point) (Candidate, error)
}

// Extractor is the bulk extraction pipeline that materializes
// address/building snapshots for a polygon.
type Extractor interface {
	Extract(ctx context.Context, campaignID uuid.UUID, polygon orb.Ring, limits ExtractLimits) (ExtractResult, error)
}

// geocoderRegistry holds registered fallback geocoder constructors so
// new geocoders can be added without modifying this file.
var geocoderRegistry = make(map[GeocoderType]func(Config) (FallbackGeocoder, error))

// RegisterGeocoder registers a constructor for a geocoder type. It
// should be called from init() in each geocoder package.
func RegisterGeocoder(t GeocoderType, constructor func(Config) (FallbackGeocoder, error)) {
	geocoderRegistry[t] = constructor
}

// NewGeocoder creates the configured fallback geocoder.
func NewGeocoder(cfg Config) (FallbackGeocoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	constructor, ok := geocoderRegistry[cfg.Geocoder]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGeocoder, cfg.Geocoder)
	}

	return constructor(cfg)
}
