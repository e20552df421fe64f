package source

import (
	"os"
	"strings"
)

// GeocoderType identifies which fallback geocoder to use.
type GeocoderType string

const (
	GeocoderMapbox GeocoderType = "mapbox"
)

// Config holds configuration for the external address sources.
type Config struct {
	// Geocoder type; only "mapbox" is currently registered.
	Geocoder GeocoderType

	// Mapbox-specific config
	MapboxToken    string
	MapboxEndpoint string

	// Bulk extraction pipeline endpoint.
	ExtractEndpoint string
}

// DefaultMapboxEndpoint is the Mapbox Geocoding v5 base URL.
const DefaultMapboxEndpoint = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// LoadFromEnv loads source configuration from environment variables.
//
// Environment variables:
//   - GEOCODER_PROVIDER: fallback geocoder type (default: "mapbox")
//   - MAPBOX_TOKEN: API token for Mapbox (required when using mapbox)
//   - MAPBOX_ENDPOINT: override for the Mapbox geocoding base URL
//   - EXTRACT_ENDPOINT: bulk extraction pipeline URL
func LoadFromEnv() Config {
	geocoderStr := strings.ToLower(strings.TrimSpace(os.Getenv("GEOCODER_PROVIDER")))

	var geocoder GeocoderType
	switch geocoderStr {
	default:
		geocoder = GeocoderMapbox
	}

	endpoint := strings.TrimSpace(os.Getenv("MAPBOX_ENDPOINT"))
	if endpoint == "" {
		endpoint = DefaultMapboxEndpoint
	}

	return Config{
		Geocoder:        geocoder,
		MapboxToken:     os.Getenv("MAPBOX_TOKEN"),
		MapboxEndpoint:  endpoint,
		ExtractEndpoint: os.Getenv("EXTRACT_ENDPOINT"),
	}
}

// Validate checks that the configuration is valid for the selected
// geocoder.
func (c Config) Validate() error {
	switch c.Geocoder {
	case GeocoderMapbox:
		if c.MapboxToken == "" {
			return ErrMissingMapboxToken
		}
	}
	return nil
}
