package source

import (
	"github.com/paulmach/orb"

	"github.com/FlyrPro/Flyr-Backend/internal/streets"
)

// Origin tags where an address row came from.
type Origin string

const (
	// OriginGold is the authoritative, pre-validated dataset.
	OriginGold Origin = "gold"
	// OriginBulk is the on-demand bulk-extract pipeline.
	OriginBulk Origin = "bulk"
	// OriginFallback is the commercial geocoder.
	OriginFallback Origin = "fallback"
)

// Candidate is a transient lookup result from any address source in a
// common shape. It is the working currency of the resolver and is
// never persisted directly.
type Candidate struct {
	Point       orb.Point `json:"point"`
	Formatted   string    `json:"formatted"`
	HouseNumber string    `json:"house_number"`
	Street      string    `json:"street"`
	Locality    string    `json:"locality"`
	Region      string    `json:"region"`
	PostalCode  string    `json:"postal_code"`
	Country     string    `json:"country"`

	// HouseKey is the normalized "NUMBER STREET" dedup identity.
	HouseKey string `json:"house_key"`

	Origin Origin `json:"origin"`
}

// WithHouseKey fills HouseKey from the candidate's number and street
// when the producing source didn't set it.
func (c Candidate) WithHouseKey() Candidate {
	if c.HouseKey == "" {
		c.HouseKey = streets.HouseKey(c.HouseNumber, c.Street)
	}
	return c
}

// ExtractLimits caps what a single bulk extract may materialize.
type ExtractLimits struct {
	MaxAddresses int `json:"max_addresses"`
	MaxBuildings int `json:"max_buildings"`
}

// ExtractResult points at the feature-collection payloads a bulk
// extract produced. The URLs may serve gzip-compressed GeoJSON.
type ExtractResult struct {
	AddressesURL string `json:"addresses_url"`
	BuildingsURL string `json:"buildings_url"`
	ReleaseTag   string `json:"release_tag"`
}
