package campaigns

import (
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/FlyrPro/Flyr-Backend/internal/geometry"
	"github.com/FlyrPro/Flyr-Backend/internal/source"
)

// Provision lifecycle states for a campaign.
const (
	ProvisionPending      = "pending"
	ProvisionProvisioning = "provisioning"
	ProvisionReady        = "ready"
	ProvisionFailed       = "failed"
)

// Match types produced by the spatial linker, in tier order.
const (
	MatchContainment       = "containment_verified"
	MatchPointOnSurface    = "point_on_surface"
	MatchProximityVerified = "proximity_verified"
	MatchProximityFallback = "proximity_fallback"
	MatchManual            = "manual"
	MatchOrphan            = "orphan"
)

// Campaign carries the provisioning lifecycle for a territory. The
// boundary itself is owned by the surrounding platform; only the
// status column is written here.
type Campaign struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID         uuid.UUID `gorm:"type:uuid;index" json:"owner_id"`
	Name            string    `json:"name"`
	ProvisionStatus string    `gorm:"default:'pending';index" json:"provision_status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Campaign) TableName() string {
	return "geo.campaigns"
}

// CanonicalAddress is a persisted campaign address. Re-provisioning a
// campaign deletes and replaces the full set; there is no incremental
// update path.
type CanonicalAddress struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	CampaignID  uuid.UUID `gorm:"type:uuid;index;not null" json:"campaign_id"`
	HouseNumber string    `json:"house_number"`
	Street      string    `json:"street"`
	Locality    string    `json:"locality"`
	Region      string    `json:"region"`
	PostalCode  string    `json:"postal_code"`
	Country     string    `json:"country"`
	Formatted   string    `json:"formatted"`
	Lon         float64   `json:"lon"`
	Lat         float64   `json:"lat"`

	// gold | bulk | fallback
	Source string `gorm:"size:16;index" json:"source"`

	CreatedAt time.Time `json:"created_at"`
}

func (CanonicalAddress) TableName() string {
	return "geo.campaign_addresses"
}

// Point returns the address coordinate in lon/lat order.
func (a CanonicalAddress) Point() orb.Point {
	return orb.Point{a.Lon, a.Lat}
}

// BuildingAddressLink is the persisted output of the spatial linker.
// At most one link exists per (campaign_id, address_id); re-linking
// overwrites via upsert, never duplicates.
type BuildingAddressLink struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	CampaignID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_links_campaign_address" json:"campaign_id"`
	AddressID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_links_campaign_address" json:"address_id"`
	BuildingID string    `gorm:"not null;index" json:"building_id"`

	MatchType        string   `gorm:"size:32;not null" json:"match_type"`
	Confidence       float64  `json:"confidence"`
	DistanceMeters   *float64 `json:"distance_meters,omitempty"`
	StreetMatchScore *float64 `json:"street_match_score,omitempty"`

	// Building attributes denormalized at match time for fast reads.
	BuildingAreaSqm  *float64 `json:"building_area_sqm,omitempty"`
	BuildingClass    string   `json:"building_class,omitempty"`
	BuildingHeightM  *float64 `json:"building_height_m,omitempty"`

	// ReleaseTag identifies the building-data vintage used, so re-runs
	// with newer building data can be told apart from historical links.
	ReleaseTag string `gorm:"size:64" json:"release_tag"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BuildingAddressLink) TableName() string {
	return "geo.building_address_links"
}

// ProvisionLog records one provisioning run for diagnostics.
type ProvisionLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	CampaignID uuid.UUID `gorm:"type:uuid;index;not null" json:"campaign_id"`
	Source     string    `gorm:"size:16" json:"source"`
	GoldCount  int       `json:"gold_count"`
	BulkCount  int       `json:"bulk_count"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ProvisionLog) TableName() string {
	return "geo.provision_logs"
}

// CampaignSnapshot points at the feature-collection payloads the last
// bulk extract produced for a campaign.
type CampaignSnapshot struct {
	CampaignID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"campaign_id"`
	AddressesKey string    `json:"addresses_key"`
	BuildingsKey string    `json:"buildings_key"`
	ReleaseTag   string    `gorm:"size:64" json:"release_tag"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (CampaignSnapshot) TableName() string {
	return "geo.campaign_snapshots"
}

// BuildingFeature is a normalized building polygon. It is recomputed
// from the feature collection on every linking run and never persisted
// here; building storage belongs to the surrounding platform.
type BuildingFeature struct {
	ID       string
	Ring     orb.Ring
	Centroid orb.Point
	HeightM  float64
	AreaSqm  float64
	Class    string
	// Street carries the building's associated street name when the
	// extract provides one; used by the tier-3 street check.
	Street string
}

// BuildingFeaturesFromCollection normalizes a buildings snapshot into
// linker input. Malformed features (no polygon, short or non-finite
// rings) are skipped and counted, never aborting the run.
func BuildingFeaturesFromCollection(fc *geojson.FeatureCollection) (features []BuildingFeature, skipped int) {
	for _, f := range fc.Features {
		ring, ok := exteriorRing(f.Geometry)
		if !ok || !geometry.ValidRing(ring) {
			skipped++
			continue
		}

		b := BuildingFeature{
			ID:       featureID(f),
			Ring:     ring,
			Centroid: geometry.Centroid(ring),
			HeightM:  propFloat(f, "height"),
			AreaSqm:  propFloat(f, "area_sqm"),
			Class:    propStr(f, "class"),
			Street:   propStr(f, "street"),
		}
		features = append(features, b)
	}
	return features, skipped
}

func exteriorRing(g orb.Geometry) (orb.Ring, bool) {
	switch geom := g.(type) {
	case orb.Polygon:
		if len(geom) == 0 {
			return nil, false
		}
		return geom[0], true
	case orb.MultiPolygon:
		if len(geom) == 0 || len(geom[0]) == 0 {
			return nil, false
		}
		return geom[0][0], true
	default:
		return nil, false
	}
}

func featureID(f *geojson.Feature) string {
	// Overture extracts carry a stable gers_id; fall back to the
	// feature id.
	if id := propStr(f, "gers_id"); id != "" {
		return id
	}
	if s, ok := f.ID.(string); ok {
		return s
	}
	return ""
}

func propStr(f *geojson.Feature, key string) string {
	if v, ok := f.Properties[key].(string); ok {
		return v
	}
	return ""
}

func propFloat(f *geojson.Feature, key string) float64 {
	switch v := f.Properties[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// NewCanonicalAddress normalizes a lookup candidate into the persisted
// campaign shape.
func NewCanonicalAddress(campaignID uuid.UUID, c source.Candidate) CanonicalAddress {
	return CanonicalAddress{
		CampaignID:  campaignID,
		HouseNumber: c.HouseNumber,
		Street:      c.Street,
		Locality:    c.Locality,
		Region:      c.Region,
		PostalCode:  c.PostalCode,
		Country:     c.Country,
		Formatted:   c.Formatted,
		Lon:         c.Point.Lon(),
		Lat:         c.Point.Lat(),
		Source:      string(c.Origin),
	}
}
