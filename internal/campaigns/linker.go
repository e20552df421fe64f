package campaigns

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/FlyrPro/Flyr-Backend/internal/geometry"
	"github.com/FlyrPro/Flyr-Backend/internal/streets"
)

// Tier distances in meters and the street-similarity floor for the
// verified-proximity tier.
const (
	DefaultCentroidRadiusM = 5.0
	DefaultStreetRadiusM   = 15.0
	DefaultFallbackRadiusM = 30.0
	DefaultStreetThreshold = 0.85
)

// LinkerConfig tunes the tier radii. Zero values use defaults.
type LinkerConfig struct {
	CentroidRadiusM float64
	StreetRadiusM   float64
	FallbackRadiusM float64
	StreetThreshold float64
}

func (c LinkerConfig) withDefaults() LinkerConfig {
	if c.CentroidRadiusM <= 0 {
		c.CentroidRadiusM = DefaultCentroidRadiusM
	}
	if c.StreetRadiusM <= 0 {
		c.StreetRadiusM = DefaultStreetRadiusM
	}
	if c.FallbackRadiusM <= 0 {
		c.FallbackRadiusM = DefaultFallbackRadiusM
	}
	if c.StreetThreshold <= 0 {
		c.StreetThreshold = DefaultStreetThreshold
	}
	return c
}

// LinkSummary reports one linking run.
type LinkSummary struct {
	Linked  int `json:"linked"`
	Orphans int `json:"orphans"`
	Skipped int `json:"skipped_buildings"`
}

// Linker assigns each campaign address to at most one building via a
// confidence-tiered spatial match. Orphans are left unlinked; an
// existing link for an address that later orphans is kept, since stale
// geometry beats no geometry for the canvasser.
type Linker struct {
	store Store
	cfg   LinkerConfig
}

func NewLinker(store Store, cfg LinkerConfig) *Linker {
	return &Linker{store: store, cfg: cfg.withDefaults()}
}

// Link classifies every address in the campaign against features and
// upserts the resulting links in batches. Re-running with the same
// inputs writes the same rows.
func (l *Linker) Link(ctx context.Context, campaignID uuid.UUID, features []BuildingFeature, releaseTag string) (LinkSummary, error) {
	addresses, err := l.store.ListAddresses(ctx, campaignID)
	if err != nil {
		return LinkSummary{}, err
	}
	if len(addresses) == 0 {
		return LinkSummary{}, nil
	}

	var links []BuildingAddressLink
	orphans := 0
	for _, addr := range addresses {
		link, ok := l.classify(addr, features)
		if !ok {
			orphans++
			continue
		}
		link.ReleaseTag = releaseTag
		links = append(links, link)
	}

	committed, err := l.store.UpsertLinks(ctx, links)
	if err != nil {
		return LinkSummary{Linked: committed, Orphans: orphans}, err
	}

	log.Printf("[linker] campaign %s: %d linked, %d orphans across %d buildings",
		campaignID, committed, orphans, len(features))
	return LinkSummary{Linked: committed, Orphans: orphans}, nil
}

// classify walks the tiers in order: containment, then snapped
// centroid, then street-verified proximity, then bare proximity. The
// first tier that accepts wins; addresses beyond the fallback radius
// orphan.
func (l *Linker) classify(addr CanonicalAddress, features []BuildingFeature) (BuildingAddressLink, bool) {
	point := addr.Point()

	for i := range features {
		if geometry.PointInRing(point, features[i].Ring) {
			return newLink(addr, &features[i], MatchContainment, 1.0, nil, nil), true
		}
	}

	nearest, dist := nearestFeature(point, features)
	if nearest == nil {
		return BuildingAddressLink{}, false
	}

	if dist <= l.cfg.CentroidRadiusM {
		return newLink(addr, nearest, MatchPointOnSurface, 0.95, &dist, nil), true
	}

	if dist <= l.cfg.StreetRadiusM && addr.Street != "" && nearest.Street != "" {
		score := geometry.JaroWinkler(streets.Normalize(addr.Street), streets.Normalize(nearest.Street))
		if score >= l.cfg.StreetThreshold {
			confidence := 1 - dist/l.cfg.StreetRadiusM
			return newLink(addr, nearest, MatchProximityVerified, confidence, &dist, &score), true
		}
	}

	if dist <= l.cfg.FallbackRadiusM {
		confidence := 1 - dist/l.cfg.FallbackRadiusM
		return newLink(addr, nearest, MatchProximityFallback, confidence, &dist, nil), true
	}

	return BuildingAddressLink{}, false
}

func nearestFeature(p0 orb.Point, features []BuildingFeature) (*BuildingFeature, float64) {
	var nearest *BuildingFeature
	best := 0.0
	for i := range features {
		d := geometry.Haversine(p0, features[i].Centroid)
		if nearest == nil || d < best {
			nearest = &features[i]
			best = d
		}
	}
	return nearest, best
}

func newLink(addr CanonicalAddress, b *BuildingFeature, matchType string, confidence float64, distance, streetScore *float64) BuildingAddressLink {
	link := BuildingAddressLink{
		CampaignID:       addr.CampaignID,
		AddressID:        addr.ID,
		BuildingID:       b.ID,
		MatchType:        matchType,
		Confidence:       confidence,
		DistanceMeters:   distance,
		StreetMatchScore: streetScore,
		BuildingClass:    b.Class,
	}
	if b.AreaSqm > 0 {
		area := b.AreaSqm
		link.BuildingAreaSqm = &area
	}
	if b.HeightM > 0 {
		height := b.HeightM
		link.BuildingHeightM = &height
	}
	return link
}
