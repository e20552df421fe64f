package campaigns

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/FlyrPro/Flyr-Backend/internal/source"
	"github.com/FlyrPro/Flyr-Backend/internal/source/bulkextract"
)

const (
	// DefaultGoldCoverageThreshold is the minimum authoritative row
	// count below which the bulk pipeline is brought in.
	DefaultGoldCoverageThreshold = 10
	// DefaultPolygonTimeout bounds the authoritative polygon scan.
	// Polygon queries walk an index, so this is much looser than the
	// per-request lookup budget.
	DefaultPolygonTimeout = 15 * time.Second
)

// BulkPipeline is the extraction side of provisioning: kick off an
// extract, then download the snapshots it produced.
type BulkPipeline interface {
	source.Extractor
	FetchFeatureCollection(ctx context.Context, url string) (*geojson.FeatureCollection, error)
}

// ProvisionConfig tunes a Provisioner. Zero values use defaults.
type ProvisionConfig struct {
	GoldCoverageThreshold int
	PolygonTimeout        time.Duration
	Limits                source.ExtractLimits
}

// ProvisionResult summarizes one provisioning run.
type ProvisionResult struct {
	Addresses []CanonicalAddress `json:"-"`
	Source    source.Origin      `json:"source"`
	GoldCount int                `json:"gold_count"`
	BulkCount int                `json:"bulk_count"`
	Committed int                `json:"committed"`
	Snapshot  *CampaignSnapshot  `json:"snapshot,omitempty"`
}

// Provisioner materializes a campaign's canonical address set from the
// gold source, falling back to the bulk extraction pipeline when gold
// coverage over the territory is thin.
type Provisioner struct {
	gold      source.AddressSource
	bulk      BulkPipeline
	store     Store
	threshold int
	timeout   time.Duration
	limits    source.ExtractLimits
}

func NewProvisioner(gold source.AddressSource, bulk BulkPipeline, store Store, cfg ProvisionConfig) *Provisioner {
	if cfg.GoldCoverageThreshold <= 0 {
		cfg.GoldCoverageThreshold = DefaultGoldCoverageThreshold
	}
	if cfg.PolygonTimeout <= 0 {
		cfg.PolygonTimeout = DefaultPolygonTimeout
	}
	return &Provisioner{
		gold:      gold,
		bulk:      bulk,
		store:     store,
		threshold: cfg.GoldCoverageThreshold,
		timeout:   cfg.PolygonTimeout,
		limits:    cfg.Limits,
	}
}

// Provision replaces the campaign's address set from the best
// available source and records the run. Authoritative failures are
// recovered through the bulk pipeline; a bulk failure when it was
// needed marks the campaign failed and is returned.
func (p *Provisioner) Provision(ctx context.Context, campaignID, ownerID uuid.UUID, boundary orb.Ring, region string) (ProvisionResult, error) {
	if err := p.store.EnsureCampaign(ctx, campaignID, ownerID); err != nil {
		return ProvisionResult{}, err
	}
	if err := p.store.SetProvisionStatus(ctx, campaignID, ProvisionProvisioning); err != nil {
		log.Printf("[provision] campaign %s: status update failed: %v", campaignID, err)
	}

	result, err := p.materialize(ctx, campaignID, boundary, region)
	if err != nil {
		p.finish(ctx, campaignID, ProvisionFailed, ProvisionLog{
			CampaignID: campaignID,
			Source:     string(result.Source),
			GoldCount:  result.GoldCount,
			BulkCount:  result.BulkCount,
			Error:      err.Error(),
		})
		return result, err
	}

	committed, err := p.store.ReplaceAddresses(ctx, campaignID, result.Addresses)
	result.Committed = committed
	if err != nil {
		p.finish(ctx, campaignID, ProvisionFailed, ProvisionLog{
			CampaignID: campaignID,
			Source:     string(result.Source),
			GoldCount:  result.GoldCount,
			BulkCount:  result.BulkCount,
			Error:      err.Error(),
		})
		return result, err
	}

	p.finish(ctx, campaignID, ProvisionReady, ProvisionLog{
		CampaignID: campaignID,
		Source:     string(result.Source),
		GoldCount:  result.GoldCount,
		BulkCount:  result.BulkCount,
	})
	log.Printf("[provision] campaign %s: %d addresses committed (source=%s gold=%d bulk=%d)",
		campaignID, committed, result.Source, result.GoldCount, result.BulkCount)
	return result, nil
}

// materialize gathers the candidate set without touching the address
// table.
func (p *Provisioner) materialize(ctx context.Context, campaignID uuid.UUID, boundary orb.Ring, region string) (ProvisionResult, error) {
	goldRows := p.queryGold(ctx, boundary, region)

	addresses := make([]CanonicalAddress, 0, len(goldRows))
	seen := make(map[string]struct{}, len(goldRows))
	for _, c := range goldRows {
		key := candidateKey(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		addresses = append(addresses, NewCanonicalAddress(campaignID, c))
	}

	result := ProvisionResult{
		Addresses: addresses,
		Source:    source.OriginGold,
		GoldCount: len(addresses),
	}
	if len(addresses) >= p.threshold {
		return result, nil
	}

	log.Printf("[provision] campaign %s: gold coverage %d below threshold %d, extracting",
		campaignID, len(addresses), p.threshold)

	extract, err := p.bulk.Extract(ctx, campaignID, boundary, p.limits)
	if err != nil {
		return result, fmt.Errorf("bulk extract: %w", err)
	}

	fc, err := p.bulk.FetchFeatureCollection(ctx, extract.AddressesURL)
	if err != nil {
		return result, fmt.Errorf("fetching addresses snapshot: %w", err)
	}

	// Gold rows stay; bulk only fills houses gold did not cover.
	for _, c := range bulkextract.AddressCandidates(fc) {
		key := candidateKey(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result.Addresses = append(result.Addresses, NewCanonicalAddress(campaignID, c))
		result.BulkCount++
	}
	result.Source = source.OriginBulk

	snap := CampaignSnapshot{
		CampaignID:   campaignID,
		AddressesKey: extract.AddressesURL,
		BuildingsKey: extract.BuildingsURL,
		ReleaseTag:   extract.ReleaseTag,
	}
	if err := p.store.SaveSnapshot(ctx, snap); err != nil {
		log.Printf("[provision] campaign %s: snapshot metadata not saved: %v", campaignID, err)
	} else {
		result.Snapshot = &snap
	}
	return result, nil
}

// queryGold runs the bounded polygon scan. An empty region-filtered
// result is retried once without the filter before giving up, and any
// error degrades to an empty set so the bulk path can take over.
func (p *Provisioner) queryGold(ctx context.Context, boundary orb.Ring, region string) []source.Candidate {
	goldCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rows, err := p.gold.QueryByPolygon(goldCtx, boundary, region)
	if err != nil {
		source.LogError(p.gold.Name(), "polygon", err)
		return nil
	}
	if len(rows) == 0 && region != "" {
		rows, err = p.gold.QueryByPolygon(goldCtx, boundary, "")
		if err != nil {
			source.LogError(p.gold.Name(), "polygon", err)
			return nil
		}
	}
	return rows
}

func (p *Provisioner) finish(ctx context.Context, campaignID uuid.UUID, status string, entry ProvisionLog) {
	if err := p.store.SetProvisionStatus(ctx, campaignID, status); err != nil {
		log.Printf("[provision] campaign %s: status update failed: %v", campaignID, err)
	}
	if err := p.store.RecordProvision(ctx, entry); err != nil {
		log.Printf("[provision] campaign %s: provision log not recorded: %v", campaignID, err)
	}
}

func candidateKey(c source.Candidate) string {
	if c.HouseKey != "" {
		return c.HouseKey
	}
	return c.Formatted
}
