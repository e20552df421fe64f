package campaigns

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func campaignIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid campaign ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

type provisionRequest struct {
	OwnerID  uuid.UUID         `json:"owner_id"`
	Boundary *geojson.Geometry `json:"boundary"`
	Region   string            `json:"region"`
	Link     bool              `json:"link"`
}

// boundaryRing pulls the exterior ring out of a polygon boundary.
func boundaryRing(g *geojson.Geometry) (orb.Ring, bool) {
	if g == nil {
		return nil, false
	}
	poly, ok := g.Geometry().(orb.Polygon)
	if !ok || len(poly) == 0 || len(poly[0]) < 4 {
		return nil, false
	}
	return poly[0], true
}

// ProvisionCampaign materializes the campaign's address set and,
// when requested and a buildings snapshot exists, links it in the
// same call.
func ProvisionCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := campaignIDParam(w, r)
	if !ok {
		return
	}

	var req provisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	ring, ok := boundaryRing(req.Boundary)
	if !ok {
		http.Error(w, "Boundary must be a polygon with a closed exterior ring", http.StatusBadRequest)
		return
	}

	result, err := Prov.Provision(r.Context(), campaignID, req.OwnerID, ring, req.Region)
	if err != nil {
		log.Printf("[campaigns] provision %s failed: %v", campaignID, err)
		http.Error(w, "Provisioning failed", http.StatusBadGateway)
		return
	}

	resp := map[string]any{
		"campaign_id":   campaignID,
		"source":        result.Source,
		"gold_count":    result.GoldCount,
		"bulk_count":    result.BulkCount,
		"address_count": result.Committed,
	}

	if req.Link && result.Snapshot != nil {
		summary, err := linkFromSnapshot(r, campaignID, *result.Snapshot)
		if err != nil {
			log.Printf("[campaigns] linking after provision %s failed: %v", campaignID, err)
		} else {
			resp["linked"] = summary.Linked
			resp["orphans"] = summary.Orphans
		}
	}

	writeJSON(w, resp)
}

// LinkCampaign re-runs the spatial linker against the campaign's most
// recent buildings snapshot.
func LinkCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := campaignIDParam(w, r)
	if !ok {
		return
	}

	snap, err := CampaignStore.GetSnapshot(r.Context(), campaignID)
	if errors.Is(err, ErrSnapshotNotFound) {
		http.Error(w, "Campaign has no buildings snapshot; provision it first", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load snapshot", http.StatusInternalServerError)
		return
	}

	summary, err := linkFromSnapshot(r, campaignID, snap)
	if err != nil {
		log.Printf("[campaigns] link %s failed: %v", campaignID, err)
		http.Error(w, "Linking failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, summary)
}

func linkFromSnapshot(r *http.Request, campaignID uuid.UUID, snap CampaignSnapshot) (LinkSummary, error) {
	fc, err := Bulk.FetchFeatureCollection(r.Context(), snap.BuildingsKey)
	if err != nil {
		return LinkSummary{}, err
	}
	features, skipped := BuildingFeaturesFromCollection(fc)
	if skipped > 0 {
		log.Printf("[campaigns] campaign %s: skipped %d malformed building features", campaignID, skipped)
	}
	summary, err := Spatial.Link(r.Context(), campaignID, features, snap.ReleaseTag)
	summary.Skipped = skipped
	return summary, err
}

// GetCampaignBuildings streams the campaign's buildings snapshot.
func GetCampaignBuildings(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := campaignIDParam(w, r)
	if !ok {
		return
	}

	snap, err := CampaignStore.GetSnapshot(r.Context(), campaignID)
	if errors.Is(err, ErrSnapshotNotFound) {
		http.Error(w, "No buildings snapshot for campaign", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load snapshot", http.StatusInternalServerError)
		return
	}

	fc, err := Bulk.FetchFeatureCollection(r.Context(), snap.BuildingsKey)
	if err != nil {
		log.Printf("[campaigns] buildings fetch %s failed: %v", campaignID, err)
		http.Error(w, "Snapshot unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, fc)
}

// ListCampaignLinks returns the campaign's building links, optionally
// filtered by comma-separated match types.
func ListCampaignLinks(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := campaignIDParam(w, r)
	if !ok {
		return
	}

	var matchTypes []string
	if raw := r.URL.Query().Get("match_type"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				matchTypes = append(matchTypes, t)
			}
		}
	}

	links, err := CampaignStore.ListLinks(r.Context(), campaignID, matchTypes)
	if err != nil {
		http.Error(w, "Failed to list links", http.StatusInternalServerError)
		return
	}
	writeJSON(w, links)
}

// ListCampaignAddresses returns the campaign's canonical address set.
func ListCampaignAddresses(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := campaignIDParam(w, r)
	if !ok {
		return
	}

	addresses, err := CampaignStore.ListAddresses(r.Context(), campaignID)
	if err != nil {
		http.Error(w, "Failed to list addresses", http.StatusInternalServerError)
		return
	}
	writeJSON(w, addresses)
}
