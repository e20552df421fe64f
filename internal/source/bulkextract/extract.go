// Package bulkextract talks to the extraction pipeline that
// materializes address/building snapshots for a polygon, and
// downloads the (possibly gzip-compressed) GeoJSON payloads it
// produces.
package bulkextract

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/FlyrPro/Flyr-Backend/internal/source"
)

// Client calls the bulk extraction endpoint (a Lambda behind an HTTP
// URL in production).
type Client struct {
	endpoint   string
	httpClient *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			// Extracts materialize whole snapshots; give them room.
			Timeout: 60 * time.Second,
		},
	}
}

type extractRequest struct {
	CampaignID   string            `json:"campaign_id"`
	Boundary     *geojson.Geometry `json:"boundary"`
	MaxAddresses int               `json:"max_addresses,omitempty"`
	MaxBuildings int               `json:"max_buildings,omitempty"`
}

// Extract asks the pipeline to materialize a snapshot for polygon and
// returns the URLs of the produced feature collections.
func (c *Client) Extract(ctx context.Context, campaignID uuid.UUID, polygon orb.Ring, limits source.ExtractLimits) (source.ExtractResult, error) {
	start := time.Now()
	source.LogRequest("bulkextract", "extract", map[string]interface{}{"campaign": campaignID})

	body, err := json.Marshal(extractRequest{
		CampaignID:   campaignID.String(),
		Boundary:     geojson.NewGeometry(orb.Polygon{polygon}),
		MaxAddresses: limits.MaxAddresses,
		MaxBuildings: limits.MaxBuildings,
	})
	if err != nil {
		return source.ExtractResult{}, fmt.Errorf("encoding extract request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return source.ExtractResult{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return source.ExtractResult{}, fmt.Errorf("%w: extract request: %v", source.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return source.ExtractResult{}, fmt.Errorf("%w: extract returned HTTP %d", source.ErrUnavailable, resp.StatusCode)
	}

	var result source.ExtractResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return source.ExtractResult{}, fmt.Errorf("decoding extract response: %w", err)
	}

	source.LogResponse("bulkextract", time.Since(start), 1)
	return result, nil
}

// FetchFeatureCollection downloads and parses a snapshot payload.
// Payloads are detected as gzip by their magic bytes, so both raw and
// compressed snapshots work regardless of headers.
func (c *Client) FetchFeatureCollection(ctx context.Context, url string) (*geojson.FeatureCollection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot download: %v", source.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: snapshot download returned HTTP %d", source.ErrUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading snapshot: %v", source.ErrUnavailable, err)
	}

	if len(raw) >= 2 && raw[0] == 0x1f && raw[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("opening gzip snapshot: %w", err)
		}
		defer zr.Close()
		if raw, err = io.ReadAll(zr); err != nil {
			return nil, fmt.Errorf("decompressing snapshot: %w", err)
		}
	}

	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot feature collection: %w", err)
	}
	return fc, nil
}

// AddressCandidates converts an addresses snapshot into the common
// candidate shape, tagged with the bulk origin. Features without a
// point geometry are dropped.
func AddressCandidates(fc *geojson.FeatureCollection) []source.Candidate {
	out := make([]source.Candidate, 0, len(fc.Features))
	for _, f := range fc.Features {
		point, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		c := source.Candidate{
			Point:       point,
			Formatted:   propString(f, "formatted"),
			HouseNumber: propString(f, "number"),
			Street:      propString(f, "street"),
			Locality:    propString(f, "city"),
			Region:      propString(f, "region"),
			PostalCode:  propString(f, "postcode"),
			Country:     propString(f, "country"),
			Origin:      source.OriginBulk,
		}
		out = append(out, c.WithHouseKey())
	}
	return out
}

func propString(f *geojson.Feature, key string) string {
	if v, ok := f.Properties[key].(string); ok {
		return v
	}
	return ""
}
