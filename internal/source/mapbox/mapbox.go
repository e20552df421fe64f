// Package mapbox implements the fallback geocoder on the Mapbox
// Geocoding v5 API. It is the last-resort source: errors here are
// surfaced to callers because there is nothing further to cascade to.
package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/time/rate"

	"github.com/FlyrPro/Flyr-Backend/internal/source"
)

func init() {
	source.RegisterGeocoder(source.GeocoderMapbox, func(cfg source.Config) (source.FallbackGeocoder, error) {
		return NewClient(cfg.MapboxToken, cfg.MapboxEndpoint), nil
	})
}

// Client wraps the Mapbox Geocoding API.
type Client struct {
	token      string
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a Mapbox geocoding client. endpoint is the
// geocoding base URL (see source.DefaultMapboxEndpoint).
func NewClient(token, endpoint string) *Client {
	return &Client{
		token:    token,
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		// Stay well under the free-tier 600 requests/minute.
		limiter: rate.NewLimiter(rate.Limit(8), 16),
	}
}

func (c *Client) Name() string { return "mapbox" }

type geocodeResponse struct {
	Features []feature `json:"features"`
}

type feature struct {
	PlaceName string         `json:"place_name"`
	Center    []float64      `json:"center"`
	Address   string         `json:"address"`
	Text      string         `json:"text"`
	Context   []contextEntry `json:"context"`
}

type contextEntry struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	ShortCode string `json:"short_code"`
}

// Nearest reverse-geocodes up to limit addresses around center.
func (c *Client) Nearest(ctx context.Context, center orb.Point, limit int) ([]source.Candidate, error) {
	u := fmt.Sprintf("%s/%f,%f.json?types=address&limit=%d&access_token=%s",
		c.endpoint, center.Lon(), center.Lat(), limit, url.QueryEscape(c.token))
	return c.query(ctx, "nearest", u)
}

// SameStreet forward-geocodes the street (optionally "street,
// locality") biased toward seed.
func (c *Client) SameStreet(ctx context.Context, seed orb.Point, street, locality string, limit int) ([]source.Candidate, error) {
	q := street
	if locality != "" {
		q = street + ", " + locality
	}
	u := fmt.Sprintf("%s/%s.json?types=address&limit=%d&proximity=%f,%f&access_token=%s",
		c.endpoint, url.PathEscape(q), limit, seed.Lon(), seed.Lat(), url.QueryEscape(c.token))
	return c.query(ctx, "same-street", u)
}

// Reverse resolves the single address nearest to p.
func (c *Client) Reverse(ctx context.Context, p orb.Point) (source.Candidate, error) {
	candidates, err := c.Nearest(ctx, p, 1)
	if err != nil {
		return source.Candidate{}, err
	}
	if len(candidates) == 0 {
		return source.Candidate{}, fmt.Errorf("mapbox returned no address for %f,%f", p.Lon(), p.Lat())
	}
	return candidates[0], nil
}

func (c *Client) query(ctx context.Context, operation, u string) ([]source.Candidate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %v", source.ErrUnavailable, err)
	}

	start := time.Now()
	source.LogRequest(c.Name(), operation, nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s request: %v", source.ErrUnavailable, operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: mapbox returned HTTP %d", source.ErrUnavailable, resp.StatusCode)
	}

	var geoResp geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&geoResp); err != nil {
		return nil, fmt.Errorf("decoding mapbox response: %w", err)
	}

	candidates := make([]source.Candidate, 0, len(geoResp.Features))
	for _, f := range geoResp.Features {
		if len(f.Center) < 2 {
			continue
		}
		c := source.Candidate{
			Point:       orb.Point{f.Center[0], f.Center[1]},
			Formatted:   f.PlaceName,
			HouseNumber: f.Address,
			Street:      f.Text,
			Origin:      source.OriginFallback,
		}
		for _, entry := range f.Context {
			switch {
			case strings.HasPrefix(entry.ID, "place."):
				c.Locality = entry.Text
			case strings.HasPrefix(entry.ID, "region."):
				c.Region = entry.Text
			case strings.HasPrefix(entry.ID, "postcode."):
				c.PostalCode = entry.Text
			case strings.HasPrefix(entry.ID, "country."):
				c.Country = entry.Text
			}
		}
		candidates = append(candidates, c.WithHouseKey())
	}

	source.LogResponse(c.Name(), time.Since(start), len(candidates))
	return candidates, nil
}
