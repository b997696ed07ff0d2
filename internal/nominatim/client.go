// Package nominatim looks up county boundary relations by name using the
// OpenStreetMap Nominatim search API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/osm"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"track-finder/internal/metrics"
	"track-finder/internal/models"
	"track-finder/internal/resilience"
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "TrackFinder/1.0 (unpaved road export)"

	serviceName = "nominatim"
)

// Client resolves boundaries using Nominatim
type Client struct {
	client    *http.Client
	userAgent string
	baseURL   string
	retry     resilience.RetryConfig
	limiter   *rate.Limiter
}

// Result is a single Nominatim search hit
type Result struct {
	OSMType     string  `json:"osm_type"`
	OSMID       int64   `json:"osm_id"`
	Class       string  `json:"class"`
	Type        string  `json:"type"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
}

// NewClient creates a Nominatim client. Nominatim's usage policy allows at
// most one request per second.
func NewClient(baseURL, userAgent string, retry resilience.RetryConfig) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(serviceName, "search")
	}

	return &Client{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		userAgent: userAgent,
		baseURL:   strings.TrimRight(baseURL, "/"),
		retry:     retry,
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// CountyRelation returns the OSM relation id of a county boundary.
// A search with no administrative relation among the hits is reported as
// an InvalidRegionError.
func (c *Client) CountyRelation(ctx context.Context, region models.Region) (osm.RelationID, error) {
	params := url.Values{}
	params.Set("county", region.County)
	params.Set("state", region.State)
	params.Set("country", "United States")
	params.Set("format", "jsonv2")
	params.Set("limit", "5")

	start := time.Now()
	results, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]Result, error) {
		return c.search(ctx, params)
	})
	metrics.ObserveUpstream(serviceName, start, err)
	if err != nil {
		if ctx.Err() != nil {
			return 0, eris.Wrap(ctx.Err(), "nominatim: request abandoned")
		}
		return 0, &models.UpstreamError{Service: serviceName, Err: err}
	}

	for _, r := range results {
		if r.OSMType == "relation" && r.Class == "boundary" && r.Type == "administrative" && r.OSMID > 0 {
			zap.L().Debug("nominatim resolved county",
				zap.String("region", region.String()),
				zap.Int64("relation_id", r.OSMID),
				zap.String("display_name", r.DisplayName),
			)
			return osm.RelationID(r.OSMID), nil
		}
	}

	return 0, &models.InvalidRegionError{Region: region, Reason: "no boundary relation found"}
}

func (c *Client) search(ctx context.Context, params url.Values) ([]Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}

	reqURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create request")
	}

	// Nominatim requires a valid User-Agent
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "failed to read response"), resp.StatusCode)
	}

	var results []Result
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, eris.Wrap(err, "failed to parse response")
	}

	return results, nil
}
