package overpass

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"track-finder/internal/metrics"
	"track-finder/internal/models"
	"track-finder/internal/resilience"
)

const (
	// Public Overpass API interpreter endpoint
	DefaultBaseURL = "https://overpass-api.de/api/interpreter"

	// Overpass asks clients to identify themselves
	DefaultUserAgent = "TrackFinder/1.0 (unpaved road export)"

	serviceName = "overpass"
)

// Options configures a Client
type Options struct {
	BaseURL    string
	UserAgent  string
	Retry      resilience.RetryConfig
	RatePerSec float64
	HTTPClient *http.Client
}

// Client runs Overpass QL queries against the public API
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	retry      resilience.RetryConfig
	limiter    *rate.Limiter
}

// NewClient creates a new Overpass API client
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.HTTPClient == nil {
		// Attempts are bounded by the retry timeout through the request context.
		opts.HTTPClient = &http.Client{}
	}

	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}

	retry := opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(serviceName, "query")
	}

	return &Client{
		httpClient: opts.HTTPClient,
		baseURL:    opts.BaseURL,
		userAgent:  opts.UserAgent,
		retry:      retry,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// FetchWays executes a roads query and returns the way records it found.
// An empty result is not an error. Malformed elements are logged and skipped.
func (c *Client) FetchWays(ctx context.Context, q Query) ([]models.WayRecord, error) {
	resp, err := c.run(ctx, q.Text)
	if err != nil {
		return nil, err
	}

	ways, bad := parseWays(resp.Elements)
	logMalformed("ways", bad)
	metrics.MalformedRecords.Add(float64(len(bad)))

	zap.L().Info("overpass query complete",
		zap.Int64("area_id", q.AreaID),
		zap.Int("elements", len(resp.Elements)),
		zap.Int("ways", len(ways)),
		zap.Int("malformed", len(bad)),
	)

	return ways, nil
}

// FetchStates lists US state boundaries known to OpenStreetMap
func (c *Client) FetchStates(ctx context.Context) ([]models.State, error) {
	resp, err := c.run(ctx, StatesQuery(0))
	if err != nil {
		return nil, err
	}
	return parseStates(resp.Elements), nil
}

// FetchCounties lists county boundaries inside a state
func (c *Client) FetchCounties(ctx context.Context, stateCode string) ([]models.County, error) {
	q, err := CountiesQuery(stateCode, 0)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: counties query")
	}
	resp, err := c.run(ctx, q)
	if err != nil {
		return nil, err
	}
	return parseCounties(stateCode, resp.Elements), nil
}

// run executes a query with rate limiting and bounded retries
func (c *Client) run(ctx context.Context, query string) (*response, error) {
	start := time.Now()

	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*response, error) {
		return c.do(ctx, query)
	})
	metrics.ObserveUpstream(serviceName, start, err)

	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "overpass: request abandoned")
		}
		return nil, &models.UpstreamError{Service: serviceName, Err: err}
	}

	return resp, nil
}

// do performs a single attempt
func (c *Client) do(ctx context.Context, query string) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}

	form := url.Values{}
	form.Set("data", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "executing query")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := eris.Errorf("API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		// Truncated or non-JSON bodies come from overloaded servers.
		return nil, resilience.NewTransientError(eris.Wrap(err, "decoding response"), resp.StatusCode)
	}

	if out.isRuntimeError() {
		return nil, resilience.NewTransientError(eris.Errorf("query failed: %s", out.Remark), resp.StatusCode)
	}

	return &out, nil
}
