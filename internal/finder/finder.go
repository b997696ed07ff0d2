// Package finder runs the unpaved road search pipeline: resolve the region,
// build and execute the Overpass query, filter the ways and render KML.
package finder

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"track-finder/internal/cache"
	"track-finder/internal/export"
	"track-finder/internal/filter"
	"track-finder/internal/geo"
	"track-finder/internal/metrics"
	"track-finder/internal/models"
	"track-finder/internal/overpass"
)

// Resolver maps a selection to its boundary
type Resolver interface {
	Resolve(ctx context.Context, region models.Region) (models.Boundary, error)
}

// Executor runs a roads query
type Executor interface {
	FetchWays(ctx context.Context, q overpass.Query) ([]models.WayRecord, error)
}

// Cache stores executor output between requests
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Options configures a Finder
type Options struct {
	Query overpass.QueryOptions
	Rules filter.Rules
	Cache Cache
}

// Finder wires the pipeline stages together
type Finder struct {
	resolver Resolver
	executor Executor
	cache    Cache
	query    overpass.QueryOptions
	rules    filter.Rules
}

// Request is a single search
type Request struct {
	Region models.Region
	// MinLengthMiles overrides the configured minimum when set
	MinLengthMiles *float64
}

// Result is the outcome of a search that found roads
type Result struct {
	Boundary models.Boundary
	Query    overpass.Query
	Fetched  int
	Ways     []models.WayRecord
	Document *export.Document
	Filename string
	Bounds   [4]float64 // minLon, minLat, maxLon, maxLat
	Cached   bool
}

// New creates a Finder
func New(resolver Resolver, executor Executor, opts Options) *Finder {
	return &Finder{
		resolver: resolver,
		executor: executor,
		cache:    opts.Cache,
		query:    opts.Query,
		rules:    opts.Rules,
	}
}

// Rules returns the filter rules used when a request sets no override
func (f *Finder) Rules() filter.Rules {
	return f.rules
}

// Resolve maps a selection to its boundary without querying roads
func (f *Finder) Resolve(ctx context.Context, region models.Region) (models.Boundary, error) {
	return f.resolver.Resolve(ctx, region)
}

// Search runs the pipeline. When nothing survives the filter it returns
// models.ErrEmptyResultSet; other failures keep their error kind.
func (f *Finder) Search(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := f.search(ctx, req)

	outcome := "ok"
	switch {
	case err == nil:
		metrics.WaysExported.Observe(float64(len(res.Ways)))
	case errors.Is(err, models.ErrEmptyResultSet):
		outcome = "empty"
	case errors.Is(err, models.ErrInvalidRegion):
		outcome = "invalid_region"
	case errors.Is(err, models.ErrUpstreamUnavailable):
		outcome = "upstream_unavailable"
	default:
		outcome = "error"
	}
	metrics.Searches.WithLabelValues(outcome).Inc()

	zap.L().Info("search complete",
		zap.String("region", req.Region.String()),
		zap.String("outcome", outcome),
		zap.Duration("duration", time.Since(start)),
	)

	return res, err
}

func (f *Finder) search(ctx context.Context, req Request) (*Result, error) {
	boundary, err := f.resolver.Resolve(ctx, req.Region)
	if err != nil {
		return nil, err
	}

	q, err := overpass.BuildRoadsQuery(boundary, f.query)
	if err != nil {
		return nil, err
	}

	fetched, cached, err := f.fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	rules := f.rules
	if req.MinLengthMiles != nil {
		rules.MinLengthMiles = *req.MinLengthMiles
	}
	ways := filter.Apply(rules, fetched)

	doc, err := export.Build(boundary.Title(), ways)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Boundary: boundary,
		Query:    q,
		Fetched:  len(fetched),
		Ways:     ways,
		Document: doc,
		Filename: export.Filename(boundary.Region),
		Cached:   cached,
	}
	res.Bounds = bounds(ways)
	return res, nil
}

// fetch runs the query, consulting the cache first. Cache failures are
// logged and never fail the search.
func (f *Finder) fetch(ctx context.Context, q overpass.Query) ([]models.WayRecord, bool, error) {
	if f.cache == nil {
		ways, err := f.executor.FetchWays(ctx, q)
		return ways, false, err
	}

	key := cache.Key(q.AreaID, q.Text)
	data, ok, err := f.cache.Get(ctx, key)
	switch {
	case err != nil:
		zap.L().Warn("cache get failed", zap.String("key", key), zap.Error(err))
	case ok:
		var ways []models.WayRecord
		if err := json.Unmarshal(data, &ways); err == nil {
			metrics.CacheHits.Inc()
			return ways, true, nil
		}
		zap.L().Warn("discarding undecodable cache entry", zap.String("key", key))
		if err := f.cache.Delete(ctx, key); err != nil {
			zap.L().Warn("cache delete failed", zap.String("key", key), zap.Error(err))
		}
	}
	metrics.CacheMisses.Inc()

	ways, err := f.executor.FetchWays(ctx, q)
	if err != nil {
		return nil, false, err
	}

	if err := f.store(ctx, key, ways); err != nil {
		zap.L().Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}

	return ways, false, nil
}

func (f *Finder) store(ctx context.Context, key string, ways []models.WayRecord) error {
	data, err := json.Marshal(ways)
	if err != nil {
		return eris.Wrap(err, "encoding ways")
	}
	return f.cache.Set(ctx, key, data)
}

func bounds(ways []models.WayRecord) [4]float64 {
	var all []models.Coordinate
	for _, w := range ways {
		all = append(all, w.Coords...)
	}
	minLon, minLat, maxLon, maxLat, ok := geo.Bounds(all)
	if !ok {
		return [4]float64{}
	}
	return [4]float64{minLon, minLat, maxLon, maxLat}
}
