// Package app wires configuration into the running pipeline shared by the
// server and tools binaries.
package app

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"track-finder/internal/cache"
	"track-finder/internal/catalog"
	"track-finder/internal/config"
	"track-finder/internal/db"
	"track-finder/internal/finder"
	"track-finder/internal/nominatim"
	"track-finder/internal/overpass"
)

// Env holds the initialized store, clients and pipeline.
// Callers should defer env.Close().
type Env struct {
	Config   *config.Config
	DB       *db.DB
	Catalog  *catalog.Catalog
	Overpass *overpass.Client
	Resolver *catalog.Resolver
	Finder   *finder.Finder

	cache *cache.Cache
}

// New opens the region store, loads the catalog and builds the pipeline
func New(cfg *config.Config) (*Env, error) {
	database, err := db.New(cfg.Store.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open region store")
	}

	cat, err := catalog.Load(catalog.DefaultSeed(), database)
	if err != nil {
		database.Close()
		return nil, eris.Wrap(err, "load region catalog")
	}

	env := &Env{
		Config:   cfg,
		DB:       database,
		Catalog:  cat,
		Overpass: overpass.NewClient(cfg.Overpass.Options()),
	}

	var lookup catalog.BoundaryLookup
	if cfg.Nominatim.Enabled {
		lookup = nominatim.NewClient(cfg.Nominatim.URL, cfg.Overpass.UserAgent, cfg.Overpass.Retry())
	}
	env.Resolver = catalog.NewResolver(cat, lookup)

	opts := finder.Options{
		Query: cfg.QueryOptions(),
		Rules: cfg.Filter.Rules(),
	}
	if cfg.Cache.Addr != "" {
		c, err := cache.New(cfg.Cache.Addr, cfg.Cache.CacheTTL())
		if err != nil {
			// Searches still work without the cache
			zap.L().Warn("result cache disabled", zap.String("addr", cfg.Cache.Addr), zap.Error(err))
		} else {
			env.cache = c
			opts.Cache = c
		}
	}
	env.Finder = finder.New(env.Resolver, env.Overpass, opts)

	zap.L().Info("region catalog loaded",
		zap.Int("states", len(cat.States())),
		zap.Int("counties", cat.CountyCount()),
		zap.Bool("nominatim", lookup != nil),
		zap.Bool("cache", env.cache != nil),
	)

	return env, nil
}

// Close releases resources held by the environment
func (e *Env) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
	if e.DB != nil {
		_ = e.DB.Close()
	}
}
