package catalog

import (
	"context"
	"errors"

	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"track-finder/internal/models"
)

// BoundaryLookup finds a county relation outside the catalog
type BoundaryLookup interface {
	CountyRelation(ctx context.Context, region models.Region) (osm.RelationID, error)
}

// Resolver resolves selections against the catalog, falling back to a
// remote boundary lookup for counties the catalog does not know.
type Resolver struct {
	catalog *Catalog
	lookup  BoundaryLookup
}

// NewResolver creates a resolver; lookup may be nil
func NewResolver(c *Catalog, lookup BoundaryLookup) *Resolver {
	return &Resolver{catalog: c, lookup: lookup}
}

// Catalog returns the underlying catalog
func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

// Resolve returns the boundary for a selection. Unknown states are never
// looked up remotely.
func (r *Resolver) Resolve(ctx context.Context, region models.Region) (models.Boundary, error) {
	b, err := r.catalog.Resolve(region)
	if err == nil || r.lookup == nil {
		return b, err
	}

	state, ok := r.catalog.State(region.State)
	if !ok || !errors.Is(err, models.ErrInvalidRegion) || region.County == "" {
		return b, err
	}

	query := models.Region{State: state.Name, County: region.County}
	id, lookupErr := r.lookup.CountyRelation(ctx, query)
	if lookupErr != nil {
		zap.L().Info("county lookup failed",
			zap.String("region", query.String()),
			zap.Error(lookupErr),
		)
		if errors.Is(lookupErr, models.ErrInvalidRegion) {
			return models.Boundary{}, err
		}
		return models.Boundary{}, lookupErr
	}

	return models.Boundary{
		Region:     query,
		StateCode:  state.Code,
		RelationID: id,
	}, nil
}
