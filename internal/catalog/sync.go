package catalog

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"track-finder/internal/models"
)

// Discovery lists boundaries from the map data service
type Discovery interface {
	FetchStates(ctx context.Context) ([]models.State, error)
	FetchCounties(ctx context.Context, stateCode string) ([]models.County, error)
}

// SyncStore persists discovered regions
type SyncStore interface {
	UpsertState(s models.State) error
	ReplaceCounties(stateCode string, counties []models.County) error
}

// SyncReport summarises a region sync
type SyncReport struct {
	States   int
	Counties int
	Failed   map[string]error
}

// Sync refreshes the region store for the given states (all when empty).
// A failing state is reported and does not abort the others.
func (c *Catalog) Sync(ctx context.Context, src Discovery, store SyncStore, codes []string, concurrency int) (*SyncReport, error) {
	targets := c.states
	if len(codes) > 0 {
		targets = make([]models.State, 0, len(codes))
		for _, code := range codes {
			s, ok := c.State(code)
			if !ok {
				return nil, eris.Errorf("unknown state %q", code)
			}
			targets = append(targets, s)
		}
	}
	if concurrency < 1 {
		concurrency = 1
	}

	relations := make(map[string]models.State)
	discovered, err := src.FetchStates(ctx)
	if err != nil {
		// County discovery works by ISO code alone
		zap.L().Warn("state discovery failed, keeping known relation ids", zap.Error(err))
	}
	for _, s := range discovered {
		relations[s.Code] = s
	}

	report := &SyncReport{Failed: make(map[string]error)}
	var mu sync.Mutex
	var states, counties atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, state := range targets {
		g.Go(func() error {
			log := zap.L().With(zap.String("state", state.Code))

			if d, ok := relations[state.Code]; ok {
				state.RelationID = d.RelationID
			}
			if err := store.UpsertState(state); err != nil {
				return eris.Wrapf(err, "storing state %s", state.Code)
			}

			found, err := src.FetchCounties(gctx, state.Code)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Error("county discovery failed", zap.Error(err))
				mu.Lock()
				report.Failed[state.Code] = err
				mu.Unlock()
				return nil
			}

			if err := store.ReplaceCounties(state.Code, found); err != nil {
				return eris.Wrapf(err, "storing counties for %s", state.Code)
			}

			states.Add(1)
			counties.Add(int64(len(found)))
			log.Info("synced counties", zap.Int("counties", len(found)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "region sync")
	}

	report.States = int(states.Load())
	report.Counties = int(counties.Load())
	return report, nil
}
