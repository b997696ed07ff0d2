package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"track-finder/internal/config"
	"track-finder/internal/finder"
	"track-finder/internal/models"
)

func testConfig(t *testing.T, overpassURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{Path: filepath.Join(t.TempDir(), "regions.db")},
		Overpass: config.OverpassConfig{
			URL:              overpassURL,
			TimeoutMs:        2000,
			MaxRetries:       0,
			InitialBackoffMs: 1,
		},
		Filter: config.FilterConfig{MinLengthMiles: 0, ExcludeAccess: []string{"private"}},
	}
}

func TestNew_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"elements": [
			{"type": "way", "id": 11, "nodes": [1, 2], "tags": {"highway": "track", "name": "Switzerland Trail"}},
			{"type": "way", "id": 12, "nodes": [1, 2], "tags": {"highway": "track", "access": "private"}},
			{"type": "node", "id": 1, "lat": 40.0, "lon": -105.4},
			{"type": "node", "id": 2, "lat": 40.01, "lon": -105.41}
		]}`)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	first, err := New(cfg)
	require.NoError(t, err)
	assert.Len(t, first.Catalog.States(), 51)
	assert.Zero(t, first.Catalog.CountyCount())

	require.NoError(t, first.DB.UpsertState(models.State{Code: "US-CO", Name: "Colorado"}))
	require.NoError(t, first.DB.ReplaceCounties("US-CO", []models.County{{RelationID: 1411348, Name: "Boulder County"}}))
	first.Close()

	// the catalog is a startup snapshot, reopen to pick up the new county
	env, err := New(cfg)
	require.NoError(t, err)
	defer env.Close()

	res, err := env.Finder.Search(context.Background(), finder.Request{Region: models.Region{State: "CO", County: "boulder"}})
	require.NoError(t, err)
	require.Len(t, res.Ways, 1)
	assert.Equal(t, "Switzerland Trail", res.Ways[0].Name())
	assert.Equal(t, "boulder_county_roads.kml", res.Filename)
}

func TestNew_UnknownCountyWithoutLookup(t *testing.T) {
	env, err := New(testConfig(t, "http://127.0.0.1:1"))
	require.NoError(t, err)
	defer env.Close()

	_, err = env.Finder.Search(context.Background(), finder.Request{Region: models.Region{State: "Colorado", County: "Atlantis"}})
	assert.True(t, errors.Is(err, models.ErrInvalidRegion))
}
