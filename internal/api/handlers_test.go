package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"track-finder/internal/catalog"
	"track-finder/internal/export"
	"track-finder/internal/finder"
	"track-finder/internal/models"
)

type regionStore struct{}

func (regionStore) ListStates() ([]models.State, error) { return nil, nil }

func (regionStore) ListCounties(string) ([]models.County, error) {
	return []models.County{
		{RelationID: 1411348, StateCode: "US-CO", Name: "Boulder County"},
		{RelationID: 1411350, StateCode: "US-CO", Name: "Larimer County"},
	}, nil
}

type fakeSearcher struct {
	err  error
	last finder.Request
}

var boulder = models.Boundary{
	Region:     models.Region{State: "Colorado", County: "Boulder County"},
	StateCode:  "US-CO",
	RelationID: 1411348,
}

func (f *fakeSearcher) Search(_ context.Context, req finder.Request) (*finder.Result, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	ways := []models.WayRecord{
		{ID: 1, Coords: []models.Coordinate{{Lat: 40, Lon: -105.3}, {Lat: 40.02, Lon: -105.3}}, Tags: map[string]string{"highway": "track", "tracktype": "grade3", "name": "Gold Hill Rd"}},
		{ID: 2, Coords: []models.Coordinate{{Lat: 40.1, Lon: -105.3}, {Lat: 40.12, Lon: -105.3}}, Tags: map[string]string{"highway": "unclassified", "surface": "gravel"}},
	}
	doc, err := export.Build(boulder.Title(), ways)
	if err != nil {
		return nil, err
	}
	return &finder.Result{
		Boundary: boulder,
		Fetched:  3,
		Ways:     ways,
		Document: doc,
		Filename: "boulder_county_roads.kml",
		Bounds:   [4]float64{-105.3, 40, -105.3, 40.12},
	}, nil
}

func newTestServer(t *testing.T, s *fakeSearcher) *httptest.Server {
	t.Helper()
	c, err := catalog.Load(catalog.DefaultSeed(), regionStore{})
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(s, c, 1.0))
	t.Cleanup(srv.Close)
	return srv
}

func postSearch(t *testing.T, srv *httptest.Server, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/search", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestListStates(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{})

	resp, err := http.Get(srv.URL + "/api/states")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	var out struct {
		States []models.State `json:"states"`
		Count  int            `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 51, out.Count)
	assert.Equal(t, "Alabama", out.States[0].Name)
}

func TestListCounties(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{})

	resp, err := http.Get(srv.URL + "/api/states/CO/counties")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Counties []models.County `json:"counties"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Counties, 2)
	assert.Equal(t, "Boulder County", out.Counties[0].Name)

	resp, err = http.Get(srv.URL + "/api/states/US-WY/counties")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"counties":[]`)

	resp, err = http.Get(srv.URL + "/api/states/ontario/counties")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearch_Success(t *testing.T) {
	s := &fakeSearcher{}
	srv := newTestServer(t, s)

	resp, out := postSearch(t, srv, `{"state": "Colorado", "county": " Boulder County ", "min_length_miles": 0.5}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, models.Region{State: "Colorado", County: "Boulder County"}, s.last.Region)
	require.NotNil(t, s.last.MinLengthMiles)
	assert.InDelta(t, 0.5, *s.last.MinLengthMiles, 1e-9)

	assert.EqualValues(t, 2, out["count"])
	assert.EqualValues(t, 3, out["fetched"])
	assert.Equal(t, "boulder_county_roads.kml", out["filename"])
	assert.Contains(t, out["kml"], "<Placemark>")
	roads := out["roads"].([]interface{})
	require.Len(t, roads, 2)
	assert.Equal(t, "Gold Hill Rd", roads[0].(map[string]interface{})["name"])
}

func TestSearch_Empty(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{err: models.ErrEmptyResultSet})

	resp, out := postSearch(t, srv, `{"state": "Colorado", "county": "Boulder"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, out["count"])
	assert.Equal(t, "No unpaved roads found", out["message"])
	assert.Nil(t, out["kml"])
}

func TestSearch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid region", &models.InvalidRegionError{Region: models.Region{State: "Colorado", County: "Atlantis"}, Reason: "unknown county"}, http.StatusBadRequest},
		{"upstream", &models.UpstreamError{Service: "overpass", Err: errors.New("504")}, http.StatusServiceUnavailable},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeSearcher{err: tt.err})
			resp, out := postSearch(t, srv, `{"state": "Colorado", "county": "Atlantis"}`)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestSearch_UpstreamIsRetryable(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{err: &models.UpstreamError{Service: "overpass", Err: errors.New("timeout")}})

	resp, out := postSearch(t, srv, `{"state": "Colorado", "county": "Boulder"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
	assert.Contains(t, out["error"], "try again")
}

func TestSearch_BadBody(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{})

	resp, _ := postSearch(t, srv, `{"state":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = postSearch(t, srv, `{"state": "CO", "county": "Boulder", "min_length_miles": -1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExport(t *testing.T) {
	s := &fakeSearcher{}
	srv := newTestServer(t, s)

	resp, err := http.Get(srv.URL + "/api/export.kml?state=Colorado&county=Boulder+County&min_length=2")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, export.ContentType, resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="boulder_county_roads.kml"`, resp.Header.Get("Content-Disposition"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(body), "<Placemark>"))
	require.NotNil(t, s.last.MinLengthMiles)
	assert.InDelta(t, 2.0, *s.last.MinLengthMiles, 1e-9)
}

func TestExport_Errors(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{err: models.ErrEmptyResultSet})

	resp, err := http.Get(srv.URL + "/api/export.kml?state=CO&county=Boulder")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "No unpaved roads found")

	resp, err = http.Get(srv.URL + "/api/export.kml?state=CO&county=Boulder&min_length=abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{})

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `<option value="US-CO">Colorado</option>`)
	assert.Contains(t, string(body), "Fetch Unpaved Roads")
	assert.Contains(t, string(body), "do not trespass")

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 2, health["counties"])
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/search", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
