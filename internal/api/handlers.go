package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"track-finder/internal/export"
	"track-finder/internal/finder"
	"track-finder/internal/geo"
	"track-finder/internal/models"
)

// Messages shown to users for expected failures
const (
	msgEmpty       = "No unpaved roads found"
	msgUnavailable = "The map data service is unavailable. Please try again in a minute."
)

// Searcher runs road searches
type Searcher interface {
	Search(ctx context.Context, req finder.Request) (*finder.Result, error)
}

// Regions is the read-only region catalog
type Regions interface {
	States() []models.State
	State(nameOrCode string) (models.State, bool)
	Counties(stateCode string) []models.County
	CountyCount() int
}

// Handlers contains HTTP handlers and their dependencies
type Handlers struct {
	finder  Searcher
	regions Regions
}

// NewHandlers creates a new Handlers instance
func NewHandlers(f Searcher, regions Regions) *Handlers {
	return &Handlers{finder: f, regions: regions}
}

// SearchRequest is the body of POST /api/search
type SearchRequest struct {
	State          string   `json:"state"`
	County         string   `json:"county"`
	MinLengthMiles *float64 `json:"min_length_miles,omitempty"`
}

// RoadSummary describes one exported road
type RoadSummary struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Surface     string  `json:"surface,omitempty"`
	TrackType   string  `json:"tracktype,omitempty"`
	LengthMiles float64 `json:"length_miles"`
}

// SearchResponse is returned by POST /api/search
type SearchResponse struct {
	Region     models.Region `json:"region"`
	StateCode  string        `json:"state_code,omitempty"`
	RelationID int64         `json:"relation_id,omitempty"`
	Fetched    int           `json:"fetched"`
	Count      int           `json:"count"`
	Message    string        `json:"message,omitempty"`
	Filename   string        `json:"filename,omitempty"`
	Bounds     []float64     `json:"bounds,omitempty"`
	Cached     bool          `json:"cached"`
	Roads      []RoadSummary `json:"roads"`
	KML        string        `json:"kml,omitempty"`
}

// ListStates handles GET /api/states
func (h *Handlers) ListStates(w http.ResponseWriter, r *http.Request) {
	states := h.regions.States()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"states": states,
		"count":  len(states),
	})
}

// ListCounties handles GET /api/states/{code}/counties
func (h *Handlers) ListCounties(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	state, ok := h.regions.State(code)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown state")
		return
	}

	counties := h.regions.Counties(state.Code)
	if counties == nil {
		counties = []models.County{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":    state,
		"counties": counties,
		"count":    len(counties),
	})
}

// Search handles POST /api/search
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.MinLengthMiles != nil && *body.MinLengthMiles < 0 {
		writeError(w, http.StatusBadRequest, "min_length_miles must not be negative")
		return
	}

	region := models.Region{State: strings.TrimSpace(body.State), County: strings.TrimSpace(body.County)}
	res, err := h.finder.Search(r.Context(), finder.Request{Region: region, MinLengthMiles: body.MinLengthMiles})
	if errors.Is(err, models.ErrEmptyResultSet) {
		writeJSON(w, http.StatusOK, SearchResponse{
			Region:  region,
			Message: msgEmpty,
			Roads:   []RoadSummary{},
		})
		return
	}
	if err != nil {
		h.writeSearchError(w, r, err)
		return
	}

	kml, err := res.Document.Bytes()
	if err != nil {
		h.writeSearchError(w, r, err)
		return
	}

	roads := make([]RoadSummary, 0, len(res.Ways))
	for _, way := range res.Ways {
		roads = append(roads, RoadSummary{
			ID:          int64(way.ID),
			Name:        way.Name(),
			Surface:     way.Tag("surface"),
			TrackType:   way.Tag("tracktype"),
			LengthMiles: geo.LengthMiles(way.Coords),
		})
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Region:     res.Boundary.Region,
		StateCode:  res.Boundary.StateCode,
		RelationID: int64(res.Boundary.RelationID),
		Fetched:    res.Fetched,
		Count:      res.Document.Placemarks,
		Filename:   res.Filename,
		Bounds:     res.Bounds[:],
		Cached:     res.Cached,
		Roads:      roads,
		KML:        string(kml),
	})
}

// Export handles GET /api/export.kml
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := finder.Request{Region: models.Region{
		State:  strings.TrimSpace(q.Get("state")),
		County: strings.TrimSpace(q.Get("county")),
	}}

	if v := q.Get("min_length"); v != "" {
		val, err := strconv.ParseFloat(v, 64)
		if err != nil || val < 0 {
			writeError(w, http.StatusBadRequest, "invalid min_length")
			return
		}
		req.MinLengthMiles = &val
	}

	res, err := h.finder.Search(r.Context(), req)
	if errors.Is(err, models.ErrEmptyResultSet) {
		writeError(w, http.StatusNotFound, msgEmpty)
		return
	}
	if err != nil {
		h.writeSearchError(w, r, err)
		return
	}

	kml, err := res.Document.Bytes()
	if err != nil {
		h.writeSearchError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+res.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(kml)))
	w.WriteHeader(http.StatusOK)
	w.Write(kml)
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"states":   len(h.regions.States()),
		"counties": h.regions.CountyCount(),
	})
}

func (h *Handlers) writeSearchError(w http.ResponseWriter, r *http.Request, err error) {
	log := zap.L().With(zap.String("request_id", GetRequestID(r.Context())))

	var invalid *models.InvalidRegionError
	switch {
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, invalid.Error())
	case errors.Is(err, models.ErrInvalidRegion):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrUpstreamUnavailable):
		log.Warn("search failed upstream", zap.Error(err))
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusServiceUnavailable, msgUnavailable)
	case r.Context().Err() != nil:
		log.Info("search abandoned by client", zap.Error(err))
	default:
		log.Error("search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
