package overpass

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"track-finder/internal/models"
)

// response is the Overpass JSON envelope
type response struct {
	Remark   string            `json:"remark"`
	Elements []json.RawMessage `json:"elements"`
}

// element is a single Overpass JSON element of any type
type element struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Lat      *float64          `json:"lat"`
	Lon      *float64          `json:"lon"`
	Nodes    []int64           `json:"nodes"`
	Geometry []*latLon         `json:"geometry"`
	Tags     map[string]string `json:"tags"`
}

type latLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// isRuntimeError reports whether the remark signals a failed server-side query
func (r *response) isRuntimeError() bool {
	return strings.Contains(strings.ToLower(r.Remark), "runtime error")
}

// decodeElements decodes each raw element, skipping those that fail
func decodeElements(raw []json.RawMessage) ([]element, []error) {
	elements := make([]element, 0, len(raw))
	var bad []error

	for i, r := range raw {
		var el element
		if err := json.Unmarshal(r, &el); err != nil {
			bad = append(bad, &models.MalformedRecordError{
				Type:   "element",
				Reason: fmt.Sprintf("index %d: %v", i, err),
			})
			continue
		}
		elements = append(elements, el)
	}

	return elements, bad
}

// parseWays turns Overpass elements into way records. Node references are
// resolved by id since element order is not guaranteed. Malformed elements
// are returned separately and never abort the batch.
func parseWays(raw []json.RawMessage) ([]models.WayRecord, []error) {
	elements, bad := decodeElements(raw)

	nodes := make(map[int64]models.Coordinate)
	for _, el := range elements {
		if el.Type != "node" {
			continue
		}
		if el.Lat == nil || el.Lon == nil {
			bad = append(bad, &models.MalformedRecordError{Type: "node", ID: el.ID, Reason: "missing coordinates"})
			continue
		}
		nodes[el.ID] = models.Coordinate{Lat: *el.Lat, Lon: *el.Lon}
	}

	ways := make([]models.WayRecord, 0)
	for _, el := range elements {
		if el.Type != "way" {
			continue
		}

		w, err := buildWay(el, nodes)
		if err != nil {
			bad = append(bad, err)
			continue
		}
		ways = append(ways, w)
	}

	return ways, bad
}

func buildWay(el element, nodes map[int64]models.Coordinate) (models.WayRecord, error) {
	if el.ID <= 0 {
		return models.WayRecord{}, &models.MalformedRecordError{Type: "way", ID: el.ID, Reason: "invalid id"}
	}

	var coords []models.Coordinate
	if len(el.Geometry) > 0 {
		coords = make([]models.Coordinate, 0, len(el.Geometry))
		for _, g := range el.Geometry {
			if g == nil {
				return models.WayRecord{}, &models.MalformedRecordError{Type: "way", ID: el.ID, Reason: "geometry has missing points"}
			}
			coords = append(coords, models.Coordinate{Lat: g.Lat, Lon: g.Lon})
		}
	} else {
		coords = make([]models.Coordinate, 0, len(el.Nodes))
		for _, ref := range el.Nodes {
			c, ok := nodes[ref]
			if !ok {
				return models.WayRecord{}, &models.MalformedRecordError{Type: "way", ID: el.ID, Reason: fmt.Sprintf("node %d not in response", ref)}
			}
			coords = append(coords, c)
		}
	}

	if len(coords) < 2 {
		return models.WayRecord{}, &models.MalformedRecordError{Type: "way", ID: el.ID, Reason: "fewer than two points"}
	}

	tags := make(map[string]string, len(el.Tags))
	for k, v := range el.Tags {
		tags[k] = v
	}

	return models.WayRecord{ID: osm.WayID(el.ID), Coords: coords, Tags: tags}, nil
}

// parseStates extracts state relations from a discovery response
func parseStates(raw []json.RawMessage) []models.State {
	elements, bad := decodeElements(raw)
	logMalformed("states", bad)

	states := make([]models.State, 0, len(elements))
	for _, el := range elements {
		if el.Type != "relation" {
			continue
		}
		code, name := el.Tags["ISO3166-2"], el.Tags["name"]
		if code == "" || name == "" {
			continue
		}
		states = append(states, models.State{Code: code, Name: name, RelationID: osm.RelationID(el.ID)})
	}
	return states
}

// parseCounties extracts county relations from a discovery response
func parseCounties(stateCode string, raw []json.RawMessage) []models.County {
	elements, bad := decodeElements(raw)
	logMalformed("counties", bad)

	counties := make([]models.County, 0, len(elements))
	for _, el := range elements {
		if el.Type != "relation" || el.ID <= 0 {
			continue
		}
		name := el.Tags["name"]
		if name == "" {
			continue
		}
		counties = append(counties, models.County{
			RelationID: osm.RelationID(el.ID),
			StateCode:  stateCode,
			Name:       name,
		})
	}
	return counties
}

func logMalformed(operation string, bad []error) {
	for _, err := range bad {
		zap.L().Warn("skipping malformed overpass element",
			zap.String("operation", operation),
			zap.Error(err),
		)
	}
}
