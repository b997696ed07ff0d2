package models

import (
	"fmt"

	"github.com/paulmach/osm"
)

// Coordinate is a WGS84 point
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// WayRecord is a road or track returned by the map data service.
// Records are never modified once built.
type WayRecord struct {
	ID     osm.WayID         `json:"id"`
	Coords []Coordinate      `json:"coords"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// Tag returns the tag value or "" when the key is absent
func (w WayRecord) Tag(key string) string {
	if w.Tags == nil {
		return ""
	}
	return w.Tags[key]
}

// FeatureID returns the OSM feature id, e.g. "way/123"
func (w WayRecord) FeatureID() string {
	return w.ID.FeatureID().String()
}

// Name returns a display name for the way
func (w WayRecord) Name() string {
	if v := w.Tag("name"); v != "" {
		return v
	}
	if v := w.Tag("ref"); v != "" {
		return v
	}
	return fmt.Sprintf("Unnamed Road (way %d)", w.ID)
}
