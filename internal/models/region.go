package models

import (
	"fmt"
	"time"

	"github.com/paulmach/osm"
)

// AreaIDOffset converts an OSM relation id into an Overpass area id
const AreaIDOffset = 3600000000

// Region is the user's state/county selection
type Region struct {
	State  string `json:"state"`
	County string `json:"county"`
}

// String returns "County, State"
func (r Region) String() string {
	return fmt.Sprintf("%s, %s", r.County, r.State)
}

// Boundary is a Region resolved to an OSM administrative boundary
type Boundary struct {
	Region     Region         `json:"region"`
	StateCode  string         `json:"state_code"` // ISO3166-2, e.g. "US-CO"
	RelationID osm.RelationID `json:"relation_id"`
}

// AreaID returns the Overpass area id for the boundary relation
func (b Boundary) AreaID() int64 {
	return AreaIDOffset + int64(b.RelationID)
}

// Title is the display name used for exported documents
func (b Boundary) Title() string {
	return b.Region.String()
}

// State is a catalog row for a US state
type State struct {
	Code       string         `db:"iso_code" json:"code" yaml:"code"`
	Name       string         `db:"name" json:"name" yaml:"name"`
	RelationID osm.RelationID `db:"relation_id" json:"relation_id,omitempty" yaml:"relation_id,omitempty"`
}

// County is a catalog row for a county (admin_level=6) within a state
type County struct {
	RelationID osm.RelationID `db:"relation_id" json:"relation_id"`
	StateCode  string         `db:"state_code" json:"state_code"`
	Name       string         `db:"name" json:"name"`
	SyncedAt   time.Time      `db:"synced_at" json:"synced_at"`
}
