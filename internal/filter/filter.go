// Package filter applies the unpaved/track predicate to map data results.
//
// The same tag sets drive the Overpass query, so the filter acts as a second
// check against upstream over-matching. Apply is pure: it never mutates its
// input and applying it twice yields the same result.
package filter

import (
	"regexp"
	"slices"
	"strings"

	"track-finder/internal/geo"
	"track-finder/internal/models"
)

// UnpavedSurfaces are surface values treated as unpaved
var UnpavedSurfaces = []string{
	"unpaved", "gravel", "fine_gravel", "compacted", "dirt", "earth",
	"ground", "grass", "mud", "sand", "rock", "pebblestone", "woodchips",
}

// PavedSurfaces are surface values that exclude a way even if it is a track
var PavedSurfaces = []string{
	"paved", "asphalt", "concrete", "concrete:plates", "concrete:lanes",
	"paving_stones", "sett", "cobblestone", "chipseal", "metal", "wood",
}

// DefaultExcludeAccess lists access values that are never exported
var DefaultExcludeAccess = []string{"private", "no"}

// TrackTypePattern matches the graded track classes grade1..grade5
var TrackTypePattern = regexp.MustCompile(`^grade[1-5]$`)

// Rules configures the client-side filter
type Rules struct {
	// MinLengthMiles drops ways shorter than this; 0 keeps everything
	MinLengthMiles float64
	// ExcludeAccess lists access tag values to drop
	ExcludeAccess []string
}

// DefaultRules returns the rules used when nothing is configured
func DefaultRules() Rules {
	return Rules{
		MinLengthMiles: 1.0,
		ExcludeAccess:  DefaultExcludeAccess,
	}
}

// Matches reports whether tags describe an unpaved road or track.
// Missing keys never match; they are not errors.
func (r Rules) Matches(tags map[string]string) bool {
	if tags["highway"] == "" {
		return false
	}

	if access := tags["access"]; access != "" && slices.Contains(r.ExcludeAccess, access) {
		return false
	}

	surface := tags["surface"]
	if slices.Contains(PavedSurfaces, surface) {
		return false
	}
	if slices.Contains(UnpavedSurfaces, surface) {
		return true
	}

	return tags["highway"] == "track" || TrackTypePattern.MatchString(tags["tracktype"])
}

// Keep reports whether a single record passes every rule
func (r Rules) Keep(w models.WayRecord) bool {
	if len(w.Coords) < 2 {
		return false
	}
	if !r.Matches(w.Tags) {
		return false
	}
	if r.MinLengthMiles > 0 && geo.LengthMiles(w.Coords) < r.MinLengthMiles {
		return false
	}
	return true
}

// Apply returns the records that pass the rules, deduplicated by way id.
// Input order is preserved and the first passing occurrence of an id wins.
func Apply(r Rules, ways []models.WayRecord) []models.WayRecord {
	seen := make(map[int64]struct{}, len(ways))
	out := make([]models.WayRecord, 0, len(ways))

	for _, w := range ways {
		if _, dup := seen[int64(w.ID)]; dup {
			continue
		}
		if !r.Keep(w) {
			continue
		}
		seen[int64(w.ID)] = struct{}{}
		out = append(out, w)
	}

	return out
}

// SurfaceRegex returns an anchored alternation of values for use in Overpass QL
func SurfaceRegex(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = regexp.QuoteMeta(v)
	}
	return "^(" + strings.Join(quoted, "|") + ")$"
}
