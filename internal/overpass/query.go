package overpass

import (
	"fmt"
	"regexp"
	"strings"

	"track-finder/internal/filter"
	"track-finder/internal/models"
)

// DefaultQueryTimeoutSecs is the server-side Overpass timeout for road queries
const DefaultQueryTimeoutSecs = 90

var stateCodePattern = regexp.MustCompile(`^US-[A-Z]{2}$`)

// Query is an Overpass QL request scoped to a single administrative area
type Query struct {
	AreaID int64
	Text   string
}

// QueryOptions tunes the generated Overpass QL
type QueryOptions struct {
	TimeoutSecs   int
	ExcludeAccess []string
}

// BuildRoadsQuery builds the query selecting unpaved and track-class ways
// inside the boundary's administrative area. The area filter uses the
// boundary polygon itself, never a bounding box.
func BuildRoadsQuery(b models.Boundary, opts QueryOptions) (Query, error) {
	if b.RelationID <= 0 {
		return Query{}, &models.InvalidRegionError{Region: b.Region, Reason: "no boundary relation"}
	}
	if strings.TrimSpace(b.Region.State) == "" || strings.TrimSpace(b.Region.County) == "" {
		return Query{}, &models.InvalidRegionError{Region: b.Region, Reason: "state and county are required"}
	}

	timeout := opts.TimeoutSecs
	if timeout <= 0 {
		timeout = DefaultQueryTimeoutSecs
	}

	areaID := b.AreaID()

	var sb strings.Builder
	fmt.Fprintf(&sb, "[out:json][timeout:%d];\n", timeout)
	fmt.Fprintf(&sb, "area(%d)->.searchArea;\n", areaID)
	sb.WriteString("(\n")
	fmt.Fprintf(&sb, "  way(area.searchArea)[\"highway\"][\"surface\"~\"%s\"];\n", filter.SurfaceRegex(filter.UnpavedSurfaces))
	sb.WriteString("  way(area.searchArea)[\"highway\"=\"track\"];\n")
	fmt.Fprintf(&sb, "  way(area.searchArea)[\"highway\"][\"tracktype\"~\"%s\"];\n", filter.TrackTypePattern.String())
	sb.WriteString(")->.candidates;\n")
	fmt.Fprintf(&sb, "way.candidates[\"surface\"!~\"%s\"]", filter.SurfaceRegex(filter.PavedSurfaces))
	if len(opts.ExcludeAccess) > 0 {
		fmt.Fprintf(&sb, "[\"access\"!~\"%s\"]", filter.SurfaceRegex(opts.ExcludeAccess))
	}
	sb.WriteString(";\n")
	sb.WriteString("out body;\n>;\nout skel qt;\n")

	return Query{AreaID: areaID, Text: sb.String()}, nil
}

// StatesQuery lists US state boundary relations
func StatesQuery(timeoutSecs int) string {
	if timeoutSecs <= 0 {
		timeoutSecs = 60
	}
	return fmt.Sprintf(`[out:json][timeout:%d];
rel["ISO3166-2"~"^US-"]["admin_level"="4"];
out tags;
`, timeoutSecs)
}

// CountiesQuery lists county (admin_level=6) relations inside a state
func CountiesQuery(stateCode string, timeoutSecs int) (string, error) {
	if !stateCodePattern.MatchString(stateCode) {
		return "", fmt.Errorf("invalid state code %q", stateCode)
	}
	if timeoutSecs <= 0 {
		timeoutSecs = 60
	}
	return fmt.Sprintf(`[out:json][timeout:%d];
area["ISO3166-2"="%s"]->.state;
rel(area.state)["admin_level"="6"]["boundary"="administrative"];
out tags;
`, timeoutSecs, stateCode), nil
}
