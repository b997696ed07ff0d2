package filter

import (
	"testing"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"track-finder/internal/models"
)

// about 1.4 miles of road heading north
var longLine = []models.Coordinate{{Lat: 40.00, Lon: -105.30}, {Lat: 40.01, Lon: -105.30}, {Lat: 40.02, Lon: -105.30}}

// about 70 feet
var shortLine = []models.Coordinate{{Lat: 40.0, Lon: -105.3}, {Lat: 40.0002, Lon: -105.3}}

func way(id int64, coords []models.Coordinate, tags map[string]string) models.WayRecord {
	return models.WayRecord{ID: osm.WayID(id), Coords: coords, Tags: tags}
}

func TestMatches(t *testing.T) {
	r := DefaultRules()

	tests := []struct {
		name string
		tags map[string]string
		want bool
	}{
		{"unpaved surface", map[string]string{"highway": "unclassified", "surface": "unpaved"}, true},
		{"gravel surface", map[string]string{"highway": "residential", "surface": "gravel"}, true},
		{"track without surface", map[string]string{"highway": "track"}, true},
		{"graded track type", map[string]string{"highway": "service", "tracktype": "grade3"}, true},
		{"paved surface", map[string]string{"highway": "residential", "surface": "paved"}, false},
		{"paved track", map[string]string{"highway": "track", "surface": "asphalt"}, false},
		{"no highway", map[string]string{"surface": "dirt"}, false},
		{"private access", map[string]string{"highway": "track", "access": "private"}, false},
		{"permissive access", map[string]string{"highway": "track", "access": "permissive"}, true},
		{"bad tracktype", map[string]string{"highway": "service", "tracktype": "grade9"}, false},
		{"plain road", map[string]string{"highway": "primary"}, false},
		{"nil tags", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Matches(tt.tags))
		})
	}
}

func TestApply_BoulderScenario(t *testing.T) {
	in := []models.WayRecord{
		way(1, longLine, map[string]string{"highway": "unclassified", "surface": "unpaved"}),
		way(2, longLine, map[string]string{"highway": "track", "surface": "unpaved"}),
		way(3, longLine, map[string]string{"highway": "residential", "surface": "paved"}),
	}

	out := Apply(DefaultRules(), in)
	require.Len(t, out, 2)
	assert.EqualValues(t, 1, out[0].ID)
	assert.EqualValues(t, 2, out[1].ID)
}

func TestApply_Idempotent(t *testing.T) {
	in := []models.WayRecord{
		way(1, longLine, map[string]string{"highway": "track"}),
		way(2, shortLine, map[string]string{"highway": "track"}),
		way(1, longLine, map[string]string{"highway": "track", "name": "dup"}),
		way(3, longLine, map[string]string{"highway": "primary"}),
		way(4, longLine[:1], map[string]string{"highway": "track"}),
		way(5, longLine, map[string]string{"highway": "path", "surface": "dirt"}),
	}

	r := DefaultRules()
	once := Apply(r, in)
	twice := Apply(r, once)
	assert.Equal(t, once, twice)
}

func TestApply_NoFabrication(t *testing.T) {
	in := []models.WayRecord{
		way(10, longLine, map[string]string{"highway": "track"}),
		way(11, longLine, map[string]string{"highway": "track", "surface": "gravel"}),
		way(12, longLine, map[string]string{"highway": "motorway"}),
	}

	out := Apply(DefaultRules(), in)
	for _, w := range out {
		assert.Contains(t, in, w)
	}
}

func TestApply_Dedupe(t *testing.T) {
	in := []models.WayRecord{
		way(1, longLine, map[string]string{"highway": "track", "name": "first"}),
		way(1, longLine, map[string]string{"highway": "track", "name": "second"}),
	}

	out := Apply(DefaultRules(), in)
	require.Len(t, out, 1)
	assert.Equal(t, "first", out[0].Tag("name"))
}

func TestApply_MinLength(t *testing.T) {
	in := []models.WayRecord{
		way(1, longLine, map[string]string{"highway": "track"}),
		way(2, shortLine, map[string]string{"highway": "track"}),
	}

	assert.Len(t, Apply(Rules{MinLengthMiles: 1}, in), 1)
	assert.Len(t, Apply(Rules{MinLengthMiles: 0}, in), 2)
}

func TestApply_DropsDegenerateGeometry(t *testing.T) {
	in := []models.WayRecord{
		way(1, nil, map[string]string{"highway": "track"}),
		way(2, longLine[:1], map[string]string{"highway": "track"}),
	}
	assert.Empty(t, Apply(Rules{}, in))
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	in := []models.WayRecord{
		way(1, longLine, map[string]string{"highway": "primary"}),
		way(2, longLine, map[string]string{"highway": "track"}),
	}
	before := append([]models.WayRecord(nil), in...)

	_ = Apply(DefaultRules(), in)
	assert.Equal(t, before, in)
}

func TestSurfaceRegex(t *testing.T) {
	assert.Equal(t, "^(gravel|dirt)$", SurfaceRegex([]string{"gravel", "dirt"}))
}
