package export

import (
	"bytes"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"track-finder/internal/models"
)

type kmlFile struct {
	XMLName  xml.Name `xml:"kml"`
	Document struct {
		Name       string `xml:"name"`
		Placemarks []struct {
			Name        string `xml:"name"`
			Description string `xml:"description"`
			StyleURL    string `xml:"styleUrl"`
			LineString  struct {
				Coordinates string `xml:"coordinates"`
			} `xml:"LineString"`
		} `xml:"Placemark"`
	} `xml:"Document"`
}

func parseKML(t *testing.T, doc *Document) kmlFile {
	t.Helper()
	data, err := doc.Bytes()
	require.NoError(t, err)

	var out kmlFile
	require.NoError(t, xml.Unmarshal(data, &out))
	return out
}

func parseCoords(t *testing.T, s string) []models.Coordinate {
	t.Helper()
	var coords []models.Coordinate
	for _, tuple := range strings.Fields(s) {
		parts := strings.Split(tuple, ",")
		require.GreaterOrEqual(t, len(parts), 2)
		lon, err := strconv.ParseFloat(parts[0], 64)
		require.NoError(t, err)
		lat, err := strconv.ParseFloat(parts[1], 64)
		require.NoError(t, err)
		coords = append(coords, models.Coordinate{Lat: lat, Lon: lon})
	}
	return coords
}

var (
	goldHill = models.WayRecord{
		ID:     101,
		Coords: []models.Coordinate{{Lat: 40.06, Lon: -105.41}, {Lat: 40.07, Lon: -105.43}, {Lat: 40.08, Lon: -105.44}},
		Tags:   map[string]string{"highway": "track", "tracktype": "grade3", "name": "Gold Hill Rd", "surface": "gravel"},
	}
	unnamed = models.WayRecord{
		ID:     102,
		Coords: []models.Coordinate{{Lat: 40.1, Lon: -105.2}, {Lat: 40.2, Lon: -105.3}},
		Tags:   map[string]string{"highway": "unclassified", "surface": "dirt"},
	}
)

func TestBuild_RoundTrip(t *testing.T) {
	doc, err := Build("Boulder County, Colorado", []models.WayRecord{goldHill, unnamed})
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Placemarks)

	out := parseKML(t, doc)
	assert.Equal(t, "Boulder County, Colorado", out.Document.Name)
	require.Len(t, out.Document.Placemarks, 2)

	first := out.Document.Placemarks[0]
	assert.Equal(t, "Gold Hill Rd", first.Name)
	assert.Equal(t, "#unpaved-road", first.StyleURL)
	assert.Equal(t, goldHill.Coords, parseCoords(t, first.LineString.Coordinates))
	assert.Contains(t, first.Description, "Track Type: grade3")
	assert.Contains(t, first.Description, "Surface: gravel")
	assert.Contains(t, first.Description, "OSM: way/101")

	second := out.Document.Placemarks[1]
	assert.Equal(t, "Unnamed Road (way 102)", second.Name)
	assert.Contains(t, second.Description, "Track Type: N/A")
	assert.Equal(t, unnamed.Coords, parseCoords(t, second.LineString.Coordinates))
}

func TestBuild_DuplicateIDsCollapse(t *testing.T) {
	dup := goldHill
	dup.Tags = map[string]string{"highway": "track", "name": "Other"}

	doc, err := Build("t", []models.WayRecord{goldHill, unnamed, dup})
	require.NoError(t, err)

	out := parseKML(t, doc)
	require.Len(t, out.Document.Placemarks, 2)
	assert.Equal(t, "Gold Hill Rd", out.Document.Placemarks[0].Name)
}

func TestBuild_EscapesText(t *testing.T) {
	w := models.WayRecord{
		ID:     7,
		Coords: unnamed.Coords,
		Tags:   map[string]string{"highway": "track", "name": `Bob's <Rd> & "Trail"`, "note": "a<b&c"},
	}
	doc, err := Build(`Doña Ana <County> & Co`, []models.WayRecord{w})
	require.NoError(t, err)

	data, err := doc.Bytes()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "<Rd>")
	assert.NotContains(t, string(data), "<County>")

	out := parseKML(t, doc)
	assert.Equal(t, `Doña Ana <County> & Co`, out.Document.Name)
	assert.Equal(t, `Bob's <Rd> & "Trail"`, out.Document.Placemarks[0].Name)
	assert.Contains(t, out.Document.Placemarks[0].Description, "note=a<b&c")
}

func TestBuild_Empty(t *testing.T) {
	doc, err := Build("t", nil)
	assert.Nil(t, doc)
	assert.True(t, errors.Is(err, models.ErrEmptyResultSet))

	degenerate := models.WayRecord{ID: 1, Coords: []models.Coordinate{{Lat: 1, Lon: 1}}}
	doc, err = Build("t", []models.WayRecord{degenerate})
	assert.Nil(t, doc)
	assert.True(t, errors.Is(err, models.ErrEmptyResultSet))
}

func TestDescription(t *testing.T) {
	d := Description(goldHill)
	lines := strings.Split(d, "\n")
	require.GreaterOrEqual(t, len(lines), 6)
	assert.Equal(t, "Track Type: grade3", lines[0])
	assert.Equal(t, "Surface: gravel", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "Length: "))
	assert.True(t, strings.HasSuffix(lines[2], " miles"))
	assert.Equal(t, "OSM: way/101", lines[3])
	assert.Equal(t, []string{"highway=track", "name=Gold Hill Rd", "surface=gravel", "tracktype=grade3"}, lines[5:])
}

func TestWriteTo_ReportsBytes(t *testing.T) {
	doc, err := Build("t", []models.WayRecord{unnamed})
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := doc.WriteTo(&buf)
	require.NoError(t, err)
	assert.EqualValues(t, buf.Len(), n)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "boulder_county_roads.kml", Filename(models.Region{State: "Colorado", County: "Boulder County"}))
	assert.Equal(t, "dona_ana_county_roads.kml", Filename(models.Region{County: "Doña Ana County"}))
	assert.Equal(t, "st_mary_s_county_roads.kml", Filename(models.Region{County: "St. Mary's County"}))
	assert.Equal(t, "region_roads.kml", Filename(models.Region{County: "  "}))
}

func TestWriteFile(t *testing.T) {
	doc, err := Build("t", []models.WayRecord{goldHill})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "boulder_county_roads.kml")
	require.NoError(t, WriteFile(path, doc))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want, err := doc.Bytes()
	require.NoError(t, err)
	assert.Equal(t, want, data)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
