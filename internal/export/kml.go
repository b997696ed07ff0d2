// Package export serializes filtered roads as KML documents.
package export

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"slices"
	"strings"

	"github.com/paulmach/osm"
	"github.com/twpayne/go-kml/v3"
	"go.uber.org/zap"

	"track-finder/internal/geo"
	"track-finder/internal/models"
)

// ContentType is the MIME type of exported documents
const ContentType = "application/vnd.google-earth.kml+xml"

const roadStyleID = "unpaved-road"

// roadColor is the line color used for every placemark
var roadColor = color.RGBA{R: 0xd9, G: 0x5f, B: 0x02, A: 0xff}

// Document is a rendered KML document ready to be written
type Document struct {
	Title      string
	Placemarks int
	root       interface {
		WriteIndent(w io.Writer, prefix, indent string) error
	}
}

// Build creates a KML document with one placemark per distinct way id.
// Input order is kept and the first occurrence of an id wins. An input with
// nothing to export returns models.ErrEmptyResultSet and no document.
func Build(title string, ways []models.WayRecord) (*Document, error) {
	style := kml.SharedStyle(roadStyleID,
		kml.LineStyle(
			kml.Color(roadColor),
			kml.Width(3),
		),
	)

	children := []kml.Element{kml.Name(title), style}
	seen := make(map[osm.WayID]struct{}, len(ways))
	for _, w := range ways {
		if _, dup := seen[w.ID]; dup {
			continue
		}
		if len(w.Coords) < 2 {
			zap.L().Warn("skipping way without geometry", zap.Int64("way_id", int64(w.ID)))
			continue
		}
		seen[w.ID] = struct{}{}
		children = append(children, placemark(w, style.URL()))
	}

	if len(seen) == 0 {
		return nil, models.ErrEmptyResultSet
	}

	return &Document{
		Title:      title,
		Placemarks: len(seen),
		root:       kml.KML(kml.Document(children...)),
	}, nil
}

func placemark(w models.WayRecord, styleURL string) kml.Element {
	coords := make([]kml.Coordinate, 0, len(w.Coords))
	for _, c := range w.Coords {
		coords = append(coords, kml.Coordinate{Lon: c.Lon, Lat: c.Lat})
	}

	return kml.Placemark(
		kml.Name(w.Name()),
		kml.Description(Description(w)),
		kml.StyleURL(styleURL),
		kml.LineString(
			kml.Tessellate(true),
			kml.Coordinates(coords...),
		),
	)
}

// Description renders the placemark text: track type, surface, length,
// the OSM feature id and every tag as key=value sorted by key
func Description(w models.WayRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Track Type: %s\n", tagOr(w, "tracktype", "N/A"))
	fmt.Fprintf(&sb, "Surface: %s\n", tagOr(w, "surface", "N/A"))
	fmt.Fprintf(&sb, "Length: %.2f miles\n", geo.LengthMiles(w.Coords))
	fmt.Fprintf(&sb, "OSM: %s", w.FeatureID())

	keys := make([]string, 0, len(w.Tags))
	for k := range w.Tags {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	if len(keys) > 0 {
		sb.WriteString("\n")
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "\n%s=%s", k, w.Tags[k])
	}

	return sb.String()
}

func tagOr(w models.WayRecord, key, fallback string) string {
	if v := w.Tag(key); v != "" {
		return v
	}
	return fallback
}

// WriteTo writes the document as indented XML
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	err := d.root.WriteIndent(cw, "", "  ")
	return cw.n, err
}

// Bytes returns the serialized document
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
