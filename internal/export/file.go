package export

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"track-finder/internal/models"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Filename returns the download name for a region, e.g. "boulder_county_roads.kml"
func Filename(region models.Region) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	name, _, err := transform.String(t, region.County)
	if err != nil {
		name = region.County
	}
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		slug = "region"
	}
	return slug + "_roads.kml"
}

// WriteFile writes the document to path. The file appears complete or not
// at all: data goes to a temp file in the same directory which is then renamed.
func WriteFile(path string, doc *Document) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return eris.Wrap(err, "failed to create output directory")
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return eris.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := doc.WriteTo(tmp); err != nil {
		tmp.Close()
		return eris.Wrap(err, "failed to write document")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return eris.Wrap(err, "failed to sync document")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "failed to close document")
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return eris.Wrap(err, "failed to set permissions")
	}

	return eris.Wrap(os.Rename(tmpName, path), "failed to move document into place")
}
