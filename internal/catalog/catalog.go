// Package catalog maps human-readable US state and county names to OSM
// administrative boundaries.
package catalog

import (
	_ "embed"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"track-finder/internal/models"
)

//go:embed states.yaml
var defaultSeed []byte

// Store is the persisted region store read at startup
type Store interface {
	ListStates() ([]models.State, error)
	ListCounties(stateCode string) ([]models.County, error)
}

type seedFile struct {
	States []models.State `yaml:"states"`
}

// Catalog is an immutable lookup table built once at startup
type Catalog struct {
	states      []models.State
	stateIndex  map[string]int
	counties    map[string][]models.County
	countyIndex map[string]map[string]models.County
}

// DefaultSeed returns the embedded state list
func DefaultSeed() []byte {
	return defaultSeed
}

// Load builds a catalog from a YAML seed and an optional region store.
// Relation ids and counties known to the store are merged over the seed.
func Load(seed []byte, store Store) (*Catalog, error) {
	var sf seedFile
	if err := yaml.Unmarshal(seed, &sf); err != nil {
		return nil, eris.Wrap(err, "failed to parse state seed")
	}
	if len(sf.States) == 0 {
		return nil, eris.New("state seed is empty")
	}

	c := &Catalog{
		stateIndex:  make(map[string]int),
		counties:    make(map[string][]models.County),
		countyIndex: make(map[string]map[string]models.County),
	}

	known := make(map[string]models.State)
	var stored []models.County
	if store != nil {
		states, err := store.ListStates()
		if err != nil {
			return nil, eris.Wrap(err, "failed to load stored states")
		}
		for _, s := range states {
			known[s.Code] = s
		}

		stored, err = store.ListCounties("")
		if err != nil {
			return nil, eris.Wrap(err, "failed to load stored counties")
		}
	}

	for _, s := range sf.States {
		s.Code = strings.ToUpper(strings.TrimSpace(s.Code))
		if _, dup := c.stateIndex[s.Code]; dup {
			return nil, eris.Errorf("duplicate state %s in seed", s.Code)
		}
		if k, ok := known[s.Code]; ok && s.RelationID == 0 {
			s.RelationID = k.RelationID
		}
		c.states = append(c.states, s)
		c.stateIndex[s.Code] = -1
	}

	slices.SortFunc(c.states, func(a, b models.State) int {
		return strings.Compare(a.Name, b.Name)
	})
	for i, s := range c.states {
		c.stateIndex[s.Code] = i
		c.stateIndex[foldName(s.Code)] = i
		c.stateIndex[foldName(strings.TrimPrefix(s.Code, "US-"))] = i
		c.stateIndex[foldName(s.Name)] = i
	}

	for _, county := range stored {
		if _, ok := c.stateIndex[county.StateCode]; !ok {
			continue
		}
		c.counties[county.StateCode] = append(c.counties[county.StateCode], county)
	}
	for code, list := range c.counties {
		slices.SortFunc(list, func(a, b models.County) int {
			return strings.Compare(a.Name, b.Name)
		})
		idx := make(map[string]models.County, len(list))
		for _, county := range list {
			idx[foldName(county.Name)] = county
			key := countyKey(county.Name)
			if _, taken := idx[key]; !taken {
				idx[key] = county
			}
		}
		c.countyIndex[code] = idx
	}

	return c, nil
}

// States returns every state sorted by name
func (c *Catalog) States() []models.State {
	return slices.Clone(c.states)
}

// State finds a state by name or ISO code ("Colorado", "US-CO", "co")
func (c *Catalog) State(nameOrCode string) (models.State, bool) {
	i, ok := c.stateIndex[foldName(nameOrCode)]
	if !ok {
		return models.State{}, false
	}
	return c.states[i], true
}

// Counties returns the known counties of a state sorted by name
func (c *Catalog) Counties(stateCode string) []models.County {
	s, ok := c.State(stateCode)
	if !ok {
		return nil
	}
	return slices.Clone(c.counties[s.Code])
}

// CountyCount returns the number of counties across all states
func (c *Catalog) CountyCount() int {
	n := 0
	for _, list := range c.counties {
		n += len(list)
	}
	return n
}

// Resolve maps a selection to its boundary. Names are matched ignoring case,
// diacritics and a trailing "County", "Parish" or "Borough".
func (c *Catalog) Resolve(region models.Region) (models.Boundary, error) {
	if strings.TrimSpace(region.State) == "" || strings.TrimSpace(region.County) == "" {
		return models.Boundary{}, &models.InvalidRegionError{Region: region, Reason: "state and county are required"}
	}

	state, ok := c.State(region.State)
	if !ok {
		return models.Boundary{}, &models.InvalidRegionError{Region: region, Reason: "unknown state"}
	}

	idx := c.countyIndex[state.Code]
	county, ok := idx[foldName(region.County)]
	if !ok {
		county, ok = idx[countyKey(region.County)]
	}
	if !ok {
		return models.Boundary{}, &models.InvalidRegionError{Region: region, Reason: "unknown county"}
	}

	return models.Boundary{
		Region:     models.Region{State: state.Name, County: county.Name},
		StateCode:  state.Code,
		RelationID: county.RelationID,
	}, nil
}
