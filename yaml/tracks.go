// Package yaml loads the track table from YAML using gopkg.in/yaml.v3.
// The table lists known venues per region with their grade and maps
// alternate spellings to the listed name.
package yaml

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/equinegpt/racecal"
	"github.com/equinegpt/racecal/reconcile"
	"gopkg.in/yaml.v3"
)

//go:embed tracks.yaml
var defaultTracks []byte

var (
	_ racecal.TrackGrader    = (*TrackTable)(nil)
	_ racecal.TrackAliaser   = (*TrackTable)(nil)
	_ racecal.VenueInventory = (*TrackTable)(nil)
)

type document struct {
	Grades  map[string]map[string]string `yaml:"grades"`
	Aliases map[string]map[string]string `yaml:"aliases"`
}

type trackKey struct {
	region racecal.Region
	name   string
}

// TrackTable answers grade and alias lookups. It is read-only after
// loading and safe for concurrent use.
type TrackTable struct {
	names     map[racecal.Region][]string
	grades    map[trackKey]string
	listed    map[trackKey]string
	aliases   map[trackKey]string
	canonical map[trackKey]string
}

// Default returns the table compiled into the binary.
func Default() *TrackTable {
	t, err := Parse(defaultTracks)
	if err != nil {
		panic(fmt.Sprintf("embedded track table: %v", err))
	}
	return t
}

// Load reads a track table from path.
func Load(path string) (*TrackTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, racecal.Errorf(racecal.ENOTFOUND, "track table %s not found", path)
		}
		return nil, fmt.Errorf("read track table: %w", err)
	}
	return Parse(data)
}

// Parse builds a table from YAML. Unknown regions and grades other than
// M, P or C are rejected.
func Parse(data []byte) (*TrackTable, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, racecal.Errorf(racecal.EINVALID, "track table: %v", err)
	}

	t := &TrackTable{
		names:     make(map[racecal.Region][]string),
		grades:    make(map[trackKey]string),
		listed:    make(map[trackKey]string),
		aliases:   make(map[trackKey]string),
		canonical: make(map[trackKey]string),
	}

	for rawRegion, tracks := range doc.Grades {
		region, err := racecal.ParseRegion(rawRegion)
		if err != nil {
			return nil, err
		}
		for name, grade := range tracks {
			switch grade {
			case racecal.GradeMetro, racecal.GradeProvincial, racecal.GradeCountry:
			default:
				return nil, racecal.Errorf(racecal.EINVALID, "track %s/%s: unknown grade %q", region, name, grade)
			}
			name = racecal.NormalizeVenue(name)
			k := key(region, name)
			t.grades[k] = grade
			t.listed[k] = name
			t.canonical[trackKey{region, reconcile.Canonicalize(name)}] = name
			t.names[region] = append(t.names[region], name)
		}
	}
	for region := range t.names {
		sort.Strings(t.names[region])
	}

	for rawRegion, aliases := range doc.Aliases {
		region, err := racecal.ParseRegion(rawRegion)
		if err != nil {
			return nil, err
		}
		for alias, target := range aliases {
			t.aliases[key(region, racecal.NormalizeVenue(alias))] = racecal.NormalizeVenue(target)
		}
	}

	return t, nil
}

// CanonicalTrack returns the listed name for venue. Aliases are tried
// first, then the listed names ignoring case, then the listed names by
// canonical form. Unknown venues are returned unchanged.
func (t *TrackTable) CanonicalTrack(region racecal.Region, venue string) string {
	k := key(region, venue)
	if target, ok := t.aliases[k]; ok {
		return target
	}
	if name, ok := t.listed[k]; ok {
		return name
	}
	if name, ok := t.canonical[trackKey{region, reconcile.Canonicalize(venue)}]; ok {
		return name
	}
	return venue
}

// Grade returns the grade of venue after alias resolution.
func (t *TrackTable) Grade(region racecal.Region, venue string) (string, bool) {
	g, ok := t.grades[key(region, t.CanonicalTrack(region, venue))]
	return g, ok
}

// Venues returns the listed names per region, sorted.
func (t *TrackTable) Venues(_ context.Context) (map[racecal.Region][]string, error) {
	out := make(map[racecal.Region][]string, len(t.names))
	for region, names := range t.names {
		out[region] = append([]string(nil), names...)
	}
	return out, nil
}

func key(region racecal.Region, name string) trackKey {
	return trackKey{region, strings.ToUpper(racecal.NormalizeVenue(name))}
}
