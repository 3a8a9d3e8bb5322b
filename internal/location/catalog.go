package location

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// UnknownName is returned by ResolveName for ids outside the catalog.
const UnknownName = "未知"

// ErrNotFound is returned when no catalog entry matches a lookup.
var ErrNotFound = errors.New("location not found")

// Location is one curated stargazing site and its forecast-system id.
type Location struct {
	ID        string  `yaml:"id" json:"id"`
	Name      string  `yaml:"name" json:"name"`
	Region    string  `yaml:"-" json:"region"`
	Latitude  float64 `yaml:"lat" json:"latitude"`
	Longitude float64 `yaml:"lon" json:"longitude"`
}

// Region groups locations for presentation.
type Region struct {
	Name      string     `json:"name"`
	Locations []Location `json:"locations"`
}

type catalogFile struct {
	Regions []struct {
		Name string   `yaml:"name"`
		IDs  []string `yaml:"ids"`
	} `yaml:"regions"`
	Locations []Location `yaml:"locations"`
}

// Catalog is the immutable set of known locations. Build it once with
// Load or Default and share the pointer; nothing mutates it afterwards.
type Catalog struct {
	locations []Location
	byID      map[string]int
	regions   []Region
}

// Default parses the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Load(defaultCatalog)
}

// MustDefault is Default for process start-up; it panics on a broken embed.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Load parses a YAML catalog document.
func Load(doc []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(doc, &f); err != nil {
		return nil, fmt.Errorf("parsing location catalog: %w", err)
	}
	if len(f.Locations) == 0 {
		return nil, errors.New("parsing location catalog: no locations")
	}

	c := &Catalog{
		locations: make([]Location, 0, len(f.Locations)),
		byID:      make(map[string]int, len(f.Locations)),
	}
	for _, l := range f.Locations {
		if l.ID == "" || l.Name == "" {
			return nil, fmt.Errorf("parsing location catalog: entry %+v missing id or name", l)
		}
		if _, dup := c.byID[l.ID]; dup {
			return nil, fmt.Errorf("parsing location catalog: duplicate id %s", l.ID)
		}
		c.byID[l.ID] = len(c.locations)
		c.locations = append(c.locations, l)
	}

	for _, r := range f.Regions {
		region := Region{Name: r.Name}
		for _, id := range r.IDs {
			idx, ok := c.byID[id]
			if !ok {
				return nil, fmt.Errorf("parsing location catalog: region %s references unknown id %s", r.Name, id)
			}
			if c.locations[idx].Region != "" {
				return nil, fmt.Errorf("parsing location catalog: id %s listed in regions %s and %s", id, c.locations[idx].Region, r.Name)
			}
			c.locations[idx].Region = r.Name
			region.Locations = append(region.Locations, c.locations[idx])
		}
		c.regions = append(c.regions, region)
	}

	return c, nil
}

// All returns every location in catalog order.
func (c *Catalog) All() []Location {
	out := make([]Location, len(c.locations))
	copy(out, c.locations)
	return out
}

// Lookup returns the location with the given id.
func (c *Catalog) Lookup(id string) (Location, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return Location{}, false
	}
	return c.locations[idx], true
}

// ResolveID maps a user-supplied name fragment to a location id.
// The first catalog entry whose name contains the fragment wins.
func (c *Catalog) ResolveID(fragment string) (string, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return "", ErrNotFound
	}
	for _, l := range c.locations {
		if strings.Contains(l.Name, fragment) {
			return l.ID, nil
		}
	}
	return "", fmt.Errorf("resolving %q: %w", fragment, ErrNotFound)
}

// ResolveName returns the display name for id, or UnknownName.
func (c *Catalog) ResolveName(id string) string {
	if l, ok := c.Lookup(id); ok {
		return l.Name
	}
	return UnknownName
}

// Regions returns the region partition in presentation order.
func (c *Catalog) Regions() []Region {
	out := make([]Region, len(c.regions))
	for i, r := range c.regions {
		out[i] = Region{Name: r.Name, Locations: append([]Location(nil), r.Locations...)}
	}
	return out
}

// Region returns the locations of one region.
func (c *Catalog) Region(name string) (Region, bool) {
	for _, r := range c.regions {
		if r.Name == name {
			return Region{Name: r.Name, Locations: append([]Location(nil), r.Locations...)}, true
		}
	}
	return Region{}, false
}
