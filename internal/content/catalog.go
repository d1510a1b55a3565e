package content

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog holds the templates the generator draws from.
type Catalog struct {
	Professions []ProfessionTemplate `yaml:"professions"`
	Items       []ItemTemplate       `yaml:"items"`
	Locations   []LocationTemplate   `yaml:"locations"`
	Names       NameLists            `yaml:"names"`
	Quests      []string             `yaml:"quests"`
}

// NameLists holds given names and family names.
type NameLists struct {
	First []string `yaml:"first"`
	Last  []string `yaml:"last"`
}

// ProfessionTemplate describes a profession's hours and recipes.
type ProfessionTemplate struct {
	Name    string   `yaml:"name"`
	Work    HourSpan `yaml:"work"`
	Recipes []string `yaml:"recipes"`
	Mood    float64  `yaml:"mood"`
	Skills  []string `yaml:"skills"`
}

// HourSpan is a start/end hour pair.
type HourSpan struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// ItemTemplate describes a craftable item.
type ItemTemplate struct {
	Template string     `yaml:"template"`
	Names    []string   `yaml:"names"`
	Value    ValueRange `yaml:"value"`
	Tags     []string   `yaml:"tags"`
}

// ValueRange is an inclusive integer range.
type ValueRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// LocationTemplate describes a kind of place.
type LocationTemplate struct {
	Template    string   `yaml:"template"`
	Names       []string `yaml:"names"`
	Biomes      []string `yaml:"biomes"`
	HasHours    bool     `yaml:"has_hours"`
	NoticeBoard bool     `yaml:"notice_board"`
	Mood        float64  `yaml:"mood"`
	Tags        []string `yaml:"tags"`
}

// DefaultCatalog parses the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// ParseCatalog parses a YAML catalog and checks it can serve every spawn.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Professions) == 0 || len(c.Items) == 0 || len(c.Locations) == 0 {
		return nil, fmt.Errorf("catalog needs professions, items and locations")
	}
	if len(c.Names.First) == 0 || len(c.Names.Last) == 0 {
		return nil, fmt.Errorf("catalog needs first and last names")
	}
	for _, it := range c.Items {
		if len(it.Names) == 0 || it.Value.Max < it.Value.Min {
			return nil, fmt.Errorf("item template %q is incomplete", it.Template)
		}
	}
	for _, l := range c.Locations {
		if len(l.Names) == 0 || len(l.Biomes) == 0 {
			return nil, fmt.Errorf("location template %q is incomplete", l.Template)
		}
	}
	return &c, nil
}

func (c *Catalog) profession(name string) (*ProfessionTemplate, bool) {
	for i := range c.Professions {
		if c.Professions[i].Name == name {
			return &c.Professions[i], true
		}
	}
	return nil, false
}

func (c *Catalog) item(template string) (*ItemTemplate, bool) {
	for i := range c.Items {
		if c.Items[i].Template == template {
			return &c.Items[i], true
		}
	}
	return nil, false
}

func (c *Catalog) location(template string) (*LocationTemplate, bool) {
	for i := range c.Locations {
		if c.Locations[i].Template == template {
			return &c.Locations[i], true
		}
	}
	return nil, false
}
