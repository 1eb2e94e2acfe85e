// Package dataset describes the remote source files the toolkit knows how
// to download and ingest.
package dataset

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/hazardmaps/floodrisk-cli/internal/db"
)

// Source formats a manifest entry may declare.
const (
	FormatGeoJSON   = "geojson"
	FormatShapefile = "shapefile"
)

// Source is one downloadable dataset.
type Source struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Table  string `yaml:"table"`
	Format string `yaml:"format"` // geojson (default) or shapefile
	SRID   int    `yaml:"srid,omitempty"`
}

// Manifest is the parsed datasets file.
type Manifest struct {
	Sources []Source `yaml:"datasets"`
}

// LoadManifest reads and validates a datasets YAML file. Table names are
// normalized the same way the ingestor normalizes them, so a manifest entry
// and a later ingest agree on the destination.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read manifest %s", path)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "dataset: parse manifest %s", path)
	}
	if len(m.Sources) == 0 {
		return nil, eris.Errorf("dataset: manifest %s lists no datasets", path)
	}

	seen := map[string]bool{}
	for i, s := range m.Sources {
		if s.Name == "" {
			return nil, eris.Errorf("dataset: entry %d has no name", i)
		}
		if seen[s.Name] {
			return nil, eris.Errorf("dataset: duplicate entry %q", s.Name)
		}
		seen[s.Name] = true

		if s.URL == "" {
			return nil, eris.Errorf("dataset: entry %q has no url", s.Name)
		}
		if s.Table == "" {
			return nil, eris.Errorf("dataset: entry %q has no table", s.Name)
		}
		table, err := db.NormalizeTable(s.Table)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: entry %q", s.Name)
		}
		m.Sources[i].Table = table

		switch strings.ToLower(s.Format) {
		case "":
			m.Sources[i].Format = FormatGeoJSON
		case FormatGeoJSON, FormatShapefile:
			m.Sources[i].Format = strings.ToLower(s.Format)
		default:
			return nil, eris.Errorf("dataset: entry %q has unknown format %q", s.Name, s.Format)
		}
	}

	return &m, nil
}

// Find returns the named source.
func (m *Manifest) Find(name string) (Source, bool) {
	for _, s := range m.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}
