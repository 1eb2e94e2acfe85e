// Package geojson reads GeoJSON feature collections and derives the
// relational schema a collection is stored under.
package geojson

import (
	"bytes"
	"encoding/json"
	"os"
	"sort"
	"unicode/utf8"

	gogeom "github.com/twpayne/go-geom"
	geomjson "github.com/twpayne/go-geom/encoding/geojson"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
)

// Feature is one decoded GeoJSON feature: a geometry plus flat attributes.
type Feature struct {
	Geometry   gogeom.T
	Properties map[string]any
}

// Column is one inferred attribute column.
type Column struct {
	Name    string
	SQLType string
}

// Collection is a decoded FeatureCollection plus everything ingestion needs
// to know about it.
type Collection struct {
	Features      []Feature
	GeometryTypes []string // distinct GeoJSON geometry type names, sorted
	ColumnType    string   // PostGIS geometry type for the column declaration
	SRID          int      // declared source SRID, or 0 when the file has no crs member
	Schema        []Column // inferred attribute columns, name-sorted
	Encoding      string   // character encoding the file decoded under
}

// envelope captures the parts of the document go-geom does not surface:
// the crs member and raw property literals (json.Number preserves the
// int/float distinction the column inference needs).
type envelope struct {
	Type string `json:"type"`
	CRS  *struct {
		Type       string `json:"type"`
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"crs"`
	Features []struct {
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

// ReadFile reads and decodes a GeoJSON file from disk.
func ReadFile(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geojson: read %s", path)
	}
	return Decode(data)
}

// Decode parses a GeoJSON FeatureCollection, trying UTF-8 first and falling
// back to Latin-1 and Windows-1252 for files saved under legacy encodings.
func Decode(data []byte) (*Collection, error) {
	decoded, encoding, err := decodeBytes(data)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := unmarshalUseNumber(decoded, &env); err != nil {
		return nil, eris.Wrap(err, "geojson: parse document")
	}
	if env.Type != "FeatureCollection" {
		return nil, eris.Errorf("geojson: expected a FeatureCollection, got %q", env.Type)
	}

	var fc geomjson.FeatureCollection
	if err := json.Unmarshal(decoded, &fc); err != nil {
		return nil, eris.Wrap(err, "geojson: parse features")
	}
	if len(fc.Features) == 0 {
		return nil, eris.New("geojson: collection has no features")
	}

	coll := &Collection{Encoding: encoding}

	typeSet := make(map[string]bool)
	for i, f := range fc.Features {
		// Prefer the envelope's properties: decoded with UseNumber, they
		// keep integral attributes integral all the way to the insert.
		props := f.Properties
		if i < len(env.Features) {
			props = env.Features[i].Properties
		}
		coll.Features = append(coll.Features, Feature{
			Geometry:   f.Geometry,
			Properties: props,
		})
		if name := TypeName(f.Geometry); name != "" {
			typeSet[name] = true
		}
	}

	for name := range typeSet {
		coll.GeometryTypes = append(coll.GeometryTypes, name)
	}
	sort.Strings(coll.GeometryTypes)

	coll.ColumnType, err = columnGeometryType(typeSet)
	if err != nil {
		return nil, err
	}

	coll.SRID = detectSRID(&env)

	coll.Schema, err = inferSchema(&env)
	if err != nil {
		return nil, err
	}

	return coll, nil
}

// TypeName returns the GeoJSON type name for a go-geom geometry.
func TypeName(g gogeom.T) string {
	switch g.(type) {
	case *gogeom.Point:
		return "Point"
	case *gogeom.MultiPoint:
		return "MultiPoint"
	case *gogeom.LineString:
		return "LineString"
	case *gogeom.MultiLineString:
		return "MultiLineString"
	case *gogeom.Polygon:
		return "Polygon"
	case *gogeom.MultiPolygon:
		return "MultiPolygon"
	case *gogeom.GeometryCollection:
		return "GeometryCollection"
	default:
		return ""
	}
}

// MarshalGeometry re-encodes a feature geometry as GeoJSON text for binding
// to ST_GeomFromGeoJSON. Geometry parsing stays inside PostGIS.
func MarshalGeometry(g gogeom.T) ([]byte, error) {
	if g == nil {
		return nil, eris.New("geojson: feature has no geometry")
	}
	data, err := geomjson.Marshal(g)
	if err != nil {
		return nil, eris.Wrap(err, "geojson: marshal geometry")
	}
	return data, nil
}

// decodeBytes applies the encoding fallback chain.
func decodeBytes(data []byte) ([]byte, string, error) {
	if utf8.Valid(data) {
		return data, "utf-8", nil
	}

	fallbacks := []struct {
		name string
		cm   *charmap.Charmap
	}{
		{"latin-1", charmap.ISO8859_1},
		{"windows-1252", charmap.Windows1252},
	}
	for _, fb := range fallbacks {
		decoded, err := fb.cm.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		return decoded, fb.name, nil
	}

	return nil, "", eris.New("geojson: could not decode file with utf-8, latin-1, or windows-1252")
}

// unmarshalUseNumber decodes JSON keeping numeric literals as json.Number.
func unmarshalUseNumber(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
