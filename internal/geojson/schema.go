package geojson

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// postgisTypes maps GeoJSON geometry type names to PostGIS column types.
var postgisTypes = map[string]string{
	"Point":           "POINT",
	"LineString":      "LINESTRING",
	"Polygon":         "POLYGON",
	"MultiPoint":      "MULTIPOINT",
	"MultiLineString": "MULTILINESTRING",
	"MultiPolygon":    "MULTIPOLYGON",
}

// geometryFamilies groups single and multi variants that can share a column
// once promoted to the multi type.
var geometryFamilies = map[string]string{
	"Point":           "MULTIPOINT",
	"MultiPoint":      "MULTIPOINT",
	"LineString":      "MULTILINESTRING",
	"MultiLineString": "MULTILINESTRING",
	"Polygon":         "MULTIPOLYGON",
	"MultiPolygon":    "MULTIPOLYGON",
}

// columnGeometryType picks the PostGIS column type for the set of geometry
// type names observed in a collection. A multi variant promotes its whole
// family; geometry types from different families cannot share a typed column
// and are reported as a failure.
func columnGeometryType(types map[string]bool) (string, error) {
	if len(types) == 0 {
		return "", eris.New("geojson: no feature carries a geometry")
	}

	families := make(map[string]bool)
	for t := range types {
		fam, ok := geometryFamilies[t]
		if !ok {
			fam = "GEOMETRY"
		}
		families[fam] = true
	}
	if len(families) > 1 {
		var names []string
		for t := range types {
			names = append(names, t)
		}
		sort.Strings(names)
		return "", eris.Errorf("geojson: mixed geometry types %s cannot share one table", strings.Join(names, ", "))
	}

	switch {
	case types["MultiPolygon"]:
		return "MULTIPOLYGON", nil
	case types["MultiLineString"]:
		return "MULTILINESTRING", nil
	case types["MultiPoint"]:
		return "MULTIPOINT", nil
	}

	for t := range types {
		if pg, ok := postgisTypes[t]; ok {
			return pg, nil
		}
	}
	return "GEOMETRY", nil
}

// detectSRID pulls an EPSG code out of the collection's crs member,
// e.g. "EPSG:3857" or "urn:ogc:def:crs:EPSG::4326". Zero means undeclared.
func detectSRID(env *envelope) int {
	if env.CRS == nil || env.CRS.Type != "name" {
		return 0
	}
	name := env.CRS.Properties.Name
	if !strings.Contains(name, "EPSG") {
		return 0
	}
	parts := strings.Split(name, ":")
	srid, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0
	}
	return srid
}

// inferSchema derives attribute columns from the first feature's properties.
// json.Number literals keep the int/float distinction: integral literals
// become INTEGER, fractional ones NUMERIC.
func inferSchema(env *envelope) ([]Column, error) {
	if len(env.Features) == 0 {
		return nil, eris.New("geojson: collection has no features")
	}

	props := env.Features[0].Properties
	cols := make([]Column, 0, len(props))
	for name, value := range props {
		cols = append(cols, Column{Name: name, SQLType: inferSQLType(value)})
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })
	return cols, nil
}

// inferSQLType maps one property value to a column type.
func inferSQLType(value any) string {
	switch v := value.(type) {
	case json.Number:
		if _, err := strconv.ParseInt(v.String(), 10, 64); err == nil {
			return "INTEGER"
		}
		return "NUMERIC"
	case bool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}
