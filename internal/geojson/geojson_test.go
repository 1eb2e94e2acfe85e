package geojson

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plantsJSON = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": [-111.89, 40.76]},
			"properties": {"NAME": "Gadsby", "TYPE": "Steam", "SUMMER_CAP": 252.4, "UNITS": 3, "ACTIVE": true}
		},
		{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": [-112.02, 41.10]},
			"properties": {"NAME": "Weber Basin", "TYPE": "Hydro", "SUMMER_CAP": 12.0, "UNITS": 1, "ACTIVE": false}
		}
	]
}`

func TestDecode_PointCollection(t *testing.T) {
	coll, err := Decode([]byte(plantsJSON))
	require.NoError(t, err)

	assert.Len(t, coll.Features, 2)
	assert.Equal(t, []string{"Point"}, coll.GeometryTypes)
	assert.Equal(t, "POINT", coll.ColumnType)
	assert.Equal(t, 0, coll.SRID)
	assert.Equal(t, "utf-8", coll.Encoding)

	// Name-sorted columns with inferred types.
	require.Len(t, coll.Schema, 5)
	assert.Equal(t, Column{Name: "ACTIVE", SQLType: "BOOLEAN"}, coll.Schema[0])
	assert.Equal(t, Column{Name: "NAME", SQLType: "TEXT"}, coll.Schema[1])
	assert.Equal(t, Column{Name: "SUMMER_CAP", SQLType: "NUMERIC"}, coll.Schema[2])
	assert.Equal(t, Column{Name: "TYPE", SQLType: "TEXT"}, coll.Schema[3])
	assert.Equal(t, Column{Name: "UNITS", SQLType: "INTEGER"}, coll.Schema[4])
}

func TestDecode_CRSDetection(t *testing.T) {
	tests := []struct {
		name string
		crs  string
		want int
	}{
		{"epsg colon form", `{"type": "name", "properties": {"name": "EPSG:3857"}}`, 3857},
		{"urn form", `{"type": "name", "properties": {"name": "urn:ogc:def:crs:EPSG::26912"}}`, 26912},
		{"non-epsg name", `{"type": "name", "properties": {"name": "CRS84"}}`, 0},
		{"non-numeric code", `{"type": "name", "properties": {"name": "EPSG:abc"}}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `{
				"type": "FeatureCollection",
				"crs": ` + tt.crs + `,
				"features": [
					{"type": "Feature", "geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {"a": 1}}
				]
			}`
			coll, err := Decode([]byte(doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, coll.SRID)
		})
	}
}

func TestDecode_PromotesPolygonFamily(t *testing.T) {
	doc := `{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"geometry": {"type": "Polygon", "coordinates": [[[0,0],[0,1],[1,1],[0,0]]]},
				"properties": {"NAME": "zone a"}
			},
			{
				"type": "Feature",
				"geometry": {"type": "MultiPolygon", "coordinates": [[[[2,2],[2,3],[3,3],[2,2]]]]},
				"properties": {"NAME": "zone b"}
			}
		]
	}`
	coll, err := Decode([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, []string{"MultiPolygon", "Polygon"}, coll.GeometryTypes)
	assert.Equal(t, "MULTIPOLYGON", coll.ColumnType)
}

func TestDecode_MixedFamiliesRejected(t *testing.T) {
	doc := `{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {}},
			{"type": "Feature", "geometry": {"type": "Polygon", "coordinates": [[[0,0],[0,1],[1,1],[0,0]]]}, "properties": {}}
		]
	}`
	_, err := Decode([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mixed geometry types")
	assert.Contains(t, err.Error(), "Point")
	assert.Contains(t, err.Error(), "Polygon")
}

func TestDecode_LatinOneFallback(t *testing.T) {
	// 0xE9 is é in Latin-1 and an invalid byte sequence in UTF-8.
	doc := []byte(`{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {"NAME": "R` + "\xe9" + `servoir"}}
		]
	}`)
	coll, err := Decode(doc)
	require.NoError(t, err)
	assert.Equal(t, "latin-1", coll.Encoding)
	assert.Equal(t, "Réservoir", coll.Features[0].Properties["NAME"])
}

func TestDecode_NotAFeatureCollection(t *testing.T) {
	_, err := Decode([]byte(`{"type": "Feature", "geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a FeatureCollection")
}

func TestDecode_EmptyCollection(t *testing.T) {
	_, err := Decode([]byte(`{"type": "FeatureCollection", "features": []}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no features")
}

func TestDecode_MalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{"type": "FeatureCollection", "features": [`))
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plants.geojson")
	require.NoError(t, os.WriteFile(path, []byte(plantsJSON), 0644))

	coll, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, coll.Features, 2)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.geojson"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read")
}

func TestMarshalGeometry(t *testing.T) {
	coll, err := Decode([]byte(plantsJSON))
	require.NoError(t, err)

	data, err := MarshalGeometry(coll.Features[0].Geometry)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"Point"`)

	_, err = MarshalGeometry(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no geometry")
}
