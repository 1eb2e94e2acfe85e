package shapefile

import (
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWKB_Point(t *testing.T) {
	p := &shp.Point{X: -111.89, Y: 40.76}
	wkb, err := EncodeWKB(p)

	require.NoError(t, err)
	assert.NotNil(t, wkb)
	assert.True(t, len(wkb) > 0)
}

func TestEncodeWKB_Polygon(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 1,
		Parts:    []int32{0},
		Points: []shp.Point{
			{X: -112.0, Y: 40.0},
			{X: -112.0, Y: 41.0},
			{X: -111.0, Y: 41.0},
			{X: -111.0, Y: 40.0},
			{X: -112.0, Y: 40.0}, // closed ring
		},
	}

	wkb, err := EncodeWKB(poly)
	require.NoError(t, err)
	assert.NotNil(t, wkb)
	assert.True(t, len(wkb) > 0)
}

func TestEncodeWKB_PolyLine(t *testing.T) {
	pl := &shp.PolyLine{
		NumParts: 1,
		Parts:    []int32{0},
		Points: []shp.Point{
			{X: -112.0, Y: 40.0},
			{X: -112.1, Y: 40.1},
			{X: -112.2, Y: 40.2},
		},
	}

	wkb, err := EncodeWKB(pl)
	require.NoError(t, err)
	assert.NotNil(t, wkb)
}

func TestEncodeWKB_MultiPoint(t *testing.T) {
	mp := &shp.MultiPoint{
		NumPoints: 2,
		Points: []shp.Point{
			{X: -112.0, Y: 40.0},
			{X: -111.5, Y: 40.5},
		},
	}

	wkb, err := EncodeWKB(mp)
	require.NoError(t, err)
	assert.NotNil(t, wkb)
}

func TestEncodeWKB_MultiPartPolygon(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 2,
		Parts:    []int32{0, 5},
		Points: []shp.Point{
			// Ring 1
			{X: -112.0, Y: 40.0},
			{X: -112.0, Y: 41.0},
			{X: -111.0, Y: 41.0},
			{X: -111.0, Y: 40.0},
			{X: -112.0, Y: 40.0},
			// Ring 2
			{X: -113.0, Y: 41.0},
			{X: -113.0, Y: 42.0},
			{X: -112.0, Y: 42.0},
			{X: -112.0, Y: 41.0},
			{X: -113.0, Y: 41.0},
		},
	}

	wkb, err := EncodeWKB(poly)
	require.NoError(t, err)
	assert.NotNil(t, wkb)
}

func TestEncodeWKB_NilShape(t *testing.T) {
	wkb, err := EncodeWKB(nil)
	require.NoError(t, err)
	assert.Nil(t, wkb)
}

func TestEncodeWKB_EmptyPolygon(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 0,
		Parts:    nil,
		Points:   nil,
	}

	wkb, err := EncodeWKB(poly)
	require.NoError(t, err)
	assert.Nil(t, wkb)
}

func TestColumnType(t *testing.T) {
	assert.Equal(t, "POINT", columnType(&shp.Point{}))
	assert.Equal(t, "MULTIPOINT", columnType(&shp.MultiPoint{}))
	assert.Equal(t, "MULTILINESTRING", columnType(&shp.PolyLine{}))
	assert.Equal(t, "MULTIPOLYGON", columnType(&shp.Polygon{}))
	assert.Equal(t, "", columnType(&shp.Null{}))
}

// namedField builds a DBF field descriptor for typing tests.
func namedField(name string, ftype byte, precision uint8) shp.Field {
	var f shp.Field
	copy(f.Name[:], name)
	f.Fieldtype = ftype
	f.Precision = precision
	return f
}

func TestFieldColumn(t *testing.T) {
	tests := []struct {
		name     string
		field    shp.Field
		wantName string
		wantSQL  string
	}{
		{"character", namedField("NAME", 'C', 0), "NAME", "TEXT"},
		{"integer numeric", namedField("UNITS", 'N', 0), "UNITS", "INTEGER"},
		{"decimal numeric", namedField("SUMMER_CAP", 'N', 2), "SUMMER_CAP", "NUMERIC"},
		{"float", namedField("AREA", 'F', 6), "AREA", "NUMERIC"},
		{"logical", namedField("ACTIVE", 'L', 0), "ACTIVE", "BOOLEAN"},
		{"date", namedField("BUILT", 'D', 0), "BUILT", "TEXT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := fieldColumn(tt.field)
			assert.Equal(t, tt.wantName, col.Name)
			assert.Equal(t, tt.wantSQL, col.SQLType)
		})
	}
}

func TestAttributeValue(t *testing.T) {
	tests := []struct {
		name    string
		sqlType string
		raw     string
		want    any
	}{
		{"text", "TEXT", "Gadsby\x00\x00", "Gadsby"},
		{"blank is null", "TEXT", "   ", nil},
		{"integer", "INTEGER", "42", int64(42)},
		{"bad integer is null", "INTEGER", "4x", nil},
		{"numeric", "NUMERIC", "252.40", 252.4},
		{"bad numeric is null", "NUMERIC", "n/a", nil},
		{"bool true", "BOOLEAN", "T", true},
		{"bool false", "BOOLEAN", "n", false},
		{"bool unknown is null", "BOOLEAN", "?", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, attributeValue(tt.sqlType, tt.raw))
		})
	}
}
