package shapefile

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hazardmaps/floodrisk-cli/internal/geojson"
)

// Dataset is a parsed shapefile: an attribute schema derived from the DBF
// header, the PostGIS geometry column type, and one row per record with the
// EWKB geometry appended as the final element.
type Dataset struct {
	Schema   []geojson.Column
	GeomType string
	Rows     [][]any
	Skipped  int
}

// Read parses a shapefile from disk.
func Read(path string) (*Dataset, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	schema := make([]geojson.Column, 0, len(fields))
	for _, f := range fields {
		schema = append(schema, fieldColumn(f))
	}

	ds := &Dataset{Schema: schema}

	for reader.Next() {
		_, shape := reader.Shape()
		if shape == nil {
			ds.Skipped++
			continue
		}

		if ds.GeomType == "" {
			ds.GeomType = columnType(shape)
		}

		wkb, err := EncodeWKB(shape)
		if err != nil {
			return nil, err
		}
		if wkb == nil {
			ds.Skipped++
			continue
		}

		row := make([]any, 0, len(schema)+1)
		for i, col := range schema {
			row = append(row, attributeValue(col.SQLType, reader.Attribute(i)))
		}
		row = append(row, wkb)
		ds.Rows = append(ds.Rows, row)
	}

	if ds.GeomType == "" {
		return nil, eris.Errorf("shapefile: %s contains no supported geometry records", path)
	}

	if ds.Skipped > 0 {
		zap.L().Debug("shapefile: skipped records",
			zap.String("path", path),
			zap.Int("skipped", ds.Skipped),
		)
	}

	return ds, nil
}

// fieldColumn maps one DBF field descriptor to a column. Numeric fields with
// no declared decimal places become INTEGER, logicals BOOLEAN, the rest TEXT.
func fieldColumn(f shp.Field) geojson.Column {
	name := strings.TrimRight(f.String(), "\x00")

	var sqlType string
	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 {
			sqlType = "INTEGER"
		} else {
			sqlType = "NUMERIC"
		}
	case 'F':
		sqlType = "NUMERIC"
	case 'L':
		sqlType = "BOOLEAN"
	default:
		sqlType = "TEXT"
	}

	return geojson.Column{Name: name, SQLType: sqlType}
}

// attributeValue parses one DBF attribute string into a typed value for
// binding. Blank attributes become NULL.
func attributeValue(sqlType, raw string) any {
	val := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if val == "" {
		return nil
	}

	switch sqlType {
	case "INTEGER":
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil
		}
		return n
	case "NUMERIC":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil
		}
		return f
	case "BOOLEAN":
		switch val {
		case "T", "t", "Y", "y":
			return true
		case "F", "f", "N", "n":
			return false
		}
		return nil
	default:
		return val
	}
}
