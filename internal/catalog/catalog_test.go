package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostGISVersion(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT postgis_version").
		WillReturnRows(pgxmock.NewRows([]string{"postgis_version"}).AddRow("3.4 USE_GEOS=1 USE_PROJ=1"))

	version, err := PostGISVersion(context.Background(), mock)
	require.NoError(t, err)
	assert.Contains(t, version, "3.4")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostGISVersion_NoExtension(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT postgis_version").
		WillReturnError(fmt.Errorf("function postgis_version() does not exist"))

	_, err = PostGISVersion(context.Background(), mock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query postgis version")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTables(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"table_schema", "table_name"}).
		AddRow("public", "power_plants").
		AddRow("public", "utah_dams")
	mock.ExpectQuery("SELECT table_schema, table_name").WillReturnRows(rows)

	tables, err := ListTables(context.Background(), mock)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, Table{Schema: "public", Name: "power_plants"}, tables[0])
	assert.Equal(t, Table{Schema: "public", Name: "utah_dams"}, tables[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableExists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("utah_dams").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := TableExists(context.Background(), mock, "utah_dams")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestColumns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	maxLen := 80
	rows := pgxmock.NewRows([]string{"column_name", "data_type", "character_maximum_length", "is_nullable"}).
		AddRow("id", "integer", nil, "NO").
		AddRow("NAME", "character varying", &maxLen, "YES").
		AddRow("geom", "USER-DEFINED", nil, "YES")
	mock.ExpectQuery("SELECT column_name, data_type").
		WithArgs("power_plants").
		WillReturnRows(rows)

	cols, err := Columns(context.Background(), mock, "power_plants")
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "id", cols[0].Name)
	assert.False(t, cols[0].Nullable)
	assert.Equal(t, "NAME", cols[1].Name)
	assert.True(t, cols[1].Nullable)
	require.NotNil(t, cols[1].MaxLength)
	assert.Equal(t, 80, *cols[1].MaxLength)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindColumn(t *testing.T) {
	cols := []Column{
		{Name: "id"},
		{Name: "NAME"},
		{Name: "Summer_Cap"},
	}

	name, ok := FindColumn(cols, "name")
	assert.True(t, ok)
	assert.Equal(t, "NAME", name)

	name, ok = FindColumn(cols, "SUMMER_CAP")
	assert.True(t, ok)
	assert.Equal(t, "Summer_Cap", name)

	_, ok = FindColumn(cols, "missing")
	assert.False(t, ok)
}

func TestGeometryColumns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"f_geometry_column", "type", "srid", "coord_dimension"}).
		AddRow("geom", "MULTIPOLYGON", 4326, 2)
	mock.ExpectQuery("SELECT f_geometry_column, type, srid").
		WithArgs("utah_dams").
		WillReturnRows(rows)

	geoms, err := GeometryColumns(context.Background(), mock, "utah_dams")
	require.NoError(t, err)
	require.Len(t, geoms, 1)
	assert.Equal(t, GeometryColumn{Column: "geom", Type: "MULTIPOLYGON", SRID: 4326, Dimensions: 2}, geoms[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRowCount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "power_plants"`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(167)))

	count, err := RowCount(context.Background(), mock, "power_plants")
	require.NoError(t, err)
	assert.Equal(t, int64(167), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRowCount_RejectsBadIdent(t *testing.T) {
	_, err := RowCount(context.Background(), nil, "plants; DROP TABLE plants")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid identifier")
}

func TestDescribe(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	colRows := pgxmock.NewRows([]string{"column_name", "data_type", "character_maximum_length", "is_nullable"}).
		AddRow("id", "integer", nil, "NO").
		AddRow("geom", "USER-DEFINED", nil, "YES")
	mock.ExpectQuery("SELECT column_name, data_type").
		WithArgs("utah_dams").
		WillReturnRows(colRows)

	geomRows := pgxmock.NewRows([]string{"f_geometry_column", "type", "srid", "coord_dimension"}).
		AddRow("geom", "MULTIPOLYGON", 4326, 2)
	mock.ExpectQuery("SELECT f_geometry_column, type, srid").
		WithArgs("utah_dams").
		WillReturnRows(geomRows)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "utah_dams"`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(24)))

	desc, err := Describe(context.Background(), mock, "utah_dams")
	require.NoError(t, err)
	assert.Equal(t, "utah_dams", desc.Table)
	assert.Len(t, desc.Columns, 2)
	assert.Len(t, desc.Geometry, 1)
	assert.Equal(t, int64(24), desc.RowCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDescribe_UnknownTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT column_name, data_type").
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows([]string{"column_name", "data_type", "character_maximum_length", "is_nullable"}))

	_, err = Describe(context.Background(), mock, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
