package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardmaps/floodrisk-cli/internal/risk"
)

var serveTestOpts = risk.Options{
	DamsTable:   "utah_dams",
	PlantsTable: "power_plants",
	DamLimit:    50,
}

func newTestRouter(t *testing.T) (http.Handler, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return newRouter(mock, serveTestOpts, []string{"*"}), mock
}

// columnRows builds an information_schema.columns result.
func columnRows(names ...string) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"column_name", "data_type", "character_maximum_length", "is_nullable"})
	for _, n := range names {
		rows.AddRow(n, "text", nil, "YES")
	}
	return rows
}

func sp(s string) *string { return &s }

func TestRouter_Healthz(t *testing.T) {
	router, mock := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_Tables(t *testing.T) {
	router, mock := newTestRouter(t)

	rows := pgxmock.NewRows([]string{"table_schema", "table_name"}).
		AddRow("public", "power_plants").
		AddRow("public", "utah_dams")
	mock.ExpectQuery("SELECT table_schema, table_name").WillReturnRows(rows)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tables", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Tables []struct {
			Schema string `json:"schema"`
			Name   string `json:"name"`
		} `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Tables, 2)
	assert.Equal(t, "power_plants", body.Tables[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_Tables_QueryError(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT table_schema, table_name").
		WillReturnError(fmt.Errorf("connection refused"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tables", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "list tables failed")
	assert.NotContains(t, rr.Body.String(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_DescribeTable(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT column_name, data_type").
		WithArgs("power_plants").
		WillReturnRows(columnRows("id", "NAME", "geom"))
	mock.ExpectQuery("FROM geometry_columns").
		WithArgs("power_plants").
		WillReturnRows(pgxmock.NewRows([]string{"f_geometry_column", "type", "srid", "coord_dimension"}).
			AddRow("geom", "POINT", 4326, 2))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(167)))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tables/power_plants", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Table    string `json:"table"`
		RowCount int64  `json:"row_count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "power_plants", body.Table)
	assert.Equal(t, int64(167), body.RowCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_DescribeTable_RejectsBadName(t *testing.T) {
	router, mock := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tables/bad%3Bname", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid table name")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_Dams(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT column_name, data_type").
		WithArgs("utah_dams").
		WillReturnRows(columnRows("id", "NAME", "TYPE", "geom"))
	mock.ExpectQuery("ST_Area").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows([]string{"NAME", "TYPE", "area_sq_km"}).
			AddRow(sp("Jordanelle"), sp("Hydro"), 125.5))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dams", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Dams []risk.Dam `json:"dams"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Dams, 1)
	assert.Equal(t, "Jordanelle", body.Dams[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_Dams_LimitParam(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT column_name, data_type").
		WithArgs("utah_dams").
		WillReturnRows(columnRows("id", "NAME", "geom"))
	mock.ExpectQuery("ST_Area").
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows([]string{"NAME", "TYPE", "area_sq_km"}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dams?limit=5", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_Dams_BadLimit(t *testing.T) {
	router, mock := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dams?limit=lots", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "limit must be an integer")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_DamPlants(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT column_name, data_type").
		WithArgs("utah_dams").
		WillReturnRows(columnRows("id", "NAME", "geom"))
	mock.ExpectQuery("SELECT column_name, data_type").
		WithArgs("power_plants").
		WillReturnRows(columnRows("id", "NAME", "TYPE", "PRIM_FUEL", "SUMMER_CAP", "geom"))
	mock.ExpectQuery("ST_Intersects").
		WithArgs("Deer Creek").
		WillReturnRows(pgxmock.NewRows([]string{"NAME", "TYPE", "PRIM_FUEL", "SUMMER_CAP"}).
			AddRow(sp("Olmsted"), sp("Hydro"), nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dams/Deer%20Creek/plants", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Dam    string       `json:"dam"`
		Plants []risk.Plant `json:"plants"`
		Count  int          `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Deer Creek", body.Dam)
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Plants, 1)
	assert.Equal(t, "Olmsted", body.Plants[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_RiskReport(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT column_name, data_type").
		WithArgs("utah_dams").
		WillReturnRows(columnRows("id", "NAME", "geom"))
	mock.ExpectQuery("SELECT column_name, data_type").
		WithArgs("power_plants").
		WillReturnRows(columnRows("id", "NAME", "TYPE", "PRIM_FUEL", "SUMMER_CAP", "geom"))
	mock.ExpectQuery("ST_Intersects").
		WithArgs("Jordanelle").
		WillReturnRows(pgxmock.NewRows([]string{"NAME", "TYPE", "PRIM_FUEL", "SUMMER_CAP"}).
			AddRow(sp("Gadsby"), sp("Steam"), sp("NG"), nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/risk/report?dam=Jordanelle", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var body risk.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Sections, 1)
	assert.Equal(t, "Jordanelle", body.Sections[0].Dam)
	assert.Equal(t, 1, body.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router, mock := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tables", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
