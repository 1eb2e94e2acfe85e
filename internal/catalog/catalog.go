// Package catalog introspects the database side of the toolkit: which tables
// exist, their columns, their geometry registration, and the PostGIS version.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/hazardmaps/floodrisk-cli/internal/db"
)

// Table identifies one user table.
type Table struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}

// Column describes one column of a table.
type Column struct {
	Name      string `json:"name"`
	DataType  string `json:"data_type"`
	MaxLength *int   `json:"max_length,omitempty"`
	Nullable  bool   `json:"nullable"`
}

// GeometryColumn describes a geometry_columns registration.
type GeometryColumn struct {
	Column     string `json:"column"`
	Type       string `json:"type"`
	SRID       int    `json:"srid"`
	Dimensions int    `json:"dimensions"`
}

// Description bundles everything `tables` reports about one table.
type Description struct {
	Table    string           `json:"table"`
	Columns  []Column         `json:"columns"`
	Geometry []GeometryColumn `json:"geometry,omitempty"`
	RowCount int64            `json:"row_count"`
}

// PostGISVersion returns the server's PostGIS version string.
func PostGISVersion(ctx context.Context, pool db.Pool) (string, error) {
	var version string
	if err := pool.QueryRow(ctx, "SELECT postgis_version()").Scan(&version); err != nil {
		return "", eris.Wrap(err, "catalog: query postgis version")
	}
	return version, nil
}

// ListTables returns all user tables, ordered by schema then name.
func ListTables(ctx context.Context, pool db.Pool) ([]Table, error) {
	sql := `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		  AND table_type = 'BASE TABLE'
		ORDER BY table_schema, table_name
	`
	rows, err := pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: query tables")
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, eris.Wrap(err, "catalog: scan table row")
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "catalog: iterate table rows")
	}
	return tables, nil
}

// TableExists reports whether a table is present in the public schema.
func TableExists(ctx context.Context, pool db.Pool, table string) (bool, error) {
	sql := `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`
	var exists bool
	if err := pool.QueryRow(ctx, sql, table).Scan(&exists); err != nil {
		return false, eris.Wrapf(err, "catalog: check table %s", table)
	}
	return exists, nil
}

// Columns returns the columns of a table in ordinal order.
func Columns(ctx context.Context, pool db.Pool, table string) ([]Column, error) {
	sql := `
		SELECT column_name, data_type, character_maximum_length, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position
	`
	rows, err := pool.Query(ctx, sql, table)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: query columns of %s", table)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			c        Column
			nullable string
		)
		if err := rows.Scan(&c.Name, &c.DataType, &c.MaxLength, &nullable); err != nil {
			return nil, eris.Wrap(err, "catalog: scan column row")
		}
		c.Nullable = nullable == "YES"
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "catalog: iterate column rows")
	}
	return cols, nil
}

// FindColumn resolves a column by case-insensitive name, returning the actual
// (case-sensitive) name the table declares.
func FindColumn(cols []Column, name string) (string, bool) {
	for _, c := range cols {
		if strings.EqualFold(c.Name, name) {
			return c.Name, true
		}
	}
	return "", false
}

// GeometryColumns returns geometry_columns registrations for a table.
func GeometryColumns(ctx context.Context, pool db.Pool, table string) ([]GeometryColumn, error) {
	sql := `
		SELECT f_geometry_column, type, srid, coord_dimension
		FROM geometry_columns
		WHERE f_table_name = $1
	`
	rows, err := pool.Query(ctx, sql, table)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: query geometry columns of %s", table)
	}
	defer rows.Close()

	var geoms []GeometryColumn
	for rows.Next() {
		var g GeometryColumn
		if err := rows.Scan(&g.Column, &g.Type, &g.SRID, &g.Dimensions); err != nil {
			return nil, eris.Wrap(err, "catalog: scan geometry column row")
		}
		geoms = append(geoms, g)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "catalog: iterate geometry column rows")
	}
	return geoms, nil
}

// RowCount counts the rows of a table. The name is validated before being
// interpolated into the statement.
func RowCount(ctx context.Context, pool db.Pool, table string) (int64, error) {
	if err := db.ValidateIdent(table); err != nil {
		return 0, err
	}

	var count int64
	sql := fmt.Sprintf("SELECT COUNT(*) FROM %s", pgx.Identifier{table}.Sanitize())
	if err := pool.QueryRow(ctx, sql).Scan(&count); err != nil {
		return 0, eris.Wrapf(err, "catalog: count rows of %s", table)
	}
	return count, nil
}

// Describe assembles the full description of one table.
func Describe(ctx context.Context, pool db.Pool, table string) (*Description, error) {
	cols, err := Columns(ctx, pool, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, eris.Errorf("catalog: table %q not found", table)
	}

	geoms, err := GeometryColumns(ctx, pool, table)
	if err != nil {
		return nil, err
	}

	count, err := RowCount(ctx, pool, table)
	if err != nil {
		return nil, err
	}

	return &Description{
		Table:    table,
		Columns:  cols,
		Geometry: geoms,
		RowCount: count,
	}, nil
}
