package ingest

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/hazardmaps/floodrisk-cli/internal/db"
	"github.com/hazardmaps/floodrisk-cli/internal/geojson"
)

// targetSRID is the storage CRS for every table the ingestor creates.
// Spatial predicates across tables rely on all geometry sharing it.
const targetSRID = 4326

// BuildDDL returns the CREATE TABLE and CREATE INDEX statements for a
// destination table. Both use IF NOT EXISTS, so re-ingesting into the same
// table is idempotent at the DDL level. The id and geom columns are
// synthesized; an inferred attribute may not reuse those names.
func BuildDDL(table string, schema []geojson.Column, geomType string) (string, string, error) {
	if err := db.ValidateIdent(table); err != nil {
		return "", "", err
	}
	if geomType == "" {
		return "", "", eris.New("ingest: destination geometry type is empty")
	}

	cols := make([]string, 0, len(schema)+2)
	cols = append(cols, "id SERIAL PRIMARY KEY")
	for _, c := range schema {
		switch strings.ToLower(c.Name) {
		case "id", "geom":
			return "", "", eris.Errorf("ingest: attribute %q collides with a generated column", c.Name)
		}
		cols = append(cols, fmt.Sprintf("%s %s", pgx.Identifier{c.Name}.Sanitize(), c.SQLType))
	}
	cols = append(cols, fmt.Sprintf("geom GEOMETRY(%s, %d)", geomType, targetSRID))

	create := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(cols, ",\n\t"),
	)
	index := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (geom)",
		pgx.Identifier{fmt.Sprintf("idx_%s_geom", table)}.Sanitize(),
		pgx.Identifier{table}.Sanitize(),
	)
	return create, index, nil
}

// buildInsertSQL renders the per-feature INSERT statement. The final two
// placeholders carry the GeoJSON geometry text and its source SRID; PostGIS
// parses the geometry and reprojects it to the storage CRS server-side.
func buildInsertSQL(table string, schema []geojson.Column) string {
	cols := make([]string, 0, len(schema)+1)
	params := make([]string, 0, len(schema)+1)
	for i, c := range schema {
		cols = append(cols, pgx.Identifier{c.Name}.Sanitize())
		params = append(params, fmt.Sprintf("$%d", i+1))
	}
	cols = append(cols, "geom")
	params = append(params, fmt.Sprintf(
		"ST_Transform(ST_SetSRID(ST_GeomFromGeoJSON($%d), $%d), %d)",
		len(schema)+1, len(schema)+2, targetSRID,
	))

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(cols, ", "),
		strings.Join(params, ", "),
	)
}
