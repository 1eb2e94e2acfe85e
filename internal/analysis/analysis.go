// Package analysis runs exploratory queries against an ingested point table:
// attribute roll-ups, radius and nearest-neighbour searches, and a GeoJSON
// export assembled server-side.
//
// Column names are discovered at query time, so the queries adapt to
// whatever attribute schema the source file carried. Roll-ups that need a
// column the table lacks are skipped rather than failed, mirroring how an
// analyst would probe an unfamiliar dataset.
package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/hazardmaps/floodrisk-cli/internal/catalog"
	"github.com/hazardmaps/floodrisk-cli/internal/db"
)

// TypeCount is one row of the count-by-type roll-up.
type TypeCount struct {
	Type  string
	Count int64
}

// CapacityRow is one row of the top-capacity listing.
type CapacityRow struct {
	Name  string
	Type  string
	Value float64
}

// QuadrantCount is one row of the bounding-box quadrant roll-up.
type QuadrantCount struct {
	Quadrant string
	Count    int64
}

// NearPlace is one result of a radius search.
type NearPlace struct {
	Name       string
	Type       string
	DistanceKm float64
}

// NearestPair matches a filtered row with its nearest non-matching
// neighbour.
type NearestPair struct {
	From       string
	To         string
	ToType     string
	DistanceKm float64
}

// Summary bundles the three roll-ups shown by a single summary run.
// Sections whose columns are missing from the table are left nil.
type Summary struct {
	TypeCounts []TypeCount
	Top        []CapacityRow
	Quadrants  []QuadrantCount
}

// nameColumns, typeColumns are the spellings accepted for the two
// well-known attribute roles.
var (
	nameColumns = []string{"name", "plant_name", "station_name"}
	typeColumns = []string{"type", "plant_type", "station_type"}
)

// Summarize runs the attribute and quadrant roll-ups for a table.
func Summarize(ctx context.Context, pool db.Pool, table string) (*Summary, error) {
	cols, err := tableColumns(ctx, pool, table)
	if err != nil {
		return nil, err
	}

	s := &Summary{}

	if typeCol, ok := findColumnIn(cols, typeColumns); ok {
		s.TypeCounts, err = countByColumn(ctx, pool, table, typeCol)
		if err != nil {
			return nil, err
		}
	}

	nameCol, hasName := findColumnIn(cols, nameColumns)
	typeCol, hasType := findColumnIn(cols, typeColumns)
	capCol, hasCap := findColumnFuzzy(cols, "capacity", "mw", "cap")
	if hasName && hasType && hasCap {
		s.Top, err = topByColumn(ctx, pool, table, nameCol, typeCol, capCol, 20)
		if err != nil {
			return nil, err
		}
	}

	s.Quadrants, err = Quadrants(ctx, pool, table)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// countByColumn groups the table by one attribute, largest group first.
func countByColumn(ctx context.Context, pool db.Pool, table, column string) ([]TypeCount, error) {
	sql := fmt.Sprintf(`
		SELECT %[1]s, COUNT(*) AS count
		FROM %[2]s
		GROUP BY %[1]s
		ORDER BY count DESC`,
		pgx.Identifier{column}.Sanitize(),
		pgx.Identifier{table}.Sanitize(),
	)

	rows, err := pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: count %s by %s", table, column)
	}
	defer rows.Close()

	var counts []TypeCount
	for rows.Next() {
		var (
			typ *string
			tc  TypeCount
		)
		if err := rows.Scan(&typ, &tc.Count); err != nil {
			return nil, eris.Wrap(err, "analysis: scan count row")
		}
		tc.Type = deref(typ)
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

// topByColumn lists the rows with the largest values of one numeric
// attribute, NULLs excluded.
func topByColumn(ctx context.Context, pool db.Pool, table, nameCol, typeCol, valueCol string, limit int) ([]CapacityRow, error) {
	sql := fmt.Sprintf(`
		SELECT %[1]s, %[2]s, %[3]s AS value
		FROM %[4]s
		WHERE %[3]s IS NOT NULL
		ORDER BY %[3]s DESC
		LIMIT $1`,
		pgx.Identifier{nameCol}.Sanitize(),
		pgx.Identifier{typeCol}.Sanitize(),
		pgx.Identifier{valueCol}.Sanitize(),
		pgx.Identifier{table}.Sanitize(),
	)

	rows, err := pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: top rows of %s by %s", table, valueCol)
	}
	defer rows.Close()

	var top []CapacityRow
	for rows.Next() {
		var (
			name, typ *string
			r         CapacityRow
		)
		if err := rows.Scan(&name, &typ, &r.Value); err != nil {
			return nil, eris.Wrap(err, "analysis: scan top row")
		}
		r.Name = deref(name)
		r.Type = deref(typ)
		top = append(top, r)
	}
	return top, rows.Err()
}

// Quadrants counts rows per bounding-box quadrant. The extent midpoints are
// computed in the same statement, so the split adapts to the data loaded.
func Quadrants(ctx context.Context, pool db.Pool, table string) ([]QuadrantCount, error) {
	if err := db.ValidateIdent(table); err != nil {
		return nil, err
	}

	quoted := pgx.Identifier{table}.Sanitize()
	sql := fmt.Sprintf(`
		WITH bounds AS (
			SELECT
				ST_XMin(ST_Extent(geom)) AS min_lon,
				ST_XMax(ST_Extent(geom)) AS max_lon,
				ST_YMin(ST_Extent(geom)) AS min_lat,
				ST_YMax(ST_Extent(geom)) AS max_lat
			FROM %[1]s
		),
		quadrants AS (
			SELECT
				CASE
					WHEN ST_X(geom) < (SELECT (min_lon + max_lon)/2 FROM bounds) THEN 'West'
					ELSE 'East'
				END AS longitude_half,
				CASE
					WHEN ST_Y(geom) < (SELECT (min_lat + max_lat)/2 FROM bounds) THEN 'South'
					ELSE 'North'
				END AS latitude_half
			FROM %[1]s
		)
		SELECT longitude_half || ' ' || latitude_half AS quadrant, COUNT(*) AS count
		FROM quadrants
		GROUP BY quadrant
		ORDER BY count DESC`, quoted)

	rows, err := pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: quadrant counts for %s", table)
	}
	defer rows.Close()

	var counts []QuadrantCount
	for rows.Next() {
		var qc QuadrantCount
		if err := rows.Scan(&qc.Quadrant, &qc.Count); err != nil {
			return nil, eris.Wrap(err, "analysis: scan quadrant row")
		}
		counts = append(counts, qc)
	}
	return counts, rows.Err()
}

// Near lists rows within radiusKm of a point, nearest first. Distances are
// computed over geography, so the radius is metric at any latitude.
func Near(ctx context.Context, pool db.Pool, table string, lon, lat, radiusKm float64, limit int) ([]NearPlace, error) {
	cols, err := tableColumns(ctx, pool, table)
	if err != nil {
		return nil, err
	}
	nameCol, ok := findColumnIn(cols, nameColumns)
	if !ok {
		return nil, eris.Errorf("analysis: table %s has no name column", table)
	}
	if limit <= 0 {
		limit = 100
	}

	sql := fmt.Sprintf(`
		SELECT %s, %s,
			ST_Distance(geom, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography)/1000 AS distance_km
		FROM %s
		WHERE ST_DWithin(geom, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance_km
		LIMIT $4`,
		pgx.Identifier{nameCol}.Sanitize(),
		columnOrNull(cols, typeColumns),
		pgx.Identifier{table}.Sanitize(),
	)

	rows, err := pool.Query(ctx, sql, lon, lat, radiusKm*1000, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: radius search on %s", table)
	}
	defer rows.Close()

	var places []NearPlace
	for rows.Next() {
		var (
			name, typ *string
			p         NearPlace
		)
		if err := rows.Scan(&name, &typ, &p.DistanceKm); err != nil {
			return nil, eris.Wrap(err, "analysis: scan radius row")
		}
		p.Name = deref(name)
		p.Type = deref(typ)
		places = append(places, p)
	}
	return places, rows.Err()
}

// Nearest pairs each row whose type matches the filter with its nearest
// neighbour of a different type, using the KNN index operator.
func Nearest(ctx context.Context, pool db.Pool, table, typeMatch string, limit int) ([]NearestPair, error) {
	cols, err := tableColumns(ctx, pool, table)
	if err != nil {
		return nil, err
	}
	nameCol, ok := findColumnIn(cols, nameColumns)
	if !ok {
		return nil, eris.Errorf("analysis: table %s has no name column", table)
	}
	typeCol, ok := findColumnIn(cols, typeColumns)
	if !ok {
		return nil, eris.Errorf("analysis: table %s has no type column", table)
	}
	if limit <= 0 {
		limit = 20
	}

	name := pgx.Identifier{nameCol}.Sanitize()
	typ := pgx.Identifier{typeCol}.Sanitize()
	quoted := pgx.Identifier{table}.Sanitize()
	sql := fmt.Sprintf(`
		WITH matched AS (
			SELECT id, %[1]s, geom
			FROM %[3]s
			WHERE %[2]s ILIKE $1
			LIMIT $2
		)
		SELECT
			m.%[1]s AS from_name,
			p.%[1]s AS nearest_name,
			p.%[2]s AS nearest_type,
			ST_Distance(m.geom, p.geom::geography)/1000 AS distance_km
		FROM matched m
		CROSS JOIN LATERAL (
			SELECT %[1]s, %[2]s, geom
			FROM %[3]s
			WHERE %[2]s NOT ILIKE $1
			ORDER BY m.geom <-> geom
			LIMIT 1
		) p
		ORDER BY distance_km
		LIMIT $2`, name, typ, quoted)

	rows, err := pool.Query(ctx, sql, "%"+typeMatch+"%", limit)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: nearest search on %s", table)
	}
	defer rows.Close()

	var pairs []NearestPair
	for rows.Next() {
		var (
			from, to, toType *string
			pair             NearestPair
		)
		if err := rows.Scan(&from, &to, &toType, &pair.DistanceKm); err != nil {
			return nil, eris.Wrap(err, "analysis: scan nearest row")
		}
		pair.From = deref(from)
		pair.To = deref(to)
		pair.ToType = deref(toType)
		pairs = append(pairs, pair)
	}
	return pairs, rows.Err()
}

// ExportGeoJSON renders up to limit rows as a FeatureCollection document,
// assembled entirely by PostGIS.
func ExportGeoJSON(ctx context.Context, pool db.Pool, table string, limit int) (string, error) {
	cols, err := tableColumns(ctx, pool, table)
	if err != nil {
		return "", err
	}
	nameCol, ok := findColumnIn(cols, nameColumns)
	if !ok {
		return "", eris.Errorf("analysis: table %s has no name column", table)
	}
	if limit <= 0 {
		limit = 100
	}

	include := []string{nameCol}
	if typeCol, ok := findColumnIn(cols, typeColumns); ok {
		include = append(include, typeCol)
	}
	if capCol, ok := findColumnFuzzy(cols, "capacity", "mw", "cap"); ok {
		include = append(include, capCol)
	}

	props := make([]string, 0, len(include))
	quoted := make([]string, 0, len(include))
	for _, c := range include {
		props = append(props, fmt.Sprintf("'%s', %s", strings.ReplaceAll(c, "'", "''"), pgx.Identifier{c}.Sanitize()))
		quoted = append(quoted, pgx.Identifier{c}.Sanitize())
	}

	sql := fmt.Sprintf(`
		SELECT json_build_object(
			'type', 'FeatureCollection',
			'features', json_agg(
				json_build_object(
					'type', 'Feature',
					'geometry', ST_AsGeoJSON(geom)::json,
					'properties', json_build_object('id', id, %s)
				)
			)
		)::text AS geojson
		FROM (
			SELECT id, %s, geom
			FROM %s
			LIMIT $1
		) sub`,
		strings.Join(props, ", "),
		strings.Join(quoted, ", "),
		pgx.Identifier{table}.Sanitize(),
	)

	var doc *string
	if err := pool.QueryRow(ctx, sql, limit).Scan(&doc); err != nil {
		return "", eris.Wrapf(err, "analysis: export %s as GeoJSON", table)
	}
	if doc == nil {
		return "", eris.Errorf("analysis: table %s is empty", table)
	}
	return *doc, nil
}

// tableColumns validates the table name and loads its column list.
func tableColumns(ctx context.Context, pool db.Pool, table string) ([]catalog.Column, error) {
	if err := db.ValidateIdent(table); err != nil {
		return nil, err
	}
	cols, err := catalog.Columns(ctx, pool, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, eris.Errorf("analysis: table %q not found", table)
	}
	return cols, nil
}

// findColumnIn resolves the first of the candidate spellings present.
func findColumnIn(cols []catalog.Column, candidates []string) (string, bool) {
	for _, want := range candidates {
		if name, ok := catalog.FindColumn(cols, want); ok {
			return name, true
		}
	}
	return "", false
}

// findColumnFuzzy resolves the first column whose name contains one of the
// substrings, checked in order.
func findColumnFuzzy(cols []catalog.Column, substrings ...string) (string, bool) {
	for _, sub := range substrings {
		for _, c := range cols {
			if strings.Contains(strings.ToLower(c.Name), sub) {
				return c.Name, true
			}
		}
	}
	return "", false
}

// columnOrNull resolves an optional column, substituting a typed NULL when
// the table does not carry any of the spellings.
func columnOrNull(cols []catalog.Column, candidates []string) string {
	if name, ok := findColumnIn(cols, candidates); ok {
		return pgx.Identifier{name}.Sanitize()
	}
	return "NULL::text"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
