// Package risk answers the core question of the toolkit: which points of
// interest fall inside a dam's inundation polygons. All spatial work is
// delegated to PostGIS; the queries rely on every table storing geometry in
// EPSG:4326.
package risk

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hazardmaps/floodrisk-cli/internal/catalog"
	"github.com/hazardmaps/floodrisk-cli/internal/db"
)

// AllDams is the sentinel accepted in place of a dam name, matched
// case-insensitively.
const AllDams = "ALL"

// Options names the tables a query runs against. Attribute columns are
// discovered case-insensitively at query time, so tables ingested with
// upper-case source schemas work unchanged.
type Options struct {
	DamsTable   string
	PlantsTable string
	DamLimit    int // listing limit; <= 0 means no limit
}

// Dam is one row of the inundation-area listing.
type Dam struct {
	Name    string  `json:"name"`
	Type    string  `json:"type,omitempty"`
	AreaKm2 float64 `json:"area_sq_km"`
}

// Plant is one point of interest inside an inundation zone.
type Plant struct {
	Name        string   `json:"name"`
	Type        string   `json:"type,omitempty"`
	PrimaryFuel string   `json:"primary_fuel,omitempty"`
	CapacityMW  *float64 `json:"capacity_mw"`
}

// Section is one dam's slice of a report.
type Section struct {
	Dam    string  `json:"dam"`
	Plants []Plant `json:"plants"`
}

// Report aggregates sections for a single dam or for the ALL sentinel.
type Report struct {
	Sections []Section `json:"sections"`
	Total    int       `json:"total_plants_at_risk"`
}

// Dams lists dams ordered by inundation area, largest first. The area is
// computed over the geography type so the result is in square kilometres
// regardless of latitude.
func Dams(ctx context.Context, pool db.Pool, opts Options) ([]Dam, error) {
	if err := db.ValidateIdent(opts.DamsTable); err != nil {
		return nil, err
	}

	cols, err := catalog.Columns(ctx, pool, opts.DamsTable)
	if err != nil {
		return nil, err
	}
	nameCol, ok := catalog.FindColumn(cols, "name")
	if !ok {
		return nil, eris.Errorf("risk: table %s has no name column", opts.DamsTable)
	}

	sql := fmt.Sprintf(`
		SELECT %s, %s, ST_Area(geom::geography) / 1e6 AS area_sq_km
		FROM %s
		ORDER BY area_sq_km DESC`,
		pgx.Identifier{nameCol}.Sanitize(),
		columnOrNull(cols, "type", "", "text"),
		pgx.Identifier{opts.DamsTable}.Sanitize(),
	)

	var args []any
	if opts.DamLimit > 0 {
		sql += " LIMIT $1"
		args = append(args, opts.DamLimit)
	}

	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "risk: list dams in %s", opts.DamsTable)
	}
	defer rows.Close()

	var dams []Dam
	for rows.Next() {
		var (
			name, typ *string
			area      float64
		)
		if err := rows.Scan(&name, &typ, &area); err != nil {
			return nil, eris.Wrap(err, "risk: scan dam row")
		}
		dams = append(dams, Dam{Name: deref(name), Type: deref(typ), AreaKm2: area})
	}
	return dams, rows.Err()
}

// PlantsAtRisk lists the plants whose geometry intersects the named dam's
// inundation polygons, highest capacity first.
func PlantsAtRisk(ctx context.Context, pool db.Pool, opts Options, damName string) ([]Plant, error) {
	sql, err := plantsSQL(ctx, pool, opts, plantColumnsSelect)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, sql, damName)
	if err != nil {
		return nil, eris.Wrapf(err, "risk: query plants at risk for %q", damName)
	}
	defer rows.Close()

	var plants []Plant
	for rows.Next() {
		var (
			name, typ, fuel *string
			capacity        *float64
		)
		if err := rows.Scan(&name, &typ, &fuel, &capacity); err != nil {
			return nil, eris.Wrap(err, "risk: scan plant row")
		}
		plants = append(plants, Plant{
			Name:        deref(name),
			Type:        deref(typ),
			PrimaryFuel: deref(fuel),
			CapacityMW:  capacity,
		})
	}
	return plants, rows.Err()
}

// CountAtRisk counts the plants inside the named dam's inundation polygons.
func CountAtRisk(ctx context.Context, pool db.Pool, opts Options, damName string) (int64, error) {
	sql, err := plantsSQL(ctx, pool, opts, plantColumnsCount)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := pool.QueryRow(ctx, sql, damName).Scan(&count); err != nil {
		return 0, eris.Wrapf(err, "risk: count plants at risk for %q", damName)
	}
	return count, nil
}

// BuildReport assembles a report for one dam, for the ALL sentinel, or for
// the largest dam when the name is empty.
func BuildReport(ctx context.Context, pool db.Pool, opts Options, damName string) (*Report, error) {
	log := zap.L().With(zap.String("component", "risk"))

	var names []string
	switch {
	case strings.EqualFold(strings.TrimSpace(damName), AllDams):
		listOpts := opts
		listOpts.DamLimit = 0
		dams, err := Dams(ctx, pool, listOpts)
		if err != nil {
			return nil, err
		}
		for _, d := range dams {
			names = append(names, d.Name)
		}
	case strings.TrimSpace(damName) == "":
		listOpts := opts
		listOpts.DamLimit = 1
		dams, err := Dams(ctx, pool, listOpts)
		if err != nil {
			return nil, err
		}
		if len(dams) == 0 {
			return nil, eris.Errorf("risk: %s has no rows", opts.DamsTable)
		}
		names = []string{dams[0].Name}
		log.Info("no dam named, using largest by area", zap.String("dam", dams[0].Name))
	default:
		names = []string{strings.TrimSpace(damName)}
	}

	report := &Report{Sections: []Section{}}
	for _, name := range names {
		plants, err := PlantsAtRisk(ctx, pool, opts, name)
		if err != nil {
			return nil, err
		}
		report.Sections = append(report.Sections, Section{Dam: name, Plants: plants})
		report.Total += len(plants)
	}
	return report, nil
}

type plantProjection int

const (
	plantColumnsSelect plantProjection = iota
	plantColumnsCount
)

// plantsSQL builds the ST_Intersects join between the dams and plants
// tables. ST_Intersects rather than ST_Contains: a point on the polygon
// boundary still counts.
func plantsSQL(ctx context.Context, pool db.Pool, opts Options, proj plantProjection) (string, error) {
	if err := db.ValidateIdent(opts.DamsTable); err != nil {
		return "", err
	}
	if err := db.ValidateIdent(opts.PlantsTable); err != nil {
		return "", err
	}

	damCols, err := catalog.Columns(ctx, pool, opts.DamsTable)
	if err != nil {
		return "", err
	}
	damName, ok := catalog.FindColumn(damCols, "name")
	if !ok {
		return "", eris.Errorf("risk: table %s has no name column", opts.DamsTable)
	}

	selectList := "COUNT(*)"
	orderBy := ""
	if proj == plantColumnsSelect {
		plantCols, err := catalog.Columns(ctx, pool, opts.PlantsTable)
		if err != nil {
			return "", err
		}
		plantName, ok := catalog.FindColumn(plantCols, "name")
		if !ok {
			return "", eris.Errorf("risk: table %s has no name column", opts.PlantsTable)
		}
		selectList = strings.Join([]string{
			"p." + pgx.Identifier{plantName}.Sanitize(),
			columnOrNull(plantCols, "type", "p.", "text"),
			columnOrNull(plantCols, "prim_fuel", "p.", "text"),
			columnOrNull(plantCols, "summer_cap", "p.", "numeric"),
		}, ", ")
		orderBy = "\n\t\tORDER BY 4 DESC NULLS LAST"
	}

	sql := fmt.Sprintf(`
		SELECT %s
		FROM %s d
		JOIN %s p ON ST_Intersects(d.geom, p.geom)
		WHERE d.%s = $1%s`,
		selectList,
		pgx.Identifier{opts.DamsTable}.Sanitize(),
		pgx.Identifier{opts.PlantsTable}.Sanitize(),
		pgx.Identifier{damName}.Sanitize(),
		orderBy,
	)
	return sql, nil
}

// columnOrNull resolves an optional column, substituting a typed NULL when
// the table does not carry it.
func columnOrNull(cols []catalog.Column, want, prefix, cast string) string {
	if name, ok := catalog.FindColumn(cols, want); ok {
		return prefix + pgx.Identifier{name}.Sanitize()
	}
	return "NULL::" + cast
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
