// Package ingest loads GeoJSON and shapefile datasets into PostGIS tables.
//
// A run has two phases. Inspect parses the source file and derives the
// destination schema without touching the database; Load executes the DDL
// and writes the rows. The split lets callers show the plan and ask for
// confirmation in between.
package ingest

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hazardmaps/floodrisk-cli/internal/db"
	"github.com/hazardmaps/floodrisk-cli/internal/geojson"
	"github.com/hazardmaps/floodrisk-cli/internal/shapefile"
)

// Source formats accepted by Inspect.
const (
	FormatGeoJSON   = "geojson"
	FormatShapefile = "shapefile"
)

// Options configures an ingest run.
type Options struct {
	Table         string // destination table; empty = derived from the file name
	SourceSRID    int    // overrides CRS detection; 0 = detect, falling back to 4326
	ProgressEvery int    // insert progress log interval (default 100)
	BatchSize     int    // shapefile COPY batch size (default 5000)
}

// Plan describes what a run will do before any SQL is issued.
type Plan struct {
	Source    string
	Format    string
	Table     string
	SRID      int
	GeomType  string
	Schema    []geojson.Column
	Features  int
	Skipped   int
	CreateSQL string
	IndexSQL  string

	collection *geojson.Collection
	dataset    *shapefile.Dataset
}

// Result summarizes a completed run.
type Result struct {
	RunID    string
	Table    string
	Inserted int64
	SRID     int
	Duration time.Duration
}

// LogEntry is one recorded row of ingest_log.
type LogEntry struct {
	ID           string
	SourcePath   string
	TargetTable  string
	FeatureCount int
	SourceSRID   int
	IngestedAt   time.Time
}

// Inspect parses a source file and derives the destination table, schema,
// and DDL. Files ending in .shp take the shapefile path; everything else is
// treated as GeoJSON.
func Inspect(path string, opts Options) (*Plan, error) {
	table := opts.Table
	if table == "" {
		base := filepath.Base(path)
		table = strings.TrimSuffix(base, filepath.Ext(base))
	}
	table, err := db.NormalizeTable(table)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Source: path, Table: table}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		// COPY writes EWKB tagged with the storage SRID directly, so the
		// shapefile path cannot route coordinates through ST_Transform.
		if opts.SourceSRID != 0 && opts.SourceSRID != targetSRID {
			return nil, eris.Errorf("ingest: shapefile sources must already be in EPSG:%d, got %d", targetSRID, opts.SourceSRID)
		}
		ds, err := shapefile.Read(path)
		if err != nil {
			return nil, err
		}
		plan.Format = FormatShapefile
		plan.SRID = targetSRID
		plan.GeomType = ds.GeomType
		plan.Schema = ds.Schema
		plan.Features = len(ds.Rows)
		plan.Skipped = ds.Skipped
		plan.dataset = ds
	default:
		col, err := geojson.ReadFile(path)
		if err != nil {
			return nil, err
		}
		plan.Format = FormatGeoJSON
		plan.SRID = sourceSRID(col.SRID, opts.SourceSRID)
		plan.GeomType = col.ColumnType
		plan.Schema = col.Schema
		plan.Features = len(col.Features)
		plan.collection = col
	}

	create, index, err := BuildDDL(plan.Table, plan.Schema, plan.GeomType)
	if err != nil {
		return nil, err
	}
	plan.CreateSQL = create
	plan.IndexSQL = index
	return plan, nil
}

// Load executes a plan: creates the table and spatial index, loads every
// feature, and records the run in ingest_log. Inserts are not wrapped in a
// transaction; a failure aborts the run and keeps the rows already written.
func Load(ctx context.Context, pool db.Pool, plan *Plan, opts Options) (*Result, error) {
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 100
	}

	log := zap.L().With(
		zap.String("component", "ingest"),
		zap.String("table", plan.Table),
	)

	start := time.Now()

	if _, err := pool.Exec(ctx, plan.CreateSQL); err != nil {
		return nil, eris.Wrapf(err, "ingest: create table %s", plan.Table)
	}
	if _, err := pool.Exec(ctx, plan.IndexSQL); err != nil {
		return nil, eris.Wrapf(err, "ingest: create spatial index on %s", plan.Table)
	}

	var (
		inserted int64
		err      error
	)
	switch plan.Format {
	case FormatShapefile:
		inserted, err = loadDataset(ctx, pool, plan, opts)
	default:
		inserted, err = insertFeatures(ctx, pool, plan, opts, log)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:    uuid.NewString(),
		Table:    plan.Table,
		Inserted: inserted,
		SRID:     plan.SRID,
		Duration: time.Since(start),
	}

	if err := recordRun(ctx, pool, plan, res); err != nil {
		log.Warn("failed to record ingest run", zap.Error(err))
	}

	log.Info("ingest complete",
		zap.Int64("rows", res.Inserted),
		zap.Int("srid", res.SRID),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// insertFeatures writes one row per feature, geometry travelling as GeoJSON
// text for PostGIS to parse. Fails fast on the first bad row.
func insertFeatures(ctx context.Context, pool db.Pool, plan *Plan, opts Options, log *zap.Logger) (int64, error) {
	insertSQL := buildInsertSQL(plan.Table, plan.Schema)

	total := len(plan.collection.Features)
	var inserted int64
	for i, f := range plan.collection.Features {
		args := make([]any, 0, len(plan.Schema)+2)
		for _, c := range plan.Schema {
			args = append(args, argValue(f.Properties[c.Name]))
		}
		if f.Geometry == nil {
			args = append(args, nil)
		} else {
			gj, err := geojson.MarshalGeometry(f.Geometry)
			if err != nil {
				return inserted, eris.Wrapf(err, "ingest: feature %d", i)
			}
			args = append(args, gj)
		}
		args = append(args, plan.SRID)

		if _, err := pool.Exec(ctx, insertSQL, args...); err != nil {
			return inserted, eris.Wrapf(err, "ingest: insert feature %d into %s", i, plan.Table)
		}
		inserted++

		if int(inserted)%opts.ProgressEvery == 0 {
			log.Info("insert progress", zap.Int64("inserted", inserted), zap.Int("total", total))
		}
	}
	return inserted, nil
}

// loadDataset bulk-loads shapefile rows with COPY. Row geometries are EWKB
// already tagged with the storage SRID.
func loadDataset(ctx context.Context, pool db.Pool, plan *Plan, opts Options) (int64, error) {
	columns := make([]string, 0, len(plan.Schema)+1)
	for _, c := range plan.Schema {
		columns = append(columns, c.Name)
	}
	columns = append(columns, "geom")
	return db.CopyFromBatched(ctx, pool, plan.Table, columns, plan.dataset.Rows, opts.BatchSize)
}

// argValue normalizes a decoded property into a driver-friendly value.
// Numbers parsed with UseNumber become int64 or float64, and nested
// objects or arrays are re-encoded as JSON text for their TEXT column.
func argValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		return string(b)
	default:
		return v
	}
}

func sourceSRID(detected, override int) int {
	if override > 0 {
		return override
	}
	if detected > 0 {
		return detected
	}
	return targetSRID
}

func recordRun(ctx context.Context, pool db.Pool, plan *Plan, res *Result) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO ingest_log (id, source_path, target_table, feature_count, source_srid)
		VALUES ($1, $2, $3, $4, $5)`,
		res.RunID, plan.Source, plan.Table, res.Inserted, res.SRID,
	)
	if err != nil {
		return eris.Wrap(err, "ingest: record run")
	}
	return nil
}

// RecentRuns returns the latest ingest_log entries, newest first.
func RecentRuns(ctx context.Context, pool db.Pool, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := pool.Query(ctx, `
		SELECT id, source_path, target_table, feature_count, source_srid, ingested_at
		FROM ingest_log
		ORDER BY ingested_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: query ingest log")
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.SourcePath, &e.TargetTable, &e.FeatureCount, &e.SourceSRID, &e.IngestedAt); err != nil {
			return nil, eris.Wrap(err, "ingest: scan ingest log row")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
