// Package shapefile reads Esri shapefiles into rows ready for COPY loading,
// with geometries encoded as EWKB in EPSG:4326.
package shapefile

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"
)

// EncodeWKB converts a go-shp geometry to EWKB bytes with SRID 4326.
// Returns nil, nil for unsupported or nil shapes.
func EncodeWKB(shape shp.Shape) ([]byte, error) {
	g := shapeGeom(shape)
	if g == nil {
		return nil, nil
	}

	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "shapefile: encode WKB")
	}
	return data, nil
}

// shapeGeom maps a shapefile record to its go-geom counterpart. Line and
// polygon records promote to the multi variant so single-part and
// multi-part records share one column type.
func shapeGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(4326)
	case *shp.MultiPoint:
		return newMultiPoint(s)
	case *shp.PolyLine:
		return newMultiLineString(s)
	case *shp.Polygon:
		return newMultiPolygon(s)
	default:
		return nil
	}
}

// columnType returns the PostGIS geometry column type a shape is stored
// under, mirroring the promotion in shapeGeom.
func columnType(shape shp.Shape) string {
	switch shape.(type) {
	case *shp.Point:
		return "POINT"
	case *shp.MultiPoint:
		return "MULTIPOINT"
	case *shp.PolyLine:
		return "MULTILINESTRING"
	case *shp.Polygon:
		return "MULTIPOLYGON"
	default:
		return ""
	}
}

func newMultiPoint(mp *shp.MultiPoint) geom.T {
	if mp == nil || len(mp.Points) == 0 {
		return nil
	}

	flat := make([]float64, 0, len(mp.Points)*2)
	for _, p := range mp.Points {
		flat = append(flat, p.X, p.Y)
	}
	return geom.NewMultiPointFlat(geom.XY, flat).SetSRID(4326)
}

func newMultiLineString(pl *shp.PolyLine) geom.T {
	if pl == nil || len(pl.Parts) == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY).SetSRID(4326)
	for i := range pl.Parts {
		ls := geom.NewLineStringFlat(geom.XY, partCoords(pl.Points, pl.Parts, i))
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("shapefile: dropping malformed polyline part", zap.Int("part", i), zap.Error(err))
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

func newMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || len(p.Parts) == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	for i := range p.Parts {
		ring := geom.NewLinearRingFlat(geom.XY, partCoords(p.Points, p.Parts, i))
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("shapefile: dropping malformed polygon ring", zap.Int("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("shapefile: dropping malformed polygon part", zap.Int("part", i), zap.Error(err))
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// partCoords returns the flat XY coordinates of part i. A record stores all
// parts in one Points array; Parts holds the start offset of each.
func partCoords(points []shp.Point, parts []int32, i int) []float64 {
	start := parts[i]
	end := int32(len(points))
	if i+1 < len(parts) {
		end = parts[i+1]
	}

	flat := make([]float64, 0, (end-start)*2)
	for _, p := range points[start:end] {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}
