package geom

import (
	"github.com/gwclose/gwclose/internal/feature"
	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geometry"
)

// Tidwall answers within tests with tidwall/geojson.
type Tidwall struct{ shared }

// Name of the provider.
func (Tidwall) Name() string { return "tidwall" }

// Within uses geojson LineString.Within against the clip polygon.
func (Tidwall) Within(f *feature.Feature, poly *feature.Polygon) bool {
	if f.Empty() {
		return false
	}
	gpoly := geojson.NewPolygon(tidwallPoly(poly))
	for _, l := range f.Lines {
		if len(l) < 2 {
			continue
		}
		ls := geojson.NewLineString(geometry.NewLine(tidwallPoints(l), nil))
		if !ls.Within(gpoly) {
			return false
		}
	}
	return true
}

// PointWithin uses geometry Poly.ContainsPoint, which counts the exterior
// boundary as inside.
func (Tidwall) PointWithin(p feature.Point, poly *feature.Polygon) bool {
	return tidwallPoly(poly).ContainsPoint(geometry.Point{X: p.X, Y: p.Y})
}

func tidwallPoints(points []feature.Point) []geometry.Point {
	out := make([]geometry.Point, len(points))
	for i, p := range points {
		out[i] = geometry.Point{X: p.X, Y: p.Y}
	}
	return out
}

func tidwallPoly(poly *feature.Polygon) *geometry.Poly {
	var holes [][]geometry.Point
	for _, h := range poly.Holes {
		holes = append(holes, tidwallPoints(h))
	}
	return geometry.NewPoly(tidwallPoints(poly.Exterior), holes, nil)
}
