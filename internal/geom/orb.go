package geom

import (
	"github.com/gwclose/gwclose/internal/feature"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Orb answers within tests with paulmach/orb planar containment.
type Orb struct{ shared }

// Name of the provider.
func (Orb) Name() string { return "orb" }

// Within splits each part at the rings and requires every piece to be
// contained. Pieces never straddle a ring, so one sample per piece decides
// it.
func (Orb) Within(f *feature.Feature, poly *feature.Polygon) bool {
	if f.Empty() {
		return false
	}
	op := orbPolygon(poly)
	rings := poly.Rings()
	for _, l := range f.Lines {
		if len(l) < 2 {
			continue
		}
		if !op.Bound().Intersects(orbLine(l).Bound()) {
			return false
		}
		for _, piece := range splitLine(l, rings) {
			mid := pointAlong(piece, piece.Length()/2)
			if !planar.PolygonContains(op, orb.Point{mid.X, mid.Y}) {
				return false
			}
		}
	}
	return true
}

// PointWithin uses planar.PolygonContains. Points on the exterior boundary
// are inside.
func (Orb) PointWithin(p feature.Point, poly *feature.Polygon) bool {
	return planar.PolygonContains(orbPolygon(poly), orb.Point{p.X, p.Y})
}

func orbLine(l feature.Line) orb.LineString {
	ls := make(orb.LineString, len(l))
	for i, p := range l {
		ls[i] = orb.Point{p.X, p.Y}
	}
	return ls
}

func orbPolygon(poly *feature.Polygon) orb.Polygon {
	rings := poly.Rings()
	op := make(orb.Polygon, 0, len(rings))
	for _, ring := range rings {
		r := make(orb.Ring, len(ring))
		for i, p := range ring {
			r[i] = orb.Point{p.X, p.Y}
		}
		op = append(op, r)
	}
	return op
}
