package feature

import (
	"errors"
	"math"
)

// ErrInvalidPolygon is returned for clip polygons that cannot enclose
// anything.
var ErrInvalidPolygon = errors.New("invalid polygon: need at least 3 vertices and a non-zero area")

// Polygon is a closed exterior ring with optional holes. Rings are always
// closed, the first point is repeated at the end.
type Polygon struct {
	Exterior []Point
	Holes    [][]Point
}

// NewPolygon closes every ring and returns the polygon.
func NewPolygon(exterior []Point, holes [][]Point) *Polygon {
	poly := &Polygon{Exterior: closeRing(exterior)}
	for _, h := range holes {
		if len(h) > 0 {
			poly.Holes = append(poly.Holes, closeRing(h))
		}
	}
	return poly
}

func closeRing(ring []Point) []Point {
	ring = append([]Point(nil), ring...)
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}

// Rings returns the exterior followed by the holes.
func (p *Polygon) Rings() [][]Point {
	rings := make([][]Point, 0, 1+len(p.Holes))
	rings = append(rings, p.Exterior)
	return append(rings, p.Holes...)
}

// Rect returns the bounding box of the exterior ring.
func (p *Polygon) Rect() Rect {
	r := emptyRect()
	for _, pt := range p.Exterior {
		r.extend(pt)
	}
	return r
}

// Area returns the unsigned area of the exterior minus the holes.
func (p *Polygon) Area() float64 {
	a := math.Abs(ringArea(p.Exterior))
	for _, h := range p.Holes {
		a -= math.Abs(ringArea(h))
	}
	return a
}

// Validate checks that the exterior has at least 3 distinct vertices and a
// non-zero area.
func (p *Polygon) Validate() error {
	if p == nil {
		return ErrInvalidPolygon
	}
	distinct := make(map[Point]struct{}, len(p.Exterior))
	for _, pt := range p.Exterior {
		distinct[pt] = struct{}{}
	}
	if len(distinct) < 3 || p.Area() == 0 {
		return ErrInvalidPolygon
	}
	return nil
}

func ringArea(ring []Point) float64 {
	var a float64
	for i := 0; i+1 < len(ring); i++ {
		a += ring[i].X*ring[i+1].Y - ring[i+1].X*ring[i].Y
	}
	return a / 2
}
