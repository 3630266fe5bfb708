package geom

import (
	"math"
	"sort"

	"github.com/gwclose/gwclose/internal/feature"
)

// tEpsilon merges crossings that land on the same spot of a segment, which
// happens when a line passes through a ring vertex shared by two edges.
const tEpsilon = 1e-12

func sub(a, b feature.Point) feature.Point { return feature.Point{X: a.X - b.X, Y: a.Y - b.Y} }
func cross(a, b feature.Point) float64     { return a.X*b.Y - a.Y*b.X }
func dot(a, b feature.Point) float64       { return a.X*b.X + a.Y*b.Y }

func lerp(a, b feature.Point, t float64) feature.Point {
	return feature.Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}

// segmentCrossings returns the positions along a-b, as fractions of its
// length, where it meets the edge c-d. Collinear overlaps yield both ends of
// the overlap.
func segmentCrossings(a, b, c, d feature.Point) []float64 {
	r := sub(b, a)
	s := sub(d, c)
	qp := sub(c, a)
	denom := cross(r, s)
	if denom == 0 {
		if cross(qp, r) != 0 {
			return nil
		}
		rr := dot(r, r)
		if rr == 0 {
			return nil
		}
		var ts []float64
		for _, p := range [2]feature.Point{c, d} {
			if t := dot(sub(p, a), r) / rr; t >= 0 && t <= 1 {
				ts = append(ts, t)
			}
		}
		return ts
	}
	t := cross(qp, s) / denom
	u := cross(qp, r) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return nil
	}
	return []float64{t}
}

// crossings returns the sorted, de-duplicated crossings of a-b with every
// edge of every ring.
func crossings(a, b feature.Point, rings [][]feature.Point) []float64 {
	var ts []float64
	for _, ring := range rings {
		for i := 0; i+1 < len(ring); i++ {
			ts = append(ts, segmentCrossings(a, b, ring[i], ring[i+1])...)
		}
	}
	if len(ts) < 2 {
		return ts
	}
	sort.Float64s(ts)
	out := ts[:1]
	for _, t := range ts[1:] {
		if t-out[len(out)-1] > tEpsilon {
			out = append(out, t)
		}
	}
	return out
}

func appendPoint(l feature.Line, p feature.Point) feature.Line {
	if len(l) > 0 && l[len(l)-1] == p {
		return l
	}
	return append(l, p)
}

// splitLine cuts line at every point where it meets a ring. Each returned
// piece has at least two distinct points and lies wholly on one side of
// every ring.
func splitLine(line feature.Line, rings [][]feature.Point) []feature.Line {
	var pieces []feature.Line
	cur := feature.Line{line[0]}
	for i := 0; i+1 < len(line); i++ {
		a, b := line[i], line[i+1]
		for _, t := range crossings(a, b, rings) {
			var p feature.Point
			switch {
			case t <= 0:
				p = a
			case t >= 1:
				p = b
			default:
				p = lerp(a, b, t)
			}
			cur = appendPoint(cur, p)
			if len(cur) > 1 {
				pieces = append(pieces, cur)
			}
			cur = feature.Line{p}
		}
		cur = appendPoint(cur, b)
	}
	if len(cur) > 1 {
		pieces = append(pieces, cur)
	}
	return pieces
}

// pointAlong returns the point at distance dist from the start of l.
func pointAlong(l feature.Line, dist float64) feature.Point {
	for i := 1; i < len(l); i++ {
		seg := math.Hypot(l[i].X-l[i-1].X, l[i].Y-l[i-1].Y)
		if seg > 0 && dist <= seg {
			return lerp(l[i-1], l[i], dist/seg)
		}
		dist -= seg
	}
	return l[len(l)-1]
}
