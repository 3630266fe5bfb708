// Package feature holds the line and polygon data model shared by the clip
// pipeline, the trails dataset and the feature service client.
package feature

import (
	"math"
)

// Point is a planar coordinate. X is longitude and Y is latitude.
type Point struct {
	X, Y float64
}

// Line is an ordered sequence of points.
type Line []Point

// Length returns the planar length of the line.
func (l Line) Length() float64 {
	var d float64
	for i := 1; i < len(l); i++ {
		d += math.Hypot(l[i].X-l[i-1].X, l[i].Y-l[i-1].Y)
	}
	return d
}

// Clone returns a copy of the line.
func (l Line) Clone() Line {
	return append(Line(nil), l...)
}

// Rect is an axis aligned bounding box.
type Rect struct {
	Min, Max Point
}

// Empty returns true when the rect has never been extended.
func (r Rect) Empty() bool {
	return r.Min.X > r.Max.X || r.Min.Y > r.Max.Y
}

// Center of the rect.
func (r Rect) Center() Point {
	return Point{X: (r.Min.X + r.Max.X) / 2, Y: (r.Min.Y + r.Max.Y) / 2}
}

// Intersects returns true when the two rects share at least one point.
func (r Rect) Intersects(o Rect) bool {
	return !(r.Empty() || o.Empty() ||
		r.Min.X > o.Max.X || r.Max.X < o.Min.X ||
		r.Min.Y > o.Max.Y || r.Max.Y < o.Min.Y)
}

func emptyRect() Rect {
	inf := math.Inf(1)
	return Rect{Min: Point{inf, inf}, Max: Point{-inf, -inf}}
}

func (r *Rect) extend(p Point) {
	r.Min.X = math.Min(r.Min.X, p.X)
	r.Min.Y = math.Min(r.Min.Y, p.Y)
	r.Max.X = math.Max(r.Max.X, p.X)
	r.Max.Y = math.Max(r.Max.Y, p.Y)
}

// Properties are the scalar attributes attached to a feature.
type Properties map[string]interface{}

// Clone returns a shallow copy. Values are scalars so a shallow copy is a
// full copy.
func (p Properties) Clone() Properties {
	c := make(Properties, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Feature is a LineString or MultiLineString with properties.
type Feature struct {
	Properties Properties
	Lines      []Line
	// Multi is true when the geometry is a MultiLineString, even when it
	// holds a single part.
	Multi bool
}

// NewLineString returns a single part feature.
func NewLineString(line Line, props Properties) *Feature {
	if props == nil {
		props = Properties{}
	}
	return &Feature{Properties: props, Lines: []Line{line}}
}

// NewMultiLineString returns a multi part feature.
func NewMultiLineString(lines []Line, props Properties) *Feature {
	if props == nil {
		props = Properties{}
	}
	return &Feature{Properties: props, Lines: lines, Multi: true}
}

// Empty returns true when the feature has no drawable part.
func (f *Feature) Empty() bool {
	for _, l := range f.Lines {
		if len(l) > 1 {
			return false
		}
	}
	return true
}

// NumPoints returns the vertex count over every part.
func (f *Feature) NumPoints() int {
	var n int
	for _, l := range f.Lines {
		n += len(l)
	}
	return n
}

// Rect returns the bounding box of all parts.
func (f *Feature) Rect() Rect {
	r := emptyRect()
	for _, l := range f.Lines {
		for _, p := range l {
			r.extend(p)
		}
	}
	return r
}

// Clone deep copies the feature.
func (f *Feature) Clone() *Feature {
	lines := make([]Line, len(f.Lines))
	for i, l := range f.Lines {
		lines[i] = l.Clone()
	}
	return &Feature{
		Properties: f.Properties.Clone(),
		Lines:      lines,
		Multi:      f.Multi,
	}
}

// Collection is an ordered list of line features.
type Collection struct {
	Features []*Feature
	// Skipped counts input features that were not lines when decoding.
	Skipped int
}

// NewCollection wraps features in a collection.
func NewCollection(features []*Feature) *Collection {
	return &Collection{Features: features}
}

// Len returns the number of features.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Features)
}

// Rect returns the bounding box of every feature.
func (c *Collection) Rect() Rect {
	r := emptyRect()
	if c == nil {
		return r
	}
	for _, f := range c.Features {
		fr := f.Rect()
		if !fr.Empty() {
			r.extend(fr.Min)
			r.extend(fr.Max)
		}
	}
	return r
}

// NumParts returns the total part count.
func (c *Collection) NumParts() int {
	var n int
	if c == nil {
		return 0
	}
	for _, f := range c.Features {
		n += len(f.Lines)
	}
	return n
}
