// Package geom is the geometry capability set the clip pipeline depends on.
// Each Provider pins one library's within semantics; splitting, point
// sampling, flattening and combining are shared.
package geom

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gwclose/gwclose/internal/feature"
)

// ErrNothingToCombine is returned by Combine when there are no parts.
var ErrNothingToCombine = errors.New("nothing to combine")

// Provider is the set of geometry primitives used by the clip pipeline.
type Provider interface {
	// Name of the provider.
	Name() string
	// Within reports whether every part of f lies inside poly. The exterior
	// boundary counts as inside.
	Within(f *feature.Feature, poly *feature.Polygon) bool
	// PointWithin reports whether p lies inside poly.
	PointWithin(p feature.Point, poly *feature.Polygon) bool
	// SplitLine splits every part of f where it meets a ring of poly.
	SplitLine(f *feature.Feature, poly *feature.Polygon) []*feature.Feature
	// PointOnFeature returns a point that lies on f.
	PointOnFeature(f *feature.Feature) feature.Point
	// Flatten explodes a multi part feature into single part features.
	Flatten(f *feature.Feature) []*feature.Feature
	// Combine merges single part features into one multi part feature.
	Combine(fs []*feature.Feature) (*feature.Feature, error)
}

// ByName returns the provider registered under name.
func ByName(name string) (Provider, error) {
	switch strings.ToLower(name) {
	case "", "tidwall", "geojson":
		return Tidwall{}, nil
	case "orb", "planar":
		return Orb{}, nil
	}
	return nil, fmt.Errorf("unknown geometry provider '%s'", name)
}

// shared implements everything but the within tests.
type shared struct{}

func (shared) SplitLine(f *feature.Feature, poly *feature.Polygon) []*feature.Feature {
	rings := poly.Rings()
	var out []*feature.Feature
	for _, part := range f.Lines {
		if len(part) < 2 {
			continue
		}
		for _, piece := range splitLine(part, rings) {
			out = append(out, feature.NewLineString(piece, f.Properties.Clone()))
		}
	}
	return out
}

func (shared) PointOnFeature(f *feature.Feature) feature.Point {
	var longest feature.Line
	var max float64 = -1
	for _, l := range f.Lines {
		if d := l.Length(); d > max {
			longest, max = l, d
		}
	}
	if len(longest) == 0 {
		return feature.Point{}
	}
	return pointAlong(longest, max/2)
}

func (shared) Flatten(f *feature.Feature) []*feature.Feature {
	return Flatten(f)
}

// Flatten returns one single part feature per part of f, each carrying a
// copy of the properties. A single part feature is returned as is.
func Flatten(f *feature.Feature) []*feature.Feature {
	if !f.Multi && len(f.Lines) == 1 {
		return []*feature.Feature{f}
	}
	out := make([]*feature.Feature, 0, len(f.Lines))
	for _, l := range f.Lines {
		out = append(out, feature.NewLineString(l, f.Properties.Clone()))
	}
	return out
}

func (shared) Combine(fs []*feature.Feature) (*feature.Feature, error) {
	var lines []feature.Line
	for _, f := range fs {
		lines = append(lines, f.Lines...)
	}
	if len(lines) == 0 {
		return nil, ErrNothingToCombine
	}
	return feature.NewMultiLineString(lines, nil), nil
}
