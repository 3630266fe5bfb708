// Package pipeline turns a trails collection and a drawn polygon into a
// single dissolved closure candidate.
package pipeline

import (
	"errors"

	"github.com/gwclose/gwclose/internal/feature"
	"github.com/gwclose/gwclose/internal/geom"
)

var (
	// ErrNoClip is returned when there is no clip polygon yet.
	ErrNoClip = errors.New("no clip polygon")
	// ErrNothingToDissolve is returned when the clip kept no geometry.
	ErrNothingToDissolve = errors.New("no geometry to dissolve")
)

// Clip returns the trail geometry that lies inside poly. Features that are
// wholly inside are kept as is. Others are split at the polygon boundary and
// each piece is kept when a point on it is inside. Output follows the trail
// order, pieces follow split order.
func Clip(p geom.Provider, trails *feature.Collection, poly *feature.Polygon) (*feature.Collection, error) {
	out, _, err := clip(p, trails, poly)
	return out, err
}

func clip(p geom.Provider, trails *feature.Collection, poly *feature.Polygon) (*feature.Collection, Stats, error) {
	var stats Stats
	if poly == nil {
		return nil, stats, ErrNoClip
	}
	if err := poly.Validate(); err != nil {
		return nil, stats, err
	}
	out := &feature.Collection{}
	if trails == nil {
		return out, stats, nil
	}
	for _, f := range trails.Features {
		stats.Visited++
		if p.Within(f, poly) {
			out.Features = append(out.Features, f)
			stats.Kept++
			continue
		}
		stats.Split++
		for _, piece := range p.SplitLine(f, poly) {
			if p.PointWithin(p.PointOnFeature(piece), poly) {
				out.Features = append(out.Features, piece)
			}
		}
	}
	return out, stats, nil
}
