package pipeline

import (
	"errors"
	"math"
	"testing"

	"github.com/gwclose/gwclose/internal/feature"
	"github.com/gwclose/gwclose/internal/geom"
	"github.com/tidwall/assert"
)

type P = feature.Point

// spy counts split calls on top of a real provider.
type spy struct {
	geom.Provider
	splits int
}

func (s *spy) SplitLine(f *feature.Feature, poly *feature.Polygon) []*feature.Feature {
	s.splits++
	return s.Provider.SplitLine(f, poly)
}

func square() *feature.Polygon {
	return feature.NewPolygon([]P{{0, 0}, {10, 0}, {10, 10}, {0, 10}}, nil)
}

func trail(name string, points ...P) *feature.Feature {
	return feature.NewLineString(points, feature.Properties{"name": name})
}

func near(a, b P) bool {
	return math.Abs(a.X-b.X) < 1e-9 && math.Abs(a.Y-b.Y) < 1e-9
}

var providers = []geom.Provider{geom.Tidwall{}, geom.Orb{}}

func TestClipInsideIsIdentity(t *testing.T) {
	for _, p := range providers {
		t.Run(p.Name(), func(t *testing.T) {
			s := &spy{Provider: p}
			inside := trail("inside", P{1, 1}, P{4, 6}, P{8, 8})
			out, err := Clip(s, feature.NewCollection([]*feature.Feature{inside}), square())
			assert.Assert(err == nil)
			assert.Assert(out.Len() == 1)
			assert.Assert(out.Features[0] == inside)
			assert.Assert(s.splits == 0)
		})
	}
}

func TestClipOutsideContributesNothing(t *testing.T) {
	for _, p := range providers {
		t.Run(p.Name(), func(t *testing.T) {
			outside := trail("outside", P{20, 20}, P{30, 25})
			out, err := Clip(p, feature.NewCollection([]*feature.Feature{outside}), square())
			assert.Assert(err == nil)
			assert.Assert(out.Len() == 0)
		})
	}
}

func TestClipKeepsInnerPieceOfCrossing(t *testing.T) {
	for _, p := range providers {
		t.Run(p.Name(), func(t *testing.T) {
			through := trail("through", P{-5, 5}, P{15, 5})
			out, err := Clip(p, feature.NewCollection([]*feature.Feature{through}), square())
			assert.Assert(err == nil)
			assert.Assert(out.Len() == 1)
			piece := out.Features[0].Lines[0]
			assert.Assert(near(piece[0], P{0, 5}))
			assert.Assert(near(piece[1], P{10, 5}))
			assert.Assert(out.Features[0].Properties["name"] == "through")
		})
	}
}

func TestClipConcave(t *testing.T) {
	// U shape, the trail leaves and re-enters through the notch
	u := feature.NewPolygon([]P{
		{0, 0}, {10, 0}, {10, 10}, {7, 10}, {7, 3}, {3, 3}, {3, 10}, {0, 10},
	}, nil)
	for _, p := range providers {
		t.Run(p.Name(), func(t *testing.T) {
			f := trail("across", P{1, 5}, P{9, 5})
			out, err := Clip(p, feature.NewCollection([]*feature.Feature{f}), u)
			assert.Assert(err == nil)
			assert.Assert(out.Len() == 2)
			assert.Assert(near(out.Features[0].Lines[0][1], P{3, 5}))
			assert.Assert(near(out.Features[1].Lines[0][0], P{7, 5}))
		})
	}
}

func TestClipErrors(t *testing.T) {
	p := geom.Tidwall{}
	_, err := Clip(p, &feature.Collection{}, nil)
	assert.Assert(errors.Is(err, ErrNoClip))
	degenerate := feature.NewPolygon([]P{{0, 0}, {1, 1}, {2, 2}}, nil)
	_, err = Clip(p, &feature.Collection{}, degenerate)
	assert.Assert(errors.Is(err, feature.ErrInvalidPolygon))
	out, err := Clip(p, nil, square())
	assert.Assert(err == nil && out.Len() == 0)
}

func TestDissolveEmpty(t *testing.T) {
	for _, p := range providers {
		out, err := Dissolve(p, &feature.Collection{})
		assert.Assert(errors.Is(err, ErrNothingToDissolve))
		assert.Assert(out != nil && out.Len() == 0)
		out, err = Dissolve(p, nil)
		assert.Assert(errors.Is(err, ErrNothingToDissolve))
		assert.Assert(out.Len() == 0)
	}
}

func TestDissolveFlattensMultiParts(t *testing.T) {
	p := geom.Tidwall{}
	c := feature.NewCollection([]*feature.Feature{
		trail("a", P{0, 0}, P{1, 0}),
		feature.NewMultiLineString([]feature.Line{
			{{2, 0}, {3, 0}},
			{{4, 0}, {5, 0}},
		}, feature.Properties{"name": "b"}),
	})
	out, err := Dissolve(p, c)
	assert.Assert(err == nil)
	assert.Assert(out.Len() == 1)
	f := out.Features[0]
	assert.Assert(f.Multi)
	assert.Assert(len(f.Lines) == 3)
	assert.Assert(f.Lines[0][0] == P{0, 0})
	assert.Assert(f.Lines[1][0] == P{2, 0})
	assert.Assert(f.Lines[2][0] == P{4, 0})
}

func TestDissolveSingleParts(t *testing.T) {
	// flattening single part features changes nothing before combine
	p := geom.Orb{}
	a := trail("a", P{0, 0}, P{1, 0})
	b := trail("b", P{2, 0}, P{3, 0})
	for _, f := range []*feature.Feature{a, b} {
		flat := p.Flatten(f)
		assert.Assert(len(flat) == 1 && flat[0] == f)
	}
	out, err := Dissolve(p, feature.NewCollection([]*feature.Feature{a, b}))
	assert.Assert(err == nil)
	assert.Assert(len(out.Features[0].Lines) == 2)
}

func TestEndToEnd(t *testing.T) {
	for _, p := range providers {
		t.Run(p.Name(), func(t *testing.T) {
			inside := trail("inside", P{2, 2}, P{8, 2})
			crossing := trail("crossing", P{5, 5}, P{15, 5})
			trails := feature.NewCollection([]*feature.Feature{inside, crossing})

			clipped, err := Clip(p, trails, square())
			assert.Assert(err == nil)
			assert.Assert(clipped.Len() == 2)
			assert.Assert(clipped.Features[0] == inside)
			seg := clipped.Features[1].Lines[0]
			assert.Assert(near(seg[0], P{5, 5}))
			assert.Assert(near(seg[1], P{10, 5}))

			dissolved, err := Dissolve(p, clipped)
			assert.Assert(err == nil)
			assert.Assert(dissolved.Len() == 1)
			f := dissolved.Features[0]
			assert.Assert(f.Multi && len(f.Lines) == 2)
			assert.Assert(f.Lines[0][0] == P{2, 2})
			assert.Assert(near(f.Lines[1][1], P{10, 5}))

			candidate, stats, err := Run(p, trails, square())
			assert.Assert(err == nil)
			assert.Assert(candidate.NumParts() == 2)
			assert.Assert(stats.Visited == 2 && stats.Kept == 1 && stats.Split == 1)
			assert.Assert(stats.Parts == 2)
		})
	}
}

func TestRunNothingInside(t *testing.T) {
	trails := feature.NewCollection([]*feature.Feature{trail("far", P{50, 50}, P{60, 60})})
	candidate, stats, err := Run(geom.Tidwall{}, trails, square())
	assert.Assert(errors.Is(err, ErrNothingToDissolve))
	assert.Assert(candidate.Len() == 0)
	assert.Assert(stats.Parts == 0)
}
