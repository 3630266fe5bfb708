// Package trails holds the greenway trails dataset that closures are clipped
// from.
package trails

import (
	"github.com/gwclose/gwclose/internal/feature"
	"github.com/gwclose/gwclose/internal/geom"
	"github.com/tidwall/btree"
	"github.com/tidwall/match"
	"github.com/tidwall/rtree"
)

// Dataset is a flattened trails collection with a spatial index over the
// feature bounds.
type Dataset struct {
	Source  string
	Skipped int

	trails  *feature.Collection
	spatial rtree.RTreeGN[float64, int] // feature index by bounds
}

// New flattens every feature of c into single part features and indexes
// them.
func New(source string, c *feature.Collection) *Dataset {
	d := &Dataset{Source: source, trails: &feature.Collection{}}
	if c == nil {
		return d
	}
	d.Skipped = c.Skipped
	for _, f := range c.Features {
		for _, part := range geom.Flatten(f) {
			if part.Empty() {
				continue
			}
			d.insert(part)
		}
	}
	return d
}

func (d *Dataset) insert(f *feature.Feature) {
	idx := len(d.trails.Features)
	d.trails.Features = append(d.trails.Features, f)
	min, max := rtreeRect(f.Rect())
	d.spatial.Insert(min, max, idx)
}

func rtreeRect(r feature.Rect) (min, max [2]float64) {
	return [2]float64{r.Min.X, r.Min.Y}, [2]float64{r.Max.X, r.Max.Y}
}

// Len returns the number of trail features.
func (d *Dataset) Len() int {
	return d.trails.Len()
}

// Collection returns every trail in load order.
func (d *Dataset) Collection() *feature.Collection {
	return d.trails
}

// Filter returns a dataset holding the trails whose property key matches
// the glob pattern. An empty key returns d.
func (d *Dataset) Filter(key, pattern string) *Dataset {
	if key == "" {
		return d
	}
	out := &Dataset{Source: d.Source, Skipped: d.Skipped, trails: &feature.Collection{}}
	for _, f := range d.trails.Features {
		v, ok := f.Properties[key]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if match.Match(s, pattern) {
			out.insert(f)
		}
	}
	return out
}

// Candidates returns the trails whose bounds overlap the polygon bounds, in
// load order.
func (d *Dataset) Candidates(poly *feature.Polygon) *feature.Collection {
	out := &feature.Collection{}
	if poly == nil {
		return out
	}
	rect := poly.Rect()
	if rect.Empty() {
		return out
	}
	var hits btree.Set[int]
	min, max := rtreeRect(rect)
	d.spatial.Search(min, max, func(_, _ [2]float64, idx int) bool {
		hits.Insert(idx)
		return true
	})
	hits.Scan(func(idx int) bool {
		out.Features = append(out.Features, d.trails.Features[idx])
		return true
	})
	return out
}
