package pipeline

import (
	"github.com/gwclose/gwclose/internal/feature"
	"github.com/gwclose/gwclose/internal/geom"
)

// Dissolve flattens every clipped feature into single parts and combines
// them into one MultiLineString feature. The returned collection holds
// exactly that feature. An empty input yields an empty collection and
// ErrNothingToDissolve.
func Dissolve(p geom.Provider, clipped *feature.Collection) (*feature.Collection, error) {
	var flat []*feature.Feature
	if clipped != nil {
		for _, f := range clipped.Features {
			flat = append(flat, p.Flatten(f)...)
		}
	}
	if len(flat) == 0 {
		return &feature.Collection{}, ErrNothingToDissolve
	}
	combined, err := p.Combine(flat)
	if err != nil {
		return &feature.Collection{}, ErrNothingToDissolve
	}
	return feature.NewCollection([]*feature.Feature{combined}), nil
}
