package pipeline

import (
	"time"

	"github.com/gwclose/gwclose/internal/feature"
	"github.com/gwclose/gwclose/internal/geom"
)

// Stats describes one pipeline run.
type Stats struct {
	Visited  int // trail features examined
	Kept     int // features kept whole
	Split    int // features that went through the split path
	Parts    int // parts in the dissolved candidate
	Clip     time.Duration
	Dissolve time.Duration
}

// Run clips trails to poly and dissolves the result. The candidate is empty
// with ErrNothingToDissolve when no trail reaches the polygon.
func Run(p geom.Provider, trails *feature.Collection, poly *feature.Polygon) (*feature.Collection, Stats, error) {
	start := time.Now()
	clipped, stats, err := clip(p, trails, poly)
	stats.Clip = time.Since(start)
	if err != nil {
		return nil, stats, err
	}
	start = time.Now()
	candidate, err := Dissolve(p, clipped)
	stats.Dissolve = time.Since(start)
	stats.Parts = candidate.NumParts()
	return candidate, stats, err
}
