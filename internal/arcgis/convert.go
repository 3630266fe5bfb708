// Package arcgis talks to the hosted feature service that stores closures.
package arcgis

import (
	"fmt"

	"github.com/gwclose/gwclose/internal/closure"
	"github.com/gwclose/gwclose/internal/feature"
)

// WGS84 is the spatial reference of GeoJSON coordinates.
const WGS84 = 4326

// SpatialReference identifies a coordinate system by well-known id.
type SpatialReference struct {
	WKID int `json:"wkid"`
}

// Geometry is a polyline in the feature service record format.
type Geometry struct {
	Paths            [][][2]float64   `json:"paths"`
	SpatialReference SpatialReference `json:"spatialReference"`
}

// Feature is one feature service record.
type Feature struct {
	Attributes map[string]interface{} `json:"attributes"`
	Geometry   *Geometry              `json:"geometry,omitempty"`
}

// ConvertOptions control ToArcGIS.
type ConvertOptions struct {
	WKID int
	// DateFields hold YYYY-MM-DD values that are sent as epoch milliseconds.
	DateFields []string
}

// DefaultConvertOptions converts the closure date fields.
func DefaultConvertOptions() ConvertOptions {
	return ConvertOptions{
		WKID:       WGS84,
		DateFields: []string{closure.KeyStartDate, closure.KeyEndDate},
	}
}

// ToArcGIS converts every feature of c into a record. Each part becomes one
// path. Empty date fields are sent as null.
func ToArcGIS(c *feature.Collection, opts ConvertOptions) ([]Feature, error) {
	if opts.WKID == 0 {
		opts.WKID = WGS84
	}
	var out []Feature
	if c == nil {
		return out, nil
	}
	for _, f := range c.Features {
		attrs := make(map[string]interface{}, len(f.Properties))
		for k, v := range f.Properties {
			attrs[k] = v
		}
		for _, key := range opts.DateFields {
			v, ok := attrs[key]
			if !ok {
				continue
			}
			s, ok := v.(string)
			if !ok {
				continue
			}
			ms, ok, err := closure.EpochMillis(s)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			if ok {
				attrs[key] = ms
			} else {
				attrs[key] = nil
			}
		}
		geom := &Geometry{SpatialReference: SpatialReference{WKID: opts.WKID}}
		for _, l := range f.Lines {
			path := make([][2]float64, len(l))
			for i, p := range l {
				path[i] = [2]float64{p.X, p.Y}
			}
			geom.Paths = append(geom.Paths, path)
		}
		out = append(out, Feature{Attributes: attrs, Geometry: geom})
	}
	return out, nil
}
