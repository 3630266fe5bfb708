package feature

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geometry"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

var (
	// ErrInvalidJSON is returned when the input is not a JSON document.
	ErrInvalidJSON = errors.New("invalid json")
	// ErrNotPolygon is returned by DecodePolygon for any other geometry.
	ErrNotPolygon = errors.New("geometry is not a polygon")
)

// DecodeCollection reads a FeatureCollection, a Feature or a bare geometry.
// Only LineString and MultiLineString geometries are kept. Everything else,
// including features whose geometry fails to parse inside a collection, is
// counted in Skipped.
func DecodeCollection(data []byte) (*Collection, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(data)
	c := &Collection{}
	switch root.Get("type").String() {
	case "FeatureCollection":
		root.Get("features").ForEach(func(_, f gjson.Result) bool {
			c.appendFeature(f)
			return true
		})
	case "Feature":
		c.appendFeature(root)
	default:
		f, ok, err := decodeGeometry(root.Raw, nil)
		if err != nil {
			return nil, err
		}
		if !ok {
			c.Skipped++
			break
		}
		c.Features = append(c.Features, f)
	}
	return c, nil
}

func (c *Collection) appendFeature(f gjson.Result) {
	geom := f.Get("geometry")
	if !geom.IsObject() {
		c.Skipped++
		return
	}
	feat, ok, err := decodeGeometry(geom.Raw, decodeProperties(f.Get("properties")))
	if err != nil || !ok {
		c.Skipped++
		return
	}
	c.Features = append(c.Features, feat)
}

func decodeProperties(res gjson.Result) Properties {
	props := Properties{}
	if !res.IsObject() {
		return props
	}
	res.ForEach(func(key, value gjson.Result) bool {
		props[key.String()] = value.Value()
		return true
	})
	return props
}

func decodeGeometry(raw string, props Properties) (*Feature, bool, error) {
	obj, err := geojson.Parse(raw, geojson.DefaultParseOptions)
	if err != nil {
		return nil, false, fmt.Errorf("geometry: %w", err)
	}
	switch g := obj.(type) {
	case *geojson.LineString:
		return NewLineString(lineFromBase(g.Base()), props), true, nil
	case *geojson.MultiLineString:
		var lines []Line
		for _, child := range g.Children() {
			if ls, ok := child.(*geojson.LineString); ok {
				lines = append(lines, lineFromBase(ls.Base()))
			}
		}
		return NewMultiLineString(lines, props), true, nil
	}
	return nil, false, nil
}

func lineFromBase(base *geometry.Line) Line {
	line := make(Line, base.NumPoints())
	for i := range line {
		p := base.PointAt(i)
		line[i] = Point{X: p.X, Y: p.Y}
	}
	return line
}

func ringFromBase(ring geometry.Ring) []Point {
	points := make([]Point, ring.NumPoints())
	for i := range points {
		p := ring.PointAt(i)
		points[i] = Point{X: p.X, Y: p.Y}
	}
	return points
}

// DecodePolygon reads a clip polygon. It accepts a Polygon geometry, a
// Feature wrapping one, or a FeatureCollection whose first feature is one.
func DecodePolygon(data []byte) (*Polygon, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	res := gjson.ParseBytes(data)
	switch res.Get("type").String() {
	case "FeatureCollection":
		res = res.Get("features.0.geometry")
	case "Feature":
		res = res.Get("geometry")
	}
	if res.Get("type").String() != "Polygon" {
		return nil, ErrNotPolygon
	}
	obj, err := geojson.Parse(res.Raw, geojson.DefaultParseOptions)
	if err != nil {
		return nil, fmt.Errorf("polygon: %w", err)
	}
	var poly *Polygon
	switch g := obj.(type) {
	case *geojson.Polygon:
		base := g.Base()
		var holes [][]Point
		for _, h := range base.Holes {
			holes = append(holes, ringFromBase(h))
		}
		poly = NewPolygon(ringFromBase(base.Exterior), holes)
	case *geojson.Rect:
		// axis aligned polygons may come back as rects
		base := g.Base()
		exterior := make([]Point, base.NumPoints())
		for i := range exterior {
			p := base.PointAt(i)
			exterior[i] = Point{X: p.X, Y: p.Y}
		}
		poly = NewPolygon(exterior, nil)
	default:
		return nil, ErrNotPolygon
	}
	if err := poly.Validate(); err != nil {
		return nil, err
	}
	return poly, nil
}

// AppendGeometry appends the GeoJSON geometry of f.
func AppendGeometry(dst []byte, f *Feature) []byte {
	if f.Multi || len(f.Lines) != 1 {
		dst = append(dst, `{"type":"MultiLineString","coordinates":[`...)
		for i, l := range f.Lines {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendPositions(dst, l)
		}
		return append(dst, "]}"...)
	}
	dst = append(dst, `{"type":"LineString","coordinates":`...)
	dst = appendPositions(dst, f.Lines[0])
	return append(dst, '}')
}

func appendPositions(dst []byte, points []Point) []byte {
	dst = append(dst, '[')
	for i, p := range points {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, '[')
		dst = strconv.AppendFloat(dst, p.X, 'f', -1, 64)
		dst = append(dst, ',')
		dst = strconv.AppendFloat(dst, p.Y, 'f', -1, 64)
		dst = append(dst, ']')
	}
	return append(dst, ']')
}

// AppendFeature appends f as a GeoJSON Feature.
func AppendFeature(dst []byte, f *Feature) []byte {
	dst = append(dst, `{"type":"Feature","geometry":`...)
	dst = AppendGeometry(dst, f)
	dst = append(dst, `,"properties":`...)
	props := f.Properties
	if props == nil {
		props = Properties{}
	}
	b, err := json.Marshal(props)
	if err != nil {
		b = []byte("{}")
	}
	dst = append(dst, b...)
	return append(dst, '}')
}

// EncodeFeature returns f as a GeoJSON Feature.
func EncodeFeature(f *Feature) []byte {
	return AppendFeature(nil, f)
}

// EncodeCollection returns c as a GeoJSON FeatureCollection. A nil
// collection encodes as an empty one.
func EncodeCollection(c *Collection) []byte {
	dst := []byte(`{"type":"FeatureCollection","features":[`)
	if c != nil {
		for i, f := range c.Features {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = AppendFeature(dst, f)
		}
	}
	return append(dst, "]}"...)
}

// EncodePolygon returns p as a GeoJSON Polygon geometry.
func EncodePolygon(p *Polygon) []byte {
	dst := []byte(`{"type":"Polygon","coordinates":[`)
	for i, ring := range p.Rings() {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendPositions(dst, ring)
	}
	return append(dst, "]}"...)
}

// Pretty indents a JSON document for terminal output.
func Pretty(data []byte) []byte {
	return pretty.Pretty(data)
}
