package feature

import (
	"errors"
	"testing"

	"github.com/tidwall/assert"
	"github.com/tidwall/gjson"
)

const trailsJSON = `{
	"type": "FeatureCollection",
	"features": [
		{"type":"Feature","properties":{"name":"Neuse River","miles":27.5},
		 "geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}},
		{"type":"Feature","properties":{"name":"Walnut Creek"},
		 "geometry":{"type":"MultiLineString","coordinates":[[[0,0],[1,0]],[[2,0],[3,0]]]}},
		{"type":"Feature","properties":{"name":"Trailhead"},
		 "geometry":{"type":"Point","coordinates":[5,5]}},
		{"type":"Feature","properties":{},"geometry":null}
	]
}`

func TestDecodeCollection(t *testing.T) {
	c, err := DecodeCollection([]byte(trailsJSON))
	assert.Assert(err == nil)
	assert.Assert(c.Len() == 2)
	assert.Assert(c.Skipped == 2)
	assert.Assert(c.NumParts() == 3)

	first := c.Features[0]
	assert.Assert(!first.Multi)
	assert.Assert(first.Properties["name"] == "Neuse River")
	assert.Assert(first.Properties["miles"] == 27.5)
	assert.Assert(first.Lines[0][1] == Point{1, 1})

	second := c.Features[1]
	assert.Assert(second.Multi)
	assert.Assert(len(second.Lines) == 2)
	assert.Assert(second.Lines[1][0] == Point{2, 0})
}

func TestDecodeBareGeometry(t *testing.T) {
	c, err := DecodeCollection([]byte(`{"type":"LineString","coordinates":[[0,0],[2,2]]}`))
	assert.Assert(err == nil)
	assert.Assert(c.Len() == 1)
	assert.Assert(len(c.Features[0].Properties) == 0)

	_, err = DecodeCollection([]byte(`{"type":`))
	assert.Assert(errors.Is(err, ErrInvalidJSON))
}

func TestDecodePolygon(t *testing.T) {
	square := `{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]]]}`
	for _, doc := range []string{
		square,
		`{"type":"Feature","properties":{},"geometry":` + square + `}`,
		`{"type":"FeatureCollection","features":[{"type":"Feature","geometry":` + square + `}]}`,
	} {
		poly, err := DecodePolygon([]byte(doc))
		assert.Assert(err == nil)
		r := poly.Rect()
		assert.Assert(r.Min == Point{0, 0} && r.Max == Point{10, 10})
		assert.Assert(poly.Area() == 100)
	}
	_, err := DecodePolygon([]byte(`{"type":"LineString","coordinates":[[0,0],[1,1]]}`))
	assert.Assert(errors.Is(err, ErrNotPolygon))
}

func TestPolygonValidate(t *testing.T) {
	assert.Assert(NewPolygon([]Point{{0, 0}, {1, 0}, {1, 1}}, nil).Validate() == nil)
	// collinear
	assert.Assert(NewPolygon([]Point{{0, 0}, {1, 0}, {2, 0}}, nil).Validate() == ErrInvalidPolygon)
	// too few distinct points
	assert.Assert(NewPolygon([]Point{{0, 0}, {1, 0}, {0, 0}}, nil).Validate() == ErrInvalidPolygon)
	var nilPoly *Polygon
	assert.Assert(nilPoly.Validate() == ErrInvalidPolygon)
}

func TestNewPolygonClosesRings(t *testing.T) {
	poly := NewPolygon([]Point{{0, 0}, {4, 0}, {4, 4}, {0, 4}},
		[][]Point{{{1, 1}, {2, 1}, {2, 2}}})
	assert.Assert(len(poly.Exterior) == 5)
	assert.Assert(poly.Exterior[4] == Point{0, 0})
	assert.Assert(len(poly.Holes[0]) == 4)
	assert.Assert(poly.Area() == 16-0.5)
	assert.Assert(len(poly.Rings()) == 2)
}

func TestEncodeCollection(t *testing.T) {
	c := NewCollection([]*Feature{
		NewLineString(Line{{0, 0}, {1.5, 2}}, Properties{"name": "A"}),
		NewMultiLineString([]Line{{{0, 0}, {1, 0}}}, nil),
	})
	data := EncodeCollection(c)
	assert.Assert(gjson.ValidBytes(data))
	res := gjson.ParseBytes(data)
	assert.Assert(res.Get("features.#").Int() == 2)
	assert.Assert(res.Get("features.0.geometry.type").String() == "LineString")
	assert.Assert(res.Get("features.0.geometry.coordinates.1.0").Float() == 1.5)
	assert.Assert(res.Get("features.0.properties.name").String() == "A")
	assert.Assert(res.Get("features.1.geometry.type").String() == "MultiLineString")

	back, err := DecodeCollection(data)
	assert.Assert(err == nil)
	assert.Assert(back.Len() == 2)
	assert.Assert(back.Features[1].Multi)

	assert.Assert(string(EncodeCollection(nil)) == `{"type":"FeatureCollection","features":[]}`)
	assert.Assert(gjson.ValidBytes(Pretty(data)))
}

func TestFeatureClone(t *testing.T) {
	f := NewLineString(Line{{0, 0}, {1, 1}}, Properties{"a": "b"})
	c := f.Clone()
	c.Properties["a"] = "c"
	c.Lines[0][0] = Point{9, 9}
	assert.Assert(f.Properties["a"] == "b")
	assert.Assert(f.Lines[0][0] == Point{0, 0})
}

func TestRect(t *testing.T) {
	a := Rect{Min: Point{0, 0}, Max: Point{2, 2}}
	b := Rect{Min: Point{1, 1}, Max: Point{3, 3}}
	c := Rect{Min: Point{5, 5}, Max: Point{6, 6}}
	assert.Assert(a.Intersects(b))
	assert.Assert(!a.Intersects(c))
	assert.Assert(a.Center() == Point{1, 1})
	var empty Collection
	assert.Assert(empty.Rect().Empty())
	assert.Assert(Line{{0, 0}, {3, 4}}.Length() == 5)
}
