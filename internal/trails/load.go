package trails

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gwclose/gwclose/internal/feature"
	"github.com/gwclose/gwclose/internal/log"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/jonas-p/go-shp"
)

// ErrEmptySource is returned when no trails source is configured.
var ErrEmptySource = errors.New("no trails source")

// Load reads the trails dataset from src. Sources starting with http:// or
// https:// are fetched once with client, .shp files are read as shapefiles
// and anything else is read as a GeoJSON file. A nil client uses a
// cleanhttp client.
func Load(ctx context.Context, src string, client *http.Client) (*Dataset, error) {
	var c *feature.Collection
	var err error
	switch {
	case src == "":
		return nil, ErrEmptySource
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		c, err = loadURL(ctx, src, client)
	case strings.EqualFold(filepath.Ext(src), ".shp"):
		c, err = loadShapefile(src)
	default:
		c, err = loadFile(src)
	}
	if err != nil {
		return nil, fmt.Errorf("trails %s: %w", src, err)
	}
	d := New(src, c)
	log.Infof("trails: loaded %d features from %s", d.Len(), src)
	if d.Skipped > 0 {
		log.Debugf("trails: skipped %d non-line features", d.Skipped)
	}
	return d, nil
}

func loadURL(ctx context.Context, url string, client *http.Client) (*feature.Collection, error) {
	if client == nil {
		client = cleanhttp.DefaultClient()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/geo+json, application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return feature.DecodeCollection(data)
}

func loadFile(path string) (*feature.Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return feature.DecodeCollection(data)
}

func loadShapefile(path string) (*feature.Collection, error) {
	shape, err := shp.Open(path)
	if err != nil {
		return nil, err
	}
	defer shape.Close()

	var names []string
	for _, field := range shape.Fields() {
		names = append(names, strings.TrimRight(string(field.Name[:]), "\x00 "))
	}

	c := &feature.Collection{}
	for shape.Next() {
		n, p := shape.Shape()
		pl, ok := p.(*shp.PolyLine)
		if !ok {
			c.Skipped++
			continue
		}
		lines := polyLineParts(pl)
		if len(lines) == 0 {
			c.Skipped++
			continue
		}
		props := feature.Properties{}
		for i, name := range names {
			if v := strings.TrimSpace(shape.ReadAttribute(n, i)); v != "" {
				props[name] = v
			}
		}
		if len(lines) == 1 {
			c.Features = append(c.Features, feature.NewLineString(lines[0], props))
		} else {
			c.Features = append(c.Features, feature.NewMultiLineString(lines, props))
		}
	}
	if err := shape.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

// polyLineParts splits the shared point array of a polyline at its part
// offsets.
func polyLineParts(pl *shp.PolyLine) []feature.Line {
	var lines []feature.Line
	for i, start := range pl.Parts {
		end := int32(len(pl.Points))
		if i+1 < len(pl.Parts) {
			end = pl.Parts[i+1]
		}
		if start < 0 || end > int32(len(pl.Points)) || end-start < 2 {
			continue
		}
		line := make(feature.Line, 0, end-start)
		for _, pt := range pl.Points[start:end] {
			line = append(line, feature.Point{X: pt.X, Y: pt.Y})
		}
		lines = append(lines, line)
	}
	return lines
}
