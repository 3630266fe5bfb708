package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tidwall/assert"
	"github.com/tidwall/gjson"
)

func TestLoadMissingFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Assert(err == nil)
	assert.Assert(c.TrailsURL == DefaultTrailsURL)
	assert.Assert(c.LayerURL == DefaultLayerURL)
	assert.Assert(c.ClientID == DefaultClientID)
	assert.Assert(c.Provider == "tidwall")
	assert.Assert(c.MaxRequests == DefaultMaxRequests)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gwclose.json")
	assert.Assert(os.WriteFile(path, []byte(`{
		"trails_url": "trails.shp",
		"trails_filter_key": "SURFACE",
		"trails_filter_pattern": "Paved*",
		"provider": "orb",
		"endpoints": ["redis://localhost/closures", "https://example.com/hook"],
		"max_requests": 8,
		"logconfig": {"level":"info","encoding":"json","outputPaths":["stdout"]}
	}`), 0600) == nil)
	c, err := Load(path)
	assert.Assert(err == nil)
	assert.Assert(c.Path() == path)
	assert.Assert(c.TrailsURL == "trails.shp")
	assert.Assert(c.TrailsFilterKey == "SURFACE" && c.TrailsFilterPattern == "Paved*")
	assert.Assert(c.Provider == "orb")
	assert.Assert(len(c.Endpoints) == 2)
	assert.Assert(c.MaxRequests == 8)
	assert.Assert(gjson.Get(c.LogConfig, "encoding").String() == "json")
	assert.Assert(c.LayerURL == DefaultLayerURL)
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gwclose.json")
	assert.Assert(os.WriteFile(path, []byte(`{"layer_url":"https://file/0","max_requests":8}`), 0600) == nil)
	t.Setenv("GWCLOSE_LAYER_URL", "https://env/0")
	t.Setenv("GWCLOSE_MAX_REQUESTS", "16")
	t.Setenv("GWCLOSE_ENDPOINTS", "redis://a/x, nats://b:4222/y")
	t.Setenv("GWCLOSE_CLIENT_SECRET", "shh")
	c, err := Load(path)
	assert.Assert(err == nil)
	assert.Assert(c.LayerURL == "https://env/0")
	assert.Assert(c.MaxRequests == 16)
	assert.Assert(len(c.Endpoints) == 2 && c.Endpoints[1] == "nats://b:4222/y")
	assert.Assert(c.ClientSecret == "shh")
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	bad := map[string]string{
		"json.json":     `{"provider":`,
		"provider.json": `{"provider":"jts"}`,
		"max.json":      `{"max_requests":0}`,
	}
	for name, data := range bad {
		path := filepath.Join(dir, name)
		assert.Assert(os.WriteFile(path, []byte(data), 0600) == nil)
		_, err := Load(path)
		assert.Assert(err != nil)
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gwclose.json")
	c, err := Load(path)
	assert.Assert(err == nil)
	c.Endpoints = []string{"mqtt://broker/greenway/closures"}
	c.ClientSecret = "shh"
	c.LogConfig = `{"level":"debug"}`
	assert.Assert(c.Save() == nil)

	data, err := os.ReadFile(path)
	assert.Assert(err == nil)
	assert.Assert(gjson.ValidBytes(data))
	assert.Assert(!gjson.GetBytes(data, ClientSecret).Exists())
	assert.Assert(gjson.GetBytes(data, "logconfig.level").String() == "debug")

	c2, err := Load(path)
	assert.Assert(err == nil)
	assert.Assert(len(c2.Endpoints) == 1 && c2.Endpoints[0] == "mqtt://broker/greenway/closures")
	assert.Assert(c2.LogConfig == `{"level":"debug"}` || gjson.Get(c2.LogConfig, "level").String() == "debug")

	assert.Assert((&Config{}).Save() != nil)
}
