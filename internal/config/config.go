// Package config loads the gwclose configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gwclose/gwclose/core"
	"github.com/gwclose/gwclose/internal/geom"
	"github.com/joho/godotenv"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// Config keys
const (
	TrailsURL           = "trails_url"
	TrailsFilterKey     = "trails_filter_key"
	TrailsFilterPattern = "trails_filter_pattern"
	LayerURL            = "layer_url"
	ViewLayerURL        = "view_layer_url"
	PortalURL           = "portal_url"
	ClientID            = "client_id"
	ClientSecret        = "client_secret"
	Username            = "username"
	SessionPath         = "session_path"
	Provider            = "provider"
	Endpoints           = "endpoints"
	MaxRequests         = "max_requests"
	LogConfig           = "logconfig"
)

// Defaults are the Raleigh greenway demo services.
const (
	DefaultTrailsURL    = "https://opendata.arcgis.com/datasets/23836bb9145943d485252d9665020ff1_0.geojson"
	DefaultLayerURL     = "https://services.arcgis.com/v400IkDOw1ad7Yad/arcgis/rest/services/greenway_closures_creator_demo_layer/FeatureServer/0"
	DefaultViewLayerURL = "https://services.arcgis.com/v400IkDOw1ad7Yad/arcgis/rest/services/Greenway_Closures_Creator_Demo_Ongoing_Closures_View/FeatureServer/0"
	DefaultPortalURL    = "https://www.arcgis.com"
	DefaultClientID     = "2sTSmcY1sy7bTbRt"
	DefaultMaxRequests  = 64
)

// EnvPrefix prefixes the environment variables that override file values,
// for example GWCLOSE_LAYER_URL.
const EnvPrefix = "GWCLOSE_"

// Config is a gwclose config.
type Config struct {
	path string

	TrailsURL           string
	TrailsFilterKey     string
	TrailsFilterPattern string
	LayerURL            string
	ViewLayerURL        string
	PortalURL           string
	ClientID            string
	ClientSecret        string
	Username            string
	SessionPath         string
	Provider            string
	Endpoints           []string
	MaxRequests         int
	LogConfig           string
}

// Default returns the built in configuration.
func Default() *Config {
	return &Config{
		TrailsURL:    DefaultTrailsURL,
		LayerURL:     DefaultLayerURL,
		ViewLayerURL: DefaultViewLayerURL,
		PortalURL:    DefaultPortalURL,
		ClientID:     DefaultClientID,
		SessionPath:  core.SessionPath,
		Provider:     core.Provider,
		MaxRequests:  DefaultMaxRequests,
	}
}

// Load reads the config file at path. A missing file yields the defaults.
// Variables from a .env file in the working directory and GWCLOSE_*
// environment variables override file values.
func Load(path string) (*Config, error) {
	var json string
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else {
			json = string(data)
		}
	}
	if json != "" && !gjson.Valid(json) {
		return nil, fmt.Errorf("config %s: invalid json", path)
	}
	config := Default()
	config.path = path
	config.apply(func(key string) (gjson.Result, bool) {
		res := gjson.Get(json, key)
		return res, res.Exists()
	})

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf(".env: %w", err)
	}
	config.apply(func(key string) (gjson.Result, bool) {
		v, ok := os.LookupEnv(EnvPrefix + strings.ToUpper(key))
		if !ok {
			return gjson.Result{}, false
		}
		if key == Endpoints {
			// comma separated
			var parts []string
			for _, s := range strings.Split(v, ",") {
				if s = strings.TrimSpace(s); s != "" {
					parts = append(parts, strconv.Quote(s))
				}
			}
			return gjson.Parse("[" + strings.Join(parts, ",") + "]"), true
		}
		return gjson.Result{Type: gjson.String, Str: v, Raw: strconv.Quote(v)}, true
	})
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (config *Config) apply(get func(key string) (gjson.Result, bool)) {
	strs := map[string]*string{
		TrailsURL:           &config.TrailsURL,
		TrailsFilterKey:     &config.TrailsFilterKey,
		TrailsFilterPattern: &config.TrailsFilterPattern,
		LayerURL:            &config.LayerURL,
		ViewLayerURL:        &config.ViewLayerURL,
		PortalURL:           &config.PortalURL,
		ClientID:            &config.ClientID,
		ClientSecret:        &config.ClientSecret,
		Username:            &config.Username,
		SessionPath:         &config.SessionPath,
		Provider:            &config.Provider,
	}
	for key, ptr := range strs {
		if res, ok := get(key); ok {
			*ptr = res.String()
		}
	}
	if res, ok := get(MaxRequests); ok {
		config.MaxRequests = int(res.Int())
	}
	if res, ok := get(Endpoints); ok {
		config.Endpoints = nil
		for _, v := range res.Array() {
			if s := v.String(); s != "" {
				config.Endpoints = append(config.Endpoints, s)
			}
		}
	}
	if res, ok := get(LogConfig); ok {
		// either a zap config object or a string holding one
		if res.IsObject() {
			config.LogConfig = res.Raw
		} else {
			config.LogConfig = res.String()
		}
	}
}

// Validate checks the values that cannot be used as is.
func (config *Config) Validate() error {
	if _, err := geom.ByName(config.Provider); err != nil {
		return err
	}
	if config.MaxRequests <= 0 {
		return fmt.Errorf("invalid %s %d", MaxRequests, config.MaxRequests)
	}
	if config.LayerURL == "" {
		return fmt.Errorf("missing %s", LayerURL)
	}
	return nil
}

// Path returns the file the config was loaded from.
func (config *Config) Path() string {
	return config.path
}

// JSON returns the config as an indented JSON document. The client secret
// is left out.
func (config *Config) JSON() []byte {
	json := `{}`
	set := func(key string, val interface{}) {
		json, _ = sjson.Set(json, key, val)
	}
	set(TrailsURL, config.TrailsURL)
	if config.TrailsFilterKey != "" {
		set(TrailsFilterKey, config.TrailsFilterKey)
		set(TrailsFilterPattern, config.TrailsFilterPattern)
	}
	set(LayerURL, config.LayerURL)
	set(ViewLayerURL, config.ViewLayerURL)
	set(PortalURL, config.PortalURL)
	set(ClientID, config.ClientID)
	if config.Username != "" {
		set(Username, config.Username)
	}
	set(SessionPath, config.SessionPath)
	set(Provider, config.Provider)
	if len(config.Endpoints) > 0 {
		set(Endpoints, config.Endpoints)
	}
	set(MaxRequests, config.MaxRequests)
	if config.LogConfig != "" && gjson.Valid(config.LogConfig) {
		json, _ = sjson.SetRaw(json, LogConfig, config.LogConfig)
	}
	return pretty.Pretty([]byte(json))
}

// Save writes the config back to its file.
func (config *Config) Save() error {
	if config.path == "" {
		return errors.New("config has no file")
	}
	return os.WriteFile(config.path, config.JSON(), 0600)
}
