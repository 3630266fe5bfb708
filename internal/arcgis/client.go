package arcgis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gwclose/gwclose/internal/feature"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/tidwall/gjson"
)

var (
	// ErrNoResults is returned when addFeatures answers without results.
	ErrNoResults = errors.New("feature service returned no results")
	// ErrNotFound is returned by Record when no record has the object id.
	ErrNotFound = errors.New("record not found")
	// ErrStatus is returned for non-2xx responses.
	ErrStatus = errors.New("unexpected status")
)

// ServiceError is an error object returned in a feature service response.
type ServiceError struct {
	Code    int
	Message string
	Details []string
}

func (e *ServiceError) Error() string {
	msg := e.Message
	if len(e.Details) > 0 {
		msg += ": " + strings.Join(e.Details, "; ")
	}
	return fmt.Sprintf("feature service error %d: %s", e.Code, msg)
}

func parseServiceError(res gjson.Result) *ServiceError {
	if !res.Exists() {
		return nil
	}
	e := &ServiceError{Code: int(res.Get("code").Int())}
	e.Message = res.Get("message").String()
	if e.Message == "" {
		e.Message = res.Get("description").String()
	}
	for _, d := range res.Get("details").Array() {
		if s := d.String(); s != "" {
			e.Details = append(e.Details, s)
		}
	}
	return e
}

// EditResult is the per record result of an edit.
type EditResult struct {
	ObjectID int64
	GlobalID string
	Success  bool
	Err      *ServiceError
}

// Client calls a feature layer and its read-only view layer.
type Client struct {
	LayerURL string // layer that accepts edits
	ViewURL  string // layer that is queried; LayerURL when empty
	HTTP     *http.Client
}

// NewClient returns a client using a pooled cleanhttp client.
func NewClient(layerURL, viewURL string) *Client {
	return &Client{
		LayerURL: strings.TrimRight(layerURL, "/"),
		ViewURL:  strings.TrimRight(viewURL, "/"),
		HTTP:     cleanhttp.DefaultPooledClient(),
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		return cleanhttp.DefaultClient()
	}
	return c.HTTP
}

func (c *Client) viewURL() string {
	if c.ViewURL == "" {
		return c.LayerURL
	}
	return c.ViewURL
}

// do sends the request and returns the body once the service reports no
// error object.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid response from %s", req.URL.Path)
	}
	if serr := parseServiceError(gjson.GetBytes(body, "error")); serr != nil {
		return nil, serr
	}
	return body, nil
}

// AddFeatures submits records to the edit layer. The token is sent as a
// request parameter.
func (c *Client) AddFeatures(ctx context.Context, token string, feats []Feature) ([]EditResult, error) {
	data, err := json.Marshal(feats)
	if err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("f", "json")
	form.Set("features", string(data))
	if token != "" {
		form.Set("token", token)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.LayerURL+"/addFeatures", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("addFeatures: %w", err)
	}
	var results []EditResult
	gjson.GetBytes(body, "addResults").ForEach(func(_, res gjson.Result) bool {
		results = append(results, EditResult{
			ObjectID: res.Get("objectId").Int(),
			GlobalID: res.Get("globalId").String(),
			Success:  res.Get("success").Bool(),
			Err:      parseServiceError(res.Get("error")),
		})
		return true
	})
	if len(results) == 0 {
		return nil, fmt.Errorf("addFeatures: %w", ErrNoResults)
	}
	return results, nil
}

// Query returns the view layer records matching where, as GeoJSON.
func (c *Client) Query(ctx context.Context, token, where string) (*feature.Collection, error) {
	q := url.Values{}
	q.Set("where", where)
	q.Set("outFields", "*")
	q.Set("f", "geojson")
	if token != "" {
		q.Set("token", token)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.viewURL()+"/query?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return feature.DecodeCollection(body)
}

// Record re-queries a single record by object id.
func (c *Client) Record(ctx context.Context, token string, objectID int64) (*feature.Feature, error) {
	res, err := c.Query(ctx, token, "OBJECTID="+strconv.FormatInt(objectID, 10))
	if err != nil {
		return nil, err
	}
	if res.Len() == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, objectID)
	}
	return res.Features[0], nil
}
