package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gwclose/gwclose/internal/arcgis"
	"github.com/gwclose/gwclose/internal/closure"
	"github.com/gwclose/gwclose/internal/feature"
	"github.com/gwclose/gwclose/internal/pipeline"
	"github.com/gwclose/gwclose/internal/session"
	"github.com/gwclose/gwclose/internal/trails"
	"github.com/gwclose/gwclose/internal/workflow"
	"github.com/tidwall/assert"
	"github.com/tidwall/gjson"
)

const squareJSON = `{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]]]}`

const attrsJSON = `{
	"closure_title": "Bridge out",
	"gwstatus": "CLOSED_STORM",
	"closure_start_date": "2024-06-01",
	"closure_estimated_end_date": "2024-06-10"
}`

type fakeService struct {
	mu      sync.Mutex
	added   int
	queried []int64
}

func (s *fakeService) AddFeatures(ctx context.Context, token string, feats []arcgis.Feature) ([]arcgis.EditResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added++
	return []arcgis.EditResult{{ObjectID: 42, Success: true}}, nil
}

func (s *fakeService) Record(ctx context.Context, token string, objectID int64) (*feature.Feature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queried = append(s.queried, objectID)
	if objectID != 7 && objectID != 42 {
		return nil, fmt.Errorf("%w: %d", arcgis.ErrNotFound, objectID)
	}
	return feature.NewMultiLineString([]feature.Line{{{2, 2}, {8, 2}}}, feature.Properties{
		"OBJECTID":       float64(objectID),
		closure.KeyTitle: "Bridge out",
	}), nil
}

func dataset() *trails.Dataset {
	return trails.New("test", feature.NewCollection([]*feature.Feature{
		feature.NewLineString(feature.Line{{2, 2}, {8, 2}}, feature.Properties{"name": "inside", "surface": "Paved"}),
		feature.NewLineString(feature.Line{{5, 5}, {15, 5}}, feature.Properties{"name": "crossing", "surface": "Gravel"}),
		feature.NewLineString(feature.Line{{50, 50}, {60, 50}}, feature.Properties{"name": "far", "surface": "Paved"}),
	}))
}

func newServer(t *testing.T, signedIn bool) (*Server, *fakeService, *session.Store) {
	store, err := session.Open(":memory:")
	assert.Assert(err == nil)
	t.Cleanup(func() { store.Close() })
	if signedIn {
		assert.Assert(store.Save(&session.Session{
			Username: "editor",
			Token:    "tok",
			Expires:  time.Now().Add(time.Hour),
		}) == nil)
	}
	svc := &fakeService{}
	s := New(Options{
		Workflow: workflow.Options{Service: svc},
		Trails:   dataset(),
		Records:  svc,
		Sessions: store,
	})
	return s, svc, store
}

func do(s http.Handler, method, path, body string) (int, gjson.Result) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec.Code, gjson.Parse(rec.Body.String())
}

func TestDrawAndSubmit(t *testing.T) {
	s, svc, _ := newServer(t, true)

	code, res := do(s, "POST", "/draw/start", "")
	assert.Assert(code == 200)
	assert.Assert(res.Get("ok").Bool())
	assert.Assert(res.Get("state").String() == "drawing")

	code, res = do(s, "POST", "/draw", squareJSON)
	assert.Assert(code == 200)
	assert.Assert(res.Get("state").String() == "clip_ready")
	assert.Assert(res.Get("candidate.features.#").Int() == 1)
	assert.Assert(res.Get("candidate.features.0.geometry.type").String() == "MultiLineString")
	assert.Assert(res.Get("stats.parts").Int() == 2)
	assert.Assert(len(res.Get("geohash").String()) == defaultPrecision)
	assert.Assert(res.Get("elapsed").Exists())

	code, res = do(s, "GET", "/state?precision=5", "")
	assert.Assert(code == 200)
	assert.Assert(len(res.Get("geohash").String()) == 5)
	assert.Assert(res.Get("polygon.type").String() == "Polygon")

	code, res = do(s, "POST", "/closures", `{"closure_start_date":"2024-06-10","closure_estimated_end_date":"2024-06-01"}`)
	assert.Assert(code == 400)
	assert.Assert(!res.Get("ok").Bool())
	assert.Assert(res.Get("err").String() != "")
	assert.Assert(s.Workflow().State() == workflow.ClipReady)
	assert.Assert(svc.added == 0)

	code, res = do(s, "POST", "/closures", attrsJSON)
	assert.Assert(code == 201)
	assert.Assert(res.Get("object_id").Int() == 42)
	assert.Assert(res.Get("summary.0.label").String() == "Title")
	assert.Assert(res.Get("summary.0.value").String() == "Bridge out")
	assert.Assert(s.Workflow().State() == workflow.Idle)

	code, res = do(s, "GET", "/closures/42", "")
	assert.Assert(code == 200)
	assert.Assert(res.Get("cached").Bool())
	assert.Assert(res.Get("feature.type").String() == "Feature")

	code, res = do(s, "GET", "/state", "")
	assert.Assert(code == 200)
	assert.Assert(res.Get("state").String() == "idle")
	assert.Assert(!res.Get("candidate").Exists())
}

func TestInvalidTransitions(t *testing.T) {
	s, _, _ := newServer(t, true)
	code, _ := do(s, "PUT", "/draw", squareJSON)
	assert.Assert(code == 409)
	code, _ = do(s, "DELETE", "/draw", "")
	assert.Assert(code == 409)
	code, _ = do(s, "POST", "/closures", attrsJSON)
	assert.Assert(code == 409)

	code, _ = do(s, "POST", "/draw", squareJSON)
	assert.Assert(code == 200)
	code, _ = do(s, "POST", "/draw", squareJSON)
	assert.Assert(code == 409)
	code, res := do(s, "DELETE", "/draw", "")
	assert.Assert(code == 200)
	assert.Assert(res.Get("state").String() == "idle")
}

func TestBadRequests(t *testing.T) {
	s, _, _ := newServer(t, true)
	for _, body := range []string{
		"",
		"{",
		`{"type":"Point","coordinates":[1,2]}`,
		`{"type":"Polygon","coordinates":[[[0,0],[1,1],[2,2],[0,0]]]}`,
	} {
		code, res := do(s, "POST", "/draw", body)
		assert.Assert(code == 400)
		assert.Assert(!res.Get("ok").Bool())
	}
	assert.Assert(s.Workflow().State() == workflow.Idle)

	code, _ := do(s, "GET", "/state?precision=13", "")
	assert.Assert(code == 400)
	code, _ = do(s, "GET", "/closures/abc", "")
	assert.Assert(code == 400)

	// nothing inside the polygon
	code, res := do(s, "POST", "/draw", `{"type":"Polygon","coordinates":[[[100,100],[110,100],[110,110],[100,100]]]}`)
	assert.Assert(code == 200)
	assert.Assert(res.Get("state").String() == "clip_ready")
	assert.Assert(!res.Get("candidate").Exists())
	code, _ = do(s, "POST", "/closures", attrsJSON)
	assert.Assert(code == 400)
	code, _ = do(s, "POST", "/closures", `[1,2]`)
	assert.Assert(code == 400)
}

func TestSubmitWithoutSession(t *testing.T) {
	s, svc, _ := newServer(t, false)
	code, _ := do(s, "POST", "/draw", squareJSON)
	assert.Assert(code == 200)
	code, res := do(s, "POST", "/closures", attrsJSON)
	assert.Assert(code == 401)
	assert.Assert(res.Get("err").String() == session.ErrNoSession.Error())
	assert.Assert(s.Workflow().State() == workflow.ClipReady)
	assert.Assert(svc.added == 0)
}

func TestRecordRequery(t *testing.T) {
	s, svc, _ := newServer(t, false)
	code, res := do(s, "GET", "/closures/7", "")
	assert.Assert(code == 200)
	assert.Assert(!res.Get("cached").Bool())
	assert.Assert(res.Get("object_id").Int() == 7)
	assert.Assert(res.Get("summary.0.value").String() == "Bridge out")

	code, res = do(s, "GET", "/closures/7", "")
	assert.Assert(code == 200)
	assert.Assert(res.Get("cached").Bool())
	assert.Assert(len(svc.queried) == 1)

	code, _ = do(s, "GET", "/closures/8", "")
	assert.Assert(code == 404)
}

func TestSession(t *testing.T) {
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer","expires_in":7200}`))
	}))
	defer tokens.Close()

	s, _, store := newServer(t, false)
	s.opts.Auth = &session.Authenticator{
		Portal:       tokens.URL,
		ClientID:     "app",
		ClientSecret: "shh",
		HTTP:         tokens.Client(),
	}

	code, res := do(s, "GET", "/session", "")
	assert.Assert(code == 200)
	assert.Assert(!res.Get("signed_in").Bool())

	code, res = do(s, "POST", "/session", "")
	assert.Assert(code == 200)
	assert.Assert(res.Get("signed_in").Bool())
	assert.Assert(res.Get("username").String() == "app")
	assert.Assert(!res.Get("token").Exists())
	token, err := store.Token()
	assert.Assert(err == nil && token == "tok-1")

	code, res = do(s, "GET", "/session", "")
	assert.Assert(code == 200 && res.Get("signed_in").Bool())

	code, res = do(s, "DELETE", "/session", "")
	assert.Assert(code == 200 && !res.Get("signed_in").Bool())
	_, err = store.Token()
	assert.Assert(errors.Is(err, session.ErrNoSession))

	s.opts.Auth = nil
	code, _ = do(s, "POST", "/session", "")
	assert.Assert(code == 503)
}

func TestTrails(t *testing.T) {
	s, _, _ := newServer(t, true)
	req := httptest.NewRequest("GET", "/trails", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Assert(rec.Code == 200)
	assert.Assert(rec.Header().Get("Content-Type") == "application/geo+json")
	assert.Assert(rec.Header().Get("X-Request-Id") != "")
	assert.Assert(gjson.Get(rec.Body.String(), "features.#").Int() == 3)

	code, res := do(s, "GET", "/trails?key=surface&pattern=Pav*", "")
	assert.Assert(code == 200)
	assert.Assert(res.Get("features.#").Int() == 2)
	assert.Assert(res.Get("features.1.properties.name").String() == "far")
}

func TestMetrics(t *testing.T) {
	s, _, _ := newServer(t, true)
	do(s, "POST", "/draw", squareJSON)
	do(s, "POST", "/closures", attrsJSON)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Assert(rec.Code == 200)
	body := rec.Body.String()
	for _, name := range []string{
		"gwclose_pipeline_duration_seconds",
		`gwclose_submissions_total{outcome="success"}`,
		`gwclose_workflow_state{state="idle"} 1`,
		"gwclose_candidate_parts 0",
		"gwclose_trails 3",
		"gwclose_http_requests_total",
		`gwclose_server_info{provider="tidwall"`,
	} {
		if !strings.Contains(body, name) {
			t.Fatalf("missing %s", name)
		}
	}

	code, _ := do(s, "GET", "/", "")
	assert.Assert(code == 200)
}

func TestServe(t *testing.T) {
	s, _, _ := newServer(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	ln := httptest.NewUnstartedServer(nil).Listener
	go func() { errc <- s.serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/state")
	assert.Assert(err == nil)
	resp.Body.Close()
	assert.Assert(resp.StatusCode == 200)
	cancel()
	assert.Assert(<-errc == nil)
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("x: %w", workflow.ErrInvalidTransition), 409},
		{session.ErrNoSession, 401},
		{closure.ErrDateRange, 400},
		{fmt.Errorf("start date: %w", closure.ErrInvalidDate), 400},
		{feature.ErrInvalidPolygon, 400},
		{pipeline.ErrNoClip, 400},
		{workflow.ErrNothingToSubmit, 400},
		{fmt.Errorf("%w: bad", workflow.ErrRejected), 502},
		{&arcgis.ServiceError{Code: 498, Message: "Invalid token"}, 502},
		{fmt.Errorf("query: %w", arcgis.ErrStatus), 502},
		{fmt.Errorf("%w: 1", arcgis.ErrNotFound), 404},
		{errors.New("boom"), 500},
	}
	for _, c := range cases {
		assert.Assert(statusOf(c.err, 500) == c.code)
	}
}
