package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gwclose/gwclose/internal/closure"
	"github.com/gwclose/gwclose/internal/feature"
	"github.com/gwclose/gwclose/internal/log"
	"github.com/gwclose/gwclose/internal/pipeline"
	"github.com/gwclose/gwclose/internal/session"
	"github.com/gwclose/gwclose/internal/workflow"
	"github.com/mmcloughlin/geohash"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	maxBodySize      = 8 << 20
	defaultPrecision = 9
)

// writeJSON writes an {"ok":true,...} object. json holds the fields that
// follow "ok".
func writeJSON(w http.ResponseWriter, status int, start time.Time, json string) {
	if json == "" {
		json = `{}`
	}
	out := `{"ok":true`
	if len(gjson.Parse(json).Map()) > 0 {
		out += "," + json[1:len(json)-1]
	}
	out += `,"elapsed":` + strconv.Quote(time.Since(start).String()) + `}`
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, out)
}

func writeError(w http.ResponseWriter, status int, start time.Time, err error) {
	if status >= 500 {
		log.Errorf("%v", err)
	}
	out := `{"ok":false,"err":` + strconv.Quote(err.Error()) +
		`,"elapsed":` + strconv.Quote(time.Since(start).String()) + `}`
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, out)
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBodySize))
}

func statsJSON(stats pipeline.Stats) string {
	json := `{}`
	json, _ = sjson.Set(json, "visited", stats.Visited)
	json, _ = sjson.Set(json, "kept", stats.Kept)
	json, _ = sjson.Set(json, "split", stats.Split)
	json, _ = sjson.Set(json, "parts", stats.Parts)
	json, _ = sjson.Set(json, "clip", stats.Clip.String())
	json, _ = sjson.Set(json, "dissolve", stats.Dissolve.String())
	return json
}

// stateJSON describes the workflow. The geohash is taken at the center of
// the candidate bounds.
func stateJSON(snap workflow.Snapshot, precision int) string {
	json := `{}`
	json, _ = sjson.Set(json, "state", snap.State.String())
	if snap.Polygon != nil {
		json, _ = sjson.SetRaw(json, "polygon", string(feature.EncodePolygon(snap.Polygon)))
	}
	if snap.Candidate != nil {
		json, _ = sjson.SetRaw(json, "candidate", string(feature.EncodeCollection(snap.Candidate)))
		c := snap.Candidate.Rect().Center()
		json, _ = sjson.Set(json, "geohash", geohash.EncodeWithPrecision(c.Y, c.X, uint(precision)))
	}
	if snap.State == workflow.ClipReady {
		json, _ = sjson.SetRaw(json, "stats", statsJSON(snap.Stats))
	}
	return json
}

func recordJSON(rec *workflow.Record) string {
	json := `{}`
	json, _ = sjson.Set(json, "object_id", rec.ObjectID)
	summary := rec.Summary
	if summary == nil {
		summary = []closure.Item{}
	}
	json, _ = sjson.Set(json, "summary", summary)
	if rec.Feature != nil {
		json, _ = sjson.SetRaw(json, "feature", string(feature.EncodeFeature(rec.Feature)))
	}
	return json
}

func sessionJSON(sess *session.Session) string {
	json := `{}`
	if sess == nil {
		json, _ = sjson.Set(json, "signed_in", false)
		return json
	}
	json, _ = sjson.Set(json, "signed_in", true)
	json, _ = sjson.Set(json, "username", sess.Username)
	json, _ = sjson.Set(json, "portal", sess.Portal)
	json, _ = sjson.Set(json, "expires", sess.Expires.UTC().Format(time.RFC3339))
	return json
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	precision := defaultPrecision
	if v := r.URL.Query().Get("precision"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 12 {
			writeError(w, http.StatusBadRequest, start,
				fmt.Errorf("%w: invalid precision %q", errBadRequest, v))
			return
		}
		precision = n
	}
	writeJSON(w, http.StatusOK, start, stateJSON(s.wf.Snapshot(), precision))
}

// handleTrails writes the loaded trails as a FeatureCollection, optionally
// filtered by a property pattern.
func (s *Server) handleTrails(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if s.opts.Trails == nil {
		writeError(w, http.StatusServiceUnavailable, start, errors.New("no trails loaded"))
		return
	}
	ds := s.opts.Trails
	q := r.URL.Query()
	if key := q.Get("key"); key != "" {
		ds = ds.Filter(key, q.Get("pattern"))
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("X-Trails-Count", strconv.Itoa(ds.Len()))
	w.Write(feature.EncodeCollection(ds.Collection()))
}

func (s *Server) handleDrawStart(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := s.wf.DrawStart(); err != nil {
		writeError(w, statusOf(err, http.StatusInternalServerError), start, err)
		return
	}
	writeJSON(w, http.StatusOK, start, stateJSON(s.wf.Snapshot(), defaultPrecision))
}

func (s *Server) handleDrawCreated(w http.ResponseWriter, r *http.Request) {
	s.handleDraw(w, r, s.wf.DrawCreated)
}

func (s *Server) handleEditVertex(w http.ResponseWriter, r *http.Request) {
	s.handleDraw(w, r, s.wf.EditVertex)
}

func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request,
	event func(*feature.Polygon) (pipeline.Stats, error),
) {
	start := time.Now()
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, start, err)
		return
	}
	var poly *feature.Polygon
	if len(body) > 0 {
		if poly, err = feature.DecodePolygon(body); err != nil {
			writeError(w, http.StatusBadRequest, start, err)
			return
		}
	}
	if _, err := event(poly); err != nil {
		writeError(w, statusOf(err, http.StatusInternalServerError), start, err)
		return
	}
	writeJSON(w, http.StatusOK, start, stateJSON(s.wf.Snapshot(), defaultPrecision))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := s.wf.Delete(); err != nil {
		writeError(w, statusOf(err, http.StatusInternalServerError), start, err)
		return
	}
	writeJSON(w, http.StatusOK, start, stateJSON(s.wf.Snapshot(), defaultPrecision))
}

func parseAttributes(body []byte) (closure.Attributes, error) {
	if !gjson.ValidBytes(body) {
		return closure.Attributes{}, fmt.Errorf("%w: invalid json", errBadRequest)
	}
	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return closure.Attributes{}, fmt.Errorf("%w: expected an object", errBadRequest)
	}
	return closure.Attributes{
		Title:       res.Get(closure.KeyTitle).String(),
		Status:      res.Get(closure.KeyStatus).String(),
		Description: res.Get(closure.KeyDescription).String(),
		StartDate:   res.Get(closure.KeyStartDate).String(),
		EndDate:     res.Get(closure.KeyEndDate).String(),
	}, nil
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, start, err)
		return
	}
	attrs, err := parseAttributes(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, start, err)
		return
	}
	rec, err := s.wf.Submit(r.Context(), attrs)
	if err != nil {
		writeError(w, statusOf(err, http.StatusBadGateway), start, err)
		return
	}
	s.records.Set(rec.ObjectID, rec)
	writeJSON(w, http.StatusCreated, start, recordJSON(rec))
}

// handleRecord returns a created closure from the recent records, or from
// the feature service when it is not cached.
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := parseObjectID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, start, err)
		return
	}
	if v, ok := s.records.Get(id); ok {
		json, _ := sjson.Set(recordJSON(v.(*workflow.Record)), "cached", true)
		writeJSON(w, http.StatusOK, start, json)
		return
	}
	if s.opts.Records == nil {
		writeError(w, http.StatusNotFound, start, fmt.Errorf("closure %d not found", id))
		return
	}
	var token string
	if s.opts.Sessions != nil {
		// the view layer may be public
		token, _ = s.opts.Sessions.Token()
	}
	f, err := s.opts.Records.Record(r.Context(), token, id)
	if err != nil {
		writeError(w, statusOf(err, http.StatusBadGateway), start, err)
		return
	}
	rec := &workflow.Record{ObjectID: id, Feature: f, Summary: closure.Summary(f.Properties)}
	s.records.Set(id, rec)
	json, _ := sjson.Set(recordJSON(rec), "cached", false)
	writeJSON(w, http.StatusOK, start, json)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if s.opts.Sessions == nil {
		writeError(w, http.StatusServiceUnavailable, start, errors.New("no session store"))
		return
	}
	sess, err := s.opts.Sessions.Load()
	if err != nil && !errors.Is(err, session.ErrNoSession) {
		writeError(w, http.StatusInternalServerError, start, err)
		return
	}
	writeJSON(w, http.StatusOK, start, sessionJSON(sess))
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if s.opts.Sessions == nil || s.opts.Auth == nil {
		writeError(w, http.StatusServiceUnavailable, start, errors.New("sign in is not configured"))
		return
	}
	sess, err := s.opts.Auth.SignIn(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, start, err)
		return
	}
	if err := s.opts.Sessions.Save(sess); err != nil {
		writeError(w, statusOf(err, http.StatusInternalServerError), start, err)
		return
	}
	log.Infof("signed in as %s", sess.Username)
	writeJSON(w, http.StatusOK, start, sessionJSON(sess))
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if s.opts.Sessions == nil {
		writeError(w, http.StatusServiceUnavailable, start, errors.New("no session store"))
		return
	}
	if err := s.opts.Sessions.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, start, err)
		return
	}
	writeJSON(w, http.StatusOK, start, sessionJSON(nil))
}
