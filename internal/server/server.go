// Package server is the gwclose HTTP JSON API. The map front end drives the
// closure workflow through it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gwclose/gwclose/internal/arcgis"
	"github.com/gwclose/gwclose/internal/closure"
	"github.com/gwclose/gwclose/internal/feature"
	"github.com/gwclose/gwclose/internal/log"
	"github.com/gwclose/gwclose/internal/pipeline"
	"github.com/gwclose/gwclose/internal/session"
	"github.com/gwclose/gwclose/internal/trails"
	"github.com/gwclose/gwclose/internal/workflow"
	"github.com/tidwall/limiter"
	"github.com/tidwall/tinylru"
	"go.uber.org/atomic"
)

const (
	defaultMaxRequests   = 64
	defaultRecentRecords = 256
	shutdownTimeout      = 10 * time.Second
)

var errBadRequest = errors.New("bad request")

// Records re-queries created closures.
type Records interface {
	Record(ctx context.Context, token string, objectID int64) (*feature.Feature, error)
}

// Options configure a Server.
type Options struct {
	// Workflow options. Trails and Sessions default to the values below.
	Workflow workflow.Options

	Trails   *trails.Dataset
	Records  Records
	Sessions *session.Store
	Auth     *session.Authenticator

	MaxRequests   int // concurrent requests
	RecentRecords int // created records kept for GET /closures/{id}
}

// Server is the HTTP API.
type Server struct {
	opts    Options
	wf      *workflow.Workflow
	router  chi.Router
	limit   *limiter.Limiter
	records tinylru.LRU
	started time.Time

	requests atomic.Int64
	failures atomic.Int64
	inflight atomic.Int64
}

// New returns a server driving a new workflow.
func New(opts Options) *Server {
	if opts.MaxRequests <= 0 {
		opts.MaxRequests = defaultMaxRequests
	}
	if opts.RecentRecords <= 0 {
		opts.RecentRecords = defaultRecentRecords
	}
	if opts.Workflow.Trails == nil && opts.Trails != nil {
		opts.Workflow.Trails = opts.Trails
	}
	if opts.Workflow.Sessions == nil && opts.Sessions != nil {
		opts.Workflow.Sessions = opts.Sessions
	}
	s := &Server{
		opts:    opts,
		limit:   limiter.New(opts.MaxRequests),
		started: time.Now(),
	}
	s.records.Resize(opts.RecentRecords)

	onRun, onSubmit := opts.Workflow.OnRun, opts.Workflow.OnSubmit
	opts.Workflow.OnRun = func(stats pipeline.Stats) {
		observeRun(stats)
		if onRun != nil {
			onRun(stats)
		}
	}
	opts.Workflow.OnSubmit = func(outcome string) {
		submissions.WithLabelValues(outcome).Inc()
		if onSubmit != nil {
			onSubmit(outcome)
		}
	}
	s.wf = workflow.New(opts.Workflow)
	s.router = s.routes()
	return s
}

// Workflow returns the workflow driven by the server.
func (s *Server) Workflow() *workflow.Workflow {
	return s.wf
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.track)

	r.Get("/", s.MetricsIndexHandler)
	r.Get("/metrics", s.MetricsHandler)
	r.Get("/state", s.handleState)
	r.Get("/trails", s.handleTrails)

	r.Route("/draw", func(r chi.Router) {
		r.Post("/start", s.handleDrawStart)
		r.Post("/", s.handleDrawCreated)
		r.Put("/", s.handleEditVertex)
		r.Delete("/", s.handleDelete)
	})
	r.Post("/closures", s.handleSubmit)
	r.Get("/closures/{id}", s.handleRecord)

	r.Get("/session", s.handleSession)
	r.Post("/session", s.handleSignIn)
	r.Delete("/session", s.handleSignOut)
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// track caps concurrent requests, tags each request with an id and logs it.
func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.limit.Begin()
		defer s.limit.End()
		s.inflight.Inc()
		defer s.inflight.Dec()
		s.requests.Inc()

		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if status >= 400 {
			s.failures.Inc()
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		requestDurations.WithLabelValues(r.Method + " " + route).Observe(elapsed.Seconds())
		log.HTTPf("%s %s %s %d %s", id, r.Method, r.URL.Path, status, elapsed)
	})
}

// Serve accepts connections on addr until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		done <- srv.Shutdown(sctx)
	}()
	log.Infof("Ready to accept connections at %s", ln.Addr())
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return <-done
}

// statusOf maps an error to a response status. fallback is used for errors
// that are not known to the API.
func statusOf(err error, fallback int) int {
	var serr *arcgis.ServiceError
	switch {
	case errors.Is(err, workflow.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, arcgis.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, feature.ErrInvalidJSON),
		errors.Is(err, feature.ErrNotPolygon),
		errors.Is(err, feature.ErrInvalidPolygon),
		errors.Is(err, pipeline.ErrNoClip),
		errors.Is(err, closure.ErrDateRange),
		errors.Is(err, closure.ErrInvalidDate),
		errors.Is(err, closure.ErrNoCandidate),
		errors.Is(err, workflow.ErrNothingToSubmit):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrRejected),
		errors.Is(err, arcgis.ErrStatus),
		errors.Is(err, arcgis.ErrNoResults),
		errors.As(err, &serr):
		return http.StatusBadGateway
	}
	return fallback
}

func parseObjectID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid object id %q", errBadRequest, s)
	}
	return id, nil
}
