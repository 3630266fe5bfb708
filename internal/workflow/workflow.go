// Package workflow drives a closure from a drawn polygon to a created
// feature service record.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gwclose/gwclose/internal/arcgis"
	"github.com/gwclose/gwclose/internal/closure"
	"github.com/gwclose/gwclose/internal/feature"
	"github.com/gwclose/gwclose/internal/geom"
	"github.com/gwclose/gwclose/internal/log"
	"github.com/gwclose/gwclose/internal/pipeline"
)

// State of the workflow.
type State int

const (
	Idle State = iota
	Drawing
	ClipReady
	SubmissionPending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Drawing:
		return "drawing"
	case ClipReady:
		return "clip_ready"
	case SubmissionPending:
		return "submission_pending"
	}
	return "unknown"
}

var (
	// ErrInvalidTransition is returned for an event the current state does
	// not accept.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNothingToSubmit is returned when the clip kept no trail geometry.
	ErrNothingToSubmit = errors.New("nothing to submit")
	// ErrRejected is returned when the feature service did not create the
	// record.
	ErrRejected = errors.New("closure rejected by feature service")
)

// Trails supplies the trail features that may reach a polygon.
type Trails interface {
	Candidates(poly *feature.Polygon) *feature.Collection
}

// Service is the feature service the closure is submitted to.
type Service interface {
	AddFeatures(ctx context.Context, token string, feats []arcgis.Feature) ([]arcgis.EditResult, error)
	Record(ctx context.Context, token string, objectID int64) (*feature.Feature, error)
}

// Sessions returns the token of the signed in session.
type Sessions interface {
	Token() (string, error)
}

// Notifier receives closure created events.
type Notifier interface {
	Broadcast(msg string) error
}

// Options configure a Workflow. Provider, Trails, Service and Sessions are
// required.
type Options struct {
	Provider geom.Provider
	Trails   Trails
	Service  Service
	Sessions Sessions
	Notifier Notifier

	// OnRun is called after every pipeline run.
	OnRun func(pipeline.Stats)
	// OnSubmit is called with "success", "rejected" or "error".
	OnSubmit func(outcome string)
}

// Record is a created closure.
type Record struct {
	ObjectID int64            `json:"object_id"`
	Feature  *feature.Feature `json:"-"`
	Summary  []closure.Item   `json:"summary"`
}

// Snapshot is a copy of the workflow state.
type Snapshot struct {
	State     State
	Polygon   *feature.Polygon
	Candidate *feature.Collection
	Stats     pipeline.Stats
}

// Workflow owns the single closure candidate. It is safe to call from
// multiple goroutines; events that arrive while a submission is pending are
// rejected.
type Workflow struct {
	opts Options

	mu        sync.Mutex
	state     State
	poly      *feature.Polygon
	candidate *feature.Collection
	stats     pipeline.Stats
}

// New returns a workflow in the Idle state.
func New(opts Options) *Workflow {
	if opts.Provider == nil {
		opts.Provider = geom.Tidwall{}
	}
	return &Workflow{opts: opts}
}

// State returns the current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Snapshot returns the current state. The candidate is a deep copy.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := Snapshot{State: w.state, Polygon: w.poly, Stats: w.stats}
	if w.candidate != nil {
		s.Candidate = &feature.Collection{}
		for _, f := range w.candidate.Features {
			s.Candidate.Features = append(s.Candidate.Features, f.Clone())
		}
	}
	return s
}

func (w *Workflow) invalid(event string) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, event, w.state)
}

func (w *Workflow) set(event string, to State) {
	log.Debugf("workflow: %s %s -> %s", event, w.state, to)
	w.state = to
}

// transition moves to the to state when the current state is one of from.
func (w *Workflow) transition(event string, to State, from ...State) error {
	for _, s := range from {
		if w.state == s {
			w.set(event, to)
			return nil
		}
	}
	return w.invalid(event)
}

func (w *Workflow) clear() {
	w.poly = nil
	w.candidate = nil
	w.stats = pipeline.Stats{}
}

// DrawStart begins a new drawing and drops any candidate.
func (w *Workflow) DrawStart() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.transition("draw start", Drawing, Idle, Drawing, ClipReady); err != nil {
		return err
	}
	w.clear()
	return nil
}

// DrawCreated clips the trails to a finished polygon.
func (w *Workflow) DrawCreated(poly *feature.Polygon) (pipeline.Stats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != Idle && w.state != Drawing {
		return pipeline.Stats{}, w.invalid("draw created")
	}
	if err := w.run(poly); err != nil {
		return pipeline.Stats{}, err
	}
	w.set("draw created", ClipReady)
	return w.stats, nil
}

// EditVertex clips the trails again to an edited polygon.
func (w *Workflow) EditVertex(poly *feature.Polygon) (pipeline.Stats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != ClipReady {
		return pipeline.Stats{}, w.invalid("edit vertex")
	}
	if err := w.run(poly); err != nil {
		return pipeline.Stats{}, err
	}
	return w.stats, nil
}

// Delete drops the polygon and candidate.
func (w *Workflow) Delete() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.transition("delete", Idle, Drawing, ClipReady); err != nil {
		return err
	}
	w.clear()
	return nil
}

// run replaces the candidate. The previous candidate is kept when poly is
// invalid.
func (w *Workflow) run(poly *feature.Polygon) error {
	if poly == nil {
		return pipeline.ErrNoClip
	}
	if err := poly.Validate(); err != nil {
		return err
	}
	var trails *feature.Collection
	if w.opts.Trails != nil {
		trails = w.opts.Trails.Candidates(poly)
	}
	candidate, stats, err := pipeline.Run(w.opts.Provider, trails, poly)
	if err != nil && !errors.Is(err, pipeline.ErrNothingToDissolve) {
		return err
	}
	if w.opts.OnRun != nil {
		w.opts.OnRun(stats)
	}
	w.poly = poly
	w.stats = stats
	w.candidate = nil
	if err != nil {
		log.Infof("workflow: no trails inside the polygon (%d examined)", stats.Visited)
	} else {
		w.candidate = candidate
		log.Debugf("workflow: candidate has %d parts (kept %d, split %d, clip %s, dissolve %s)",
			stats.Parts, stats.Kept, stats.Split, stats.Clip, stats.Dissolve)
	}
	return nil
}
