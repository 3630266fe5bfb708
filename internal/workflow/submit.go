package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gwclose/gwclose/internal/arcgis"
	"github.com/gwclose/gwclose/internal/closure"
	"github.com/gwclose/gwclose/internal/feature"
	"github.com/gwclose/gwclose/internal/log"
	"github.com/gwclose/gwclose/internal/notify"
)

// Submit assigns attrs to the candidate and adds it to the feature service.
// On success the workflow resets to Idle and the created record is
// returned. On failure the workflow returns to ClipReady with the candidate
// kept. Attribute or session errors leave the state and candidate
// untouched.
func (w *Workflow) Submit(ctx context.Context, attrs closure.Attributes) (*Record, error) {
	token, candidate, err := w.beginSubmit(attrs)
	if err != nil {
		return nil, err
	}
	rec, err := w.submit(ctx, token, candidate)

	w.mu.Lock()
	if err != nil {
		w.set("submit failed", ClipReady)
	} else {
		w.set("submit succeeded", Idle)
		w.clear()
	}
	w.mu.Unlock()

	outcome := "success"
	switch {
	case err == nil:
	case isRejected(err):
		outcome = "rejected"
	default:
		outcome = "error"
	}
	if w.opts.OnSubmit != nil {
		w.opts.OnSubmit(outcome)
	}
	if err != nil {
		log.Errorf("workflow: submit: %v", err)
		return nil, err
	}
	log.Infof("workflow: created closure %d", rec.ObjectID)
	if w.opts.Notifier != nil {
		go w.notify(rec)
	}
	return rec, nil
}

func (w *Workflow) beginSubmit(attrs closure.Attributes) (string, *feature.Collection, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != ClipReady {
		return "", nil, w.invalid("submit")
	}
	if w.candidate.Len() == 0 {
		return "", nil, ErrNothingToSubmit
	}
	if err := attrs.Validate(); err != nil {
		return "", nil, err
	}
	if w.opts.Sessions == nil {
		return "", nil, errors.New("submit: no session store")
	}
	token, err := w.opts.Sessions.Token()
	if err != nil {
		return "", nil, err
	}
	if err := closure.Assign(w.candidate, attrs); err != nil {
		return "", nil, err
	}
	w.set("submit", SubmissionPending)
	return token, w.candidate, nil
}

// submit runs without the lock. The candidate is not touched by other
// events while the state is SubmissionPending.
func (w *Workflow) submit(ctx context.Context, token string, candidate *feature.Collection) (*Record, error) {
	feats, err := arcgis.ToArcGIS(candidate, arcgis.DefaultConvertOptions())
	if err != nil {
		return nil, err
	}
	results, err := w.opts.Service.AddFeatures(ctx, token, feats)
	if err != nil {
		return nil, err
	}
	first := results[0]
	if !first.Success {
		if first.Err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRejected, first.Err)
		}
		return nil, ErrRejected
	}
	rec := &Record{ObjectID: first.ObjectID}
	rec.Feature, err = w.opts.Service.Record(ctx, token, first.ObjectID)
	if err != nil {
		// the record exists, show what was sent
		log.Warnf("workflow: re-query closure %d: %v", first.ObjectID, err)
		rec.Feature = candidate.Features[0].Clone()
		rec.Feature.Properties["OBJECTID"] = first.ObjectID
	}
	rec.Summary = closure.Summary(rec.Feature.Properties)
	return rec, nil
}

func (w *Workflow) notify(rec *Record) {
	msg := notify.Message(rec.ObjectID, rec.Feature, time.Now())
	if err := w.opts.Notifier.Broadcast(msg); err != nil {
		log.Warnf("workflow: notify closure %d: %v", rec.ObjectID, err)
	}
}

func isRejected(err error) bool {
	var serr *arcgis.ServiceError
	return errors.Is(err, ErrRejected) || errors.As(err, &serr)
}
