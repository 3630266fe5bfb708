package closure

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gwclose/gwclose/internal/feature"
)

// DateLayout is the calendar date layout used by the attribute form.
const DateLayout = "2006-01-02"

// Property keys written onto every part of the candidate.
const (
	KeyTitle       = "closure_title"
	KeyStatus      = "gwstatus"
	KeyDescription = "description"
	KeyStartDate   = "closure_start_date"
	KeyEndDate     = "closure_estimated_end_date"
)

var (
	// ErrInvalidDate is returned for a date that is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")
	// ErrDateRange is returned when the start date is after the end date.
	ErrDateRange = errors.New("start date must be on or before end date")
	// ErrNoCandidate is returned when there is nothing to assign to.
	ErrNoCandidate = errors.New("no closure candidate")
)

// Attributes are the closure fields entered by the user.
type Attributes struct {
	Title       string `json:"closure_title"`
	Status      string `json:"gwstatus"`
	Description string `json:"description"`
	StartDate   string `json:"closure_start_date"`
	EndDate     string `json:"closure_estimated_end_date"`
}

// ParseDate parses a calendar date. The empty string is the zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// Validate checks the dates. Either date may be empty, the range is only
// checked when both are set.
func (a Attributes) Validate() error {
	start, err := ParseDate(a.StartDate)
	if err != nil {
		return fmt.Errorf("start date: %w", err)
	}
	end, err := ParseDate(a.EndDate)
	if err != nil {
		return fmt.Errorf("end date: %w", err)
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return ErrDateRange
	}
	return nil
}

// Properties returns the five closure fields as a fresh property map.
func (a Attributes) Properties() feature.Properties {
	return feature.Properties{
		KeyTitle:       a.Title,
		KeyStatus:      ParseStatus(a.Status).Code(),
		KeyDescription: a.Description,
		KeyStartDate:   strings.TrimSpace(a.StartDate),
		KeyEndDate:     strings.TrimSpace(a.EndDate),
	}
}

// Assign overwrites the properties of every part of the candidate with the
// closure fields. Nothing is modified unless the attributes validate.
func Assign(candidate *feature.Collection, attrs Attributes) error {
	if candidate.Len() == 0 {
		return ErrNoCandidate
	}
	if err := attrs.Validate(); err != nil {
		return err
	}
	props := attrs.Properties()
	for _, f := range candidate.Features {
		f.Properties = props.Clone()
	}
	return nil
}
