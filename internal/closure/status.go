// Package closure holds the closure attributes that are written onto a
// closure candidate before it is submitted.
package closure

import "strings"

// Status is the closure status stored in the gwstatus field.
type Status int

const (
	Unknown Status = iota
	ClosedStorm
	ClosedTemp
	Alert
)

var statuses = [...]struct {
	code  string
	label string
	color string
}{
	Unknown:     {"UNKNOWN", "unknown", "#78909C"},
	ClosedStorm: {"CLOSED_STORM", "closed: storm damage", "#673AB7"},
	ClosedTemp:  {"CLOSED_TEMP", "closed: temporary", "#b71c1c"},
	Alert:       {"ALERT", "alert", "#FFEB3B"},
}

func (s Status) valid() bool {
	return s >= 0 && int(s) < len(statuses)
}

// Code returns the value stored by the feature service.
func (s Status) Code() string {
	if !s.valid() {
		return statuses[Unknown].code
	}
	return statuses[s].code
}

// String returns the human label.
func (s Status) String() string {
	if !s.valid() {
		return statuses[Unknown].label
	}
	return statuses[s].label
}

// Color is the stroke color used when drawing closures with this status.
func (s Status) Color() string {
	if !s.valid() {
		return statuses[Unknown].color
	}
	return statuses[s].color
}

// ParseStatus accepts a status code or label in any case. Anything it does
// not recognize is Unknown.
func ParseStatus(s string) Status {
	s = strings.TrimSpace(s)
	for i, st := range statuses {
		if strings.EqualFold(s, st.code) || strings.EqualFold(s, st.label) {
			return Status(i)
		}
	}
	return Unknown
}

// Statuses lists the selectable statuses, Unknown excluded.
func Statuses() []Status {
	return []Status{ClosedStorm, ClosedTemp, Alert}
}
