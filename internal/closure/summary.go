package closure

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gwclose/gwclose/internal/feature"
)

// Item is one labeled line of a closure summary.
type Item struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Summary lists the closure fields of a created record for display. Empty
// fields are skipped. Dates may be calendar strings or the epoch
// milliseconds returned by the feature service.
func Summary(props feature.Properties) []Item {
	var items []Item
	add := func(label, value string) {
		if value != "" {
			items = append(items, Item{label, value})
		}
	}
	add("Title", text(props[KeyTitle]))
	if s := text(props[KeyStatus]); s != "" {
		add("Status", ParseStatus(s).String())
	}
	add("Start Date", date(props[KeyStartDate]))
	add("End Date (estimated)", date(props[KeyEndDate]))
	add("Description", text(props[KeyDescription]))
	return items
}

func text(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func date(v interface{}) string {
	var ms int64
	switch v := v.(type) {
	case string:
		if t, err := ParseDate(v); err == nil {
			if t.IsZero() {
				return ""
			}
			return t.Format(DateLayout)
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return v
		}
		ms = n
	case float64:
		ms = int64(v)
	case int64:
		ms = v
	case int:
		ms = int64(v)
	default:
		return ""
	}
	if ms <= 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(DateLayout)
}

// EpochMillis converts a calendar date to epoch milliseconds at UTC
// midnight. Empty dates return ok false.
func EpochMillis(s string) (ms int64, ok bool, err error) {
	t, err := ParseDate(s)
	if err != nil || t.IsZero() {
		return 0, false, err
	}
	return t.UnixMilli(), true, nil
}
