package notify

import (
	"time"

	"github.com/gwclose/gwclose/internal/feature"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// EventCreated is sent after a closure record is created.
const EventCreated = "closure.created"

// Message builds the closure created event for a record.
func Message(objectID int64, f *feature.Feature, now time.Time) string {
	msg := `{"event":"` + EventCreated + `"}`
	msg, _ = sjson.Set(msg, "object_id", objectID)
	msg, _ = sjson.Set(msg, "time", now.UTC().Format(time.RFC3339Nano))
	if f == nil {
		return msg
	}
	doc := gjson.ParseBytes(feature.EncodeFeature(f))
	msg, _ = sjson.SetRaw(msg, "properties", doc.Get("properties").Raw)
	msg, _ = sjson.SetRaw(msg, "geometry", doc.Get("geometry").Raw)
	return msg
}
