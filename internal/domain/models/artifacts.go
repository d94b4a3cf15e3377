package models

import (
	"encoding/json"
	"time"
)

// SegmentArtifacts is the persisted form of a trained segment model.
// Model and Scaler are opaque JSON documents owned by the ml package.
type SegmentArtifacts struct {
	Segment Segment
	SavedAt time.Time
	Samples int
	Model   json.RawMessage
	Scaler  json.RawMessage
	// Prices is nil when no cached price file was found on load.
	Prices map[string][]Bar
}
