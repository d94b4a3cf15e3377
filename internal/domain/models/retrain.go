package models

import (
	"time"

	"github.com/google/uuid"
)

// SegmentRetrainResult is one segment's outcome in a retrain run.
type SegmentRetrainResult struct {
	Segment  Segment  `json:"segment"`
	Trained  bool     `json:"trained"`
	Verified []string `json:"verified"`
	Samples  int      `json:"samples,omitempty"`
	Skipped  []Skip   `json:"skipped,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// RetrainReport summarises a full retrain run.
type RetrainReport struct {
	RunID      uuid.UUID              `json:"run_id"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Segments   []SegmentRetrainResult `json:"segments"`
}

// TrainedCount returns how many segments trained in the run.
func (r RetrainReport) TrainedCount() int {
	n := 0
	for _, s := range r.Segments {
		if s.Trained {
			n++
		}
	}
	return n
}

// RetrainCommand is the admin trigger payload.
type RetrainCommand struct {
	Force       bool   `json:"force"`
	RequestedBy string `json:"requested_by"`
}

// SegmentTrainedEvent is published after a segment's artifacts are saved.
type SegmentTrainedEvent struct {
	Segment   Segment   `json:"segment"`
	Symbols   []string  `json:"symbols"`
	Samples   int       `json:"samples"`
	TrainedAt time.Time `json:"trained_at"`
}
