package models

import "time"

// Segment is a market-capitalisation bucket with its own model.
type Segment string

const (
	LargeCap Segment = "large_cap"
	MidCap   Segment = "mid_cap"
	SmallCap Segment = "small_cap"

	// UnknownSegment is returned by category lookups for symbols outside the universe.
	UnknownSegment Segment = "unknown"
)

// Segments lists the trained segments in merge order.
var Segments = []Segment{LargeCap, MidCap, SmallCap}

func (s Segment) Valid() bool {
	switch s {
	case LargeCap, MidCap, SmallCap:
		return true
	default:
		return false
	}
}

// StockUniverse is the candidate symbol list per segment.
type StockUniverse struct {
	Timestamp time.Time            `json:"timestamp"`
	Stocks    map[Segment][]string `json:"stocks"`
}

// Category returns the segment listing symbol, or UnknownSegment.
func (u StockUniverse) Category(symbol string) Segment {
	for _, seg := range Segments {
		for _, s := range u.Stocks[seg] {
			if s == symbol {
				return seg
			}
		}
	}
	return UnknownSegment
}

// SegmentStatus describes a live segment model.
type SegmentStatus struct {
	Segment   Segment   `json:"segment"`
	Trained   bool      `json:"trained"`
	TrainedAt time.Time `json:"trained_at,omitempty"`
	Symbols   []string  `json:"symbols"`
	Samples   int       `json:"samples"`
}
