package domain

import "fmt"

// Word is a single transcribed word with its start time in seconds.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
}

// Segment is a timed stretch of transcript text as produced by the transcriber.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words"`
}

// SegmentID identifies a segment within the search store.
func SegmentID(eid string, seg Segment) string {
	return fmt.Sprintf("%s_%g_%g", eid, seg.Start, seg.End)
}

// Chunk is a run of consecutive segments embedded as one unit for semantic search.
type Chunk struct {
	Start     float64   `json:"start"`
	End       float64   `json:"end"`
	Text      string    `json:"text"`
	Embedding []float64 `json:"embedding"`
}

// TimedToken is a named-entity occurrence at a point of an episode.
type TimedToken struct {
	Token     string  `json:"token"`
	Timestamp float64 `json:"timestamp"`
}
