package core

import (
	"sort"
	"time"
)

// Answer is the category extracted from the inference output
type Answer string

const (
	AnswerYes     Answer = "yes"
	AnswerNo      Answer = "no"
	AnswerMaybe   Answer = "maybe"
	AnswerUnknown Answer = "unknown"
)

// AnalysisState tracks where an image is in its analysis lifecycle
type AnalysisState int

const (
	StatePending AnalysisState = iota
	StateInferring
	StateRecorded
	StateFailed
)

// String returns the lower-case name of the state
func (s AnalysisState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInferring:
		return "inferring"
	case StateRecorded:
		return "recorded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Verdict represents the outcome of analysing a single image
type Verdict struct {
	ImageID      string
	RawText      string
	Answer       Answer
	Confidence   float64
	RecordedAt   time.Time
	State        AnalysisState
	ProcessingID string
}

// ImageInfo describes an image present in the watched directory
type ImageInfo struct {
	ID      string
	ModTime time.Time
	Size    int64
}

// SweepSummary reports what a retention sweep removed
type SweepSummary struct {
	RemovedFiles   int
	RemovedOrphans int
}

// NewVerdict builds a verdict from raw inference text. Answer and confidence
// are always derived from the raw text so there is a single canonical form.
func NewVerdict(imageID, rawText string, recordedAt time.Time, state AnalysisState) *Verdict {
	answer, confidence := ParseVerdict(rawText)
	return &Verdict{
		ImageID:    imageID,
		RawText:    rawText,
		Answer:     answer,
		Confidence: confidence,
		RecordedAt: recordedAt,
		State:      state,
	}
}

// FilterByAnswer keeps the verdicts whose answer is one of answers.
// With no answers every verdict is kept.
func FilterByAnswer(verdicts []*Verdict, answers ...Answer) []*Verdict {
	if len(answers) == 0 {
		return verdicts
	}

	wanted := make(map[Answer]struct{}, len(answers))
	for _, a := range answers {
		wanted[a] = struct{}{}
	}

	filtered := make([]*Verdict, 0, len(verdicts))
	for _, v := range verdicts {
		if _, ok := wanted[v.Answer]; ok {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

// sortedIDs returns the keys of m in ascending order
func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
