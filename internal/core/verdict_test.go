package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		answer     Answer
		confidence float64
	}{
		{name: "canonical", raw: "Yes = 80", answer: AnswerYes, confidence: 0.8},
		{name: "no spaces", raw: "yes=80", answer: AnswerYes, confidence: 0.8},
		{name: "upper case", raw: "NO = 5", answer: AnswerNo, confidence: 0.05},
		{name: "maybe with trailing text", raw: "Maybe =50 because the corner is blurry", answer: AnswerMaybe, confidence: 0.5},
		{name: "embedded in a sentence", raw: "I would say yes = 73.", answer: AnswerYes, confidence: 0.73},
		{name: "clamped above 100", raw: "yes = 150", answer: AnswerYes, confidence: 1},
		{name: "huge number", raw: "maybe = 100000000000000000000000", answer: AnswerMaybe, confidence: 1},
		{name: "leading zeros", raw: "Yes = 080", answer: AnswerYes, confidence: 0.8},
		{name: "zero", raw: "No = 0", answer: AnswerNo, confidence: 0},
		{name: "first match wins", raw: "No=20, Yes=90", answer: AnswerNo, confidence: 0.2},
		{name: "skips unmatched word", raw: "yes = high, no = 30", answer: AnswerNo, confidence: 0.3},
		{name: "newline around equals", raw: "Yes\n=\n65", answer: AnswerYes, confidence: 0.65},
		{name: "bare answer", raw: "Yes", answer: AnswerUnknown, confidence: 0},
		{name: "not a whole word", raw: "eyes = 50", answer: AnswerUnknown, confidence: 0},
		{name: "word suffix", raw: "nothing = 50", answer: AnswerUnknown, confidence: 0},
		{name: "missing number", raw: "maybe = ", answer: AnswerUnknown, confidence: 0},
		{name: "negative number", raw: "yes = -5", answer: AnswerUnknown, confidence: 0},
		{name: "empty", raw: "", answer: AnswerUnknown, confidence: 0},
		{name: "error text", raw: "Error: ollama inference failed: connection refused", answer: AnswerUnknown, confidence: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer, confidence := ParseVerdict(tt.raw)
			assert.Equal(t, tt.answer, answer)
			assert.InDelta(t, tt.confidence, confidence, 1e-9)
		})
	}
}

func TestNewVerdictDerivesAnswerFromRawText(t *testing.T) {
	recordedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	v := NewVerdict("cam.jpg", "Maybe = 40", recordedAt, StateRecorded)

	assert.Equal(t, "cam.jpg", v.ImageID)
	assert.Equal(t, "Maybe = 40", v.RawText)
	assert.Equal(t, AnswerMaybe, v.Answer)
	assert.InDelta(t, 0.4, v.Confidence, 1e-9)
	assert.Equal(t, recordedAt, v.RecordedAt)
	assert.Equal(t, "recorded", v.State.String())
}

func TestFilterByAnswer(t *testing.T) {
	verdicts := []*Verdict{
		NewVerdict("a", "Yes = 90", time.Time{}, StateRecorded),
		NewVerdict("b", "No = 90", time.Time{}, StateRecorded),
		NewVerdict("c", "Maybe = 50", time.Time{}, StateRecorded),
		NewVerdict("d", "garbled", time.Time{}, StateRecorded),
	}

	assert.Len(t, FilterByAnswer(verdicts), 4)

	filtered := FilterByAnswer(verdicts, AnswerYes, AnswerMaybe)
	if assert.Len(t, filtered, 2) {
		assert.Equal(t, "a", filtered[0].ImageID)
		assert.Equal(t, "c", filtered[1].ImageID)
	}

	unknown := FilterByAnswer(verdicts, AnswerUnknown)
	if assert.Len(t, unknown, 1) {
		assert.Equal(t, "d", unknown[0].ImageID)
	}
}

func TestValidateImageID(t *testing.T) {
	for _, id := range []string{"cam.jpg", "2024-05-01 12.00.00.png", "a..b.jpg"} {
		assert.NoError(t, ValidateImageID(id), id)
	}
	for _, id := range []string{"", ".", "..", "../etc/passwd", "dir/cam.jpg", `dir\cam.jpg`, "/cam.jpg"} {
		assert.ErrorIs(t, ValidateImageID(id), ErrInvalidImageID, id)
	}
}
