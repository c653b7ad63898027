package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Coldness00/Fumes-Detector/internal/core"
	"github.com/Coldness00/Fumes-Detector/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testImage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func newTestClient(t *testing.T, url string) *OllamaClient {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return NewOllamaClient(
		&http.Client{Timeout: 5 * time.Second},
		url,
		"llava",
		0.8,
		0.9,
		42,
		utils.NewImageNormalizer(logger, 90),
		utils.NewTextProcessor(logger),
		logger,
	)
}

func TestInferConcatenatesStream(t *testing.T) {
	var received generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		fmt.Fprintln(w, `{"response":"Yes","done":false}`)
		fmt.Fprintln(w, ``)
		fmt.Fprintln(w, `{"response":" = 8","done":false}`)
		fmt.Fprintln(w, `{"response":"0","done":true}`)
	}))
	defer server.Close()

	text, err := newTestClient(t, server.URL).Infer(context.Background(), testImage(t), "Any fumes?")
	require.NoError(t, err)
	assert.Equal(t, "Yes = 80", text)

	assert.Equal(t, "llava", received.Model)
	assert.Equal(t, "Any fumes?", received.Prompt)
	assert.True(t, received.Stream)
	assert.InDelta(t, 0.8, received.Options.Temperature, 1e-6)
	assert.InDelta(t, 0.9, received.Options.TopP, 1e-6)
	assert.Equal(t, 42, received.Options.Seed)
	require.Len(t, received.Images, 1)
	assert.NotEmpty(t, received.Images[0])
}

func TestInferReportsStatusCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Infer(context.Background(), testImage(t), "prompt")
	var inferenceErr *core.InferenceError
	require.ErrorAs(t, err, &inferenceErr)
	assert.Equal(t, http.StatusNotFound, inferenceErr.StatusCode)
	assert.Contains(t, err.Error(), "model not found")
}

func TestInferStreamFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed element", body: "{\"response\":\"Yes\",\"done\":false}\nnot json\n"},
		{name: "error element", body: "{\"error\":\"out of memory\"}\n"},
		{name: "missing done", body: "{\"response\":\"Yes = 80\",\"done\":false}\n"},
		{name: "empty body", body: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			_, err := newTestClient(t, server.URL).Infer(context.Background(), testImage(t), "prompt")
			var inferenceErr *core.InferenceError
			require.ErrorAs(t, err, &inferenceErr)
			assert.Equal(t, 0, inferenceErr.StatusCode)
		})
	}
}

func TestInferRejectsUndecodableImage(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Infer(context.Background(), []byte("nope"), "prompt")
	var inferenceErr *core.InferenceError
	require.ErrorAs(t, err, &inferenceErr)
	assert.False(t, called)
}

func TestInferHonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, server.URL).Infer(ctx, testImage(t), "prompt")
	var inferenceErr *core.InferenceError
	require.ErrorAs(t, err, &inferenceErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
