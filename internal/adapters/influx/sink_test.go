package influx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Coldness00/Fumes-Detector/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testVerdict() *core.Verdict {
	return core.NewVerdict("cam a.jpg", "Yes = 73", fixedTime, core.StateRecorded)
}

func TestSinkWritesLineProtocol(t *testing.T) {
	var body, db, user, pass string
	var authOK bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		db = r.URL.Query().Get("db")
		user, pass, authOK = r.BasicAuth()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	enc := NewVerdictEncoder("smoke_detection_pipes", "llava", "http://localhost:9822")
	sink := NewSink(server.URL+"/write", "fumes", "writer", "secret", time.Second, enc, zaptest.NewLogger(t))
	assert.Equal(t, "influx", sink.Name())

	require.NoError(t, sink.Write(context.Background(), testVerdict()))
	assert.Equal(t, "fumes", db)
	assert.True(t, authOK)
	assert.Equal(t, "writer", user)
	assert.Equal(t, "secret", pass)
	assert.Contains(t, body, `confidence=0.73`)
	assert.Contains(t, body, `image_filename="cam a.jpg"`)
	assert.Contains(t, body, `answer="yes"`)
}

func TestSinkWithoutCredentials(t *testing.T) {
	var hasAuth bool
	var rawQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, hasAuth = r.BasicAuth()
		rawQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sink := NewSink(server.URL+"/write?precision=ns", "", "", "", time.Second, NewVerdictEncoder("m", "s", ""), zaptest.NewLogger(t))
	require.NoError(t, sink.Write(context.Background(), testVerdict()))
	assert.False(t, hasAuth)
	assert.Equal(t, "precision=ns", rawQuery)
}

func TestSinkReportsUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database not found", http.StatusNotFound)
	}))
	defer server.Close()

	sink := NewSink(server.URL, "missing", "", "", time.Second, NewVerdictEncoder("m", "s", ""), zaptest.NewLogger(t))

	err := sink.Write(context.Background(), testVerdict())
	var telemetryErr *core.TelemetryError
	require.ErrorAs(t, err, &telemetryErr)
	assert.Equal(t, http.StatusNotFound, telemetryErr.StatusCode)
	assert.Equal(t, "influx", telemetryErr.Sink)

	// Publish only logs the failure
	sink.Publish(context.Background(), testVerdict())
}

func TestSinkReportsUnreachableServer(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	sink := NewSink(url, "", "", "", 200*time.Millisecond, NewVerdictEncoder("m", "s", ""), zaptest.NewLogger(t))

	var telemetryErr *core.TelemetryError
	require.ErrorAs(t, sink.Write(context.Background(), testVerdict()), &telemetryErr)
	assert.Equal(t, 0, telemetryErr.StatusCode)
}
