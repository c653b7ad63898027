package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Coldness00/Fumes-Detector/internal/core"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeToken struct {
	completed bool
	err       error
}

func (t *fakeToken) Wait() bool { return t.completed }

func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.completed }

func (t *fakeToken) Error() error { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if t.completed {
		close(ch)
	}
	return ch
}

type publishCall struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	calls []publishCall
	token *fakeToken
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.calls = append(c.calls, publishCall{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return c.token
}

func TestPublishSendsVerdictEvent(t *testing.T) {
	client := &fakeClient{token: &fakeToken{completed: true}}
	link := func(id string) string { return "http://localhost:9822/images/" + id }
	p := NewPublisher(client, "fumes/verdicts", 1, "Roof", "llava", link, zaptest.NewLogger(t))
	assert.Equal(t, "mqtt", p.Name())

	recordedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
	verdict := core.NewVerdict("a.jpg", "Yes = 90", recordedAt, core.StateRecorded)
	require.NoError(t, p.publish(verdict))

	require.Len(t, client.calls, 1)
	call := client.calls[0]
	assert.Equal(t, "fumes/verdicts", call.topic)
	assert.Equal(t, byte(1), call.qos)
	assert.False(t, call.retained)

	var event VerdictEvent
	require.NoError(t, json.Unmarshal(call.payload, &event))
	assert.Equal(t, "a.jpg", event.ImageID)
	assert.Equal(t, "yes", event.Answer)
	assert.InDelta(t, 0.9, event.Confidence, 1e-9)
	assert.Equal(t, "Yes = 90", event.RawText)
	assert.True(t, event.RecordedAt.Equal(recordedAt))
	assert.Equal(t, "Roof", event.Camera)
	assert.Equal(t, "llava", event.Source)
	assert.Equal(t, "http://localhost:9822/images/a.jpg", event.Link)
}

func TestPublishWithoutLink(t *testing.T) {
	client := &fakeClient{token: &fakeToken{completed: true}}
	p := NewPublisher(client, "t", 0, "", "", nil, zaptest.NewLogger(t))

	require.NoError(t, p.publish(core.NewVerdict("a.jpg", "No = 5", time.Now(), core.StateRecorded)))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(client.calls[0].payload, &raw))
	assert.NotContains(t, raw, "link")
	assert.NotContains(t, raw, "camera")
}

func TestPublishFailures(t *testing.T) {
	verdict := core.NewVerdict("a.jpg", "No = 5", time.Now(), core.StateRecorded)

	timeout := NewPublisher(&fakeClient{token: &fakeToken{}}, "t", 0, "", "", nil, zaptest.NewLogger(t))
	var telemetryErr *core.TelemetryError
	require.ErrorAs(t, timeout.publish(verdict), &telemetryErr)
	assert.Equal(t, "mqtt", telemetryErr.Sink)

	broken := errors.New("not connected")
	failing := NewPublisher(&fakeClient{token: &fakeToken{completed: true, err: broken}}, "t", 0, "", "", nil, zaptest.NewLogger(t))
	assert.ErrorIs(t, failing.publish(verdict), broken)

	// Publish swallows the error
	failing.Publish(context.Background(), verdict)
}
