package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Coldness00/Fumes-Detector/internal/core"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	sinkName       = "mqtt"
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// tokenPublisher is the part of paho.Client used to publish
type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// VerdictEvent is the JSON payload published for every recorded verdict
type VerdictEvent struct {
	ImageID    string    `json:"image_id"`
	Answer     string    `json:"answer"`
	Confidence float64   `json:"confidence"`
	RawText    string    `json:"raw_text"`
	RecordedAt time.Time `json:"recorded_at"`
	Camera     string    `json:"camera,omitempty"`
	Source     string    `json:"source,omitempty"`
	Link       string    `json:"link,omitempty"`
}

// LinkFunc builds the public link of an image
type LinkFunc func(imageID string) string

// Publisher publishes verdict events to an MQTT topic
type Publisher struct {
	client tokenPublisher
	topic  string
	qos    byte
	camera string
	source string
	link   LinkFunc
	logger *zap.Logger
}

// NewPublisher creates a publisher on an already connected client
func NewPublisher(client tokenPublisher, topic string, qos byte, camera, source string, link LinkFunc, logger *zap.Logger) *Publisher {
	return &Publisher{
		client: client,
		topic:  topic,
		qos:    qos,
		camera: camera,
		source: source,
		link:   link,
		logger: logger,
	}
}

// Connect connects a paho client to broker with automatic reconnection.
// An empty clientID gets a random one.
func Connect(broker, clientID, username, password string, logger *zap.Logger) (paho.Client, error) {
	if clientID == "" {
		clientID = "fumes-detector-" + uuid.NewString()
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetUsername(username)
	opts.SetPassword(password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c paho.Client) {
		logger.Info("MQTT connection established", zap.String("broker", broker), zap.String("client_id", clientID))
	}
	opts.OnConnectionLost = func(c paho.Client, err error) {
		logger.Warn("MQTT connection lost, reconnecting", zap.String("broker", broker), zap.Error(err))
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	return client, nil
}

// Name returns the sink name
func (p *Publisher) Name() string {
	return sinkName
}

// Publish sends the verdict event and logs any failure
func (p *Publisher) Publish(ctx context.Context, verdict *core.Verdict) {
	if err := p.publish(verdict); err != nil {
		p.logger.Warn("Failed to publish verdict to MQTT",
			zap.String("image", verdict.ImageID),
			zap.String("topic", p.topic),
			zap.Error(err))
	}
}

func (p *Publisher) publish(verdict *core.Verdict) error {
	event := VerdictEvent{
		ImageID:    verdict.ImageID,
		Answer:     string(verdict.Answer),
		Confidence: verdict.Confidence,
		RawText:    verdict.RawText,
		RecordedAt: verdict.RecordedAt.UTC(),
		Camera:     p.camera,
		Source:     p.source,
	}
	if p.link != nil {
		event.Link = p.link(verdict.ImageID)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return &core.TelemetryError{Sink: sinkName, Err: fmt.Errorf("failed to marshal event: %w", err)}
	}

	token := p.client.Publish(p.topic, p.qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return &core.TelemetryError{Sink: sinkName, Err: fmt.Errorf("publish timeout")}
	}
	if err := token.Error(); err != nil {
		return &core.TelemetryError{Sink: sinkName, Err: err}
	}

	p.logger.Debug("Verdict published",
		zap.String("topic", p.topic),
		zap.Uint8("qos", p.qos),
		zap.Int("size", len(payload)))
	return nil
}
