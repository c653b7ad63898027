package influx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Coldness00/Fumes-Detector/internal/core"
	"go.uber.org/zap"
)

const sinkName = "influx"

// Sink posts verdicts as line protocol to an InfluxDB write endpoint.
// Delivery is attempted once; failures are logged and dropped.
type Sink struct {
	httpClient *http.Client
	url        string
	database   string
	username   string
	password   string
	encoder    *VerdictEncoder
	logger     *zap.Logger
}

// NewSink creates a new line protocol sink
func NewSink(writeURL, database, username, password string, timeout time.Duration, encoder *VerdictEncoder, logger *zap.Logger) *Sink {
	return &Sink{
		httpClient: &http.Client{Timeout: timeout},
		url:        writeURL,
		database:   database,
		username:   username,
		password:   password,
		encoder:    encoder,
		logger:     logger,
	}
}

// Name returns the sink name
func (s *Sink) Name() string {
	return sinkName
}

// Publish sends the verdict and logs any failure
func (s *Sink) Publish(ctx context.Context, verdict *core.Verdict) {
	if err := s.Write(ctx, verdict); err != nil {
		s.logger.Warn("Failed to write verdict to InfluxDB",
			zap.String("image", verdict.ImageID),
			zap.Error(err))
	}
}

// Write sends a single verdict and returns a TelemetryError on failure
func (s *Sink) Write(ctx context.Context, verdict *core.Verdict) error {
	line, err := s.encoder.Encode(verdict.Answer, verdict.Confidence, verdict.ImageID, verdict.RecordedAt)
	if err != nil {
		if errors.Is(err, ErrNoFields) {
			s.logger.Debug("No fields to write, skipping", zap.String("image", verdict.ImageID))
			return nil
		}
		return &core.TelemetryError{Sink: sinkName, Err: err}
	}

	endpoint, err := url.Parse(s.url)
	if err != nil {
		return &core.TelemetryError{Sink: sinkName, Err: fmt.Errorf("invalid write URL: %w", err)}
	}
	if s.database != "" {
		query := endpoint.Query()
		query.Set("db", s.database)
		endpoint.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(line))
	if err != nil {
		return &core.TelemetryError{Sink: sinkName, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &core.TelemetryError{Sink: sinkName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &core.TelemetryError{
			Sink:       sinkName,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(msg))),
		}
	}

	s.logger.Info("Sent verdict to InfluxDB",
		zap.String("image", verdict.ImageID),
		zap.String("answer", string(verdict.Answer)),
		zap.Float64("confidence", verdict.Confidence),
		zap.String("link", s.encoder.ImageLink(verdict.ImageID)))
	return nil
}
