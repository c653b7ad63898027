package factory

import (
	"fmt"

	"github.com/Coldness00/Fumes-Detector/internal/adapters/alert"
	"github.com/Coldness00/Fumes-Detector/internal/adapters/influx"
	"github.com/Coldness00/Fumes-Detector/internal/adapters/mqtt"
	"github.com/Coldness00/Fumes-Detector/internal/config"
	"github.com/Coldness00/Fumes-Detector/internal/core"
	"github.com/Coldness00/Fumes-Detector/internal/utils"
	"go.uber.org/zap"
)

// SinkFactory creates the verdict sinks enabled in the configuration
type SinkFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	modelName     string
	closers       []func()
}

// NewSinkFactory creates a new sink factory. modelName is the default telemetry source tag.
func NewSinkFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor, modelName string) *SinkFactory {
	return &SinkFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
		modelName:     modelName,
	}
}

// Encoder returns the line protocol encoder for the configuration
func (f *SinkFactory) Encoder() *influx.VerdictEncoder {
	telemetryCfg := f.cfg.GetTelemetry()
	source := telemetryCfg.Source
	if source == "" {
		source = f.modelName
	}
	return influx.NewVerdictEncoder(telemetryCfg.Measurement, source, telemetryCfg.LinkBase())
}

// CreateVerdictSinks creates every enabled sink
func (f *SinkFactory) CreateVerdictSinks() ([]core.VerdictSink, error) {
	encoder := f.Encoder()
	sinks := make([]core.VerdictSink, 0, 3)

	telemetryCfg := f.cfg.GetTelemetry()
	if telemetryCfg.Enabled && telemetryCfg.URL != "" {
		sinks = append(sinks, influx.NewSink(
			telemetryCfg.URL,
			telemetryCfg.Database,
			telemetryCfg.Username,
			telemetryCfg.Password,
			telemetryCfg.Timeout,
			encoder,
			f.logger,
		))
	} else {
		f.logger.Warn("Telemetry URL not configured, skipping InfluxDB writes")
	}

	mqttCfg := f.cfg.GetMQTT()
	if mqttCfg.Enabled {
		client, err := mqtt.Connect(mqttCfg.Broker, mqttCfg.ClientID, mqttCfg.Username, mqttCfg.Password, f.logger)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create MQTT publisher: %w", err)
		}
		f.closers = append(f.closers, func() { client.Disconnect(250) })
		sinks = append(sinks, mqtt.NewPublisher(
			client,
			mqttCfg.Topic,
			mqttCfg.QoS,
			f.cfg.GetCameraName(),
			encoder.Source(),
			encoder.ImageLink,
			f.logger,
		))
	}

	alertCfg := f.cfg.GetAlert()
	if alertCfg.Enabled {
		sinks = append(sinks, alert.NewSMTPNotifier(alert.Options{
			Address:   alertCfg.SMTPAddress,
			Username:  alertCfg.Username,
			Password:  alertCfg.Password,
			StartTLS:  alertCfg.StartTLS,
			From:      alertCfg.From,
			To:        alertCfg.To,
			Threshold: alertCfg.Threshold,
			Answers:   alertCfg.Answers,
			Camera:    f.cfg.GetCameraName(),
		}, encoder.ImageLink, f.textProcessor, f.logger))
	}

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	f.logger.Info("Verdict sinks configured", zap.Strings("sinks", names))

	return sinks, nil
}

// Close releases the connections held by the created sinks
func (f *SinkFactory) Close() {
	for _, closeFn := range f.closers {
		closeFn()
	}
	f.closers = nil
}
