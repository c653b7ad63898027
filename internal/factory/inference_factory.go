package factory

import (
	"fmt"

	"github.com/Coldness00/Fumes-Detector/internal/adapters/bedrock"
	"github.com/Coldness00/Fumes-Detector/internal/adapters/gemini"
	"github.com/Coldness00/Fumes-Detector/internal/adapters/ollama"
	"github.com/Coldness00/Fumes-Detector/internal/adapters/openai"
	"github.com/Coldness00/Fumes-Detector/internal/config"
	"github.com/Coldness00/Fumes-Detector/internal/core"
	"github.com/Coldness00/Fumes-Detector/internal/utils"
	"go.uber.org/zap"
)

// InferenceFactory creates inference clients
type InferenceFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	normalizer    *utils.ImageNormalizer
	textProcessor *utils.TextProcessor
}

// NewInferenceFactory creates a new inference factory
func NewInferenceFactory(cfg *config.Config, logger *zap.Logger, normalizer *utils.ImageNormalizer, textProcessor *utils.TextProcessor) *InferenceFactory {
	return &InferenceFactory{
		cfg:           cfg,
		logger:        logger,
		normalizer:    normalizer,
		textProcessor: textProcessor,
	}
}

// CreateInferenceClient creates a new inference client based on the configuration
func (f *InferenceFactory) CreateInferenceClient() (core.InferenceClient, error) {
	provider := f.cfg.GetInference().Provider

	f.logger.Info("Creating inference client",
		zap.String("provider", provider),
		zap.String("model", f.ModelName()))

	var (
		client core.InferenceClient
		err    error
	)
	switch provider {
	case "ollama":
		client, err = ollama.NewFactory(f.cfg, f.logger, f.normalizer, f.textProcessor).CreateClient()
	case "openai":
		client, err = openai.NewFactory(f.cfg, f.logger, f.normalizer, f.textProcessor).CreateClient()
	case "gemini":
		client, err = gemini.NewFactory(f.cfg, f.logger, f.normalizer, f.textProcessor).CreateClient()
	case "bedrock":
		client, err = bedrock.NewFactory(f.cfg, f.logger, f.normalizer, f.textProcessor).CreateClient()
	default:
		return nil, fmt.Errorf("unsupported inference provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", provider, err)
	}
	return client, nil
}

// ModelName returns the model identifier of the configured provider
func (f *InferenceFactory) ModelName() string {
	switch f.cfg.GetInference().Provider {
	case "ollama":
		return f.cfg.GetOllama().Model
	case "openai":
		return f.cfg.GetOpenAI().ModelName
	case "gemini":
		return f.cfg.GetGemini().ModelName
	case "bedrock":
		return f.cfg.GetBedrock().ModelID
	default:
		return "unknown"
	}
}
