package ollama

import (
	"net/http"

	"github.com/Coldness00/Fumes-Detector/internal/config"
	"github.com/Coldness00/Fumes-Detector/internal/utils"
	"go.uber.org/zap"
)

// Factory creates Ollama clients
type Factory struct {
	cfg           *config.Config
	logger        *zap.Logger
	normalizer    *utils.ImageNormalizer
	textProcessor *utils.TextProcessor
}

// NewFactory creates a new Ollama factory
func NewFactory(cfg *config.Config, logger *zap.Logger, normalizer *utils.ImageNormalizer, textProcessor *utils.TextProcessor) *Factory {
	return &Factory{
		cfg:           cfg,
		logger:        logger,
		normalizer:    normalizer,
		textProcessor: textProcessor,
	}
}

// CreateClient creates a new Ollama client
func (f *Factory) CreateClient() (*OllamaClient, error) {
	ollamaCfg := f.cfg.GetOllama()

	// Requests are bounded by the per-inference context deadline
	httpClient := &http.Client{}

	return NewOllamaClient(
		httpClient,
		ollamaCfg.URL,
		ollamaCfg.Model,
		ollamaCfg.Temperature,
		ollamaCfg.TopP,
		ollamaCfg.Seed,
		f.normalizer,
		f.textProcessor,
		f.logger,
	), nil
}
