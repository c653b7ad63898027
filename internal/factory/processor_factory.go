package factory

import (
	"github.com/Coldness00/Fumes-Detector/internal/config"
	"github.com/Coldness00/Fumes-Detector/internal/utils"
	"go.uber.org/zap"
)

// ProcessorFactory creates the text and image processors shared by the adapters
type ProcessorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewProcessorFactory creates a new ProcessorFactory
func NewProcessorFactory(cfg *config.Config, logger *zap.Logger) *ProcessorFactory {
	return &ProcessorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateTextProcessor creates a new TextProcessor
func (f *ProcessorFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger)
}

// CreateImageNormalizer creates a new ImageNormalizer with the configured JPEG quality
func (f *ProcessorFactory) CreateImageNormalizer() *utils.ImageNormalizer {
	return utils.NewImageNormalizer(f.logger, f.cfg.GetInference().JPEGQuality)
}
