package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/Coldness00/Fumes-Detector/internal/config"
	"github.com/Coldness00/Fumes-Detector/internal/core"
	"github.com/Coldness00/Fumes-Detector/internal/factory"
	"github.com/Coldness00/Fumes-Detector/internal/logging"
	"github.com/Coldness00/Fumes-Detector/internal/ports"
	"github.com/Coldness00/Fumes-Detector/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		cfg, err := config.New()
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewProcessorFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewInferenceFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewImageSourceFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(
		cfg *config.Config,
		logger *zap.Logger,
		textProcessor *utils.TextProcessor,
		inferenceFactory *factory.InferenceFactory,
	) *factory.SinkFactory {
		return factory.NewSinkFactory(cfg, logger, textProcessor, inferenceFactory.ModelName())
	}); err != nil {
		return nil, err
	}

	// Register processors
	if err := container.Provide(func(f *factory.ProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.ProcessorFactory) *utils.ImageNormalizer {
		return f.CreateImageNormalizer()
	}); err != nil {
		return nil, err
	}

	// Register inference client
	if err := container.Provide(func(f *factory.InferenceFactory) (core.InferenceClient, error) {
		return f.CreateInferenceClient()
	}); err != nil {
		return nil, err
	}

	// Register verdict store and its cache
	if err := container.Provide(func(f *factory.StoreFactory) (core.VerdictStore, error) {
		return f.CreateVerdictStore()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(core.NewVerdictCache); err != nil {
		return nil, err
	}

	// Register image source
	if err := container.Provide(func(f *factory.ImageSourceFactory) core.ImageSource {
		return f.CreateImageSource()
	}); err != nil {
		return nil, err
	}

	// Register verdict sinks
	if err := container.Provide(func(f *factory.SinkFactory) ([]core.VerdictSink, error) {
		return f.CreateVerdictSinks()
	}); err != nil {
		return nil, err
	}

	// Register pipeline service
	if err := container.Provide(func(
		cfg *config.Config,
		inference core.InferenceClient,
		store core.VerdictStore,
		cache *core.VerdictCache,
		images core.ImageSource,
		sinks []core.VerdictSink,
		logger *zap.Logger,
	) *core.PipelineService {
		inferenceCfg := cfg.GetInference()
		return core.NewPipelineService(inference, store, cache, images, sinks, logger, core.PipelineOptions{
			Prompt:       inferenceCfg.Prompt,
			Timeout:      inferenceCfg.Timeout,
			PollInterval: cfg.GetWatch().PollInterval,
		})
	}); err != nil {
		return nil, err
	}

	// Register retention service
	if err := container.Provide(func(
		cfg *config.Config,
		images core.ImageSource,
		store core.VerdictStore,
		cache *core.VerdictCache,
		logger *zap.Logger,
	) *core.RetentionService {
		retentionCfg := cfg.GetRetention()
		return core.NewRetentionService(images, store, cache, logger, core.RetentionOptions{
			MaxAge:     retentionCfg.MaxAge(),
			RunOnStart: retentionCfg.RunOnStart,
		})
	}); err != nil {
		return nil, err
	}

	// Register service ports
	if err := container.Provide(func(s *core.PipelineService) ports.AnalysisService {
		return s
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s *core.RetentionService) ports.RetentionReconciler {
		return s
	}); err != nil {
		return nil, err
	}

	return container, nil
}
