package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Coldness00/Fumes-Detector/internal/config"
	"github.com/Coldness00/Fumes-Detector/internal/core"
	"github.com/Coldness00/Fumes-Detector/internal/di"
	"github.com/Coldness00/Fumes-Detector/internal/factory"
	"github.com/Coldness00/Fumes-Detector/internal/ports"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	cfg *config.Config,
	logger *zap.Logger,
	analysis ports.AnalysisService,
	retention ports.RetentionReconciler,
	inferenceClient core.InferenceClient,
	store core.VerdictStore,
	sinkFactory *factory.SinkFactory,
) error {
	defer logger.Sync()

	logger.Info("Starting fumes detector",
		zap.String("camera", cfg.GetCameraName()),
		zap.String("provider", cfg.GetInference().Provider))

	// Start the retention scheduler
	if err := retention.StartRetentionScheduler(cfg.GetRetention().Interval); err != nil {
		logger.Error("Failed to start retention scheduler", zap.Error(err))
		return err
	}

	// Start watching for images
	if err := analysis.StartBackgroundDiscovery(); err != nil {
		logger.Error("Failed to start image discovery", zap.Error(err))
		retention.Stop()
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	// Stop discovery first so no new verdicts are produced
	if err := analysis.Stop(); err != nil {
		logger.Error("Failed to stop image discovery", zap.Error(err))
	}
	retention.Stop()

	// Disconnect sinks
	sinkFactory.Close()

	// Close any resources that need closing
	if closer, ok := inferenceClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close inference client", zap.Error(err))
		}
	}

	if err := store.Close(); err != nil {
		logger.Error("Failed to close verdict store", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}
