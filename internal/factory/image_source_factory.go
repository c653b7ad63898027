package factory

import (
	"github.com/Coldness00/Fumes-Detector/internal/adapters/filesystem"
	"github.com/Coldness00/Fumes-Detector/internal/config"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ImageSourceFactory creates the watched image directory
type ImageSourceFactory struct {
	cfg    *config.Config
	logger *zap.Logger
	fs     afero.Fs
}

// NewImageSourceFactory creates a new image source factory on the OS filesystem
func NewImageSourceFactory(cfg *config.Config, logger *zap.Logger) *ImageSourceFactory {
	return &ImageSourceFactory{
		cfg:    cfg,
		logger: logger,
		fs:     afero.NewOsFs(),
	}
}

// CreateImageSource creates the image directory source
func (f *ImageSourceFactory) CreateImageSource() *filesystem.ImageDir {
	watchCfg := f.cfg.GetWatch()

	f.logger.Info("Using image directory",
		zap.String("path", watchCfg.FolderPath),
		zap.Strings("extensions", watchCfg.Extensions),
		zap.Bool("fsnotify", watchCfg.Fsnotify))

	return filesystem.NewImageDir(f.fs, watchCfg.FolderPath, watchCfg.Extensions, watchCfg.Fsnotify, f.logger)
}
