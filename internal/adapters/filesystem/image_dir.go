package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/Coldness00/Fumes-Detector/internal/core"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// DefaultExtensions are the image types picked up when none are configured
var DefaultExtensions = []string{".jpg", ".jpeg", ".png"}

// ImageDir is an ImageSource backed by a single directory
type ImageDir struct {
	fs         afero.Fs
	root       string
	extensions map[string]struct{}
	notify     bool
	logger     *zap.Logger
}

// NewImageDir creates an image source for root. Extensions are matched
// case-insensitively. Change notifications are only used on the OS filesystem.
func NewImageDir(fsys afero.Fs, root string, extensions []string, notify bool, logger *zap.Logger) *ImageDir {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = struct{}{}
	}

	return &ImageDir{
		fs:         fsys,
		root:       root,
		extensions: exts,
		notify:     notify,
		logger:     logger,
	}
}

// Root returns the watched directory
func (d *ImageDir) Root() string {
	return d.root
}

// List returns the images currently in the directory
func (d *ImageDir) List(ctx context.Context) ([]core.ImageInfo, error) {
	entries, err := afero.ReadDir(d.fs, d.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", d.root, err)
	}

	images := make([]core.ImageInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !d.isImage(entry.Name()) {
			continue
		}
		images = append(images, core.ImageInfo{
			ID:      entry.Name(),
			ModTime: entry.ModTime(),
			Size:    entry.Size(),
		})
	}
	return images, nil
}

// Read returns the raw bytes of an image
func (d *ImageDir) Read(ctx context.Context, imageID string) ([]byte, error) {
	path, err := d.path(imageID)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(d.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", core.ErrImageNotFound, imageID)
		}
		return nil, fmt.Errorf("failed to read image %s: %w", imageID, err)
	}
	return data, nil
}

// Remove deletes an image file
func (d *ImageDir) Remove(ctx context.Context, imageID string) error {
	path, err := d.path(imageID)
	if err != nil {
		return err
	}

	if err := d.fs.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", core.ErrImageNotFound, imageID)
		}
		return fmt.Errorf("failed to remove image %s: %w", imageID, err)
	}
	return nil
}

// Watch returns a channel signalled when an image is created or replaced.
// It returns a nil channel when notifications are disabled or unsupported.
func (d *ImageDir) Watch(ctx context.Context) (<-chan struct{}, error) {
	if !d.notify {
		return nil, nil
	}
	if _, ok := d.fs.(*afero.OsFs); !ok {
		return nil, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(d.root); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", d.root, err)
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
					continue
				}
				if !d.isImage(event.Name) {
					continue
				}
				// Coalesce bursts into a single wake-up
				select {
				case changes <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				d.logger.Warn("Directory watcher error", zap.Error(err))
			}
		}
	}()

	d.logger.Info("Watching directory for changes", zap.String("path", d.root))
	return changes, nil
}

func (d *ImageDir) isImage(name string) bool {
	_, ok := d.extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

func (d *ImageDir) path(imageID string) (string, error) {
	if err := core.ValidateImageID(imageID); err != nil {
		return "", err
	}
	if !d.isImage(imageID) {
		return "", fmt.Errorf("%w: unsupported extension %q", core.ErrInvalidImageID, filepath.Ext(imageID))
	}
	return filepath.Join(d.root, imageID), nil
}
