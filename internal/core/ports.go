package core

import (
	"context"
)

// InferenceClient submits an image and a prompt to a visual-inference service
type InferenceClient interface {
	// Infer returns the complete text produced for the image
	Infer(ctx context.Context, image []byte, prompt string) (string, error)
}

// VerdictStore is the durable record of analysed images
type VerdictStore interface {
	// Put upserts the raw verdict text and refreshes the record timestamp
	Put(ctx context.Context, imageID, rawText string) error

	// Has reports whether a verdict exists for the image
	Has(ctx context.Context, imageID string) (bool, error)

	// GetAll returns every stored verdict keyed by image identifier
	GetAll(ctx context.Context) (map[string]string, error)

	// Remove deletes the verdict for one image
	Remove(ctx context.Context, imageID string) error

	// RemoveMany deletes the verdicts for several images in one operation
	RemoveMany(ctx context.Context, imageIDs []string) error

	// Close releases the backing resources
	Close() error
}

// ImageSource gives access to the watched image directory
type ImageSource interface {
	// List returns the images currently present
	List(ctx context.Context) ([]ImageInfo, error)

	// Read returns the raw bytes of an image
	Read(ctx context.Context, imageID string) ([]byte, error)

	// Remove deletes an image file
	Remove(ctx context.Context, imageID string) error

	// Watch returns a channel signalled when the directory changes.
	// A nil channel means change notifications are unavailable.
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// VerdictSink receives recorded verdicts on a best-effort basis.
// Implementations log their own failures and never block the pipeline for long.
type VerdictSink interface {
	Name() string
	Publish(ctx context.Context, verdict *Verdict)
}
