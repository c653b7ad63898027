package utils

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"go.uber.org/zap"
)

// DefaultJPEGQuality is used when no quality is configured
const DefaultJPEGQuality = 90

// ImageNormalizer re-encodes images to JPEG so every inference backend
// receives the same format regardless of the source file
type ImageNormalizer struct {
	logger  *zap.Logger
	quality int
}

// NewImageNormalizer creates a new ImageNormalizer
func NewImageNormalizer(logger *zap.Logger, quality int) *ImageNormalizer {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &ImageNormalizer{
		logger:  logger,
		quality: quality,
	}
}

// Normalize decodes a JPEG, PNG or GIF image and returns it as an RGB JPEG
func (n *ImageNormalizer) Normalize(data []byte) ([]byte, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	// Flatten alpha and palette images onto an opaque RGB canvas
	bounds := src.Bounds()
	rgb := image.NewRGBA(bounds)
	draw.Draw(rgb, bounds, image.White, image.Point{}, draw.Src)
	draw.Draw(rgb, bounds, src, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgb, &jpeg.Options{Quality: n.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image as JPEG: %w", err)
	}

	n.logger.Debug("Image normalized",
		zap.String("source_format", format),
		zap.Int("original_size", len(data)),
		zap.Int("normalized_size", buf.Len()),
		zap.Int("width", bounds.Dx()),
		zap.Int("height", bounds.Dy()))

	return buf.Bytes(), nil
}

// NormalizeBase64 normalizes the image and returns it base64 encoded
func (n *ImageNormalizer) NormalizeBase64(data []byte) (string, error) {
	normalized, err := n.Normalize(data)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(normalized), nil
}
