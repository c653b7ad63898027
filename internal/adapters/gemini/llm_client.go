package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/Coldness00/Fumes-Detector/internal/core"
	"github.com/Coldness00/Fumes-Detector/internal/utils"
	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const providerName = "gemini"

// GeminiClient is an implementation of the InferenceClient interface using Google Gemini
type GeminiClient struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	normalizer    *utils.ImageNormalizer
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	normalizer *utils.ImageNormalizer,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &GeminiClient{
		client:        client,
		model:         model,
		modelName:     modelName,
		normalizer:    normalizer,
		textProcessor: textProcessor,
		logger:        logger,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Infer streams a response for the image and prompt
func (c *GeminiClient) Infer(ctx context.Context, image []byte, prompt string) (string, error) {
	normalized, err := c.normalizer.Normalize(image)
	if err != nil {
		return "", &core.InferenceError{Provider: providerName, Err: err}
	}

	iter := c.model.GenerateContentStream(ctx, genai.ImageData("jpeg", normalized), genai.Text(prompt))

	var text strings.Builder
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", &core.InferenceError{Provider: providerName, Err: fmt.Errorf("failed to generate content: %w", err)}
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		for _, part := range resp.Candidates[0].Content.Parts {
			if fragment, ok := part.(genai.Text); ok {
				text.WriteString(string(fragment))
			}
		}
	}

	c.logger.Debug("Gemini response received", zap.String("model", c.modelName), zap.Int("length", text.Len()))

	return c.textProcessor.SanitizeUTF8(text.String()), nil
}
