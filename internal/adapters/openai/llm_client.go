package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Coldness00/Fumes-Detector/internal/core"
	"github.com/Coldness00/Fumes-Detector/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const providerName = "openai"

// OpenAIClient is an implementation of the InferenceClient interface using
// OpenAI or any API compatible with its chat completions endpoint
type OpenAIClient struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	seed          int
	normalizer    *utils.ImageNormalizer
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	seed int,
	normalizer *utils.ImageNormalizer,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
) *OpenAIClient {
	return &OpenAIClient{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		seed:          seed,
		normalizer:    normalizer,
		textProcessor: textProcessor,
		logger:        logger,
	}
}

// Infer sends the image as a data URI together with the prompt and collects
// the streamed completion
func (c *OpenAIClient) Infer(ctx context.Context, image []byte, prompt string) (string, error) {
	encoded, err := c.normalizer.NormalizeBase64(image)
	if err != nil {
		return "", &core.InferenceError{Provider: providerName, Err: err}
	}

	seed := c.seed
	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:image/jpeg;base64," + encoded,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
		Seed:        &seed,
		Stream:      true,
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", c.wrapError(fmt.Errorf("failed to create chat completion stream: %w", err))
	}
	defer stream.Close()

	var text strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", c.wrapError(fmt.Errorf("failed to read chat completion stream: %w", err))
		}
		if len(resp.Choices) > 0 {
			text.WriteString(resp.Choices[0].Delta.Content)
		}
	}

	c.logger.Debug("OpenAI completion received", zap.String("model", c.modelName), zap.Int("length", text.Len()))

	return c.textProcessor.SanitizeUTF8(text.String()), nil
}

// wrapError carries the HTTP status of API errors into the InferenceError
func (c *OpenAIClient) wrapError(err error) error {
	inferenceErr := &core.InferenceError{Provider: providerName, Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		inferenceErr.StatusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		inferenceErr.StatusCode = reqErr.HTTPStatusCode
	}
	return inferenceErr
}
