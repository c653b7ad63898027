package bedrock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Coldness00/Fumes-Detector/internal/core"
	"github.com/Coldness00/Fumes-Detector/internal/utils"
	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"go.uber.org/zap"
)

const providerName = "bedrock"

// BedrockClient is an implementation of the InferenceClient interface using
// the Amazon Bedrock Converse API
type BedrockClient struct {
	client        *bedrockruntime.Client
	modelID       string
	maxTokens     int
	temperature   float32
	topP          float32
	normalizer    *utils.ImageNormalizer
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewBedrockClient creates a new Bedrock client
func NewBedrockClient(
	client *bedrockruntime.Client,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	normalizer *utils.ImageNormalizer,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
) *BedrockClient {
	return &BedrockClient{
		client:        client,
		modelID:       modelID,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		normalizer:    normalizer,
		textProcessor: textProcessor,
		logger:        logger,
	}
}

// Infer streams a Converse response for the image and prompt
func (c *BedrockClient) Infer(ctx context.Context, image []byte, prompt string) (string, error) {
	normalized, err := c.normalizer.Normalize(image)
	if err != nil {
		return "", &core.InferenceError{Provider: providerName, Err: err}
	}

	output, err := c.client.ConverseStream(ctx, &bedrockruntime.ConverseStreamInput{
		ModelId: aws.String(c.modelID),
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberImage{
						Value: types.ImageBlock{
							Format: types.ImageFormatJpeg,
							Source: &types.ImageSourceMemberBytes{Value: normalized},
						},
					},
					&types.ContentBlockMemberText{Value: prompt},
				},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(c.maxTokens)),
			Temperature: aws.Float32(c.temperature),
			TopP:        aws.Float32(c.topP),
		},
	})
	if err != nil {
		return "", c.wrapError(fmt.Errorf("failed to invoke Bedrock model: %w", err))
	}

	stream := output.GetStream()
	defer stream.Close()

	var text strings.Builder
	stopped := false
	for event := range stream.Events() {
		switch v := event.(type) {
		case *types.ConverseStreamOutputMemberContentBlockDelta:
			if delta, ok := v.Value.Delta.(*types.ContentBlockDeltaMemberText); ok {
				text.WriteString(delta.Value)
			}
		case *types.ConverseStreamOutputMemberMessageStop:
			stopped = true
			c.logger.Debug("Bedrock stream finished", zap.String("stop_reason", string(v.Value.StopReason)))
		}
	}
	if err := stream.Err(); err != nil {
		return "", c.wrapError(fmt.Errorf("failed to read Bedrock stream: %w", err))
	}
	if !stopped {
		return "", &core.InferenceError{Provider: providerName, Err: errors.New("stream ended before completion")}
	}

	return c.textProcessor.SanitizeUTF8(text.String()), nil
}

func (c *BedrockClient) wrapError(err error) error {
	inferenceErr := &core.InferenceError{Provider: providerName, Err: err}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		inferenceErr.StatusCode = respErr.HTTPStatusCode()
	}
	return inferenceErr
}
