package gemini

import (
	"context"
	"testing"

	"github.com/Coldness00/Fumes-Detector/internal/core"
	"github.com/Coldness00/Fumes-Detector/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestInferRejectsUndecodableImage(t *testing.T) {
	logger := zaptest.NewLogger(t)
	client, err := NewGeminiClient("test-key", "gemini-1.5-flash", 300, 0.8, 0.9,
		utils.NewImageNormalizer(logger, 90), utils.NewTextProcessor(logger), logger)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Infer(context.Background(), []byte("nope"), "prompt")
	var inferenceErr *core.InferenceError
	require.ErrorAs(t, err, &inferenceErr)
	assert.Equal(t, providerName, inferenceErr.Provider)
}
