package bedrock

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Coldness00/Fumes-Detector/internal/core"
	"github.com/Coldness00/Fumes-Detector/internal/utils"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testImage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func newTestClient(t *testing.T, endpoint string) *BedrockClient {
	t.Helper()
	logger := zaptest.NewLogger(t)
	runtime := bedrockruntime.New(bedrockruntime.Options{
		Region:           "us-east-1",
		BaseEndpoint:     aws.String(endpoint),
		Credentials:      aws.AnonymousCredentials{},
		RetryMaxAttempts: 1,
	})
	return NewBedrockClient(runtime, "anthropic.claude-3-haiku-20240307-v1:0", 300, 0.8, 0.9,
		utils.NewImageNormalizer(logger, 90), utils.NewTextProcessor(logger), logger)
}

func TestInferReportsServiceStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Amzn-Errortype", "AccessDeniedException")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"You don't have access to the model"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Infer(context.Background(), testImage(t), "Any fumes?")
	var inferenceErr *core.InferenceError
	require.ErrorAs(t, err, &inferenceErr)
	assert.Equal(t, providerName, inferenceErr.Provider)
	assert.Equal(t, http.StatusForbidden, inferenceErr.StatusCode)
}

func TestInferRejectsUndecodableImage(t *testing.T) {
	_, err := newTestClient(t, "http://127.0.0.1:1").Infer(context.Background(), []byte("nope"), "prompt")
	var inferenceErr *core.InferenceError
	require.ErrorAs(t, err, &inferenceErr)
	assert.Equal(t, 0, inferenceErr.StatusCode)
}
