package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Coldness00/Fumes-Detector/internal/core"
	"github.com/Coldness00/Fumes-Detector/internal/utils"
	"go.uber.org/zap"
)

const providerName = "ollama"

// maxLineSize bounds a single NDJSON element of the response stream
const maxLineSize = 1 << 20

// OllamaClient is an implementation of the InferenceClient interface for an Ollama server
type OllamaClient struct {
	httpClient    *http.Client
	url           string
	model         string
	temperature   float32
	topP          float32
	seed          int
	normalizer    *utils.ImageNormalizer
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

type generateOptions struct {
	Temperature float32 `json:"temperature"`
	TopP        float32 `json:"top_p"`
	Seed        int     `json:"seed"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Images  []string        `json:"images"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

// generateChunk is one element of the streamed response
type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// NewOllamaClient creates a new Ollama client. url is the full generate endpoint.
func NewOllamaClient(
	httpClient *http.Client,
	url string,
	model string,
	temperature float32,
	topP float32,
	seed int,
	normalizer *utils.ImageNormalizer,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
) *OllamaClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OllamaClient{
		httpClient:    httpClient,
		url:           url,
		model:         model,
		temperature:   temperature,
		topP:          topP,
		seed:          seed,
		normalizer:    normalizer,
		textProcessor: textProcessor,
		logger:        logger,
	}
}

// Infer sends the image and prompt to Ollama and returns the streamed response text
func (c *OllamaClient) Infer(ctx context.Context, image []byte, prompt string) (string, error) {
	encoded, err := c.normalizer.NormalizeBase64(image)
	if err != nil {
		return "", &core.InferenceError{Provider: providerName, Err: err}
	}

	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Images: []string{encoded},
		Stream: true,
		Options: generateOptions{
			Temperature: c.temperature,
			TopP:        c.topP,
			Seed:        c.seed,
		},
	})
	if err != nil {
		return "", &core.InferenceError{Provider: providerName, Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", &core.InferenceError{Provider: providerName, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Sending image to Ollama", zap.String("model", c.model), zap.Int("request_size", len(body)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &core.InferenceError{Provider: providerName, Err: fmt.Errorf("failed to call Ollama: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &core.InferenceError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(msg))),
		}
	}

	text, err := readStream(resp.Body)
	if err != nil {
		return "", &core.InferenceError{Provider: providerName, Err: err}
	}

	return c.textProcessor.SanitizeUTF8(text), nil
}

// readStream concatenates the response fragments until an element reports done
func readStream(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var text strings.Builder
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk generateChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", fmt.Errorf("malformed stream element: %w", err)
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("server error: %s", chunk.Error)
		}

		text.WriteString(chunk.Response)
		if chunk.Done {
			return text.String(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read stream: %w", err)
	}
	return "", errors.New("stream ended before completion")
}
