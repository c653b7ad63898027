package di

import (
	"flag"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/Coldness00/Fumes-Detector/internal/config"
	"github.com/Coldness00/Fumes-Detector/internal/core"
	"github.com/Coldness00/Fumes-Detector/internal/factory"
	"github.com/Coldness00/Fumes-Detector/internal/logging"
	"github.com/Coldness00/Fumes-Detector/internal/utils"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Inference provider flags
	Provider    string
	Prompt      string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	TopP        float64
	Seed        int

	// Ollama flags
	OllamaURL   string
	OllamaModel string

	// Bedrock flags
	BedrockRegion  string
	BedrockModelID string

	// Gemini flags
	GeminiAPIKey    string
	GeminiModelName string

	// OpenAI flags
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModelName string

	// Input flags
	InputFile  string
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}

	// Inference provider flags
	flag.StringVar(&flags.Provider, "provider", "ollama", "Inference provider (ollama, openai, gemini, bedrock)")
	flag.StringVar(&flags.Prompt, "prompt", config.DefaultPrompt, "Prompt sent with the image")
	flag.DurationVar(&flags.Timeout, "timeout", 2*time.Minute, "Timeout for a single inference")
	flag.IntVar(&flags.MaxTokens, "max-tokens", 300, "Maximum tokens for the model response")
	flag.Float64Var(&flags.Temperature, "temperature", 0.8, "Sampling temperature")
	flag.Float64Var(&flags.TopP, "top-p", 0.9, "Top-p for sampling")
	flag.IntVar(&flags.Seed, "seed", 42, "Sampling seed where the provider supports one")

	// Ollama flags
	flag.StringVar(&flags.OllamaURL, "ollama-url", "http://127.0.0.1:11434/api/generate", "Ollama generate endpoint")
	flag.StringVar(&flags.OllamaModel, "ollama-model", "llava", "Ollama model name")

	// Bedrock flags
	flag.StringVar(&flags.BedrockRegion, "bedrock-region", "us-east-1", "AWS region for Bedrock")
	flag.StringVar(&flags.BedrockModelID, "bedrock-model", "anthropic.claude-3-haiku-20240307-v1:0", "Bedrock model ID")

	// Gemini flags
	flag.StringVar(&flags.GeminiAPIKey, "gemini-api-key", "", "API key for Google Gemini")
	flag.StringVar(&flags.GeminiModelName, "gemini-model", "gemini-1.5-flash", "Gemini model name")

	// OpenAI flags
	flag.StringVar(&flags.OpenAIAPIKey, "openai-api-key", "", "API key for OpenAI")
	flag.StringVar(&flags.OpenAIBaseURL, "openai-base-url", "", "Base URL of an OpenAI compatible API")
	flag.StringVar(&flags.OpenAIModelName, "openai-model", "gpt-4o-mini", "OpenAI model name")

	// Input flags
	flag.StringVar(&flags.InputFile, "file", "", "Image file to analyse")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	flag.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	flag.Parse()
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewFromFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, cfg.Validate()
		}

		// Create config from command line flags
		cfg := createConfigFromFlags(flags)
		return cfg, cfg.Validate()
	}); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewProcessorFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewInferenceFactory); err != nil {
		return nil, err
	}

	// Register processors
	if err := container.Provide(func(f *factory.ProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.ProcessorFactory) *utils.ImageNormalizer {
		return f.CreateImageNormalizer()
	}); err != nil {
		return nil, err
	}

	// Register inference client
	if err := container.Provide(func(f *factory.InferenceFactory) (core.InferenceClient, error) {
		return f.CreateInferenceClient()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	// Set inference settings
	v.Set("inference.provider", flags.Provider)
	v.Set("inference.prompt", flags.Prompt)
	v.Set("inference.timeout", flags.Timeout.String())

	// Set provider-specific configuration
	switch flags.Provider {
	case "ollama":
		v.Set("ollama.url", flags.OllamaURL)
		v.Set("ollama.model", flags.OllamaModel)
		v.Set("ollama.temperature", flags.Temperature)
		v.Set("ollama.top_p", flags.TopP)
		v.Set("ollama.seed", flags.Seed)
	case "bedrock":
		v.Set("bedrock.region", flags.BedrockRegion)
		v.Set("bedrock.model_id", flags.BedrockModelID)
		v.Set("bedrock.max_tokens", flags.MaxTokens)
		v.Set("bedrock.temperature", flags.Temperature)
		v.Set("bedrock.top_p", flags.TopP)
	case "gemini":
		v.Set("gemini.api_key", flags.GeminiAPIKey)
		v.Set("gemini.model_name", flags.GeminiModelName)
		v.Set("gemini.max_tokens", flags.MaxTokens)
		v.Set("gemini.temperature", flags.Temperature)
		v.Set("gemini.top_p", flags.TopP)
	case "openai":
		v.Set("openai.api_key", flags.OpenAIAPIKey)
		v.Set("openai.base_url", flags.OpenAIBaseURL)
		v.Set("openai.model_name", flags.OpenAIModelName)
		v.Set("openai.max_tokens", flags.MaxTokens)
		v.Set("openai.temperature", flags.Temperature)
		v.Set("openai.top_p", flags.TopP)
		v.Set("openai.seed", flags.Seed)
	}

	return config.NewFromViper(v)
}
