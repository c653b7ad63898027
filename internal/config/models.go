package config

import (
	"time"
)

// WatchConfig represents the configuration of the watched image directory
type WatchConfig struct {
	FolderPath   string
	PollInterval time.Duration
	Fsnotify     bool
	Extensions   []string
}

// InferenceConfig represents the provider-independent inference settings
type InferenceConfig struct {
	Provider    string
	Prompt      string
	Timeout     time.Duration
	JPEGQuality int
}

// OllamaConfig represents the configuration for an Ollama server
type OllamaConfig struct {
	URL         string
	Model       string
	Temperature float32
	TopP        float32
	Seed        int
}

// OpenAIConfig represents the configuration for OpenAI or a compatible API
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	Seed        int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// StoreConfig represents the configuration of the verdict store
type StoreConfig struct {
	Type          string
	SQLitePath    string
	SQLiteDriver  string
	MySQLDSN      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
}

// RetentionConfig represents the configuration of the retention sweeps
type RetentionConfig struct {
	Days       int
	Interval   time.Duration
	RunOnStart bool
}

// MaxAge returns the retention window as a duration
func (r RetentionConfig) MaxAge() time.Duration {
	return time.Duration(r.Days) * 24 * time.Hour
}

// TelemetryConfig represents the configuration of the line protocol sink
type TelemetryConfig struct {
	Enabled     bool
	URL         string
	Database    string
	Username    string
	Password    string
	Measurement string
	Source      string
	BaseURL     string
	ExternalURL string
	Timeout     time.Duration
}

// LinkBase returns the base URL used for image links
func (t TelemetryConfig) LinkBase() string {
	if t.ExternalURL != "" {
		return t.ExternalURL
	}
	return t.BaseURL
}

// MQTTConfig represents the configuration of the MQTT verdict publisher
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
	Username string
	Password string
}

// AlertConfig represents the configuration of the e-mail alert sink
type AlertConfig struct {
	Enabled     bool
	SMTPAddress string
	Username    string
	Password    string
	StartTLS    bool
	From        string
	To          []string
	Threshold   float64
	Answers     []string
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// GetCameraName returns the display name of the camera feeding the directory
func (c *Config) GetCameraName() string {
	return c.GetString("camera.name")
}

// GetWatch returns the watch configuration
func (c *Config) GetWatch() WatchConfig {
	return WatchConfig{
		FolderPath:   c.GetString("watch.folder_path"),
		PollInterval: c.mustDuration("watch.poll_interval"),
		Fsnotify:     c.GetBool("watch.fsnotify"),
		Extensions:   c.GetStringSlice("watch.extensions"),
	}
}

// GetInference returns the inference configuration
func (c *Config) GetInference() InferenceConfig {
	return InferenceConfig{
		Provider:    c.GetString("inference.provider"),
		Prompt:      c.GetString("inference.prompt"),
		Timeout:     c.mustDuration("inference.timeout"),
		JPEGQuality: c.GetInt("inference.jpeg_quality"),
	}
}

// GetOllama returns the Ollama configuration
func (c *Config) GetOllama() OllamaConfig {
	return OllamaConfig{
		URL:         c.GetString("ollama.url"),
		Model:       c.GetString("ollama.model"),
		Temperature: float32(c.GetFloat64("ollama.temperature")),
		TopP:        float32(c.GetFloat64("ollama.top_p")),
		Seed:        c.GetInt("ollama.seed"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		Seed:        c.GetInt("openai.seed"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetStore returns the verdict store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:          c.GetString("store.type"),
		SQLitePath:    c.GetString("store.sqlite_path"),
		SQLiteDriver:  c.GetString("store.sqlite_driver"),
		MySQLDSN:      c.GetString("store.mysql_dsn"),
		RedisAddr:     c.GetString("store.redis_addr"),
		RedisPassword: c.GetString("store.redis_password"),
		RedisDB:       c.GetInt("store.redis_db"),
		RedisKey:      c.GetString("store.redis_key"),
	}
}

// GetRetention returns the retention configuration
func (c *Config) GetRetention() RetentionConfig {
	return RetentionConfig{
		Days:       c.GetInt("retention.days"),
		Interval:   c.mustDuration("retention.interval"),
		RunOnStart: c.GetBool("retention.run_on_start"),
	}
}

// GetTelemetry returns the telemetry configuration
func (c *Config) GetTelemetry() TelemetryConfig {
	return TelemetryConfig{
		Enabled:     c.GetBool("telemetry.enabled"),
		URL:         c.GetString("telemetry.url"),
		Database:    c.GetString("telemetry.database"),
		Username:    c.GetString("telemetry.username"),
		Password:    c.GetString("telemetry.password"),
		Measurement: c.GetString("telemetry.measurement"),
		Source:      c.GetString("telemetry.source"),
		BaseURL:     c.GetString("telemetry.base_url"),
		ExternalURL: c.GetString("telemetry.external_url"),
		Timeout:     c.mustDuration("telemetry.timeout"),
	}
}

// GetMQTT returns the MQTT configuration
func (c *Config) GetMQTT() MQTTConfig {
	return MQTTConfig{
		Enabled:  c.GetBool("mqtt.enabled"),
		Broker:   c.GetString("mqtt.broker"),
		ClientID: c.GetString("mqtt.client_id"),
		Topic:    c.GetString("mqtt.topic"),
		QoS:      byte(c.GetInt("mqtt.qos")),
		Username: c.GetString("mqtt.username"),
		Password: c.GetString("mqtt.password"),
	}
}

// GetAlert returns the e-mail alert configuration
func (c *Config) GetAlert() AlertConfig {
	return AlertConfig{
		Enabled:     c.GetBool("alert.enabled"),
		SMTPAddress: c.GetString("alert.smtp_address"),
		Username:    c.GetString("alert.username"),
		Password:    c.GetString("alert.password"),
		StartTLS:    c.GetBool("alert.start_tls"),
		From:        c.GetString("alert.from"),
		To:          c.GetStringSlice("alert.to"),
		Threshold:   c.GetFloat64("alert.threshold"),
		Answers:     c.GetStringSlice("alert.answers"),
	}
}

// GetLogging returns the logging configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:      c.GetString("logging.level"),
		Format:     c.GetString("logging.format"),
		File:       c.GetString("logging.file"),
		MaxSizeMB:  c.GetInt("logging.max_size_mb"),
		MaxBackups: c.GetInt("logging.max_backups"),
		MaxAgeDays: c.GetInt("logging.max_age_days"),
	}
}
