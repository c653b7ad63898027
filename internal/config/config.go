package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultPrompt asks the model for an answer in the form the verdict parser understands
const DefaultPrompt = "Is there black smoke or mist like fume on the top right corner of the picture? " +
	"Answer with exactly one of Yes, No or Maybe followed by '=' and your confidence from 0 to 100, " +
	"for example: Yes = 80."

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// legacyEnv maps configuration keys to the plain environment variable names
// used by existing deployments
var legacyEnv = map[string]string{
	"camera.name":            "CAMERA_NAME",
	"watch.folder_path":      "FOLDER_PATH",
	"inference.prompt":       "PROMPT",
	"ollama.url":             "OLLAMA_URL",
	"ollama.model":           "OLLAMA_MODEL",
	"ollama.temperature":     "OLLAMA_TEMPERATURE",
	"ollama.top_p":           "OLLAMA_TOP_P",
	"ollama.seed":            "OLLAMA_SEED",
	"retention.days":         "IMAGE_RETENTION_DAYS",
	"telemetry.url":          "INFLUX_URL",
	"telemetry.database":     "INFLUX_DB",
	"telemetry.username":     "INFLUX_USER",
	"telemetry.password":     "INFLUX_PASS",
	"telemetry.measurement":  "MEASUREMENT",
	"telemetry.base_url":     "BASE_URL",
	"telemetry.external_url": "EXTERNAL_URL",
}

// New creates a new configuration instance. Variables from a .env file in
// the working directory are loaded first when present.
func New() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/fumes-detector/")
	v.AddConfigPath("$HOME/.fumes-detector")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("FUMES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromFile creates a configuration instance from an explicit config file.
// Defaults and environment variables apply as they do for New.
func NewFromFile(path string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	v.SetEnvPrefix("FUMES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return &Config{v: v}, nil
}

// LoadDotEnv loads environment variables from the given files, or .env when
// none are given. Missing files are ignored and existing variables are kept.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func bindLegacyEnv(v *viper.Viper) {
	for key, env := range legacyEnv {
		prefixed := "FUMES_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		// Prefixed names take precedence over the legacy ones
		_ = v.BindEnv(key, prefixed, env)
	}
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("camera.name", "Unknown Camera")

	// Watch defaults
	v.SetDefault("watch.folder_path", "./images")
	v.SetDefault("watch.poll_interval", "55s")
	v.SetDefault("watch.fsnotify", true)
	v.SetDefault("watch.extensions", []string{".jpg", ".jpeg", ".png"})

	// Inference defaults
	v.SetDefault("inference.provider", "ollama")
	v.SetDefault("inference.prompt", DefaultPrompt)
	v.SetDefault("inference.timeout", "2m")
	v.SetDefault("inference.jpeg_quality", 90)

	// Ollama defaults
	v.SetDefault("ollama.url", "http://127.0.0.1:11434/api/generate")
	v.SetDefault("ollama.model", "llava")
	v.SetDefault("ollama.temperature", 0.8)
	v.SetDefault("ollama.top_p", 0.9)
	v.SetDefault("ollama.seed", 42)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model_name", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 300)
	v.SetDefault("openai.temperature", 0.8)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.seed", 42)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-1.5-flash")
	v.SetDefault("gemini.max_tokens", 300)
	v.SetDefault("gemini.temperature", 0.8)
	v.SetDefault("gemini.top_p", 0.9)

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("bedrock.max_tokens", 300)
	v.SetDefault("bedrock.temperature", 0.8)
	v.SetDefault("bedrock.top_p", 0.9)

	// Store defaults
	v.SetDefault("store.type", "sqlite")
	v.SetDefault("store.sqlite_path", "./data/processed.db")
	v.SetDefault("store.sqlite_driver", "sqlite3")
	v.SetDefault("store.mysql_dsn", "user:password@tcp(localhost:3306)/fumes_detector")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_key", "fumes:processed")

	// Retention defaults
	v.SetDefault("retention.days", 15)
	v.SetDefault("retention.interval", "1h")
	v.SetDefault("retention.run_on_start", true)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.url", "")
	v.SetDefault("telemetry.database", "")
	v.SetDefault("telemetry.username", "")
	v.SetDefault("telemetry.password", "")
	v.SetDefault("telemetry.measurement", "smoke_detection_pipes")
	v.SetDefault("telemetry.source", "")
	v.SetDefault("telemetry.base_url", "http://localhost:9822")
	v.SetDefault("telemetry.external_url", "")
	v.SetDefault("telemetry.timeout", "5s")

	// MQTT defaults
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.topic", "fumes/verdicts")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")

	// Alert defaults
	v.SetDefault("alert.enabled", false)
	v.SetDefault("alert.smtp_address", "localhost:25")
	v.SetDefault("alert.username", "")
	v.SetDefault("alert.password", "")
	v.SetDefault("alert.start_tls", false)
	v.SetDefault("alert.from", "fumes-detector@localhost")
	v.SetDefault("alert.to", []string{})
	v.SetDefault("alert.threshold", 0.7)
	v.SetDefault("alert.answers", []string{"yes"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
}

// Validate checks the values that would otherwise fail late at startup
func (c *Config) Validate() error {
	switch provider := c.GetString("inference.provider"); provider {
	case "ollama", "openai", "gemini", "bedrock":
	default:
		return fmt.Errorf("unsupported inference provider: %s", provider)
	}

	switch storeType := c.GetString("store.type"); storeType {
	case "sqlite", "mysql", "redis", "memory":
	default:
		return fmt.Errorf("unsupported store type: %s", storeType)
	}

	for _, key := range []string{"watch.poll_interval", "inference.timeout", "retention.interval", "telemetry.timeout"} {
		d, err := c.GetDuration(key)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}

	if c.GetInt("retention.days") < 0 {
		return fmt.Errorf("retention.days must not be negative")
	}
	return nil
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// mustDuration returns the duration at key or zero when it does not parse
func (c *Config) mustDuration(key string) time.Duration {
	d, err := c.GetDuration(key)
	if err != nil {
		return 0
	}
	return d
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
