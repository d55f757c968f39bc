// Package config loads the harness settings from the environment. Command
// line flags override individual fields before Validate is called.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/bdougie/physeval/internal/models"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

const (
	BackendAzure  = "azure"
	BackendOllama = "ollama"
)

type Config struct {
	Backend    string `env:"PHYSEVAL_BACKEND"     envDefault:"azure"`
	Model      string `env:"PHYSEVAL_MODEL"       envDefault:"gpt-4o"`
	Frames     int    `env:"PHYSEVAL_FRAMES"      envDefault:"8"`
	Variant    string `env:"PHYSEVAL_VARIANT"     envDefault:"one_step"`
	Parallel   bool   `env:"PHYSEVAL_PARALLEL"    envDefault:"false"`
	MaxWorkers int    `env:"PHYSEVAL_MAX_WORKERS" envDefault:"100"`
	DebugModel bool   `env:"PHYSEVAL_DEBUG_MODEL" envDefault:"false"`

	MaxAttempts int           `env:"PHYSEVAL_MAX_ATTEMPTS" envDefault:"3"`
	RetryDelay  time.Duration `env:"PHYSEVAL_RETRY_DELAY"  envDefault:"2s"`

	DatasetPath string `env:"PHYSEVAL_DATASET"      envDefault:"prompts-with-standard-and-index.json"`
	FramesRoot  string `env:"PHYSEVAL_FRAMES_ROOT"  envDefault:"videos/sampled_frames"`
	ResultsRoot string `env:"PHYSEVAL_RESULTS_ROOT" envDefault:"automatic_results"`

	SampleWorkers int    `env:"PHYSEVAL_SAMPLE_WORKERS" envDefault:"1"`
	FFmpegPath    string `env:"FFMPEG_PATH"             envDefault:"ffmpeg"`
	FFprobePath   string `env:"FFPROBE_PATH"            envDefault:"ffprobe"`

	AzureEndpoint    string            `env:"AZURE_OPENAI_ENDPOINT"`
	AzureAPIKey      string            `env:"AZURE_OPENAI_API_KEY"`
	AzureAPIVersion  string            `env:"AZURE_OPENAI_API_VERSION" envDefault:"2024-02-15-preview"`
	AzureDeployment  string            `env:"AZURE_OPENAI_DEPLOYMENT"`
	AzureDeployments map[string]string `env:"AZURE_OPENAI_DEPLOYMENTS" envSeparator:"," envKeyValSeparator:"="`

	OllamaBaseURL string `env:"OLLAMA_BASE_URL" envDefault:"http://localhost"`
	OllamaPort    int    `env:"OLLAMA_PORT"     envDefault:"11434"`
	OllamaModel   string `env:"OLLAMA_MODEL"    envDefault:"llama3.2-vision:11b"`

	DatabaseURL  string `env:"DATABASE_URL"`
	LedgerPath   string `env:"PHYSEVAL_LEDGER" envDefault:"physeval_runs.db"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`
	MetricsAddr  string `env:"PHYSEVAL_METRICS_ADDR"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom reads the given variables instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings shared by every command.
func (c *Config) Validate() error {
	if c.Frames < 1 {
		return fmt.Errorf("%w: frames must be at least 1, got %d", ErrInvalid, c.Frames)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ValidateEvaluate additionally checks the judge settings.
func (c *Config) ValidateEvaluate() error {
	if err := c.Validate(); err != nil {
		return err
	}
	switch c.Backend {
	case BackendAzure:
		if c.AzureEndpoint == "" {
			return fmt.Errorf("%w: AZURE_OPENAI_ENDPOINT is required for the azure backend", ErrInvalid)
		}
	case BackendOllama:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Backend)
	}
	variant, err := models.ParseVariant(c.Variant)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if variant == models.VariantTwoStepWithStandardLast || variant == models.VariantTwoStepNoStandardLast {
		return fmt.Errorf("%w: prompt variant %s has no prompt text", ErrInvalid, variant)
	}
	if c.MaxWorkers < 1 || c.MaxWorkers > 100 {
		return fmt.Errorf("%w: max workers must be between 1 and 100, got %d", ErrInvalid, c.MaxWorkers)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be at least 1, got %d", ErrInvalid, c.MaxAttempts)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: retry delay must not be negative", ErrInvalid)
	}
	return nil
}

// PromptVariant returns the validated prompt variant.
func (c *Config) PromptVariant() models.Variant {
	return models.Variant(c.Variant)
}

// Attempts is the number of judge calls per video; debug mode makes one.
func (c *Config) Attempts() int {
	if c.DebugModel {
		return 1
	}
	return c.MaxAttempts
}

// Deployment picks the Azure deployment for the configured model: an entry
// of AZURE_OPENAI_DEPLOYMENTS, else AZURE_OPENAI_DEPLOYMENT, else the model name.
func (c *Config) Deployment() string {
	if d, ok := c.AzureDeployments[c.Model]; ok && d != "" {
		return d
	}
	if c.AzureDeployment != "" {
		return c.AzureDeployment
	}
	return c.Model
}

// JudgeModel is the model name recorded in verdicts and result paths.
func (c *Config) JudgeModel() string {
	if c.Backend == BackendOllama {
		return c.OllamaModel
	}
	return c.Model
}

// ParseLogLevel maps debug, info, warn and error to slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: unknown log level %q", ErrInvalid, s)
	}
}
