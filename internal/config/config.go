package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents runtime configuration. Values come from an optional YAML
// file (CONFIG_FILE) overridden by environment variables.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level `yaml:"-"`
	Format string     `yaml:"format"`

	// LevelName is the YAML-facing spelling of Level.
	LevelName string `yaml:"level"`
}

// OpenAIConfig holds parameters for the LLM collaborator.
type OpenAIConfig struct {
	APIKey      string  `yaml:"apiKey"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"maxTokens"`
	Timeout     int     `yaml:"timeoutSeconds"`
}

// PipelineConfig holds pipeline and scheduler tuning.
type PipelineConfig struct {
	DataDir         string `yaml:"dataDir"`
	JobsDBPath      string `yaml:"jobsDBPath"`
	Workers         int    `yaml:"workers"`
	ClassifyWorkers int    `yaml:"classifyWorkers"`
	BatchSize       int    `yaml:"batchSize"`
	MinScore        int    `yaml:"minScore"`
	CommentsPerPost int    `yaml:"commentsPerPost"`
	// SourcePolicy controls concurrent runs for one source: "serialize"
	// takes a per-source lock, "concurrent" allows overlapping runs with
	// last-write-wins latest resolution.
	SourcePolicy string `yaml:"sourcePolicy"`
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.3
	defaultMaxTokens   = 800
	defaultLLMTimeout  = 120

	defaultDataDir         = "./pipeline_output"
	defaultJobsDBPath      = "./jobs.sqlite"
	defaultWorkers         = 2
	defaultClassifyWorkers = 4
	defaultBatchSize       = 10
	defaultCommentsPerPost = 5
	defaultSourcePolicy    = "serialize"
)

// Load reads configuration from the optional config file and environment
// variables, applying defaults when values are not provided.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	switch cfg.Pipeline.SourcePolicy {
	case "serialize", "concurrent":
	default:
		return Config{}, fmt.Errorf("invalid source policy %q: must be 'serialize' or 'concurrent'", cfg.Pipeline.SourcePolicy)
	}

	return cfg, nil
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            defaultPort,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		OpenAI: OpenAIConfig{
			Model:       defaultModel,
			Temperature: defaultTemperature,
			MaxTokens:   defaultMaxTokens,
			Timeout:     defaultLLMTimeout,
		},
		Pipeline: PipelineConfig{
			DataDir:         defaultDataDir,
			JobsDBPath:      defaultJobsDBPath,
			Workers:         defaultWorkers,
			ClassifyWorkers: defaultClassifyWorkers,
			BatchSize:       defaultBatchSize,
			CommentsPerPost: defaultCommentsPerPost,
			SourcePolicy:    defaultSourcePolicy,
		},
	}
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if cfg.Logging.LevelName != "" {
		level, err := parseLogLevel(cfg.Logging.LevelName)
		if err != nil {
			return fmt.Errorf("invalid logging.level in %s: %w", path, err)
		}
		cfg.Logging.Level = level
	}

	return nil
}

func applyEnv(cfg *Config) error {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	} else if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Server.Port = port
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.OpenAI.Model = v
	}
	if v := os.Getenv("OPENAI_TEMPERATURE"); v != "" {
		t, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return fmt.Errorf("invalid OPENAI_TEMPERATURE: %w", err)
		}
		cfg.OpenAI.Temperature = float32(t)
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Pipeline.DataDir = v
	}
	if v := os.Getenv("JOBS_DB_PATH"); v != "" {
		cfg.Pipeline.JobsDBPath = v
	}
	if v := os.Getenv("PIPELINE_WORKERS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return fmt.Errorf("invalid PIPELINE_WORKERS: %w", err)
		}
		cfg.Pipeline.Workers = n
	}
	if v := os.Getenv("CLASSIFY_WORKERS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return fmt.Errorf("invalid CLASSIFY_WORKERS: %w", err)
		}
		cfg.Pipeline.ClassifyWorkers = n
	}
	if v := os.Getenv("COMMENTS_PER_POST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid COMMENTS_PER_POST: must be a non-negative integer")
		}
		cfg.Pipeline.CommentsPerPost = n
	}
	if v := os.Getenv("SOURCE_POLICY"); v != "" {
		cfg.Pipeline.SourcePolicy = v
	}

	return nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return n, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
