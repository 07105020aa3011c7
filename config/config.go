// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads notebook settings from a YAML file, .env files and
// NOTEBOOK_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/pedrocostadev/ai-notebook-sub000/ai"
)

// EnvPrefix prefixes every environment override, e.g. NOTEBOOK_AI_API_KEY.
const EnvPrefix = "NOTEBOOK"

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	DataDir  string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	AI        AIConfig        `yaml:"ai" envconfig:"AI"`
	Scheduler SchedulerConfig `yaml:"scheduler" envconfig:"SCHEDULER"`
	Ingestion IngestionConfig `yaml:"ingestion" envconfig:"INGESTION"`
	Retrieval RetrievalConfig `yaml:"retrieval" envconfig:"RETRIEVAL"`
	History   HistoryConfig   `yaml:"history" envconfig:"HISTORY"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
}

// AIConfig selects the OpenAI-compatible endpoints and models. Host, when
// set, applies to every service without a host of its own.
type AIConfig struct {
	Host              string  `yaml:"host,omitempty" envconfig:"HOST"`
	EmbeddingHost     string  `yaml:"embedding_host,omitempty" envconfig:"EMBEDDING_HOST"`
	ClassifierHost    string  `yaml:"classifier_host,omitempty" envconfig:"CLASSIFIER_HOST"`
	GeneratorHost     string  `yaml:"generator_host,omitempty" envconfig:"GENERATOR_HOST"`
	EmbeddingModel    string  `yaml:"embedding_model" envconfig:"EMBEDDING_MODEL" validate:"required"`
	ClassifierModel   string  `yaml:"classifier_model" envconfig:"CLASSIFIER_MODEL" validate:"required"`
	GeneratorModel    string  `yaml:"generator_model" envconfig:"GENERATOR_MODEL" validate:"required"`
	APIKey            string  `yaml:"api_key,omitempty" envconfig:"API_KEY"`
	MinImportance     int     `yaml:"min_importance" envconfig:"MIN_IMPORTANCE" validate:"min=1,max=10"`
	RequestsPerSecond float64 `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND" validate:"gte=0"`
	Burst             int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

type SchedulerConfig struct {
	Concurrency  int           `yaml:"concurrency" envconfig:"CONCURRENCY" validate:"min=1"`
	MaxAttempts  int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS" validate:"min=1"`
	PollInterval time.Duration `yaml:"poll_interval" envconfig:"POLL_INTERVAL" validate:"gt=0"`
}

type IngestionConfig struct {
	MinTextLength  int           `yaml:"min_text_length" envconfig:"MIN_TEXT_LENGTH" validate:"gte=0"`
	WindowPages    int           `yaml:"window_pages" envconfig:"WINDOW_PAGES" validate:"min=1"`
	EmbedBatchSize int           `yaml:"embed_batch_size" envconfig:"EMBED_BATCH_SIZE" validate:"min=1"`
	WatchDir       string        `yaml:"watch_dir,omitempty" envconfig:"WATCH_DIR"`
	SettleDelay    time.Duration `yaml:"settle_delay" envconfig:"SETTLE_DELAY" validate:"gt=0"`
}

type RetrievalConfig struct {
	Candidates     int     `yaml:"candidates" envconfig:"CANDIDATES" validate:"min=1"`
	TopN           int     `yaml:"top_n" envconfig:"TOP_N" validate:"min=1"`
	HighConfidence float64 `yaml:"high_confidence" envconfig:"HIGH_CONFIDENCE" validate:"gte=0"`
	ContextBudget  int     `yaml:"context_budget" envconfig:"CONTEXT_BUDGET" validate:"min=1"`
	MaxChunks      int     `yaml:"max_chunks" envconfig:"MAX_CHUNKS" validate:"min=1"`
	Guardrail      bool    `yaml:"guardrail" envconfig:"GUARDRAIL"`
}

type HistoryConfig struct {
	Budget           int `yaml:"budget" envconfig:"BUDGET" validate:"min=1"`
	SummaryAllowance int `yaml:"summary_allowance" envconfig:"SUMMARY_ALLOWANCE" validate:"gte=0,ltfield=Budget"`
}

type ServerConfig struct {
	Address string `yaml:"address" envconfig:"ADDRESS" validate:"required"`
}

// Default returns the built-in settings, pointing at a local
// OpenAI-compatible server.
func Default() *Config {
	defaults := ai.DefaultConfig()
	return &Config{
		DataDir:  defaultDataDir(),
		LogLevel: "info",
		AI: AIConfig{
			Host:            defaults.GeneratorHost,
			EmbeddingModel:  defaults.EmbeddingModel,
			ClassifierModel: defaults.ClassifierModel,
			GeneratorModel:  defaults.GeneratorModel,
			MinImportance:   defaults.MinImportance,
		},
		Scheduler: SchedulerConfig{
			Concurrency:  3,
			MaxAttempts:  3,
			PollInterval: 500 * time.Millisecond,
		},
		Ingestion: IngestionConfig{
			MinTextLength:  200,
			WindowPages:    10,
			EmbedBatchSize: 100,
			SettleDelay:    500 * time.Millisecond,
		},
		Retrieval: RetrievalConfig{
			Candidates:     20,
			TopN:           10,
			HighConfidence: 0.0327,
			ContextBudget:  8000,
			MaxChunks:      5,
		},
		History: HistoryConfig{
			Budget:           16000,
			SummaryAllowance: 200,
		},
		Server: ServerConfig{
			Address: "127.0.0.1:8080",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".notebook"
	}
	return filepath.Join(home, ".notebook")
}

// Load builds a Config from the defaults, the YAML file at path (skipped
// when path is empty), the given .env files and the environment. Missing
// .env files are ignored; a missing config file is an error.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// AIConfig converts the AI section into provider settings.
func (c *Config) AIConfig() *ai.Config {
	host := func(specific string) string {
		if specific != "" {
			return specific
		}
		return c.AI.Host
	}

	opts := []ai.ConfigOption{
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithClassifierModel(c.AI.ClassifierModel),
		ai.WithGeneratorModel(c.AI.GeneratorModel),
		ai.WithMinImportance(c.AI.MinImportance),
		ai.WithRateLimit(c.AI.RequestsPerSecond, c.AI.Burst),
	}
	if h := host(c.AI.EmbeddingHost); h != "" {
		opts = append(opts, ai.WithEmbeddingHost(h))
	}
	if h := host(c.AI.ClassifierHost); h != "" {
		opts = append(opts, ai.WithClassifierHost(h))
	}
	if h := host(c.AI.GeneratorHost); h != "" {
		opts = append(opts, ai.WithGeneratorHost(h))
	}
	if c.AI.APIKey != "" {
		opts = append(opts, ai.WithAPIKey(c.AI.APIKey))
	}
	return ai.NewConfig(opts...)
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	return ParseLevel(c.LogLevel)
}

// ParseLevel maps a level name to a slog.Level. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
