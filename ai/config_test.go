package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		EmbeddingHost:   "http://localhost:11434",
		ClassifierHost:  "http://localhost:11434",
		GeneratorHost:   "http://localhost:11434",
		EmbeddingModel:  "embeddinggemma",
		ClassifierModel: "qwen2.5:3b",
		GeneratorModel:  "qwen2.5:7b",
		MinImportance:   6,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://localhost:11434/v1", cfg.ClassifierHost)
	assert.Equal(t, "http://localhost:11434/v1", cfg.GeneratorHost)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	assert.Equal(t, "qwen2.5:3b", cfg.ClassifierModel)
	assert.Equal(t, "qwen2.5:7b", cfg.GeneratorModel)
	assert.Equal(t, 6, cfg.MinImportance)
	assert.Zero(t, cfg.RequestsPerSecond)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, 6, cfg.MinImportance)
	})

	t.Run("with custom host", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080/v1"))

		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://custom:8080/v1", cfg.ClassifierHost)
		assert.Equal(t, "http://custom:8080/v1", cfg.GeneratorHost)
	})

	t.Run("with separate hosts", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithClassifierHost("http://classify:9090/v1"),
			WithGeneratorHost("http://generate:7070/v1"),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://classify:9090/v1", cfg.ClassifierHost)
		assert.Equal(t, "http://generate:7070/v1", cfg.GeneratorHost)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingModel("custom-embed"),
			WithClassifierModel("custom-classify"),
			WithGeneratorModel("custom-generate"),
			WithAPIKey("secret"),
			WithMinImportance(7),
			WithRateLimit(4, 2),
		)

		assert.Equal(t, "custom-embed", cfg.EmbeddingModel)
		assert.Equal(t, "custom-classify", cfg.ClassifierModel)
		assert.Equal(t, "custom-generate", cfg.GeneratorModel)
		assert.Equal(t, "secret", cfg.APIKey)
		assert.Equal(t, 7, cfg.MinImportance)
		assert.Equal(t, 4.0, cfg.RequestsPerSecond)
		assert.Equal(t, 2, cfg.Burst)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		expected string
	}{
		{name: "already has /v1", host: "http://localhost:11434/v1", expected: "http://localhost:11434/v1"},
		{name: "missing /v1", host: "http://localhost:11434", expected: "http://localhost:11434/v1"},
		{name: "has trailing slash", host: "http://localhost:11434/", expected: "http://localhost:11434/v1"},
		{name: "empty host", host: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				EmbeddingHost:  tt.host,
				ClassifierHost: tt.host,
				GeneratorHost:  tt.host,
			}

			cfg.Normalize()

			assert.Equal(t, tt.expected, cfg.EmbeddingHost)
			assert.Equal(t, tt.expected, cfg.ClassifierHost)
			assert.Equal(t, tt.expected, cfg.GeneratorHost)
		})
	}

	t.Run("fills api key and burst", func(t *testing.T) {
		cfg := &Config{RequestsPerSecond: 2}
		cfg.Normalize()

		assert.Equal(t, "none", cfg.APIKey)
		assert.Equal(t, 1, cfg.Burst)
	})
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := validConfig()

		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://localhost:11434/v1", cfg.GeneratorHost)
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{name: "missing embedding host", mutate: func(c *Config) { c.EmbeddingHost = "" }, field: "EmbeddingHost"},
		{name: "missing classifier host", mutate: func(c *Config) { c.ClassifierHost = "" }, field: "ClassifierHost"},
		{name: "missing generator host", mutate: func(c *Config) { c.GeneratorHost = "" }, field: "GeneratorHost"},
		{name: "missing embedding model", mutate: func(c *Config) { c.EmbeddingModel = "" }, field: "EmbeddingModel"},
		{name: "missing classifier model", mutate: func(c *Config) { c.ClassifierModel = "" }, field: "ClassifierModel"},
		{name: "missing generator model", mutate: func(c *Config) { c.GeneratorModel = "" }, field: "GeneratorModel"},
		{name: "min importance too low", mutate: func(c *Config) { c.MinImportance = 0 }, field: "MinImportance"},
		{name: "min importance too high", mutate: func(c *Config) { c.MinImportance = 11 }, field: "MinImportance"},
		{name: "negative rate", mutate: func(c *Config) { c.RequestsPerSecond = -1 }, field: "RequestsPerSecond"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	t.Run("min importance at boundaries", func(t *testing.T) {
		cfg := validConfig()
		cfg.MinImportance = 1
		assert.NoError(t, cfg.Validate())

		cfg.MinImportance = 10
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfigValidate_Integration(t *testing.T) {
	require.NoError(t, NewConfig().Validate())
	require.NoError(t, DefaultConfig().Validate())
}
