package openai

import (
	"context"
	"log/slog"

	"github.com/pedrocostadev/ai-notebook-sub000/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// generationTemperature keeps answers close to the supplied context.
const generationTemperature = 0.2

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client  llms.Model
	limiter *limiter
	logger  *slog.Logger
}

func newGenerator(config *ai.Config, limiter *limiter) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GeneratorHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.GeneratorModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client:  client,
		limiter: limiter,
		logger:  slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a new generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config, newLimiter(config))
}

// GenerateText answers prompt, streaming chunks to onChunk when it is set.
func (g *Generator) GenerateText(ctx context.Context, system, prompt string, onChunk func(chunk string) error) (string, error) {
	if err := g.limiter.wait(ctx); err != nil {
		return "", err
	}

	opts := []llms.CallOption{llms.WithTemperature(generationTemperature)}
	if onChunk != nil {
		opts = append(opts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			return onChunk(string(chunk))
		}))
	}

	response, err := g.client.GenerateContent(ctx, buildMessages(system, prompt), opts...)
	if err != nil {
		g.logger.Error("failed to generate text", "err", err)
		return "", err
	}
	if len(response.Choices) < 1 {
		return "", ai.ErrEmptyResponse
	}

	return response.Choices[0].Content, nil
}

// GenerateJSON asks for a JSON object and decodes it into out.
func (g *Generator) GenerateJSON(ctx context.Context, system, prompt string, out any) error {
	return generateJSON(ctx, g.client, g.limiter, g.logger, buildMessages(system, prompt), out)
}
