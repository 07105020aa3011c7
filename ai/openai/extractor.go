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


package openai

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/pedrocostadev/ai-notebook-sub000/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ConceptExtractor implements ai.ConceptExtractor using OpenAI-compatible chat APIs.
type ConceptExtractor struct {
	client        llms.Model
	limiter       *limiter
	minImportance int
	logger        *slog.Logger
}

// concept is an internal type used for JSON unmarshaling.
// It matches the structure expected by the LLM.
type concept struct {
	Concept    string `json:"concept"`
	Type       string `json:"type"`
	Importance int    `json:"importance"`
}

// analysis is the wrapper structure for the LLM's JSON response.
type analysis struct {
	CoreConcepts []concept `json:"core_concepts"`
}

// newConceptExtractor is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newConceptExtractor(config *ai.Config, limiter *limiter) (*ConceptExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ClassifierHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.ClassifierModel),
	)
	if err != nil {
		return nil, err
	}

	return &ConceptExtractor{
		client:        client,
		limiter:       limiter,
		minImportance: config.MinImportance,
		logger:        slog.Default().With("component", "openai-extractor"),
	}, nil
}

// NewConceptExtractor creates a new concept extractor using the provided configuration.
//
// Returns ai.ConceptExtractor interface to enforce abstraction.
func NewConceptExtractor(config *ai.Config) (ai.ConceptExtractor, error) {
	return newConceptExtractor(config, newLimiter(config))
}

// ExtractConcepts extracts semantic concepts from text using an LLM.
// It applies importance filtering and returns only concepts above the minimum threshold.
func (e *ConceptExtractor) ExtractConcepts(ctx context.Context, text string) ([]ai.ExtractedConcept, error) {
	content := buildMessages(buildSystemPrompt(), scrubString(text))

	var result analysis
	if err := generateJSON(ctx, e.client, e.limiter, e.logger, content, &result); err != nil {
		if errors.Is(err, ai.ErrEmptyResponse) {
			e.logger.Debug("no choices returned from model")
			return []ai.ExtractedConcept{}, nil
		}
		return nil, err
	}

	extracted := filterConcepts(result.CoreConcepts, e.minImportance)

	e.logger.Debug("extracted concepts",
		"total", len(result.CoreConcepts),
		"filtered", len(extracted))

	return extracted, nil
}

// filterConcepts drops concepts below minImportance, normalizes names and
// types, and orders the rest by importance, most important first.
func filterConcepts(concepts []concept, minImportance int) []ai.ExtractedConcept {
	extracted := make([]ai.ExtractedConcept, 0, len(concepts))
	for _, c := range concepts {
		name := strings.ToLower(strings.TrimSpace(c.Concept))
		if name == "" || c.Importance < minImportance {
			continue
		}
		conceptType := strings.ReplaceAll(strings.TrimSpace(c.Type), " ", "_")
		if conceptType == "" {
			conceptType = "abstract_concept"
		}
		extracted = append(extracted, ai.ExtractedConcept{
			Name:       name,
			Type:       conceptType,
			Importance: c.Importance,
		})
	}

	slices.SortStableFunc(extracted, func(a, b ai.ExtractedConcept) int {
		return cmp.Compare(b.Importance, a.Importance)
	})
	return extracted
}
