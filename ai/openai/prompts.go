package openai

import (
	"fmt"
	"strings"

	"github.com/pedrocostadev/ai-notebook-sub000/ai"
)

const classificationResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "core_concepts": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "concept": {
            "type": "string",
            "pattern": "^[a-z]+( [a-z]+)*$"
          },
          "type": {
            "type": "string"
          },
          "importance": {
            "type": "integer",
            "minimum": 1,
            "maximum": 10
          }
        },
        "required": ["concept", "type", "importance"],
        "additionalProperties": false
      }
    }
  },
  "required": ["core_concepts"],
  "additionalProperties": false
}`

const classificationPromptTemplate = `Extract the most important concepts from the given passage of a book or document and return them as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Concept names must be lowercase, 1-3 words, singular form only.
- Type field must match exactly one of the listed values: %s.
- Importance is an integer from 1 (least relevant) to 10 (most central). Rate based on how essential the concept is for understanding the passage.
- Include only concepts that are explicitly mentioned or clearly implied by the passage. Do not hallucinate.
- Prefer the ideas the passage is about over incidental mentions.
- If no concepts can be identified, return "core_concepts": [].
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "The gravitational pull of the moon raises tides in the oceans. Newton first explained the effect."
Output:
{
  "core_concepts": [
    {"concept":"tide","type":"phenomenon","importance":9},
    {"concept":"gravity","type":"phenomenon","importance":8},
    {"concept":"moon","type":"natural_object","importance":7},
    {"concept":"isaac newton","type":"person","importance":5}
  ]
}`

// buildSystemPrompt creates the system prompt with concept types embedded.
func buildSystemPrompt() string {
	return fmt.Sprintf(classificationPromptTemplate,
		classificationResponseSchema,
		strings.Join(ai.ConceptTypes, ", "))
}
