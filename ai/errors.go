package ai

import "errors"

var (
	// ErrEmptyResponse indicates the model returned no choices.
	ErrEmptyResponse = errors.New("model returned an empty response")

	// ErrMalformedJSON indicates a structured response could not be decoded
	// even after repair and retries.
	ErrMalformedJSON = errors.New("model returned malformed JSON")

	// ErrInvalidConfig indicates an incomplete or inconsistent Config.
	ErrInvalidConfig = errors.New("invalid ai config")
)
