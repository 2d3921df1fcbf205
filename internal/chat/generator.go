// Package chat owns the conversation history for one session: append and
// curation rules, serialized streaming sends with retry, token accounting,
// and history compression.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kepvey/drover/pkg/genai"
)

// Chunk is one unit of a model response stream. Exactly one of Content,
// Usage, or Err is set. The stream channel is closed after the final chunk.
type Chunk struct {
	Content *genai.Content
	Usage   *genai.UsageMetadata
	Err     error
}

// Request describes one model call.
type Request struct {
	Model             string
	Contents          []genai.Content
	SystemInstruction string
	Tools             []genai.FunctionDeclaration
}

// JSONRequest describes a structured-output model call. ResponseSchema is a
// JSON schema the model output must satisfy.
type JSONRequest struct {
	Model             string
	Contents          []genai.Content
	SystemInstruction string
	ResponseSchema    map[string]any
}

// ContentGenerator is the model backend. Implementations live under
// internal/provider; tests use scripted fakes.
type ContentGenerator interface {
	// GenerateStream starts a streaming generation. The returned channel
	// yields content and usage chunks and is closed when the stream ends.
	// Transport errors are delivered in-band as a Chunk with Err set.
	GenerateStream(ctx context.Context, req *Request) (<-chan *Chunk, error)

	// Generate performs a non-streaming generation and returns the full
	// model content plus usage.
	Generate(ctx context.Context, req *Request) (*genai.Content, *genai.UsageMetadata, error)

	// GenerateJSON performs a generation constrained to the request's
	// response schema and unmarshals the result into out.
	GenerateJSON(ctx context.Context, req *JSONRequest, out any) error

	// CountTokens returns the backend's token count for the given contents.
	CountTokens(ctx context.Context, model string, contents []genai.Content) (int, error)

	// Embed returns one embedding vector per input text.
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// StatusError is a backend error carrying the upstream HTTP status. Providers
// return it so the retry layer can classify transient failures.
type StatusError struct {
	Code    int
	Message string

	// RetryAfter is the server-requested delay, zero if the response did
	// not carry one.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("model backend returned status %d: %s", e.Code, e.Message)
}

// IsRetryableStatus reports whether err is a StatusError with a transient
// status (429 or any 5xx).
func IsRetryableStatus(err error) bool {
	code, ok := StatusCode(err)
	if !ok {
		return false
	}
	return code == 429 || (code >= 500 && code < 600)
}

// StatusCode extracts the HTTP status from err if it is (or wraps) a
// StatusError.
func StatusCode(err error) (int, bool) {
	var se *StatusError
	if !errors.As(err, &se) {
		return 0, false
	}
	return se.Code, true
}

// retryAfter extracts the server-requested delay from err, zero if absent.
func retryAfter(err error) time.Duration {
	var se *StatusError
	if !errors.As(err, &se) {
		return 0
	}
	return se.RetryAfter
}
