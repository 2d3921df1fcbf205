// Package gemini adapts the Google GenAI SDK to the chat.ContentGenerator
// interface. All wire-shape mapping between the SDK types and the runtime's
// content model lives here.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sdk "google.golang.org/genai"

	"github.com/kepvey/drover/internal/chat"
	"github.com/kepvey/drover/pkg/genai"
)

// Options configures the provider.
type Options struct {
	// APIKey authenticates against the Gemini API. Empty falls back to the
	// SDK's environment lookup.
	APIKey string

	Logger *slog.Logger
}

// Provider implements chat.ContentGenerator over the Gemini API.
type Provider struct {
	client *sdk.Client
	logger *slog.Logger
}

// New builds a provider.
func New(ctx context.Context, opts Options) (*Provider, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client, err := sdk.NewClient(ctx, &sdk.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: sdk.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Provider{client: client, logger: logger}, nil
}

// GenerateStream starts a streaming generation. Transport errors after the
// stream opens are delivered in-band.
func (p *Provider) GenerateStream(ctx context.Context, req *chat.Request) (<-chan *chat.Chunk, error) {
	contents := toSDKContents(req.Contents)
	config := generateConfig(req.SystemInstruction, req.Tools)

	out := make(chan *chat.Chunk)
	go func() {
		defer close(out)
		start := time.Now()
		for resp, err := range p.client.Models.GenerateContentStream(ctx, req.Model, contents, config) {
			if err != nil {
				select {
				case out <- &chat.Chunk{Err: statusError(err)}:
				case <-ctx.Done():
				}
				return
			}
			for _, chunk := range fromSDKResponse(resp, start) {
				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Generate performs a non-streaming generation.
func (p *Provider) Generate(ctx context.Context, req *chat.Request) (*genai.Content, *genai.UsageMetadata, error) {
	resp, err := p.client.Models.GenerateContent(ctx, req.Model, toSDKContents(req.Contents),
		generateConfig(req.SystemInstruction, req.Tools))
	if err != nil {
		return nil, nil, statusError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, nil, errors.New("model returned no candidates")
	}
	content := fromSDKContent(resp.Candidates[0].Content)
	return &content, fromSDKUsage(resp.UsageMetadata, 0), nil
}

// GenerateJSON performs a generation constrained to the request's response
// schema and unmarshals the result into out.
func (p *Provider) GenerateJSON(ctx context.Context, req *chat.JSONRequest, out any) error {
	config := generateConfig(req.SystemInstruction, nil)
	config.ResponseMIMEType = "application/json"
	config.ResponseSchema = toSDKSchema(req.ResponseSchema)

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, toSDKContents(req.Contents), config)
	if err != nil {
		return statusError(err)
	}
	text := responseText(resp)
	if text == "" {
		return errors.New("model returned no JSON content")
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("parse structured response: %w", err)
	}
	return nil
}

// responseText concatenates the non-thought text parts of the first candidate.
func responseText(resp *sdk.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

// CountTokens returns the backend's token count for the contents.
func (p *Provider) CountTokens(ctx context.Context, model string, contents []genai.Content) (int, error) {
	resp, err := p.client.Models.CountTokens(ctx, model, toSDKContents(contents), nil)
	if err != nil {
		return 0, statusError(err)
	}
	return int(resp.TotalTokens), nil
}

// Embed returns one embedding vector per input text.
func (p *Provider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	contents := make([]*sdk.Content, len(texts))
	for i, t := range texts {
		contents[i] = &sdk.Content{Role: string(sdk.RoleUser), Parts: []*sdk.Part{{Text: t}}}
	}
	resp, err := p.client.Models.EmbedContent(ctx, model, contents, nil)
	if err != nil {
		return nil, statusError(err)
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

// generateConfig builds the shared request config.
func generateConfig(systemInstruction string, decls []genai.FunctionDeclaration) *sdk.GenerateContentConfig {
	config := &sdk.GenerateContentConfig{}
	if systemInstruction != "" {
		config.SystemInstruction = &sdk.Content{
			Role:  string(sdk.RoleUser),
			Parts: []*sdk.Part{{Text: systemInstruction}},
		}
	}
	if len(decls) > 0 {
		tool := &sdk.Tool{}
		for _, d := range decls {
			tool.FunctionDeclarations = append(tool.FunctionDeclarations, &sdk.FunctionDeclaration{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  toSDKSchema(d.Parameters),
			})
		}
		config.Tools = []*sdk.Tool{tool}
	}
	return config
}

// statusError maps SDK API errors onto chat.StatusError so the retry layer
// can classify them. Other errors pass through unchanged.
func statusError(err error) error {
	var apiErr sdk.APIError
	if errors.As(err, &apiErr) {
		return &chat.StatusError{
			Code:       apiErr.Code,
			Message:    apiErr.Message,
			RetryAfter: retryDelay(apiErr),
		}
	}
	return err
}

// retryDelay extracts the server-requested delay from a rate-limit error's
// google.rpc.RetryInfo detail, zero if absent.
func retryDelay(apiErr sdk.APIError) time.Duration {
	for _, detail := range apiErr.Details {
		t, _ := detail["@type"].(string)
		if !strings.HasSuffix(t, "RetryInfo") {
			continue
		}
		raw, _ := detail["retryDelay"].(string)
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			continue
		}
		return d
	}
	return 0
}
