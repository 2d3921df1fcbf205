package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/kepvey/drover/pkg/genai"
)

// CompressionThreshold is the fraction of the model's token limit at which
// compression kicks in.
const CompressionThreshold = 0.95

// envAck and summaryAck seed the model side of the post-reset exchanges.
const (
	envAck     = "Got it. Thanks for the context!"
	summaryAck = "Got it. Thanks for the additional context!"
)

// CompressionSnapshot records the before and after token counts of one
// compression.
type CompressionSnapshot struct {
	OriginalTokenCount int
	NewTokenCount      int
}

// TryCompress replaces the history with a model-written summary when the
// curated history has reached CompressionThreshold of the model's context
// window, or unconditionally when force is set. Returns nil when no
// compression happened.
func (s *Session) TryCompress(ctx context.Context, force bool) (*CompressionSnapshot, error) {
	tokens, err := s.CountTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting tokens before compression: %w", err)
	}

	limit := TokenLimit(s.Model())
	if !force && float64(tokens) < CompressionThreshold*float64(limit) {
		return nil, nil
	}

	curated := s.History(true)
	if len(curated) == 0 {
		return nil, nil
	}

	prompt := compressionPrompt(curated)
	var summary *genai.Content
	err = withBackoff(ctx, s.retryOptions(), func() error {
		var genErr error
		summary, _, genErr = s.gen.Generate(ctx, &Request{
			Model:    s.Model(),
			Contents: []genai.Content{genai.NewUserText(prompt)},
		})
		return genErr
	})
	if err != nil {
		return nil, fmt.Errorf("summarizing history: %w", err)
	}
	summaryText := strings.TrimSpace(genai.Text(*summary))
	if summaryText == "" {
		return nil, fmt.Errorf("summarizing history: model returned empty summary")
	}

	s.mu.Lock()
	s.history = append(s.envSeed(),
		genai.NewUserText(summaryText),
		genai.NewModelText(summaryAck))
	s.mu.Unlock()

	newTokens, err := s.CountTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting tokens after compression: %w", err)
	}

	s.logger.Info("compressed chat history",
		"original_tokens", tokens,
		"new_tokens", newTokens)
	return &CompressionSnapshot{
		OriginalTokenCount: tokens,
		NewTokenCount:      newTokens,
	}, nil
}

// compressionPrompt renders the summarization request over a formatted
// transcript.
func compressionPrompt(history []genai.Content) string {
	var b strings.Builder
	b.WriteString(`Please create a concise summary of the following conversation history.
The summary should:
1. Capture the main topics discussed
2. Include key decisions and outcomes
3. Preserve important context for future interactions
4. Be structured in clear sections

Maximum length: 2000 characters

Format the summary as XML:
<summary>
  <topics>
    <topic>...</topic>
  </topics>
  <key_points>
    <point>...</point>
  </key_points>
  <context>
    <item>...</item>
  </context>
</summary>

Conversation history:
`)
	for _, c := range history {
		text := formatForSummary(c)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "\n[%s]: %s\n", c.Role, text)
	}
	return b.String()
}

func formatForSummary(c genai.Content) string {
	var parts []string
	for _, p := range c.Parts {
		switch {
		case p.FunctionCall != nil:
			parts = append(parts, fmt.Sprintf("[called %s]", p.FunctionCall.Name))
		case p.FunctionResponse != nil:
			parts = append(parts, fmt.Sprintf("[%s returned]", p.FunctionResponse.Name))
		case p.Text != "" && !p.Thought:
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, " ")
}
