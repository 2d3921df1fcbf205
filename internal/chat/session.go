package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kepvey/drover/pkg/genai"
)

// FallbackHandler is consulted when the primary model is persistently rate
// limited. Returning true switches the session to fallbackModel and resumes
// retrying.
type FallbackHandler func(ctx context.Context, currentModel, fallbackModel string) bool

// Options configures a Session. Zero-value fields fall back to defaults.
type Options struct {
	Model             string
	SystemInstruction string
	Tools             []genai.FunctionDeclaration

	// EnvContext, when set, seeds a user-role preamble describing the
	// working environment after every history reset.
	EnvContext string

	// EmbeddingModel is the model id used by GenerateEmbedding.
	EmbeddingModel string

	FallbackModel   string
	FallbackHandler FallbackHandler

	Logger *slog.Logger
}

// Session owns one conversation's comprehensive history. All history
// mutations go through its API; readers get deep copies. Sends are
// serialized: a second SendStream blocks until the first has finished
// appending its model output.
type Session struct {
	gen    ContentGenerator
	logger *slog.Logger

	// sendMu serializes SendStream calls end to end, including the history
	// record that happens when the stream drains.
	sendMu sync.Mutex

	// mu guards the fields below.
	mu                sync.Mutex
	history           []genai.Content
	model             string
	systemInstruction string
	tools             []genai.FunctionDeclaration
	envContext        string
	embeddingModel    string

	fallbackModel   string
	fallbackHandler FallbackHandler
}

// NewSession builds a session over the given generator.
func NewSession(gen ContentGenerator, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		gen:               gen,
		logger:            logger,
		model:             opts.Model,
		systemInstruction: opts.SystemInstruction,
		tools:             opts.Tools,
		envContext:        opts.EnvContext,
		embeddingModel:    opts.EmbeddingModel,
		fallbackModel:     opts.FallbackModel,
		fallbackHandler:   opts.FallbackHandler,
	}
	s.history = s.envSeed()
	return s
}

// envSeed returns the preamble exchange that opens a fresh history, empty
// when no environment context is configured.
func (s *Session) envSeed() []genai.Content {
	if s.envContext == "" {
		return nil
	}
	return []genai.Content{
		genai.NewUserText(s.envContext),
		genai.NewModelText(envAck),
	}
}

// Model returns the current model id.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SetModel switches the session to a different model id.
func (s *Session) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

// SetTools replaces the tool declarations sent with each request.
func (s *Session) SetTools(tools []genai.FunctionDeclaration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = tools
}

// SetSystemInstruction replaces the system instruction sent with each
// request.
func (s *Session) SetSystemInstruction(instruction string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systemInstruction = instruction
}

// History returns a deep copy of the history. With curated true, invalid
// model turns and the user messages that caused them are removed; the result
// strictly alternates roles starting with user.
func (s *Session) History(curated bool) []genai.Content {
	s.mu.Lock()
	defer s.mu.Unlock()
	if curated {
		return genai.CopyContents(curate(s.history))
	}
	return genai.CopyContents(s.history)
}

// SetHistory replaces the history wholesale.
func (s *Session) SetHistory(history []genai.Content) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = genai.CopyContents(history)
}

// AppendUser appends one user-side message without merge processing. Used
// for direct insertions such as cancelled-call responses.
func (s *Session) AppendUser(c genai.Content) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, genai.CopyContent(c))
}

// RecordModelOutput appends model output to history, applying the merge
// rules documented on recordTurn. The preceding user message must already be
// in history.
func (s *Session) RecordModelOutput(outputs []genai.Content) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordOutputLocked(outputs)
}

// Clear resets the history to the environment preamble, dropping the
// conversation.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = s.envSeed()
}

// SendStream sends input to the model and returns the response stream. The
// input and the model output are appended to history when the stream drains;
// until then any further SendStream call blocks. Establishment failures are
// retried with backoff; mid-stream errors are forwarded in-band and end the
// stream.
func (s *Session) SendStream(ctx context.Context, input genai.Content) (<-chan *Chunk, error) {
	s.sendMu.Lock()

	req := s.buildRequest(input)

	var upstream <-chan *Chunk
	err := withBackoff(ctx, s.retryOptions(), func() error {
		var err error
		upstream, err = s.gen.GenerateStream(ctx, req)
		return err
	})
	if err != nil {
		s.sendMu.Unlock()
		return nil, err
	}

	out := make(chan *Chunk)
	go func() {
		defer s.sendMu.Unlock()
		defer close(out)

		var outputs []genai.Content
		for chunk := range upstream {
			if chunk.Content != nil && chunk.Content.Role == genai.RoleModel {
				outputs = append(outputs, genai.CopyContent(*chunk.Content))
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				// Receiver is gone. Drain upstream so the provider can
				// release its resources, then record what arrived.
				for range upstream {
				}
				s.recordTurn(input, outputs)
				return
			}
		}
		s.recordTurn(input, outputs)
	}()
	return out, nil
}

// Send performs a non-streaming exchange and records it in history.
func (s *Session) Send(ctx context.Context, input genai.Content) (*genai.Content, *genai.UsageMetadata, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	req := s.buildRequest(input)

	var (
		content *genai.Content
		usage   *genai.UsageMetadata
	)
	err := withBackoff(ctx, s.retryOptions(), func() error {
		var err error
		content, usage, err = s.gen.Generate(ctx, req)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	var outputs []genai.Content
	if content != nil {
		outputs = []genai.Content{*content}
	}
	s.recordTurn(input, outputs)
	return content, usage, nil
}

// GenerateJSON runs a schema-constrained generation over the given contents
// without touching history.
func (s *Session) GenerateJSON(ctx context.Context, contents []genai.Content, schema map[string]any, out any) error {
	s.mu.Lock()
	model := s.model
	s.mu.Unlock()

	req := &JSONRequest{
		Model:          model,
		Contents:       contents,
		ResponseSchema: schema,
	}
	return withBackoff(ctx, s.retryOptions(), func() error {
		return s.gen.GenerateJSON(ctx, req, out)
	})
}

// GenerateEmbedding returns one embedding vector per input text, using the
// session's embedding model.
func (s *Session) GenerateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	model := s.embeddingModel
	s.mu.Unlock()

	vectors, err := s.gen.Embed(ctx, model, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

// CountTokens counts tokens in the curated history via the backend, falling
// back to a local estimate when the backend cannot count.
func (s *Session) CountTokens(ctx context.Context) (int, error) {
	curated := s.History(true)
	n, err := s.gen.CountTokens(ctx, s.Model(), curated)
	if err != nil {
		s.logger.Warn("backend token count failed, using local estimate", "error", err)
		return EstimateTokens(curated), nil
	}
	return n, nil
}

func (s *Session) buildRequest(input genai.Content) *Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	contents := append(genai.CopyContents(curate(s.history)), genai.CopyContent(input))
	return &Request{
		Model:             s.model,
		Contents:          contents,
		SystemInstruction: s.systemInstruction,
		Tools:             s.tools,
	}
}

func (s *Session) retryOptions() retryOptions {
	return retryOptions{
		Logger:          s.logger,
		OnPersistent429: s.tryFallback,
	}
}

// tryFallback consults the configured fallback handler and switches models
// when it approves.
func (s *Session) tryFallback(ctx context.Context) bool {
	s.mu.Lock()
	current, fallback := s.model, s.fallbackModel
	handler := s.fallbackHandler
	s.mu.Unlock()

	if handler == nil || fallback == "" || fallback == current {
		return false
	}
	if !handler(ctx, current, fallback) {
		return false
	}
	s.SetModel(fallback)
	s.logger.Info("switched to fallback model", "from", current, "to", fallback)
	return true
}

// recordTurn appends one exchange to history, applying the model-output
// merge rules:
//  1. parts that are purely thought are dropped
//  2. if nothing non-thought remains and the user half of the exchange was
//     not a function response, an empty model message preserves alternation
//  3. adjacent text-only model parts coalesce into one part
//  4. a leading text-only output merges into a trailing text-only model
//     entry already in history
func (s *Session) recordTurn(input genai.Content, outputs []genai.Content) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, genai.CopyContent(input))
	s.recordOutputLocked(outputs)
}

func (s *Session) recordOutputLocked(outputs []genai.Content) {
	stripped := make([]genai.Content, 0, len(outputs))
	for _, c := range outputs {
		parts := make([]genai.Part, 0, len(c.Parts))
		for _, p := range c.Parts {
			if p.Thought {
				continue
			}
			parts = append(parts, p)
		}
		if len(parts) > 0 {
			stripped = append(stripped, genai.Content{Role: genai.RoleModel, Parts: parts})
		}
	}

	if len(stripped) == 0 {
		fromTool := len(s.history) > 0 && genai.IsFunctionResponse(s.history[len(s.history)-1])
		if !fromTool {
			s.history = append(s.history, genai.Content{Role: genai.RoleModel, Parts: []genai.Part{}})
		}
		return
	}

	merged := coalesceModelText(stripped)

	if len(s.history) > 0 {
		last := &s.history[len(s.history)-1]
		if isTextOnlyModel(*last) && isTextOnlyModel(merged[0]) {
			last.Parts[len(last.Parts)-1].Text += merged[0].Parts[0].Text
			merged = merged[1:]
		}
	}
	s.history = append(s.history, merged...)
}

// coalesceModelText merges adjacent text-only model contents and, within
// each content, adjacent plain text parts.
func coalesceModelText(contents []genai.Content) []genai.Content {
	out := make([]genai.Content, 0, len(contents))
	for _, c := range contents {
		c.Parts = coalesceTextParts(c.Parts)
		if len(out) > 0 && isTextOnlyModel(out[len(out)-1]) && isTextOnlyModel(c) {
			prev := &out[len(out)-1]
			prev.Parts[len(prev.Parts)-1].Text += c.Parts[0].Text
			continue
		}
		out = append(out, c)
	}
	return out
}

func coalesceTextParts(parts []genai.Part) []genai.Part {
	out := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		if len(out) > 0 && isPlainText(out[len(out)-1]) && isPlainText(p) {
			out[len(out)-1].Text += p.Text
			continue
		}
		out = append(out, p)
	}
	return out
}

func isPlainText(p genai.Part) bool {
	return !p.Thought && p.FunctionCall == nil && p.FunctionResponse == nil &&
		p.InlineData == nil && p.FileData == nil
}

func isTextOnlyModel(c genai.Content) bool {
	if c.Role != genai.RoleModel || len(c.Parts) == 0 {
		return false
	}
	for _, p := range c.Parts {
		if !isPlainText(p) {
			return false
		}
	}
	return true
}
