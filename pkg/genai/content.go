// Package genai defines the wire-level conversation model shared by the
// scheduler, the chat session, and model providers.
//
// The shapes mirror the LLM's function-calling convention: a Content is an
// ordered list of Parts carrying a role, and a Part is exactly one of text,
// thought text, a function call, a function response, or inline binary data.
package genai

import "encoding/json"

// Role identifies the author of a Content.
type Role string

const (
	// RoleUser marks content authored by the user (including tool responses).
	RoleUser Role = "user"

	// RoleModel marks content authored by the model.
	RoleModel Role = "model"
)

// FunctionCall is a model-issued request to invoke a tool.
type FunctionCall struct {
	// ID correlates the call with its response. May be absent on the wire;
	// the stream demultiplexer synthesizes one in that case.
	ID string `json:"id,omitempty"`

	// Name is the registered tool name.
	Name string `json:"name"`

	// Args holds the call arguments as parsed JSON.
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse is the result of a tool invocation, fed back to the model.
type FunctionResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response,omitempty"`
}

// Blob is opaque inline data with a MIME type.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data,omitempty"`
}

// Part is one element of a Content. Exactly one payload field is set.
type Part struct {
	// Text is plain text. When Thought is true the text is the model's
	// reasoning summary rather than response content.
	Text string `json:"text,omitempty"`

	// Thought marks Text as model reasoning rather than output.
	Thought bool `json:"thought,omitempty"`

	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
	InlineData       *Blob             `json:"inlineData,omitempty"`

	// FileData references externally stored data by URI.
	FileData *FileData `json:"fileData,omitempty"`
}

// FileData references a file by URI instead of carrying bytes inline.
type FileData struct {
	MIMEType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

// Content is an ordered sequence of parts with an author role.
type Content struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// UsageMetadata reports token accounting for one model call.
type UsageMetadata struct {
	PromptTokens     int   `json:"promptTokenCount"`
	CandidatesTokens int   `json:"candidatesTokenCount"`
	TotalTokens      int   `json:"totalTokenCount"`
	APITimeMS        int64 `json:"apiTimeMs,omitempty"`
}

// TextPart returns a plain text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// NewUserText builds a single-part user content.
func NewUserText(text string) Content {
	return Content{Role: RoleUser, Parts: []Part{TextPart(text)}}
}

// NewModelText builds a single-part model content.
func NewModelText(text string) Content {
	return Content{Role: RoleModel, Parts: []Part{TextPart(text)}}
}

// NewUserParts builds a user content from the given parts.
func NewUserParts(parts []Part) Content {
	return Content{Role: RoleUser, Parts: parts}
}

// Text concatenates the non-thought text parts of c.
func Text(c Content) string {
	var out string
	for _, p := range c.Parts {
		if p.Thought {
			continue
		}
		out += p.Text
	}
	return out
}

// IsEmptyPart reports whether p carries no observable content.
func IsEmptyPart(p Part) bool {
	return p.Text == "" &&
		p.FunctionCall == nil &&
		p.FunctionResponse == nil &&
		(p.InlineData == nil || len(p.InlineData.Data) == 0) &&
		p.FileData == nil
}

// IsEmpty reports whether c has no parts or only parts without observable
// content. A thought part with empty text still counts as empty; a thought
// with text does not, so curation can distinguish reasoning-only turns.
func IsEmpty(c Content) bool {
	if len(c.Parts) == 0 {
		return true
	}
	for _, p := range c.Parts {
		if !IsEmptyPart(p) {
			return false
		}
	}
	return true
}

// IsValidModelOutput reports whether a model content would be accepted by the
// API as part of a request history. Empty parts and empty non-thought text
// invalidate the content.
func IsValidModelOutput(c Content) bool {
	if len(c.Parts) == 0 {
		return false
	}
	for _, p := range c.Parts {
		if IsEmptyPart(p) && !p.Thought {
			return false
		}
		if !p.Thought && p.Text == "" && p.FunctionCall == nil && p.FunctionResponse == nil && p.InlineData == nil && p.FileData == nil {
			return false
		}
	}
	return true
}

// IsFunctionResponse reports whether c is a user content consisting solely of
// function-response parts.
func IsFunctionResponse(c Content) bool {
	if c.Role != RoleUser || len(c.Parts) == 0 {
		return false
	}
	for _, p := range c.Parts {
		if p.FunctionResponse == nil {
			return false
		}
	}
	return true
}

// CopyContent returns a deep copy of c.
func CopyContent(c Content) Content {
	out := Content{Role: c.Role, Parts: make([]Part, len(c.Parts))}
	for i, p := range c.Parts {
		out.Parts[i] = copyPart(p)
	}
	return out
}

// CopyContents returns a deep copy of the given slice.
func CopyContents(contents []Content) []Content {
	if contents == nil {
		return nil
	}
	out := make([]Content, len(contents))
	for i, c := range contents {
		out[i] = CopyContent(c)
	}
	return out
}

func copyPart(p Part) Part {
	out := p
	if p.FunctionCall != nil {
		fc := *p.FunctionCall
		fc.Args = copyJSONMap(p.FunctionCall.Args)
		out.FunctionCall = &fc
	}
	if p.FunctionResponse != nil {
		fr := *p.FunctionResponse
		fr.Response = copyJSONMap(p.FunctionResponse.Response)
		out.FunctionResponse = &fr
	}
	if p.InlineData != nil {
		b := *p.InlineData
		b.Data = append([]byte(nil), p.InlineData.Data...)
		out.InlineData = &b
	}
	if p.FileData != nil {
		fd := *p.FileData
		out.FileData = &fd
	}
	return out
}

// copyJSONMap deep-copies a JSON-shaped map by round-tripping through
// encoding/json. Argument maps come off the wire, so the round trip cannot
// fail for values we ever store.
func copyJSONMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
