package gemini

import (
	"strings"
	"time"

	sdk "google.golang.org/genai"

	"github.com/kepvey/drover/internal/chat"
	"github.com/kepvey/drover/pkg/genai"
)

// toSDKSchema converts a JSON Schema map to the SDK's Schema type. Keywords
// the SDK has no field for are dropped.
func toSDKSchema(schema map[string]any) *sdk.Schema {
	if schema == nil {
		return nil
	}
	out := &sdk.Schema{}
	if t, ok := schema["type"].(string); ok {
		out.Type = sdk.Type(strings.ToUpper(t))
	}
	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				out.Enum = append(out.Enum, s)
			}
		}
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*sdk.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				out.Properties[name] = toSDKSchema(propMap)
			}
		}
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		out.Items = toSDKSchema(items)
	}
	return out
}

// toSDKContents maps runtime contents onto SDK contents.
func toSDKContents(contents []genai.Content) []*sdk.Content {
	out := make([]*sdk.Content, len(contents))
	for i := range contents {
		out[i] = toSDKContent(&contents[i])
	}
	return out
}

func toSDKContent(c *genai.Content) *sdk.Content {
	sc := &sdk.Content{Role: string(c.Role)}
	for i := range c.Parts {
		sc.Parts = append(sc.Parts, toSDKPart(&c.Parts[i]))
	}
	return sc
}

func toSDKPart(p *genai.Part) *sdk.Part {
	sp := &sdk.Part{Text: p.Text, Thought: p.Thought}
	if p.FunctionCall != nil {
		sp.FunctionCall = &sdk.FunctionCall{
			ID:   p.FunctionCall.ID,
			Name: p.FunctionCall.Name,
			Args: p.FunctionCall.Args,
		}
	}
	if p.FunctionResponse != nil {
		sp.FunctionResponse = &sdk.FunctionResponse{
			ID:       p.FunctionResponse.ID,
			Name:     p.FunctionResponse.Name,
			Response: p.FunctionResponse.Response,
		}
	}
	if p.InlineData != nil {
		sp.InlineData = &sdk.Blob{MIMEType: p.InlineData.MIMEType, Data: p.InlineData.Data}
	}
	if p.FileData != nil {
		sp.FileData = &sdk.FileData{MIMEType: p.FileData.MIMEType, FileURI: p.FileData.FileURI}
	}
	return sp
}

// fromSDKContent maps an SDK content back onto the runtime model.
func fromSDKContent(c *sdk.Content) genai.Content {
	out := genai.Content{Role: genai.Role(c.Role)}
	for _, p := range c.Parts {
		if p == nil {
			continue
		}
		out.Parts = append(out.Parts, fromSDKPart(p))
	}
	return out
}

func fromSDKPart(p *sdk.Part) genai.Part {
	gp := genai.Part{Text: p.Text, Thought: p.Thought}
	if p.FunctionCall != nil {
		gp.FunctionCall = &genai.FunctionCall{
			ID:   p.FunctionCall.ID,
			Name: p.FunctionCall.Name,
			Args: p.FunctionCall.Args,
		}
	}
	if p.FunctionResponse != nil {
		gp.FunctionResponse = &genai.FunctionResponse{
			ID:       p.FunctionResponse.ID,
			Name:     p.FunctionResponse.Name,
			Response: p.FunctionResponse.Response,
		}
	}
	if p.InlineData != nil {
		gp.InlineData = &genai.Blob{MIMEType: p.InlineData.MIMEType, Data: p.InlineData.Data}
	}
	if p.FileData != nil {
		gp.FileData = &genai.FileData{MIMEType: p.FileData.MIMEType, FileURI: p.FileData.FileURI}
	}
	return gp
}

// fromSDKResponse splits one streaming response into runtime chunks: content
// first, usage when present.
func fromSDKResponse(resp *sdk.GenerateContentResponse, start time.Time) []*chat.Chunk {
	var chunks []*chat.Chunk
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		content := fromSDKContent(resp.Candidates[0].Content)
		if len(content.Parts) > 0 {
			chunks = append(chunks, &chat.Chunk{Content: &content})
		}
	}
	if resp.UsageMetadata != nil {
		chunks = append(chunks, &chat.Chunk{Usage: fromSDKUsage(resp.UsageMetadata, time.Since(start))})
	}
	return chunks
}

func fromSDKUsage(u *sdk.GenerateContentResponseUsageMetadata, elapsed time.Duration) *genai.UsageMetadata {
	if u == nil {
		return nil
	}
	return &genai.UsageMetadata{
		PromptTokens:     int(u.PromptTokenCount),
		CandidatesTokens: int(u.CandidatesTokenCount),
		TotalTokens:      int(u.TotalTokenCount),
		APITimeMS:        elapsed.Milliseconds(),
	}
}
