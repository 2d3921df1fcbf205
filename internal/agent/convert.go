package agent

import (
	"fmt"

	"github.com/kepvey/drover/pkg/genai"
)

const executionSucceeded = "Tool execution succeeded."

// ConvertToFunctionResponse normalizes a tool's result parts into the
// function-response parts fed back to the model under the originating call's
// id and name. The mapping is deterministic: identical inputs produce
// identical parts.
func ConvertToFunctionResponse(toolName, callID string, llmContent []genai.Part) []genai.Part {
	switch len(llmContent) {
	case 0:
		return []genai.Part{outputResponse(toolName, callID, executionSucceeded)}
	case 1:
		return convertSinglePart(toolName, callID, llmContent[0])
	default:
		out := make([]genai.Part, 0, len(llmContent)+1)
		out = append(out, outputResponse(toolName, callID, executionSucceeded))
		out = append(out, llmContent...)
		return out
	}
}

func convertSinglePart(toolName, callID string, p genai.Part) []genai.Part {
	switch {
	case p.FunctionResponse != nil:
		// A nested function response: flatten its inner content to text.
		// Binary parts in that path are dropped, matching the upstream
		// wire behavior.
		if text, ok := nestedResponseText(p.FunctionResponse); ok {
			return []genai.Part{outputResponse(toolName, callID, text)}
		}
		fr := *p.FunctionResponse
		fr.ID = callID
		fr.Name = toolName
		return []genai.Part{{FunctionResponse: &fr}}

	case p.InlineData != nil:
		return []genai.Part{
			outputResponse(toolName, callID,
				fmt.Sprintf("Binary content of type %s was processed.", p.InlineData.MIMEType)),
			p,
		}

	case p.FileData != nil:
		return []genai.Part{
			outputResponse(toolName, callID,
				fmt.Sprintf("Binary content of type %s was processed.", p.FileData.MIMEType)),
			p,
		}

	default:
		return []genai.Part{outputResponse(toolName, callID, p.Text)}
	}
}

// nestedResponseText extracts and concatenates the text parts of a nested
// response's content list.
func nestedResponseText(fr *genai.FunctionResponse) (string, bool) {
	if fr.Response == nil {
		return "", false
	}
	content, ok := fr.Response["content"].([]any)
	if !ok {
		return "", false
	}
	text := ""
	for _, item := range content {
		part, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if t, ok := part["text"].(string); ok {
			text += t
		}
	}
	return text, true
}

func outputResponse(toolName, callID, output string) genai.Part {
	return genai.Part{FunctionResponse: &genai.FunctionResponse{
		ID:       callID,
		Name:     toolName,
		Response: map[string]any{"output": output},
	}}
}

// ErrorResponse builds the function-response part for a failed call. For
// classified tool errors the model sees the plain message, not the bracketed
// category prefix.
func ErrorResponse(toolName, callID string, err error) []genai.Part {
	msg := "unknown error"
	if toolErr, ok := GetToolError(err); ok && toolErr.Message != "" {
		msg = toolErr.Message
	} else if err != nil {
		msg = err.Error()
	}
	return []genai.Part{{FunctionResponse: &genai.FunctionResponse{
		ID:       callID,
		Name:     toolName,
		Response: map[string]any{"error": msg},
	}}}
}

// CancelledResponse builds the function-response part for a cancelled call.
func CancelledResponse(toolName, callID, reason string) []genai.Part {
	if reason == "" {
		reason = "User did not allow tool call"
	}
	return []genai.Part{{FunctionResponse: &genai.FunctionResponse{
		ID:       callID,
		Name:     toolName,
		Response: map[string]any{"error": "[Operation Cancelled] Reason: " + reason},
	}}}
}
