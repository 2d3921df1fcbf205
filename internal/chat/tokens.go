package chat

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/kepvey/drover/pkg/genai"
)

// DefaultTokenLimit applies to models without an entry in the limit table.
const DefaultTokenLimit = 1_048_576

// tokenLimits maps model family prefixes to context-window sizes. Longest
// prefix wins.
var tokenLimits = map[string]int{
	"gemini-1.5-pro":   2_097_152,
	"gemini-1.5-flash": 1_048_576,
	"gemini-2.0-flash": 1_048_576,
	"gemini-2.5-pro":   1_048_576,
	"gemini-2.5-flash": 1_048_576,
}

// TokenLimit returns the context-window size for model.
func TokenLimit(model string) int {
	best := ""
	for prefix := range tokenLimits {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return DefaultTokenLimit
	}
	return tokenLimits[best]
}

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// EstimateTokens approximates the token count of contents locally. It is the
// fallback when the backend's CountTokens is unavailable; the estimate is
// close enough for the compression threshold, which tolerates slack.
func EstimateTokens(contents []genai.Content) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return
		}
		encoding = enc
	})

	total := 0
	for _, c := range contents {
		for _, p := range c.Parts {
			text := p.Text
			if p.FunctionCall != nil {
				raw, _ := json.Marshal(p.FunctionCall)
				text += string(raw)
			}
			if p.FunctionResponse != nil {
				raw, _ := json.Marshal(p.FunctionResponse)
				text += string(raw)
			}
			if text == "" {
				continue
			}
			if encoding != nil {
				total += len(encoding.Encode(text, nil, nil))
			} else {
				// Rough 4-bytes-per-token heuristic if the encoding
				// failed to load.
				total += len(text) / 4
			}
		}
		// Per-message framing overhead.
		total += 4
	}
	return total
}
