package genai

// FunctionDeclaration describes one callable tool in a model request.
// Parameters is a JSON schema (as parsed JSON) for the call arguments.
type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}
