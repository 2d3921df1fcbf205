// Package tools defines the contract between the turn scheduler and the
// actions the model can invoke, the registry that indexes them, and the
// built-in tool suite.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kepvey/drover/pkg/genai"
)

// Tool is one callable action. Implementations must be safe under serialized
// use; the scheduler never invokes two methods on the same instance
// concurrently except Execute on distinct calls.
type Tool interface {
	// Name is the stable identifier the model uses in function calls.
	Name() string

	// DisplayName is shown to the user.
	DisplayName() string

	// Description is exported to the model in the function declaration.
	Description() string

	// ParameterSchema is the JSON schema for the call arguments.
	ParameterSchema() map[string]any

	// IsOutputMarkdown reports whether the display output renders as
	// markdown.
	IsOutputMarkdown() bool

	// CanStreamOutput reports whether Execute emits live output chunks.
	CanStreamOutput() bool

	// ValidateParams checks args against the tool's expectations. Pure and
	// cheap; called synchronously at schedule time.
	ValidateParams(args map[string]any) error

	// Describe renders a short human summary of the call for approval
	// prompts.
	Describe(args map[string]any) string

	// ShouldConfirm decides whether the call needs user approval. A nil
	// Confirmation means the call may proceed immediately. May read the
	// filesystem; must honor ctx.
	ShouldConfirm(ctx context.Context, args map[string]any) (*Confirmation, error)

	// Execute runs the call. onLiveOutput, when non-nil, receives the
	// latest output chunk for tools that stream. Must return promptly
	// after ctx is cancelled.
	Execute(ctx context.Context, args map[string]any, onLiveOutput func(string)) (*Result, error)
}

// Result is the outcome of one execution. LLMContent goes back to the model;
// Display is for the user and is either a string or a *FileDiff.
type Result struct {
	LLMContent []genai.Part
	Display    any
}

// TextResult builds a Result whose model and display content are the same
// string.
func TextResult(s string) *Result {
	return &Result{LLMContent: []genai.Part{genai.TextPart(s)}, Display: s}
}

// FileDiff is a display payload describing a proposed or applied file change.
type FileDiff struct {
	FileName string
	Diff     string
}

// ConfirmationOutcome is the user's decision on an approval prompt.
type ConfirmationOutcome string

const (
	OutcomeProceedOnce         ConfirmationOutcome = "proceed_once"
	OutcomeProceedAlways       ConfirmationOutcome = "proceed_always"
	OutcomeProceedAlwaysServer ConfirmationOutcome = "proceed_always_server"
	OutcomeProceedAlwaysTool   ConfirmationOutcome = "proceed_always_tool"
	OutcomeModifyWithEditor    ConfirmationOutcome = "modify_with_editor"
	OutcomeCancel              ConfirmationOutcome = "cancel"
)

// ConfirmationKind discriminates the Confirmation variants.
type ConfirmationKind string

const (
	ConfirmEdit ConfirmationKind = "edit"
	ConfirmExec ConfirmationKind = "exec"
	ConfirmMCP  ConfirmationKind = "mcp"
	ConfirmInfo ConfirmationKind = "info"
)

// Confirmation describes an approval prompt. Kind selects which payload
// fields are meaningful.
type Confirmation struct {
	Kind  ConfirmationKind
	Title string

	// edit
	FileName    string
	FileDiff    string
	IsModifying bool

	// exec
	Command     string
	RootCommand string

	// mcp
	ServerName      string
	ToolName        string
	ToolDisplayName string

	// info
	Prompt string
	URLs   []string

	// OnConfirm, when set, is invoked by the scheduler with the user's
	// decision before the call advances.
	OnConfirm func(ctx context.Context, outcome ConfirmationOutcome) error
}

// ModifyContext lets the approval flow rewrite a pending call's arguments in
// an external editor.
type ModifyContext struct {
	// FilePath names the file the call would touch.
	FilePath func(args map[string]any) string

	// CurrentContent returns the on-disk content the call would modify.
	CurrentContent func(args map[string]any) (string, error)

	// ProposedContent returns the content the call would produce.
	ProposedContent func(args map[string]any) (string, error)

	// UpdatedParams rebuilds the call arguments after the user edited the
	// proposed content.
	UpdatedParams func(currentContent, modifiedProposed string, args map[string]any) map[string]any
}

// Modifiable is implemented by tools whose pending arguments can be edited
// before approval.
type Modifiable interface {
	ModifyContext() *ModifyContext
}

// BaseTool carries the declarative half of the contract. Concrete tools
// embed it and implement the behavioral methods.
type BaseTool struct {
	name        string
	displayName string
	description string
	schema      map[string]any
	markdown    bool
	streaming   bool

	compiled *jsonschema.Schema
}

// NewBaseTool builds the shared descriptor. The parameter schema is compiled
// once; a malformed schema disables validation rather than failing
// registration, matching how discovered tools with loose schemas behave.
func NewBaseTool(name, displayName, description string, schema map[string]any, markdown, streaming bool) BaseTool {
	b := BaseTool{
		name:        name,
		displayName: displayName,
		description: description,
		schema:      schema,
		markdown:    markdown,
		streaming:   streaming,
	}
	b.compiled, _ = compileSchema(schema)
	return b
}

func (b *BaseTool) Name() string                    { return b.name }
func (b *BaseTool) DisplayName() string             { return b.displayName }
func (b *BaseTool) Description() string             { return b.description }
func (b *BaseTool) ParameterSchema() map[string]any { return b.schema }
func (b *BaseTool) IsOutputMarkdown() bool          { return b.markdown }
func (b *BaseTool) CanStreamOutput() bool           { return b.streaming }

// ValidateParams checks args against the compiled parameter schema.
func (b *BaseTool) ValidateParams(args map[string]any) error {
	if b.compiled == nil {
		return nil
	}
	if err := b.compiled.Validate(normalizeForSchema(args)); err != nil {
		return fmt.Errorf("params failed schema validation: %w", err)
	}
	return nil
}

// ShouldConfirm defaults to no confirmation.
func (b *BaseTool) ShouldConfirm(ctx context.Context, args map[string]any) (*Confirmation, error) {
	return nil, nil
}

// Describe defaults to the tool name.
func (b *BaseTool) Describe(args map[string]any) string { return b.name }

func compileSchema(schema map[string]any) (*jsonschema.Schema, error) {
	if schema == nil {
		return nil, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("params.json", strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return compiler.Compile("params.json")
}

// normalizeForSchema round-trips args through JSON so the validator sees the
// types it expects (json.Number handling aside, float64 and friends).
func normalizeForSchema(args map[string]any) any {
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return args
	}
	return out
}

// StringArg extracts a required string argument.
func StringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string", key)
	}
	return s, nil
}
