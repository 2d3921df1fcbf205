package genai

import "testing"

func TestTextSkipsThoughts(t *testing.T) {
	c := Content{Role: RoleModel, Parts: []Part{
		{Text: "planning the refactor", Thought: true},
		{Text: "I renamed "},
		{Text: "the field."},
	}}
	if got := Text(c); got != "I renamed the field." {
		t.Errorf("Text = %q", got)
	}
}

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		name string
		c    Content
		want bool
	}{
		{"no parts", Content{Role: RoleModel}, true},
		{"empty text part", Content{Role: RoleModel, Parts: []Part{{}}}, true},
		{"blank thought", Content{Role: RoleModel, Parts: []Part{{Thought: true}}}, true},
		{"thought with text", Content{Role: RoleModel, Parts: []Part{{Text: "hmm", Thought: true}}}, false},
		{"text", NewModelText("hi"), false},
		{"function call", Content{Role: RoleModel, Parts: []Part{
			{FunctionCall: &FunctionCall{Name: "read_file"}},
		}}, false},
		{"inline data without bytes", Content{Role: RoleModel, Parts: []Part{
			{InlineData: &Blob{MIMEType: "image/png"}},
		}}, true},
		{"inline data with bytes", Content{Role: RoleModel, Parts: []Part{
			{InlineData: &Blob{MIMEType: "image/png", Data: []byte{1}}},
		}}, false},
	}
	for _, tc := range cases {
		if got := IsEmpty(tc.c); got != tc.want {
			t.Errorf("%s: IsEmpty = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsValidModelOutput(t *testing.T) {
	cases := []struct {
		name string
		c    Content
		want bool
	}{
		{"no parts", Content{Role: RoleModel}, false},
		{"text", NewModelText("done"), true},
		{"empty text part", Content{Role: RoleModel, Parts: []Part{{Text: ""}}}, false},
		{"blank thought alone", Content{Role: RoleModel, Parts: []Part{{Thought: true}}}, true},
		{"text plus empty part", Content{Role: RoleModel, Parts: []Part{
			{Text: "ok"}, {},
		}}, false},
		{"function call", Content{Role: RoleModel, Parts: []Part{
			{FunctionCall: &FunctionCall{Name: "write_file"}},
		}}, true},
	}
	for _, tc := range cases {
		if got := IsValidModelOutput(tc.c); got != tc.want {
			t.Errorf("%s: IsValidModelOutput = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsFunctionResponse(t *testing.T) {
	fr := Part{FunctionResponse: &FunctionResponse{ID: "c1", Name: "read_file"}}

	if !IsFunctionResponse(Content{Role: RoleUser, Parts: []Part{fr, fr}}) {
		t.Error("all-response user content not recognized")
	}
	if IsFunctionResponse(Content{Role: RoleUser, Parts: []Part{fr, TextPart("and also")}}) {
		t.Error("mixed content recognized as a function response")
	}
	if IsFunctionResponse(Content{Role: RoleModel, Parts: []Part{fr}}) {
		t.Error("model content recognized as a function response")
	}
	if IsFunctionResponse(Content{Role: RoleUser}) {
		t.Error("empty content recognized as a function response")
	}
}

func TestCopyContentsIsDeep(t *testing.T) {
	original := []Content{{Role: RoleModel, Parts: []Part{
		{FunctionCall: &FunctionCall{ID: "c1", Name: "replace", Args: map[string]any{
			"file_path": "/p/main.go",
			"counts":    map[string]any{"expected": float64(2)},
		}}},
		{FunctionResponse: &FunctionResponse{ID: "c0", Name: "read_file", Response: map[string]any{"output": "body"}}},
		{InlineData: &Blob{MIMEType: "image/png", Data: []byte{1, 2, 3}}},
	}}}

	copied := CopyContents(original)

	// Mutating the copy must leave the original untouched.
	copied[0].Parts[0].FunctionCall.Args["file_path"] = "/elsewhere"
	copied[0].Parts[0].FunctionCall.Args["counts"].(map[string]any)["expected"] = float64(9)
	copied[0].Parts[1].FunctionResponse.Response["output"] = "mutated"
	copied[0].Parts[2].InlineData.Data[0] = 99

	args := original[0].Parts[0].FunctionCall.Args
	if args["file_path"] != "/p/main.go" {
		t.Errorf("top-level arg mutated through the copy: %v", args["file_path"])
	}
	if nested := args["counts"].(map[string]any); nested["expected"] != float64(2) {
		t.Errorf("nested arg mutated through the copy: %v", nested["expected"])
	}
	if got := original[0].Parts[1].FunctionResponse.Response["output"]; got != "body" {
		t.Errorf("response mutated through the copy: %v", got)
	}
	if original[0].Parts[2].InlineData.Data[0] != 1 {
		t.Error("inline bytes mutated through the copy")
	}
}

func TestCopyContentsNil(t *testing.T) {
	if CopyContents(nil) != nil {
		t.Error("CopyContents(nil) allocated a slice")
	}
}
