package agent

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/kepvey/drover/pkg/genai"
)

func TestConvertStringResult(t *testing.T) {
	parts := ConvertToFunctionResponse("list_dir", "c1", []genai.Part{genai.TextPart("a.txt\nb.txt")})
	if len(parts) != 1 {
		t.Fatalf("got %d parts, want 1", len(parts))
	}
	fr := parts[0].FunctionResponse
	if fr == nil || fr.ID != "c1" || fr.Name != "list_dir" {
		t.Fatalf("response = %+v", fr)
	}
	if fr.Response["output"] != "a.txt\nb.txt" {
		t.Errorf("output = %v", fr.Response["output"])
	}
}

func TestConvertEmptyResult(t *testing.T) {
	parts := ConvertToFunctionResponse("t", "c1", nil)
	if len(parts) != 1 {
		t.Fatalf("got %d parts, want 1", len(parts))
	}
	if parts[0].FunctionResponse.Response["output"] != executionSucceeded {
		t.Errorf("output = %v", parts[0].FunctionResponse.Response["output"])
	}
}

func TestConvertMultiPartResult(t *testing.T) {
	in := []genai.Part{genai.TextPart("one"), genai.TextPart("two")}
	parts := ConvertToFunctionResponse("t", "c1", in)
	if len(parts) != 3 {
		t.Fatalf("got %d parts, want synthetic response + 2 originals", len(parts))
	}
	if parts[0].FunctionResponse == nil || parts[0].FunctionResponse.Response["output"] != executionSucceeded {
		t.Errorf("leading part = %+v", parts[0])
	}
	if parts[1].Text != "one" || parts[2].Text != "two" {
		t.Errorf("original parts not preserved: %+v", parts[1:])
	}
}

func TestConvertNestedFunctionResponseFlattensText(t *testing.T) {
	in := []genai.Part{{FunctionResponse: &genai.FunctionResponse{
		ID:   "inner",
		Name: "inner_tool",
		Response: map[string]any{
			"content": []any{
				map[string]any{"text": "alpha "},
				map[string]any{"text": "beta"},
				map[string]any{"inlineData": map[string]any{"mimeType": "image/png"}},
			},
		},
	}}}
	parts := ConvertToFunctionResponse("t", "c1", in)
	if len(parts) != 1 {
		t.Fatalf("got %d parts, want 1", len(parts))
	}
	fr := parts[0].FunctionResponse
	if fr.ID != "c1" || fr.Name != "t" {
		t.Errorf("identity not rewritten: %+v", fr)
	}
	if fr.Response["output"] != "alpha beta" {
		t.Errorf("output = %v, want flattened text", fr.Response["output"])
	}
}

func TestConvertInlineData(t *testing.T) {
	in := []genai.Part{{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte{1}}}}
	parts := ConvertToFunctionResponse("t", "c1", in)
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want synthetic response + blob", len(parts))
	}
	out, _ := parts[0].FunctionResponse.Response["output"].(string)
	if out != "Binary content of type image/png was processed." {
		t.Errorf("output = %q", out)
	}
	if parts[1].InlineData == nil {
		t.Error("blob part dropped")
	}
}

func TestConvertIsDeterministic(t *testing.T) {
	in := []genai.Part{genai.TextPart("x"), {InlineData: &genai.Blob{MIMEType: "text/plain"}}}

	first, err := json.Marshal(ConvertToFunctionResponse("t", "c1", in))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := json.Marshal(ConvertToFunctionResponse("t", "c1", in))
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("conversion not byte-equal across invocations:\n%s\n%s", first, again)
		}
	}
}

func TestErrorAndCancelledResponses(t *testing.T) {
	errParts := ErrorResponse("t", "c1", errors.New("ENOENT"))
	if errParts[0].FunctionResponse.Response["error"] != "ENOENT" {
		t.Errorf("error response = %+v", errParts[0].FunctionResponse.Response)
	}

	cancelParts := CancelledResponse("t", "c1", "User did not allow tool call")
	got, _ := cancelParts[0].FunctionResponse.Response["error"].(string)
	if got != "[Operation Cancelled] Reason: User did not allow tool call" {
		t.Errorf("cancelled response = %q", got)
	}
}
