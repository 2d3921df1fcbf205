package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/kepvey/drover/internal/chat"
	"github.com/kepvey/drover/pkg/genai"
)

// speakerGen wraps turnGen to observe and script the structured
// next-speaker generation.
type speakerGen struct {
	turnGen
	jsonCalls int
	jsonErr   error
	lastJSON  *chat.JSONRequest
}

func (g *speakerGen) GenerateJSON(ctx context.Context, req *chat.JSONRequest, out any) error {
	g.jsonCalls++
	g.lastJSON = req
	if g.jsonErr != nil {
		return g.jsonErr
	}
	return g.turnGen.GenerateJSON(ctx, req, out)
}

func speakerSession(gen chat.ContentGenerator, history []genai.Content) *chat.Session {
	session := chat.NewSession(gen, chat.Options{Model: "gemini-2.0-flash", Logger: quietLogger()})
	session.SetHistory(history)
	return session
}

func TestNextSpeakerShortHistoryYieldsUser(t *testing.T) {
	gen := &speakerGen{turnGen: turnGen{speaker: "model"}}

	for _, history := range [][]genai.Content{
		nil,
		{genai.NewUserText("hi"), genai.NewModelText("hello")},
	} {
		session := speakerSession(gen, history)
		if got := checkNextSpeaker(context.Background(), session); got != SpeakerUser {
			t.Errorf("speaker with %d history entries = %q, want user", len(history), got)
		}
	}
	if gen.jsonCalls != 0 {
		t.Errorf("short history consulted the model %d times", gen.jsonCalls)
	}
}

func TestNextSpeakerAfterFunctionResponse(t *testing.T) {
	gen := &speakerGen{turnGen: turnGen{speaker: "user"}}
	session := speakerSession(gen, []genai.Content{
		genai.NewUserText("read main.go"),
		{Role: genai.RoleModel, Parts: []genai.Part{
			{FunctionCall: &genai.FunctionCall{ID: "c1", Name: "read_file"}},
		}},
		{Role: genai.RoleUser, Parts: []genai.Part{
			{FunctionResponse: &genai.FunctionResponse{ID: "c1", Name: "read_file"}},
		}},
	})

	if got := checkNextSpeaker(context.Background(), session); got != SpeakerModel {
		t.Errorf("speaker after function response = %q, want model", got)
	}
	if gen.jsonCalls != 0 {
		t.Error("deterministic case consulted the model")
	}
}

func TestNextSpeakerAfterEmptyModelTurn(t *testing.T) {
	gen := &speakerGen{turnGen: turnGen{speaker: "user"}}
	session := speakerSession(gen, []genai.Content{
		genai.NewUserText("hi"),
		genai.NewModelText("hello"),
		genai.NewUserText("keep going"),
		{Role: genai.RoleModel},
	})

	if got := checkNextSpeaker(context.Background(), session); got != SpeakerModel {
		t.Errorf("speaker after empty model turn = %q, want model", got)
	}
	if gen.jsonCalls != 0 {
		t.Error("deterministic case consulted the model")
	}
}

func TestNextSpeakerConsultsModel(t *testing.T) {
	history := []genai.Content{
		genai.NewUserText("start"),
		genai.NewModelText("step one done, moving on"),
		genai.NewUserText("ok"),
		genai.NewModelText("step two done, moving on"),
	}

	for _, tc := range []struct {
		scripted string
		want     NextSpeaker
	}{
		{"model", SpeakerModel},
		{"user", SpeakerUser},
	} {
		gen := &speakerGen{turnGen: turnGen{speaker: tc.scripted}}
		got := checkNextSpeaker(context.Background(), speakerSession(gen, history))
		if got != tc.want {
			t.Errorf("scripted %q: speaker = %q, want %q", tc.scripted, got, tc.want)
		}
		if gen.jsonCalls != 1 {
			t.Errorf("scripted %q: %d generations, want 1", tc.scripted, gen.jsonCalls)
		}
	}
}

func TestNextSpeakerWindowsRecentHistory(t *testing.T) {
	var history []genai.Content
	for range 5 {
		history = append(history,
			genai.NewUserText("go on"),
			genai.NewModelText("more to do"),
		)
	}

	gen := &speakerGen{turnGen: turnGen{speaker: "user"}}
	checkNextSpeaker(context.Background(), speakerSession(gen, history))

	if gen.lastJSON == nil {
		t.Fatal("model never consulted")
	}
	// Six most recent messages plus the appended instruction.
	if got := len(gen.lastJSON.Contents); got != 7 {
		t.Errorf("check saw %d contents, want 7", got)
	}
}

func TestNextSpeakerCheckFailureYieldsUser(t *testing.T) {
	gen := &speakerGen{
		turnGen: turnGen{speaker: "model"},
		jsonErr: errors.New("schema generation unavailable"),
	}
	session := speakerSession(gen, []genai.Content{
		genai.NewUserText("start"),
		genai.NewModelText("working"),
		genai.NewUserText("ok"),
		genai.NewModelText("still working"),
	})

	if got := checkNextSpeaker(context.Background(), session); got != SpeakerUser {
		t.Errorf("speaker after a failed check = %q, want user", got)
	}
}
