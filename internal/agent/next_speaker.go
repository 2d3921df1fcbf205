package agent

import (
	"context"

	"github.com/kepvey/drover/internal/chat"
	"github.com/kepvey/drover/pkg/genai"
)

// NextSpeaker identifies who should produce the next message.
type NextSpeaker string

const (
	SpeakerUser  NextSpeaker = "user"
	SpeakerModel NextSpeaker = "model"
)

// nextSpeakerDecision is the structured output of the check.
type nextSpeakerDecision struct {
	Reasoning   string `json:"reasoning"`
	NextSpeaker string `json:"next_speaker"`
}

const nextSpeakerPrompt = `
Based on the conversation so far, determine who should speak next.

If the model's last response appears incomplete, or if the model explicitly indicated it will continue, or if the task is not yet complete, respond with "model".

If the model's last response appears complete and it's the user's turn to provide input, respond with "user".

Consider:
- Did the model finish its thought?
- Did the model complete the requested task?
- Is the model waiting for user input?
- Did the model indicate it will continue?
`

var nextSpeakerSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"reasoning": map[string]any{
			"type":        "string",
			"description": "Brief explanation of the decision",
		},
		"next_speaker": map[string]any{
			"type":        "string",
			"enum":        []any{"user", "model"},
			"description": "Who should speak next",
		},
	},
	"required": []any{"reasoning", "next_speaker"},
}

// checkNextSpeaker decides whether the model intends to keep speaking after
// a stream that produced no tool calls. Deterministic shortcuts run first;
// only ambiguous cases cost an extra model call. Failures default to the
// user so a broken check cannot spin the continuation loop.
func checkNextSpeaker(ctx context.Context, session *chat.Session) NextSpeaker {
	history := session.History(false)

	// Too little context to judge; yield to the user. This also ends the
	// turn when a fresh exchange produced an empty model message.
	if len(history) < 3 {
		return SpeakerUser
	}
	last := history[len(history)-1]

	// A function response is always followed by the model.
	if genai.IsFunctionResponse(last) {
		return SpeakerModel
	}

	// An empty model message means the stream yielded nothing; re-enter the
	// model rather than stalling the turn on the user.
	if last.Role == genai.RoleModel && genai.IsEmpty(last) {
		return SpeakerModel
	}

	recent := history
	if len(recent) > 6 {
		recent = recent[len(recent)-6:]
	}
	contents := append(append([]genai.Content{}, recent...), genai.NewUserText(nextSpeakerPrompt))

	var decision nextSpeakerDecision
	if err := session.GenerateJSON(ctx, contents, nextSpeakerSchema, &decision); err != nil {
		return SpeakerUser
	}
	if decision.NextSpeaker == string(SpeakerModel) {
		return SpeakerModel
	}
	return SpeakerUser
}
