package chat

import "github.com/kepvey/drover/pkg/genai"

// curate returns the subsequence of history that is safe to send to the
// model. A user message followed by consecutive model messages forms a group;
// the group survives only if every model message in it is valid. Dropping an
// invalid group removes the user message that caused it, which keeps the
// curated view strictly alternating with no empty messages.
func curate(history []genai.Content) []genai.Content {
	curated := make([]genai.Content, 0, len(history))

	i := 0
	for i < len(history) {
		if history[i].Role == genai.RoleUser {
			curated = append(curated, history[i])
			i++
			continue
		}

		group := make([]genai.Content, 0, 1)
		valid := true
		for i < len(history) && history[i].Role == genai.RoleModel {
			group = append(group, history[i])
			if valid && !genai.IsValidModelOutput(history[i]) {
				valid = false
			}
			i++
		}

		if valid {
			curated = append(curated, group...)
		} else if len(curated) > 0 && curated[len(curated)-1].Role == genai.RoleUser {
			curated = curated[:len(curated)-1]
		}
	}
	return curated
}
