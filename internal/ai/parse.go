package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrBadUpstream marks a completion that could not be used: the provider call
// failed, returned no content, or the content failed structured parsing.
var ErrBadUpstream = errors.New("bad upstream response")

// StructuredOutput is the parsed shape of a model completion.
type StructuredOutput struct {
	Reply   string   `json:"reply"`
	Actions []Action `json:"actions"`
}

// ParseStructuredOutput parses a raw completion into a reply plus a validated
// action list. Models often wrap the JSON payload in prose or a code fence,
// so a failed strict parse retries on the substring between the first "{"
// and the last "}" of the trimmed text. Any invalid action rejects the whole
// payload.
func ParseStructuredOutput(content string) (StructuredOutput, error) {
	var envelope struct {
		Reply   *string           `json:"reply"`
		Actions []json.RawMessage `json:"actions"`
	}

	if err := json.Unmarshal([]byte(content), &envelope); err != nil {
		recovered, ok := extractObject(content)
		if !ok {
			return StructuredOutput{}, fmt.Errorf("%w: completion is not valid JSON", ErrBadUpstream)
		}
		if err := json.Unmarshal([]byte(recovered), &envelope); err != nil {
			return StructuredOutput{}, fmt.Errorf("%w: completion is not valid JSON", ErrBadUpstream)
		}
	}

	if envelope.Reply == nil {
		return StructuredOutput{}, fmt.Errorf("%w: completion is missing reply", ErrBadUpstream)
	}

	output := StructuredOutput{
		Reply:   *envelope.Reply,
		Actions: make([]Action, 0, len(envelope.Actions)),
	}
	for _, raw := range envelope.Actions {
		action, err := decodeAction(raw)
		if err != nil {
			return StructuredOutput{}, fmt.Errorf("%w: %v", ErrBadUpstream, err)
		}
		output.Actions = append(output.Actions, action)
	}
	return output, nil
}

// extractObject returns the substring spanning the first "{" through the
// last "}" of the trimmed text.
func extractObject(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return trimmed[start : end+1], true
}
