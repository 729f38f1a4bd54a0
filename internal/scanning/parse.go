package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// modelAnswer is the JSON shape the model is asked to produce
type modelAnswer struct {
	Articles []LineItem `json:"articles"`
	Error    string     `json:"error"`
}

// parseResult parses the JSON answer from a model into a Result
func parseResult(text string) (*Result, error) {
	text = strings.TrimSpace(text)

	// Remove opening markdown code blocks
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var answer modelAnswer
	if err := json.Unmarshal([]byte(text), &answer); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	switch answer.Error {
	case "":
	case cannotRead:
		return nil, ErrUnreadable
	default:
		return nil, fmt.Errorf("model returned error %q", answer.Error)
	}

	articles := make([]LineItem, 0, len(answer.Articles))
	for _, item := range answer.Articles {
		item.Name = strings.TrimSpace(item.Name)
		articles = append(articles, item)
	}

	return &Result{Articles: articles}, nil
}
