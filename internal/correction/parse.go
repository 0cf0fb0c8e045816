package correction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Update is one corrected utterance as returned by the model
type Update struct {
	ID      int64  `json:"id"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ParseUpdates extracts the JSON array of corrections from a model response.
// Models do not always honor the "JSON only" instruction, so three shapes are
// accepted in order: a bare array, an array inside a fenced code block, and an
// array embedded anywhere in surrounding prose.
func ParseUpdates(response string) ([]Update, error) {
	response = strings.TrimSpace(response)

	if updates, err := tryParse(response); err == nil {
		return updates, nil
	}

	if m := fencedBlockRe.FindStringSubmatch(response); m != nil {
		if updates, err := tryParse(strings.TrimSpace(m[1])); err == nil {
			return updates, nil
		}
	}

	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start >= 0 && end > start {
		if updates, err := tryParse(response[start : end+1]); err == nil {
			return updates, nil
		}
	}

	return nil, fmt.Errorf("no JSON array found in response")
}

func tryParse(s string) ([]Update, error) {
	var updates []Update
	if err := json.Unmarshal([]byte(s), &updates); err != nil {
		return nil, err
	}
	return updates, nil
}
