package scanning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zombor/numify/internal/extract"
)

type transcription struct {
	Blocks []string `json:"blocks"`
}

// parseTranscriptionJSON parses the JSON transcription returned by an LLM
func parseTranscriptionJSON(text string) (*Recognition, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Models like to chat around the JSON, keep the outermost object
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var t transcription
	if err := json.Unmarshal([]byte(text), &t); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	rec := &Recognition{Blocks: make([]extract.Block, 0, len(t.Blocks))}
	lines := make([]string, 0, len(t.Blocks))
	for _, b := range t.Blocks {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		rec.Blocks = append(rec.Blocks, extract.Block{Text: b})
		lines = append(lines, b)
	}
	rec.Text = strings.Join(lines, "\n")

	return rec, nil
}
