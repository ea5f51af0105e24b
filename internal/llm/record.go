package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/apresai/callcoach/internal/apperr"
)

var (
	scratchpadRe = regexp.MustCompile(`(?s)<scratchpad>.*?</scratchpad>`)
	fenceRe      = regexp.MustCompile("(?s)```(?:json)?\\s*\n?(.*?)\n?```")
)

// ExtractRecord isolates the single JSON object embedded in a model reply.
// It never invents content: a reply with no object is an error.
func ExtractRecord(source, text string) (string, error) {
	cleaned := scratchpadRe.ReplaceAllString(text, "")
	if m := fenceRe.FindStringSubmatch(cleaned); len(m) > 1 {
		cleaned = m[1]
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return "", apperr.Malformed(source, "no JSON object in response", text)
	}
	return cleaned[start : end+1], nil
}

// DecodeRecord extracts the JSON object from text and unmarshals it into v.
// Any extraction or type error is reported as *apperr.MalformedOutputError.
func DecodeRecord(source, text string, v any) error {
	raw, err := ExtractRecord(source, text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return apperr.Malformed(source, fmt.Sprintf("invalid JSON: %v", err), raw)
	}
	return nil
}

func appendSchemaInstruction(system string, s *Schema) string {
	def, err := json.Marshal(s.Definition)
	if err != nil {
		return system
	}
	instr := fmt.Sprintf("Return ONLY one JSON object named %q matching this JSON schema (no markdown fences, no extra text):\n%s", s.Name, def)
	if system == "" {
		return instr
	}
	return system + "\n\n" + instr
}
