// Package salvage recovers structured reassignment data from free-form model
// output. Model replies may wrap JSON in code fences, surround it with prose,
// or arrive truncated; this package extracts what it can instead of failing
// the whole batch.
package salvage

import (
	"encoding/json"
	"strings"

	"github.com/PanHywel/TidyMark-sub000/internal/domain"
)

// Parse extracts a reassignment set from raw model output. The input may be
// plain text or a full chat-completion response body. It returns nil only
// when neither a full parse nor a salvage scan recovers anything; callers
// treat nil as "this batch contributed nothing".
func Parse(raw string) *domain.ReassignmentSet {
	text := extractContent(raw)
	text = stripFences(text)

	if candidate, ok := firstBalancedObject(text); ok {
		if set, ok := parseSet(candidate); ok {
			return set
		}
	}

	items := salvageScan(text)
	if len(items) == 0 {
		return nil
	}
	return &domain.ReassignmentSet{ReassignedItems: items}
}

// parseSet accepts a candidate only when it is a real reassignment document,
// not just any balanced object that happens to decode.
func parseSet(candidate string) (*domain.ReassignmentSet, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &probe); err != nil {
		return nil, false
	}
	if _, ok := probe["reassigned_items"]; !ok {
		if _, ok := probe["low_confidence_items"]; !ok {
			return nil, false
		}
	}

	var set domain.ReassignmentSet
	if err := json.Unmarshal([]byte(candidate), &set); err != nil {
		return nil, false
	}
	return &set, true
}

// chatResponse mirrors the OpenAI-style completion shape so a whole response
// body can be passed through unchanged.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func extractContent(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed
	}
	var resp chatResponse
	if err := json.Unmarshal([]byte(trimmed), &resp); err == nil && len(resp.Choices) > 0 && resp.Choices[0].Message.Content != "" {
		return strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	return trimmed
}

// stripFences removes a leading ```json / ``` fence and the matching trailing
// fence when present.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// firstBalancedObject trims the text to the substring from the first '{' to
// its balancing '}'. Brace depth tracking is string-aware, so braces inside
// quoted values do not affect depth.
func firstBalancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	end, ok := matchBrace(text, start)
	if !ok {
		return "", false
	}
	return text[start : end+1], true
}

// matchBrace returns the index of the '}' closing the '{' at start.
func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// salvageScan walks the text left to right and tries to parse every balanced
// sub-object. Objects are kept only when they carry an id and a usable
// target-category field; field-name variants are normalized into the
// canonical item shape.
func salvageScan(text string) []domain.ReassignmentItem {
	var items []domain.ReassignmentItem

	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end, ok := matchBrace(text, i)
		if !ok {
			continue
		}
		if item, ok := parseItem(text[i : end+1]); ok {
			items = append(items, item)
			i = end
		}
	}

	return items
}

func parseItem(candidate string) (domain.ReassignmentItem, bool) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return domain.ReassignmentItem{}, false
	}

	id, ok := stringField(fields, "id")
	if !ok || id == "" {
		return domain.ReassignmentItem{}, false
	}
	toKey, ok := firstStringField(fields, "to_key", "toKey", "to")
	if !ok || toKey == "" {
		return domain.ReassignmentItem{}, false
	}

	item := domain.ReassignmentItem{ID: id, ToKey: toKey}
	if from, ok := firstStringField(fields, "from_key", "fromKey", "from"); ok {
		item.FromKey = from
	}
	if reason, ok := stringField(fields, "reason"); ok {
		item.Reason = reason
	}
	if conf, ok := fields["confidence"].(float64); ok {
		item.Confidence = &conf
	}
	return item, true
}

func stringField(fields map[string]any, key string) (string, bool) {
	v, ok := fields[key].(string)
	return v, ok
}

func firstStringField(fields map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := stringField(fields, key); ok {
			return v, true
		}
	}
	return "", false
}
