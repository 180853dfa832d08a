package enrich

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/starford/study/internal/models"
)

var requiredFields = []string{"tldr", "summary", "concepts"}

// ParseResponse decodes a raw model reply into Knowledge. A reply that is
// not plain JSON may be wrapped in a ``` or ```json fence or surrounded by
// prose. Any shape mismatch yields *ValidationError.
func ParseResponse(raw string) (models.Knowledge, error) {
	doc, err := decodeObject(strings.TrimSpace(raw))
	if err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return models.Knowledge{}, &ValidationError{Reason: "response must be a JSON object"}
		}
		return models.Knowledge{}, &ValidationError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if doc == nil {
		return models.Knowledge{}, &ValidationError{Reason: "response must be a JSON object"}
	}

	for _, f := range requiredFields {
		if _, ok := doc[f]; !ok {
			return models.Knowledge{}, &ValidationError{Field: f, Reason: "missing required field"}
		}
	}
	var extra []string
	for k := range doc {
		if k != "tldr" && k != "summary" && k != "concepts" {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return models.Knowledge{}, &ValidationError{Field: extra[0], Reason: "unexpected field"}
	}

	var k models.Knowledge
	if err := decodeString(doc["tldr"], &k.TLDR); err != nil {
		return models.Knowledge{}, &ValidationError{Field: "tldr", Reason: "must be a string"}
	}
	if err := decodeString(doc["summary"], &k.Summary); err != nil {
		return models.Knowledge{}, &ValidationError{Field: "summary", Reason: "must be a string"}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(doc["concepts"], &items); err != nil || items == nil {
		return models.Knowledge{}, &ValidationError{Field: "concepts", Reason: "must be a list"}
	}
	k.Concepts = make([]models.Concept, 0, len(items))
	for i, item := range items {
		c, err := decodeConcept(i, item)
		if err != nil {
			return models.Knowledge{}, err
		}
		k.Concepts = append(k.Concepts, c)
	}
	return k, nil
}

func decodeConcept(i int, item json.RawMessage) (models.Concept, error) {
	field := fmt.Sprintf("concepts[%d]", i)
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
		return models.Concept{}, &ValidationError{Field: field, Reason: "must be an object"}
	}
	name, hasName := obj["name"]
	def, hasDef := obj["definition"]
	if !hasName || !hasDef {
		return models.Concept{}, &ValidationError{Field: field, Reason: "missing 'name' or 'definition'"}
	}
	var c models.Concept
	if err := decodeString(name, &c.Name); err != nil {
		return models.Concept{}, &ValidationError{Field: field + ".name", Reason: "must be a string"}
	}
	if err := decodeString(def, &c.Definition); err != nil {
		return models.Concept{}, &ValidationError{Field: field + ".definition", Reason: "must be a string"}
	}
	return c, nil
}

// decodeString rejects null as well as non-string values.
func decodeString(raw json.RawMessage, dst *string) error {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return errors.New("null")
	}
	return json.Unmarshal(raw, dst)
}

// decodeObject decodes text as it is and only falls back to unwrapping a
// fence or surrounding prose when that fails. A summary may itself contain
// fenced code, so fences inside the JSON are never touched.
func decodeObject(text string) (map[string]json.RawMessage, error) {
	var doc map[string]json.RawMessage
	err := json.Unmarshal([]byte(text), &doc)
	if err == nil {
		return doc, nil
	}
	inner := extractObject(stripCodeFence(text))
	if inner == text {
		return nil, err
	}
	doc = nil
	if innerErr := json.Unmarshal([]byte(inner), &doc); innerErr != nil {
		return nil, innerErr
	}
	return doc, nil
}

// stripCodeFence removes a fence that wraps the whole reply. The closing
// fence is the last one in the text.
func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	body := strings.TrimLeft(text[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// extractObject trims prose around the outermost JSON object.
func extractObject(text string) string {
	if strings.HasPrefix(text, "{") {
		return text
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}
