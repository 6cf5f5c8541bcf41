package extract

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// leadSchema describes one array element of a provider response. Unknown keys
// are allowed; known keys must carry a string, a number, a list of strings or
// null.
func leadSchema() map[string]any {
	str := map[string]any{"type": []string{"string", "null"}}
	scalar := map[string]any{"type": []string{"string", "number", "null"}}
	list := map[string]any{
		"type":  []string{"string", "number", "array", "null"},
		"items": map[string]any{"type": []string{"string", "number"}},
	}
	return map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "object",
		"properties": map[string]any{
			"name":         str,
			"phone_number": scalar,
			"destination":  list,
			"status":       str,
			"price":        list,
			"services":     list,
		},
	}
}

var compiledLeadSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := json.Marshal(leadSchema())
	if err != nil {
		return nil, eris.Wrap(err, "extract: marshal lead schema")
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("lead.json", bytes.NewReader(b)); err != nil {
		return nil, eris.Wrap(err, "extract: add lead schema")
	}
	schema, err := compiler.Compile("lead.json")
	if err != nil {
		return nil, eris.Wrap(err, "extract: compile lead schema")
	}
	return schema, nil
})

// cleanJSON strips Markdown code fences and any prose around the outermost
// JSON array or object in text.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	open, closing := "[", "]"
	arr := strings.Index(text, "[")
	obj := strings.Index(text, "{")
	if obj >= 0 && (arr < 0 || obj < arr) {
		open, closing = "{", "}"
	}

	start := strings.Index(text, open)
	end := strings.LastIndex(text, closing)
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// decodeEntries parses a provider completion into raw array elements. A bare
// array is expected; an object with a "leads" array is accepted as well.
func decodeEntries(raw string) ([]any, error) {
	var v any
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &v); err != nil {
		return nil, eris.Wrap(err, "extract: parse response json")
	}

	switch t := v.(type) {
	case []any:
		return t, nil
	case map[string]any:
		if leads, ok := t["leads"].([]any); ok {
			return leads, nil
		}
	}
	return nil, eris.New("extract: response is not a JSON array")
}

// validEntry reports whether entry matches the lead schema.
func validEntry(entry any) error {
	schema, err := compiledLeadSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(entry); err != nil {
		return eris.Wrap(err, "extract: entry does not match lead schema")
	}
	return nil
}

// field renders a decoded JSON value as a trimmed string. Lists are joined
// with sep.
func field(v any, sep string) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := field(item, sep); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, sep)
	default:
		return ""
	}
}
