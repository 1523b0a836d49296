package agent

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Final is the structured final answer of one agent loop run. Response
// is always non-empty; Fields carries any extra top-level JSON fields
// verbatim for consuming steps.
type Final struct {
	Response string
	Fields   map[string]interface{}
}

// Output flattens the final answer into the step output object. The
// "response" key is always present.
func (f *Final) Output() map[string]interface{} {
	out := make(map[string]interface{}, len(f.Fields)+1)
	for k, v := range f.Fields {
		out[k] = v
	}
	out["response"] = f.Response
	return out
}

var (
	fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	responsePattern   = regexp.MustCompile(`"response"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// emptyAnswerFallback stands in when the model's terminating turn
// carried no usable text at all.
const emptyAnswerFallback = "Agent produced no answer."

// ParseFinal interprets an LLM's final text as an optional JSON object.
//
// Extraction order: a fenced ```json code block, then the raw text as
// JSON, then a best-effort salvage of a "response" field from malformed
// JSON. Plain prose becomes the response as-is. The returned Response is
// never empty: blank or whitespace-only text becomes a fixed fallback
// message.
func ParseFinal(text string) *Final {
	trimmed := strings.TrimSpace(text)

	if m := fencedJSONPattern.FindStringSubmatch(trimmed); m != nil {
		if f := parseObject(m[1]); f != nil {
			return fallbackResponse(f, trimmed)
		}
	}

	if f := parseObject(trimmed); f != nil {
		return fallbackResponse(f, trimmed)
	}

	// salvage a response field from JSON too malformed to parse
	if looksLikeJSON(trimmed) {
		if m := responsePattern.FindStringSubmatch(trimmed); m != nil {
			var unescaped string
			if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &unescaped); err == nil && unescaped != "" {
				return &Final{Response: unescaped}
			}
		}
	}

	if trimmed == "" {
		return &Final{Response: emptyAnswerFallback}
	}
	return &Final{Response: trimmed}
}

// parseObject parses s as a JSON object, returning nil when s is not one.
func parseObject(s string) *Final {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil
	}

	f := &Final{Fields: make(map[string]interface{})}
	for k, v := range obj {
		if k == "response" {
			if s, ok := v.(string); ok {
				f.Response = s
				continue
			}
		}
		f.Fields[k] = v
	}
	return f
}

// fallbackResponse guarantees a non-empty response, falling back to the
// raw text when the parsed object carried none.
func fallbackResponse(f *Final, raw string) *Final {
	if f.Response == "" {
		f.Response = raw
	}
	return f
}

func looksLikeJSON(s string) bool {
	return strings.HasPrefix(s, "{") || strings.Contains(s, `"response"`)
}
