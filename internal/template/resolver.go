package template

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/jmespath/go-jmespath"
)

// refPattern matches @name and @name.dotted.path reference tokens.
// The leading segment is an identifier; path segments allow digits for
// array-ish keys produced by transforms.
var refPattern = regexp.MustCompile(`@([a-zA-Z_][a-zA-Z0-9_-]*(?:\.[a-zA-Z0-9_\[\]*-]+)*)`)

// Context is the resolution scope for reference tokens: workflow input
// and the committed outputs of prior steps. Step outputs shadow input
// keys of the same name.
type Context struct {
	Input map[string]interface{}
	Steps map[string]interface{}
}

// Resolve replaces every @ref token in value with the corresponding
// context value. A token that is the entire string returns the raw typed
// value; a token embedded in a larger string is stringified (strings
// verbatim, everything else JSON-serialized). Unresolvable tokens are
// left as literal text so a broken reference surfaces visibly instead of
// crashing the run. Resolve never returns an error.
func Resolve(value interface{}, rctx *Context) interface{} {
	switch v := value.(type) {
	case string:
		return resolveString(v, rctx)
	case map[string]interface{}:
		resolved := make(map[string]interface{}, len(v))
		for k, val := range v {
			resolved[k] = Resolve(val, rctx)
		}
		return resolved
	case []interface{}:
		resolved := make([]interface{}, len(v))
		for i, val := range v {
			resolved[i] = Resolve(val, rctx)
		}
		return resolved
	default:
		return value
	}
}

// resolveString handles a single string leaf.
func resolveString(s string, rctx *Context) interface{} {
	// Whole-string token: return the raw typed value
	if m := refPattern.FindStringSubmatch(s); m != nil && m[0] == s {
		if v, ok := lookup(m[1], rctx); ok {
			return v
		}
		return s
	}

	// Embedded tokens: substitute stringified values, leave misses alone
	return refPattern.ReplaceAllStringFunc(s, func(token string) string {
		path := token[1:] // strip the @
		v, ok := lookup(path, rctx)
		if !ok {
			return token
		}
		return stringify(v)
	})
}

// lookup resolves a dotted reference path against the context. The first
// segment selects a step output (preferred) or an input key; the
// remainder navigates into the value as a JMESPath expression.
func lookup(path string, rctx *Context) (interface{}, bool) {
	if rctx == nil {
		return nil, false
	}

	name, rest, _ := strings.Cut(path, ".")

	var root interface{}
	found := false
	if rctx.Steps != nil {
		if v, ok := rctx.Steps[name]; ok {
			root, found = v, true
		}
	}
	if !found && rctx.Input != nil {
		if v, ok := rctx.Input[name]; ok {
			root, found = v, true
		}
	}
	if !found {
		return nil, false
	}

	if rest == "" {
		return root, true
	}

	result, err := jmespath.Search(rest, root)
	if err != nil || result == nil {
		return nil, false
	}
	return result, true
}

// stringify renders a resolved value for embedding inside a larger string.
func stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// ExtractRefs returns every full reference path mentioned anywhere in
// value, in first-seen order without duplicates.
func ExtractRefs(value interface{}) []string {
	seen := make(map[string]bool)
	var refs []string

	var walk func(interface{})
	walk = func(v interface{}) {
		switch val := v.(type) {
		case string:
			for _, m := range refPattern.FindAllStringSubmatch(val, -1) {
				if !seen[m[1]] {
					seen[m[1]] = true
					refs = append(refs, m[1])
				}
			}
		case map[string]interface{}:
			for _, item := range val {
				walk(item)
			}
		case []interface{}:
			for _, item := range val {
				walk(item)
			}
		}
	}
	walk(value)

	return refs
}

// RefNames returns the deduplicated first segments of every reference in
// value. These are the names a dependency set is computed from.
func RefNames(value interface{}) []string {
	seen := make(map[string]bool)
	var names []string
	for _, ref := range ExtractRefs(value) {
		name, _, _ := strings.Cut(ref, ".")
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
