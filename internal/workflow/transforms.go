package workflow

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Transform is a pure function applied by a code step to its resolved
// input. Transforms run in-process with nothing but the input in scope.
type Transform func(input map[string]interface{}) (interface{}, error)

// transforms is the fixed registry of named code-step transforms.
// Arbitrary scripting is deliberately not supported; a code step names
// one of these.
var transforms = map[string]Transform{
	"pick":           transformPick,
	"merge":          transformMerge,
	"flatten":        transformFlatten,
	"json_parse":     transformJSONParse,
	"json_stringify": transformJSONStringify,
	"count":          transformCount,
	"first":          transformFirst,
	"join":           transformJoin,
}

// LookupTransform resolves a transform by name.
func LookupTransform(name string) (Transform, error) {
	t, ok := transforms[name]
	if !ok {
		return nil, fmt.Errorf("unknown transform %q (known transforms: %s)",
			name, strings.Join(TransformNames(), ", "))
	}
	return t, nil
}

// TransformNames returns every registered transform name, sorted.
func TransformNames() []string {
	names := make([]string, 0, len(transforms))
	for name := range transforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// transformPick projects the named fields out of an object.
// Input: {"from": object, "fields": [names...]}
func transformPick(input map[string]interface{}) (interface{}, error) {
	from, ok := input["from"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("pick: 'from' must be an object, got %T", input["from"])
	}
	fields, err := stringList(input["fields"])
	if err != nil {
		return nil, fmt.Errorf("pick: %w", err)
	}

	out := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if v, present := from[f]; present {
			out[f] = v
		}
	}
	return out, nil
}

// transformMerge shallow-merges the objects in "objects", later entries
// winning.
func transformMerge(input map[string]interface{}) (interface{}, error) {
	objects, ok := input["objects"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("merge: 'objects' must be an array, got %T", input["objects"])
	}

	out := make(map[string]interface{})
	for i, item := range objects {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("merge: objects[%d] is %T, expected object", i, item)
		}
		for k, v := range obj {
			out[k] = v
		}
	}
	return out, nil
}

// transformFlatten flattens one level of nested arrays in "list".
func transformFlatten(input map[string]interface{}) (interface{}, error) {
	list, ok := input["list"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("flatten: 'list' must be an array, got %T", input["list"])
	}

	out := make([]interface{}, 0, len(list))
	for _, item := range list {
		if nested, ok := item.([]interface{}); ok {
			out = append(out, nested...)
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// transformJSONParse parses the string in "text" as JSON.
func transformJSONParse(input map[string]interface{}) (interface{}, error) {
	text, ok := input["text"].(string)
	if !ok {
		return nil, fmt.Errorf("json_parse: 'text' must be a string, got %T", input["text"])
	}

	var out interface{}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("json_parse: %w", err)
	}
	return out, nil
}

// transformJSONStringify serializes "value" as a JSON string.
func transformJSONStringify(input map[string]interface{}) (interface{}, error) {
	data, err := json.Marshal(input["value"])
	if err != nil {
		return nil, fmt.Errorf("json_stringify: %w", err)
	}
	return string(data), nil
}

// transformCount returns the length of the array in "list".
func transformCount(input map[string]interface{}) (interface{}, error) {
	list, ok := input["list"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("count: 'list' must be an array, got %T", input["list"])
	}
	return len(list), nil
}

// transformFirst returns the first element of "list", or nil when empty.
func transformFirst(input map[string]interface{}) (interface{}, error) {
	list, ok := input["list"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("first: 'list' must be an array, got %T", input["list"])
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// transformJoin joins the strings in "list" with "separator"
// (default "\n").
func transformJoin(input map[string]interface{}) (interface{}, error) {
	list, err := stringList(input["list"])
	if err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}

	separator := "\n"
	if s, ok := input["separator"].(string); ok {
		separator = s
	}
	return strings.Join(list, separator), nil
}

func stringList(v interface{}) ([]string, error) {
	switch list := v.(type) {
	case []string:
		return list, nil
	case []interface{}:
		out := make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, expected string", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected an array of strings, got %T", v)
	}
}
