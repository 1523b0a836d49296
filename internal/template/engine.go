package template

import (
	"fmt"
	"strings"
	texttemplate "text/template"

	"github.com/Masterminds/sprig/v3"
)

// Engine renders Go templates for template-kind steps. Reference tokens
// are substituted first through Resolve; anything left that looks like a
// Go template is rendered with the sprig function map.
type Engine struct {
	funcs texttemplate.FuncMap
}

// New creates a new template engine.
func New() *Engine {
	return &Engine{
		funcs: sprig.TxtFuncMap(),
	}
}

// Render resolves @refs in tmpl against rctx and, when the result still
// contains Go template syntax, executes it with {input, steps} as data.
// Reference substitution cannot fail; only a malformed template does.
func (e *Engine) Render(tmpl string, rctx *Context) (string, error) {
	res := Resolve(tmpl, rctx)
	resolved, ok := res.(string)
	if !ok {
		// Whole-string token resolved to a non-string value
		resolved = stringify(res)
	}

	if !strings.Contains(resolved, "{{") {
		return resolved, nil
	}

	t, err := texttemplate.New("step").Funcs(e.funcs).Parse(resolved)
	if err != nil {
		return "", fmt.Errorf("malformed template: %w", err)
	}

	data := map[string]interface{}{
		"input": rctx.Input,
		"steps": rctx.Steps,
	}

	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return sb.String(), nil
}
