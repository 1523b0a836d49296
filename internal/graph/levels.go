package graph

import (
	"fmt"
	"sort"
	"strings"

	"loom/internal/api"
	"loom/internal/template"
)

// Dependencies returns the names of the steps a step's input references.
// The scan covers the input template and, for llm actions, the prompt and
// tool-selection fields; only names matching actual steps in the workflow
// count as dependencies.
func Dependencies(step api.Step, stepNames map[string]bool) []string {
	names := template.RefNames(step.Input)

	if step.Action.Type == api.ActionLLM {
		names = append(names, template.RefNames(step.Action.Prompt)...)
		if step.Action.Tools != nil {
			names = append(names, template.RefNames(step.Action.Tools)...)
		}
	}
	if step.Action.Type == api.ActionTemplate {
		names = append(names, template.RefNames(step.Action.Template)...)
	}
	if step.Config.SkipIf != "" {
		names = append(names, template.RefNames(step.Config.SkipIf)...)
	}

	seen := make(map[string]bool)
	var deps []string
	for _, name := range names {
		if name == step.Name || !stepNames[name] || seen[name] {
			continue
		}
		seen[name] = true
		deps = append(deps, name)
	}

	return deps
}

// Levels assigns every step a topological level: 0 for steps with no
// intra-workflow dependencies, otherwise 1 + the maximum level of its
// dependencies. A step revisited while still on the recursion stack is
// treated as level 0; callers that want cycles rejected outright use
// DetectCycle before execution.
func Levels(steps []api.Step) map[string]int {
	stepNames := make(map[string]bool, len(steps))
	byName := make(map[string]api.Step, len(steps))
	for _, s := range steps {
		stepNames[s.Name] = true
		byName[s.Name] = s
	}

	levels := make(map[string]int, len(steps))
	visiting := make(map[string]bool)

	var level func(name string) int
	level = func(name string) int {
		if l, ok := levels[name]; ok {
			return l
		}
		if visiting[name] {
			// Cycle: break by pinning the revisited node to level 0
			return 0
		}
		visiting[name] = true
		defer delete(visiting, name)

		max := -1
		for _, dep := range Dependencies(byName[name], stepNames) {
			if l := level(dep); l > max {
				max = l
			}
		}

		levels[name] = max + 1
		return levels[name]
	}

	for _, s := range steps {
		level(s.Name)
	}

	return levels
}

// GroupByLevel returns the workflow's steps grouped into ordered levels.
// Steps within one level have no dependency on one another and may run
// concurrently; the orchestrator executes levels strictly in order.
// Within a level, definition order is preserved.
func GroupByLevel(steps []api.Step) [][]api.Step {
	levels := Levels(steps)

	maxLevel := 0
	for _, l := range levels {
		if l > maxLevel {
			maxLevel = l
		}
	}

	grouped := make([][]api.Step, maxLevel+1)
	for _, s := range steps {
		l := levels[s.Name]
		grouped[l] = append(grouped[l], s)
	}

	// Drop empty trailing levels that cycle-breaking could leave behind
	var result [][]api.Step
	for _, g := range grouped {
		if len(g) > 0 {
			result = append(result, g)
		}
	}

	return result
}

// DetectCycle reports an error naming the steps involved in a dependency
// cycle, or nil for an acyclic step set. Workflow validation runs this so
// a cyclic definition never reaches execution.
func DetectCycle(steps []api.Step) error {
	stepNames := make(map[string]bool, len(steps))
	byName := make(map[string]api.Step, len(steps))
	for _, s := range steps {
		stepNames[s.Name] = true
		byName[s.Name] = s
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(steps))

	var visit func(name string, stack []string) error
	visit = func(name string, stack []string) error {
		color[name] = gray
		stack = append(stack, name)

		for _, dep := range Dependencies(byName[name], stepNames) {
			switch color[dep] {
			case gray:
				// Trim the stack to the cycle entry point for the message
				start := 0
				for i, n := range stack {
					if n == dep {
						start = i
						break
					}
				}
				cycle := append(stack[start:], dep)
				return fmt.Errorf("dependency cycle: %s", strings.Join(cycle, " -> "))
			case white:
				if err := visit(dep, stack); err != nil {
					return err
				}
			}
		}

		color[name] = black
		return nil
	}

	// Deterministic order for stable error messages
	names := make([]string, 0, len(steps))
	for _, s := range steps {
		names = append(names, s.Name)
	}
	sort.Strings(names)

	for _, name := range names {
		if color[name] == white {
			if err := visit(name, nil); err != nil {
				return err
			}
		}
	}

	return nil
}
