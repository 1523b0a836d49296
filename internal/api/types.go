package api

import (
	"time"
)

// ActionType discriminates the tagged Action union on a workflow step.
type ActionType string

const (
	// ActionTool invokes a single named tool on a mesh provider.
	ActionTool ActionType = "tool"

	// ActionCode applies a named pure transform to the resolved input.
	ActionCode ActionType = "code"

	// ActionLLM runs a bounded multi-turn LLM agent loop with tool calling.
	ActionLLM ActionType = "llm"

	// ActionTemplate renders a string template through reference substitution.
	ActionTemplate ActionType = "template"
)

// ModelTier selects the LLM model class for an llm step.
type ModelTier string

const (
	ModelFast  ModelTier = "fast"
	ModelSmart ModelTier = "smart"
)

// Workflow represents a single workflow definition.
//
// Workflows define multi-step processes executed by the orchestrator,
// composing tool calls, transforms, templates and LLM agent loops into
// a dependency graph of named steps. A definition is immutable for the
// duration of one run; it may be edited out-of-band between runs.
type Workflow struct {
	// ID is the unique identifier for this workflow
	ID string `yaml:"id" json:"id"`

	// Title is the human-readable name of the workflow
	Title string `yaml:"title" json:"title"`

	// Description provides human-readable documentation for the workflow's purpose
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Args defines validation rules and defaults for workflow input.
	// Defaults are applied before execution; required args are enforced.
	Args map[string]ArgDefinition `yaml:"args,omitempty" json:"args,omitempty"`

	// DefaultInput is merged under the caller-supplied input for a run
	DefaultInput map[string]interface{} `yaml:"defaultInput,omitempty" json:"defaultInput,omitempty"`

	// Steps defines the named nodes of the workflow's dependency graph
	Steps []Step `yaml:"steps" json:"steps"`

	// CreatedAt indicates when this workflow was created
	CreatedAt time.Time `yaml:"createdAt,omitempty" json:"createdAt,omitempty"`

	// LastModified indicates when this workflow was last updated
	LastModified time.Time `yaml:"lastModified,omitempty" json:"lastModified,omitempty"`
}

// ArgDefinition defines one workflow input argument.
type ArgDefinition struct {
	// Type specifies the expected data type (string, number, boolean, object, array)
	Type string `yaml:"type" json:"type"`

	// Required indicates whether this argument must be provided
	Required bool `yaml:"required" json:"required"`

	// Description provides human-readable documentation for the argument
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Default is applied when the argument is not provided. Only
	// meaningful when Required is false.
	Default interface{} `yaml:"default,omitempty" json:"default,omitempty"`
}

// Step defines a single node in a workflow's dependency graph.
//
// A step's input template may reference workflow input and prior step
// outputs through @name / @name.path tokens; those references define the
// step's dependency set and therefore its execution level.
type Step struct {
	// Name is a unique identifier for this step within the workflow
	Name string `yaml:"name" json:"name"`

	// Description provides human-readable documentation for this step's purpose
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Action declares how this step executes (tool, code, llm, template)
	Action Action `yaml:"action" json:"action"`

	// Input is an arbitrary nested structure whose string leaves may
	// contain @ref tokens, resolved against workflow input and prior
	// step outputs before dispatch.
	Input map[string]interface{} `yaml:"input,omitempty" json:"input,omitempty"`

	// OutputSchema optionally declares a contract the step output must
	// satisfy. A mismatch is a hard step error.
	OutputSchema *OutputSchema `yaml:"outputSchema,omitempty" json:"outputSchema,omitempty"`

	// Config carries execution modifiers for this step
	Config StepConfig `yaml:"config,omitempty" json:"config,omitempty"`
}

// Action is the tagged union of step execution strategies. Type selects
// the variant; the other fields are meaningful only for their variant.
type Action struct {
	// Type selects the action variant
	Type ActionType `yaml:"type" json:"type"`

	// Tool fields

	// Tool is the target tool name for ActionTool steps
	Tool string `yaml:"tool,omitempty" json:"tool,omitempty"`

	// ConnectionID pins the tool call to a specific provider. When empty
	// all known providers are searched for one exposing the tool.
	ConnectionID string `yaml:"connectionId,omitempty" json:"connectionId,omitempty"`

	// Code fields

	// Transform names the registered pure transform for ActionCode steps
	Transform string `yaml:"transform,omitempty" json:"transform,omitempty"`

	// LLM fields

	// Prompt is the prompt template for ActionLLM steps; may contain @refs
	Prompt string `yaml:"prompt,omitempty" json:"prompt,omitempty"`

	// Model selects the model tier (fast, smart); defaults to fast
	Model ModelTier `yaml:"model,omitempty" json:"model,omitempty"`

	// SystemPrompt optionally prepends a system message
	SystemPrompt string `yaml:"systemPrompt,omitempty" json:"systemPrompt,omitempty"`

	// Tools is the tool-selection policy: "all", "discover", "none", an
	// explicit name list, or an @ref resolving to one of those.
	Tools interface{} `yaml:"tools,omitempty" json:"tools,omitempty"`

	// MaxIterations caps the agent loop; 0 uses the engine default
	MaxIterations int `yaml:"maxIterations,omitempty" json:"maxIterations,omitempty"`

	// Template fields

	// Template is the string template for ActionTemplate steps
	Template string `yaml:"template,omitempty" json:"template,omitempty"`
}

// StepConfig carries per-step execution modifiers.
type StepConfig struct {
	// SkipIf is a skip expression evaluated before the step runs:
	// "empty:@ref" skips when the referenced value is missing, nil or an
	// empty array; "equals:@a,@b" skips when both operands are deep-equal.
	SkipIf string `yaml:"skipIf,omitempty" json:"skipIf,omitempty"`

	// ContinueOnError records a nil output and proceeds instead of
	// failing the task when this step errors
	ContinueOnError bool `yaml:"continueOnError,omitempty" json:"continueOnError,omitempty"`

	// Retries is the number of additional attempts for failed external calls
	Retries int `yaml:"retries,omitempty" json:"retries,omitempty"`

	// BackoffMs is the delay between retry attempts
	BackoffMs int `yaml:"backoffMs,omitempty" json:"backoffMs,omitempty"`

	// TimeoutMs bounds a single external call; passed to callbacks as a
	// context deadline, not enforced by the scheduler itself
	TimeoutMs int `yaml:"timeoutMs,omitempty" json:"timeoutMs,omitempty"`
}

// OutputSchema declares the contract a step output must satisfy.
type OutputSchema struct {
	// Required lists field names that must be present in the output object
	Required []string `yaml:"required,omitempty" json:"required,omitempty"`

	// Fields maps field names to primitive type names
	// (string, number, boolean, object, array)
	Fields map[string]string `yaml:"fields,omitempty" json:"fields,omitempty"`
}
