package tool

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"github.com/hupe1980/agentflow/core"
)

var nameRegexp = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var validate = func() *validator.Validate {
	v := validator.New()

	// toolname enforces the function call identifier charset.
	_ = v.RegisterValidation("toolname", func(fl validator.FieldLevel) bool {
		return nameRegexp.MatchString(fl.Field().String())
	})

	return v
}()

type functionToolConfig struct {
	Name        string `validate:"required,toolname"`
	Description string `validate:"required,min=3"`
}

// FunctionTool is a generic adapter that exposes a plain Go function as an
// agentflow tool.
//
// Responsibilities:
//   - Holds a JSON Schema parameter specification for the declaration
//   - Invokes the wrapped function with a *core.ToolContext giving access to
//     session state, logging, function call IDs, artifact helpers, etc.
//   - Normalizes error handling so callers receive *ToolError with
//     consistent codes:
//     EXECUTION_ERROR -> underlying function returned an error
//     (custom codes preserved if the function returns *ToolError directly)
//
// Concurrency:
//
//	A FunctionTool has no internal mutable state after construction and is
//	safe for concurrent use by multiple goroutines.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	longRunning bool
	retryPolicy *RetryPolicy
	fn          func(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// FunctionToolOptions configures optional FunctionTool behavior.
type FunctionToolOptions struct {
	// LongRunning marks the tool as completing out of band.
	LongRunning bool
	// RetryPolicy opts the tool into automatic retries. Nil disables.
	RetryPolicy *RetryPolicy
}

// NewFunctionTool constructs a FunctionTool from an explicit schema and
// function.
//
// Arguments:
//
//	name        - unique tool name matching [A-Za-z0-9_]+
//	description - concise, imperative description ("Calculate the ...")
//	parameters  - JSON Schema map describing the accepted arguments
//	fn          - implementation receiving a ToolContext plus parsed args
//
// Example:
//
//	sumTool, err := NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
	optFns ...func(o *FunctionToolOptions),
) (*FunctionTool, error) {
	opts := FunctionToolOptions{}

	for _, fnOpt := range optFns {
		fnOpt(&opts)
	}

	if err := validate.Struct(functionToolConfig{Name: name, Description: description}); err != nil {
		return nil, fmt.Errorf("invalid tool %q: %w", name, err)
	}

	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		longRunning: opts.LongRunning,
		retryPolicy: opts.RetryPolicy,
		fn:          fn,
	}, nil
}

// NewFunctionToolFromStruct derives the parameter schema from a struct via
// JSON Schema reflection. It is a convenience for simple argument
// containers.
//
// Example:
//
//	type SumArgs struct {
//	  A float64 `json:"a" jsonschema:"description=First addend"`
//	  B float64 `json:"b" jsonschema:"description=Second addend"`
//	}
//
//	sumTool, err := NewFunctionToolFromStruct(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  SumArgs{},
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
	optFns ...func(o *FunctionToolOptions),
) (*FunctionTool, error) {
	return NewFunctionTool(name, description, SchemaFromStruct(structType), fn, optFns...)
}

// SchemaFromStruct reflects a JSON Schema object map from a struct value.
func SchemaFromStruct(structType any) map[string]any {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}

	schema := r.Reflect(structType)

	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"type": "object"}
	}

	delete(m, "$schema")

	return m
}

// Name returns the unique tool name used in declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Declaration returns the model-facing function declaration.
func (t *FunctionTool) Declaration() *FunctionDeclaration {
	return &FunctionDeclaration{
		Name:        t.name,
		Description: t.description,
		Parameters:  t.parameters,
	}
}

// IsLongRunning reports whether the tool completes out of band.
func (t *FunctionTool) IsLongRunning() bool { return t.longRunning }

// RetryPolicy returns the opt-in retry policy, nil when retries are off.
func (t *FunctionTool) RetryPolicy() *RetryPolicy { return t.retryPolicy }

// Run invokes the underlying function. Execution failures are wrapped (or
// passed through) as *ToolError for uniform downstream handling.
//
// Error Semantics:
//
//	*ToolError (returned directly) -> forwarded unchanged
//	other error                    -> *ToolError{Code: "EXECUTION_ERROR"}
func (t *FunctionTool) Run(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "fc_id", toolCtx.FunctionCallID())

	result, err := t.fn(toolCtx, args)
	if err != nil {
		if toolErr, ok := err.(*ToolError); ok {
			logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)

			return nil, toolErr
		}

		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    "EXECUTION_ERROR",
		}
	}

	logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
