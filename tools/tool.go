package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/jthornhill/finagent/internal/telemetry"
)

// ErrDuplicateTool is returned when registering a tool whose name is
// already present in the registry.
var ErrDuplicateTool = errors.New("tool already registered")

// ErrUnknownTool is returned when dispatching to a name with no
// registered definition.
var ErrUnknownTool = errors.New("unknown tool")

// ArgumentError reports model-supplied arguments that do not satisfy a
// tool's input schema (missing required key, wrong primitive type).
type ArgumentError struct {
	Tool string
	Err  error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %v", e.Tool, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// ToolDefinition couples a tool's model-facing contract with its handler.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema anthropic.ToolInputSchemaParam
	Function    func(ctx context.Context, input json.RawMessage) (string, error)
}

// decodeInput unmarshals raw tool arguments into v, converting decode
// failures (including type mismatches) into an ArgumentError.
func decodeInput(name string, raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &ArgumentError{Tool: name, Err: err}
	}
	return nil
}

// Registry is an ordered, closed set of tool definitions. Order is
// registration order and is the order specs are sent to the model.
type Registry struct {
	defs   []ToolDefinition
	byName map[string]int
}

// NewRegistry builds a registry from the given definitions.
func NewRegistry(defs ...ToolDefinition) (*Registry, error) {
	r := &Registry{byName: make(map[string]int, len(defs))}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends a definition, rejecting duplicate names.
func (r *Registry) Register(def ToolDefinition) error {
	if _, ok := r.byName[def.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, def.Name)
	}
	r.byName[def.Name] = len(r.defs)
	r.defs = append(r.defs, def)
	return nil
}

// Specs returns the definitions in registration order.
func (r *Registry) Specs() []ToolDefinition {
	out := make([]ToolDefinition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Params returns the registry as Anthropic tool params for a request.
func (r *Registry) Params() []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(r.defs))
	for _, t := range r.defs {
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: t.InputSchema,
		}})
	}
	return out
}

// Invoke dispatches a single tool call and always returns a tool_result
// block for the given request id. Unknown tools, bad arguments, and
// handler failures become is_error results so the model can adapt; they
// never abort the surrounding batch.
func (r *Registry) Invoke(ctx context.Context, id, name string, input json.RawMessage) anthropic.ContentBlockParamUnion {
	turnID, _ := telemetry.TurnIDFromContext(ctx)

	emit := func(durationMs int64, outputSize int, errStr string) {
		fields := map[string]any{
			"tool_name":   name,
			"duration_ms": durationMs,
			"input_size":  len(input),
			"output_size": outputSize,
			"turn_id":     turnID,
		}
		if errStr != "" {
			fields["error"] = errStr
		} else {
			fields["error"] = nil
		}
		telemetry.Emit("tool_exec", fields)
	}

	start := time.Now()

	idx, ok := r.byName[name]
	if !ok {
		emit(time.Since(start).Milliseconds(), 0, "tool not found")
		return anthropic.NewToolResultBlock(id, fmt.Sprintf("%v: %s", ErrUnknownTool, name), true)
	}

	resp, err := r.defs[idx].Function(ctx, input)
	if err != nil {
		// Emit a generic error string to avoid leaking payloads in telemetry;
		// the detailed message goes back to the model in the tool result.
		emit(time.Since(start).Milliseconds(), 0, "tool error")
		return anthropic.NewToolResultBlock(id, err.Error(), true)
	}
	emit(time.Since(start).Milliseconds(), len(resp), "")
	return anthropic.NewToolResultBlock(id, resp, false)
}
