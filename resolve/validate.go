package resolve

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/bazaarvoice/qtype/dsl"
)

// validateToolParameters enforces §3 invariant 6: a tool defines both
// input and output schemas; tool parameter names are unique (within the
// same schema; a name may appear once as an input and once as an output).
// It also compiles t.InputSchema/t.OutputSchema from the declared
// parameters, so a malformed or unsatisfiable schema is caught here rather
// than on the first tool_call invocation.
func validateToolParameters(t *Tool) []Issue {
	var issues []Issue
	var hasInput, hasOutput bool
	seenInput := map[string]bool{}
	seenOutput := map[string]bool{}
	for _, p := range t.Parameters {
		if p.Input {
			hasInput = true
			if seenInput[p.Name] {
				issues = append(issues, invariantIssue("tool %q: duplicate input parameter %q", t.ID, p.Name))
			}
			seenInput[p.Name] = true
		} else {
			hasOutput = true
			if seenOutput[p.Name] {
				issues = append(issues, invariantIssue("tool %q: duplicate output parameter %q", t.ID, p.Name))
			}
			seenOutput[p.Name] = true
		}
	}
	if !hasInput {
		issues = append(issues, invariantIssue("tool %q: missing input schema", t.ID))
	}
	if !hasOutput {
		issues = append(issues, invariantIssue("tool %q: missing output schema", t.ID))
	}

	inputSchema, err := compileParameterSchema(t.ID, "input", t.Parameters, true)
	if err != nil {
		issues = append(issues, invariantIssue("tool %q: %v", t.ID, err))
	} else {
		t.InputSchema = inputSchema
	}
	outputSchema, err := compileParameterSchema(t.ID, "output", t.Parameters, false)
	if err != nil {
		issues = append(issues, invariantIssue("tool %q: %v", t.ID, err))
	} else {
		t.OutputSchema = outputSchema
	}
	return issues
}

// compileParameterSchema builds the JSON Schema document a tool's declared
// parameters (input or output half) imply and compiles it, the same
// two-step AddResource+Compile the registry.Service call-validation path
// in the example pack uses for a tool's payload schema.
func compileParameterSchema(toolID, half string, params []dsl.ToolParameter, input bool) (*jsonschema.Schema, error) {
	properties := map[string]any{}
	var required []string
	for _, p := range params {
		if p.Input != input {
			continue
		}
		properties[p.Name] = typeToJSONSchema(p.Type)
		if !p.Optional {
			required = append(required, p.Name)
		}
	}
	doc := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": true,
	}

	resourceID := fmt.Sprintf("tool:%s:%s", toolID, half)
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resourceID, doc); err != nil {
		return nil, fmt.Errorf("add %s schema resource: %w", half, err)
	}
	schema, err := c.Compile(resourceID)
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", half, err)
	}
	return schema, nil
}

// typeToJSONSchema maps a parameter's declared type-grammar token (§4.A) to
// a JSON Schema fragment. Custom and domain types have no fixed JSON shape
// in this grammar, so they validate as an unconstrained value rather than
// rejecting structurally valid payloads the type system itself accepts.
func typeToJSONSchema(raw string) map[string]any {
	if inner, ok := listElemType(raw); ok {
		return map[string]any{"type": "array", "items": typeToJSONSchema(inner)}
	}
	switch raw {
	case "text", "bytes", "date", "datetime", "time", "file", "image", "audio", "video":
		return map[string]any{"type": "string"}
	case "int":
		return map[string]any{"type": "integer"}
	case "float":
		return map[string]any{"type": "number"}
	case "boolean":
		return map[string]any{"type": "boolean"}
	default:
		return map[string]any{}
	}
}

func listElemType(raw string) (string, bool) {
	const prefix, suffix = "list[", "]"
	if len(raw) > len(prefix)+len(suffix) && raw[:len(prefix)] == prefix && raw[len(raw)-len(suffix):] == suffix {
		return raw[len(prefix) : len(raw)-len(suffix)], true
	}
	return "", false
}

// validateFlows enforces §3 invariant 4 (chat-mode memory/history
// requirement) and checks invariant 5 (no cyclic flow references) by
// following Step.Flow pointers. resolveFlow does not set Step.Flow, so for
// a document built by Resolve no flow-step reference is followed and no
// cycle is reported.
func validateFlows(flows map[string]*Flow) []Issue {
	var issues []Issue
	for _, f := range flows {
		// Chat mode always has session history available (§3), so the
		// "declares memory or relies on session history" half of
		// invariant 4 is satisfied unconditionally; only the converse
		// half is a meaningful static check.
		if f.Mode == dsl.ModeComplete && flowHasMemory(f) {
			issues = append(issues, invariantIssue("flow %q: complete mode flows may not carry chat memory", f.ID))
		}
	}
	visiting := map[string]bool{}
	visited := map[string]bool{}
	var visit func(id string) error
	visit = func(id string) error {
		if visited[id] {
			return nil
		}
		if visiting[id] {
			return fmt.Errorf("cycle at flow %q", id)
		}
		visiting[id] = true
		f, ok := flows[id]
		if ok {
			for _, s := range f.Steps {
				if s.Type == dsl.StepFlow && s.Flow != nil {
					if err := visit(s.Flow.ID); err != nil {
						return err
					}
				}
			}
		}
		visiting[id] = false
		visited[id] = true
		return nil
	}
	for id := range flows {
		if err := visit(id); err != nil {
			issues = append(issues, invariantIssue("%v", err))
		}
	}
	return issues
}

func flowHasMemory(f *Flow) bool {
	for _, s := range f.Steps {
		if s.Type == dsl.StepLLMInference && s.Memory != nil {
			return true
		}
	}
	return false
}
