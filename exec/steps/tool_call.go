package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/bazaarvoice/qtype/dsl"
	"github.com/bazaarvoice/qtype/exec"
	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
	"github.com/bazaarvoice/qtype/resolve"
	"github.com/bazaarvoice/qtype/secret"
	"github.com/bazaarvoice/qtype/stream"
	"github.com/bazaarvoice/qtype/toolerrors"
)

// NativeFunc is a registered native-function tool body (§4.G.2: "a
// reference to a native function, module path + name"). Go has no
// string-keyed dynamic import, so native tools are registered ahead of
// time by fully qualified key (module path + "." + function name) rather
// than resolved by reflection.
type NativeFunc func(ctx context.Context, params map[string]jsonvalue.Value) (map[string]jsonvalue.Value, error)

// NativeRegistry looks up a NativeFunc by its "module_path.function" key.
type NativeRegistry map[string]NativeFunc

// httpToolClient fetches HTTP tool endpoints (§4.G.2). No HTTP client
// library appears as a direct dependency anywhere in the example pack for
// this concern (a single request with headers/auth/timeout); net/http is
// used directly, the same stdlib-justified exception as loader's
// remote-include fetch (see DESIGN.md).
var httpToolClient = &http.Client{Timeout: 30 * time.Second}

type toolCallFields struct {
	InputBindings  map[string]string `json:"input_bindings"`
	OutputBindings map[string]string `json:"output_bindings"`
}

// ToolCall is the canonical tool-invocation executor (§4.G.2): it binds
// step.Tool's declared parameters from input_bindings, dispatches to
// either a registered native function or an HTTP endpoint, and extracts
// the result into step variables via output_bindings.
type ToolCall struct {
	step   *resolve.Step
	native NativeRegistry
	auth   *secret.Provider
	sink   stream.Sink
	fields toolCallFields
}

// NewToolCall constructs a ToolCall processor. native is consulted only
// for step.Tool.Kind == dsl.ToolNative; auth is the resolved credential
// for step.Tool.Auth (nil if the tool declares none); sink, when non-nil,
// receives the Status/ToolExecution* events named in §4.G.2.
func NewToolCall(step *resolve.Step, native NativeRegistry, auth *secret.Provider, sink stream.Sink) (*ToolCall, error) {
	if step.Tool == nil {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: fmt.Errorf("tool_call step requires a tool")}
	}
	var fields toolCallFields
	if err := decodeFields(step.Fields, &fields); err != nil {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: err}
	}
	return &ToolCall{step: step, native: native, auth: auth, sink: sink, fields: fields}, nil
}

func (ToolCall) SpanKind() exec.SpanKind { return exec.SpanTool }

func (t *ToolCall) ProcessMessage(ctx context.Context, msg flow.FlowMessage, emit func(flow.FlowMessage)) error {
	params, err := t.bindParams(msg)
	if err != nil {
		return err
	}
	if err := validateAgainstSchema(t.step.Tool.InputSchema, params); err != nil {
		toolErr := toolerrors.NewWithCause(fmt.Sprintf("tool %q: input validation failed", t.step.Tool.ID), err)
		t.sendToolError(ctx, toolErr)
		return toolErr
	}

	t.sendStatus(ctx, fmt.Sprintf("Calling %s...", t.step.Tool.ID))
	t.sendToolStart(ctx)

	result, err := t.invoke(ctx, params)
	if err != nil {
		toolErr := toolerrors.NewWithCause(fmt.Sprintf("tool %q failed", t.step.Tool.ID), err)
		t.sendToolError(ctx, toolErr)
		return toolErr
	}
	if err := validateAgainstSchema(t.step.Tool.OutputSchema, result); err != nil {
		toolErr := toolerrors.NewWithCause(fmt.Sprintf("tool %q: output validation failed", t.step.Tool.ID), err)
		t.sendToolError(ctx, toolErr)
		return toolErr
	}

	updates := make(map[string]jsonvalue.Value, len(t.fields.OutputBindings))
	for resultField, outVar := range t.fields.OutputBindings {
		v, ok := result[resultField]
		if !ok {
			v = jsonvalue.Null{}
		}
		updates[outVar] = v
	}

	t.sendToolEnd(ctx, result)
	emit(msg.CopyWithVariables(updates))
	return nil
}

func (*ToolCall) Finalize(context.Context, func(flow.FlowMessage)) error { return nil }

// bindParams resolves each declared input parameter from
// input_bindings (§4.G.2: "tool_param_name -> step_variable_id"),
// erroring when a required parameter is missing at runtime (§4.G.2 "A
// parameter declared optional may be absent; a required parameter
// missing at runtime is an error").
func (t *ToolCall) bindParams(msg flow.FlowMessage) (map[string]jsonvalue.Value, error) {
	optional := make(map[string]bool, len(t.step.Tool.Parameters))
	for _, p := range t.step.Tool.Parameters {
		if p.Input {
			optional[p.Name] = p.Optional
		}
	}

	params := make(map[string]jsonvalue.Value, len(t.fields.InputBindings))
	for paramName, varID := range t.fields.InputBindings {
		required := !optional[paramName]
		v, ok := msg.GetVariable(varID, required)
		if !ok {
			return nil, fmt.Errorf("exec/steps: tool_call step %q: required parameter %q (variable %q) is unset", t.step.ID, paramName, varID)
		}
		params[paramName] = v
	}
	return params, nil
}

func (t *ToolCall) invoke(ctx context.Context, params map[string]jsonvalue.Value) (map[string]jsonvalue.Value, error) {
	switch t.step.Tool.Kind {
	case dsl.ToolNative:
		return t.invokeNative(ctx, params)
	case dsl.ToolHTTP:
		return t.invokeHTTP(ctx, params)
	default:
		return nil, &exec.ConfigurationError{StepID: t.step.ID, Err: fmt.Errorf("tool_call: unsupported tool kind %q", t.step.Tool.Kind)}
	}
}

func (t *ToolCall) invokeNative(ctx context.Context, params map[string]jsonvalue.Value) (map[string]jsonvalue.Value, error) {
	key := t.step.Tool.ModulePath + "." + t.step.Tool.Function
	fn, ok := t.native[key]
	if !ok {
		return nil, &exec.ConfigurationError{StepID: t.step.ID, Err: fmt.Errorf("tool_call: no native function registered for %q", key)}
	}
	return fn(ctx, params)
}

// invokeHTTP dispatches per §4.G.2: GET/DELETE send bindings as query
// params, POST/PUT/PATCH send as a JSON body; bearer-token auth attaches
// Authorization.
func (t *ToolCall) invokeHTTP(ctx context.Context, params map[string]jsonvalue.Value) (map[string]jsonvalue.Value, error) {
	tool := t.step.Tool
	method := tool.Method
	if method == "" {
		method = http.MethodGet
	}

	var body []byte
	reqURL := tool.URL
	switch method {
	case http.MethodGet, http.MethodDelete:
		q := url.Values{}
		for name, v := range params {
			q.Set(name, textContent(v))
		}
		if len(q) > 0 {
			reqURL += "?" + q.Encode()
		}
	default:
		obj := make(jsonvalue.Object, len(params))
		for name, v := range params {
			obj[name] = v
		}
		encoded, err := jsonvalue.MarshalJSON(obj)
		if err != nil {
			return nil, fmt.Errorf("exec/steps: tool_call step %q: encode request body: %w", t.step.ID, err)
		}
		body = encoded
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("exec/steps: tool_call step %q: build request: %w", t.step.ID, err)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range tool.Headers {
		req.Header.Set(k, v)
	}
	if t.auth != nil && t.auth.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.auth.APIKey)
	}

	resp, err := httpToolClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exec/steps: tool_call step %q: %w", t.step.ID, err)
	}
	defer resp.Body.Close()

	var decoded any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("exec/steps: tool_call step %q: decode response: %w", t.step.ID, err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("exec/steps: tool_call step %q: unexpected status %s", t.step.ID, resp.Status)
	}

	value := jsonvalue.FromPlain(decoded)
	obj, ok := value.(jsonvalue.Object)
	if !ok {
		return nil, fmt.Errorf("exec/steps: tool_call step %q: response is not a JSON object", t.step.ID)
	}
	return obj, nil
}

// validateAgainstSchema checks params against schema, the same
// marshal-then-validate shape the example pack's tool registry uses for a
// tool call's payload (schema is nil only for a Tool that did not pass
// through resolve.Resolve; a nil schema validates everything).
func validateAgainstSchema(schema *jsonschema.Schema, params map[string]jsonvalue.Value) error {
	if schema == nil {
		return nil
	}
	obj := make(jsonvalue.Object, len(params))
	for k, v := range params {
		obj[k] = v
	}
	raw, err := jsonvalue.MarshalJSON(obj)
	if err != nil {
		return fmt.Errorf("encode for schema validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode for schema validation: %w", err)
	}
	return schema.Validate(doc)
}

func (t *ToolCall) sendStatus(ctx context.Context, message string) {
	if t.sink == nil {
		return
	}
	_ = t.sink.Send(ctx, stream.Status{Base: stream.Base{EventType: stream.EventStatus, Step: t.step.ID}, Message: message})
}

func (t *ToolCall) sendToolStart(ctx context.Context) {
	if t.sink == nil {
		return
	}
	_ = t.sink.Send(ctx, stream.ToolExecutionStart{
		Base:   stream.Base{EventType: stream.EventToolExecutionStart, Step: t.step.ID},
		ToolID: t.step.Tool.ID,
	})
}

func (t *ToolCall) sendToolEnd(ctx context.Context, result map[string]jsonvalue.Value) {
	if t.sink == nil {
		return
	}
	_ = t.sink.Send(ctx, stream.ToolExecutionEnd{
		Base:   stream.Base{EventType: stream.EventToolExecutionEnd, Step: t.step.ID},
		ToolID: t.step.Tool.ID,
		Output: result,
	})
}

func (t *ToolCall) sendToolError(ctx context.Context, err error) {
	if t.sink == nil {
		return
	}
	_ = t.sink.Send(ctx, stream.ToolExecutionError{
		Base:    stream.Base{EventType: stream.EventToolExecutionError, Step: t.step.ID},
		ToolID:  t.step.Tool.ID,
		Message: err.Error(),
	})
}
