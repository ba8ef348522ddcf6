package steps_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarvoice/qtype/dsl"
	"github.com/bazaarvoice/qtype/exec/steps"
	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
	"github.com/bazaarvoice/qtype/resolve"
	"github.com/bazaarvoice/qtype/secret"
)

func TestToolCallInvokesNativeFunctionAndBindsOutputs(t *testing.T) {
	step := &resolve.Step{
		ID:      "lookup",
		Inputs:  []string{"q"},
		Outputs: []string{"result"},
		Tool: &resolve.Tool{
			ID:         "search_kb",
			Kind:       dsl.ToolNative,
			ModulePath: "knowledge",
			Function:   "Search",
			Parameters: []dsl.ToolParameter{
				{Name: "query", Input: true},
				{Name: "hits", Input: false},
			},
		},
		Fields: map[string]any{
			"input_bindings":  map[string]any{"query": "q"},
			"output_bindings": map[string]any{"hits": "result"},
		},
	}
	native := steps.NativeRegistry{
		"knowledge.Search": func(_ context.Context, params map[string]jsonvalue.Value) (map[string]jsonvalue.Value, error) {
			q, _ := params["query"].(jsonvalue.Text)
			return map[string]jsonvalue.Value{"hits": jsonvalue.Text("found:" + string(q))}, nil
		},
	}
	tc, err := steps.NewToolCall(step, native, nil, nil)
	require.NoError(t, err)

	msg := newMsg(map[string]jsonvalue.Value{"q": jsonvalue.Text("qtype")})
	results := collectEmitted(t, func(emit func(flow.FlowMessage)) {
		require.NoError(t, tc.ProcessMessage(context.Background(), msg, emit))
	})

	require.Len(t, results, 1)
	v, _ := results[0].GetVariable("result", true)
	assert.Equal(t, jsonvalue.Text("found:qtype"), v)
}

func TestToolCallRejectsMissingRequiredParameter(t *testing.T) {
	step := &resolve.Step{
		ID:      "lookup",
		Inputs:  []string{},
		Outputs: []string{"result"},
		Tool: &resolve.Tool{
			ID:         "search_kb",
			Kind:       dsl.ToolNative,
			ModulePath: "knowledge",
			Function:   "Search",
			Parameters: []dsl.ToolParameter{{Name: "query", Input: true, Optional: false}},
		},
		Fields: map[string]any{
			"input_bindings":  map[string]any{"query": "missing_var"},
			"output_bindings": map[string]any{},
		},
	}
	tc, err := steps.NewToolCall(step, steps.NativeRegistry{}, nil, nil)
	require.NoError(t, err)

	msg := newMsg(map[string]jsonvalue.Value{})
	err = tc.ProcessMessage(context.Background(), msg, func(flow.FlowMessage) {})
	assert.Error(t, err)
}

func TestToolCallInvokesHTTPToolWithBearerAuthAndJSONBody(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var body map[string]any
		defer r.Body.Close()
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotBody = body
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	step := &resolve.Step{
		ID:      "notify",
		Inputs:  []string{"msg"},
		Outputs: []string{"status"},
		Tool: &resolve.Tool{
			ID:     "webhook",
			Kind:   dsl.ToolHTTP,
			URL:    server.URL,
			Method: http.MethodPost,
			Parameters: []dsl.ToolParameter{
				{Name: "message", Input: true},
				{Name: "status", Input: false},
			},
		},
		Fields: map[string]any{
			"input_bindings":  map[string]any{"message": "msg"},
			"output_bindings": map[string]any{"status": "status"},
		},
	}
	auth := &secret.Provider{ID: "a", APIKey: "tok123"}
	tc, err := steps.NewToolCall(step, nil, auth, nil)
	require.NoError(t, err)

	msg := newMsg(map[string]jsonvalue.Value{"msg": jsonvalue.Text("hello")})
	results := collectEmitted(t, func(emit func(flow.FlowMessage)) {
		require.NoError(t, tc.ProcessMessage(context.Background(), msg, emit))
	})

	require.Len(t, results, 1)
	v, _ := results[0].GetVariable("status", true)
	assert.Equal(t, jsonvalue.Text("ok"), v)
	assert.Equal(t, "Bearer tok123", gotAuth)
	assert.Equal(t, "hello", gotBody["message"])
}
