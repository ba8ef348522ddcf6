package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarvoice/qtype/dsl"
	"github.com/bazaarvoice/qtype/resolve"
)

func ref(id string) *dsl.Ref {
	r := dsl.NewRefID(id)
	return &r
}

func TestResolveHappyPath(t *testing.T) {
	doc := dsl.Document{
		Secrets: []dsl.Secret{{ID: "sk", SecretName: "openai-key"}},
		AuthProviders: []dsl.AuthProvider{
			{ID: "my_auth", Kind: dsl.AuthAPIKey, Secret: ref("sk")},
		},
		Models: []dsl.Model{
			{ID: "gpt", Provider: "openai", ModelID: "gpt-4o", Auth: ref("my_auth")},
		},
		Flows: []dsl.Flow{
			{
				ID:   "main",
				Mode: dsl.ModeComplete,
				Steps: []dsl.Step{
					{
						ID: "ask", Type: dsl.StepLLMInference, Cardinality: dsl.CardinalityOne,
						Inputs: []string{"prompt"}, Outputs: []string{"reply"},
						ErrorMode: dsl.ErrorModeFail,
						Fields:    map[string]any{"model": "gpt"},
					},
				},
			},
		},
	}

	resolved, _, err := resolve.Resolve(doc)
	require.NoError(t, err)

	flow, ok := resolved.Flows["main"]
	require.True(t, ok)
	require.Len(t, flow.Steps, 1)
	require.NotNil(t, flow.Steps[0].Model)
	assert.Equal(t, "gpt-4o", flow.Steps[0].Model.ModelID)
	require.NotNil(t, flow.Steps[0].Model.Auth)
	require.NotNil(t, flow.Steps[0].Model.Auth.Secret)
	assert.Equal(t, "openai-key", flow.Steps[0].Model.Auth.Secret.SecretName)
}

func TestResolveUnresolvedReferenceFails(t *testing.T) {
	doc := dsl.Document{
		Flows: []dsl.Flow{
			{ID: "main", Mode: dsl.ModeComplete, Steps: []dsl.Step{
				{ID: "ask", Type: dsl.StepLLMInference, Fields: map[string]any{"model": "missing"}},
			}},
		},
	}
	_, _, err := resolve.Resolve(doc)
	require.Error(t, err)
	var rerr *resolve.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "unresolved", rerr.Issues[0].Kind)
}

func TestResolveCompleteModeCannotCarryMemory(t *testing.T) {
	doc := dsl.Document{
		Memories: []dsl.Memory{{ID: "mem", Provider: "inmem"}},
		Models:   []dsl.Model{{ID: "gpt", Provider: "openai", ModelID: "gpt-4o"}},
		Flows: []dsl.Flow{
			{ID: "main", Mode: dsl.ModeComplete, Steps: []dsl.Step{
				{ID: "ask", Type: dsl.StepLLMInference, Fields: map[string]any{"model": "gpt", "memory": "mem"}},
			}},
		},
	}
	_, _, err := resolve.Resolve(doc)
	require.Error(t, err)
	var rerr *resolve.Error
	require.ErrorAs(t, err, &rerr)
	found := false
	for _, issue := range rerr.Issues {
		if issue.Kind == "invariant" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestResolveDuplicateIDWithDifferentContentFails(t *testing.T) {
	doc := dsl.Document{
		Models: []dsl.Model{
			{ID: "gpt", Provider: "openai", ModelID: "gpt-4o"},
			{ID: "gpt", Provider: "openai", ModelID: "gpt-4o-mini"},
		},
	}
	_, _, err := resolve.Resolve(doc)
	require.Error(t, err)
	var rerr *resolve.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "duplicate_id", rerr.Issues[0].Kind)
}

// TestResolveEmbeddedInlineModelIsDecodedAndRegistered verifies §4.B/§4.D: a
// step may embed a full object at the point of reference instead of citing
// an id, and the embedded object must come out as a real, non-nil pointer
// (§8) registered under its own id rather than silently dropped.
func TestResolveEmbeddedInlineModelIsDecodedAndRegistered(t *testing.T) {
	doc := dsl.Document{
		Secrets: []dsl.Secret{{ID: "sk", SecretName: "openai-key"}},
		Flows: []dsl.Flow{
			{
				ID:   "main",
				Mode: dsl.ModeComplete,
				Steps: []dsl.Step{
					{
						ID: "ask", Type: dsl.StepLLMInference, Cardinality: dsl.CardinalityOne,
						Inputs: []string{"prompt"}, Outputs: []string{"reply"},
						ErrorMode: dsl.ErrorModeFail,
						Fields: map[string]any{
							"model": map[string]any{
								"id":       "gpt",
								"provider": "openai",
								"model_id": "gpt-4o",
								"auth": map[string]any{
									"id":     "my_auth",
									"type":   "api_key",
									"secret": "sk",
								},
							},
						},
					},
				},
			},
		},
	}

	resolved, _, err := resolve.Resolve(doc)
	require.NoError(t, err)

	flow := resolved.Flows["main"]
	require.NotNil(t, flow.Steps[0].Model)
	assert.Equal(t, "gpt-4o", flow.Steps[0].Model.ModelID)
	require.NotNil(t, flow.Steps[0].Model.Auth)
	require.NotNil(t, flow.Steps[0].Model.Auth.Secret)
	assert.Equal(t, "openai-key", flow.Steps[0].Model.Auth.Secret.SecretName)

	// the embedded model and auth must also be reachable by id, proving
	// they landed in the registry rather than just the step pointer.
	require.Contains(t, resolved.Models, "gpt")
	require.Contains(t, resolved.AuthProviders, "my_auth")
}

// TestResolveEmbeddedInlineDuplicateIDConflictsWithTopLevel verifies the §9
// Open Question resolution: an embedded object sharing an id with a
// differently-shaped top-level declaration is a genuine duplicate-id
// conflict, exactly as if both were top-level declarations.
func TestResolveEmbeddedInlineDuplicateIDConflictsWithTopLevel(t *testing.T) {
	doc := dsl.Document{
		Models: []dsl.Model{
			{ID: "gpt", Provider: "openai", ModelID: "gpt-4o"},
		},
		Flows: []dsl.Flow{
			{ID: "main", Mode: dsl.ModeComplete, Steps: []dsl.Step{
				{
					ID: "ask", Type: dsl.StepLLMInference,
					Fields: map[string]any{
						"model": map[string]any{
							"id": "gpt", "provider": "openai", "model_id": "gpt-4o-mini",
						},
					},
				},
			}},
		},
	}

	_, _, err := resolve.Resolve(doc)
	require.Error(t, err)
	var rerr *resolve.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "duplicate_id", rerr.Issues[0].Kind)
}
