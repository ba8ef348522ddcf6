package resolve

import "github.com/bazaarvoice/qtype/dsl"

// Inline decoding implements the other half of §4.B's `Ref<X> | string`
// surface form: a Ref whose Inline value embeds a full object rather than
// pointing at one by id. The YAML loader hands that value through as the
// generic map a mapping node decodes to (mirroring the yaml tag vocabulary
// of the raw* structs in package loader), so it is decoded here field by
// field rather than through a json.Marshal round-trip, since dsl.* carries
// no struct tags and several fields (Auth, Secret, EmbeddingModel) are
// themselves Ref unions that a plain unmarshal can't resolve.

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

// remainingConfig mirrors the `yaml:",inline"` catch-all fields on the raw*
// loader structs: everything not claimed by a known key is carried into
// Config, the same way the loader leaves unmatched keys there.
func remainingConfig(m map[string]any, known ...string) map[string]any {
	skip := make(map[string]bool, len(known))
	for _, k := range known {
		skip[k] = true
	}
	out := map[string]any{}
	for k, v := range m {
		if !skip[k] {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// refField extracts and normalizes a Ref<X>|string field from an inline map,
// the same normalization loader.toDSLRef applies to a top-level field.
func refField(m map[string]any, key string) *dsl.Ref {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil
	}
	ref := dsl.NormalizeRef(raw)
	return &ref
}

func decodeInlineToolParameters(raw any) []dsl.ToolParameter {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	params := make([]dsl.ToolParameter, 0, len(list))
	for _, item := range list {
		pm, ok := item.(map[string]any)
		if !ok {
			continue
		}
		params = append(params, dsl.ToolParameter{
			Name:     stringField(pm, "name"),
			Type:     stringField(pm, "type"),
			Optional: boolField(pm, "optional"),
			Input:    boolField(pm, "input"),
		})
	}
	return params
}

func decodeInlineHeaders(raw any) map[string]string {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func decodeInlineSecret(m map[string]any) *Secret {
	return &Secret{
		ID:         stringField(m, "id"),
		SecretName: stringField(m, "secret_name"),
		Key:        stringField(m, "key"),
	}
}

func decodeInlineAuthProvider(m map[string]any, ctx *resolverCtx) *AuthProvider {
	a := &AuthProvider{
		ID:     stringField(m, "id"),
		Kind:   dsl.AuthProviderKind(stringField(m, "type")),
		Config: remainingConfig(m, "id", "type", "secret"),
	}
	if ref := refField(m, "secret"); ref != nil {
		a.Secret = resolveSecretRef(*ref, ctx)
	}
	return a
}

func decodeInlineModel(m map[string]any, ctx *resolverCtx) *Model {
	mo := &Model{
		ID:       stringField(m, "id"),
		Provider: stringField(m, "provider"),
		ModelID:  stringField(m, "model_id"),
		Config:   remainingConfig(m, "id", "provider", "model_id", "auth"),
	}
	if ref := refField(m, "auth"); ref != nil {
		mo.Auth = resolveAuthRef(*ref, ctx)
	}
	return mo
}

func decodeInlineIndex(m map[string]any, ctx *resolverCtx) *Index {
	ix := &Index{
		ID:       stringField(m, "id"),
		Provider: stringField(m, "provider"),
		Config:   remainingConfig(m, "id", "provider", "embedding_model"),
	}
	if ref := refField(m, "embedding_model"); ref != nil {
		ix.EmbeddingModel = resolveModelRef(*ref, ctx)
	}
	return ix
}

func decodeInlineTool(m map[string]any, ctx *resolverCtx) *Tool {
	t := &Tool{
		ID:          stringField(m, "id"),
		Description: stringField(m, "description"),
		Kind:        dsl.ToolKind(stringField(m, "type")),
		Parameters:  decodeInlineToolParameters(m["parameters"]),
		ModulePath:  stringField(m, "module_path"),
		Function:    stringField(m, "function"),
		URL:         stringField(m, "url"),
		Method:      stringField(m, "method"),
		Headers:     decodeInlineHeaders(m["headers"]),
	}
	if ref := refField(m, "auth"); ref != nil {
		t.Auth = resolveAuthRef(*ref, ctx)
	}
	return t
}

func decodeInlineMemory(m map[string]any) *Memory {
	return &Memory{
		ID:       stringField(m, "id"),
		Provider: stringField(m, "provider"),
		Config:   remainingConfig(m, "id", "provider"),
	}
}

// registerInline enters an embedded object into the registry under its id
// (§9: duplicate-embedded-id detection runs the same check as two top-level
// declarations sharing an id). An embed with no id can't be deduplicated,
// but still yields a usable, non-nil object per §8.
func registerInline(kind, id string, obj any, r *registry) any {
	if id == "" {
		r.issues = append(r.issues, invariantIssue("embedded %s has no id: duplicate-id detection skipped for this instance", kind))
		return obj
	}
	return r.register(kind, id, obj)
}
