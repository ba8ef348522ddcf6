package resolve

import (
	"github.com/bazaarvoice/qtype/dsl"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
	"github.com/bazaarvoice/qtype/types"
)

// resolverCtx bundles the id->object maps built so far plus the shared
// registry, so the resolveXRef helpers can decode and recursively resolve
// an inline-embedded object (§4.B) without ever-growing parameter lists.
type resolverCtx struct {
	r        *registry
	secrets  map[string]*Secret
	auths    map[string]*AuthProvider
	models   map[string]*Model
	indexes  map[string]*Index
	tools    map[string]*Tool
	memories map[string]*Memory
}

// Resolve implements the contract `resolve(dsl_document) -> (semantic_document,
// custom_type_registry)` from §4.D: it builds the id->object lookup map,
// rewrites every string reference to the direct object, validates the
// structural invariants of §3, and returns the semantic Document. All
// problems found are accumulated into a single *Error rather than
// returned on the first failure.
func Resolve(doc dsl.Document) (Document, map[string]*types.CustomType, error) {
	r := newRegistry()
	ctx := &resolverCtx{r: r}

	customTypes := map[string]*types.CustomType{}
	for i := range doc.Types {
		ct := doc.Types[i]
		knownNames := customTypeNames(doc.Types)
		resolved, issues := resolveCustomType(ct, knownNames)
		r.issues = append(r.issues, issues...)
		customTypes[ct.ID] = r.register("type", ct.ID, resolved).(*types.CustomType)
	}
	knownCustom := map[string]bool{}
	for id := range customTypes {
		knownCustom[id] = true
	}

	variables := map[string]*types.Variable{}
	for i := range doc.Variables {
		v := doc.Variables[i]
		t, err := types.ParseTypeString(stripOptionalToken(v.Type), knownCustom)
		optional := hasOptionalToken(v.Type)
		if err != nil {
			r.issues = append(r.issues, invariantIssue("variable %q: %v", v.ID, err))
			continue
		}
		rv := &types.Variable{ID: v.ID, Type: t, Optional: optional, Description: v.Description}
		variables[v.ID] = r.register("variable", v.ID, rv).(*types.Variable)
	}

	secrets := map[string]*Secret{}
	ctx.secrets = secrets
	for i := range doc.Secrets {
		s := doc.Secrets[i]
		rs := &Secret{ID: s.ID, SecretName: s.SecretName, Key: s.Key}
		secrets[s.ID] = r.register("secret", s.ID, rs).(*Secret)
	}

	auths := map[string]*AuthProvider{}
	ctx.auths = auths
	for i := range doc.AuthProviders {
		a := doc.AuthProviders[i]
		ra := &AuthProvider{ID: a.ID, Kind: a.Kind, Config: a.Config}
		if a.Secret != nil {
			ra.Secret = resolveSecretRef(*a.Secret, ctx)
		}
		auths[a.ID] = r.register("auth", a.ID, ra).(*AuthProvider)
	}

	models := map[string]*Model{}
	ctx.models = models
	for i := range doc.Models {
		m := doc.Models[i]
		rm := &Model{ID: m.ID, Provider: m.Provider, ModelID: m.ModelID, Config: m.Config}
		if m.Auth != nil {
			rm.Auth = resolveAuthRef(*m.Auth, ctx)
		}
		models[m.ID] = r.register("model", m.ID, rm).(*Model)
	}

	indexes := map[string]*Index{}
	ctx.indexes = indexes
	for i := range doc.Indexes {
		ix := doc.Indexes[i]
		rix := &Index{ID: ix.ID, Provider: ix.Provider, Config: ix.Config}
		if ix.EmbeddingModel != nil {
			rix.EmbeddingModel = resolveModelRef(*ix.EmbeddingModel, ctx)
		}
		indexes[ix.ID] = r.register("index", ix.ID, rix).(*Index)
	}

	tools := map[string]*Tool{}
	ctx.tools = tools
	for i := range doc.Tools {
		t := doc.Tools[i]
		rt := &Tool{
			ID: t.ID, Description: t.Description, Kind: t.Kind, Parameters: t.Parameters,
			ModulePath: t.ModulePath, Function: t.Function, URL: t.URL, Method: t.Method, Headers: t.Headers,
		}
		if t.Auth != nil {
			rt.Auth = resolveAuthRef(*t.Auth, ctx)
		}
		tools[t.ID] = r.register("tool", t.ID, rt).(*Tool)
		r.issues = append(r.issues, validateToolParameters(rt)...)
	}

	memories := map[string]*Memory{}
	ctx.memories = memories
	for i := range doc.Memories {
		mm := doc.Memories[i]
		rmm := &Memory{ID: mm.ID, Provider: mm.Provider, Config: mm.Config}
		memories[mm.ID] = r.register("memory", mm.ID, rmm).(*Memory)
	}

	flows := map[string]*Flow{}
	for i := range doc.Flows {
		f := doc.Flows[i]
		rf := resolveFlow(f, ctx)
		flows[f.ID] = r.register("flow", f.ID, rf).(*Flow)
	}

	r.issues = append(r.issues, validateFlows(flows)...)

	result := Document{
		Models: models, Tools: tools, Indexes: indexes, Flows: flows,
		AuthProviders: auths, Variables: variables, Types: customTypes,
		Memories: memories, Secrets: secrets,
	}
	if len(r.issues) > 0 {
		return Document{}, nil, &Error{Issues: r.issues}
	}
	return result, customTypes, nil
}

func customTypeNames(types []dsl.CustomType) map[string]bool {
	out := make(map[string]bool, len(types))
	for _, t := range types {
		out[t.ID] = true
	}
	return out
}

func stripOptionalToken(raw string) string {
	base, _ := types.SplitOptional(raw)
	return base
}

func hasOptionalToken(raw string) bool {
	_, opt := types.SplitOptional(raw)
	return opt
}

func resolveCustomType(ct dsl.CustomType, knownNames map[string]bool) (*types.CustomType, []Issue) {
	var issues []Issue
	props := make(map[string]types.Property, len(ct.Properties))
	for name, p := range ct.Properties {
		base := stripOptionalToken(p.Type)
		optional := hasOptionalToken(p.Type)
		t, err := types.ParseTypeString(base, knownNames)
		if err != nil {
			issues = append(issues, invariantIssue("type %q property %q: %v", ct.ID, name, err))
			continue
		}
		prop := types.Property{Type: t, Optional: optional}
		if p.Default != nil {
			prop.Default = jsonvalue.FromPlain(p.Default)
		}
		props[name] = prop
	}
	return &types.CustomType{ID: ct.ID, Description: ct.Description, Properties: props}, issues
}

// resolveSecretRef resolves a Ref<Secret>|string field (§4.B): a bare id
// looks the secret up in the already-built table, and an inline object is
// decoded and entered into the registry under its own id (§4.D: "the
// embedded tool is registered under its id") rather than dropped.
func resolveSecretRef(ref dsl.Ref, ctx *resolverCtx) *Secret {
	if ref.IsInline() {
		m, ok := ref.Inline.(map[string]any)
		if !ok {
			ctx.r.issues = append(ctx.r.issues, invariantIssue("embedded secret is not an object: %#v", ref.Inline))
			return nil
		}
		s := decodeInlineSecret(m)
		ctx.secrets[s.ID] = registerInline("secret", s.ID, s, ctx.r).(*Secret)
		return s
	}
	s, ok := ctx.secrets[ref.ID]
	if !ok {
		ctx.r.issues = append(ctx.r.issues, unresolvedIssue("secret", ref.ID))
		return nil
	}
	return s
}

func resolveAuthRef(ref dsl.Ref, ctx *resolverCtx) *AuthProvider {
	if ref.IsInline() {
		m, ok := ref.Inline.(map[string]any)
		if !ok {
			ctx.r.issues = append(ctx.r.issues, invariantIssue("embedded auth provider is not an object: %#v", ref.Inline))
			return nil
		}
		a := decodeInlineAuthProvider(m, ctx)
		ctx.auths[a.ID] = registerInline("auth", a.ID, a, ctx.r).(*AuthProvider)
		return a
	}
	a, ok := ctx.auths[ref.ID]
	if !ok {
		ctx.r.issues = append(ctx.r.issues, unresolvedIssue("auth", ref.ID))
		return nil
	}
	return a
}

func resolveModelRef(ref dsl.Ref, ctx *resolverCtx) *Model {
	if ref.IsInline() {
		m, ok := ref.Inline.(map[string]any)
		if !ok {
			ctx.r.issues = append(ctx.r.issues, invariantIssue("embedded model is not an object: %#v", ref.Inline))
			return nil
		}
		mo := decodeInlineModel(m, ctx)
		ctx.models[mo.ID] = registerInline("model", mo.ID, mo, ctx.r).(*Model)
		return mo
	}
	m, ok := ctx.models[ref.ID]
	if !ok {
		ctx.r.issues = append(ctx.r.issues, unresolvedIssue("model", ref.ID))
		return nil
	}
	return m
}

func resolveToolRef(ref dsl.Ref, ctx *resolverCtx) *Tool {
	if ref.IsInline() {
		m, ok := ref.Inline.(map[string]any)
		if !ok {
			ctx.r.issues = append(ctx.r.issues, invariantIssue("embedded tool is not an object: %#v", ref.Inline))
			return nil
		}
		t := decodeInlineTool(m, ctx)
		ctx.r.issues = append(ctx.r.issues, validateToolParameters(t)...)
		ctx.tools[t.ID] = registerInline("tool", t.ID, t, ctx.r).(*Tool)
		return t
	}
	t, ok := ctx.tools[ref.ID]
	if !ok {
		ctx.r.issues = append(ctx.r.issues, unresolvedIssue("tool", ref.ID))
		return nil
	}
	return t
}

func resolveIndexRef(ref dsl.Ref, ctx *resolverCtx) *Index {
	if ref.IsInline() {
		m, ok := ref.Inline.(map[string]any)
		if !ok {
			ctx.r.issues = append(ctx.r.issues, invariantIssue("embedded index is not an object: %#v", ref.Inline))
			return nil
		}
		ix := decodeInlineIndex(m, ctx)
		ctx.indexes[ix.ID] = registerInline("index", ix.ID, ix, ctx.r).(*Index)
		return ix
	}
	ix, ok := ctx.indexes[ref.ID]
	if !ok {
		ctx.r.issues = append(ctx.r.issues, unresolvedIssue("index", ref.ID))
		return nil
	}
	return ix
}

func resolveMemoryRef(ref dsl.Ref, ctx *resolverCtx) *Memory {
	if ref.IsInline() {
		m, ok := ref.Inline.(map[string]any)
		if !ok {
			ctx.r.issues = append(ctx.r.issues, invariantIssue("embedded memory is not an object: %#v", ref.Inline))
			return nil
		}
		mm := decodeInlineMemory(m)
		ctx.memories[mm.ID] = registerInline("memory", mm.ID, mm, ctx.r).(*Memory)
		return mm
	}
	m, ok := ctx.memories[ref.ID]
	if !ok {
		ctx.r.issues = append(ctx.r.issues, unresolvedIssue("memory", ref.ID))
		return nil
	}
	return m
}

func resolveFlow(f dsl.Flow, ctx *resolverCtx) *Flow {
	rf := &Flow{ID: f.ID, Inputs: f.Inputs, Outputs: f.Outputs, Mode: f.Mode}
	for _, s := range f.Steps {
		rs := &Step{
			ID: s.ID, Type: s.Type, Cardinality: s.Cardinality, Inputs: s.Inputs,
			Outputs: s.Outputs, ErrorMode: s.ErrorMode, Concurrency: s.Concurrency,
			Batch: s.Batch, Cache: s.Cache, Fields: s.Fields,
		}
		switch s.Type {
		case dsl.StepLLMInference:
			if raw, ok := s.Fields["model"]; ok {
				rs.Model = resolveModelRef(dsl.NormalizeRef(raw), ctx)
			}
			if raw, ok := s.Fields["memory"]; ok {
				rs.Memory = resolveMemoryRef(dsl.NormalizeRef(raw), ctx)
			}
		case dsl.StepToolCall:
			if raw, ok := s.Fields["tool"]; ok {
				rs.Tool = resolveToolRef(dsl.NormalizeRef(raw), ctx)
			}
		case dsl.StepSearch, dsl.StepIndexUpsert:
			if raw, ok := s.Fields["index"]; ok {
				rs.Index = resolveIndexRef(dsl.NormalizeRef(raw), ctx)
			}
		case dsl.StepDocumentSource, dsl.StepSQLSource:
			if raw, ok := s.Fields["auth"]; ok {
				rs.Auth = resolveAuthRef(dsl.NormalizeRef(raw), ctx)
			}
		}
		rf.Steps = append(rf.Steps, rs)
	}
	return rf
}
