package loader

import "github.com/bazaarvoice/qtype/dsl"

// rawDocument mirrors the top-level YAML shape directly with yaml.v3
// struct tags (§6 "top-level object is one of: Application ... or
// standalone lists"); every field is optional so a modular-composition
// document (e.g. a file holding only `tools:`) decodes cleanly.
type rawDocument struct {
	Models        []rawModel           `yaml:"models"`
	Tools         []rawTool            `yaml:"tools"`
	Indexes       []rawIndex           `yaml:"indexes"`
	Flows         []rawFlow            `yaml:"flows"`
	Flow          *rawFlow             `yaml:"flow"`
	AuthProviders []rawAuthProvider    `yaml:"auth_providers"`
	Variables     []rawVariable        `yaml:"variables"`
	Types         []rawCustomType      `yaml:"types"`
	Memories      []rawMemory          `yaml:"memories"`
	Secrets       []rawSecret          `yaml:"secrets"`
}

type rawVariable struct {
	ID          string `yaml:"id"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

type rawProperty struct {
	Type    string `yaml:"type"`
	Default any    `yaml:"default"`
}

type rawCustomType struct {
	ID          string                 `yaml:"id"`
	Description string                 `yaml:"description"`
	Properties  map[string]rawProperty `yaml:"properties"`
}

type rawMemory struct {
	ID       string         `yaml:"id"`
	Provider string         `yaml:"provider"`
	Config   map[string]any `yaml:",inline"`
}

type rawSecret struct {
	ID         string `yaml:"id"`
	SecretName string `yaml:"secret_name"`
	Key        string `yaml:"key"`
}

type rawModel struct {
	ID       string         `yaml:"id"`
	Provider string         `yaml:"provider"`
	ModelID  string         `yaml:"model_id"`
	Auth     any            `yaml:"auth"`
	Config   map[string]any `yaml:",inline"`
}

type rawIndex struct {
	ID             string         `yaml:"id"`
	Provider       string         `yaml:"provider"`
	EmbeddingModel any            `yaml:"embedding_model"`
	Config         map[string]any `yaml:",inline"`
}

type rawToolParameter struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Optional bool   `yaml:"optional"`
	Input    bool   `yaml:"input"`
}

type rawTool struct {
	ID          string             `yaml:"id"`
	Description string             `yaml:"description"`
	Type        string             `yaml:"type"`
	Parameters  []rawToolParameter `yaml:"parameters"`
	ModulePath  string             `yaml:"module_path"`
	Function    string             `yaml:"function"`
	URL         string             `yaml:"url"`
	Method      string             `yaml:"method"`
	Headers     map[string]string  `yaml:"headers"`
	Auth        any                `yaml:"auth"`
}

type rawAuthProvider struct {
	ID     string         `yaml:"id"`
	Type   string         `yaml:"type"`
	Secret any            `yaml:"secret"`
	Config map[string]any `yaml:",inline"`
}

type rawStep struct {
	ID          string         `yaml:"id"`
	Type        string         `yaml:"type"`
	Cardinality string         `yaml:"cardinality"`
	Inputs      []string       `yaml:"inputs"`
	Outputs     []string       `yaml:"outputs"`
	ErrorMode   string         `yaml:"error_mode"`
	NumWorkers  int            `yaml:"num_workers"`
	BatchSize   int            `yaml:"batch_size"`
	Cache       *rawCache      `yaml:"cache"`
	Fields      map[string]any `yaml:",inline"`
}

type rawCache struct {
	Directory string `yaml:"directory"`
	Namespace string `yaml:"namespace"`
	Version   string `yaml:"version"`
}

type rawFlow struct {
	ID      string    `yaml:"id"`
	Steps   []rawStep `yaml:"steps"`
	Inputs  []string  `yaml:"inputs"`
	Outputs []string  `yaml:"outputs"`
	Mode    string    `yaml:"mode"`
}

func toDSLRef(raw any) *dsl.Ref {
	if raw == nil {
		return nil
	}
	r := dsl.NormalizeRef(raw)
	return &r
}

func (r rawDocument) toDocument() dsl.Document {
	doc := dsl.Document{}
	for _, m := range r.Models {
		doc.Models = append(doc.Models, dsl.Model{
			ID: m.ID, Provider: m.Provider, ModelID: m.ModelID,
			Auth: toDSLRef(m.Auth), Config: m.Config,
		})
	}
	for _, ix := range r.Indexes {
		doc.Indexes = append(doc.Indexes, dsl.Index{
			ID: ix.ID, Provider: ix.Provider,
			EmbeddingModel: toDSLRef(ix.EmbeddingModel), Config: ix.Config,
		})
	}
	for _, t := range r.Tools {
		params := make([]dsl.ToolParameter, 0, len(t.Parameters))
		for _, p := range t.Parameters {
			params = append(params, dsl.ToolParameter{
				Name: p.Name, Type: p.Type, Optional: p.Optional, Input: p.Input,
			})
		}
		doc.Tools = append(doc.Tools, dsl.Tool{
			ID: t.ID, Description: t.Description, Kind: dsl.ToolKind(t.Type),
			Parameters: params, ModulePath: t.ModulePath, Function: t.Function,
			URL: t.URL, Method: t.Method, Headers: t.Headers, Auth: toDSLRef(t.Auth),
		})
	}
	for _, a := range r.AuthProviders {
		doc.AuthProviders = append(doc.AuthProviders, dsl.AuthProvider{
			ID: a.ID, Kind: dsl.AuthProviderKind(a.Type), Secret: toDSLRef(a.Secret), Config: a.Config,
		})
	}
	for _, v := range r.Variables {
		doc.Variables = append(doc.Variables, dsl.Variable{ID: v.ID, Type: v.Type, Description: v.Description})
	}
	for _, ct := range r.Types {
		props := make(map[string]dsl.Property, len(ct.Properties))
		for name, p := range ct.Properties {
			props[name] = dsl.Property{Type: p.Type, Default: p.Default}
		}
		doc.Types = append(doc.Types, dsl.CustomType{ID: ct.ID, Description: ct.Description, Properties: props})
	}
	for _, mem := range r.Memories {
		doc.Memories = append(doc.Memories, dsl.Memory{ID: mem.ID, Provider: mem.Provider, Config: mem.Config})
	}
	for _, s := range r.Secrets {
		doc.Secrets = append(doc.Secrets, dsl.Secret{ID: s.ID, SecretName: s.SecretName, Key: s.Key})
	}
	for _, f := range r.Flows {
		doc.Flows = append(doc.Flows, f.toFlow())
	}
	if r.Flow != nil {
		doc.Flows = append(doc.Flows, r.Flow.toFlow())
	}
	return doc
}

func (f rawFlow) toFlow() dsl.Flow {
	steps := make([]dsl.Step, 0, len(f.Steps))
	for _, s := range f.Steps {
		steps = append(steps, s.toStep())
	}
	mode := dsl.ModeComplete
	if f.Mode == string(dsl.ModeChat) {
		mode = dsl.ModeChat
	}
	return dsl.Flow{ID: f.ID, Steps: steps, Inputs: f.Inputs, Outputs: f.Outputs, Mode: mode}
}

func (s rawStep) toStep() dsl.Step {
	card := dsl.CardinalityOne
	if s.Cardinality == string(dsl.CardinalityMany) {
		card = dsl.CardinalityMany
	}
	errMode := dsl.ErrorModeFail
	switch dsl.ErrorMode(s.ErrorMode) {
	case dsl.ErrorModeDrop:
		errMode = dsl.ErrorModeDrop
	case dsl.ErrorModeCache:
		errMode = dsl.ErrorModeCache
	}
	numWorkers := s.NumWorkers
	if numWorkers == 0 {
		numWorkers = 1
	}
	batchSize := s.BatchSize
	if batchSize == 0 {
		batchSize = 1
	}
	var cache *dsl.CacheConfig
	if s.Cache != nil {
		cache = &dsl.CacheConfig{Directory: s.Cache.Directory, Namespace: s.Cache.Namespace, Version: s.Cache.Version}
	}
	return dsl.Step{
		ID: s.ID, Type: dsl.StepKind(s.Type), Cardinality: card,
		Inputs: s.Inputs, Outputs: s.Outputs, ErrorMode: errMode,
		Concurrency: dsl.ConcurrencyConfig{NumWorkers: numWorkers},
		Batch:       dsl.BatchConfig{BatchSize: batchSize},
		Cache:       cache,
		Fields:      s.Fields,
	}
}
