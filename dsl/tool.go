package dsl

// ToolKind discriminates the two tool shapes named in §4.G.2: a reference
// to a native function, or an HTTP endpoint.
type ToolKind string

const (
	ToolNative ToolKind = "native"
	ToolHTTP   ToolKind = "http"
)

// Tool is the surface descriptor for a callable tool (§3, §4.G.2). Auth is
// a Ref since tools embed auth (§4.D embedded-object discovery).
type Tool struct {
	ID          string
	Description string
	Kind        ToolKind
	Parameters  []ToolParameter

	// Native fields.
	ModulePath string
	Function   string

	// HTTP fields.
	URL     string
	Method  string
	Headers map[string]string
	Auth    *Ref
}

// ToolParameter describes one named input/output of a tool (§3 invariant
// 6: tool parameter names are unique within a tool).
type ToolParameter struct {
	Name     string
	Type     string
	Optional bool
	// Input is true for an input-schema parameter, false for an
	// output-schema parameter; §3 invariant 6 requires both schemas.
	Input bool
}

// AuthProviderKind discriminates auth provider shapes.
type AuthProviderKind string

const (
	AuthAPIKey AuthProviderKind = "api_key"
	AuthOAuth2 AuthProviderKind = "oauth2"
	AuthCloud  AuthProviderKind = "cloud"
)

// AuthProvider is the surface descriptor for an authentication mechanism
// (§4.J). Secret is a Ref to a Secret descriptor.
type AuthProvider struct {
	ID     string
	Kind   AuthProviderKind
	Secret *Ref
	Config map[string]any
}
