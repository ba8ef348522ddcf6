// Package secret implements the secret manager contract and auth-provider
// lifecycle (§4.J): resolving a declarative SecretReference to a plaintext
// string, and producing scoped auth resources (cloud sessions, API keys
// with secrets resolved in place) with session caching and role
// assumption.
package secret

import (
	"context"
	"encoding/json"
	"fmt"
)

// Reference is the declarative SecretReference{secret_name, key?} from
// §4.J: Key, when present, selects a field out of a JSON-object secret.
type Reference struct {
	SecretName string
	Key        string
}

// Manager resolves a Reference to a plaintext string (§4.J,
// `SecretManager(reference) -> string`).
type Manager interface {
	Resolve(ctx context.Context, ref Reference) (string, error)
}

// ResolutionError is the SecretResolutionError kind from §7: the secret
// manager is missing or the backend failed. Treated per the owning step's
// error_mode rather than being unconditionally fatal.
type ResolutionError struct {
	Reference Reference
	Err       error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("secret: resolve %q: %v", e.Reference.SecretName, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// NoOp returns the secret_name verbatim, for tests (§4.J).
type NoOp struct{}

// Resolve implements Manager by returning ref.SecretName unchanged,
// ignoring Key.
func (NoOp) Resolve(_ context.Context, ref Reference) (string, error) {
	return ref.SecretName, nil
}

// JSONFieldExtractor is a Manager decorator: when ref.Key is set, the
// wrapped Manager's result is parsed as a JSON object and the named field
// is extracted, matching the "if key is present, extracts that field from
// a JSON object secret" behaviour required of backend-specific
// implementations (§4.J).
type JSONFieldExtractor struct {
	Backend Manager
}

// Resolve implements Manager.
func (e JSONFieldExtractor) Resolve(ctx context.Context, ref Reference) (string, error) {
	raw, err := e.Backend.Resolve(ctx, Reference{SecretName: ref.SecretName})
	if err != nil {
		return "", &ResolutionError{Reference: ref, Err: err}
	}
	if ref.Key == "" {
		return raw, nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return "", &ResolutionError{Reference: ref, Err: fmt.Errorf("secret %q is not a JSON object: %w", ref.SecretName, err)}
	}
	v, ok := obj[ref.Key]
	if !ok {
		return "", &ResolutionError{Reference: ref, Err: fmt.Errorf("secret %q has no field %q", ref.SecretName, ref.Key)}
	}
	s, ok := v.(string)
	if !ok {
		return "", &ResolutionError{Reference: ref, Err: fmt.Errorf("secret %q field %q is not a string", ref.SecretName, ref.Key)}
	}
	return s, nil
}
