// Package cache implements the content-addressable executor cache (§4.F.4):
// a key-value store keyed by SHA-256 of the canonical JSON dump of an
// input FlowMessage, namespaced by {directory, namespace, step_id,
// version}. The store has no auto-eviction; callers choose a cache root
// and version string.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Store is the cache backend contract. Implementations must honor
// single-writer-per-key semantics (§5): concurrent writes to the same key
// yield the same value, since the key is a content fingerprint.
type Store interface {
	Get(ctx context.Context, namespace, stepID, version, key string) ([]byte, bool, error)
	Put(ctx context.Context, namespace, stepID, version, key string, value []byte) error
}

// Fingerprint computes the SHA-256 hex digest of the canonical JSON
// encoding of payload (§4.F.4). Map keys are sorted before encoding so
// that semantically identical payloads with differently-ordered map
// construction still produce the same fingerprint.
func Fingerprint(payload any) (string, error) {
	canon, err := canonicalize(payload)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(canon)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalize round-trips payload through JSON so that map keys are
// ordered deterministically by json.Marshal's own sorted-map-key guarantee
// for map[string]any, and recursively normalizes nested structures.
func canonicalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return sortedCopy(generic), nil
}

func sortedCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(t))
		for _, k := range keys {
			out[k] = sortedCopy(t[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = sortedCopy(e)
		}
		return out
	default:
		return t
	}
}
