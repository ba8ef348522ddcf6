// Package steps implements the canonical executors (§4.G): the shape
// operators (Echo, Construct, Explode, Collect, Aggregate, FieldExtractor),
// the Decoder, LLM inference, tool invocation, sources/sinks, and search.
// Each constructor returns an exec.Processor or exec.BatchProcessor wired
// into an *exec.Base/*exec.BatchedBase by the caller (the flow-compilation
// step that turns a resolve.Document into a runner.Run-ready executor map,
// which lives outside this package per §4.H's separation of concerns).
package steps

import "encoding/json"

// decodeFields round-trips a step's raw Fields map through JSON into a
// typed config struct. This is the same technique exec/cache_codec.go uses
// for jsonvalue payloads; no third-party decoder (e.g. mapstructure) is a
// direct dependency anywhere in the example pack, so stdlib encoding/json
// is the stack-consistent choice for "decode a map[string]any into a
// struct" rather than a stdlib fallback (see DESIGN.md).
func decodeFields(fields map[string]any, target any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}
