// Package flow implements the message and session model (§3, §4.E):
// FlowMessage, Session, and the UNSET sentinel. FlowMessage is the
// immutable unit that streams between StepExecutors; Session is the
// by-reference conversational container shared across every message
// produced from one initial input.
package flow

import (
	"maps"

	"github.com/bazaarvoice/qtype/internal/jsonvalue"
)

// StepError is attached to a FlowMessage when a step fails (§7). Failed
// messages flow through the pipeline and are filtered (not processed) by
// each executor until final collection (§4.F.1 step 1).
type StepError struct {
	StepID        string
	ErrorMessage  string
	ExceptionType string
}

// Error implements the error interface so StepError can be wrapped with
// fmt.Errorf/%w and matched with errors.As by callers that only hold an
// error value.
func (e *StepError) Error() string {
	if e == nil {
		return ""
	}
	return e.StepID + ": " + e.ErrorMessage
}

// FlowMessage is the immutable record flowing between steps (§3, §4.E). It
// carries variable values, failure state, and telemetry metadata. Every
// enrichment produces a new FlowMessage via copy-on-write; prior messages
// remain valid and safe to retain for audit (§3 Lifecycle).
type FlowMessage struct {
	Session   *Session
	variables map[string]jsonvalue.Value
	Err       *StepError
	Metadata  map[string]any
}

// New constructs a FlowMessage with the given session and an empty
// variable map. Passing a nil session is valid for Complete-mode flows
// that never reference session state.
func New(session *Session) FlowMessage {
	return FlowMessage{Session: session, variables: map[string]jsonvalue.Value{}, Metadata: map[string]any{}}
}

// CopyWithVariables returns a new message with updates merged into the
// existing variable map (merge, not replace); used for successful steps
// per §4.E.
func (m FlowMessage) CopyWithVariables(updates map[string]jsonvalue.Value) FlowMessage {
	next := FlowMessage{
		Session:  m.Session,
		Err:      m.Err,
		Metadata: maps.Clone(m.Metadata),
	}
	next.variables = maps.Clone(m.variables)
	if next.variables == nil {
		next.variables = map[string]jsonvalue.Value{}
	}
	for k, v := range updates {
		next.variables[k] = v
	}
	return next
}

// CopyWithError returns a failed copy of m, used at a step boundary when an
// exception escapes process_message/process_batch (§4.E).
func (m FlowMessage) CopyWithError(stepID, errorMessage, exceptionType string) FlowMessage {
	next := m
	next.variables = maps.Clone(m.variables)
	next.Metadata = maps.Clone(m.Metadata)
	next.Err = &StepError{StepID: stepID, ErrorMessage: errorMessage, ExceptionType: exceptionType}
	return next
}

// IsFailed reports whether the message carries a step error.
func (m FlowMessage) IsFailed() bool {
	return m.Err != nil
}

// IsSet distinguishes UNSET from a value of Null: it is false both when
// the key is absent and when the key is present but holds jsonvalue.Unset.
func (m FlowMessage) IsSet(varID string) bool {
	v, ok := m.variables[varID]
	if !ok {
		return false
	}
	return !jsonvalue.IsUnset(v)
}

// GetVariable returns the value bound to varID. If the variable is unset
// (absent or explicitly UNSET) and required is true, ok is false and
// callers should treat this as a runtime error (§4.E "raises if required
// and unset"); if required is false, jsonvalue.Null is returned with ok
// true as the default semantics for optional variables.
func (m FlowMessage) GetVariable(varID string, required bool) (jsonvalue.Value, bool) {
	if !m.IsSet(varID) {
		if required {
			return nil, false
		}
		return jsonvalue.Null{}, true
	}
	return m.variables[varID], true
}

// Variables returns a read-only snapshot of the variable map, including any
// UNSET entries. Use MarshalVariables to obtain the serialization-safe view.
func (m FlowMessage) Variables() map[string]jsonvalue.Value {
	return maps.Clone(m.variables)
}

// MarshalVariables returns the variable map with UNSET entries elided, the
// wire representation described in §4.E ("Serialization elides UNSET
// variables; None is preserved").
func (m FlowMessage) MarshalVariables() map[string]jsonvalue.Value {
	out := make(map[string]jsonvalue.Value, len(m.variables))
	for k, v := range m.variables {
		if jsonvalue.IsUnset(v) {
			continue
		}
		out[k] = v
	}
	return out
}
