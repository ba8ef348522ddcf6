package exec

import (
	"encoding/json"

	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
)

// cachedPayload is the on-disk/on-wire shape of a cached step output
// (§4.F.4): the output message's variables (UNSET already elided by
// FlowMessage.MarshalVariables) plus its failure state, if any.
type cachedPayload struct {
	Variables map[string]any `json:"variables,omitempty"`
	StepID    string         `json:"step_id,omitempty"`
	Message   string         `json:"message,omitempty"`
	Exception string         `json:"exception,omitempty"`
}

func encodeCachedPayload(msg flow.FlowMessage) ([]byte, error) {
	p := cachedPayload{}
	plain := map[string]any{}
	for k, v := range msg.MarshalVariables() {
		raw, err := jsonvalue.MarshalJSON(v)
		if err != nil {
			return nil, err
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, err
		}
		plain[k] = decoded
	}
	p.Variables = plain
	if msg.Err != nil {
		p.StepID = msg.Err.StepID
		p.Message = msg.Err.ErrorMessage
		p.Exception = msg.Err.ExceptionType
	}
	return json.Marshal(p)
}

// decodeCachedPayload reconstructs the cached output onto originalInput,
// preserving its Session by reference (§3).
func decodeCachedPayload(data []byte, originalInput flow.FlowMessage) (flow.FlowMessage, error) {
	var p cachedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return flow.FlowMessage{}, err
	}
	updates := make(map[string]jsonvalue.Value, len(p.Variables))
	for k, v := range p.Variables {
		updates[k] = jsonvalue.FromPlain(v)
	}
	result := originalInput.CopyWithVariables(updates)
	if p.Message != "" || p.Exception != "" {
		result = result.CopyWithError(p.StepID, p.Message, p.Exception)
	}
	return result, nil
}
