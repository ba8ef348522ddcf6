package steps

import (
	"context"
	"fmt"
	"sync"

	"github.com/bazaarvoice/qtype/exec"
	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
	"github.com/bazaarvoice/qtype/resolve"
)

// Collect consumes the entire input stream and emits one output message
// with the concatenated list of its input variable's values (§4.G.3). Only
// variables present in every input message are propagated onto the single
// result message; variables unique to some inputs are dropped. This is a
// BatchProcessor-shaped consumer (it never emits from ProcessBatch, only
// from Finalize), wired via exec.NewBatchedBase so every message reaches
// Collect before the stream is considered exhausted.
type Collect struct {
	step *resolve.Step

	mu        sync.Mutex
	session   *flow.Session
	values    []jsonvalue.Value
	common    map[string]jsonvalue.Value
	haveFirst bool
}

// NewCollect constructs the Collect processor for step.
func NewCollect(step *resolve.Step) *Collect {
	return &Collect{step: step}
}

func (Collect) SpanKind() exec.SpanKind { return exec.SpanGeneric }

// ProcessBatch implements exec.BatchProcessor: it accumulates every message
// in the batch but never emits per-batch, since the concatenated list is
// only meaningful once the whole stream has been seen.
func (c *Collect) ProcessBatch(_ context.Context, batch []flow.FlowMessage, _ func(flow.FlowMessage)) error {
	if len(c.step.Inputs) == 0 || len(c.step.Outputs) == 0 {
		return fmt.Errorf("exec/steps: collect step %q requires one input and one output", c.step.ID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, msg := range batch {
		v, _ := msg.GetVariable(c.step.Inputs[0], false)
		c.values = append(c.values, v)
		c.session = msg.Session

		vars := msg.MarshalVariables()
		if !c.haveFirst {
			c.common = make(map[string]jsonvalue.Value, len(vars))
			for k, val := range vars {
				c.common[k] = val
			}
			c.haveFirst = true
			continue
		}
		for k := range c.common {
			if _, ok := vars[k]; !ok {
				delete(c.common, k)
			}
		}
	}
	return nil
}

// Finalize emits the single collected message (§4.F.1 step 7).
func (c *Collect) Finalize(_ context.Context, emit func(flow.FlowMessage)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.step.Outputs) == 0 {
		return nil
	}
	updates := make(map[string]jsonvalue.Value, len(c.common)+1)
	for k, v := range c.common {
		updates[k] = v
	}
	updates[c.step.Outputs[0]] = jsonvalue.List(c.values)

	emit(flow.New(c.session).CopyWithVariables(updates))
	return nil
}
