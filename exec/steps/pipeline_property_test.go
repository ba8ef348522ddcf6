package steps_test

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/bazaarvoice/qtype/exec"
	"github.com/bazaarvoice/qtype/exec/steps"
	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
	"github.com/bazaarvoice/qtype/resolve"
)

// TestEchoPassesInputsThroughUnchangedProperty verifies §8: "For every Echo
// step with inputs V, Echo(m).variables[v] == m.variables[v] for all v ∈ V."
func TestEchoPassesInputsThroughUnchangedProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Echo rebinds each input value to its paired output unchanged", prop.ForAll(
		func(values []string) bool {
			inputs := make([]string, len(values))
			outputs := make([]string, len(values))
			vars := make(map[string]jsonvalue.Value, len(values))
			for i, v := range values {
				name := "var" + string(rune('a'+i))
				inputs[i] = name
				outputs[i] = "out" + string(rune('a'+i))
				vars[name] = jsonvalue.Text(v)
			}

			step := &resolve.Step{ID: "echo", Inputs: inputs, Outputs: outputs}
			e := steps.NewEcho(step)

			msg := newMsg(vars)
			var out flow.FlowMessage
			err := e.ProcessMessage(context.Background(), msg, func(m flow.FlowMessage) { out = m })
			if err != nil {
				return false
			}

			for i, in := range inputs {
				got, ok := out.GetVariable(outputs[i], true)
				if !ok {
					return false
				}
				want, _ := msg.GetVariable(in, true)
				if got != want {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(5, gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// TestExplodeEmitsExactlyNMessagesProperty verifies §8: "For every Explode
// step with input list L of length n, exactly n messages are emitted."
func TestExplodeEmitsExactlyNMessagesProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Explode emits one message per list element", prop.ForAll(
		func(elems []int) bool {
			step := &resolve.Step{ID: "explode", Inputs: []string{"items"}, Outputs: []string{"item"}}
			e := steps.NewExplode(step)

			list := make(jsonvalue.List, len(elems))
			for i, n := range elems {
				list[i] = jsonvalue.Int(int64(n))
			}
			msg := newMsg(map[string]jsonvalue.Value{"items": list})

			var emitted []flow.FlowMessage
			err := e.ProcessMessage(context.Background(), msg, func(m flow.FlowMessage) {
				emitted = append(emitted, m)
			})
			if err != nil {
				return false
			}
			if len(emitted) != len(elems) {
				return false
			}
			for i, n := range elems {
				v, ok := emitted[i].GetVariable("item", true)
				if !ok || v != jsonvalue.Int(int64(n)) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(-1000, 1000)),
	))

	properties.TestingRun(t)
}

// TestCollectOutputLengthMatchesInputLengthProperty verifies §8: "For every
// Collect step, the output list length equals the input stream length; the
// set of propagated variables equals the intersection of input
// variable-keysets."
func TestCollectOutputLengthMatchesInputLengthProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("Collect's output list has one element per input message", prop.ForAll(
		func(values []int) bool {
			step := &resolve.Step{ID: "collect", Inputs: []string{"n"}, Outputs: []string{"all"}}
			c := steps.NewCollect(step)
			batched := exec.NewBatchedBase("collect", c, len(values)+1)

			in := make(chan flow.FlowMessage, len(values))
			for _, v := range values {
				in <- newMsg(map[string]jsonvalue.Value{"n": jsonvalue.Int(int64(v)), "shared": jsonvalue.Text("s")})
			}
			close(in)

			var results []flow.FlowMessage
			for m := range batched.Execute(context.Background(), in) {
				results = append(results, m)
			}
			if len(results) != 1 {
				return false
			}

			all, ok := results[0].GetVariable("all", true)
			if !ok {
				return false
			}
			list, ok := all.(jsonvalue.List)
			if !ok {
				return false
			}
			if len(list) != len(values) {
				return false
			}

			// "shared" is common to every input, so it must survive; there
			// is no variable unique to a subset of inputs in this generator,
			// so the intersection is simply {shared}.
			shared, ok := results[0].GetVariable("shared", true)
			if len(values) > 0 && (!ok || shared != jsonvalue.Text("s")) {
				return false
			}
			return true
		},
		gen.SliceOf(gen.IntRange(-1000, 1000)),
	))

	properties.TestingRun(t)
}
