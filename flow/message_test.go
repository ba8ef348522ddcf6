package flow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
)

func TestIsSetDistinguishesAbsentUnsetAndNull(t *testing.T) {
	m := flow.New(nil)

	assert.False(t, m.IsSet("missing"), "absent key must report unset")

	m = m.CopyWithVariables(map[string]jsonvalue.Value{"x": jsonvalue.Unset})
	assert.False(t, m.IsSet("x"), "explicit UNSET must report unset")

	m = m.CopyWithVariables(map[string]jsonvalue.Value{"x": jsonvalue.Null{}})
	assert.True(t, m.IsSet("x"), "explicit null is set, distinct from UNSET")
}

func TestCopyWithVariablesMergesNotReplaces(t *testing.T) {
	m := flow.New(nil).CopyWithVariables(map[string]jsonvalue.Value{"a": jsonvalue.Text("1")})
	m2 := m.CopyWithVariables(map[string]jsonvalue.Value{"b": jsonvalue.Text("2")})

	av, ok := m2.GetVariable("a", true)
	require.True(t, ok)
	assert.Equal(t, jsonvalue.Text("1"), av)

	bv, ok := m2.GetVariable("b", true)
	require.True(t, ok)
	assert.Equal(t, jsonvalue.Text("2"), bv)

	// Original message is untouched by the copy (immutability / audit safety).
	_, ok = m.GetVariable("b", true)
	assert.False(t, ok)
}

func TestCopyWithErrorMarksFailed(t *testing.T) {
	m := flow.New(nil)
	require.False(t, m.IsFailed())

	failed := m.CopyWithError("step-1", "boom", "ValueError")
	assert.True(t, failed.IsFailed())
	assert.Equal(t, "step-1", failed.Err.StepID)
	assert.False(t, m.IsFailed(), "original message must remain unfailed")
}

func TestMarshalVariablesElidesUnset(t *testing.T) {
	m := flow.New(nil).CopyWithVariables(map[string]jsonvalue.Value{
		"kept":   jsonvalue.Text("v"),
		"absent": jsonvalue.Unset,
		"null":   jsonvalue.Null{},
	})
	out := m.MarshalVariables()
	assert.Contains(t, out, "kept")
	assert.Contains(t, out, "null")
	assert.NotContains(t, out, "absent")
}
