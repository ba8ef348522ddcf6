package steps_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarvoice/qtype/exec"
	"github.com/bazaarvoice/qtype/exec/steps"
	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
	"github.com/bazaarvoice/qtype/resolve"
)

func TestFileSinkWritesAccumulatedRowsOnFinalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	step := &resolve.Step{ID: "sink", Inputs: []string{"row"}, Fields: map[string]any{"uri": path}}
	sink, err := steps.NewFileSink(step)
	require.NoError(t, err)
	batched := exec.NewBatchedBase("sink", sink, 10)

	row := jsonvalue.Object{"name": jsonvalue.Text("Ada")}
	in := make(chan flow.FlowMessage, 1)
	in <- newMsg(map[string]jsonvalue.Value{"row": row})
	close(in)

	var results []flow.FlowMessage
	for m := range batched.Execute(context.Background(), in) {
		results = append(results, m)
	}
	assert.Empty(t, results)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Ada")
}

func TestFileSinkRejectsMissingURI(t *testing.T) {
	step := &resolve.Step{ID: "sink", Inputs: []string{"row"}}
	_, err := steps.NewFileSink(step)
	assert.Error(t, err)
}
