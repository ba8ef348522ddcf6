package loader_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarvoice/qtype/dsl"
	"github.com/bazaarvoice/qtype/loader"
)

func TestLoadBytesExpandsEnvVars(t *testing.T) {
	require.NoError(t, os.Setenv("QTYPE_TEST_MODEL", "gpt-4o"))
	defer os.Unsetenv("QTYPE_TEST_MODEL")

	doc, err := loader.LoadBytes([]byte(`
models:
  - id: primary
    provider: openai
    model_id: ${QTYPE_TEST_MODEL}
`), t.TempDir())
	require.NoError(t, err)
	require.Len(t, doc.Models, 1)
	assert.Equal(t, "gpt-4o", doc.Models[0].ModelID)
}

func TestLoadBytesEnvVarDefault(t *testing.T) {
	os.Unsetenv("QTYPE_TEST_REGION")
	doc, err := loader.LoadBytes([]byte(`
models:
  - id: primary
    provider: bedrock
    model_id: m1
    region: ${QTYPE_TEST_REGION:us-east-1}
`), t.TempDir())
	require.NoError(t, err)
	require.Len(t, doc.Models, 1)
	assert.Equal(t, "us-east-1", doc.Models[0].Config["region"])
}

func TestLoadBytesMissingRequiredEnvVarFails(t *testing.T) {
	os.Unsetenv("QTYPE_TEST_MISSING")
	_, err := loader.LoadBytes([]byte(`
models:
  - id: primary
    provider: openai
    model_id: ${QTYPE_TEST_MISSING}
`), t.TempDir())
	require.Error(t, err)
	var lerr *loader.Error
	require.ErrorAs(t, err, &lerr)
}

func TestLoadIncludeSplicesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/tools.yaml", []byte(`
- id: search_tool
  type: http
  url: https://example.com/search
  method: GET
`), 0o644))
	require.NoError(t, os.WriteFile(dir+"/main.yaml", []byte(`
tools: !include tools.yaml
`), 0o644))

	doc, err := loader.Load(dir + "/main.yaml")
	require.NoError(t, err)
	require.Len(t, doc.Tools, 1)
	assert.Equal(t, "search_tool", doc.Tools[0].ID)
	assert.Equal(t, dsl.ToolHTTP, doc.Tools[0].Kind)
}

func TestLoadIncludeRawInlinesString(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/prompt.txt", []byte("You are a helpful assistant."), 0o644))
	require.NoError(t, os.WriteFile(dir+"/main.yaml", []byte(`
variables:
  - id: system_prompt
    type: text
    description: !include_raw prompt.txt
`), 0o644))

	doc, err := loader.Load(dir + "/main.yaml")
	require.NoError(t, err)
	require.Len(t, doc.Variables, 1)
	assert.Equal(t, "You are a helpful assistant.", doc.Variables[0].Description)
}
