package loader

import (
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/bazaarvoice/qtype/dsl"
)

// Load reads the YAML document at path (local file path or URL), expanding
// ${VAR}/${VAR:default} substitutions and splicing !include/!include_raw
// tags (§4.C), and returns the surface dsl.Document. .env files in the
// current working directory and the document's directory are auto-loaded
// first (CWD takes precedence), per §4.C.
func Load(path string) (dsl.Document, error) {
	baseDir := filepath.Dir(path)
	if isRemote(path) {
		baseDir = "."
	}
	if err := loadDotEnvFiles(baseDir); err != nil {
		return dsl.Document{}, wrap(path, err)
	}

	raw, err := readFileOrURL(path)
	if err != nil {
		return dsl.Document{}, wrap(path, err)
	}
	return parse(raw, baseDir, path)
}

// LoadBytes parses an in-memory YAML document as if it had been loaded
// from baseDir, applying the same expansion/include rules as Load. Useful
// for tests and embedded documents.
func LoadBytes(raw []byte, baseDir string) (dsl.Document, error) {
	return parse(raw, baseDir, "<bytes>")
}

func parse(raw []byte, baseDir, path string) (dsl.Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return dsl.Document{}, wrap(path, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return dsl.Document{}, nil
	}
	body := root.Content[0]
	if err := expandNode(body, baseDir); err != nil {
		return dsl.Document{}, wrap(path, err)
	}

	var decoded rawDocument
	if err := body.Decode(&decoded); err != nil {
		return dsl.Document{}, wrap(path, err)
	}
	return decoded.toDocument(), nil
}
