package loader

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// resolvePath resolves a path reference found in an !include/!include_raw
// tag relative to the including file's directory (§4.C): absolute paths
// and URLs with a scheme pass through unchanged.
func resolvePath(baseDir, ref string) string {
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" {
		return ref
	}
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(baseDir, ref)
}

func isRemote(path string) bool {
	u, err := url.Parse(path)
	return err == nil && u.Scheme != ""
}

func readFileOrURL(path string) ([]byte, error) {
	if isRemote(path) {
		return fetchURL(path)
	}
	return os.ReadFile(path)
}

// expandNode recursively expands environment variables in scalar nodes and
// splices !include/!include_raw tags, mutating the tree in place. baseDir
// is the directory used to resolve relative include paths at this level.
func expandNode(node *yaml.Node, baseDir string) error {
	switch node.Tag {
	case "!include":
		return spliceInclude(node, baseDir)
	case "!include_raw":
		return spliceIncludeRaw(node, baseDir)
	}

	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!str" || node.Tag == "" {
			expanded, err := expandEnvVars(node.Value)
			if err != nil {
				return err
			}
			node.Value = expanded
		}
	case yaml.MappingNode, yaml.SequenceNode, yaml.DocumentNode:
		for _, child := range node.Content {
			if err := expandNode(child, baseDir); err != nil {
				return err
			}
		}
	}
	return nil
}

func spliceInclude(node *yaml.Node, baseDir string) error {
	ref := node.Value
	path := resolvePath(baseDir, ref)
	raw, err := readFileOrURL(path)
	if err != nil {
		return wrap(path, err)
	}
	if err := loadDotEnvFiles(filepath.Dir(path)); err != nil {
		return wrap(path, err)
	}

	var included yaml.Node
	if err := yaml.Unmarshal(raw, &included); err != nil {
		return wrap(path, err)
	}
	if included.Kind != yaml.DocumentNode || len(included.Content) == 0 {
		*node = yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null"}
		return nil
	}
	spliced := included.Content[0]
	if err := expandNode(spliced, filepath.Dir(path)); err != nil {
		return err
	}
	*node = *spliced
	return nil
}

func spliceIncludeRaw(node *yaml.Node, baseDir string) error {
	path := resolvePath(baseDir, node.Value)
	raw, err := readFileOrURL(path)
	if err != nil {
		return wrap(path, err)
	}
	node.Tag = "!!str"
	node.Value = strings.TrimRight(string(raw), "\n")
	return nil
}
