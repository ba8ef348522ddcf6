package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

// FSStore is a local-filesystem Store, the default backend (§4.F.4 "the
// user chooses a cache-root path"). Layout follows §6 persisted state:
// {root}/{namespace}/{step_id}/{version}/{key}.
type FSStore struct {
	Root string
}

// NewFSStore constructs an FSStore rooted at root.
func NewFSStore(root string) *FSStore {
	return &FSStore{Root: root}
}

func (s *FSStore) path(namespace, stepID, version, key string) string {
	return filepath.Join(s.Root, namespace, stepID, version, key)
}

// Get implements Store.
func (s *FSStore) Get(_ context.Context, namespace, stepID, version, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(namespace, stepID, version, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Put implements Store.
func (s *FSStore) Put(_ context.Context, namespace, stepID, version, key string, value []byte) error {
	p := s.path(namespace, stepID, version, key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, value, 0o644)
}
