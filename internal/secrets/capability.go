package secrets

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotPermitted is returned by a Handle when a caller names a secret id or file name outside its allow-list.
var ErrNotPermitted = errors.New("secrets: not permitted for this handle")

// Handle is the scoped view of a Store issued once per module by the (out-of-scope) capability-issuance layer: a
// subset of the Store API restricted to a named allow-list of secret ids and file names (§6.3, GLOSSARY). The Core
// never calls Store directly; it receives a Handle.
type Handle struct {
	store      *Store
	secretIDs  map[string]bool
	fileNames  map[string]bool
}

// NewHandle scopes store to the given secret ids and file names.
func NewHandle(store *Store, secretIDs, fileNames []string) *Handle {
	h := &Handle{store: store, secretIDs: make(map[string]bool, len(secretIDs)), fileNames: make(map[string]bool, len(fileNames))}
	for _, id := range secretIDs {
		h.secretIDs[id] = true
	}
	for _, name := range fileNames {
		h.fileNames[name] = true
	}
	return h
}

func (h *Handle) Retrieve(ctx context.Context, secretID string) (string, error) {
	if !h.secretIDs[secretID] {
		return "", fmt.Errorf("%w: secret %q", ErrNotPermitted, secretID)
	}
	return h.store.Retrieve(ctx, secretID)
}

func (h *Handle) Read(ctx context.Context, name string) (string, error) {
	if !h.fileNames[name] {
		return "", fmt.Errorf("%w: file %q", ErrNotPermitted, name)
	}
	return h.store.Read(ctx, name)
}

func (h *Handle) Save(ctx context.Context, name, content string) error {
	if !h.fileNames[name] {
		return fmt.Errorf("%w: file %q", ErrNotPermitted, name)
	}
	return h.store.Save(ctx, name, content)
}

func (h *Handle) ReadJSON(ctx context.Context, name string) (map[string]any, error) {
	if !h.fileNames[name] {
		return nil, fmt.Errorf("%w: file %q", ErrNotPermitted, name)
	}
	return h.store.ReadJSON(ctx, name)
}

func (h *Handle) SaveJSON(ctx context.Context, name string, value map[string]any) error {
	if !h.fileNames[name] {
		return fmt.Errorf("%w: file %q", ErrNotPermitted, name)
	}
	return h.store.SaveJSON(ctx, name, value)
}
