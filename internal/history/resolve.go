package history

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrMissingParent means a ParentID points outside the
	// snapshot.
	ErrMissingParent = errors.New("parent prompt not found")
	// ErrCycle means a prompt was reached twice while walking
	// toward the root.
	ErrCycle = errors.New("prompt parent cycle")
)

// DataIntegrityError reports a broken parent link found during
// strict resolution.
type DataIntegrityError struct {
	PromptID string // node whose parent link is broken
	ParentID string
	Err      error // ErrMissingParent or ErrCycle
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf(
		"prompt %s -> parent %s: %v",
		e.PromptID, e.ParentID, e.Err,
	)
}

func (e *DataIntegrityError) Unwrap() error { return e.Err }

type resolveOptions struct {
	strict bool
}

// ResolveOption configures Resolve.
type ResolveOption func(*resolveOptions)

// Strict makes Resolve return a *DataIntegrityError instead of
// silently truncating at a missing parent or a cycle.
func Strict() ResolveOption {
	return func(o *resolveOptions) { o.strict = true }
}

// WithStrict is Strict when on is true and a no-op otherwise.
func WithStrict(on bool) ResolveOption {
	return func(o *resolveOptions) { o.strict = on }
}

// Resolve returns the root-to-leaf chain ending at leaf. The leaf
// is used as given and does not need to be in the snapshot.
//
// The walk follows ParentID through an index built once from the
// snapshot and marks every visited ID, so a self-reference or a
// cycle ends the walk instead of looping. It stops at an empty
// ParentID, or at a parent missing from the snapshot. In the
// default lenient mode both truncations return the partial chain
// and a nil error. With Strict the partial chain is returned
// alongside a *DataIntegrityError.
func Resolve(
	snapshot []Prompt, leaf Prompt, opts ...ResolveOption,
) (Chain, error) {
	var o resolveOptions
	for _, opt := range opts {
		opt(&o)
	}
	return resolveIndexed(NewIndex(snapshot), leaf, o)
}

// ResolveID looks leafID up in the snapshot and resolves its
// chain. Unlike Resolve, an unknown leaf is an error in both
// modes.
func ResolveID(
	snapshot []Prompt, leafID string, opts ...ResolveOption,
) (Chain, error) {
	var o resolveOptions
	for _, opt := range opts {
		opt(&o)
	}
	idx := NewIndex(snapshot)
	leaf, ok := idx.Get(leafID)
	if !ok {
		return nil, fmt.Errorf("prompt %s not in snapshot", leafID)
	}
	return resolveIndexed(idx, leaf, o)
}

func resolveIndexed(
	idx *Index, leaf Prompt, o resolveOptions,
) (Chain, error) {
	visited := map[string]bool{leaf.ID: true}
	path := Chain{leaf}
	cur := leaf

	var err error
	for cur.ParentID != "" {
		if visited[cur.ParentID] {
			err = &DataIntegrityError{
				PromptID: cur.ID, ParentID: cur.ParentID,
				Err: ErrCycle,
			}
			break
		}
		parent, ok := idx.Get(cur.ParentID)
		if !ok {
			err = &DataIntegrityError{
				PromptID: cur.ID, ParentID: cur.ParentID,
				Err: ErrMissingParent,
			}
			break
		}
		visited[parent.ID] = true
		path = append(path, parent)
		cur = parent
	}

	slices.Reverse(path)
	if o.strict {
		return path, err
	}
	return path, nil
}
