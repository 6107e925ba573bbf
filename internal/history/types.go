// Package history reconstructs linear conversation paths from
// flat, parent-linked prompt records and assembles the scroll
// preamble that precedes every request.
package history

import "strings"

// Prompt is one request/response pair. An empty ParentID marks a
// root; an empty Response marks a request still awaiting an
// answer.
type Prompt struct {
	ID        string `json:"id" validate:"required"`
	ProjectID string `json:"project_id" validate:"required"`
	ParentID  string `json:"parent_id,omitempty"`
	Request   string `json:"request"`
	Response  string `json:"response"`
	CreatedAt string `json:"created_at"`
}

// IsRoot reports whether p has no parent.
func (p Prompt) IsRoot() bool { return p.ParentID == "" }

// IsPending reports whether p has not been answered yet.
func (p Prompt) IsPending() bool { return p.Response == "" }

// Scroll is a context document attached to a project.
type Scroll struct {
	ID        string `json:"id" validate:"required"`
	ProjectID string `json:"project_id" validate:"required"`
	Source    string `json:"source" validate:"required"`
	Content   string `json:"content"`
	Position  int    `json:"position" validate:"gte=0"`
}

// Project is a directory whose conversation is mirrored into a
// single canvas document.
type Project struct {
	ID        string `json:"id" validate:"required"`
	Path      string `json:"path" validate:"required"`
	Head      string `json:"head,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Chain is a root-first sequence of prompts. It is never stored.
type Chain []Prompt

// Leaf returns the last prompt of the chain and false when the
// chain is empty.
func (c Chain) Leaf() (Prompt, bool) {
	if len(c) == 0 {
		return Prompt{}, false
	}
	return c[len(c)-1], true
}

// IDs returns the prompt IDs in chain order.
func (c Chain) IDs() []string {
	ids := make([]string, len(c))
	for i, p := range c {
		ids[i] = p.ID
	}
	return ids
}

// String renders the chain as "a -> b -> c".
func (c Chain) String() string {
	return strings.Join(c.IDs(), " -> ")
}
