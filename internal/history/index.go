package history

import "slices"

// Index is an ID lookup over a prompt snapshot. It is built once
// per call and never mutates the snapshot it was built from.
type Index struct {
	byID     map[string]Prompt
	children map[string][]string
	order    []string // snapshot order, for stable iteration
}

// NewIndex builds an Index in O(n). When IDs repeat, the last
// record wins.
func NewIndex(snapshot []Prompt) *Index {
	idx := &Index{
		byID:     make(map[string]Prompt, len(snapshot)),
		children: make(map[string][]string),
		order:    make([]string, 0, len(snapshot)),
	}
	for _, p := range snapshot {
		if _, dup := idx.byID[p.ID]; !dup {
			idx.order = append(idx.order, p.ID)
		}
		idx.byID[p.ID] = p
	}
	for _, id := range idx.order {
		p := idx.byID[id]
		if p.ParentID != "" && p.ParentID != p.ID {
			idx.children[p.ParentID] = append(
				idx.children[p.ParentID], id,
			)
		}
	}
	return idx
}

// Len returns the number of distinct prompts.
func (idx *Index) Len() int { return len(idx.byID) }

// Get looks up a prompt by ID.
func (idx *Index) Get(id string) (Prompt, bool) {
	p, ok := idx.byID[id]
	return p, ok
}

// Children returns the IDs of the direct children of id in
// snapshot order.
func (idx *Index) Children(id string) []string {
	return slices.Clone(idx.children[id])
}

// Leaves returns every prompt without children, in snapshot
// order. Each leaf is the tip of one branch.
func (idx *Index) Leaves() []Prompt {
	var leaves []Prompt
	for _, id := range idx.order {
		if len(idx.children[id]) == 0 {
			leaves = append(leaves, idx.byID[id])
		}
	}
	return leaves
}

// Descendants returns id followed by every prompt below it,
// breadth first. A cycle cannot make it loop: each ID is
// emitted once.
func (idx *Index) Descendants(id string) []string {
	seen := map[string]bool{id: true}
	out := []string{id}
	for i := 0; i < len(out); i++ {
		for _, kid := range idx.children[out[i]] {
			if seen[kid] {
				continue
			}
			seen[kid] = true
			out = append(out, kid)
		}
	}
	return out
}
