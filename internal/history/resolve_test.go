package history

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prompt(id, parent string) Prompt {
	return Prompt{
		ID:        id,
		ProjectID: "proj",
		ParentID:  parent,
		Request:   "req " + id,
		Response:  "resp " + id,
	}
}

// branchingSnapshot returns
//
//	a -> b -> c -> d
//	     b -> e -> f
//	a -> g
func branchingSnapshot() []Prompt {
	return []Prompt{
		prompt("f", "e"),
		prompt("a", ""),
		prompt("c", "b"),
		prompt("g", "a"),
		prompt("b", "a"),
		prompt("e", "b"),
		prompt("d", "c"),
	}
}

func TestResolveFollowsParents(t *testing.T) {
	snap := branchingSnapshot()
	idx := NewIndex(snap)

	tests := []struct {
		leaf string
		want []string
	}{
		{"a", []string{"a"}},
		{"d", []string{"a", "b", "c", "d"}},
		{"f", []string{"a", "b", "e", "f"}},
		{"g", []string{"a", "g"}},
		{"e", []string{"a", "b", "e"}},
	}
	for _, tt := range tests {
		t.Run(tt.leaf, func(t *testing.T) {
			leaf, ok := idx.Get(tt.leaf)
			require.True(t, ok)

			chain, err := Resolve(snap, leaf)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, chain.IDs()); diff != "" {
				t.Fatalf("chain mismatch (-want +got):\n%s", diff)
			}

			assert.Empty(t, chain[0].ParentID, "root parent")
			for i := 1; i < len(chain); i++ {
				assert.Equal(t, chain[i-1].ID, chain[i].ParentID)
			}
		})
	}
}

func TestResolveDoesNotMutateSnapshot(t *testing.T) {
	snap := branchingSnapshot()
	before := append([]Prompt(nil), snap...)

	_, err := Resolve(snap, prompt("d", "c"))
	require.NoError(t, err)

	if diff := cmp.Diff(before, snap); diff != "" {
		t.Fatalf("snapshot changed (-before +after):\n%s", diff)
	}
}

func TestResolveEmptySnapshot(t *testing.T) {
	leaf := prompt("x", "missing")
	chain, err := Resolve(nil, leaf)
	require.NoError(t, err)
	assert.Equal(t, Chain{leaf}, chain)
}

func TestResolveLeafNotInSnapshot(t *testing.T) {
	snap := branchingSnapshot()
	leaf := prompt("new", "c")

	chain, err := Resolve(snap, leaf)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "new"}, chain.IDs())
}

func TestResolveSelfReference(t *testing.T) {
	snap := []Prompt{
		prompt("loop", "loop"),
		prompt("leaf", "loop"),
	}
	leaf := snap[1]

	chain, err := Resolve(snap, leaf)
	require.NoError(t, err)
	assert.Equal(t, []string{"loop", "leaf"}, chain.IDs())

	chain, err = Resolve(snap, snap[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"loop"}, chain.IDs())
}

func TestResolveCycleTerminates(t *testing.T) {
	snap := []Prompt{
		prompt("a", "c"),
		prompt("b", "a"),
		prompt("c", "b"),
	}
	chain, err := Resolve(snap, snap[2])
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, chain.IDs())
}

func TestResolveMissingParentLenient(t *testing.T) {
	snap := []Prompt{
		prompt("b", "gone"),
		prompt("c", "b"),
	}
	chain, err := Resolve(snap, snap[1])
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, chain.IDs())
}

func TestResolveStrict(t *testing.T) {
	t.Run("missing parent", func(t *testing.T) {
		snap := []Prompt{prompt("b", "gone"), prompt("c", "b")}
		chain, err := Resolve(snap, snap[1], Strict())

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingParent))
		var die *DataIntegrityError
		require.ErrorAs(t, err, &die)
		assert.Equal(t, "b", die.PromptID)
		assert.Equal(t, "gone", die.ParentID)
		assert.Equal(t, []string{"b", "c"}, chain.IDs())
	})

	t.Run("self reference", func(t *testing.T) {
		snap := []Prompt{prompt("loop", "loop")}
		_, err := Resolve(snap, snap[0], Strict())
		assert.ErrorIs(t, err, ErrCycle)
	})

	t.Run("well formed", func(t *testing.T) {
		snap := branchingSnapshot()
		chain, err := Resolve(snap, prompt("f", "e"), Strict())
		require.NoError(t, err)
		assert.Len(t, chain, 4)
	})

	t.Run("toggle off", func(t *testing.T) {
		snap := []Prompt{prompt("b", "gone")}
		_, err := Resolve(snap, snap[0], WithStrict(false))
		assert.NoError(t, err)
	})
}

func TestResolveID(t *testing.T) {
	snap := branchingSnapshot()

	chain, err := ResolveID(snap, "f")
	require.NoError(t, err)
	assert.Equal(t, "a -> b -> e -> f", chain.String())

	_, err = ResolveID(snap, "nope")
	assert.Error(t, err)
}

func TestChainLeaf(t *testing.T) {
	_, ok := Chain{}.Leaf()
	assert.False(t, ok)

	leaf, ok := Chain{prompt("a", ""), prompt("b", "a")}.Leaf()
	require.True(t, ok)
	assert.Equal(t, "b", leaf.ID)
}
