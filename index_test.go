package supplychain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func link(provider, process ProcessID) ProcessLink {
	return ProcessLink{ProviderID: provider, ProcessID: process, FlowID: 1}
}

func TestLinksTouching_BothRoles(t *testing.T) {
	idx := NewLinkIndex([]ProcessLink{link(2, 1), link(1, 3), link(4, 5)})

	assert.ElementsMatch(t, []ProcessLink{link(2, 1), link(1, 3)}, idx.LinksTouching(1))
	assert.ElementsMatch(t, []ProcessLink{link(4, 5)}, idx.LinksTouching(5))
	assert.Empty(t, idx.LinksTouching(99))
}

func TestLinksTouching_SelfLoopOnce(t *testing.T) {
	idx := NewLinkIndex([]ProcessLink{link(1, 1), link(2, 1)})

	// The self-loop is registered under both roles of process 1 but must be
	// returned a single time.
	assert.Equal(t, []ProcessLink{link(1, 1), link(2, 1)}, idx.LinksTouching(1))
}

func TestLinksTouchingAny_Union(t *testing.T) {
	idx := NewLinkIndex([]ProcessLink{link(2, 1), link(3, 2), link(4, 5)})

	got := idx.LinksTouchingAny(1, 2, 3)
	assert.ElementsMatch(t, []ProcessLink{link(2, 1), link(3, 2)}, got)
	assert.Empty(t, idx.LinksTouchingAny())
}

func TestRoleQueries(t *testing.T) {
	idx := NewLinkIndex([]ProcessLink{link(2, 1), link(3, 1), link(1, 4), link(1, 1)})

	assert.ElementsMatch(t, []ProcessLink{link(2, 1), link(3, 1), link(1, 1)}, idx.ConsumerLinks(1))
	assert.ElementsMatch(t, []ProcessLink{link(1, 4), link(1, 1)}, idx.ProviderLinks(1))
	assert.Empty(t, idx.ProviderLinks(4))
	assert.Empty(t, idx.ConsumerLinks(2))
}

func TestChainLinks_ExcludeSelfLoops(t *testing.T) {
	idx := NewLinkIndex([]ProcessLink{link(1, 1), link(2, 1), link(1, 3)})

	assert.Equal(t, []ProcessLink{link(2, 1)}, idx.ChainLinks(1, Input))
	assert.Equal(t, []ProcessLink{link(1, 3)}, idx.ChainLinks(1, Output))
	assert.Contains(t, idx.LinksTouching(1), link(1, 1))
}

func TestRemove(t *testing.T) {
	idx := NewLinkIndex([]ProcessLink{link(2, 1), link(3, 1)})

	i, ok := idx.Remove(link(2, 1))
	require.True(t, ok)
	assert.Equal(t, 0, i)
	assert.Equal(t, []ProcessLink{link(3, 1)}, idx.LinksTouching(1))
	assert.Empty(t, idx.LinksTouching(2))
	assert.False(t, idx.Contains(2))
	assert.False(t, idx.Has(link(2, 1)))
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, 2, idx.Slots())

	i, ok = idx.Remove(link(2, 1))
	assert.False(t, ok)
	assert.Equal(t, -1, i)
}

func TestRemove_PrunesEmptyRoleEntries(t *testing.T) {
	idx := NewLinkIndex([]ProcessLink{link(2, 1)})
	idx.Remove(link(2, 1))

	assert.Empty(t, idx.providers)
	assert.Empty(t, idx.consumers)
}

func TestInsert_ReusesLowestTombstone(t *testing.T) {
	idx := NewLinkIndex([]ProcessLink{link(1, 2), link(2, 3), link(3, 4), link(4, 5)})
	idx.Remove(link(3, 4))
	idx.Remove(link(1, 2))

	assert.Equal(t, 0, idx.Insert(link(7, 8)))
	assert.Equal(t, 2, idx.Insert(link(8, 9)))
	assert.Equal(t, 4, idx.Insert(link(9, 10)))
	assert.Equal(t, 5, idx.Slots())
}

func TestInsert_EqualLinkKeepsSlot(t *testing.T) {
	idx := NewLinkIndex([]ProcessLink{link(1, 2), link(2, 3)})
	idx.Remove(link(1, 2))

	// Re-inserting a live link must not take the free slot.
	assert.Equal(t, 1, idx.Insert(link(2, 3)))
	assert.Equal(t, 0, idx.Insert(link(5, 6)))
	assert.Equal(t, 2, idx.Slots())
	assert.Equal(t, []ProcessLink{link(2, 3)}, idx.ConsumerLinks(3))
}

func TestNewLinkIndex_CollapsesDuplicates(t *testing.T) {
	idx := NewLinkIndex([]ProcessLink{link(1, 2), link(1, 2)})

	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, 1, idx.Slots())
	assert.Equal(t, []ProcessLink{link(1, 2)}, idx.LinksTouching(1))
}

func TestRemoveAll(t *testing.T) {
	idx := NewLinkIndex([]ProcessLink{link(1, 2), link(2, 3), link(3, 4)})
	idx.RemoveAll([]ProcessLink{link(3, 4), link(1, 2), link(9, 9)})

	assert.Equal(t, []ProcessLink{link(2, 3)}, idx.Links())
}

func TestIndex_RoundTripAgainstReference(t *testing.T) {
	// Interleave inserts and removes and compare every query with a plain
	// set of live links.
	idx := NewLinkIndex(nil)
	live := map[ProcessLink]bool{}
	ops := []struct {
		insert bool
		l      ProcessLink
	}{
		{true, link(1, 2)}, {true, link(2, 3)}, {true, link(3, 1)},
		{false, link(2, 3)}, {true, link(3, 3)}, {true, link(4, 2)},
		{false, link(1, 2)}, {false, link(7, 7)}, {true, link(2, 3)},
		{true, link(1, 2)}, {false, link(3, 3)}, {true, link(5, 1)},
	}
	highWater := 0
	for _, op := range ops {
		if op.insert {
			idx.Insert(op.l)
			live[op.l] = true
		} else {
			idx.Remove(op.l)
			delete(live, op.l)
		}
		highWater = max(highWater, len(live))
		assert.LessOrEqual(t, idx.Slots(), highWater)

		for id := ProcessID(1); id <= 7; id++ {
			var want []ProcessLink
			for l := range live {
				if l.ProviderID == id || l.ProcessID == id {
					want = append(want, l)
				}
			}
			assert.ElementsMatch(t, want, idx.LinksTouching(id), "process %d", id)
		}
	}
	assert.Equal(t, len(live), idx.Len())
}
