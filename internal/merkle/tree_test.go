package merkle

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HamzaZF/zeth-client/internal/field"
)

func randomLeaves(t *testing.T, n int) []fr.Element {
	t.Helper()
	out := make([]fr.Element, n)
	for i := range out {
		e, err := field.RandomScalar()
		require.NoError(t, err)
		out[i] = e
	}
	return out
}

// naiveRoot hashes a fully materialized bottom layer.
func naiveRoot(depth int, leaves []fr.Element) fr.Element {
	layer := make([]fr.Element, 1<<uint(depth))
	copy(layer, leaves)
	for len(layer) > 1 {
		next := make([]fr.Element, len(layer)/2)
		for i := range next {
			next[i] = HashNode(layer[2*i], layer[2*i+1])
		}
		layer = next
	}
	return layer[0]
}

func TestEmptyRoot(t *testing.T) {
	tree, err := New(4)
	require.NoError(t, err)
	root := tree.Root()
	want := naiveRoot(4, nil)
	assert.True(t, root.Equal(&want))
	empty := EmptyRoot(4)
	assert.True(t, root.Equal(&empty))
}

func TestIncrementalRootMatchesNaive(t *testing.T) {
	const depth = 4
	tree, err := New(depth)
	require.NoError(t, err)
	leaves := randomLeaves(t, 1<<depth)
	for i, l := range leaves {
		idx, err := tree.Append(l)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), idx)
		got := tree.Root()
		want := naiveRoot(depth, leaves[:i+1])
		require.True(t, got.Equal(&want), "after %d leaves", i+1)
	}

	_, err = tree.Append(leaves[0])
	assert.ErrorIs(t, err, ErrTreeFull)
}

func TestPathRoundTrip(t *testing.T) {
	const depth = 5
	tree, err := New(depth)
	require.NoError(t, err)
	leaves := randomLeaves(t, 11)
	_, err = tree.AppendBatch(leaves...)
	require.NoError(t, err)
	root := tree.Root()

	for i := range leaves {
		p, err := tree.ComputePath(uint64(i))
		require.NoError(t, err)
		require.Equal(t, depth, p.Depth())
		got, err := RecomputeRoot(leaves[i], p)
		require.NoError(t, err)
		assert.True(t, got.Equal(&root), "leaf %d", i)
		assert.True(t, Verify(root, leaves[i], p))

		// wrong leaf or position
		other := leaves[(i+1)%len(leaves)]
		assert.False(t, Verify(root, other, p))
		moved := *p
		moved.Index ^= 1
		assert.False(t, Verify(root, leaves[i], &moved))
	}
}

func TestComputePathOutOfRange(t *testing.T) {
	tree, err := New(3)
	require.NoError(t, err)
	_, err = tree.AppendBatch(randomLeaves(t, 3)...)
	require.NoError(t, err)

	_, err = tree.ComputePath(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = tree.ComputePath(8)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	p, err := tree.ComputePath(0)
	require.NoError(t, err)
	p.Index = 8
	_, err = RecomputeRoot(fr.Element{}, p)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestSnapshotPathGoesStale(t *testing.T) {
	tree, err := New(4)
	require.NoError(t, err)
	leaves := randomLeaves(t, 6)
	_, err = tree.AppendBatch(leaves[:3]...)
	require.NoError(t, err)

	old, err := tree.ComputePath(1)
	require.NoError(t, err)
	oldRoot := tree.Root()

	_, err = tree.AppendBatch(leaves[3:]...)
	require.NoError(t, err)
	newRoot := tree.Root()

	// the old path still proves membership under the old root only
	assert.True(t, Verify(oldRoot, leaves[1], old))
	assert.False(t, Verify(newRoot, leaves[1], old))

	fresh, err := tree.ComputePath(1)
	require.NoError(t, err)
	assert.True(t, Verify(newRoot, leaves[1], fresh))

	snap, err := tree.Snapshot(3)
	require.NoError(t, err)
	snapRoot := snap.Root()
	assert.True(t, snapRoot.Equal(&oldRoot))
	assert.Equal(t, uint64(3), snap.Size())

	_, err = tree.Snapshot(7)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestRootIsFunctionOfLeaves(t *testing.T) {
	leaves := randomLeaves(t, 7)
	a, err := New(6)
	require.NoError(t, err)
	b, err := New(6)
	require.NoError(t, err)
	for _, l := range leaves {
		_, err := a.Append(l)
		require.NoError(t, err)
	}
	_, err = b.AppendBatch(leaves...)
	require.NoError(t, err)
	ra, rb := a.Root(), b.Root()
	assert.True(t, ra.Equal(&rb))

	c := a.Clone()
	_, err = c.Append(leaves[0])
	require.NoError(t, err)
	rc := c.Root()
	assert.False(t, rc.Equal(&ra))
	assert.Equal(t, uint64(7), a.Size())
}

func TestInvalidDepth(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, ErrInvalidDepth)
	_, err = New(MaxDepth + 1)
	assert.ErrorIs(t, err, ErrInvalidDepth)
}

func TestZeroPath(t *testing.T) {
	p := ZeroPath(4)
	assert.Equal(t, 4, p.Depth())
	for _, b := range p.Bits() {
		assert.False(t, b)
	}
	_, err := RecomputeRoot(fr.Element{}, p)
	assert.NoError(t, err)
}

// countHashes reports how many node hashes fn performs.
func countHashes(t *testing.T, fn func()) int {
	t.Helper()
	orig := nodeHash
	n := 0
	nodeHash = func(l, r fr.Element) fr.Element {
		n++
		return orig(l, r)
	}
	defer func() { nodeHash = orig }()
	fn()
	return n
}

// naivePath materializes the full bottom layer and reads siblings from it.
func naivePath(depth int, leaves []fr.Element, index uint64) []fr.Element {
	layer := make([]fr.Element, 1<<uint(depth))
	copy(layer, leaves)
	var out []fr.Element
	for len(layer) > 1 {
		out = append(out, layer[index^1])
		next := make([]fr.Element, len(layer)/2)
		for i := range next {
			next[i] = HashNode(layer[2*i], layer[2*i+1])
		}
		layer = next
		index >>= 1
	}
	return out
}

func TestPathCostIndependentOfSize(t *testing.T) {
	const depth = 10
	tree, err := New(depth)
	require.NoError(t, err)
	leaves := randomLeaves(t, 300)

	for i, l := range leaves {
		n := countHashes(t, func() {
			_, err = tree.Append(l)
		})
		require.NoError(t, err)
		require.Equal(t, depth, n, "append %d", i)
	}

	for _, i := range []uint64{0, 1, 150, 298, 299} {
		var p *Path
		n := countHashes(t, func() {
			p, err = tree.ComputePath(i)
		})
		require.NoError(t, err)
		assert.Zero(t, n, "path %d", i)
		assert.Equal(t, naivePath(depth, leaves, i), p.Siblings, "path %d", i)
	}

	for _, size := range []uint64{0, 1, 2, 77, 128, 299, 300} {
		var snap *Tree
		n := countHashes(t, func() {
			snap, err = tree.Snapshot(size)
		})
		require.NoError(t, err)
		assert.LessOrEqual(t, n, depth, "snapshot %d", size)

		got := snap.Root()
		want := naiveRoot(depth, leaves[:size])
		require.True(t, got.Equal(&want), "snapshot %d", size)
		if size > 0 {
			p, err := snap.ComputePath(size - 1)
			require.NoError(t, err)
			assert.Equal(t, naivePath(depth, leaves[:size], size-1), p.Siblings)
			assert.True(t, Verify(want, leaves[size-1], p))
		}
	}
}
