// Package merkle implements the append-only commitment tree and its
// authentication paths.
//
// Leaves are note commitments in ledger insertion order. Internal nodes are
// MiMC(left, right) over the BN254 scalar field, the same hash the JoinSplit
// circuit uses to recompute the root. Unfilled positions hold the empty
// subtree hash of their level, with the empty leaf being zero.
package merkle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/HamzaZF/zeth-client/internal/field"
)

// MaxDepth bounds the tree depth, and with it the 2^depth leaf capacity.
const MaxDepth = 32

var (
	ErrTreeFull        = errors.New("merkle: tree is full")
	ErrIndexOutOfRange = errors.New("merkle: index out of range")
	ErrInvalidDepth    = errors.New("merkle: invalid depth")
	ErrInvalidPath     = errors.New("merkle: invalid path")
)

// emptyHashes[i] is the root of an empty subtree of height i.
var emptyHashes [MaxDepth + 1]fr.Element

func init() {
	for i := 1; i <= MaxDepth; i++ {
		emptyHashes[i] = HashNode(emptyHashes[i-1], emptyHashes[i-1])
	}
}

// HashNode hashes two children.
func HashNode(left, right fr.Element) fr.Element {
	return nodeHash(left, right)
}

// nodeHash is swapped out by tests that count hashes.
var nodeHash = func(left, right fr.Element) fr.Element {
	return field.MiMC(left, right)
}

// EmptyRoot returns the root of an empty tree of the given depth.
func EmptyRoot(depth int) fr.Element {
	return emptyHashes[depth]
}

// Tree is an append-only Merkle tree of fixed depth. nodes[0] holds the
// leaves and nodes[l] every populated node of level l, with absent right
// children taken as empty subtrees. Appends cost O(depth) hashes and paths
// are O(depth) lookups.
type Tree struct {
	mu    sync.RWMutex
	depth int
	nodes [][]fr.Element
}

func New(depth int) (*Tree, error) {
	if depth < 1 || depth > MaxDepth {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}
	return &Tree{depth: depth, nodes: make([][]fr.Element, depth+1)}, nil
}

func (t *Tree) Depth() int {
	return t.depth
}

func (t *Tree) Root() fr.Element {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root()
}

func (t *Tree) root() fr.Element {
	if top := t.nodes[t.depth]; len(top) > 0 {
		return top[0]
	}
	return emptyHashes[t.depth]
}

func (t *Tree) Size() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return uint64(len(t.nodes[0]))
}

func (t *Tree) capacity() uint64 {
	return uint64(1) << uint(t.depth)
}

// node returns the value of node i at level, or the empty subtree hash when
// nothing below it is populated.
func (t *Tree) node(level int, i uint64) fr.Element {
	if row := t.nodes[level]; i < uint64(len(row)) {
		return row[i]
	}
	return emptyHashes[level]
}

// Leaf returns the leaf at index.
func (t *Tree) Leaf(index uint64) (fr.Element, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index >= uint64(len(t.nodes[0])) {
		return fr.Element{}, ErrIndexOutOfRange
	}
	return t.nodes[0][index], nil
}

// Leaves returns a copy of the leaf sequence.
func (t *Tree) Leaves() []fr.Element {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]fr.Element(nil), t.nodes[0]...)
}

// Append adds a leaf and returns its index.
func (t *Tree) Append(leaf fr.Element) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.append(leaf)
}

// AppendBatch appends leaves atomically: either all fit or none is added.
func (t *Tree) AppendBatch(leaves ...fr.Element) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if uint64(len(t.nodes[0]))+uint64(len(leaves)) > t.capacity() {
		return 0, ErrTreeFull
	}
	start := uint64(len(t.nodes[0]))
	for _, l := range leaves {
		if _, err := t.append(l); err != nil {
			return 0, err
		}
	}
	return start, nil
}

// set writes node pos of level, which is either the last populated node or
// the next one.
func (t *Tree) set(level int, pos uint64, v fr.Element) {
	if pos < uint64(len(t.nodes[level])) {
		t.nodes[level][pos] = v
		return
	}
	t.nodes[level] = append(t.nodes[level], v)
}

func (t *Tree) append(leaf fr.Element) (uint64, error) {
	idx := uint64(len(t.nodes[0]))
	if idx >= t.capacity() {
		return 0, ErrTreeFull
	}
	t.nodes[0] = append(t.nodes[0], leaf)

	cur := leaf
	pos := idx
	for level := 0; level < t.depth; level++ {
		if pos&1 == 0 {
			cur = HashNode(cur, emptyHashes[level])
		} else {
			cur = HashNode(t.nodes[level][pos-1], cur)
		}
		pos >>= 1
		t.set(level+1, pos, cur)
	}
	return idx, nil
}

// Snapshot returns the tree as it was after its first n leaves. Nodes whose
// subtree lies inside the first n leaves are copied; only the one partial
// node per level is rehashed.
func (t *Tree) Snapshot(n uint64) (*Tree, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n > uint64(len(t.nodes[0])) {
		return nil, ErrIndexOutOfRange
	}
	s, err := New(t.depth)
	if err != nil {
		return nil, err
	}
	s.nodes[0] = append(make([]fr.Element, 0, n), t.nodes[0][:n]...)
	for level := 1; level <= t.depth; level++ {
		full := n >> uint(level)
		count := (n + (uint64(1) << uint(level)) - 1) >> uint(level)
		row := make([]fr.Element, full, count)
		copy(row, t.nodes[level][:full])
		if count > full {
			row = append(row, HashNode(s.node(level-1, 2*full), s.node(level-1, 2*full+1)))
		}
		s.nodes[level] = row
	}
	return s, nil
}

func (t *Tree) Clone() *Tree {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c := &Tree{depth: t.depth, nodes: make([][]fr.Element, len(t.nodes))}
	for i, row := range t.nodes {
		c.nodes[i] = append([]fr.Element(nil), row...)
	}
	return c
}

// ComputePath returns the authentication path of the leaf at leafIndex in the
// current tree state.
func (t *Tree) ComputePath(leafIndex uint64) (*Path, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if leafIndex >= t.capacity() || leafIndex >= uint64(len(t.nodes[0])) {
		return nil, fmt.Errorf("%w: leaf %d of %d", ErrIndexOutOfRange, leafIndex, len(t.nodes[0]))
	}

	path := &Path{Index: leafIndex, Siblings: make([]fr.Element, t.depth)}
	index := leafIndex
	for level := 0; level < t.depth; level++ {
		path.Siblings[level] = t.node(level, index^1)
		index >>= 1
	}
	return path, nil
}
