package merkle

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Path is an authentication path: one sibling per level, leaf level first,
// plus the leaf position whose bits pick left or right at each level.
type Path struct {
	Siblings []fr.Element `json:"siblings"`
	Index    uint64       `json:"index"`
}

// ZeroPath is the path paired with dummy inputs. The circuit never checks it
// against a root because dummy inputs carry zero value.
func ZeroPath(depth int) *Path {
	return &Path{Siblings: make([]fr.Element, depth)}
}

func (p *Path) Depth() int {
	return len(p.Siblings)
}

// Bits returns the position bits of the leaf, least significant (leaf level)
// first. A set bit means the current node is the right child.
func (p *Path) Bits() []bool {
	bits := make([]bool, len(p.Siblings))
	for i := range bits {
		bits[i] = (p.Index>>uint(i))&1 == 1
	}
	return bits
}

// RecomputeRoot hashes leaf up the path.
func RecomputeRoot(leaf fr.Element, p *Path) (fr.Element, error) {
	if p == nil || len(p.Siblings) == 0 || len(p.Siblings) > MaxDepth {
		return fr.Element{}, ErrInvalidPath
	}
	if p.Index>>uint(len(p.Siblings)) != 0 {
		return fr.Element{}, ErrIndexOutOfRange
	}
	cur := leaf
	for i, right := range p.Bits() {
		if right {
			cur = HashNode(p.Siblings[i], cur)
		} else {
			cur = HashNode(cur, p.Siblings[i])
		}
	}
	return cur, nil
}

// Verify reports whether leaf sits at p.Index under root.
func Verify(root, leaf fr.Element, p *Path) bool {
	got, err := RecomputeRoot(leaf, p)
	if err != nil {
		return false
	}
	return got.Equal(&root)
}
