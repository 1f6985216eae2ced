package circuit

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"

	"github.com/HamzaZF/zeth-client/internal/protocol"
	"github.com/HamzaZF/zeth-client/internal/zerocash"
)

// ValueBits is the width every note and public value is range-checked to.
const ValueBits = 64

// Input is the private half of one spent note.
type Input struct {
	Ask   frontend.Variable
	Value frontend.Variable
	Rho   frontend.Variable
	R     frontend.Variable
	Path  []frontend.Variable
	Index frontend.Variable
}

// Output is the private half of one created note. Its rho is derived inside
// the circuit.
type Output struct {
	Apk   frontend.Variable
	Value frontend.Variable
	R     frontend.Variable
}

// JoinSplit proves that two notes in the tree are spent into two new notes,
// with value conserved across public inputs and outputs. Field order of the
// public inputs matches protocol.PublicInputs.Elements.
type JoinSplit struct {
	// Public inputs
	Root          frontend.Variable    `gnark:",public"`
	Nullifiers    [2]frontend.Variable `gnark:",public"`
	Commitments   [2]frontend.Variable `gnark:",public"`
	HSig          frontend.Variable    `gnark:",public"`
	SignatureTags [2]frontend.Variable `gnark:",public"`
	VIn           frontend.Variable    `gnark:",public"`
	VOut          frontend.Variable    `gnark:",public"`

	// Private inputs
	Inputs  [2]Input
	Outputs [2]Output
	Phi     frontend.Variable
}

// New returns an empty circuit for a tree of the given depth, ready to be
// compiled.
func New(depth int) *JoinSplit {
	var c JoinSplit
	for i := range c.Inputs {
		c.Inputs[i].Path = make([]frontend.Variable, depth)
	}
	return &c
}

func (c *JoinSplit) Define(api frontend.API) error {
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	hash := func(xs ...frontend.Variable) frontend.Variable {
		hasher.Reset()
		hasher.Write(xs...)
		return hasher.Sum()
	}

	api.ToBinary(c.VIn, ValueBits)
	api.ToBinary(c.VOut, ValueBits)
	in := c.VIn
	out := c.VOut

	for i := range c.Inputs {
		note := &c.Inputs[i]
		api.ToBinary(note.Value, ValueBits)

		apk := hash(zerocash.TagAddress, note.Ask)
		cm := hash(apk, note.Value, note.Rho, note.R)

		// Membership only binds notes that carry value, so dummies need no
		// real path.
		root := merkleRoot(api, hash, cm, note.Path, note.Index)
		api.AssertIsEqual(api.Mul(note.Value, api.Sub(root, c.Root)), 0)

		api.AssertIsEqual(c.Nullifiers[i], hash(zerocash.TagNullifier, note.Ask, note.Rho))
		api.AssertIsEqual(c.SignatureTags[i], hash(zerocash.TagSignature, note.Ask, i, c.HSig))
		in = api.Add(in, note.Value)
	}

	for j := range c.Outputs {
		note := &c.Outputs[j]
		api.ToBinary(note.Value, ValueBits)
		rho := hash(zerocash.TagRho, c.Phi, j, c.HSig)
		api.AssertIsEqual(c.Commitments[j], hash(note.Apk, note.Value, rho, note.R))
		out = api.Add(out, note.Value)
	}

	api.AssertIsEqual(in, out)
	return nil
}

func merkleRoot(api frontend.API, hash func(...frontend.Variable) frontend.Variable, leaf frontend.Variable, path []frontend.Variable, index frontend.Variable) frontend.Variable {
	bits := api.ToBinary(index, len(path))
	cur := leaf
	for level, sib := range path {
		left := api.Select(bits[level], sib, cur)
		right := api.Select(bits[level], cur, sib)
		cur = hash(left, right)
	}
	return cur
}

func bi(e fr.Element) *big.Int {
	return e.BigInt(new(big.Int))
}

// Assign builds a full assignment from a witness.
func Assign(w *protocol.Witness) (*JoinSplit, error) {
	pi := w.PublicInputs()
	c := PublicAssignment(&pi)
	for i := range w.Inputs {
		in := &w.Inputs[i]
		if in.Path == nil {
			return nil, fmt.Errorf("circuit: input %d has no path", i)
		}
		path := make([]frontend.Variable, len(in.Path.Siblings))
		for l := range in.Path.Siblings {
			path[l] = bi(in.Path.Siblings[l])
		}
		c.Inputs[i] = Input{
			Ask:   bi(in.Ask),
			Value: in.Note.Value,
			Rho:   bi(in.Note.Rho),
			R:     bi(in.Note.R),
			Path:  path,
			Index: in.Path.Index,
		}
	}
	for j := range w.Outputs {
		o := &w.Outputs[j]
		c.Outputs[j] = Output{Apk: bi(o.Apk), Value: o.Value, R: bi(o.R)}
	}
	c.Phi = bi(w.Phi)
	return c, nil
}

// PublicAssignment assigns only the public inputs, reduced mod P.
func PublicAssignment(pi *protocol.PublicInputs) *JoinSplit {
	e := pi.Elements()
	return &JoinSplit{
		Root:          bi(e[0]),
		Nullifiers:    [2]frontend.Variable{bi(e[1]), bi(e[2])},
		Commitments:   [2]frontend.Variable{bi(e[3]), bi(e[4])},
		HSig:          bi(e[5]),
		SignatureTags: [2]frontend.Variable{bi(e[6]), bi(e[7])},
		VIn:           pi.VIn,
		VOut:          pi.VOut,
	}
}
