package protocol

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/HamzaZF/zeth-client/internal/field"
	"github.com/HamzaZF/zeth-client/internal/merkle"
	"github.com/HamzaZF/zeth-client/internal/zerocash"
)

var ErrInvalidWitness = errors.New("protocol: witness does not satisfy the joinsplit relation")

// JoinSplitInput is one spent note together with what proves the right to
// spend it.
type JoinSplitInput struct {
	Note zerocash.Note
	Ask  fr.Element
	Path *merkle.Path
}

// Witness is everything a prover needs for one JoinSplit statement.
type Witness struct {
	Root    fr.Element
	Inputs  [2]JoinSplitInput
	Outputs [2]zerocash.Note
	Phi     fr.Element
	HSig    fr.Element
	VIn     uint64
	VOut    uint64
}

// PublicInputs computes the statement the witness proves.
func (w *Witness) PublicInputs() PublicInputs {
	pi := PublicInputs{
		Root: field.WordOf(w.Root),
		HSig: field.WordOf(w.HSig),
		VIn:  w.VIn,
		VOut: w.VOut,
	}
	for i := range w.Inputs {
		in := &w.Inputs[i]
		pi.Nullifiers[i] = field.WordOf(zerocash.Nullifier(in.Ask, in.Note.Rho))
		pi.SignatureTags[i] = field.WordOf(zerocash.SignatureTag(in.Ask, i, w.HSig))
	}
	for j := range w.Outputs {
		pi.Commitments[j] = field.WordOf(zerocash.Commit(&w.Outputs[j]))
	}
	return pi
}

// Check evaluates the JoinSplit relation natively. It is the reference the
// circuit is tested against and what non-SNARK provers rely on.
func (w *Witness) Check() error {
	for i := range w.Inputs {
		in := &w.Inputs[i]
		apk := zerocash.DeriveApk(in.Ask)
		if !apk.Equal(&in.Note.Apk) {
			return fmt.Errorf("%w: input %d not owned by spending key", ErrInvalidWitness, i)
		}
		if in.Note.Value == 0 {
			continue
		}
		if in.Path == nil || !merkle.Verify(w.Root, zerocash.Commit(&in.Note), in.Path) {
			return fmt.Errorf("%w: input %d not in tree", ErrInvalidWitness, i)
		}
	}
	for j := range w.Outputs {
		rho := zerocash.OutputRho(w.Phi, j, w.HSig)
		if !rho.Equal(&w.Outputs[j].Rho) {
			return fmt.Errorf("%w: output %d rho not derived from h_sig", ErrInvalidWitness, j)
		}
	}
	lhs := new(big.Int).SetUint64(w.VIn)
	rhs := new(big.Int).SetUint64(w.VOut)
	for i := range w.Inputs {
		lhs.Add(lhs, new(big.Int).SetUint64(w.Inputs[i].Note.Value))
	}
	for j := range w.Outputs {
		rhs.Add(rhs, new(big.Int).SetUint64(w.Outputs[j].Value))
	}
	if lhs.Cmp(rhs) != 0 {
		return fmt.Errorf("%w: value not conserved", ErrInvalidWitness)
	}
	return nil
}
