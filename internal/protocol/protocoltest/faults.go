// Package protocoltest provides fault injection on typed protocol values, for
// tests that play the attacker against a ledger.
package protocoltest

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/HamzaZF/zeth-client/internal/field"
	"github.com/HamzaZF/zeth-client/internal/merkle"
	"github.com/HamzaZF/zeth-client/internal/protocol"
	"github.com/HamzaZF/zeth-client/internal/schnorr"
	"github.com/HamzaZF/zeth-client/internal/zerocash"
)

func randomCiphertext() ([]byte, error) {
	ct := make([]byte, zerocash.CiphertextSize)
	if _, err := rand.Read(ct); err != nil {
		return nil, err
	}
	return ct, nil
}

// ReplaceCiphertexts returns a copy of tx whose ciphertexts are random bytes of
// the right length. The original signature is kept.
func ReplaceCiphertexts(tx *protocol.MixTransaction) (*protocol.MixTransaction, error) {
	out := tx.Clone()
	for i := range out.Ciphertexts {
		ct, err := randomCiphertext()
		if err != nil {
			return nil, err
		}
		out.Ciphertexts[i] = ct
	}
	return out, nil
}

// Resign replaces the ciphertexts like ReplaceCiphertexts and then signs the
// result with a fresh one-time key, as someone who does not know the original
// signing key would have to.
func Resign(tx *protocol.MixTransaction) (*protocol.MixTransaction, error) {
	out, err := ReplaceCiphertexts(tx)
	if err != nil {
		return nil, err
	}
	kp, err := schnorr.KeyGen()
	if err != nil {
		return nil, err
	}
	out.VK = kp.VK
	out.Signature = kp.Sign(out.SignatureDigest())
	return out, nil
}

// AliasNullifier returns a copy of tx whose i-th nullifier is written as
// residue + k*P. Nothing else is adjusted.
func AliasNullifier(tx *protocol.MixTransaction, i int, k uint64) (*protocol.MixTransaction, error) {
	out := tx.Clone()
	alias, ok := field.Alias(out.Inputs.Nullifiers[i], k)
	if !ok {
		return nil, fmt.Errorf("protocoltest: alias %d of nullifier %d overflows 256 bits", k, i)
	}
	out.Inputs.Nullifiers[i] = alias
	return out, nil
}

// ForgeAliasedSpend re-spends the inputs of w as a fully consistent
// transaction in which input i's nullifier is written as residue + k*P: h_sig
// is computed over the aliased bytes, the outputs are re-derived from it, a
// valid proof is obtained for the residues and the result is signed. Only a
// ledger that insists on canonical encodings can tell it apart from a fresh
// nullifier.
func ForgeAliasedSpend(ctx context.Context, prover protocol.Prover, w *protocol.Witness, recipient protocol.Account, i int, k uint64) (*protocol.MixTransaction, error) {
	kp, err := schnorr.KeyGen()
	if err != nil {
		return nil, err
	}

	forged := *w
	pi := forged.PublicInputs()
	aliased := pi.Nullifiers
	alias, ok := field.Alias(aliased[i], k)
	if !ok {
		return nil, fmt.Errorf("protocoltest: alias %d of nullifier %d overflows 256 bits", k, i)
	}
	aliased[i] = alias

	forged.HSig = zerocash.HSig(aliased, kp.VK.Bytes())
	for j := range forged.Outputs {
		forged.Outputs[j].Rho = zerocash.OutputRho(forged.Phi, j, forged.HSig)
	}

	proof, err := prover.Prove(ctx, &forged)
	if err != nil {
		return nil, err
	}

	eph, err := zerocash.GenerateEncryptionKeyPair()
	if err != nil {
		return nil, err
	}
	tx := &protocol.MixTransaction{
		EphemeralPk: eph.Pk,
		Proof:       proof.Bytes,
		VK:          kp.VK,
		Inputs:      proof.Inputs,
		Recipient:   recipient,
	}
	tx.Inputs.Nullifiers = aliased
	for j := range tx.Ciphertexts {
		if tx.Ciphertexts[j], err = randomCiphertext(); err != nil {
			return nil, err
		}
	}
	tx.Signature = kp.Sign(tx.SignatureDigest())
	return tx, nil
}

// RandomWitness builds a satisfying witness over a fresh tree of the given
// depth holding just the two input notes, all owned by one new address.
func RandomWitness(depth int, vIn, vOut uint64, in, out [2]uint64) (*protocol.Witness, error) {
	owner, err := zerocash.GenerateAddress()
	if err != nil {
		return nil, err
	}
	apk := owner.Public().Apk
	tree, err := merkle.New(depth)
	if err != nil {
		return nil, err
	}

	w := &protocol.Witness{VIn: vIn, VOut: vOut}
	for i, v := range in {
		n, err := zerocash.NewNote(apk, v)
		if err != nil {
			return nil, err
		}
		if _, err := tree.Append(zerocash.Commit(n)); err != nil {
			return nil, err
		}
		w.Inputs[i] = protocol.JoinSplitInput{Note: *n, Ask: owner.Ask}
	}
	w.Root = tree.Root()
	for i := range w.Inputs {
		if w.Inputs[i].Path, err = tree.ComputePath(uint64(i)); err != nil {
			return nil, err
		}
	}
	if w.Phi, err = field.RandomScalar(); err != nil {
		return nil, err
	}
	if w.HSig, err = field.RandomScalar(); err != nil {
		return nil, err
	}
	for j, v := range out {
		n, err := zerocash.NewOutputNote(apk, v, w.Phi, j, w.HSig)
		if err != nil {
			return nil, err
		}
		w.Outputs[j] = *n
	}
	return w, nil
}
