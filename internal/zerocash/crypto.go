// crypto.go - PRFs and commitments of the JoinSplit relation.
//
// Every function here is mirrored gate-for-gate by internal/circuit; changing
// one without the other breaks proving. All hashing is MiMC over the BN254
// scalar field, domain-separated by a leading tag element.

package zerocash

import (
	"crypto/sha256"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/HamzaZF/zeth-client/internal/field"
)

// Domain tags, written as the first element of each PRF input.
const (
	TagAddress   = 0
	TagNullifier = 1
	TagSignature = 2
	TagRho       = 3
)

func prf(tag uint64, xs ...fr.Element) fr.Element {
	in := make([]fr.Element, 0, len(xs)+1)
	in = append(in, field.NewElement(tag))
	in = append(in, xs...)
	return field.MiMC(in...)
}

// DeriveApk computes a_pk = PRF_addr(a_sk).
func DeriveApk(ask fr.Element) fr.Element {
	return prf(TagAddress, ask)
}

// Nullifier computes nf = PRF_nf(a_sk, rho). Only the holder of a_sk can
// produce the nullifier of a note addressed to a_pk.
func Nullifier(ask, rho fr.Element) fr.Element {
	return prf(TagNullifier, ask, rho)
}

// SignatureTag computes h_i = PRF_pk(a_sk_i, i, h_sig). It proves the spender
// of input i knew a_sk_i when h_sig (and hence the signing key) was fixed.
func SignatureTag(ask fr.Element, i int, hSig fr.Element) fr.Element {
	return prf(TagSignature, ask, field.NewElement(uint64(i)), hSig)
}

// OutputRho computes rho_j = PRF_rho(phi, j, h_sig). Tying output rho to h_sig
// makes output nullifiers unique per transaction.
func OutputRho(phi fr.Element, j int, hSig fr.Element) fr.Element {
	return prf(TagRho, phi, field.NewElement(uint64(j)), hSig)
}

// Commit computes cm = MiMC(a_pk, value, rho, r).
func Commit(n *Note) fr.Element {
	return field.MiMC(n.Apk, field.NewElement(n.Value), n.Rho, n.R)
}

// HSig computes SHA-256(nf_0 || nf_1 || vk) mod P, binding the proof to the
// one-time verification key. It hashes the nullifiers as written on the wire,
// which is how the ledger recomputes it.
func HSig(nullifiers [2]field.Word, vk []byte) fr.Element {
	h := sha256.New()
	h.Write(nullifiers[0][:])
	h.Write(nullifiers[1][:])
	h.Write(vk)
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}
