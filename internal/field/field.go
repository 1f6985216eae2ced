// Package field holds the scalar-field and group primitives every other
// package builds on: BN254 scalars, G1 points and their fixed-width wire
// encodings.
//
// Scalars live in the BN254 scalar field (the field the JoinSplit relation is
// expressed over). On the wire a scalar is a 32-byte big-endian Word. A Word
// can carry any 256-bit integer, so the ledger boundary must insist on the
// canonical representative: Element rejects anything >= P.
package field

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// WordSize is the wire width of a scalar.
const WordSize = fr.Bytes

var (
	// ErrEntropy is returned when the system randomness source fails. It is
	// fatal for any operation that needs fresh secrets.
	ErrEntropy = errors.New("field: entropy source failure")

	// ErrNonCanonical is returned for a word that encodes an integer >= P.
	ErrNonCanonical = errors.New("field: non-canonical scalar encoding")
)

// Modulus returns a copy of the scalar field prime P.
func Modulus() *big.Int {
	return fr.Modulus()
}

// Word is the 32-byte big-endian wire form of a scalar. It is not guaranteed
// to be canonical.
type Word [WordSize]byte

// WordOf returns the canonical word of e.
func WordOf(e fr.Element) Word {
	return Word(e.Bytes())
}

// Element decodes w, rejecting non-canonical encodings.
func (w Word) Element() (fr.Element, error) {
	var e fr.Element
	if err := e.SetBytesCanonical(w[:]); err != nil {
		return fr.Element{}, ErrNonCanonical
	}
	return e, nil
}

// Reduce interprets w as an integer and reduces it mod P.
func (w Word) Reduce() fr.Element {
	var e fr.Element
	e.SetBytes(w[:])
	return e
}

// IsCanonical reports whether w < P.
func (w Word) IsCanonical() bool {
	_, err := w.Element()
	return err == nil
}

// IsZero reports whether every byte of w is zero.
func (w Word) IsZero() bool {
	return w == Word{}
}

func (w Word) BigInt() *big.Int {
	return new(big.Int).SetBytes(w[:])
}

func (w Word) String() string {
	return hex.EncodeToString(w[:])
}

func (w Word) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// UnmarshalText accepts any 32-byte hex string, canonical or not.
func (w *Word) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(b) != WordSize {
		return fmt.Errorf("field: word must be %d bytes, got %d", WordSize, len(b))
	}
	copy(w[:], b)
	return nil
}

// Alias returns the word encoding residue(w) + k*P, the same field element
// written differently. ok is false when the integer does not fit in 256 bits.
func Alias(w Word, k uint64) (Word, bool) {
	v := w.Reduce()
	n := v.BigInt(new(big.Int))
	n.Add(n, new(big.Int).Mul(new(big.Int).SetUint64(k), fr.Modulus()))
	if n.BitLen() > 8*WordSize {
		return Word{}, false
	}
	var out Word
	n.FillBytes(out[:])
	return out, true
}

// RandomScalar samples a uniform scalar.
func RandomScalar() (fr.Element, error) {
	var e fr.Element
	if _, err := e.SetRandom(); err != nil {
		return fr.Element{}, ErrEntropy
	}
	return e, nil
}

// NewElement returns v as a field element.
func NewElement(v uint64) fr.Element {
	var e fr.Element
	e.SetUint64(v)
	return e
}

// HashToScalar returns SHA-256(parts...) reduced mod P.
func HashToScalar(parts ...[]byte) fr.Element {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var e fr.Element
	e.SetBytes(h.Sum(nil))
	return e
}

// MiMC hashes a sequence of scalars with the BN254 MiMC sponge, the same
// permutation the circuit uses.
func MiMC(xs ...fr.Element) fr.Element {
	h := mimc.NewMiMC()
	for i := range xs {
		b := xs[i].Bytes()
		// canonical by construction, Write cannot fail
		h.Write(b[:])
	}
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}
