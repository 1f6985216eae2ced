// Package schnorr implements the one-time Schnorr signature that binds a
// JoinSplit proof to the rest of its transaction.
//
// A key pair holds two scalars (x, y) and their images X = xG, Y = yG. The
// signature over a digest m is sigma = y + c*x with c = H(enc(Y) || m) mod P,
// and it verifies when sigma*G == Y + c*X. Since y plays the role of the
// nonce, a key pair must sign exactly one message.
package schnorr

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/HamzaZF/zeth-client/internal/field"
)

const (
	VerificationKeySize = 2 * field.PointSize
	SignatureSize       = field.WordSize
)

var (
	ErrInvalidVerificationKey = errors.New("schnorr: invalid verification key encoding")
	ErrInvalidSignature       = errors.New("schnorr: invalid signature encoding")
)

type SigningKey struct {
	X fr.Element
	Y fr.Element
}

type VerificationKey struct {
	X bn254.G1Affine
	Y bn254.G1Affine
}

type KeyPair struct {
	SK SigningKey
	VK VerificationKey
}

type Signature struct {
	Sigma fr.Element
}

// KeyGen samples a fresh one-time key pair.
func KeyGen() (*KeyPair, error) {
	x, err := field.RandomScalar()
	if err != nil {
		return nil, err
	}
	y, err := field.RandomScalar()
	if err != nil {
		return nil, err
	}
	return &KeyPair{
		SK: SigningKey{X: x, Y: y},
		VK: VerificationKey{X: field.ScalarMulBase(x), Y: field.ScalarMulBase(y)},
	}, nil
}

func challenge(y bn254.G1Affine, digest []byte) fr.Element {
	enc := field.EncodePoint(y)
	return field.HashToScalar(enc[:], digest)
}

// Sign signs digest. The verification key is needed for the challenge, so it
// is taken from the key pair rather than recomputed.
func (kp *KeyPair) Sign(digest []byte) Signature {
	c := challenge(kp.VK.Y, digest)
	var sigma fr.Element
	sigma.Mul(&c, &kp.SK.X).Add(&sigma, &kp.SK.Y)
	return Signature{Sigma: sigma}
}

// Verify reports whether sig is a valid signature of digest under vk.
// Malformed keys yield false.
func Verify(vk VerificationKey, digest []byte, sig Signature) bool {
	if !validPoint(vk.X) || !validPoint(vk.Y) {
		return false
	}
	c := challenge(vk.Y, digest)
	lhs := field.ScalarMulBase(sig.Sigma)
	rhs := field.Add(vk.Y, field.ScalarMul(vk.X, c))
	return lhs.Equal(&rhs)
}

func validPoint(p bn254.G1Affine) bool {
	return !p.IsInfinity() && p.IsOnCurve()
}

// Bytes returns enc(X) || enc(Y).
func (vk VerificationKey) Bytes() []byte {
	x := field.EncodePoint(vk.X)
	y := field.EncodePoint(vk.Y)
	out := make([]byte, 0, VerificationKeySize)
	out = append(out, x[:]...)
	return append(out, y[:]...)
}

func ParseVerificationKey(b []byte) (VerificationKey, error) {
	if len(b) != VerificationKeySize {
		return VerificationKey{}, ErrInvalidVerificationKey
	}
	x, err := field.DecodePoint(b[:field.PointSize])
	if err != nil {
		return VerificationKey{}, ErrInvalidVerificationKey
	}
	y, err := field.DecodePoint(b[field.PointSize:])
	if err != nil {
		return VerificationKey{}, ErrInvalidVerificationKey
	}
	return VerificationKey{X: x, Y: y}, nil
}

func (s Signature) Bytes() []byte {
	w := field.WordOf(s.Sigma)
	return w[:]
}

// ParseSignature only accepts the canonical encoding of sigma.
func ParseSignature(b []byte) (Signature, error) {
	if len(b) != SignatureSize {
		return Signature{}, ErrInvalidSignature
	}
	var w field.Word
	copy(w[:], b)
	sigma, err := w.Element()
	if err != nil {
		return Signature{}, ErrInvalidSignature
	}
	return Signature{Sigma: sigma}, nil
}
