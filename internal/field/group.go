package field

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// PointSize is the wire width of a G1 point: X and Y as 32-byte big-endian
// base-field integers.
const PointSize = 2 * fp.Bytes

var ErrInvalidPoint = errors.New("field: invalid group element encoding")

var g1Gen bn254.G1Affine

func init() {
	_, _, g1Gen, _ = bn254.Generators()
}

// Generator returns the fixed G1 generator.
func Generator() bn254.G1Affine {
	return g1Gen
}

// ScalarMulBase returns s*G.
func ScalarMulBase(s fr.Element) bn254.G1Affine {
	var p bn254.G1Affine
	p.ScalarMultiplication(&g1Gen, s.BigInt(new(big.Int)))
	return p
}

// ScalarMul returns s*p.
func ScalarMul(p bn254.G1Affine, s fr.Element) bn254.G1Affine {
	var out bn254.G1Affine
	out.ScalarMultiplication(&p, s.BigInt(new(big.Int)))
	return out
}

func Add(p, q bn254.G1Affine) bn254.G1Affine {
	var out bn254.G1Affine
	out.Add(&p, &q)
	return out
}

// EncodePoint writes p as X || Y.
func EncodePoint(p bn254.G1Affine) [PointSize]byte {
	var out [PointSize]byte
	x := p.X.Bytes()
	y := p.Y.Bytes()
	copy(out[:fp.Bytes], x[:])
	copy(out[fp.Bytes:], y[:])
	return out
}

// DecodePoint parses an encoding produced by EncodePoint. Coordinates must be
// canonical and the point must lie on the curve; the identity is rejected.
func DecodePoint(b []byte) (bn254.G1Affine, error) {
	var p bn254.G1Affine
	if len(b) != PointSize {
		return p, ErrInvalidPoint
	}
	if err := p.X.SetBytesCanonical(b[:fp.Bytes]); err != nil {
		return bn254.G1Affine{}, ErrInvalidPoint
	}
	if err := p.Y.SetBytesCanonical(b[fp.Bytes:]); err != nil {
		return bn254.G1Affine{}, ErrInvalidPoint
	}
	if p.IsInfinity() || !p.IsOnCurve() {
		return bn254.G1Affine{}, ErrInvalidPoint
	}
	return p, nil
}
