// keys.go - Shielded addresses and their secret counterparts.
//
// A shielded address is (a_pk, k_pk): a_pk authorizes spending through the
// nullifier PRF, k_pk receives encrypted notes over BN254 G1 Diffie-Hellman.

package zerocash

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/HamzaZF/zeth-client/internal/field"
)

// AddressSize is the length of an encoded shielded address.
const AddressSize = field.WordSize + field.PointSize

var ErrMalformedAddress = errors.New("zerocash: malformed shielded address")

// EncryptionKeyPair is a Diffie-Hellman key pair on BN254 G1.
type EncryptionKeyPair struct {
	Sk fr.Element     // Private scalar
	Pk bn254.G1Affine // Public key (G1 point)
}

// GenerateEncryptionKeyPair samples a fresh key pair. It is used both for
// long-term receiving keys and for per-transaction ephemeral keys.
func GenerateEncryptionKeyPair() (*EncryptionKeyPair, error) {
	sk, err := field.RandomScalar()
	if err != nil {
		return nil, err
	}
	return &EncryptionKeyPair{Sk: sk, Pk: field.ScalarMulBase(sk)}, nil
}

// SharedSecret computes sk * their.
func (kp *EncryptionKeyPair) SharedSecret(their bn254.G1Affine) bn254.G1Affine {
	return field.ScalarMul(their, kp.Sk)
}

// Address is a public shielded address.
type Address struct {
	Apk fr.Element
	Pk  bn254.G1Affine
}

// SecretAddress holds the spending key and the receiving key of an address.
type SecretAddress struct {
	Ask fr.Element
	Enc EncryptionKeyPair
}

// GenerateAddress creates a new secret address.
func GenerateAddress() (*SecretAddress, error) {
	ask, err := field.RandomScalar()
	if err != nil {
		return nil, err
	}
	enc, err := GenerateEncryptionKeyPair()
	if err != nil {
		return nil, err
	}
	return &SecretAddress{Ask: ask, Enc: *enc}, nil
}

func (s *SecretAddress) Public() Address {
	return Address{Apk: DeriveApk(s.Ask), Pk: s.Enc.Pk}
}

// Bytes encodes a as apk || enc(k_pk).
func (a Address) Bytes() []byte {
	apk := a.Apk.Bytes()
	pk := field.EncodePoint(a.Pk)
	out := make([]byte, 0, AddressSize)
	out = append(out, apk[:]...)
	return append(out, pk[:]...)
}

func ParseAddressBytes(b []byte) (Address, error) {
	if len(b) != AddressSize {
		return Address{}, ErrMalformedAddress
	}
	var a Address
	if err := a.Apk.SetBytesCanonical(b[:field.WordSize]); err != nil {
		return Address{}, ErrMalformedAddress
	}
	pk, err := field.DecodePoint(b[field.WordSize:])
	if err != nil {
		return Address{}, ErrMalformedAddress
	}
	a.Pk = pk
	return a, nil
}

func (a Address) String() string {
	return hex.EncodeToString(a.Bytes())
}

// ParseAddress parses the hex form produced by String.
func ParseAddress(s string) (Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrMalformedAddress, err)
	}
	return ParseAddressBytes(b)
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Equal compares both halves of the address.
func (a Address) Equal(o Address) bool {
	return a.Apk.Equal(&o.Apk) && a.Pk.Equal(&o.Pk)
}

// MarshalText encodes the secret address as hex(a_sk || k_sk). The key
// material is only ever written to the owner's key file.
func (s SecretAddress) MarshalText() ([]byte, error) {
	ask := s.Ask.Bytes()
	ksk := s.Enc.Sk.Bytes()
	return []byte(hex.EncodeToString(append(ask[:], ksk[:]...))), nil
}

func (s *SecretAddress) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil || len(b) != 2*field.WordSize {
		return ErrMalformedAddress
	}
	var ask, ksk fr.Element
	if err := ask.SetBytesCanonical(b[:field.WordSize]); err != nil {
		return ErrMalformedAddress
	}
	if err := ksk.SetBytesCanonical(b[field.WordSize:]); err != nil {
		return ErrMalformedAddress
	}
	s.Ask = ask
	s.Enc = EncryptionKeyPair{Sk: ksk, Pk: field.ScalarMulBase(ksk)}
	return nil
}
