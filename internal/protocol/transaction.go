package protocol

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254"

	"github.com/HamzaZF/zeth-client/internal/field"
	"github.com/HamzaZF/zeth-client/internal/schnorr"
	"github.com/HamzaZF/zeth-client/internal/zerocash"
)

// WireVersion is the first byte of every encoded MixTransaction. Any change
// to field widths or ordering must bump it.
const WireVersion byte = 1

// MaxProofSize bounds the length-prefixed proof field.
const MaxProofSize = 1 << 16

// AccountSize is the width of a public ledger account address.
const AccountSize = 20

var ErrMalformedTransaction = errors.New("protocol: malformed mix transaction")

// Account is a public ledger account. It pays v_in and receives v_out.
type Account [AccountSize]byte

func (a Account) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Account) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Account) UnmarshalText(text []byte) error {
	parsed, err := ParseAccount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAccount parses a 0x-prefixed or bare 40-digit hex address.
func ParseAccount(s string) (Account, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != AccountSize {
		return Account{}, fmt.Errorf("protocol: invalid account %q", s)
	}
	var a Account
	copy(a[:], b)
	return a, nil
}

// MixTransaction is the artifact submitted to the ledger. It is immutable
// once signed: the signature covers every field except the key and the
// signature themselves, and h_sig inside the public inputs covers the key.
type MixTransaction struct {
	EphemeralPk bn254.G1Affine
	Ciphertexts [2][]byte
	Proof       []byte
	VK          schnorr.VerificationKey
	Signature   schnorr.Signature
	Inputs      PublicInputs
	Recipient   Account
}

// SignatureDigest is the message signed with the one-time key.
func (tx *MixTransaction) SignatureDigest() []byte {
	h := sha256.New()
	eph := field.EncodePoint(tx.EphemeralPk)
	h.Write(eph[:])
	h.Write(tx.Ciphertexts[0])
	h.Write(tx.Ciphertexts[1])
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(tx.Proof)))
	h.Write(n[:])
	h.Write(tx.Proof)
	h.Write(tx.Inputs.Bytes())
	h.Write(tx.Recipient[:])
	return h.Sum(nil)
}

// Validate performs the structural checks DecodeMixTransaction applies to a
// transaction built in memory.
func (tx *MixTransaction) Validate() error {
	for i, ct := range tx.Ciphertexts {
		if len(ct) != zerocash.CiphertextSize {
			return fmt.Errorf("%w: ciphertext %d has %d bytes", ErrMalformedTransaction, i, len(ct))
		}
	}
	if len(tx.Proof) > MaxProofSize {
		return fmt.Errorf("%w: proof too large", ErrMalformedTransaction)
	}
	if tx.EphemeralPk.IsInfinity() || !tx.EphemeralPk.IsOnCurve() {
		return fmt.Errorf("%w: ephemeral key", ErrMalformedTransaction)
	}
	return nil
}

// Hash identifies the transaction by its encoding.
func (tx *MixTransaction) Hash() [32]byte {
	return sha256.Sum256(tx.Encode())
}

// Clone returns a deep copy.
func (tx *MixTransaction) Clone() *MixTransaction {
	c := *tx
	c.Ciphertexts = [2][]byte{
		append([]byte(nil), tx.Ciphertexts[0]...),
		append([]byte(nil), tx.Ciphertexts[1]...),
	}
	c.Proof = append([]byte(nil), tx.Proof...)
	return &c
}

// Encode writes the versioned layout:
//
//	version(1) | E(64) | ct0(120) | ct1(120) | len(4) | proof | vk(128) | sig(32) | inputs(320) | recipient(20)
func (tx *MixTransaction) Encode() []byte {
	out := make([]byte, 0, encodedFixedSize+len(tx.Proof))
	out = append(out, WireVersion)
	eph := field.EncodePoint(tx.EphemeralPk)
	out = append(out, eph[:]...)
	out = append(out, tx.Ciphertexts[0]...)
	out = append(out, tx.Ciphertexts[1]...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(tx.Proof)))
	out = append(out, tx.Proof...)
	out = append(out, tx.VK.Bytes()...)
	out = append(out, tx.Signature.Bytes()...)
	out = append(out, tx.Inputs.Bytes()...)
	return append(out, tx.Recipient[:]...)
}

const encodedFixedSize = 1 + field.PointSize + 2*zerocash.CiphertextSize + 4 +
	schnorr.VerificationKeySize + schnorr.SignatureSize + PublicInputsSize + AccountSize

// DecodeMixTransaction parses Encode output. Structural checks only: point
// and key validity, lengths and version. Public inputs are returned as
// raw words.
func DecodeMixTransaction(b []byte) (*MixTransaction, error) {
	if len(b) < encodedFixedSize || b[0] != WireVersion {
		return nil, ErrMalformedTransaction
	}
	r := reader{buf: b[1:]}
	var tx MixTransaction

	eph, err := field.DecodePoint(r.next(field.PointSize))
	if err != nil {
		return nil, fmt.Errorf("%w: ephemeral key: %v", ErrMalformedTransaction, err)
	}
	tx.EphemeralPk = eph
	tx.Ciphertexts[0] = append([]byte(nil), r.next(zerocash.CiphertextSize)...)
	tx.Ciphertexts[1] = append([]byte(nil), r.next(zerocash.CiphertextSize)...)

	proofLen := binary.BigEndian.Uint32(r.next(4))
	if proofLen > MaxProofSize || len(b) != encodedFixedSize+int(proofLen) {
		return nil, ErrMalformedTransaction
	}
	tx.Proof = append([]byte(nil), r.next(int(proofLen))...)

	if tx.VK, err = schnorr.ParseVerificationKey(r.next(schnorr.VerificationKeySize)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}
	if tx.Signature, err = schnorr.ParseSignature(r.next(schnorr.SignatureSize)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}
	if tx.Inputs, err = ParsePublicInputs(r.next(PublicInputsSize)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}
	copy(tx.Recipient[:], r.next(AccountSize))
	return &tx, nil
}

type reader struct {
	buf []byte
	off int
}

// next never runs past the buffer: callers validate the total length first.
func (r *reader) next(n int) []byte {
	s := r.buf[r.off : r.off+n]
	r.off += n
	return s
}
