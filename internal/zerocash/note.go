// note.go - Note type and its fixed-width plaintext encoding.
//
// A Note is a private record of value owned by a shielded address. Its
// commitment goes into the Merkle tree; its nullifier is revealed when it is
// spent.

package zerocash

import (
	"encoding/binary"
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/HamzaZF/zeth-client/internal/field"
)

// NoteSize is the length of an encoded note: apk || value || rho || r.
const NoteSize = 3*field.WordSize + 8

var ErrMalformedNote = errors.New("zerocash: malformed note encoding")

// Note is a private value record. Apk is the spending public key of the owner;
// the encryption half of the address is only needed to deliver the note.
type Note struct {
	Apk   fr.Element `json:"apk"`
	Value uint64     `json:"value"`
	Rho   fr.Element `json:"rho"`
	R     fr.Element `json:"r"`
}

// NewNote creates a note of the given value for apk with fresh rho and r.
func NewNote(apk fr.Element, value uint64) (*Note, error) {
	rho, err := field.RandomScalar()
	if err != nil {
		return nil, err
	}
	return newNoteWithRho(apk, value, rho)
}

func newNoteWithRho(apk fr.Element, value uint64, rho fr.Element) (*Note, error) {
	r, err := field.RandomScalar()
	if err != nil {
		return nil, err
	}
	return &Note{Apk: apk, Value: value, Rho: rho, R: r}, nil
}

// NewOutputNote creates the j-th output note of a transaction, whose rho is
// derived from phi and h_sig.
func NewOutputNote(apk fr.Element, value uint64, phi fr.Element, j int, hSig fr.Element) (*Note, error) {
	return newNoteWithRho(apk, value, OutputRho(phi, j, hSig))
}

// NewDummyNote returns a zero-value note bound to apk, used to pad a
// JoinSplit to two inputs or outputs.
func NewDummyNote(apk fr.Element) (*Note, error) {
	return NewNote(apk, 0)
}

func (n *Note) Commitment() fr.Element {
	return Commit(n)
}

func (n *Note) Equal(o *Note) bool {
	return n.Value == o.Value && n.Apk.Equal(&o.Apk) && n.Rho.Equal(&o.Rho) && n.R.Equal(&o.R)
}

// Encode returns the NoteSize-byte plaintext encoding of n.
func (n *Note) Encode() []byte {
	out := make([]byte, 0, NoteSize)
	apk := n.Apk.Bytes()
	out = append(out, apk[:]...)
	out = binary.BigEndian.AppendUint64(out, n.Value)
	rho := n.Rho.Bytes()
	out = append(out, rho[:]...)
	r := n.R.Bytes()
	return append(out, r[:]...)
}

// DecodeNote parses an encoding produced by Encode. Field elements must be
// canonical.
func DecodeNote(b []byte) (*Note, error) {
	if len(b) != NoteSize {
		return nil, ErrMalformedNote
	}
	var n Note
	off := 0
	next := func(dst *fr.Element) error {
		if err := dst.SetBytesCanonical(b[off : off+field.WordSize]); err != nil {
			return ErrMalformedNote
		}
		off += field.WordSize
		return nil
	}
	if err := next(&n.Apk); err != nil {
		return nil, err
	}
	n.Value = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	if err := next(&n.Rho); err != nil {
		return nil, err
	}
	if err := next(&n.R); err != nil {
		return nil, err
	}
	return &n, nil
}
