// Package protocol defines what crosses the engine's boundary: the
// MixTransaction wire artifact, the public inputs of a JoinSplit proof, the
// prover witness, ledger events and receipts, and the capabilities the engine
// consumes from its prover and ledger.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/HamzaZF/zeth-client/internal/field"
)

// NumPublicInputs is the length of the proof's public-input vector.
const NumPublicInputs = 10

// PublicInputsSize is the wire width of PublicInputs: one word per input.
const PublicInputsSize = NumPublicInputs * field.WordSize

var ErrMalformedInputs = errors.New("protocol: malformed public inputs")

// PublicInputs is the public half of a JoinSplit statement, in the raw-word
// form the ledger sees. Words may be non-canonical until Canonical has been
// checked; the proof system only ever sees their residues.
type PublicInputs struct {
	Root          field.Word    `json:"root"`
	Nullifiers    [2]field.Word `json:"nullifiers"`
	Commitments   [2]field.Word `json:"commitments"`
	HSig          field.Word    `json:"h_sig"`
	SignatureTags [2]field.Word `json:"h"`
	VIn           uint64        `json:"v_in"`
	VOut          uint64        `json:"v_out"`
}

func (pi *PublicInputs) words() []field.Word {
	return []field.Word{
		pi.Root,
		pi.Nullifiers[0], pi.Nullifiers[1],
		pi.Commitments[0], pi.Commitments[1],
		pi.HSig,
		pi.SignatureTags[0], pi.SignatureTags[1],
		valueWord(pi.VIn), valueWord(pi.VOut),
	}
}

func valueWord(v uint64) field.Word {
	var w field.Word
	binary.BigEndian.PutUint64(w[field.WordSize-8:], v)
	return w
}

// Canonical returns field.ErrNonCanonical if any word encodes an integer >= P.
func (pi *PublicInputs) Canonical() error {
	for i, w := range pi.words() {
		if !w.IsCanonical() {
			return fmt.Errorf("public input %d: %w", i, field.ErrNonCanonical)
		}
	}
	return nil
}

// Elements returns the residues of the inputs in circuit order.
func (pi *PublicInputs) Elements() []fr.Element {
	ws := pi.words()
	out := make([]fr.Element, len(ws))
	for i, w := range ws {
		out[i] = w.Reduce()
	}
	return out
}

// Equal compares the raw words, so two encodings of one residue differ.
func (pi *PublicInputs) Equal(o *PublicInputs) bool {
	return *pi == *o
}

// Bytes returns the fixed-width encoding, one big-endian word per input.
func (pi *PublicInputs) Bytes() []byte {
	out := make([]byte, 0, PublicInputsSize)
	for _, w := range pi.words() {
		out = append(out, w[:]...)
	}
	return out
}

// ParsePublicInputs decodes Bytes output. It does not require canonical
// words; value words must fit in 64 bits.
func ParsePublicInputs(b []byte) (PublicInputs, error) {
	if len(b) != PublicInputsSize {
		return PublicInputs{}, ErrMalformedInputs
	}
	ws := make([]field.Word, NumPublicInputs)
	for i := range ws {
		copy(ws[i][:], b[i*field.WordSize:(i+1)*field.WordSize])
	}
	vin, err := wordValue(ws[8])
	if err != nil {
		return PublicInputs{}, err
	}
	vout, err := wordValue(ws[9])
	if err != nil {
		return PublicInputs{}, err
	}
	return PublicInputs{
		Root:          ws[0],
		Nullifiers:    [2]field.Word{ws[1], ws[2]},
		Commitments:   [2]field.Word{ws[3], ws[4]},
		HSig:          ws[5],
		SignatureTags: [2]field.Word{ws[6], ws[7]},
		VIn:           vin,
		VOut:          vout,
	}, nil
}

func wordValue(w field.Word) (uint64, error) {
	for _, b := range w[:field.WordSize-8] {
		if b != 0 {
			return 0, ErrMalformedInputs
		}
	}
	return binary.BigEndian.Uint64(w[field.WordSize-8:]), nil
}
