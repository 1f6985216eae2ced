// Package wallet keeps the set of notes a wallet owns and brings it up to
// date with the ledger.
//
// A State is mutated only by the Synchronizer, which adds notes found in
// ledger events, and by the transaction builder, which marks notes spent.
// Persistence goes through a Store supplied by the caller.
package wallet

import (
	"math/big"
	"sort"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/HamzaZF/zeth-client/internal/field"
	"github.com/HamzaZF/zeth-client/internal/zerocash"
)

// NoteRecord is an owned note together with where it sits in the tree.
type NoteRecord struct {
	Note       zerocash.Note `json:"note"`
	Commitment field.Word    `json:"commitment"`
	LeafIndex  uint64        `json:"leaf_index"`
	Nullifier  field.Word    `json:"nullifier"`
	Height     uint64        `json:"height"`
	Spent      bool          `json:"spent"`
}

// NewNoteRecord derives the commitment and nullifier of a note owned by
// the holder of ask.
func NewNoteRecord(n *zerocash.Note, ask fr.Element, leafIndex, height uint64) *NoteRecord {
	return &NoteRecord{
		Note:       *n,
		Commitment: field.WordOf(zerocash.Commit(n)),
		LeafIndex:  leafIndex,
		Nullifier:  field.WordOf(zerocash.Nullifier(ask, n.Rho)),
		Height:     height,
	}
}

// State is a wallet's view of the ledger.
type State struct {
	// NextBlock is the first height not yet scanned.
	NextBlock uint64        `json:"next_block"`
	Notes     []*NoteRecord `json:"notes"`
}

func NewState(genesis uint64) *State {
	return &State{NextBlock: genesis}
}

// Add inserts rec unless a note with the same commitment is already known.
// It reports whether rec was new.
func (s *State) Add(rec *NoteRecord) bool {
	if _, ok := s.Lookup(rec.Commitment); ok {
		return false
	}
	s.Notes = append(s.Notes, rec)
	return true
}

func (s *State) Lookup(cm field.Word) (*NoteRecord, bool) {
	for _, r := range s.Notes {
		if r.Commitment == cm {
			return r, true
		}
	}
	return nil, false
}

// MarkSpent flags the note with nullifier nf. It reports whether such an
// unspent note existed.
func (s *State) MarkSpent(nf field.Word) bool {
	for _, r := range s.Notes {
		if r.Nullifier == nf && !r.Spent {
			r.Spent = true
			return true
		}
	}
	return false
}

// Unspent returns unspent records in ledger order.
func (s *State) Unspent() []*NoteRecord {
	var out []*NoteRecord
	for _, r := range s.Notes {
		if !r.Spent {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LeafIndex < out[j].LeafIndex })
	return out
}

// Balance is the total value of unspent notes.
func (s *State) Balance() *big.Int {
	total := new(big.Int)
	for _, r := range s.Unspent() {
		total.Add(total, new(big.Int).SetUint64(r.Note.Value))
	}
	return total
}

func (s *State) Clone() *State {
	out := &State{NextBlock: s.NextBlock, Notes: make([]*NoteRecord, len(s.Notes))}
	for i, r := range s.Notes {
		c := *r
		out.Notes[i] = &c
	}
	return out
}
