package protocol

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/HamzaZF/zeth-client/internal/field"
	"github.com/HamzaZF/zeth-client/internal/merkle"
)

// Proof is a prover's answer: opaque proof bytes and the statement proven.
type Proof struct {
	Bytes  []byte
	Inputs PublicInputs
}

// Prover produces JoinSplit proofs. Implementations may be local or remote.
type Prover interface {
	VerificationKey(ctx context.Context) ([]byte, error)
	Prove(ctx context.Context, w *Witness) (*Proof, error)
}

// Verifier checks a proof against public inputs. The residues of the inputs
// are what is verified; canonical encoding is the caller's concern.
type Verifier interface {
	Verify(ctx context.Context, proof []byte, inputs *PublicInputs) error
}

// MixEvent is what the ledger logs for every accepted transaction. The
// ephemeral key is kept in its wire form.
type MixEvent struct {
	Height      uint64        `json:"height"`
	LeafIndices [2]uint64     `json:"leaf_indices"`
	Commitments [2]field.Word `json:"commitments"`
	Ciphertexts [2][]byte     `json:"ciphertexts"`
	EphemeralPk []byte        `json:"ephemeral_pk"`
}

type TxHash [32]byte

func (h TxHash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h TxHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// Receipt confirms a transaction's inclusion.
type Receipt struct {
	TxHash      TxHash     `json:"tx_hash"`
	Height      uint64     `json:"height"`
	LeafIndices [2]uint64  `json:"leaf_indices"`
	Root        field.Word `json:"root"`
}

// ErrBeyondHead is returned when events are requested past the ledger's
// current height.
var ErrBeyondHead = errors.New("protocol: height beyond ledger head")

// Ledger is the public chain as seen by the engine.
//
// Submit blocks until the transaction is confirmed or rejected; a rejection
// is returned as *RejectionError. FetchMixEvents returns events for heights
// in [from, to] in ledger order, and fails with ErrBeyondHead rather than
// truncating when to exceeds the current height.
type Ledger interface {
	CurrentHeight(ctx context.Context) (uint64, error)
	FetchMixEvents(ctx context.Context, from, to uint64) ([]MixEvent, error)
	Submit(ctx context.Context, tx *MixTransaction) (*Receipt, error)
	TreeSnapshot(ctx context.Context, height uint64) (*merkle.Tree, error)
	NullifierSpent(ctx context.Context, nf field.Word) (bool, error)
}

// Rejection reasons reported by ledgers.
const (
	ReasonMalformed          = "malformed transaction"
	ReasonNonCanonical       = "non-canonical field encoding"
	ReasonInvalidSignature   = "invalid signature"
	ReasonHSigMismatch       = "h_sig does not bind the verification key"
	ReasonUnknownRoot        = "unknown merkle root"
	ReasonNullifierSpent     = "nullifier already spent"
	ReasonDuplicateNullifier = "duplicate nullifier in transaction"
	ReasonInvalidProof       = "invalid proof"
	ReasonInsufficientFunds  = "insufficient public funds"
	ReasonTreeFull           = "commitment tree is full"
)

// RejectionError is a ledger's refusal of a transaction. Reason is reported
// verbatim.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return "submission rejected: " + e.Reason
}

func Reject(reason string) error {
	return &RejectionError{Reason: reason}
}
