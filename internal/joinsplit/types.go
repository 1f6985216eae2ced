package joinsplit

import (
	"errors"
	"fmt"

	"github.com/HamzaZF/zeth-client/internal/protocol"
	"github.com/HamzaZF/zeth-client/internal/wallet"
	"github.com/HamzaZF/zeth-client/internal/zerocash"
)

// Arity is the fixed number of inputs and outputs of every JoinSplit.
const Arity = 2

var (
	ErrValueConservation = errors.New("joinsplit: inputs and outputs do not balance")
	ErrTooManyNotes      = errors.New("joinsplit: more than two inputs or outputs")
	ErrTimeout           = errors.New("joinsplit: timed out")
	ErrInsufficientFunds = errors.New("joinsplit: not enough unspent value")
	ErrStatementMismatch = errors.New("joinsplit: prover returned a different statement")
	ErrUnusableInput     = errors.New("joinsplit: input cannot be spent")
)

// ProofGenerationError wraps any failure of the prover. The transaction is
// abandoned; nothing has left the client.
type ProofGenerationError struct {
	Err error
}

func (e *ProofGenerationError) Error() string {
	return fmt.Sprintf("joinsplit: proof generation failed: %v", e.Err)
}

func (e *ProofGenerationError) Unwrap() error {
	return e.Err
}

// Input is either a real owned note or a dummy slot. Dummies are resolved to
// a fresh zero-value note only when the witness is built, so callers never
// hold one as if it were spendable.
type Input struct {
	record *wallet.NoteRecord
}

func RealInput(r *wallet.NoteRecord) Input {
	return Input{record: r}
}

func DummyInput() Input {
	return Input{}
}

func (in Input) IsDummy() bool {
	return in.record == nil
}

// Record returns the owned note, or nil for a dummy.
func (in Input) Record() *wallet.NoteRecord {
	return in.record
}

func (in Input) value() uint64 {
	if in.record == nil {
		return 0
	}
	return in.record.Note.Value
}

// Output pays Value to Recipient.
type Output struct {
	Recipient zerocash.Address
	Value     uint64
}

// Request describes one JoinSplit. Missing inputs and outputs are padded
// with dummies; dummy outputs go to the sender.
type Request struct {
	Sender    *zerocash.SecretAddress
	Inputs    []Input
	Outputs   []Output
	VIn       uint64
	VOut      uint64
	Recipient protocol.Account
}

// Kind labels a request for logs and metrics.
func (r *Request) Kind() string {
	switch {
	case r.VOut > 0:
		return "withdraw"
	case r.VIn > 0:
		return "deposit"
	default:
		return "transfer"
	}
}

// Plan is what Build knows about a transaction beyond its wire form.
type Plan struct {
	Kind    string
	Witness *protocol.Witness
	// Spends are the real inputs, marked spent once the ledger accepts.
	Spends []*wallet.NoteRecord
}
