package joinsplit

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/HamzaZF/zeth-client/internal/protocol"
	"github.com/HamzaZF/zeth-client/internal/wallet"
	"github.com/HamzaZF/zeth-client/internal/zerocash"
)

// SelectNotes picks at most two unspent notes worth at least amount: the
// smallest single note that covers it, or else the smallest pair. It returns
// the notes and their total.
func SelectNotes(st *wallet.State, amount uint64) ([]*wallet.NoteRecord, uint64, error) {
	notes := st.Unspent()
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].Note.Value < notes[j].Note.Value })

	for _, r := range notes {
		if r.Note.Value >= amount {
			return []*wallet.NoteRecord{r}, r.Note.Value, nil
		}
	}

	want := new(big.Int).SetUint64(amount)
	var best []*wallet.NoteRecord
	var bestSum *big.Int
	for i := range notes {
		for j := i + 1; j < len(notes); j++ {
			sum := new(big.Int).SetUint64(notes[i].Note.Value)
			sum.Add(sum, new(big.Int).SetUint64(notes[j].Note.Value))
			if sum.Cmp(want) < 0 {
				continue
			}
			if bestSum == nil || sum.Cmp(bestSum) < 0 {
				best, bestSum = []*wallet.NoteRecord{notes[i], notes[j]}, sum
			}
		}
	}
	if best == nil {
		return nil, 0, fmt.Errorf("%w: need %d, have %s across %d notes", ErrInsufficientFunds, amount, st.Balance(), len(notes))
	}
	if !bestSum.IsUint64() {
		// Change would not fit a note.
		return nil, 0, fmt.Errorf("%w: selected notes overflow a single note", ErrUnusableInput)
	}
	return best, bestSum.Uint64(), nil
}

func inputsOf(records []*wallet.NoteRecord) []Input {
	out := make([]Input, len(records))
	for i, r := range records {
		out[i] = RealInput(r)
	}
	return out
}

// Deposit moves public value from the account into new notes, one per
// output.
func (b *Builder) Deposit(ctx context.Context, st *wallet.State, sender *zerocash.SecretAddress, from protocol.Account, outputs ...Output) (*protocol.Receipt, error) {
	req := &Request{Sender: sender, Outputs: outputs, Recipient: from}
	total := new(big.Int)
	for _, o := range outputs {
		total.Add(total, new(big.Int).SetUint64(o.Value))
	}
	if !total.IsUint64() {
		return nil, fmt.Errorf("%w: deposit exceeds 64 bits", ErrValueConservation)
	}
	req.VIn = total.Uint64()
	return b.Execute(ctx, st, req)
}

// Transfer pays amount to the recipient from the sender's notes and returns
// the change to the sender.
func (b *Builder) Transfer(ctx context.Context, st *wallet.State, sender *zerocash.SecretAddress, to zerocash.Address, amount uint64) (*protocol.Receipt, error) {
	notes, total, err := SelectNotes(st, amount)
	if err != nil {
		return nil, err
	}
	req := &Request{
		Sender: sender,
		Inputs: inputsOf(notes),
		Outputs: []Output{
			{Recipient: to, Value: amount},
			{Recipient: sender.Public(), Value: total - amount},
		},
	}
	return b.Execute(ctx, st, req)
}

// Withdraw releases amount to a public account and keeps the change
// shielded.
func (b *Builder) Withdraw(ctx context.Context, st *wallet.State, sender *zerocash.SecretAddress, to protocol.Account, amount uint64) (*protocol.Receipt, error) {
	notes, total, err := SelectNotes(st, amount)
	if err != nil {
		return nil, err
	}
	req := &Request{
		Sender:    sender,
		Inputs:    inputsOf(notes),
		Outputs:   []Output{{Recipient: sender.Public(), Value: total - amount}},
		VOut:      amount,
		Recipient: to,
	}
	return b.Execute(ctx, st, req)
}
