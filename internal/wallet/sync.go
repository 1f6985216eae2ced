package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/HamzaZF/zeth-client/internal/field"
	"github.com/HamzaZF/zeth-client/internal/metrics"
	"github.com/HamzaZF/zeth-client/internal/protocol"
	"github.com/HamzaZF/zeth-client/internal/zerocash"
)

// EventSource is the part of the ledger the synchronizer reads.
type EventSource interface {
	CurrentHeight(ctx context.Context) (uint64, error)
	FetchMixEvents(ctx context.Context, from, to uint64) ([]protocol.MixEvent, error)
}

// NullifierSource answers whether a nullifier has been consumed.
type NullifierSource interface {
	NullifierSpent(ctx context.Context, nf field.Word) (bool, error)
}

// ErrIncompleteRange is returned when a source answers a range with missing
// or out-of-order events.
var ErrIncompleteRange = errors.New("sync: event range incomplete")

// Synchronizer scans ledger events for notes addressed to a set of keys.
type Synchronizer struct {
	source  EventSource
	keys    []*zerocash.SecretAddress
	workers int
	log     zerolog.Logger
	metrics *metrics.Metrics
}

type Option func(*Synchronizer)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Synchronizer) { s.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Synchronizer) { s.metrics = m }
}

// WithWorkers bounds how many events are decrypted at once.
func WithWorkers(n int) Option {
	return func(s *Synchronizer) { s.workers = n }
}

func NewSynchronizer(source EventSource, keys []*zerocash.SecretAddress, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		source:  source,
		keys:    keys,
		workers: 8,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync scans up to the ledger's current height.
func (s *Synchronizer) Sync(ctx context.Context, st *State) (int, error) {
	h, err := s.source.CurrentHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("sync: current height: %w", err)
	}
	return s.SyncTo(ctx, st, h)
}

// SyncTo scans heights [st.NextBlock, height] and adds every note that opens
// under one of the keys. It returns the number of new notes. st is modified
// only when the whole range has been processed, so an interrupted sync
// rescans the same range next time. A height past the source's head is an
// error and st is left as it was.
func (s *Synchronizer) SyncTo(ctx context.Context, st *State, height uint64) (int, error) {
	if height < st.NextBlock {
		return 0, nil
	}
	head, err := s.source.CurrentHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("sync: current height: %w", err)
	}
	if height > head {
		return 0, fmt.Errorf("sync: %w: %d > %d", protocol.ErrBeyondHead, height, head)
	}
	events, err := s.source.FetchMixEvents(ctx, st.NextBlock, height)
	if err != nil {
		return 0, fmt.Errorf("sync: fetch events [%d, %d]: %w", st.NextBlock, height, err)
	}
	for i := range events {
		if want := st.NextBlock + uint64(i); events[i].Height != want {
			return 0, fmt.Errorf("%w: got height %d, want %d", ErrIncompleteRange, events[i].Height, want)
		}
	}
	if uint64(len(events)) != height-st.NextBlock+1 {
		return 0, fmt.Errorf("%w: %d events for [%d, %d]", ErrIncompleteRange, len(events), st.NextBlock, height)
	}

	found := make([][]*NoteRecord, len(events))
	misses := make([]int, len(events))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range events {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			found[i], misses[i] = s.scan(&events[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	added, missed := 0, 0
	for i := range events {
		missed += misses[i]
		for _, rec := range found[i] {
			if st.Add(rec) {
				added++
				s.log.Info().Uint64("height", rec.Height).Uint64("leaf", rec.LeafIndex).
					Uint64("value", rec.Note.Value).Msg("discovered note")
			}
		}
	}
	st.NextBlock = height + 1

	s.metrics.NotesDiscovered(added)
	s.metrics.DecryptMisses(missed)
	s.metrics.SyncedHeight(height)
	s.log.Debug().Int("events", len(events)).Int("added", added).Int("misses", missed).
		Uint64("next_block", st.NextBlock).Msg("sync complete")
	return added, nil
}

// scan tries every output of ev against every key. A note that decrypts
// but does not match the logged commitment, or is not addressed to the key
// that opened it, is dropped.
func (s *Synchronizer) scan(ev *protocol.MixEvent) ([]*NoteRecord, int) {
	eph, err := field.DecodePoint(ev.EphemeralPk)
	if err != nil {
		s.log.Debug().Uint64("height", ev.Height).Err(err).Msg("event with undecodable ephemeral key")
		return nil, len(ev.Ciphertexts)
	}

	var out []*NoteRecord
	misses := 0
	for j, ct := range ev.Ciphertexts {
		rec := s.open(ev, j, ct, eph)
		if rec == nil {
			misses++
			continue
		}
		out = append(out, rec)
	}
	return out, misses
}

func (s *Synchronizer) open(ev *protocol.MixEvent, j int, ct []byte, eph bn254.G1Affine) *NoteRecord {
	for _, key := range s.keys {
		note, ok := zerocash.TryDecryptNote(ct, eph, &key.Enc, j)
		if !ok {
			continue
		}
		apk := key.Public().Apk
		if !note.Apk.Equal(&apk) {
			s.log.Debug().Uint64("height", ev.Height).Int("output", j).Msg("note not addressed to decrypting key")
			continue
		}
		rec := NewNoteRecord(note, key.Ask, ev.LeafIndices[j], ev.Height)
		if rec.Commitment != ev.Commitments[j] {
			s.log.Debug().Uint64("height", ev.Height).Int("output", j).Msg("note does not match logged commitment")
			continue
		}
		return rec
	}
	return nil
}

// Reconcile marks spent every unspent note whose nullifier the ledger has
// consumed, for when a submission's outcome was never observed. It returns
// the number of notes marked.
func Reconcile(ctx context.Context, st *State, ledger NullifierSource) (int, error) {
	marked := 0
	for _, r := range st.Unspent() {
		spent, err := ledger.NullifierSpent(ctx, r.Nullifier)
		if err != nil {
			return marked, fmt.Errorf("reconcile: %w", err)
		}
		if spent && st.MarkSpent(r.Nullifier) {
			marked++
		}
	}
	return marked, nil
}
