package wallet

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

// Store persists a wallet's State.
type Store interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, s *State) error
}

// FileStore keeps the state as one JSON document.
type FileStore struct {
	Path string
	// Genesis is the NextBlock of a wallet that has never been saved.
	Genesis uint64
}

var _ Store = (*FileStore)(nil)

func (fs *FileStore) Load(ctx context.Context) (*State, error) {
	f, err := os.Open(fs.Path)
	if os.IsNotExist(err) {
		return NewState(fs.Genesis), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load wallet")
	}
	defer f.Close()
	var s State
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return nil, errors.Wrap(err, "load wallet")
	}
	return &s, nil
}

// Save writes the state to a temporary file and renames it over Path, so a
// crash leaves either the old or the new state.
func (fs *FileStore) Save(ctx context.Context, s *State) error {
	tmp, err := os.CreateTemp(filepath.Dir(fs.Path), filepath.Base(fs.Path)+".*")
	if err != nil {
		return errors.Wrap(err, "save wallet")
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		tmp.Close()
		return errors.Wrap(err, "save wallet")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "save wallet")
	}
	return errors.Wrap(os.Rename(tmp.Name(), fs.Path), "save wallet")
}

var (
	keyNextBlock   = []byte("meta/next_block")
	noteKeyPrefix  = []byte("note/")
	noteKeyPastEnd = []byte("note0")
)

func noteKey(r *NoteRecord) []byte {
	return append(append([]byte(nil), noteKeyPrefix...), r.Commitment.String()...)
}

// PebbleStore keeps one key per note plus the sync height.
type PebbleStore struct {
	db      *pebble.DB
	genesis uint64
}

var _ Store = (*PebbleStore)(nil)

// OpenPebbleStore opens or creates a store at path. opts may be nil.
func OpenPebbleStore(path string, genesis uint64, opts *pebble.Options) (*PebbleStore, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, errors.Wrap(err, "open wallet store")
	}
	return &PebbleStore{db: db, genesis: genesis}, nil
}

func (p *PebbleStore) Load(ctx context.Context) (*State, error) {
	s := NewState(p.genesis)

	v, closer, err := p.db.Get(keyNextBlock)
	switch {
	case errors.Is(err, pebble.ErrNotFound):
	case err != nil:
		return nil, errors.Wrap(err, "load wallet")
	default:
		if len(v) != 8 {
			closer.Close()
			return nil, errors.Errorf("load wallet: bad next block length %d", len(v))
		}
		s.NextBlock = binary.BigEndian.Uint64(v)
		closer.Close()
	}

	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: noteKeyPrefix,
		UpperBound: noteKeyPastEnd,
	})
	if err != nil {
		return nil, errors.Wrap(err, "load wallet")
	}
	for iter.First(); iter.Valid(); iter.Next() {
		var r NoteRecord
		if err := json.Unmarshal(iter.Value(), &r); err != nil {
			iter.Close()
			return nil, errors.Wrapf(err, "load wallet: note %s", iter.Key())
		}
		s.Notes = append(s.Notes, &r)
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrap(err, "load wallet")
	}
	sort.SliceStable(s.Notes, func(i, j int) bool { return s.Notes[i].LeafIndex < s.Notes[j].LeafIndex })
	return s, nil
}

// Save replaces the stored state in one synced batch.
func (p *PebbleStore) Save(ctx context.Context, s *State) error {
	b := p.db.NewBatch()
	defer b.Close()

	if err := b.DeleteRange(noteKeyPrefix, noteKeyPastEnd, nil); err != nil {
		return errors.Wrap(err, "save wallet")
	}
	for _, r := range s.Notes {
		v, err := json.Marshal(r)
		if err != nil {
			return errors.Wrap(err, "save wallet")
		}
		if err := b.Set(noteKey(r), v, nil); err != nil {
			return errors.Wrap(err, "save wallet")
		}
	}
	var nb [8]byte
	binary.BigEndian.PutUint64(nb[:], s.NextBlock)
	if err := b.Set(keyNextBlock, nb[:], nil); err != nil {
		return errors.Wrap(err, "save wallet")
	}
	return errors.Wrap(b.Commit(pebble.Sync), "save wallet")
}

func (p *PebbleStore) Close() error {
	return p.db.Close()
}
