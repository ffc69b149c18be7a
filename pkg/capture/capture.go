// Package capture records raw event-stream wire chunks into a BadgerDB
// store and replays them later as a demand-driven byte publisher.
//
// A capture session holds the chunks of one stream in arrival order plus
// a small manifest. Replaying a session yields a publisher that is a
// drop-in upstream for the event-stream transformer, which makes
// captures useful both as CLI artifacts and as fixtures for integration
// tests.
package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/eventflow-io/eventflow/pkg/reactive"
)

// ErrNotFound is returned for an unknown session ID.
var ErrNotFound = errors.New("capture: session not found")

// Key layout: "m/<id>" manifest, "c/<id>/<seq BE64>" chunk.
const (
	manifestPrefix = "m/"
	chunkPrefix    = "c/"
)

// Options configures the capture store.
type Options struct {
	// Dir is the directory for BadgerDB data files. Required unless
	// InMemory is set.
	Dir string

	// InMemory runs BadgerDB without disk persistence. Useful for tests.
	InMemory bool

	// Logger sets the badger logger. If nil, a quiet logger is used that
	// forwards only errors and warnings to slog.
	Logger badger.Logger
}

// Store is a capture store backed by BadgerDB.
type Store struct {
	db *badger.DB
}

// Open opens or creates a capture store.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("capture: Options.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if opts.Logger != nil {
		dbOpts = dbOpts.WithLogger(opts.Logger)
	} else {
		dbOpts = dbOpts.WithLogger(quietLogger{})
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("capture: open store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Manifest describes one capture session.
type Manifest struct {
	ID        string    `msgpack:"id"`
	Source    string    `msgpack:"source"`
	CreatedAt time.Time `msgpack:"created_at"`
	Chunks    uint64    `msgpack:"chunks"`
	Bytes     uint64    `msgpack:"bytes"`
}

func manifestKey(id string) []byte { return []byte(manifestPrefix + id) }

func chunkKey(id string, seq uint64) []byte {
	key := make([]byte, 0, len(chunkPrefix)+len(id)+1+8)
	key = append(key, chunkPrefix...)
	key = append(key, id...)
	key = append(key, '/')
	key = binary.BigEndian.AppendUint64(key, seq)
	return key
}

// Begin starts a new capture session. Source is free-form provenance,
// typically the URL the stream was recorded from.
func (s *Store) Begin(source string) (*Writer, error) {
	w := &Writer{
		store: s,
		man: Manifest{
			ID:        uuid.NewString(),
			Source:    source,
			CreatedAt: time.Now().UTC(),
		},
	}
	if err := s.putManifest(w.man); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Store) putManifest(man Manifest) error {
	raw, err := msgpack.Marshal(man)
	if err != nil {
		return fmt.Errorf("capture: encode manifest: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(manifestKey(man.ID), raw)
	})
}

// Writer appends chunks to one session. Not safe for concurrent use by
// multiple goroutines, matching the single-threaded nature of a stream.
type Writer struct {
	store *Store

	mu     sync.Mutex
	man    Manifest
	closed bool
}

// ID returns the session ID.
func (w *Writer) ID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.man.ID
}

// Append records one chunk.
func (w *Writer) Append(chunk []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("capture: append to closed writer")
	}
	seq := w.man.Chunks
	err := w.store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chunkKey(w.man.ID, seq), chunk)
	})
	if err != nil {
		return fmt.Errorf("capture: append chunk %d: %w", seq, err)
	}
	w.man.Chunks++
	w.man.Bytes += uint64(len(chunk))
	return nil
}

// Close finalises the session manifest.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.store.putManifest(w.man)
}

// Session returns the manifest of one session.
func (s *Store) Session(id string) (Manifest, error) {
	var man Manifest
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(manifestKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return msgpack.Unmarshal(v, &man)
		})
	})
	return man, err
}

// Sessions lists all session manifests, oldest first.
func (s *Store) Sessions() ([]Manifest, error) {
	var out []Manifest
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Prefix:         []byte(manifestPrefix),
			PrefetchValues: true,
			PrefetchSize:   16,
		})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var man Manifest
			err := it.Item().Value(func(v []byte) error {
				return msgpack.Unmarshal(v, &man)
			})
			if err != nil {
				return err
			}
			out = append(out, man)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Chunks loads all chunks of a session in recording order.
func (s *Store) Chunks(id string) ([][]byte, error) {
	if _, err := s.Session(id); err != nil {
		return nil, err
	}
	prefix := []byte(chunkPrefix + id + "/")
	var out [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Prefix:         prefix,
			PrefetchValues: true,
			PrefetchSize:   64,
		})
		defer it.Close()
		// Big-endian sequence keys iterate in recording order.
		for it.Rewind(); it.Valid(); it.Next() {
			chunk, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, chunk)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a session and its chunks.
func (s *Store) Delete(id string) error {
	if _, err := s.Session(id); err != nil {
		return err
	}
	prefix := []byte(chunkPrefix + id + "/")
	return s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return txn.Delete(manifestKey(id))
	})
}

// Replay returns a publisher that replays a session's chunks under
// demand. Chunks are loaded up front; captures are bounded recordings,
// not live streams.
func (s *Store) Replay(id string) (reactive.Publisher[[]byte], error) {
	chunks, err := s.Chunks(id)
	if err != nil {
		return nil, err
	}
	return &reactive.SlicePublisher[[]byte]{Items: chunks}, nil
}
