// Package history persists finished transcriptions in an embedded
// key-value store so earlier dictations can be reviewed and re-copied.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const keyPrefix = "entry:"

// Entry is one stored transcription.
type Entry struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Text      string        `json:"text"`
	Language  string        `json:"language,omitempty"`
	App       string        `json:"app,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Store is a badger-backed history log. Entries are keyed by timestamp
// so iteration order is chronological; the store prunes itself to a
// configured maximum on every write.
type Store struct {
	db         *badger.DB
	maxEntries int
}

// Open opens or creates the store at dir. maxEntries bounds the log;
// zero means unbounded.
func Open(dir string, maxEntries int) (*Store, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithNumVersionsToKeep(1)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return &Store{db: db, maxEntries: maxEntries}, nil
}

// Close releases the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add appends one entry, assigning its ID and timestamp if unset, then
// prunes the oldest entries past the configured maximum.
func (s *Store) Add(e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("encode entry: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(e.Timestamp), data)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("store entry: %w", err)
	}

	if s.maxEntries > 0 {
		if err := s.prune(); err != nil {
			return Entry{}, err
		}
	}
	return e, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration needs a seek point past every entry key.
		seek := append([]byte(keyPrefix), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
		for it.Seek(seek); it.Valid() && (limit <= 0 || len(entries) < limit); it.Next() {
			var e Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return fmt.Errorf("decode entry: %w", err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Clear removes every entry.
func (s *Store) Clear() error {
	return s.db.DropPrefix([]byte(keyPrefix))
}

// prune deletes the oldest entries beyond maxEntries.
func (s *Store) prune() error {
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		excess := len(keys) - s.maxEntries
		for i := 0; i < excess; i++ {
			if err := txn.Delete(keys[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// entryKey builds a chronologically sortable key. A nanosecond timestamp
// collides only if two entries land in the same nanosecond, which the
// single-writer pipeline cannot produce.
func entryKey(ts time.Time) []byte {
	key := make([]byte, len(keyPrefix)+8)
	copy(key, keyPrefix)
	binary.BigEndian.PutUint64(key[len(keyPrefix):], uint64(ts.UnixNano()))
	return key
}
