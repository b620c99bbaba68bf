// Package store provides bbolt-based persistence for vizedit.
// It keeps queries, their visualizations, cached result snapshots, analytics
// events and configured remotes in a single embedded bbolt database file.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned by mutations that target a missing record.
// Lookups return (nil, nil) instead.
var ErrNotFound = errors.New("not found")

// ErrQueryMismatch is returned when an update would move a visualization to
// another query.
var ErrQueryMismatch = errors.New("query mismatch")

// Bucket names used by the store.
var (
	bucketQueries        = []byte("queries")
	bucketVisualizations = []byte("visualizations")
	bucketResults        = []byte("results")
	bucketEvents         = []byte("events")
	bucketKV             = []byte("kv")
	bucketCounters       = []byte("counters")
	bucketRemotes        = []byte("remotes")
	bucketRemoteTokens   = []byte("remote_tokens")
)

// SchemaVersion is the layout version written to new databases.
const SchemaVersion = "1"

const keySchemaVersion = "schema_version"

// Counter key names.
var (
	counterQueryID = []byte("next_query_id")
	counterVizID   = []byte("next_visualization_id")
	counterEventID = []byte("next_event_id")
)

// Store represents the bbolt database store.
type Store struct {
	db *bolt.DB
}

// New opens or creates a bbolt database at the given path.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &Store{db: db}, nil
}

// Open opens the database and creates its buckets.
func Open(dbPath string) (*Store, error) {
	st, err := New(dbPath)
	if err != nil {
		return nil, err
	}
	if err := st.Initialize(); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Initialize creates all required buckets.
func (s *Store) Initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketQueries,
			bucketVisualizations,
			bucketResults,
			bucketEvents,
			bucketKV,
			bucketCounters,
			bucketRemotes,
			bucketRemoteTokens,
		}
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}

		kv := tx.Bucket(bucketKV)
		switch v := kv.Get([]byte(keySchemaVersion)); {
		case v == nil:
			return kv.Put([]byte(keySchemaVersion), []byte(SchemaVersion))
		case string(v) != SchemaVersion:
			return fmt.Errorf("database schema version %s is not supported (want %s)", v, SchemaVersion)
		}
		return nil
	})
}

// Ping checks that the database is open and readable.
func (s *Store) Ping() error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketQueries) == nil {
			return fmt.Errorf("queries bucket not found")
		}
		return nil
	})
}

// GetValue gets a value from the key-value bucket.
func (s *Store) GetValue(key string) (string, error) {
	var val string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKV)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(key))
		if v != nil {
			val = string(v)
		}
		return nil
	})
	return val, err
}

// SetValue sets a value in the key-value bucket.
func (s *Store) SetValue(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKV)
		if b == nil {
			return fmt.Errorf("kv bucket not found")
		}
		return b.Put([]byte(key), []byte(value))
	})
}

// nextID returns the next value of a counter, starting at 1.
func nextID(tx *bolt.Tx, key []byte) (int64, error) {
	counters := tx.Bucket(bucketCounters)
	if counters == nil {
		return 0, fmt.Errorf("counters bucket not found")
	}

	id := int64(1)
	if val := counters.Get(key); val != nil {
		n, err := strconv.ParseInt(string(val), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse counter %s: %w", key, err)
		}
		id = n
	}

	if err := counters.Put(key, []byte(strconv.FormatInt(id+1, 10))); err != nil {
		return 0, fmt.Errorf("update counter %s: %w", key, err)
	}
	return id, nil
}

// idKey encodes an id so that byte order matches numeric order.
func idKey(id int64) []byte {
	return []byte(fmt.Sprintf("%016d", id))
}
