package core

// Durable key/value persistence over block:, account:, validator: and
// contract: namespaces, backed by goleveldb. Recovery after a crash yields
// a prefix of the successfully committed writes because goleveldb commits
// each Put synchronously to its own write-ahead log; single-writer
// discipline is enforced by the node's single logical executor, not by
// this store.
//
// Grounded on _examples/orbas1-Synnergy/synnergy-network/core/storage.go
// (the disk-backed LRU/gateway shape: a struct wrapping a handle plus a
// logrus.Entry, constructed with a New... function returning (*T, error))
// and on github.com/syndtr/goleveldb usage in tos-network-gtos and
// certenIO-certen-validator's go.mod, the closest Go analog to the
// original's plyvel (LevelDB) store in original_source/core.py.

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// KVStore is the persistence contract every component that owns durable
// records depends on. Implemented here by LevelStore; test code may supply
// an in-memory fake.
type KVStore interface {
	Put(key string, value []byte) error
	Get(key string) ([]byte, bool, error)
	Iterate(prefix string) (map[string][]byte, error)
	Close() error
}

// LevelStore is the goleveldb-backed KVStore used outside of tests.
type LevelStore struct {
	db  *leveldb.DB
	log *logrus.Entry
}

// OpenLevelStore opens (or creates) a goleveldb database at path.
func OpenLevelStore(path string, log *logrus.Logger) (*LevelStore, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrPersistence, path, err)
	}
	return &LevelStore{db: db, log: log.WithField("component", "storage")}, nil
}

// Put writes value under key, overwriting any existing entry.
func (s *LevelStore) Put(key string, value []byte) error {
	if err := s.db.Put([]byte(key), value, nil); err != nil {
		return fmt.Errorf("%w: put %s: %v", ErrPersistence, key, err)
	}
	return nil
}

// Get reads the value stored under key. The second return value is false
// when the key does not exist; that is not treated as an error.
func (s *LevelStore) Get(key string) ([]byte, bool, error) {
	v, err := s.db.Get([]byte(key), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: get %s: %v", ErrPersistence, key, err)
	}
	return v, true, nil
}

// Iterate returns every key/value pair whose key starts with prefix.
func (s *LevelStore) Iterate(prefix string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()
	for iter.Next() {
		k := string(iter.Key())
		v := make([]byte, len(iter.Value()))
		copy(v, iter.Value())
		out[k] = v
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("%w: iterate %s: %v", ErrPersistence, prefix, err)
	}
	return out, nil
}

// Close releases the underlying database handle.
func (s *LevelStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrPersistence, err)
	}
	return nil
}

// orderedBlockKeys returns the numeric index of every "block:{index}" key in
// raw, sorted ascending; stopping is the caller's job (the
// rehydration routine in chain.go walks this list looking for the first
// gap in the index sequence).
func orderedBlockKeys(raw map[string][]byte) []uint64 {
	indices := make([]uint64, 0, len(raw))
	for k := range raw {
		var idx uint64
		if _, err := fmt.Sscanf(strings.TrimPrefix(k, "block:"), "%d", &idx); err == nil {
			indices = append(indices, idx)
		}
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return indices
}
