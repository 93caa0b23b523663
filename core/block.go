package core

// Chain is the ordered, append-only sequence of Blocks. It owns only
// storage and lookup; block production/validation/application live on the
// Blockchain orchestrator in chain.go, since those steps need the ledger,
// mempool, validator registry, and contract engine together.
//
// Grounded on _examples/orbas1-Synnergy/synnergy-network/core/ledger.go's
// WAL-replay chain storage shape (AppendBlock / LastBlockHash), adapted
// from a WAL file to the goleveldb-backed KVStore used throughout this
// repository.

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Chain holds the committed block sequence in memory, backed by the
// block:{index} namespace in the durable store.
type Chain struct {
	mu     sync.Mutex
	blocks []*Block
	store  KVStore
	log    *logrus.Entry
}

// NewChain constructs an empty chain.
func NewChain(store KVStore, log *logrus.Logger) *Chain {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Chain{store: store, log: log.WithField("component", "chain")}
}

// LoadBlock installs an already-persisted block during rehydration. Caller
// is responsible for loading blocks in ascending index order.
func (c *Chain) LoadBlock(b *Block) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks = append(c.blocks, b)
}

// Len returns the chain length (genesis counts as one block).
func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.blocks)
}

// Tip returns the most recently appended block, or nil if the chain is
// empty.
func (c *Chain) Tip() *Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.blocks) == 0 {
		return nil
	}
	return c.blocks[len(c.blocks)-1]
}

// Get returns the block at index, if present.
func (c *Chain) Get(index uint64) (*Block, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index >= uint64(len(c.blocks)) {
		return nil, false
	}
	return c.blocks[index], true
}

// FindAncestorByHash returns the index of the block whose hash equals
// prevHash, used by the P2P fork-backfill rule: the first missing
// ancestor is the index following this one.
func (c *Chain) FindAncestorByHash(prevHash string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.blocks) - 1; i >= 0; i-- {
		if c.blocks[i].Hash == prevHash {
			return uint64(i), true
		}
	}
	return 0, false
}

// Append validates index/previous_hash linkage, persists, and appends b.
func (c *Chain) Append(b *Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if int(b.Index) != len(c.blocks) {
		return fmt.Errorf("%w: expected index %d, got %d", ErrBlockValidation, len(c.blocks), b.Index)
	}
	if len(c.blocks) > 0 && b.PreviousHash != c.blocks[len(c.blocks)-1].Hash {
		return fmt.Errorf("%w: previous_hash mismatch", ErrBlockValidation)
	}
	if err := c.persist(b); err != nil {
		return err
	}
	c.blocks = append(c.blocks, b)
	return nil
}

func (c *Chain) persist(b *Block) error {
	if c.store == nil {
		return nil
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("%w: marshal block %d: %v", ErrPersistence, b.Index, err)
	}
	key := fmt.Sprintf("block:%d", b.Index)
	if err := c.store.Put(key, raw); err != nil {
		c.log.WithFields(logrus.Fields{"index": b.Index}).Warn("failed to persist block")
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
