package core

// Mempool is the ordered, capped set of pending transactions. Admission
// enforces the full rule chain from spec §4.4, including the demo-only
// genesis nonce adoption relaxation (§9.5).
//
// Grounded on _examples/original_source/core.py's add_transaction.

import (
	"fmt"
	"sync"
)

// ProcessedHashSet is the set of transaction hashes already applied to some
// block, used for replay protection across the mempool's lifetime.
type ProcessedHashSet struct {
	mu     sync.Mutex
	hashes map[string]bool
}

// NewProcessedHashSet constructs an empty set.
func NewProcessedHashSet() *ProcessedHashSet {
	return &ProcessedHashSet{hashes: make(map[string]bool)}
}

// Contains reports whether hash has already been applied.
func (s *ProcessedHashSet) Contains(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hashes[hash]
}

// Add marks hash as applied.
func (s *ProcessedHashSet) Add(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[hash] = true
}

// Mempool holds admitted, not-yet-applied transactions in insertion order.
type Mempool struct {
	mu          sync.Mutex
	codec       *AddressCodec
	ledger      *Ledger
	params      NodeParams
	processed   *ProcessedHashSet
	txs         []*Transaction
	byHash      map[string]*Transaction
	byFromNonce map[string]bool
}

// NewMempool constructs an empty mempool bound to a ledger (for nonce/
// balance lookups) and the chain-wide processed-hash set.
func NewMempool(codec *AddressCodec, ledger *Ledger, params NodeParams, processed *ProcessedHashSet) *Mempool {
	return &Mempool{
		codec:       codec,
		ledger:      ledger,
		params:      params,
		processed:   processed,
		byHash:      make(map[string]*Transaction),
		byFromNonce: make(map[string]bool),
	}
}

func fromNonceKey(from string, nonce uint64) string {
	return fmt.Sprintf("%s|%d", from, nonce)
}

// Add runs the full admission rule chain and, on success, appends tx to
// the tail of the pool.
func (mp *Mempool) Add(tx *Transaction) error {
	if tx.From == "" || !mp.codec.IsValid(tx.From) {
		return fmt.Errorf("%w: from=%q", ErrInvalidAddress, tx.From)
	}
	if tx.Kind != KindContractDeploy && tx.Kind != KindContractCall {
		if tx.To == "" || !mp.codec.IsValid(tx.To) {
			return fmt.Errorf("%w: to=%q", ErrInvalidAddress, tx.To)
		}
	}
	if tx.To == ReservedStakePool && tx.Kind != KindStake {
		return fmt.Errorf("%w: to=stake_pool requires STAKE, got %s", ErrStakePoolRestricted, tx.Kind)
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.processed.Contains(tx.Hash) || mp.byHash[tx.Hash] != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateHash, tx.Hash)
	}

	accountNonce := mp.ledger.GetNonce(tx.From)
	if tx.Nonce != accountNonce {
		if tx.From == ReservedGenesis && tx.Nonce > accountNonce {
			// Demo-only relaxation (spec §9.5): adopt the higher genesis
			// nonce so multiple nodes funding from genesis can converge
			// without a real nonce-allocation protocol.
			acc := mp.ledger.GetOrCreateAccount(ReservedGenesis)
			acc.Nonce = tx.Nonce
		} else {
			return fmt.Errorf("%w: account nonce %d, tx nonce %d", ErrInvalidNonce, accountNonce, tx.Nonce)
		}
	}

	key := fromNonceKey(tx.From, tx.Nonce)
	if mp.byFromNonce[key] {
		return fmt.Errorf("%w: %s", ErrDuplicateNonceInPool, key)
	}

	if tx.GasLimit <= 0 || tx.GasPrice <= 0 {
		return fmt.Errorf("%w: gas_limit=%d gas_price=%f", ErrInvalidGas, tx.GasLimit, tx.GasPrice)
	}
	if tx.Amount < 0 {
		return fmt.Errorf("%w: amount=%f", ErrNegativeAmount, tx.Amount)
	}

	if err := ValidateTransaction(tx, mp.ledger, mp.params); err != nil {
		return fmt.Errorf("%w: %w", ErrKindSpecific, err)
	}

	if len(mp.txs) >= mp.params.MempoolCap {
		return fmt.Errorf("%w: cap=%d", ErrMempoolFull, mp.params.MempoolCap)
	}

	mp.txs = append(mp.txs, tx)
	mp.byHash[tx.Hash] = tx
	mp.byFromNonce[key] = true
	return nil
}

// Take returns up to n transactions from the head of the pool, in
// insertion order, without removing them.
func (mp *Mempool) Take(n int) []*Transaction {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if n > len(mp.txs) {
		n = len(mp.txs)
	}
	out := make([]*Transaction, n)
	copy(out, mp.txs[:n])
	return out
}

// Remove deletes the given transactions (by hash) from the pool, used
// after a block application round whether or not each transaction
// succeeded.
func (mp *Mempool) Remove(txs []*Transaction) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	toRemove := make(map[string]bool, len(txs))
	for _, tx := range txs {
		toRemove[tx.Hash] = true
		delete(mp.byHash, tx.Hash)
		delete(mp.byFromNonce, fromNonceKey(tx.From, tx.Nonce))
	}
	kept := mp.txs[:0]
	for _, tx := range mp.txs {
		if !toRemove[tx.Hash] {
			kept = append(kept, tx)
		}
	}
	mp.txs = kept
}

// Len returns the number of pending transactions.
func (mp *Mempool) Len() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return len(mp.txs)
}

// Pending returns a copy of every pending transaction, in insertion order.
func (mp *Mempool) Pending() []*Transaction {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	out := make([]*Transaction, len(mp.txs))
	copy(out, mp.txs)
	return out
}
