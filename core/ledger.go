package core

// Ledger owns every Account record: balance arithmetic with overflow/
// underflow guards, and the append-only double-entry journal.
//
// Grounded on _examples/original_source/core.py's Ledger class
// (create_account / get_balance / update_balance / record_transaction /
// get_account_history / get_accounts_summary / get_total_supply), and on
// the teacher's mutex-guarded, map-backed persistence idiom in
// _examples/orbas1-Synnergy/synnergy-network/core/ledger.go. Journal entry
// IDs use github.com/google/uuid, as the teacher's core/storage.go does for
// its own record identifiers.

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Ledger is the sole owner of Account state. Safe for concurrent use, but
// the node's single logical executor is expected to be its only caller.
type Ledger struct {
	mu       sync.Mutex
	codec    *AddressCodec
	params   NodeParams
	clock    Clock
	store    KVStore
	log      *logrus.Entry
	accounts map[string]*Account
	history  map[string][]LedgerEntry
}

// NewLedger constructs an empty ledger. store may be nil for an in-memory,
// non-durable ledger (used by tests).
func NewLedger(codec *AddressCodec, params NodeParams, clock Clock, store KVStore, log *logrus.Logger) *Ledger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Ledger{
		codec:    codec,
		params:   params,
		clock:    clock,
		store:    store,
		log:      log.WithField("component", "ledger"),
		accounts: make(map[string]*Account),
		history:  make(map[string][]LedgerEntry),
	}
}

// LoadAccount installs an already-persisted account into memory, used
// during rehydration. It bypasses codec validation since the value was
// already accepted once.
func (l *Ledger) LoadAccount(acc *Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[acc.Address] = acc
}

// CreateAccount idempotently ensures an Account row exists for address,
// rejecting addresses that are neither reserved nor codec-valid.
func (l *Ledger) CreateAccount(address string, initialBalance float64) (*Account, error) {
	if !l.codec.IsValid(address) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if acc, ok := l.accounts[address]; ok {
		return acc, nil
	}
	now := l.clock()
	acc := &Account{
		Address:   address,
		Balance:   initialBalance,
		Nonce:     0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	l.accounts[address] = acc
	if err := l.persistAccount(acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// GetAccount returns the account for address and whether it exists.
func (l *Ledger) GetAccount(address string) (*Account, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[address]
	return acc, ok
}

// GetOrCreateAccount returns the existing account or creates a zero-balance
// one, bypassing the CreateAccount codec check for reserved identifiers
// used internally (e.g. stake_pool).
func (l *Ledger) GetOrCreateAccount(address string) *Account {
	l.mu.Lock()
	if acc, ok := l.accounts[address]; ok {
		l.mu.Unlock()
		return acc
	}
	now := l.clock()
	acc := &Account{Address: address, CreatedAt: now, UpdatedAt: now}
	l.accounts[address] = acc
	l.mu.Unlock()
	_ = l.persistAccount(acc)
	return acc
}

// MarkContract flags address's account as contract-owned, creating it
// first if it does not yet exist. Called once a deploy succeeds so
// AccountsSummary's contract_count reflects reality.
func (l *Ledger) MarkContract(address string) {
	acc := l.GetOrCreateAccount(address)
	l.mu.Lock()
	acc.IsContract = true
	l.mu.Unlock()
	_ = l.persistAccount(acc)
}

// GetBalance returns 0 for unknown addresses.
func (l *Ledger) GetBalance(address string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if acc, ok := l.accounts[address]; ok {
		return acc.Balance
	}
	return 0
}

// IncrementNonce bumps address's nonce by exactly 1, used once per
// successfully processed outgoing transaction.
func (l *Ledger) IncrementNonce(address string) error {
	l.mu.Lock()
	acc, ok := l.accounts[address]
	if !ok {
		now := l.clock()
		acc = &Account{Address: address, CreatedAt: now, UpdatedAt: now}
		l.accounts[address] = acc
	}
	acc.Nonce++
	acc.UpdatedAt = l.clock()
	l.mu.Unlock()
	return l.persistAccount(acc)
}

// GetNonce returns 0 for unknown addresses.
func (l *Ledger) GetNonce(address string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if acc, ok := l.accounts[address]; ok {
		return acc.Nonce
	}
	return 0
}

// UpdateBalance applies delta to address's balance, appending a single
// LedgerEntry and persisting the account. Fails with ErrBalanceBounds if
// the resulting balance would leave [0, MaxBalance].
func (l *Ledger) UpdateBalance(address string, delta float64, txHash string, blockNumber uint64, description string, gasCost float64) error {
	l.mu.Lock()
	acc, ok := l.accounts[address]
	if !ok {
		now := l.clock()
		acc = &Account{Address: address, CreatedAt: now, UpdatedAt: now}
		l.accounts[address] = acc
	}
	newBalance := acc.Balance + delta
	if newBalance < 0 || newBalance > l.params.MaxBalance {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s balance %.8f + %.8f out of [0, %.0f]", ErrBalanceBounds, address, acc.Balance, delta, l.params.MaxBalance)
	}
	acc.Balance = newBalance
	acc.UpdatedAt = l.clock()

	entry := LedgerEntry{
		ID:          uuid.NewString(),
		TxHash:      txHash,
		BlockNumber: blockNumber,
		Timestamp:   acc.UpdatedAt,
		From:        "",
		To:          address,
		Amount:      delta,
		Kind:        "balance_update",
		Description: description,
		GasCost:     gasCost,
	}
	l.history[address] = append(l.history[address], entry)
	l.mu.Unlock()

	return l.persistAccount(acc)
}

// RecordTransaction journals a value movement from -> to as up to three
// separate entries: a debit on the sender, a credit on the receiver, and a
// gas debit on the sender, each recorded only when its condition holds.
func (l *Ledger) RecordTransaction(txHash string, blockNumber uint64, from, to string, amount float64, kind TransactionKind, description string, gasCost float64) error {
	if from != "" && amount > 0 {
		if err := l.UpdateBalance(from, -amount, txHash, blockNumber, description, 0); err != nil {
			return err
		}
		l.tagLastEntry(from, string(kind), to, -amount)
	}
	if to != "" && amount > 0 {
		if err := l.UpdateBalance(to, amount, txHash, blockNumber, description, 0); err != nil {
			return err
		}
		l.tagLastEntry(to, string(kind), from, amount)
	}
	if gasCost > 0 {
		if err := l.UpdateBalance(from, -gasCost, txHash, blockNumber, "gas", gasCost); err != nil {
			return err
		}
		l.tagLastEntry(from, "gas", to, -gasCost)
	}
	return nil
}

func (l *Ledger) tagLastEntry(address, kind, counterparty string, amount float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := l.history[address]
	if len(entries) == 0 {
		return
	}
	last := &entries[len(entries)-1]
	last.Kind = kind
	if amount >= 0 {
		last.From = counterparty
		last.To = address
	} else {
		last.From = address
		last.To = counterparty
	}
}

// GetAccountHistory returns the journal entries recorded against address,
// in the order they were appended.
func (l *Ledger) GetAccountHistory(address string) []LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LedgerEntry, len(l.history[address]))
	copy(out, l.history[address])
	return out
}

// TotalSupply sums every account's balance. Supplemented from the
// original's get_total_supply.
func (l *Ledger) TotalSupply() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total float64
	for _, acc := range l.accounts {
		total += acc.Balance
	}
	return total
}

// AccountsSummary reports account count and total supply. Supplemented
// from the original's get_accounts_summary.
func (l *Ledger) AccountsSummary() map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total float64
	contracts := 0
	for _, acc := range l.accounts {
		total += acc.Balance
		if acc.IsContract {
			contracts++
		}
	}
	return map[string]interface{}{
		"account_count":  len(l.accounts),
		"contract_count": contracts,
		"total_supply":   total,
	}
}

func (l *Ledger) persistAccount(acc *Account) error {
	if l.store == nil {
		return nil
	}
	raw, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("%w: marshal account %s: %v", ErrPersistence, acc.Address, err)
	}
	if err := l.store.Put("account:"+acc.Address, raw); err != nil {
		l.log.WithFields(logrus.Fields{"address": acc.Address}).Warn("failed to persist account")
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
