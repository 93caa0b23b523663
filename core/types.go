package core

// Wire and persisted types: transaction kinds, contract status, the
// Transaction and Block envelopes, and their deterministic hashing.
//
// Grounded on _examples/original_source/core.py (Transaction.calculate_hash,
// Block.calculate_hash, the TransactionType/ContractStatus string enums) and
// on the teacher's enum-over-strings style in
// _examples/orbas1-Synnergy/synnergy-network/core/common_structs.go. Hashing
// uses encoding/json against a map[string]interface{}, which the standard
// library always serializes with lexicographically sorted keys — the same
// canonicalization the source gets from `json.dumps(..., sort_keys=True)`.

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// TransactionKind is the closed set of transaction kinds that travel as a
// string on the wire and in persisted form.
type TransactionKind string

const (
	KindTransfer       TransactionKind = "TRANSFER"
	KindContractDeploy TransactionKind = "CONTRACT_DEPLOY"
	KindContractCall   TransactionKind = "CONTRACT_CALL"
	KindStake          TransactionKind = "STAKE"
	KindUnstake        TransactionKind = "UNSTAKE"
)

// IsValid reports whether k is one of the five declared kinds.
func (k TransactionKind) IsValid() bool {
	switch k {
	case KindTransfer, KindContractDeploy, KindContractCall, KindStake, KindUnstake:
		return true
	}
	return false
}

// ContractStatus is the closed set of contract lifecycle states.
type ContractStatus string

const (
	ContractActive    ContractStatus = "ACTIVE"
	ContractPaused    ContractStatus = "PAUSED"
	ContractDestroyed ContractStatus = "DESTROYED"
)

// Transaction is the wire and persisted envelope for a state-mutating
// intent. Hash is the deterministic digest of every other field in
// canonical sorted form; Signature is carried but excluded from the hash
// preimage (spec §9.2 — no verification is performed here).
type Transaction struct {
	From      string                 `json:"from"`
	To        string                 `json:"to"`
	Amount    float64                `json:"amount"`
	Kind      TransactionKind        `json:"transaction_type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	GasLimit  int64                  `json:"gas_limit"`
	GasPrice  float64                `json:"gas_price"`
	Nonce     uint64                 `json:"nonce"`
	Timestamp float64                `json:"timestamp"`
	Signature string                 `json:"signature,omitempty"`
	Hash      string                 `json:"hash"`
}

// CalculateHash recomputes the SHA-256 hex digest of the transaction's
// canonical form, excluding Signature and the Hash field itself.
func (t *Transaction) CalculateHash() (string, error) {
	body := map[string]interface{}{
		"from":             t.From,
		"to":               t.To,
		"amount":           t.Amount,
		"transaction_type": string(t.Kind),
		"data":             t.Data,
		"gas_limit":        t.GasLimit,
		"gas_price":        t.GasPrice,
		"nonce":            t.Nonce,
		"timestamp":        t.Timestamp,
	}
	return canonicalHash(body)
}

// RefreshHash recomputes and stores Hash on the transaction.
func (t *Transaction) RefreshHash() error {
	h, err := t.CalculateHash()
	if err != nil {
		return err
	}
	t.Hash = h
	return nil
}

// Block is the append-only chain entry. Hash is the digest of every other
// field; Nonce here is a cosmetic placeholder carried from the source, not
// a proof-of-work search value — PoCS selects the proposer, it does not
// mine a nonce.
type Block struct {
	Index        uint64         `json:"index"`
	Timestamp    float64        `json:"timestamp"`
	Transactions []*Transaction `json:"transactions"`
	PreviousHash string         `json:"previous_hash"`
	Validator    string         `json:"validator"`
	StateRoot    string         `json:"state_root"`
	Nonce        uint64         `json:"nonce"`
	Hash         string         `json:"hash"`
}

// CalculateHash recomputes the SHA-256 hex digest of the block's canonical
// form, excluding the Hash field itself.
func (b *Block) CalculateHash() (string, error) {
	txHashes := make([]string, 0, len(b.Transactions))
	for _, tx := range b.Transactions {
		txHashes = append(txHashes, tx.Hash)
	}
	body := map[string]interface{}{
		"index":         b.Index,
		"timestamp":     b.Timestamp,
		"transactions":  txHashes,
		"previous_hash": b.PreviousHash,
		"validator":     b.Validator,
		"state_root":    b.StateRoot,
		"nonce":         b.Nonce,
	}
	return canonicalHash(body)
}

// RefreshHash recomputes and stores Hash on the block.
func (b *Block) RefreshHash() error {
	h, err := b.CalculateHash()
	if err != nil {
		return err
	}
	b.Hash = h
	return nil
}

// LedgerEntry is a single immutable journal row. Created only as a side
// effect of a state transition, never mutated afterward.
type LedgerEntry struct {
	ID          string  `json:"id"`
	TxHash      string  `json:"tx_hash"`
	BlockNumber uint64  `json:"block_number"`
	Timestamp   float64 `json:"timestamp"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	Amount      float64 `json:"amount"`
	Kind        string  `json:"kind"`
	Description string  `json:"description"`
	GasCost     float64 `json:"gas_cost"`
}

func canonicalHash(body map[string]interface{}) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("canonical hash: marshal: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
