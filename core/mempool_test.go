package core

import (
	"errors"
	"testing"
)

func testMempool(t *testing.T) (*Mempool, *Ledger, *AddressCodec) {
	t.Helper()
	codec := NewAddressCodec(DefaultHRP)
	params := DefaultNodeParams()
	clock := func() float64 { return 1000.0 }
	ledger := NewLedger(codec, params, clock, nil, nil)
	mp := NewMempool(codec, ledger, params, NewProcessedHashSet())
	return mp, ledger, codec
}

func fundedTransfer(t *testing.T, codec *AddressCodec, ledger *Ledger, amount float64, nonce uint64) *Transaction {
	t.Helper()
	from := mustAddr(t, codec)
	to := mustAddr(t, codec)
	if _, err := ledger.CreateAccount(from, 1000); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	tx := &Transaction{
		From: from, To: to, Amount: amount, Kind: KindTransfer,
		GasLimit: 1, GasPrice: 0.001, Nonce: nonce, Timestamp: 1000,
	}
	h, err := tx.CalculateHash()
	if err != nil {
		t.Fatalf("CalculateHash: %v", err)
	}
	tx.Hash = h
	return tx
}

func TestMempoolAddAccepts(t *testing.T) {
	mp, ledger, codec := testMempool(t)
	tx := fundedTransfer(t, codec, ledger, 10, 0)
	if err := mp.Add(tx); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if mp.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", mp.Len())
	}
}

func TestMempoolRejectsDuplicateHash(t *testing.T) {
	mp, ledger, codec := testMempool(t)
	tx := fundedTransfer(t, codec, ledger, 10, 0)
	if err := mp.Add(tx); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := mp.Add(tx); !errors.Is(err, ErrDuplicateHash) {
		t.Fatalf("err = %v, want ErrDuplicateHash", err)
	}
}

func TestMempoolRejectsWrongNonce(t *testing.T) {
	mp, ledger, codec := testMempool(t)
	tx := fundedTransfer(t, codec, ledger, 10, 5)
	if err := mp.Add(tx); !errors.Is(err, ErrInvalidNonce) {
		t.Fatalf("err = %v, want ErrInvalidNonce", err)
	}
}

func TestMempoolRejectsDuplicateFromNonce(t *testing.T) {
	mp, ledger, codec := testMempool(t)
	from := mustAddr(t, codec)
	to1 := mustAddr(t, codec)
	to2 := mustAddr(t, codec)
	if _, err := ledger.CreateAccount(from, 1000); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	mk := func(to string) *Transaction {
		tx := &Transaction{From: from, To: to, Amount: 1, Kind: KindTransfer, GasLimit: 1, GasPrice: 0.001, Nonce: 0, Timestamp: 1000}
		h, err := tx.CalculateHash()
		if err != nil {
			t.Fatalf("CalculateHash: %v", err)
		}
		tx.Hash = h
		return tx
	}

	if err := mp.Add(mk(to1)); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := mp.Add(mk(to2)); !errors.Is(err, ErrDuplicateNonceInPool) {
		t.Fatalf("err = %v, want ErrDuplicateNonceInPool", err)
	}
}

func TestMempoolRejectsInsufficientFunds(t *testing.T) {
	mp, ledger, codec := testMempool(t)
	from := mustAddr(t, codec)
	to := mustAddr(t, codec)
	if _, err := ledger.CreateAccount(from, 1); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	tx := &Transaction{From: from, To: to, Amount: 1000, Kind: KindTransfer, GasLimit: 1, GasPrice: 0.001, Nonce: 0, Timestamp: 1000}
	h, err := tx.CalculateHash()
	if err != nil {
		t.Fatalf("CalculateHash: %v", err)
	}
	tx.Hash = h
	if err := mp.Add(tx); !errors.Is(err, ErrKindSpecific) {
		t.Fatalf("err = %v, want ErrKindSpecific (wrapping ErrInsufficientFunds)", err)
	}
}

func TestMempoolStakePoolRestriction(t *testing.T) {
	mp, ledger, codec := testMempool(t)
	from := mustAddr(t, codec)
	if _, err := ledger.CreateAccount(from, 1000); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	tx := &Transaction{From: from, To: ReservedStakePool, Amount: 10, Kind: KindTransfer, GasLimit: 1, GasPrice: 0.001, Nonce: 0, Timestamp: 1000}
	h, err := tx.CalculateHash()
	if err != nil {
		t.Fatalf("CalculateHash: %v", err)
	}
	tx.Hash = h
	if err := mp.Add(tx); !errors.Is(err, ErrStakePoolRestricted) {
		t.Fatalf("err = %v, want ErrStakePoolRestricted", err)
	}
}

func TestMempoolGenesisNonceAdoption(t *testing.T) {
	mp, ledger, _ := testMempool(t)
	to := mustAddr(t, mp.codec)
	if _, err := ledger.CreateAccount(ReservedGenesis, 1_000_000); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	tx := &Transaction{From: ReservedGenesis, To: to, Amount: 10, Kind: KindTransfer, GasLimit: 1, GasPrice: 0.001, Nonce: 7, Timestamp: 1000}
	h, err := tx.CalculateHash()
	if err != nil {
		t.Fatalf("CalculateHash: %v", err)
	}
	tx.Hash = h
	if err := mp.Add(tx); err != nil {
		t.Fatalf("Add with ahead-of-account genesis nonce should be adopted, got: %v", err)
	}
	if got := ledger.GetNonce(ReservedGenesis); got != 7 {
		t.Fatalf("genesis nonce after adoption = %d, want 7", got)
	}
}

func TestMempoolTakeAndRemove(t *testing.T) {
	mp, ledger, codec := testMempool(t)
	tx := fundedTransfer(t, codec, ledger, 10, 0)
	if err := mp.Add(tx); err != nil {
		t.Fatalf("Add: %v", err)
	}
	taken := mp.Take(10)
	if len(taken) != 1 {
		t.Fatalf("Take returned %d items, want 1", len(taken))
	}
	if mp.Len() != 1 {
		t.Fatalf("Take must not remove items; Len() = %d, want 1", mp.Len())
	}
	mp.Remove(taken)
	if mp.Len() != 0 {
		t.Fatalf("Len() after Remove = %d, want 0", mp.Len())
	}
}
