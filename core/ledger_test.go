package core

import (
	"errors"
	"testing"
)

func testLedger(t *testing.T) (*Ledger, *AddressCodec) {
	t.Helper()
	codec := NewAddressCodec(DefaultHRP)
	params := DefaultNodeParams()
	clock := func() float64 { return 1000.0 }
	return NewLedger(codec, params, clock, nil, nil), codec
}

func mustAddr(t *testing.T, codec *AddressCodec) string {
	t.Helper()
	addr, err := codec.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return addr
}

func TestLedgerCreateAccountIdempotent(t *testing.T) {
	l, codec := testLedger(t)
	addr := mustAddr(t, codec)

	acc1, err := l.CreateAccount(addr, 100)
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	acc2, err := l.CreateAccount(addr, 500)
	if err != nil {
		t.Fatalf("CreateAccount second call: %v", err)
	}
	if acc1 != acc2 {
		t.Fatalf("CreateAccount returned a different record on second call")
	}
	if got := l.GetBalance(addr); got != 100 {
		t.Fatalf("balance = %v, want 100 (second call must not reset it)", got)
	}
}

func TestLedgerCreateAccountRejectsInvalidAddress(t *testing.T) {
	l, _ := testLedger(t)
	if _, err := l.CreateAccount("not-an-address", 0); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("err = %v, want ErrInvalidAddress", err)
	}
}

func TestLedgerUpdateBalanceBounds(t *testing.T) {
	l, codec := testLedger(t)
	addr := mustAddr(t, codec)
	if _, err := l.CreateAccount(addr, 10); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	if err := l.UpdateBalance(addr, -20, "tx1", 1, "overdraw", 0); !errors.Is(err, ErrBalanceBounds) {
		t.Fatalf("err = %v, want ErrBalanceBounds", err)
	}
	if got := l.GetBalance(addr); got != 10 {
		t.Fatalf("balance changed after a rejected update: got %v, want 10", got)
	}

	if err := l.UpdateBalance(addr, 5, "tx2", 1, "credit", 0); err != nil {
		t.Fatalf("UpdateBalance: %v", err)
	}
	if got := l.GetBalance(addr); got != 15 {
		t.Fatalf("balance = %v, want 15", got)
	}
}

func TestLedgerRecordTransactionJournals(t *testing.T) {
	l, codec := testLedger(t)
	from := mustAddr(t, codec)
	to := mustAddr(t, codec)
	if _, err := l.CreateAccount(from, 100); err != nil {
		t.Fatalf("CreateAccount from: %v", err)
	}
	if _, err := l.CreateAccount(to, 0); err != nil {
		t.Fatalf("CreateAccount to: %v", err)
	}

	if err := l.RecordTransaction("tx1", 1, from, to, 30, KindTransfer, "transfer", 0.01); err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}
	if got := l.GetBalance(from); got != 100-30-0.01 {
		t.Fatalf("from balance = %v, want %v", got, 100-30-0.01)
	}
	if got := l.GetBalance(to); got != 30 {
		t.Fatalf("to balance = %v, want 30", got)
	}

	history := l.GetAccountHistory(from)
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2 (debit + gas)", len(history))
	}
}

func TestLedgerIncrementNonce(t *testing.T) {
	l, codec := testLedger(t)
	addr := mustAddr(t, codec)
	if got := l.GetNonce(addr); got != 0 {
		t.Fatalf("initial nonce = %d, want 0", got)
	}
	if err := l.IncrementNonce(addr); err != nil {
		t.Fatalf("IncrementNonce: %v", err)
	}
	if got := l.GetNonce(addr); got != 1 {
		t.Fatalf("nonce after increment = %d, want 1", got)
	}
}

func TestLedgerTotalSupply(t *testing.T) {
	l, codec := testLedger(t)
	a := mustAddr(t, codec)
	b := mustAddr(t, codec)
	if _, err := l.CreateAccount(a, 40); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if _, err := l.CreateAccount(b, 60); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if got := l.TotalSupply(); got != 100 {
		t.Fatalf("TotalSupply = %v, want 100", got)
	}
}
