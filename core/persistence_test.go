package core

import (
	"path/filepath"
	"testing"
)

func TestLevelStorePutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenLevelStore(filepath.Join(dir, "db"), nil)
	if err != nil {
		t.Fatalf("OpenLevelStore: %v", err)
	}
	defer store.Close()

	if err := store.Put("account:lakha1abc", []byte(`{"balance":10}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, ok, err := store.Get("account:lakha1abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("Get did not find the key that was just written")
	}
	if string(v) != `{"balance":10}` {
		t.Fatalf("Get returned %q, want the stored value", v)
	}

	if _, ok, err := store.Get("account:nonexistent"); err != nil || ok {
		t.Fatalf("Get for a missing key = (ok=%v, err=%v), want (false, nil)", ok, err)
	}
}

func TestLevelStoreIteratePrefix(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenLevelStore(filepath.Join(dir, "db"), nil)
	if err != nil {
		t.Fatalf("OpenLevelStore: %v", err)
	}
	defer store.Close()

	store.Put("account:a", []byte("1"))
	store.Put("account:b", []byte("2"))
	store.Put("validator:a", []byte("3"))

	got, err := store.Iterate("account:")
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Iterate(\"account:\") returned %d entries, want 2", len(got))
	}
	if _, ok := got["validator:a"]; ok {
		t.Fatalf("Iterate(\"account:\") leaked a key from a different prefix")
	}
}

func TestLevelStoreReopenSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db")

	store, err := OpenLevelStore(path, nil)
	if err != nil {
		t.Fatalf("OpenLevelStore: %v", err)
	}
	if err := store.Put("block:0", []byte("genesis")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenLevelStore(path, nil)
	if err != nil {
		t.Fatalf("reopen OpenLevelStore: %v", err)
	}
	defer reopened.Close()
	v, ok, err := reopened.Get("block:0")
	if err != nil || !ok {
		t.Fatalf("Get after reopen = (%q, %v, %v), want the original value", v, ok, err)
	}
	if string(v) != "genesis" {
		t.Fatalf("value after reopen = %q, want %q", v, "genesis")
	}
}

func TestBlockchainRehydratesFromStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db")
	clockVal := 3000000.0
	clock := func() float64 { return clockVal }

	store, err := OpenLevelStore(path, nil)
	if err != nil {
		t.Fatalf("OpenLevelStore: %v", err)
	}
	bc := NewBlockchain(BlockchainConfig{Params: DefaultNodeParams(), Store: store, Clock: clock})
	if err := bc.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	addr, err := bc.codec.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !bc.RegisterValidator(addr, 50) {
		t.Fatalf("RegisterValidator returned false")
	}
	to, _ := bc.codec.Generate()
	tx := &Transaction{From: ReservedGenesis, To: to, Amount: 25, Kind: KindTransfer, GasLimit: 1, GasPrice: 0.001, Nonce: 0, Timestamp: clockVal}
	tx.RefreshHash()
	if err := bc.SubmitTransaction(tx); err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}
	if _, err := bc.MineBlockAs(addr); err != nil {
		t.Fatalf("MineBlockAs: %v", err)
	}
	wantChainLen := bc.GetChainLength()
	wantRecipientBalance := bc.GetBalance(to)
	wantValidatorBlocks := func() uint64 {
		v, _ := bc.GetValidator(addr)
		return v.BlocksSuccessful
	}()

	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenLevelStore(path, nil)
	if err != nil {
		t.Fatalf("reopen OpenLevelStore: %v", err)
	}
	defer reopened.Close()

	rebooted := NewBlockchain(BlockchainConfig{Params: DefaultNodeParams(), Store: reopened, Clock: clock})
	if err := rebooted.Boot(); err != nil {
		t.Fatalf("Boot after reopen: %v", err)
	}

	if got := rebooted.GetChainLength(); got != wantChainLen {
		t.Fatalf("GetChainLength() after rehydrate = %d, want %d", got, wantChainLen)
	}
	if got := rebooted.GetBalance(to); got != wantRecipientBalance {
		t.Fatalf("recipient balance after rehydrate = %v, want %v", got, wantRecipientBalance)
	}
	v, ok := rebooted.GetValidator(addr)
	if !ok {
		t.Fatalf("validator missing after rehydrate")
	}
	if v.BlocksSuccessful != wantValidatorBlocks {
		t.Fatalf("BlocksSuccessful after rehydrate = %d, want %d", v.BlocksSuccessful, wantValidatorBlocks)
	}
}
