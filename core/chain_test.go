package core

import (
	"errors"
	"testing"
	"time"
)

func testBlockchain(t *testing.T) *Blockchain {
	t.Helper()
	clockVal := 2000000.0
	clock := func() float64 { return clockVal }
	bc := NewBlockchain(BlockchainConfig{
		Params: DefaultNodeParams(),
		Clock:  clock,
	})
	if err := bc.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	return bc
}

func TestBlockchainBootCreatesGenesis(t *testing.T) {
	bc := testBlockchain(t)
	if bc.GetChainLength() != 1 {
		t.Fatalf("GetChainLength() = %d, want 1 after boot", bc.GetChainLength())
	}
	tip := bc.GetLatestBlock()
	if tip.Index != 0 || tip.PreviousHash != "0" || tip.Validator != ReservedGenesis {
		t.Fatalf("genesis block malformed: %+v", tip)
	}
	if got := bc.GetBalance(ReservedGenesis); got != GenesisFunding {
		t.Fatalf("genesis balance = %v, want %v", got, GenesisFunding)
	}
}

func TestBlockchainMineBlockFromGenesis(t *testing.T) {
	bc := testBlockchain(t)
	to, err := bc.codec.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	tx := &Transaction{From: ReservedGenesis, To: to, Amount: 100, Kind: KindTransfer, GasLimit: 1, GasPrice: 0.001, Nonce: 0, Timestamp: 0}
	tx.RefreshHash()
	if err := bc.SubmitTransaction(tx); err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}

	ok, err := bc.MineBlock()
	if err != nil {
		t.Fatalf("MineBlock: %v", err)
	}
	if !ok {
		t.Fatalf("MineBlock reported failure")
	}
	if bc.GetChainLength() != 2 {
		t.Fatalf("GetChainLength() = %d, want 2", bc.GetChainLength())
	}
	if got := bc.GetBalance(to); got != 100 {
		t.Fatalf("recipient balance = %v, want 100", got)
	}
	if got := bc.GetPending(); len(got) != 0 {
		t.Fatalf("mempool should be drained after mining, has %d pending", len(got))
	}
}

func TestBlockchainReplayRejected(t *testing.T) {
	bc := testBlockchain(t)
	to, _ := bc.codec.Generate()
	tx := &Transaction{From: ReservedGenesis, To: to, Amount: 10, Kind: KindTransfer, GasLimit: 1, GasPrice: 0.001, Nonce: 0, Timestamp: 0}
	tx.RefreshHash()
	if err := bc.SubmitTransaction(tx); err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}
	if _, err := bc.MineBlock(); err != nil {
		t.Fatalf("MineBlock: %v", err)
	}

	replay := &Transaction{From: ReservedGenesis, To: to, Amount: 10, Kind: KindTransfer, GasLimit: 1, GasPrice: 0.001, Nonce: 0, Timestamp: 0}
	replay.RefreshHash()
	if err := bc.SubmitTransaction(replay); !errors.Is(err, ErrDuplicateHash) {
		t.Fatalf("err = %v, want ErrDuplicateHash for a reused transaction hash", err)
	}
}

func TestBlockchainRegisterValidatorAndMine(t *testing.T) {
	bc := testBlockchain(t)
	addr, _ := bc.codec.Generate()
	if !bc.RegisterValidator(addr, 50) {
		t.Fatalf("RegisterValidator returned false for a fresh address")
	}
	if _, err := bc.MineBlockAs(addr); err != nil {
		t.Fatalf("MineBlockAs: %v", err)
	}
	v, ok := bc.GetValidator(addr)
	if !ok {
		t.Fatalf("validator not found after mining")
	}
	if v.BlocksSuccessful != 1 {
		t.Fatalf("BlocksSuccessful = %d, want 1", v.BlocksSuccessful)
	}
	if got := bc.GetBalance(addr); got != DefaultNodeParams().BlockReward {
		t.Fatalf("validator balance = %v, want block reward %v", got, DefaultNodeParams().BlockReward)
	}
}

func TestBlockchainMineBlockAsRejectsUnregistered(t *testing.T) {
	bc := testBlockchain(t)
	addr, _ := bc.codec.Generate()
	if _, err := bc.MineBlockAs(addr); !errors.Is(err, ErrBlockValidation) {
		t.Fatalf("err = %v, want ErrBlockValidation for an unregistered validator", err)
	}
}

// TestHandleIncomingBlockRequestsCorrectAncestor exercises spec.md §8
// scenario #4: a node that only has the genesis block, on receiving a
// block two ahead of its tip, must request its own next index (1), not
// index 0 (which it already has and would just be dropped again).
func TestHandleIncomingBlockRequestsCorrectAncestor(t *testing.T) {
	clockVal := 4000000.0
	clock := func() float64 { return clockVal }

	nodeA := NewBlockchain(BlockchainConfig{
		Params: DefaultNodeParams(), Clock: clock, ListenAddr: "127.0.0.1:18901",
	})
	if err := nodeA.Boot(); err != nil {
		t.Fatalf("nodeA Boot: %v", err)
	}
	defer nodeA.Stop()

	if _, err := nodeA.MineBlockAs(ReservedGenesis); err != nil {
		t.Fatalf("mine B1 on nodeA: %v", err)
	}

	nodeB := NewBlockchain(BlockchainConfig{
		Params: DefaultNodeParams(), Clock: clock,
		ListenAddr: "127.0.0.1:18902", Peers: []string{"127.0.0.1:18901"},
	})
	if err := nodeB.Boot(); err != nil {
		t.Fatalf("nodeB Boot: %v", err)
	}
	defer nodeB.Stop()

	time.Sleep(200 * time.Millisecond) // let nodeB's outbound connection register on nodeA

	if _, err := nodeA.MineBlockAs(ReservedGenesis); err != nil {
		t.Fatalf("mine B2 on nodeA: %v", err)
	}

	time.Sleep(300 * time.Millisecond) // request_block/block_response round trip

	if got := nodeB.GetChainLength(); got != 2 {
		t.Fatalf("nodeB.GetChainLength() = %d, want 2 (it should have backfilled block 1, not re-requested block 0)", got)
	}
	b1, ok := nodeB.GetBlock(1)
	if !ok {
		t.Fatalf("nodeB never received block 1 via ancestor backfill")
	}
	wantB1, ok := nodeA.GetBlock(1)
	if !ok || b1.Hash != wantB1.Hash {
		t.Fatalf("nodeB's block 1 = %+v, want nodeA's block 1 = %+v", b1, wantB1)
	}
}
