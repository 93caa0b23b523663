package core

import (
	"errors"
	"testing"
)

func TestBlockCalculateHashDeterministic(t *testing.T) {
	b := &Block{Index: 1, Timestamp: 100, PreviousHash: "abc", Validator: "v1"}
	h1, err := b.CalculateHash()
	if err != nil {
		t.Fatalf("CalculateHash: %v", err)
	}
	h2, err := b.CalculateHash()
	if err != nil {
		t.Fatalf("CalculateHash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("CalculateHash not deterministic: %s vs %s", h1, h2)
	}
}

func TestBlockCalculateHashChangesWithContent(t *testing.T) {
	b1 := &Block{Index: 1, Timestamp: 100, PreviousHash: "abc", Validator: "v1"}
	b2 := &Block{Index: 1, Timestamp: 100, PreviousHash: "abc", Validator: "v2"}
	h1, _ := b1.CalculateHash()
	h2, _ := b2.CalculateHash()
	if h1 == h2 {
		t.Fatalf("blocks with different validators hashed identically")
	}
}

func TestChainAppendValidatesLinkage(t *testing.T) {
	c := NewChain(nil, nil)
	genesis := &Block{Index: 0, PreviousHash: "0", Validator: ReservedGenesis}
	genesis.RefreshHash()
	if err := c.Append(genesis); err != nil {
		t.Fatalf("append genesis: %v", err)
	}

	bad := &Block{Index: 1, PreviousHash: "wrong", Validator: "v1"}
	bad.RefreshHash()
	if err := c.Append(bad); !errors.Is(err, ErrBlockValidation) {
		t.Fatalf("err = %v, want ErrBlockValidation for bad previous_hash", err)
	}

	good := &Block{Index: 1, PreviousHash: genesis.Hash, Validator: "v1"}
	good.RefreshHash()
	if err := c.Append(good); err != nil {
		t.Fatalf("append good block: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	if c.Tip().Hash != good.Hash {
		t.Fatalf("Tip() did not return the last appended block")
	}
}

func TestChainAppendRejectsWrongIndex(t *testing.T) {
	c := NewChain(nil, nil)
	genesis := &Block{Index: 0, PreviousHash: "0"}
	genesis.RefreshHash()
	if err := c.Append(genesis); err != nil {
		t.Fatalf("append genesis: %v", err)
	}
	skip := &Block{Index: 5, PreviousHash: genesis.Hash}
	skip.RefreshHash()
	if err := c.Append(skip); !errors.Is(err, ErrBlockValidation) {
		t.Fatalf("err = %v, want ErrBlockValidation for out-of-order index", err)
	}
}

func TestChainFindAncestorByHash(t *testing.T) {
	c := NewChain(nil, nil)
	genesis := &Block{Index: 0, PreviousHash: "0"}
	genesis.RefreshHash()
	c.Append(genesis)
	b1 := &Block{Index: 1, PreviousHash: genesis.Hash}
	b1.RefreshHash()
	c.Append(b1)

	idx, ok := c.FindAncestorByHash(genesis.Hash)
	if !ok || idx != 0 {
		t.Fatalf("FindAncestorByHash(genesis) = (%d, %v), want (0, true)", idx, ok)
	}
	if _, ok := c.FindAncestorByHash("nonexistent"); ok {
		t.Fatalf("FindAncestorByHash matched a hash that was never appended")
	}
}
