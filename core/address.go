package core

// Address codec — encodes/decodes the 20-byte account identifier used
// throughout the ledger, validator map and contract registry to a
// human-readable Bech32 string under a configurable human-readable prefix
// (HRP, default "lakha"). Two reserved textual identifiers, "genesis" and
// "stake_pool", are accepted anywhere an address is required without
// passing through this codec, but are never produced by Encode.
//
// Grounded on _examples/original_source/address.py (bech32_encode /
// bech32_decode / convertbits), reimplemented here against
// github.com/btcsuite/btcd/btcutil/bech32, the BIP173 reference
// implementation vendored by Klingon-tech-klingdex in the retrieved pack.

import (
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// DefaultHRP is the human-readable prefix used when none is configured.
const DefaultHRP = "lakha"

const addressRawLen = 20

// ReservedGenesis and ReservedStakePool are the two textual identifiers that
// bypass codec validation everywhere an address is accepted.
const (
	ReservedGenesis   = "genesis"
	ReservedStakePool = "stake_pool"
)

// AddressCodec encodes and decodes account identifiers under a fixed HRP.
// A pluggable codec is assumed by spec §4.1; this is the default
// implementation wired into the node.
type AddressCodec struct {
	hrp string
}

// NewAddressCodec constructs a codec for the given HRP. An empty hrp falls
// back to DefaultHRP.
func NewAddressCodec(hrp string) *AddressCodec {
	if hrp == "" {
		hrp = DefaultHRP
	}
	return &AddressCodec{hrp: hrp}
}

// IsReserved reports whether addr is one of the two identifiers that bypass
// codec validation.
func IsReserved(addr string) bool {
	return addr == ReservedGenesis || addr == ReservedStakePool
}

// Generate produces a fresh, codec-valid address from 20 random bytes. It
// never returns a reserved identifier.
func (c *AddressCodec) Generate() (string, error) {
	raw := make([]byte, addressRawLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("address: read random bytes: %w", err)
	}
	return c.Encode(raw)
}

// Encode converts 20 raw bytes into the Bech32 string form.
func (c *AddressCodec) Encode(raw []byte) (string, error) {
	if len(raw) != addressRawLen {
		return "", fmt.Errorf("address: raw identifier must be %d bytes, got %d", addressRawLen, len(raw))
	}
	conv, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("address: convert bits: %w", err)
	}
	enc, err := bech32.Encode(c.hrp, conv)
	if err != nil {
		return "", fmt.Errorf("address: encode: %w", err)
	}
	return enc, nil
}

// Decode recovers the 20 raw bytes backing a codec-valid address. It does
// not accept reserved identifiers; callers should check IsReserved first.
func (c *AddressCodec) Decode(addr string) ([]byte, error) {
	hrp, data, err := bech32.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if hrp != c.hrp {
		return nil, fmt.Errorf("%w: hrp mismatch %q != %q", ErrInvalidAddress, hrp, c.hrp)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != addressRawLen {
		return nil, fmt.Errorf("%w: decoded length %d != %d", ErrInvalidAddress, len(raw), addressRawLen)
	}
	return raw, nil
}

// IsValid reports whether addr is either a reserved identifier or a
// well-formed address under this codec.
func (c *AddressCodec) IsValid(addr string) bool {
	if IsReserved(addr) {
		return true
	}
	_, err := c.Decode(addr)
	return err == nil
}

// IsValidNonReserved reports whether addr decodes under this codec,
// excluding the reserved identifiers. Used where a role restricts an
// address to "a real, codec-minted account".
func (c *AddressCodec) IsValidNonReserved(addr string) bool {
	if IsReserved(addr) {
		return false
	}
	_, err := c.Decode(addr)
	return err == nil
}
