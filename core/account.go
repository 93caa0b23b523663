package core

// Account is the ledger's sole owned record per address. Created implicitly
// on first credit, or explicitly via stake/deploy; never destroyed.
//
// Grounded on _examples/original_source/core.py's Account dataclass.
type Account struct {
	Address         string  `json:"address"`
	Balance         float64 `json:"balance"`
	Nonce           uint64  `json:"nonce"`
	CreatedAt       float64 `json:"created_at"`
	UpdatedAt       float64 `json:"updated_at"`
	IsContract      bool    `json:"is_contract"`
	ContractAddress string  `json:"contract_address,omitempty"`
}
