package core

import "errors"

// Error kinds surfaced to the RPC/CLI boundary as typed rejection reasons.
// None of these are allowed to escape a transaction boundary and corrupt
// committed state — callers always get one of these sentinels back, wrapped
// with context via fmt.Errorf("%w", ...) where useful.
var (
	ErrInvalidAddress      = errors.New("invalid address")
	ErrInvalidNonce        = errors.New("invalid nonce")
	ErrDuplicateHash       = errors.New("duplicate transaction hash")
	ErrDuplicateNonceInPool = errors.New("duplicate (from, nonce) in mempool")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidGas          = errors.New("invalid gas parameters")
	ErrNegativeAmount      = errors.New("negative amount")
	ErrKindSpecific        = errors.New("transaction kind validation failed")
	ErrMempoolFull         = errors.New("mempool full")
	ErrBalanceBounds       = errors.New("balance out of bounds")
	ErrContractValidation  = errors.New("contract validation failed")
	ErrForbiddenConstruct  = errors.New("forbidden construct in contract source")
	ErrGasExhausted        = errors.New("gas exhausted")
	ErrBlockValidation     = errors.New("block validation failed")
	ErrPersistence         = errors.New("persistence error")
	ErrUnstakeNotSupported = errors.New("unstake has no processing policy")
	ErrContractNotFound    = errors.New("contract not found")
	ErrContractNotActive   = errors.New("contract is not active")
	ErrFunctionNotFound    = errors.New("contract function not found")
	ErrStakePoolRestricted = errors.New("stake_pool only accepts stake transactions")
)
