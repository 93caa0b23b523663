package core

// ValidateTransaction and ProcessTransaction implement the per-kind
// admission and application rules of spec §4.5.
//
// Grounded on _examples/original_source/core.py's validate_transaction and
// process_transaction dispatch.

import (
	"fmt"
)

func gasCost(tx *Transaction, params NodeParams) float64 {
	return float64(tx.GasLimit) * params.NodeGasPrice
}

// ValidateTransaction checks balance sufficiency against the node's fixed
// gas price (spec §9.1 decision: mirror (a), never tx.GasPrice) and the
// kind-specific preconditions.
func ValidateTransaction(tx *Transaction, ledger *Ledger, params NodeParams) error {
	required := tx.Amount + gasCost(tx, params)
	if ledger.GetBalance(tx.From) < required {
		return fmt.Errorf("%w: balance below %.8f", ErrInsufficientFunds, required)
	}

	switch tx.Kind {
	case KindTransfer:
		if tx.Amount <= 0 {
			return fmt.Errorf("%w: TRANSFER requires amount > 0", ErrKindSpecific)
		}
	case KindContractDeploy:
		if tx.Data == nil {
			return fmt.Errorf("%w: CONTRACT_DEPLOY requires data.contract_code", ErrKindSpecific)
		}
		if code, _ := tx.Data["contract_code"].(string); code == "" {
			return fmt.Errorf("%w: CONTRACT_DEPLOY requires data.contract_code", ErrKindSpecific)
		}
	case KindContractCall:
		if tx.Data == nil {
			return fmt.Errorf("%w: CONTRACT_CALL requires data.contract_address", ErrKindSpecific)
		}
		if addr, _ := tx.Data["contract_address"].(string); addr == "" {
			return fmt.Errorf("%w: CONTRACT_CALL requires data.contract_address", ErrKindSpecific)
		}
	case KindStake:
		if tx.Amount < params.MinStake {
			return fmt.Errorf("%w: STAKE requires amount >= %.8f", ErrKindSpecific, params.MinStake)
		}
	case KindUnstake:
		// Declared but has no processing branch (spec §9.3): admission
		// rejects until a policy is supplied.
		return ErrUnstakeNotSupported
	default:
		return fmt.Errorf("%w: unknown transaction kind %q", ErrKindSpecific, tx.Kind)
	}
	return nil
}

// transitionDeps bundles the components ProcessTransaction dispatches
// into, avoiding a long positional parameter list.
type transitionDeps struct {
	Ledger     *Ledger
	Validators *ValidatorManager
	Contracts  *ContractEngine
	Params     NodeParams
}

// ProcessTransaction applies tx's effects and increments the sender's
// nonce by one, except when the transaction produced no effect at all
// (a balance-bounds rejection on the very first ledger move), in which
// case the caller should treat it as skipped without a nonce bump.
func ProcessTransaction(tx *Transaction, deps transitionDeps, blockNumber uint64, block *Block, now float64) error {
	switch tx.Kind {
	case KindTransfer:
		gas := gasCost(tx, deps.Params)
		if err := deps.Ledger.RecordTransaction(tx.Hash, blockNumber, tx.From, tx.To, tx.Amount, tx.Kind, "transfer", gas); err != nil {
			return err
		}
		return deps.Ledger.IncrementNonce(tx.From)

	case KindContractDeploy:
		gas := gasCost(tx, deps.Params)
		if err := deps.Ledger.UpdateBalance(tx.From, -gas, tx.Hash, blockNumber, "contract_deploy gas", gas); err != nil {
			return err
		}
		state, derr := deps.Contracts.Deploy(tx.From, tx.Data, now)
		if derr != nil {
			_ = deps.Ledger.UpdateBalance(tx.From, gas, tx.Hash, blockNumber, "contract_deploy gas refund", 0)
			_ = deps.Ledger.IncrementNonce(tx.From)
			return derr
		}
		deps.Ledger.MarkContract(state.Address)
		return deps.Ledger.IncrementNonce(tx.From)

	case KindContractCall:
		gas := gasCost(tx, deps.Params)
		if err := deps.Ledger.UpdateBalance(tx.From, -gas, tx.Hash, blockNumber, "contract_call gas", gas); err != nil {
			return err
		}
		transferFn := func(to string, amount float64) error {
			return deps.Ledger.RecordTransaction(tx.Hash, blockNumber, tx.From, to, amount, tx.Kind, "contract transfer", 0)
		}
		cerr := deps.Contracts.Call(tx.From, block, tx.Data, now, transferFn)
		if cerr != nil {
			_ = deps.Ledger.UpdateBalance(tx.From, gas, tx.Hash, blockNumber, "contract_call gas refund", 0)
			_ = deps.Ledger.IncrementNonce(tx.From)
			return cerr
		}
		return deps.Ledger.IncrementNonce(tx.From)

	case KindStake:
		gas := gasCost(tx, deps.Params)
		if err := deps.Ledger.RecordTransaction(tx.Hash, blockNumber, tx.From, ReservedStakePool, tx.Amount, tx.Kind, "stake", gas); err != nil {
			return err
		}
		deps.Validators.Register(tx.From, tx.Amount)
		return deps.Ledger.IncrementNonce(tx.From)

	case KindUnstake:
		return ErrUnstakeNotSupported

	default:
		return fmt.Errorf("%w: unknown transaction kind %q", ErrKindSpecific, tx.Kind)
	}
}
