package core

// ContractEngine owns the contract_address -> ContractState registry: it
// sanitizes state for JSON round-tripping, validates and sandboxes deploy
// source, and dispatches calls into the sandbox interpreter.
//
// Grounded on _examples/original_source/core.py's SmartContractEngine
// (deploy_contract / _sanitize_contract_state / _sanitize_value /
// call_contract / get_contract_state / _execute_contract_function /
// _emit_event / _revert_contract_state).

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// ContractEvent is one emitted event row, appended to the engine's event
// log by emit_event or synthesized on deploy (ContractDeployed).
type ContractEvent struct {
	ContractAddress string                 `json:"contract_address"`
	Name            string                 `json:"name"`
	Payload         map[string]interface{} `json:"payload"`
	Timestamp       float64                `json:"timestamp"`
}

// ContractState is the persisted record for one deployed contract.
type ContractState struct {
	Address   string                 `json:"address"`
	Code      string                 `json:"code"`
	Data      map[string]interface{} `json:"data"`
	Owner     string                 `json:"owner"`
	Status    ContractStatus         `json:"status"`
	CreatedAt float64                `json:"created_at"`
	UpdatedAt float64                `json:"updated_at"`
}

// ContractEngine is safe for concurrent use; the node's single logical
// executor is expected to be its only caller.
type ContractEngine struct {
	mu        sync.Mutex
	codec     *AddressCodec
	clock     Clock
	store     KVStore
	log       *logrus.Entry
	gasBudget uint64
	contracts map[string]*ContractState
	events    []ContractEvent
}

// NewContractEngine constructs an empty contract registry. gasBudget bounds
// both source validation (§4.6) and each call's execution; it is
// independent of transaction gas_limit, which the engine never reads.
func NewContractEngine(codec *AddressCodec, clock Clock, store KVStore, log *logrus.Logger, gasBudget uint64) *ContractEngine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ContractEngine{
		codec:     codec,
		clock:     clock,
		store:     store,
		log:       log.WithField("component", "contracts"),
		gasBudget: gasBudget,
		contracts: make(map[string]*ContractState),
	}
}

// LoadContract installs an already-persisted contract during rehydration.
func (e *ContractEngine) LoadContract(c *ContractState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.contracts[c.Address] = c
}

// Get returns the contract at address and whether it is registered.
func (e *ContractEngine) Get(address string) (*ContractState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.contracts[address]
	return c, ok
}

// GetState navigates a dotted key path ("a.b.c") into a contract's data and
// returns the value found there, or nil with ok=false.
func (e *ContractEngine) GetState(address string, keyPath string) (interface{}, bool) {
	e.mu.Lock()
	c, ok := e.contracts[address]
	e.mu.Unlock()
	if !ok {
		return nil, false
	}
	var cur interface{} = c.Data
	if keyPath == "" {
		return cur, true
	}
	for _, part := range strings.Split(keyPath, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// Deploy validates source, sandboxes it to charge validation gas, mints a
// fresh address, sanitizes the initial state, and registers the contract.
func (e *ContractEngine) Deploy(owner string, data map[string]interface{}, now float64) (*ContractState, error) {
	code, _ := data["contract_code"].(string)
	if code == "" {
		return nil, fmt.Errorf("%w: contract_code missing", ErrContractValidation)
	}
	if err := ValidateContractSource(code, e.gasBudget); err != nil {
		return nil, err
	}

	addr, err := e.codec.Generate()
	if err != nil {
		return nil, fmt.Errorf("%w: address generation: %v", ErrContractValidation, err)
	}

	initial, _ := data["initial_state"].(map[string]interface{})
	sanitized := sanitizeContractState(initial)

	c := &ContractState{
		Address:   addr,
		Code:      code,
		Data:      sanitized,
		Owner:     owner,
		Status:    ContractActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	e.mu.Lock()
	e.contracts[addr] = c
	e.events = append(e.events, ContractEvent{
		ContractAddress: addr, Name: "ContractDeployed",
		Payload: map[string]interface{}{"owner": owner}, Timestamp: now,
	})
	e.mu.Unlock()

	if err := e.persist(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Call dispatches a function invocation against a deployed, active
// contract. Failures revert any in-memory state change for this call
// (snapshot-on-entry) without persisting the attempted mutation.
func (e *ContractEngine) Call(caller string, block *Block, data map[string]interface{}, now float64, transfer func(to string, amount float64) error) error {
	addr, _ := data["contract_address"].(string)
	if addr == "" {
		return fmt.Errorf("%w: contract_address missing", ErrContractValidation)
	}
	e.mu.Lock()
	c, ok := e.contracts[addr]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrContractNotFound, addr)
	}
	if c.Status != ContractActive {
		return fmt.Errorf("%w: %s is %s", ErrContractNotActive, addr, c.Status)
	}

	function, _ := data["function"].(string)
	args, _ := data["args"].(map[string]interface{})

	snapshot := cloneJSONMap(c.Data)

	interp := newSandboxInterpreter(c, caller, block, e, e.gasBudget)
	interp.transfer = transfer
	if err := interp.CallFunction(function, args); err != nil {
		c.Data = snapshot
		return err
	}

	c.Data = sanitizeContractState(c.Data)
	c.UpdatedAt = now
	return e.persist(c)
}

// emitEvent appends to the engine's event log, exposed to the sandbox as
// the built-in emit_event.
func (e *ContractEngine) emitEvent(contractAddr, name string, payload map[string]interface{}, now float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ContractEvent{
		ContractAddress: contractAddr, Name: name, Payload: payload, Timestamp: now,
	})
}

// Events returns a copy of the engine's event log.
func (e *ContractEngine) Events() []ContractEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ContractEvent, len(e.events))
	copy(out, e.events)
	return out
}

func (e *ContractEngine) persist(c *ContractState) error {
	if e.store == nil {
		return nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("%w: marshal contract %s: %v", ErrPersistence, c.Address, err)
	}
	if err := e.store.Put("contract:"+c.Address, raw); err != nil {
		e.log.WithFields(logrus.Fields{"address": c.Address}).Warn("failed to persist contract")
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func cloneJSONMap(m map[string]interface{}) map[string]interface{} {
	raw, err := json.Marshal(m)
	if err != nil {
		return map[string]interface{}{}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}

// sanitizeContractState recursively enforces the §4.6 sanitization rules so
// that persisted state always round-trips through JSON.
func sanitizeContractState(v interface{}) map[string]interface{} {
	sanitized := sanitizeValue(v)
	m, ok := sanitized.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return m
}

func sanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			key := k
			if key == "" {
				key = "_empty_key"
			}
			sv := sanitizeValue(vv)
			if sv == nil {
				continue
			}
			out[key] = sv
		}
		return out
	case []interface{}:
		out := make([]interface{}, 0, len(val))
		for _, vv := range val {
			sv := sanitizeValue(vv)
			out = append(out, sv)
		}
		return out
	case float64:
		return sanitizeFloat(val)
	case float32:
		return sanitizeFloat(float64(val))
	case string, bool:
		return val
	case int, int32, int64, uint, uint32, uint64:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

func sanitizeFloat(f float64) float64 {
	if math.IsInf(f, 1) {
		return 1e308
	}
	if math.IsInf(f, -1) {
		return -1e308
	}
	if math.IsNaN(f) {
		return 0.0
	}
	return f
}
