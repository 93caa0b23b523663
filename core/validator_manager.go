package core

// ValidatorManager owns the registry of active validators: registration,
// PoCS-weighted selection, the periodic peer-review round, and a recorded
// network-condition signal reported by NetworkSummary.
//
// Grounded on _examples/original_source/core.py's select_validator,
// assign_peer_reviews / process_peer_ratings / trigger_peer_reviews,
// update_network_conditions, and get_network_performance_summary, and on
// the teacher's registry-with-mutex shape in
// _examples/orbas1-Synnergy/synnergy-network/core/vm_sandbox_management.go.

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// NetworkCondition is the load signal fed into dynamic weight adjustment.
// Recovered from original_source/core.py's update_network_conditions.
type NetworkCondition string

const (
	NetworkNormal   NetworkCondition = "normal"
	NetworkCongested NetworkCondition = "congested"
	NetworkQuiet    NetworkCondition = "quiet"
)

// ValidatorManager is safe for concurrent use; the node's single logical
// executor is expected to be its only caller.
type ValidatorManager struct {
	mu         sync.Mutex
	params     NodeParams
	clock      Clock
	store      KVStore
	log        *logrus.Entry
	rng        *rand.Rand
	validators map[string]*Validator
	condition  NetworkCondition
	// syntheticPeerReview gates whether TriggerPeerReviews synthesizes
	// noisy ratings (spec §9.4 demo behavior) or is a no-op waiting for a
	// real off-chain collector to populate ratings instead.
	syntheticPeerReview bool
}

// NewValidatorManager constructs an empty validator registry.
func NewValidatorManager(params NodeParams, clock Clock, store KVStore, log *logrus.Logger, syntheticPeerReview bool, seed int64) *ValidatorManager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ValidatorManager{
		params:              params,
		clock:               clock,
		store:               store,
		log:                 log.WithField("component", "validators"),
		rng:                 rand.New(rand.NewSource(seed)),
		validators:          make(map[string]*Validator),
		condition:           NetworkNormal,
		syntheticPeerReview: syntheticPeerReview,
	}
}

// LoadValidator installs an already-persisted validator during rehydration.
func (m *ValidatorManager) LoadValidator(v *Validator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validators[v.Address] = v
}

// Get returns the validator at address and whether it is registered.
func (m *ValidatorManager) Get(address string) (*Validator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.validators[address]
	return v, ok
}

// Count returns the number of registered validators.
func (m *ValidatorManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.validators)
}

// All returns every registered validator, sorted by address for
// deterministic iteration.
func (m *ValidatorManager) All() []*Validator {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Validator, 0, len(m.validators))
	for _, v := range m.validators {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Register creates a Validator record for address with the given stake, if
// one does not already exist. Returns the (possibly pre-existing) record
// and whether a new one was created.
func (m *ValidatorManager) Register(address string, stake float64) (*Validator, bool) {
	m.mu.Lock()
	if v, ok := m.validators[address]; ok {
		m.mu.Unlock()
		return v, false
	}
	now := m.clock()
	v := NewValidator(address, stake, now)
	m.validators[address] = v
	m.mu.Unlock()
	_ = m.persist(v)
	return v, true
}

// SetNetworkCondition records the current load signal, recovered from
// original_source/core.py's update_network_conditions. The value is only
// reported by NetworkSummary; it does not change any validator's
// dynamic_weight_adjustment.
func (m *ValidatorManager) SetNetworkCondition(c NetworkCondition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.condition = c
}

// NetworkCondition returns the current load signal.
func (m *ValidatorManager) NetworkCondition() NetworkCondition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.condition
}

// Select runs PoCS-weighted random selection over active validators,
// falling back to stake-weighted selection if every score is 0. If no
// validators are registered and genesisOnly is true (exactly one block —
// genesis — exists), the reserved "genesis" identifier is returned.
func (m *ValidatorManager) Select(genesisOnly bool) (string, error) {
	now := m.clock()
	vs := m.All()
	if len(vs) == 0 {
		if genesisOnly {
			return ReservedGenesis, nil
		}
		return "", fmt.Errorf("%w: no registered validators", ErrBlockValidation)
	}

	scores := make([]float64, len(vs))
	var total float64
	for i, v := range vs {
		scores[i] = v.Score(now, m.params.ScoreCacheS)
		total += scores[i]
	}

	m.mu.Lock()
	r := m.rng.Float64()
	m.mu.Unlock()

	if total <= 0 {
		var stakeTotal float64
		for _, v := range vs {
			stakeTotal += v.Stake
		}
		if stakeTotal <= 0 {
			return vs[int(r*float64(len(vs)))%len(vs)].Address, nil
		}
		draw := r * stakeTotal
		var cum float64
		for _, v := range vs {
			cum += v.Stake
			if draw < cum {
				return v.Address, nil
			}
		}
		return vs[len(vs)-1].Address, nil
	}

	draw := r * total
	var cum float64
	for i, v := range vs {
		cum += scores[i]
		if draw < cum {
			return v.Address, nil
		}
	}
	return vs[len(vs)-1].Address, nil
}

// TriggerPeerReviews runs one peer-review round: if at least two
// validators are registered, it randomly pairs them and, when synthetic
// review is enabled, synthesizes a rating from the reviewee's reliability
// score with bounded noise. Called by the block-append path every
// PeerReviewEvery blocks.
func (m *ValidatorManager) TriggerPeerReviews() {
	if !m.syntheticPeerReview {
		return
	}
	vs := m.All()
	if len(vs) < 2 {
		return
	}
	now := m.clock()

	m.mu.Lock()
	order := m.rng.Perm(len(vs))
	m.mu.Unlock()

	for i := 0; i+1 < len(order); i += 2 {
		reviewer := vs[order[i]]
		reviewee := vs[order[i+1]]

		m.mu.Lock()
		noise := (m.rng.Float64()*2 - 1) * 10
		m.mu.Unlock()

		rating := clamp(reviewee.ReliabilityScore+noise, 1, 100)
		_ = reviewee.RecordPeerRating(reviewer.Address, rating, "synthetic peer review", now)
		_ = m.persist(reviewee)
	}
}

// NetworkSummary aggregates validator-set metrics, recovered from
// original_source/core.py's get_network_performance_summary.
func (m *ValidatorManager) NetworkSummary() map[string]interface{} {
	vs := m.All()
	now := m.clock()
	if len(vs) == 0 {
		return map[string]interface{}{
			"validator_count": 0,
			"total_stake":     0.0,
			"average_score":   0.0,
			"network_condition": m.NetworkCondition(),
		}
	}
	var totalStake, totalScore, totalPenalties float64
	for _, v := range vs {
		totalStake += v.Stake
		totalScore += v.Score(now, m.params.ScoreCacheS)
		totalPenalties += float64(len(v.PenaltyHistory))
	}
	return map[string]interface{}{
		"validator_count":    len(vs),
		"total_stake":        totalStake,
		"average_score":      totalScore / float64(len(vs)),
		"total_penalties":    totalPenalties,
		"network_condition":  m.NetworkCondition(),
	}
}

func (m *ValidatorManager) persist(v *Validator) error {
	if m.store == nil {
		return nil
	}
	raw, err := json.Marshal(v.Snapshot())
	if err != nil {
		return fmt.Errorf("%w: marshal validator %s: %v", ErrPersistence, v.Address, err)
	}
	if err := m.store.Put("validator:"+v.Address, raw); err != nil {
		m.log.WithFields(logrus.Fields{"address": v.Address}).Warn("failed to persist validator")
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Persist exposes persist for callers outside this file (block append)
// that mutate a Validator already in the registry.
func (m *ValidatorManager) Persist(v *Validator) error {
	return m.persist(v)
}
