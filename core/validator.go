package core

// Validator holds one registered block-proposer's PoCS metrics: stake,
// activity, the skill scores, peer ratings, penalty history, and
// contribution credits. The PoCS score is memoized; any mutation to a
// component of the formula invalidates the cache by clearing cacheValid
// rather than recomputing eagerly.
//
// Grounded on _examples/original_source/core.py's Validator dataclass and
// its calculate_pocs_score / apply_penalty / earn_contribution_credits /
// update_reputation_score / rate_peer family of methods.

import (
	"encoding/json"
	"math"
	"sort"
	"sync"
)

const (
	secondsPerDay  = 86400.0
	penaltyWindowS = 30 * secondsPerDay
)

// PeerRating is one validator-to-validator rating, scale [1, 100].
type PeerRating struct {
	Rating    float64 `json:"rating"`
	Timestamp float64 `json:"timestamp"`
	Reason    string  `json:"reason"`
}

// PenaltyEntry is one immutable penalty_history row.
type PenaltyEntry struct {
	Kind      string  `json:"kind"`
	Severity  float64 `json:"severity"`
	Reason    string  `json:"reason"`
	Timestamp float64 `json:"timestamp"`
}

// ContributionActivity is one earn_contribution_credits audit row.
type ContributionActivity struct {
	Activity    string  `json:"activity"`
	Credits     float64 `json:"credits"`
	Description string  `json:"description"`
	Timestamp   float64 `json:"timestamp"`
}

// Validator is keyed by address in the ValidatorManager's registry.
type Validator struct {
	mu sync.Mutex

	Address      string  `json:"address"`
	Stake        float64 `json:"stake"`
	RegisteredAt float64 `json:"registered_at"`
	LastActivity float64 `json:"last_activity"`

	BlocksAttempted  uint64  `json:"blocks_attempted"`
	BlocksSuccessful uint64  `json:"blocks_successful"`
	TxsProcessed     uint64  `json:"txs_processed"`
	UptimeSeconds    float64 `json:"uptime_seconds"`

	ContributionScore          float64 `json:"contribution_score"`
	ReliabilityScore           float64 `json:"reliability_score"`
	ReputationScore            float64 `json:"reputation_score"`
	CollaborationScore         float64 `json:"collaboration_score"`
	NetworkHealthContribution  float64 `json:"network_health_contribution"`
	DiversityBonus             float64 `json:"diversity_bonus"`
	DynamicWeightAdjustment    float64 `json:"dynamic_weight_adjustment"`

	PeerRatings    map[string]PeerRating  `json:"peer_ratings"`
	PenaltyHistory []PenaltyEntry         `json:"penalty_history"`

	CurrentPenaltyMultiplier float64                 `json:"current_penalty_multiplier"`
	RehabilitationProgress   float64                 `json:"rehabilitation_progress"`
	ContributionCredits      float64                 `json:"contribution_credits"`
	ContributionActivities   []ContributionActivity  `json:"contribution_activities"`

	AllTransactionTypes map[string]bool `json:"all_transaction_types"`

	cachedScore     float64
	cacheComputedAt float64
	cacheValid      bool
}

// NewValidator constructs a freshly registered validator with neutral
// defaults: full reliability/reputation, no penalties, multiplier 1.0.
func NewValidator(address string, stake float64, now float64) *Validator {
	return &Validator{
		Address:                 address,
		Stake:                   stake,
		RegisteredAt:            now,
		LastActivity:            now,
		ReliabilityScore:        100,
		ReputationScore:         100,
		DynamicWeightAdjustment: 1.0,
		CurrentPenaltyMultiplier: 1.0,
		PeerRatings:             make(map[string]PeerRating),
		AllTransactionTypes:     make(map[string]bool),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (v *Validator) invalidateCacheLocked() {
	v.cacheValid = false
}

// lastPenaltySeverityLocked returns the severity of the most recent
// penalty_history entry, or 0 if none.
func (v *Validator) lastPenaltySeverityLocked() float64 {
	if len(v.PenaltyHistory) == 0 {
		return 0
	}
	return v.PenaltyHistory[len(v.PenaltyHistory)-1].Severity
}

// Score computes (or returns the cached) PoCS score at time t, per spec
// §4.7. scoreCacheS is the memoization window.
func (v *Validator) Score(t float64, scoreCacheS float64) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cacheValid && t-v.cacheComputedAt < scoreCacheS {
		return v.cachedScore
	}

	daysInactive := (t - v.LastActivity) / secondsPerDay
	if daysInactive < 0 {
		daysInactive = 0
	}
	effectiveStake := v.Stake * math.Max(0.1, 1-0.001*daysInactive)
	stakeComp := 0.25 * effectiveStake * v.DynamicWeightAdjustment

	age := t - v.RegisteredAt
	if age < 1 {
		age = 1
	}
	uptimeFactor := clamp01(v.UptimeSeconds / age)

	attempted := float64(v.BlocksAttempted)
	if attempted < 1 {
		attempted = 1
	}
	blockSuccess := float64(v.BlocksSuccessful) / attempted

	txsFactor := clamp01(float64(v.TxsProcessed) / 100)

	contribRaw := v.ContributionScore*0.3 +
		uptimeFactor*15 +
		blockSuccess*15 +
		txsFactor*15 +
		v.CollaborationScore*8 +
		v.NetworkHealthContribution*5
	contribComp := 0.25 * contribRaw

	reliabilityComp := 0.25 * v.ReliabilityScore
	reputationComp := 0.15 * v.ReputationScore
	diversityComp := 0.10 * v.DiversityBonus
	penaltyComp := 0.10 * v.CurrentPenaltyMultiplier * v.lastPenaltySeverityLocked()

	score := stakeComp + contribComp + reliabilityComp + reputationComp + diversityComp - penaltyComp
	if score < 0 {
		score = 0
	}

	v.cachedScore = score
	v.cacheComputedAt = t
	v.cacheValid = true
	return score
}

// UpdateActivity bumps last_activity, marking the validator as alive and
// invalidating the temporal-decay term of the score.
func (v *Validator) UpdateActivity(now float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.LastActivity = now
	v.invalidateCacheLocked()
}

// RecordBlockAttempt accounts for one proposal attempt, crediting nominal
// uptime (blockTime seconds) regardless of outcome and success count only
// on success.
func (v *Validator) RecordBlockAttempt(success bool, blockTime float64, now float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.BlocksAttempted++
	if success {
		v.BlocksSuccessful++
	}
	v.UptimeSeconds += blockTime
	v.LastActivity = now
	v.invalidateCacheLocked()
}

// RecordProcessedTransaction increments the processed-tx counter and marks
// kind as one the validator has handled, feeding its diversity bonus.
func (v *Validator) RecordProcessedTransaction(kind TransactionKind) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.TxsProcessed++
	v.AllTransactionTypes[string(kind)] = true
	v.DiversityBonus = math.Min(100, float64(len(v.AllTransactionTypes))*20)
	v.invalidateCacheLocked()
}

// SetContributionScore, SetCollaborationScore, SetNetworkHealthContribution,
// SetDiversityBonus and SetDynamicWeightAdjustment are direct setters for
// the PoCS monotonicity property: raising any one of these (with the cache
// invalidated) never decreases the computed score.
func (v *Validator) SetContributionScore(s float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ContributionScore = s
	v.invalidateCacheLocked()
}

func (v *Validator) SetCollaborationScore(s float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.CollaborationScore = s
	v.invalidateCacheLocked()
}

func (v *Validator) SetNetworkHealthContribution(s float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.NetworkHealthContribution = s
	v.invalidateCacheLocked()
}

func (v *Validator) SetDiversityBonus(s float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.DiversityBonus = s
	v.invalidateCacheLocked()
}

func (v *Validator) SetDynamicWeightAdjustment(s float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.DynamicWeightAdjustment = s
	v.invalidateCacheLocked()
}

func (v *Validator) SetReliabilityScore(s float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ReliabilityScore = s
	v.invalidateCacheLocked()
}

// ApplyPenalty appends a penalty_history entry, recomputes the rolling
// penalty multiplier from penalties within the last 30 days, and reduces
// reputation and reliability proportionally to severity and multiplier.
func (v *Validator) ApplyPenalty(kind string, severity float64, reason string, now float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.PenaltyHistory = append(v.PenaltyHistory, PenaltyEntry{
		Kind: kind, Severity: severity, Reason: reason, Timestamp: now,
	})

	recent := 0
	for _, p := range v.PenaltyHistory {
		if now-p.Timestamp <= penaltyWindowS {
			recent++
		}
	}
	v.CurrentPenaltyMultiplier = math.Min(5.0, 1+0.5*float64(recent))

	v.ReputationScore = math.Max(0, v.ReputationScore-0.5*severity*v.CurrentPenaltyMultiplier)
	v.ReliabilityScore = math.Max(0, v.ReliabilityScore-0.3*severity*v.CurrentPenaltyMultiplier)
	v.RehabilitationProgress = 0
	v.invalidateCacheLocked()
}

// OverridePenalty is the governance escape hatch recovered from
// original_source/core.py's community_override_penalty: it sets the
// multiplier directly and records an audit-trail penalty_history row with
// zero severity so the override is visible in history without itself
// further reducing reputation/reliability.
func (v *Validator) OverridePenalty(multiplier float64, reason string, now float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.CurrentPenaltyMultiplier = clamp(multiplier, 1.0, 5.0)
	v.PenaltyHistory = append(v.PenaltyHistory, PenaltyEntry{
		Kind: "community_override", Severity: 0, Reason: reason, Timestamp: now,
	})
	v.invalidateCacheLocked()
}

// EarnContributionCredits records an activity, increments the credit
// balance, and advances rehabilitation progress.
func (v *Validator) EarnContributionCredits(activity string, credits float64, description string, now float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ContributionCredits += credits
	v.ContributionActivities = append(v.ContributionActivities, ContributionActivity{
		Activity: activity, Credits: credits, Description: description, Timestamp: now,
	})
	v.updateRehabilitationProgressLocked(credits)
	v.invalidateCacheLocked()
}

func (v *Validator) updateRehabilitationProgressLocked(credits float64) {
	v.RehabilitationProgress += credits
	for v.RehabilitationProgress >= 100 {
		v.CurrentPenaltyMultiplier = math.Max(1.0, v.CurrentPenaltyMultiplier*0.8)
		v.RehabilitationProgress -= 100
	}
}

// ConvertCreditsToStake moves min(n, contribution_credits) credits to
// stake at a 1:0.1 ratio.
func (v *Validator) ConvertCreditsToStake(n float64) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	amount := math.Min(n, v.ContributionCredits)
	if amount <= 0 {
		return 0
	}
	v.ContributionCredits -= amount
	v.Stake += amount * 0.1
	v.invalidateCacheLocked()
	return amount
}

// RecordPeerRating stores a rating of this validator by rater, in
// [1, 100], then recomputes reputation from the updated average.
func (v *Validator) RecordPeerRating(rater string, rating float64, reason string, now float64) error {
	if rating < 1 || rating > 100 {
		return ErrKindSpecific
	}
	v.mu.Lock()
	v.PeerRatings[rater] = PeerRating{Rating: rating, Timestamp: now, Reason: reason}
	v.mu.Unlock()
	v.UpdateReputationScore()
	return nil
}

// AveragePeerRating is the mean of received ratings, defaulting to 100
// when none exist.
func (v *Validator) AveragePeerRating() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.PeerRatings) == 0 {
		return 100
	}
	var sum float64
	for _, r := range v.PeerRatings {
		sum += r.Rating
	}
	return sum / float64(len(v.PeerRatings))
}

// UpdateReputationScore recomputes reputation_score from the current peer
// rating average, reliability, and contribution score, then invalidates
// the PoCS score cache.
func (v *Validator) UpdateReputationScore() {
	avg := v.AveragePeerRating()
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ReputationScore = 0.4*avg + 0.3*v.ReliabilityScore + 0.3*math.Min(100, v.ContributionScore)
	v.invalidateCacheLocked()
}

// ContributionSummary reports the credit balance, rehabilitation progress,
// and activity count for client display.
func (v *Validator) ContributionSummary() map[string]interface{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	return map[string]interface{}{
		"contribution_credits":    v.ContributionCredits,
		"rehabilitation_progress": v.RehabilitationProgress,
		"activity_count":          len(v.ContributionActivities),
		"penalty_multiplier":      v.CurrentPenaltyMultiplier,
	}
}

// TransactionTypesSorted returns the distinct kinds this validator has
// processed, sorted for deterministic persistence/display.
func (v *Validator) TransactionTypesSorted() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, 0, len(v.AllTransactionTypes))
	for k := range v.AllTransactionTypes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// validatorSnapshot is the persisted/wire shape of a Validator: identical
// to the live struct except all_transaction_types travels as a sorted
// array, per the persistence key layout's requirement.
type validatorSnapshot struct {
	Address                   string                 `json:"address"`
	Stake                     float64                `json:"stake"`
	RegisteredAt              float64                `json:"registered_at"`
	LastActivity              float64                `json:"last_activity"`
	BlocksAttempted           uint64                 `json:"blocks_attempted"`
	BlocksSuccessful          uint64                 `json:"blocks_successful"`
	TxsProcessed              uint64                 `json:"txs_processed"`
	UptimeSeconds             float64                `json:"uptime_seconds"`
	ContributionScore         float64                `json:"contribution_score"`
	ReliabilityScore          float64                `json:"reliability_score"`
	ReputationScore           float64                `json:"reputation_score"`
	CollaborationScore        float64                `json:"collaboration_score"`
	NetworkHealthContribution float64                `json:"network_health_contribution"`
	DiversityBonus            float64                `json:"diversity_bonus"`
	DynamicWeightAdjustment   float64                `json:"dynamic_weight_adjustment"`
	PeerRatings               map[string]PeerRating  `json:"peer_ratings"`
	PenaltyHistory            []PenaltyEntry         `json:"penalty_history"`
	CurrentPenaltyMultiplier  float64                `json:"current_penalty_multiplier"`
	RehabilitationProgress    float64                `json:"rehabilitation_progress"`
	ContributionCredits       float64                `json:"contribution_credits"`
	ContributionActivities    []ContributionActivity `json:"contribution_activities"`
	AllTransactionTypes       []string               `json:"all_transaction_types"`
}

// ValidatorFromSnapshot reconstructs a live Validator from its persisted
// form, used during rehydration. The score cache starts invalid.
func ValidatorFromSnapshot(raw []byte) (*Validator, error) {
	var snap validatorSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	v := &Validator{
		Address:                   snap.Address,
		Stake:                     snap.Stake,
		RegisteredAt:              snap.RegisteredAt,
		LastActivity:              snap.LastActivity,
		BlocksAttempted:           snap.BlocksAttempted,
		BlocksSuccessful:          snap.BlocksSuccessful,
		TxsProcessed:              snap.TxsProcessed,
		UptimeSeconds:             snap.UptimeSeconds,
		ContributionScore:         snap.ContributionScore,
		ReliabilityScore:          snap.ReliabilityScore,
		ReputationScore:           snap.ReputationScore,
		CollaborationScore:        snap.CollaborationScore,
		NetworkHealthContribution: snap.NetworkHealthContribution,
		DiversityBonus:            snap.DiversityBonus,
		DynamicWeightAdjustment:   snap.DynamicWeightAdjustment,
		PeerRatings:               snap.PeerRatings,
		PenaltyHistory:            snap.PenaltyHistory,
		CurrentPenaltyMultiplier:  snap.CurrentPenaltyMultiplier,
		RehabilitationProgress:    snap.RehabilitationProgress,
		ContributionCredits:       snap.ContributionCredits,
		ContributionActivities:    snap.ContributionActivities,
		AllTransactionTypes:       make(map[string]bool, len(snap.AllTransactionTypes)),
	}
	if v.PeerRatings == nil {
		v.PeerRatings = make(map[string]PeerRating)
	}
	for _, k := range snap.AllTransactionTypes {
		v.AllTransactionTypes[k] = true
	}
	return v, nil
}

// Snapshot renders the validator into its persisted/wire representation.
func (v *Validator) Snapshot() validatorSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	types := make([]string, 0, len(v.AllTransactionTypes))
	for k := range v.AllTransactionTypes {
		types = append(types, k)
	}
	sort.Strings(types)
	return validatorSnapshot{
		Address:                   v.Address,
		Stake:                     v.Stake,
		RegisteredAt:              v.RegisteredAt,
		LastActivity:              v.LastActivity,
		BlocksAttempted:           v.BlocksAttempted,
		BlocksSuccessful:          v.BlocksSuccessful,
		TxsProcessed:              v.TxsProcessed,
		UptimeSeconds:             v.UptimeSeconds,
		ContributionScore:         v.ContributionScore,
		ReliabilityScore:          v.ReliabilityScore,
		ReputationScore:           v.ReputationScore,
		CollaborationScore:        v.CollaborationScore,
		NetworkHealthContribution: v.NetworkHealthContribution,
		DiversityBonus:            v.DiversityBonus,
		DynamicWeightAdjustment:   v.DynamicWeightAdjustment,
		PeerRatings:               v.PeerRatings,
		PenaltyHistory:            v.PenaltyHistory,
		CurrentPenaltyMultiplier:  v.CurrentPenaltyMultiplier,
		RehabilitationProgress:    v.RehabilitationProgress,
		ContributionCredits:       v.ContributionCredits,
		ContributionActivities:    v.ContributionActivities,
		AllTransactionTypes:       types,
	}
}
