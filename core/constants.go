package core

// Node-wide tunables, defaulted per spec §6's configurable-constants table.
// pkg/config loads these from YAML/env into a NodeParams value that each
// component is constructed with; the literals here are the defaults a
// zero-value NodeParams should be filled with.

// NodeParams bundles every constant the core components need at
// construction time. Filled from pkg/config.Config in the CLI entrypoint.
type NodeParams struct {
	MinStake         float64
	BlockTime        float64
	BlockReward      float64
	NodeGasPrice     float64
	MempoolCap       int
	MaxBlockTxs      int
	MaxBalance       float64
	ScoreCacheS      float64
	PeerReviewEvery  uint64
	P2PSettleMS      int
	GenesisTimestamp float64
	HRP              string
}

// DefaultNodeParams returns the spec's default constant set.
func DefaultNodeParams() NodeParams {
	return NodeParams{
		MinStake:         10.0,
		BlockTime:        5.0,
		BlockReward:      1.0,
		NodeGasPrice:     0.001,
		MempoolCap:       10000,
		MaxBlockTxs:      100,
		MaxBalance:       1e18,
		ScoreCacheS:      5.0,
		PeerReviewEvery:  5,
		P2PSettleMS:      500,
		GenesisTimestamp: 1640995200.0,
		HRP:              DefaultHRP,
	}
}

// GenesisFunding is the amount credited to the reserved genesis account
// when the chain boots from an empty store.
const GenesisFunding = 1e7
