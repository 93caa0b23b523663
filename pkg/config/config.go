package config

// Package config provides a reusable loader for lakha node configuration
// files and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"lakha-network/core"
	"lakha-network/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config represents the unified configuration for a lakha node. It mirrors
// the structure of the optional YAML files Load reads from cmd/config or
// config (none ship with the repository) and maps onto
// core.NodeParams plus the process-level settings NodeParams doesn't carry
// (storage path, logging, listen address, peers).
type Config struct {
	Node struct {
		HRP              string  `mapstructure:"hrp" json:"hrp"`
		MinStake         float64 `mapstructure:"min_stake" json:"min_stake"`
		BlockTimeSeconds float64 `mapstructure:"block_time_seconds" json:"block_time_seconds"`
		BlockReward      float64 `mapstructure:"block_reward" json:"block_reward"`
		GasPrice         float64 `mapstructure:"gas_price" json:"gas_price"`
		MempoolCap       int     `mapstructure:"mempool_cap" json:"mempool_cap"`
		MaxBlockTxs      int     `mapstructure:"max_block_txs" json:"max_block_txs"`
		MaxBalance       float64 `mapstructure:"max_balance" json:"max_balance"`
		ScoreCacheSeconds float64 `mapstructure:"score_cache_seconds" json:"score_cache_seconds"`
		PeerReviewEvery  uint64  `mapstructure:"peer_review_every" json:"peer_review_every"`
		GenesisTimestamp float64 `mapstructure:"genesis_timestamp" json:"genesis_timestamp"`
	} `mapstructure:"node" json:"node"`

	P2P struct {
		ListenAddr          string   `mapstructure:"listen_addr" json:"listen_addr"`
		Peers               []string `mapstructure:"peers" json:"peers"`
		SettleDelayMS       int      `mapstructure:"settle_delay_ms" json:"settle_delay_ms"`
		SyntheticPeerReview bool     `mapstructure:"synthetic_peer_review" json:"synthetic_peer_review"`
	} `mapstructure:"p2p" json:"p2p"`

	Contracts struct {
		GasBudget uint64 `mapstructure:"gas_budget" json:"gas_budget"`
	} `mapstructure:"contracts" json:"contracts"`

	Storage struct {
		DBPath string `mapstructure:"db_path" json:"db_path"`
	} `mapstructure:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// defaults seeds AppConfig with the spec's documented constants before any
// file or environment override is applied.
func defaults() Config {
	var c Config
	c.Node.HRP = "lakha"
	c.Node.MinStake = 10.0
	c.Node.BlockTimeSeconds = 5.0
	c.Node.BlockReward = 1.0
	c.Node.GasPrice = 0.001
	c.Node.MempoolCap = 10000
	c.Node.MaxBlockTxs = 100
	c.Node.MaxBalance = 1e18
	c.Node.ScoreCacheSeconds = 5.0
	c.Node.PeerReviewEvery = 5
	c.Node.GenesisTimestamp = 1640995200.0
	c.P2P.SettleDelayMS = 500
	c.Contracts.GasBudget = 100000
	c.Storage.DBPath = "./data/lakha"
	c.Logging.Level = "info"
	return c
}

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	AppConfig = defaults()

	_ = godotenv.Load(".env")

	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, utils.Wrap(err, "load config")
		}
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up from .env

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the LAKHA_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("LAKHA_ENV", ""))
}

// NodeParams projects the node-tunable section of Config into core.NodeParams.
func (c *Config) NodeParams() core.NodeParams {
	return core.NodeParams{
		MinStake:         c.Node.MinStake,
		BlockTime:        c.Node.BlockTimeSeconds,
		BlockReward:      c.Node.BlockReward,
		NodeGasPrice:     c.Node.GasPrice,
		MempoolCap:       c.Node.MempoolCap,
		MaxBlockTxs:      c.Node.MaxBlockTxs,
		MaxBalance:       c.Node.MaxBalance,
		ScoreCacheS:      c.Node.ScoreCacheSeconds,
		PeerReviewEvery:  c.Node.PeerReviewEvery,
		P2PSettleMS:      c.P2P.SettleDelayMS,
		GenesisTimestamp: c.Node.GenesisTimestamp,
		HRP:              c.Node.HRP,
	}
}
