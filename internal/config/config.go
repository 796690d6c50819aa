// Package config loads indexer/coordinator configuration from an optional
// TOML file plus CLI flags. CLI flags always win over file values.
package config

import (
	"os"
	"time"

	"github.com/naoina/toml"
)

// Indexer holds everything the indexer binary needs to run.
type Indexer struct {
	RPCURL       string   `toml:"rpc_url"`
	Contracts    []string `toml:"contracts"`
	DBURL        string   `toml:"db_url"`
	PollInterval Duration `toml:"poll_interval"`
	BatchSize    int      `toml:"batch_size"`
	FromBlock    uint64   `toml:"from_block"`
	ReorgSafety  uint64   `toml:"reorg_safety"`
	NumHandlers  int      `toml:"num_handlers"`
	LogLevel     string   `toml:"log_level"`

	RPCMaxRetries int      `toml:"rpc_max_retries"`
	RPCMaxBackoff Duration `toml:"rpc_max_backoff"`
	RPCRateLimit  float64  `toml:"rpc_rate_limit"` // requests/sec

	CircuitBreakThreshold int      `toml:"circuit_break_threshold"`
	CircuitBreakCooldown  Duration `toml:"circuit_break_cooldown"`

	RedisURL string `toml:"redis_url"` // optional; shares rate-limit budget across replicas

	KafkaBrokers []string `toml:"kafka_brokers"` // optional outbox; empty disables it
}

// DefaultIndexer returns sane defaults, overridden by file/flags.
func DefaultIndexer() Indexer {
	return Indexer{
		PollInterval:          Duration(3 * time.Second),
		BatchSize:             100,
		ReorgSafety:           12,
		NumHandlers:           4,
		LogLevel:              "info",
		RPCMaxRetries:         5,
		RPCMaxBackoff:         Duration(30 * time.Second),
		RPCRateLimit:          20,
		CircuitBreakThreshold: 5,
		CircuitBreakCooldown:  Duration(30 * time.Second),
	}
}

// Coordinator holds everything the coordinator binary needs to run.
type Coordinator struct {
	RPCURL         string `toml:"rpc_url"`
	DBURL          string `toml:"db_url"`
	ListenAddr     string `toml:"listen"`
	SigningKeyPath string `toml:"signing_key_path"`
	LogLevel       string `toml:"log_level"`

	HeartbeatTTL Duration `toml:"heartbeat_ttl"`

	AuctionDuration Duration `toml:"auction_duration"`
	MaxBids         int      `toml:"max_bids"`
	MaxRetries      int      `toml:"max_retries"`

	AutoBanEnabled   bool `toml:"auto_ban_enabled"`
	AutoBanThreshold int  `toml:"auto_ban_threshold"`

	MinReputation float64  `toml:"min_reputation"`
	MaxScore      float64  `toml:"max_score"`
	DecayInterval Duration `toml:"decay_interval"`
	DecayRate     float64  `toml:"decay_rate"`

	// MinEscrow is the minimum payment a submitted job must carry; below it
	// submitJob rejects with 402 rather than auctioning a job no worker
	// payout could ever settle.
	MinEscrow float64 `toml:"min_escrow"`

	Weights    ReputationWeights `toml:"reputation_weights"`
	BidWeights BidWeights        `toml:"bid_weights"`
	Penalties  PenaltySeverities `toml:"penalty_severities"`

	SuccessMultiplier float64 `toml:"success_multiplier"`
	FailureMultiplier float64 `toml:"failure_multiplier"`

	RedisURL string `toml:"redis_url"` // optional; shares rate-limit budget across replicas

	KafkaBrokers []string `toml:"kafka_brokers"`
}

// ReputationWeights are the composite-score weights. Defaults sum to 1.0.
type ReputationWeights struct {
	Success     float64 `toml:"success"`
	Reliability float64 `toml:"reliability"`
	Efficiency  float64 `toml:"efficiency"`
	Consistency float64 `toml:"consistency"`
}

// BidWeights are the §4.7 auction scoring weights.
type BidWeights struct {
	Reputation float64 `toml:"reputation"`
	Health     float64 `toml:"health"`
	Bid        float64 `toml:"bid"`
	Time       float64 `toml:"time"`
}

// PenaltySeverities exposes every penalty kind's severity as a
// configuration knob rather than a compiled-in constant.
type PenaltySeverities struct {
	JobTimeout        float64 `toml:"job_timeout"`
	JobFailure        float64 `toml:"job_failure"`
	MaliciousBehavior float64 `toml:"malicious_behavior"`
	PoorPerformance   float64 `toml:"poor_performance"`
	NetworkIssues     float64 `toml:"network_issues"`
	ResourceAbuse     float64 `toml:"resource_abuse"`
	InvalidResult     float64 `toml:"invalid_result"`
	Spam              float64 `toml:"spam"`
	Ban               float64 `toml:"ban"`
}

// DefaultCoordinator returns sane defaults, overridden by file/flags.
func DefaultCoordinator() Coordinator {
	return Coordinator{
		ListenAddr:       ":8080",
		LogLevel:         "info",
		HeartbeatTTL:     Duration(30 * time.Second),
		AuctionDuration:  Duration(5 * time.Second),
		MaxBids:          50,
		MaxRetries:       3,
		AutoBanEnabled:   true,
		AutoBanThreshold: 3,
		MinReputation:    0.2,
		MaxScore:         1.0,
		DecayInterval:    Duration(24 * time.Hour),
		DecayRate:        0.01,
		MinEscrow:        0.01,
		Weights: ReputationWeights{
			Success: 0.40, Reliability: 0.25, Efficiency: 0.20, Consistency: 0.15,
		},
		BidWeights: BidWeights{
			Reputation: 0.35, Health: 0.25, Bid: 0.25, Time: 0.15,
		},
		Penalties: PenaltySeverities{
			JobTimeout:        0.10,
			JobFailure:        0.15,
			MaliciousBehavior: 0.50,
			PoorPerformance:   0.10,
			NetworkIssues:     0.05,
			ResourceAbuse:     0.20,
			InvalidResult:     0.25,
			Spam:              0.05,
			Ban:               1.0,
		},
		SuccessMultiplier: 1.05,
		FailureMultiplier: 0.90,
	}
}

// Duration is time.Duration with TOML string parsing ("5s", "1h").
type Duration time.Duration

func (d Duration) Get() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalTOML(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// LoadIndexer reads a TOML file on top of DefaultIndexer. A missing path is
// not an error — CLI flags may supply everything.
func LoadIndexer(path string) (Indexer, error) {
	cfg := DefaultIndexer()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadCoordinator reads a TOML file on top of DefaultCoordinator.
func LoadCoordinator(path string) (Coordinator, error) {
	cfg := DefaultCoordinator()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
