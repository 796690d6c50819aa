// Package chain implements the RPC Adapter: typed access to
// a rollup JSON-RPC with retry/backoff, rate limiting, and a circuit
// breaker. Every call is idempotent from the caller's perspective; the
// adapter never caches mutable chain state.
package chain

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ciro-network/ciro/internal/logging"
	"github.com/ciro-network/ciro/internal/metrics"
)

var logger = logging.NewModuleLogger(logging.RPC)

var (
	callCounter    = metrics.NewRegisteredCounter("rpc/calls")
	retryCounter   = metrics.NewRegisteredCounter("rpc/retries")
	breakerCounter = metrics.NewRegisteredCounter("rpc/circuit_open")
	latencyTimer   = metrics.NewRegisteredTimer("rpc/latency")
)

// Adapter is the typed surface every other component depends on. It is
// deliberately narrow: latest block number, block-by-number, events in a
// range, a generic call, and signed transaction submission.
type Adapter interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64) (*Block, error)
	EventsInRange(ctx context.Context, contract string, from, to uint64, selectors []string) ([]RawEvent, error)
	Call(ctx context.Context, contract, selector string, args []interface{}) ([]byte, error)
	SubmitTransaction(ctx context.Context, signedPayload []byte) (txHash string, err error)
	ChainID(ctx context.Context) (uint64, error)
}

// Config controls retry/backoff, rate limiting, and circuit breaking.
type Config struct {
	MaxRetries            int
	MaxBackoff            time.Duration
	RequestTimeout        time.Duration
	RateLimitPerSecond    float64
	CircuitBreakThreshold int
	CircuitBreakCooldown  time.Duration

	// RedisURL, if set, shares the rate-limit budget across every
	// orchestrator replica hitting this endpoint instead of limiting each
	// process independently. Empty means process-local limiting only.
	RedisURL     string
	RedisKeyName string
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:            5,
		MaxBackoff:            30 * time.Second,
		RequestTimeout:        10 * time.Second,
		RateLimitPerSecond:    20,
		CircuitBreakThreshold: 5,
		CircuitBreakCooldown:  30 * time.Second,
	}
}

type adapter struct {
	cfg     Config
	rpc     *jsonrpcClient
	limiter limiter
	breaker *circuitBreaker
}

// New builds an Adapter pointed at a rollup JSON-RPC endpoint. When
// cfg.RedisURL is set, the rate limiter is shared across every process
// using the same key; otherwise each process limits independently.
func New(url string, cfg Config) Adapter {
	var lim limiter = newLocalLimiter(cfg.RateLimitPerSecond)
	if cfg.RedisURL != "" {
		rl, err := newRedisLimiter(cfg.RedisURL, cfg.RedisKeyName, cfg.RateLimitPerSecond)
		if err != nil {
			logger.Warn("redis rate limiter unavailable, using local limiter", "err", err)
		} else {
			lim = rl
		}
	}
	return &adapter{
		cfg:     cfg,
		rpc:     newJSONRPCClient(url, cfg.RequestTimeout),
		limiter: lim,
		breaker: newCircuitBreaker(cfg.CircuitBreakThreshold, cfg.CircuitBreakCooldown),
	}
}

// do runs a single named RPC call under the rate limiter, circuit breaker,
// and retry policy. attempts are counted for dashboards and tests.
func (a *adapter) do(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	if !a.breaker.Allow() {
		breakerCounter.Inc(1)
		return nil, &RpcError{Kind: KindServerError, Cause: fmt.Errorf("circuit open for %s", method)}
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	callCounter.Inc(1)
	start := time.Now()
	var result json.RawMessage
	err := withRetry(ctx, a.cfg.MaxRetries, a.cfg.MaxBackoff, func() error {
		r, callErr := a.rpc.call(ctx, method, params)
		if callErr != nil {
			retryCounter.Inc(1)
			return callErr
		}
		result = r
		return nil
	})
	latencyTimer.UpdateSince(start)

	if err != nil {
		a.breaker.RecordFailure()
		logger.Warn("rpc call failed", "method", method, "err", err)
		return nil, err
	}
	a.breaker.RecordSuccess()
	return result, nil
}

func (a *adapter) LatestBlockNumber(ctx context.Context) (uint64, error) {
	raw, err := a.do(ctx, "rollup_blockNumber", nil)
	if err != nil {
		return 0, err
	}
	return decodeHexUint(raw)
}

func (a *adapter) ChainID(ctx context.Context) (uint64, error) {
	raw, err := a.do(ctx, "rollup_chainId", nil)
	if err != nil {
		return 0, err
	}
	return decodeHexUint(raw)
}

type blockJSON struct {
	Number     string `json:"number"`
	Hash       string `json:"hash"`
	ParentHash string `json:"parentHash"`
	Timestamp  string `json:"timestamp"`
}

func (a *adapter) BlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	raw, err := a.do(ctx, "rollup_getBlockByNumber", []interface{}{hexUint(number), false})
	if err != nil {
		return nil, err
	}
	var bj blockJSON
	if err := json.Unmarshal(raw, &bj); err != nil {
		return nil, &RpcError{Kind: KindMalformed, Cause: err}
	}
	if bj.Hash == "" {
		return nil, &RpcError{Kind: KindNotFound, Cause: fmt.Errorf("block %d not found", number)}
	}
	ts, _ := decodeHexUint(json.RawMessage(`"` + bj.Timestamp + `"`))
	return &Block{Number: number, Hash: bj.Hash, ParentHash: bj.ParentHash, Timestamp: ts}, nil
}

type logJSON struct {
	Address          string   `json:"address"`
	Topics           []string `json:"topics"`
	Data             string   `json:"data"`
	BlockNumber      string   `json:"blockNumber"`
	BlockHash        string   `json:"blockHash"`
	TransactionHash  string   `json:"transactionHash"`
	TransactionIndex string   `json:"transactionIndex"`
	LogIndex         string   `json:"logIndex"`
}

func (a *adapter) EventsInRange(ctx context.Context, contract string, from, to uint64, selectors []string) ([]RawEvent, error) {
	filter := map[string]interface{}{
		"address":   contract,
		"fromBlock": hexUint(from),
		"toBlock":   hexUint(to),
	}
	if len(selectors) > 0 {
		filter["topics"] = [][]string{selectors}
	}
	raw, err := a.do(ctx, "rollup_getLogs", []interface{}{filter})
	if err != nil {
		return nil, err
	}
	var logs []logJSON
	if err := json.Unmarshal(raw, &logs); err != nil {
		return nil, &RpcError{Kind: KindMalformed, Cause: err}
	}
	events := make([]RawEvent, 0, len(logs))
	for _, l := range logs {
		blockNum, _ := decodeHexUint(json.RawMessage(`"` + l.BlockNumber + `"`))
		txIdx, _ := decodeHexUint(json.RawMessage(`"` + l.TransactionIndex + `"`))
		logIdx, _ := decodeHexUint(json.RawMessage(`"` + l.LogIndex + `"`))
		data, _ := hex.DecodeString(trimHexPrefix(l.Data))
		selector := ""
		if len(l.Topics) > 0 {
			selector = l.Topics[0]
		}
		events = append(events, RawEvent{
			ContractAddress: l.Address,
			EventSelector:   selector,
			BlockNumber:     blockNum,
			BlockHash:       l.BlockHash,
			TxHash:          l.TransactionHash,
			TxIndex:         uint32(txIdx),
			EventIndex:      uint32(logIdx),
			Topics:          l.Topics,
			Data:            data,
		})
	}
	return events, nil
}

func (a *adapter) Call(ctx context.Context, contract, selector string, args []interface{}) ([]byte, error) {
	callObj := map[string]interface{}{
		"to":   contract,
		"data": selector,
	}
	raw, err := a.do(ctx, "rollup_call", []interface{}{callObj, "latest"})
	if err != nil {
		return nil, err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, &RpcError{Kind: KindMalformed, Cause: err}
	}
	return hex.DecodeString(trimHexPrefix(s))
}

func (a *adapter) SubmitTransaction(ctx context.Context, signedPayload []byte) (string, error) {
	raw, err := a.do(ctx, "rollup_sendRawTransaction", []interface{}{"0x" + hex.EncodeToString(signedPayload)})
	if err != nil {
		return "", err
	}
	var txHash string
	if err := json.Unmarshal(raw, &txHash); err != nil {
		return "", &RpcError{Kind: KindMalformed, Cause: err}
	}
	return txHash, nil
}

func hexUint(n uint64) string {
	return "0x" + strconv.FormatUint(n, 16)
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func decodeHexUint(raw json.RawMessage) (uint64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, &RpcError{Kind: KindMalformed, Cause: err}
	}
	v, err := strconv.ParseUint(trimHexPrefix(s), 16, 64)
	if err != nil {
		return 0, &RpcError{Kind: KindMalformed, Cause: err}
	}
	return v, nil
}
