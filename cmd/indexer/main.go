// Command indexer runs the Blockchain Event Indexer: RPC Adapter, Decoder
// Registry, and Indexer Orchestrator against a configured contract set.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ciro-network/ciro/internal/chain"
	"github.com/ciro-network/ciro/internal/config"
	"github.com/ciro-network/ciro/internal/decoder"
	"github.com/ciro-network/ciro/internal/errs"
	"github.com/ciro-network/ciro/internal/indexer"
	"github.com/ciro-network/ciro/internal/logging"
	"github.com/ciro-network/ciro/internal/streaming"
	"github.com/ciro-network/ciro/internal/store"
	"github.com/fatih/color"
	"github.com/urfave/cli"
)

var logger = logging.NewModuleLogger(logging.Indexer)

var (
	rpcURLFlag = cli.StringFlag{Name: "rpc-url", Usage: "rollup JSON-RPC endpoint"}
	contractsFlag = cli.StringFlag{Name: "contracts", Usage: "comma-separated contract addresses"}
	dbFlag        = cli.StringFlag{Name: "db", Usage: "database DSN"}
	configFlag    = cli.StringFlag{Name: "config", Usage: "optional TOML config file"}
	pollFlag      = cli.IntFlag{Name: "poll-interval", Usage: "seconds between live polls"}
	batchFlag     = cli.IntFlag{Name: "batch-size", Usage: "blocks per catch-up batch"}
	fromBlockFlag = cli.Uint64Flag{Name: "from-block", Usage: "first block to index"}
	reorgSafetyFlag = cli.Uint64Flag{Name: "reorg-safety", Usage: "confirmations required before finality"}
)

func main() {
	app := cli.NewApp()
	app.Name = "indexer"
	app.Usage = "index rollup events into the shared relational schema"
	app.Flags = []cli.Flag{rpcURLFlag, contractsFlag, dbFlag, configFlag, pollFlag, batchFlag, fromBlockFlag, reorgSafetyFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		color.Red("indexer exited with error: %v", err)
		logger.Crit("indexer exited with error", "err", err)
	}
}

func run(c *cli.Context) error {
	cfg := config.DefaultIndexer()
	if path := c.String(configFlag.Name); path != "" {
		loaded, err := config.LoadIndexer(path)
		if err != nil {
			return errs.New(errs.Fatal, "indexer.load_config", err)
		}
		cfg = loaded
	}
	if v := c.String(rpcURLFlag.Name); v != "" {
		cfg.RPCURL = v
	}
	if v := c.String(contractsFlag.Name); v != "" {
		cfg.Contracts = strings.Split(v, ",")
	}
	if v := c.String(dbFlag.Name); v != "" {
		cfg.DBURL = v
	}
	if v := c.Int(pollFlag.Name); v != 0 {
		cfg.PollInterval = config.Duration(time.Duration(v) * time.Second)
	}
	if v := c.Int(batchFlag.Name); v != 0 {
		cfg.BatchSize = v
	}
	if v := c.Uint64(fromBlockFlag.Name); v != 0 {
		cfg.FromBlock = v
	}
	if v := c.Uint64(reorgSafetyFlag.Name); v != 0 {
		cfg.ReorgSafety = v
	}
	if cfg.RPCURL == "" || cfg.DBURL == "" || len(cfg.Contracts) == 0 {
		return errs.New(errs.Fatal, "indexer.missing_required_config", fmt.Errorf("rpc-url, db, and contracts are required"))
	}
	logging.SetTerminal(logging.ParseLevel(cfg.LogLevel))

	st, err := store.Open(cfg.DBURL)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(); err != nil {
		return err
	}

	adapter := chain.New(cfg.RPCURL, chain.Config{
		MaxRetries:            cfg.RPCMaxRetries,
		MaxBackoff:            time.Duration(cfg.RPCMaxBackoff),
		RequestTimeout:        10 * time.Second,
		RateLimitPerSecond:    cfg.RPCRateLimit,
		CircuitBreakThreshold: cfg.CircuitBreakThreshold,
		CircuitBreakCooldown:  time.Duration(cfg.CircuitBreakCooldown),
		RedisURL:              cfg.RedisURL,
		RedisKeyName:          "indexer-rpc",
	})

	reg, err := decoder.New(256)
	if err != nil {
		return errs.New(errs.Fatal, "indexer.new_decoder", err)
	}
	if len(cfg.Contracts) >= 2 {
		decoder.RegisterV1(reg, cfg.Contracts[0], cfg.Contracts[1])
	}

	outbox, err := streaming.New(streaming.Config{Brokers: cfg.KafkaBrokers, TopicPrefix: "ciro", Replicas: 1})
	if err != nil {
		return errs.New(errs.Fatal, "indexer.new_outbox", err)
	}
	defer outbox.Close()

	orch := indexer.New(indexer.Config{
		Name:         "primary",
		Contracts:    cfg.Contracts,
		PollInterval: time.Duration(cfg.PollInterval),
		BatchSize:    uint64(cfg.BatchSize),
		FromBlock:    cfg.FromBlock,
		ReorgSafety:  cfg.ReorgSafety,
		NumHandlers:  cfg.NumHandlers,
		ABIVersion:   1,
	}, adapter, reg, st, outbox)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		orch.Stop()
		cancel()
	}()

	logger.Info("indexer starting", "rpc_url", cfg.RPCURL, "contracts", strconv.Itoa(len(cfg.Contracts)))
	return orch.Run(ctx)
}
