// Command coordinator runs the Worker Health/Reputation/Job-Distribution
// Coordinator: the Telemetry Sink, Reputation Engine, Job Distributor, and
// Coordinator Facade HTTP server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ciro-network/ciro/internal/api"
	"github.com/ciro-network/ciro/internal/chain"
	"github.com/ciro-network/ciro/internal/config"
	"github.com/ciro-network/ciro/internal/domain"
	"github.com/ciro-network/ciro/internal/errs"
	"github.com/ciro-network/ciro/internal/eventbus"
	"github.com/ciro-network/ciro/internal/job"
	"github.com/ciro-network/ciro/internal/logging"
	"github.com/ciro-network/ciro/internal/reputation"
	"github.com/ciro-network/ciro/internal/store"
	"github.com/ciro-network/ciro/internal/streaming"
	"github.com/ciro-network/ciro/internal/telemetry"
	"github.com/fatih/color"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

var logger = logging.NewModuleLogger(logging.Facade)

var (
	rpcURLFlag = cli.StringFlag{Name: "rpc-url", Usage: "rollup JSON-RPC endpoint"}
	dbFlag     = cli.StringFlag{Name: "db", Usage: "database DSN"}
	listenFlag = cli.StringFlag{Name: "listen", Usage: "HTTP listen address"}
	configFlag = cli.StringFlag{Name: "config", Usage: "optional TOML config file"}
)

func main() {
	app := cli.NewApp()
	app.Name = "coordinator"
	app.Usage = "coordinate worker health, reputation, and job distribution"
	app.Flags = []cli.Flag{rpcURLFlag, dbFlag, listenFlag, configFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		color.Red("coordinator exited with error: %v", err)
		logger.Crit("coordinator exited with error", "err", err)
	}
}

func run(c *cli.Context) error {
	cfg := config.DefaultCoordinator()
	if path := c.String(configFlag.Name); path != "" {
		loaded, err := config.LoadCoordinator(path)
		if err != nil {
			return errs.New(errs.Fatal, "coordinator.load_config", err)
		}
		cfg = loaded
	}
	if v := c.String(rpcURLFlag.Name); v != "" {
		cfg.RPCURL = v
	}
	if v := c.String(dbFlag.Name); v != "" {
		cfg.DBURL = v
	}
	if v := c.String(listenFlag.Name); v != "" {
		cfg.ListenAddr = v
	}
	if cfg.RPCURL == "" || cfg.DBURL == "" {
		return errs.New(errs.Fatal, "coordinator.missing_required_config", fmt.Errorf("rpc-url and db are required"))
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

	chainCfg := chain.DefaultConfig()
	chainCfg.RedisURL = cfg.RedisURL
	chainCfg.RedisKeyName = "coordinator-rpc"
	adapter := chain.New(cfg.RPCURL, chainCfg)
	bus := eventbus.New(64)

	outbox, err := streaming.New(streaming.Config{Brokers: cfg.KafkaBrokers, TopicPrefix: "ciro", Replicas: 1})
	if err != nil {
		return errs.New(errs.Fatal, "coordinator.new_outbox", err)
	}
	defer outbox.Close()

	engine := reputation.New(cfg, st, bus)
	dist := job.New(cfg, st, bus, adapter, outbox)
	sink := telemetry.New(st, bus, time.Duration(cfg.HeartbeatTTL))

	accessLog, err := zap.NewProduction()
	if err != nil {
		return errs.New(errs.Fatal, "coordinator.new_logger", err)
	}
	defer accessLog.Sync()

	handler := api.New(cfg, st, engine, dist, sink, accessLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.RunDecayTicker(ctx)
	go dist.WatchTimeouts(ctx, 5*time.Second, func(workerID, jobID string) {
		_ = engine.ApplyPenalty(workerID, domain.PenaltyJobTimeout, jobID, "assignment deadline exceeded")
	})
	go runDashboardRefresher(ctx, st, bus)

	server := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
		cancel()
	}()

	logger.Info("coordinator starting", "listen", cfg.ListenAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errs.New(errs.Fatal, "coordinator.serve", err)
	}
	return nil
}

// runDashboardRefresher recomputes mv_worker_leaderboard and mv_job_stats
// whenever a job or reputation fact lands on the bus, so the dashboard never
// reads more than one fact-batch stale.
func runDashboardRefresher(ctx context.Context, st store.Store, bus *eventbus.Bus) {
	sub := bus.Subscribe()
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.Facts:
			if !ok {
				return
			}
			if err := st.RefreshMaterializedViews(); err != nil {
				logger.Warn("dashboard refresh failed", "err", err)
			}
		}
	}
}
