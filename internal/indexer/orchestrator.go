// Package indexer implements the Indexer Orchestrator: the catch-up/live/
// reorg state machine that drives the RPC Adapter and Decoder Registry into
// the Event Store. A checkpoint-driven request loop that processes one
// block range at a time, polling a remote RPC endpoint in bounded batches
// rather than subscribing to a local chain head.
package indexer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ciro-network/ciro/internal/chain"
	"github.com/ciro-network/ciro/internal/decoder"
	"github.com/ciro-network/ciro/internal/domain"
	"github.com/ciro-network/ciro/internal/logging"
	"github.com/ciro-network/ciro/internal/metrics"
	"github.com/ciro-network/ciro/internal/store"
	"github.com/ciro-network/ciro/internal/streaming"
)

var logger = logging.NewModuleLogger(logging.Indexer)

var (
	handledBlockGauge = metrics.NewRegisteredGauge("indexer/handled_block")
	checkpointGauge   = metrics.NewRegisteredGauge("indexer/checkpoint")
	reorgCounter      = metrics.NewRegisteredCounter("indexer/reorgs")
	undecodableCounter = metrics.NewRegisteredCounter("indexer/undecodable")
)

// Config controls batch sizing, polling cadence, and reorg safety.
type Config struct {
	Name         string // cursor name; one orchestrator per configured contract set
	Contracts    []string
	Selectors    []string
	PollInterval time.Duration
	BatchSize    uint64
	FromBlock    uint64
	ReorgSafety  uint64
	NumHandlers  int
	ABIVersion   int
}

// Orchestrator runs the catch-up -> live -> reorg loop for one contract set.
type Orchestrator struct {
	cfg     Config
	adapter chain.Adapter
	decoder *decoder.Registry
	st      store.Store
	outbox  *streaming.Outbox

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(cfg Config, adapter chain.Adapter, dec *decoder.Registry, st store.Store, outbox *streaming.Outbox) *Orchestrator {
	return &Orchestrator{cfg: cfg, adapter: adapter, decoder: dec, st: st, outbox: outbox, stopCh: make(chan struct{})}
}

// Run drives catch-up then live polling until ctx is cancelled or Stop is
// called, committing at every batch boundary so progress is resumable.
func (o *Orchestrator) Run(ctx context.Context) error {
	cursor, err := o.st.GetCursor(o.cfg.Name)
	if err != nil {
		return err
	}
	from := o.cfg.FromBlock
	if cursor != nil {
		from = cursor.LastProcessedBlock + 1
	}

	if err := o.catchUp(ctx, from); err != nil {
		return err
	}
	return o.live(ctx)
}

func (o *Orchestrator) Stop() {
	close(o.stopCh)
	o.wg.Wait()
}

// catchUp processes from..(latest-reorg_safety) in batches of BatchSize,
// each batch committed atomically with the cursor advance.
func (o *Orchestrator) catchUp(ctx context.Context, from uint64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.stopCh:
			return nil
		default:
		}

		latest, err := o.adapter.LatestBlockNumber(ctx)
		if err != nil {
			return err
		}
		if latest < o.cfg.ReorgSafety {
			return nil
		}
		safeTip := latest - o.cfg.ReorgSafety
		if from > safeTip {
			return nil
		}

		to := from + o.cfg.BatchSize - 1
		if to > safeTip {
			to = safeTip
		}

		if err := o.processRange(ctx, from, to, true); err != nil {
			return err
		}
		from = to + 1
	}
}

// live polls at PollInterval, processing one tip step at a time and
// watching for reorgs.
func (o *Orchestrator) live(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.stopCh:
			return nil
		case <-ticker.C:
			if err := o.tick(ctx); err != nil {
				logger.Warn("live tick failed", "err", err)
			}
		}
	}
}

func (o *Orchestrator) tick(ctx context.Context) error {
	cursor, err := o.st.GetCursor(o.cfg.Name)
	if err != nil {
		return err
	}
	if cursor == nil {
		return nil
	}

	if reorged, ancestor, err := o.detectReorg(ctx, cursor); err != nil {
		return err
	} else if reorged {
		return o.handleReorg(ctx, ancestor)
	}

	latest, err := o.adapter.LatestBlockNumber(ctx)
	if err != nil {
		return err
	}
	if latest < o.cfg.ReorgSafety {
		return nil
	}
	safeTip := latest - o.cfg.ReorgSafety
	from := cursor.LastProcessedBlock + 1
	if from > latest {
		return nil
	}
	to := latest
	finalized := to <= safeTip
	return o.processRange(ctx, from, to, finalized)
}

// detectReorg compares the chain's hash at the last processed block with
// what was recorded there; a mismatch means the fork we followed was
// abandoned.
func (o *Orchestrator) detectReorg(ctx context.Context, cursor *domain.IndexerCursor) (bool, uint64, error) {
	if cursor.LastProcessedBlock == 0 {
		return false, 0, nil
	}
	block, err := o.adapter.BlockByNumber(ctx, cursor.LastProcessedBlock)
	if err != nil {
		return false, 0, err
	}
	if block.Hash == cursor.LastSeenBlockHashAtTip || cursor.LastSeenBlockHashAtTip == "" {
		return false, 0, nil
	}
	return true, o.findCommonAncestor(ctx, cursor.LastProcessedBlock), nil
}

// findCommonAncestor walks back from number until the stored chain's hash
// matches what the adapter now reports, or we reach genesis.
func (o *Orchestrator) findCommonAncestor(ctx context.Context, number uint64) uint64 {
	for n := number; n > 0; n-- {
		block, err := o.adapter.BlockByNumber(ctx, n)
		if err != nil {
			continue
		}
		match := false
		for _, contract := range o.cfg.Contracts {
			events, err := o.st.ReadEventRange(contract, n, n, nil)
			if err != nil || len(events) == 0 {
				continue
			}
			if events[0].BlockHash == block.Hash {
				match = true
			}
			break
		}
		if match {
			return n
		}
	}
	return 0
}

func (o *Orchestrator) handleReorg(ctx context.Context, ancestor uint64) error {
	reorgCounter.Inc(1)
	logger.Warn("reorg detected, rolling back", "ancestor", ancestor)
	if err := o.st.DeleteEventsAboveBlock(ancestor, ancestor, o.cfg.Name); err != nil {
		return err
	}
	return o.catchUp(ctx, ancestor+1)
}

// processRange fetches, decodes, and atomically commits every event in
// [from, to] across all configured contracts, in strict (tx_index,
// event_index) order per contract.
func (o *Orchestrator) processRange(ctx context.Context, from, to uint64, finalized bool) error {
	var allEvents []domain.ChainEvent
	for _, contract := range o.cfg.Contracts {
		raws, err := o.adapter.EventsInRange(ctx, contract, from, to, o.cfg.Selectors)
		if err != nil {
			return err
		}
		sort.Slice(raws, func(i, j int) bool {
			a, b := raws[i], raws[j]
			if a.BlockNumber != b.BlockNumber {
				return a.BlockNumber < b.BlockNumber
			}
			if a.TxIndex != b.TxIndex {
				return a.TxIndex < b.TxIndex
			}
			return a.EventIndex < b.EventIndex
		})
		for _, raw := range raws {
			allEvents = append(allEvents, o.toChainEvent(raw, finalized))
		}
	}

	tip, err := o.adapter.BlockByNumber(ctx, to)
	if err != nil {
		return err
	}

	if err := o.st.Transaction(ctx, func(tx store.Store) error {
		return tx.AppendEventsBatch(allEvents, store.CursorUpdate{
			Name:                   o.cfg.Name,
			LastProcessedBlock:     to,
			LastFinalizedBlock:     to,
			LastSeenBlockHashAtTip: tip.Hash,
		})
	}); err != nil {
		return err
	}

	if finalized {
		o.publishFinalized(allEvents)
	}
	return nil
}

// publishFinalized sends every finalized event in the batch to the outbox
// for downstream consumers; a publish failure is logged, not retried — the
// event is already durably committed, and the outbox is best-effort.
func (o *Orchestrator) publishFinalized(events []domain.ChainEvent) {
	for _, ev := range events {
		if err := o.outbox.PublishEvent(ev.ContractAddress, ev.EventKind, ev.TxHash, ev.Payload); err != nil {
			logger.Warn("publish event failed", "tx_hash", ev.TxHash, "err", err)
		}
	}
}

func (o *Orchestrator) toChainEvent(raw chain.RawEvent, finalized bool) domain.ChainEvent {
	ev := domain.ChainEvent{
		ContractAddress: raw.ContractAddress,
		BlockNumber:     raw.BlockNumber,
		BlockHash:       raw.BlockHash,
		TxHash:          raw.TxHash,
		TxIndex:         raw.TxIndex,
		EventIndex:      raw.EventIndex,
		Timestamp:       time.Unix(int64(raw.Timestamp), 0),
		ABIVersion:      o.cfg.ABIVersion,
		Finalized:       finalized,
	}

	decoded, ok := o.decoder.Decode(raw, o.cfg.ABIVersion)
	if !ok {
		undecodableCounter.Inc(1)
		ev.Undecodable = true
		ev.EventKind = "Undecodable"
		ev.Payload = raw.Data
		return ev
	}
	ev.EventKind = decoded.EventKind
	ev.Payload = decoded.Payload
	handledBlockGauge.Update(int64(raw.BlockNumber))
	checkpointGauge.Update(int64(raw.BlockNumber))
	return ev
}
