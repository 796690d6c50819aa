// Package job implements the Job Distributor: job auctions, deterministic
// bid scoring, assignment, a timeout watchdog, and retry/refund handling.
// An auction registers a bid-collection window and a winner-selection step,
// the same registration-plus-result-channel shape as a worker pool.
package job

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ciro-network/ciro/internal/chain"
	"github.com/ciro-network/ciro/internal/config"
	"github.com/ciro-network/ciro/internal/domain"
	"github.com/ciro-network/ciro/internal/errs"
	"github.com/ciro-network/ciro/internal/eventbus"
	"github.com/ciro-network/ciro/internal/logging"
	"github.com/ciro-network/ciro/internal/metrics"
	"github.com/ciro-network/ciro/internal/store"
	"github.com/ciro-network/ciro/internal/streaming"
	"github.com/google/uuid"
)

var logger = logging.NewModuleLogger(logging.Distributor)

var (
	auctionCounter  = metrics.NewRegisteredCounter("distributor/auctions")
	timeoutCounter  = metrics.NewRegisteredCounter("distributor/timeouts")
	refundCounter   = metrics.NewRegisteredCounter("distributor/refunds")
	auctionDuration = metrics.NewRegisteredTimer("distributor/auction_duration")
)

// ScoreInputs is everything the bid-scoring formula needs for one bid,
// gathered from the reputation and health stores by the caller so this
// package stays storage-agnostic for its pure scoring function.
type ScoreInputs struct {
	Bid         domain.Bid
	Reputation  float64
	HealthScore float64
}

// Distributor runs one auction per submitted job and watches assignment
// deadlines.
type Distributor struct {
	st      store.Store
	bus     *eventbus.Bus
	adapter chain.Adapter
	outbox  *streaming.Outbox
	weights config.BidWeights

	auctionDuration time.Duration
	maxBids         int
	maxRetries      int

	mu       sync.Mutex
	auctions map[string]chan domain.Bid
}

func New(cfg config.Coordinator, st store.Store, bus *eventbus.Bus, adapter chain.Adapter, outbox *streaming.Outbox) *Distributor {
	return &Distributor{
		st:              st,
		bus:             bus,
		adapter:         adapter,
		outbox:          outbox,
		weights:         cfg.BidWeights,
		auctionDuration: time.Duration(cfg.AuctionDuration),
		maxBids:         cfg.MaxBids,
		maxRetries:      cfg.MaxRetries,
		auctions:        make(map[string]chan domain.Bid),
	}
}

// Score applies the weighted bid-scoring formula: reputation and health
// pull toward higher scores, bid amount and estimated completion time
// pull toward lower ones.
func (d *Distributor) Score(in ScoreInputs) float64 {
	return d.weights.Reputation*in.Reputation +
		d.weights.Health*in.HealthScore +
		d.weights.Bid/(in.Bid.BidAmount+1) +
		d.weights.Time/(float64(in.Bid.EstimatedCompletionMS)+1)
}

// SelectWinner picks a winner by highest score, breaking ties
// deterministically: higher reputation, then earlier bid timestamp, then
// lexicographically smaller worker_id.
func SelectWinner(scored []ScoreInputs, scores []float64) (ScoreInputs, bool) {
	if len(scored) == 0 {
		return ScoreInputs{}, false
	}
	idx := make([]int, len(scored))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		i, j := idx[a], idx[b]
		if scores[i] != scores[j] {
			return scores[i] > scores[j]
		}
		if scored[i].Reputation != scored[j].Reputation {
			return scored[i].Reputation > scored[j].Reputation
		}
		if !scored[i].Bid.SubmittedAt.Equal(scored[j].Bid.SubmittedAt) {
			return scored[i].Bid.SubmittedAt.Before(scored[j].Bid.SubmittedAt)
		}
		return scored[i].Bid.WorkerID < scored[j].Bid.WorkerID
	})
	return scored[idx[0]], true
}

// RunAuction collects bids until AuctionDuration elapses or MaxBids is
// reached, scores them, and assigns the job to the winner. bids is
// supplied by the caller (the Coordinator Facade's bid endpoint feeds a
// channel this function drains) so the distributor has no HTTP dependency.
func (d *Distributor) RunAuction(ctx context.Context, jobID string, bids <-chan domain.Bid, score func(domain.Bid) (ScoreInputs, float64)) error {
	auctionCounter.Inc(1)
	start := time.Now()
	defer func() { auctionDuration.UpdateSince(start) }()

	deadline := time.NewTimer(d.auctionDuration)
	defer deadline.Stop()

	var scored []ScoreInputs
	var scores []float64

collect:
	for len(scored) < d.maxBids {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			break collect
		case bid, ok := <-bids:
			if !ok {
				break collect
			}
			in, s := score(bid)
			scored = append(scored, in)
			scores = append(scores, s)
		}
	}

	winner, ok := SelectWinner(scored, scores)
	if !ok {
		return errs.New(errs.Transient, "distributor.no_eligible_bids", nil)
	}

	return d.assign(jobID, winner.Bid.WorkerID)
}

func (d *Distributor) assign(jobID, workerID string) error {
	taskID := uuid.NewString()
	job, err := d.st.GetJob(jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return errs.New(errs.Input, "distributor.unknown_job", nil)
	}
	if err := d.st.Transaction(context.Background(), func(tx store.Store) error {
		return tx.AssignJob(jobID, workerID, taskID, job.DeadlineAt)
	}); err != nil {
		return err
	}
	if err := d.outbox.PublishJobFact(jobID, "JobAssigned", workerID); err != nil {
		logger.Warn("publish job assigned failed", "job_id", jobID, "err", err)
	}
	return nil
}

// scoreInputsFor loads the reputation and health rows a bid needs scored
// against; it is the default scoring closure StartAuction hands to
// RunAuction so the facade's bid endpoint never has to touch either store.
func (d *Distributor) scoreInputsFor(bid domain.Bid) (ScoreInputs, float64) {
	var reputation, healthScore float64
	if rep, err := d.st.GetReputation(bid.WorkerID); err == nil && rep != nil {
		reputation = rep.ReputationScore
	}
	if health, err := d.st.GetHealth(bid.WorkerID); err == nil && health != nil {
		healthScore = health.HealthScore
	}
	in := ScoreInputs{Bid: bid, Reputation: reputation, HealthScore: healthScore}
	return in, d.Score(in)
}

// StartAuction opens the bid-collection window for jobID and runs the
// auction in the background, closing the window either when it assigns a
// winner or when the collection deadline passes with no eligible bids.
// Called once per job right after submission.
func (d *Distributor) StartAuction(ctx context.Context, jobID string) {
	ch := make(chan domain.Bid, d.maxBids)
	d.mu.Lock()
	d.auctions[jobID] = ch
	d.mu.Unlock()

	go func() {
		defer func() {
			d.mu.Lock()
			delete(d.auctions, jobID)
			d.mu.Unlock()
		}()
		if err := d.RunAuction(ctx, jobID, ch, d.scoreInputsFor); err != nil {
			logger.Warn("auction failed", "job_id", jobID, "err", err)
		}
	}()
}

// SubmitBid records a bid and feeds it to jobID's open auction window, if
// one is still running.
func (d *Distributor) SubmitBid(bid domain.Bid) error {
	if err := d.st.CreateBid(&bid); err != nil {
		return err
	}

	d.mu.Lock()
	ch, ok := d.auctions[bid.JobID]
	d.mu.Unlock()
	if !ok {
		return errs.New(errs.Input, "distributor.auction_closed", nil)
	}

	select {
	case ch <- bid:
		return nil
	default:
		return errs.New(errs.Transient, "distributor.auction_full", nil)
	}
}

// WatchTimeouts scans assigned jobs past their deadline once per interval,
// reassigning under the retry budget or failing and refunding otherwise.
func (d *Distributor) WatchTimeouts(ctx context.Context, interval time.Duration, onPenalty func(workerID, jobID string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweepTimeouts(onPenalty)
		}
	}
}

func (d *Distributor) sweepTimeouts(onPenalty func(workerID, jobID string)) {
	jobs, err := d.st.ListJobsByStatus(domain.JobAssigned)
	if err != nil {
		logger.Warn("sweepTimeouts: list failed", "err", err)
		return
	}
	now := time.Now()
	for _, j := range jobs {
		if now.Before(j.DeadlineAt) {
			continue
		}
		timeoutCounter.Inc(1)
		if onPenalty != nil {
			onPenalty(j.AssignedWorker, j.JobID)
		}
		if err := d.reassignOrFail(j); err != nil {
			logger.Warn("reassignOrFail failed", "job_id", j.JobID, "err", err)
		}
	}
}

func (d *Distributor) reassignOrFail(j domain.Job) error {
	retryCount, err := d.st.IncrementJobRetry(j.JobID)
	if err != nil {
		return err
	}

	if retryCount > d.maxRetries {
		if err := d.st.UpdateJobStatus(j.JobID, domain.JobFailed, j.Version); err != nil {
			return err
		}
		d.bus.Publish(eventbus.Fact{Kind: eventbus.FactJobFailed, JobID: j.JobID, WorkerID: j.AssignedWorker})
		if err := d.outbox.PublishJobFact(j.JobID, eventbus.FactJobFailed, j.AssignedWorker); err != nil {
			logger.Warn("publish job failed fact failed", "job_id", j.JobID, "err", err)
		}
		return d.refund(j)
	}

	return d.st.Transaction(context.Background(), func(tx store.Store) error {
		return tx.UpdateJobStatus(j.JobID, domain.JobPending, j.Version)
	})
}

// refund submits an on-chain refund transaction through the RPC Adapter
// after retries are exhausted.
func (d *Distributor) refund(j domain.Job) error {
	refundCounter.Inc(1)
	// SubmitTransaction is opaque to payload shape; producing a properly
	// signed refund transaction is the signing layer's responsibility.
	payload := []byte(j.JobID)
	_, err := d.adapter.SubmitTransaction(context.Background(), payload)
	return err
}
