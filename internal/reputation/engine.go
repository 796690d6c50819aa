// Package reputation implements the Reputation Engine: the weighted
// composite score, decay ticker, penalty taxonomy, and auto-ban.
package reputation

import (
	"context"
	"time"

	"github.com/ciro-network/ciro/internal/config"
	"github.com/ciro-network/ciro/internal/domain"
	"github.com/ciro-network/ciro/internal/errs"
	"github.com/ciro-network/ciro/internal/eventbus"
	"github.com/ciro-network/ciro/internal/logging"
	"github.com/ciro-network/ciro/internal/metrics"
	"github.com/ciro-network/ciro/internal/store"
)

var logger = logging.NewModuleLogger(logging.Reputation)

var (
	decayCounter   = metrics.NewRegisteredCounter("reputation/decays")
	penaltyCounter = metrics.NewRegisteredCounter("reputation/penalties")
	banCounter     = metrics.NewRegisteredCounter("reputation/bans")
)

// Engine owns every worker's reputation row; mutations to a single
// worker's row are totally ordered by routing every mutation for that
// worker through this engine rather than letting callers write the store
// directly.
type Engine struct {
	st     store.Store
	bus    *eventbus.Bus
	weights    config.ReputationWeights
	penalties  config.PenaltySeverities
	successMul float64
	failureMul float64
	maxScore   float64
	minReputation float64
	autoBanEnabled   bool
	autoBanThreshold int
	decayInterval time.Duration
	decayRate     float64
}

func New(cfg config.Coordinator, st store.Store, bus *eventbus.Bus) *Engine {
	return &Engine{
		st:               st,
		bus:              bus,
		weights:          cfg.Weights,
		penalties:        cfg.Penalties,
		successMul:       cfg.SuccessMultiplier,
		failureMul:        cfg.FailureMultiplier,
		maxScore:         cfg.MaxScore,
		minReputation:    cfg.MinReputation,
		autoBanEnabled:   cfg.AutoBanEnabled,
		autoBanThreshold: cfg.AutoBanThreshold,
		decayInterval:    time.Duration(cfg.DecayInterval),
		decayRate:        cfg.DecayRate,
	}
}

// compositeScore blends success rate, reliability, efficiency, and
// consistency by their configured weights, clamped to [0, maxScore].
func (e *Engine) compositeScore(successRate, reliability, efficiency, consistency float64) float64 {
	score := e.weights.Success*successRate +
		e.weights.Reliability*reliability +
		e.weights.Efficiency*efficiency +
		e.weights.Consistency*consistency
	return clamp(score, 0, e.maxScore)
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

// Factors bundles the trailing-window inputs to the composite score. The
// caller (dashboards/query layer reading worker_health and job history)
// computes these from raw data; the engine owns only the scoring formula
// and the mutation.
type Factors struct {
	Reliability float64
	Efficiency  float64
	Consistency float64
}

// RecordJobOutcome updates counters, recomputes the composite score, and
// applies the success/failure multiplier. completed
// distinguishes JobCompleted from JobFailed.
func (e *Engine) RecordJobOutcome(workerID string, completed bool, factors Factors) error {
	rep, err := e.st.GetReputation(workerID)
	if err != nil {
		return err
	}
	if rep == nil {
		return errs.New(errs.Input, "reputation.unknown_worker", nil)
	}

	if completed {
		rep.JobsCompleted++
	} else {
		rep.JobsFailed++
	}

	successRate := float64(rep.JobsCompleted) / maxFloat(1, float64(rep.JobsCompleted+rep.JobsFailed))
	score := e.compositeScore(successRate, factors.Reliability, factors.Efficiency, factors.Consistency)

	if completed {
		score *= e.successMul
	} else {
		score *= e.failureMul
	}
	rep.ReputationScore = clamp(score, 0, e.maxScore)

	reason := "job_failed"
	if completed {
		reason = "job_completed"
	}
	if err := e.st.ApplyReputationUpdate(rep, reason); err != nil {
		return err
	}

	kind := eventbus.FactJobFailed
	if completed {
		kind = eventbus.FactJobCompleted
	}
	e.bus.Publish(eventbus.Fact{Kind: kind, WorkerID: workerID})
	return nil
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// severityFor maps a penalty kind to its configured severity.
func (e *Engine) severityFor(kind domain.PenaltyKind) float64 {
	switch kind {
	case domain.PenaltyJobTimeout:
		return e.penalties.JobTimeout
	case domain.PenaltyJobFailure:
		return e.penalties.JobFailure
	case domain.PenaltyMaliciousBehavior:
		return e.penalties.MaliciousBehavior
	case domain.PenaltyPoorPerformance:
		return e.penalties.PoorPerformance
	case domain.PenaltyNetworkIssues:
		return e.penalties.NetworkIssues
	case domain.PenaltyResourceAbuse:
		return e.penalties.ResourceAbuse
	case domain.PenaltyInvalidResult:
		return e.penalties.InvalidResult
	case domain.PenaltySpam:
		return e.penalties.Spam
	case domain.PenaltyBan:
		return e.penalties.Ban
	default:
		return 0
	}
}

// ApplyPenalty applies score := score * (1 - severity), records the
// penalty, increments malicious_count for MaliciousBehavior, and auto-bans
// once the threshold is reached.
func (e *Engine) ApplyPenalty(workerID string, kind domain.PenaltyKind, jobID, reason string) error {
	rep, err := e.st.GetReputation(workerID)
	if err != nil {
		return err
	}
	if rep == nil {
		return errs.New(errs.Input, "reputation.unknown_worker", nil)
	}

	severity := e.severityFor(kind)
	rep.ReputationScore = clamp(rep.ReputationScore*(1-severity), 0, e.maxScore)

	if kind == domain.PenaltyMaliciousBehavior {
		rep.MaliciousCount++
		if e.autoBanEnabled && rep.MaliciousCount >= e.autoBanThreshold && !rep.IsBanned {
			rep.IsBanned = true
			rep.BanReason = "auto-ban: malicious_count reached threshold"
			banCounter.Inc(1)
		}
	}

	if err := e.st.AppendPenalty(&domain.Penalty{
		WorkerID: workerID,
		Kind:     kind,
		Severity: severity,
		Reason:   reason,
		JobID:    jobID,
	}); err != nil {
		return err
	}
	penaltyCounter.Inc(1)

	if err := e.st.ApplyReputationUpdate(rep, "penalty:"+string(kind)); err != nil {
		return err
	}
	if rep.IsBanned {
		e.bus.Publish(eventbus.Fact{Kind: eventbus.FactWorkerBanned, WorkerID: workerID, Detail: rep.BanReason})
	}
	return nil
}

// Unban reverses a ban; only an administrative actor may call this.
func (e *Engine) Unban(workerID, actor, reason string) error {
	return e.st.UnbanWorker(workerID, actor, reason)
}

// RunDecayTicker multiplies every active worker's score by (1 - decay_rate)
// once per decay_interval, until ctx is cancelled.
func (e *Engine) RunDecayTicker(ctx context.Context) {
	if e.decayInterval <= 0 {
		return
	}
	ticker := time.NewTicker(e.decayInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.decayAll()
		}
	}
}

func (e *Engine) decayAll() {
	reps, err := e.st.ListActiveReputations()
	if err != nil {
		logger.Warn("decay: list active reputations failed", "err", err)
		return
	}
	for i := range reps {
		rep := reps[i]
		// banned workers are frozen: decay does not touch them until an
		// administrative unban.
		if rep.IsBanned {
			continue
		}
		rep.ReputationScore = clamp(rep.ReputationScore*(1-e.decayRate), 0, e.maxScore)
		rep.LastDecayAt = time.Now()
		if err := e.st.ApplyReputationUpdate(&rep, "decay"); err != nil {
			logger.Warn("decay: update failed", "worker_id", rep.WorkerID, "err", err)
			continue
		}
		decayCounter.Inc(1)
	}
}

// IsEligible reports whether a worker is unbanned and at or above the
// minimum reputation floor, for call sites that already hold a loaded
// WorkerReputation rather than querying the store fresh.
func (e *Engine) IsEligible(rep *domain.WorkerReputation) bool {
	return !rep.IsBanned && rep.ReputationScore >= e.minReputation
}
