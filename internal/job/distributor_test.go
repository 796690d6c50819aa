package job

import (
	"context"
	"testing"
	"time"

	"github.com/ciro-network/ciro/internal/chain"
	"github.com/ciro-network/ciro/internal/config"
	"github.com/ciro-network/ciro/internal/domain"
	"github.com/ciro-network/ciro/internal/eventbus"
	"github.com/ciro-network/ciro/internal/store"
	"github.com/ciro-network/ciro/internal/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectWinnerTieBreaksByReputationThenTimeThenID(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Minute)

	a := ScoreInputs{Bid: domain.Bid{WorkerID: "a", SubmittedAt: earlier}, Reputation: 0.80}
	b := ScoreInputs{Bid: domain.Bid{WorkerID: "b", SubmittedAt: now}, Reputation: 0.80}

	winner, ok := SelectWinner([]ScoreInputs{a, b}, []float64{0.5, 0.5})
	assert.True(t, ok)
	assert.Equal(t, "a", winner.Bid.WorkerID)
}

func TestSelectWinnerHighestScoreWins(t *testing.T) {
	a := ScoreInputs{Bid: domain.Bid{WorkerID: "a"}, Reputation: 0.5}
	b := ScoreInputs{Bid: domain.Bid{WorkerID: "b"}, Reputation: 0.9}

	winner, ok := SelectWinner([]ScoreInputs{a, b}, []float64{0.3, 0.9})
	assert.True(t, ok)
	assert.Equal(t, "b", winner.Bid.WorkerID)
}

func TestSelectWinnerEmptyReturnsFalse(t *testing.T) {
	_, ok := SelectWinner(nil, nil)
	assert.False(t, ok)
}

type fakeRetryStore struct {
	store.Store
	retryCounts map[string]int
	statuses    map[string]domain.JobStatus
}

func (s *fakeRetryStore) IncrementJobRetry(jobID string) (int, error) {
	s.retryCounts[jobID]++
	return s.retryCounts[jobID], nil
}

func (s *fakeRetryStore) UpdateJobStatus(jobID string, to domain.JobStatus, expectedVersion uint64) error {
	s.statuses[jobID] = to
	return nil
}

func (s *fakeRetryStore) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

type fakeAdapter struct {
	chain.Adapter
}

func (fakeAdapter) SubmitTransaction(ctx context.Context, signedPayload []byte) (string, error) {
	return "0xrefund", nil
}

func newTestDistributor(maxRetries int) (*Distributor, *fakeRetryStore) {
	st := &fakeRetryStore{retryCounts: map[string]int{}, statuses: map[string]domain.JobStatus{}}
	outbox, _ := streaming.New(streaming.Config{})
	return &Distributor{
		st:         st,
		bus:        eventbus.New(4),
		adapter:    fakeAdapter{},
		outbox:     outbox,
		maxRetries: maxRetries,
	}, st
}

func TestReassignOrFailReassignsUnderRetryBudget(t *testing.T) {
	d, st := newTestDistributor(3)
	err := d.reassignOrFail(domain.Job{JobID: "job-1", Version: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, st.statuses["job-1"])
	assert.Equal(t, 1, st.retryCounts["job-1"])
}

func TestReassignOrFailFailsAfterRetryBudgetExhausted(t *testing.T) {
	d, st := newTestDistributor(2)
	st.retryCounts["job-2"] = 2 // two timeouts already consumed

	err := d.reassignOrFail(domain.Job{JobID: "job-2", Version: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, st.statuses["job-2"])
	assert.Equal(t, 3, st.retryCounts["job-2"])
}

func TestScoreFormula(t *testing.T) {
	d := &Distributor{weights: config.BidWeights{Reputation: 0.35, Health: 0.25, Bid: 0.25, Time: 0.15}}
	in := ScoreInputs{
		Bid:         domain.Bid{BidAmount: 10, EstimatedCompletionMS: 500},
		Reputation:  0.8,
		HealthScore: 0.9,
	}
	score := d.Score(in)
	expected := 0.35*0.8 + 0.25*0.9 + 0.25/11 + 0.15/501
	assert.InDelta(t, expected, score, 1e-9)
}
