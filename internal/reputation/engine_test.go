package reputation

import (
	"testing"

	"github.com/ciro-network/ciro/internal/config"
	"github.com/ciro-network/ciro/internal/domain"
	"github.com/ciro-network/ciro/internal/eventbus"
	"github.com/ciro-network/ciro/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore implements store.Store by embedding the nil interface and
// overriding only the methods the Engine actually calls.
type fakeStore struct {
	store.Store
	reps     map[string]*domain.WorkerReputation
	penalties []domain.Penalty
}

func newFakeStore() *fakeStore {
	return &fakeStore{reps: make(map[string]*domain.WorkerReputation)}
}

func (f *fakeStore) GetReputation(workerID string) (*domain.WorkerReputation, error) {
	return f.reps[workerID], nil
}

func (f *fakeStore) ApplyReputationUpdate(rep *domain.WorkerReputation, reason string) error {
	cp := *rep
	f.reps[rep.WorkerID] = &cp
	return nil
}

func (f *fakeStore) AppendPenalty(p *domain.Penalty) error {
	f.penalties = append(f.penalties, *p)
	return nil
}

func (f *fakeStore) ListActiveReputations() ([]domain.WorkerReputation, error) {
	var out []domain.WorkerReputation
	for _, r := range f.reps {
		if !r.IsBanned {
			out = append(out, *r)
		}
	}
	return out, nil
}

func testEngine(fs *fakeStore) *Engine {
	cfg := config.DefaultCoordinator()
	return New(cfg, fs, eventbus.New(4))
}

func TestApplyPenaltyReducesScore(t *testing.T) {
	fs := newFakeStore()
	fs.reps["w1"] = &domain.WorkerReputation{WorkerID: "w1", ReputationScore: 1.0, Version: 1}
	e := testEngine(fs)

	err := e.ApplyPenalty("w1", domain.PenaltyJobFailure, "job-1", "missed deadline")
	require.NoError(t, err)

	rep := fs.reps["w1"]
	assert.InDelta(t, 1.0*(1-e.penalties.JobFailure), rep.ReputationScore, 1e-9)
	assert.Len(t, fs.penalties, 1)
}

func TestApplyPenaltyAutoBansAtThreshold(t *testing.T) {
	fs := newFakeStore()
	fs.reps["w1"] = &domain.WorkerReputation{WorkerID: "w1", ReputationScore: 1.0, MaliciousCount: 2, Version: 1}
	e := testEngine(fs)
	e.autoBanEnabled = true
	e.autoBanThreshold = 3

	err := e.ApplyPenalty("w1", domain.PenaltyMaliciousBehavior, "job-1", "fabricated result")
	require.NoError(t, err)

	rep := fs.reps["w1"]
	assert.Equal(t, 3, rep.MaliciousCount)
	assert.True(t, rep.IsBanned)
}

func TestDecayAllSkipsBannedWorkers(t *testing.T) {
	fs := newFakeStore()
	fs.reps["banned"] = &domain.WorkerReputation{WorkerID: "banned", ReputationScore: 0.9, IsBanned: true}
	e := testEngine(fs)
	e.decayRate = 0.5

	e.decayAll()

	assert.Equal(t, 0.9, fs.reps["banned"].ReputationScore)
}

func TestRecordJobOutcomeAppliesMultiplierAndClamps(t *testing.T) {
	fs := newFakeStore()
	fs.reps["w1"] = &domain.WorkerReputation{WorkerID: "w1", JobsCompleted: 9, JobsFailed: 1}
	e := testEngine(fs)
	e.maxScore = 1.0
	e.successMul = 1.5

	err := e.RecordJobOutcome("w1", true, Factors{Reliability: 1, Efficiency: 1, Consistency: 1})
	require.NoError(t, err)

	rep := fs.reps["w1"]
	assert.LessOrEqual(t, rep.ReputationScore, 1.0)
	assert.Equal(t, int64(10), rep.JobsCompleted)
}
