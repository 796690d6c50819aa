package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ciro-network/ciro/internal/config"
	"github.com/ciro-network/ciro/internal/domain"
	"github.com/ciro-network/ciro/internal/errs"
	"github.com/ciro-network/ciro/internal/eventbus"
	"github.com/ciro-network/ciro/internal/job"
	"github.com/ciro-network/ciro/internal/store"
	"github.com/ciro-network/ciro/internal/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	store.Store
	jobs     map[string]*domain.Job
	eligible bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[string]*domain.Job), eligible: true}
}

func (f *fakeStore) CreateJob(j *domain.Job) error {
	f.jobs[j.JobID] = j
	return nil
}

func (f *fakeStore) GetJob(jobID string) (*domain.Job, error) {
	j, ok := f.jobs[jobID]
	if !ok {
		return nil, nil
	}
	return j, nil
}

func (f *fakeStore) ListEligibleWorkers(requiredCaps []domain.Capability, minReputation, maxHeartbeatAge float64) ([]domain.Worker, error) {
	if !f.eligible {
		return nil, nil
	}
	return []domain.Worker{{WorkerID: "w1"}}, nil
}

func (f *fakeStore) CreateBid(b *domain.Bid) error {
	return nil
}

func TestSubmitJobRejectsMissingKind(t *testing.T) {
	fs := newFakeStore()
	handler := New(config.DefaultCoordinator(), fs, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitJobThenGetJobRoundTrips(t *testing.T) {
	fs := newFakeStore()
	handler := New(config.DefaultCoordinator(), fs, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(`{"kind":"gpu_training","priority":1,"payment":5}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, fs.jobs, 1)
	var jobID string
	for id := range fs.jobs {
		jobID = id
	}

	getReq := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+jobID, nil)
	getRec := httptest.NewRecorder()
	handler.ServeHTTP(getRec, getReq)
	assert.Equal(t, http.StatusOK, getRec.Code)
}

func TestGetJobNotFound(t *testing.T) {
	fs := newFakeStore()
	handler := New(config.DefaultCoordinator(), fs, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/missing", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWriteErrorMapsTaxonomyToHTTPStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errs.New(errs.Consistency, "test.conflict", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSubmitJobRejectsInsufficientEscrow(t *testing.T) {
	fs := newFakeStore()
	cfg := config.DefaultCoordinator()
	cfg.MinEscrow = 10
	handler := New(cfg, fs, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(`{"kind":"gpu_training","payment":1}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestSubmitJobRejectsWhenNoEligibleWorkers(t *testing.T) {
	fs := newFakeStore()
	fs.eligible = false
	handler := New(config.DefaultCoordinator(), fs, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(`{"kind":"gpu_training","payment":5}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSubmitBidAgainstClosedAuctionReturnsBadRequest(t *testing.T) {
	fs := newFakeStore()
	bus := eventbus.New(4)
	outbox, err := streaming.New(streaming.Config{})
	require.NoError(t, err)
	dist := job.New(config.DefaultCoordinator(), fs, bus, nil, outbox)
	handler := New(config.DefaultCoordinator(), fs, nil, dist, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/job-1/bids", strings.NewReader(`{"worker_id":"w1","bid_amount":1}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
