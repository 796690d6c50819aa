// Package api implements the Coordinator Facade and Query/Dashboard API: a
// versioned JSON REST surface over the Persistence Layer, the Job
// Distributor, the Reputation Engine, and the Telemetry Sink.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ciro-network/ciro/internal/config"
	"github.com/ciro-network/ciro/internal/domain"
	"github.com/ciro-network/ciro/internal/errs"
	"github.com/ciro-network/ciro/internal/job"
	"github.com/ciro-network/ciro/internal/logging"
	"github.com/ciro-network/ciro/internal/metrics"
	"github.com/ciro-network/ciro/internal/reputation"
	"github.com/ciro-network/ciro/internal/store"
	"github.com/ciro-network/ciro/internal/telemetry"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

var logger = logging.NewModuleLogger(logging.Facade)

// Facade wires the HTTP surface to the coordinator's internal components.
type Facade struct {
	st      store.Store
	engine  *reputation.Engine
	dist    *job.Distributor
	sink    *telemetry.Sink
	access  *zap.Logger

	minEscrow       float64
	minReputation   float64
	maxHeartbeatAge float64 // seconds
}

// New builds an http.Handler implementing the coordinator's public HTTP API.
func New(cfg config.Coordinator, st store.Store, engine *reputation.Engine, dist *job.Distributor, sink *telemetry.Sink, accessLog *zap.Logger) http.Handler {
	f := &Facade{
		st:              st,
		engine:          engine,
		dist:            dist,
		sink:            sink,
		access:          accessLog,
		minEscrow:       cfg.MinEscrow,
		minReputation:   cfg.MinReputation,
		maxHeartbeatAge: time.Duration(cfg.HeartbeatTTL).Seconds(),
	}

	router := httprouter.New()
	router.POST("/v1/jobs", f.submitJob)
	router.GET("/v1/jobs/:id", f.getJob)
	router.POST("/v1/jobs/:id/cancel", f.cancelJob)
	router.POST("/v1/jobs/:id/bids", f.submitBid)
	router.POST("/v1/workers", f.registerWorker)
	router.POST("/v1/workers/:id/heartbeat", f.heartbeat)
	router.GET("/v1/workers/:id", f.getWorker)
	router.GET("/v1/network/health", f.networkHealth)
	router.GET("/v1/network/leaderboard", f.workerLeaderboard)
	router.GET("/v1/network/job-stats", f.jobStats)
	router.GET("/v1/events", f.listEvents)
	router.GET("/v1/metrics", f.prometheusMetrics)
	router.POST("/v1/admin/workers/:id/unban", f.unbanWorker)

	handler := cors.Default().Handler(router)
	return f.withAccessLog(handler)
}

func (f *Facade) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if f.access != nil {
			f.access.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("elapsed", time.Since(start)),
			)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// errorResponse is the stable shape every user-visible HTTP error takes:
// {code, message, retry_after?}.
type errorResponse struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	RetryAfter  int    `json:"retry_after,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("encode response failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	taxErr, ok := errs.As(err)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "internal", Message: err.Error()})
		return
	}
	resp := errorResponse{Code: taxErr.Code, Message: taxErr.Error()}
	if taxErr.RetryAfter > 0 {
		resp.RetryAfter = taxErr.RetryAfter
	}
	status, ok := taxErr.StatusOverride()
	if !ok {
		status = errs.HTTPStatus(taxErr.Kind)
	}
	writeJSON(w, status, resp)
}

type submitJobRequest struct {
	Kind                 string          `json:"kind"`
	Requirements         json.RawMessage `json:"requirements"`
	RequiredCapabilities []string        `json:"required_capabilities"`
	Priority             int             `json:"priority"`
	DeadlineMS           int64           `json:"deadline_ms"`
	Payment              float64         `json:"payment"`
}

func (f *Facade) submitJob(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.Input, "jobs.bad_request", err))
		return
	}
	if req.Kind == "" {
		writeError(w, errs.New(errs.Input, "jobs.missing_kind", nil))
		return
	}
	if req.Payment < f.minEscrow {
		writeError(w, errs.New(errs.Input, "jobs.insufficient_escrow", nil).WithHTTPStatus(http.StatusPaymentRequired))
		return
	}

	caps := make([]domain.Capability, len(req.RequiredCapabilities))
	for i, c := range req.RequiredCapabilities {
		caps[i] = domain.Capability(c)
	}
	eligible, err := f.st.ListEligibleWorkers(caps, f.minReputation, f.maxHeartbeatAge)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(eligible) == 0 {
		writeError(w, errs.New(errs.Transient, "jobs.no_eligible_workers", nil))
		return
	}

	j := &domain.Job{
		JobID:                uuid.NewString(),
		JobKind:              req.Kind,
		Priority:             req.Priority,
		Requirements:         string(req.Requirements),
		RequiredCapabilities: domain.JoinCapabilities(caps),
		Payment:              req.Payment,
		DeadlineAt:           time.Now().Add(time.Duration(req.DeadlineMS) * time.Millisecond),
	}
	if err := f.st.CreateJob(j); err != nil {
		writeError(w, err)
		return
	}
	if f.dist != nil {
		f.dist.StartAuction(context.Background(), j.JobID)
	}
	writeJSON(w, http.StatusCreated, map[string]string{"job_id": j.JobID})
}

type submitBidRequest struct {
	WorkerID              string  `json:"worker_id"`
	BidAmount             float64 `json:"bid_amount"`
	EstimatedCompletionMS int64   `json:"estimated_completion_ms"`
}

func (f *Facade) submitBid(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req submitBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.Input, "bids.bad_request", err))
		return
	}
	if req.WorkerID == "" {
		writeError(w, errs.New(errs.Input, "bids.missing_worker", nil))
		return
	}

	bid := domain.Bid{
		WorkerID:              req.WorkerID,
		JobID:                 ps.ByName("id"),
		BidAmount:             req.BidAmount,
		EstimatedCompletionMS: req.EstimatedCompletionMS,
	}
	if err := f.dist.SubmitBid(bid); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (f *Facade) getJob(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	j, err := f.st.GetJob(ps.ByName("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if j == nil {
		writeError(w, errs.New(errs.Input, "jobs.not_found", nil))
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (f *Facade) cancelJob(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	jobID := ps.ByName("id")
	j, err := f.st.GetJob(jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	if j == nil {
		writeError(w, errs.New(errs.Input, "jobs.not_found", nil))
		return
	}
	if err := f.st.UpdateJobStatus(jobID, domain.JobCancelled, j.Version); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type registerWorkerRequest struct {
	WorkerID     string   `json:"worker_id"`
	PublicKey    string   `json:"public_key"`
	Capabilities []string `json:"capabilities"`
	StakeProof   string   `json:"stake_proof"`
}

func (f *Facade) registerWorker(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req registerWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.Input, "workers.bad_request", err))
		return
	}
	if req.StakeProof == "" {
		writeError(w, errs.New(errs.Input, "workers.invalid_stake", nil))
		return
	}

	caps := make([]domain.Capability, len(req.Capabilities))
	for i, c := range req.Capabilities {
		caps[i] = domain.Capability(c)
	}

	worker := &domain.Worker{
		WorkerID:     req.WorkerID,
		PublicKey:    req.PublicKey,
		Capabilities: domain.JoinCapabilities(caps),
		Status:       domain.WorkerIdle,
	}
	if err := f.st.CreateWorker(worker); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"worker_id": worker.WorkerID})
}

func (f *Facade) getWorker(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	worker, err := f.st.GetWorker(ps.ByName("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if worker == nil {
		writeError(w, errs.New(errs.Input, "workers.not_found", nil))
		return
	}
	rep, err := f.st.GetReputation(worker.WorkerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"worker": worker, "reputation": rep})
}

type heartbeatRequest struct {
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryPercent  float64 `json:"memory_percent"`
	DiskPercent    float64 `json:"disk_percent"`
	NetworkLatency float64 `json:"network_latency"`
	GPUUtilPercent float64 `json:"gpu_util_percent"`
	GPUTempC       float64 `json:"gpu_temp_c"`
	ResponseTimeMS float64 `json:"response_time_ms"`
	ErrorCount     int64   `json:"error_count"`
	MonotonicSeq   uint64  `json:"monotonic_sequence"`
	OccurredAtUnix int64   `json:"occurred_at_unix"`
	Signature      string  `json:"signature"`
	SignedPayload  string  `json:"signed_payload"`
}

func (f *Facade) heartbeat(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.Input, "heartbeat.bad_request", err))
		return
	}

	hb := telemetry.Heartbeat{
		WorkerID:       ps.ByName("id"),
		CPUPercent:     req.CPUPercent,
		MemoryPercent:  req.MemoryPercent,
		DiskPercent:    req.DiskPercent,
		NetworkLatency: req.NetworkLatency,
		GPUUtilPercent: req.GPUUtilPercent,
		GPUTempC:       req.GPUTempC,
		ResponseTimeMS: req.ResponseTimeMS,
		ErrorCount:     req.ErrorCount,
		MonotonicSeq:   req.MonotonicSeq,
		OccurredAt:     time.Unix(req.OccurredAtUnix, 0),
		Signature:      []byte(req.Signature),
		SignedPayload:  []byte(req.SignedPayload),
	}
	if err := f.sink.Ingest(hb); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *Facade) networkHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	reps, err := f.st.ListActiveReputations()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"active_workers": len(reps)})
}

func (f *Facade) workerLeaderboard(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := f.st.WorkerLeaderboard(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (f *Facade) jobStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	stats, err := f.st.JobStats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (f *Facade) listEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	from, _ := strconv.ParseUint(q.Get("from_block"), 10, 64)
	to, _ := strconv.ParseUint(q.Get("to_block"), 10, 64)
	var kinds []string
	if k := q.Get("kind"); k != "" {
		kinds = []string{k}
	}
	events, err := f.st.ReadEventRange(q.Get("contract"), from, to, kinds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (f *Facade) unbanWorker(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req struct {
		Actor  string `json:"actor"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.Input, "unban.bad_request", err))
		return
	}
	if err := f.engine.Unban(ps.ByName("id"), req.Actor, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *Facade) prometheusMetrics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	metrics.Handler().ServeHTTP(w, r)
}
