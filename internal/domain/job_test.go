package domain

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobPending, JobAssigned, true},
		{JobPending, JobCancelled, true},
		{JobPending, JobProcessing, false},
		{JobAssigned, JobProcessing, true},
		{JobAssigned, JobCancelled, true},
		{JobAssigned, JobPending, false},
		{JobProcessing, JobCompleted, true},
		{JobProcessing, JobFailed, true},
		{JobProcessing, JobCancelled, false},
		{JobCompleted, JobFailed, false},
		{JobCancelled, JobAssigned, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestHasAll(t *testing.T) {
	workerCaps := JoinCapabilities([]Capability{CapGPUTraining, CapDataPrep})
	if !HasAll(workerCaps, []Capability{CapGPUTraining}) {
		t.Fatal("expected worker to have gpu_training")
	}
	if HasAll(workerCaps, []Capability{CapZKProving}) {
		t.Fatal("expected worker to lack zk_proving")
	}
}
