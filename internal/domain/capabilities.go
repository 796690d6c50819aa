package domain

import "strings"

// Capability is one of the enumerated compute capabilities a worker may
// register. A closed enumeration, matching the decoder and penalty kinds.
type Capability string

const (
	CapGPUTraining   Capability = "gpu_training"
	CapGPUInference  Capability = "gpu_inference"
	CapCPUInference  Capability = "cpu_inference"
	CapDataPrep      Capability = "data_prep"
	CapZKProving     Capability = "zk_proving"
)

// ParseCapabilities splits the comma-joined storage form into a set.
func ParseCapabilities(s string) map[Capability]struct{} {
	out := make(map[Capability]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out[Capability(part)] = struct{}{}
	}
	return out
}

// JoinCapabilities renders a set back to its comma-joined storage form.
func JoinCapabilities(caps []Capability) string {
	parts := make([]string, len(caps))
	for i, c := range caps {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

// HasAll reports whether worker capabilities satisfy every required
// capability.
func HasAll(workerCaps string, required []Capability) bool {
	have := ParseCapabilities(workerCaps)
	for _, r := range required {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}
