package validator

import (
	"time"

	"custodia/pkg/domain"
)

// Validator is one registered ordering node. Active is set at registration
// and never implicitly cleared; Healthy is volatile and recomputed from
// self-reports and the staleness threshold.
type Validator struct {
	Principal         domain.Principal
	NodeID            string
	EndpointHash      string
	Stake             float64
	Active            bool
	Healthy           bool
	LastHealthCheckAt time.Time
	LatencyMs         int
	ErrorCount        int
}

// HealthyAt derives liveness at the given instant. A validator that stops
// reporting degrades to unhealthy once its last check is older than the
// staleness threshold; no explicit mark-unhealthy call exists.
func (v *Validator) HealthyAt(now time.Time, staleness time.Duration) bool {
	if !v.Active || !v.Healthy {
		return false
	}
	return now.Sub(v.LastHealthCheckAt) <= staleness
}

// QuorumView is the derived liveness picture for the whole validator set.
// The core only reports it; halting on lost quorum is the ordering
// transport's call.
type QuorumView struct {
	Healthy int
	Total   int
	Ratio   float64
}
