package access

import (
	"time"

	"github.com/google/uuid"

	"custodia/pkg/domain"
)

// GrantState is the stored lifecycle state of a grant. Expiry is not a
// stored state; it is derived from ExpiresAt at read time.
type GrantState string

const (
	GrantRequested GrantState = "requested"
	GrantActive    GrantState = "active"
	GrantRevoked   GrantState = "revoked"
)

// Grant is one time-boxed access relationship keyed by
// (subject, grantee, scope). A repeated request overwrites the prior grant
// for the same key.
type Grant struct {
	Subject     domain.Principal
	Grantee     domain.Principal
	Scope       domain.AccessScope
	DataScope   string
	Purpose     string
	State       GrantState
	ExpiresAt   time.Time
	RequestedAt time.Time
	GrantedAt   time.Time
}

// UsableAt reports whether the grant itself admits access at the given
// instant. Breach state is the service's concern, not the grant's.
func (g *Grant) UsableAt(now time.Time) bool {
	return g.State == GrantActive && now.Before(g.ExpiresAt)
}

// BreachFlag marks a subject as breached. Once active, every access check
// for the subject fails regardless of grant state.
type BreachFlag struct {
	Active      bool
	Reason      string
	TriggeredAt time.Time
}

// OODAPhase tags an entry in the governor's decision trail.
type OODAPhase string

const (
	PhaseObserve OODAPhase = "observe"
	PhaseOrient  OODAPhase = "orient"
	PhaseDecide  OODAPhase = "decide"
	PhaseAct     OODAPhase = "act"
)

var validPhases = map[OODAPhase]bool{
	PhaseObserve: true,
	PhaseOrient:  true,
	PhaseDecide:  true,
	PhaseAct:     true,
}

func (p OODAPhase) IsValid() bool {
	return validPhases[p]
}

// OODAEntry is one phase-tagged record in the decision trail. Entries are
// independent; no phase ordering is enforced.
type OODAEntry struct {
	ID          uuid.UUID
	Subject     domain.Principal
	Phase       OODAPhase
	PayloadHash string
	RecordedAt  time.Time
}
