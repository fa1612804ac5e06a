package audit

import (
	"time"

	"custodia/pkg/domain"
)

// ActionType is a registry entry describing a permissible action kind.
// Immutable after registration; re-registration with the same id is rejected.
type ActionType struct {
	ID                 string
	Label              string
	SystemType         domain.SystemType
	RequiresDisclosure bool
	// RetentionDays is advisory. The core has no delete path for audit
	// entries; retention is enforced, if at all, by collaborators.
	RetentionDays int
	CreatedAt     time.Time
}

// Entry is one immutable audit record. Sequence numbers are per subject,
// gap-free, strictly increasing from 1.
type Entry struct {
	Subject      domain.Principal
	Sequence     uint64
	SystemType   domain.SystemType
	ActionTypeID string
	DataHash     string
	Extra        map[string]string
	CreatedAt    time.Time
}

// Statistics are read-only aggregates over the whole trail.
type Statistics struct {
	TotalEntries uint64
	Subjects     int
	BySystemType map[domain.SystemType]uint64
}

// Action type IDs the core registers for its own emissions. Adapters
// register their domain-specific types through the same registry.
const (
	ActionIdentityCreated     = "core.identity.created"
	ActionIdentitySuspended   = "core.identity.suspended"
	ActionIdentityReactivated = "core.identity.reactivated"
	ActionSystemLinked        = "core.identity.linked"
	ActionCredentialIssued    = "core.credential.issued"
	ActionCredentialRevoked   = "core.credential.revoked"
	ActionEstateTriggered     = "core.estate.triggered"
	ActionAccessGranted       = "core.access.granted"
	ActionAccessRevoked       = "core.access.revoked"
	ActionBreachTriggered     = "core.breach.triggered"
	ActionValidatorRegistered = "core.validator.registered"
)

// coreActionTypes enumerates the registry entries seeded at startup.
var coreActionTypes = []ActionType{
	{ID: ActionIdentityCreated, Label: "Identity created", SystemType: domain.SystemCore, RequiresDisclosure: false, RetentionDays: 3650},
	{ID: ActionIdentitySuspended, Label: "Identity suspended", SystemType: domain.SystemCore, RequiresDisclosure: true, RetentionDays: 3650},
	{ID: ActionIdentityReactivated, Label: "Identity reactivated", SystemType: domain.SystemCore, RequiresDisclosure: true, RetentionDays: 3650},
	{ID: ActionSystemLinked, Label: "System identity linked", SystemType: domain.SystemCore, RequiresDisclosure: false, RetentionDays: 3650},
	{ID: ActionCredentialIssued, Label: "Credential issued", SystemType: domain.SystemCore, RequiresDisclosure: false, RetentionDays: 3650},
	{ID: ActionCredentialRevoked, Label: "Credential revoked", SystemType: domain.SystemCore, RequiresDisclosure: true, RetentionDays: 3650},
	{ID: ActionEstateTriggered, Label: "Estate transition triggered", SystemType: domain.SystemCore, RequiresDisclosure: true, RetentionDays: 3650},
	{ID: ActionAccessGranted, Label: "Access granted", SystemType: domain.SystemCore, RequiresDisclosure: true, RetentionDays: 3650},
	{ID: ActionAccessRevoked, Label: "Access revoked", SystemType: domain.SystemCore, RequiresDisclosure: true, RetentionDays: 3650},
	{ID: ActionBreachTriggered, Label: "Breach response triggered", SystemType: domain.SystemCore, RequiresDisclosure: true, RetentionDays: 3650},
	{ID: ActionValidatorRegistered, Label: "Validator registered", SystemType: domain.SystemCore, RequiresDisclosure: false, RetentionDays: 3650},
}
