package identity

import (
	"crypto/ed25519"
	"time"

	"custodia/pkg/domain"
)

// Status is the lifecycle state of an identity. Transitions are monotonic
// except Active<->Suspended; EstateMode and Revoked are terminal.
type Status string

const (
	StatusActive     Status = "active"
	StatusSuspended  Status = "suspended"
	StatusEstateMode Status = "estate_mode"
	StatusRevoked    Status = "revoked"
)

// SystemLink records a cross-system identity binding. At most one per
// system type per identity.
type SystemLink struct {
	ExternalID string
	LinkedAt   time.Time
}

// Credential is an issued credential reference. The hash is opaque to the
// core and unique within the identity.
type Credential struct {
	Hash       string
	Issuer     string
	SystemType domain.SystemType
	Expiry     time.Time
	Revoked    bool
}

// DeadMansSwitch configures estate transition on prolonged inactivity.
type DeadMansSwitch struct {
	IntervalDays   int
	Beneficiary    domain.Principal
	LastActivityAt time.Time
}

// RelayerAuth records whether a relayer may submit delegated commands on the
// subject's behalf, plus the bcrypt hash of the secret issued to it.
type RelayerAuth struct {
	Allowed    bool
	SecretHash string
}

// Identity is one subject principal. Never physically deleted; Revoked and
// EstateMode retain full history for audit.
type Identity struct {
	Principal   domain.Principal
	Status      Status
	DataPointer string

	// Nonce is strictly increasing; bumped on every accepted delegated
	// command. The replay-protection boundary lives here and nowhere else.
	Nonce uint64

	// PublicKey verifies delegated command signatures. Identities without
	// a key cannot submit delegated commands.
	PublicKey ed25519.PublicKey

	DeadMansSwitch *DeadMansSwitch

	// EstateDelegate is the beneficiary holding control after the estate
	// transition. Empty until status becomes EstateMode.
	EstateDelegate domain.Principal

	SystemLinks map[domain.SystemType]SystemLink
	Credentials map[string]Credential
	Relayers    map[domain.Principal]RelayerAuth

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EstateDue reports whether the dead-man's-switch interval has elapsed.
// Pure; the explicit estate trigger is a separate privileged command.
func (i *Identity) EstateDue(now time.Time) bool {
	if i.DeadMansSwitch == nil {
		return false
	}
	interval := time.Duration(i.DeadMansSwitch.IntervalDays) * 24 * time.Hour
	return now.Sub(i.DeadMansSwitch.LastActivityAt) >= interval
}

// HasValidCredential reports whether hash is present, unrevoked, and not yet
// expired at now.
func (i *Identity) HasValidCredential(hash string, now time.Time) bool {
	cred, ok := i.Credentials[hash]
	if !ok || cred.Revoked {
		return false
	}
	return now.Before(cred.Expiry)
}

// RelayerAllowed reports whether the given relayer may act for this subject.
func (i *Identity) RelayerAllowed(relayer domain.Principal) bool {
	auth, ok := i.Relayers[relayer]
	return ok && auth.Allowed
}

// Clone returns a deep copy so stores never hand out aliased maps.
func (i *Identity) Clone() *Identity {
	out := *i
	if i.DeadMansSwitch != nil {
		dms := *i.DeadMansSwitch
		out.DeadMansSwitch = &dms
	}
	if i.PublicKey != nil {
		out.PublicKey = append(ed25519.PublicKey(nil), i.PublicKey...)
	}
	out.SystemLinks = make(map[domain.SystemType]SystemLink, len(i.SystemLinks))
	for k, v := range i.SystemLinks {
		out.SystemLinks[k] = v
	}
	out.Credentials = make(map[string]Credential, len(i.Credentials))
	for k, v := range i.Credentials {
		out.Credentials[k] = v
	}
	out.Relayers = make(map[domain.Principal]RelayerAuth, len(i.Relayers))
	for k, v := range i.Relayers {
		out.Relayers[k] = v
	}
	return &out
}
