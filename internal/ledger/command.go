package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"custodia/pkg/domain"
)

// Kind names a command type. The dispatcher maps each kind to one service
// operation; unknown kinds are rejected before any mutation.
type Kind string

const (
	KindCreateIdentity     Kind = "identity.create"
	KindLinkSystem         Kind = "identity.link"
	KindIssueCredential    Kind = "identity.credential.issue"
	KindRevokeCredential   Kind = "identity.credential.revoke"
	KindConfigureSwitch    Kind = "identity.dms.configure"
	KindRecordActivity     Kind = "identity.activity"
	KindTriggerEstate      Kind = "identity.estate.trigger"
	KindSuspend            Kind = "identity.suspend"
	KindReactivate         Kind = "identity.reactivate"
	KindAuthorizeRelayer   Kind = "identity.relayer.authorize"
	KindRequestAccess      Kind = "access.request"
	KindGrantAccess        Kind = "access.grant"
	KindRevokeAccess       Kind = "access.revoke"
	KindTriggerBreach      Kind = "access.breach"
	KindRecordOODA         Kind = "access.ooda"
	KindRegisterActionType Kind = "audit.action_type.register"
	KindCreateAuditEntry   Kind = "audit.entry.create"
	KindRegisterValidator  Kind = "validator.register"
	KindSubmitHealthCheck  Kind = "validator.health"
)

// Command is one unit of the total order. SubmittedAt is stamped when the
// sequencer accepts the command and serves as "now" for every time-derived
// fact inside the apply, so replaying the log reproduces identical state.
//
// Nonce and Signature are set only on delegated submissions; they are
// verified and consumed inside the same transition that applies the command.
type Command struct {
	ID          uuid.UUID        `json:"id"`
	Kind        Kind             `json:"kind"`
	Subject     domain.Principal `json:"subject"`
	Caller      domain.Principal `json:"caller"`
	Payload     json.RawMessage  `json:"payload,omitempty"`
	Nonce       uint64           `json:"nonce,omitempty"`
	Signature   []byte           `json:"signature,omitempty"`
	SubmittedAt time.Time        `json:"submitted_at"`
}

// Delegated reports whether the command carries a replay-protected
// signature on behalf of the subject.
func (c *Command) Delegated() bool {
	return len(c.Signature) > 0
}

// SignedBytes is the canonical message a delegated submission signs:
// kind, subject, nonce, and the raw payload, newline-separated. The nonce
// inside the signed bytes is what binds the signature to a single use.
func (c *Command) SignedBytes() []byte {
	msg := string(c.Kind) + "\n" +
		c.Subject.String() + "\n" +
		strconv.FormatUint(c.Nonce, 10) + "\n"
	return append([]byte(msg), c.Payload...)
}

// Validate checks the envelope before the command enters the order.
func (c *Command) Validate() error {
	if c.Kind == "" {
		return fmt.Errorf("command kind is required")
	}
	if c.Subject.IsNil() {
		return fmt.Errorf("command subject is required")
	}
	if c.Caller.IsNil() && !c.Delegated() {
		return fmt.Errorf("command caller is required")
	}
	return nil
}
