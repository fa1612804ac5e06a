package ledger

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"time"

	"custodia/internal/access"
	"custodia/internal/audit"
	"custodia/internal/identity"
	"custodia/internal/validator"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// Payload shapes, one per command kind. Handlers build these; the
// dispatcher decodes them inside the apply.
type (
	CreateIdentityPayload struct {
		DataPointer string `json:"data_pointer"`
		PublicKey   []byte `json:"public_key,omitempty"`
	}
	LinkSystemPayload struct {
		SystemType string `json:"system_type"`
		ExternalID string `json:"external_id"`
	}
	IssueCredentialPayload struct {
		Hash       string    `json:"hash"`
		Issuer     string    `json:"issuer"`
		SystemType string    `json:"system_type"`
		Expiry     time.Time `json:"expiry"`
	}
	RevokeCredentialPayload struct {
		Hash string `json:"hash"`
	}
	ConfigureSwitchPayload struct {
		IntervalDays int    `json:"interval_days"`
		Beneficiary  string `json:"beneficiary"`
	}
	AuthorizeRelayerPayload struct {
		Relayer string `json:"relayer"`
		Allowed bool   `json:"allowed"`
	}
	RequestAccessPayload struct {
		Grantee string `json:"grantee"`
		Scope   string `json:"scope"`
		Purpose string `json:"purpose"`
	}
	GrantAccessPayload struct {
		Grantee         string `json:"grantee"`
		Scope           string `json:"scope"`
		DurationSeconds int64  `json:"duration_seconds"`
		DataScope       string `json:"data_scope"`
	}
	RevokeAccessPayload struct {
		Grantee string `json:"grantee"`
	}
	TriggerBreachPayload struct {
		Reason string `json:"reason"`
	}
	RecordOODAPayload struct {
		Phase       string `json:"phase"`
		PayloadHash string `json:"payload_hash"`
	}
	RegisterActionTypePayload struct {
		ID                 string `json:"id"`
		Label              string `json:"label"`
		SystemType         string `json:"system_type"`
		RequiresDisclosure bool   `json:"requires_disclosure"`
		RetentionDays      int    `json:"retention_days"`
	}
	CreateAuditEntryPayload struct {
		SystemType   string            `json:"system_type"`
		ActionTypeID string            `json:"action_type_id"`
		DataHash     string            `json:"data_hash"`
		Extra        map[string]string `json:"extra,omitempty"`
	}
	RegisterValidatorPayload struct {
		NodeID       string  `json:"node_id"`
		EndpointHash string  `json:"endpoint_hash"`
		Stake        float64 `json:"stake"`
	}
	SubmitHealthCheckPayload struct {
		StatusHash string `json:"status_hash"`
		Healthy    bool   `json:"healthy"`
		LatencyMs  int    `json:"latency_ms"`
		ErrorCount int    `json:"error_count"`
	}
)

// Dispatcher maps a command to the one service operation implementing it.
// It holds no state of its own; every mutation happens inside the services.
type Dispatcher struct {
	identities *identity.Service
	access     *access.Service
	audits     *audit.Service
	validators *validator.Service
}

func NewDispatcher(identities *identity.Service, accessSvc *access.Service, audits *audit.Service, validators *validator.Service) *Dispatcher {
	return &Dispatcher{
		identities: identities,
		access:     accessSvc,
		audits:     audits,
		validators: validators,
	}
}

// Apply executes one command against committed state. A delegated command is
// verified against the subject's key and nonce first; on success it runs as
// if the subject had submitted it directly. The nonce advances as the last
// step of the transition, so a rejected delegated command leaves the nonce
// untouched.
func (d *Dispatcher) Apply(ctx context.Context, cmd *Command) (any, error) {
	caller := cmd.Caller
	if cmd.Delegated() {
		if err := d.identities.VerifyDelegated(ctx, cmd.Subject, cmd.SignedBytes(), cmd.Nonce, cmd.Signature); err != nil {
			return nil, err
		}
		caller = cmd.Subject
	}

	value, err := d.dispatch(ctx, caller, cmd)
	if err != nil {
		return nil, err
	}
	if cmd.Delegated() {
		if err := d.identities.ConsumeNonce(ctx, cmd.Subject, cmd.Nonce); err != nil {
			return nil, err
		}
	}
	return value, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, caller domain.Principal, cmd *Command) (any, error) {
	switch cmd.Kind {
	case KindCreateIdentity:
		var p CreateIdentityPayload
		if err := decode(cmd.Payload, &p); err != nil {
			return nil, err
		}
		var key ed25519.PublicKey
		if len(p.PublicKey) > 0 {
			key = ed25519.PublicKey(p.PublicKey)
		}
		return d.identities.CreateIdentity(ctx, caller, cmd.Subject, p.DataPointer, key)

	case KindLinkSystem:
		var p LinkSystemPayload
		if err := decode(cmd.Payload, &p); err != nil {
			return nil, err
		}
		systemType, err := domain.ParseSystemType(p.SystemType)
		if err != nil {
			return nil, err
		}
		return nil, d.identities.LinkSystemIdentity(ctx, caller, cmd.Subject, systemType, p.ExternalID)

	case KindIssueCredential:
		var p IssueCredentialPayload
		if err := decode(cmd.Payload, &p); err != nil {
			return nil, err
		}
		systemType, err := domain.ParseSystemType(p.SystemType)
		if err != nil {
			return nil, err
		}
		return nil, d.identities.IssueCredential(ctx, caller, cmd.Subject, p.Hash, p.Issuer, systemType, p.Expiry)

	case KindRevokeCredential:
		var p RevokeCredentialPayload
		if err := decode(cmd.Payload, &p); err != nil {
			return nil, err
		}
		return nil, d.identities.RevokeCredential(ctx, caller, cmd.Subject, p.Hash)

	case KindConfigureSwitch:
		var p ConfigureSwitchPayload
		if err := decode(cmd.Payload, &p); err != nil {
			return nil, err
		}
		beneficiary, err := domain.ParsePrincipal(p.Beneficiary)
		if err != nil {
			return nil, err
		}
		return nil, d.identities.ConfigureDeadMansSwitch(ctx, caller, cmd.Subject, p.IntervalDays, beneficiary)

	case KindRecordActivity:
		return nil, d.identities.RecordActivity(ctx, caller, cmd.Subject)

	case KindTriggerEstate:
		return nil, d.identities.TriggerEstateMode(ctx, caller, cmd.Subject)

	case KindSuspend:
		return nil, d.identities.Suspend(ctx, caller, cmd.Subject)

	case KindReactivate:
		return nil, d.identities.Reactivate(ctx, caller, cmd.Subject)

	case KindAuthorizeRelayer:
		var p AuthorizeRelayerPayload
		if err := decode(cmd.Payload, &p); err != nil {
			return nil, err
		}
		relayer, err := domain.ParsePrincipal(p.Relayer)
		if err != nil {
			return nil, err
		}
		return d.identities.AuthorizeRelayer(ctx, caller, cmd.Subject, relayer, p.Allowed)

	case KindRequestAccess:
		var p RequestAccessPayload
		if err := decode(cmd.Payload, &p); err != nil {
			return nil, err
		}
		grantee, scope, err := parseGranteeScope(p.Grantee, p.Scope)
		if err != nil {
			return nil, err
		}
		return nil, d.access.RequestAccess(ctx, cmd.Subject, grantee, scope, p.Purpose)

	case KindGrantAccess:
		var p GrantAccessPayload
		if err := decode(cmd.Payload, &p); err != nil {
			return nil, err
		}
		grantee, scope, err := parseGranteeScope(p.Grantee, p.Scope)
		if err != nil {
			return nil, err
		}
		duration := time.Duration(p.DurationSeconds) * time.Second
		return nil, d.access.GrantAccess(ctx, caller, cmd.Subject, grantee, scope, duration, p.DataScope)

	case KindRevokeAccess:
		var p RevokeAccessPayload
		if err := decode(cmd.Payload, &p); err != nil {
			return nil, err
		}
		grantee, err := domain.ParsePrincipal(p.Grantee)
		if err != nil {
			return nil, err
		}
		return nil, d.access.RevokeAccess(ctx, caller, cmd.Subject, grantee)

	case KindTriggerBreach:
		var p TriggerBreachPayload
		if err := decode(cmd.Payload, &p); err != nil {
			return nil, err
		}
		return nil, d.access.TriggerPoisonPill(ctx, caller, cmd.Subject, p.Reason)

	case KindRecordOODA:
		var p RecordOODAPayload
		if err := decode(cmd.Payload, &p); err != nil {
			return nil, err
		}
		if err := d.identities.Authorize(ctx, caller, cmd.Subject, identity.CapRelayer); err != nil {
			return nil, err
		}
		return nil, d.access.RecordPhase(ctx, cmd.Subject, access.OODAPhase(p.Phase), p.PayloadHash)

	case KindRegisterActionType:
		var p RegisterActionTypePayload
		if err := decode(cmd.Payload, &p); err != nil {
			return nil, err
		}
		if err := d.identities.Authorize(ctx, caller, cmd.Subject, identity.CapRegistrar); err != nil {
			return nil, err
		}
		systemType, err := domain.ParseSystemType(p.SystemType)
		if err != nil {
			return nil, err
		}
		return nil, d.audits.RegisterActionType(ctx, audit.ActionType{
			ID:                 p.ID,
			Label:              p.Label,
			SystemType:         systemType,
			RequiresDisclosure: p.RequiresDisclosure,
			RetentionDays:      p.RetentionDays,
		})

	case KindCreateAuditEntry:
		var p CreateAuditEntryPayload
		if err := decode(cmd.Payload, &p); err != nil {
			return nil, err
		}
		if err := d.identities.Authorize(ctx, caller, cmd.Subject, identity.CapRelayer); err != nil {
			return nil, err
		}
		systemType, err := domain.ParseSystemType(p.SystemType)
		if err != nil {
			return nil, err
		}
		return d.audits.CreateEntry(ctx, cmd.Subject, systemType, p.ActionTypeID, p.DataHash, p.Extra)

	case KindRegisterValidator:
		var p RegisterValidatorPayload
		if err := decode(cmd.Payload, &p); err != nil {
			return nil, err
		}
		if err := d.identities.Authorize(ctx, caller, cmd.Subject, identity.CapSubject); err != nil {
			return nil, err
		}
		return d.validators.RegisterValidator(ctx, cmd.Subject, p.NodeID, p.EndpointHash, p.Stake)

	case KindSubmitHealthCheck:
		var p SubmitHealthCheckPayload
		if err := decode(cmd.Payload, &p); err != nil {
			return nil, err
		}
		// A health report is a self-report; nobody degrades another node.
		if err := d.identities.Authorize(ctx, caller, cmd.Subject, identity.CapSubject); err != nil {
			return nil, err
		}
		return nil, d.validators.SubmitHealthCheck(ctx, cmd.Subject, p.StatusHash, p.Healthy, p.LatencyMs, p.ErrorCount)

	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown command kind")
	}
}

func decode(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed command payload")
	}
	return nil
}

func parseGranteeScope(granteeRaw, scopeRaw string) (domain.Principal, domain.AccessScope, error) {
	grantee, err := domain.ParsePrincipal(granteeRaw)
	if err != nil {
		return "", "", err
	}
	scope, err := domain.ParseAccessScope(scopeRaw)
	if err != nil {
		return "", "", err
	}
	return grantee, scope, nil
}
