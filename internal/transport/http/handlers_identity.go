package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custodia/internal/identity"
	"custodia/internal/ledger"
	"custodia/internal/platform/middleware"
	"custodia/internal/transport/http/shared"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// CommandBus submits a command into the total order and waits for its
// outcome. Implemented by the ledger sequencer.
type CommandBus interface {
	Submit(ctx context.Context, cmd *ledger.Command) (any, error)
}

// IdentityReader serves the identity point queries from committed state.
type IdentityReader interface {
	GetProfile(ctx context.Context, principal domain.Principal) (*identity.Identity, error)
	HasValidCredential(ctx context.Context, principal domain.Principal, hash string) (bool, error)
	CheckEstateMode(ctx context.Context, principal domain.Principal) (bool, error)
}

// IdentityHandler exposes the identity registry over HTTP. Mutations go
// through the command bus; reads hit committed state directly.
type IdentityHandler struct {
	bus    CommandBus
	reader IdentityReader
	logger *slog.Logger
}

func NewIdentityHandler(bus CommandBus, reader IdentityReader, logger *slog.Logger) *IdentityHandler {
	return &IdentityHandler{bus: bus, reader: reader, logger: logger}
}

func (h *IdentityHandler) Register(r chi.Router) {
	r.Post("/identity", h.handleCreate)
	r.Post("/identity/link", h.handleLink)
	r.Post("/identity/credential", h.handleIssueCredential)
	r.Post("/identity/credential/revoke", h.handleRevokeCredential)
	r.Post("/identity/dms", h.handleConfigureSwitch)
	r.Post("/identity/activity", h.handleRecordActivity)
	r.Post("/identity/estate", h.handleTriggerEstate)
	r.Post("/identity/suspend", h.handleSuspend)
	r.Post("/identity/reactivate", h.handleReactivate)
	r.Post("/identity/relayer", h.handleAuthorizeRelayer)
	r.Get("/identity/{principal}", h.handleGetProfile)
	r.Get("/identity/{principal}/credential/{hash}", h.handleCredentialValidity)
	r.Get("/identity/{principal}/estate-due", h.handleEstateDue)
}

type createIdentityRequest struct {
	Principal   string `json:"principal"`
	DataPointer string `json:"data_pointer"`
	PublicKey   []byte `json:"public_key,omitempty"`
}

func (h *IdentityHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createIdentityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.submit(w, r, ledger.KindCreateIdentity, req.Principal, ledger.CreateIdentityPayload{
		DataPointer: req.DataPointer,
		PublicKey:   req.PublicKey,
	}, http.StatusCreated)
}

type linkRequest struct {
	Principal  string `json:"principal"`
	SystemType string `json:"system_type"`
	ExternalID string `json:"external_id"`
}

func (h *IdentityHandler) handleLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.submit(w, r, ledger.KindLinkSystem, req.Principal, ledger.LinkSystemPayload{
		SystemType: req.SystemType,
		ExternalID: req.ExternalID,
	}, http.StatusNoContent)
}

type issueCredentialRequest struct {
	Principal  string    `json:"principal"`
	Hash       string    `json:"hash"`
	Issuer     string    `json:"issuer"`
	SystemType string    `json:"system_type"`
	Expiry     time.Time `json:"expiry"`
}

func (h *IdentityHandler) handleIssueCredential(w http.ResponseWriter, r *http.Request) {
	var req issueCredentialRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.submit(w, r, ledger.KindIssueCredential, req.Principal, ledger.IssueCredentialPayload{
		Hash:       req.Hash,
		Issuer:     req.Issuer,
		SystemType: req.SystemType,
		Expiry:     req.Expiry,
	}, http.StatusNoContent)
}

type revokeCredentialRequest struct {
	Principal string `json:"principal"`
	Hash      string `json:"hash"`
}

func (h *IdentityHandler) handleRevokeCredential(w http.ResponseWriter, r *http.Request) {
	var req revokeCredentialRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.submit(w, r, ledger.KindRevokeCredential, req.Principal, ledger.RevokeCredentialPayload{
		Hash: req.Hash,
	}, http.StatusNoContent)
}

type configureSwitchRequest struct {
	Principal    string `json:"principal"`
	IntervalDays int    `json:"interval_days"`
	Beneficiary  string `json:"beneficiary"`
}

func (h *IdentityHandler) handleConfigureSwitch(w http.ResponseWriter, r *http.Request) {
	var req configureSwitchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.submit(w, r, ledger.KindConfigureSwitch, req.Principal, ledger.ConfigureSwitchPayload{
		IntervalDays: req.IntervalDays,
		Beneficiary:  req.Beneficiary,
	}, http.StatusNoContent)
}

type principalRequest struct {
	Principal string `json:"principal"`
}

func (h *IdentityHandler) handleRecordActivity(w http.ResponseWriter, r *http.Request) {
	var req principalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.submit(w, r, ledger.KindRecordActivity, req.Principal, nil, http.StatusNoContent)
}

func (h *IdentityHandler) handleTriggerEstate(w http.ResponseWriter, r *http.Request) {
	var req principalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.submit(w, r, ledger.KindTriggerEstate, req.Principal, nil, http.StatusNoContent)
}

func (h *IdentityHandler) handleSuspend(w http.ResponseWriter, r *http.Request) {
	var req principalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.submit(w, r, ledger.KindSuspend, req.Principal, nil, http.StatusNoContent)
}

func (h *IdentityHandler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	var req principalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.submit(w, r, ledger.KindReactivate, req.Principal, nil, http.StatusNoContent)
}

type authorizeRelayerRequest struct {
	Principal string `json:"principal"`
	Relayer   string `json:"relayer"`
	Allowed   bool   `json:"allowed"`
}

func (h *IdentityHandler) handleAuthorizeRelayer(w http.ResponseWriter, r *http.Request) {
	var req authorizeRelayerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cmd, err := buildCommand(r, ledger.KindAuthorizeRelayer, req.Principal, ledger.AuthorizeRelayerPayload{
		Relayer: req.Relayer,
		Allowed: req.Allowed,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	value, err := h.bus.Submit(r.Context(), cmd)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	secret, _ := value.(string)
	shared.WriteJSON(w, http.StatusOK, map[string]string{"secret": secret})
}

type profileResponse struct {
	Principal      string                                    `json:"principal"`
	Status         string                                    `json:"status"`
	DataPointer    string                                    `json:"data_pointer"`
	Nonce          uint64                                    `json:"nonce"`
	EstateDelegate string                                    `json:"estate_delegate,omitempty"`
	SystemLinks    map[domain.SystemType]identity.SystemLink `json:"system_links,omitempty"`
	CreatedAt      time.Time                                 `json:"created_at"`
	UpdatedAt      time.Time                                 `json:"updated_at"`
}

func (h *IdentityHandler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	principal, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	ident, err := h.reader.GetProfile(r.Context(), principal)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, profileResponse{
		Principal:      ident.Principal.String(),
		Status:         string(ident.Status),
		DataPointer:    ident.DataPointer,
		Nonce:          ident.Nonce,
		EstateDelegate: ident.EstateDelegate.String(),
		SystemLinks:    ident.SystemLinks,
		CreatedAt:      ident.CreatedAt,
		UpdatedAt:      ident.UpdatedAt,
	})
}

func (h *IdentityHandler) handleCredentialValidity(w http.ResponseWriter, r *http.Request) {
	principal, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	valid, err := h.reader.HasValidCredential(r.Context(), principal, chi.URLParam(r, "hash"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

func (h *IdentityHandler) handleEstateDue(w http.ResponseWriter, r *http.Request) {
	principal, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	due, err := h.reader.CheckEstateMode(r.Context(), principal)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]bool{"due": due})
}

func (h *IdentityHandler) submit(w http.ResponseWriter, r *http.Request, kind ledger.Kind, subject string, payload any, okStatus int) {
	cmd, err := buildCommand(r, kind, subject, payload)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if _, err := h.bus.Submit(r.Context(), cmd); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(okStatus)
}

// buildCommand assembles a command from the authenticated caller and the
// request body. The subject comes from the body: callers act on other
// subjects all the time (registrars, grantees), and the ledger decides
// whether they may.
func buildCommand(r *http.Request, kind ledger.Kind, subjectRaw string, payload any) (*ledger.Command, error) {
	subject, err := domain.ParsePrincipal(subjectRaw)
	if err != nil {
		return nil, err
	}
	caller, err := domain.ParsePrincipal(middleware.GetPrincipal(r.Context()))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller principal missing from token")
	}

	var raw json.RawMessage
	if payload != nil {
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode payload")
		}
	}
	return &ledger.Command{
		Kind:    kind,
		Subject: subject,
		Caller:  caller,
		Payload: raw,
	}, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return false
	}
	return true
}
