package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custodia/internal/access"
	"custodia/internal/ledger"
	"custodia/internal/transport/http/shared"
	"custodia/pkg/domain"
)

// AccessReader serves access point queries from committed state.
type AccessReader interface {
	HasAccess(ctx context.Context, subject, grantee domain.Principal, scope domain.AccessScope) (bool, error)
	ListGrants(ctx context.Context, subject domain.Principal) ([]access.Grant, error)
	Breached(ctx context.Context, subject domain.Principal) (*access.BreachFlag, error)
	DecisionTrail(ctx context.Context, subject domain.Principal) ([]access.OODAEntry, error)
}

// AccessHandler exposes the access governor over HTTP.
type AccessHandler struct {
	bus    CommandBus
	reader AccessReader
	logger *slog.Logger
}

func NewAccessHandler(bus CommandBus, reader AccessReader, logger *slog.Logger) *AccessHandler {
	return &AccessHandler{bus: bus, reader: reader, logger: logger}
}

func (h *AccessHandler) Register(r chi.Router) {
	r.Post("/access/request", h.handleRequest)
	r.Post("/access/grant", h.handleGrant)
	r.Post("/access/revoke", h.handleRevoke)
	r.Post("/access/breach", h.handleBreach)
	r.Post("/access/ooda", h.handleOODA)
	r.Get("/access/check", h.handleCheck)
	r.Get("/access/grants/{subject}", h.handleListGrants)
	r.Get("/access/ooda/{subject}", h.handleDecisionTrail)
}

type requestAccessRequest struct {
	Subject string `json:"subject"`
	Grantee string `json:"grantee"`
	Scope   string `json:"scope"`
	Purpose string `json:"purpose"`
}

func (h *AccessHandler) handleRequest(w http.ResponseWriter, r *http.Request) {
	var req requestAccessRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.submit(w, r, ledger.KindRequestAccess, req.Subject, ledger.RequestAccessPayload{
		Grantee: req.Grantee,
		Scope:   req.Scope,
		Purpose: req.Purpose,
	}, http.StatusAccepted)
}

type grantAccessRequest struct {
	Subject         string `json:"subject"`
	Grantee         string `json:"grantee"`
	Scope           string `json:"scope"`
	DurationSeconds int64  `json:"duration_seconds"`
	DataScope       string `json:"data_scope"`
}

func (h *AccessHandler) handleGrant(w http.ResponseWriter, r *http.Request) {
	var req grantAccessRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.submit(w, r, ledger.KindGrantAccess, req.Subject, ledger.GrantAccessPayload{
		Grantee:         req.Grantee,
		Scope:           req.Scope,
		DurationSeconds: req.DurationSeconds,
		DataScope:       req.DataScope,
	}, http.StatusNoContent)
}

type revokeAccessRequest struct {
	Subject string `json:"subject"`
	Grantee string `json:"grantee"`
}

func (h *AccessHandler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var req revokeAccessRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.submit(w, r, ledger.KindRevokeAccess, req.Subject, ledger.RevokeAccessPayload{
		Grantee: req.Grantee,
	}, http.StatusNoContent)
}

type breachRequest struct {
	Subject string `json:"subject"`
	Reason  string `json:"reason"`
}

func (h *AccessHandler) handleBreach(w http.ResponseWriter, r *http.Request) {
	var req breachRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.submit(w, r, ledger.KindTriggerBreach, req.Subject, ledger.TriggerBreachPayload{
		Reason: req.Reason,
	}, http.StatusNoContent)
}

type oodaRequest struct {
	Subject     string `json:"subject"`
	Phase       string `json:"phase"`
	PayloadHash string `json:"payload_hash"`
}

func (h *AccessHandler) handleOODA(w http.ResponseWriter, r *http.Request) {
	var req oodaRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.submit(w, r, ledger.KindRecordOODA, req.Subject, ledger.RecordOODAPayload{
		Phase:       req.Phase,
		PayloadHash: req.PayloadHash,
	}, http.StatusNoContent)
}

func (h *AccessHandler) handleCheck(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	subject, err := domain.ParsePrincipal(query.Get("subject"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	grantee, err := domain.ParsePrincipal(query.Get("grantee"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	scope, err := domain.ParseAccessScope(query.Get("scope"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	allowed, err := h.reader.HasAccess(r.Context(), subject, grantee, scope)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

type grantResponse struct {
	Grantee   string `json:"grantee"`
	Scope     string `json:"scope"`
	State     string `json:"state"`
	DataScope string `json:"data_scope,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

func (h *AccessHandler) handleListGrants(w http.ResponseWriter, r *http.Request) {
	subject, err := domain.ParsePrincipal(chi.URLParam(r, "subject"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	grants, err := h.reader.ListGrants(r.Context(), subject)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	out := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		resp := grantResponse{
			Grantee:   g.Grantee.String(),
			Scope:     g.Scope.String(),
			State:     string(g.State),
			DataScope: g.DataScope,
		}
		if !g.ExpiresAt.IsZero() {
			resp.ExpiresAt = g.ExpiresAt.UTC().Format(time.RFC3339)
		}
		out = append(out, resp)
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *AccessHandler) handleDecisionTrail(w http.ResponseWriter, r *http.Request) {
	subject, err := domain.ParsePrincipal(chi.URLParam(r, "subject"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	trail, err := h.reader.DecisionTrail(r.Context(), subject)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, trail)
}

func (h *AccessHandler) submit(w http.ResponseWriter, r *http.Request, kind ledger.Kind, subject string, payload any, okStatus int) {
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
