package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"custodia/internal/audit"
	"custodia/internal/ledger"
	"custodia/internal/platform/middleware"
	"custodia/internal/transport/http/shared"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// AuditReader serves the trail's read aggregates.
type AuditReader interface {
	ListBySubject(ctx context.Context, subject domain.Principal) ([]audit.Entry, error)
	SubjectEntryCount(ctx context.Context, subject domain.Principal) (uint64, error)
	GetStatistics(ctx context.Context) (*audit.Statistics, error)
	GetActionType(ctx context.Context, id string) (*audit.ActionType, error)
}

// AuditHandler exposes the audit trail and action type registry over HTTP.
// Collaborating adapters call the entry endpoint after their own domain
// write succeeds; the device metadata middleware enriches the entry extra.
type AuditHandler struct {
	bus    CommandBus
	reader AuditReader
	logger *slog.Logger
}

func NewAuditHandler(bus CommandBus, reader AuditReader, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{bus: bus, reader: reader, logger: logger}
}

func (h *AuditHandler) Register(r chi.Router) {
	r.Post("/audit/action-type", h.handleRegisterActionType)
	r.Post("/audit/entry", h.handleCreateEntry)
	r.Get("/audit/stats", h.handleStatistics)
	r.Get("/audit/action-type/{id}", h.handleGetActionType)
	r.Get("/audit/{subject}", h.handleListEntries)
	r.Get("/audit/{subject}/count", h.handleEntryCount)
}

type registerActionTypeRequest struct {
	ID                 string `json:"id"`
	Label              string `json:"label"`
	SystemType         string `json:"system_type"`
	RequiresDisclosure bool   `json:"requires_disclosure"`
	RetentionDays      int    `json:"retention_days"`
}

func (h *AuditHandler) handleRegisterActionType(w http.ResponseWriter, r *http.Request) {
	var req registerActionTypeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	// Registration has no subject of its own; the ledger gates on the
	// caller being a registrar.
	caller := middleware.GetPrincipal(r.Context())
	cmd, err := buildCommand(r, ledger.KindRegisterActionType, caller, ledger.RegisterActionTypePayload{
		ID:                 req.ID,
		Label:              req.Label,
		SystemType:         req.SystemType,
		RequiresDisclosure: req.RequiresDisclosure,
		RetentionDays:      req.RetentionDays,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if _, err := h.bus.Submit(r.Context(), cmd); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type createEntryRequest struct {
	Subject      string            `json:"subject"`
	SystemType   string            `json:"system_type"`
	ActionTypeID string            `json:"action_type_id"`
	DataHash     string            `json:"data_hash"`
	Extra        map[string]string `json:"extra,omitempty"`
}

func (h *AuditHandler) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	extra := req.Extra
	if device := middleware.GetDevice(r.Context()); device.Display != "" {
		if extra == nil {
			extra = make(map[string]string, 1)
		}
		extra["device"] = device.Display
	}

	cmd, err := buildCommand(r, ledger.KindCreateAuditEntry, req.Subject, ledger.CreateAuditEntryPayload{
		SystemType:   req.SystemType,
		ActionTypeID: req.ActionTypeID,
		DataHash:     req.DataHash,
		Extra:        extra,
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
	sequence, ok := value.(uint64)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "unexpected command result"))
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]uint64{"sequence": sequence})
}

func (h *AuditHandler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	subject, err := domain.ParsePrincipal(chi.URLParam(r, "subject"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	entries, err := h.reader.ListBySubject(r.Context(), subject)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, entries)
}

func (h *AuditHandler) handleEntryCount(w http.ResponseWriter, r *http.Request) {
	subject, err := domain.ParsePrincipal(chi.URLParam(r, "subject"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	count, err := h.reader.SubjectEntryCount(r.Context(), subject)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]uint64{"count": count})
}

func (h *AuditHandler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reader.GetStatistics(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}

func (h *AuditHandler) handleGetActionType(w http.ResponseWriter, r *http.Request) {
	at, err := h.reader.GetActionType(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, at)
}
