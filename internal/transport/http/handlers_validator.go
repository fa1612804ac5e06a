package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custodia/internal/ledger"
	"custodia/internal/transport/http/shared"
	"custodia/internal/validator"
	"custodia/pkg/domain"
)

// ValidatorReader serves liveness reads against the validator set.
type ValidatorReader interface {
	IsValidatorHealthy(ctx context.Context, principal domain.Principal) (bool, error)
	GetValidator(ctx context.Context, principal domain.Principal) (*validator.Validator, error)
	Quorum(ctx context.Context) (*validator.QuorumView, error)
}

type ValidatorHandler struct {
	bus    CommandBus
	reader ValidatorReader
	logger *slog.Logger
}

func NewValidatorHandler(bus CommandBus, reader ValidatorReader, logger *slog.Logger) *ValidatorHandler {
	return &ValidatorHandler{bus: bus, reader: reader, logger: logger}
}

func (h *ValidatorHandler) Register(r chi.Router) {
	r.Post("/validator/register", h.handleRegister)
	r.Post("/validator/health", h.handleHealthCheck)
	r.Get("/validator/quorum", h.handleQuorum)
	r.Get("/validator/{principal}", h.handleGet)
	r.Get("/validator/{principal}/healthy", h.handleHealthy)
}

type registerValidatorRequest struct {
	Principal    string  `json:"principal"`
	NodeID       string  `json:"node_id"`
	EndpointHash string  `json:"endpoint_hash"`
	Stake        float64 `json:"stake"`
}

func (h *ValidatorHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerValidatorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cmd, err := buildCommand(r, ledger.KindRegisterValidator, req.Principal, ledger.RegisterValidatorPayload{
		NodeID:       req.NodeID,
		EndpointHash: req.EndpointHash,
		Stake:        req.Stake,
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

type healthCheckRequest struct {
	Principal  string `json:"principal"`
	StatusHash string `json:"status_hash"`
	Healthy    bool   `json:"healthy"`
	LatencyMs  int    `json:"latency_ms"`
	ErrorCount int    `json:"error_count"`
}

func (h *ValidatorHandler) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	var req healthCheckRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cmd, err := buildCommand(r, ledger.KindSubmitHealthCheck, req.Principal, ledger.SubmitHealthCheckPayload{
		StatusHash: req.StatusHash,
		Healthy:    req.Healthy,
		LatencyMs:  req.LatencyMs,
		ErrorCount: req.ErrorCount,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if _, err := h.bus.Submit(r.Context(), cmd); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type validatorResponse struct {
	Principal         string  `json:"principal"`
	NodeID            string  `json:"node_id"`
	EndpointHash      string  `json:"endpoint_hash"`
	Stake             float64 `json:"stake"`
	Active            bool    `json:"active"`
	Healthy           bool    `json:"healthy"`
	LastHealthCheckAt string  `json:"last_health_check_at"`
}

func (h *ValidatorHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	principal, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	v, err := h.reader.GetValidator(r.Context(), principal)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, validatorResponse{
		Principal:         string(v.Principal),
		NodeID:            v.NodeID,
		EndpointHash:      v.EndpointHash,
		Stake:             v.Stake,
		Active:            v.Active,
		Healthy:           v.Healthy,
		LastHealthCheckAt: v.LastHealthCheckAt.Format(time.RFC3339),
	})
}

func (h *ValidatorHandler) handleHealthy(w http.ResponseWriter, r *http.Request) {
	principal, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	healthy, err := h.reader.IsValidatorHealthy(r.Context(), principal)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]bool{"healthy": healthy})
}

func (h *ValidatorHandler) handleQuorum(w http.ResponseWriter, r *http.Request) {
	view, err := h.reader.Quorum(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, view)
}
