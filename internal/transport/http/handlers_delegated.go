package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"custodia/internal/ledger"
	"custodia/internal/transport/http/shared"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// DelegatedHandler accepts relayed commands signed by the subject's key.
// It sits outside the bearer-token chain: the ed25519 signature and nonce
// are the authentication, verified inside the ledger transition. The relayer
// still identifies itself with its issued secret.
type DelegatedHandler struct {
	bus      CommandBus
	verifier RelayerVerifier
	logger   *slog.Logger
}

// RelayerVerifier checks a relayer's issued secret for a subject.
type RelayerVerifier interface {
	VerifyRelayerSecret(ctx context.Context, principal, relayer domain.Principal, secret string) error
}

func NewDelegatedHandler(bus CommandBus, verifier RelayerVerifier, logger *slog.Logger) *DelegatedHandler {
	return &DelegatedHandler{bus: bus, verifier: verifier, logger: logger}
}

func (h *DelegatedHandler) Register(r chi.Router) {
	r.Post("/identity/delegated", h.handleSubmit)
}

type delegatedRequest struct {
	Kind          string          `json:"kind"`
	Subject       string          `json:"subject"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Nonce         uint64          `json:"nonce"`
	Signature     []byte          `json:"signature"`
	Relayer       string          `json:"relayer"`
	RelayerSecret string          `json:"relayer_secret"`
}

func (h *DelegatedHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req delegatedRequest
	if !decodeBody(w, r, &req) {
		return
	}
	subject, err := domain.ParsePrincipal(req.Subject)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	relayer, err := domain.ParsePrincipal(req.Relayer)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if len(req.Signature) == 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "signature is required"))
		return
	}

	if err := h.verifier.VerifyRelayerSecret(r.Context(), subject, relayer, req.RelayerSecret); err != nil {
		h.logger.WarnContext(r.Context(), "relayer rejected",
			"subject", subject.String(),
			"relayer", relayer.String(),
		)
		shared.WriteError(w, err)
		return
	}

	value, err := h.bus.Submit(r.Context(), &ledger.Command{
		Kind:      ledger.Kind(req.Kind),
		Subject:   subject,
		Payload:   req.Payload,
		Nonce:     req.Nonce,
		Signature: req.Signature,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"accepted": true,
		"result":   value,
	})
}
