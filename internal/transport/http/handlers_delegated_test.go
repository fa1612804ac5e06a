package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"custodia/internal/ledger"
	"custodia/internal/transport/http/mocks"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

//go:generate mockgen -source=handlers_delegated.go -destination=mocks/delegated-mocks.go -package=mocks RelayerVerifier

func serveDelegated(h *DelegatedHandler, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDelegatedHandler_handleSubmit_HappyPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	verifier := mocks.NewMockRelayerVerifier(ctrl)
	verifier.EXPECT().
		VerifyRelayerSecret(gomock.Any(), domain.Principal("subject-1"), domain.Principal("relay-1"), "relay-secret").
		Return(nil).
		Times(1)

	bus := mocks.NewMockCommandBus(ctrl)
	bus.EXPECT().
		Submit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd *ledger.Command) (any, error) {
			assert.Equal(t, ledger.KindRecordActivity, cmd.Kind)
			assert.Equal(t, domain.Principal("subject-1"), cmd.Subject)
			assert.True(t, cmd.Caller.IsNil())
			assert.Equal(t, uint64(7), cmd.Nonce)
			assert.Equal(t, []byte("sig-bytes"), cmd.Signature)
			return nil, nil
		}).
		Times(1)

	// No bearer token on this path; relayer secret plus signature stand in.
	h := NewDelegatedHandler(bus, verifier, quietLogger())
	req := authedRequest(t, "POST", "/identity/delegated", "", map[string]any{
		"kind":           string(ledger.KindRecordActivity),
		"subject":        "subject-1",
		"nonce":          7,
		"signature":      []byte("sig-bytes"),
		"relayer":        "relay-1",
		"relayer_secret": "relay-secret",
	})

	w := serveDelegated(h, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["accepted"])
}

func TestDelegatedHandler_handleSubmit_BadRelayerSecret(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	verifier := mocks.NewMockRelayerVerifier(ctrl)
	verifier.EXPECT().
		VerifyRelayerSecret(gomock.Any(), gomock.Any(), gomock.Any(), "wrong").
		Return(dErrors.New(dErrors.CodeUnauthorized, "relayer secret mismatch")).
		Times(1)

	// The bus must never see the command when the relayer check fails.
	bus := mocks.NewMockCommandBus(ctrl)

	h := NewDelegatedHandler(bus, verifier, quietLogger())
	req := authedRequest(t, "POST", "/identity/delegated", "", map[string]any{
		"kind":           string(ledger.KindRecordActivity),
		"subject":        "subject-1",
		"nonce":          7,
		"signature":      []byte("sig-bytes"),
		"relayer":        "relay-1",
		"relayer_secret": "wrong",
	})

	w := serveDelegated(h, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDelegatedHandler_handleSubmit_MissingSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	verifier := mocks.NewMockRelayerVerifier(ctrl)
	bus := mocks.NewMockCommandBus(ctrl)

	h := NewDelegatedHandler(bus, verifier, quietLogger())
	req := authedRequest(t, "POST", "/identity/delegated", "", map[string]any{
		"kind":           string(ledger.KindRecordActivity),
		"subject":        "subject-1",
		"nonce":          7,
		"relayer":        "relay-1",
		"relayer_secret": "relay-secret",
	})

	w := serveDelegated(h, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
