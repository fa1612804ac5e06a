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

	"custodia/internal/audit"
	"custodia/internal/ledger"
	"custodia/internal/platform/middleware"
	"custodia/internal/transport/http/mocks"
	"custodia/pkg/domain"
)

//go:generate mockgen -source=handlers_audit.go -destination=mocks/audit-mocks.go -package=mocks AuditReader

func serveAudit(h *AuditHandler, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuditHandler_handleCreateEntry_ReturnsSequence(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	bus := mocks.NewMockCommandBus(ctrl)
	bus.EXPECT().
		Submit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd *ledger.Command) (any, error) {
			assert.Equal(t, ledger.KindCreateAuditEntry, cmd.Kind)
			assert.Equal(t, domain.Principal("subject-1"), cmd.Subject)
			return uint64(4), nil
		}).
		Times(1)

	h := NewAuditHandler(bus, nil, quietLogger())
	req := authedRequest(t, "POST", "/audit/entry", "adapter-1", map[string]any{
		"subject":        "subject-1",
		"system_type":    "clinical",
		"action_type_id": "clinical.visit",
		"data_hash":      "abc123",
	})

	w := serveAudit(h, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]uint64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint64(4), resp["sequence"])
}

func TestAuditHandler_handleCreateEntry_AttachesDeviceMetadata(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	bus := mocks.NewMockCommandBus(ctrl)
	bus.EXPECT().
		Submit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd *ledger.Command) (any, error) {
			var p ledger.CreateAuditEntryPayload
			require.NoError(t, json.Unmarshal(cmd.Payload, &p))
			assert.Equal(t, "Firefox on Linux", p.Extra["device"])
			return uint64(1), nil
		}).
		Times(1)

	h := NewAuditHandler(bus, nil, quietLogger())
	req := authedRequest(t, "POST", "/audit/entry", "adapter-1", map[string]any{
		"subject":        "subject-1",
		"system_type":    "clinical",
		"action_type_id": "clinical.visit",
		"data_hash":      "abc123",
	})
	ctx := context.WithValue(req.Context(), middleware.ContextKeyDevice, middleware.DeviceInfo{
		Browser: "Firefox",
		OS:      "Linux",
		Display: "Firefox on Linux",
	})
	req = req.WithContext(ctx)

	w := serveAudit(h, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAuditHandler_handleRegisterActionType(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	bus := mocks.NewMockCommandBus(ctrl)
	bus.EXPECT().
		Submit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd *ledger.Command) (any, error) {
			assert.Equal(t, ledger.KindRegisterActionType, cmd.Kind)
			// Registration acts on no subject; the caller fills both roles.
			assert.Equal(t, domain.Principal("registrar-1"), cmd.Subject)
			assert.Equal(t, domain.Principal("registrar-1"), cmd.Caller)
			return nil, nil
		}).
		Times(1)

	h := NewAuditHandler(bus, nil, quietLogger())
	req := authedRequest(t, "POST", "/audit/action-type", "registrar-1", map[string]any{
		"id":             "clinical.visit",
		"label":          "Clinical visit recorded",
		"system_type":    "clinical",
		"retention_days": 365,
	})

	w := serveAudit(h, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAuditHandler_handleListEntries(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reader := mocks.NewMockAuditReader(ctrl)
	reader.EXPECT().
		ListBySubject(gomock.Any(), domain.Principal("subject-1")).
		Return([]audit.Entry{
			{Subject: "subject-1", Sequence: 1, ActionTypeID: audit.ActionIdentityCreated},
			{Subject: "subject-1", Sequence: 2, ActionTypeID: audit.ActionAccessGranted},
		}, nil).
		Times(1)

	h := NewAuditHandler(nil, reader, quietLogger())
	req := authedRequest(t, "GET", "/audit/subject-1", "subject-1", nil)

	w := serveAudit(h, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp []audit.Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, uint64(2), resp[1].Sequence)
}

func TestAuditHandler_handleStatistics(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reader := mocks.NewMockAuditReader(ctrl)
	reader.EXPECT().
		GetStatistics(gomock.Any()).
		Return(&audit.Statistics{TotalEntries: 12, Subjects: 3}, nil).
		Times(1)

	h := NewAuditHandler(nil, reader, quietLogger())
	req := authedRequest(t, "GET", "/audit/stats", "registrar-1", nil)

	w := serveAudit(h, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp audit.Statistics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint64(12), resp.TotalEntries)
}
