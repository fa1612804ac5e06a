package httptransport

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"custodia/internal/platform/middleware"
	"custodia/internal/transport/http/mocks"
	"custodia/pkg/domain"
)

type staticTokenValidator struct {
	token     string
	principal string
}

func (v *staticTokenValidator) ValidateToken(token string) (*middleware.Claims, error) {
	if token != v.token {
		return nil, errors.New("unknown token")
	}
	return &middleware.Claims{Principal: v.principal}, nil
}

func newTestRouter(t *testing.T, ctrl *gomock.Controller) (http.Handler, *mocks.MockIdentityReader) {
	t.Helper()
	reader := mocks.NewMockIdentityReader(ctrl)
	cfg := RouterConfig{
		Logger:       quietLogger(),
		JWTValidator: &staticTokenValidator{token: "good-token", principal: "caller-1"},
	}
	identityHandler := NewIdentityHandler(nil, reader, cfg.Logger)
	return NewRouter(cfg, nil, identityHandler), reader
}

func TestRouter_RejectsMissingBearerToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router, _ := newTestRouter(t, ctrl)

	req := httptest.NewRequest("GET", "/identity/subject-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_AcceptsValidBearerToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router, reader := newTestRouter(t, ctrl)
	reader.EXPECT().
		CheckEstateMode(gomock.Any(), domain.Principal("subject-1")).
		Return(false, nil).
		Times(1)

	req := httptest.NewRequest("GET", "/identity/subject-1/estate-due", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_HealthAndMetricsStayOpen(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router, _ := newTestRouter(t, ctrl)

	for _, path := range []string{"/healthz", "/metrics"} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
