package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/velora/chat-core/internal/models"
)

type stubValidator struct {
	user *models.User
	err  error
}

func (s *stubValidator) ValidateToken(context.Context, string) (*models.User, error) {
	return s.user, s.err
}

func performAuth(t *testing.T, validator TokenValidator, authorization string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/channels", nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Auth(validator)(func(c echo.Context) error {
		require.NotNil(t, UserFromContext(c))
		return c.NoContent(http.StatusOK)
	})
	return rec, handler(c)
}

func TestAuthAcceptsBearerToken(t *testing.T) {
	user := &models.User{ID: primitive.NewObjectID(), IsActive: true}
	rec, err := performAuth(t, &stubValidator{user: user}, "Bearer good-token")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRejectsMissingToken(t *testing.T) {
	_, err := performAuth(t, &stubValidator{}, "")
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	_, err := performAuth(t, &stubValidator{err: models.ErrUnauthenticated}, "Bearer bad-token")
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}
