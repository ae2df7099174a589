package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morningtable/breakfast-market/internal/utils"
)

func runProtected(t *testing.T, authHeader string, mws ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"role": c.Get("role")})
	}
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	require.NoError(t, h(c))
	return rec
}

func TestJWTAuthAcceptsIssuedToken(t *testing.T) {
	at, err := utils.NewAccessToken("secret", 7, "CUSTOMER", 15)
	require.NoError(t, err)

	rec := runProtected(t, "Bearer "+at.Token, JWTAuth("secret"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "CUSTOMER")
}

func TestJWTAuthRejects(t *testing.T) {
	// No header at all.
	rec := runProtected(t, "", JWTAuth("secret"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Token signed with a different secret.
	at, err := utils.NewAccessToken("othersecret", 7, "CUSTOMER", 15)
	require.NoError(t, err)
	rec = runProtected(t, "Bearer "+at.Token, JWTAuth("secret"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Expired token.
	expired, err := utils.NewAccessToken("secret", 7, "CUSTOMER", -1)
	require.NoError(t, err)
	rec = runProtected(t, "Bearer "+expired.Token, JWTAuth("secret"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	provider, err := utils.NewAccessToken("secret", 7, "PROVIDER", 15)
	require.NoError(t, err)
	customer, err := utils.NewAccessToken("secret", 8, "CUSTOMER", 15)
	require.NoError(t, err)

	rec := runProtected(t, "Bearer "+provider.Token, JWTAuth("secret"), RequireRole("PROVIDER", "ADMIN"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = runProtected(t, "Bearer "+customer.Token, JWTAuth("secret"), RequireRole("PROVIDER", "ADMIN"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
