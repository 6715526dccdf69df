package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tamilselvan8428/person-tracking/internal/principal"
	"github.com/tamilselvan8428/person-tracking/pkg/jwtutil"
)

func newRouter(jwt *jwtutil.JWTUtil) *echo.Echo {
	e := echo.New()
	g := e.Group("/secure")
	g.Use(JWTAuthMiddleware(jwt))
	g.GET("/any", func(c echo.Context) error {
		p := GetPrincipal(c)
		return c.JSON(http.StatusOK, echo.Map{"role": string(p.Role)})
	})
	g.GET("/admin", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, RequireRole(principal.RolePlatformAdmin))
	g.GET("/tracking", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, RequireScope(principal.ScopeTracking))
	return e
}

func perform(e *echo.Echo, token string) func(path string) *httptest.ResponseRecorder {
	return func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}
}

func TestJWTAuthMiddleware(t *testing.T) {
	jwt := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: "test-key", ExpirationHours: 1})
	e := newRouter(jwt)

	t.Run("missing header", func(t *testing.T) {
		rec := perform(e, "")("/secure/any")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/secure/any", nil)
		req.Header.Set(echo.HeaderAuthorization, "Token abc")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token builds a principal", func(t *testing.T) {
		tenantID := uint(3)
		token, err := jwt.GenerateToken("a@b", 1, "tenant_admin", &tenantID, nil)
		require.NoError(t, err)
		rec := perform(e, token)("/secure/any")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "tenant_admin")
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		token, err := jwt.GenerateToken("a@b", 1, "superuser", nil, nil)
		require.NoError(t, err)
		rec := perform(e, token)("/secure/any")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("tenant user with unknown scope is rejected", func(t *testing.T) {
		tenantID := uint(3)
		token, err := jwt.GenerateToken("a@b", 1, "tenant_user", &tenantID, []string{"billing"})
		require.NoError(t, err)
		rec := perform(e, token)("/secure/any")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRoleAndScopeGates(t *testing.T) {
	jwt := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: "test-key", ExpirationHours: 1})
	e := newRouter(jwt)
	tenantID := uint(3)

	t.Run("role gate", func(t *testing.T) {
		platform, err := jwt.GenerateToken("root@p", 1, "platform_admin", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, perform(e, platform)("/secure/admin").Code)

		admin, err := jwt.GenerateToken("a@b", 2, "tenant_admin", &tenantID, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, perform(e, admin)("/secure/admin").Code)
	})

	t.Run("scope gate admits admins unconditionally", func(t *testing.T) {
		admin, err := jwt.GenerateToken("a@b", 2, "tenant_admin", &tenantID, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, perform(e, admin)("/secure/tracking").Code)
	})

	t.Run("scope gate checks tenant user grants", func(t *testing.T) {
		granted, err := jwt.GenerateToken("u@b", 3, "tenant_user", &tenantID, []string{"tracking"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, perform(e, granted)("/secure/tracking").Code)

		denied, err := jwt.GenerateToken("u@b", 4, "tenant_user", &tenantID, []string{"config"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, perform(e, denied)("/secure/tracking").Code)
	})
}
