package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/tamilselvan8428/person-tracking/internal/clock"
	"github.com/tamilselvan8428/person-tracking/internal/middleware"
	"github.com/tamilselvan8428/person-tracking/internal/model"
	"github.com/tamilselvan8428/person-tracking/internal/principal"
	"github.com/tamilselvan8428/person-tracking/internal/registry"
	"github.com/tamilselvan8428/person-tracking/internal/tracking"
	"github.com/tamilselvan8428/person-tracking/pkg/config"
	"github.com/tamilselvan8428/person-tracking/pkg/jwtutil"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// testEnv wires the full HTTP surface against an in-memory database, the
// same way cmd/trackerd does against Postgres.
type testEnv struct {
	e   *echo.Echo
	db  *gorm.DB
	clk *clock.FakeClock
	jwt *jwtutil.JWTUtil
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Tenant{},
		&model.User{},
		&model.TenantUser{},
		&model.Device{},
		&model.Observation{},
	))

	cfg := config.TrackingConfig{
		OfflineAfter:      360 * time.Second,
		TrackingWindow:    360 * time.Second,
		HeartbeatInterval: 60 * time.Second,
		TrackingInterval:  300 * time.Second,
	}
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	jwt := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})

	log := zap.NewNop()
	registrySvc := registry.NewService(db, clk, cfg, log)
	trackingSvc := tracking.NewService(db, clk, cfg, log)

	authHandler := NewAuthHandler(db, jwt)
	deviceHandler := NewDeviceHandler(registrySvc)
	trackingHandler := NewTrackingHandler(trackingSvc)

	e := echo.New()
	e.GET("/health", HealthCheck)
	e.POST("/auth/login", authHandler.Login)
	e.POST("/devices/heartbeat", deviceHandler.Heartbeat)
	e.GET("/devices/config", deviceHandler.Config)
	e.POST("/tracking/update", trackingHandler.Update)

	auth := e.Group("/auth")
	auth.Use(middleware.JWTAuthMiddleware(jwt))
	auth.POST("/tenant-admins", authHandler.CreateTenantAdmin,
		middleware.RequireRole(principal.RolePlatformAdmin))
	auth.POST("/tenant-users", authHandler.CreateTenantUser,
		middleware.RequireRole(principal.RoleTenantAdmin))

	devices := e.Group("/devices")
	devices.Use(middleware.JWTAuthMiddleware(jwt))
	devices.POST("/register", deviceHandler.Register, middleware.RequireScope(principal.ScopeConfig))
	devices.GET("", deviceHandler.List, middleware.RequireScope(principal.ScopeConfig))

	trackingGroup := e.Group("/tracking")
	trackingGroup.Use(middleware.JWTAuthMiddleware(jwt))
	trackingGroup.GET("/locations", trackingHandler.Locations,
		middleware.RequireScope(principal.ScopeTracking))

	return &testEnv{e: e, db: db, clk: clk, jwt: jwt}
}

// request performs one HTTP round trip against the test router.
func (env *testEnv) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (env *testEnv) createTenant(t *testing.T, name string) uint {
	t.Helper()
	tenant := model.Tenant{Name: name}
	require.NoError(t, env.db.Create(&tenant).Error)
	return tenant.ID
}

func (env *testEnv) createPlatformAdmin(t *testing.T, email, password string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := model.User{Email: email, Password: string(hash), Role: string(principal.RolePlatformAdmin)}
	require.NoError(t, env.db.Create(&user).Error)
	return &user
}

func (env *testEnv) createTenantAdmin(t *testing.T, email, password string, tenantID uint) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := model.User{
		Email:    email,
		Password: string(hash),
		Role:     string(principal.RoleTenantAdmin),
		TenantID: &tenantID,
	}
	require.NoError(t, env.db.Create(&user).Error)
	return &user
}

func (env *testEnv) createTenantUser(t *testing.T, email, password string, tenantID uint, scopes ...string) *model.TenantUser {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := model.TenantUser{Email: email, Password: string(hash), TenantID: tenantID}
	user.SetScopes(scopes)
	require.NoError(t, env.db.Create(&user).Error)
	return &user
}

func (env *testEnv) tokenFor(t *testing.T, email string, userID uint, role principal.Role, tenantID *uint, scopes []string) string {
	t.Helper()
	token, err := env.jwt.GenerateToken(email, userID, string(role), tenantID, scopes)
	require.NoError(t, err)
	return token
}

func (env *testEnv) adminToken(t *testing.T, user *model.User) string {
	t.Helper()
	return env.tokenFor(t, user.Email, user.ID, principal.Role(user.Role), user.TenantID, nil)
}

func (env *testEnv) tenantUserToken(t *testing.T, user *model.TenantUser) string {
	t.Helper()
	return env.tokenFor(t, user.Email, user.ID, principal.RoleTenantUser, &user.TenantID, user.ScopeNames())
}

func (env *testEnv) registerDevice(t *testing.T, token, uid, name string, deviceType model.DeviceType) {
	t.Helper()
	rec := env.request(t, http.MethodPost, "/devices/register", token, echo.Map{
		"device_uid": uid,
		"name":       name,
		"type":       string(deviceType),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
