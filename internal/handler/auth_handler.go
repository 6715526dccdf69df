package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tamilselvan8428/person-tracking/internal/apperr"
	"github.com/tamilselvan8428/person-tracking/internal/middleware"
	"github.com/tamilselvan8428/person-tracking/internal/model"
	"github.com/tamilselvan8428/person-tracking/internal/principal"
	"github.com/tamilselvan8428/person-tracking/pkg/jwtutil"
	"github.com/tamilselvan8428/person-tracking/pkg/logger"
	"github.com/tamilselvan8428/person-tracking/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthHandler serves login and principal provisioning.
type AuthHandler struct {
	db  *gorm.DB
	jwt *jwtutil.JWTUtil
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(db *gorm.DB, jwt *jwtutil.JWTUtil) *AuthHandler {
	return &AuthHandler{db: db, jwt: jwt}
}

// Login authenticates a principal and issues a session token. The admin
// namespace is checked before tenant users: email uniqueness is enforced per
// namespace, so a collision across the two resolves to the admin.
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Email == "" || req.Password == "" {
		prometheus.RecordAuthError("incomplete_login")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	// Admin namespace first
	var user model.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err == nil {
		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) == nil {
			token, err := h.jwt.GenerateToken(user.Email, user.ID, user.Role, user.TenantID, nil)
			if err != nil {
				log.Error("Failed to generate token", zap.Error(err))
				prometheus.RecordAuthError("token_generation_failed")
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
			}
			prometheus.IncreaseActiveTokens()
			log.Info("Admin logged in",
				zap.String("email", user.Email),
				zap.String("role", user.Role))
			return c.JSON(http.StatusOK, echo.Map{
				"token": token,
				"user": echo.Map{
					"id":        user.ID,
					"email":     user.Email,
					"role":      user.Role,
					"tenant_id": user.TenantID,
				},
			})
		}
	}

	// Then the tenant-user namespace
	var tenantUser model.TenantUser
	if err := h.db.Where("email = ?", req.Email).First(&tenantUser).Error; err == nil {
		if bcrypt.CompareHashAndPassword([]byte(tenantUser.Password), []byte(req.Password)) == nil {
			token, err := h.jwt.GenerateToken(tenantUser.Email, tenantUser.ID,
				string(principal.RoleTenantUser), &tenantUser.TenantID, tenantUser.ScopeNames())
			if err != nil {
				log.Error("Failed to generate token", zap.Error(err))
				prometheus.RecordAuthError("token_generation_failed")
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
			}
			prometheus.IncreaseActiveTokens()
			log.Info("Tenant user logged in",
				zap.String("email", tenantUser.Email),
				zap.Uint("tenant_id", tenantUser.TenantID))
			return c.JSON(http.StatusOK, echo.Map{
				"token": token,
				"user": echo.Map{
					"id":        tenantUser.ID,
					"email":     tenantUser.Email,
					"role":      string(principal.RoleTenantUser),
					"tenant_id": tenantUser.TenantID,
					"scopes":    tenantUser.ScopeNames(),
				},
			})
		}
	}

	log.Warn("Login failed", zap.String("email", req.Email))
	prometheus.RecordAuthError("login_failure")
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
}

// CreateTenantAdmin provisions a tenant admin, creating the named tenant in
// the same transaction when it does not exist yet. Platform admins only.
func (h *AuthHandler) CreateTenantAdmin(c echo.Context) error {
	log := logger.FromEcho(c)

	var req struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		TenantName string `json:"tenant_name"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse tenant admin request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Email == "" || req.Password == "" || req.TenantName == "" {
		prometheus.RecordAuthError("incomplete_tenant_admin")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email, password and tenant_name are required"})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "provisioning failed"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	var user model.User
	var tenant model.Tenant
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("name = ?", req.TenantName).First(&tenant).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			tenant = model.Tenant{Name: req.TenantName}
			if err := tx.Create(&tenant).Error; err != nil {
				return err
			}
		}

		var existing model.User
		if err := tx.Where("email = ?", req.Email).First(&existing).Error; err == nil {
			return apperr.ErrConflict
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		user = model.User{
			Email:    req.Email,
			Password: string(hashedPassword),
			Role:     string(principal.RoleTenantAdmin),
			TenantID: &tenant.ID,
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.ErrConflict
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			prometheus.RecordAuthError("email_already_exists")
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		log.Error("Failed to provision tenant admin", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "provisioning failed"})
	}

	log.Info("Tenant admin created",
		zap.String("email", user.Email),
		zap.Uint("tenant_id", tenant.ID),
		zap.String("tenant_name", tenant.Name))
	return c.JSON(http.StatusCreated, echo.Map{
		"user_id":   user.ID,
		"tenant_id": tenant.ID,
	})
}

// CreateTenantUser provisions a tenant-scoped user with a scope set inside
// the caller's own tenant. Tenant admins only.
func (h *AuthHandler) CreateTenantUser(c echo.Context) error {
	log := logger.FromEcho(c)

	p := middleware.GetPrincipal(c)
	if p == nil || p.TenantID == nil {
		prometheus.RecordAuthError("missing_principal")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		Email    string   `json:"email"`
		Password string   `json:"password"`
		Scopes   []string `json:"scopes"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse tenant user request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Email == "" || req.Password == "" {
		prometheus.RecordAuthError("incomplete_tenant_user")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	scopes, err := principal.ParseScopes(req.Scopes)
	if err != nil {
		prometheus.RecordAuthError("invalid_scopes")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing or unknown scopes"})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "provisioning failed"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	var existing model.TenantUser
	if err := h.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		prometheus.RecordAuthError("email_already_exists")
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	}

	tenantUser := model.TenantUser{
		TenantID: *p.TenantID,
		Email:    req.Email,
		Password: string(hashedPassword),
	}
	tenantUser.SetScopes(principal.Strings(scopes))

	if err := h.db.Create(&tenantUser).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			prometheus.RecordAuthError("email_already_exists")
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		log.Error("Failed to create tenant user", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "provisioning failed"})
	}

	log.Info("Tenant user created",
		zap.String("email", tenantUser.Email),
		zap.Uint("tenant_id", tenantUser.TenantID),
		zap.String("scopes", tenantUser.Scopes))
	return c.JSON(http.StatusCreated, echo.Map{
		"user_id": tenantUser.ID,
		"scopes":  tenantUser.ScopeNames(),
	})
}
