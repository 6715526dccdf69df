package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/tamilselvan8428/person-tracking/internal/principal"
	"github.com/tamilselvan8428/person-tracking/pkg/jwtutil"
	"github.com/tamilselvan8428/person-tracking/pkg/logger"
	"github.com/tamilselvan8428/person-tracking/prometheus"
	"go.uber.org/zap"
)

const principalKey = "principal"

// JWTAuthMiddleware validates the bearer token and stores the resulting
// Principal in the request context. Every tenant/role/scope decision
// downstream starts from this Principal; requests without a verifiable
// credential never reach a handler.
func JWTAuthMiddleware(jwtUtil *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			// Extract the token from the Authorization header
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Warn("Missing authorization header")
				prometheus.RecordAuthError("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization header"})
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				log.Warn("Invalid authorization header format")
				prometheus.RecordAuthError("invalid_auth_format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization header format"})
			}

			claims, err := jwtUtil.ValidateToken(parts[1])
			if err != nil {
				log.Warn("Invalid or expired token", zap.Error(err))
				prometheus.RecordAuthError("invalid_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			role, err := principal.ParseRole(claims.Role)
			if err != nil {
				log.Warn("Token carries unknown role", zap.String("role", claims.Role))
				prometheus.RecordAuthError("invalid_role")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			p := &principal.Principal{
				UserID:   claims.UserID,
				Email:    claims.Email,
				Role:     role,
				TenantID: claims.TenantID,
			}
			if role == principal.RoleTenantUser {
				scopes, err := principal.ParseScopes(claims.Scopes)
				if err != nil {
					log.Warn("Token carries invalid scopes", zap.Strings("scopes", claims.Scopes))
					prometheus.RecordAuthError("invalid_scopes")
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
				}
				p.Scopes = scopes
			}

			c.Set(principalKey, p)
			log.Debug("Request authenticated",
				zap.Uint("user_id", p.UserID),
				zap.String("role", string(p.Role)))

			return next(c)
		}
	}
}

// RequireRole accepts the request iff the principal's role is in the set.
func RequireRole(roles ...principal.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := GetPrincipal(c)
			if p == nil {
				prometheus.RecordAuthError("missing_principal")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			if !p.HasRole(roles...) {
				logger.FromEcho(c).Warn("Role check failed",
					zap.String("role", string(p.Role)),
					zap.String("path", c.Path()))
				prometheus.RecordAuthError("missing_role")
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// RequireScope accepts the request iff the principal may exercise the scope.
// Admin-tier roles always pass; tenant users need the grant.
func RequireScope(scope principal.Scope) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := GetPrincipal(c)
			if p == nil {
				prometheus.RecordAuthError("missing_principal")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			if !p.Allows(scope) {
				logger.FromEcho(c).Warn("Scope check failed",
					zap.String("role", string(p.Role)),
					zap.String("scope", string(scope)),
					zap.String("path", c.Path()))
				prometheus.RecordAuthError("missing_scope")
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden: missing scope"})
			}
			return next(c)
		}
	}
}

// GetPrincipal returns the authenticated principal stored by
// JWTAuthMiddleware, or nil when the request is unauthenticated.
func GetPrincipal(c echo.Context) *principal.Principal {
	p, ok := c.Get(principalKey).(*principal.Principal)
	if !ok {
		return nil
	}
	return p
}
