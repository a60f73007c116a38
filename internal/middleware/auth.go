package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/testtrack/internal/envelope"
	"github.com/suteetoe/testtrack/pkg/jwtutil"
	"github.com/suteetoe/testtrack/pkg/logger"
	"github.com/suteetoe/testtrack/prometheus"
	"go.uber.org/zap"
)

// AuthMiddleware validates the JWT bearer token and stores the resolved
// principal in the echo context.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromEcho(c)

		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Warn("Missing Authorization header")
			prometheus.RecordAuthError("missing_header")
			return envelope.Fail(c, http.StatusUnauthorized, envelope.CodeUnauthenticated, "missing authorization token")
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Warn("Invalid Authorization header format")
			prometheus.RecordAuthError("invalid_header")
			return envelope.Fail(c, http.StatusUnauthorized, envelope.CodeUnauthenticated, "invalid authorization format, expected Bearer token")
		}

		claims, err := jwtutil.ValidateToken(parts[1])
		if err != nil {
			log.Warn("Invalid or expired token", zap.Error(err))
			prometheus.RecordAuthError("invalid_token")
			return envelope.Fail(c, http.StatusUnauthorized, envelope.CodeUnauthenticated, "invalid or expired token")
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("tenant_id", claims.TenantID)
		c.Set("user_role", claims.Role)

		log.Debug("JWT token validated",
			zap.Uint("user_id", claims.UserID),
			zap.String("tenant_id", claims.TenantID))

		return next(c)
	}
}

// RequireTenantContext rejects requests whose token carries no TenantId
// claim. This is the single place that check lives; handlers receive the
// tenant only through TenantID.
func RequireTenantContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenantID, ok := c.Get("tenant_id").(string)
		if !ok || tenantID == "" {
			logger.FromEcho(c).Warn("JWT token does not contain TenantId")
			prometheus.RecordTenantContextMissing()
			return envelope.Fail(c, http.StatusUnauthorized, envelope.CodeUnauthenticated, "TenantId claim is required")
		}
		return next(c)
	}
}

// TenantID retrieves the resolved tenant from the context
func TenantID(c echo.Context) (string, bool) {
	tenantID, ok := c.Get("tenant_id").(string)
	return tenantID, ok && tenantID != ""
}

// UserID retrieves the authenticated user id from the context
func UserID(c echo.Context) (uint, bool) {
	userID, ok := c.Get("user_id").(uint)
	return userID, ok
}

// UserRole retrieves the role claim from the context
func UserRole(c echo.Context) string {
	role, _ := c.Get("user_role").(string)
	return role
}
