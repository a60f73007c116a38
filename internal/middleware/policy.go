package middleware

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/testtrack/internal/envelope"
	"github.com/suteetoe/testtrack/internal/model"
	"github.com/suteetoe/testtrack/pkg/logger"
	"github.com/suteetoe/testtrack/prometheus"
	"go.uber.org/zap"
)

type policyKind int

const (
	policyPublic policyKind = iota
	policyAuthenticated
	policyRequireAnyOf
)

// Policy maps an operation to the principals allowed to run it. The gate runs
// strictly before the handler body: a denial produces no side effects.
type Policy struct {
	kind  policyKind
	roles []model.RoleType
}

// Public allows unauthenticated access
func Public() Policy { return Policy{kind: policyPublic} }

// AuthenticatedOnly requires any valid token
func AuthenticatedOnly() Policy { return Policy{kind: policyAuthenticated} }

// RequireAnyOf requires the principal's role claim to be one of roles
func RequireAnyOf(roles ...model.RoleType) Policy {
	return Policy{kind: policyRequireAnyOf, roles: roles}
}

// AdminOnly gates tenant administration endpoints
func AdminOnly() Policy { return RequireAnyOf(model.RoleAdmin) }

// TesterOrAdmin gates day-to-day test management endpoints
func TesterOrAdmin() Policy { return RequireAnyOf(model.RoleTester, model.RoleAdmin) }

// SuperAdminOnly gates the global permission registry
func SuperAdminOnly() Policy { return RequireAnyOf(model.RoleSuperAdmin) }

// Validate rejects a policy referencing a role the role model cannot
// represent. Called for the whole route table at startup so a misconfigured
// gate fails fast instead of shipping unreachable endpoints.
func (p Policy) Validate() error {
	for _, r := range p.roles {
		if !model.KnownRoleTypes[r] {
			return fmt.Errorf("policy references unrepresentable role %q", r)
		}
	}
	return nil
}

// ValidatePolicies validates a route table's policies
func ValidatePolicies(policies ...Policy) error {
	for _, p := range policies {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Middleware evaluates the policy against the resolved principal
func (p Policy) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if p.kind == policyPublic {
				return next(c)
			}

			userID, ok := UserID(c)
			if !ok {
				return envelope.Fail(c, http.StatusUnauthorized, envelope.CodeUnauthenticated, "authentication required")
			}
			if p.kind == policyAuthenticated {
				return next(c)
			}

			role := UserRole(c)
			for _, allowed := range p.roles {
				if role == string(allowed) {
					return next(c)
				}
			}

			logger.FromEcho(c).Warn("Access denied by role policy",
				zap.Uint("user_id", userID),
				zap.String("role", role))
			prometheus.RecordAuthError("policy_denied")
			return envelope.Fail(c, http.StatusForbidden, envelope.CodeForbidden, "insufficient permissions")
		}
	}
}
