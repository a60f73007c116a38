package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/testtrack/internal/model"
)

func invokePolicy(t *testing.T, p Policy, principal func(echo.Context)) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if principal != nil {
		principal(c)
	}

	handler := p.Middleware()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	return rec
}

func asAdmin(c echo.Context) {
	c.Set("user_id", uint(1))
	c.Set("user_role", "Admin")
}

func asTester(c echo.Context) {
	c.Set("user_id", uint(2))
	c.Set("user_role", "Tester")
}

func TestPublicPolicyAllowsAnonymous(t *testing.T) {
	rec := invokePolicy(t, Public(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticatedOnlyRejectsAnonymous(t *testing.T) {
	rec := invokePolicy(t, AuthenticatedOnly(), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHENTICATED")
}

func TestAuthenticatedOnlyAllowsAnyRole(t *testing.T) {
	rec := invokePolicy(t, AuthenticatedOnly(), asTester)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoleGateMatrix(t *testing.T) {
	tests := []struct {
		name      string
		policy    Policy
		principal func(echo.Context)
		wantCode  int
	}{
		{"admin passes admin gate", AdminOnly(), asAdmin, http.StatusOK},
		{"tester denied by admin gate", AdminOnly(), asTester, http.StatusForbidden},
		{"tester passes shared gate", TesterOrAdmin(), asTester, http.StatusOK},
		{"admin passes shared gate", TesterOrAdmin(), asAdmin, http.StatusOK},
		{"admin denied by super admin gate", SuperAdminOnly(), asAdmin, http.StatusForbidden},
		{"anonymous denied before role check", AdminOnly(), nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := invokePolicy(t, tt.policy, tt.principal)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestDeniedRequestHasNoSideEffectPath(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	asTester(c)

	called := false
	handler := AdminOnly().Middleware()(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))

	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestValidatePolicies(t *testing.T) {
	assert.NoError(t, ValidatePolicies(Public(), AuthenticatedOnly(), AdminOnly(), TesterOrAdmin(), SuperAdminOnly()))

	bogus := RequireAnyOf(model.RoleType("Auditor"))
	err := ValidatePolicies(AdminOnly(), bogus)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Auditor")
}
