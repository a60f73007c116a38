package handler

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/suteetoe/testtrack/internal/envelope"
	"github.com/suteetoe/testtrack/internal/model"
	"github.com/suteetoe/testtrack/internal/store"
	"github.com/suteetoe/testtrack/pkg/database"
	"github.com/suteetoe/testtrack/pkg/jwtutil"
	"github.com/suteetoe/testtrack/pkg/logger"
	"github.com/suteetoe/testtrack/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// newTenantID mints the opaque tenant identifier carried in the TenantId claim
func newTenantID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Register creates a tenant together with its first admin user in one
// transaction. The welcome email is awaited before success is reported.
func Register(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation("tenant", "register")

	var req struct {
		TenantName  string `json:"tenant_name"`
		Email       string `json:"email"`
		Password    string `json:"password"`
		FirstName   string `json:"first_name"`
		LastName    string `json:"last_name"`
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid request")
	}
	if req.TenantName == "" || req.Email == "" || req.Password == "" {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "tenant_name, email and password are required")
	}

	db := database.GetDB().WithContext(c.Request().Context())

	var count int64
	db.Model(&model.User{}).Where("email = ?", req.Email).Count(&count)
	if count > 0 {
		log.Warn("Registration with existing email", zap.String("email", req.Email))
		return envelope.Fail(c, http.StatusConflict, envelope.CodeConflict, "email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return failInternal(c, err, "failed to hash password")
	}

	tenant := model.Tenant{
		ID:          newTenantID(),
		Name:        req.TenantName,
		Description: req.Description,
		Active:      true,
	}
	user := model.User{
		TenantID:          tenant.ID,
		Email:             req.Email,
		PasswordHash:      string(hash),
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Active:            true,
		ConfirmationToken: uuid.New().String(),
	}

	tx := db.Begin()
	if tx.Error != nil {
		return failInternal(c, tx.Error, "failed to begin transaction")
	}
	if err := tx.Create(&tenant).Error; err != nil {
		tx.Rollback()
		return failInternal(c, err, "failed to create tenant")
	}
	if err := tx.Create(&user).Error; err != nil {
		tx.Rollback()
		return failInternal(c, err, "failed to create user")
	}
	role := model.Role{
		TenantID: tenant.ID,
		UserID:   user.ID,
		RoleType: model.RoleAdmin,
	}
	if err := tx.Create(&role).Error; err != nil {
		tx.Rollback()
		return failInternal(c, err, "failed to create role")
	}

	// Registration awaits delivery before reporting success
	if err := mail.Send(user.Email, "Welcome to TestTrack",
		"<p>Confirm your email with token: "+user.ConfirmationToken+"</p>",
		"Confirm your email with token: "+user.ConfirmationToken); err != nil {
		tx.Rollback()
		return failInternal(c, err, "failed to send confirmation email")
	}

	if err := tx.Commit().Error; err != nil {
		return failInternal(c, err, "failed to commit registration")
	}

	token, err := jwtutil.GenerateToken(user.Email, user.ID, tenant.ID, string(model.RoleAdmin))
	if err != nil {
		return failInternal(c, err, "failed to generate token")
	}
	prometheus.IncreaseActiveTokens()

	log.Info("Tenant registered",
		zap.String("tenant_id", tenant.ID),
		zap.String("tenant_name", tenant.Name),
		zap.Uint("admin_user_id", user.ID))

	return envelope.OK(c, http.StatusCreated, echo.Map{
		"token":  token,
		"tenant": tenant,
		"user":   user,
	})
}

// Login verifies credentials and issues a JWT carrying the TenantId and role
// claims.
func Login(c echo.Context) error {
	log := logger.FromEcho(c)

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid request")
	}
	if req.Email == "" || req.Password == "" {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "email and password are required")
	}

	db := database.GetDB().WithContext(c.Request().Context())

	var user model.User
	if err := db.Scopes(store.Live).Where("email = ?", req.Email).First(&user).Error; err != nil {
		log.Warn("Login with unknown email", zap.String("email", req.Email))
		prometheus.RecordAuthError("user_not_found")
		return envelope.Fail(c, http.StatusUnauthorized, envelope.CodeUnauthenticated, "invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Warn("Invalid password", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_password")
		return envelope.Fail(c, http.StatusUnauthorized, envelope.CodeUnauthenticated, "invalid credentials")
	}

	var role model.Role
	roleType := ""
	if err := db.Scopes(store.ForTenant(user.TenantID)).Where("user_id = ?", user.ID).First(&role).Error; err == nil {
		roleType = string(role.RoleType)
	}

	token, err := jwtutil.GenerateToken(user.Email, user.ID, user.TenantID, roleType)
	if err != nil {
		return failInternal(c, err, "failed to generate token")
	}
	prometheus.IncreaseActiveTokens()

	log.Info("User logged in",
		zap.Uint("user_id", user.ID),
		zap.String("tenant_id", user.TenantID),
		zap.String("role", roleType))

	return envelope.OK(c, http.StatusOK, echo.Map{
		"token": token,
		"user":  user,
		"role":  roleType,
	})
}

// ConfirmEmail flips the email confirmation flag for a matching token
func ConfirmEmail(c echo.Context) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "token is required")
	}

	db := database.GetDB().WithContext(c.Request().Context())

	var user model.User
	if err := db.Scopes(store.Live).Where("confirmation_token = ?", req.Token).First(&user).Error; err != nil {
		return envelope.Fail(c, http.StatusNotFound, envelope.CodeNotFound, "confirmation token not found")
	}

	result := db.Model(&user).Updates(map[string]interface{}{
		"email_confirmed":    true,
		"confirmation_token": "",
	})
	if result.Error != nil {
		return failInternal(c, result.Error, "failed to confirm email")
	}

	return envelope.OK(c, http.StatusOK, echo.Map{"confirmed": true})
}

// Me returns the authenticated user and its role within the tenant
func Me(c echo.Context) error {
	db, tenantID, userID := tenantDB(c)

	var user model.User
	if err := db.Scopes(store.ForTenant(tenantID)).First(&user, userID).Error; err != nil {
		return failLookup(c, err, "user")
	}

	roleType := ""
	var role model.Role
	if err := db.Scopes(store.ForTenant(tenantID)).Where("user_id = ?", userID).First(&role).Error; err == nil {
		roleType = string(role.RoleType)
	}

	return envelope.OK(c, http.StatusOK, echo.Map{"user": user, "role": roleType})
}
