package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/suteetoe/testtrack/internal/envelope"
	"github.com/suteetoe/testtrack/internal/model"
	"github.com/suteetoe/testtrack/internal/store"
	"github.com/suteetoe/testtrack/pkg/logger"
	"github.com/suteetoe/testtrack/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ListUsers pages the tenant's live users
func ListUsers(c echo.Context) error {
	prometheus.RecordEntityOperation("user", "list")
	db, tenantID, _ := tenantDB(c)
	page, limit := pageParams(c)

	base := db.Model(&model.User{}).Scopes(store.ForTenant(tenantID)).Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return failInternal(c, err, "failed to count users")
	}

	var users []model.User
	if err := base.Order("email ASC").Scopes(store.Paginate(page, limit)).Find(&users).Error; err != nil {
		return failInternal(c, err, "failed to list users")
	}

	return envelope.OKPaged(c, users, page, limit, total)
}

// InviteUser creates a user in the caller's tenant, assigns a role and emails
// an invitation. The whole flow is one transaction; delivery is awaited.
func InviteUser(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation("user", "invite")
	db, tenantID, userID := tenantDB(c)

	var req struct {
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Role      string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid request")
	}
	if req.Email == "" || req.Role == "" {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "email and role are required")
	}
	roleType := model.RoleType(req.Role)
	if !model.AssignableRoleTypes[roleType] {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "role must be Admin or Tester")
	}

	var count int64
	db.Model(&model.User{}).Where("email = ?", req.Email).Count(&count)
	if count > 0 {
		return envelope.Fail(c, http.StatusConflict, envelope.CodeConflict, "email already registered")
	}

	// Invited users set their password through the emailed token
	placeholder, err := bcrypt.GenerateFromPassword([]byte(uuid.New().String()), bcrypt.DefaultCost)
	if err != nil {
		return failInternal(c, err, "failed to hash placeholder password")
	}

	user := model.User{
		TenantID:          tenantID,
		Email:             req.Email,
		PasswordHash:      string(placeholder),
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Active:            true,
		ConfirmationToken: uuid.New().String(),
	}
	user.CreatedBy = &userID

	tx := db.Begin()
	if tx.Error != nil {
		return failInternal(c, tx.Error, "failed to begin transaction")
	}
	if err := tx.Create(&user).Error; err != nil {
		tx.Rollback()
		return failInternal(c, err, "failed to create user")
	}
	role := model.Role{
		TenantID: tenantID,
		UserID:   user.ID,
		RoleType: roleType,
	}
	role.CreatedBy = &userID
	if err := tx.Create(&role).Error; err != nil {
		tx.Rollback()
		return failInternal(c, err, "failed to create role")
	}

	if err := mail.Send(user.Email, "You have been invited to TestTrack",
		"<p>Accept your invitation with token: "+user.ConfirmationToken+"</p>",
		"Accept your invitation with token: "+user.ConfirmationToken); err != nil {
		tx.Rollback()
		return failInternal(c, err, "failed to send invitation email")
	}

	if err := tx.Commit().Error; err != nil {
		return failInternal(c, err, "failed to commit invitation")
	}

	log.Info("User invited",
		zap.String("email", user.Email),
		zap.String("tenant_id", tenantID),
		zap.String("role", req.Role))

	return envelope.OK(c, http.StatusCreated, echo.Map{"user": user, "role": role})
}

// AssignRole sets a user's role within the tenant, replacing any live role
func AssignRole(c echo.Context) error {
	prometheus.RecordEntityOperation("role", "assign")
	db, tenantID, actorID := tenantDB(c)

	targetID, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid user ID")
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&req); err != nil || req.Role == "" {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "role is required")
	}
	roleType := model.RoleType(req.Role)
	if !model.AssignableRoleTypes[roleType] {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "role must be Admin or Tester")
	}

	var user model.User
	if err := db.Scopes(store.ForTenant(tenantID)).First(&user, targetID).Error; err != nil {
		return failLookup(c, err, "user")
	}

	var role model.Role
	err = db.Scopes(store.ForTenant(tenantID)).Where("user_id = ?", targetID).First(&role).Error
	if err == nil {
		role.RoleType = roleType
		role.Touch(&actorID)
		if err := db.Save(&role).Error; err != nil {
			return failInternal(c, err, "failed to update role")
		}
		return envelope.OK(c, http.StatusOK, role)
	}

	role = model.Role{TenantID: tenantID, UserID: targetID, RoleType: roleType}
	role.CreatedBy = &actorID
	if err := db.Create(&role).Error; err != nil {
		return failInternal(c, err, "failed to create role")
	}
	return envelope.OK(c, http.StatusCreated, role)
}
