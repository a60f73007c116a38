package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/testtrack/internal/envelope"
	"github.com/suteetoe/testtrack/internal/model"
	"github.com/suteetoe/testtrack/internal/store"
	"github.com/suteetoe/testtrack/pkg/logger"
	"github.com/suteetoe/testtrack/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreatePermission registers a capability name. Permissions are global, not
// tenant rows; names are unique among live permissions.
func CreatePermission(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation("permission", "create")
	db, _, userID := tenantDB(c)

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid request")
	}
	if req.Name == "" {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "name is required")
	}

	var existing int64
	if err := db.Model(&model.Permission{}).Scopes(store.Live).
		Where("name = ?", req.Name).Count(&existing).Error; err != nil {
		return failInternal(c, err, "failed to check permission name")
	}
	if existing > 0 {
		return envelope.Fail(c, http.StatusConflict, envelope.CodeConflict, "a permission with this name already exists")
	}

	permission := model.Permission{
		Name:        req.Name,
		Description: req.Description,
	}
	permission.CreatedBy = &userID

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := db.Create(&permission).Error; err != nil {
		return failInternal(c, err, "failed to create permission")
	}

	log.Info("Permission created", zap.Uint("id", permission.ID), zap.String("name", req.Name))
	return envelope.OK(c, http.StatusCreated, permission)
}

// ListPermissions pages the global permission catalog
func ListPermissions(c echo.Context) error {
	prometheus.RecordEntityOperation("permission", "list")
	db, _, _ := tenantDB(c)
	page, limit := pageParams(c)

	base := db.Model(&model.Permission{}).Scopes(store.Live).Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return failInternal(c, err, "failed to count permissions")
	}

	var permissions []model.Permission
	if err := base.Order("name ASC").Scopes(store.Paginate(page, limit)).Find(&permissions).Error; err != nil {
		return failInternal(c, err, "failed to list permissions")
	}
	return envelope.OKPaged(c, permissions, page, limit, total)
}

// UpdatePermission applies partial updates; a renamed permission keeps name
// uniqueness among live rows.
func UpdatePermission(c echo.Context) error {
	prometheus.RecordEntityOperation("permission", "update")
	db, _, userID := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid permission ID")
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid request")
	}

	var permission model.Permission
	if err := db.Scopes(store.Live).First(&permission, id).Error; err != nil {
		return failLookup(c, err, "permission")
	}

	if req.Name != nil && *req.Name != permission.Name {
		var existing int64
		if err := db.Model(&model.Permission{}).Scopes(store.Live).
			Where("name = ? AND id <> ?", *req.Name, id).Count(&existing).Error; err != nil {
			return failInternal(c, err, "failed to check permission name")
		}
		if existing > 0 {
			return envelope.Fail(c, http.StatusConflict, envelope.CodeConflict, "a permission with this name already exists")
		}
		permission.Name = *req.Name
	}
	if req.Description != nil {
		permission.Description = *req.Description
	}
	permission.Touch(&userID)

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := db.Save(&permission).Error; err != nil {
		return failInternal(c, err, "failed to update permission")
	}
	return envelope.OK(c, http.StatusOK, permission)
}

// DeletePermission soft-deletes a permission; its role links are unlinked in
// the same transaction.
func DeletePermission(c echo.Context) error {
	prometheus.RecordEntityOperation("permission", "delete")
	db, _, userID := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid permission ID")
	}

	var permission model.Permission
	if err := db.Scopes(store.Live).First(&permission, id).Error; err != nil {
		return failLookup(c, err, "permission")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := store.SoftDelete(tx, &model.Permission{}, id, &userID); err != nil {
			return err
		}
		return tx.Model(&model.RolePermission{}).
			Where("permission_id = ? AND is_deleted = ?", id, false).
			Updates(map[string]interface{}{
				"is_deleted":  true,
				"modified_at": time.Now(),
				"modified_by": &userID,
			}).Error
	})
	if err != nil {
		return failInternal(c, err, "failed to delete permission")
	}
	return envelope.OK(c, http.StatusOK, echo.Map{"deleted": true})
}

// LinkRolePermission grants a permission to a role. The role must be live in
// the caller's tenant; permissions are global so only the role side is
// tenant-checked.
func LinkRolePermission(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation("role_permission", "link")
	db, tenantID, userID := tenantDB(c)

	roleID, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid role ID")
	}
	permissionID, err := paramID(c, "pID")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid permission ID")
	}

	var role model.Role
	if err := db.Scopes(store.ForTenant(tenantID)).First(&role, roleID).Error; err != nil {
		return failLookup(c, err, "role")
	}
	var permission model.Permission
	if err := db.Scopes(store.Live).First(&permission, permissionID).Error; err != nil {
		return failLookup(c, err, "permission")
	}

	var existing int64
	if err := db.Model(&model.RolePermission{}).Scopes(store.Live).
		Where("role_id = ? AND permission_id = ?", roleID, permissionID).
		Count(&existing).Error; err != nil {
		return failInternal(c, err, "failed to check existing link")
	}
	if existing > 0 {
		return envelope.Fail(c, http.StatusConflict, envelope.CodeConflict, "role already holds this permission")
	}

	link := model.RolePermission{
		RoleID:       roleID,
		PermissionID: permissionID,
	}
	link.CreatedBy = &userID

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := db.Create(&link).Error; err != nil {
		return failInternal(c, err, "failed to link permission")
	}

	log.Info("Permission linked to role",
		zap.Uint("role_id", roleID),
		zap.Uint("permission_id", permissionID))
	return envelope.OK(c, http.StatusCreated, link)
}

// UnlinkRolePermission revokes a permission from a role by soft-deleting the
// live link row.
func UnlinkRolePermission(c echo.Context) error {
	prometheus.RecordEntityOperation("role_permission", "unlink")
	db, tenantID, userID := tenantDB(c)

	roleID, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid role ID")
	}
	permissionID, err := paramID(c, "pID")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid permission ID")
	}

	var role model.Role
	if err := db.Scopes(store.ForTenant(tenantID)).First(&role, roleID).Error; err != nil {
		return failLookup(c, err, "role")
	}

	var link model.RolePermission
	err = db.Scopes(store.Live).
		Where("role_id = ? AND permission_id = ?", roleID, permissionID).
		First(&link).Error
	if err != nil {
		return failLookup(c, err, "role permission link")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := store.SoftDelete(db, &model.RolePermission{}, link.ID, &userID); err != nil {
		return failInternal(c, err, "failed to unlink permission")
	}
	return envelope.OK(c, http.StatusOK, echo.Map{"deleted": true})
}
