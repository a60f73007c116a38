package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/testtrack/internal/envelope"
	"github.com/suteetoe/testtrack/internal/model"
	"github.com/suteetoe/testtrack/internal/store"
	"github.com/suteetoe/testtrack/prometheus"
)

// CreateTestFolder creates a flat grouping folder under a project
func CreateTestFolder(c echo.Context) error {
	prometheus.RecordEntityOperation("test_folder", "create")
	db, tenantID, userID := tenantDB(c)

	var req struct {
		ProjectID uint   `json:"project_id"`
		Name      string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid request")
	}
	if req.Name == "" || req.ProjectID == 0 {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "name and project_id are required")
	}

	var project model.Project
	if err := db.Scopes(store.ForTenant(tenantID)).First(&project, req.ProjectID).Error; err != nil {
		return failLookup(c, err, "project")
	}

	folder := model.TestFolder{
		TenantID:  tenantID,
		ProjectID: req.ProjectID,
		Name:      req.Name,
	}
	folder.CreatedBy = &userID
	if err := db.Create(&folder).Error; err != nil {
		return failInternal(c, err, "failed to create test folder")
	}
	return envelope.OK(c, http.StatusCreated, folder)
}

// ListTestFolders lists a project's folders
func ListTestFolders(c echo.Context) error {
	prometheus.RecordEntityOperation("test_folder", "list")
	db, tenantID, _ := tenantDB(c)

	projectID, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid project ID")
	}

	var folders []model.TestFolder
	if err := db.Scopes(store.ForTenant(tenantID)).
		Where("project_id = ?", projectID).Order("name ASC").
		Find(&folders).Error; err != nil {
		return failInternal(c, err, "failed to list test folders")
	}
	return envelope.OK(c, http.StatusOK, folders)
}

// UpdateTestFolder renames a folder
func UpdateTestFolder(c echo.Context) error {
	prometheus.RecordEntityOperation("test_folder", "update")
	db, tenantID, userID := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid test folder ID")
	}

	var req struct {
		Name *string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid request")
	}

	var folder model.TestFolder
	if err := db.Scopes(store.ForTenant(tenantID)).First(&folder, id).Error; err != nil {
		return failLookup(c, err, "test folder")
	}

	if req.Name != nil {
		folder.Name = *req.Name
	}
	folder.Touch(&userID)
	if err := db.Save(&folder).Error; err != nil {
		return failInternal(c, err, "failed to update test folder")
	}
	return envelope.OK(c, http.StatusOK, folder)
}

// DeleteTestFolder soft-deletes a folder; its test cases keep their folder id
// but the folder no longer resolves.
func DeleteTestFolder(c echo.Context) error {
	prometheus.RecordEntityOperation("test_folder", "delete")
	db, tenantID, userID := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid test folder ID")
	}

	var folder model.TestFolder
	if err := db.Scopes(store.ForTenant(tenantID)).First(&folder, id).Error; err != nil {
		return failLookup(c, err, "test folder")
	}

	if err := store.SoftDelete(db, &model.TestFolder{}, id, &userID); err != nil {
		return failInternal(c, err, "failed to delete test folder")
	}
	return envelope.OK(c, http.StatusOK, echo.Map{"deleted": true})
}
