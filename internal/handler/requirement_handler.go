package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/testtrack/internal/envelope"
	"github.com/suteetoe/testtrack/internal/hierarchy"
	"github.com/suteetoe/testtrack/internal/model"
	"github.com/suteetoe/testtrack/internal/store"
	"github.com/suteetoe/testtrack/pkg/logger"
	"github.com/suteetoe/testtrack/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var requirementFilterFields = map[string]string{"title": "title"}

// CreateRequirement creates a requirement under a project, optionally as a
// child of an existing requirement in the same project.
func CreateRequirement(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation("requirement", "create")
	db, tenantID, userID := tenantDB(c)

	var req struct {
		ProjectID           uint   `json:"project_id"`
		ParentRequirementID *uint  `json:"parent_requirement_id"`
		Title               string `json:"title"`
		Description         string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid request")
	}
	if req.Title == "" || req.ProjectID == 0 {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "title and project_id are required")
	}

	var project model.Project
	if err := db.Scopes(store.ForTenant(tenantID)).First(&project, req.ProjectID).Error; err != nil {
		return failLookup(c, err, "project")
	}
	if req.ParentRequirementID != nil {
		var parent model.Requirement
		if err := db.Scopes(store.ForTenant(tenantID)).
			Where("project_id = ?", req.ProjectID).
			First(&parent, *req.ParentRequirementID).Error; err != nil {
			return failLookup(c, err, "parent requirement")
		}
	}

	requirement := model.Requirement{
		TenantID:            tenantID,
		ProjectID:           req.ProjectID,
		ParentRequirementID: req.ParentRequirementID,
		Title:               req.Title,
		Description:         req.Description,
	}
	requirement.CreatedBy = &userID

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := db.Create(&requirement).Error; err != nil {
		return failInternal(c, err, "failed to create requirement")
	}

	log.Info("Requirement created",
		zap.Uint("id", requirement.ID),
		zap.Uint("project_id", req.ProjectID),
		zap.String("tenant_id", tenantID))
	return envelope.OK(c, http.StatusCreated, requirement)
}

// GetRequirement retrieves one requirement within the tenant
func GetRequirement(c echo.Context) error {
	prometheus.RecordEntityOperation("requirement", "get")
	db, tenantID, _ := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid requirement ID")
	}

	var requirement model.Requirement
	if err := db.Scopes(store.ForTenant(tenantID)).First(&requirement, id).Error; err != nil {
		return failLookup(c, err, "requirement")
	}
	return envelope.OK(c, http.StatusOK, requirement)
}

// ListRequirements pages a project's requirements through the filter language
func ListRequirements(c echo.Context) error {
	prometheus.RecordEntityOperation("requirement", "list")
	db, tenantID, _ := tenantDB(c)
	page, limit := pageParams(c)

	projectID, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid project ID")
	}

	query := store.ParseFilter(c.QueryParam("filter"), "title", requirementFilterFields)
	base := query.Apply(db.Model(&model.Requirement{}).
		Scopes(store.ForTenant(tenantID)).
		Where("project_id = ?", projectID)).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return failInternal(c, err, "failed to count requirements")
	}

	var requirements []model.Requirement
	if err := base.Scopes(store.Paginate(page, limit)).Find(&requirements).Error; err != nil {
		return failInternal(c, err, "failed to list requirements")
	}
	return envelope.OKPaged(c, requirements, page, limit, total)
}

// GetRequirementTree returns the requirement forest for a project
func GetRequirementTree(c echo.Context) error {
	prometheus.RecordEntityOperation("requirement", "tree")
	db, tenantID, _ := tenantDB(c)

	projectID, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid project ID")
	}

	var requirements []model.Requirement
	if err := db.Scopes(store.ForTenant(tenantID)).
		Where("project_id = ?", projectID).Order("id ASC").
		Find(&requirements).Error; err != nil {
		return failInternal(c, err, "failed to load requirements")
	}

	forest, err := hierarchy.Forest(requirements,
		func(r model.Requirement) uint { return r.ID },
		func(r model.Requirement) *uint { return r.ParentRequirementID })
	if err != nil {
		return failInternal(c, err, "failed to build requirement hierarchy")
	}
	return envelope.OK(c, http.StatusOK, toRequirementNodes(forest))
}

// UpdateRequirement applies partial updates. Re-parenting is guarded so a
// requirement can never become its own ancestor.
func UpdateRequirement(c echo.Context) error {
	prometheus.RecordEntityOperation("requirement", "update")
	db, tenantID, userID := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid requirement ID")
	}

	var req struct {
		Title               *string `json:"title"`
		Description         *string `json:"description"`
		ParentRequirementID *uint   `json:"parent_requirement_id"`
	}
	if err := c.Bind(&req); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid request")
	}

	var requirement model.Requirement
	if err := db.Scopes(store.ForTenant(tenantID)).First(&requirement, id).Error; err != nil {
		return failLookup(c, err, "requirement")
	}

	if req.Title != nil {
		requirement.Title = *req.Title
	}
	if req.Description != nil {
		requirement.Description = *req.Description
	}
	if req.ParentRequirementID != nil {
		newParent := *req.ParentRequirementID
		var parent model.Requirement
		if err := db.Scopes(store.ForTenant(tenantID)).
			Where("project_id = ?", requirement.ProjectID).
			First(&parent, newParent).Error; err != nil {
			return failLookup(c, err, "parent requirement")
		}
		inSubtree, err := store.IsDescendant(db, &model.Requirement{}, "parent_requirement_id", tenantID, id, newParent)
		if err != nil {
			return failInternal(c, err, "failed to check requirement ancestry")
		}
		if inSubtree {
			return envelope.Fail(c, http.StatusConflict, envelope.CodeConflict, "requirement cannot become its own ancestor")
		}
		requirement.ParentRequirementID = req.ParentRequirementID
	}
	requirement.Touch(&userID)

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := db.Save(&requirement).Error; err != nil {
		return failInternal(c, err, "failed to update requirement")
	}
	return envelope.OK(c, http.StatusOK, requirement)
}

// DeleteRequirement soft-deletes the requirement and its whole subtree.
// Image cleanup runs after the commit and never blocks the delete.
func DeleteRequirement(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation("requirement", "delete")
	db, tenantID, userID := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid requirement ID")
	}

	var requirement model.Requirement
	if err := db.Scopes(store.ForTenant(tenantID)).First(&requirement, id).Error; err != nil {
		return failLookup(c, err, "requirement")
	}

	var deleted []uint
	err = db.Transaction(func(tx *gorm.DB) error {
		ids, err := store.SoftDeleteRequirementTree(tx, tenantID, id, &userID)
		deleted = ids
		return err
	})
	if err != nil {
		return failInternal(c, err, "failed to delete requirement")
	}

	for _, rid := range deleted {
		if err := images.DeleteAllForEntity(tenantID, fmt.Sprint(requirement.ProjectID), "Requirement", rid, "Description"); err != nil {
			log.Warn("Failed to remove requirement images",
				zap.Uint("requirement_id", rid), zap.Error(err))
		}
	}

	log.Info("Requirement deleted",
		zap.Uint("id", id),
		zap.Int("cascaded", len(deleted)),
		zap.String("tenant_id", tenantID))
	return envelope.OK(c, http.StatusOK, echo.Map{"deleted": true, "ids": deleted})
}

// LinkRequirementTestCase creates the requirement↔test-case association
func LinkRequirementTestCase(c echo.Context) error {
	prometheus.RecordEntityOperation("requirement_test_case", "link")
	db, tenantID, userID := tenantDB(c)

	reqID, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid requirement ID")
	}
	tcID, err := paramID(c, "tcID")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid test case ID")
	}

	var requirement model.Requirement
	if err := db.Scopes(store.ForTenant(tenantID)).First(&requirement, reqID).Error; err != nil {
		return failLookup(c, err, "requirement")
	}
	var testCase model.TestCase
	if err := db.Scopes(store.ForTenant(tenantID)).First(&testCase, tcID).Error; err != nil {
		return failLookup(c, err, "test case")
	}

	var count int64
	db.Model(&model.RequirementTestCase{}).
		Scopes(store.ForTenant(tenantID)).
		Where("requirement_id = ? AND test_case_id = ?", reqID, tcID).
		Count(&count)
	if count > 0 {
		return envelope.Fail(c, http.StatusConflict, envelope.CodeConflict, "requirement and test case are already linked")
	}

	link := model.RequirementTestCase{
		TenantID:      tenantID,
		RequirementID: reqID,
		TestCaseID:    tcID,
	}
	link.CreatedBy = &userID
	if err := db.Create(&link).Error; err != nil {
		return failInternal(c, err, "failed to create link")
	}
	return envelope.OK(c, http.StatusCreated, link)
}

// UnlinkRequirementTestCase soft-deletes the association
func UnlinkRequirementTestCase(c echo.Context) error {
	prometheus.RecordEntityOperation("requirement_test_case", "unlink")
	db, tenantID, userID := tenantDB(c)

	reqID, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid requirement ID")
	}
	tcID, err := paramID(c, "tcID")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid test case ID")
	}

	var link model.RequirementTestCase
	if err := db.Scopes(store.ForTenant(tenantID)).
		Where("requirement_id = ? AND test_case_id = ?", reqID, tcID).
		First(&link).Error; err != nil {
		return failLookup(c, err, "link")
	}

	if err := store.SoftDelete(db, &model.RequirementTestCase{}, link.ID, &userID); err != nil {
		return failInternal(c, err, "failed to remove link")
	}
	return envelope.OK(c, http.StatusOK, echo.Map{"deleted": true})
}

// LinkRequirementTestSuite creates the requirement↔test-suite association
func LinkRequirementTestSuite(c echo.Context) error {
	prometheus.RecordEntityOperation("requirement_test_suite", "link")
	db, tenantID, userID := tenantDB(c)

	reqID, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid requirement ID")
	}
	tsID, err := paramID(c, "tsID")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid test suite ID")
	}

	var requirement model.Requirement
	if err := db.Scopes(store.ForTenant(tenantID)).First(&requirement, reqID).Error; err != nil {
		return failLookup(c, err, "requirement")
	}
	var suite model.TestSuite
	if err := db.Scopes(store.ForTenant(tenantID)).First(&suite, tsID).Error; err != nil {
		return failLookup(c, err, "test suite")
	}

	var count int64
	db.Model(&model.RequirementTestSuite{}).
		Scopes(store.ForTenant(tenantID)).
		Where("requirement_id = ? AND test_suite_id = ?", reqID, tsID).
		Count(&count)
	if count > 0 {
		return envelope.Fail(c, http.StatusConflict, envelope.CodeConflict, "requirement and test suite are already linked")
	}

	link := model.RequirementTestSuite{
		TenantID:      tenantID,
		RequirementID: reqID,
		TestSuiteID:   tsID,
	}
	link.CreatedBy = &userID
	if err := db.Create(&link).Error; err != nil {
		return failInternal(c, err, "failed to create link")
	}
	return envelope.OK(c, http.StatusCreated, link)
}

// UnlinkRequirementTestSuite soft-deletes the association
func UnlinkRequirementTestSuite(c echo.Context) error {
	prometheus.RecordEntityOperation("requirement_test_suite", "unlink")
	db, tenantID, userID := tenantDB(c)

	reqID, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid requirement ID")
	}
	tsID, err := paramID(c, "tsID")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid test suite ID")
	}

	var link model.RequirementTestSuite
	if err := db.Scopes(store.ForTenant(tenantID)).
		Where("requirement_id = ? AND test_suite_id = ?", reqID, tsID).
		First(&link).Error; err != nil {
		return failLookup(c, err, "link")
	}

	if err := store.SoftDelete(db, &model.RequirementTestSuite{}, link.ID, &userID); err != nil {
		return failInternal(c, err, "failed to remove link")
	}
	return envelope.OK(c, http.StatusOK, echo.Map{"deleted": true})
}
