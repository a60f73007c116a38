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

var suiteFilterFields = map[string]string{"name": "name"}

// CreateTestSuite creates a suite under a project, optionally nested
func CreateTestSuite(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation("test_suite", "create")
	db, tenantID, userID := tenantDB(c)

	var req struct {
		ProjectID     uint   `json:"project_id"`
		ParentSuiteID *uint  `json:"parent_suite_id"`
		Name          string `json:"name"`
		Description   string `json:"description"`
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
	if req.ParentSuiteID != nil {
		var parent model.TestSuite
		if err := db.Scopes(store.ForTenant(tenantID)).
			Where("project_id = ?", req.ProjectID).
			First(&parent, *req.ParentSuiteID).Error; err != nil {
			return failLookup(c, err, "parent suite")
		}
	}

	suite := model.TestSuite{
		TenantID:      tenantID,
		ProjectID:     req.ProjectID,
		ParentSuiteID: req.ParentSuiteID,
		Name:          req.Name,
		Description:   req.Description,
	}
	suite.CreatedBy = &userID

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := db.Create(&suite).Error; err != nil {
		return failInternal(c, err, "failed to create test suite")
	}

	log.Info("Test suite created",
		zap.Uint("id", suite.ID),
		zap.Uint("project_id", req.ProjectID),
		zap.String("tenant_id", tenantID))
	return envelope.OK(c, http.StatusCreated, suite)
}

// GetTestSuite retrieves one suite within the tenant
func GetTestSuite(c echo.Context) error {
	prometheus.RecordEntityOperation("test_suite", "get")
	db, tenantID, _ := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid test suite ID")
	}

	var suite model.TestSuite
	if err := db.Scopes(store.ForTenant(tenantID)).First(&suite, id).Error; err != nil {
		return failLookup(c, err, "test suite")
	}
	return envelope.OK(c, http.StatusOK, suite)
}

// ListTestSuites pages a project's suites through the filter language
func ListTestSuites(c echo.Context) error {
	prometheus.RecordEntityOperation("test_suite", "list")
	db, tenantID, _ := tenantDB(c)
	page, limit := pageParams(c)

	projectID, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid project ID")
	}

	query := store.ParseFilter(c.QueryParam("filter"), "name", suiteFilterFields)
	base := query.Apply(db.Model(&model.TestSuite{}).
		Scopes(store.ForTenant(tenantID)).
		Where("project_id = ?", projectID)).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return failInternal(c, err, "failed to count test suites")
	}

	var suites []model.TestSuite
	if err := base.Scopes(store.Paginate(page, limit)).Find(&suites).Error; err != nil {
		return failInternal(c, err, "failed to list test suites")
	}
	return envelope.OKPaged(c, suites, page, limit, total)
}

// GetTestSuiteTree returns the suite forest for a project
func GetTestSuiteTree(c echo.Context) error {
	prometheus.RecordEntityOperation("test_suite", "tree")
	db, tenantID, _ := tenantDB(c)

	projectID, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid project ID")
	}

	var suites []model.TestSuite
	if err := db.Scopes(store.ForTenant(tenantID)).
		Where("project_id = ?", projectID).Order("id ASC").
		Find(&suites).Error; err != nil {
		return failInternal(c, err, "failed to load test suites")
	}

	forest, err := hierarchy.Forest(suites,
		func(s model.TestSuite) uint { return s.ID },
		func(s model.TestSuite) *uint { return s.ParentSuiteID })
	if err != nil {
		return failInternal(c, err, "failed to build suite hierarchy")
	}
	return envelope.OK(c, http.StatusOK, toSuiteNodes(forest))
}

// UpdateTestSuite applies partial updates with the same re-parenting guard as
// requirements.
func UpdateTestSuite(c echo.Context) error {
	prometheus.RecordEntityOperation("test_suite", "update")
	db, tenantID, userID := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid test suite ID")
	}

	var req struct {
		Name          *string `json:"name"`
		Description   *string `json:"description"`
		ParentSuiteID *uint   `json:"parent_suite_id"`
	}
	if err := c.Bind(&req); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid request")
	}

	var suite model.TestSuite
	if err := db.Scopes(store.ForTenant(tenantID)).First(&suite, id).Error; err != nil {
		return failLookup(c, err, "test suite")
	}

	if req.Name != nil {
		suite.Name = *req.Name
	}
	if req.Description != nil {
		suite.Description = *req.Description
	}
	if req.ParentSuiteID != nil {
		newParent := *req.ParentSuiteID
		var parent model.TestSuite
		if err := db.Scopes(store.ForTenant(tenantID)).
			Where("project_id = ?", suite.ProjectID).
			First(&parent, newParent).Error; err != nil {
			return failLookup(c, err, "parent suite")
		}
		inSubtree, err := store.IsDescendant(db, &model.TestSuite{}, "parent_suite_id", tenantID, id, newParent)
		if err != nil {
			return failInternal(c, err, "failed to check suite ancestry")
		}
		if inSubtree {
			return envelope.Fail(c, http.StatusConflict, envelope.CodeConflict, "test suite cannot become its own ancestor")
		}
		suite.ParentSuiteID = req.ParentSuiteID
	}
	suite.Touch(&userID)

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := db.Save(&suite).Error; err != nil {
		return failInternal(c, err, "failed to update test suite")
	}
	return envelope.OK(c, http.StatusOK, suite)
}

// DeleteTestSuite soft-deletes the suite subtree and the test cases each
// deleted suite owns.
func DeleteTestSuite(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation("test_suite", "delete")
	db, tenantID, userID := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid test suite ID")
	}

	var suite model.TestSuite
	if err := db.Scopes(store.ForTenant(tenantID)).First(&suite, id).Error; err != nil {
		return failLookup(c, err, "test suite")
	}

	var deleted []uint
	err = db.Transaction(func(tx *gorm.DB) error {
		ids, err := store.SoftDeleteSuiteTree(tx, tenantID, id, &userID)
		deleted = ids
		return err
	})
	if err != nil {
		return failInternal(c, err, "failed to delete test suite")
	}

	for _, sid := range deleted {
		if err := images.DeleteAllForEntity(tenantID, fmt.Sprint(suite.ProjectID), "TestSuite", sid, "Description"); err != nil {
			log.Warn("Failed to remove test suite images",
				zap.Uint("suite_id", sid), zap.Error(err))
		}
	}

	log.Info("Test suite deleted",
		zap.Uint("id", id),
		zap.Int("cascaded", len(deleted)),
		zap.String("tenant_id", tenantID))
	return envelope.OK(c, http.StatusOK, echo.Map{"deleted": true, "ids": deleted})
}
