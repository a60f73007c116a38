package handler

import (
	"fmt"
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

var testCaseFilterFields = map[string]string{"title": "title"}

// CreateTestCase creates a case under a suite, optionally filed in a folder
func CreateTestCase(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation("test_case", "create")
	db, tenantID, userID := tenantDB(c)

	var req struct {
		TestSuiteID  uint     `json:"test_suite_id"`
		TestFolderID *uint    `json:"test_folder_id"`
		Title        string   `json:"title"`
		Description  string   `json:"description"`
		Priority     string   `json:"priority"`
		Status       string   `json:"status"`
		Tags         []string `json:"tags"`
	}
	if err := c.Bind(&req); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid request")
	}
	if req.Title == "" || req.TestSuiteID == 0 {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "title and test_suite_id are required")
	}

	var suite model.TestSuite
	if err := db.Scopes(store.ForTenant(tenantID)).First(&suite, req.TestSuiteID).Error; err != nil {
		return failLookup(c, err, "test suite")
	}
	if req.TestFolderID != nil {
		var folder model.TestFolder
		if err := db.Scopes(store.ForTenant(tenantID)).First(&folder, *req.TestFolderID).Error; err != nil {
			return failLookup(c, err, "test folder")
		}
	}

	priority := model.Priority(req.Priority)
	if priority == "" {
		priority = model.PriorityMedium
	}

	testCase := model.TestCase{
		TenantID:     tenantID,
		TestSuiteID:  req.TestSuiteID,
		TestFolderID: req.TestFolderID,
		Title:        req.Title,
		Description:  req.Description,
		Priority:     priority,
		Status:       req.Status,
		Tags:         req.Tags,
	}
	testCase.CreatedBy = &userID

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := db.Create(&testCase).Error; err != nil {
		return failInternal(c, err, "failed to create test case")
	}

	log.Info("Test case created",
		zap.Uint("id", testCase.ID),
		zap.Uint("suite_id", req.TestSuiteID),
		zap.String("tenant_id", tenantID))
	return envelope.OK(c, http.StatusCreated, testCase)
}

// GetTestCase retrieves one test case within the tenant
func GetTestCase(c echo.Context) error {
	prometheus.RecordEntityOperation("test_case", "get")
	db, tenantID, _ := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid test case ID")
	}

	var testCase model.TestCase
	if err := db.Scopes(store.ForTenant(tenantID)).First(&testCase, id).Error; err != nil {
		return failLookup(c, err, "test case")
	}
	return envelope.OK(c, http.StatusOK, testCase)
}

// ListTestCases pages a suite's cases. Besides the filter mini-language it
// accepts repeatable priorities params narrowing by priority.
func ListTestCases(c echo.Context) error {
	prometheus.RecordEntityOperation("test_case", "list")
	db, tenantID, _ := tenantDB(c)
	page, limit := pageParams(c)

	suiteID, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid test suite ID")
	}

	query := store.ParseFilter(c.QueryParam("filter"), "title", testCaseFilterFields)
	chain := db.Model(&model.TestCase{}).
		Scopes(store.ForTenant(tenantID)).
		Where("test_suite_id = ?", suiteID)

	if priorities := c.QueryParams()["priorities"]; len(priorities) > 0 {
		chain = chain.Where("priority IN ?", priorities)
	}

	base := query.Apply(chain).Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return failInternal(c, err, "failed to count test cases")
	}

	var cases []model.TestCase
	if err := base.Scopes(store.Paginate(page, limit)).Find(&cases).Error; err != nil {
		return failInternal(c, err, "failed to list test cases")
	}
	return envelope.OKPaged(c, cases, page, limit, total)
}

// UpdateTestCase applies partial updates
func UpdateTestCase(c echo.Context) error {
	prometheus.RecordEntityOperation("test_case", "update")
	db, tenantID, userID := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid test case ID")
	}

	var req struct {
		Title        *string   `json:"title"`
		Description  *string   `json:"description"`
		Priority     *string   `json:"priority"`
		Status       *string   `json:"status"`
		Tags         *[]string `json:"tags"`
		TestFolderID *uint     `json:"test_folder_id"`
	}
	if err := c.Bind(&req); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid request")
	}

	var testCase model.TestCase
	if err := db.Scopes(store.ForTenant(tenantID)).First(&testCase, id).Error; err != nil {
		return failLookup(c, err, "test case")
	}

	if req.Title != nil {
		testCase.Title = *req.Title
	}
	if req.Description != nil {
		testCase.Description = *req.Description
	}
	if req.Priority != nil {
		testCase.Priority = model.Priority(*req.Priority)
	}
	if req.Status != nil {
		testCase.Status = *req.Status
	}
	if req.Tags != nil {
		testCase.Tags = *req.Tags
	}
	if req.TestFolderID != nil {
		var folder model.TestFolder
		if err := db.Scopes(store.ForTenant(tenantID)).First(&folder, *req.TestFolderID).Error; err != nil {
			return failLookup(c, err, "test folder")
		}
		testCase.TestFolderID = req.TestFolderID
	}
	testCase.Touch(&userID)

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := db.Save(&testCase).Error; err != nil {
		return failInternal(c, err, "failed to update test case")
	}
	return envelope.OK(c, http.StatusOK, testCase)
}

// DeleteTestCase soft-deletes a case; attached images are cleaned up
// best-effort after the delete commits.
func DeleteTestCase(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation("test_case", "delete")
	db, tenantID, userID := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid test case ID")
	}

	var testCase model.TestCase
	if err := db.Scopes(store.ForTenant(tenantID)).First(&testCase, id).Error; err != nil {
		return failLookup(c, err, "test case")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := store.SoftDelete(db, &model.TestCase{}, id, &userID); err != nil {
		return failInternal(c, err, "failed to delete test case")
	}

	var suite model.TestSuite
	projectID := uint(0)
	if err := db.Scopes(store.ForTenant(tenantID)).First(&suite, testCase.TestSuiteID).Error; err == nil {
		projectID = suite.ProjectID
	}
	if err := images.DeleteAllForEntity(tenantID, fmt.Sprint(projectID), "TestCase", id, "Description"); err != nil {
		log.Warn("Failed to remove test case images", zap.Uint("test_case_id", id), zap.Error(err))
	}

	log.Info("Test case deleted", zap.Uint("id", id), zap.String("tenant_id", tenantID))
	return envelope.OK(c, http.StatusOK, echo.Map{"deleted": true})
}
