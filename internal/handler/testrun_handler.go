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

var testRunFilterFields = map[string]string{"name": "name"}

// CreateTestRun creates a run under a project
func CreateTestRun(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation("test_run", "create")
	db, tenantID, userID := tenantDB(c)

	var req struct {
		ProjectID        uint   `json:"project_id"`
		Name             string `json:"name"`
		Description      string `json:"description"`
		AssignedTesterID *uint  `json:"assigned_tester_id"`
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
	if req.AssignedTesterID != nil {
		var tester model.User
		if err := db.Scopes(store.ForTenant(tenantID)).First(&tester, *req.AssignedTesterID).Error; err != nil {
			return failLookup(c, err, "assigned tester")
		}
	}

	run := model.TestRun{
		TenantID:         tenantID,
		ProjectID:        req.ProjectID,
		Name:             req.Name,
		Description:      req.Description,
		AssignedTesterID: req.AssignedTesterID,
	}
	run.CreatedBy = &userID

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := db.Create(&run).Error; err != nil {
		return failInternal(c, err, "failed to create test run")
	}

	log.Info("Test run created",
		zap.Uint("id", run.ID),
		zap.Uint("project_id", req.ProjectID),
		zap.String("tenant_id", tenantID))
	return envelope.OK(c, http.StatusCreated, run)
}

// GetTestRun returns one run with its live results preloaded
func GetTestRun(c echo.Context) error {
	prometheus.RecordEntityOperation("test_run", "get")
	db, tenantID, _ := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid test run ID")
	}

	var run model.TestRun
	if err := db.Scopes(store.ForTenant(tenantID)).
		Preload("Results", "is_deleted = ?", false).
		First(&run, id).Error; err != nil {
		return failLookup(c, err, "test run")
	}
	return envelope.OK(c, http.StatusOK, run)
}

// ListTestRuns pages a project's runs
func ListTestRuns(c echo.Context) error {
	prometheus.RecordEntityOperation("test_run", "list")
	db, tenantID, _ := tenantDB(c)
	page, limit := pageParams(c)

	projectID, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid project ID")
	}

	query := store.ParseFilter(c.QueryParam("filter"), "name", testRunFilterFields)
	base := query.Apply(db.Model(&model.TestRun{}).
		Scopes(store.ForTenant(tenantID)).
		Where("project_id = ?", projectID)).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return failInternal(c, err, "failed to count test runs")
	}

	var runs []model.TestRun
	if err := base.Scopes(store.Paginate(page, limit)).Find(&runs).Error; err != nil {
		return failInternal(c, err, "failed to list test runs")
	}
	return envelope.OKPaged(c, runs, page, limit, total)
}

// UpdateTestRun applies partial updates
func UpdateTestRun(c echo.Context) error {
	prometheus.RecordEntityOperation("test_run", "update")
	db, tenantID, userID := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid test run ID")
	}

	var req struct {
		Name             *string `json:"name"`
		Description      *string `json:"description"`
		AssignedTesterID *uint   `json:"assigned_tester_id"`
	}
	if err := c.Bind(&req); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid request")
	}

	var run model.TestRun
	if err := db.Scopes(store.ForTenant(tenantID)).First(&run, id).Error; err != nil {
		return failLookup(c, err, "test run")
	}

	if req.Name != nil {
		run.Name = *req.Name
	}
	if req.Description != nil {
		run.Description = *req.Description
	}
	if req.AssignedTesterID != nil {
		var tester model.User
		if err := db.Scopes(store.ForTenant(tenantID)).First(&tester, *req.AssignedTesterID).Error; err != nil {
			return failLookup(c, err, "assigned tester")
		}
		run.AssignedTesterID = req.AssignedTesterID
	}
	run.Touch(&userID)

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := db.Save(&run).Error; err != nil {
		return failInternal(c, err, "failed to update test run")
	}
	return envelope.OK(c, http.StatusOK, run)
}

// DeleteTestRun soft-deletes the run and every result recorded under it
func DeleteTestRun(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation("test_run", "delete")
	db, tenantID, userID := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid test run ID")
	}

	var run model.TestRun
	if err := db.Scopes(store.ForTenant(tenantID)).First(&run, id).Error; err != nil {
		return failLookup(c, err, "test run")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	err = db.Transaction(func(tx *gorm.DB) error {
		return store.SoftDeleteRunWithResults(tx, tenantID, id, &userID)
	})
	if err != nil {
		return failInternal(c, err, "failed to delete test run")
	}

	log.Info("Test run deleted", zap.Uint("id", id), zap.String("tenant_id", tenantID))
	return envelope.OK(c, http.StatusOK, echo.Map{"deleted": true})
}

// CreateTestRunResult records an outcome for a case within a run. A case may
// hold at most one live result per run.
func CreateTestRunResult(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation("test_run_result", "create")
	db, tenantID, userID := tenantDB(c)

	runID, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid test run ID")
	}

	var req struct {
		TestCaseID uint   `json:"test_case_id"`
		Status     string `json:"status"`
		Comments   string `json:"comments"`
	}
	if err := c.Bind(&req); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid request")
	}
	if req.TestCaseID == 0 {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "test_case_id is required")
	}

	var run model.TestRun
	if err := db.Scopes(store.ForTenant(tenantID)).First(&run, runID).Error; err != nil {
		return failLookup(c, err, "test run")
	}
	var testCase model.TestCase
	if err := db.Scopes(store.ForTenant(tenantID)).First(&testCase, req.TestCaseID).Error; err != nil {
		return failLookup(c, err, "test case")
	}

	var existing int64
	if err := db.Model(&model.TestRunResult{}).
		Scopes(store.ForTenant(tenantID)).
		Where("test_run_id = ? AND test_case_id = ?", runID, req.TestCaseID).
		Count(&existing).Error; err != nil {
		return failInternal(c, err, "failed to check existing result")
	}
	if existing > 0 {
		return envelope.Fail(c, http.StatusConflict, envelope.CodeConflict, "a result already exists for this test case in this run")
	}

	status := model.ResultStatus(req.Status)
	if status == "" {
		status = model.ResultNotRun
	}

	result := model.TestRunResult{
		TenantID:   tenantID,
		TestRunID:  runID,
		TestCaseID: req.TestCaseID,
		Status:     status,
		Comments:   req.Comments,
	}
	result.CreatedBy = &userID

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := db.Create(&result).Error; err != nil {
		return failInternal(c, err, "failed to create test run result")
	}

	log.Info("Test run result recorded",
		zap.Uint("id", result.ID),
		zap.Uint("test_run_id", runID),
		zap.Uint("test_case_id", req.TestCaseID),
		zap.String("status", string(status)))
	return envelope.OK(c, http.StatusCreated, result)
}

// ListTestRunResults pages a run's results
func ListTestRunResults(c echo.Context) error {
	prometheus.RecordEntityOperation("test_run_result", "list")
	db, tenantID, _ := tenantDB(c)
	page, limit := pageParams(c)

	runID, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid test run ID")
	}

	base := db.Model(&model.TestRunResult{}).
		Scopes(store.ForTenant(tenantID)).
		Where("test_run_id = ?", runID).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return failInternal(c, err, "failed to count results")
	}

	var results []model.TestRunResult
	if err := base.Order("id ASC").Scopes(store.Paginate(page, limit)).Find(&results).Error; err != nil {
		return failInternal(c, err, "failed to list results")
	}
	return envelope.OKPaged(c, results, page, limit, total)
}

// UpdateTestRunResult applies partial updates to a recorded outcome
func UpdateTestRunResult(c echo.Context) error {
	prometheus.RecordEntityOperation("test_run_result", "update")
	db, tenantID, userID := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid result ID")
	}

	var req struct {
		Status   *string `json:"status"`
		Comments *string `json:"comments"`
	}
	if err := c.Bind(&req); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid request")
	}

	var result model.TestRunResult
	if err := db.Scopes(store.ForTenant(tenantID)).First(&result, id).Error; err != nil {
		return failLookup(c, err, "test run result")
	}

	if req.Status != nil {
		result.Status = model.ResultStatus(*req.Status)
	}
	if req.Comments != nil {
		result.Comments = *req.Comments
	}
	result.Touch(&userID)

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := db.Save(&result).Error; err != nil {
		return failInternal(c, err, "failed to update test run result")
	}
	return envelope.OK(c, http.StatusOK, result)
}

// DeleteTestRunResult soft-deletes a single result
func DeleteTestRunResult(c echo.Context) error {
	prometheus.RecordEntityOperation("test_run_result", "delete")
	db, tenantID, userID := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid result ID")
	}

	var result model.TestRunResult
	if err := db.Scopes(store.ForTenant(tenantID)).First(&result, id).Error; err != nil {
		return failLookup(c, err, "test run result")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := store.SoftDelete(db, &model.TestRunResult{}, id, &userID); err != nil {
		return failInternal(c, err, "failed to delete test run result")
	}
	return envelope.OK(c, http.StatusOK, echo.Map{"deleted": true})
}
