package handler

import (
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

// projectFilterFields are the columns the filter mini-language may reference
var projectFilterFields = map[string]string{"name": "name"}

// CreateProject creates a project in the caller's tenant
func CreateProject(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation("project", "create")
	db, tenantID, userID := tenantDB(c)

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

	project := model.Project{
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
	}
	project.CreatedBy = &userID

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := db.Create(&project).Error; err != nil {
		return failInternal(c, err, "failed to create project")
	}

	log.Info("Project created",
		zap.Uint("id", project.ID),
		zap.String("name", project.Name),
		zap.String("tenant_id", tenantID))
	return envelope.OK(c, http.StatusCreated, project)
}

// GetProject retrieves one project within the tenant
func GetProject(c echo.Context) error {
	prometheus.RecordEntityOperation("project", "get")
	db, tenantID, _ := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid project ID")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var project model.Project
	if err := db.Scopes(store.ForTenant(tenantID)).First(&project, id).Error; err != nil {
		return failLookup(c, err, "project")
	}
	return envelope.OK(c, http.StatusOK, project)
}

// ListProjects pages the tenant's projects through the filter mini-language
func ListProjects(c echo.Context) error {
	prometheus.RecordEntityOperation("project", "list")
	db, tenantID, _ := tenantDB(c)
	page, limit := pageParams(c)

	query := store.ParseFilter(c.QueryParam("filter"), "name", projectFilterFields)
	base := query.Apply(db.Model(&model.Project{}).Scopes(store.ForTenant(tenantID))).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return failInternal(c, err, "failed to count projects")
	}

	var projects []model.Project
	if err := base.Scopes(store.Paginate(page, limit)).Find(&projects).Error; err != nil {
		return failInternal(c, err, "failed to list projects")
	}

	return envelope.OKPaged(c, projects, page, limit, total)
}

// UpdateProject applies partial-update semantics: only non-nil fields change
func UpdateProject(c echo.Context) error {
	prometheus.RecordEntityOperation("project", "update")
	db, tenantID, userID := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid project ID")
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid request")
	}

	var project model.Project
	if err := db.Scopes(store.ForTenant(tenantID)).First(&project, id).Error; err != nil {
		return failLookup(c, err, "project")
	}

	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	project.Touch(&userID)

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := db.Save(&project).Error; err != nil {
		return failInternal(c, err, "failed to update project")
	}
	return envelope.OK(c, http.StatusOK, project)
}

// DeleteProject soft-deletes a project
func DeleteProject(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation("project", "delete")
	db, tenantID, userID := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid project ID")
	}

	var project model.Project
	if err := db.Scopes(store.ForTenant(tenantID)).First(&project, id).Error; err != nil {
		return failLookup(c, err, "project")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := store.SoftDelete(db, &model.Project{}, id, &userID); err != nil {
		return failInternal(c, err, "failed to delete project")
	}

	log.Info("Project deleted", zap.Uint("id", id), zap.String("tenant_id", tenantID))
	return envelope.OK(c, http.StatusOK, echo.Map{"deleted": true})
}

// RequirementNode is the tree DTO for the requirement forest
type RequirementNode struct {
	model.Requirement
	Children []*RequirementNode `json:"children"`
}

// SuiteNode is the tree DTO for the test suite forest
type SuiteNode struct {
	model.TestSuite
	Children []*SuiteNode `json:"children"`
}

func toRequirementNodes(trees []*hierarchy.Tree[model.Requirement]) []*RequirementNode {
	nodes := make([]*RequirementNode, 0, len(trees))
	for _, t := range trees {
		nodes = append(nodes, &RequirementNode{
			Requirement: t.Value,
			Children:    toRequirementNodes(t.Children),
		})
	}
	return nodes
}

func toSuiteNodes(trees []*hierarchy.Tree[model.TestSuite]) []*SuiteNode {
	nodes := make([]*SuiteNode, 0, len(trees))
	for _, t := range trees {
		nodes = append(nodes, &SuiteNode{
			TestSuite: t.Value,
			Children:  toSuiteNodes(t.Children),
		})
	}
	return nodes
}

// GetProjectHierarchy composes the requirement forest, suite forest and test
// runs (with nested results and defects) of one project.
func GetProjectHierarchy(c echo.Context) error {
	prometheus.RecordEntityOperation("project", "hierarchy")
	db, tenantID, _ := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid project ID")
	}

	var project model.Project
	if err := db.Scopes(store.ForTenant(tenantID)).First(&project, id).Error; err != nil {
		return failLookup(c, err, "project")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var requirements []model.Requirement
	if err := db.Scopes(store.ForTenant(tenantID)).
		Where("project_id = ?", id).Order("id ASC").
		Find(&requirements).Error; err != nil {
		return failInternal(c, err, "failed to load requirements")
	}
	reqForest, err := hierarchy.Forest(requirements,
		func(r model.Requirement) uint { return r.ID },
		func(r model.Requirement) *uint { return r.ParentRequirementID })
	if err != nil {
		return failInternal(c, err, "failed to build requirement hierarchy")
	}

	var suites []model.TestSuite
	if err := db.Scopes(store.ForTenant(tenantID)).
		Where("project_id = ?", id).Order("id ASC").
		Find(&suites).Error; err != nil {
		return failInternal(c, err, "failed to load test suites")
	}
	suiteForest, err := hierarchy.Forest(suites,
		func(s model.TestSuite) uint { return s.ID },
		func(s model.TestSuite) *uint { return s.ParentSuiteID })
	if err != nil {
		return failInternal(c, err, "failed to build suite hierarchy")
	}

	var runs []model.TestRun
	if err := db.Scopes(store.ForTenant(tenantID)).
		Where("project_id = ?", id).
		Preload("Results", "is_deleted = ?", false).
		Preload("Results.Defects", "is_deleted = ?", false).
		Order("id ASC").
		Find(&runs).Error; err != nil {
		return failInternal(c, err, "failed to load test runs")
	}

	return envelope.OK(c, http.StatusOK, echo.Map{
		"project":      project,
		"requirements": toRequirementNodes(reqForest),
		"test_suites":  toSuiteNodes(suiteForest),
		"test_runs":    runs,
	})
}
