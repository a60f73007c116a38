package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/testtrack/internal/handler"
	"github.com/suteetoe/testtrack/internal/model"
	"github.com/suteetoe/testtrack/internal/store"
	"github.com/suteetoe/testtrack/pkg/blobstore"
	"github.com/suteetoe/testtrack/pkg/config"
	"github.com/suteetoe/testtrack/pkg/database"
	"github.com/suteetoe/testtrack/pkg/jwtutil"
	"github.com/suteetoe/testtrack/pkg/mailer"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	tenantA = "tenant-aaaa"
	tenantB = "tenant-bbbb"
	actorID = uint(1)
)

func setup(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, store.RegisterAuditCallback(db))
	require.NoError(t, db.AutoMigrate(model.AllModels()...))

	database.SetDB(db)
	jwtutil.Initialize(&jwtutil.Config{SigningKey: "unit-test-key", ExpirationHours: 1})
	handler.Init(mailer.New(&config.MailConfig{}, zap.NewNop()), blobstore.NopStore{}, false)
	return db
}

// call invokes a handler with an authenticated tenant principal in context
func call(t *testing.T, h echo.HandlerFunc, method, target, body, tenantID string, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if tenantID != "" {
		c.Set("tenant_id", tenantID)
		c.Set("user_id", actorID)
		c.Set("user_role", "Admin")
	}
	if len(params) > 0 {
		names := make([]string, 0, len(params))
		values := make([]string, 0, len(params))
		for k, v := range params {
			names = append(names, k)
			values = append(values, v)
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	require.NoError(t, h(c))
	return rec
}

type envelopeBody struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta *struct {
		Page  int   `json:"page"`
		Limit int   `json:"limit"`
		Total int64 `json:"total"`
	} `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelopeBody {
	t.Helper()
	var body envelopeBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func createProject(t *testing.T, tenantID, name string) model.Project {
	t.Helper()
	rec := call(t, handler.CreateProject, http.MethodPost, "/api/projects",
		fmt.Sprintf(`{"name":%q}`, name), tenantID, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var project model.Project
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &project))
	return project
}

func createSuite(t *testing.T, tenantID string, projectID uint, parent *uint, name string) model.TestSuite {
	t.Helper()
	body := fmt.Sprintf(`{"project_id":%d,"name":%q}`, projectID, name)
	if parent != nil {
		body = fmt.Sprintf(`{"project_id":%d,"name":%q,"parent_suite_id":%d}`, projectID, name, *parent)
	}
	rec := call(t, handler.CreateTestSuite, http.MethodPost, "/api/suites", body, tenantID, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var suite model.TestSuite
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &suite))
	return suite
}

func createCase(t *testing.T, tenantID string, suiteID uint, title, priority string) model.TestCase {
	t.Helper()
	rec := call(t, handler.CreateTestCase, http.MethodPost, "/api/cases",
		fmt.Sprintf(`{"test_suite_id":%d,"title":%q,"priority":%q}`, suiteID, title, priority), tenantID, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var testCase model.TestCase
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &testCase))
	return testCase
}

func TestRegisterAndLogin(t *testing.T) {
	setup(t)

	rec := call(t, handler.Register, http.MethodPost, "/api/auth/register",
		`{"tenant_name":"Acme QA","email":"admin@acme.test","password":"s3cret!!"}`, "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var registered struct {
		Token  string       `json:"token"`
		Tenant model.Tenant `json:"tenant"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &registered))
	require.NotEmpty(t, registered.Token)
	require.NotEmpty(t, registered.Tenant.ID)
	assert.NotContains(t, registered.Tenant.ID, "-")

	claims, err := jwtutil.ValidateToken(registered.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.Tenant.ID, claims.TenantID)
	assert.Equal(t, "Admin", claims.Role)

	// Email is unique across tenants
	rec = call(t, handler.Register, http.MethodPost, "/api/auth/register",
		`{"tenant_name":"Other","email":"admin@acme.test","password":"x"}`, "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decode(t, rec).Error.Code)

	rec = call(t, handler.Login, http.MethodPost, "/api/auth/login",
		`{"email":"admin@acme.test","password":"wrong"}`, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, handler.Login, http.MethodPost, "/api/auth/login",
		`{"email":"admin@acme.test","password":"s3cret!!"}`, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var loggedIn struct {
		Role string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &loggedIn))
	assert.Equal(t, "Admin", loggedIn.Role)
}

func TestTenantIsolation(t *testing.T) {
	setup(t)

	project := createProject(t, tenantA, "alpha")

	rec := call(t, handler.GetProject, http.MethodGet, "/api/projects/1", "", tenantB,
		map[string]string{"id": fmt.Sprint(project.ID)})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, rec).Error.Code)

	rec = call(t, handler.ListProjects, http.MethodGet, "/api/projects", "", tenantB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, int64(0), body.Meta.Total)
}

func TestSoftDeletedRowsVanishFromReads(t *testing.T) {
	db := setup(t)

	project := createProject(t, tenantA, "doomed")

	rec := call(t, handler.DeleteProject, http.MethodDelete, "/api/projects/1", "", tenantA,
		map[string]string{"id": fmt.Sprint(project.ID)})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, handler.GetProject, http.MethodGet, "/api/projects/1", "", tenantA,
		map[string]string{"id": fmt.Sprint(project.ID)})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The row survives physically with the flag set
	var raw model.Project
	require.NoError(t, db.First(&raw, project.ID).Error)
	assert.True(t, raw.IsDeleted)
}

func TestPartialUpdateLeavesOtherFieldsAlone(t *testing.T) {
	setup(t)

	project := createProject(t, tenantA, "stable-name")

	rec := call(t, handler.UpdateProject, http.MethodPut, "/api/projects/1",
		`{"description":"new words"}`, tenantA,
		map[string]string{"id": fmt.Sprint(project.ID)})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated model.Project
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &updated))
	assert.Equal(t, "stable-name", updated.Name)
	assert.Equal(t, "new words", updated.Description)
	require.NotNil(t, updated.ModifiedBy)
	assert.Equal(t, actorID, *updated.ModifiedBy)
}

func TestListProjectsPagination(t *testing.T) {
	setup(t)

	for i := 0; i < 5; i++ {
		createProject(t, tenantA, fmt.Sprintf("project-%d", i))
	}

	rec := call(t, handler.ListProjects, http.MethodGet, "/api/projects?page=2&limit=2", "", tenantA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)

	var projects []model.Project
	require.NoError(t, json.Unmarshal(body.Data, &projects))
	assert.Len(t, projects, 2)
	assert.Equal(t, int64(5), body.Meta.Total)
	assert.Equal(t, 2, body.Meta.Page)
}

func TestListTestCasesPriorityFilter(t *testing.T) {
	setup(t)

	project := createProject(t, tenantA, "filtering")
	suite := createSuite(t, tenantA, project.ID, nil, "regression")
	createCase(t, tenantA, suite.ID, "checkout crash", "High")
	createCase(t, tenantA, suite.ID, "slow search", "Medium")
	createCase(t, tenantA, suite.ID, "logo off-center", "Low")

	rec := call(t, handler.ListTestCases, http.MethodGet,
		"/api/suites/1/cases?priorities=High&priorities=Low", "", tenantA,
		map[string]string{"id": fmt.Sprint(suite.ID)})
	require.Equal(t, http.StatusOK, rec.Code)

	var cases []model.TestCase
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &cases))
	require.Len(t, cases, 2)
	for _, tc := range cases {
		assert.NotEqual(t, model.PriorityMedium, tc.Priority)
	}

	// Filter text narrows on the title
	rec = call(t, handler.ListTestCases, http.MethodGet,
		"/api/suites/1/cases?filter=checkout", "", tenantA,
		map[string]string{"id": fmt.Sprint(suite.ID)})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &cases))
	require.Len(t, cases, 1)
	assert.Equal(t, "checkout crash", cases[0].Title)
}

func TestDuplicateRunResultRejected(t *testing.T) {
	setup(t)

	project := createProject(t, tenantA, "runs")
	suite := createSuite(t, tenantA, project.ID, nil, "smoke")
	testCase := createCase(t, tenantA, suite.ID, "boots", "High")

	rec := call(t, handler.CreateTestRun, http.MethodPost, "/api/runs",
		fmt.Sprintf(`{"project_id":%d,"name":"nightly"}`, project.ID), tenantA, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var run model.TestRun
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &run))

	body := fmt.Sprintf(`{"test_case_id":%d,"status":"Passed"}`, testCase.ID)
	rec = call(t, handler.CreateTestRunResult, http.MethodPost, "/api/runs/1/results", body, tenantA,
		map[string]string{"id": fmt.Sprint(run.ID)})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = call(t, handler.CreateTestRunResult, http.MethodPost, "/api/runs/1/results", body, tenantA,
		map[string]string{"id": fmt.Sprint(run.ID)})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decode(t, rec).Error.Code)
}

func TestRequirementTreeNesting(t *testing.T) {
	setup(t)

	project := createProject(t, tenantA, "tree")

	rec := call(t, handler.CreateRequirement, http.MethodPost, "/api/requirements",
		fmt.Sprintf(`{"project_id":%d,"title":"root"}`, project.ID), tenantA, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var root model.Requirement
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &root))

	rec = call(t, handler.CreateRequirement, http.MethodPost, "/api/requirements",
		fmt.Sprintf(`{"project_id":%d,"title":"child","parent_requirement_id":%d}`, project.ID, root.ID),
		tenantA, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var child model.Requirement
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &child))

	rec = call(t, handler.GetRequirementTree, http.MethodGet, "/api/projects/1/requirements/tree", "", tenantA,
		map[string]string{"id": fmt.Sprint(project.ID)})
	require.Equal(t, http.StatusOK, rec.Code)

	var forest []struct {
		ID       uint   `json:"id"`
		Title    string `json:"title"`
		Children []struct {
			ID    uint   `json:"id"`
			Title string `json:"title"`
		} `json:"children"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &forest))
	require.Len(t, forest, 1)
	assert.Equal(t, "root", forest[0].Title)
	require.Len(t, forest[0].Children, 1)
	assert.Equal(t, "child", forest[0].Children[0].Title)

	// Re-parenting the root under its own child is rejected
	rec = call(t, handler.UpdateRequirement, http.MethodPut, "/api/requirements/1",
		fmt.Sprintf(`{"parent_requirement_id":%d}`, child.ID), tenantA,
		map[string]string{"id": fmt.Sprint(root.ID)})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSuiteCascadeDelete(t *testing.T) {
	setup(t)

	project := createProject(t, tenantA, "cascade")
	parent := createSuite(t, tenantA, project.ID, nil, "parent")
	child := createSuite(t, tenantA, project.ID, &parent.ID, "child")
	testCase := createCase(t, tenantA, child.ID, "buried", "Medium")

	rec := call(t, handler.DeleteTestSuite, http.MethodDelete, "/api/suites/1", "", tenantA,
		map[string]string{"id": fmt.Sprint(parent.ID)})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, handler.GetTestSuite, http.MethodGet, "/api/suites/2", "", tenantA,
		map[string]string{"id": fmt.Sprint(child.ID)})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, handler.GetTestCase, http.MethodGet, "/api/cases/1", "", tenantA,
		map[string]string{"id": fmt.Sprint(testCase.ID)})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequirementTestCaseLinking(t *testing.T) {
	setup(t)

	project := createProject(t, tenantA, "links")
	suite := createSuite(t, tenantA, project.ID, nil, "verify")
	testCase := createCase(t, tenantA, suite.ID, "covers it", "High")

	rec := call(t, handler.CreateRequirement, http.MethodPost, "/api/requirements",
		fmt.Sprintf(`{"project_id":%d,"title":"verified"}`, project.ID), tenantA, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var requirement model.Requirement
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &requirement))

	params := map[string]string{
		"id":   fmt.Sprint(requirement.ID),
		"tcID": fmt.Sprint(testCase.ID),
	}
	rec = call(t, handler.LinkRequirementTestCase, http.MethodPost, "/api/requirements/1/testcases/1", "", tenantA, params)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = call(t, handler.LinkRequirementTestCase, http.MethodPost, "/api/requirements/1/testcases/1", "", tenantA, params)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, handler.UnlinkRequirementTestCase, http.MethodDelete, "/api/requirements/1/testcases/1", "", tenantA, params)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, handler.UnlinkRequirementTestCase, http.MethodDelete, "/api/requirements/1/testcases/1", "", tenantA, params)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDefectStatusHistory(t *testing.T) {
	setup(t)

	rec := call(t, handler.CreateDefect, http.MethodPost, "/api/defects",
		`{"title":"crash on save","severity":"High"}`, tenantA, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var defect model.Defect
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &defect))
	assert.Equal(t, model.DefectOpen, defect.Status)

	params := map[string]string{"id": fmt.Sprint(defect.ID)}

	// Non-status update keeps history empty
	rec = call(t, handler.UpdateDefect, http.MethodPut, "/api/defects/1",
		`{"description":"more detail"}`, tenantA, params)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, handler.UpdateDefect, http.MethodPut, "/api/defects/1",
		`{"status":"InProgress"}`, tenantA, params)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, handler.UpdateDefect, http.MethodPut, "/api/defects/1",
		`{"status":"Resolved"}`, tenantA, params)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, handler.GetDefectHistory, http.MethodGet, "/api/defects/1/history", "", tenantA, params)
	require.Equal(t, http.StatusOK, rec.Code)

	var history []model.DefectHistory
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &history))
	require.Len(t, history, 2)
	assert.Equal(t, model.DefectOpen, history[0].OldStatus)
	assert.Equal(t, model.DefectInProgress, history[0].NewStatus)
	assert.Equal(t, model.DefectInProgress, history[1].OldStatus)
	assert.Equal(t, model.DefectResolved, history[1].NewStatus)
}

func TestAuditTrailRecordsCreations(t *testing.T) {
	setup(t)

	createProject(t, tenantA, "audited")
	createProject(t, tenantB, "other-tenant")

	rec := call(t, handler.ListAuditLogs, http.MethodGet, "/api/audit-logs", "", tenantA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)

	var logs []model.AuditLog
	require.NoError(t, json.Unmarshal(body.Data, &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "ProjectCreated", logs[0].Action)
	assert.Equal(t, actorID, logs[0].UserID)
	assert.Equal(t, tenantA, logs[0].TenantID)
}

func TestRunResultsReport(t *testing.T) {
	setup(t)

	project := createProject(t, tenantA, "reported")
	suite := createSuite(t, tenantA, project.ID, nil, "suite")
	testCase := createCase(t, tenantA, suite.ID, "case one", "High")

	rec := call(t, handler.CreateTestRun, http.MethodPost, "/api/runs",
		fmt.Sprintf(`{"project_id":%d,"name":"run one"}`, project.ID), tenantA, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var run model.TestRun
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &run))

	rec = call(t, handler.CreateTestRunResult, http.MethodPost, "/api/runs/1/results",
		fmt.Sprintf(`{"test_case_id":%d,"status":"Failed","comments":"flaky"}`, testCase.ID), tenantA,
		map[string]string{"id": fmt.Sprint(run.ID)})
	require.Equal(t, http.StatusCreated, rec.Code)

	params := map[string]string{"id": fmt.Sprint(project.ID)}

	rec = call(t, handler.GetRunResultsReport, http.MethodGet, "/api/projects/1/reports/run-results", "", tenantA, params)
	require.Equal(t, http.StatusOK, rec.Code)
	var rs struct {
		Columns []string   `json:"columns"`
		Rows    [][]string `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &rs))
	assert.Equal(t, []string{"Run", "TestCase", "Status", "Comments"}, rs.Columns)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, []string{"run one", "case one", "Failed", "flaky"}, rs.Rows[0])

	rec = call(t, handler.GetRunResultsReport, http.MethodGet,
		"/api/projects/1/reports/run-results?format=csv&columns=Run,Status", "", tenantA, params)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/csv")
	assert.Equal(t, "Run,Status\nrun one,Failed\n", rec.Body.String())

	rec = call(t, handler.GetRunResultsReport, http.MethodGet,
		"/api/projects/1/reports/run-results?columns=Bogus", "", tenantA, params)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION", decode(t, rec).Error.Code)
}
