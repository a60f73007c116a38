package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/testtrack/internal/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, RegisterAuditCallback(db))
	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	return db
}

func uintPtr(v uint) *uint { return &v }

func seedRequirement(t *testing.T, db *gorm.DB, tenantID string, parent *uint, title string) *model.Requirement {
	t.Helper()
	r := &model.Requirement{
		TenantID:            tenantID,
		ProjectID:           1,
		ParentRequirementID: parent,
		Title:               title,
	}
	require.NoError(t, db.Create(r).Error)
	return r
}

func TestAuditRowWrittenOnCreate(t *testing.T) {
	db := newTestDB(t)
	actor := uint(7)

	project := &model.Project{TenantID: "t1", Name: "payments"}
	require.NoError(t, WithAudit(db, "t1", actor).Create(project).Error)

	var entry model.AuditLog
	require.NoError(t, db.Where("entity_type = ? AND entity_id = ?", "Project", project.ID).First(&entry).Error)
	assert.Equal(t, "ProjectCreated", entry.Action)
	assert.Equal(t, actor, entry.UserID)
	assert.Equal(t, "t1", entry.TenantID)
	assert.Contains(t, entry.Details, `"Name":"payments"`)
}

func TestAuditSkipsNonAuditableEntities(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{TenantID: "t1", Email: "a@example.com"}
	require.NoError(t, WithAudit(db, "t1", 1).Create(user).Error)

	var count int64
	require.NoError(t, db.Model(&model.AuditLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestForTenantHidesOtherTenantsAndDeletedRows(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.Create(&model.Project{TenantID: "t1", Name: "mine"}).Error)
	require.NoError(t, db.Create(&model.Project{TenantID: "t2", Name: "theirs"}).Error)
	deleted := &model.Project{TenantID: "t1", Name: "gone"}
	require.NoError(t, db.Create(deleted).Error)
	require.NoError(t, SoftDelete(db, &model.Project{}, deleted.ID, uintPtr(1)))

	var projects []model.Project
	require.NoError(t, db.Scopes(ForTenant("t1")).Find(&projects).Error)
	require.Len(t, projects, 1)
	assert.Equal(t, "mine", projects[0].Name)

	// The deleted row still exists physically
	var raw model.Project
	require.NoError(t, db.First(&raw, deleted.ID).Error)
	assert.True(t, raw.IsDeleted)
	assert.NotNil(t, raw.ModifiedBy)
}

func TestSoftDeleteRequirementTreeCascades(t *testing.T) {
	db := newTestDB(t)

	root := seedRequirement(t, db, "t1", nil, "root")
	child := seedRequirement(t, db, "t1", &root.ID, "child")
	grandchild := seedRequirement(t, db, "t1", &child.ID, "grandchild")
	sibling := seedRequirement(t, db, "t1", nil, "sibling")
	foreign := seedRequirement(t, db, "t2", nil, "foreign")

	ids, err := SoftDeleteRequirementTree(db, "t1", root.ID, uintPtr(1))
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{root.ID, child.ID, grandchild.ID}, ids)

	var live []model.Requirement
	require.NoError(t, db.Scopes(ForTenant("t1")).Find(&live).Error)
	require.Len(t, live, 1)
	assert.Equal(t, sibling.ID, live[0].ID)

	var other model.Requirement
	require.NoError(t, db.Scopes(ForTenant("t2")).First(&other, foreign.ID).Error)
	assert.False(t, other.IsDeleted)
}

func TestSoftDeleteSuiteTreeDeletesOwnedCases(t *testing.T) {
	db := newTestDB(t)

	parent := &model.TestSuite{TenantID: "t1", ProjectID: 1, Name: "auth"}
	require.NoError(t, db.Create(parent).Error)
	child := &model.TestSuite{TenantID: "t1", ProjectID: 1, ParentSuiteID: &parent.ID, Name: "login"}
	require.NoError(t, db.Create(child).Error)

	inChild := &model.TestCase{TenantID: "t1", TestSuiteID: child.ID, Title: "happy path", Priority: model.PriorityHigh}
	require.NoError(t, db.Create(inChild).Error)
	elsewhere := &model.TestCase{TenantID: "t1", TestSuiteID: 999, Title: "unrelated", Priority: model.PriorityLow}
	require.NoError(t, db.Create(elsewhere).Error)

	_, err := SoftDeleteSuiteTree(db, "t1", parent.ID, uintPtr(1))
	require.NoError(t, err)

	var liveSuites []model.TestSuite
	require.NoError(t, db.Scopes(ForTenant("t1")).Find(&liveSuites).Error)
	assert.Empty(t, liveSuites)

	var liveCases []model.TestCase
	require.NoError(t, db.Scopes(ForTenant("t1")).Find(&liveCases).Error)
	require.Len(t, liveCases, 1)
	assert.Equal(t, "unrelated", liveCases[0].Title)
}

func TestSoftDeleteRunWithResults(t *testing.T) {
	db := newTestDB(t)

	run := &model.TestRun{TenantID: "t1", ProjectID: 1, Name: "regression"}
	require.NoError(t, db.Create(run).Error)
	result := &model.TestRunResult{TenantID: "t1", TestRunID: run.ID, TestCaseID: 1, Status: model.ResultPassed}
	require.NoError(t, db.Create(result).Error)

	require.NoError(t, SoftDeleteRunWithResults(db, "t1", run.ID, uintPtr(1)))

	var liveResults []model.TestRunResult
	require.NoError(t, db.Scopes(ForTenant("t1")).Find(&liveResults).Error)
	assert.Empty(t, liveResults)
}

func TestIsDescendant(t *testing.T) {
	db := newTestDB(t)

	root := seedRequirement(t, db, "t1", nil, "root")
	child := seedRequirement(t, db, "t1", &root.ID, "child")
	grandchild := seedRequirement(t, db, "t1", &child.ID, "grandchild")
	unrelated := seedRequirement(t, db, "t1", nil, "unrelated")

	got, err := IsDescendant(db, &model.Requirement{}, "parent_requirement_id", "t1", root.ID, grandchild.ID)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = IsDescendant(db, &model.Requirement{}, "parent_requirement_id", "t1", root.ID, unrelated.ID)
	require.NoError(t, err)
	assert.False(t, got)

	// A node is inside its own subtree
	got, err = IsDescendant(db, &model.Requirement{}, "parent_requirement_id", "t1", root.ID, root.ID)
	require.NoError(t, err)
	assert.True(t, got)
}
