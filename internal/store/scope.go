package store

import (
	"time"

	"github.com/suteetoe/testtrack/internal/model"
	"gorm.io/gorm"
)

// ForTenant is the pervasive row-level filter: every tenant-scoped query goes
// through it. It combines tenant isolation with live-row filtering.
func ForTenant(tenantID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ? AND is_deleted = ?", tenantID, false)
	}
}

// Live filters out soft-deleted rows for queries that are not tenant-scoped
// (permissions, link rows already joined by id).
func Live(db *gorm.DB) *gorm.DB {
	return db.Where("is_deleted = ?", false)
}

// Paginate applies skip/take semantics. Page numbers start at 1.
func Paginate(page, limit int) func(*gorm.DB) *gorm.DB {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((page - 1) * limit).Limit(limit)
	}
}

// SoftDelete flags a row deleted and stamps modification metadata
func SoftDelete(db *gorm.DB, value interface{}, id uint, actorID *uint) error {
	return db.Model(value).Where("id = ?", id).Updates(map[string]interface{}{
		"is_deleted":  true,
		"modified_at": time.Now(),
		"modified_by": actorID,
	}).Error
}

// softDeleteIDs flags a batch of rows deleted
func softDeleteIDs(db *gorm.DB, value interface{}, ids []uint, actorID *uint) error {
	if len(ids) == 0 {
		return nil
	}
	return db.Model(value).Where("id IN ?", ids).Updates(map[string]interface{}{
		"is_deleted":  true,
		"modified_at": time.Now(),
		"modified_by": actorID,
	}).Error
}

// collectSubtree walks parent-pointer children live rows breadth-first,
// starting at rootID. The seen set guards against parent-pointer cycles in
// stored data turning the walk into an infinite loop.
func collectSubtree(db *gorm.DB, value interface{}, parentColumn, tenantID string, rootID uint) ([]uint, error) {
	seen := map[uint]bool{rootID: true}
	ids := []uint{rootID}
	frontier := []uint{rootID}
	for len(frontier) > 0 {
		var children []uint
		err := db.Model(value).
			Where("tenant_id = ? AND is_deleted = ? AND "+parentColumn+" IN ?", tenantID, false, frontier).
			Pluck("id", &children).Error
		if err != nil {
			return nil, err
		}
		frontier = frontier[:0]
		for _, id := range children {
			if seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
			frontier = append(frontier, id)
		}
	}
	return ids, nil
}

// SoftDeleteRequirementTree cascades a soft delete over the full requirement
// subtree rooted at rootID.
func SoftDeleteRequirementTree(db *gorm.DB, tenantID string, rootID uint, actorID *uint) ([]uint, error) {
	ids, err := collectSubtree(db, &model.Requirement{}, "parent_requirement_id", tenantID, rootID)
	if err != nil {
		return nil, err
	}
	return ids, softDeleteIDs(db, &model.Requirement{}, ids, actorID)
}

// SoftDeleteSuiteTree cascades a soft delete over the full suite subtree
// rooted at rootID, including the test cases owned by every deleted suite.
func SoftDeleteSuiteTree(db *gorm.DB, tenantID string, rootID uint, actorID *uint) ([]uint, error) {
	ids, err := collectSubtree(db, &model.TestSuite{}, "parent_suite_id", tenantID, rootID)
	if err != nil {
		return nil, err
	}
	if err := softDeleteIDs(db, &model.TestSuite{}, ids, actorID); err != nil {
		return nil, err
	}
	err = db.Model(&model.TestCase{}).
		Where("tenant_id = ? AND is_deleted = ? AND test_suite_id IN ?", tenantID, false, ids).
		Updates(map[string]interface{}{
			"is_deleted":  true,
			"modified_at": time.Now(),
			"modified_by": actorID,
		}).Error
	return ids, err
}

// SoftDeleteRunWithResults soft-deletes a run and its live results
func SoftDeleteRunWithResults(db *gorm.DB, tenantID string, runID uint, actorID *uint) error {
	if err := SoftDelete(db, &model.TestRun{}, runID, actorID); err != nil {
		return err
	}
	return db.Model(&model.TestRunResult{}).
		Where("tenant_id = ? AND is_deleted = ? AND test_run_id = ?", tenantID, false, runID).
		Updates(map[string]interface{}{
			"is_deleted":  true,
			"modified_at": time.Now(),
			"modified_by": actorID,
		}).Error
}

// IsDescendant reports whether candidateID sits inside the subtree rooted at
// rootID. Used as the write-time guard against re-parenting a node under its
// own subtree.
func IsDescendant(db *gorm.DB, value interface{}, parentColumn, tenantID string, rootID, candidateID uint) (bool, error) {
	ids, err := collectSubtree(db, value, parentColumn, tenantID, rootID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == candidateID {
			return true, nil
		}
	}
	return false, nil
}
