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

var defectFilterFields = map[string]string{
	"title":    "title",
	"status":   "status",
	"severity": "severity",
}

// CreateDefect files a defect, optionally tied to a result or a case
func CreateDefect(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation("defect", "create")
	db, tenantID, userID := tenantDB(c)

	var req struct {
		TestRunResultID *uint  `json:"test_run_result_id"`
		TestCaseID      *uint  `json:"test_case_id"`
		Title           string `json:"title"`
		Description     string `json:"description"`
		Severity        string `json:"severity"`
		AssigneeID      *uint  `json:"assignee_id"`
	}
	if err := c.Bind(&req); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid request")
	}
	if req.Title == "" {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "title is required")
	}

	if req.TestRunResultID != nil {
		var result model.TestRunResult
		if err := db.Scopes(store.ForTenant(tenantID)).First(&result, *req.TestRunResultID).Error; err != nil {
			return failLookup(c, err, "test run result")
		}
	}
	if req.TestCaseID != nil {
		var testCase model.TestCase
		if err := db.Scopes(store.ForTenant(tenantID)).First(&testCase, *req.TestCaseID).Error; err != nil {
			return failLookup(c, err, "test case")
		}
	}
	if req.AssigneeID != nil {
		var assignee model.User
		if err := db.Scopes(store.ForTenant(tenantID)).First(&assignee, *req.AssigneeID).Error; err != nil {
			return failLookup(c, err, "assignee")
		}
	}

	severity := model.Priority(req.Severity)
	if severity == "" {
		severity = model.PriorityMedium
	}

	defect := model.Defect{
		TenantID:        tenantID,
		TestRunResultID: req.TestRunResultID,
		TestCaseID:      req.TestCaseID,
		Title:           req.Title,
		Description:     req.Description,
		Severity:        severity,
		Status:          model.DefectOpen,
		AssigneeID:      req.AssigneeID,
	}
	defect.CreatedBy = &userID

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := db.Create(&defect).Error; err != nil {
		return failInternal(c, err, "failed to create defect")
	}

	log.Info("Defect created",
		zap.Uint("id", defect.ID),
		zap.String("severity", string(severity)),
		zap.String("tenant_id", tenantID))
	return envelope.OK(c, http.StatusCreated, defect)
}

// GetDefect retrieves one defect within the tenant
func GetDefect(c echo.Context) error {
	prometheus.RecordEntityOperation("defect", "get")
	db, tenantID, _ := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid defect ID")
	}

	var defect model.Defect
	if err := db.Scopes(store.ForTenant(tenantID)).First(&defect, id).Error; err != nil {
		return failLookup(c, err, "defect")
	}
	return envelope.OK(c, http.StatusOK, defect)
}

// ListDefects pages the tenant's defects with the filter mini-language
func ListDefects(c echo.Context) error {
	prometheus.RecordEntityOperation("defect", "list")
	db, tenantID, _ := tenantDB(c)
	page, limit := pageParams(c)

	query := store.ParseFilter(c.QueryParam("filter"), "title", defectFilterFields)
	base := query.Apply(db.Model(&model.Defect{}).Scopes(store.ForTenant(tenantID))).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return failInternal(c, err, "failed to count defects")
	}

	var defects []model.Defect
	if err := base.Scopes(store.Paginate(page, limit)).Find(&defects).Error; err != nil {
		return failInternal(c, err, "failed to list defects")
	}
	return envelope.OKPaged(c, defects, page, limit, total)
}

// UpdateDefect applies partial updates. A status change writes a history row
// in the same transaction as the update itself.
func UpdateDefect(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordEntityOperation("defect", "update")
	db, tenantID, userID := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid defect ID")
	}

	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Severity    *string `json:"severity"`
		Status      *string `json:"status"`
		AssigneeID  *uint   `json:"assignee_id"`
	}
	if err := c.Bind(&req); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid request")
	}

	var defect model.Defect
	if err := db.Scopes(store.ForTenant(tenantID)).First(&defect, id).Error; err != nil {
		return failLookup(c, err, "defect")
	}

	oldStatus := defect.Status

	if req.Title != nil {
		defect.Title = *req.Title
	}
	if req.Description != nil {
		defect.Description = *req.Description
	}
	if req.Severity != nil {
		defect.Severity = model.Priority(*req.Severity)
	}
	if req.Status != nil {
		defect.Status = model.DefectStatus(*req.Status)
	}
	if req.AssigneeID != nil {
		var assignee model.User
		if err := db.Scopes(store.ForTenant(tenantID)).First(&assignee, *req.AssigneeID).Error; err != nil {
			return failLookup(c, err, "assignee")
		}
		defect.AssigneeID = req.AssigneeID
	}
	defect.Touch(&userID)

	defer prometheus.TrackDBOperation("update")(time.Now())
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&defect).Error; err != nil {
			return err
		}
		if defect.Status != oldStatus {
			history := model.DefectHistory{
				TenantID:  tenantID,
				DefectID:  defect.ID,
				OldStatus: oldStatus,
				NewStatus: defect.Status,
				ChangedBy: userID,
			}
			history.CreatedBy = &userID
			return tx.Create(&history).Error
		}
		return nil
	})
	if err != nil {
		return failInternal(c, err, "failed to update defect")
	}

	if defect.Status != oldStatus {
		log.Info("Defect status changed",
			zap.Uint("id", defect.ID),
			zap.String("old_status", string(oldStatus)),
			zap.String("new_status", string(defect.Status)))
	}
	return envelope.OK(c, http.StatusOK, defect)
}

// GetDefectHistory lists a defect's status transitions in recording order
func GetDefectHistory(c echo.Context) error {
	prometheus.RecordEntityOperation("defect", "history")
	db, tenantID, _ := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid defect ID")
	}

	var defect model.Defect
	if err := db.Scopes(store.ForTenant(tenantID)).First(&defect, id).Error; err != nil {
		return failLookup(c, err, "defect")
	}

	var history []model.DefectHistory
	if err := db.Scopes(store.ForTenant(tenantID)).
		Where("defect_id = ?", id).
		Order("id ASC").
		Find(&history).Error; err != nil {
		return failInternal(c, err, "failed to load defect history")
	}
	return envelope.OK(c, http.StatusOK, history)
}

// DeleteDefect soft-deletes a defect
func DeleteDefect(c echo.Context) error {
	prometheus.RecordEntityOperation("defect", "delete")
	db, tenantID, userID := tenantDB(c)

	id, err := paramID(c, "id")
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, envelope.CodeValidation, "invalid defect ID")
	}

	var defect model.Defect
	if err := db.Scopes(store.ForTenant(tenantID)).First(&defect, id).Error; err != nil {
		return failLookup(c, err, "defect")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := store.SoftDelete(db, &model.Defect{}, id, &userID); err != nil {
		return failInternal(c, err, "failed to delete defect")
	}
	return envelope.OK(c, http.StatusOK, echo.Map{"deleted": true})
}
