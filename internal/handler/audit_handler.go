package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/suteetoe/testtrack/internal/envelope"
	"github.com/suteetoe/testtrack/internal/model"
	"github.com/suteetoe/testtrack/prometheus"
	"gorm.io/gorm"
)

// ListAuditLogs pages the tenant's audit trail, newest first. Logs are
// append-only so there is no soft-delete filter to apply.
func ListAuditLogs(c echo.Context) error {
	prometheus.RecordEntityOperation("audit_log", "list")
	db, tenantID, _ := tenantDB(c)
	page, limit := pageParams(c)

	chain := db.Model(&model.AuditLog{}).Where("tenant_id = ?", tenantID)
	if entityType := c.QueryParam("entity_type"); entityType != "" {
		chain = chain.Where("entity_type = ?", entityType)
	}
	base := chain.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return failInternal(c, err, "failed to count audit logs")
	}

	var logs []model.AuditLog
	if err := base.Order("id DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&logs).Error; err != nil {
		return failInternal(c, err, "failed to list audit logs")
	}
	return envelope.OKPaged(c, logs, page, limit, total)
}
