package store

import (
	"encoding/json"

	"github.com/suteetoe/testtrack/internal/model"
	"github.com/suteetoe/testtrack/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	auditActorKey  = "audit:actor_id"
	auditTenantKey = "audit:tenant_id"
)

// WithAudit attaches the resolved actor and tenant to the session so the
// audit callback can stamp them onto generated audit rows.
func WithAudit(db *gorm.DB, tenantID string, userID uint) *gorm.DB {
	return db.Set(auditActorKey, userID).Set(auditTenantKey, tenantID)
}

// RegisterAuditCallback installs the audit trail writer: after every create of
// an auditable entity, one AuditLog row is added through the same session so
// it commits atomically with the triggering insert.
func RegisterAuditCallback(db *gorm.DB) error {
	return db.Callback().Create().After("gorm:create").Register("testtrack:audit", recordCreation)
}

func recordCreation(tx *gorm.DB) {
	if tx.Error != nil || tx.Statement == nil || tx.Statement.Dest == nil {
		return
	}
	auditable, ok := tx.Statement.Dest.(model.Auditable)
	if !ok {
		return
	}
	entity, ok := tx.Statement.Dest.(interface{ GetID() uint })
	if !ok {
		return
	}

	details := "{}"
	payload, err := json.Marshal(auditable.AuditDetails())
	if err != nil {
		// Audit detail serialization must never block the primary write
		logger.GetLogger().Warn("Failed to serialize audit details",
			zap.String("entity_type", auditable.AuditEntityType()),
			zap.Error(err))
	} else {
		details = string(payload)
	}

	var userID uint
	if v, ok := tx.Get(auditActorKey); ok {
		userID, _ = v.(uint)
	}
	var tenantID string
	if v, ok := tx.Get(auditTenantKey); ok {
		tenantID, _ = v.(string)
	}

	entry := model.AuditLog{
		Action:     auditable.AuditEntityType() + "Created",
		EntityType: auditable.AuditEntityType(),
		EntityID:   entity.GetID(),
		UserID:     userID,
		TenantID:   tenantID,
		Details:    details,
	}

	// NewDB keeps the current transaction connection but drops the statement
	// state, so the audit row joins the same unit of work.
	if err := tx.Session(&gorm.Session{NewDB: true, SkipHooks: true}).Create(&entry).Error; err != nil {
		logger.GetLogger().Warn("Failed to write audit log entry",
			zap.String("action", entry.Action),
			zap.Uint("entity_id", entry.EntityID),
			zap.Error(err))
	}
}
