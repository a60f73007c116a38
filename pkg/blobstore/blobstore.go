package blobstore

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Store holds images attached to entity rich-text fields. Cascade deletes call
// DeleteAllForEntity best-effort: failures are logged by the caller, never
// rolled into the primary transaction.
type Store interface {
	Put(tenantID, projectID, entityType string, entityID uint, fieldName, name string, data []byte) error
	DeleteAllForEntity(tenantID, projectID, entityType string, entityID uint, fieldName string) error
}

// FSStore keeps blobs on the local filesystem under
// <base>/<tenant>/<project>/<entityType>/<entityID>/<field>/.
type FSStore struct {
	base string
	log  *zap.Logger
}

func NewFSStore(base string, log *zap.Logger) *FSStore {
	return &FSStore{base: base, log: log}
}

func (s *FSStore) entityDir(tenantID, projectID, entityType string, entityID uint, fieldName string) string {
	return filepath.Join(s.base, tenantID, projectID, entityType, fmt.Sprint(entityID), fieldName)
}

func (s *FSStore) Put(tenantID, projectID, entityType string, entityID uint, fieldName, name string, data []byte) error {
	dir := s.entityDir(tenantID, projectID, entityType, entityID, fieldName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

func (s *FSStore) DeleteAllForEntity(tenantID, projectID, entityType string, entityID uint, fieldName string) error {
	dir := s.entityDir(tenantID, projectID, entityType, entityID, fieldName)
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	s.log.Debug("Removed entity images",
		zap.String("tenant_id", tenantID),
		zap.String("entity_type", entityType),
		zap.Uint("entity_id", entityID))
	return nil
}

// NopStore is used when no blob base path is configured
type NopStore struct{}

func (NopStore) Put(string, string, string, uint, string, string, []byte) error { return nil }
func (NopStore) DeleteAllForEntity(string, string, string, uint, string) error  { return nil }
