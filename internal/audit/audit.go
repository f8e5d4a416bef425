package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nebari-dev/tenancy/internal/models"
	"gorm.io/gorm"
)

// LogAction records an audit log entry
func LogAction(db *gorm.DB, userID uuid.UUID, action, resource string, details interface{}) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	log := models.AuditLog{
		UserID:      userID,
		Action:      action,
		Resource:    resource,
		DetailsJSON: string(detailsJSON),
		Timestamp:   time.Now(),
	}

	return db.Create(&log).Error
}

// Record writes an audit entry and logs instead of failing when the write
// does not go through.
func Record(ctx context.Context, db *gorm.DB, userID uuid.UUID, action, resource string, details interface{}) {
	if err := LogAction(db.WithContext(ctx), userID, action, resource, details); err != nil {
		slog.Warn("Failed to write audit log", "action", action, "resource", resource, "error", err)
	}
}

// Resource helpers
func WorkspaceResource(id uuid.UUID) string  { return "ws:" + id.String() }
func DatasourceResource(id uuid.UUID) string { return "ds:" + id.String() }

// Audit actions constants
const (
	ActionCreateWorkspace                = "create_workspace"
	ActionUpdateWorkspace                = "update_workspace"
	ActionArchiveWorkspace               = "archive_workspace"
	ActionUploadWorkspaceLogo            = "upload_workspace_logo"
	ActionDeleteWorkspaceLogo            = "delete_workspace_logo"
	ActionRepairWorkspace                = "repair_workspace"
	ActionMigrateDatasourceConfiguration = "migrate_datasource_configuration"
)
