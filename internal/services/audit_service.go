package services

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/camdenwatts/teamspace/internal/models"
	"github.com/camdenwatts/teamspace/pkg/logger"
)

// AuditEntry captures a single auditable action.
type AuditEntry struct {
	WorkspaceID string
	UserID      string
	Action      string
	Resource    string
	Result      string
	Metadata    map[string]any
}

// AuditService persists audit log records.
type AuditService struct {
	db *gorm.DB
}

// NewAuditService constructs an AuditService.
func NewAuditService(db *gorm.DB) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	return &AuditService{db: db}, nil
}

// Record writes an audit log entry.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) error {
	ctx = ensureContext(ctx)

	log := models.AuditLog{
		WorkspaceID: entry.WorkspaceID,
		UserID:      entry.UserID,
		Action:      entry.Action,
		Resource:    entry.Resource,
		Result:      entry.Result,
	}

	if len(entry.Metadata) > 0 {
		payload, err := json.Marshal(entry.Metadata)
		if err == nil {
			log.Metadata = payload
		}
	}

	return s.db.WithContext(ctx).Create(&log).Error
}

// ListForWorkspace returns the most recent audit entries for a workspace.
func (s *AuditService) ListForWorkspace(ctx context.Context, workspaceID string, limit int) ([]models.AuditLog, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var logs []models.AuditLog
	err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// recordAudit writes an audit entry without failing the caller's operation.
func recordAudit(audit *AuditService, ctx context.Context, entry AuditEntry) {
	if audit == nil {
		return
	}
	if err := audit.Record(ctx, entry); err != nil {
		logger.WithModule("audit").Warn("failed to record audit entry",
			zap.String("action", entry.Action),
			zap.Error(err),
		)
	}
}
