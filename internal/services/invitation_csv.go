package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/camdenwatts/teamspace/internal/models"
	apperrors "github.com/camdenwatts/teamspace/pkg/errors"
)

// BulkInvitationRow is one entry of a bulk import, either supplied directly
// or parsed from a CSV row.
type BulkInvitationRow struct {
	Email      string `json:"email"`
	Role       string `json:"role,omitempty"`
	Department string `json:"department,omitempty"`
	Position   string `json:"position,omitempty"`
	Message    string `json:"message,omitempty"`
}

// BulkRowResult reports the per-row outcome of a bulk import.
type BulkRowResult struct {
	Row       int    `json:"row"`
	Email     string `json:"email"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	EmailSent bool   `json:"email_sent"`
}

// Per-row outcomes. A row that produced an invitation counts as successful
// even when the invitation email could not be delivered.
const (
	BulkRowInvited = "invited"
	BulkRowFailed  = "failed"
)

// BulkInvitationReport summarises one finished batch.
type BulkInvitationReport struct {
	Batch   *models.InvitationBatch `json:"batch"`
	Results []BulkRowResult         `json:"results"`
}

// CSVRowError describes a row rejected during CSV parsing, before any
// invitation work happens.
type CSVRowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ParseInvitationCSV reads CSV content with a header row of
// email[,role,department,position,message] (in any column order) and returns
// the well-formed rows alongside per-row parse errors. Parse errors are
// distinct from delivery failures later in the pipeline: a row that fails
// here never reaches the invitation service.
func ParseInvitationCSV(r io.Reader) ([]BulkInvitationRow, []CSVRowError, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, apperrors.NewBadRequest("CSV file is empty")
	}
	if err != nil {
		return nil, nil, apperrors.NewBadRequest("CSV header could not be read")
	}

	columns := map[string]int{}
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	emailCol, ok := columns["email"]
	if !ok {
		return nil, nil, apperrors.NewBadRequest("CSV header must contain an email column")
	}

	field := func(record []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var (
		rows      []BulkInvitationRow
		rowErrors []CSVRowError
		line      = 1
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			rowErrors = append(rowErrors, CSVRowError{Row: line, Reason: "malformed CSV row"})
			continue
		}
		if emailCol >= len(record) {
			rowErrors = append(rowErrors, CSVRowError{Row: line, Reason: "missing email value"})
			continue
		}

		email := strings.TrimSpace(record[emailCol])
		if email == "" {
			rowErrors = append(rowErrors, CSVRowError{Row: line, Reason: "missing email value"})
			continue
		}
		if _, err := mail.ParseAddress(email); err != nil {
			rowErrors = append(rowErrors, CSVRowError{Row: line, Reason: fmt.Sprintf("invalid email address %q", email)})
			continue
		}

		rows = append(rows, BulkInvitationRow{
			Email:      email,
			Role:       field(record, "role"),
			Department: field(record, "department"),
			Position:   field(record, "position"),
			Message:    field(record, "message"),
		})
	}

	return rows, rowErrors, nil
}

// CreateBulk issues invitations for every row under a shared InvitationBatch.
// Each row is attempted independently: one duplicate or invalid row never
// aborts the batch. The batch record is finalised exactly once with totals
// and a terminal status.
func (s *InvitationService) CreateBulk(ctx context.Context, workspaceID, actorID, batchName string, rows []BulkInvitationRow) (*BulkInvitationReport, error) {
	ctx = ensureContext(ctx)

	if len(rows) == 0 {
		return nil, apperrors.NewBadRequest("at least one invitation row is required")
	}
	if len(rows) > maxBulkInvitations {
		return nil, ErrBatchTooLarge
	}

	if err := s.requireManager(ctx, workspaceID, actorID); err != nil {
		return nil, err
	}

	input, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("invitation service: encode batch input: %w", err)
	}

	batchName = strings.TrimSpace(batchName)
	if batchName == "" {
		batchName = fmt.Sprintf("Bulk import %s", s.now().Format("2006-01-02 15:04"))
	}

	batch := &models.InvitationBatch{
		WorkspaceID: workspaceID,
		CreatedBy:   actorID,
		Name:        batchName,
		Status:      models.BatchStatusProcessing,
		Total:       len(rows),
		Input:       datatypes.JSON(input),
	}
	if err := s.db.WithContext(ctx).Create(batch).Error; err != nil {
		return nil, fmt.Errorf("invitation service: create batch: %w", err)
	}

	results := make([]BulkRowResult, 0, len(rows))
	successful := 0
	for i, row := range rows {
		result := BulkRowResult{Row: i + 1, Email: row.Email}

		created, err := s.Create(ctx, CreateInvitationInput{
			WorkspaceID:     workspaceID,
			InvitedBy:       actorID,
			Email:           row.Email,
			Role:            row.Role,
			Department:      row.Department,
			Position:        row.Position,
			PersonalMessage: row.Message,
			batchID:         &batch.ID,
		})
		if err != nil {
			result.Status = BulkRowFailed
			result.Error = bulkRowError(err)
		} else {
			result.Status = BulkRowInvited
			result.EmailSent = created.EmailSent
			successful++
		}
		results = append(results, result)
	}

	status := models.BatchStatusCompleted
	switch {
	case successful == 0:
		status = models.BatchStatusFailed
	case successful < len(rows):
		status = models.BatchStatusCompletedWithErrors
	}

	now := s.now()
	err = s.db.WithContext(ctx).
		Model(&models.InvitationBatch{}).
		Where("id = ? AND completed_at IS NULL", batch.ID).
		Updates(map[string]any{
			"status":       status,
			"successful":   successful,
			"failed":       len(rows) - successful,
			"completed_at": now,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("invitation service: finalise batch: %w", err)
	}

	batch.Status = status
	batch.Successful = successful
	batch.Failed = len(rows) - successful
	batch.CompletedAt = &now

	recordAudit(s.audit, ctx, AuditEntry{
		WorkspaceID: workspaceID,
		UserID:      actorID,
		Action:      "invitation.bulk_import",
		Resource:    batch.ID,
		Result:      status,
		Metadata:    map[string]any{"total": batch.Total, "successful": successful, "failed": batch.Failed},
	})

	return &BulkInvitationReport{Batch: batch, Results: results}, nil
}

// GetBatch returns an invitation batch scoped to a workspace.
func (s *InvitationService) GetBatch(ctx context.Context, workspaceID, batchID string) (*models.InvitationBatch, error) {
	ctx = ensureContext(ctx)

	var batch models.InvitationBatch
	err := s.db.WithContext(ctx).
		First(&batch, "id = ? AND workspace_id = ?", batchID, workspaceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invitation service: load batch: %w", err)
	}
	return &batch, nil
}

// MarkStaleBatches fails processing batches older than the cutoff. A batch
// left in processing past the cutoff means the importing request died before
// finalising it.
func (s *InvitationService) MarkStaleBatches(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	res := s.db.WithContext(ctx).
		Model(&models.InvitationBatch{}).
		Where("status = ? AND created_at < ?", models.BatchStatusProcessing, cutoff).
		Updates(map[string]any{
			"status":       models.BatchStatusFailed,
			"completed_at": s.now(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("invitation service: mark stale batches: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func bulkRowError(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "invitation could not be created"
}
