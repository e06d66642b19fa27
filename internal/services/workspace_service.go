package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/camdenwatts/teamspace/internal/models"
	apperrors "github.com/camdenwatts/teamspace/pkg/errors"
)

var (
	// ErrWorkspaceNotFound indicates the requested workspace does not exist.
	ErrWorkspaceNotFound = apperrors.New("WORKSPACE_NOT_FOUND", "Workspace not found", http.StatusNotFound)
	// ErrSlugTaken signals a workspace slug collision.
	ErrSlugTaken = apperrors.New("WORKSPACE_SLUG_TAKEN", "Workspace slug already in use", http.StatusConflict)
	// ErrMemberNotFound indicates the requested membership does not exist.
	ErrMemberNotFound = apperrors.New("MEMBER_NOT_FOUND", "User is not a member of the workspace", http.StatusNotFound)
	// ErrAlreadyMember signals the user already belongs to the workspace.
	ErrAlreadyMember = apperrors.New("MEMBER_EXISTS", "User is already a member of the workspace", http.StatusConflict)
	// ErrCannotRemoveOwner prevents removing the workspace owner from their own workspace.
	ErrCannotRemoveOwner = apperrors.New("CANNOT_REMOVE_OWNER", "The workspace owner cannot be removed", http.StatusConflict)
)

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)

// CreateWorkspaceInput captures new workspace metadata.
type CreateWorkspaceInput struct {
	Name    string
	Slug    string
	OwnerID string
}

// UpdateWorkspaceInput describes mutable workspace fields.
type UpdateWorkspaceInput struct {
	Name     *string
	Settings []byte
}

// WorkspaceService handles workspace lifecycle and membership management.
type WorkspaceService struct {
	db    *gorm.DB
	audit *AuditService
}

// NewWorkspaceService constructs a WorkspaceService instance.
func NewWorkspaceService(db *gorm.DB, audit *AuditService) (*WorkspaceService, error) {
	if db == nil {
		return nil, errors.New("workspace service: db is required")
	}
	return &WorkspaceService{db: db, audit: audit}, nil
}

// Create registers a new workspace and enrols the owner as its first active member.
func (s *WorkspaceService) Create(ctx context.Context, input CreateWorkspaceInput) (*models.Workspace, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("workspace name is required")
	}
	if strings.TrimSpace(input.OwnerID) == "" {
		return nil, apperrors.NewBadRequest("workspace owner is required")
	}

	slug := strings.TrimSpace(input.Slug)
	if slug == "" {
		slug = Slugify(name)
	}

	workspace := &models.Workspace{
		Name:    name,
		Slug:    slug,
		OwnerID: input.OwnerID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(workspace).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrSlugTaken
			}
			return fmt.Errorf("create workspace: %w", err)
		}

		now := tx.NowFunc()
		owner := models.WorkspaceMember{
			WorkspaceID: workspace.ID,
			UserID:      input.OwnerID,
			Role:        models.RoleOwner,
			Status:      models.MemberStatusActive,
			JoinedAt:    &now,
		}
		if err := tx.Create(&owner).Error; err != nil {
			return fmt.Errorf("enrol owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		WorkspaceID: workspace.ID,
		UserID:      input.OwnerID,
		Action:      "workspace.create",
		Resource:    workspace.ID,
		Result:      "success",
		Metadata:    map[string]any{"name": workspace.Name, "slug": workspace.Slug},
	})

	return workspace, nil
}

// GetByID loads a workspace.
func (s *WorkspaceService) GetByID(ctx context.Context, id string) (*models.Workspace, error) {
	ctx = ensureContext(ctx)

	var workspace models.Workspace
	err := s.db.WithContext(ctx).First(&workspace, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWorkspaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("workspace service: load workspace: %w", err)
	}
	return &workspace, nil
}

// Update modifies workspace metadata.
func (s *WorkspaceService) Update(ctx context.Context, id string, input UpdateWorkspaceInput) (*models.Workspace, error) {
	ctx = ensureContext(ctx)

	workspace, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != "" && name != workspace.Name {
			updates["name"] = name
		}
	}
	if input.Settings != nil {
		updates["settings"] = input.Settings
	}

	if len(updates) == 0 {
		return workspace, nil
	}

	if err := s.db.WithContext(ctx).Model(workspace).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("workspace service: update workspace: %w", err)
	}

	return s.GetByID(ctx, id)
}

// Delete removes a workspace and, through foreign keys, all its dependent rows.
func (s *WorkspaceService) Delete(ctx context.Context, id, actorID string) error {
	ctx = ensureContext(ctx)

	workspace, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if workspace.OwnerID != actorID {
		return apperrors.ErrForbidden
	}

	if err := s.db.WithContext(ctx).Delete(workspace).Error; err != nil {
		return fmt.Errorf("workspace service: delete workspace: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		WorkspaceID: id,
		UserID:      actorID,
		Action:      "workspace.delete",
		Resource:    id,
		Result:      "success",
	})

	return nil
}

// ListMembers returns a page of workspace members with their user records.
func (s *WorkspaceService) ListMembers(ctx context.Context, workspaceID string, page, perPage int) ([]models.WorkspaceMember, int64, error) {
	ctx = ensureContext(ctx)

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 25
	}

	var total int64
	if err := s.db.WithContext(ctx).
		Model(&models.WorkspaceMember{}).
		Where("workspace_id = ?", workspaceID).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("workspace service: count members: %w", err)
	}

	var members []models.WorkspaceMember
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("workspace_id = ?", workspaceID).
		Order("created_at ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&members).Error
	if err != nil {
		return nil, 0, fmt.Errorf("workspace service: list members: %w", err)
	}

	return members, total, nil
}

// RemoveMember removes a user from the workspace. Only managers may remove
// members and the owner can never be removed.
func (s *WorkspaceService) RemoveMember(ctx context.Context, workspaceID, userID, actorID string) error {
	ctx = ensureContext(ctx)

	workspace, err := s.GetByID(ctx, workspaceID)
	if err != nil {
		return err
	}

	actor, err := activeMembership(ctx, s.db, workspaceID, actorID)
	if err != nil {
		return err
	}
	if !actor.CanManage() && actorID != userID {
		return apperrors.ErrForbidden
	}
	if workspace.OwnerID == userID {
		return ErrCannotRemoveOwner
	}

	res := s.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Delete(&models.WorkspaceMember{})
	if res.Error != nil {
		return fmt.Errorf("workspace service: remove member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrMemberNotFound
	}

	recordAudit(s.audit, ctx, AuditEntry{
		WorkspaceID: workspaceID,
		UserID:      actorID,
		Action:      "workspace.member.remove",
		Resource:    userID,
		Result:      "success",
	})

	return nil
}

// Slugify turns a display name into a URL-safe slug.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugInvalidChars.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// activeMembership loads the active membership row for a user in a workspace.
func activeMembership(ctx context.Context, db *gorm.DB, workspaceID, userID string) (*models.WorkspaceMember, error) {
	var member models.WorkspaceMember
	err := db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ? AND status = ?", workspaceID, userID, models.MemberStatusActive).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load membership: %w", err)
	}
	return &member, nil
}
