package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/camdenwatts/teamspace/internal/cache"
	"github.com/camdenwatts/teamspace/internal/models"
	"github.com/camdenwatts/teamspace/pkg/crypto"
	apperrors "github.com/camdenwatts/teamspace/pkg/errors"
	pkgmail "github.com/camdenwatts/teamspace/pkg/mail"
	"github.com/camdenwatts/teamspace/pkg/logger"
	"github.com/camdenwatts/teamspace/pkg/metrics"
)

const (
	defaultInvitationExpiryDays = 7
	defaultInvitationTokenBytes = 32
	maxBulkInvitations          = 500
)

var (
	// ErrInvitationNotFound indicates no invitation matches the provided token or id.
	ErrInvitationNotFound = apperrors.New("INVITATION_NOT_FOUND", "Invitation not found", http.StatusNotFound)
	// ErrInvitationExpired indicates the invitation's expiry has passed.
	ErrInvitationExpired = apperrors.New("INVITATION_EXPIRED", "Invitation has expired", http.StatusGone)
	// ErrInvitationAlreadyPending signals a duplicate pending invitation for the same email.
	ErrInvitationAlreadyPending = apperrors.New("INVITATION_PENDING_EXISTS", "A pending invitation already exists for this email", http.StatusConflict)
	// ErrInvitationNotPending rejects transitions on invitations already in a terminal state.
	ErrInvitationNotPending = apperrors.New("INVITATION_NOT_PENDING", "Invitation is no longer pending", http.StatusConflict)
	// ErrInvitationEmailMismatch rejects acceptance by a user whose email differs from the invited address.
	ErrInvitationEmailMismatch = apperrors.New("INVITATION_EMAIL_MISMATCH", "This invitation was issued to a different email address", http.StatusForbidden)
	// ErrBatchTooLarge bounds bulk imports.
	ErrBatchTooLarge = apperrors.New("BATCH_TOO_LARGE", fmt.Sprintf("Bulk imports are limited to %d invitations", maxBulkInvitations), http.StatusBadRequest)
)

// InvitationOption customises InvitationService behaviour.
type InvitationOption func(*InvitationService)

// WithInvitationBaseURL configures the base URL used to build accept links.
func WithInvitationBaseURL(url string) InvitationOption {
	return func(s *InvitationService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithInvitationExpiryDays overrides the default invitation lifetime.
func WithInvitationExpiryDays(days int) InvitationOption {
	return func(s *InvitationService) {
		if days > 0 {
			s.expiryDays = days
		}
	}
}

// WithInvitationTokenSize adjusts the random token length in bytes.
func WithInvitationTokenSize(size int) InvitationOption {
	return func(s *InvitationService) {
		if size > 0 {
			s.tokenLength = size
		}
	}
}

// WithInvitationClock injects a custom clock primarily for testing.
func WithInvitationClock(clock func() time.Time) InvitationOption {
	return func(s *InvitationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithInvitationCache attaches an advisory cache used for analytics results.
func WithInvitationCache(store cache.Store) InvitationOption {
	return func(s *InvitationService) {
		s.cache = store
	}
}

// InvitationService manages the workspace invitation lifecycle: issuance,
// bulk import, acceptance, decline, cancellation, resend and analytics.
type InvitationService struct {
	db          *gorm.DB
	mailer      pkgmail.Mailer
	audit       *AuditService
	cache       cache.Store
	baseURL     string
	expiryDays  int
	tokenLength int
	now         func() time.Time
	log         *zap.Logger
}

// NewInvitationService constructs an InvitationService with the provided dependencies.
// The mailer and audit service are optional; a nil mailer simply reports
// email_sent=false on every issuance.
func NewInvitationService(db *gorm.DB, mailer pkgmail.Mailer, audit *AuditService, opts ...InvitationOption) (*InvitationService, error) {
	if db == nil {
		return nil, errors.New("invitation service: db is required")
	}

	service := &InvitationService{
		db:          db,
		mailer:      mailer,
		audit:       audit,
		expiryDays:  defaultInvitationExpiryDays,
		tokenLength: defaultInvitationTokenBytes,
		now:         time.Now,
		log:         logger.WithModule("invitations"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// CreateInvitationInput captures a single invitation request.
type CreateInvitationInput struct {
	WorkspaceID     string
	InvitedBy       string
	Email           string
	Role            string
	Department      string
	Position        string
	PersonalMessage string
	ExpiresInDays   int

	batchID *string
}

// CreatedInvitation pairs the stored invitation with its one-time raw token
// and the outcome of the email side effect.
type CreatedInvitation struct {
	Invitation *models.WorkspaceInvitation
	Token      string
	EmailSent  bool
}

// Create issues a new pending invitation and dispatches the invitation email.
//
// Duplicate pending invitations are refused: a pre-insert existence check
// covers dialects without partial-index support, and on SQLite/Postgres the
// partial unique index makes the insert itself race free. Email delivery
// failure is logged and surfaced via EmailSent=false; it never rolls back the
// insert.
func (s *InvitationService) Create(ctx context.Context, input CreateInvitationInput) (*CreatedInvitation, error) {
	ctx = ensureContext(ctx)

	email := strings.TrimSpace(input.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewBadRequest("a valid email address is required")
	}

	role := strings.TrimSpace(input.Role)
	if role == "" {
		role = models.RoleMember
	}

	expiryDays := input.ExpiresInDays
	if expiryDays <= 0 {
		expiryDays = s.expiryDays
	}

	var workspace models.Workspace
	if err := s.db.WithContext(ctx).First(&workspace, "id = ?", input.WorkspaceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("invitation service: load workspace: %w", err)
	}

	// Batch rows inherit the permission check done at the batch entry point.
	if input.batchID == nil {
		if err := s.requireManager(ctx, workspace.ID, input.InvitedBy); err != nil {
			return nil, err
		}
	}

	now := s.now()

	var pending int64
	err := s.db.WithContext(ctx).
		Model(&models.WorkspaceInvitation{}).
		Where("workspace_id = ? AND email = ? AND status = ?", workspace.ID, email, models.InvitationStatusPending).
		Count(&pending).Error
	if err != nil {
		return nil, fmt.Errorf("invitation service: check pending: %w", err)
	}
	if pending > 0 {
		return nil, ErrInvitationAlreadyPending
	}

	rawToken, err := crypto.GenerateToken(s.tokenLength)
	if err != nil {
		return nil, fmt.Errorf("invitation service: generate token: %w", err)
	}

	invitation := &models.WorkspaceInvitation{
		WorkspaceID:     workspace.ID,
		InvitedBy:       input.InvitedBy,
		Email:           email,
		TokenHash:       tokenHash(rawToken),
		Role:            role,
		Department:      strings.TrimSpace(input.Department),
		Position:        strings.TrimSpace(input.Position),
		PersonalMessage: strings.TrimSpace(input.PersonalMessage),
		Status:          models.InvitationStatusPending,
		ExpiresAt:       now.Add(time.Duration(expiryDays) * 24 * time.Hour),
		BatchID:         input.batchID,
	}
	invitation.CreatedAt = now

	if err := s.db.WithContext(ctx).Create(invitation).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrInvitationAlreadyPending
		}
		return nil, fmt.Errorf("invitation service: create invitation: %w", err)
	}

	emailSent := s.sendInvitationEmail(ctx, invitation, &workspace, rawToken)
	metrics.InvitationsCreated.WithLabelValues(strconv.FormatBool(emailSent)).Inc()
	s.invalidateAnalytics(ctx, workspace.ID)

	recordAudit(s.audit, ctx, AuditEntry{
		WorkspaceID: workspace.ID,
		UserID:      input.InvitedBy,
		Action:      "invitation.create",
		Resource:    invitation.ID,
		Result:      "success",
		Metadata:    map[string]any{"email": email, "role": role, "email_sent": emailSent},
	})

	return &CreatedInvitation{Invitation: invitation, Token: rawToken, EmailSent: emailSent}, nil
}

// GetByToken resolves a raw token to its invitation with workspace and inviter
// preloaded. An expired pending invitation is returned together with
// ErrInvitationExpired; the read never mutates the stored row, so repeated
// lookups of an expired token behave identically.
func (s *InvitationService) GetByToken(ctx context.Context, rawToken string) (*models.WorkspaceInvitation, error) {
	ctx = ensureContext(ctx)

	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, ErrInvitationNotFound
	}

	var invitation models.WorkspaceInvitation
	err := s.db.WithContext(ctx).
		Preload("Workspace").
		Preload("Inviter").
		First(&invitation, "token_hash = ?", tokenHash(rawToken)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invitation service: find invitation: %w", err)
	}

	if invitation.EffectiveStatus(s.now()) == models.InvitationStatusExpired {
		invitation.Status = models.InvitationStatusExpired
		return &invitation, ErrInvitationExpired
	}

	return &invitation, nil
}

// Accept redeems a pending invitation for the authenticated user, creating the
// workspace membership and marking the invitation accepted in one transaction.
// The accepting user's email must equal the invited address exactly, including
// case.
func (s *InvitationService) Accept(ctx context.Context, rawToken, userID string) (*models.WorkspaceMember, error) {
	ctx = ensureContext(ctx)

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("invitation service: load user: %w", err)
	}

	invitation, err := s.GetByToken(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !invitation.IsActionable(now) {
		return nil, ErrInvitationNotPending
	}
	if user.Email != invitation.Email {
		return nil, ErrInvitationEmailMismatch
	}

	member := &models.WorkspaceMember{
		WorkspaceID: invitation.WorkspaceID,
		UserID:      user.ID,
		Role:        invitation.Role,
		Status:      models.MemberStatusActive,
		Department:  invitation.Department,
		Position:    invitation.Position,
		InvitedBy:   &invitation.InvitedBy,
		JoinedAt:    &now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(member).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrAlreadyMember
			}
			return fmt.Errorf("create member: %w", err)
		}

		res := tx.Model(&models.WorkspaceInvitation{}).
			Where("id = ? AND status = ?", invitation.ID, models.InvitationStatusPending).
			Updates(map[string]any{
				"status":      models.InvitationStatusAccepted,
				"accepted_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("mark accepted: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInvitationNotPending
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	invitation.Status = models.InvitationStatusAccepted
	invitation.AcceptedAt = &now

	metrics.InvitationTransitions.WithLabelValues(models.InvitationStatusAccepted).Inc()
	s.invalidateAnalytics(ctx, invitation.WorkspaceID)

	recordAudit(s.audit, ctx, AuditEntry{
		WorkspaceID: invitation.WorkspaceID,
		UserID:      user.ID,
		Action:      "invitation.accept",
		Resource:    invitation.ID,
		Result:      "success",
	})

	return member, nil
}

// Decline marks a pending invitation declined, recording an optional reason.
// Possession of the token is sufficient; the decliner does not authenticate.
func (s *InvitationService) Decline(ctx context.Context, rawToken, reason string) (*models.WorkspaceInvitation, error) {
	ctx = ensureContext(ctx)

	invitation, err := s.GetByToken(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !invitation.IsActionable(now) {
		return nil, ErrInvitationNotPending
	}

	res := s.db.WithContext(ctx).
		Model(&models.WorkspaceInvitation{}).
		Where("id = ? AND status = ?", invitation.ID, models.InvitationStatusPending).
		Updates(map[string]any{
			"status":          models.InvitationStatusDeclined,
			"declined_at":     now,
			"declined_reason": strings.TrimSpace(reason),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("invitation service: mark declined: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvitationNotPending
	}

	invitation.Status = models.InvitationStatusDeclined
	invitation.DeclinedAt = &now
	invitation.DeclinedReason = strings.TrimSpace(reason)

	metrics.InvitationTransitions.WithLabelValues(models.InvitationStatusDeclined).Inc()
	s.invalidateAnalytics(ctx, invitation.WorkspaceID)

	recordAudit(s.audit, ctx, AuditEntry{
		WorkspaceID: invitation.WorkspaceID,
		Action:      "invitation.decline",
		Resource:    invitation.ID,
		Result:      "success",
	})

	return invitation, nil
}

// Cancel withdraws a pending invitation. Only workspace managers may cancel.
func (s *InvitationService) Cancel(ctx context.Context, invitationID, actorID string) error {
	ctx = ensureContext(ctx)

	invitation, err := s.getByID(ctx, invitationID)
	if err != nil {
		return err
	}

	if err := s.requireManager(ctx, invitation.WorkspaceID, actorID); err != nil {
		return err
	}

	if !invitation.IsActionable(s.now()) {
		return ErrInvitationNotPending
	}

	res := s.db.WithContext(ctx).
		Model(&models.WorkspaceInvitation{}).
		Where("id = ? AND status = ?", invitation.ID, models.InvitationStatusPending).
		Update("status", models.InvitationStatusCancelled)
	if res.Error != nil {
		return fmt.Errorf("invitation service: mark cancelled: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvitationNotPending
	}

	metrics.InvitationTransitions.WithLabelValues(models.InvitationStatusCancelled).Inc()
	s.invalidateAnalytics(ctx, invitation.WorkspaceID)

	recordAudit(s.audit, ctx, AuditEntry{
		WorkspaceID: invitation.WorkspaceID,
		UserID:      actorID,
		Action:      "invitation.cancel",
		Resource:    invitation.ID,
		Result:      "success",
	})

	return nil
}

// Resend regenerates the invitation token, invalidating any previously
// distributed link, increments the reminder counter and re-sends the email.
// Only legal while the invitation is still pending and unexpired.
func (s *InvitationService) Resend(ctx context.Context, invitationID, actorID string) (*CreatedInvitation, error) {
	ctx = ensureContext(ctx)

	invitation, err := s.getByID(ctx, invitationID)
	if err != nil {
		return nil, err
	}

	if err := s.requireManager(ctx, invitation.WorkspaceID, actorID); err != nil {
		return nil, err
	}

	if !invitation.IsActionable(s.now()) {
		return nil, ErrInvitationNotPending
	}

	rawToken, err := crypto.GenerateToken(s.tokenLength)
	if err != nil {
		return nil, fmt.Errorf("invitation service: generate token: %w", err)
	}

	res := s.db.WithContext(ctx).
		Model(&models.WorkspaceInvitation{}).
		Where("id = ? AND status = ?", invitation.ID, models.InvitationStatusPending).
		Updates(map[string]any{
			"token_hash":     tokenHash(rawToken),
			"reminders_sent": gorm.Expr("reminders_sent + 1"),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("invitation service: rotate token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvitationNotPending
	}

	invitation.TokenHash = tokenHash(rawToken)
	invitation.RemindersSent++

	var workspace models.Workspace
	if err := s.db.WithContext(ctx).First(&workspace, "id = ?", invitation.WorkspaceID).Error; err != nil {
		return nil, fmt.Errorf("invitation service: load workspace: %w", err)
	}

	emailSent := s.sendInvitationEmail(ctx, invitation, &workspace, rawToken)

	recordAudit(s.audit, ctx, AuditEntry{
		WorkspaceID: invitation.WorkspaceID,
		UserID:      actorID,
		Action:      "invitation.resend",
		Resource:    invitation.ID,
		Result:      "success",
		Metadata:    map[string]any{"reminders_sent": invitation.RemindersSent, "email_sent": emailSent},
	})

	return &CreatedInvitation{Invitation: invitation, Token: rawToken, EmailSent: emailSent}, nil
}

// ListForWorkspace returns a page of invitations for a workspace, newest first.
func (s *InvitationService) ListForWorkspace(ctx context.Context, workspaceID string, page, perPage int) ([]models.WorkspaceInvitation, int64, error) {
	ctx = ensureContext(ctx)

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 25
	}

	var total int64
	if err := s.db.WithContext(ctx).
		Model(&models.WorkspaceInvitation{}).
		Where("workspace_id = ?", workspaceID).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("invitation service: count invitations: %w", err)
	}

	var invitations []models.WorkspaceInvitation
	err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&invitations).Error
	if err != nil {
		return nil, 0, fmt.Errorf("invitation service: list invitations: %w", err)
	}

	return invitations, total, nil
}

// ExpireOverdue persists the expired status for pending invitations whose
// expiry has passed. Reads never perform this write; the maintenance cleaner
// calls it on a schedule.
func (s *InvitationService) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	res := s.db.WithContext(ctx).
		Model(&models.WorkspaceInvitation{}).
		Where("status = ? AND expires_at < ?", models.InvitationStatusPending, now).
		Update("status", models.InvitationStatusExpired)
	if res.Error != nil {
		return 0, fmt.Errorf("invitation service: expire overdue: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		metrics.InvitationTransitions.WithLabelValues(models.InvitationStatusExpired).Add(float64(res.RowsAffected))
	}
	return res.RowsAffected, nil
}

func (s *InvitationService) getByID(ctx context.Context, id string) (*models.WorkspaceInvitation, error) {
	var invitation models.WorkspaceInvitation
	err := s.db.WithContext(ctx).First(&invitation, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invitation service: load invitation: %w", err)
	}
	return &invitation, nil
}

func (s *InvitationService) requireManager(ctx context.Context, workspaceID, actorID string) error {
	member, err := activeMembership(ctx, s.db, workspaceID, actorID)
	if err != nil {
		return err
	}
	if !member.CanManage() {
		return apperrors.ErrForbidden
	}
	return nil
}

func (s *InvitationService) acceptLink(token string) string {
	if s.baseURL == "" {
		return "/invitations/accept?token=" + token
	}
	return fmt.Sprintf("%s/invitations/accept?token=%s", s.baseURL, token)
}

func (s *InvitationService) sendInvitationEmail(ctx context.Context, invitation *models.WorkspaceInvitation, workspace *models.Workspace, rawToken string) bool {
	if s.mailer == nil {
		return false
	}

	message := pkgmail.Message{
		To:      []string{invitation.Email},
		Subject: fmt.Sprintf("You're invited to join %s on Teamspace", workspace.Name),
		Body:    s.invitationBody(invitation, workspace, rawToken),
	}

	if err := s.mailer.Send(ctx, message); err != nil {
		if !errors.Is(err, pkgmail.ErrSMTPDisabled) {
			s.log.Warn("invitation email delivery failed",
				zap.String("invitation_id", invitation.ID),
				zap.String("workspace_id", workspace.ID),
				zap.Error(err),
			)
		}
		metrics.EmailsSent.WithLabelValues("failure").Inc()
		return false
	}

	metrics.EmailsSent.WithLabelValues("success").Inc()
	return true
}

func (s *InvitationService) invitationBody(invitation *models.WorkspaceInvitation, workspace *models.Workspace, rawToken string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\nYou have been invited to join the %s workspace as %s.\n", workspace.Name, invitation.Role)
	if invitation.PersonalMessage != "" {
		fmt.Fprintf(&b, "\n%q\n", invitation.PersonalMessage)
	}
	fmt.Fprintf(&b, "\nUse the following link to accept your invitation:\n%s\n", s.acceptLink(rawToken))
	fmt.Fprintf(&b, "\nThis invitation expires on %s.\n", invitation.ExpiresAt.Format("02 Jan 2006"))
	b.WriteString("\nIf you did not expect this email, you can ignore it.\n")
	return b.String()
}

func (s *InvitationService) invalidateAnalytics(ctx context.Context, workspaceID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.WorkspaceAnalyticsKey(workspaceID)); err != nil {
		s.log.Debug("analytics cache invalidation failed", zap.Error(err))
	}
}

func tokenHash(token string) string {
	checksum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(checksum[:])
}
