package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/camdenwatts/teamspace/internal/middleware"
	"github.com/camdenwatts/teamspace/internal/models"
	"github.com/camdenwatts/teamspace/internal/services"
	appErrors "github.com/camdenwatts/teamspace/pkg/errors"
	"github.com/camdenwatts/teamspace/pkg/response"
)

const maxCSVBodyBytes = 1 << 20 // 1 MiB

type InvitationHandler struct {
	invitations *services.InvitationService
}

func NewInvitationHandler(invitations *services.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitations: invitations}
}

type createInvitationRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Role            string `json:"role" validate:"omitempty,oneof=owner admin member"`
	Department      string `json:"department" validate:"omitempty,max=128"`
	Position        string `json:"position" validate:"omitempty,max=128"`
	PersonalMessage string `json:"personal_message" validate:"omitempty,max=1024"`
	ExpiresInDays   int    `json:"expires_in_days" validate:"omitempty,min=1,max=90"`
}

type bulkInvitationRequest struct {
	Name string              `json:"name" validate:"omitempty,max=128"`
	Rows []bulkInvitationRow `json:"invitations" validate:"required,min=1,dive"`
}

type bulkInvitationRow struct {
	Email      string `json:"email" validate:"required,email"`
	Role       string `json:"role" validate:"omitempty,oneof=owner admin member"`
	Department string `json:"department" validate:"omitempty,max=128"`
	Position   string `json:"position" validate:"omitempty,max=128"`
	Message    string `json:"message" validate:"omitempty,max=1024"`
}

type declineInvitationRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=512"`
}

type invitationDTO struct {
	ID              string     `json:"id"`
	WorkspaceID     string     `json:"workspace_id"`
	WorkspaceName   string     `json:"workspace_name,omitempty"`
	Email           string     `json:"email"`
	Role            string     `json:"role"`
	Department      string     `json:"department,omitempty"`
	Position        string     `json:"position,omitempty"`
	PersonalMessage string     `json:"personal_message,omitempty"`
	Status          string     `json:"status"`
	InviterName     string     `json:"inviter_name,omitempty"`
	ExpiresAt       time.Time  `json:"expires_at"`
	RemindersSent   int        `json:"reminders_sent"`
	CreatedAt       time.Time  `json:"created_at"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty"`
	DeclinedAt      *time.Time `json:"declined_at,omitempty"`
}

type invitationCreatedResponse struct {
	Invitation invitationDTO `json:"invitation"`
	EmailSent  bool          `json:"email_sent"`
}

type bulkSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

type bulkInvitationResponse struct {
	BatchID   string                   `json:"batch_id"`
	Status    string                   `json:"status"`
	Results   []services.BulkRowResult `json:"results"`
	Summary   bulkSummary              `json:"summary"`
	RowErrors []services.CSVRowError   `json:"row_errors,omitempty"`
}

func invitationToDTO(inv *models.WorkspaceInvitation, now time.Time) invitationDTO {
	dto := invitationDTO{
		ID:              inv.ID,
		WorkspaceID:     inv.WorkspaceID,
		Email:           inv.Email,
		Role:            inv.Role,
		Department:      inv.Department,
		Position:        inv.Position,
		PersonalMessage: inv.PersonalMessage,
		Status:          inv.EffectiveStatus(now),
		ExpiresAt:       inv.ExpiresAt,
		RemindersSent:   inv.RemindersSent,
		CreatedAt:       inv.CreatedAt,
		AcceptedAt:      inv.AcceptedAt,
		DeclinedAt:      inv.DeclinedAt,
	}
	if inv.Workspace != nil {
		dto.WorkspaceName = inv.Workspace.Name
	}
	if inv.Inviter != nil {
		dto.InviterName = inv.Inviter.Name
	}
	return dto
}

// POST /api/workspaces/:id/invitations
func (h *InvitationHandler) Create(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req createInvitationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	created, err := h.invitations.Create(requestContext(c), services.CreateInvitationInput{
		WorkspaceID:     c.Param("id"),
		InvitedBy:       userID,
		Email:           req.Email,
		Role:            req.Role,
		Department:      req.Department,
		Position:        req.Position,
		PersonalMessage: req.PersonalMessage,
		ExpiresInDays:   req.ExpiresInDays,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, invitationCreatedResponse{
		Invitation: invitationToDTO(created.Invitation, time.Now()),
		EmailSent:  created.EmailSent,
	})
}

// GET /api/workspaces/:id/invitations
func (h *InvitationHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 25)

	invitations, total, err := h.invitations.ListForWorkspace(requestContext(c), c.Param("id"), page, perPage)
	if err != nil {
		response.Error(c, err)
		return
	}

	now := time.Now()
	dtos := make([]invitationDTO, 0, len(invitations))
	for i := range invitations {
		dtos = append(dtos, invitationToDTO(&invitations[i], now))
	}

	response.Paginated(c, dtos, response.NewMeta(page, perPage, total))
}

// POST /api/workspaces/:id/invitations/bulk
func (h *InvitationHandler) CreateBulk(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req bulkInvitationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	rows := make([]services.BulkInvitationRow, 0, len(req.Rows))
	for _, row := range req.Rows {
		rows = append(rows, services.BulkInvitationRow{
			Email:      row.Email,
			Role:       row.Role,
			Department: row.Department,
			Position:   row.Position,
			Message:    row.Message,
		})
	}

	report, err := h.invitations.CreateBulk(requestContext(c), c.Param("id"), userID, req.Name, rows)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, bulkReportResponse(report, nil))
}

// POST /api/workspaces/:id/invitations/import
//
// Accepts a raw CSV body with an email[,role,department,position,message]
// header. Rows rejected by the parser are reported separately from rows that
// failed during invitation creation.
func (h *InvitationHandler) ImportCSV(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	rows, rowErrors, err := services.ParseInvitationCSV(http.MaxBytesReader(c.Writer, c.Request.Body, maxCSVBodyBytes))
	if err != nil {
		response.Error(c, err)
		return
	}

	if len(rows) == 0 {
		response.Error(c, appErrors.NewValidation(csvErrorFields(rowErrors)))
		return
	}

	report, err := h.invitations.CreateBulk(requestContext(c), c.Param("id"), userID, c.Query("name"), rows)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, bulkReportResponse(report, rowErrors))
}

// GET /api/invitations/:token
func (h *InvitationHandler) GetByToken(c *gin.Context) {
	invitation, err := h.invitations.GetByToken(requestContext(c), c.Param("token"))
	if err != nil {
		// An expired invitation still renders its details so the landing
		// page can explain what expired.
		if errors.Is(err, services.ErrInvitationExpired) && invitation != nil {
			appErr := appErrors.FromError(err)
			c.JSON(appErr.StatusCode, response.Response{
				Success: false,
				Data:    invitationToDTO(invitation, time.Now()),
				Error: &response.ErrorInfo{
					Code:    appErr.Code,
					Message: appErr.Message,
				},
				Timestamp:  time.Now().UTC(),
				StatusCode: appErr.StatusCode,
			})
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, invitationToDTO(invitation, time.Now()))
}

// POST /api/invitations/:token/accept
func (h *InvitationHandler) Accept(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	member, err := h.invitations.Accept(requestContext(c), c.Param("token"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "invitation accepted", member)
}

// POST /api/invitations/:token/decline
func (h *InvitationHandler) Decline(c *gin.Context) {
	var req declineInvitationRequest
	if c.Request.ContentLength > 0 {
		if !bindAndValidate(c, &req) {
			return
		}
	}

	invitation, err := h.invitations.Decline(requestContext(c), c.Param("token"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "invitation declined", invitationToDTO(invitation, time.Now()))
}

// POST /api/workspaces/:id/invitations/:invitationID/resend
func (h *InvitationHandler) Resend(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	resent, err := h.invitations.Resend(requestContext(c), c.Param("invitationID"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, invitationCreatedResponse{
		Invitation: invitationToDTO(resent.Invitation, time.Now()),
		EmailSent:  resent.EmailSent,
	})
}

// DELETE /api/workspaces/:id/invitations/:invitationID
func (h *InvitationHandler) Cancel(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.invitations.Cancel(requestContext(c), c.Param("invitationID"), userID); err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "invitation cancelled", nil)
}

// GET /api/workspaces/:id/invitations/analytics
func (h *InvitationHandler) Analytics(c *gin.Context) {
	analytics, err := h.invitations.Analytics(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, analytics)
}

func bulkReportResponse(report *services.BulkInvitationReport, rowErrors []services.CSVRowError) bulkInvitationResponse {
	return bulkInvitationResponse{
		BatchID: report.Batch.ID,
		Status:  report.Batch.Status,
		Results: report.Results,
		Summary: bulkSummary{
			Total:      report.Batch.Total,
			Successful: report.Batch.Successful,
			Failed:     report.Batch.Failed,
		},
		RowErrors: rowErrors,
	}
}

func csvErrorFields(rowErrors []services.CSVRowError) map[string]string {
	fields := make(map[string]string, len(rowErrors))
	for _, re := range rowErrors {
		fields["row_"+strconv.Itoa(re.Row)] = re.Reason
	}
	if len(fields) == 0 {
		fields["file"] = "no valid invitation rows found"
	}
	return fields
}
