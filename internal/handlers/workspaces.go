package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/camdenwatts/teamspace/internal/middleware"
	"github.com/camdenwatts/teamspace/internal/services"
	appErrors "github.com/camdenwatts/teamspace/pkg/errors"
	"github.com/camdenwatts/teamspace/pkg/response"
)

type WorkspaceHandler struct {
	workspaces *services.WorkspaceService
}

func NewWorkspaceHandler(workspaces *services.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{workspaces: workspaces}
}

type createWorkspaceRequest struct {
	Name string `json:"name" validate:"required,max=128"`
	Slug string `json:"slug" validate:"omitempty,max=128"`
}

type updateWorkspaceRequest struct {
	Name *string `json:"name" validate:"omitempty,max=128"`
}

// POST /api/workspaces
func (h *WorkspaceHandler) Create(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req createWorkspaceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	workspace, err := h.workspaces.Create(requestContext(c), services.CreateWorkspaceInput{
		Name:    req.Name,
		Slug:    req.Slug,
		OwnerID: userID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, workspace)
}

// GET /api/workspaces/:id
func (h *WorkspaceHandler) Get(c *gin.Context) {
	workspace, err := h.workspaces.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, workspace)
}

// PATCH /api/workspaces/:id
func (h *WorkspaceHandler) Update(c *gin.Context) {
	var req updateWorkspaceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	workspace, err := h.workspaces.Update(requestContext(c), c.Param("id"), services.UpdateWorkspaceInput{
		Name: req.Name,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, workspace)
}

// DELETE /api/workspaces/:id
func (h *WorkspaceHandler) Delete(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if err := h.workspaces.Delete(requestContext(c), c.Param("id"), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "workspace deleted", nil)
}

// GET /api/workspaces/:id/members
func (h *WorkspaceHandler) ListMembers(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 25)

	members, total, err := h.workspaces.ListMembers(requestContext(c), c.Param("id"), page, perPage)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, members, response.NewMeta(page, perPage, total))
}

// DELETE /api/workspaces/:id/members/:userID
func (h *WorkspaceHandler) RemoveMember(c *gin.Context) {
	actorID := c.GetString(middleware.CtxUserIDKey)
	err := h.workspaces.RemoveMember(requestContext(c), c.Param("id"), c.Param("userID"), actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "member removed", nil)
}
