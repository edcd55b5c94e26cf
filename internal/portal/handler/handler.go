package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadcrm_backend/internal/portal/service"
	"leadcrm_backend/platform/httpkit"
)

// Handler handles portal token management and the public portal reads.
type Handler struct {
	svc *service.Service
}

const msgInvalidID = "invalid id"

// New creates a new portal handler.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// IssueToken mints (or replaces) the lead's portal link.
// POST /api/v1/leads/:id/portal-token
func (h *Handler) IssueToken(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	token, err := h.svc.IssueToken(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, token)
}

// RevokeToken invalidates the lead's portal link.
// DELETE /api/v1/leads/:id/portal-token
func (h *Handler) RevokeToken(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	if err := h.svc.RevokeToken(c.Request.Context(), leadID); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// Overview serves the portal landing payload.
// GET /api/v1/portal/:token
func (h *Handler) Overview(c *gin.Context) {
	overview, err := h.svc.GetOverview(c.Request.Context(), c.Param("token"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, overview)
}

// Progress serves the lead's progress model to the portal.
// GET /api/v1/portal/:token/progress
func (h *Handler) Progress(c *gin.Context) {
	progress, err := h.svc.GetProgress(c.Request.Context(), c.Param("token"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, progress)
}

// Checklist serves the lead's document checklist to the portal.
// GET /api/v1/portal/:token/checklist
func (h *Handler) Checklist(c *gin.Context) {
	checklist, err := h.svc.GetChecklist(c.Request.Context(), c.Param("token"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, checklist)
}
