package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadcrm_backend/internal/documents/repository"
	"leadcrm_backend/internal/documents/service"
	"leadcrm_backend/internal/documents/transport"
	"leadcrm_backend/platform/httpkit"
	"leadcrm_backend/platform/validator"
)

// Handler handles HTTP requests for document requirements and lead documents.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"
)

// New creates a new documents handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// ResolveRequirements resolves the checklist for a (process, stage?) scope.
// GET /api/v1/processes/:id/requirements/resolve?stageId=...
func (h *Handler) ResolveRequirements(c *gin.Context) {
	processID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var stageID *uuid.UUID
	if raw := c.Query("stageId"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
			return
		}
		stageID = &parsed
	}

	resolved, err := h.svc.ResolveRequirements(c.Request.Context(), processID, stageID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToResolvedResponse(resolved))
}

// ListRequirements lists every requirement of a process (admin view).
// GET /api/v1/admin/processes/:id/requirements
func (h *Handler) ListRequirements(c *gin.Context) {
	processID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	requirements, err := h.svc.ListRequirements(c.Request.Context(), processID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToRequirementResponses(requirements))
}

// CreateRequirement creates a requirement under a process.
// POST /api/v1/admin/processes/:id/requirements
func (h *Handler) CreateRequirement(c *gin.Context) {
	processID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.CreateRequirementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	show := true
	if req.Show != nil {
		show = *req.Show
	}

	requirement, err := h.svc.CreateRequirement(c.Request.Context(), repository.CreateRequirementParams{
		ProcessID:   processID,
		StageID:     req.StageID,
		Name:        req.Name,
		Description: req.Description,
		Required:    req.Required,
		Show:        show,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToRequirementResponse(requirement))
}

// UpdateRequirement applies a version-checked partial update.
// PUT /api/v1/admin/requirements/:id
func (h *Handler) UpdateRequirement(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.UpdateRequirementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	requirement, err := h.svc.UpdateRequirement(c.Request.Context(), id, repository.UpdateRequirementParams{
		Name:        req.Name,
		Description: req.Description,
		Required:    req.Required,
		Show:        req.Show,
		Version:     req.Version,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToRequirementResponse(requirement))
}

// DeleteRequirement removes a requirement.
// DELETE /api/v1/admin/requirements/:id
func (h *Handler) DeleteRequirement(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	if err := h.svc.DeleteRequirement(c.Request.Context(), id); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// SetMarker records the "no documents required" marker for a scope.
// POST /api/v1/admin/processes/:id/requirements/none
func (h *Handler) SetMarker(c *gin.Context) {
	processID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.MarkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.svc.SetNoDocumentsRequired(c.Request.Context(), processID, req.StageID); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearMarker removes the marker for a scope.
// DELETE /api/v1/admin/processes/:id/requirements/none
func (h *Handler) ClearMarker(c *gin.Context) {
	processID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.MarkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.svc.ClearNoDocumentsRequired(c.Request.Context(), processID, req.StageID); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// PresignUpload returns a presigned PUT URL for a document upload.
// POST /api/v1/leads/:id/documents/presign
func (h *Handler) PresignUpload(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.PresignUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	presigned, err := h.svc.PresignUpload(c.Request.Context(), service.UploadRequest{
		LeadID:        leadID,
		RequirementID: req.RequirementID,
		FileName:      req.FileName,
		ContentType:   req.ContentType,
		SizeBytes:     req.SizeBytes,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, presigned)
}

// RegisterUpload records a completed upload as a pending document.
// POST /api/v1/leads/:id/documents
func (h *Handler) RegisterUpload(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.RegisterUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	document, err := h.svc.RegisterUpload(c.Request.Context(), repository.CreateLeadDocumentParams{
		LeadID:        leadID,
		RequirementID: req.RequirementID,
		FileKey:       req.FileKey,
		FileURL:       req.FileURL,
		FileType:      req.FileType,
		FileName:      req.FileName,
		Notes:         req.Notes,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToDocumentResponse(document))
}

// ListLeadDocuments lists a lead's uploads.
// GET /api/v1/leads/:id/documents
func (h *Handler) ListLeadDocuments(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	documents, err := h.svc.ListLeadDocuments(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToDocumentResponses(documents))
}

// ReviewDocument approves or rejects a document.
// POST /api/v1/documents/:id/review
func (h *Handler) ReviewDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.ReviewDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	document, err := h.svc.ReviewDocument(c.Request.Context(), id, repository.DocumentStatus(req.Status), req.Notes)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToDocumentResponse(document))
}

// DownloadDocument returns a presigned GET URL.
// GET /api/v1/documents/:id/download
func (h *Handler) DownloadDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	presigned, err := h.svc.DocumentDownloadURL(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, presigned)
}

// DeleteDocument removes a document and its stored file.
// DELETE /api/v1/documents/:id
func (h *Handler) DeleteDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	if err := h.svc.DeleteDocument(c.Request.Context(), id); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// Checklist returns the lead's requirement checklist with fulfillment.
// GET /api/v1/leads/:id/checklist
func (h *Handler) Checklist(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	checklist, err := h.svc.GetChecklist(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, checklist)
}
